package signal

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dkeye/RoonController/internal/app/orch"
	"github.com/dkeye/RoonController/internal/core/mocks"
	"github.com/dkeye/RoonController/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/mock/gomock"
)

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func startServer(t *testing.T, o *orch.Orchestrator, opts Options) string {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = o.Run(ctx)
		close(done)
	}()

	ctl := NewSignalWSController(o, opts)
	r := gin.New()
	r.GET("/ws", func(c *gin.Context) { ctl.HandleSignal(ctx, c) })
	srv := httptest.NewServer(r)

	t.Cleanup(func() {
		cancel()
		srv.Close()
		<-done
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func readFrame(t *testing.T, ws *websocket.Conn) frame {
	t.Helper()
	if err := ws.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("set deadline: %v", err)
	}
	var f frame
	if err := ws.ReadJSON(&f); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return f
}

func sendJSON(t *testing.T, ws *websocket.Conn, v any) {
	t.Helper()
	if err := ws.WriteJSON(v); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func zones() []domain.Zone {
	return []domain.Zone{
		{
			ZoneID:        "A",
			DisplayName:   "Living Room",
			State:         domain.StatePlaying,
			IsSeekAllowed: true,
			Outputs:       []domain.Output{{OutputID: "out-a", Volume: &domain.Volume{Type: domain.VolumeContinuous, Max: 100}}},
		},
		{ZoneID: "B", DisplayName: "Kitchen", State: domain.StateStopped},
	}
}

func TestSocketLifecycle(t *testing.T) {
	o := orch.New(nil, orch.Options{})
	url := startServer(t, o, Options{})
	o.OnPaired("Core")
	o.OnSubscribed(zones())

	ws := dial(t, url)
	if f := readFrame(t, ws); f.Type != "init" {
		t.Fatalf("expected init, got %s", f.Type)
	}
	f := readFrame(t, ws)
	if f.Type != "zones" {
		t.Fatalf("expected zones, got %s", f.Type)
	}
	var list []domain.ZoneSummary
	if err := json.Unmarshal(f.Data, &list); err != nil {
		t.Fatalf("decode zones: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 zones, got %d", len(list))
	}

	sendJSON(t, ws, map[string]any{"type": "select_zone", "payload": map[string]string{"zoneId": "B"}})
	f = readFrame(t, ws)
	var snap domain.StateSnapshot
	if err := json.Unmarshal(f.Data, &snap); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if f.Type != "update" || snap.Zone == nil || snap.Zone.ZoneID != "B" {
		t.Fatalf("expected update for B, got %s %+v", f.Type, snap.Zone)
	}

	ws.Close()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if err := o.Flush(context.Background()); err != nil {
			t.Fatalf("flush: %v", err)
		}
		if o.Fanout.Len() == 0 && o.Registry.Len() == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected session to be unregistered after close")
}

func TestSocketSurvivesBadInput(t *testing.T) {
	o := orch.New(nil, orch.Options{})
	url := startServer(t, o, Options{})

	ws := dial(t, url)
	readFrame(t, ws)
	readFrame(t, ws)

	if err := ws.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatalf("write: %v", err)
	}
	sendJSON(t, ws, map[string]any{"type": "teleport"})
	sendJSON(t, ws, map[string]any{"type": "volume", "payload": "loud"})
	sendJSON(t, ws, map[string]any{"type": "ping"})

	if f := readFrame(t, ws); f.Type != "pong" {
		t.Fatalf("expected pong after bad input, got %s", f.Type)
	}
}

func TestSocketCommandsReachController(t *testing.T) {
	ctrl := gomock.NewController(t)
	up := mocks.NewMockController(ctrl)
	o := orch.New(up, orch.Options{})
	url := startServer(t, o, Options{})
	o.OnPaired("Core")
	o.OnSubscribed(zones())

	calls := make(chan string, 4)
	up.EXPECT().Control(domain.ZoneID("A"), "next").DoAndReturn(func(domain.ZoneID, string) error {
		calls <- "control"
		return nil
	})
	up.EXPECT().ChangeVolume("out-a", "absolute", 55.0).DoAndReturn(func(string, string, float64) error {
		calls <- "volume"
		return nil
	})
	up.EXPECT().Mute("out-a", "unmute").DoAndReturn(func(string, string) error {
		calls <- "mute"
		return nil
	})
	up.EXPECT().Seek(domain.ZoneID("A"), "absolute", 12.0).DoAndReturn(func(domain.ZoneID, string, float64) error {
		calls <- "seek"
		return nil
	})

	ws := dial(t, url)
	readFrame(t, ws)
	readFrame(t, ws)

	sendJSON(t, ws, map[string]any{"type": "control", "payload": map[string]any{"command": "next"}})
	sendJSON(t, ws, map[string]any{"type": "volume", "payload": map[string]any{"mode": "absolute", "value": 55}})
	sendJSON(t, ws, map[string]any{"type": "mute", "payload": map[string]any{"action": "unmute"}})
	sendJSON(t, ws, map[string]any{"type": "seek", "payload": map[string]any{"seconds": 12}})

	for _, want := range []string{"control", "volume", "mute", "seek"} {
		select {
		case got := <-calls:
			if got != want {
				t.Fatalf("expected %s, got %s", want, got)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}

func TestOptionsDefaults(t *testing.T) {
	opts := Options{}.withDefaults()
	if opts.PingPeriod != 54*time.Second || opts.SendBuffer != 32 || opts.ReadLimit != 32768 {
		t.Fatalf("unexpected defaults %+v", opts)
	}
	if opts.pongWait() != 60*time.Second {
		t.Fatalf("expected pong wait 60s, got %v", opts.pongWait())
	}
}
