package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/RoonController/internal/core"
	"github.com/dkeye/RoonController/internal/domain"
	"github.com/gorilla/websocket"
)

// fakeController speaks enough MOO to pair, subscribe and answer requests.
type fakeController struct {
	zones         []domain.Zone
	registerDelay time.Duration
	requests      chan Message
	replies       chan Message

	mu    sync.Mutex
	conn  *websocket.Conn
	subID uint64
}

func newFakeController(zones []domain.Zone) *fakeController {
	return &fakeController{
		zones:    zones,
		requests: make(chan Message, 16),
		replies:  make(chan Message, 16),
	}
}

func (f *fakeController) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	f.mu.Lock()
	f.conn = conn
	f.mu.Unlock()

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if kind != websocket.BinaryMessage {
			return
		}
		m, err := parseMessage(data)
		if err != nil {
			return
		}
		if m.Verb != verbRequest {
			f.replies <- m
			continue
		}
		f.handle(m)
	}
}

func (f *fakeController) handle(m Message) {
	switch m.Name {
	case methodInfo:
		f.reply(m.RequestID, verbComplete, replySuccess, infoReply{CoreID: "core-1", DisplayName: "Core"})
	case methodRegister:
		f.requests <- m
		go func() {
			time.Sleep(f.registerDelay)
			f.reply(m.RequestID, verbComplete, replyRegistered, registerReply{CoreID: "core-1", DisplayName: "Core", Token: "tok-new"})
		}()
	case methodSubscribeZones:
		f.mu.Lock()
		f.subID = m.RequestID
		f.mu.Unlock()
		f.reply(m.RequestID, verbContinue, replySubscribed, zonesEvent{Zones: f.zones})
	case methodGetImage:
		var req imageRequest
		_ = json.Unmarshal(m.Body, &req)
		if req.ImageKey == "missing" {
			f.reply(m.RequestID, verbComplete, replyNotFound, nil)
			return
		}
		f.write(Message{Verb: verbComplete, Name: replySuccess, RequestID: m.RequestID, ContentType: "image/jpeg", Body: []byte{1, 2, 3}})
	default:
		f.requests <- m
		f.reply(m.RequestID, verbComplete, replySuccess, nil)
	}
}

func (f *fakeController) reply(id uint64, verb, name string, body any) {
	msg, err := newReply(id, verb, name, body)
	if err != nil {
		return
	}
	f.write(msg)
}

func (f *fakeController) write(m Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_ = f.conn.WriteMessage(websocket.BinaryMessage, m.marshal())
}

// push sends a raw Changed body on the zone subscription.
func (f *fakeController) push(body string) {
	f.mu.Lock()
	id := f.subID
	f.mu.Unlock()
	f.write(Message{Verb: verbContinue, Name: replyChanged, RequestID: id, ContentType: contentJSON, Body: []byte(body)})
}

type recordingHandler struct {
	paired     chan string
	unpaired   chan struct{}
	subscribed chan []domain.Zone
	changed    chan domain.ZoneChanges
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{
		paired:     make(chan string, 4),
		unpaired:   make(chan struct{}, 4),
		subscribed: make(chan []domain.Zone, 4),
		changed:    make(chan domain.ZoneChanges, 4),
	}
}

func (h *recordingHandler) OnPaired(name string) { h.paired <- name }
func (h *recordingHandler) OnUnpaired() { h.unpaired <- struct{}{} }
func (h *recordingHandler) OnSubscribed(zones []domain.Zone) { h.subscribed <- zones }
func (h *recordingHandler) OnChanged(ch domain.ZoneChanges) { h.changed <- ch }

type memTokens struct {
	mu     sync.Mutex
	tokens map[string]string
}

func (m *memTokens) Token(_ context.Context, coreID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tok, ok := m.tokens[coreID]
	if !ok {
		return "", ErrTokenNotFound
	}
	return tok, nil
}

func (m *memTokens) SaveToken(_ context.Context, coreID, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[coreID] = token
	return nil
}

func waitFor[T any](t *testing.T, ch <-chan T, what string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
	var zero T
	return zero
}

func startClient(t *testing.T, fake *fakeController, tokens TokenStore) (*Client, *recordingHandler, context.CancelFunc) {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	h := newRecordingHandler()
	c := NewClient(Options{
		Address:        strings.TrimPrefix(srv.URL, "http://"),
		ReconnectDelay: 50 * time.Millisecond,
		RequestTimeout: 300 * time.Millisecond,
		Extension:      Extension{ID: "com.example.test", DisplayName: "Test"},
	}, h, tokens)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = c.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return c, h, cancel
}

func TestClientPairsAndSubscribes(t *testing.T) {
	fake := newFakeController([]domain.Zone{{ZoneID: "a", DisplayName: "Living Room", State: domain.StatePlaying}})
	tokens := &memTokens{tokens: map[string]string{"core-1": "tok-old"}}
	_, h, _ := startClient(t, fake, tokens)

	if name := waitFor(t, h.paired, "paired"); name != "Core" {
		t.Fatalf("expected core name %q, got %q", "Core", name)
	}
	zones := waitFor(t, h.subscribed, "subscribed")
	if len(zones) != 1 || zones[0].ZoneID != "a" {
		t.Fatalf("unexpected zones %+v", zones)
	}

	reg := waitFor(t, fake.requests, "register request")
	var body registerRequest
	if err := json.Unmarshal(reg.Body, &body); err != nil {
		t.Fatalf("decode register: %v", err)
	}
	if body.Token != "tok-old" {
		t.Fatalf("expected saved token to be sent, got %q", body.Token)
	}
	if body.ExtensionID != "com.example.test" {
		t.Fatalf("expected extension id, got %q", body.ExtensionID)
	}
	if !slices.Equal(body.RequiredServices, []string{"com.roonlabs.transport:2", "com.roonlabs.image:1"}) {
		t.Fatalf("unexpected required services %v", body.RequiredServices)
	}
	if !slices.Equal(body.ProvidedServices, []string{"com.roonlabs.ping:1"}) {
		t.Fatalf("unexpected provided services %v", body.ProvidedServices)
	}

	tok, _ := tokens.Token(context.Background(), "core-1")
	if tok != "tok-new" {
		t.Fatalf("expected new token to be saved, got %q", tok)
	}
}

func TestClientForwardsChanges(t *testing.T) {
	fake := newFakeController(nil)
	_, h, _ := startClient(t, fake, &memTokens{tokens: map[string]string{}})
	waitFor(t, h.subscribed, "subscribed")

	fake.push(`{"zones_removed":["a"],"zones_added":[{"zone_id":"b","display_name":"Kitchen","state":"stopped"}]}`)
	ch := waitFor(t, h.changed, "changed")
	if !slices.Equal(ch.Removed, []domain.ZoneID{"a"}) {
		t.Fatalf("expected removed [a], got %v", ch.Removed)
	}
	if len(ch.Added) != 1 || ch.Added[0].DisplayName != "Kitchen" {
		t.Fatalf("unexpected added %+v", ch.Added)
	}
}

func TestClientTransportRequests(t *testing.T) {
	fake := newFakeController(nil)
	c, h, _ := startClient(t, fake, &memTokens{tokens: map[string]string{}})
	waitFor(t, h.subscribed, "subscribed")
	waitFor(t, fake.requests, "register request")

	tests := []struct {
		name string
		call func() error
		want string
		body string
	}{
		{
			name: "control",
			call: func() error { return c.Control("a", "play") },
			want: "com.roonlabs.transport:2/control",
			body: `{"zone_or_output_id":"a","control":"play"}`,
		},
		{
			name: "volume",
			call: func() error { return c.ChangeVolume("out-1", "absolute", 40) },
			want: "com.roonlabs.transport:2/change_volume",
			body: `{"output_id":"out-1","how":"absolute","value":40}`,
		},
		{
			name: "mute",
			call: func() error { return c.Mute("out-1", "mute") },
			want: "com.roonlabs.transport:2/mute",
			body: `{"output_id":"out-1","how":"mute"}`,
		},
		{
			name: "seek",
			call: func() error { return c.Seek("a", "absolute", 30) },
			want: "com.roonlabs.transport:2/seek",
			body: `{"zone_or_output_id":"a","how":"absolute","seconds":30}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); err != nil {
				t.Fatalf("call: %v", err)
			}
			got := waitFor(t, fake.requests, tt.name)
			if got.Verb != verbRequest || got.Name != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, got.Name)
			}
			if string(got.Body) != tt.body {
				t.Fatalf("expected body %s, got %s", tt.body, got.Body)
			}
		})
	}
}

func TestClientGetImage(t *testing.T) {
	fake := newFakeController(nil)
	c, h, _ := startClient(t, fake, &memTokens{tokens: map[string]string{}})
	waitFor(t, h.subscribed, "subscribed")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ct, data, err := c.GetImage(ctx, "img-1", core.ImageOptions{Width: 100, Height: 100, Scale: "fit", Format: "image/jpeg"})
	if err != nil {
		t.Fatalf("get image: %v", err)
	}
	if ct != "image/jpeg" || !slices.Equal(data, []byte{1, 2, 3}) {
		t.Fatalf("unexpected image %q %v", ct, data)
	}

	_, _, err = c.GetImage(ctx, "missing", core.ImageOptions{})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestClientWaitsForApproval(t *testing.T) {
	fake := newFakeController(nil)
	fake.registerDelay = 600 * time.Millisecond
	_, h, _ := startClient(t, fake, &memTokens{tokens: map[string]string{}})

	waitFor(t, fake.requests, "register request")
	if name := waitFor(t, h.paired, "paired"); name != "Core" {
		t.Fatalf("expected pairing after approval, got %q", name)
	}
}

func TestClientAnswersCoreRequests(t *testing.T) {
	fake := newFakeController(nil)
	_, h, _ := startClient(t, fake, &memTokens{tokens: map[string]string{}})
	waitFor(t, h.subscribed, "subscribed")

	tests := []struct {
		name string
		req  string
		id   uint64
		want string
	}{
		{name: "ping", req: "com.roonlabs.ping:1/ping", id: 77, want: replySuccess},
		{name: "unknown service", req: "com.roonlabs.settings:1/get_settings", id: 78, want: replyInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake.write(Message{Verb: verbRequest, Name: tt.req, RequestID: tt.id})
			got := waitFor(t, fake.replies, tt.name+" reply")
			if got.Verb != verbComplete || got.Name != tt.want || got.RequestID != tt.id {
				t.Fatalf("expected COMPLETE %s for %d, got %s %s %d", tt.want, tt.id, got.Verb, got.Name, got.RequestID)
			}
		})
	}
}

func TestClientUnpairsOnShutdown(t *testing.T) {
	fake := newFakeController(nil)
	_, h, cancel := startClient(t, fake, &memTokens{tokens: map[string]string{}})
	waitFor(t, h.subscribed, "subscribed")

	cancel()
	waitFor(t, h.unpaired, "unpaired")
}

func TestClientNotPaired(t *testing.T) {
	c := NewClient(Options{Address: "127.0.0.1:1"}, newRecordingHandler(), &memTokens{tokens: map[string]string{}})

	if err := c.Control("a", "play"); !errors.Is(err, ErrNotPaired) {
		t.Fatalf("expected ErrNotPaired, got %v", err)
	}
	if _, _, err := c.GetImage(context.Background(), "img", core.ImageOptions{}); !errors.Is(err, ErrNotPaired) {
		t.Fatalf("expected ErrNotPaired, got %v", err)
	}
}

func TestClientAddressWithoutDiscovery(t *testing.T) {
	c := NewClient(Options{}, newRecordingHandler(), &memTokens{tokens: map[string]string{}})
	if _, err := c.address(context.Background()); err == nil {
		t.Fatalf("expected error without address or discovery")
	}

	c = NewClient(Options{Discovery: true}, newRecordingHandler(), &memTokens{tokens: map[string]string{}})
	c.discover = func(context.Context, time.Duration) (string, error) { return "10.0.0.5:9330", nil }
	addr, err := c.address(context.Background())
	if err != nil {
		t.Fatalf("address: %v", err)
	}
	if addr != "10.0.0.5:9330" {
		t.Fatalf("expected discovered address, got %q", addr)
	}
}
