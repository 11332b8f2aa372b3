package upstream

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dkeye/RoonController/internal/domain"
)

// Services used on, or offered to, the Roon Core.
const (
	svcRegistry  = "com.roonlabs.registry:1"
	svcTransport = "com.roonlabs.transport:2"
	svcImage     = "com.roonlabs.image:1"
	svcPing      = "com.roonlabs.ping:1"
)

const (
	methodInfo           = svcRegistry + "/info"
	methodRegister       = svcRegistry + "/register"
	methodSubscribeZones = svcTransport + "/subscribe_zones"
	methodControl        = svcTransport + "/control"
	methodChangeVolume   = svcTransport + "/change_volume"
	methodMute           = svcTransport + "/mute"
	methodSeek           = svcTransport + "/seek"
	methodGetImage       = svcImage + "/get_image"
	methodPing           = svcPing + "/ping"
)

// MOO verbs. A CONTINUE reply keeps the request open; COMPLETE closes it.
const (
	verbRequest  = "REQUEST"
	verbContinue = "CONTINUE"
	verbComplete = "COMPLETE"
)

const (
	replySuccess    = "Success"
	replyRegistered = "Registered"
	replyNotFound   = "NotFound"
	replyInvalid    = "InvalidRequest"
	replySubscribed = "Subscribed"
	replyChanged    = "Changed"
)

const (
	mooVersion  = "MOO/1"
	contentJSON = "application/json"
)

var errBadFrame = errors.New("bad moo frame")

// Message is one MOO frame. Requests carry "<service>/<method>" as Name;
// replies carry the reply name and the Request-Id of the request they answer.
type Message struct {
	Verb        string
	Name        string
	RequestID   uint64
	ContentType string
	Body        []byte
}

func newRequest(id uint64, name string, body any) (Message, error) {
	return newMessage(verbRequest, id, name, body)
}

func newReply(id uint64, verb, name string, body any) (Message, error) {
	return newMessage(verb, id, name, body)
}

func newMessage(verb string, id uint64, name string, body any) (Message, error) {
	m := Message{Verb: verb, Name: name, RequestID: id}
	if body == nil {
		return m, nil
	}
	b, err := json.Marshal(body)
	if err != nil {
		return Message{}, fmt.Errorf("marshal %s body: %w", name, err)
	}
	m.ContentType = contentJSON
	m.Body = b
	return m, nil
}

// marshal renders the frame: first line, headers, a blank line, then the body.
func (m Message) marshal() []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "%s %s %s\nRequest-Id: %d\n", mooVersion, m.Verb, m.Name, m.RequestID)
	if len(m.Body) > 0 {
		fmt.Fprintf(&b, "Content-Length: %d\nContent-Type: %s\n", len(m.Body), m.ContentType)
	}
	b.WriteByte('\n')
	b.Write(m.Body)
	return b.Bytes()
}

func parseMessage(data []byte) (Message, error) {
	head, body, ok := bytes.Cut(data, []byte("\n\n"))
	if !ok {
		return Message{}, fmt.Errorf("%w: no end of header", errBadFrame)
	}
	lines := strings.Split(string(head), "\n")
	first := strings.SplitN(lines[0], " ", 3)
	if len(first) != 3 || first[0] != mooVersion || first[2] == "" {
		return Message{}, fmt.Errorf("%w: first line %q", errBadFrame, lines[0])
	}

	m := Message{Verb: first[1], Name: first[2]}
	haveID := false
	length := -1
	for _, line := range lines[1:] {
		key, val, ok := strings.Cut(line, ":")
		if !ok {
			return Message{}, fmt.Errorf("%w: header %q", errBadFrame, line)
		}
		val = strings.TrimLeft(val, " ")
		switch key {
		case "Request-Id":
			id, err := strconv.ParseUint(val, 10, 64)
			if err != nil {
				return Message{}, fmt.Errorf("%w: request id %q", errBadFrame, val)
			}
			m.RequestID = id
			haveID = true
		case "Content-Type":
			m.ContentType = val
		case "Content-Length":
			n, err := strconv.Atoi(val)
			if err != nil || n < 0 {
				return Message{}, fmt.Errorf("%w: content length %q", errBadFrame, val)
			}
			length = n
		}
	}
	if !haveID {
		return Message{}, fmt.Errorf("%w: no Request-Id", errBadFrame)
	}
	if length > len(body) {
		return Message{}, fmt.Errorf("%w: body is %d bytes, want %d", errBadFrame, len(body), length)
	}
	if length > 0 {
		m.Body = body[:length]
	}
	return m, nil
}

func (m Message) decode(v any) error {
	if len(m.Body) == 0 {
		return fmt.Errorf("%s reply has no body", m.Name)
	}
	if err := json.Unmarshal(m.Body, v); err != nil {
		return fmt.Errorf("decode %s body: %w", m.Name, err)
	}
	return nil
}

type errorBody struct {
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

func (m Message) err() error {
	var body errorBody
	if m.ContentType == contentJSON {
		_ = json.Unmarshal(m.Body, &body)
	}
	text := body.Error
	if text == "" {
		text = body.Message
	}
	if text == "" {
		return fmt.Errorf("controller replied %s", m.Name)
	}
	return fmt.Errorf("controller replied %s: %s", m.Name, text)
}

type infoReply struct {
	CoreID         string `json:"core_id"`
	DisplayName    string `json:"display_name"`
	DisplayVersion string `json:"display_version"`
}

type registerRequest struct {
	ExtensionID      string   `json:"extension_id"`
	DisplayName      string   `json:"display_name"`
	DisplayVersion   string   `json:"display_version"`
	Publisher        string   `json:"publisher"`
	Email            string   `json:"email"`
	Website          string   `json:"website"`
	Token            string   `json:"token,omitempty"`
	RequiredServices []string `json:"required_services"`
	OptionalServices []string `json:"optional_services"`
	ProvidedServices []string `json:"provided_services"`
}

type registerReply struct {
	CoreID      string `json:"core_id"`
	DisplayName string `json:"display_name"`
	Token       string `json:"token"`
}

type subscribeRequest struct {
	SubscriptionKey uint64 `json:"subscription_key"`
}

// zonesEvent is the body of both Subscribed and Changed replies.
type zonesEvent struct {
	Zones            []domain.Zone       `json:"zones,omitempty"`
	ZonesChanged     []domain.Zone       `json:"zones_changed,omitempty"`
	ZonesAdded       []domain.Zone       `json:"zones_added,omitempty"`
	ZonesRemoved     removedZones        `json:"zones_removed,omitempty"`
	ZonesSeekChanged []domain.SeekChange `json:"zones_seek_changed,omitempty"`
}

func (e zonesEvent) changes() domain.ZoneChanges {
	return domain.ZoneChanges{
		Changed:     e.ZonesChanged,
		Added:       e.ZonesAdded,
		Removed:     []domain.ZoneID(e.ZonesRemoved),
		SeekChanged: e.ZonesSeekChanged,
	}
}

// removedZones accepts either bare zone ids or zone objects and keeps the ids.
type removedZones []domain.ZoneID

func (r *removedZones) UnmarshalJSON(data []byte) error {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("zones_removed: %w", err)
	}
	out := make(removedZones, 0, len(items))
	for _, raw := range items {
		raw = bytes.TrimSpace(raw)
		if len(raw) > 0 && raw[0] == '"' {
			var id domain.ZoneID
			if err := json.Unmarshal(raw, &id); err != nil {
				return fmt.Errorf("zones_removed id: %w", err)
			}
			out = append(out, id)
			continue
		}
		var obj struct {
			ZoneID domain.ZoneID `json:"zone_id"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			return fmt.Errorf("zones_removed entry: %w", err)
		}
		if obj.ZoneID == "" {
			return fmt.Errorf("zones_removed entry without zone_id")
		}
		out = append(out, obj.ZoneID)
	}
	*r = out
	return nil
}

type controlRequest struct {
	ZoneOrOutputID string `json:"zone_or_output_id"`
	Control        string `json:"control"`
}

type changeVolumeRequest struct {
	OutputID string  `json:"output_id"`
	How      string  `json:"how"`
	Value    float64 `json:"value"`
}

type muteRequest struct {
	OutputID string `json:"output_id"`
	How      string `json:"how"`
}

type seekRequest struct {
	ZoneOrOutputID string  `json:"zone_or_output_id"`
	How            string  `json:"how"`
	Seconds        float64 `json:"seconds"`
}

// imageRequest is answered with the raw image as the frame body.
type imageRequest struct {
	ImageKey string `json:"image_key"`
	Scale    string `json:"scale,omitempty"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
	Format   string `json:"format,omitempty"`
}
