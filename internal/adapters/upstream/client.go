package upstream

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dkeye/RoonController/internal/core"
	"github.com/dkeye/RoonController/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var (
	ErrNotPaired = errors.New("not paired with a controller")
	ErrQueueFull = errors.New("controller send queue full")
	ErrNotFound  = errors.New("not found")
)

// EventHandler receives the controller lifecycle and the zone subscription.
// Calls are made one at a time, in the order the controller sent them.
type EventHandler interface {
	OnPaired(coreName string)
	OnUnpaired()
	OnSubscribed(zones []domain.Zone)
	OnChanged(changes domain.ZoneChanges)
}

type Extension struct {
	ID             string
	DisplayName    string
	DisplayVersion string
	Publisher      string
	Email          string
	Website        string
}

type Options struct {
	// Address is host:port of the controller. Empty means discover it.
	Address          string
	Path             string
	Discovery        bool
	DiscoveryTimeout time.Duration
	ReconnectDelay   time.Duration
	RequestTimeout   time.Duration
	SendBuffer       int
	Extension        Extension
}

// Client keeps one connection to the controller alive and exposes its
// transport and image services.
type Client struct {
	opts     Options
	handler  EventHandler
	tokens   TokenStore
	dialer   *websocket.Dialer
	discover func(ctx context.Context, timeout time.Duration) (string, error)

	nextID atomic.Uint64

	mu      sync.Mutex
	out     chan Message
	pending map[uint64]func(Message)
	paired  bool
}

var _ core.Controller = (*Client)(nil)
var _ core.ImageFetcher = (*Client)(nil)

func NewClient(opts Options, handler EventHandler, tokens TokenStore) *Client {
	if opts.Path == "" {
		opts.Path = "/api"
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = 3 * time.Second
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 10 * time.Second
	}
	if opts.DiscoveryTimeout <= 0 {
		opts.DiscoveryTimeout = 5 * time.Second
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 64
	}
	return &Client{
		opts:     opts,
		handler:  handler,
		tokens:   tokens,
		dialer:   &websocket.Dialer{HandshakeTimeout: opts.RequestTimeout},
		discover: Discover,
	}
}

// Run connects, pairs and subscribes, reconnecting after every failure
// until ctx is done.
func (c *Client) Run(ctx context.Context) error {
	for {
		err := c.connectOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn().Err(err).Str("module", "upstream").Dur("retry_in", c.opts.ReconnectDelay).Msg("controller connection ended")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.opts.ReconnectDelay):
		}
	}
}

func (c *Client) address(ctx context.Context) (string, error) {
	if c.opts.Address != "" {
		return c.opts.Address, nil
	}
	if !c.opts.Discovery {
		return "", fmt.Errorf("no controller address and discovery disabled")
	}
	return c.discover(ctx, c.opts.DiscoveryTimeout)
}

func (c *Client) connectOnce(ctx context.Context) error {
	addr, err := c.address(ctx)
	if err != nil {
		return fmt.Errorf("resolve controller: %w", err)
	}
	u := url.URL{Scheme: "ws", Host: addr, Path: c.opts.Path}
	conn, _, err := c.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", u.String(), err)
	}
	log.Info().Str("module", "upstream").Str("addr", addr).Msg("connected to controller")

	sctx, cancel := context.WithCancel(ctx)
	defer cancel()

	out := make(chan Message, c.opts.SendBuffer)
	c.mu.Lock()
	c.out = out
	c.pending = make(map[uint64]func(Message))
	c.mu.Unlock()
	defer c.reset()

	go func() {
		<-sctx.Done()
		_ = conn.Close()
	}()
	go c.writePump(sctx, cancel, conn, out)

	readErr := make(chan error, 1)
	go func() {
		readErr <- c.readPump(conn)
		cancel()
	}()

	if err := c.pair(sctx); err != nil {
		cancel()
		<-readErr
		return err
	}

	select {
	case <-sctx.Done():
		<-readErr
		return sctx.Err()
	case err := <-readErr:
		return err
	}
}

// reset drops the connection state and reports the unpair if pairing had
// completed.
func (c *Client) reset() {
	c.mu.Lock()
	wasPaired := c.paired
	c.paired = false
	c.out = nil
	c.pending = nil
	c.mu.Unlock()
	if wasPaired {
		log.Info().Str("module", "upstream").Msg("unpaired from controller")
		c.handler.OnUnpaired()
	}
}

func (c *Client) pair(ctx context.Context) error {
	reply, err := c.request(ctx, methodInfo, nil)
	if err != nil {
		return fmt.Errorf("registry info: %w", err)
	}
	var info infoReply
	if err := reply.decode(&info); err != nil {
		return err
	}

	token, err := c.tokens.Token(ctx, info.CoreID)
	if err != nil && !errors.Is(err, ErrTokenNotFound) {
		log.Warn().Err(err).Str("module", "upstream").Str("core_id", info.CoreID).Msg("load pairing token")
	}

	// The core holds the register reply until the extension is enabled in
	// its settings, so only the connection bounds this wait.
	log.Info().Str("module", "upstream").Str("core", info.DisplayName).Str("core_id", info.CoreID).Msg("registering with controller")
	ext := c.opts.Extension
	reply, err = c.await(ctx, methodRegister, registerRequest{
		ExtensionID:      ext.ID,
		DisplayName:      ext.DisplayName,
		DisplayVersion:   ext.DisplayVersion,
		Publisher:        ext.Publisher,
		Email:            ext.Email,
		Website:          ext.Website,
		Token:            token,
		RequiredServices: []string{svcTransport, svcImage},
		OptionalServices: []string{},
		ProvidedServices: []string{svcPing},
	})
	if err != nil {
		return fmt.Errorf("register: %w", err)
	}
	if reply.Name != replyRegistered {
		return fmt.Errorf("register: %w", reply.err())
	}
	var reg registerReply
	if err := reply.decode(&reg); err != nil {
		return err
	}
	if reg.Token != "" && reg.Token != token {
		if err := c.tokens.SaveToken(ctx, reg.CoreID, reg.Token); err != nil {
			log.Warn().Err(err).Str("module", "upstream").Str("core_id", reg.CoreID).Msg("save pairing token")
		}
	}

	c.mu.Lock()
	c.paired = true
	c.mu.Unlock()
	log.Info().Str("module", "upstream").Str("core", reg.DisplayName).Str("core_id", reg.CoreID).Msg("paired with controller")
	c.handler.OnPaired(reg.DisplayName)

	return c.subscribeZones()
}

func (c *Client) subscribeZones() error {
	id := c.nextID.Add(1)
	msg, err := newRequest(id, methodSubscribeZones, subscribeRequest{SubscriptionKey: id})
	if err != nil {
		return err
	}
	return c.send(msg, c.onZones)
}

func (c *Client) onZones(m Message) {
	switch m.Name {
	case replySubscribed:
		var ev zonesEvent
		if err := m.decode(&ev); err != nil {
			log.Error().Err(err).Str("module", "upstream").Msg("zones subscribed")
			return
		}
		c.handler.OnSubscribed(ev.Zones)
	case replyChanged:
		var ev zonesEvent
		if err := m.decode(&ev); err != nil {
			log.Error().Err(err).Str("module", "upstream").Msg("zones changed")
			return
		}
		c.handler.OnChanged(ev.changes())
	default:
		log.Warn().Err(m.err()).Str("module", "upstream").Str("verb", m.Verb).Msg("zone subscription")
	}
}

func (c *Client) readPump(conn *websocket.Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		m, err := parseMessage(data)
		if err != nil {
			log.Error().Err(err).Str("module", "upstream").Msg("bad frame from controller")
			continue
		}
		if m.Verb == verbRequest {
			c.serve(m)
			continue
		}

		c.mu.Lock()
		fn, ok := c.pending[m.RequestID]
		if ok && m.Verb != verbContinue {
			delete(c.pending, m.RequestID)
		}
		c.mu.Unlock()

		if !ok {
			log.Debug().Str("module", "upstream").Uint64("request_id", m.RequestID).Str("name", m.Name).Msg("unsolicited message")
			continue
		}
		fn(m)
	}
}

func (c *Client) writePump(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, out <-chan Message) {
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-out:
			if err := conn.SetWriteDeadline(time.Now().Add(c.opts.RequestTimeout)); err != nil {
				log.Error().Err(err).Str("module", "upstream").Msg("set write deadline")
				return
			}
			if err := conn.WriteMessage(websocket.BinaryMessage, m.marshal()); err != nil {
				log.Error().Err(err).Str("module", "upstream").Msg("write request")
				return
			}
		}
	}
}

// send queues m without blocking and registers fn for its replies.
func (c *Client) send(m Message, fn func(Message)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.out == nil {
		return ErrNotPaired
	}
	select {
	case c.out <- m:
	default:
		return ErrQueueFull
	}
	if fn != nil {
		c.pending[m.RequestID] = fn
	}
	return nil
}

// serve answers requests the core makes of this extension.
func (c *Client) serve(m Message) {
	var (
		reply Message
		err   error
	)
	switch m.Name {
	case methodPing:
		reply, err = newReply(m.RequestID, verbComplete, replySuccess, nil)
	default:
		log.Debug().Str("module", "upstream").Str("name", m.Name).Msg("request for unknown service")
		reply, err = newReply(m.RequestID, verbComplete, replyInvalid, errorBody{Error: "unknown service: " + m.Name})
	}
	if err != nil {
		log.Error().Err(err).Str("module", "upstream").Msg("build reply")
		return
	}
	if err := c.send(reply, nil); err != nil {
		log.Warn().Err(err).Str("module", "upstream").Str("name", m.Name).Msg("reply not sent")
	}
}

// await sends a request and waits for its first reply, whatever its name.
func (c *Client) await(ctx context.Context, name string, body any) (Message, error) {
	msg, err := newRequest(c.nextID.Add(1), name, body)
	if err != nil {
		return Message{}, err
	}
	replies := make(chan Message, 1)
	if err := c.send(msg, func(m Message) {
		select {
		case replies <- m:
		default:
		}
	}); err != nil {
		return Message{}, err
	}

	select {
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, msg.RequestID)
		c.mu.Unlock()
		return Message{}, fmt.Errorf("%s: %w", name, ctx.Err())
	case reply := <-replies:
		return reply, nil
	}
}

// request waits at most RequestTimeout for a Success reply.
func (c *Client) request(ctx context.Context, name string, body any) (Message, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.RequestTimeout)
	defer cancel()
	reply, err := c.await(ctx, name, body)
	if err != nil {
		return Message{}, err
	}
	switch reply.Name {
	case replySuccess:
		return reply, nil
	case replyNotFound:
		return Message{}, fmt.Errorf("%s: %w", name, ErrNotFound)
	default:
		return Message{}, fmt.Errorf("%s: %w", name, reply.err())
	}
}

// fire queues a transport request once paired. The reply is only logged.
func (c *Client) fire(name string, body any) error {
	c.mu.Lock()
	paired := c.paired
	c.mu.Unlock()
	if !paired {
		return ErrNotPaired
	}
	msg, err := newRequest(c.nextID.Add(1), name, body)
	if err != nil {
		return err
	}
	return c.send(msg, func(m Message) {
		if m.Name != replySuccess {
			log.Warn().Err(m.err()).Str("module", "upstream").Str("request", name).Msg("request rejected")
		}
	})
}

func (c *Client) Control(zoneID domain.ZoneID, command string) error {
	return c.fire(methodControl, controlRequest{ZoneOrOutputID: string(zoneID), Control: command})
}

func (c *Client) ChangeVolume(outputID string, mode string, value float64) error {
	return c.fire(methodChangeVolume, changeVolumeRequest{OutputID: outputID, How: mode, Value: value})
}

func (c *Client) Mute(outputID string, action string) error {
	return c.fire(methodMute, muteRequest{OutputID: outputID, How: action})
}

func (c *Client) Seek(zoneID domain.ZoneID, mode string, seconds float64) error {
	return c.fire(methodSeek, seekRequest{ZoneOrOutputID: string(zoneID), How: mode, Seconds: seconds})
}

// GetImage fetches artwork and waits for the reply.
func (c *Client) GetImage(ctx context.Context, key string, opts core.ImageOptions) (string, []byte, error) {
	c.mu.Lock()
	paired := c.paired
	c.mu.Unlock()
	if !paired {
		return "", nil, ErrNotPaired
	}
	reply, err := c.request(ctx, methodGetImage, imageRequest{
		ImageKey: key,
		Scale:    opts.Scale,
		Width:    opts.Width,
		Height:   opts.Height,
		Format:   opts.Format,
	})
	if err != nil {
		return "", nil, err
	}
	if len(reply.Body) == 0 {
		return "", nil, fmt.Errorf("%s: empty image", methodGetImage)
	}
	return reply.ContentType, reply.Body, nil
}
