package orch

import (
	"context"
	"errors"
	"time"

	"github.com/dkeye/RoonController/internal/app"
	"github.com/dkeye/RoonController/internal/core"
	"github.com/dkeye/RoonController/internal/domain"
	"github.com/rs/zerolog/log"
)

var ErrStopped = errors.New("orchestrator stopped")

const defaultQueueSize = 256

type Options struct {
	QueueSize      int
	Policy         app.Policy
	VolumeBurst    int
	VolumeInterval time.Duration
}

// Orchestrator is the single owner of the zone directory, the session
// registry and the fanout table. Exported methods only enqueue work; Run
// applies it one item at a time in arrival order, so readers never observe a
// half-applied event.
type Orchestrator struct {
	Zones    *app.Directory
	Registry *app.Registry
	Fanout   *app.Fanout
	Policy   app.Policy
	Upstream core.Controller
	Volume   *app.VolumeLimiter

	queue   chan func()
	stopped chan struct{}

	paired        bool
	pendingVolume map[core.SessionID]volumeRequest
}

func New(upstream core.Controller, opts Options) *Orchestrator {
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.Policy == nil {
		opts.Policy = app.KickPolicy{}
	}
	zones := app.NewDirectory()
	return &Orchestrator{
		Zones:         zones,
		Registry:      app.NewRegistry(zones),
		Fanout:        app.NewFanout(),
		Policy:        opts.Policy,
		Upstream:      upstream,
		Volume:        app.NewVolumeLimiter(opts.VolumeBurst, opts.VolumeInterval),
		queue:         make(chan func(), opts.QueueSize),
		stopped:       make(chan struct{}),
		pendingVolume: make(map[core.SessionID]volumeRequest),
	}
}

// Run drains the work queue until ctx is done. It must be called once.
func (o *Orchestrator) Run(ctx context.Context) error {
	defer close(o.stopped)
	log.Info().Str("module", "orch").Msg("loop started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "orch").Msg("loop stopped")
			return ctx.Err()
		case fn := <-o.queue:
			fn()
		}
	}
}

// enqueue blocks while the queue is full so upstream events are never lost.
func (o *Orchestrator) enqueue(fn func()) bool {
	if o.isStopped() {
		return false
	}
	select {
	case o.queue <- fn:
		return true
	case <-o.stopped:
		return false
	}
}

// call runs fn on the loop and waits for it.
func (o *Orchestrator) call(ctx context.Context, fn func()) error {
	if o.isStopped() {
		return ErrStopped
	}
	done := make(chan struct{})
	select {
	case o.queue <- func() { fn(); close(done) }:
	case <-o.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-o.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) isStopped() bool {
	select {
	case <-o.stopped:
		return true
	default:
		return false
	}
}

// Flush waits until everything enqueued before it has been applied.
func (o *Orchestrator) Flush(ctx context.Context) error {
	return o.call(ctx, func() {})
}

// ZoneList returns the deduplicated zone listing.
func (o *Orchestrator) ZoneList(ctx context.Context) ([]domain.ZoneSummary, error) {
	var out []domain.ZoneSummary
	err := o.call(ctx, func() { out = o.Zones.List() })
	return out, err
}

// State projects zoneID, or the first zone when zoneID is empty.
func (o *Orchestrator) State(ctx context.Context, zoneID domain.ZoneID) (domain.StateSnapshot, error) {
	var out domain.StateSnapshot
	err := o.call(ctx, func() {
		if zoneID == "" {
			zoneID, _ = o.Zones.First()
		}
		out = o.project(zoneID)
	})
	return out, err
}

// SessionState projects the zone sid is viewing.
func (o *Orchestrator) SessionState(ctx context.Context, sid core.SessionID) (domain.StateSnapshot, error) {
	var out domain.StateSnapshot
	err := o.call(ctx, func() {
		zoneID, _ := o.Registry.ZoneOf(sid)
		out = o.project(zoneID)
	})
	return out, err
}

func (o *Orchestrator) project(zoneID domain.ZoneID) domain.StateSnapshot {
	if zoneID == "" {
		return app.Project(nil, o.paired)
	}
	zone, ok := o.Zones.Find(zoneID)
	if !ok {
		return app.Project(nil, o.paired)
	}
	return app.Project(&zone, o.paired)
}

func (o *Orchestrator) pushState(sid core.SessionID, kind string) {
	zoneID, _ := o.Registry.ZoneOf(sid)
	frame, err := encode(kind, o.project(zoneID))
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Msg("encode state")
		return
	}
	if err := o.Fanout.Unicast(sid, frame); err != nil {
		o.onDeliveryFailure(core.DeliveryFailure{SID: sid, Err: err})
	}
}

func (o *Orchestrator) pushStates(sids []core.SessionID) {
	for _, sid := range sids {
		o.pushState(sid, msgUpdate)
	}
}

func (o *Orchestrator) sendZones(sid core.SessionID) {
	frame, err := encode(msgZones, o.Zones.List())
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Msg("encode zones")
		return
	}
	if err := o.Fanout.Unicast(sid, frame); err != nil {
		o.onDeliveryFailure(core.DeliveryFailure{SID: sid, Err: err})
	}
}

func (o *Orchestrator) broadcastZones(list []domain.ZoneSummary) {
	frame, err := encode(msgZones, list)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Msg("encode zones")
		return
	}
	res := o.Fanout.Broadcast(frame)
	for _, failure := range res.Dropped {
		o.onDeliveryFailure(failure)
	}
}

// onDeliveryFailure isolates one bad connection from the rest of the update.
func (o *Orchestrator) onDeliveryFailure(f core.DeliveryFailure) {
	if errors.Is(f.Err, app.ErrUnknownSession) {
		return
	}
	log.Warn().Err(f.Err).Str("module", "orch").Str("sid", string(f.SID)).Msg("delivery failed")
	if o.Policy.OnBackPressure(f.SID, f.Err) != app.KickMember {
		return
	}
	conn, ok := o.Fanout.Detach(f.SID)
	o.forget(f.SID)
	if ok {
		log.Info().Str("module", "orch").Str("sid", string(f.SID)).Msg("kicked slow session")
		conn.Close()
	}
}
