package orch

import (
	"github.com/dkeye/RoonController/internal/core"
	"github.com/dkeye/RoonController/internal/domain"
	"github.com/rs/zerolog/log"
)

// Connect opens a session: it gets the default zone, an init frame and the
// current zone list, in that order.
func (o *Orchestrator) Connect(sid core.SessionID, conn core.SignalConnection) bool {
	return o.enqueue(func() {
		if !o.Registry.Register(sid) {
			log.Warn().Str("module", "orch").Str("sid", string(sid)).Msg("duplicate connect ignored")
			return
		}
		o.Fanout.Attach(sid, conn)
		o.pushState(sid, msgInit)
		o.sendZones(sid)
	})
}

// Disconnect closes a session. The connection itself is closed by its owner.
func (o *Orchestrator) Disconnect(sid core.SessionID) {
	o.enqueue(func() {
		o.Fanout.Detach(sid)
		o.Registry.Unregister(sid)
		o.forget(sid)
	})
}

// SelectZone points sid at zoneID and pushes the new state to it.
func (o *Orchestrator) SelectZone(sid core.SessionID, zoneID domain.ZoneID) {
	o.enqueue(func() {
		if !o.Registry.Select(sid, zoneID) {
			return
		}
		delete(o.pendingVolume, sid)
		o.pushState(sid, msgUpdate)
	})
}

func (o *Orchestrator) forget(sid core.SessionID) {
	o.Volume.Forget(sid)
	delete(o.pendingVolume, sid)
}
