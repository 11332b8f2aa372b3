package app

import (
	"slices"

	"github.com/dkeye/RoonController/internal/core"
	"github.com/dkeye/RoonController/internal/domain"
	"github.com/rs/zerolog/log"
)

// ZoneIndex is the part of the directory the registry needs to pick zones.
type ZoneIndex interface {
	Has(id domain.ZoneID) bool
	First() (domain.ZoneID, bool)
}

type sessionEntry struct {
	Zone domain.ZoneID // empty when no zone is assigned
}

// Registry maps connected sessions to the zone they are viewing.
// Assignments are ids only and are resolved against the directory on use.
// Not safe for concurrent use; the orchestrator loop owns it.
type Registry struct {
	zones    ZoneIndex
	sessions map[core.SessionID]*sessionEntry
}

func NewRegistry(zones ZoneIndex) *Registry {
	return &Registry{
		zones:    zones,
		sessions: make(map[core.SessionID]*sessionEntry),
	}
}

// Register creates a session pointing at the first zone, if any.
// Registering a known sid is a no-op and reports false.
func (r *Registry) Register(sid core.SessionID) bool {
	if _, ok := r.sessions[sid]; ok {
		return false
	}
	e := &sessionEntry{}
	if first, ok := r.zones.First(); ok {
		e.Zone = first
	}
	r.sessions[sid] = e
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("zone", string(e.Zone)).Msg("registered session")
	return true
}

func (r *Registry) Unregister(sid core.SessionID) bool {
	if _, ok := r.sessions[sid]; !ok {
		return false
	}
	delete(r.sessions, sid)
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("unregistered session")
	return true
}

// Select points sid at zoneID. Unknown sessions and zones are ignored.
func (r *Registry) Select(sid core.SessionID, zoneID domain.ZoneID) bool {
	e, ok := r.sessions[sid]
	if !ok {
		return false
	}
	if !r.zones.Has(zoneID) {
		log.Warn().Str("module", "app.registry").Str("sid", string(sid)).Str("zone", string(zoneID)).Msg("select unknown zone")
		return false
	}
	e.Zone = zoneID
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("zone", string(zoneID)).Msg("selected zone")
	return true
}

func (r *Registry) ZoneOf(sid core.SessionID) (domain.ZoneID, bool) {
	e, ok := r.sessions[sid]
	if !ok || e.Zone == "" {
		return "", false
	}
	return e.Zone, true
}

// ReassignOnRemoval moves every session viewing a removed zone to the first
// remaining zone, or to none. Call it after the directory dropped the zones.
// It returns the sessions that moved.
func (r *Registry) ReassignOnRemoval(removed []domain.ZoneID) []core.SessionID {
	if len(removed) == 0 {
		return nil
	}
	first, _ := r.zones.First()
	var moved []core.SessionID
	for sid, e := range r.sessions {
		if e.Zone == "" || !slices.Contains(removed, e.Zone) {
			continue
		}
		log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("from", string(e.Zone)).Str("to", string(first)).Msg("reassigned after removal")
		e.Zone = first
		moved = append(moved, sid)
	}
	slices.Sort(moved)
	return moved
}

// Reconcile gives sessions without a live zone the first zone in the
// directory. Used after a snapshot or an add, when zones may have appeared.
func (r *Registry) Reconcile() []core.SessionID {
	first, ok := r.zones.First()
	var moved []core.SessionID
	for sid, e := range r.sessions {
		if e.Zone != "" && r.zones.Has(e.Zone) {
			continue
		}
		target := domain.ZoneID("")
		if ok {
			target = first
		}
		if target == e.Zone {
			continue
		}
		e.Zone = target
		moved = append(moved, sid)
	}
	slices.Sort(moved)
	return moved
}

// SessionsOn lists the sessions viewing any of ids.
func (r *Registry) SessionsOn(ids []domain.ZoneID) []core.SessionID {
	var out []core.SessionID
	for sid, e := range r.sessions {
		if e.Zone != "" && slices.Contains(ids, e.Zone) {
			out = append(out, sid)
		}
	}
	slices.Sort(out)
	return out
}

func (r *Registry) Sessions() []core.SessionID {
	out := make([]core.SessionID, 0, len(r.sessions))
	for sid := range r.sessions {
		out = append(out, sid)
	}
	slices.Sort(out)
	return out
}

func (r *Registry) Len() int {
	return len(r.sessions)
}
