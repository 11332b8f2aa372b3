package orch

import (
	"slices"

	"github.com/dkeye/RoonController/internal/core"
	"github.com/dkeye/RoonController/internal/domain"
	"github.com/rs/zerolog/log"
)

// OnPaired marks the controller reachable. The zone snapshot follows
// separately through OnSubscribed.
func (o *Orchestrator) OnPaired(coreName string) {
	o.enqueue(func() {
		o.paired = true
		log.Info().Str("module", "orch").Str("core", coreName).Msg("paired")
		o.pushStates(o.Registry.Sessions())
	})
}

// OnUnpaired clears the directory. Sessions keep their zone id; it resolves to
// nothing until the next snapshot, which reconciles it.
func (o *Orchestrator) OnUnpaired() {
	o.enqueue(func() {
		o.paired = false
		o.Zones.Clear()
		clear(o.pendingVolume)
		log.Info().Str("module", "orch").Msg("unpaired")
		o.pushStates(o.Registry.Sessions())
		o.broadcastZones(o.Zones.List())
	})
}

// OnSubscribed replaces the directory with the controller's full zone list.
func (o *Orchestrator) OnSubscribed(zones []domain.Zone) {
	o.enqueue(func() {
		o.Zones.ApplySnapshot(zones)
		moved := o.Registry.Reconcile()
		log.Info().Str("module", "orch").Int("zones", o.Zones.Len()).Int("reassigned", len(moved)).Msg("subscribed")
		o.pushStates(o.Registry.Sessions())
		o.broadcastZones(o.Zones.List())
	})
}

// OnChanged applies one incremental event: changes, then adds, then removals.
func (o *Orchestrator) OnChanged(changes domain.ZoneChanges) {
	if changes.Empty() {
		return
	}
	o.enqueue(func() { o.applyChanges(changes) })
}

func (o *Orchestrator) applyChanges(changes domain.ZoneChanges) {
	before := o.Zones.List()

	var affected []domain.ZoneID
	if len(changes.Changed) > 0 {
		affected = o.Zones.ApplyChanged(changes.Changed)
	}
	for _, seek := range changes.SeekChanged {
		if o.Zones.ApplySeek(seek) && !slices.Contains(affected, seek.ZoneID) {
			affected = append(affected, seek.ZoneID)
		}
	}

	var moved []core.SessionID
	if len(changes.Added) > 0 {
		o.Zones.ApplyAdded(changes.Added)
		// An added id that was already known now resolves to the new entry.
		for _, z := range changes.Added {
			if !slices.Contains(affected, z.ZoneID) {
				affected = append(affected, z.ZoneID)
			}
		}
		moved = append(moved, o.Registry.Reconcile()...)
	}
	if len(changes.Removed) > 0 {
		o.Zones.ApplyRemoved(changes.Removed)
		moved = append(moved, o.Registry.ReassignOnRemoval(changes.Removed)...)
	}

	targets := o.Registry.SessionsOn(affected)
	for _, sid := range moved {
		if !slices.Contains(targets, sid) {
			targets = append(targets, sid)
		}
	}
	log.Debug().
		Str("module", "orch").
		Int("changed", len(affected)).
		Int("added", len(changes.Added)).
		Int("removed", len(changes.Removed)).
		Int("pushes", len(targets)).
		Msg("zones changed")
	o.pushStates(targets)

	if after := o.Zones.List(); !slices.Equal(before, after) {
		o.broadcastZones(after)
	}
}
