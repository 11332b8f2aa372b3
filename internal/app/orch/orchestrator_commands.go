package orch

import (
	"slices"
	"time"

	"github.com/dkeye/RoonController/internal/core"
	"github.com/dkeye/RoonController/internal/domain"
	"github.com/rs/zerolog/log"
)

const (
	VolumeAbsolute     = "absolute"
	VolumeRelative     = "relative"
	VolumeRelativeStep = "relative_step"

	SeekAbsolute = "absolute"
)

var (
	controlCommands = []string{"play", "pause", "playpause", "stop", "previous", "next"}
	volumeModes     = []string{VolumeAbsolute, VolumeRelative, VolumeRelativeStep}
	muteActions     = []string{"mute", "unmute"}
)

// volumeRequest is the latest absolute value held back by the volume limiter.
type volumeRequest struct {
	mode  string
	value float64
}

// Control forwards a transport command for the zone sid is viewing.
func (o *Orchestrator) Control(sid core.SessionID, command string) {
	o.enqueue(func() {
		zone, ok := o.resolve(sid, "control")
		if !ok {
			return
		}
		if !slices.Contains(controlCommands, command) {
			o.drop(sid, "control", "unknown command "+command)
			return
		}
		if err := o.Upstream.Control(zone.ZoneID, command); err != nil {
			log.Warn().Err(err).Str("module", "orch").Str("sid", string(sid)).Str("zone", string(zone.ZoneID)).Msg("control not sent")
		}
	})
}

// SetVolume changes the primary output volume. Rapid absolute changes from one
// session are coalesced: over the limit, only the latest value is kept and it is
// sent once the window has room again.
func (o *Orchestrator) SetVolume(sid core.SessionID, mode string, value float64) {
	o.enqueue(func() {
		if !slices.Contains(volumeModes, mode) {
			o.drop(sid, "volume", "unknown mode "+mode)
			return
		}
		if mode != VolumeAbsolute {
			o.sendVolume(sid, volumeRequest{mode: mode, value: value})
			return
		}
		if _, waiting := o.pendingVolume[sid]; waiting {
			o.pendingVolume[sid] = volumeRequest{mode: mode, value: value}
			return
		}
		if o.Volume.Allow(sid) {
			o.sendVolume(sid, volumeRequest{mode: mode, value: value})
			return
		}
		o.pendingVolume[sid] = volumeRequest{mode: mode, value: value}
		o.scheduleVolumeFlush(sid, o.Volume.RetryAfter(sid))
	})
}

func (o *Orchestrator) scheduleVolumeFlush(sid core.SessionID, after time.Duration) {
	time.AfterFunc(after, func() {
		o.enqueue(func() { o.flushVolume(sid) })
	})
}

func (o *Orchestrator) flushVolume(sid core.SessionID) {
	req, ok := o.pendingVolume[sid]
	if !ok {
		return
	}
	if !o.Volume.Allow(sid) {
		o.scheduleVolumeFlush(sid, o.Volume.RetryAfter(sid))
		return
	}
	delete(o.pendingVolume, sid)
	o.sendVolume(sid, req)
}

func (o *Orchestrator) sendVolume(sid core.SessionID, req volumeRequest) {
	zone, ok := o.resolve(sid, "volume")
	if !ok {
		return
	}
	out, ok := volumeOutput(zone)
	if !ok {
		o.drop(sid, "volume", "no volume control")
		return
	}
	if err := o.Upstream.ChangeVolume(out.OutputID, req.mode, req.value); err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("sid", string(sid)).Str("output", out.OutputID).Msg("volume not sent")
	}
}

func (o *Orchestrator) Mute(sid core.SessionID, action string) {
	o.enqueue(func() {
		zone, ok := o.resolve(sid, "mute")
		if !ok {
			return
		}
		if !slices.Contains(muteActions, action) {
			o.drop(sid, "mute", "unknown action "+action)
			return
		}
		out, ok := volumeOutput(zone)
		if !ok {
			o.drop(sid, "mute", "no volume control")
			return
		}
		if err := o.Upstream.Mute(out.OutputID, action); err != nil {
			log.Warn().Err(err).Str("module", "orch").Str("sid", string(sid)).Str("output", out.OutputID).Msg("mute not sent")
		}
	})
}

// Seek moves playback to an absolute position in seconds.
func (o *Orchestrator) Seek(sid core.SessionID, seconds float64) {
	o.enqueue(func() {
		zone, ok := o.resolve(sid, "seek")
		if !ok {
			return
		}
		if !zone.IsSeekAllowed {
			o.drop(sid, "seek", "seek not allowed")
			return
		}
		if err := o.Upstream.Seek(zone.ZoneID, SeekAbsolute, seconds); err != nil {
			log.Warn().Err(err).Str("module", "orch").Str("sid", string(sid)).Str("zone", string(zone.ZoneID)).Msg("seek not sent")
		}
	})
}

// resolve finds the zone a command from sid applies to.
func (o *Orchestrator) resolve(sid core.SessionID, op string) (domain.Zone, bool) {
	if !o.paired || o.Upstream == nil {
		o.drop(sid, op, "not paired")
		return domain.Zone{}, false
	}
	zoneID, ok := o.Registry.ZoneOf(sid)
	if !ok {
		o.drop(sid, op, "no zone selected")
		return domain.Zone{}, false
	}
	zone, ok := o.Zones.Find(zoneID)
	if !ok {
		o.drop(sid, op, "zone not found")
		return domain.Zone{}, false
	}
	return zone, true
}

func (o *Orchestrator) drop(sid core.SessionID, op, reason string) {
	log.Warn().Str("module", "orch").Str("sid", string(sid)).Str("op", op).Str("reason", reason).Msg("command dropped")
}

func volumeOutput(zone domain.Zone) (domain.Output, bool) {
	out, ok := zone.PrimaryOutput()
	if !ok || out.Volume == nil {
		return domain.Output{}, false
	}
	return out, true
}
