package signal

import (
	"encoding/json"

	"github.com/dkeye/RoonController/internal/core"
	"github.com/dkeye/RoonController/internal/domain"
	"github.com/rs/zerolog/log"
)

// decodePayload logs and reports false on a payload that does not fit v.
func decodePayload(sid core.SessionID, kind string, raw json.RawMessage, v any) bool {
	if len(raw) == 0 {
		log.Warn().Str("module", "signal").Str("sid", string(sid)).Str("type", kind).Msg("missing payload")
		return false
	}
	if err := json.Unmarshal(raw, v); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Str("type", kind).Msg("bad payload")
		return false
	}
	return true
}

func (ctl *SignalWSController) handleControl(sid core.SessionID, raw json.RawMessage) {
	var req struct {
		Command string `json:"command"`
	}
	if !decodePayload(sid, "control", raw, &req) {
		return
	}
	ctl.Orch.Control(sid, req.Command)
}

func (ctl *SignalWSController) handleVolume(sid core.SessionID, raw json.RawMessage) {
	var req struct {
		Mode  string  `json:"mode"`
		Value float64 `json:"value"`
	}
	if !decodePayload(sid, "volume", raw, &req) {
		return
	}
	ctl.Orch.SetVolume(sid, req.Mode, req.Value)
}

func (ctl *SignalWSController) handleMute(sid core.SessionID, raw json.RawMessage) {
	var req struct {
		Action string `json:"action"`
	}
	if !decodePayload(sid, "mute", raw, &req) {
		return
	}
	ctl.Orch.Mute(sid, req.Action)
}

func (ctl *SignalWSController) handleSeek(sid core.SessionID, raw json.RawMessage) {
	var req struct {
		Seconds float64 `json:"seconds"`
	}
	if !decodePayload(sid, "seek", raw, &req) {
		return
	}
	ctl.Orch.Seek(sid, req.Seconds)
}

func (ctl *SignalWSController) handleSelectZone(sid core.SessionID, raw json.RawMessage) {
	var req struct {
		ZoneID domain.ZoneID `json:"zoneId"`
	}
	if !decodePayload(sid, "select_zone", raw, &req) {
		return
	}
	ctl.Orch.SelectZone(sid, req.ZoneID)
}
