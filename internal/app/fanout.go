package app

import (
	"errors"

	"github.com/dkeye/RoonController/internal/core"
	"github.com/rs/zerolog/log"
)

var ErrUnknownSession = errors.New("unknown session")

// Fanout maps open sessions to their transport endpoint.
// It never closes a connection itself. Not safe for concurrent use; the
// orchestrator loop owns it.
type Fanout struct {
	conns map[core.SessionID]core.SignalConnection
}

func NewFanout() *Fanout {
	return &Fanout{conns: make(map[core.SessionID]core.SignalConnection)}
}

func (f *Fanout) Attach(sid core.SessionID, conn core.SignalConnection) {
	f.conns[sid] = conn
	log.Debug().Str("module", "app.fanout").Str("sid", string(sid)).Int("open", len(f.conns)).Msg("attached")
}

// Detach forgets sid and hands its connection back to the caller.
func (f *Fanout) Detach(sid core.SessionID) (core.SignalConnection, bool) {
	conn, ok := f.conns[sid]
	if ok {
		delete(f.conns, sid)
		log.Debug().Str("module", "app.fanout").Str("sid", string(sid)).Int("open", len(f.conns)).Msg("detached")
	}
	return conn, ok
}

func (f *Fanout) Unicast(sid core.SessionID, frame core.Frame) error {
	conn, ok := f.conns[sid]
	if !ok {
		return ErrUnknownSession
	}
	return conn.TrySend(frame)
}

// Broadcast offers frame to every connection. One connection failing does not
// stop delivery to the rest; failures are returned for the caller to act on.
func (f *Fanout) Broadcast(frame core.Frame) core.PublishResult {
	res := core.PublishResult{}
	for sid, conn := range f.conns {
		if err := conn.TrySend(frame); err != nil {
			res.Dropped = append(res.Dropped, core.DeliveryFailure{SID: sid, Err: err})
			continue
		}
		res.SendTo++
	}
	log.Debug().Str("module", "app.fanout").Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}

func (f *Fanout) Len() int {
	return len(f.conns)
}
