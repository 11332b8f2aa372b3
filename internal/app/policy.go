package app

import (
	"errors"

	"github.com/dkeye/RoonController/internal/core"
)

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	KickMember
)

type Policy interface {
	OnBackPressure(sid core.SessionID, err error) BackpressureAction
}

// KickPolicy closes connections that cannot keep up. The client reconnects
// and starts from a fresh init frame instead of a gap in its updates.
type KickPolicy struct{}

func (KickPolicy) OnBackPressure(_ core.SessionID, err error) BackpressureAction {
	if errors.Is(err, core.ErrBackpressure) {
		return KickMember
	}
	return NoAction
}

// DropPolicy only skips the frame.
type DropPolicy struct{}

func (DropPolicy) OnBackPressure(core.SessionID, error) BackpressureAction {
	return NoAction
}

// PolicyByName maps the backpressure config value to a Policy.
func PolicyByName(name string) Policy {
	if name == "drop" {
		return DropPolicy{}
	}
	return KickPolicy{}
}
