package orch

import (
	"encoding/json"
	"fmt"

	"github.com/dkeye/RoonController/internal/core"
)

const (
	msgInit   = "init"
	msgUpdate = "update"
	msgZones  = "zones"
)

type outbound struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

func encode(kind string, data any) (core.Frame, error) {
	b, err := json.Marshal(outbound{Type: kind, Data: data})
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", kind, err)
	}
	return b, nil
}
