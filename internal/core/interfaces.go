package core

//go:generate mockgen -destination=mocks/mock_upstream.go -package=mocks github.com/dkeye/RoonController/internal/core Controller,ImageFetcher

import (
	"context"

	"github.com/dkeye/RoonController/internal/domain"
)

// Controller is the control side of the zone controller.
// Calls only enqueue the request and never wait for the controller's reply;
// the resulting state arrives later through the zone subscription.
type Controller interface {
	Control(zoneID domain.ZoneID, command string) error
	ChangeVolume(outputID string, mode string, value float64) error
	Mute(outputID string, action string) error
	Seek(zoneID domain.ZoneID, mode string, seconds float64) error
}

type ImageOptions struct {
	Width  int
	Height int
	Scale  string
	Format string
}

// ImageFetcher loads artwork by key. Unlike Controller it blocks until the
// controller answers or ctx is done.
type ImageFetcher interface {
	GetImage(ctx context.Context, key string, opts ImageOptions) (contentType string, data []byte, err error)
}
