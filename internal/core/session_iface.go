package core

// SessionID identifies one client connection for its whole lifetime.
// A reconnecting client always gets a new one.
type SessionID string

// DeliveryFailure is one connection that did not accept a frame.
type DeliveryFailure struct {
	SID SessionID
	Err error
}

// PublishResult reports delivery stats/backpressure to orchestrator.
type PublishResult struct {
	SendTo  int
	Dropped []DeliveryFailure
}
