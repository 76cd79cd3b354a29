package relay

import "context"

// Noop is used when realtime is disabled. Publishing is dropped silently.
type Noop struct{}

func (Noop) Publish(context.Context, string, string, any) error { return nil }

func (Noop) Authenticate(string, string, *Member) (*AuthResponse, error) {
	return nil, ErrNotInitialized
}

func (Noop) Initialized() bool { return false }

func (Noop) Close() error { return nil }
