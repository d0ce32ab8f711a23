package ttsstt

import "errors"

var (
	// ErrNotConfigured is returned when a client has no endpoint set.
	ErrNotConfigured = errors.New("ttsstt: adapter not configured")
	// ErrTransport wraps a network-level failure reaching the provider.
	ErrTransport = errors.New("ttsstt: transport error")
	// ErrProviderStatus wraps a 4xx/5xx response from the provider.
	ErrProviderStatus = errors.New("ttsstt: provider returned error status")
)
