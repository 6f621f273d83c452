package core

import "errors"

// ErrHubStopped is returned by hub queries once Run has returned.
var ErrHubStopped = errors.New("hub stopped")
