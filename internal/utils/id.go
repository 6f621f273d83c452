package utils

import (
	"github.com/google/uuid"
	nanoid "github.com/jaevor/go-nanoid"
)

const (
	streamKeyAlphabet = "0123456789abcdef"
	// StreamKeyLength is the length of generated room codes.
	StreamKeyLength = 16
)

var newStreamKey = mustStreamKeyGenerator()

// NewID returns a unique identifier for a connection.
func NewID() string {
	return uuid.NewString()
}

// NewStreamKey returns a random lowercase hex room code.
func NewStreamKey() string {
	return newStreamKey()
}

func mustStreamKeyGenerator() func() string {
	gen, err := nanoid.CustomASCII(streamKeyAlphabet, StreamKeyLength)
	if err != nil {
		panic(err)
	}
	return gen
}
