// Package uuid provides request ID generation.
package uuid

import (
	"github.com/google/uuid"
)

// Generator creates time-ordered request IDs.
type Generator struct{}

// New creates a new Generator.
func New() Generator {
	return Generator{}
}

// NewID returns a UUIDv7 string. If the v7 source fails it falls back to a
// random v4 so a request is never left without an ID.
func (Generator) NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
