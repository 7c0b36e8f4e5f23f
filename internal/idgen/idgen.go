// Package idgen generates short, URL-safe ids for published events and
// HTTP requests, backed by nanoid.
package idgen

import (
	"fmt"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// Prefixes for each kind of id.
const (
	EventPrefix   = "ev-"
	RequestPrefix = "req-"
)

const (
	alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	length   = 12
)

// EventID returns a new id for a published flag event.
func EventID() (string, error) {
	return New(EventPrefix)
}

// RequestID returns a new id for an HTTP request.
func RequestID() (string, error) {
	return New(RequestPrefix)
}

// New returns prefix followed by random characters from the id alphabet.
func New(prefix string) (string, error) {
	id, err := nanoid.Generate(alphabet, length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return prefix + id, nil
}
