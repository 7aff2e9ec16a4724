// Package identity mints opaque identifiers for profiles and messages.
package identity

import "github.com/google/uuid"

// NewID returns a fresh random identifier (UUIDv4 string form).
func NewID() string {
	return uuid.New().String()
}
