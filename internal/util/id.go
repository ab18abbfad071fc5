// Package util contains small internal helpers shared across packages:
// identifier generation and JSON schema parameter validation.
package util

import "github.com/google/uuid"

// NewID generates a new unique identifier usable for items, spans and
// tool call correlation.
func NewID() string { return uuid.NewString() }
