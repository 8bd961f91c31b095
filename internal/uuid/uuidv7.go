// Package uuid generates time-ordered identifiers for database rows and
// asset handles.
package uuid

import (
	googleuuid "github.com/google/uuid"
)

// New generates a UUIDv7 string. UUIDv7 sorts by creation time, which keeps
// data point rows clustered per insertion order.
func New() string {
	id, err := googleuuid.NewV7()
	if err != nil {
		// Fall back to a random UUIDv4 if the clock sequence can't be read.
		return googleuuid.New().String()
	}
	return id.String()
}

// Version returns the UUID version of s, or 0 if s is not a UUID.
func Version(s string) int {
	parsed, err := googleuuid.Parse(s)
	if err != nil {
		return 0
	}
	return int(parsed.Version())
}
