// Package types holds the JSON-serializable data model shared by every
// component of the skill execution framework: outcome records, routes,
// gates, insights, proposals, and fixes.
package types

import (
	"crypto/rand"
	"encoding/hex"
)

// NewID returns a fresh random 12-hex-character token, the identifier
// shape used throughout the data model for record and entity IDs.
func NewID() string {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		panic("types: crypto/rand unavailable: " + err.Error())
	}
	return hex.EncodeToString(buf)
}
