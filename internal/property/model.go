// Package property provides the property registry: canonical identifiers,
// existence checks, and creation timestamps for ranked listings.
package property

import (
	"errors"
	"time"
)

// ErrInvalidIdentifier is returned when a property reference is malformed and
// cannot belong to either identifier namespace.
var ErrInvalidIdentifier = errors.New("invalid property identifier")

// ErrPropertyNotFound is returned when a well-formed reference has no backing property.
var ErrPropertyNotFound = errors.New("property not found")

// maxRefLen bounds reference length; both identifier schemes fit well under it.
const maxRefLen = 64

// ValidRef reports whether ref is syntactically valid in at least one
// identifier namespace: digits for legacy keys, or an opaque ID drawn from
// [A-Za-z0-9_-]. Malformed references are rejected before any lookup.
func ValidRef(ref string) bool {
	if ref == "" || len(ref) > maxRefLen {
		return false
	}
	for _, c := range ref {
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '-' || c == '_':
		default:
			return false
		}
	}
	return true
}

// Property represents a directory listing subject to ranking.
// The catalog mixes two identifier schemes for historical reasons: a numeric
// legacy key and an opaque canonical ID. Everything inside the ranking engine
// uses the canonical ID; resolution happens once at the boundary.
type Property struct {
	ID        string    `json:"id"`
	LegacyKey int64     `json:"legacy_key,omitempty"` // 0 when the property has no numeric key
	Name      string    `json:"name"`
	IsOnline  bool      `json:"is_online"`
	CreatedAt time.Time `json:"created_at"`
}
