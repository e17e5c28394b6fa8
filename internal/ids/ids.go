// Package ids generates lexicographically sortable entity identifiers.
package ids

import "github.com/oklog/ulid/v2"

// New returns a ULID string. IDs sort by creation time, which keeps
// time-ordered listings index-friendly without a separate sequence.
func New() string {
	return ulid.Make().String()
}
