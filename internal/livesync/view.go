package livesync

import (
	"maps"
	"time"
)

// Overlay holds optimistic local markers for actions this client initiated,
// such as "loan 4 approved" or "I voted on withdrawal 12". Keys and values
// are chosen by the page. An entry is cleared by the first successful
// snapshot fetched after it was applied.
type Overlay map[string]string

// Get returns the value stored under key.
func (o Overlay) Get(key string) (string, bool) {
	v, ok := o[key]
	return v, ok
}

// Has reports whether key is set.
func (o Overlay) Has(key string) bool {
	_, ok := o[key]
	return ok
}

// View is an immutable copy of a synchronizer's state handed to subscribers.
// Snapshot must be treated as read-only.
type View[T any] struct {
	// Snapshot is the last authoritative state. Zero until Loaded.
	Snapshot T

	// Loaded reports whether Snapshot holds data.
	Loaded bool

	// Loading is true while a fetch is in flight.
	Loading bool

	// Err is the last fetch failure. Once Loaded, it is non-blocking: the
	// previous snapshot stays visible.
	Err error

	// Overlay carries optimistic markers applied since the last snapshot.
	Overlay Overlay

	// Version is the sequence token of the fetch that produced Snapshot.
	Version uint64

	// FetchedAt is when Snapshot was produced.
	FetchedAt time.Time

	// Stale is set when Snapshot came from the local cache rather than the
	// backend.
	Stale bool

	// Live is false while the realtime subscription is down.
	Live bool
}

func (v View[T]) clone() View[T] {
	v.Overlay = maps.Clone(v.Overlay)
	return v
}
