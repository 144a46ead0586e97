// Package collision detects hash collisions while the channel-name index is
// built. Different channel names hashing to the same ID fall back to an
// exact-name lookup path; the tracker records which hashes need it.
package collision

// Tracker tracks name hashes and flags IDs claimed by more than one name.
type Tracker struct {
	names    map[uint64]string
	collided map[uint64]bool
}

// NewTracker creates a new collision tracker.
func NewTracker() *Tracker {
	return &Tracker{
		names:    make(map[uint64]string),
		collided: make(map[uint64]bool),
	}
}

// Track records a name with its hash and reports whether the hash now
// collides, i.e. a different name already claimed it. Re-tracking the same
// name is not a collision; duplicate channel names are legal in a file.
func (t *Tracker) Track(name string, hash uint64) bool {
	existing, exists := t.names[hash]
	if exists && existing != name {
		t.collided[hash] = true
		return true
	}
	if !exists {
		t.names[hash] = name
	}

	return t.collided[hash]
}

// Collided reports whether the hash was claimed by more than one name.
func (t *Tracker) Collided(hash uint64) bool {
	return t.collided[hash]
}

// HasCollision reports whether any collision has been detected.
func (t *Tracker) HasCollision() bool {
	return len(t.collided) > 0
}
