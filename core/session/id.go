package session

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
	"sync"
)

const idBytes = 16

// DefaultKeyPrefix namespaces session keys in shared backends.
const DefaultKeyPrefix = "_ahs"

// IDGenerator produces session ids from 16 random bytes encoded with the
// URL-safe unpadded base64 alphabet. Collisions are not checked.
type IDGenerator struct {
	mu     sync.Mutex
	random io.Reader
	last   string
}

// NewIDGenerator returns a generator reading from random.
// A nil reader selects crypto/rand.
func NewIDGenerator(random io.Reader) *IDGenerator {
	if random == nil {
		random = rand.Reader
	}
	return &IDGenerator{random: random}
}

// New returns a fresh session id.
func (g *IDGenerator) New() (string, error) {
	b := make([]byte, idBytes)

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, err := io.ReadFull(g.random, b); err != nil {
		return "", errors.Join(ErrIDGeneration, err)
	}
	g.last = base64.RawURLEncoding.EncodeToString(b)
	return g.last, nil
}

// Last returns the most recently generated id, or "" if none.
func (g *IDGenerator) Last() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.last
}

// KeyFor derives the storage key that backends see for a session id.
func KeyFor(prefix, id string) string {
	return prefix + id
}
