// Package inflight stops a second mutating request on the same entity from
// being dispatched while the first is still outstanding.
package inflight

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// ErrPending is returned when the entity already has a request in flight.
var ErrPending = errors.New("a request for this entity is already in flight")

// Guard holds one pending token per entity key.
type Guard struct {
	pending sync.Map
}

// Key builds an entity key such as "task:42".
func Key(kind string, id uint64) string {
	return fmt.Sprintf("%s:%d", kind, id)
}

// Acquire marks key as pending and returns the token to release it with.
func (g *Guard) Acquire(key string) (string, error) {
	token := uuid.NewString()
	if _, loaded := g.pending.LoadOrStore(key, token); loaded {
		return "", fmt.Errorf("%w: %s", ErrPending, key)
	}
	return token, nil
}

// Release clears key if it is still held by token.
func (g *Guard) Release(key, token string) {
	g.pending.CompareAndDelete(key, token)
}

// Pending reports whether key has a request in flight.
func (g *Guard) Pending(key string) bool {
	_, ok := g.pending.Load(key)
	return ok
}

// Do runs fn while holding key.
func (g *Guard) Do(key string, fn func() error) error {
	token, err := g.Acquire(key)
	if err != nil {
		return err
	}
	defer g.Release(key, token)
	return fn()
}
