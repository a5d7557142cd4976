// Package ids produces the UUIDs used as primary keys for links and clicks.
package ids

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Generator produces unique identifiers. Implementations must be safe for concurrent use.
type Generator interface {
	New() (uuid.UUID, error)
}

// GeneratorFunc adapts a plain function to Generator.
type GeneratorFunc func() (uuid.UUID, error)

func (f GeneratorFunc) New() (uuid.UUID, error) { return f() }

type timeOrdered struct {
	attempts int
}

// TimeOrdered returns a Generator of UUIDv7 values. Time-ordered keys keep
// freshly inserted clicks adjacent in the btree. uuid.NewV7 can only fail when
// the entropy source does, so a couple of attempts is plenty.
func TimeOrdered(attempts int) Generator {
	if attempts < 1 {
		attempts = 2
	}
	return timeOrdered{attempts: attempts}
}

func (g timeOrdered) New() (uuid.UUID, error) {
	var last error
	for range g.attempts {
		id, err := uuid.NewV7()
		if err == nil {
			return id, nil
		}
		last = err
	}
	return uuid.Nil, fmt.Errorf("uuid v7 generation failed after %d attempts: %w", g.attempts, last)
}

// Random returns a Generator of UUIDv4 values.
func Random() Generator {
	return GeneratorFunc(func() (uuid.UUID, error) {
		return uuid.NewRandom()
	})
}

// Fixed returns a Generator that hands out ids in order and then fails.
// Intended for tests that need deterministic keys.
func Fixed(list ...uuid.UUID) Generator {
	var (
		mu sync.Mutex
		i  int
	)
	return GeneratorFunc(func() (uuid.UUID, error) {
		mu.Lock()
		defer mu.Unlock()
		if i >= len(list) {
			return uuid.Nil, fmt.Errorf("ids: fixed generator exhausted after %d ids", len(list))
		}
		id := list[i]
		i++
		return id, nil
	})
}
