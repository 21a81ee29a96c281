// Package game holds pieces shared by the chat games.
package game

import "math/rand/v2"

// Rand is the randomness source the games draw from. Injected so tests can
// pin outcomes.
type Rand interface {
	// Intn returns a uniform int in [0, n).
	Intn(n int) int
}

type defaultRand struct{}

func (defaultRand) Intn(n int) int { return rand.IntN(n) }

// NewRand returns the default randomness source, backed by math/rand/v2.
func NewRand() Rand {
	return defaultRand{}
}
