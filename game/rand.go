// game/rand.go
package game

import "math/rand"

// Rand is the randomness source behind asset draws and first-holder picks.
// All game randomness flows through this interface so tests can inject a
// seeded *rand.Rand and replay exact rounds.
type Rand interface {
	Intn(n int) int
	Shuffle(n int, swap func(i, j int))
}

type globalRand struct{}

func (globalRand) Intn(n int) int { return rand.Intn(n) }

func (globalRand) Shuffle(n int, swap func(i, j int)) { rand.Shuffle(n, swap) }

// shuffled returns a shuffled copy, leaving the input untouched.
func shuffled(rng Rand, items []string) []string {
	out := make([]string, len(items))
	copy(out, items)
	rng.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}
