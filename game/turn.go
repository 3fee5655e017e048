// game/turn.go
package game

import "fmt"

// Seat is the rotation view of a session player: who they are and whether
// they already held the turn role in the current cycle.
type Seat struct {
	Nickname string
	HeldTurn bool
}

// NextSeat advances the turn to the next player in roster order, wrapping to
// the front. The round is complete exactly when the incoming holder already
// held the role this cycle.
func NextSeat(seats []Seat, current string) (Seat, bool, error) {
	if len(seats) == 0 {
		return Seat{}, false, fmt.Errorf("empty roster")
	}
	currentIndex := -1
	for i, seat := range seats {
		if seat.Nickname == current {
			currentIndex = i
			break
		}
	}
	if currentIndex < 0 {
		return Seat{}, false, fmt.Errorf("turn holder %q is not in the roster", current)
	}
	next := seats[(currentIndex+1)%len(seats)]
	return next, next.HeldTurn, nil
}

// RandomFirstSeat picks the opening turn holder of a round uniformly at
// random. Variants 0003 and 0004 use this policy; variant 0002 instead keeps
// the next player in order (the seat NextSeat just returned).
func RandomFirstSeat(rng Rand, seats []Seat) string {
	return seats[rng.Intn(len(seats))].Nickname
}
