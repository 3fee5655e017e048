// game/service.go
package game

import (
	"context"
	"errors"

	"github.com/wfunc/partyroom/apperr"
	"github.com/wfunc/partyroom/persistence"
	"github.com/wfunc/partyroom/room"
)

// Service executes every game-session operation as an independent unit of
// work against the document store. It holds no game state of its own.
type Service struct {
	db         persistence.DocStore
	reg        *Registry
	rng        Rand
	maxPlayers int
}

// NewService builds the game service. rng may be nil for the shared math/rand
// source; maxPlayers is the default room capacity used when serviceConfig
// does not override it.
func NewService(db persistence.DocStore, reg *Registry, rng Rand, maxPlayers int) *Service {
	if rng == nil {
		rng = globalRand{}
	}
	if maxPlayers <= 0 {
		maxPlayers = 4
	}
	return &Service{db: db, reg: reg, rng: rng, maxPlayers: maxPlayers}
}

// loadSession reads a room's active session for a game into dest.
func loadSession(tx persistence.Tx, roomID, gameID string, dest Session) error {
	err := tx.Get(room.GameKey(roomID, gameID), dest)
	if errors.Is(err, persistence.ErrNotFound) {
		return apperr.GameNotFound("the game could not be found, ask the host to end the game").
			WithField("roomId", roomID).WithField("gameId", gameID)
	}
	return err
}

// requireStatus rejects an action issued against the wrong phase, echoing the
// phase actually observed.
func requireStatus(sess Session, want Status) error {
	if got := sess.CurrentStatus(); got != want {
		return apperr.InvalidGameStatus(string(got))
	}
	return nil
}

// loadRoom reads the room document inside a transaction.
func loadRoom(tx persistence.Tx, roomID string) (*room.Room, error) {
	var rm room.Room
	if err := tx.Get(room.Key(roomID), &rm); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return nil, apperr.NotFound("the specified room was not found").WithField("roomId", roomID)
		}
		return nil, err
	}
	return &rm, nil
}

func (s *Service) run(ctx context.Context, fn func(tx persistence.Tx) error) error {
	if err := s.db.RunTransaction(ctx, fn); err != nil {
		return apperr.As(err)
	}
	return nil
}
