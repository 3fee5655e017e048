// room/store.go
package room

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/wfunc/partyroom/apperr"
	"github.com/wfunc/partyroom/logger"
	"github.com/wfunc/partyroom/persistence"
)

const maxIDAttempts = 10

// Store owns the Room document lifecycle: create, join, leave. Every
// mutation reads fresh state inside a store transaction; nothing is cached
// in process.
type Store struct {
	db         persistence.DocStore
	rng        Rand
	maxPlayers int
	idLength   int
}

type globalRand struct{}

func (globalRand) Intn(n int) int { return rand.Intn(n) }

// NewStore wires a Store against a document store. rng may be nil, in which
// case the shared math/rand source is used; tests pass a seeded *rand.Rand.
func NewStore(db persistence.DocStore, rng Rand, maxPlayers, idLength int) *Store {
	if rng == nil {
		rng = globalRand{}
	}
	if maxPlayers <= 0 {
		maxPlayers = 4
	}
	if idLength <= 0 {
		idLength = DefaultIDLength
	}
	return &Store{db: db, rng: rng, maxPlayers: maxPlayers, idLength: idLength}
}

// Create opens a new room with the caller as host and sole member. The room
// id is drawn at most ten times before giving up with ResourceExhausted.
func (s *Store) Create(ctx context.Context, nickname string) (string, string, error) {
	if nickname == "" {
		return "", "", apperr.InvalidArgument("a nickname is required to create a room")
	}

	playerID := uuid.NewString()
	var roomID string

	err := s.db.RunTransaction(ctx, func(tx persistence.Tx) error {
		for attempt := 0; attempt < maxIDAttempts; attempt++ {
			candidate := GenerateRoomID(s.rng, s.idLength)
			var existing Room
			getErr := tx.Get(Key(candidate), &existing)
			if errors.Is(getErr, persistence.ErrNotFound) {
				now := time.Now().UTC()
				tx.Set(Key(candidate), Room{
					Status:     StatusAccepting,
					Players:    []Player{{PlayerID: playerID, Nickname: nickname}},
					HostPlayer: playerID,
					CreatedAt:  now,
					UpdatedAt:  now,
				})
				roomID = candidate
				return nil
			}
			if getErr != nil {
				return getErr
			}
		}
		return apperr.New(apperr.KindResourceExhausted, "failed to create a room", http.StatusTooManyRequests)
	})
	if err != nil {
		return "", "", apperr.As(err)
	}

	logger.Log.Infow("room created", "roomId", roomID, "nickname", nickname)
	return roomID, playerID, nil
}

// Join adds a member to an accepting room and returns the new player id.
// The live capacity read, the full-room re-open and the membership write all
// happen in the same transaction so a concurrent capacity change cannot
// oversubscribe the room.
func (s *Store) Join(ctx context.Context, roomID, nickname string) (string, error) {
	if roomID == "" || nickname == "" {
		return "", apperr.InvalidArgument("a room id and a nickname are required to join a room")
	}

	playerID := uuid.NewString()
	var reject *apperr.Error

	err := s.db.RunTransaction(ctx, func(tx persistence.Tx) error {
		reject = nil // the transaction may retry

		var rm Room
		if err := tx.Get(Key(roomID), &rm); err != nil {
			if errors.Is(err, persistence.ErrNotFound) {
				return apperr.NotFound("the specified room was not found").WithField("roomId", roomID)
			}
			return err
		}

		maxPlayers := MaxPlayersTx(tx, s.maxPlayers)
		now := time.Now().UTC()

		if rm.Status == StatusFull && len(rm.Players) < maxPlayers {
			// 最大人数调高了, 回到 accepting
			logger.Log.Infof("room %s is full but capacity was raised, reopening", roomID)
			tx.Update(Key(roomID), map[string]any{
				"status":    StatusAccepting,
				"updatedAt": now,
			})
			rm.Status = StatusAccepting
		}

		if rm.Status != StatusAccepting {
			reject = rejectionForStatus(rm.Status)
			return nil
		}

		if rm.HasNickname(nickname) {
			reject = apperr.Soft(apperr.KindDuplicateNickname, "this nickname is already taken").
				WithField("roomId", roomID).WithField("nickname", nickname)
			return nil
		}

		if len(rm.Players) >= maxPlayers {
			// Record the full status we just observed before rejecting, so
			// later joins short-circuit without re-reading the capacity.
			tx.Update(Key(roomID), map[string]any{
				"status":    StatusFull,
				"updatedAt": now,
			})
			reject = apperr.Soft(apperr.KindRoomFull, "the room is full").WithField("roomId", roomID)
			return nil
		}

		status := StatusAccepting
		if len(rm.Players)+1 >= maxPlayers {
			status = StatusFull
		}
		tx.Update(Key(roomID), map[string]any{
			"players":   persistence.ArrayUnion(Player{PlayerID: playerID, Nickname: nickname}),
			"status":    status,
			"updatedAt": now,
		})
		return nil
	})
	if err != nil {
		return "", apperr.As(err)
	}
	if reject != nil {
		logger.Log.Warnw("join rejected", "roomId", roomID, "nickname", nickname, "error", reject.Kind)
		return "", reject
	}

	logger.Log.Infow("player joined", "roomId", roomID, "nickname", nickname)
	return playerID, nil
}

// Leave removes a member. Removing the host promotes the oldest remaining
// member by join order; removing the last member closes the room.
func (s *Store) Leave(ctx context.Context, roomID, playerID string) error {
	if roomID == "" || playerID == "" {
		return apperr.InvalidArgument("a room id and a player id are required to leave a room")
	}

	err := s.db.RunTransaction(ctx, func(tx persistence.Tx) error {
		var rm Room
		if err := tx.Get(Key(roomID), &rm); err != nil {
			if errors.Is(err, persistence.ErrNotFound) {
				return apperr.NotFound("the specified room was not found").WithField("roomId", roomID)
			}
			return err
		}

		if _, ok := rm.Member(playerID); !ok {
			return apperr.New(apperr.KindPlayerNotFound, "the specified player is not in this room", http.StatusNotFound).
				WithField("roomId", roomID).WithField("playerId", playerID)
		}

		remaining := make([]Player, 0, len(rm.Players)-1)
		for _, p := range rm.Players {
			if p.PlayerID != playerID {
				remaining = append(remaining, p)
			}
		}

		fields := map[string]any{
			"players":   remaining,
			"updatedAt": time.Now().UTC(),
		}
		if rm.HostPlayer == playerID && len(remaining) > 0 {
			fields["hostPlayer"] = remaining[0].PlayerID
			logger.Log.Infof("promoting %s to host of room %s", remaining[0].Nickname, roomID)
		}
		if len(remaining) == 0 {
			fields["status"] = StatusClosed
			logger.Log.Infof("closing empty room %s", roomID)
		} else if rm.Status == StatusFull {
			fields["status"] = StatusAccepting
		}

		tx.Update(Key(roomID), fields)
		return nil
	})
	if err != nil {
		return apperr.As(err)
	}

	logger.Log.Infow("player left", "roomId", roomID, "playerId", playerID)
	return nil
}

// Get reads the current room snapshot outside of any transaction.
func (s *Store) Get(ctx context.Context, roomID string) (*Room, error) {
	var rm Room
	if err := s.db.Get(ctx, Key(roomID), &rm); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return nil, apperr.NotFound("the specified room was not found").WithField("roomId", roomID)
		}
		return nil, apperr.Internal(err)
	}
	return &rm, nil
}

func rejectionForStatus(status Status) *apperr.Error {
	switch status {
	case StatusInProgress:
		return apperr.Soft(apperr.KindInProgress, "a game is already in progress in this room")
	case StatusClosed:
		return apperr.Soft(apperr.KindClosed, "this room has already been closed")
	case StatusFull:
		return apperr.Soft(apperr.KindRoomFull, "the room is full")
	default:
		return apperr.New(apperr.KindUnavailable, "this room cannot be joined right now", http.StatusServiceUnavailable)
	}
}
