// game/manage.go
package game

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/wfunc/partyroom/apperr"
	"github.com/wfunc/partyroom/logger"
	"github.com/wfunc/partyroom/persistence"
	"github.com/wfunc/partyroom/room"
)

// StartGame validates the room and the game catalog entry, builds the opening
// session through the variant's initializer and flips the room to inProgress,
// all in one transaction. The play counter bumps after commit, best effort.
func (s *Service) StartGame(ctx context.Context, roomID, gameID string) error {
	if roomID == "" || gameID == "" {
		return apperr.InvalidArgument("a room id and a game id are required to start a game")
	}

	err := s.run(ctx, func(tx persistence.Tx) error {
		rm, err := loadRoom(tx, roomID)
		if err != nil {
			return err
		}
		if rm.Status != room.StatusAccepting && rm.Status != room.StatusFull {
			return startRejectionForStatus(rm.Status)
		}

		var def Definition
		if err := tx.Get(DefinitionKey(gameID), &def); err != nil {
			if errors.Is(err, persistence.ErrNotFound) {
				return apperr.GameNotFound("the specified game was not found").WithField("gameId", gameID)
			}
			return err
		}

		if !def.IsPublished {
			return apperr.New(apperr.KindUnpublished, "this game is not available yet", http.StatusForbidden).
				WithField("gameId", gameID)
		}
		if !def.Released(time.Now()) {
			return apperr.New(apperr.KindNotReleased, "this game is not available yet", http.StatusForbidden).
				WithField("gameId", gameID)
		}

		if len(rm.Players) < def.MinPlayers {
			return apperr.Soft(apperr.KindInsufficient,
				fmt.Sprintf("this game needs at least %d players, the room has %d", def.MinPlayers, len(rm.Players))).
				WithField("required", def.MinPlayers).WithField("current", len(rm.Players))
		}
		if len(rm.Players) > def.MaxPlayers {
			return apperr.Soft(apperr.KindTooManyPlayers,
				fmt.Sprintf("this game allows at most %d players, the room has %d", def.MaxPlayers, len(rm.Players))).
				WithField("maximum", def.MaxPlayers).WithField("current", len(rm.Players))
		}

		variant, ok := s.reg.Variant(gameID)
		if !ok {
			// The catalog lists a game nothing implements: a deployment bug.
			return apperr.Internal(fmt.Errorf("no variant registered for game %s", gameID))
		}

		sess, err := variant.Initialize(tx, s.rng, rm.Nicknames())
		if err != nil {
			return err
		}
		sess.setMeta(def.Title, time.Now().UTC())

		tx.Set(room.GameKey(roomID, gameID), sess)
		tx.Update(room.Key(roomID), map[string]any{
			"status":      room.StatusInProgress,
			"currentGame": gameID,
			"updatedAt":   time.Now().UTC(),
		})
		return nil
	})
	if err != nil {
		return err
	}

	logger.Log.Infow("game started", "roomId", roomID, "gameId", gameID)
	go s.bumpPlayCount(gameID)
	return nil
}

// bumpPlayCount increments the catalog play counter. Failures only log; the
// start has already been acknowledged.
func (s *Service) bumpPlayCount(gameID string) {
	err := s.db.RunTransaction(context.Background(), func(tx persistence.Tx) error {
		tx.Update(DefinitionKey(gameID), map[string]any{
			"playCnt": persistence.Increment(1),
		})
		return nil
	})
	if err != nil {
		logger.Log.Warnw("play count update failed", "gameId", gameID, "error", err)
	}
}

// EndGame deletes every active session document of the room and returns the
// room to full or accepting depending on the live capacity.
func (s *Service) EndGame(ctx context.Context, roomID string) error {
	if roomID == "" {
		return apperr.InvalidArgument("a room id is required to end a game")
	}

	err := s.run(ctx, func(tx persistence.Tx) error {
		var rm room.Room
		if err := tx.Get(room.Key(roomID), &rm); err != nil {
			if errors.Is(err, persistence.ErrNotFound) {
				return apperr.New(apperr.KindRoomNotFound, "the specified room was not found", http.StatusNotFound).
					WithField("roomId", roomID)
			}
			return err
		}
		if rm.Status != room.StatusInProgress {
			return endRejectionForStatus(rm.Status)
		}

		maxPlayers := room.MaxPlayersTx(tx, s.maxPlayers)

		keys, err := tx.List(room.GamePrefix(roomID))
		if err != nil {
			return err
		}
		for _, key := range keys {
			tx.Delete(key)
		}

		status := room.StatusAccepting
		if len(rm.Players) >= maxPlayers {
			status = room.StatusFull
		}
		tx.Update(room.Key(roomID), map[string]any{
			"status":      status,
			"currentGame": nil,
			"updatedAt":   time.Now().UTC(),
		})
		return nil
	})
	if err != nil {
		return err
	}

	logger.Log.Infow("game ended", "roomId", roomID)
	return nil
}

// SetReady marks a player ready during the waiting phase. When the whole
// roster is ready the session advances to the variant's active phase.
func (s *Service) SetReady(ctx context.Context, roomID, gameID, nickname string) error {
	if roomID == "" || gameID == "" || nickname == "" {
		return apperr.InvalidArgument("a room id, game id and nickname are required")
	}

	variant, ok := s.reg.Variant(gameID)
	if !ok {
		return apperr.GameNotFound("the specified game was not found").WithField("gameId", gameID)
	}

	err := s.run(ctx, func(tx persistence.Tx) error {
		sess := variant.NewSession()
		if err := loadSession(tx, roomID, gameID, sess); err != nil {
			return err
		}
		if err := requireStatus(sess, StatusWaiting); err != nil {
			return err
		}

		sess.MarkReady(nickname)
		if sess.AllReady() {
			sess.SetStatus(variant.ReadyStatus())
			// 准备标记只属于等待阶段, 进入对局后重新收集
			sess.ResetReady()
		}
		tx.Set(room.GameKey(roomID, gameID), sess)
		return nil
	})
	if err != nil {
		return err
	}

	logger.Log.Infow("player ready", "roomId", roomID, "gameId", gameID, "nickname", nickname)
	return nil
}

func startRejectionForStatus(status room.Status) *apperr.Error {
	switch status {
	case room.StatusInProgress:
		return apperr.Soft(apperr.KindAlreadyInProgress, "a game is already in progress in this room")
	case room.StatusClosed:
		return apperr.Soft(apperr.KindRoomClosed, "this room has already been closed")
	default:
		return apperr.Soft(apperr.KindInvalidRoomStatus, "the game could not be started")
	}
}

func endRejectionForStatus(status room.Status) *apperr.Error {
	switch status {
	case room.StatusAccepting, room.StatusFull:
		return apperr.Soft(apperr.KindNotInProgress, "no game is in progress in this room")
	case room.StatusClosed:
		return apperr.Soft(apperr.KindRoomClosed, "this room has already been closed")
	default:
		return apperr.Soft(apperr.KindInvalidRoomStatus, "the game could not be ended")
	}
}
