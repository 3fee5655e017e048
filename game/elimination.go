// game/elimination.go
//
// Variant 0001: every player gets a secret forbidden word and tries to bait
// the others into saying theirs. Saying your own word means declaring
// yourself out; the last player standing scores and a new round is dealt.
package game

import (
	"context"
	"errors"
	"fmt"

	"github.com/wfunc/partyroom/apperr"
	"github.com/wfunc/partyroom/logger"
	"github.com/wfunc/partyroom/persistence"
	"github.com/wfunc/partyroom/room"
)

// EliminationWordsKey holds the word pool asset document.
const EliminationWordsKey = "games/0001/assets/ngWords"

type WordListDoc struct {
	Words []string `json:"words"`
}

type EliminationPlayer struct {
	Nickname string   `json:"nickname"`
	IsReady  bool     `json:"isReady"`
	NGWord   []string `json:"ngWord"`
	IsAlive  bool     `json:"isAlive"`
	Point    int      `json:"point"`
}

type EliminationSession struct {
	SessionMeta
	GameStatus Status              `json:"gameStatus"`
	Players    []EliminationPlayer `json:"players"`
}

func (s *EliminationSession) CurrentStatus() Status { return s.GameStatus }
func (s *EliminationSession) SetStatus(status Status) { s.GameStatus = status }

func (s *EliminationSession) MarkReady(nickname string) bool {
	for i := range s.Players {
		if s.Players[i].Nickname == nickname {
			s.Players[i].IsReady = true
			return true
		}
	}
	return false
}

func (s *EliminationSession) AllReady() bool {
	for _, p := range s.Players {
		if !p.IsReady {
			return false
		}
	}
	return true
}

func (s *EliminationSession) ResetReady() {
	for i := range s.Players {
		s.Players[i].IsReady = false
	}
}

func (s *EliminationSession) aliveCount() int {
	count := 0
	for _, p := range s.Players {
		if p.IsAlive {
			count++
		}
	}
	return count
}

type EliminationVariant struct{}

func (EliminationVariant) ID() string          { return GameElimination }
func (EliminationVariant) ReadyStatus() Status { return StatusPlaying }
func (EliminationVariant) NewSession() Session { return &EliminationSession{} }

func (EliminationVariant) Initialize(tx persistence.Tx, rng Rand, nicknames []string) (Session, error) {
	words, err := loadWordPool(tx)
	if err != nil {
		return nil, err
	}

	sess := &EliminationSession{GameStatus: StatusWaiting}
	dealWords(rng, sess, nicknames, words)
	return sess, nil
}

// dealWords hands every player a fresh word from a shuffled pool, wrapping
// when the roster outnumbers the pool, and resets the round flags.
func dealWords(rng Rand, sess *EliminationSession, nicknames []string, words []string) {
	dealt := shuffled(rng, words)
	players := make([]EliminationPlayer, len(nicknames))
	for i, nickname := range nicknames {
		point := 0
		if i < len(sess.Players) {
			point = sess.Players[i].Point
		}
		players[i] = EliminationPlayer{
			Nickname: nickname,
			IsReady:  false,
			NGWord:   []string{dealt[i%len(dealt)]},
			IsAlive:  true,
			Point:    point,
		}
	}
	sess.Players = players
}

func loadWordPool(tx persistence.Tx) ([]string, error) {
	var doc WordListDoc
	if err := tx.Get(EliminationWordsKey, &doc); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return nil, apperr.Internal(fmt.Errorf("word pool asset is missing"))
		}
		return nil, err
	}
	if len(doc.Words) == 0 {
		return nil, apperr.Internal(fmt.Errorf("word pool asset is empty"))
	}
	return doc.Words, nil
}

// Declare marks the caller as having said their own word. When only one
// player remains alive the round settles: the survivor scores, everyone gets
// a new word and the session returns to the waiting lobby.
func (s *Service) Declare(ctx context.Context, roomID, nickname string) error {
	if roomID == "" || nickname == "" {
		return apperr.InvalidArgument("a room id and a nickname are required")
	}

	err := s.run(ctx, func(tx persistence.Tx) error {
		var sess EliminationSession
		if err := loadSession(tx, roomID, GameElimination, &sess); err != nil {
			return err
		}
		if err := requireStatus(&sess, StatusPlaying); err != nil {
			return err
		}

		for i := range sess.Players {
			if sess.Players[i].Nickname == nickname {
				sess.Players[i].IsAlive = false
			}
		}

		if sess.aliveCount() == 1 {
			for i := range sess.Players {
				if sess.Players[i].IsAlive {
					sess.Players[i].Point++
				}
			}

			words, err := loadWordPool(tx)
			if err != nil {
				return err
			}
			nicknames := make([]string, len(sess.Players))
			for i, p := range sess.Players {
				nicknames[i] = p.Nickname
			}
			dealWords(s.rng, &sess, nicknames, words)
			sess.GameStatus = StatusWaiting
		}

		tx.Set(room.GameKey(roomID, GameElimination), &sess)
		return nil
	})
	if err != nil {
		return err
	}

	logger.Log.Infow("declaration accepted", "roomId", roomID, "nickname", nickname)
	return nil
}
