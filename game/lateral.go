// game/lateral.go
//
// Variant 0003: a questioner reads a lateral-thinking puzzle and fields
// yes/no questions from the others. Whoever reaches the answer scores a
// point. The questioner rotates in roster order; a new round opens with a
// uniformly random questioner.
package game

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/wfunc/partyroom/apperr"
	"github.com/wfunc/partyroom/logger"
	"github.com/wfunc/partyroom/persistence"
	"github.com/wfunc/partyroom/room"
)

// LateralPuzzlesKey holds the puzzle pool asset document.
const LateralPuzzlesKey = "games/0003/assets/puzzles"

type LateralPuzzle struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type PuzzleListDoc struct {
	Questions []LateralPuzzle `json:"questions"`
}

type LateralPlayer struct {
	Nickname         string `json:"nickname"`
	IsReady          bool   `json:"isReady"`
	IsEverQuestioner bool   `json:"isEverQuestioner"`
	Point            int    `json:"point"`
}

type LateralSession struct {
	SessionMeta
	GameStatus        Status          `json:"gameStatus"`
	Players           []LateralPlayer `json:"players"`
	CurrentQuestioner string          `json:"questioner"`
	Question          string          `json:"question"`
	Answer            string          `json:"answer"`
	UsedQuestionIndex []string        `json:"usedQuestionIndex"`
}

func (s *LateralSession) CurrentStatus() Status { return s.GameStatus }
func (s *LateralSession) SetStatus(status Status) { s.GameStatus = status }

func (s *LateralSession) MarkReady(nickname string) bool {
	for i := range s.Players {
		if s.Players[i].Nickname == nickname {
			s.Players[i].IsReady = true
			return true
		}
	}
	return false
}

func (s *LateralSession) AllReady() bool {
	for _, p := range s.Players {
		if !p.IsReady {
			return false
		}
	}
	return true
}

func (s *LateralSession) ResetReady() {
	for i := range s.Players {
		s.Players[i].IsReady = false
	}
}

func (s *LateralSession) seats() []Seat {
	seats := make([]Seat, len(s.Players))
	for i, p := range s.Players {
		seats[i] = Seat{Nickname: p.Nickname, HeldTurn: p.IsEverQuestioner}
	}
	return seats
}

// applyPuzzle picks an unused puzzle and records its index as used.
func (s *LateralSession) applyPuzzle(rng Rand, puzzles []LateralPuzzle) error {
	idx, err := DrawIndex(rng, len(puzzles), s.UsedQuestionIndex)
	if err != nil {
		return err
	}
	s.Question = puzzles[idx].Question
	s.Answer = puzzles[idx].Answer
	s.UsedQuestionIndex = append(s.UsedQuestionIndex, strconv.Itoa(idx))
	return nil
}

type LateralVariant struct{}

func (LateralVariant) ID() string          { return GameLateral }
func (LateralVariant) ReadyStatus() Status { return StatusPlaying }
func (LateralVariant) NewSession() Session { return &LateralSession{} }

func (LateralVariant) Initialize(tx persistence.Tx, rng Rand, nicknames []string) (Session, error) {
	puzzles, err := loadPuzzlePool(tx)
	if err != nil {
		return nil, err
	}

	firstQuestioner := nicknames[rng.Intn(len(nicknames))]
	players := make([]LateralPlayer, len(nicknames))
	for i, nickname := range nicknames {
		players[i] = LateralPlayer{
			Nickname:         nickname,
			IsEverQuestioner: nickname == firstQuestioner,
		}
	}

	sess := &LateralSession{
		GameStatus:        StatusWaiting,
		Players:           players,
		CurrentQuestioner: firstQuestioner,
	}
	if err := sess.applyPuzzle(rng, puzzles); err != nil {
		return nil, apperr.Internal(err)
	}
	return sess, nil
}

func loadPuzzlePool(tx persistence.Tx) ([]LateralPuzzle, error) {
	var doc PuzzleListDoc
	if err := tx.Get(LateralPuzzlesKey, &doc); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return nil, apperr.Internal(fmt.Errorf("puzzle pool asset is missing"))
		}
		return nil, err
	}
	if len(doc.Questions) == 0 {
		return nil, apperr.Internal(fmt.Errorf("puzzle pool asset is empty"))
	}
	return doc.Questions, nil
}

// ReportLateralResult records the outcome of the current puzzle and rotates
// the questioner. Only the answerer scores. When everybody has asked, the
// round closes and a random player opens the next one from the waiting lobby.
func (s *Service) ReportLateralResult(ctx context.Context, roomID string, result bool, answerer string) error {
	if roomID == "" {
		return apperr.InvalidArgument("a room id is required")
	}
	if result && answerer == "" {
		return apperr.InvalidArgument("an answerer is required when the puzzle was solved")
	}

	err := s.run(ctx, func(tx persistence.Tx) error {
		var sess LateralSession
		if err := loadSession(tx, roomID, GameLateral, &sess); err != nil {
			return err
		}
		if err := requireStatus(&sess, StatusPlaying); err != nil {
			return err
		}

		if result {
			for i := range sess.Players {
				if sess.Players[i].Nickname == answerer {
					sess.Players[i].Point++
				}
			}
		}

		next, roundComplete, err := NextSeat(sess.seats(), sess.CurrentQuestioner)
		if err != nil {
			return apperr.Internal(err)
		}

		puzzles, err := loadPuzzlePool(tx)
		if err != nil {
			return err
		}
		if err := sess.applyPuzzle(s.rng, puzzles); err != nil {
			return apperr.Internal(err)
		}

		if roundComplete {
			first := RandomFirstSeat(s.rng, sess.seats())
			sess.GameStatus = StatusWaiting
			sess.CurrentQuestioner = first
			for i := range sess.Players {
				sess.Players[i].IsReady = false
				sess.Players[i].IsEverQuestioner = sess.Players[i].Nickname == first
			}
		} else {
			sess.CurrentQuestioner = next.Nickname
			for i := range sess.Players {
				if sess.Players[i].Nickname == next.Nickname {
					sess.Players[i].IsEverQuestioner = true
				}
			}
		}

		tx.Set(room.GameKey(roomID, GameLateral), &sess)
		return nil
	})
	if err != nil {
		return err
	}

	logger.Log.Infow("lateral result reported", "roomId", roomID, "result", result)
	return nil
}
