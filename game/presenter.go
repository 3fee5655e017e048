// game/presenter.go
//
// Variant 0002: one player presents a topic while avoiding a hidden class of
// words; the others try to guess the topic. A correct guess scores both the
// presenter and the guesser. The presenter role passes in roster order and
// the round closes once everyone has presented.
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

// PresenterTopicsKey holds the topic pool asset document.
const PresenterTopicsKey = "games/0002/assets/topics"

type TopicListDoc struct {
	Topics []string `json:"topics"`
}

type PresenterPlayer struct {
	Nickname        string `json:"nickname"`
	IsReady         bool   `json:"isReady"`
	IsEverPresenter bool   `json:"isEverPresenter"`
	Point           int    `json:"point"`
}

type PresenterSession struct {
	SessionMeta
	GameStatus       Status            `json:"gameStatus"`
	Players          []PresenterPlayer `json:"players"`
	CurrentPresenter string            `json:"currentPresenter"`
	CurrentTopic     string            `json:"currentTopic"`
	UsedTopic        []string          `json:"usedTopic"`
}

func (s *PresenterSession) CurrentStatus() Status { return s.GameStatus }
func (s *PresenterSession) SetStatus(status Status) { s.GameStatus = status }

func (s *PresenterSession) MarkReady(nickname string) bool {
	for i := range s.Players {
		if s.Players[i].Nickname == nickname {
			s.Players[i].IsReady = true
			return true
		}
	}
	return false
}

func (s *PresenterSession) AllReady() bool {
	for _, p := range s.Players {
		if !p.IsReady {
			return false
		}
	}
	return true
}

func (s *PresenterSession) ResetReady() {
	for i := range s.Players {
		s.Players[i].IsReady = false
	}
}

func (s *PresenterSession) seats() []Seat {
	seats := make([]Seat, len(s.Players))
	for i, p := range s.Players {
		seats[i] = Seat{Nickname: p.Nickname, HeldTurn: p.IsEverPresenter}
	}
	return seats
}

type PresenterVariant struct{}

func (PresenterVariant) ID() string          { return GamePresenter }
func (PresenterVariant) ReadyStatus() Status { return StatusPlaying }
func (PresenterVariant) NewSession() Session { return &PresenterSession{} }

func (PresenterVariant) Initialize(tx persistence.Tx, rng Rand, nicknames []string) (Session, error) {
	topics, err := loadTopicPool(tx)
	if err != nil {
		return nil, err
	}

	firstTopic, err := Draw(rng, topics, nil)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	firstPresenter := nicknames[rng.Intn(len(nicknames))]

	players := make([]PresenterPlayer, len(nicknames))
	for i, nickname := range nicknames {
		players[i] = PresenterPlayer{
			Nickname:        nickname,
			IsEverPresenter: nickname == firstPresenter,
		}
	}

	return &PresenterSession{
		GameStatus:       StatusWaiting,
		Players:          players,
		CurrentPresenter: firstPresenter,
		CurrentTopic:     firstTopic,
		UsedTopic:        []string{firstTopic},
	}, nil
}

func loadTopicPool(tx persistence.Tx) ([]string, error) {
	var doc TopicListDoc
	if err := tx.Get(PresenterTopicsKey, &doc); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return nil, apperr.Internal(fmt.Errorf("topic pool asset is missing"))
		}
		return nil, err
	}
	if len(doc.Topics) == 0 {
		return nil, apperr.Internal(fmt.Errorf("topic pool asset is empty"))
	}
	return doc.Topics, nil
}

// ReportPresenterResult records the outcome of the current presentation and
// rotates the presenter. result=true means somebody guessed the topic; the
// answerer and the presenter both score. When rotation reaches a player who
// already presented this cycle, the round ends: flags reset and the next
// player in order opens the new round from the waiting lobby.
func (s *Service) ReportPresenterResult(ctx context.Context, roomID string, result bool, answerer string) error {
	if roomID == "" {
		return apperr.InvalidArgument("a room id is required")
	}
	if result && answerer == "" {
		return apperr.InvalidArgument("an answerer is required when the topic was guessed")
	}

	err := s.run(ctx, func(tx persistence.Tx) error {
		var sess PresenterSession
		if err := loadSession(tx, roomID, GamePresenter, &sess); err != nil {
			return err
		}
		if err := requireStatus(&sess, StatusPlaying); err != nil {
			return err
		}

		if result {
			for i := range sess.Players {
				if sess.Players[i].Nickname == answerer || sess.Players[i].Nickname == sess.CurrentPresenter {
					sess.Players[i].Point++
				}
			}
		}

		next, roundComplete, err := NextSeat(sess.seats(), sess.CurrentPresenter)
		if err != nil {
			return apperr.Internal(err)
		}

		topics, err := loadTopicPool(tx)
		if err != nil {
			return err
		}
		nextTopic, err := Draw(s.rng, topics, sess.UsedTopic)
		if err != nil {
			return apperr.Internal(err)
		}

		sess.CurrentTopic = nextTopic
		sess.UsedTopic = append(sess.UsedTopic, nextTopic)

		if roundComplete {
			// 转完一圈, 下一位按顺序开启新一轮
			sess.GameStatus = StatusWaiting
			sess.CurrentPresenter = next.Nickname
			for i := range sess.Players {
				sess.Players[i].IsReady = false
				sess.Players[i].IsEverPresenter = sess.Players[i].Nickname == next.Nickname
			}
		} else {
			sess.CurrentPresenter = next.Nickname
			for i := range sess.Players {
				if sess.Players[i].Nickname == next.Nickname {
					sess.Players[i].IsEverPresenter = true
				}
			}
		}

		tx.Set(room.GameKey(roomID, GamePresenter), &sess)
		return nil
	})
	if err != nil {
		return err
	}

	logger.Log.Infow("presenter result reported", "roomId", roomID, "result", result)
	return nil
}
