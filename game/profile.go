// game/profile.go
//
// Variant 0004: the parent secretly receives one of five profile images; the
// children each get a topic and write a hint about the answer image. Once all
// hints are in, the parent guesses which image the hints describe. A correct
// guess scores the parent and the child whose hint helped most.
package game

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/wfunc/partyroom/apperr"
	"github.com/wfunc/partyroom/logger"
	"github.com/wfunc/partyroom/persistence"
	"github.com/wfunc/partyroom/room"
)

// ProfileDataKey holds the image/topic pool asset document.
const ProfileDataKey = "games/0004/assets/data"

const (
	profileImageCount = 5
	maxHintLength     = 100
)

// hintDenylist are characters a hint may not contain.
const hintDenylist = `'";-=/*`

type ProfileDataDoc struct {
	Images []string `json:"images"`
	Topics []string `json:"topics"`
}

type ProfilePlayer struct {
	Nickname     string `json:"nickname"`
	IsReady      bool   `json:"isReady"`
	IsEverParent bool   `json:"isEverParent"`
	Point        int    `json:"point"`
}

type ProfileSession struct {
	SessionMeta
	GameStatus          Status            `json:"gameStatus"`
	Players             []ProfilePlayer   `json:"players"`
	CurrentParent       string            `json:"currentParent"`
	CurrentImages       []string          `json:"currentImages"`
	AnswerImageIndex    int               `json:"answerImageIndex"`
	Topics              map[string]string `json:"topics"`
	Hints               map[string]string `json:"hints"`
	ParentSelectedIndex *int              `json:"parentSelectedIndex"`
	BestHintPlayer      *string           `json:"bestHintPlayer"`
	UsedImages          []string          `json:"usedImages"`
	UsedTopics          []string          `json:"usedTopics"`
}

func (s *ProfileSession) CurrentStatus() Status { return s.GameStatus }
func (s *ProfileSession) SetStatus(status Status) { s.GameStatus = status }

func (s *ProfileSession) MarkReady(nickname string) bool {
	for i := range s.Players {
		if s.Players[i].Nickname == nickname {
			s.Players[i].IsReady = true
			return true
		}
	}
	return false
}

func (s *ProfileSession) AllReady() bool {
	for _, p := range s.Players {
		if !p.IsReady {
			return false
		}
	}
	return true
}

func (s *ProfileSession) ResetReady() {
	for i := range s.Players {
		s.Players[i].IsReady = false
	}
}

func (s *ProfileSession) seats() []Seat {
	seats := make([]Seat, len(s.Players))
	for i, p := range s.Players {
		seats[i] = Seat{Nickname: p.Nickname, HeldTurn: p.IsEverParent}
	}
	return seats
}

func (s *ProfileSession) isParent(nickname string) bool {
	return nickname == s.CurrentParent
}

// children returns every player except the current parent, in roster order.
func (s *ProfileSession) children() []string {
	names := make([]string, 0, len(s.Players)-1)
	for _, p := range s.Players {
		if p.Nickname != s.CurrentParent {
			names = append(names, p.Nickname)
		}
	}
	return names
}

func (s *ProfileSession) allHintsIn() bool {
	for _, child := range s.children() {
		if _, ok := s.Hints[child]; !ok {
			return false
		}
	}
	return true
}

// deal draws a fresh image lineup and a topic per child, keeping the used
// pools so nothing repeats before exhaustion.
func (s *ProfileSession) deal(rng Rand, data *ProfileDataDoc) error {
	images, err := DrawSet(rng, data.Images, s.UsedImages, profileImageCount)
	if err != nil {
		return err
	}
	children := s.children()
	topics, err := DrawSet(rng, data.Topics, s.UsedTopics, len(children))
	if err != nil {
		return err
	}

	s.CurrentImages = images
	s.AnswerImageIndex = rng.Intn(profileImageCount)
	s.UsedImages = append(s.UsedImages, images...)
	s.UsedTopics = append(s.UsedTopics, topics...)
	s.Topics = make(map[string]string, len(children))
	for i, child := range children {
		s.Topics[child] = topics[i]
	}
	s.Hints = make(map[string]string)
	s.ParentSelectedIndex = nil
	s.BestHintPlayer = nil
	return nil
}

type ProfileVariant struct{}

func (ProfileVariant) ID() string          { return GameProfile }
func (ProfileVariant) ReadyStatus() Status { return StatusChildTurn }
func (ProfileVariant) NewSession() Session { return &ProfileSession{} }

func (ProfileVariant) Initialize(tx persistence.Tx, rng Rand, nicknames []string) (Session, error) {
	data, err := loadProfileData(tx, len(nicknames))
	if err != nil {
		return nil, err
	}

	firstParent := nicknames[rng.Intn(len(nicknames))]
	players := make([]ProfilePlayer, len(nicknames))
	for i, nickname := range nicknames {
		players[i] = ProfilePlayer{
			Nickname:     nickname,
			IsEverParent: nickname == firstParent,
		}
	}

	sess := &ProfileSession{
		GameStatus:    StatusWaiting,
		Players:       players,
		CurrentParent: firstParent,
	}
	if err := sess.deal(rng, data); err != nil {
		return nil, apperr.Internal(err)
	}
	return sess, nil
}

func loadProfileData(tx persistence.Tx, playerCount int) (*ProfileDataDoc, error) {
	var doc ProfileDataDoc
	if err := tx.Get(ProfileDataKey, &doc); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return nil, apperr.Internal(fmt.Errorf("profile data asset is missing"))
		}
		return nil, err
	}
	if len(doc.Images) < profileImageCount {
		return nil, apperr.Internal(fmt.Errorf("profile image pool needs at least %d entries, got %d", profileImageCount, len(doc.Images)))
	}
	if len(doc.Topics) < playerCount-1 {
		return nil, apperr.Internal(fmt.Errorf("profile topic pool needs at least %d entries, got %d", playerCount-1, len(doc.Topics)))
	}
	return &doc, nil
}

func validateHint(hint string) *apperr.Error {
	if hint == "" {
		return apperr.InvalidArgument("a hint is required")
	}
	if utf8.RuneCountInString(hint) > maxHintLength {
		return apperr.InvalidArgument(fmt.Sprintf("a hint must be %d characters or fewer", maxHintLength))
	}
	if strings.ContainsAny(hint, hintDenylist) {
		return apperr.InvalidArgument("a hint contains a forbidden character")
	}
	return nil
}

// SubmitHint stores one child's hint. Once every child has submitted, the
// turn passes to the parent.
func (s *Service) SubmitHint(ctx context.Context, roomID, nickname, hint string) error {
	if roomID == "" || nickname == "" {
		return apperr.InvalidArgument("a room id and a nickname are required")
	}
	if err := validateHint(hint); err != nil {
		return err
	}

	err := s.run(ctx, func(tx persistence.Tx) error {
		var sess ProfileSession
		if err := loadSession(tx, roomID, GameProfile, &sess); err != nil {
			return err
		}
		if err := requireStatus(&sess, StatusChildTurn); err != nil {
			return err
		}
		if sess.isParent(nickname) {
			return apperr.New(apperr.KindParentCannotSubmitHint, "the parent cannot submit a hint", http.StatusBadRequest)
		}
		if _, ok := sess.Topics[nickname]; !ok {
			return apperr.New(apperr.KindPlayerNotFound, "no such player in this game", http.StatusNotFound).
				WithField("nickname", nickname)
		}

		if sess.Hints == nil {
			sess.Hints = make(map[string]string)
		}
		sess.Hints[nickname] = hint
		if sess.allHintsIn() {
			sess.GameStatus = StatusParentTurn
		}

		tx.Set(room.GameKey(roomID, GameProfile), &sess)
		return nil
	})
	if err != nil {
		return err
	}

	logger.Log.Infow("hint submitted", "roomId", roomID, "nickname", nickname)
	return nil
}

// DetermineAnswer records which image the parent picked and moves the game to
// the result phase.
func (s *Service) DetermineAnswer(ctx context.Context, roomID, nickname string, index int) error {
	if roomID == "" || nickname == "" {
		return apperr.InvalidArgument("a room id and a nickname are required")
	}
	if index < 0 || index >= profileImageCount {
		return apperr.InvalidArgument(fmt.Sprintf("the answer index must be between 0 and %d", profileImageCount-1))
	}

	err := s.run(ctx, func(tx persistence.Tx) error {
		var sess ProfileSession
		if err := loadSession(tx, roomID, GameProfile, &sess); err != nil {
			return err
		}
		if err := requireStatus(&sess, StatusParentTurn); err != nil {
			return err
		}
		if !sess.isParent(nickname) {
			return apperr.New(apperr.KindOnlyParentCanDetermine, "only the parent can determine the answer", http.StatusBadRequest)
		}

		sess.ParentSelectedIndex = &index
		sess.GameStatus = StatusResult

		tx.Set(room.GameKey(roomID, GameProfile), &sess)
		return nil
	})
	if err != nil {
		return err
	}

	logger.Log.Infow("answer determined", "roomId", roomID, "index", index)
	return nil
}

// ProceedToNext acknowledges the result screen for one player. When the
// parent acknowledges a correct guess they must name the best hint, which
// scores both of them. Once everyone acknowledged, either the next child in
// order becomes parent, or the round closes and a random player opens a new
// one from the waiting lobby.
func (s *Service) ProceedToNext(ctx context.Context, roomID, nickname string, bestHintPlayer string) error {
	if roomID == "" || nickname == "" {
		return apperr.InvalidArgument("a room id and a nickname are required")
	}

	err := s.run(ctx, func(tx persistence.Tx) error {
		var sess ProfileSession
		if err := loadSession(tx, roomID, GameProfile, &sess); err != nil {
			return err
		}
		if err := requireStatus(&sess, StatusResult); err != nil {
			return err
		}

		correct := sess.ParentSelectedIndex != nil && *sess.ParentSelectedIndex == sess.AnswerImageIndex
		if sess.isParent(nickname) && correct {
			if bestHintPlayer == "" {
				return apperr.New(apperr.KindBestHintPlayerRequired, "the best hint player is required after a correct guess", http.StatusBadRequest)
			}
			if bestHintPlayer == sess.CurrentParent {
				return apperr.New(apperr.KindInvalidBestHintPlayer, "the parent cannot be the best hint player", http.StatusBadRequest)
			}
			if _, ok := sess.Hints[bestHintPlayer]; !ok {
				return apperr.New(apperr.KindPlayerDidNotSubmitHint, "that player did not submit a hint", http.StatusBadRequest).
					WithField("nickname", bestHintPlayer)
			}
			for i := range sess.Players {
				if sess.Players[i].Nickname == sess.CurrentParent || sess.Players[i].Nickname == bestHintPlayer {
					sess.Players[i].Point++
				}
			}
			best := bestHintPlayer
			sess.BestHintPlayer = &best
		}

		if !sess.MarkReady(nickname) {
			return apperr.New(apperr.KindPlayerNotFound, "no such player in this game", http.StatusNotFound).
				WithField("nickname", nickname)
		}
		if sess.AllReady() {
			next, roundComplete, err := NextSeat(sess.seats(), sess.CurrentParent)
			if err != nil {
				return apperr.Internal(err)
			}
			if roundComplete {
				first := RandomFirstSeat(s.rng, sess.seats())
				sess.GameStatus = StatusWaiting
				sess.CurrentParent = first
				for i := range sess.Players {
					sess.Players[i].IsReady = false
					sess.Players[i].IsEverParent = sess.Players[i].Nickname == first
				}
				data, err := loadProfileData(tx, len(sess.Players))
				if err != nil {
					return err
				}
				if err := sess.deal(s.rng, data); err != nil {
					return apperr.Internal(err)
				}
			} else {
				sess.GameStatus = StatusChildTurn
				sess.CurrentParent = next.Nickname
				for i := range sess.Players {
					sess.Players[i].IsReady = false
					if sess.Players[i].Nickname == next.Nickname {
						sess.Players[i].IsEverParent = true
					}
				}
				data, err := loadProfileData(tx, len(sess.Players))
				if err != nil {
					return err
				}
				if err := sess.deal(s.rng, data); err != nil {
					return apperr.Internal(err)
				}
			}
		}

		tx.Set(room.GameKey(roomID, GameProfile), &sess)
		return nil
	})
	if err != nil {
		return err
	}

	logger.Log.Infow("result acknowledged", "roomId", roomID, "nickname", nickname)
	return nil
}
