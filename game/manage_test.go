package game

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wfunc/partyroom/apperr"
	"github.com/wfunc/partyroom/persistence"
	"github.com/wfunc/partyroom/room"
)

func (f *fixture) seedElimination(t *testing.T, roomID string, nicknames ...string) {
	t.Helper()
	f.seedRoom(t, roomID, room.StatusAccepting, nicknames...)
	f.seedDefinition(t, GameElimination, Definition{
		Title:       "NG Word",
		MinPlayers:  3,
		MaxPlayers:  8,
		IsPublished: true,
	})
	f.seedDoc(t, EliminationWordsKey, &WordListDoc{
		Words: []string{"apple", "banana", "cherry", "durian"},
	})
}

func TestStartGame(t *testing.T) {
	f := newFixture(t)
	f.seedElimination(t, "r1", "alice", "bob", "carol")

	require.NoError(t, f.svc.StartGame(context.Background(), "r1", GameElimination))

	rm := f.getRoom(t, "r1")
	require.Equal(t, room.StatusInProgress, rm.Status)
	require.NotNil(t, rm.CurrentGame)
	require.Equal(t, GameElimination, *rm.CurrentGame)

	var sess EliminationSession
	f.getDoc(t, room.GameKey("r1", GameElimination), &sess)
	require.Equal(t, StatusWaiting, sess.GameStatus)
	require.Equal(t, "NG Word", sess.Title)
	require.Len(t, sess.Players, 3)
	for _, p := range sess.Players {
		require.False(t, p.IsReady)
		require.True(t, p.IsAlive)
		require.Len(t, p.NGWord, 1)
	}
}

func TestStartGame_RoomNotFound(t *testing.T) {
	f := newFixture(t)
	err := f.svc.StartGame(context.Background(), "missing1", GameElimination)
	require.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestStartGame_GameNotFound(t *testing.T) {
	f := newFixture(t)
	f.seedRoom(t, "r1", room.StatusAccepting, "alice", "bob", "carol")

	err := f.svc.StartGame(context.Background(), "r1", GameElimination)
	require.True(t, apperr.IsKind(err, apperr.KindGameNotFound))
	require.Equal(t, 404, apperr.As(err).Status)
}

func TestStartGame_Unpublished(t *testing.T) {
	f := newFixture(t)
	f.seedElimination(t, "r1", "alice", "bob", "carol")
	f.seedDefinition(t, GameElimination, Definition{
		Title: "NG Word", MinPlayers: 3, MaxPlayers: 8, IsPublished: false,
	})

	err := f.svc.StartGame(context.Background(), "r1", GameElimination)
	require.True(t, apperr.IsKind(err, apperr.KindUnpublished))
	require.Equal(t, 403, apperr.As(err).Status)
}

func TestStartGame_NotReleased(t *testing.T) {
	f := newFixture(t)
	f.seedElimination(t, "r1", "alice", "bob", "carol")
	future := time.Now().Add(24 * time.Hour)
	f.seedDefinition(t, GameElimination, Definition{
		Title: "NG Word", MinPlayers: 3, MaxPlayers: 8, IsPublished: true, ReleaseDate: &future,
	})

	err := f.svc.StartGame(context.Background(), "r1", GameElimination)
	require.True(t, apperr.IsKind(err, apperr.KindNotReleased))
}

func TestStartGame_PlayerBounds(t *testing.T) {
	f := newFixture(t)
	f.seedElimination(t, "r1", "alice", "bob")

	err := f.svc.StartGame(context.Background(), "r1", GameElimination)
	require.True(t, apperr.IsKind(err, apperr.KindInsufficient))
	// Business-rule rejections are soft: 200 with success=false.
	require.Equal(t, 200, apperr.As(err).Status)

	f.seedDefinition(t, GameElimination, Definition{
		Title: "NG Word", MinPlayers: 1, MaxPlayers: 1, IsPublished: true,
	})
	err = f.svc.StartGame(context.Background(), "r1", GameElimination)
	require.True(t, apperr.IsKind(err, apperr.KindTooManyPlayers))
}

func TestStartGame_AlreadyInProgress(t *testing.T) {
	f := newFixture(t)
	f.seedElimination(t, "r1", "alice", "bob", "carol")
	require.NoError(t, f.svc.StartGame(context.Background(), "r1", GameElimination))

	err := f.svc.StartGame(context.Background(), "r1", GameElimination)
	require.True(t, apperr.IsKind(err, apperr.KindAlreadyInProgress))
}

func TestStartGame_BumpsPlayCount(t *testing.T) {
	f := newFixture(t)
	f.seedElimination(t, "r1", "alice", "bob", "carol")

	require.NoError(t, f.svc.StartGame(context.Background(), "r1", GameElimination))

	// The counter is incremented after commit on a separate goroutine.
	require.Eventually(t, func() bool {
		var def Definition
		if err := f.db.Get(context.Background(), DefinitionKey(GameElimination), &def); err != nil {
			return false
		}
		return def.PlayCnt == 1
	}, time.Second, 10*time.Millisecond)
}

func TestEndGame(t *testing.T) {
	f := newFixture(t)
	f.seedElimination(t, "r1", "alice", "bob", "carol")
	require.NoError(t, f.svc.StartGame(context.Background(), "r1", GameElimination))

	require.NoError(t, f.svc.EndGame(context.Background(), "r1"))

	rm := f.getRoom(t, "r1")
	require.Equal(t, room.StatusAccepting, rm.Status)
	require.Nil(t, rm.CurrentGame)

	var sess EliminationSession
	err := f.db.Get(context.Background(), room.GameKey("r1", GameElimination), &sess)
	require.ErrorIs(t, err, persistence.ErrNotFound, "the session document must be deleted")
}

func TestEndGame_FullRoomStaysFull(t *testing.T) {
	f := newFixture(t)
	// Capacity is 4 and the room has 4 members.
	f.seedElimination(t, "r1", "alice", "bob", "carol", "dave")
	require.NoError(t, f.svc.StartGame(context.Background(), "r1", GameElimination))

	require.NoError(t, f.svc.EndGame(context.Background(), "r1"))
	require.Equal(t, room.StatusFull, f.getRoom(t, "r1").Status)
}

func TestEndGame_NotInProgress(t *testing.T) {
	f := newFixture(t)
	f.seedRoom(t, "r1", room.StatusAccepting, "alice", "bob", "carol")

	err := f.svc.EndGame(context.Background(), "r1")
	require.True(t, apperr.IsKind(err, apperr.KindNotInProgress))
	require.Equal(t, 200, apperr.As(err).Status)
}

func TestEndGame_RoomNotFound(t *testing.T) {
	f := newFixture(t)
	err := f.svc.EndGame(context.Background(), "missing1")
	require.True(t, apperr.IsKind(err, apperr.KindRoomNotFound))
	require.Equal(t, 404, apperr.As(err).Status)
}

func TestSetReady_AdvancesWhenAllReady(t *testing.T) {
	f := newFixture(t)
	f.seedElimination(t, "r1", "alice", "bob", "carol")
	require.NoError(t, f.svc.StartGame(context.Background(), "r1", GameElimination))

	require.NoError(t, f.svc.SetReady(context.Background(), "r1", GameElimination, "alice"))
	require.NoError(t, f.svc.SetReady(context.Background(), "r1", GameElimination, "bob"))

	var sess EliminationSession
	f.getDoc(t, room.GameKey("r1", GameElimination), &sess)
	require.Equal(t, StatusWaiting, sess.GameStatus, "two of three ready must not start the round")

	require.NoError(t, f.svc.SetReady(context.Background(), "r1", GameElimination, "carol"))
	f.getDoc(t, room.GameKey("r1", GameElimination), &sess)
	require.Equal(t, StatusPlaying, sess.GameStatus)
}

func TestSetReady_ClearsFlagsOnAdvance(t *testing.T) {
	f := newFixture(t)
	f.seedElimination(t, "r1", "alice", "bob", "carol")
	require.NoError(t, f.svc.StartGame(context.Background(), "r1", GameElimination))
	f.readyAll(t, "r1", GameElimination, "alice", "bob", "carol")

	// Lobby flags must not leak into the active phase: variants that collect
	// acknowledgements there would see everyone pre-acknowledged.
	var sess EliminationSession
	f.getDoc(t, room.GameKey("r1", GameElimination), &sess)
	require.Equal(t, StatusPlaying, sess.GameStatus)
	for _, p := range sess.Players {
		require.False(t, p.IsReady)
	}
}

func TestSetReady_RejectedOutsideWaiting(t *testing.T) {
	f := newFixture(t)
	f.seedElimination(t, "r1", "alice", "bob", "carol")
	require.NoError(t, f.svc.StartGame(context.Background(), "r1", GameElimination))
	f.readyAll(t, "r1", GameElimination, "alice", "bob", "carol")

	err := f.svc.SetReady(context.Background(), "r1", GameElimination, "alice")
	require.True(t, apperr.IsKind(err, apperr.KindInvalidGameStatus))
	// The error must echo the phase actually observed.
	require.Equal(t, "playing", apperr.As(err).Fields["status"])
}

func TestSetReady_UnknownGame(t *testing.T) {
	f := newFixture(t)
	err := f.svc.SetReady(context.Background(), "r1", "9999", "alice")
	require.True(t, apperr.IsKind(err, apperr.KindGameNotFound))
}

func TestSetReady_NoActiveSession(t *testing.T) {
	f := newFixture(t)
	f.seedRoom(t, "r1", room.StatusAccepting, "alice", "bob", "carol")

	err := f.svc.SetReady(context.Background(), "r1", GameElimination, "alice")
	require.True(t, apperr.IsKind(err, apperr.KindGameNotFound))
}
