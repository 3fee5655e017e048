package game

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wfunc/partyroom/apperr"
	"github.com/wfunc/partyroom/room"
)

func startedLateral(t *testing.T) *fixture {
	t.Helper()
	f := newFixture(t)
	f.seedRoom(t, "r1", room.StatusAccepting, "alice", "bob", "carol")
	f.seedDefinition(t, GameLateral, Definition{
		Title: "Lateral", MinPlayers: 2, MaxPlayers: 8, IsPublished: true,
	})
	f.seedDoc(t, LateralPuzzlesKey, &PuzzleListDoc{
		Questions: []LateralPuzzle{
			{Question: "q1", Answer: "a1"},
			{Question: "q2", Answer: "a2"},
			{Question: "q3", Answer: "a3"},
			{Question: "q4", Answer: "a4"},
			{Question: "q5", Answer: "a5"},
		},
	})
	require.NoError(t, f.svc.StartGame(context.Background(), "r1", GameLateral))
	f.readyAll(t, "r1", GameLateral, "alice", "bob", "carol")
	return f
}

func (f *fixture) lateralSession(t *testing.T) *LateralSession {
	t.Helper()
	var sess LateralSession
	f.getDoc(t, room.GameKey("r1", GameLateral), &sess)
	return &sess
}

func TestLateral_InitialState(t *testing.T) {
	f := startedLateral(t)

	sess := f.lateralSession(t)
	require.Equal(t, StatusPlaying, sess.GameStatus)
	require.Equal(t, "alice", sess.CurrentQuestioner)
	require.Equal(t, "q1", sess.Question)
	require.Equal(t, "a1", sess.Answer)
	require.Equal(t, []string{"0"}, sess.UsedQuestionIndex)
}

func TestLateral_QuestionerFieldName(t *testing.T) {
	f := startedLateral(t)

	// Clients read the session document directly, so the turn holder must be
	// stored under "questioner".
	var doc map[string]any
	f.getDoc(t, room.GameKey("r1", GameLateral), &doc)
	require.Equal(t, "alice", doc["questioner"])
	require.NotContains(t, doc, "currentQuestioner")
}

func TestLateral_OnlyAnswererScores(t *testing.T) {
	f := startedLateral(t)

	require.NoError(t, f.svc.ReportLateralResult(context.Background(), "r1", true, "bob"))

	sess := f.lateralSession(t)
	require.Equal(t, "bob", sess.CurrentQuestioner)
	for _, p := range sess.Players {
		if p.Nickname == "bob" {
			require.Equal(t, 1, p.Point, "only the answerer scores")
		} else {
			require.Equal(t, 0, p.Point)
		}
	}
}

func TestLateral_FreshPuzzleEveryTurn(t *testing.T) {
	f := startedLateral(t)

	require.NoError(t, f.svc.ReportLateralResult(context.Background(), "r1", false, ""))

	sess := f.lateralSession(t)
	require.Equal(t, "q2", sess.Question)
	require.Equal(t, "a2", sess.Answer)
	require.Equal(t, []string{"0", "1"}, sess.UsedQuestionIndex)
}

func TestLateral_RoundCompletion(t *testing.T) {
	f := startedLateral(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, f.svc.ReportLateralResult(ctx, "r1", false, ""))
	}

	sess := f.lateralSession(t)
	require.Equal(t, StatusWaiting, sess.GameStatus)
	// With the stub rng the random opener is the first seat.
	require.Equal(t, "alice", sess.CurrentQuestioner)
	for _, p := range sess.Players {
		require.False(t, p.IsReady)
		require.Equal(t, p.Nickname == "alice", p.IsEverQuestioner)
	}
}

func TestLateral_AnswererRequiredOnSuccess(t *testing.T) {
	f := startedLateral(t)
	err := f.svc.ReportLateralResult(context.Background(), "r1", true, "")
	require.True(t, apperr.IsKind(err, apperr.KindInvalidArgument))
}

func TestLateral_NoSession(t *testing.T) {
	f := newFixture(t)
	err := f.svc.ReportLateralResult(context.Background(), "r1", false, "")
	require.True(t, apperr.IsKind(err, apperr.KindGameNotFound))
}
