package room

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"sync"
	"testing"

	"github.com/wfunc/partyroom/apperr"
	"github.com/wfunc/partyroom/logger"
	"github.com/wfunc/partyroom/persistence"
)

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}

func newTestStore(maxPlayers int) (*Store, *persistence.Memory) {
	db := persistence.NewMemory()
	rng := rand.New(rand.NewSource(1))
	return NewStore(db, rng, maxPlayers, DefaultIDLength), db
}

func expectKind(t *testing.T, err error, kind string) *apperr.Error {
	t.Helper()
	if err == nil {
		t.Fatalf("Expected %s error, got nil", kind)
	}
	e := apperr.As(err)
	if e.Kind != kind {
		t.Fatalf("Expected %s error, got %s (%s)", kind, e.Kind, e.Message)
	}
	return e
}

func TestStore_CreateRoom(t *testing.T) {
	store, _ := newTestStore(4)
	ctx := context.Background()

	roomID, playerID, err := store.Create(ctx, "alice")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if len(roomID) != DefaultIDLength {
		t.Errorf("Expected room id length %d, got %q", DefaultIDLength, roomID)
	}
	if playerID == "" {
		t.Error("Expected a player id")
	}

	rm, err := store.Get(ctx, roomID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if rm.Status != StatusAccepting {
		t.Errorf("Expected status accepting, got %s", rm.Status)
	}
	if rm.HostPlayer != playerID {
		t.Errorf("Expected creator to be host")
	}
	if len(rm.Players) != 1 || rm.Players[0].Nickname != "alice" {
		t.Errorf("Expected sole member alice, got %v", rm.Players)
	}
}

func TestStore_CreateRoom_NoNickname(t *testing.T) {
	store, _ := newTestStore(4)
	_, _, err := store.Create(context.Background(), "")
	expectKind(t, err, apperr.KindInvalidArgument)
}

// fixedRand always picks index zero, so every generated room id collides.
type fixedRand struct{}

func (fixedRand) Intn(n int) int { return 0 }

func TestStore_CreateRoom_IDExhaustion(t *testing.T) {
	db := persistence.NewMemory()
	store := NewStore(db, fixedRand{}, 4, DefaultIDLength)
	ctx := context.Background()

	if _, _, err := store.Create(ctx, "alice"); err != nil {
		t.Fatalf("First create failed: %v", err)
	}

	_, _, err := store.Create(ctx, "bob")
	e := expectKind(t, err, apperr.KindResourceExhausted)
	if e.Status != 429 {
		t.Errorf("Expected status 429, got %d", e.Status)
	}
}

func TestStore_JoinRoom(t *testing.T) {
	store, _ := newTestStore(4)
	ctx := context.Background()

	roomID, _, err := store.Create(ctx, "alice")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	playerID, err := store.Join(ctx, roomID, "bob")
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if playerID == "" {
		t.Error("Expected a player id")
	}

	rm, _ := store.Get(ctx, roomID)
	if len(rm.Players) != 2 {
		t.Fatalf("Expected 2 members, got %d", len(rm.Players))
	}
	if rm.Players[1].Nickname != "bob" {
		t.Errorf("Expected bob appended in join order, got %v", rm.Nicknames())
	}
}

func TestStore_JoinRoom_NotFound(t *testing.T) {
	store, _ := newTestStore(4)
	_, err := store.Join(context.Background(), "nosuchrm", "bob")
	e := expectKind(t, err, apperr.KindNotFound)
	if e.Status != 404 {
		t.Errorf("Expected status 404, got %d", e.Status)
	}
}

func TestStore_JoinRoom_DuplicateNickname(t *testing.T) {
	store, _ := newTestStore(4)
	ctx := context.Background()

	roomID, _, _ := store.Create(ctx, "alice")
	_, err := store.Join(ctx, roomID, "alice")
	e := expectKind(t, err, apperr.KindDuplicateNickname)
	if e.Status != 200 {
		t.Errorf("Duplicate nickname should be a soft rejection, got status %d", e.Status)
	}

	rm, _ := store.Get(ctx, roomID)
	if len(rm.Players) != 1 {
		t.Errorf("Rejected join must not add a member, got %v", rm.Nicknames())
	}
}

func TestStore_JoinRoom_FullTransition(t *testing.T) {
	store, _ := newTestStore(3)
	ctx := context.Background()

	roomID, _, _ := store.Create(ctx, "alice")
	if _, err := store.Join(ctx, roomID, "bob"); err != nil {
		t.Fatalf("Second join failed: %v", err)
	}

	rm, _ := store.Get(ctx, roomID)
	if rm.Status != StatusAccepting {
		t.Errorf("Room below capacity should stay accepting, got %s", rm.Status)
	}

	// The join that reaches capacity flips the room to full.
	if _, err := store.Join(ctx, roomID, "carol"); err != nil {
		t.Fatalf("Third join failed: %v", err)
	}
	rm, _ = store.Get(ctx, roomID)
	if rm.Status != StatusFull {
		t.Errorf("Expected status full at capacity, got %s", rm.Status)
	}

	_, err := store.Join(ctx, roomID, "dave")
	expectKind(t, err, apperr.KindRoomFull)
}

func TestStore_JoinRoom_ReopensWhenCapacityRaised(t *testing.T) {
	store, db := newTestStore(2)
	ctx := context.Background()

	roomID, _, _ := store.Create(ctx, "alice")
	if _, err := store.Join(ctx, roomID, "bob"); err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	rm, _ := store.Get(ctx, roomID)
	if rm.Status != StatusFull {
		t.Fatalf("Expected status full, got %s", rm.Status)
	}

	// 运营方在线上调高了容量
	err := db.RunTransaction(ctx, func(tx persistence.Tx) error {
		tx.Set(ServiceConfigKey, &ServiceConfig{MaxPlayersPerRoom: 3})
		return nil
	})
	if err != nil {
		t.Fatalf("serviceConfig write failed: %v", err)
	}

	if _, err := store.Join(ctx, roomID, "carol"); err != nil {
		t.Fatalf("Join after capacity raise failed: %v", err)
	}
	rm, _ = store.Get(ctx, roomID)
	if rm.Status != StatusFull {
		t.Errorf("Three members at capacity 3 should be full, got %s", rm.Status)
	}
	if len(rm.Players) != 3 {
		t.Errorf("Expected 3 members, got %v", rm.Nicknames())
	}
}

func TestStore_JoinRoom_RejectedWhenInProgress(t *testing.T) {
	store, db := newTestStore(4)
	ctx := context.Background()

	roomID, _, _ := store.Create(ctx, "alice")
	err := db.RunTransaction(ctx, func(tx persistence.Tx) error {
		tx.Update(Key(roomID), map[string]any{"status": StatusInProgress})
		return nil
	})
	if err != nil {
		t.Fatalf("Status write failed: %v", err)
	}

	_, err = store.Join(ctx, roomID, "bob")
	e := expectKind(t, err, apperr.KindInProgress)
	if e.Status != 200 {
		t.Errorf("In-progress rejection should be soft, got status %d", e.Status)
	}
}

func TestStore_Leave_PromotesHost(t *testing.T) {
	store, _ := newTestStore(4)
	ctx := context.Background()

	roomID, hostID, _ := store.Create(ctx, "alice")
	if _, err := store.Join(ctx, roomID, "bob"); err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if _, err := store.Join(ctx, roomID, "carol"); err != nil {
		t.Fatalf("Join failed: %v", err)
	}

	if err := store.Leave(ctx, roomID, hostID); err != nil {
		t.Fatalf("Leave failed: %v", err)
	}

	rm, _ := store.Get(ctx, roomID)
	if len(rm.Players) != 2 {
		t.Fatalf("Expected 2 members, got %v", rm.Nicknames())
	}
	// The oldest remaining member by join order becomes host.
	if rm.HostPlayer != rm.Players[0].PlayerID || rm.Players[0].Nickname != "bob" {
		t.Errorf("Expected bob promoted to host, got host=%s players=%v", rm.HostPlayer, rm.Nicknames())
	}
}

func TestStore_Leave_LastMemberClosesRoom(t *testing.T) {
	store, _ := newTestStore(4)
	ctx := context.Background()

	roomID, hostID, _ := store.Create(ctx, "alice")
	if err := store.Leave(ctx, roomID, hostID); err != nil {
		t.Fatalf("Leave failed: %v", err)
	}

	rm, _ := store.Get(ctx, roomID)
	if rm.Status != StatusClosed {
		t.Errorf("Expected closed room, got %s", rm.Status)
	}
	if len(rm.Players) != 0 {
		t.Errorf("Expected empty roster, got %v", rm.Nicknames())
	}

	_, err := store.Join(ctx, roomID, "bob")
	expectKind(t, err, apperr.KindClosed)
}

func TestStore_Leave_ReopensFullRoom(t *testing.T) {
	store, _ := newTestStore(2)
	ctx := context.Background()

	roomID, _, _ := store.Create(ctx, "alice")
	bobID, err := store.Join(ctx, roomID, "bob")
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}

	if err := store.Leave(ctx, roomID, bobID); err != nil {
		t.Fatalf("Leave failed: %v", err)
	}
	rm, _ := store.Get(ctx, roomID)
	if rm.Status != StatusAccepting {
		t.Errorf("Expected full room to reopen after a leave, got %s", rm.Status)
	}
}

func TestStore_ConcurrentCreates(t *testing.T) {
	// nil rng is the production wiring: the locked math/rand source, safe to
	// share across handler goroutines.
	db := persistence.NewMemory()
	store := NewStore(db, nil, 4, DefaultIDLength)
	ctx := context.Background()

	const workers = 8
	const perWorker = 20

	ids := make(chan string, workers*perWorker)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				roomID, _, err := store.Create(ctx, fmt.Sprintf("player-%d-%d", n, i))
				if err != nil {
					t.Errorf("Create failed: %v", err)
					return
				}
				ids <- roomID
			}
		}(w)
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		if seen[id] {
			t.Errorf("Room id %s issued twice", id)
		}
		seen[id] = true
	}
	if len(seen) != workers*perWorker {
		t.Errorf("Expected %d rooms, got %d", workers*perWorker, len(seen))
	}
}

func TestStore_ConcurrentLeaves(t *testing.T) {
	store, _ := newTestStore(4)
	ctx := context.Background()

	roomID, hostID, _ := store.Create(ctx, "alice")
	bobID, err := store.Join(ctx, roomID, "bob")
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	carolID, err := store.Join(ctx, roomID, "carol")
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}

	var wg sync.WaitGroup
	for _, id := range []string{hostID, bobID, carolID} {
		wg.Add(1)
		go func(playerID string) {
			defer wg.Done()
			if err := store.Leave(ctx, roomID, playerID); err != nil {
				t.Errorf("Leave %s failed: %v", playerID, err)
			}
		}(id)
	}
	wg.Wait()

	rm, _ := store.Get(ctx, roomID)
	if rm.Status != StatusClosed {
		t.Errorf("Expected the emptied room closed, got %s", rm.Status)
	}
	if len(rm.Players) != 0 {
		t.Errorf("Expected empty roster, got %v", rm.Nicknames())
	}
}

func TestStore_Leave_UnknownPlayer(t *testing.T) {
	store, _ := newTestStore(4)
	ctx := context.Background()

	roomID, _, _ := store.Create(ctx, "alice")
	err := store.Leave(ctx, roomID, "not-a-player")
	e := expectKind(t, err, apperr.KindPlayerNotFound)
	if e.Status != 404 {
		t.Errorf("Expected status 404, got %d", e.Status)
	}
}
