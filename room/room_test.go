package room

import "testing"

func testRoom() *Room {
	return &Room{
		Status: StatusAccepting,
		Players: []Player{
			{PlayerID: "id-1", Nickname: "alice"},
			{PlayerID: "id-2", Nickname: "bob"},
		},
		HostPlayer: "id-1",
	}
}

func TestRoom_Member(t *testing.T) {
	rm := testRoom()

	p, ok := rm.Member("id-2")
	if !ok {
		t.Fatal("Expected member id-2 to be found")
	}
	if p.Nickname != "bob" {
		t.Errorf("Expected bob, got %s", p.Nickname)
	}

	if _, ok := rm.Member("id-9"); ok {
		t.Error("Expected unknown id to be absent")
	}
}

func TestRoom_HasNickname(t *testing.T) {
	rm := testRoom()

	if !rm.HasNickname("alice") {
		t.Error("Expected alice to be taken")
	}
	// Matching is exact, case included.
	if rm.HasNickname("Alice") {
		t.Error("Expected Alice (capitalized) to be free")
	}
}

func TestRoom_Nicknames(t *testing.T) {
	rm := testRoom()

	names := rm.Nicknames()
	if len(names) != 2 || names[0] != "alice" || names[1] != "bob" {
		t.Errorf("Expected join-ordered nicknames, got %v", names)
	}
}

func TestKeys(t *testing.T) {
	if got := Key("abc23456"); got != "rooms/abc23456" {
		t.Errorf("Unexpected room key %q", got)
	}
	if got := GamePrefix("abc23456"); got != "rooms/abc23456/currentGame/" {
		t.Errorf("Unexpected game prefix %q", got)
	}
	if got := GameKey("abc23456", "0001"); got != "rooms/abc23456/currentGame/0001" {
		t.Errorf("Unexpected game key %q", got)
	}
}
