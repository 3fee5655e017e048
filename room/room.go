// room/room.go
package room

import (
	"time"
)

// Status 表示房间的业务状态
type Status string

const (
	StatusAccepting  Status = "accepting"
	StatusFull       Status = "full"
	StatusInProgress Status = "inProgress"
	StatusClosed     Status = "closed"
)

// Player is one member of a room. PlayerID is a random UUID assigned on
// create/join; Nickname is unique within the room (case-sensitive).
type Player struct {
	PlayerID string `json:"playerId"`
	Nickname string `json:"nickname"`
}

// Room is the lobby document. Players keep insertion order, which doubles as
// join order for host promotion.
type Room struct {
	Status      Status    `json:"status"`
	Players     []Player  `json:"players"`
	HostPlayer  string    `json:"hostPlayer"`
	CurrentGame *string   `json:"currentGame"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Key returns the document key for a room.
func Key(roomID string) string { return "rooms/" + roomID }

// GamePrefix returns the key prefix under which a room's active game
// session documents live.
func GamePrefix(roomID string) string { return "rooms/" + roomID + "/currentGame/" }

// GameKey returns the document key for a room's session with the given game.
func GameKey(roomID, gameID string) string { return GamePrefix(roomID) + gameID }

// Member looks up a player by id.
func (r *Room) Member(playerID string) (Player, bool) {
	for _, p := range r.Players {
		if p.PlayerID == playerID {
			return p, true
		}
	}
	return Player{}, false
}

// HasNickname reports whether a nickname is already taken, matching exactly.
func (r *Room) HasNickname(nickname string) bool {
	for _, p := range r.Players {
		if p.Nickname == nickname {
			return true
		}
	}
	return false
}

// Nicknames returns the member nicknames in join order.
func (r *Room) Nicknames() []string {
	names := make([]string, 0, len(r.Players))
	for _, p := range r.Players {
		names = append(names, p.Nickname)
	}
	return names
}
