// game/definition.go
package game

import "time"

// Definition is the catalog document for one game variant, stored under
// games/<gameId>. It gates startGame (publication, release date, player
// bounds) and accumulates the play counter.
type Definition struct {
	Title       string     `json:"title"`
	MinPlayers  int        `json:"minPlayers"`
	MaxPlayers  int        `json:"maxPlayers"`
	IsPublished bool       `json:"isPublished"`
	ReleaseDate *time.Time `json:"releaseDate,omitempty"`
	PlayCnt     int64      `json:"playCnt"`
}

// DefinitionKey returns the document key of a game definition.
func DefinitionKey(gameID string) string { return "games/" + gameID }

// Released reports whether the definition's release date has passed.
// A definition without a release date is always released.
func (d *Definition) Released(now time.Time) bool {
	return d.ReleaseDate == nil || !d.ReleaseDate.After(now)
}
