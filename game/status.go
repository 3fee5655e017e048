// game/status.go
package game

// Status 表示一局游戏的阶段
type Status string

const (
	// StatusWaiting is the lobby phase every variant starts and ends a round
	// in: players mark themselves ready until everyone is.
	StatusWaiting Status = "waiting"
	// StatusPlaying is the single active phase of variants 0001-0003.
	StatusPlaying Status = "playing"
	// Variant 0004 cycles through three active phases per turn.
	StatusChildTurn  Status = "childTurn"
	StatusParentTurn Status = "parentTurn"
	StatusResult     Status = "result"
)
