// internal/models/player.go
package models

import (
	"github.com/google/uuid"
)

// Player is a member of a table's roster. Seated players keep their seat for the lifetime of the table;
// spectators carry Seat -1 and never take a turn.
type Player struct {
	UserID      uuid.UUID `json:"user_id"`
	Seat        int       `json:"seat"`
	DisplayName string    `json:"display_name"`
	IsSpectator bool      `json:"is_spectator"`

	// Disqualified and DroppedThisRound mirror the current round and are cleared when a new round is dealt.
	Disqualified     bool `json:"disqualified"`
	DroppedThisRound bool `json:"dropped_this_round"`

	// Left marks a player that walked out mid-round; the seat is released before the next deal.
	Left bool `json:"left,omitempty"`

	Connected bool `json:"connected"`
}

// NewPlayer builds a seated player.
func NewPlayer(userID uuid.UUID, seat int, name string) *Player {
	return &Player{
		UserID:      userID,
		Seat:        seat,
		DisplayName: name,
	}
}

// NewSpectator builds an observer entry.
func NewSpectator(userID uuid.UUID, name string) *Player {
	return &Player{
		UserID:      userID,
		Seat:        -1,
		DisplayName: name,
		IsSpectator: true,
	}
}

// Seated reports whether the player occupies a turn slot.
func (p *Player) Seated() bool {
	return !p.IsSpectator && p.Seat >= 0
}
