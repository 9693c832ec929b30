// internal/game/events.go
package game

import (
	"github.com/google/uuid"
	"github.com/jason-s-yu/rummy/internal/models"
)

// GameEventType is an enum-like type for broadcasting table actions.
type GameEventType string

const (
	EventPlayerJoined        GameEventType = "player_joined"
	EventPlayerLeft          GameEventType = "player_left"
	EventPlayerConnection    GameEventType = "player_connection"
	EventGameStarted         GameEventType = "game_started"
	EventRoundStarted        GameEventType = "round_started"
	EventPlayerDrawStock     GameEventType = "player_draw_stock"   // card withheld, it only reaches the drawer's sync state
	EventPlayerDrawDiscard   GameEventType = "player_draw_discard" // card is public, it was face up
	EventStockReshuffled     GameEventType = "stock_reshuffled"
	EventPlayerDiscard       GameEventType = "player_discard"
	EventMeldLocked          GameEventType = "meld_locked"
	EventWildRevealed        GameEventType = "wild_joker_revealed"
	EventPlayerDeclared      GameEventType = "player_declared"
	EventPlayerDropped       GameEventType = "player_dropped"
	EventPlayerForceDropped  GameEventType = "player_force_dropped"
	EventRoundEnded          GameEventType = "round_ended"
	EventTableFinished       GameEventType = "table_finished"
	EventSpectateRequested   GameEventType = "spectate_requested"
	EventSpectateGranted     GameEventType = "spectate_granted"
	EventSpectateDenied      GameEventType = "spectate_denied"
	EventPrivateSyncState    GameEventType = "private_sync_state"
	EventPrivateCommandError GameEventType = "private_command_error"
)

// EventUser is used within GameEvent payloads for user identification.
type EventUser struct {
	ID uuid.UUID `json:"id"`
}

// GameEvent holds data about an event that can be broadcast to the clients in a consistent format.
type GameEvent struct {
	Type    GameEventType          `json:"type"`
	Version uint64                 `json:"version"`
	User    *EventUser             `json:"user,omitempty"`
	Card    *models.Card           `json:"card,omitempty"`
	Payload map[string]interface{} `json:"payload,omitempty"`
	State   *Snapshot              `json:"state,omitempty"`
}
