// internal/models/game_action.go
package models

import (
	"github.com/google/uuid"
)

// GameAction captures a player's command as received from the transport layer.
type GameAction struct {
	ActionType string                 `json:"action_type"`
	TableID    uuid.UUID              `json:"table_id"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
}

// Action types accepted by the engine.
const (
	ActionCreateTable     = "create_table"
	ActionJoinTable       = "join_table"
	ActionJoinByCode      = "join_by_code"
	ActionStartGame       = "start_game"
	ActionDrawStock       = "draw_stock"
	ActionDrawDiscard     = "draw_discard"
	ActionDiscard         = "discard"
	ActionLockMeld        = "lock_meld"
	ActionDeclare         = "declare"
	ActionDrop            = "drop"
	ActionForceDrop       = "force_drop"
	ActionRequestSpectate = "request_spectate"
	ActionGrantSpectate   = "grant_spectate"
	ActionNextRound       = "next_round"
	ActionLeave           = "leave"
	ActionClose           = "close"
)
