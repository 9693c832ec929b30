// internal/game/store.go
package game

import (
	"context"

	"github.com/google/uuid"
	"github.com/jason-s-yu/rummy/internal/models"
)

// Store is the persistence collaborator of a Table. Every method is called with the table lock held,
// after a successful transition and before the command returns.
type Store interface {
	LoadTable(ctx context.Context, id uuid.UUID) (*TableRecord, error)
	SaveTable(ctx context.Context, rec *TableRecord) error
	// FinishRound writes the table row and appends the round to history atomically.
	FinishRound(ctx context.Context, rec *TableRecord, summary RoundSummary) error
}

// TableRecord is the persisted form of a Table, including the live round.
type TableRecord struct {
	ID               uuid.UUID            `json:"id"`
	Code             string               `json:"code"`
	HostUserID       uuid.UUID            `json:"host_user_id"`
	WildMode         WildJokerMode        `json:"wild_mode"`
	Rules            Rules                `json:"rules"`
	Status           TableStatus          `json:"status"`
	Players          []*models.Player     `json:"players"`
	CurrentRound     *Round               `json:"current_round,omitempty"`
	History          []RoundSummary       `json:"history"`
	CumulativeScores map[uuid.UUID]int    `json:"cumulative_scores"`
	SpectateRequests map[uuid.UUID]string `json:"spectate_requests"`
	Version          uint64               `json:"version"`
}

// RoundSummary is the archived result of a finished round.
type RoundSummary struct {
	TableID      uuid.UUID           `json:"table_id"`
	Number       int                 `json:"number"`
	WinnerUserID uuid.UUID           `json:"winner_user_id"`
	Aborted      bool                `json:"aborted"`
	WildRank     *models.Rank        `json:"wild_rank,omitempty"`
	Scores       map[uuid.UUID]Score `json:"scores"`
	Reveal       *RoundReveal        `json:"reveal,omitempty"`
}
