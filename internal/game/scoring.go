// internal/game/scoring.go
package game

import (
	"github.com/google/uuid"
	"github.com/jason-s-yu/rummy/internal/models"
)

// Score is one player's result for a round.
type Score struct {
	Points   int    `json:"points"`
	IsWinner bool   `json:"is_winner"`
	Reason   string `json:"reason,omitempty"`
}

const (
	ScoreReasonDeadwood       = "deadwood"
	ScoreReasonDrop           = "drop"
	ScoreReasonMidDrop        = "mid_drop"
	ScoreReasonDisqualified   = "disqualified"
	ScoreReasonInvalidDeclare = "invalid_declare"
	ScoreReasonWinner         = "winner"
)

// ScoreLoss sums the card values of every card in hand that is not covered by a valid meld, capped at maxPoints.
// Invalid groups in melds are ignored, so their cards count as deadwood.
func ScoreLoss(hand []models.Card, melds [][]models.Card, wildRank *models.Rank, revealed bool, maxPoints int) int {
	pool := append([]models.Card(nil), hand...)
	for _, m := range melds {
		if !Classify(m, wildRank, revealed).Valid() {
			continue
		}
		if rest, ok := removeCards(pool, m); ok {
			pool = rest
		}
	}

	points := 0
	for _, c := range pool {
		points += CardValue(c, wildRank, revealed)
	}
	if maxPoints > 0 && points > maxPoints {
		points = maxPoints
	}
	return points
}

// ApplyRoundScores adds every round score to the running totals.
func ApplyRoundScores(totals map[uuid.UUID]int, scores map[uuid.UUID]Score) {
	for id, s := range scores {
		totals[id] += s.Points
	}
}
