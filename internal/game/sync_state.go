// internal/game/sync_state.go
package game

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jason-s-yu/rummy/internal/models"
)

// PlayerView is one roster entry as seen by any table member.
type PlayerView struct {
	UserID           uuid.UUID `json:"user_id"`
	Seat             int       `json:"seat"`
	DisplayName      string    `json:"display_name"`
	IsSpectator      bool      `json:"is_spectator"`
	Disqualified     bool      `json:"disqualified"`
	DroppedThisRound bool      `json:"dropped_this_round"`
	Left             bool      `json:"left"`
	Connected        bool      `json:"connected"`
	IsHost           bool      `json:"is_host"`
	IsActive         bool      `json:"is_active"`
	HandSize         int       `json:"hand_size"`
	TotalScore       int       `json:"total_score"`
}

// RoundView is the round as seen by one viewer. Only the viewer's own hand is included.
type RoundView struct {
	Number        int             `json:"number"`
	Status        RoundStatus     `json:"status"`
	ActiveUserID  uuid.UUID       `json:"active_user_id"`
	FirstPlayerID uuid.UUID       `json:"first_player_id"`
	StockCount    int             `json:"stock_count"`
	DiscardSize   int             `json:"discard_size"`
	DiscardTop    *models.Card    `json:"discard_top,omitempty"`
	WildRevealed  bool            `json:"wild_joker_revealed"`
	WildRank      *models.Rank    `json:"wild_joker_rank,omitempty"`
	MyHand        []models.Card   `json:"my_hand,omitempty"`
	MyLocked      [][]models.Card `json:"my_locked,omitempty"`
	HasDrawn      bool            `json:"has_drawn"`
	Reveal        *RoundReveal    `json:"reveal,omitempty"`
}

// Snapshot is the state pushed to one table member after every change.
type Snapshot struct {
	TableID           uuid.UUID     `json:"table_id"`
	Code              string        `json:"code"`
	HostUserID        uuid.UUID     `json:"host_user_id"`
	WildMode          WildJokerMode `json:"wild_mode"`
	Status            TableStatus   `json:"status"`
	Version           uint64        `json:"version"`
	Players           []PlayerView  `json:"players"`
	Round             *RoundView    `json:"round,omitempty"`
	RoundsPlayed      int           `json:"rounds_played"`
	PendingSpectators []uuid.UUID   `json:"pending_spectators,omitempty"` // host only
}

// RevealedHand is one player's hand at round end.
type RevealedHand struct {
	UserID       uuid.UUID     `json:"user_id"`
	Seat         int           `json:"seat"`
	Melds        []Meld        `json:"melds"`
	Deadwood     []models.Card `json:"deadwood"`
	Points       int           `json:"points"`
	IsWinner     bool          `json:"is_winner"`
	Dropped      bool          `json:"dropped"`
	Disqualified bool          `json:"disqualified"`
}

// RoundReveal is published once a round finishes; it is the only time every hand is visible.
type RoundReveal struct {
	RoundNumber  int            `json:"round_number"`
	WinnerUserID *uuid.UUID     `json:"winner_user_id,omitempty"`
	Aborted      bool           `json:"aborted"`
	WildRank     *models.Rank   `json:"wild_joker_rank,omitempty"`
	Hands        []RevealedHand `json:"hands"`
}

// buildReveal organizes every hand for display. Assumes the round is finished.
func (r *Round) buildReveal(override map[uuid.UUID]Organization) *RoundReveal {
	rev := &RoundReveal{
		RoundNumber: r.Number,
		Aborted:     r.Aborted,
		WildRank:    r.WildRank,
	}
	if r.WinnerUserID != uuid.Nil {
		w := r.WinnerUserID
		rev.WinnerUserID = &w
	}
	for _, p := range r.Players {
		org, ok := override[p.UserID]
		if !ok {
			org = Organize(p.Hand, p.Locked, r.WildRank, r.WildRevealed)
		}
		score := r.Scores[p.UserID]
		rev.Hands = append(rev.Hands, RevealedHand{
			UserID:       p.UserID,
			Seat:         p.Seat,
			Melds:        org.Melds,
			Deadwood:     org.Deadwood,
			Points:       score.Points,
			IsWinner:     score.IsWinner,
			Dropped:      p.Dropped,
			Disqualified: p.Disqualified,
		})
	}
	return rev
}

// Snapshot returns the table as seen by viewer. It takes the read lock, so it never waits for more than
// one command.
func (t *Table) Snapshot(viewer uuid.UUID) Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snapshotLocked(viewer)
}

// SnapshotJSON encodes Snapshot. Two reads with no command in between are byte-identical.
func (t *Table) SnapshotJSON(viewer uuid.UUID) ([]byte, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return json.Marshal(t.snapshotLocked(viewer))
}

// snapshotLocked builds the viewer's snapshot. Assumes the lock is held.
func (t *Table) snapshotLocked(viewer uuid.UUID) Snapshot {
	snap := Snapshot{
		TableID:      t.ID,
		Code:         t.Code,
		HostUserID:   t.HostUserID,
		WildMode:     t.WildMode,
		Status:       t.Status,
		Version:      t.Version,
		RoundsPlayed: len(t.History),
		Players:      make([]PlayerView, 0, len(t.Players)),
	}

	rnd := t.CurrentRound
	for _, p := range t.Players {
		pv := PlayerView{
			UserID:           p.UserID,
			Seat:             p.Seat,
			DisplayName:      p.DisplayName,
			IsSpectator:      p.IsSpectator,
			Disqualified:     p.Disqualified,
			DroppedThisRound: p.DroppedThisRound,
			Left:             p.Left,
			Connected:        p.Connected,
			IsHost:           p.UserID == t.HostUserID,
			TotalScore:       t.CumulativeScores[p.UserID],
		}
		if rnd != nil {
			if rp := rnd.player(p.UserID); rp != nil {
				pv.HandSize = len(rp.Hand)
				pv.IsActive = rnd.Status == RoundActive && rnd.ActiveUserID == p.UserID
			}
		}
		snap.Players = append(snap.Players, pv)
	}

	if viewer == t.HostUserID && len(t.SpectateRequests) > 0 {
		snap.PendingSpectators = t.sortedRequests()
	}

	if rnd == nil {
		return snap
	}
	rv := &RoundView{
		Number:        rnd.Number,
		Status:        rnd.Status,
		ActiveUserID:  rnd.ActiveUserID,
		FirstPlayerID: rnd.FirstPlayerID,
		StockCount:    rnd.Shoe.Len(),
		DiscardSize:   len(rnd.DiscardPile),
		WildRevealed:  rnd.WildRevealed,
	}
	if top, ok := rnd.DiscardTop(); ok {
		rv.DiscardTop = &top
	}
	if rnd.WildRevealed || rnd.Status == RoundFinished {
		rv.WildRank = rnd.WildRank
	}
	if me := rnd.player(viewer); me != nil {
		rv.MyHand = append([]models.Card(nil), me.Hand...)
		for _, m := range me.Locked {
			rv.MyLocked = append(rv.MyLocked, append([]models.Card(nil), m...))
		}
		rv.HasDrawn = me.HasDrawn
	}
	if rnd.Status == RoundFinished {
		rv.Reveal = rnd.Reveal
	}
	snap.Round = rv
	return snap
}
