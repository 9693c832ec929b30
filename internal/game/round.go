// internal/game/round.go
package game

import (
	"errors"
	"math/rand"

	"github.com/google/uuid"
	"github.com/jason-s-yu/rummy/internal/models"
)

// RoundStatus is the lifecycle state of a round.
type RoundStatus string

const (
	RoundDealing         RoundStatus = "dealing"
	RoundActive          RoundStatus = "active"
	RoundAwaitingDeclare RoundStatus = "awaiting_declare_result"
	RoundFinished        RoundStatus = "finished"
)

// RoundPlayer is the per-round state of one seated player.
type RoundPlayer struct {
	UserID        uuid.UUID       `json:"user_id"`
	Seat          int             `json:"seat"`
	Hand          []models.Card   `json:"hand"`
	Locked        [][]models.Card `json:"locked"`
	HasDrawn      bool            `json:"has_drawn"`       // holds 14 cards this turn
	DrewThisRound bool            `json:"drew_this_round"` // decides the drop penalty
	LastDrawn     *models.Card    `json:"last_drawn,omitempty"`
	Dropped       bool            `json:"dropped"`
	Disqualified  bool            `json:"disqualified"`
}

func (p *RoundPlayer) live() bool {
	return !p.Dropped && !p.Disqualified
}

// lockedCards flattens every locked meld of the player.
func (p *RoundPlayer) lockedCards() []models.Card {
	var out []models.Card
	for _, m := range p.Locked {
		out = append(out, m...)
	}
	return out
}

// LockResult is returned by a successful LockMeld.
type LockResult struct {
	Kind         MeldKind     `json:"kind"`
	WildRevealed bool         `json:"wild_joker_revealed"`
	WildRank     *models.Rank `json:"wild_joker_rank,omitempty"`
	RevealedNow  bool         `json:"revealed_now"`
}

// DeclareOutcome is the scored result of a declaration. An invalid declaration is an outcome, not an error.
type DeclareOutcome struct {
	Valid        bool                `json:"valid"`
	Reason       string              `json:"reason,omitempty"`
	WinnerUserID uuid.UUID           `json:"winner_user_id"`
	Scores       map[uuid.UUID]Score `json:"scores"`
}

// Round owns the cards and turn pointer of one hand of Rummy. It is not safe for concurrent use; the
// owning Table serializes access.
type Round struct {
	Number        int                 `json:"number"`
	Mode          WildJokerMode       `json:"mode"`
	Rules         Rules               `json:"rules"`
	DeckCount     int                 `json:"deck_count"`
	Shoe          *Shoe               `json:"shoe"`
	DiscardPile   []models.Card       `json:"discard_pile"`
	Players       []*RoundPlayer      `json:"players"`
	FirstPlayerID uuid.UUID           `json:"first_player_id"`
	ActiveUserID  uuid.UUID           `json:"active_user_id"`
	WildRank      *models.Rank        `json:"wild_rank,omitempty"`
	WildRevealed  bool                `json:"wild_revealed"`
	WildCard      *models.Card        `json:"wild_card,omitempty"`
	Status        RoundStatus         `json:"status"`
	WinnerUserID  uuid.UUID           `json:"winner_user_id"`
	Aborted       bool                `json:"aborted"`
	Scores        map[uuid.UUID]Score `json:"scores"`
	Reveal        *RoundReveal        `json:"reveal,omitempty"`
	Reshuffles    int                 `json:"reshuffles"`

	rng *rand.Rand
}

// SeatedUser is the input to NewRound: a player and the seat they occupy.
type SeatedUser struct {
	UserID uuid.UUID
	Seat   int
}

// NewRound shuffles a fresh shoe, deals 13 cards to every player, cuts the wild joker when the mode uses
// one and flips the first discard. Players must be in seat order.
func NewRound(number int, seated []SeatedUser, firstPlayer uuid.UUID, mode WildJokerMode, rules Rules, r *rand.Rand) (*Round, error) {
	if len(seated) < MinPlayers {
		return nil, ErrNotEnoughPlayers
	}
	if len(seated) > MaxPlayers {
		return nil, ErrTableFull
	}

	round := &Round{
		Number:        number,
		Mode:          mode,
		Rules:         rules,
		DeckCount:     DecksFor(len(seated)),
		FirstPlayerID: firstPlayer,
		ActiveUserID:  firstPlayer,
		Status:        RoundDealing,
		Scores:        make(map[uuid.UUID]Score),
		rng:           r,
	}
	for _, s := range seated {
		round.Players = append(round.Players, &RoundPlayer{
			UserID: s.UserID,
			Seat:   s.Seat,
			Hand:   make([]models.Card, 0, HandSize+1),
			Locked: [][]models.Card{},
		})
	}
	if round.player(firstPlayer) == nil {
		round.FirstPlayerID = round.Players[0].UserID
		round.ActiveUserID = round.FirstPlayerID
	}

	round.Shoe = BuildShoe(round.DeckCount)
	round.Shoe.Shuffle(r)

	for i := 0; i < HandSize; i++ {
		for _, p := range round.Players {
			c, err := round.Shoe.Draw()
			if err != nil {
				return nil, err
			}
			p.Hand = append(p.Hand, c)
		}
	}

	if mode == OpenWildcard || mode == CloseWildcard {
		cut, err := round.Shoe.Draw()
		if err != nil {
			return nil, err
		}
		rank := cut.Rank
		if cut.IsJoker() {
			rank = models.RankAce
		}
		round.WildRank = &rank
		round.WildCard = &cut
		round.WildRevealed = mode == OpenWildcard
		round.Shoe.PutBottom(cut)
	}

	first, err := round.Shoe.Draw()
	if err != nil {
		return nil, err
	}
	round.DiscardPile = []models.Card{first}
	round.Status = RoundActive
	return round, nil
}

// SetRand attaches the random source used for reshuffles. Used after restoring a persisted round.
func (r *Round) SetRand(rng *rand.Rand) {
	r.rng = rng
}

// CardCount is the number of cards in the shoe, the discard pile and every hand.
func (r *Round) CardCount() int {
	n := r.Shoe.Len() + len(r.DiscardPile)
	for _, p := range r.Players {
		n += len(p.Hand)
	}
	return n
}

// Player returns the round state of a user, or nil.
func (r *Round) Player(userID uuid.UUID) *RoundPlayer {
	return r.player(userID)
}

func (r *Round) player(userID uuid.UUID) *RoundPlayer {
	for _, p := range r.Players {
		if p.UserID == userID {
			return p
		}
	}
	return nil
}

func (r *Round) liveCount() int {
	n := 0
	for _, p := range r.Players {
		if p.live() {
			n++
		}
	}
	return n
}

// DiscardTop returns the top of the discard pile.
func (r *Round) DiscardTop() (models.Card, bool) {
	if len(r.DiscardPile) == 0 {
		return models.Card{}, false
	}
	return r.DiscardPile[len(r.DiscardPile)-1], true
}

// requireTurn checks the round accepts turn actions from userID.
func (r *Round) requireTurn(userID uuid.UUID) (*RoundPlayer, error) {
	if r.Status != RoundActive {
		return nil, ErrRoundNotActive
	}
	p := r.player(userID)
	if p == nil || !p.live() {
		return nil, ErrNotInRound
	}
	if r.ActiveUserID != userID {
		return nil, ErrOutOfTurn
	}
	return p, nil
}

// DrawFromStock moves the top shoe card into the active player's hand. An empty shoe is refilled from
// the discard pile minus its top card; when nothing can be recycled the round is aborted.
func (r *Round) DrawFromStock(userID uuid.UUID) (models.Card, error) {
	p, err := r.requireTurn(userID)
	if err != nil {
		return models.Card{}, err
	}
	if p.HasDrawn {
		return models.Card{}, ErrAlreadyDrawn
	}

	if r.Shoe.Len() == 0 {
		if len(r.DiscardPile) <= 1 {
			r.abort()
			return models.Card{}, ErrStockExhausted
		}
		r.recycleDiscard()
	}

	c, err := r.Shoe.Draw()
	if err != nil {
		return models.Card{}, err
	}
	r.takeIntoHand(p, c)
	return c, nil
}

// recycleDiscard shuffles every discard except the top card back into the shoe.
func (r *Round) recycleDiscard() {
	top := r.DiscardPile[len(r.DiscardPile)-1]
	r.Shoe.Cards = append(r.Shoe.Cards, r.DiscardPile[:len(r.DiscardPile)-1]...)
	r.Shoe.Shuffle(r.rng)
	r.DiscardPile = []models.Card{top}
	r.Reshuffles++
}

// DrawFromDiscard moves the top discard into the active player's hand.
func (r *Round) DrawFromDiscard(userID uuid.UUID) (models.Card, error) {
	p, err := r.requireTurn(userID)
	if err != nil {
		return models.Card{}, err
	}
	if p.HasDrawn {
		return models.Card{}, ErrAlreadyDrawn
	}
	c, ok := r.DiscardTop()
	if !ok {
		return models.Card{}, ErrEmptyDiscard
	}
	r.DiscardPile = r.DiscardPile[:len(r.DiscardPile)-1]
	r.takeIntoHand(p, c)
	return c, nil
}

func (r *Round) takeIntoHand(p *RoundPlayer, c models.Card) {
	p.Hand = append(p.Hand, c)
	p.HasDrawn = true
	p.DrewThisRound = true
	drawn := c
	p.LastDrawn = &drawn
}

// Discard puts a card from the active player's 14-card hand on the discard pile and passes the turn.
func (r *Round) Discard(userID uuid.UUID, card models.Card) error {
	p, err := r.requireTurn(userID)
	if err != nil {
		return err
	}
	if !p.HasDrawn {
		return ErrNotDrawn
	}
	idx := indexOfCard(p.Hand, card)
	if idx < 0 {
		return ErrCardNotInHand
	}
	if countCard(p.Hand, card) <= countCard(p.lockedCards(), card) {
		return ErrCardLocked
	}

	p.Hand = append(p.Hand[:idx], p.Hand[idx+1:]...)
	r.DiscardPile = append(r.DiscardPile, card)
	p.HasDrawn = false
	p.LastDrawn = nil
	r.advanceTurn()
	return nil
}

// advanceTurn moves ActiveUserID to the next live player in seat order, wrapping around.
func (r *Round) advanceTurn() {
	n := len(r.Players)
	cur := 0
	for i, p := range r.Players {
		if p.UserID == r.ActiveUserID {
			cur = i
			break
		}
	}
	for step := 1; step <= n; step++ {
		next := r.Players[(cur+step)%n]
		if next.live() {
			r.ActiveUserID = next.UserID
			return
		}
	}
}

// LockMeld commits a meld from the active player's hand. The cards stay in the hand but can no longer be
// discarded. In close_wildcard mode only pure sequences can be locked until the wild rank is revealed, and the
// first one reveals it.
func (r *Round) LockMeld(userID uuid.UUID, cards []models.Card) (LockResult, error) {
	p, err := r.requireTurn(userID)
	if err != nil {
		return LockResult{}, err
	}
	free, ok := removeCards(p.Hand, p.lockedCards())
	if !ok {
		free = p.Hand
	}
	if _, ok := removeCards(free, cards); !ok {
		return LockResult{}, ErrCardNotInHand
	}

	kind := Classify(cards, r.WildRank, r.WildRevealed)
	if r.Mode == CloseWildcard && !r.WildRevealed && kind != MeldPure {
		return LockResult{}, ErrInvalidMeld
	}
	if !kind.Valid() {
		return LockResult{}, ErrInvalidMeld
	}

	p.Locked = append(p.Locked, append([]models.Card(nil), cards...))
	res := LockResult{Kind: kind}
	if r.Mode == CloseWildcard && !r.WildRevealed && r.WildRank != nil {
		r.WildRevealed = true
		res.RevealedNow = true
	}
	res.WildRevealed = r.WildRevealed
	if r.WildRevealed {
		res.WildRank = r.WildRank
	}
	return res, nil
}

// Declare ends the round with the active player's final grouping. The player must have drawn this turn.
// Turn, status, draw and card ownership are checked first and reject without changing state. Exactly one
// card left out of the groups is discarded.
func (r *Round) Declare(userID uuid.UUID, groups [][]models.Card) (DeclareOutcome, error) {
	p, err := r.requireTurn(userID)
	if err != nil {
		return DeclareOutcome{}, err
	}
	if !p.HasDrawn {
		return DeclareOutcome{}, ErrNotDrawn
	}
	var flat []models.Card
	for _, g := range groups {
		flat = append(flat, g...)
	}
	leftover, ok := removeCards(p.Hand, flat)
	if !ok {
		return DeclareOutcome{}, ErrCardNotInHand
	}

	r.Status = RoundAwaitingDeclare
	if len(p.Hand) == HandSize+1 && len(leftover) == 1 {
		r.DiscardPile = append(r.DiscardPile, leftover[0])
		p.Hand = append([]models.Card(nil), flat...)
		leftover = nil
	}
	p.HasDrawn = false
	p.LastDrawn = nil

	out := DeclareOutcome{Valid: true}
	if err := ValidateDeclaration(groups, r.WildRank, r.WildRevealed); err != nil {
		out.Valid = false
		out.Reason = err.Error()
		var decl *InvalidDeclarationError
		if errors.As(err, &decl) {
			out.Reason = decl.Reason
		}
	}

	declared := make([]Meld, 0, len(groups))
	for _, g := range groups {
		declared = append(declared, Meld{Kind: Classify(g, r.WildRank, r.WildRevealed), Cards: append([]models.Card(nil), g...)})
	}

	if out.Valid {
		r.WinnerUserID = userID
		r.Scores[userID] = Score{Points: 0, IsWinner: true, Reason: ScoreReasonWinner}
		for _, other := range r.Players {
			if other.UserID == userID || !other.live() {
				continue
			}
			org := Organize(other.Hand, other.Locked, r.WildRank, r.WildRevealed)
			pts := ScoreLoss(other.Hand, org.Groups(), r.WildRank, r.WildRevealed, r.Rules.MaxPoints)
			r.Scores[other.UserID] = Score{Points: pts, Reason: ScoreReasonDeadwood}
		}
	} else {
		r.Scores[userID] = Score{Points: r.Rules.InvalidDeclarePenalty, Reason: ScoreReasonInvalidDeclare}
		for _, other := range r.Players {
			if other.UserID != userID && other.live() {
				r.Scores[other.UserID] = Score{Points: 0}
			}
		}
	}

	r.finish(map[uuid.UUID]Organization{userID: {Melds: declared, Deadwood: nonNil(leftover)}})
	out.WinnerUserID = r.WinnerUserID
	out.Scores = r.Scores
	return out, nil
}

// Drop withdraws a player who has not drawn this turn. Dropping before any draw this round costs
// DropPenalty, later MidDropPenalty. More than two live players are required.
func (r *Round) Drop(userID uuid.UUID) error {
	if r.Status != RoundActive {
		return ErrRoundNotActive
	}
	p := r.player(userID)
	if p == nil || !p.live() {
		return ErrNotInRound
	}
	if p.HasDrawn || len(p.Hand) != HandSize {
		return ErrDropNotAllowed
	}
	if r.liveCount() <= 2 {
		return ErrDropNotAllowed
	}

	penalty, reason := r.Rules.DropPenalty, ScoreReasonDrop
	if p.DrewThisRound {
		penalty, reason = r.Rules.MidDropPenalty, ScoreReasonMidDrop
	}
	p.Dropped = true
	r.Scores[userID] = Score{Points: penalty, Reason: reason}
	r.afterWithdrawal(userID)
	return nil
}

// ForceDrop disqualifies a player regardless of turn or hand size and charges MidDropPenalty. A drawn
// 14th card goes back on the discard pile. It is the entry point for idle and leave policies.
func (r *Round) ForceDrop(userID uuid.UUID) error {
	if r.Status != RoundActive {
		return ErrRoundNotActive
	}
	p := r.player(userID)
	if p == nil || !p.live() {
		return ErrNotInRound
	}

	if len(p.Hand) > HandSize {
		back := p.Hand[len(p.Hand)-1]
		if p.LastDrawn != nil && indexOfCard(p.Hand, *p.LastDrawn) >= 0 {
			back = *p.LastDrawn
		}
		idx := indexOfCard(p.Hand, back)
		p.Hand = append(p.Hand[:idx], p.Hand[idx+1:]...)
		r.DiscardPile = append(r.DiscardPile, back)
	}
	p.HasDrawn = false
	p.LastDrawn = nil
	p.Disqualified = true
	r.Scores[userID] = Score{Points: r.Rules.MidDropPenalty, Reason: ScoreReasonDisqualified}
	r.afterWithdrawal(userID)
	return nil
}

// afterWithdrawal passes the turn if the withdrawn player held it and ends the round when one player is left.
func (r *Round) afterWithdrawal(userID uuid.UUID) {
	if r.ActiveUserID == userID {
		r.advanceTurn()
	}
	switch r.liveCount() {
	case 0:
		r.finish(nil)
	case 1:
		for _, p := range r.Players {
			if p.live() {
				r.WinnerUserID = p.UserID
				r.Scores[p.UserID] = Score{Points: 0, IsWinner: true, Reason: ScoreReasonWinner}
				r.ActiveUserID = p.UserID
			}
		}
		r.finish(nil)
	}
}

// abort ends the round without a winner. Penalties already charged stand; everyone else scores 0.
func (r *Round) abort() {
	r.Aborted = true
	for _, p := range r.Players {
		if _, ok := r.Scores[p.UserID]; !ok {
			r.Scores[p.UserID] = Score{Points: 0}
		}
	}
	r.finish(nil)
}

// finish moves the round to finished and builds the reveal. Organizations given in override replace the
// automatic grouping for those players.
func (r *Round) finish(override map[uuid.UUID]Organization) {
	for _, p := range r.Players {
		if _, ok := r.Scores[p.UserID]; !ok {
			r.Scores[p.UserID] = Score{Points: 0}
		}
	}
	r.Status = RoundFinished
	r.Reveal = r.buildReveal(override)
}

func nonNil(cards []models.Card) []models.Card {
	if cards == nil {
		return []models.Card{}
	}
	return cards
}
