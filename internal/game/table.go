// internal/game/table.go
package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/rummy/internal/cache"
	"github.com/jason-s-yu/rummy/internal/models"
	"github.com/sirupsen/logrus"
)

// TableStatus is the lifecycle state of a table.
type TableStatus string

const (
	TableWaiting  TableStatus = "waiting"
	TablePlaying  TableStatus = "playing"
	TableFinished TableStatus = "finished"
)

// TableOptions carries the collaborators of a table. Every field is optional.
type TableOptions struct {
	Store  Store
	Logger *logrus.Logger
	Rand   *rand.Rand
}

// Table is the unit of locking: one mutating command at a time, snapshots under the read lock.
// Exported fields are guarded by the table lock; read them through Snapshot.
type Table struct {
	mu sync.RWMutex

	ID               uuid.UUID
	Code             string
	HostUserID       uuid.UUID
	WildMode         WildJokerMode
	Rules            Rules
	Status           TableStatus
	Players          []*models.Player
	CurrentRound     *Round
	History          []RoundSummary
	CumulativeScores map[uuid.UUID]int
	SpectateRequests map[uuid.UUID]string
	Version          uint64

	// BroadcastFn sends a public event to every connection at the table.
	BroadcastFn func(ev GameEvent)
	// BroadcastToPlayerFn sends a private event to one member.
	BroadcastToPlayerFn func(userID uuid.UUID, ev GameEvent)

	lastActivity time.Time
	actionIndex  int
	rng          *rand.Rand
	store        Store
	log          *logrus.Entry
}

// NewTable creates a waiting table with the host in seat 0.
func NewTable(hostID uuid.UUID, hostName string, code string, mode WildJokerMode, rules Rules, opts TableOptions) *Table {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	t := &Table{
		ID:               id,
		Code:             code,
		HostUserID:       hostID,
		WildMode:         mode,
		Rules:            rules,
		Status:           TableWaiting,
		Players:          []*models.Player{models.NewPlayer(hostID, 0, hostName)},
		History:          []RoundSummary{},
		CumulativeScores: make(map[uuid.UUID]int),
		SpectateRequests: make(map[uuid.UUID]string),
	}
	t.attach(opts)
	return t
}

// RestoreTable rebuilds a table from its persisted record.
func RestoreTable(rec *TableRecord, opts TableOptions) *Table {
	t := &Table{
		ID:               rec.ID,
		Code:             rec.Code,
		HostUserID:       rec.HostUserID,
		WildMode:         rec.WildMode,
		Rules:            rec.Rules,
		Status:           rec.Status,
		Players:          rec.Players,
		CurrentRound:     rec.CurrentRound,
		History:          rec.History,
		CumulativeScores: rec.CumulativeScores,
		SpectateRequests: rec.SpectateRequests,
		Version:          rec.Version,
	}
	if t.History == nil {
		t.History = []RoundSummary{}
	}
	if t.CumulativeScores == nil {
		t.CumulativeScores = make(map[uuid.UUID]int)
	}
	if t.SpectateRequests == nil {
		t.SpectateRequests = make(map[uuid.UUID]string)
	}
	for _, p := range t.Players {
		p.Connected = false
	}
	t.attach(opts)
	if t.CurrentRound != nil {
		t.CurrentRound.SetRand(t.rng)
	}
	return t
}

func (t *Table) attach(opts TableOptions) {
	t.store = opts.Store
	t.rng = opts.Rand
	if t.rng == nil {
		t.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	t.log = logger.WithField("table_id", t.ID)
	t.lastActivity = time.Now()
}

// SetBroadcasters installs the transport hooks.
func (t *Table) SetBroadcasters(all func(ev GameEvent), one func(userID uuid.UUID, ev GameEvent)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.BroadcastFn = all
	t.BroadcastToPlayerFn = one
}

// Join seats a user at the lowest free seat, or adds them as a spectator. A user who is already a
// member gets their existing seat back.
func (t *Table) Join(ctx context.Context, userID uuid.UUID, name string, asSpectator bool) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.Status == TableFinished {
		return 0, ErrTableClosed
	}
	if p := t.memberLocked(userID); p != nil {
		if !p.Left {
			return p.Seat, nil
		}
		p.Left = false
		return p.Seat, t.commit(ctx, userID, GameEvent{
			Type:    EventPlayerJoined,
			User:    &EventUser{ID: userID},
			Payload: map[string]interface{}{"seat": p.Seat, "rejoined": true},
		}, nil)
	}

	var p *models.Player
	if asSpectator {
		p = models.NewSpectator(userID, name)
		delete(t.SpectateRequests, userID)
	} else {
		if t.Status != TableWaiting {
			return 0, ErrAlreadyStarted
		}
		if len(t.seatedLocked()) >= MaxPlayers {
			return 0, ErrTableFull
		}
		p = models.NewPlayer(userID, t.lowestFreeSeatLocked(), name)
	}
	t.Players = append(t.Players, p)
	t.sortPlayersLocked()

	return p.Seat, t.commit(ctx, userID, GameEvent{
		Type:    EventPlayerJoined,
		User:    &EventUser{ID: userID},
		Payload: map[string]interface{}{"seat": p.Seat, "spectator": p.IsSpectator, "display_name": p.DisplayName},
	}, nil)
}

// Leave removes a user. Before the game starts, and for spectators, the user is removed at once. A
// seated player leaving mid-game is force-dropped and keeps the seat until the next round.
func (t *Table) Leave(ctx context.Context, userID uuid.UUID) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.Status == TableFinished {
		return ErrTableClosed
	}
	p := t.memberLocked(userID)
	if p == nil || p.Left {
		return ErrNotMember
	}

	var summary *RoundSummary
	if p.IsSpectator || t.Status == TableWaiting {
		t.removePlayerLocked(userID)
	} else {
		if rnd := t.CurrentRound; rnd != nil && rnd.Status == RoundActive {
			prev := rnd.Status
			if err := rnd.ForceDrop(userID); err != nil && !errors.Is(err, ErrNotInRound) {
				return err
			}
			t.syncRoundFlagsLocked()
			summary = t.settleRoundLocked(prev)
		}
		p.Left = true
	}

	if userID == t.HostUserID {
		t.transferHostLocked()
	}
	if t.Status == TableWaiting && len(t.seatedLocked()) == 0 {
		t.Status = TableFinished
	}

	return t.commit(ctx, userID, GameEvent{
		Type: EventPlayerLeft,
		User: &EventUser{ID: userID},
	}, summary)
}

// SetConnected records a member's transport connection state. It is not persisted.
func (t *Table) SetConnected(userID uuid.UUID, connected bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p := t.memberLocked(userID)
	if p == nil || p.Connected == connected {
		return
	}
	p.Connected = connected
	t.Version++
	t.lastActivity = time.Now()
	t.fireEvent(GameEvent{
		Type:    EventPlayerConnection,
		Version: t.Version,
		User:    &EventUser{ID: userID},
		Payload: map[string]interface{}{"connected": connected},
	})
	t.broadcastSyncStateToAll()
}

// StartGame deals the first round. Only the host can start, with at least two seated players. The deck
// count is always derived from the player count; deckHint is advisory.
func (t *Table) StartGame(ctx context.Context, caller uuid.UUID, deckHint int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.Status == TableFinished {
		return ErrTableClosed
	}
	if t.Status != TableWaiting {
		return ErrAlreadyStarted
	}
	if caller != t.HostUserID {
		return ErrNotHost
	}
	seated := t.seatedLocked()
	if len(seated) < MinPlayers {
		return ErrNotEnoughPlayers
	}

	decks := DecksFor(len(seated))
	if deckHint > 0 && deckHint != decks {
		t.log.WithFields(logrus.Fields{"hint": deckHint, "decks": decks}).Debug("ignoring client deck count")
	}

	rnd, err := t.dealLocked(1, seated, seated[0].UserID)
	if err != nil {
		return err
	}
	t.CurrentRound = rnd
	t.Status = TablePlaying

	t.log.WithFields(logrus.Fields{"players": len(seated), "decks": decks}).Info("game started")
	return t.commit(ctx, caller, GameEvent{
		Type: EventGameStarted,
		User: &EventUser{ID: caller},
		Payload: map[string]interface{}{
			"round":           rnd.Number,
			"deck_count":      rnd.DeckCount,
			"first_player_id": rnd.FirstPlayerID,
		},
	}, nil)
}

// AdvanceToNextRound deals the next round once the current one is finished. Any seated member may call
// it. The first player rotates to the seat after the previous first player. Players who left are
// released; with fewer than two players remaining the table finishes instead.
func (t *Table) AdvanceToNextRound(ctx context.Context, caller uuid.UUID) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.Status == TableFinished {
		return ErrTableClosed
	}
	p := t.memberLocked(caller)
	if p == nil || p.IsSpectator || p.Left {
		return ErrNotMember
	}
	prev := t.CurrentRound
	if prev == nil {
		return ErrNoRound
	}
	if prev.Status != RoundFinished {
		return ErrRoundNotFinished
	}

	prevFirstSeat := -1
	if fp := prev.player(prev.FirstPlayerID); fp != nil {
		prevFirstSeat = fp.Seat
	}
	for _, gone := range t.departedLocked() {
		t.removePlayerLocked(gone)
	}

	seated := t.seatedLocked()
	if len(seated) < MinPlayers {
		t.Status = TableFinished
		t.log.Info("not enough players for another round, table finished")
		return t.commit(ctx, caller, GameEvent{
			Type:    EventTableFinished,
			Payload: map[string]interface{}{"scores": t.scoresPayloadLocked()},
		}, nil)
	}

	first := seated[0]
	for _, sp := range seated {
		if sp.Seat > prevFirstSeat {
			first = sp
			break
		}
	}

	rnd, err := t.dealLocked(prev.Number+1, seated, first.UserID)
	if err != nil {
		return err
	}
	t.CurrentRound = rnd
	return t.commit(ctx, caller, GameEvent{
		Type: EventRoundStarted,
		Payload: map[string]interface{}{
			"round":           rnd.Number,
			"deck_count":      rnd.DeckCount,
			"first_player_id": rnd.FirstPlayerID,
		},
	}, nil)
}

// dealLocked creates a round and clears the per-round player flags. Assumes lock is held.
func (t *Table) dealLocked(number int, seated []*models.Player, first uuid.UUID) (*Round, error) {
	users := make([]SeatedUser, 0, len(seated))
	for _, p := range seated {
		users = append(users, SeatedUser{UserID: p.UserID, Seat: p.Seat})
	}
	rnd, err := NewRound(number, users, first, t.WildMode, t.Rules, t.rng)
	if err != nil {
		return nil, fmt.Errorf("deal round %d: %w", number, err)
	}
	for _, p := range t.Players {
		p.Disqualified = false
		p.DroppedThisRound = false
	}
	return rnd, nil
}

// RequestSpectate records a pending request for the host to grant.
func (t *Table) RequestSpectate(ctx context.Context, userID uuid.UUID, name string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.Status == TableFinished {
		return ErrTableClosed
	}
	if t.memberLocked(userID) != nil {
		return nil
	}
	if _, pending := t.SpectateRequests[userID]; pending {
		return nil
	}
	t.SpectateRequests[userID] = name
	return t.commit(ctx, userID, GameEvent{
		Type:    EventSpectateRequested,
		User:    &EventUser{ID: userID},
		Payload: map[string]interface{}{"display_name": name},
	}, nil)
}

// GrantSpectate answers a pending request. Only the host may call it.
func (t *Table) GrantSpectate(ctx context.Context, caller, userID uuid.UUID, granted bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.Status == TableFinished {
		return ErrTableClosed
	}
	if caller != t.HostUserID {
		return ErrNotHost
	}
	name, ok := t.SpectateRequests[userID]
	if !ok {
		return ErrNoSpectateRequest
	}
	delete(t.SpectateRequests, userID)

	evType := EventSpectateDenied
	if granted {
		evType = EventSpectateGranted
		if t.memberLocked(userID) == nil {
			t.Players = append(t.Players, models.NewSpectator(userID, name))
			t.sortPlayersLocked()
		}
	}
	return t.commit(ctx, caller, GameEvent{
		Type: evType,
		User: &EventUser{ID: userID},
	}, nil)
}

// Close finishes the table. Only the host may close it.
func (t *Table) Close(ctx context.Context, caller uuid.UUID) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.Status == TableFinished {
		return ErrTableClosed
	}
	if caller != t.HostUserID {
		return ErrNotHost
	}
	t.Status = TableFinished
	return t.commit(ctx, caller, GameEvent{
		Type:    EventTableFinished,
		User:    &EventUser{ID: caller},
		Payload: map[string]interface{}{"scores": t.scoresPayloadLocked()},
	}, nil)
}

// roundLocked returns the round that turn commands apply to. Assumes lock is held.
func (t *Table) roundLocked() (*Round, error) {
	if t.Status == TableFinished {
		return nil, ErrTableClosed
	}
	if t.CurrentRound == nil {
		return nil, ErrNoRound
	}
	return t.CurrentRound, nil
}

// DrawFromStock draws the top card of the shoe for the active player.
func (t *Table) DrawFromStock(ctx context.Context, userID uuid.UUID) (models.Card, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rnd, err := t.roundLocked()
	if err != nil {
		return models.Card{}, err
	}
	prev, reshuffles := rnd.Status, rnd.Reshuffles
	card, err := rnd.DrawFromStock(userID)
	if errors.Is(err, ErrStockExhausted) {
		t.log.WithField("round", rnd.Number).Warn("stock and discard pile exhausted, round aborted")
		summary := t.settleRoundLocked(prev)
		if cerr := t.commit(ctx, userID, GameEvent{Type: EventRoundEnded, Payload: map[string]interface{}{"aborted": true}}, summary); cerr != nil {
			return models.Card{}, cerr
		}
		return models.Card{}, err
	}
	if err != nil {
		return models.Card{}, err
	}

	if rnd.Reshuffles != reshuffles {
		t.log.WithFields(logrus.Fields{"round": rnd.Number, "stock": rnd.Shoe.Len() + 1}).Info("stock empty, discard pile reshuffled into shoe")
		t.fireEvent(GameEvent{
			Type:    EventStockReshuffled,
			Version: t.Version + 1,
			Payload: map[string]interface{}{"stock_count": rnd.Shoe.Len()},
		})
		t.logAction(uuid.Nil, string(EventStockReshuffled), map[string]interface{}{"stock_count": rnd.Shoe.Len()})
	}
	return card, t.commit(ctx, userID, GameEvent{
		Type:    EventPlayerDrawStock,
		User:    &EventUser{ID: userID},
		Payload: map[string]interface{}{"stock_count": rnd.Shoe.Len()},
	}, nil)
}

// DrawFromDiscard takes the top discard for the active player.
func (t *Table) DrawFromDiscard(ctx context.Context, userID uuid.UUID) (models.Card, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rnd, err := t.roundLocked()
	if err != nil {
		return models.Card{}, err
	}
	card, err := rnd.DrawFromDiscard(userID)
	if err != nil {
		return models.Card{}, err
	}
	c := card
	return card, t.commit(ctx, userID, GameEvent{
		Type: EventPlayerDrawDiscard,
		User: &EventUser{ID: userID},
		Card: &c,
	}, nil)
}

// Discard discards a card from the active player's hand and passes the turn.
func (t *Table) Discard(ctx context.Context, userID uuid.UUID, card models.Card) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	rnd, err := t.roundLocked()
	if err != nil {
		return err
	}
	if err := rnd.Discard(userID, card); err != nil {
		return err
	}
	c := card
	return t.commit(ctx, userID, GameEvent{
		Type:    EventPlayerDiscard,
		User:    &EventUser{ID: userID},
		Card:    &c,
		Payload: map[string]interface{}{"next_user_id": rnd.ActiveUserID},
	}, nil)
}

// LockMeld commits a meld for the active player.
func (t *Table) LockMeld(ctx context.Context, userID uuid.UUID, cards []models.Card) (LockResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rnd, err := t.roundLocked()
	if err != nil {
		return LockResult{}, err
	}
	res, err := rnd.LockMeld(userID, cards)
	if err != nil {
		return LockResult{}, err
	}
	if res.RevealedNow {
		t.log.WithField("wild_rank", res.WildRank).Info("wild joker revealed by pure sequence lock")
		t.fireEvent(GameEvent{
			Type:    EventWildRevealed,
			Version: t.Version + 1,
			User:    &EventUser{ID: userID},
			Payload: map[string]interface{}{"wild_joker_rank": res.WildRank},
		})
	}
	return res, t.commit(ctx, userID, GameEvent{
		Type: EventMeldLocked,
		User: &EventUser{ID: userID},
		Payload: map[string]interface{}{
			"kind":                res.Kind,
			"cards":               cards,
			"wild_joker_revealed": res.WildRevealed,
		},
	}, nil)
}

// Declare submits the active player's final grouping and finishes the round.
func (t *Table) Declare(ctx context.Context, userID uuid.UUID, groups [][]models.Card) (DeclareOutcome, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rnd, err := t.roundLocked()
	if err != nil {
		return DeclareOutcome{}, err
	}
	prev := rnd.Status
	out, err := rnd.Declare(userID, groups)
	if err != nil {
		return DeclareOutcome{}, err
	}
	summary := t.settleRoundLocked(prev)

	t.log.WithFields(logrus.Fields{"user_id": userID, "valid": out.Valid, "reason": out.Reason}).Info("declaration")
	return out, t.commit(ctx, userID, GameEvent{
		Type:    EventPlayerDeclared,
		User:    &EventUser{ID: userID},
		Payload: map[string]interface{}{"valid": out.Valid, "reason": out.Reason},
	}, summary)
}

// Drop withdraws a player from the current round.
func (t *Table) Drop(ctx context.Context, userID uuid.UUID) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	rnd, err := t.roundLocked()
	if err != nil {
		return err
	}
	prev := rnd.Status
	if err := rnd.Drop(userID); err != nil {
		return err
	}
	t.syncRoundFlagsLocked()
	summary := t.settleRoundLocked(prev)
	return t.commit(ctx, userID, GameEvent{
		Type:    EventPlayerDropped,
		User:    &EventUser{ID: userID},
		Payload: map[string]interface{}{"penalty": rnd.Scores[userID].Points},
	}, summary)
}

// ForceDrop disqualifies a player from the current round without any turn or hand checks. It is the
// hook for idle-turn and disconnect policies.
func (t *Table) ForceDrop(ctx context.Context, userID uuid.UUID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.forceDropLocked(ctx, userID)
}

// ForceDropBy is ForceDrop on behalf of caller, who must be the host.
func (t *Table) ForceDropBy(ctx context.Context, caller, userID uuid.UUID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if caller != t.HostUserID {
		return ErrNotHost
	}
	return t.forceDropLocked(ctx, userID)
}

// forceDropLocked assumes lock is held.
func (t *Table) forceDropLocked(ctx context.Context, userID uuid.UUID) error {
	rnd, err := t.roundLocked()
	if err != nil {
		return err
	}
	prev := rnd.Status
	if err := rnd.ForceDrop(userID); err != nil {
		return err
	}
	t.syncRoundFlagsLocked()
	summary := t.settleRoundLocked(prev)
	t.log.WithField("user_id", userID).Info("player force-dropped")
	return t.commit(ctx, uuid.Nil, GameEvent{
		Type:    EventPlayerForceDropped,
		User:    &EventUser{ID: userID},
		Payload: map[string]interface{}{"penalty": rnd.Scores[userID].Points},
	}, summary)
}

// settleRoundLocked archives the current round if the last command finished it. Assumes lock is held.
func (t *Table) settleRoundLocked(prev RoundStatus) *RoundSummary {
	rnd := t.CurrentRound
	if rnd == nil || prev == RoundFinished || rnd.Status != RoundFinished {
		return nil
	}
	scores := make(map[uuid.UUID]Score, len(rnd.Scores))
	for id, s := range rnd.Scores {
		scores[id] = s
	}
	summary := RoundSummary{
		TableID:      t.ID,
		Number:       rnd.Number,
		WinnerUserID: rnd.WinnerUserID,
		Aborted:      rnd.Aborted,
		WildRank:     rnd.WildRank,
		Scores:       scores,
		Reveal:       rnd.Reveal,
	}
	t.History = append(t.History, summary)
	ApplyRoundScores(t.CumulativeScores, scores)
	return &summary
}

// syncRoundFlagsLocked copies drop flags from the round onto the roster. Assumes lock is held.
func (t *Table) syncRoundFlagsLocked() {
	if t.CurrentRound == nil {
		return
	}
	for _, rp := range t.CurrentRound.Players {
		if p := t.memberLocked(rp.UserID); p != nil {
			p.DroppedThisRound = rp.Dropped
			p.Disqualified = rp.Disqualified
		}
	}
}

// commit persists, broadcasts and logs a successful transition. Assumes lock is held.
func (t *Table) commit(ctx context.Context, actor uuid.UUID, ev GameEvent, finished *RoundSummary) error {
	t.Version++
	t.lastActivity = time.Now()

	var persistErr error
	if t.store != nil {
		rec := t.recordLocked()
		if finished != nil {
			persistErr = t.store.FinishRound(ctx, rec, *finished)
		} else {
			persistErr = t.store.SaveTable(ctx, rec)
		}
		if persistErr != nil {
			t.log.WithError(persistErr).WithField("event", ev.Type).Error("failed to persist table")
			persistErr = fmt.Errorf("persist table %s: %w: %w", t.ID, ErrPersist, persistErr)
		}
	}

	ev.Version = t.Version
	t.fireEvent(ev)
	if finished != nil {
		t.fireEvent(GameEvent{
			Type:    EventRoundEnded,
			Version: t.Version,
			Payload: map[string]interface{}{
				"round":  finished.Number,
				"reveal": finished.Reveal,
				"totals": t.scoresPayloadLocked(),
			},
		})
	}
	t.broadcastSyncStateToAll()

	t.logAction(actor, string(ev.Type), ev.Payload)
	if finished != nil {
		t.logAction(uuid.Nil, string(EventRoundEnded), map[string]interface{}{
			"round":   finished.Number,
			"winner":  finished.WinnerUserID,
			"aborted": finished.Aborted,
			"scores":  finished.Scores,
		})
	}
	return persistErr
}

// recordLocked builds the persisted form of the table. Assumes lock is held.
func (t *Table) recordLocked() *TableRecord {
	return &TableRecord{
		ID:               t.ID,
		Code:             t.Code,
		HostUserID:       t.HostUserID,
		WildMode:         t.WildMode,
		Rules:            t.Rules,
		Status:           t.Status,
		Players:          t.Players,
		CurrentRound:     t.CurrentRound,
		History:          t.History,
		CumulativeScores: t.CumulativeScores,
		SpectateRequests: t.SpectateRequests,
		Version:          t.Version,
	}
}

// fireEvent broadcasts an event to every connection at the table. Assumes lock is held.
func (t *Table) fireEvent(ev GameEvent) {
	if t.BroadcastFn == nil {
		return
	}
	t.BroadcastFn(ev)
}

// broadcastSyncStateToAll sends each remaining member their own snapshot. Assumes lock is held.
func (t *Table) broadcastSyncStateToAll() {
	if t.BroadcastToPlayerFn == nil {
		return
	}
	for _, p := range t.Players {
		if p.Left {
			continue
		}
		snap := t.snapshotLocked(p.UserID)
		t.BroadcastToPlayerFn(p.UserID, GameEvent{
			Type:    EventPrivateSyncState,
			Version: t.Version,
			State:   &snap,
		})
	}
}

// logAction pushes an action record to the historian queue without blocking the table.
func (t *Table) logAction(actorID uuid.UUID, actionType string, payload map[string]interface{}) {
	t.actionIndex++
	if payload == nil {
		payload = make(map[string]interface{})
	}
	roundNumber := 0
	if t.CurrentRound != nil {
		roundNumber = t.CurrentRound.Number
	}
	record := cache.ActionRecord{
		TableID:       t.ID,
		RoundNumber:   roundNumber,
		ActionIndex:   t.actionIndex,
		ActorUserID:   actorID,
		ActionType:    actionType,
		ActionPayload: payload,
		Timestamp:     time.Now().UnixMilli(),
	}
	if cache.Rdb == nil {
		return
	}
	go func(rec cache.ActionRecord) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := cache.PublishAction(ctx, rec); err != nil {
			t.log.WithError(err).WithField("action_index", rec.ActionIndex).Warn("failed to publish table action")
		}
	}(record)
}

// GetHistory returns the finished rounds in order.
func (t *Table) GetHistory() []RoundSummary {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]RoundSummary(nil), t.History...)
}

// ScoreboardRow is one player's line on the scoreboard.
type ScoreboardRow struct {
	UserID      uuid.UUID `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Seat        int       `json:"seat"`
	Rounds      []int     `json:"rounds"`
	Total       int       `json:"total"`
}

// Scoreboard lists per-round points and totals for everyone who has played at the table.
func (t *Table) Scoreboard() []ScoreboardRow {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ids := make(map[uuid.UUID]bool)
	for id := range t.CumulativeScores {
		ids[id] = true
	}
	for _, p := range t.seatedLocked() {
		ids[p.UserID] = true
	}

	rows := make([]ScoreboardRow, 0, len(ids))
	for id := range ids {
		row := ScoreboardRow{UserID: id, Seat: -1, Total: t.CumulativeScores[id], Rounds: make([]int, 0, len(t.History))}
		if p := t.memberLocked(id); p != nil {
			row.DisplayName = p.DisplayName
			row.Seat = p.Seat
		}
		for _, h := range t.History {
			row.Rounds = append(row.Rounds, h.Scores[id].Points)
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Seat != rows[j].Seat {
			return rows[i].Seat < rows[j].Seat
		}
		return rows[i].UserID.String() < rows[j].UserID.String()
	})
	return rows
}

// Evictable reports whether the table has been idle for at least idle and is either finished or has no
// connected member. Without a store a game in progress is kept while any seated player remains, since
// eviction would lose it.
func (t *Table) Evictable(now time.Time, idle time.Duration) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if now.Sub(t.lastActivity) < idle {
		return false
	}
	if t.Status == TableFinished {
		return true
	}
	for _, p := range t.Players {
		if p.Left {
			continue
		}
		if p.Connected {
			return false
		}
		if t.store == nil && t.Status == TablePlaying && !p.IsSpectator {
			return false
		}
	}
	return true
}

// IsMember reports whether userID is seated or spectating.
func (t *Table) IsMember(userID uuid.UUID) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p := t.memberLocked(userID)
	return p != nil && !p.Left
}

func (t *Table) memberLocked(userID uuid.UUID) *models.Player {
	for _, p := range t.Players {
		if p.UserID == userID {
			return p
		}
	}
	return nil
}

// seatedLocked returns seated players who have not left, in seat order.
func (t *Table) seatedLocked() []*models.Player {
	out := make([]*models.Player, 0, len(t.Players))
	for _, p := range t.Players {
		if p.Seated() && !p.Left {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seat < out[j].Seat })
	return out
}

func (t *Table) departedLocked() []uuid.UUID {
	var out []uuid.UUID
	for _, p := range t.Players {
		if p.Left {
			out = append(out, p.UserID)
		}
	}
	return out
}

func (t *Table) lowestFreeSeatLocked() int {
	taken := make(map[int]bool)
	for _, p := range t.Players {
		if p.Seated() {
			taken[p.Seat] = true
		}
	}
	seat := 0
	for taken[seat] {
		seat++
	}
	return seat
}

func (t *Table) removePlayerLocked(userID uuid.UUID) {
	for i, p := range t.Players {
		if p.UserID == userID {
			t.Players = append(t.Players[:i], t.Players[i+1:]...)
			return
		}
	}
}

// sortPlayersLocked keeps seated players in seat order ahead of spectators.
func (t *Table) sortPlayersLocked() {
	sort.SliceStable(t.Players, func(i, j int) bool {
		a, b := t.Players[i], t.Players[j]
		if a.Seated() != b.Seated() {
			return a.Seated()
		}
		return a.Seated() && a.Seat < b.Seat
	})
}

// transferHostLocked hands the host role to the lowest seated player still at the table.
func (t *Table) transferHostLocked() {
	for _, p := range t.seatedLocked() {
		if p.UserID != t.HostUserID {
			t.log.WithFields(logrus.Fields{"from": t.HostUserID, "to": p.UserID}).Info("host transferred")
			t.HostUserID = p.UserID
			return
		}
	}
}

func (t *Table) sortedRequests() []uuid.UUID {
	out := make([]uuid.UUID, 0, len(t.SpectateRequests))
	for id := range t.SpectateRequests {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

func (t *Table) scoresPayloadLocked() map[string]int {
	out := make(map[string]int, len(t.CumulativeScores))
	for id, pts := range t.CumulativeScores {
		out[id.String()] = pts
	}
	return out
}
