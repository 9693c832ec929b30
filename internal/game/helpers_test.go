// internal/game/helpers_test.go
package game

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jason-s-yu/rummy/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

// mockBroadcaster collects events instead of sending them over WS.
type mockBroadcaster struct {
	mu           sync.Mutex
	allEvents    []GameEvent               // Events sent to everyone
	playerEvents map[uuid.UUID][]GameEvent // Events sent to specific players
}

func newMockBroadcaster() *mockBroadcaster {
	return &mockBroadcaster{
		playerEvents: make(map[uuid.UUID][]GameEvent),
	}
}

func (mb *mockBroadcaster) broadcastFn(ev GameEvent) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.allEvents = append(mb.allEvents, ev)
}

func (mb *mockBroadcaster) broadcastToPlayerFn(playerID uuid.UUID, ev GameEvent) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.playerEvents[playerID] = append(mb.playerEvents[playerID], ev)
}

func (mb *mockBroadcaster) clear() {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.allEvents = []GameEvent{}
	mb.playerEvents = make(map[uuid.UUID][]GameEvent)
}

func (mb *mockBroadcaster) eventTypes() []GameEventType {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	out := make([]GameEventType, 0, len(mb.allEvents))
	for _, ev := range mb.allEvents {
		out = append(out, ev.Type)
	}
	return out
}

func (mb *mockBroadcaster) getLastPlayerEvent(playerID uuid.UUID) *GameEvent {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	events, ok := mb.playerEvents[playerID]
	if !ok || len(events) == 0 {
		return nil
	}
	return &events[len(events)-1]
}

// memStore is an in-memory Store that records calls.
type memStore struct {
	mu       sync.Mutex
	records  map[uuid.UUID]*TableRecord
	saves    int
	finishes []RoundSummary
	failNext error
}

func newMemStore() *memStore {
	return &memStore{records: make(map[uuid.UUID]*TableRecord)}
}

func (s *memStore) LoadTable(_ context.Context, id uuid.UUID) (*TableRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, ErrTableNotFound
	}
	return rec, nil
}

func (s *memStore) SaveTable(_ context.Context, rec *TableRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}
	s.saves++
	s.records[rec.ID] = rec
	return nil
}

func (s *memStore) FinishRound(_ context.Context, rec *TableRecord, summary RoundSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}
	s.records[rec.ID] = rec
	s.finishes = append(s.finishes, summary)
	return nil
}

func (s *memStore) takeFailure() error {
	err := s.failNext
	s.failNext = nil
	return err
}

var errStoreDown = errors.New("store down")

func seededRand(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func newUsers(n int) []uuid.UUID {
	out := make([]uuid.UUID, n)
	for i := range out {
		out[i] = uuid.New()
	}
	return out
}

// newTestRound deals round 1 for n fresh users, seats 0..n-1, first player seat 0.
func newTestRound(t *testing.T, n int, mode WildJokerMode, seed int64) (*Round, []uuid.UUID) {
	t.Helper()
	users := newUsers(n)
	seated := make([]SeatedUser, n)
	for i, u := range users {
		seated[i] = SeatedUser{UserID: u, Seat: i}
	}
	r, err := NewRound(1, seated, users[0], mode, DefaultRules(), seededRand(seed))
	require.NoError(t, err)
	return r, users
}

// rigHand replaces a player's hand with want, moving cards between the shoe, the discard pile and
// other hands so the total card count is unchanged.
func rigHand(t *testing.T, r *Round, userID uuid.UUID, want []models.Card) {
	t.Helper()
	p := r.player(userID)
	require.NotNil(t, p)

	r.Shoe.Cards = append(r.Shoe.Cards, p.Hand...)
	p.Hand = nil

	for i, c := range want {
		if idx := indexOfCard(r.Shoe.Cards, c); idx >= 0 {
			r.Shoe.Cards = append(r.Shoe.Cards[:idx], r.Shoe.Cards[idx+1:]...)
			p.Hand = append(p.Hand, c)
			continue
		}
		rest := want[i+1:]
		if idx := indexOfCard(r.DiscardPile, c); idx >= 0 {
			r.DiscardPile[idx] = takeFromShoeExcept(t, r, rest)
			p.Hand = append(p.Hand, c)
			continue
		}
		found := false
		for _, other := range r.Players {
			if other.UserID == userID {
				continue
			}
			if idx := indexOfCard(other.Hand, c); idx >= 0 {
				other.Hand[idx] = takeFromShoeExcept(t, r, rest)
				p.Hand = append(p.Hand, c)
				found = true
				break
			}
		}
		require.True(t, found, "card %s not available to rig", c)
	}
}

func takeFromShoeExcept(t *testing.T, r *Round, avoid []models.Card) models.Card {
	t.Helper()
	for i, c := range r.Shoe.Cards {
		if countCard(avoid, c) == 0 {
			r.Shoe.Cards = append(r.Shoe.Cards[:i], r.Shoe.Cards[i+1:]...)
			return c
		}
	}
	t.Fatalf("no replacement card in shoe")
	return models.Card{}
}

// freeCard returns a card from the player's hand that is not locked.
func freeCard(p *RoundPlayer) models.Card {
	free, _ := removeCards(p.Hand, p.lockedCards())
	return free[len(free)-1]
}

func cards(codes ...string) []models.Card {
	return models.MustParseCards(codes...)
}
