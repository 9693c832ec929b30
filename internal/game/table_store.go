// internal/game/table_store.go
package game

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// codeAlphabet omits characters that are easy to misread (0/O, 1/I).
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// TableStore is the registry of live tables, looked up by id or join code.
type TableStore struct {
	mu     sync.Mutex
	tables map[uuid.UUID]*Table
	codes  map[string]uuid.UUID
	rng    *rand.Rand

	store  Store
	logger *logrus.Logger
	// NewRand seeds the random source of each table. Tests replace it for deterministic deals.
	NewRand func() *rand.Rand
	// OnTable is called for every table added to the registry, created or restored.
	OnTable func(t *Table)
}

// NewTableStore returns an empty registry. store may be nil for an in-memory deployment.
func NewTableStore(store Store, logger *logrus.Logger) *TableStore {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	s := &TableStore{
		tables: make(map[uuid.UUID]*Table),
		codes:  make(map[string]uuid.UUID),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		store:  store,
		logger: logger,
	}
	s.NewRand = func() *rand.Rand {
		return rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return s
}

func (s *TableStore) options() TableOptions {
	return TableOptions{Store: s.store, Logger: s.logger, Rand: s.NewRand()}
}

// CreateTable registers a new table with a unique join code and persists it.
func (s *TableStore) CreateTable(ctx context.Context, hostID uuid.UUID, hostName string, mode WildJokerMode, rules Rules) (*Table, error) {
	s.mu.Lock()
	code := s.newCodeLocked()
	t := NewTable(hostID, hostName, code, mode, rules, s.options())
	s.tables[t.ID] = t
	s.codes[code] = t.ID
	onTable := s.OnTable
	s.mu.Unlock()

	if onTable != nil {
		onTable(t)
	}

	t.mu.Lock()
	err := t.commit(ctx, hostID, GameEvent{
		Type:    EventPlayerJoined,
		User:    &EventUser{ID: hostID},
		Payload: map[string]interface{}{"seat": 0, "host": true},
	}, nil)
	t.mu.Unlock()
	if err != nil {
		s.DeleteTable(t.ID)
		return nil, err
	}
	t.log.WithFields(logrus.Fields{"code": code, "mode": mode}).Info("table created")
	return t, nil
}

// newCodeLocked draws join codes until one is free. Assumes lock is held.
func (s *TableStore) newCodeLocked() string {
	for {
		var b strings.Builder
		for i := 0; i < CodeLength; i++ {
			b.WriteByte(codeAlphabet[s.rng.Intn(len(codeAlphabet))])
		}
		code := b.String()
		if _, taken := s.codes[code]; !taken {
			return code
		}
	}
}

// AddTable registers an existing table, e.g. one restored from storage.
func (s *TableStore) AddTable(t *Table) {
	s.mu.Lock()
	s.tables[t.ID] = t
	s.codes[t.Code] = t.ID
	onTable := s.OnTable
	s.mu.Unlock()
	if onTable != nil {
		onTable(t)
	}
}

// GetTable returns an in-memory table.
func (s *TableStore) GetTable(id uuid.UUID) (*Table, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[id]
	return t, ok
}

// GetByCode resolves a join code, case-insensitively.
func (s *TableStore) GetByCode(code string) (*Table, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.codes[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return nil, false
	}
	t, ok := s.tables[id]
	return t, ok
}

// Lookup returns the table from memory, falling back to the persistent store.
func (s *TableStore) Lookup(ctx context.Context, id uuid.UUID) (*Table, error) {
	if id == uuid.Nil {
		return nil, ErrMissingTableID
	}
	if t, ok := s.GetTable(id); ok {
		return t, nil
	}
	if s.store == nil {
		return nil, ErrTableNotFound
	}
	rec, err := s.store.LoadTable(ctx, id)
	if err != nil {
		if errors.Is(err, ErrTableNotFound) {
			return nil, ErrTableNotFound
		}
		return nil, err
	}
	if rec.Status == TableFinished {
		return nil, ErrTableNotFound
	}

	s.mu.Lock()
	if t, ok := s.tables[id]; ok {
		s.mu.Unlock()
		return t, nil
	}
	t := RestoreTable(rec, s.options())
	s.tables[t.ID] = t
	s.codes[t.Code] = t.ID
	onTable := s.OnTable
	s.mu.Unlock()

	if onTable != nil {
		onTable(t)
	}
	t.log.WithField("version", rec.Version).Info("table restored from storage")
	return t, nil
}

// JoinByCode seats a user at the table with the given join code.
func (s *TableStore) JoinByCode(ctx context.Context, code string, userID uuid.UUID, name string, asSpectator bool) (*Table, int, error) {
	t, ok := s.GetByCode(code)
	if !ok {
		return nil, 0, ErrTableNotFound
	}
	seat, err := t.Join(ctx, userID, name, asSpectator)
	return t, seat, err
}

// DeleteTable removes a table from the registry.
func (s *TableStore) DeleteTable(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tables[id]; ok {
		delete(s.codes, t.Code)
	}
	delete(s.tables, id)
}

// Len returns the number of live tables.
func (s *TableStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tables)
}

// EvictIdle drops every table that is idle and either finished or without connected members. It returns
// the evicted ids.
func (s *TableStore) EvictIdle(now time.Time, idle time.Duration) []uuid.UUID {
	s.mu.Lock()
	candidates := make([]*Table, 0, len(s.tables))
	for _, t := range s.tables {
		candidates = append(candidates, t)
	}
	s.mu.Unlock()

	var evicted []uuid.UUID
	for _, t := range candidates {
		if t.Evictable(now, idle) {
			s.DeleteTable(t.ID)
			evicted = append(evicted, t.ID)
		}
	}
	if len(evicted) > 0 {
		s.logger.WithField("count", len(evicted)).Info("evicted idle tables")
	}
	return evicted
}

// RunJanitor evicts idle tables every interval until ctx is done.
func (s *TableStore) RunJanitor(ctx context.Context, every, idle time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.EvictIdle(now, idle)
		}
	}
}
