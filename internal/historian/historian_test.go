// internal/historian/historian_test.go
package historian

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/rummy/internal/cache"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu        sync.Mutex
	batches   [][]cache.ActionRecord
	abandoned []uuid.UUID
	failNext  bool
}

func (r *recordingSink) flush(_ context.Context, batch []cache.ActionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failNext {
		r.failNext = false
		return errors.New("db down")
	}
	r.batches = append(r.batches, batch)
	return nil
}

func (r *recordingSink) abandon(_ context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.abandoned = append(r.abandoned, id)
	return true, nil
}

func newTestService(sink *recordingSink, batchSize int) *Service {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return New(nil, Options{BatchSize: batchSize, Inactivity: time.Minute}, sink.flush, sink.abandon, logger)
}

func action(table uuid.UUID, idx int, typ string) cache.ActionRecord {
	return cache.ActionRecord{TableID: table, ActionIndex: idx, ActionType: typ, Timestamp: time.Now().UnixMilli()}
}

func TestBatchFlushesWhenFull(t *testing.T) {
	sink := &recordingSink{}
	s := newTestService(sink, 3)
	ctx := context.Background()
	table := uuid.New()

	s.Record(ctx, action(table, 1, "player_draw_stock"))
	s.Record(ctx, action(table, 2, "player_discard"))
	assert.Empty(t, sink.batches)
	assert.Equal(t, 2, s.Pending())

	s.Record(ctx, action(table, 3, "player_draw_stock"))
	require.Len(t, sink.batches, 1)
	assert.Len(t, sink.batches[0], 3)
	assert.Equal(t, 0, s.Pending())

	s.FlushBatch(ctx)
	assert.Len(t, sink.batches, 1, "empty batch is not written")
}

func TestFailedFlushKeepsRecordsInOrder(t *testing.T) {
	sink := &recordingSink{failNext: true}
	s := newTestService(sink, 10)
	ctx := context.Background()
	table := uuid.New()

	s.Record(ctx, action(table, 1, "player_joined"))
	s.FlushBatch(ctx)
	assert.Equal(t, 1, s.Pending())

	s.Record(ctx, action(table, 2, "game_started"))
	s.FlushBatch(ctx)
	require.Len(t, sink.batches, 1)
	require.Len(t, sink.batches[0], 2)
	assert.Equal(t, 1, sink.batches[0][0].ActionIndex)
	assert.Equal(t, 2, sink.batches[0][1].ActionIndex)
}

func TestSweepMarksIdleTables(t *testing.T) {
	sink := &recordingSink{}
	s := newTestService(sink, 100)
	ctx := context.Background()
	idle, active, finished := uuid.New(), uuid.New(), uuid.New()

	s.Record(ctx, action(idle, 1, "player_joined"))
	s.Record(ctx, action(finished, 1, "player_joined"))
	s.Record(ctx, action(finished, 2, "table_finished"))
	s.lastActivity.Store(idle, time.Now().Add(-2*time.Minute))
	s.Record(ctx, action(active, 1, "player_joined"))

	s.Sweep(ctx, time.Now())
	assert.Equal(t, []uuid.UUID{idle}, sink.abandoned)

	s.Sweep(ctx, time.Now())
	assert.Len(t, sink.abandoned, 1, "abandoned tables are forgotten")
}
