// internal/historian/historian.go pops table action records from a Redis queue and persists them to
// PostgreSQL in batches.
package historian

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/rummy/internal/cache"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// FlushFunc persists one batch of records.
type FlushFunc func(ctx context.Context, batch []cache.ActionRecord) error

// AbandonFunc closes a table that has gone quiet. It reports whether anything changed.
type AbandonFunc func(ctx context.Context, tableID uuid.UUID) (bool, error)

// Options configures a Service.
type Options struct {
	Queue      string
	BatchSize  int
	FlushDelay time.Duration
	// Inactivity is how long a table may go without actions before it is marked abandoned.
	Inactivity time.Duration
	// SweepEvery is the interval of the inactivity check.
	SweepEvery time.Duration
}

// Service captures table actions and marks tables abandoned when the inactivity threshold is reached.
type Service struct {
	client  *redis.Client
	opts    Options
	flush   FlushFunc
	abandon AbandonFunc
	log     *logrus.Entry

	lastActivity sync.Map // map[uuid.UUID]time.Time

	batchMu sync.Mutex
	batch   []cache.ActionRecord
}

// New builds a Service. Zero options fall back to the defaults of the server.
func New(client *redis.Client, opts Options, flush FlushFunc, abandon AbandonFunc, logger *logrus.Logger) *Service {
	if opts.Queue == "" {
		opts.Queue = cache.DefaultQueueName
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 20
	}
	if opts.FlushDelay <= 0 {
		opts.FlushDelay = 500 * time.Millisecond
	}
	if opts.Inactivity <= 0 {
		opts.Inactivity = 10 * time.Minute
	}
	if opts.SweepEvery <= 0 {
		opts.SweepEvery = time.Minute
	}
	return &Service{
		client:  client,
		opts:    opts,
		flush:   flush,
		abandon: abandon,
		log:     logger.WithField("component", "historian"),
		batch:   make([]cache.ActionRecord, 0, opts.BatchSize),
	}
}

// Run starts the queue reader and the inactivity sweep and blocks until ctx is done. The pending batch
// is flushed on the way out.
func (s *Service) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		s.readLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		s.flushLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		s.inactivityLoop(ctx)
	}()

	s.log.WithField("queue", s.opts.Queue).Info("historian started")
	<-ctx.Done()
	wg.Wait()

	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.FlushBatch(flushCtx)
	s.log.Info("historian shutting down")
}

// readLoop pops records with a short BLPOP timeout so cancellation is noticed.
func (s *Service) readLoop(ctx context.Context) {
	for ctx.Err() == nil {
		rec, err := cache.PopAction(ctx, s.client, s.opts.Queue, 3*time.Second)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.log.WithError(err).Error("BLPOP failed")
			time.Sleep(time.Second)
			continue
		}
		if rec == nil {
			continue
		}
		s.Record(ctx, *rec)
	}
}

func (s *Service) flushLoop(ctx context.Context) {
	ticker := time.NewTicker(s.opts.FlushDelay)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.FlushBatch(ctx)
		}
	}
}

func (s *Service) inactivityLoop(ctx context.Context) {
	ticker := time.NewTicker(s.opts.SweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.Sweep(ctx, now)
		}
	}
}

// Record tracks the table's activity and adds rec to the batch, flushing once the batch is full.
func (s *Service) Record(ctx context.Context, rec cache.ActionRecord) {
	if rec.ActionType == "table_finished" {
		s.lastActivity.Delete(rec.TableID)
	} else {
		s.lastActivity.Store(rec.TableID, time.Now())
	}

	s.batchMu.Lock()
	s.batch = append(s.batch, rec)
	full := len(s.batch) >= s.opts.BatchSize
	s.batchMu.Unlock()

	if full {
		s.FlushBatch(ctx)
	}
}

// FlushBatch writes the pending batch. A failed batch is put back in front of newer records.
func (s *Service) FlushBatch(ctx context.Context) {
	s.batchMu.Lock()
	if len(s.batch) == 0 {
		s.batchMu.Unlock()
		return
	}
	batchCopy := make([]cache.ActionRecord, len(s.batch))
	copy(batchCopy, s.batch)
	s.batch = s.batch[:0]
	s.batchMu.Unlock()

	if err := s.flush(ctx, batchCopy); err != nil {
		s.log.WithError(err).WithField("count", len(batchCopy)).Error("failed to flush actions")
		s.batchMu.Lock()
		s.batch = append(batchCopy, s.batch...)
		s.batchMu.Unlock()
		return
	}
	s.log.WithField("count", len(batchCopy)).Debug("flushed actions to DB")
}

// Pending returns the number of records waiting for the next flush.
func (s *Service) Pending() int {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()
	return len(s.batch)
}

// Sweep marks every table whose last action is older than the inactivity threshold as abandoned.
func (s *Service) Sweep(ctx context.Context, now time.Time) {
	s.lastActivity.Range(func(key, val interface{}) bool {
		tableID, ok1 := key.(uuid.UUID)
		last, ok2 := val.(time.Time)
		if !ok1 || !ok2 || now.Sub(last) <= s.opts.Inactivity {
			return true
		}
		changed, err := s.abandon(ctx, tableID)
		if err != nil {
			s.log.WithError(err).WithField("table_id", tableID).Error("failed to mark table abandoned")
			return true
		}
		s.lastActivity.Delete(tableID)
		if changed {
			s.log.WithField("table_id", tableID).Info("marked table abandoned due to inactivity")
		}
		return true
	})
}
