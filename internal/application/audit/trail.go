// Package audittrail delivers audit entries to the append-only store without
// ever blocking or failing the request that produced them.
package audittrail

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/mise/backend/internal/domain/audit"
	"github.com/mise/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// Metrics counts failed store writes
type Metrics interface {
	AuditWriteFailed(ctx context.Context)
}

type nopMetrics struct{}

func (nopMetrics) AuditWriteFailed(context.Context) {}

// Options configures a Trail
type Options struct {
	QueueSize     int
	Workers       int
	MaxAttempts   int           // store attempts per entry before it is spooled, at least 2
	RetryInterval time.Duration // first backoff interval
	DrainInterval time.Duration // how often spooled entries are re-appended
	Clock         clock.Clock
	Logger        *zap.Logger
	Metrics       Metrics
}

// DefaultOptions returns default configuration
func DefaultOptions() Options {
	return Options{
		QueueSize:     1024,
		Workers:       2,
		MaxAttempts:   3,
		RetryInterval: 100 * time.Millisecond,
		DrainInterval: 30 * time.Second,
	}
}

// Trail is the asynchronous audit writer.
//
// Entries flow queue -> worker -> store. An entry whose writes keep failing
// is parked in the spool and re-appended by the drain loop. Record never
// blocks: when the queue is full the entry is delivered by its own goroutine.
type Trail struct {
	store   audit.Store
	spool   audit.Spool
	opts    Options
	clock   clock.Clock
	logger  *zap.Logger
	metrics Metrics

	mu     sync.RWMutex
	closed bool
	queue  chan audit.Entry

	pendingMu sync.Mutex
	pending   int
	idle      chan struct{}

	workers   sync.WaitGroup
	stopDrain chan struct{}
	closeOnce sync.Once
}

// New creates a Trail and starts its workers and drain loop.
func New(store audit.Store, spool audit.Spool, opts Options) *Trail {
	def := DefaultOptions()
	if opts.QueueSize <= 0 {
		opts.QueueSize = def.QueueSize
	}
	if opts.Workers <= 0 {
		opts.Workers = def.Workers
	}
	if opts.MaxAttempts < 2 {
		opts.MaxAttempts = 2
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = def.RetryInterval
	}
	if opts.DrainInterval <= 0 {
		opts.DrainInterval = def.DrainInterval
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = nopMetrics{}
	}

	idle := make(chan struct{})
	close(idle)
	t := &Trail{
		store:     store,
		spool:     spool,
		opts:      opts,
		clock:     opts.Clock,
		logger:    opts.Logger.Named("audit_trail"),
		metrics:   opts.Metrics,
		queue:     make(chan audit.Entry, opts.QueueSize),
		idle:      idle,
		stopDrain: make(chan struct{}),
	}

	for i := 0; i < opts.Workers; i++ {
		t.workers.Add(1)
		go t.work()
	}
	if spool != nil {
		t.workers.Add(1)
		go t.drainLoop(t.clock.Ticker(opts.DrainInterval))
	}
	return t
}

// Record stamps entry and hands it to the writer. It never blocks and never
// fails; delivery problems are logged and counted.
func (t *Trail) Record(ctx context.Context, entry audit.Entry) {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = t.clock.Now().UTC()
	}
	if entry.Outcome == "" {
		entry.Outcome = audit.OutcomeDenied
	}

	t.begin()
	t.mu.RLock()
	defer t.mu.RUnlock()
	if !t.closed {
		select {
		case t.queue <- entry:
			return
		default:
		}
	}
	go func() {
		defer t.done()
		t.deliver(context.WithoutCancel(ctx), entry)
	}()
}

func (t *Trail) work() {
	defer t.workers.Done()
	for entry := range t.queue {
		t.deliver(context.Background(), entry)
		t.done()
	}
}

// deliver appends entry, retrying with backoff, and spools it when every
// attempt failed.
func (t *Trail) deliver(ctx context.Context, entry audit.Entry) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = t.opts.RetryInterval
	b.MaxElapsedTime = 0

	err := backoff.RetryNotify(func() error {
		return t.append(ctx, entry)
	}, backoff.WithMaxRetries(b, uint64(t.opts.MaxAttempts-1)), func(err error, wait time.Duration) {
		t.metrics.AuditWriteFailed(ctx)
		t.logger.Warn("Audit append failed, retrying",
			zap.String("entry_id", entry.ID.String()),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	})
	if err == nil {
		return
	}
	t.metrics.AuditWriteFailed(ctx)
	t.park(ctx, entry, err)
}

// append writes entry once. An entry the store already holds was committed
// by an earlier attempt whose acknowledgement got lost, so it counts as
// delivered.
func (t *Trail) append(ctx context.Context, entry audit.Entry) error {
	err := t.store.Append(ctx, entry)
	if errors.Is(err, shared.ErrAlreadyExists) {
		t.logger.Debug("Audit entry already stored", zap.String("entry_id", entry.ID.String()))
		return nil
	}
	return err
}

func (t *Trail) park(ctx context.Context, entry audit.Entry, cause error) {
	if t.spool != nil {
		err := t.spool.Push(ctx, entry)
		if err == nil {
			t.logger.Warn("Audit entry spooled",
				zap.String("entry_id", entry.ID.String()),
				zap.Error(cause),
			)
			return
		}
		cause = errors.Join(cause, err)
	}
	// last resort: the entry survives in the log stream
	t.logger.Error("Audit entry lost",
		zap.String("entry_id", entry.ID.String()),
		zap.String("action", string(entry.Action)),
		zap.String("tenant_id", entry.TenantID),
		zap.String("user_id", entry.UserID),
		zap.String("request_id", entry.RequestID),
		zap.String("outcome", string(entry.Outcome)),
		zap.String("reason", entry.Reason),
		zap.Time("timestamp", entry.Timestamp),
		zap.Error(cause),
	)
}

func (t *Trail) drainLoop(ticker *clock.Ticker) {
	defer t.workers.Done()
	defer ticker.Stop()

	for {
		select {
		case <-t.stopDrain:
			return
		case <-ticker.C:
			if _, err := t.Drain(context.Background()); err != nil {
				t.logger.Warn("Audit spool drain stopped early", zap.Error(err))
			}
		}
	}
}

// Drain re-appends spooled entries once each and returns how many reached
// the store. It stops at the first failure and puts that entry back.
func (t *Trail) Drain(ctx context.Context) (int, error) {
	if t.spool == nil {
		return 0, nil
	}
	n, err := t.spool.Len(ctx)
	if err != nil {
		return 0, err
	}

	drained := 0
	for i := int64(0); i < n; i++ {
		entry, ok, err := t.spool.Pop(ctx)
		if err != nil {
			return drained, err
		}
		if !ok {
			break
		}
		if err := t.append(ctx, entry); err != nil {
			t.metrics.AuditWriteFailed(ctx)
			t.park(ctx, entry, err)
			return drained, err
		}
		drained++
	}
	if drained > 0 {
		t.logger.Info("Drained audit spool", zap.Int("entries", drained))
	}
	return drained, nil
}

// Query reads entries from the store
func (t *Trail) Query(ctx context.Context, q audit.Query) ([]audit.Entry, error) {
	return t.store.Find(ctx, q)
}

// Flush waits until every recorded entry was appended or spooled.
func (t *Trail) Flush(ctx context.Context) error {
	t.pendingMu.Lock()
	idle := t.idle
	t.pendingMu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the workers after the queue is empty, then makes a last
// attempt to drain the spool. Entries recorded afterwards are still
// delivered, each by its own goroutine.
func (t *Trail) Close(ctx context.Context) error {
	t.closeOnce.Do(func() {
		t.mu.Lock()
		t.closed = true
		close(t.queue)
		t.mu.Unlock()
		close(t.stopDrain)
	})

	stopped := make(chan struct{})
	go func() {
		t.workers.Wait()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := t.Flush(ctx); err != nil {
		return err
	}
	if _, err := t.Drain(ctx); err != nil {
		t.logger.Warn("Final audit spool drain failed", zap.Error(err))
	}
	return nil
}

func (t *Trail) begin() {
	t.pendingMu.Lock()
	defer t.pendingMu.Unlock()
	if t.pending == 0 {
		t.idle = make(chan struct{})
	}
	t.pending++
}

func (t *Trail) done() {
	t.pendingMu.Lock()
	defer t.pendingMu.Unlock()
	t.pending--
	if t.pending == 0 {
		close(t.idle)
	}
}

var _ audit.Recorder = (*Trail)(nil)
