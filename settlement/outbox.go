package settlement

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/cloudx-io/dynauction/api"
	"github.com/cloudx-io/dynauction/core"
)

var ErrOutboxClosed = errors.New("settlement outbox closed")

// Sink delivers a signed envelope to the payment system.
type Sink interface {
	Deliver(ctx context.Context, env *api.SettlementEnvelope) error
}

// OutboxOptions configures an Outbox. Zero values select defaults.
type OutboxOptions struct {
	Workers     int
	MaxAttempts int
	Backoff     time.Duration
	Logger      *zap.Logger
}

// Outbox accepts settlement requests without blocking and delivers them
// from a bounded pool of workers. Undeliverable requests are retried with
// linear backoff, then counted as failed.
type Outbox struct {
	signer      *Signer
	sink        Sink
	logger      *zap.Logger
	workers     int
	maxAttempts int
	backoff     time.Duration

	mu      sync.Mutex
	pending []core.SettlementRequest
	closed  bool
	notify  chan struct{}

	delivered atomic.Int64
	failed    atomic.Int64
}

func NewOutbox(signer *Signer, sink Sink, opts OutboxOptions) *Outbox {
	o := &Outbox{
		signer:      signer,
		sink:        sink,
		logger:      opts.Logger,
		workers:     opts.Workers,
		maxAttempts: opts.MaxAttempts,
		backoff:     opts.Backoff,
		notify:      make(chan struct{}, 1),
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.workers <= 0 {
		o.workers = 4
	}
	if o.maxAttempts <= 0 {
		o.maxAttempts = 3
	}
	if o.backoff <= 0 {
		o.backoff = 500 * time.Millisecond
	}
	return o
}

// Submit queues req. It never blocks on delivery.
func (o *Outbox) Submit(_ context.Context, req core.SettlementRequest) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return ErrOutboxClosed
	}
	o.pending = append(o.pending, req)
	o.mu.Unlock()

	select {
	case o.notify <- struct{}{}:
	default:
	}
	o.logger.Info("settlement queued", zap.String("auction_id", req.AuctionID))
	return nil
}

// Close stops accepting requests. Run still drains what is queued.
func (o *Outbox) Close() {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
	select {
	case o.notify <- struct{}{}:
	default:
	}
}

// Pending reports how many requests wait for a worker.
func (o *Outbox) Pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.pending)
}

// Stats reports delivered and permanently failed requests.
func (o *Outbox) Stats() (delivered, failed int64) {
	return o.delivered.Load(), o.failed.Load()
}

// Run dispatches queued requests to workers until ctx is done, or until
// the outbox is closed and drained. It waits for in-flight deliveries.
func (o *Outbox) Run(ctx context.Context) error {
	semaphore := make(chan struct{}, o.workers)
	var wg sync.WaitGroup
	defer wg.Wait()

	o.logger.Info("settlement outbox started", zap.Int("workers", o.workers))
	for {
		req, ok := o.next(ctx)
		if !ok {
			if err := ctx.Err(); err != nil {
				return err
			}
			return nil
		}

		// Acquire worker slot
		select {
		case semaphore <- struct{}{}:
		case <-ctx.Done():
			o.requeue(req)
			return ctx.Err()
		}
		wg.Add(1)
		go func(req core.SettlementRequest) {
			defer wg.Done()
			defer func() { <-semaphore }() // Release worker slot
			o.process(ctx, req)
		}(req)
	}
}

// next blocks for the next request. It reports false once ctx is done or
// the outbox is closed and empty.
func (o *Outbox) next(ctx context.Context) (core.SettlementRequest, bool) {
	for {
		o.mu.Lock()
		if len(o.pending) > 0 {
			req := o.pending[0]
			o.pending = o.pending[1:]
			o.mu.Unlock()
			return req, true
		}
		closed := o.closed
		o.mu.Unlock()
		if closed {
			return core.SettlementRequest{}, false
		}

		select {
		case <-o.notify:
		case <-ctx.Done():
			return core.SettlementRequest{}, false
		}
	}
}

func (o *Outbox) requeue(req core.SettlementRequest) {
	o.mu.Lock()
	o.pending = append([]core.SettlementRequest{req}, o.pending...)
	o.mu.Unlock()
}

func (o *Outbox) process(ctx context.Context, req core.SettlementRequest) {
	defer func() {
		if r := recover(); r != nil {
			o.failed.Add(1)
			o.logger.Error("panic recovered in settlement worker",
				zap.String("auction_id", req.AuctionID),
				zap.Any("panic", r))
		}
	}()

	env, err := o.signer.Sign(req)
	if err != nil {
		o.failed.Add(1)
		o.logger.Error("failed to sign settlement", zap.String("auction_id", req.AuctionID), zap.Error(err))
		return
	}

	for attempt := 1; attempt <= o.maxAttempts; attempt++ {
		err = o.sink.Deliver(ctx, env)
		if err == nil {
			o.delivered.Add(1)
			o.logger.Info("settlement delivered",
				zap.String("auction_id", req.AuctionID),
				zap.Int("attempt", attempt))
			return
		}
		o.logger.Warn("settlement delivery failed",
			zap.String("auction_id", req.AuctionID),
			zap.Int("attempt", attempt),
			zap.Error(err))
		if attempt == o.maxAttempts {
			break
		}
		select {
		case <-time.After(o.backoff * time.Duration(attempt)):
		case <-ctx.Done():
			o.requeue(req)
			return
		}
	}
	o.failed.Add(1)
	o.logger.Error("settlement abandoned",
		zap.String("auction_id", req.AuctionID),
		zap.Int("attempts", o.maxAttempts),
		zap.Error(err))
}
