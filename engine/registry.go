package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cloudx-io/dynauction/core"
)

// entry holds one auction. mu serializes writers; snap is the latest
// committed snapshot and is never mutated after publication.
type entry struct {
	id   string
	mu   sync.Mutex
	snap atomic.Pointer[core.Snapshot]
}

// txn is a mutation in progress on a private copy of a snapshot.
type txn struct {
	snap    core.Snapshot
	now     time.Time
	changed bool
	// settle is set when this mutation produced a settlement request.
	settle *core.SettlementRequest
}

// CreateAuction validates cfg and registers a new auction in status created.
func (e *Engine) CreateAuction(ctx context.Context, seller string, cfg core.AuctionConfig) (core.Auction, error) {
	if err := ctx.Err(); err != nil {
		return core.Auction{}, err
	}
	if seller == "" {
		return core.Auction{}, core.ValidationError("seller", "is required")
	}
	now := e.clock.Now()
	if err := core.ValidateConfig(cfg, now, e.startGrace); err != nil {
		return core.Auction{}, err
	}
	cfg.StartingPrice = core.RoundAmount(cfg.StartingPrice)
	cfg.MinimumIncrement = core.RoundAmount(cfg.MinimumIncrement)

	a := core.Auction{
		ID:            e.newID(),
		Seller:        seller,
		Config:        cfg,
		Status:        core.StatusCreated,
		CurrentPrice:  cfg.StartingPrice,
		UniqueBidders: make(map[string]int),
		Bidders:       []string{},
		CreatedAt:     now,
		EndsAt:        cfg.StartTime.Add(cfg.Duration),
		TotalVolume:   decimal.Zero,
		EscrowAmount:  decimal.Zero,
		FeesCollected: decimal.Zero,
		Version:       1,
	}
	en := &entry{id: a.ID}
	en.snap.Store(&core.Snapshot{Auction: a, Bids: []core.Bid{}})

	e.mu.Lock()
	if _, exists := e.entries[a.ID]; exists {
		e.mu.Unlock()
		return core.Auction{}, core.StateError(core.CodeInvalidTransition, "auction %s already exists", a.ID)
	}
	e.entries[a.ID] = en
	e.order = append(e.order, a.ID)
	e.mu.Unlock()

	e.logger.Info("auction created",
		zap.String("auction_id", a.ID),
		zap.String("seller", seller),
		zap.String("type", string(cfg.Type)),
		zap.String("starting_price", cfg.StartingPrice.String()),
		zap.Time("ends_at", a.EndsAt))

	// A start time in the grace window is already due.
	snap, err := e.current(ctx, en)
	if err != nil {
		return core.Auction{}, err
	}
	return snap.Auction, nil
}

// GetAuction returns the auction with any time-driven transition applied.
func (e *Engine) GetAuction(ctx context.Context, id string) (core.Auction, error) {
	if err := ctx.Err(); err != nil {
		return core.Auction{}, err
	}
	en, err := e.lookup(id)
	if err != nil {
		return core.Auction{}, err
	}
	snap, err := e.current(ctx, en)
	if err != nil {
		return core.Auction{}, err
	}
	a := snap.Redacted().Auction
	a.CurrentPrice = core.CurrentPrice(snap, e.clock.Now())
	return a, nil
}

// Bids returns the auction's ledger in placement order. Amounts of a sealed
// auction stay hidden until it closes; each bid's commitment is shown instead.
func (e *Engine) Bids(ctx context.Context, id string) ([]core.Bid, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	en, err := e.lookup(id)
	if err != nil {
		return nil, err
	}
	snap, err := e.current(ctx, en)
	if err != nil {
		return nil, err
	}
	return append([]core.Bid(nil), snap.Redacted().Bids...), nil
}

// AuctionSnapshot returns one auction's latest committed snapshot, amounts
// included. The snapshot shares memory with the engine and must not be
// modified.
func (e *Engine) AuctionSnapshot(ctx context.Context, id string) (core.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return core.Snapshot{}, err
	}
	en, err := e.lookup(id)
	if err != nil {
		return core.Snapshot{}, err
	}
	return e.current(ctx, en)
}

// Snapshot returns every auction's latest committed snapshot in creation
// order, with open sealed auctions redacted.
func (e *Engine) Snapshot(ctx context.Context) ([]core.Snapshot, error) {
	snaps, err := e.snapshots(ctx)
	if err != nil {
		return nil, err
	}
	for i := range snaps {
		snaps[i] = snaps[i].Redacted()
	}
	return snaps, nil
}

func (e *Engine) snapshots(ctx context.Context) ([]core.Snapshot, error) {
	e.mu.RLock()
	entries := make([]*entry, 0, len(e.order))
	for _, id := range e.order {
		entries = append(entries, e.entries[id])
	}
	e.mu.RUnlock()

	out := make([]core.Snapshot, 0, len(entries))
	for _, en := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		snap, err := e.current(ctx, en)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, nil
}

// Transition applies a caller-requested status change. Closing moves
// (ended, cancelled) resolve winners exactly as EndAuction and Cancel do;
// settled is reached only through resolution.
func (e *Engine) Transition(ctx context.Context, id string, to core.Status) (core.Auction, error) {
	if err := ctx.Err(); err != nil {
		return core.Auction{}, err
	}
	en, err := e.lookup(id)
	if err != nil {
		return core.Auction{}, err
	}
	c, err := e.mutate(en, func(t *txn) error {
		a := &t.snap.Auction
		if !core.CanTransition(a.Status, to) {
			return core.StateError(core.CodeInvalidTransition, "cannot move auction %s from %s to %s", a.ID, a.Status, to)
		}
		switch to {
		case core.StatusEnded:
			return e.close(t, core.ReasonTimeExpired)
		case core.StatusCancelled:
			return e.close(t, core.ReasonSellerCancelled)
		case core.StatusSettled:
			return core.StateError(core.CodeInvalidTransition, "auction %s settles only through resolution", a.ID)
		case core.StatusActive:
			if a.StartedAt == nil {
				started := t.now
				a.StartedAt = &started
			}
		}
		t.changed = true
		return core.Transition(a, to)
	})
	e.submit(ctx, c)
	return c.snap.Redacted().Auction, err
}

// Restore registers previously persisted snapshots. Existing auctions with
// the same id are left untouched.
func (e *Engine) Restore(snaps []core.Snapshot) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	restored := 0
	for i := range snaps {
		s := snaps[i].Clone()
		id := s.Auction.ID
		if _, exists := e.entries[id]; exists || id == "" {
			continue
		}
		if s.Auction.UniqueBidders == nil {
			s.Auction.UniqueBidders = make(map[string]int)
		}
		en := &entry{id: id}
		en.snap.Store(&s)
		e.entries[id] = en
		e.order = append(e.order, id)
		e.persistMu.Lock()
		e.persisted[id] = s.Auction.Version
		e.persistMu.Unlock()
		restored++
	}
	e.logger.Info("restored auctions", zap.Int("count", restored))
	return restored
}

// Persist saves every snapshot committed since the last Persist.
func (e *Engine) Persist(ctx context.Context, store SnapshotSaver) (int, error) {
	snaps, err := e.snapshots(ctx)
	if err != nil {
		return 0, err
	}
	saved := 0
	for _, s := range snaps {
		id, version := s.Auction.ID, s.Auction.Version
		e.persistMu.Lock()
		done := e.persisted[id] >= version
		e.persistMu.Unlock()
		if done {
			continue
		}
		if err := store.Save(ctx, s); err != nil {
			return saved, fmt.Errorf("failed to persist auction %s: %w", id, err)
		}
		e.persistMu.Lock()
		if e.persisted[id] < version {
			e.persisted[id] = version
		}
		e.persistMu.Unlock()
		saved++
	}
	return saved, nil
}

func (e *Engine) lookup(id string) (*entry, error) {
	e.mu.RLock()
	en, ok := e.entries[id]
	e.mu.RUnlock()
	if !ok {
		return nil, core.NotFoundError(id)
	}
	return en, nil
}

// current returns the latest snapshot, first committing any time-driven
// transition that is due. The writer lock is taken only when one is due.
func (e *Engine) current(ctx context.Context, en *entry) (core.Snapshot, error) {
	snap := en.snap.Load()
	if core.DueStatus(snap.Auction, e.clock.Now(), e.endingWindow) == snap.Auction.Status {
		return *snap, nil
	}
	c, err := e.mutate(en, func(*txn) error { return nil })
	e.submit(ctx, c)
	return c.snap, err
}

// commit is the outcome of a mutation.
type commit struct {
	snap   core.Snapshot
	settle *core.SettlementRequest
}

// mutate runs fn on a private copy of the latest snapshot under the
// auction's writer lock. Due time transitions are applied before fn. If fn
// fails, only those transitions are published; fn's changes are dropped.
func (e *Engine) mutate(en *entry, fn func(t *txn) error) (commit, error) {
	en.mu.Lock()
	defer en.mu.Unlock()

	base := en.snap.Load()
	t := &txn{snap: base.Clone(), now: e.clock.Now()}
	if err := e.advance(t); err != nil {
		return commit{snap: *base}, err
	}
	advanced := *t
	advanced.snap = t.snap.Clone()

	if err := fn(t); err != nil {
		if !advanced.changed {
			return commit{snap: *base}, err
		}
		if perr := e.publish(en, base, &advanced); perr != nil {
			return commit{snap: *base}, perr
		}
		return commit{snap: advanced.snap, settle: advanced.settle}, err
	}
	if !t.changed {
		return commit{snap: *base}, nil
	}
	if err := e.publish(en, base, t); err != nil {
		return commit{snap: *base}, err
	}
	return commit{snap: t.snap, settle: t.settle}, nil
}

// publish bumps the version and swaps in the new snapshot. A failed swap
// means a writer bypassed the entry lock.
func (e *Engine) publish(en *entry, base *core.Snapshot, t *txn) error {
	next := t.snap
	next.Auction.Version = base.Auction.Version + 1
	if !en.snap.CompareAndSwap(base, &next) {
		got := en.snap.Load().Auction.Version
		e.logger.Error("snapshot version conflict",
			zap.String("auction_id", en.id),
			zap.Uint64("expected", base.Auction.Version),
			zap.Uint64("found", got))
		return core.ConcurrencyError(en.id, base.Auction.Version, got)
	}
	t.snap = next
	return nil
}

// submit hands a settlement request to the settler. It runs after the
// writer lock is released.
func (e *Engine) submit(ctx context.Context, c commit) {
	if c.settle == nil {
		return
	}
	if e.settler == nil {
		e.logger.Warn("no settler configured, dropping settlement request",
			zap.String("auction_id", c.settle.AuctionID))
		return
	}
	if err := e.settler.Submit(context.WithoutCancel(ctx), *c.settle); err != nil {
		e.logger.Error("failed to submit settlement request",
			zap.String("auction_id", c.settle.AuctionID),
			zap.Error(err))
	}
}
