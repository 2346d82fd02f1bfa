// Package engine runs auctions: it owns the registry of auctions, the
// per-auction bid ledgers and the lifecycle scheduler.
//
// Every mutation of one auction runs under that auction's writer lock on a
// private copy of the latest snapshot; the copy is published atomically on
// success. Readers load published snapshots without locking.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cloudx-io/dynauction/core"
)

// Settler receives settlement requests. Submit must not block on delivery.
type Settler interface {
	Submit(ctx context.Context, req core.SettlementRequest) error
}

// ReputationSource reports a bidder's reputation in [0, 100].
type ReputationSource interface {
	Reputation(ctx context.Context, bidder string) (float64, error)
}

// SnapshotSaver persists committed snapshots.
type SnapshotSaver interface {
	Save(ctx context.Context, snap core.Snapshot) error
}

// Options configures an Engine. Zero values select defaults.
type Options struct {
	Clock      Clock
	Settler    Settler
	Reputation ReputationSource
	RandSource core.RandSource
	Logger     *zap.Logger

	// EndingWindow is how long before EndsAt an auction reports ending.
	EndingWindow time.Duration
	// StartGrace bounds how far in the past a new auction may start.
	StartGrace time.Duration
	// DefaultMaxBidsPerUser applies when an auction sets no cap. 0 disables it.
	DefaultMaxBidsPerUser int
	FeeBasisPoints        int

	NewID func() string
}

const (
	DefaultEndingWindow = time.Minute
	// maxAutoBids bounds proxy responses per placement.
	maxAutoBids = 2
)

// Engine is safe for concurrent use.
type Engine struct {
	clock      Clock
	settler    Settler
	reputation ReputationSource
	rand       core.RandSource
	logger     *zap.Logger
	newID      func() string

	endingWindow   time.Duration
	startGrace     time.Duration
	defaultMaxBids int
	feeBps         int

	mu      sync.RWMutex // guards entries and order; never held during a mutation
	entries map[string]*entry
	order   []string

	persistMu sync.Mutex
	persisted map[string]uint64 // auction id -> last saved version
}

// New creates an Engine.
func New(opts Options) *Engine {
	e := &Engine{
		clock:          opts.Clock,
		settler:        opts.Settler,
		reputation:     opts.Reputation,
		rand:           opts.RandSource,
		logger:         opts.Logger,
		newID:          opts.NewID,
		endingWindow:   opts.EndingWindow,
		startGrace:     opts.StartGrace,
		defaultMaxBids: opts.DefaultMaxBidsPerUser,
		feeBps:         opts.FeeBasisPoints,
		entries:        make(map[string]*entry),
		persisted:      make(map[string]uint64),
	}
	if e.clock == nil {
		e.clock = SystemClock{}
	}
	if e.rand == nil {
		e.rand = core.DefaultRandSource
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	if e.newID == nil {
		e.newID = uuid.NewString
	}
	if e.endingWindow == 0 {
		e.endingWindow = DefaultEndingWindow
	}
	if e.startGrace == 0 {
		e.startGrace = core.DefaultGrace
	}
	return e
}

// Now returns the engine clock's current time.
func (e *Engine) Now() time.Time {
	return e.clock.Now()
}
