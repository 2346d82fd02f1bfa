package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/shopspring/decimal"

	"github.com/cloudx-io/dynauction/core"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

// recordingSettler keeps every submitted request.
type recordingSettler struct {
	mu       sync.Mutex
	requests []core.SettlementRequest
}

func (r *recordingSettler) Submit(_ context.Context, req core.SettlementRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req)
	return nil
}

func (r *recordingSettler) Requests() []core.SettlementRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]core.SettlementRequest(nil), r.requests...)
}

type staticReputation map[string]float64

func (s staticReputation) Reputation(_ context.Context, bidder string) (float64, error) {
	return s[bidder], nil
}

// memorySaver records saved snapshots by auction id.
type memorySaver struct {
	mu    sync.Mutex
	saved map[string]core.Snapshot
	calls int
}

func (m *memorySaver) Save(_ context.Context, snap core.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saved == nil {
		m.saved = map[string]core.Snapshot{}
	}
	m.saved[snap.Auction.ID] = snap
	m.calls++
	return nil
}

type testEnv struct {
	engine  *Engine
	clock   *ManualClock
	settler *recordingSettler
}

func newTestEnv(t *testing.T, mutate ...func(*Options)) *testEnv {
	t.Helper()
	clock := NewManualClock(t0)
	settler := &recordingSettler{}
	var seq atomic.Int64
	opts := Options{
		Clock:          clock,
		Settler:        settler,
		RandSource:     core.NewSeededRandSource(7),
		FeeBasisPoints: 250,
		NewID: func() string {
			return fmt.Sprintf("id-%d", seq.Add(1))
		},
	}
	for _, m := range mutate {
		m(&opts)
	}
	return &testEnv{engine: New(opts), clock: clock, settler: settler}
}

func englishConfig() core.AuctionConfig {
	return core.AuctionConfig{
		Type:             core.TypeEnglish,
		Title:            "GPU inference agent",
		Category:         "compute",
		Item:             core.ItemRef{Type: core.ItemAgentService, Ref: "agent-1"},
		StartingPrice:    dec("100"),
		MinimumIncrement: dec("10"),
		PaymentToken:     "USDC",
		StartTime:        t0,
		Duration:         time.Hour,
	}
}

func (env *testEnv) create(t *testing.T, cfg core.AuctionConfig) core.Auction {
	t.Helper()
	a, err := env.engine.CreateAuction(context.Background(), "seller", cfg)
	assert.NoError(t, err)
	return a
}

func (env *testEnv) bid(t *testing.T, id, bidder, amount string) BidReceipt {
	t.Helper()
	r, err := env.engine.PlaceBid(context.Background(), id, bidder, dec(amount), BidOptions{})
	assert.NoError(t, err)
	return r
}

func (env *testEnv) get(t *testing.T, id string) core.Auction {
	t.Helper()
	a, err := env.engine.GetAuction(context.Background(), id)
	assert.NoError(t, err)
	return a
}
