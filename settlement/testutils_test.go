package settlement

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/shopspring/decimal"

	"github.com/cloudx-io/dynauction/api"
	"github.com/cloudx-io/dynauction/core"
)

func testRequest(auctionID string) core.SettlementRequest {
	return core.SettlementRequest{
		AuctionID:    auctionID,
		Seller:       "seller",
		PaymentToken: "USDC",
		Winners: []core.SettlementWinner{
			{Bidder: "alice", Amount: decimal.RequireFromString("150")},
		},
		TotalPayout: decimal.RequireFromString("150"),
		Fee:         decimal.RequireFromString("3.75"),
		Reason:      core.ReasonTimeExpired,
		RequestedAt: time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC),
	}
}

func newTestSigner(t *testing.T) (*Signer, *KeyManager) {
	t.Helper()
	km, err := NewKeyManager()
	assert.NoError(t, err)
	signer, err := NewSigner(km)
	assert.NoError(t, err)
	return signer, km
}

// flakySink fails the first failures deliveries of every auction.
type flakySink struct {
	failures int

	mu       sync.Mutex
	attempts map[string]int
	MemorySink
}

func (s *flakySink) Deliver(ctx context.Context, env *api.SettlementEnvelope) error {
	s.mu.Lock()
	if s.attempts == nil {
		s.attempts = map[string]int{}
	}
	s.attempts[env.AuctionID]++
	n := s.attempts[env.AuctionID]
	s.mu.Unlock()
	if n <= s.failures {
		return errors.New("payment system unavailable")
	}
	return s.MemorySink.Deliver(ctx, env)
}

func (s *flakySink) Attempts(auctionID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts[auctionID]
}
