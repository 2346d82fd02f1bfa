package core

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func englishConfig() AuctionConfig {
	return AuctionConfig{
		Type:             TypeEnglish,
		Title:            "GPU inference agent",
		Category:         "compute",
		Item:             ItemRef{Type: ItemAgentService, Ref: "agent-1"},
		StartingPrice:    dec("100"),
		MinimumIncrement: dec("10"),
		PaymentToken:     "USDC",
		StartTime:        t0,
		Duration:         time.Hour,
	}
}

// snapshotWithBids builds a snapshot whose bids arrive one second apart,
// marking the highest one the way the ledger would.
func snapshotWithBids(t *testing.T, cfg AuctionConfig, amounts ...string) Snapshot {
	t.Helper()
	started := cfg.StartTime
	s := Snapshot{Auction: Auction{
		ID:            "auction-1",
		Seller:        "seller",
		Config:        cfg,
		Status:        StatusActive,
		CurrentPrice:  cfg.StartingPrice,
		UniqueBidders: map[string]int{},
		StartedAt:     &started,
		EndsAt:        cfg.StartTime.Add(cfg.Duration),
	}}
	for i, amount := range amounts {
		bid := Bid{
			ID:        fmt.Sprintf("bid%d", i+1),
			AuctionID: s.Auction.ID,
			Bidder:    fmt.Sprintf("bidder_%c", 'a'+i),
			Amount:    dec(amount),
			Timestamp: cfg.StartTime.Add(time.Duration(i+1) * time.Second),
		}
		if IsWinningBid(s, bid.Amount) {
			for j := range s.Bids {
				s.Bids[j].IsWinning = false
			}
			bid.IsWinning = true
			s.Auction.HighestBidID = bid.ID
			if !IsSealed(cfg.Type) {
				s.Auction.CurrentPrice = bid.Amount
			}
		}
		s.Bids = append(s.Bids, bid)
	}
	return s
}

// mockRandSource provides a deterministic random source for testing
type mockRandSource struct {
	sequence []int
	index    int
}

func (m *mockRandSource) Intn(n int) int {
	if m.index >= len(m.sequence) {
		return 0
	}
	val := m.sequence[m.index] % n
	m.index++
	return val
}
