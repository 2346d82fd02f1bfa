package core

import (
	"testing"

	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"
)

func TestMeetsReserve(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		reserve  *decimal.Decimal
		expected bool
	}{
		{"no reserve - always passes", "1.0", nil, true},
		{"amount above reserve", "3.0", decPtr("2.5"), true},
		{"amount at reserve", "2.5", decPtr("2.5"), true},
		{"amount below reserve", "2.0", decPtr("2.5"), false},
		{"precision edge case - passes", "2.4999999999", decPtr("2.5"), true},
		{"precision edge case - fails", "2.499999", decPtr("2.5"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check.Equal(t, tt.expected, MeetsReserve(dec(tt.amount), tt.reserve))
		})
	}
}

func TestEnforceReserve(t *testing.T) {
	bids := []Bid{
		{ID: "bid1", Bidder: "bidder_1", Amount: dec("3.0")},
		{ID: "bid2", Bidder: "bidder_2", Amount: dec("2.5")},
		{ID: "bid3", Bidder: "bidder_3", Amount: dec("2.0")},
	}

	eligible, rejected := EnforceReserve(bids, decPtr("2.5"))

	check.Equal(t, 2, len(eligible))
	check.Equal(t, "bid1", eligible[0].ID)
	check.Equal(t, "bid2", eligible[1].ID)
	check.Equal(t, []string{"bid3"}, rejected)
}

func TestEnforceReserve_NoReserve(t *testing.T) {
	bids := []Bid{
		{ID: "bid1", Bidder: "bidder_1", Amount: dec("0.5")},
	}

	eligible, rejected := EnforceReserve(bids, nil)

	check.Equal(t, 1, len(eligible))
	check.Equal(t, 0, len(rejected))
}
