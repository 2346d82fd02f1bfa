package core

import (
	"github.com/shopspring/decimal"
)

const MonetaryPrecision int32 = 6 // 6 decimal places, the precision of payment tokens

// MeetsReserve returns true if the amount meets or exceeds the reserve price.
// Uses decimal arithmetic with MonetaryPrecision to avoid rounding noise.
func MeetsReserve(amount decimal.Decimal, reserve *decimal.Decimal) bool {
	if reserve == nil {
		return true
	}
	return amount.Round(MonetaryPrecision).GreaterThanOrEqual(reserve.Round(MonetaryPrecision))
}

// EnforceReserve splits bids into those meeting the reserve and the IDs of those that do not.
// With no reserve every bid is eligible.
func EnforceReserve(bids []Bid, reserve *decimal.Decimal) (eligible []Bid, rejectedBidIDs []string) {
	eligibleBids := make([]Bid, 0, len(bids))
	rejectedIDs := make([]string, 0)

	for _, bid := range bids {
		if MeetsReserve(bid.Amount, reserve) {
			eligibleBids = append(eligibleBids, bid)
		} else {
			rejectedIDs = append(rejectedIDs, bid.ID)
		}
	}

	return eligibleBids, rejectedIDs
}
