package core

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ComputeBidCommitment computes the commitment published for sealed bids.
//
// Formula: SHA256(bid_id + "|" + amount with 6 decimals + "|" + nonce)
//
// The amount is formatted to exactly MonetaryPrecision places so the hash
// does not depend on how the decimal was constructed.
func ComputeBidCommitment(bidID string, amount decimal.Decimal, nonce string) string {
	data := fmt.Sprintf("%s|%s|%s", bidID, amount.StringFixed(MonetaryPrecision), nonce)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// ComputeSettlementHash computes the digest of a settlement request.
// Validators recompute it to check a signed envelope against its payload.
//
// Formula: SHA256(auction_id + "|" + seller + "|" + token + "|" + total + "|" + fee + "|" + winners)
// where winners = "bidder1:amount1,bidder2:amount2,..." in resolution order.
func ComputeSettlementHash(req SettlementRequest) string {
	winners := make([]string, 0, len(req.Winners))
	for _, w := range req.Winners {
		winners = append(winners, fmt.Sprintf("%s:%s", w.Bidder, w.Amount.StringFixed(MonetaryPrecision)))
	}
	data := fmt.Sprintf("%s|%s|%s|%s|%s|%s",
		req.AuctionID,
		req.Seller,
		req.PaymentToken,
		req.TotalPayout.StringFixed(MonetaryPrecision),
		req.Fee.StringFixed(MonetaryPrecision),
		strings.Join(winners, ","),
	)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}
