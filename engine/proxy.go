package engine

import (
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cloudx-io/dynauction/core"
)

// proxyCeiling is a bidder's standing automatic ceiling.
type proxyCeiling struct {
	bidder string
	data   core.ProxyData
}

// respondToProxies lets the strongest displaced proxy ceiling answer the
// current leader, and lets the leader's own ceiling answer back, at most
// maxAutoBids times. Each auto-bid is min(ceiling, rival ceiling + step)
// and must clear the normal minimum.
func (e *Engine) respondToProxies(t *txn) int {
	cfg := t.snap.Auction.Config
	if !cfg.ProxyBidding || !core.SupportsProxy(cfg.Type) {
		return 0
	}
	placed := 0
	for placed < maxAutoBids {
		leader := t.snap.HighestBid()
		if leader == nil {
			return placed
		}
		rival, ok := strongestRival(t.snap, leader.Bidder)
		if !ok {
			return placed
		}
		minimum := core.NextMinimumBid(t.snap, t.now)
		if rival.data.MaxBid.LessThan(minimum) {
			return placed
		}

		step := rival.data.AutoIncrement
		if !step.IsPositive() {
			step = cfg.MinimumIncrement
		}
		leaderCeiling := leader.Amount
		if p, ok := latestProxy(t.snap, leader.Bidder); ok && p.data.MaxBid.GreaterThan(leaderCeiling) {
			leaderCeiling = p.data.MaxBid
		}
		amount := decimal.Min(rival.data.MaxBid, leaderCeiling.Add(step))
		amount = decimal.Max(amount, minimum)

		data := rival.data
		bid := core.Bid{
			ID:        e.newID(),
			AuctionID: t.snap.Auction.ID,
			Bidder:    rival.bidder,
			Amount:    core.RoundAmount(amount),
			Timestamp: t.now,
			Auto:      true,
			Proxy:     &data,
		}
		e.appendBid(t, bid)
		placed++
		e.logger.Debug("proxy bid placed",
			zap.String("auction_id", bid.AuctionID),
			zap.String("bidder", bid.Bidder),
			zap.String("amount", bid.Amount.String()))
	}
	return placed
}

// strongestRival picks the highest standing ceiling among bidders other
// than leader. Ties go to the bidder who entered the auction first.
func strongestRival(s core.Snapshot, leader string) (proxyCeiling, bool) {
	var best proxyCeiling
	found := false
	for _, bidder := range s.Auction.Bidders {
		if bidder == leader {
			continue
		}
		p, ok := latestProxy(s, bidder)
		if !ok {
			continue
		}
		if !found || p.data.MaxBid.GreaterThan(best.data.MaxBid) {
			best, found = p, true
		}
	}
	return best, found
}

// latestProxy returns the most recent ceiling a bidder set.
func latestProxy(s core.Snapshot, bidder string) (proxyCeiling, bool) {
	for i := len(s.Bids) - 1; i >= 0; i-- {
		b := s.Bids[i]
		if b.Bidder == bidder && b.Proxy != nil {
			return proxyCeiling{bidder: bidder, data: *b.Proxy}, true
		}
	}
	return proxyCeiling{}, false
}
