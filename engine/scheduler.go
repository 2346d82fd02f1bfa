package engine

import (
	"context"
	"slices"

	"go.uber.org/zap"

	"github.com/cloudx-io/dynauction/core"
)

// advance applies every time-driven transition due at t.now.
func (e *Engine) advance(t *txn) error {
	a := &t.snap.Auction
	for {
		due := core.DueStatus(*a, t.now, e.endingWindow)
		if due == a.Status {
			return nil
		}
		t.changed = true
		switch {
		case a.Status == core.StatusCreated:
			started := a.Config.StartTime
			a.StartedAt = &started
			if err := core.Transition(a, core.StatusActive); err != nil {
				return err
			}
			e.logger.Info("auction started", zap.String("auction_id", a.ID))
		case due == core.StatusEnding:
			if err := core.Transition(a, core.StatusEnding); err != nil {
				return err
			}
		case due == core.StatusEnded:
			return e.close(t, core.ReasonTimeExpired)
		default:
			return nil
		}
	}
}

// close resolves winners and moves the auction out of bidding. With at
// least one winner a settlement request is produced and the auction
// settles; otherwise it stays ended (or cancelled).
func (e *Engine) close(t *txn, reason core.EndReason) error {
	a := &t.snap.Auction
	res := core.Resolve(core.ResolveInput{
		Snapshot:       t.snap,
		Reason:         reason,
		Now:            t.now,
		FeeBasisPoints: e.feeBps,
		RandSource:     e.rand,
	})

	to := core.StatusEnded
	if reason == core.ReasonSellerCancelled {
		to = core.StatusCancelled
	}
	if err := core.Transition(a, to); err != nil {
		return err
	}
	t.changed = true
	ended := t.now
	a.ActualEndTime = &ended
	a.Resolution = &res
	if core.IsSealed(a.Config.Type) && len(res.Winners) > 0 {
		a.CurrentPrice = res.FinalPrice
	}

	e.logger.Info("auction closed",
		zap.String("auction_id", a.ID),
		zap.String("reason", string(res.Reason)),
		zap.Int("winners", len(res.Winners)),
		zap.String("total_payout", res.TotalPayout.String()))

	if len(res.Winners) == 0 || a.SettlementRequested {
		return nil
	}
	a.FeesCollected = res.Fee
	a.SettlementRequested = true
	req := a.ToSettlementRequest(t.now)
	t.settle = &req
	return core.Transition(a, core.StatusSettled)
}

// EndAuction closes an auction early or confirms its expiry. It is
// idempotent: once closed, the cached resolution is returned unchanged and
// no further settlement request is produced.
func (e *Engine) EndAuction(ctx context.Context, id string, reason core.EndReason) (core.Resolution, error) {
	if err := ctx.Err(); err != nil {
		return core.Resolution{}, err
	}
	switch reason {
	case "", core.ReasonReserveNotMet:
		// Resolution reports reserve_not_met itself when no bid qualifies.
		reason = core.ReasonTimeExpired
	case core.ReasonTimeExpired, core.ReasonSellerCancelled:
	default:
		return core.Resolution{}, core.ValidationError("reason", "cannot end an auction with reason %q", reason)
	}
	en, err := e.lookup(id)
	if err != nil {
		return core.Resolution{}, err
	}

	c, err := e.mutate(en, func(t *txn) error {
		a := t.snap.Auction
		if a.Resolution != nil {
			return nil
		}
		if reason == core.ReasonSellerCancelled {
			if err := cancellable(t.snap); err != nil {
				return err
			}
		} else if a.Status != core.StatusActive && a.Status != core.StatusEnding {
			return core.StateError(core.CodeNotActive, "auction %s is %s", a.ID, a.Status)
		}
		return e.close(t, reason)
	})
	e.submit(ctx, c)
	if err != nil {
		return core.Resolution{}, err
	}
	if c.snap.Auction.Resolution == nil {
		return core.Resolution{}, core.StateError(core.CodeNotActive, "auction %s is %s", id, c.snap.Auction.Status)
	}
	return *c.snap.Auction.Resolution, nil
}

// BuyNow ends the auction immediately with buyer paying the buy-now price.
func (e *Engine) BuyNow(ctx context.Context, id, buyer string) (core.Resolution, error) {
	if err := ctx.Err(); err != nil {
		return core.Resolution{}, err
	}
	en, err := e.lookup(id)
	if err != nil {
		return core.Resolution{}, err
	}
	var rep *float64
	if rep, err = e.fetchReputation(ctx, en, buyer); err != nil {
		return core.Resolution{}, err
	}

	c, err := e.mutate(en, func(t *txn) error {
		a := t.snap.Auction
		price := a.Config.BuyNowPrice
		if price == nil {
			return &core.Error{Kind: core.ErrValidation, Code: core.CodeNoBuyNow, Field: "buy_now_price",
				Message: "auction has no buy-now price"}
		}
		if err := e.checkBidder(t, buyer, rep); err != nil {
			return err
		}
		if h := t.snap.HighestBid(); h != nil && !core.IsSealed(a.Config.Type) && !h.Amount.LessThan(*price) {
			return core.StateError(core.CodeNoBuyNow, "bidding has reached the buy-now price")
		}
		bid := core.Bid{
			ID:        e.newID(),
			AuctionID: a.ID,
			Bidder:    buyer,
			Amount:    core.RoundAmount(*price),
			Timestamp: t.now,
		}
		e.appendBid(t, bid)
		// The purchase wins outright, even over sealed bids at or above the price.
		t.snap.Auction.HighestBidID = bid.ID
		for i := range t.snap.Bids {
			t.snap.Bids[i].IsWinning = t.snap.Bids[i].ID == bid.ID
		}
		return e.close(t, core.ReasonBuyNow)
	})
	e.submit(ctx, c)
	if err != nil {
		return core.Resolution{}, err
	}
	return *c.snap.Auction.Resolution, nil
}

// Cancel lets the seller withdraw an auction that has no binding bid.
func (e *Engine) Cancel(ctx context.Context, id, seller string) (core.Auction, error) {
	if err := ctx.Err(); err != nil {
		return core.Auction{}, err
	}
	en, err := e.lookup(id)
	if err != nil {
		return core.Auction{}, err
	}
	c, err := e.mutate(en, func(t *txn) error {
		if t.snap.Auction.Seller != seller {
			return core.AuthorizationError(core.CodeNotSeller, "only the seller may cancel auction %s", id)
		}
		if err := cancellable(t.snap); err != nil {
			return err
		}
		return e.close(t, core.ReasonSellerCancelled)
	})
	e.submit(ctx, c)
	if err != nil {
		return core.Auction{}, err
	}
	return c.snap.Auction, nil
}

// cancellable reports whether an auction may still be withdrawn. Once a
// bid meets the reserve, or any bid lands on an auction without one, the
// seller is bound.
func cancellable(s core.Snapshot) error {
	a := s.Auction
	if a.Status != core.StatusCreated && a.Status != core.StatusActive {
		return core.StateError(core.CodeCancelNotAllowed, "auction %s is %s", a.ID, a.Status)
	}
	reserve := a.Config.ReservePrice
	for _, b := range s.Bids {
		if reserve == nil || core.MeetsReserve(b.Amount, reserve) {
			return core.StateError(core.CodeCancelNotAllowed, "auction %s has a binding bid", a.ID)
		}
	}
	return nil
}

// Dispute flags a closed auction for review.
func (e *Engine) Dispute(ctx context.Context, id string) (core.Auction, error) {
	if err := ctx.Err(); err != nil {
		return core.Auction{}, err
	}
	en, err := e.lookup(id)
	if err != nil {
		return core.Auction{}, err
	}
	c, err := e.mutate(en, func(t *txn) error {
		if err := core.Transition(&t.snap.Auction, core.StatusDisputed); err != nil {
			return err
		}
		t.changed = true
		e.logger.Warn("auction disputed", zap.String("auction_id", id))
		return nil
	})
	e.submit(ctx, c)
	if err != nil {
		return core.Auction{}, err
	}
	return c.snap.Auction, nil
}

// RecordView counts one view of the auction.
func (e *Engine) RecordView(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	en, err := e.lookup(id)
	if err != nil {
		return err
	}
	c, err := e.mutate(en, func(t *txn) error {
		t.snap.Auction.ViewCount++
		t.changed = true
		return nil
	})
	e.submit(ctx, c)
	return err
}

// Watch adds user to the auction's watchers. Watching twice is a no-op.
func (e *Engine) Watch(ctx context.Context, id, user string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if user == "" {
		return core.ValidationError("user", "is required")
	}
	en, err := e.lookup(id)
	if err != nil {
		return err
	}
	c, err := e.mutate(en, func(t *txn) error {
		if slices.Contains(t.snap.Auction.Watchers, user) {
			return nil
		}
		t.snap.Auction.Watchers = append(t.snap.Auction.Watchers, user)
		t.changed = true
		return nil
	})
	e.submit(ctx, c)
	return err
}

// Sweep commits every due time-driven transition and returns how many
// auctions changed status.
func (e *Engine) Sweep(ctx context.Context) (int, error) {
	e.mu.RLock()
	entries := make([]*entry, 0, len(e.order))
	for _, id := range e.order {
		entries = append(entries, e.entries[id])
	}
	e.mu.RUnlock()

	advanced := 0
	now := e.clock.Now()
	for _, en := range entries {
		if err := ctx.Err(); err != nil {
			return advanced, err
		}
		snap := en.snap.Load()
		if core.DueStatus(snap.Auction, now, e.endingWindow) == snap.Auction.Status {
			continue
		}
		c, err := e.mutate(en, func(*txn) error { return nil })
		e.submit(ctx, c)
		if err != nil {
			return advanced, err
		}
		if c.snap.Auction.Status != snap.Auction.Status {
			advanced++
		}
	}
	return advanced, nil
}
