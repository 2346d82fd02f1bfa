package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cloudx-io/dynauction/core"
)

// BidOptions are optional per-bid parameters.
type BidOptions struct {
	// MaxBid, when set, is a proxy ceiling the engine may bid up to.
	MaxBid        *decimal.Decimal
	AutoIncrement decimal.Decimal
	Conditions    []string
	// Deposit is what the bidder escrows with a first bid.
	Deposit decimal.Decimal
}

// BidReceipt describes an accepted bid.
type BidReceipt struct {
	BidID          string          `json:"bid_id"`
	IsWinning      bool            `json:"is_winning"`
	NextMinimumBid decimal.Decimal `json:"next_minimum_bid"`
	// AutoBids counts proxy bids the engine placed in response.
	AutoBids int `json:"auto_bids"`
}

// PlaceBid admits a bid or rejects it without mutating the auction.
//
// Processing flow:
//  1. Look up the auction and fetch the bidder's reputation if the auction requires one
//  2. Under the writer lock, apply due transitions and check preconditions in order
//  3. Append the bid, let displaced proxy ceilings respond, extend the end if sniped
//  4. End a Dutch auction at the accepted price and hand off the settlement request
func (e *Engine) PlaceBid(ctx context.Context, auctionID, bidder string, amount decimal.Decimal, opts BidOptions) (BidReceipt, error) {
	if err := ctx.Err(); err != nil {
		return BidReceipt{}, err
	}
	en, err := e.lookup(auctionID)
	if err != nil {
		return BidReceipt{}, err
	}
	rep, err := e.fetchReputation(ctx, en, bidder)
	if err != nil {
		return BidReceipt{}, err
	}

	var receipt BidReceipt
	c, err := e.mutate(en, func(t *txn) error {
		next := core.NextMinimumBid(t.snap, t.now)
		if err := e.admitBid(t, bidder, amount, opts, rep, &receipt); err != nil {
			var derr *core.Error
			if errors.As(err, &derr) {
				return derr.WithNextMinimum(next)
			}
			return err
		}
		return nil
	})
	e.submit(ctx, c)
	if err != nil {
		e.logger.Debug("bid rejected",
			zap.String("auction_id", auctionID),
			zap.String("bidder", bidder),
			zap.String("amount", amount.String()),
			zap.String("code", core.Code(err)))
		return BidReceipt{}, err
	}
	return receipt, nil
}

func (e *Engine) admitBid(t *txn, bidder string, amount decimal.Decimal, opts BidOptions, rep *float64, receipt *BidReceipt) error {
	a := t.snap.Auction
	cfg := a.Config

	if err := e.checkBidder(t, bidder, rep); err != nil {
		return err
	}

	limit := cfg.MaxBidsPerUser
	if limit == 0 {
		limit = e.defaultMaxBids
	}
	if limit > 0 && a.UniqueBidders[bidder] >= limit {
		return &core.Error{Kind: core.ErrValidation, Code: core.CodeBidCapExceeded, Field: "bidder",
			Message: fmt.Sprintf("bidder %s reached the limit of %d bids", bidder, limit)}
	}

	if !cfg.DepositRequired.IsZero() {
		if _, seen := a.UniqueBidders[bidder]; !seen && opts.Deposit.LessThan(cfg.DepositRequired) {
			return &core.Error{Kind: core.ErrValidation, Code: core.CodeDepositRequired, Field: "deposit",
				Message: fmt.Sprintf("first bid requires a deposit of %s", cfg.DepositRequired)}
		}
	}

	amount = core.RoundAmount(amount)
	next := core.NextMinimumBid(t.snap, t.now)
	if !amount.IsPositive() || amount.LessThan(next) {
		return &core.Error{Kind: core.ErrValidation, Code: core.CodeBidTooLow, Field: "amount",
			Message: fmt.Sprintf("bid %s is below the minimum %s", amount, next)}
	}

	var proxy *core.ProxyData
	if opts.MaxBid != nil {
		if !cfg.ProxyBidding {
			return core.ValidationError("max_bid", "proxy bidding is not enabled for this auction")
		}
		ceiling := core.RoundAmount(*opts.MaxBid)
		if ceiling.LessThan(amount) {
			return core.ValidationError("max_bid", "must be at least the bid amount")
		}
		if opts.AutoIncrement.IsNegative() {
			return core.ValidationError("auto_increment", "must not be negative")
		}
		proxy = &core.ProxyData{
			MaxBid:        ceiling,
			AutoIncrement: core.RoundAmount(opts.AutoIncrement),
			Conditions:    append([]string(nil), opts.Conditions...),
		}
	}

	bid := core.Bid{
		ID:        e.newID(),
		AuctionID: a.ID,
		Bidder:    bidder,
		Amount:    amount,
		Timestamp: t.now,
		Proxy:     proxy,
	}
	if core.IsSealed(cfg.Type) {
		bid.Commitment = core.ComputeBidCommitment(bid.ID, amount, a.ID)
	}
	if _, seen := a.UniqueBidders[bidder]; !seen {
		t.snap.Auction.EscrowAmount = t.snap.Auction.EscrowAmount.Add(opts.Deposit)
	}
	e.appendBid(t, bid)

	if core.IsDescending(cfg.Type) {
		// The accepted bid pays the posted price, not the offer.
		t.snap.Auction.CurrentPrice = next
		if err := e.close(t, core.ReasonPriceAccepted); err != nil {
			return err
		}
		*receipt = BidReceipt{BidID: bid.ID, IsWinning: true, NextMinimumBid: next}
		return nil
	}

	autoBids := e.respondToProxies(t)
	if core.MaybeExtend(&t.snap.Auction, t.now) {
		e.logger.Info("auction extended",
			zap.String("auction_id", a.ID),
			zap.Time("ends_at", t.snap.Auction.EndsAt),
			zap.Int("extensions", t.snap.Auction.Extensions))
	}

	// A proxy answered on the bidder's behalf still counts as leading.
	leader := t.snap.HighestBid()
	*receipt = BidReceipt{
		BidID:          bid.ID,
		IsWinning:      leader != nil && leader.Bidder == bidder,
		NextMinimumBid: core.NextMinimumBid(t.snap, t.now),
		AutoBids:       autoBids,
	}
	if core.IsSealed(cfg.Type) {
		// Standing is not revealed while bids are sealed.
		receipt.IsWinning = false
	}
	return nil
}

// checkBidder runs the status and identity preconditions shared by
// PlaceBid and BuyNow.
func (e *Engine) checkBidder(t *txn, bidder string, rep *float64) error {
	a := t.snap.Auction
	switch {
	case a.Status == core.StatusCreated || a.Status == core.StatusCancelled:
		return core.StateError(core.CodeNotActive, "auction %s is %s", a.ID, a.Status)
	case a.IsClosed() || t.now.After(a.EndsAt):
		return core.StateError(core.CodeEnded, "auction %s has ended", a.ID)
	}
	if bidder == "" {
		return core.ValidationError("bidder", "is required")
	}
	if bidder == a.Seller {
		return core.AuthorizationError(core.CodeSelfBid, "seller cannot bid on their own auction")
	}
	acl := a.Config.Access
	if acl.IsPrivate && !slices.Contains(acl.Whitelist, bidder) {
		return core.AuthorizationError(core.CodeNotWhitelisted, "bidder %s is not on the whitelist", bidder)
	}
	if slices.Contains(acl.Blacklist, bidder) {
		return core.AuthorizationError(core.CodeBlacklisted, "bidder %s is blacklisted", bidder)
	}
	if acl.MinReputation > 0 && (rep == nil || *rep < acl.MinReputation) {
		return core.AuthorizationError(core.CodeInsufficientReputation,
			"bidder %s is below the required reputation %.1f", bidder, acl.MinReputation)
	}
	return nil
}

// fetchReputation asks the reputation source outside the writer lock.
// It returns nil when the auction sets no minimum.
func (e *Engine) fetchReputation(ctx context.Context, en *entry, bidder string) (*float64, error) {
	if en.snap.Load().Auction.Config.Access.MinReputation <= 0 || e.reputation == nil {
		return nil, nil
	}
	r, err := e.reputation.Reputation(ctx, bidder)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch reputation for %s: %w", bidder, err)
	}
	return &r, nil
}

// appendBid adds bid to the ledger and updates the auction's aggregates.
func (e *Engine) appendBid(t *txn, bid core.Bid) {
	s := &t.snap
	a := &s.Auction
	if core.IsWinningBid(*s, bid.Amount) {
		for i := range s.Bids {
			s.Bids[i].IsWinning = false
		}
		bid.IsWinning = true
		a.HighestBidID = bid.ID
		if !core.IsSealed(a.Config.Type) {
			a.CurrentPrice = bid.Amount
		}
	}
	s.Bids = append(s.Bids, bid)
	t.changed = true

	a.TotalBids++
	a.TotalVolume = a.TotalVolume.Add(bid.Amount)
	if _, seen := a.UniqueBidders[bid.Bidder]; !seen {
		a.Bidders = append(a.Bidders, bid.Bidder)
		a.UniqueBidders[bid.Bidder] = 0
	}
	if !bid.Auto {
		a.UniqueBidders[bid.Bidder]++
	}
}
