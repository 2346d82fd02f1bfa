package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// AuctionType selects the pricing, admission and resolution rules of an auction.
type AuctionType string

const (
	TypeEnglish   AuctionType = "english"
	TypeDutch     AuctionType = "dutch"
	TypeSealedBid AuctionType = "sealed_bid"
	TypeVickrey   AuctionType = "vickrey"
	TypeReverse   AuctionType = "reverse"
	TypeCandle    AuctionType = "candle"
	TypeReserve   AuctionType = "reserve"
	TypeBuyNow    AuctionType = "buy_now"
)

// Status is a lifecycle state. See lifecycle.go for the transition table.
type Status string

const (
	StatusCreated   Status = "created"
	StatusActive    Status = "active"
	StatusEnding    Status = "ending"
	StatusEnded     Status = "ended"
	StatusCancelled Status = "cancelled"
	StatusSettled   Status = "settled"
	StatusDisputed  Status = "disputed"
)

// ItemType classifies what is being auctioned.
type ItemType string

const (
	ItemAgentService ItemType = "agent_service"
	ItemListing      ItemType = "listing"
	ItemBundle       ItemType = "bundle"
)

// EndReason records why an auction stopped taking bids.
type EndReason string

const (
	ReasonTimeExpired     EndReason = "time_expired"
	ReasonBuyNow          EndReason = "buy_now"
	ReasonReserveNotMet   EndReason = "reserve_not_met"
	ReasonSellerCancelled EndReason = "seller_cancelled"
	ReasonPriceAccepted   EndReason = "price_accepted"
	ReasonNoBids          EndReason = "no_bids"
)

// WinnerStrategy selects how multiple winners are chosen.
type WinnerStrategy string

const (
	StrategyHighestBids  WinnerStrategy = "highest_bids"
	StrategyLottery      WinnerStrategy = "lottery"
	StrategyProportional WinnerStrategy = "proportional"
)

// ItemRef points at the tradable item.
type ItemRef struct {
	Type ItemType `json:"type"`
	Ref  string   `json:"ref"`
}

// AccessControl restricts who may bid.
type AccessControl struct {
	IsPrivate     bool     `json:"is_private"`
	Whitelist     []string `json:"whitelist,omitempty"`
	Blacklist     []string `json:"blacklist,omitempty"`
	MinReputation float64  `json:"min_reputation,omitempty"`
}

// MultiWinner enables several winners per auction.
type MultiWinner struct {
	Enabled    bool           `json:"enabled"`
	MaxWinners int            `json:"max_winners"`
	Strategy   WinnerStrategy `json:"strategy"`
}

// AuctionConfig is fixed at creation time.
type AuctionConfig struct {
	Type             AuctionType      `json:"type"`
	Title            string           `json:"title"`
	Description      string           `json:"description,omitempty"`
	Category         string           `json:"category,omitempty"`
	Item             ItemRef          `json:"item"`
	StartingPrice    decimal.Decimal  `json:"starting_price"`
	ReservePrice     *decimal.Decimal `json:"reserve_price,omitempty"`
	BuyNowPrice      *decimal.Decimal `json:"buy_now_price,omitempty"`
	MinimumIncrement decimal.Decimal  `json:"minimum_increment"`
	PaymentToken     string           `json:"payment_token"`
	StartTime        time.Time        `json:"start_time"`
	Duration         time.Duration    `json:"duration"`
	ExtensionTrigger time.Duration    `json:"extension_trigger,omitempty"`
	ExtensionTime    time.Duration    `json:"extension_time,omitempty"`
	MaxExtensions    int              `json:"max_extensions,omitempty"` // 0 means unbounded
	CandleWindow     time.Duration    `json:"candle_window,omitempty"`
	ProxyBidding     bool             `json:"proxy_bidding"`
	DepositRequired  decimal.Decimal  `json:"deposit_required"`
	MaxBidsPerUser   int              `json:"max_bids_per_user,omitempty"`
	Access           AccessControl    `json:"access"`
	MultiWinner      MultiWinner      `json:"multi_winner"`
}

// ProxyData carries a bidder's pre-authorized ceiling.
type ProxyData struct {
	MaxBid        decimal.Decimal `json:"max_bid"`
	AutoIncrement decimal.Decimal `json:"auto_increment"`
	Conditions    []string        `json:"conditions,omitempty"`
}

// Bid is immutable once appended to the ledger.
type Bid struct {
	ID         string          `json:"id"`
	AuctionID  string          `json:"auction_id"`
	Bidder     string          `json:"bidder"`
	Amount     decimal.Decimal `json:"amount"`
	Timestamp  time.Time       `json:"timestamp"`
	IsWinning  bool            `json:"is_winning"`
	Auto       bool            `json:"auto,omitempty"`
	Proxy      *ProxyData      `json:"proxy,omitempty"`
	Commitment string          `json:"commitment,omitempty"`
}

// Winner is one resolved winner and what they are charged.
type Winner struct {
	Bidder     string          `json:"bidder"`
	BidID      string          `json:"bid_id"`
	Amount     decimal.Decimal `json:"amount"`
	Allocation decimal.Decimal `json:"allocation"`
	Rank       int             `json:"rank"`
}

// Resolution is the cached output of winner resolution.
type Resolution struct {
	Reason      EndReason       `json:"reason"`
	Winners     []Winner        `json:"winners"`
	TotalPayout decimal.Decimal `json:"total_payout"`
	FinalPrice  decimal.Decimal `json:"final_price"`
	Fee         decimal.Decimal `json:"fee"`
	Cutoff      *time.Time      `json:"cutoff,omitempty"` // candle auctions only
	ResolvedAt  time.Time       `json:"resolved_at"`
}

// Auction is owned by the registry and mutated only under its writer lock.
type Auction struct {
	ID                  string          `json:"id"`
	Seller              string          `json:"seller"`
	Config              AuctionConfig   `json:"config"`
	Status              Status          `json:"status"`
	CurrentPrice        decimal.Decimal `json:"current_price"`
	HighestBidID        string          `json:"highest_bid_id,omitempty"`
	TotalBids           int             `json:"total_bids"`
	UniqueBidders       map[string]int  `json:"unique_bidders"` // bidder -> bid count
	Bidders             []string        `json:"bidders"`
	Watchers            []string        `json:"watchers,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
	StartedAt           *time.Time      `json:"started_at,omitempty"`
	EndsAt              time.Time       `json:"ends_at"`
	ActualEndTime       *time.Time      `json:"actual_end_time,omitempty"`
	Extensions          int             `json:"extensions"`
	TotalVolume         decimal.Decimal `json:"total_volume"`
	EscrowAmount        decimal.Decimal `json:"escrow_amount"`
	FeesCollected       decimal.Decimal `json:"fees_collected"`
	ViewCount           int             `json:"view_count"`
	Resolution          *Resolution     `json:"resolution,omitempty"`
	SettlementRequested bool            `json:"settlement_requested"`
	Version             uint64          `json:"version"`
}

// Snapshot is a committed, immutable view of one auction and its ledger.
type Snapshot struct {
	Auction Auction `json:"auction"`
	Bids    []Bid   `json:"bids"`
}

// SettlementWinner is one payee line of a settlement request.
type SettlementWinner struct {
	Bidder string          `json:"bidder"`
	Amount decimal.Decimal `json:"amount"`
}

// SettlementRequest is emitted once per successful resolution.
type SettlementRequest struct {
	AuctionID    string             `json:"auction_id"`
	Seller       string             `json:"seller"`
	PaymentToken string             `json:"payment_token"`
	Winners      []SettlementWinner `json:"winners"`
	TotalPayout  decimal.Decimal    `json:"total_payout"`
	Fee          decimal.Decimal    `json:"fee"`
	Reason       EndReason          `json:"reason"`
	RequestedAt  time.Time          `json:"requested_at"`
}

// Clone returns a deep copy safe to mutate.
func (s Snapshot) Clone() Snapshot {
	a := s.Auction
	a.UniqueBidders = make(map[string]int, len(s.Auction.UniqueBidders))
	for k, v := range s.Auction.UniqueBidders {
		a.UniqueBidders[k] = v
	}
	a.Bidders = append([]string(nil), s.Auction.Bidders...)
	a.Watchers = append([]string(nil), s.Auction.Watchers...)
	if s.Auction.Resolution != nil {
		r := *s.Auction.Resolution
		r.Winners = append([]Winner(nil), r.Winners...)
		a.Resolution = &r
	}
	return Snapshot{
		Auction: a,
		Bids:    append([]Bid(nil), s.Bids...),
	}
}

// HighestBid returns the current highest bid, or nil.
func (s Snapshot) HighestBid() *Bid {
	if s.Auction.HighestBidID == "" {
		return nil
	}
	for i := len(s.Bids) - 1; i >= 0; i-- {
		if s.Bids[i].ID == s.Auction.HighestBidID {
			return &s.Bids[i]
		}
	}
	return nil
}

// Redacted returns s as readers may see it. While a sealed auction is
// open, bid amounts, standing, proxy ceilings and the aggregates derived
// from them are zeroed; commitments stay visible. Other snapshots are
// returned unchanged.
func (s Snapshot) Redacted() Snapshot {
	if !IsSealed(s.Auction.Config.Type) || s.Auction.IsClosed() {
		return s
	}
	a := s.Auction
	a.TotalVolume = decimal.Zero
	a.EscrowAmount = decimal.Zero
	a.HighestBidID = ""
	bids := make([]Bid, len(s.Bids))
	for i, b := range s.Bids {
		b.Amount = decimal.Zero
		b.IsWinning = false
		b.Proxy = nil
		bids[i] = b
	}
	return Snapshot{Auction: a, Bids: bids}
}

// IsClosed reports whether the auction no longer accepts bids.
func (a Auction) IsClosed() bool {
	switch a.Status {
	case StatusEnded, StatusCancelled, StatusSettled, StatusDisputed:
		return true
	}
	return false
}

// ToSettlementRequest builds the request for a resolved auction.
func (a Auction) ToSettlementRequest(at time.Time) SettlementRequest {
	req := SettlementRequest{
		AuctionID:    a.ID,
		Seller:       a.Seller,
		PaymentToken: a.Config.PaymentToken,
		Winners:      make([]SettlementWinner, 0),
		RequestedAt:  at,
	}
	if a.Resolution == nil {
		return req
	}
	for _, w := range a.Resolution.Winners {
		req.Winners = append(req.Winners, SettlementWinner{Bidder: w.Bidder, Amount: w.Amount})
	}
	req.TotalPayout = a.Resolution.TotalPayout
	req.Fee = a.Resolution.Fee
	req.Reason = a.Resolution.Reason
	return req
}
