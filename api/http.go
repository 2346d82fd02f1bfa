package api

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cloudx-io/dynauction/core"
)

// AuctionConfigRequest is the JSON form of core.AuctionConfig. Durations
// are Go duration strings such as "90m".
type AuctionConfigRequest struct {
	Type             core.AuctionType   `json:"type"`
	Title            string             `json:"title"`
	Description      string             `json:"description,omitempty"`
	Category         string             `json:"category,omitempty"`
	Item             core.ItemRef       `json:"item"`
	StartingPrice    decimal.Decimal    `json:"starting_price"`
	ReservePrice     *decimal.Decimal   `json:"reserve_price,omitempty"`
	BuyNowPrice      *decimal.Decimal   `json:"buy_now_price,omitempty"`
	MinimumIncrement decimal.Decimal    `json:"minimum_increment"`
	PaymentToken     string             `json:"payment_token"`
	StartTime        *time.Time         `json:"start_time,omitempty"` // defaults to now
	Duration         string             `json:"duration"`
	ExtensionTrigger string             `json:"extension_trigger,omitempty"`
	ExtensionTime    string             `json:"extension_time,omitempty"`
	MaxExtensions    int                `json:"max_extensions,omitempty"`
	CandleWindow     string             `json:"candle_window,omitempty"`
	ProxyBidding     bool               `json:"proxy_bidding,omitempty"`
	DepositRequired  decimal.Decimal    `json:"deposit_required"`
	MaxBidsPerUser   int                `json:"max_bids_per_user,omitempty"`
	Access           core.AccessControl `json:"access"`
	MultiWinner      core.MultiWinner   `json:"multi_winner"`
}

// ToConfig converts the request, filling StartTime with now when absent.
func (r AuctionConfigRequest) ToConfig(now time.Time) (core.AuctionConfig, error) {
	cfg := core.AuctionConfig{
		Type:             r.Type,
		Title:            r.Title,
		Description:      r.Description,
		Category:         r.Category,
		Item:             r.Item,
		StartingPrice:    r.StartingPrice,
		ReservePrice:     r.ReservePrice,
		BuyNowPrice:      r.BuyNowPrice,
		MinimumIncrement: r.MinimumIncrement,
		PaymentToken:     r.PaymentToken,
		StartTime:        now,
		MaxExtensions:    r.MaxExtensions,
		ProxyBidding:     r.ProxyBidding,
		DepositRequired:  r.DepositRequired,
		MaxBidsPerUser:   r.MaxBidsPerUser,
		Access:           r.Access,
		MultiWinner:      r.MultiWinner,
	}
	if r.StartTime != nil {
		cfg.StartTime = r.StartTime.UTC()
	}
	durations := []struct {
		field string
		value string
		dst   *time.Duration
	}{
		{"duration", r.Duration, &cfg.Duration},
		{"extension_trigger", r.ExtensionTrigger, &cfg.ExtensionTrigger},
		{"extension_time", r.ExtensionTime, &cfg.ExtensionTime},
		{"candle_window", r.CandleWindow, &cfg.CandleWindow},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.value)
		if err != nil {
			return core.AuctionConfig{}, core.ValidationError(d.field, "invalid duration %q", d.value)
		}
		*d.dst = parsed
	}
	return cfg, nil
}

type CreateAuctionRequest struct {
	Seller string               `json:"seller"`
	Config AuctionConfigRequest `json:"config"`
}

type PlaceBidRequest struct {
	Bidder        string           `json:"bidder"`
	Amount        decimal.Decimal  `json:"amount"`
	MaxBid        *decimal.Decimal `json:"max_bid,omitempty"`
	AutoIncrement decimal.Decimal  `json:"auto_increment"`
	Conditions    []string         `json:"conditions,omitempty"`
	Deposit       decimal.Decimal  `json:"deposit"`
}

type BuyNowRequest struct {
	Buyer string `json:"buyer"`
}

type CancelRequest struct {
	Seller string `json:"seller"`
}

type EndAuctionRequest struct {
	Reason core.EndReason `json:"reason,omitempty"`
}

type TransitionRequest struct {
	Status core.Status `json:"status"`
}

type WatchRequest struct {
	User string `json:"user"`
}

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Kind           string           `json:"kind"`
	Code           string           `json:"code,omitempty"`
	Field          string           `json:"field,omitempty"`
	Message        string           `json:"message"`
	NextMinimumBid *decimal.Decimal `json:"next_minimum_bid,omitempty"`
}

func (e ErrorResponse) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Code, e.Message)
}
