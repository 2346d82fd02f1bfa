package core

import (
	"strings"
	"time"
)

const (
	MinTitleLength = 3
	MinDuration    = time.Minute
	MaxDuration    = 30 * 24 * time.Hour
	DefaultGrace   = 5 * time.Minute
)

// ValidateConfig checks an AuctionConfig before an auction is created.
// startGrace bounds how far in the past StartTime may lie.
func ValidateConfig(cfg AuctionConfig, now time.Time, startGrace time.Duration) error {
	v, ok := variants[cfg.Type]
	if !ok {
		return ValidationError("type", "unknown auction type %q", cfg.Type)
	}
	if len(strings.TrimSpace(cfg.Title)) < MinTitleLength {
		return ValidationError("title", "must be at least %d characters", MinTitleLength)
	}
	if !cfg.StartingPrice.IsPositive() {
		return ValidationError("starting_price", "must be greater than zero")
	}
	if cfg.ReservePrice != nil && cfg.ReservePrice.LessThan(cfg.StartingPrice) && !v.descending {
		return ValidationError("reserve_price", "must be at least the starting price")
	}
	if cfg.ReservePrice != nil && v.descending && cfg.ReservePrice.GreaterThan(cfg.StartingPrice) {
		return ValidationError("reserve_price", "must not exceed the starting price of a descending auction")
	}
	if cfg.BuyNowPrice != nil && !cfg.BuyNowPrice.GreaterThan(cfg.StartingPrice) {
		return ValidationError("buy_now_price", "must be greater than the starting price")
	}
	if cfg.BuyNowPrice != nil && cfg.ReservePrice != nil && cfg.BuyNowPrice.LessThan(*cfg.ReservePrice) {
		return ValidationError("buy_now_price", "must not be below the reserve price")
	}
	if cfg.MinimumIncrement.IsNegative() {
		return ValidationError("minimum_increment", "must not be negative")
	}
	if v.ascending && !cfg.MinimumIncrement.IsPositive() {
		return ValidationError("minimum_increment", "must be greater than zero")
	}
	if cfg.Duration < MinDuration {
		return ValidationError("duration", "must be at least %s", MinDuration)
	}
	if cfg.Duration > MaxDuration {
		return ValidationError("duration", "must be at most %s", MaxDuration)
	}
	if cfg.StartTime.IsZero() {
		return ValidationError("start_time", "is required")
	}
	if cfg.StartTime.Before(now.Add(-startGrace)) {
		return ValidationError("start_time", "is more than %s in the past", startGrace)
	}
	if cfg.ExtensionTrigger < 0 || cfg.ExtensionTime < 0 {
		return ValidationError("extension_time", "must not be negative")
	}
	if cfg.ExtensionTrigger > 0 && cfg.ExtensionTime == 0 {
		return ValidationError("extension_time", "is required when extension_trigger is set")
	}
	if cfg.MaxBidsPerUser < 0 {
		return ValidationError("max_bids_per_user", "must not be negative")
	}
	if cfg.DepositRequired.IsNegative() {
		return ValidationError("deposit_required", "must not be negative")
	}
	if cfg.Access.MinReputation < 0 || cfg.Access.MinReputation > 100 {
		return ValidationError("min_reputation", "must be within [0, 100]")
	}
	if cfg.Type == TypeReserve && cfg.ReservePrice == nil {
		return ValidationError("reserve_price", "is required for reserve auctions")
	}
	if cfg.Type == TypeBuyNow && cfg.BuyNowPrice == nil {
		return ValidationError("buy_now_price", "is required for buy-now auctions")
	}
	if cfg.Type == TypeCandle {
		if cfg.CandleWindow <= 0 || cfg.CandleWindow > cfg.Duration {
			return ValidationError("candle_window", "must be positive and no longer than the duration")
		}
	}
	if cfg.ProxyBidding && !v.proxy {
		return ValidationError("proxy_bidding", "not supported for %s auctions", cfg.Type)
	}
	if cfg.MultiWinner.Enabled {
		if !v.multiWinner {
			return ValidationError("multi_winner", "not supported for %s auctions", cfg.Type)
		}
		if cfg.MultiWinner.MaxWinners < 1 {
			return ValidationError("max_winners", "must be at least 1")
		}
		switch cfg.MultiWinner.Strategy {
		case StrategyHighestBids, StrategyLottery, StrategyProportional:
		default:
			return ValidationError("strategy", "unknown strategy %q", cfg.MultiWinner.Strategy)
		}
	}
	return nil
}
