package core

import (
	"crypto/rand"
	"fmt"
	"math"
	"math/big"
	mrand "math/rand/v2"
	"sort"

	"github.com/shopspring/decimal"
)

// RandSource provides random numbers for lottery draws and candle cutoffs.
// This interface enables dependency injection for deterministic testing.
type RandSource interface {
	// Intn returns a random integer in [0, n). Panics if n <= 0.
	Intn(n int) int
}

// cryptoRandSource wraps crypto/rand for production use
type cryptoRandSource struct{}

// Intn returns a cryptographically secure random integer in [0, n).
// Panics if n <= 0 (programmer error).
func (cryptoRandSource) Intn(n int) int {
	if n <= 0 {
		panic(fmt.Sprintf("cryptoRandSource.Intn: n must be positive, got %d", n))
	}
	// rand.Int does not error when using rand.Reader
	// https://pkg.go.dev/crypto/rand#Int
	nBig, _ := rand.Int(rand.Reader, big.NewInt(int64(n)))
	return int(nBig.Int64())
}

// DefaultRandSource provides a cryptographically secure random source for production
var DefaultRandSource RandSource = cryptoRandSource{}

type seededRandSource struct {
	r *mrand.Rand
}

func (s *seededRandSource) Intn(n int) int {
	if n <= 0 {
		panic(fmt.Sprintf("seededRandSource.Intn: n must be positive, got %d", n))
	}
	return s.r.IntN(n)
}

// NewSeededRandSource returns a reproducible source. Two sources built from
// the same seed yield the same sequence.
func NewSeededRandSource(seed uint64) RandSource {
	return &seededRandSource{r: mrand.New(mrand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// RankBids keeps each bidder's highest bid and orders them by amount
// descending, then earliest timestamp, then bid ID.
func RankBids(bids []Bid) []Bid {
	if len(bids) == 0 {
		return []Bid{}
	}

	// Find highest bid per bidder; on equal amounts the earlier bid stays
	bidderMap := make(map[string]Bid, len(bids))
	for _, bid := range bids {
		existing, exists := bidderMap[bid.Bidder]
		if !exists || RoundAmount(bid.Amount).GreaterThan(RoundAmount(existing.Amount)) {
			bidderMap[bid.Bidder] = bid
		}
	}

	ranked := make([]Bid, 0, len(bidderMap))
	for _, bid := range bidderMap {
		ranked = append(ranked, bid)
	}
	sort.Slice(ranked, func(i, j int) bool {
		return bidLess(ranked[i], ranked[j])
	})
	return ranked
}

// bidLess orders bids best first.
func bidLess(a, b Bid) bool {
	if c := RoundAmount(a.Amount).Cmp(RoundAmount(b.Amount)); c != 0 {
		return c > 0
	}
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.Before(b.Timestamp)
	}
	return a.ID < b.ID
}

// DrawLottery picks up to n distinct bidders from ranked without replacement.
// Each remaining candidate's chance is proportional to its amount in
// 10^-6 units, scaled down when the sum would exceed maxLotteryWeight.
// The returned bids keep draw order.
func DrawLottery(ranked []Bid, n int, randSource RandSource) []Bid {
	if randSource == nil {
		randSource = DefaultRandSource
	}
	pool := append([]Bid(nil), ranked...)
	drawn := make([]Bid, 0, n)
	for len(drawn) < n && len(pool) > 0 {
		weights, total := lotteryWeights(pool)
		pick := randSource.Intn(total)
		idx := 0
		for ; idx < len(weights)-1; idx++ {
			if pick < weights[idx] {
				break
			}
			pick -= weights[idx]
		}
		drawn = append(drawn, pool[idx])
		pool = append(pool[:idx], pool[idx+1:]...)
	}
	return drawn
}

// maxLotteryWeight bounds the summed draw weights so that Intn always
// receives a positive int, on 32-bit platforms too.
const maxLotteryWeight = math.MaxInt32

// lotteryWeights returns each bid's weight and their sum. Weights are the
// amounts in 10^-6 units, divided by a power of ten until the sum fits
// under maxLotteryWeight. Every weight is at least 1.
func lotteryWeights(pool []Bid) ([]int, int) {
	sum := decimal.Zero
	for _, bid := range pool {
		sum = sum.Add(bid.Amount.Shift(MonetaryPrecision))
	}
	// Leave room for the minimum weight of 1 per bid.
	limit := decimal.NewFromInt(int64(maxLotteryWeight - len(pool)))
	scale := int32(0)
	for sum.Shift(-scale).GreaterThan(limit) {
		scale++
	}

	weights := make([]int, len(pool))
	total := 0
	for i, bid := range pool {
		w := int(bid.Amount.Shift(MonetaryPrecision - scale).IntPart())
		if w < 1 {
			w = 1
		}
		weights[i] = w
		total += w
	}
	return weights, total
}
