package analytics

import (
	"testing"
	"time"

	"github.com/peterldowns/testy/check"

	"github.com/cloudx-io/dynauction/core"
)

func kinds(recs []Recommendation) []RecommendationKind {
	out := []RecommendationKind{}
	for _, r := range recs {
		out = append(out, r.Kind)
	}
	return out
}

func TestRecommendHighDemand(t *testing.T) {
	s := englishSnapshot("110", "120")
	m := Metrics{DemandLevel: DemandHigh, ViewCount: 100, TotalBids: 2, TimeRemaining: 3 * time.Hour}

	check.Equal(t,
		[]RecommendationKind{RecommendEnableAntiSnipe, RecommendEnableBuyNow},
		kinds(Recommend(s, m)))

	s.Auction.Config.ExtensionTrigger = time.Minute
	s.Auction.Config.ExtensionTime = time.Minute
	s.Auction.Config.BuyNowPrice = decPtr("500")
	check.Equal(t, []RecommendationKind{}, kinds(Recommend(s, m)))
}

func TestRecommendLowerReserve(t *testing.T) {
	s := englishSnapshot("110", "200")
	s.Auction.Config.ReservePrice = decPtr("500")
	m := Metrics{DemandLevel: DemandMedium, ViewCount: 50, TotalBids: 2}

	m.TimeRemaining = 30 * time.Minute
	check.Equal(t, []RecommendationKind{RecommendLowerReserve}, kinds(Recommend(s, m)))

	m.TimeRemaining = 3 * time.Hour
	check.Equal(t, []RecommendationKind{}, kinds(Recommend(s, m)))

	s.Auction.Config.ReservePrice = decPtr("150")
	m.TimeRemaining = 30 * time.Minute
	check.Equal(t, []RecommendationKind{}, kinds(Recommend(s, m)))
}

func TestRecommendPromoteListing(t *testing.T) {
	s := englishSnapshot()
	m := Metrics{DemandLevel: DemandLow, ViewCount: 3, TimeRemaining: 3 * time.Hour}
	check.Equal(t, []RecommendationKind{RecommendPromoteListing}, kinds(Recommend(s, m)))
}

func TestRecommendSkipsClosed(t *testing.T) {
	s := englishSnapshot("110")
	s.Auction.Status = core.StatusEnded
	m := Metrics{DemandLevel: DemandHigh}
	check.Equal(t, 0, len(Recommend(s, m)))
}

func TestRecommendFromAnalyze(t *testing.T) {
	s := englishSnapshot("110", "120", "130", "140")
	s.Auction.ViewCount = 4
	now := t0.Add(time.Hour)

	recs := Recommend(s, Analyze(s, now))
	// Two bidders out of four views is high participation.
	check.Equal(t,
		[]RecommendationKind{RecommendEnableAntiSnipe, RecommendEnableBuyNow, RecommendPromoteListing},
		kinds(recs))
}
