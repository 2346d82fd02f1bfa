package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/cloudx-io/dynauction/api"
	"github.com/cloudx-io/dynauction/core"
	"github.com/cloudx-io/dynauction/engine"
	"github.com/cloudx-io/dynauction/search"
	"github.com/cloudx-io/dynauction/settlement"
	"github.com/cloudx-io/dynauction/storage"
	"github.com/cloudx-io/dynauction/validation"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// syncSettler signs and stores settlement requests inline.
type syncSettler struct {
	signer *settlement.Signer
	store  storage.Store
}

func (s syncSettler) Submit(ctx context.Context, req core.SettlementRequest) error {
	env, err := s.signer.Sign(req)
	if err != nil {
		return err
	}
	return s.store.Deliver(ctx, env)
}

type testServer struct {
	handler http.Handler
	clock   *engine.ManualClock
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	km, err := settlement.NewKeyManager()
	assert.NoError(t, err)
	signer, err := settlement.NewSigner(km)
	assert.NoError(t, err)
	store := storage.NewMemory()

	clock := engine.NewManualClock(t0)
	var seq atomic.Int64
	eng := engine.New(engine.Options{
		Clock:          clock,
		Settler:        syncSettler{signer: signer, store: store},
		RandSource:     core.NewSeededRandSource(1),
		FeeBasisPoints: 250,
		NewID:          func() string { return fmt.Sprintf("id-%d", seq.Add(1)) },
	})
	return &testServer{handler: New(eng, store, nil), clock: clock}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		assert.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func (s *testServer) createEnglish(t *testing.T) core.Auction {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/auctions", map[string]any{
		"seller": "seller",
		"config": map[string]any{
			"type":              "english",
			"title":             "GPU inference agent",
			"item":              map[string]any{"type": "agent_service", "ref": "agent-1"},
			"starting_price":    "100",
			"minimum_increment": "10",
			"payment_token":     "USDC",
			"duration":          "1h",
		},
	})
	assert.Equal(t, http.StatusCreated, rec.Code)
	return decodeBody[core.Auction](t, rec)
}

func TestAuctionLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)
	a := s.createEnglish(t)
	check.Equal(t, core.StatusActive, a.Status)
	check.Equal(t, t0.Add(time.Hour), a.EndsAt)

	rec := s.do(t, http.MethodPost, "/auctions/"+a.ID+"/bids", map[string]any{"bidder": "alice", "amount": "105"})
	check.Equal(t, http.StatusBadRequest, rec.Code)
	errResp := decodeBody[api.ErrorResponse](t, rec)
	check.Equal(t, "validation", errResp.Kind)
	check.Equal(t, core.CodeBidTooLow, errResp.Code)
	assert.NotNil(t, errResp.NextMinimumBid)
	check.Equal(t, "110", errResp.NextMinimumBid.String())

	rec = s.do(t, http.MethodPost, "/auctions/"+a.ID+"/bids", map[string]any{"bidder": "alice", "amount": "110"})
	check.Equal(t, http.StatusCreated, rec.Code)
	receipt := decodeBody[engine.BidReceipt](t, rec)
	check.True(t, receipt.IsWinning)
	check.Equal(t, "120", receipt.NextMinimumBid.String())

	s.clock.Advance(10 * time.Minute)
	rec = s.do(t, http.MethodPost, "/auctions/"+a.ID+"/bids", map[string]any{"bidder": "bob", "amount": 150})
	check.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(t, http.MethodGet, "/auctions/"+a.ID+"/bids", nil)
	check.Equal(t, http.StatusOK, rec.Code)
	check.Equal(t, 2, len(decodeBody[[]core.Bid](t, rec)))

	rec = s.do(t, http.MethodPost, "/auctions/"+a.ID+"/views", nil)
	check.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, "/auctions/"+a.ID+"/analytics", nil)
	check.Equal(t, http.StatusOK, rec.Code)
	report := decodeBody[AnalyticsResponse](t, rec)
	check.Equal(t, 1, report.Metrics.ViewCount)
	check.Equal(t, 2, report.Metrics.UniqueBidders)

	rec = s.do(t, http.MethodGet, "/auctions/"+a.ID+"/settlement", nil)
	check.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPost, "/auctions/"+a.ID+"/end", nil)
	check.Equal(t, http.StatusOK, rec.Code)
	res := decodeBody[core.Resolution](t, rec)
	assert.Equal(t, 1, len(res.Winners))
	check.Equal(t, "bob", res.Winners[0].Bidder)
	check.Equal(t, "150", res.Winners[0].Amount.String())
	check.Equal(t, "3.75", res.Fee.String())

	rec = s.do(t, http.MethodGet, "/auctions/"+a.ID, nil)
	check.Equal(t, core.StatusSettled, decodeBody[core.Auction](t, rec).Status)

	rec = s.do(t, http.MethodGet, "/auctions/"+a.ID+"/settlement", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	envelope := decodeBody[api.SettlementEnvelope](t, rec)
	result, err := validation.ValidateSettlementEnvelope(&validation.SettlementValidationInput{
		Envelope: envelope,
		Expected: &validation.ExpectedSettlement{
			AuctionID: a.ID,
			Winners:   []api.ClaimWinner{{Bidder: "bob", Amount: "150"}},
		},
	})
	assert.NoError(t, err)
	check.True(t, result.IsValid())

	rec = s.do(t, http.MethodGet, "/auctions/"+a.ID+"/settlement?encoding=gzip", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	compressed := decodeBody[EncodedSettlementResponse](t, rec)
	check.Equal(t, "gzip", compressed.Encoding)
	raw, err := api.SettlementCOSEGzip(compressed.COSE).Decompress()
	assert.NoError(t, err)
	check.Equal(t, envelope.COSEBase64, raw.EncodeBase64())

	rec = s.do(t, http.MethodGet, "/auctions/"+a.ID+"/settlement?encoding=urlsafe", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	urlSafe := decodeBody[EncodedSettlementResponse](t, rec)
	raw, err = api.SettlementCOSEURLSafe(urlSafe.COSE).Decode()
	assert.NoError(t, err)
	check.Equal(t, envelope.COSEBase64, raw.EncodeBase64())

	rec = s.do(t, http.MethodGet, "/auctions/"+a.ID+"/settlement?encoding=hex", nil)
	check.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/auctions/"+a.ID+"/dispute", nil)
	check.Equal(t, http.StatusOK, rec.Code)
	check.Equal(t, core.StatusDisputed, decodeBody[core.Auction](t, rec).Status)
}

func TestErrorMapping(t *testing.T) {
	s := newTestServer(t)
	a := s.createEnglish(t)
	s.do(t, http.MethodPost, "/auctions/"+a.ID+"/bids", map[string]any{"bidder": "alice", "amount": "110"})

	cases := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{"unknown auction", http.MethodGet, "/auctions/nope", nil, http.StatusNotFound, core.CodeUnknownAuction},
		{"self bid", http.MethodPost, "/auctions/" + a.ID + "/bids", map[string]any{"bidder": "seller", "amount": "500"}, http.StatusForbidden, core.CodeSelfBid},
		{"not seller", http.MethodPost, "/auctions/" + a.ID + "/cancel", map[string]any{"seller": "mallory"}, http.StatusForbidden, core.CodeNotSeller},
		{"binding bid", http.MethodPost, "/auctions/" + a.ID + "/cancel", map[string]any{"seller": "seller"}, http.StatusConflict, core.CodeCancelNotAllowed},
		{"no buy now", http.MethodPost, "/auctions/" + a.ID + "/buy-now", map[string]any{"buyer": "bob"}, http.StatusBadRequest, core.CodeNoBuyNow},
		{"bad transition", http.MethodPost, "/auctions/" + a.ID + "/transition", map[string]any{"status": "settled"}, http.StatusConflict, core.CodeInvalidTransition},
		{"bad end reason", http.MethodPost, "/auctions/" + a.ID + "/end", map[string]any{"reason": "buy_now"}, http.StatusBadRequest, core.CodeInvalidField},
		{"unknown field", http.MethodPost, "/auctions/" + a.ID + "/bids", map[string]any{"bidder": "bob", "price": "500"}, http.StatusBadRequest, core.CodeInvalidField},
		{"empty watcher", http.MethodPost, "/auctions/" + a.ID + "/watch", map[string]any{"user": ""}, http.StatusBadRequest, core.CodeInvalidField},
		{"bad duration", http.MethodPost, "/auctions", map[string]any{"seller": "s", "config": map[string]any{"duration": "soon"}}, http.StatusBadRequest, core.CodeInvalidField},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := s.do(t, tc.method, tc.path, tc.body)
			check.Equal(t, tc.status, rec.Code)
			check.Equal(t, tc.code, decodeBody[api.ErrorResponse](t, rec).Code)
		})
	}
}

func TestSearchOverHTTP(t *testing.T) {
	s := newTestServer(t)
	first := s.createEnglish(t)
	s.clock.Advance(time.Minute)
	second := s.createEnglish(t)
	s.do(t, http.MethodPost, "/auctions/"+second.ID+"/bids", map[string]any{"bidder": "alice", "amount": "300"})

	rec := s.do(t, http.MethodGet, "/auctions?status=active&sort=current_price&order=desc", nil)
	check.Equal(t, http.StatusOK, rec.Code)
	res := decodeBody[search.Result](t, rec)
	check.Equal(t, 2, res.TotalCount)
	assert.Equal(t, 2, len(res.Auctions))
	check.Equal(t, second.ID, res.Auctions[0].ID)
	check.Equal(t, first.ID, res.Auctions[1].ID)

	rec = s.do(t, http.MethodGet, "/auctions?min_price=200&limit=1", nil)
	res = decodeBody[search.Result](t, rec)
	check.Equal(t, 1, res.TotalCount)
	check.False(t, res.HasMore)

	for _, bad := range []string{"sort=title", "order=sideways", "min_price=cheap", "private=maybe", "limit=-1", "ends_within=later"} {
		rec = s.do(t, http.MethodGet, "/auctions?"+bad, nil)
		check.Equal(t, http.StatusBadRequest, rec.Code)
	}
}

func TestWatchAndHealth(t *testing.T) {
	s := newTestServer(t)
	a := s.createEnglish(t)

	rec := s.do(t, http.MethodPost, "/auctions/"+a.ID+"/watch", map[string]any{"user": "carol"})
	check.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(t, http.MethodGet, "/auctions/"+a.ID, nil)
	check.Equal(t, []string{"carol"}, decodeBody[core.Auction](t, rec).Watchers)

	rec = s.do(t, http.MethodGet, "/healthz", nil)
	check.Equal(t, http.StatusOK, rec.Code)
	check.Equal(t, "ok", rec.Body.String())
}
