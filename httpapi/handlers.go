package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/cloudx-io/dynauction/analytics"
	"github.com/cloudx-io/dynauction/api"
	"github.com/cloudx-io/dynauction/core"
	"github.com/cloudx-io/dynauction/engine"
	"github.com/cloudx-io/dynauction/search"
	"github.com/cloudx-io/dynauction/storage"
)

// AnalyticsResponse is the body of GET /auctions/{id}/analytics.
type AnalyticsResponse struct {
	Metrics         analytics.Metrics          `json:"metrics"`
	Recommendations []analytics.Recommendation `json:"recommendations"`
}

// EncodedSettlementResponse is the body of GET /auctions/{id}/settlement
// when an alternate encoding of the COSE message is requested.
type EncodedSettlementResponse struct {
	AuctionID string `json:"auction_id"`
	Encoding  string `json:"encoding"`
	COSE      string `json:"cose"`
}

func (s *Server) createAuction(w http.ResponseWriter, r *http.Request) {
	var req api.CreateAuctionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	cfg, err := req.Config.ToConfig(s.engine.Now())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	a, err := s.engine.CreateAuction(r.Context(), req.Seller, cfg)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (s *Server) searchAuctions(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r.URL.Query(), s.engine.Now())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	snaps, err := s.engine.Snapshot(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, search.Search(snaps, q))
}

func (s *Server) getAuction(w http.ResponseWriter, r *http.Request) {
	a, err := s.engine.GetAuction(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) listBids(w http.ResponseWriter, r *http.Request) {
	bids, err := s.engine.Bids(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bids)
}

func (s *Server) placeBid(w http.ResponseWriter, r *http.Request) {
	var req api.PlaceBidRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	receipt, err := s.engine.PlaceBid(r.Context(), mux.Vars(r)["id"], req.Bidder, req.Amount, engine.BidOptions{
		MaxBid:        req.MaxBid,
		AutoIncrement: req.AutoIncrement,
		Conditions:    req.Conditions,
		Deposit:       req.Deposit,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, receipt)
}

func (s *Server) buyNow(w http.ResponseWriter, r *http.Request) {
	var req api.BuyNowRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.engine.BuyNow(r.Context(), mux.Vars(r)["id"], req.Buyer)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) cancel(w http.ResponseWriter, r *http.Request) {
	var req api.CancelRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	a, err := s.engine.Cancel(r.Context(), mux.Vars(r)["id"], req.Seller)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) endAuction(w http.ResponseWriter, r *http.Request) {
	var req api.EndAuctionRequest
	if err := decodeOptionalJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.engine.EndAuction(r.Context(), mux.Vars(r)["id"], req.Reason)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) transition(w http.ResponseWriter, r *http.Request) {
	var req api.TransitionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	a, err := s.engine.Transition(r.Context(), mux.Vars(r)["id"], req.Status)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) dispute(w http.ResponseWriter, r *http.Request) {
	a, err := s.engine.Dispute(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) watch(w http.ResponseWriter, r *http.Request) {
	var req api.WatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.engine.Watch(r.Context(), mux.Vars(r)["id"], req.User); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) recordView(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.RecordView(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) analytics(w http.ResponseWriter, r *http.Request) {
	snap, err := s.engine.AuctionSnapshot(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	m := analytics.Analyze(snap, s.engine.Now())
	writeJSON(w, http.StatusOK, AnalyticsResponse{Metrics: m, Recommendations: analytics.Recommend(snap, m)})
}

func (s *Server) settlement(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := s.engine.GetAuction(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	if s.envelopes == nil {
		s.writeError(w, r, storage.ErrNotFound)
		return
	}
	env, err := s.envelopes.Envelope(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	encoding := r.URL.Query().Get("encoding")
	if encoding == "" {
		writeJSON(w, http.StatusOK, env)
		return
	}
	raw, err := env.COSEBase64.Decode()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp := EncodedSettlementResponse{AuctionID: env.AuctionID, Encoding: encoding}
	switch encoding {
	case "urlsafe":
		resp.COSE = raw.EncodeURLSafe().String()
	case "gzip":
		compressed, err := raw.CompressGzip()
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		resp.COSE = compressed.String()
	default:
		s.writeError(w, r, core.ValidationError("encoding", "must be urlsafe or gzip"))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
