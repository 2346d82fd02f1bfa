// Package httpapi exposes engine operations as JSON over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/cloudx-io/dynauction/api"
	"github.com/cloudx-io/dynauction/core"
	"github.com/cloudx-io/dynauction/engine"
	"github.com/cloudx-io/dynauction/storage"
)

// EnvelopeSource looks up delivered settlement envelopes.
type EnvelopeSource interface {
	Envelope(ctx context.Context, auctionID string) (*api.SettlementEnvelope, error)
}

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

type Server struct {
	engine    *engine.Engine
	envelopes EnvelopeSource
	logger    *zap.Logger
	router    *mux.Router
	handler   http.Handler
}

// New builds the router. envelopes may be nil, in which case the
// settlement route always reports not found.
func New(eng *engine.Engine, envelopes EnvelopeSource, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{engine: eng, envelopes: envelopes, logger: logger, router: mux.NewRouter()}

	r := s.router
	r.Use(s.logRequests)

	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	r.HandleFunc("/auctions", s.createAuction).Methods(http.MethodPost)
	r.HandleFunc("/auctions", s.searchAuctions).Methods(http.MethodGet)
	r.HandleFunc("/auctions/{id}", s.getAuction).Methods(http.MethodGet)
	r.HandleFunc("/auctions/{id}/bids", s.listBids).Methods(http.MethodGet)
	r.HandleFunc("/auctions/{id}/bids", s.placeBid).Methods(http.MethodPost)
	r.HandleFunc("/auctions/{id}/buy-now", s.buyNow).Methods(http.MethodPost)
	r.HandleFunc("/auctions/{id}/cancel", s.cancel).Methods(http.MethodPost)
	r.HandleFunc("/auctions/{id}/end", s.endAuction).Methods(http.MethodPost)
	r.HandleFunc("/auctions/{id}/transition", s.transition).Methods(http.MethodPost)
	r.HandleFunc("/auctions/{id}/dispute", s.dispute).Methods(http.MethodPost)
	r.HandleFunc("/auctions/{id}/watch", s.watch).Methods(http.MethodPost)
	r.HandleFunc("/auctions/{id}/views", s.recordView).Methods(http.MethodPost)
	r.HandleFunc("/auctions/{id}/analytics", s.analytics).Methods(http.MethodGet)
	r.HandleFunc("/auctions/{id}/settlement", s.settlement).Methods(http.MethodGet)

	s.handler = simpleCORS(r)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return core.ValidationError("body", "invalid json: %v", err)
	}
	return nil
}

// decodeOptionalJSON is decodeJSON for endpoints whose body may be empty.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return core.ValidationError("body", "invalid json: %v", err)
	}
	return nil
}

// writeError maps domain error kinds onto status codes.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	resp := api.ErrorResponse{Kind: "internal", Message: err.Error()}
	status := http.StatusInternalServerError

	var derr *core.Error
	if errors.As(err, &derr) {
		resp.Code = derr.Code
		resp.Field = derr.Field
		resp.Message = derr.Message
		resp.NextMinimumBid = derr.NextMinimumBid
	}
	switch {
	case errors.Is(err, core.ErrValidation):
		status, resp.Kind = http.StatusBadRequest, "validation"
	case errors.Is(err, core.ErrState):
		status, resp.Kind = http.StatusConflict, "state"
	case errors.Is(err, core.ErrAuthorization):
		status, resp.Kind = http.StatusForbidden, "authorization"
	case errors.Is(err, core.ErrNotFound), errors.Is(err, storage.ErrNotFound):
		status, resp.Kind = http.StatusNotFound, "not_found"
	case errors.Is(err, core.ErrConcurrency):
		status, resp.Kind = http.StatusInternalServerError, "concurrency"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status, resp.Kind = http.StatusServiceUnavailable, "unavailable"
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
	writeJSON(w, status, resp)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)))
	})
}

// simpleCORS is a minimal CORS middleware for browser clients.
func simpleCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
