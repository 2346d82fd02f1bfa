package settlement

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/cloudx-io/dynauction/api"
)

// LogSink writes envelopes to the log. It is the sink of last resort when
// no payment system is configured.
type LogSink struct {
	Logger *zap.Logger
}

func (s LogSink) Deliver(_ context.Context, env *api.SettlementEnvelope) error {
	s.Logger.Info("settlement envelope",
		zap.String("auction_id", env.AuctionID),
		zap.String("key_algorithm", env.KeyAlgorithm),
		zap.String("cose", env.COSEBase64.String()))
	return nil
}

// MemorySink keeps delivered envelopes in memory.
type MemorySink struct {
	mu        sync.Mutex
	envelopes []*api.SettlementEnvelope
}

func (s *MemorySink) Deliver(_ context.Context, env *api.SettlementEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.envelopes = append(s.envelopes, env)
	return nil
}

func (s *MemorySink) Envelopes() []*api.SettlementEnvelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*api.SettlementEnvelope(nil), s.envelopes...)
}

// MultiSink delivers to every sink in order and stops at the first error.
type MultiSink []Sink

func (m MultiSink) Deliver(ctx context.Context, env *api.SettlementEnvelope) error {
	for _, s := range m {
		if err := s.Deliver(ctx, env); err != nil {
			return err
		}
	}
	return nil
}
