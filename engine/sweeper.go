package engine

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Sweeper periodically commits due transitions and persists changed
// snapshots, so that auctions nobody touches still settle on time.
type Sweeper struct {
	engine  *Engine
	store   SnapshotSaver
	logger  *zap.Logger
	cron    *cron.Cron
	timeout time.Duration
}

// NewSweeper creates a Sweeper. store may be nil to skip persistence.
func NewSweeper(engine *Engine, store SnapshotSaver, logger *zap.Logger) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{
		engine:  engine,
		store:   store,
		logger:  logger,
		cron:    cron.New(cron.WithSeconds()),
		timeout: 30 * time.Second,
	}
}

// Schedule registers the sweep on a cron spec such as "@every 1s".
func (s *Sweeper) Schedule(spec string) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		s.RunOnce(ctx)
	})
	return err
}

func (s *Sweeper) Start() {
	s.logger.Info("sweeper started", zap.Int("jobs", len(s.cron.Entries())))
	s.cron.Start()
}

// Stop halts scheduling and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("sweeper stopped")
}

// RunOnce performs one sweep and, if a store is configured, one persist.
func (s *Sweeper) RunOnce(ctx context.Context) {
	advanced, err := s.engine.Sweep(ctx)
	if err != nil {
		s.logger.Error("sweep failed", zap.Error(err))
	}
	if advanced > 0 {
		s.logger.Info("sweep advanced auctions", zap.Int("count", advanced))
	}
	if s.store == nil {
		return
	}
	saved, err := s.engine.Persist(ctx, s.store)
	if err != nil {
		s.logger.Error("persist failed", zap.Error(err))
	}
	if saved > 0 {
		s.logger.Debug("persisted snapshots", zap.Int("count", saved))
	}
}
