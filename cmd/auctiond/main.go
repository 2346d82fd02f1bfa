// Command auctiond serves the auction engine over HTTP, persisting
// snapshots to SQLite and delivering signed settlement envelopes.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/cloudx-io/dynauction/config"
	"github.com/cloudx-io/dynauction/core"
	"github.com/cloudx-io/dynauction/engine"
	"github.com/cloudx-io/dynauction/httpapi"
	"github.com/cloudx-io/dynauction/logging"
	"github.com/cloudx-io/dynauction/settlement"
	"github.com/cloudx-io/dynauction/storage"
	"github.com/cloudx-io/dynauction/storage/sqlite"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "auctiond: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("close store", zap.Error(err))
		}
	}()

	keyManager, err := loadKeyManager(cfg.SigningKeyPath, logger)
	if err != nil {
		return err
	}
	signer, err := settlement.NewSigner(keyManager)
	if err != nil {
		return err
	}
	outbox := settlement.NewOutbox(signer, settlement.MultiSink{store, settlement.LogSink{Logger: logger}}, settlement.OutboxOptions{
		Workers:     cfg.Outbox.Workers,
		MaxAttempts: cfg.Outbox.MaxAttempts,
		Backoff:     cfg.Outbox.Backoff,
		Logger:      logger,
	})

	var randSource core.RandSource
	if cfg.LotterySeed != 0 {
		randSource = core.NewSeededRandSource(cfg.LotterySeed)
		logger.Warn("using seeded random source", zap.Uint64("seed", cfg.LotterySeed))
	}
	eng := engine.New(engine.Options{
		Settler:               outbox,
		RandSource:            randSource,
		Logger:                logger,
		EndingWindow:          cfg.EndingWindow,
		StartGrace:            cfg.StartGrace,
		DefaultMaxBidsPerUser: cfg.DefaultMaxBidsPerUser,
		FeeBasisPoints:        cfg.FeeBasisPoints,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	snaps, err := store.Load(ctx)
	if err != nil {
		return err
	}
	eng.Restore(snaps)
	if err := resubmitUndelivered(ctx, store, outbox, snaps, eng.Now()); err != nil {
		return err
	}

	outboxCtx, cancelOutbox := context.WithCancel(context.Background())
	defer cancelOutbox()
	outboxDone := make(chan error, 1)
	go func() { outboxDone <- outbox.Run(outboxCtx) }()

	sweeper := engine.NewSweeper(eng, store, logger)
	if err := sweeper.Schedule(cfg.SweepSpec); err != nil {
		return fmt.Errorf("schedule sweep %q: %w", cfg.SweepSpec, err)
	}
	sweeper.Start()

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.New(eng, store, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("auctiond listening", zap.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-serverErr:
		if err != nil {
			logger.Error("server error", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}
	sweeper.Stop()
	sweeper.RunOnce(shutdownCtx)

	outbox.Close()
	select {
	case err := <-outboxDone:
		if err != nil {
			logger.Error("settlement outbox", zap.Error(err))
		}
	case <-shutdownCtx.Done():
		cancelOutbox()
		<-outboxDone
		logger.Warn("settlement outbox abandoned pending requests", zap.Int("pending", outbox.Pending()))
	}
	delivered, failed := outbox.Stats()
	logger.Info("auctiond stopped", zap.Int64("settlements_delivered", delivered), zap.Int64("settlements_failed", failed))
	return nil
}

func loadKeyManager(path string, logger *zap.Logger) (*settlement.KeyManager, error) {
	if path == "" {
		logger.Warn("no signing key configured, generating an ephemeral key")
		return settlement.NewKeyManager()
	}
	pemData, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read signing key: %w", err)
	}
	return settlement.LoadKeyManager(pemData)
}

// resubmitUndelivered queues settlements whose envelope never reached the
// store, such as those pending when the previous process stopped.
func resubmitUndelivered(ctx context.Context, store storage.Store, outbox *settlement.Outbox, snaps []core.Snapshot, now time.Time) error {
	for _, snap := range snaps {
		a := snap.Auction
		if !a.SettlementRequested {
			continue
		}
		_, err := store.Envelope(ctx, a.ID)
		if err == nil {
			continue
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		if err := outbox.Submit(ctx, a.ToSettlementRequest(now)); err != nil {
			return err
		}
	}
	return nil
}
