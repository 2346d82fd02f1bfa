// Package storage persists auction snapshots and delivered settlement
// envelopes so an engine can be restored after a restart.
package storage

import (
	"context"
	"errors"

	"github.com/cloudx-io/dynauction/api"
	"github.com/cloudx-io/dynauction/core"
)

var ErrNotFound = errors.New("record not found")

// Store is implemented by Memory and sqlite.Store.
type Store interface {
	// Save upserts a snapshot. Older versions never replace newer ones.
	Save(ctx context.Context, snap core.Snapshot) error
	// Load returns every saved snapshot in creation order.
	Load(ctx context.Context) ([]core.Snapshot, error)
	Get(ctx context.Context, auctionID string) (core.Snapshot, error)

	// Deliver records a settlement envelope. Repeat deliveries for one
	// auction keep the first envelope.
	Deliver(ctx context.Context, env *api.SettlementEnvelope) error
	Envelope(ctx context.Context, auctionID string) (*api.SettlementEnvelope, error)

	Close() error
}
