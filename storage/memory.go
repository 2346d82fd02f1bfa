package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/cloudx-io/dynauction/api"
	"github.com/cloudx-io/dynauction/core"
)

// Memory is an in-process Store.
type Memory struct {
	mu        sync.RWMutex
	snapshots map[string]core.Snapshot
	envelopes map[string]api.SettlementEnvelope
}

func NewMemory() *Memory {
	return &Memory{
		snapshots: make(map[string]core.Snapshot),
		envelopes: make(map[string]api.SettlementEnvelope),
	}
}

func (m *Memory) Save(ctx context.Context, snap core.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.snapshots[snap.Auction.ID]; ok && existing.Auction.Version >= snap.Auction.Version {
		return nil
	}
	m.snapshots[snap.Auction.ID] = snap.Clone()
	return nil
}

func (m *Memory) Load(ctx context.Context) ([]core.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]core.Snapshot, 0, len(m.snapshots))
	for _, s := range m.snapshots {
		out = append(out, s.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Auction, out[j].Auction
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return out, nil
}

func (m *Memory) Get(ctx context.Context, auctionID string) (core.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return core.Snapshot{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.snapshots[auctionID]
	if !ok {
		return core.Snapshot{}, ErrNotFound
	}
	return s.Clone(), nil
}

func (m *Memory) Deliver(ctx context.Context, env *api.SettlementEnvelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.envelopes[env.AuctionID]; !ok {
		m.envelopes[env.AuctionID] = *env
	}
	return nil
}

func (m *Memory) Envelope(ctx context.Context, auctionID string) (*api.SettlementEnvelope, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	env, ok := m.envelopes[auctionID]
	if !ok {
		return nil, ErrNotFound
	}
	return &env, nil
}

func (m *Memory) Close() error { return nil }
