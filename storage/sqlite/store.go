// Package sqlite provides a SQLite-backed auction store. Snapshots are
// stored as CBOR payloads keyed by auction id.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
	_ "modernc.org/sqlite"

	"github.com/cloudx-io/dynauction/api"
	"github.com/cloudx-io/dynauction/core"
	"github.com/cloudx-io/dynauction/storage"
)

//go:embed schema.sql
var schema string

// Store persists auction state in SQLite.
type Store struct {
	sqlDB   *sql.DB
	encMode cbor.EncMode
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// Open opens a SQLite store and creates its tables.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	encMode, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create cbor encoder: %w", err)
	}
	return &Store{sqlDB: sqlDB, encMode: encMode}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Save upserts one snapshot unless a newer version is already stored.
func (s *Store) Save(ctx context.Context, snap core.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	a := snap.Auction
	if a.ID == "" {
		return fmt.Errorf("auction id is required")
	}
	payload, err := s.encMode.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", a.ID, err)
	}

	_, err = s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO auctions (id, type, status, version, created_at, updated_at, payload)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   type = excluded.type,
		   status = excluded.status,
		   version = excluded.version,
		   updated_at = excluded.updated_at,
		   payload = excluded.payload
		 WHERE excluded.version > auctions.version`,
		a.ID,
		string(a.Config.Type),
		string(a.Status),
		int64(a.Version),
		toMillis(a.CreatedAt),
		toMillis(time.Now()),
		payload,
	)
	if err != nil {
		return fmt.Errorf("save auction %s: %w", a.ID, err)
	}
	return nil
}

// Load returns every stored snapshot in creation order.
func (s *Store) Load(ctx context.Context) ([]core.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT id, payload FROM auctions ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("load auctions: %w", err)
	}
	defer rows.Close()

	snaps := make([]core.Snapshot, 0)
	for rows.Next() {
		var (
			id      string
			payload []byte
		)
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, fmt.Errorf("scan auction: %w", err)
		}
		snap, err := decodeSnapshot(payload)
		if err != nil {
			return nil, fmt.Errorf("decode auction %s: %w", id, err)
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate auctions: %w", err)
	}
	return snaps, nil
}

// Get returns one stored snapshot.
func (s *Store) Get(ctx context.Context, auctionID string) (core.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return core.Snapshot{}, err
	}
	if s == nil || s.sqlDB == nil {
		return core.Snapshot{}, fmt.Errorf("storage is not configured")
	}
	var payload []byte
	err := s.sqlDB.QueryRowContext(ctx, `SELECT payload FROM auctions WHERE id = ?`, auctionID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Snapshot{}, storage.ErrNotFound
	}
	if err != nil {
		return core.Snapshot{}, fmt.Errorf("get auction %s: %w", auctionID, err)
	}
	return decodeSnapshot(payload)
}

// Deliver records a settlement envelope; the first one per auction wins.
func (s *Store) Deliver(ctx context.Context, env *api.SettlementEnvelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	coseBytes, err := env.COSEBase64.Decode()
	if err != nil {
		return fmt.Errorf("decode envelope for %s: %w", env.AuctionID, err)
	}
	_, err = s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO settlement_envelopes (auction_id, cose, public_key, key_algorithm, signed_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(auction_id) DO NOTHING`,
		env.AuctionID,
		[]byte(coseBytes),
		env.PublicKey,
		env.KeyAlgorithm,
		env.SignedAt.UTC().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("save envelope for %s: %w", env.AuctionID, err)
	}
	return nil
}

// Envelope returns the recorded settlement envelope of an auction.
func (s *Store) Envelope(ctx context.Context, auctionID string) (*api.SettlementEnvelope, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	var (
		coseBytes    []byte
		publicKey    string
		keyAlgorithm string
		signedAt     int64
	)
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT cose, public_key, key_algorithm, signed_at FROM settlement_envelopes WHERE auction_id = ?`,
		auctionID,
	).Scan(&coseBytes, &publicKey, &keyAlgorithm, &signedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get envelope for %s: %w", auctionID, err)
	}
	return &api.SettlementEnvelope{
		Type:         api.EnvelopeType,
		AuctionID:    auctionID,
		COSEBase64:   api.SettlementCOSE(coseBytes).EncodeBase64(),
		PublicKey:    publicKey,
		KeyAlgorithm: keyAlgorithm,
		SignedAt:     time.Unix(0, signedAt).UTC(),
	}, nil
}

func decodeSnapshot(payload []byte) (core.Snapshot, error) {
	var snap core.Snapshot
	if err := cbor.Unmarshal(payload, &snap); err != nil {
		return core.Snapshot{}, err
	}
	if snap.Auction.UniqueBidders == nil {
		snap.Auction.UniqueBidders = make(map[string]int)
	}
	return snap, nil
}

var _ storage.Store = (*Store)(nil)
