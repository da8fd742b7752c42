// Package postgres persists which listings the aggregator has already
// observed, so ingestion runs can distinguish new inventory from known
// inventory. The store is optional: a nil *SeenStore disables tracking.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carlookout/server/internal/domain/listings"
	"github.com/carlookout/server/internal/metrics"
)

// SeenStore tracks observed (source_id, listing_id) pairs in the
// seen_listings table. See schema.sql.
type SeenStore struct {
	pool *pgxpool.Pool
}

func NewSeenStore(pool *pgxpool.Pool) (*SeenStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("seen store: pool is nil")
	}
	return &SeenStore{pool: pool}, nil
}

// Seen reports whether the listing has been observed before.
func (s *SeenStore) Seen(ctx context.Context, sourceID, listingID string) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM seen_listings
			WHERE source_id = $1 AND listing_id = $2
		)`

	start := time.Now()
	var seen bool
	err := s.pool.QueryRow(ctx, query, sourceID, listingID).Scan(&seen)
	metrics.RecordQuery("select_seen", start, err)
	if err != nil {
		return false, fmt.Errorf("checking seen listing: %w", err)
	}
	return seen, nil
}

// MarkSeen upserts the refs in one batch, bumping last_seen_at for listings
// already on record.
func (s *SeenStore) MarkSeen(ctx context.Context, refs []listings.SourceRef) error {
	if len(refs) == 0 {
		return nil
	}

	const query = `
		INSERT INTO seen_listings (source_id, listing_id, first_seen_at, last_seen_at)
		VALUES ($1, $2, now(), now())
		ON CONFLICT (source_id, listing_id)
		DO UPDATE SET last_seen_at = now()`

	batch := &pgx.Batch{}
	for _, ref := range refs {
		batch.Queue(query, ref.SourceID, ref.ListingID)
	}

	start := time.Now()
	err := s.pool.SendBatch(ctx, batch).Close()
	metrics.RecordQuery("upsert_seen", start, err)
	if err != nil {
		return fmt.Errorf("marking %d listings seen: %w", len(refs), err)
	}
	return nil
}

// CountBySource returns the number of distinct listings on record per source.
func (s *SeenStore) CountBySource(ctx context.Context) (map[string]int64, error) {
	const query = `
		SELECT source_id, COUNT(*)
		FROM seen_listings
		GROUP BY source_id`

	start := time.Now()
	rows, err := s.pool.Query(ctx, query)
	metrics.RecordQuery("count_seen", start, err)
	if err != nil {
		return nil, fmt.Errorf("counting seen listings: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var sourceID string
		var count int64
		if err := rows.Scan(&sourceID, &count); err != nil {
			return nil, fmt.Errorf("scanning seen count: %w", err)
		}
		counts[sourceID] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating seen counts: %w", err)
	}
	return counts, nil
}
