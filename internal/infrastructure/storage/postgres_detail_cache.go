package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"TenderMonitor/internal/domain"
	"TenderMonitor/internal/ports"
)

// PostgresDetailCache keeps raw details in the detail_cache table.
type PostgresDetailCache struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
	now    func() time.Time
}

var _ ports.DetailCache = (*PostgresDetailCache)(nil)

// NewPostgresDetailCache wires a pgx pool.
func NewPostgresDetailCache(pool *pgxpool.Pool, logger *slog.Logger) *PostgresDetailCache {
	return &PostgresDetailCache{pool: pool, logger: logger, now: time.Now}
}

// LookupBatch returns the cached subset of ids. Undecodable rows are reported as misses.
func (c *PostgresDetailCache) LookupBatch(ctx context.Context, ids []string) (map[string]domain.TenderDetail, error) {
	ids = uniqueIDs(ids)
	result := make(map[string]domain.TenderDetail)
	if len(ids) == 0 {
		return result, nil
	}

	rows, err := c.pool.Query(ctx, `SELECT code, payload FROM detail_cache WHERE code = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("query detail cache: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id      string
			payload []byte
		)
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, fmt.Errorf("scan detail cache: %w", err)
		}
		detail, err := decodeDetail(id, payload)
		if err != nil {
			warnCorrupt(c.logger, id, err)
			continue
		}
		result[id] = detail
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return result, nil
}

// Put upserts the detail of id.
func (c *PostgresDetailCache) Put(ctx context.Context, id string, detail domain.TenderDetail) error {
	now := c.now()
	payload, err := encodeDetail(id, detail, now)
	if err != nil {
		return err
	}

	_, err = c.pool.Exec(ctx,
		`INSERT INTO detail_cache (code, payload, ingested_at)
		 VALUES ($1, $2::jsonb, $3)
		 ON CONFLICT (code) DO UPDATE
		 SET payload = EXCLUDED.payload,
		     ingested_at = EXCLUDED.ingested_at`,
		id, string(payload), now,
	)
	if err != nil {
		return fmt.Errorf("upsert detail %s: %w", id, err)
	}
	return nil
}
