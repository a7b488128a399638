package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"TenderMonitor/internal/domain"
	"TenderMonitor/internal/ports"
)

const seenBatchSize = 500

// statesQuery reads all three sets in one statement so a concurrent Hide is never seen half-applied.
const statesQuery = `
SELECT 'hidden' AS kind, code FROM hidden WHERE code = ANY($1)
UNION ALL
SELECT 'saved' AS kind, code FROM saved WHERE code = ANY($1)
UNION ALL
SELECT 'seen' AS kind, code FROM seen_history WHERE code = ANY($1)`

// PostgresLifecycle persists the hidden, saved and seen sets into Postgres.
type PostgresLifecycle struct {
	db  *sql.DB
	sb  sq.StatementBuilderType
	now func() time.Time
	// writes share one handle; mu serializes the compound transactions.
	mu sync.Mutex
}

var _ ports.LifecycleStore = (*PostgresLifecycle)(nil)

// NewPostgresLifecycle wires a sql.DB opened with the lib/pq driver.
func NewPostgresLifecycle(db *sql.DB) *PostgresLifecycle {
	return &PostgresLifecycle{
		db:  db,
		sb:  sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		now: time.Now,
	}
}

func (r *PostgresLifecycle) IsHidden(ctx context.Context, id string) (bool, error) {
	return r.exists(ctx, "hidden", id)
}

func (r *PostgresLifecycle) IsSaved(ctx context.Context, id string) (bool, error) {
	return r.exists(ctx, "saved", id)
}

func (r *PostgresLifecycle) IsSeen(ctx context.Context, id string) (bool, error) {
	return r.exists(ctx, "seen_history", id)
}

func (r *PostgresLifecycle) exists(ctx context.Context, table, id string) (bool, error) {
	query, args, err := r.sb.Select("1").From(table).Where(sq.Eq{"code": id}).Limit(1).ToSql()
	if err != nil {
		return false, fmt.Errorf("build %s lookup: %w", table, err)
	}

	var one int
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query %s: %w", table, err)
	}
	return true, nil
}

// States returns the membership of every requested id.
func (r *PostgresLifecycle) States(ctx context.Context, ids []string) (map[string]domain.LifecycleState, error) {
	result := make(map[string]domain.LifecycleState, len(ids))
	for _, id := range ids {
		result[id] = domain.LifecycleState{}
	}
	if r.db == nil || len(ids) == 0 {
		return result, nil
	}

	rows, err := r.db.QueryContext(ctx, statesQuery, pq.StringArray(uniqueIDs(ids)))
	if err != nil {
		return nil, fmt.Errorf("query states: %w", err)
	}

	for rows.Next() {
		var kind, id string
		if err := rows.Scan(&kind, &id); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan state: %w", err)
		}
		state := result[id]
		switch kind {
		case "hidden":
			state.Hidden = true
		case "saved":
			state.Saved = true
		case "seen":
			state.Seen = true
		}
		result[id] = state
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}

	return result, nil
}

// MarkSeen inserts ids into the history, ignoring the ones already there.
func (r *PostgresLifecycle) MarkSeen(ctx context.Context, ids []string) error {
	ids = uniqueIDs(ids)
	if r.db == nil || len(ids) == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for start := 0; start < len(ids); start += seenBatchSize {
		end := min(start+seenBatchSize, len(ids))

		insert := r.sb.Insert("seen_history").Columns("code", "first_seen")
		for _, id := range ids[start:end] {
			insert = insert.Values(id, now)
		}
		query, args, err := insert.Suffix("ON CONFLICT (code) DO NOTHING").ToSql()
		if err != nil {
			return fmt.Errorf("build mark seen: %w", err)
		}

		if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("mark seen: %w", err)
		}
	}

	return nil
}

// ToggleSaved removes id from saved if present, otherwise saves it and clears any hidden flag.
func (r *PostgresLifecycle) ToggleSaved(ctx context.Context, id string) (bool, error) {
	var saved bool
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		query, args, err := r.sb.Delete("saved").Where(sq.Eq{"code": id}).ToSql()
		if err != nil {
			return fmt.Errorf("build unsave: %w", err)
		}
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("unsave: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("unsave rows: %w", err)
		} else if n > 0 {
			return nil
		}

		query, args, err = r.sb.Delete("hidden").Where(sq.Eq{"code": id}).ToSql()
		if err != nil {
			return fmt.Errorf("build unhide: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("unhide: %w", err)
		}

		query, args, err = r.sb.Insert("saved").
			Columns("code", "saved_at").
			Values(id, r.now()).
			Suffix("ON CONFLICT (code) DO NOTHING").
			ToSql()
		if err != nil {
			return fmt.Errorf("build save: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("save: %w", err)
		}

		saved = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("toggle saved %s: %w", id, err)
	}
	return saved, nil
}

// Hide drops id from saved and records it as hidden in one transaction.
func (r *PostgresLifecycle) Hide(ctx context.Context, id string) error {
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		query, args, err := r.sb.Delete("saved").Where(sq.Eq{"code": id}).ToSql()
		if err != nil {
			return fmt.Errorf("build unsave: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("unsave: %w", err)
		}

		query, args, err = r.sb.Insert("hidden").
			Columns("code", "hidden_at").
			Values(id, r.now()).
			Suffix("ON CONFLICT (code) DO UPDATE SET hidden_at = EXCLUDED.hidden_at").
			ToSql()
		if err != nil {
			return fmt.Errorf("build hide: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("hide: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("hide %s: %w", id, err)
	}
	return nil
}

// Annotate sets the note of a saved tender.
func (r *PostgresLifecycle) Annotate(ctx context.Context, id, note string) error {
	query, args, err := r.sb.Update("saved").Set("note", note).Where(sq.Eq{"code": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build annotate: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("annotate %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("annotate rows: %w", err)
	}
	if n == 0 {
		return ErrNotSaved
	}
	return nil
}

// ListSaved returns saved entries newest first.
func (r *PostgresLifecycle) ListSaved(ctx context.Context) ([]domain.SavedEntry, error) {
	query, args, err := r.sb.Select("code", "saved_at", "COALESCE(note, '')").
		From("saved").
		OrderBy("saved_at DESC", "code ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list saved: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query saved: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.SavedEntry, 0)
	for rows.Next() {
		var e domain.SavedEntry
		if err := rows.Scan(&e.ID, &e.SavedAt, &e.Note); err != nil {
			return nil, fmt.Errorf("scan saved: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return entries, nil
}

func (r *PostgresLifecycle) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
