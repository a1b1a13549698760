package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DraftEntryRepository is the sqlite-backed storage.KeyValue behind the draft
// store. Entries survive process restarts the way local storage survives reloads.
type DraftEntryRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewDraftEntryRepository(sqlDB *sql.DB, logger zerolog.Logger) *DraftEntryRepository {
	return &DraftEntryRepository{db: sqlDB, logger: logger}
}

func (r *DraftEntryRepository) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM draft_entries WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		r.logger.Error().Err(err).Str("key", key).Msg("failed to read draft entry")
		return "", false, fmt.Errorf("failed to read draft entry %s: %w", key, err)
	}
	return value, true, nil
}

func (r *DraftEntryRepository) Set(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO draft_entries(key, value, updated_at) VALUES(?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC())
	if err != nil {
		r.logger.Error().Err(err).Str("key", key).Msg("failed to write draft entry")
		return fmt.Errorf("failed to write draft entry %s: %w", key, err)
	}
	return nil
}

func (r *DraftEntryRepository) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keys)), ",")
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}

	if _, err := r.db.ExecContext(ctx, `DELETE FROM draft_entries WHERE key IN (`+placeholders+`)`, args...); err != nil {
		r.logger.Error().Err(err).Strs("keys", keys).Msg("failed to delete draft entries")
		return fmt.Errorf("failed to delete draft entries: %w", err)
	}
	return nil
}

// Prune removes entries untouched since before cutoff and returns how many
// were removed. Abandoned drafts otherwise live forever.
func (r *DraftEntryRepository) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM draft_entries WHERE updated_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune draft entries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to prune draft entries: %w", err)
	}
	if n > 0 {
		r.logger.Info().Int64("removed", n).Time("cutoff", cutoff).Msg("pruned stale draft entries")
	}
	return n, nil
}
