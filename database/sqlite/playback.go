package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/erikbos/flux-server/database/model"
)

// UpsertPlayback stores the resume position for (user, record). At
// most one row exists per pair.
func (s *SqliteRepo) UpsertPlayback(ctx context.Context, p model.Playback) error {
	p.Changed = time.Now().Unix()
	return s.writeTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.NamedExecContext(ctx,
			`INSERT OR REPLACE INTO playbacks (username, record_id, video_id, timestamp, changed)
			VALUES (:username, :record_id, :video_id, :timestamp, :changed)`, p)
		return err
	})
}

// DeletePlayback removes the resume position for (user, record).
// Deleting a nonexistent row is not an error.
func (s *SqliteRepo) DeletePlayback(ctx context.Context, username, recordID string) error {
	return s.writeTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx,
			`DELETE FROM playbacks WHERE username=? AND record_id=?`,
			username, recordID)
		return err
	})
}

// GetPlayback returns the resume position for (user, record).
func (s *SqliteRepo) GetPlayback(ctx context.Context, username, recordID string) (*model.Playback, error) {
	var p model.Playback
	err := s.dbReadHandle.GetContext(ctx, &p,
		`SELECT username, record_id, video_id, timestamp, changed
		FROM playbacks WHERE username=? AND record_id=?`,
		username, recordID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
