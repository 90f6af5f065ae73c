package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/erikbos/flux-server/database/model"
	"github.com/erikbos/flux-server/idhash"
)

// CreateSession creates a new session for a user and returns its id.
func (s *SqliteRepo) CreateSession(ctx context.Context, username string) (string, error) {
	sessionID := idhash.NewRandomID()
	err := s.writeTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO sessions (id, username) VALUES (?, ?)`,
			sessionID, username)
		return err
	})
	if err != nil {
		return "", err
	}
	return sessionID, nil
}

// GetSession returns session details by session id.
func (s *SqliteRepo) GetSession(ctx context.Context, sessionID string) (*model.Session, error) {
	var session model.Session
	err := s.dbReadHandle.GetContext(ctx, &session,
		`SELECT id, username FROM sessions WHERE id=?`, sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// DeleteSession removes a session.
func (s *SqliteRepo) DeleteSession(ctx context.Context, sessionID string) error {
	return s.writeTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx,
			`DELETE FROM sessions WHERE id=?`, sessionID)
		return err
	})
}
