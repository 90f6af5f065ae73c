package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"github.com/erikbos/flux-server/database/model"
)

// CreateUser creates a user with a bcrypt-hashed password.
func (s *SqliteRepo) CreateUser(ctx context.Context, username, password string, isAdmin bool) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.writeTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO users (username, password, is_admin) VALUES (?, ?, ?)`,
			username, string(hashed), isAdmin)
		return err
	})
}

// GetUser retrieves a user.
func (s *SqliteRepo) GetUser(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	err := s.dbReadHandle.GetContext(ctx, &user,
		`SELECT username, password, volume, muted, autoplay, is_admin
		FROM users WHERE username=?`, username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ValidateUser checks if the user exists and the password is correct.
func (s *SqliteRepo) ValidateUser(ctx context.Context, username, password string) (*model.User, error) {
	user, err := s.GetUser(ctx, username)
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, model.ErrInvalidPassword
	}
	return user, nil
}

// UpdateUserSettings stores the player settings of a user.
func (s *SqliteRepo) UpdateUserSettings(ctx context.Context, username string, volume float64, muted, autoplay bool) error {
	return s.writeTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE users SET volume=?, muted=?, autoplay=? WHERE username=?`,
			volume, muted, autoplay, username)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return model.ErrNotFound
		}
		return nil
	})
}

// SetPassword replaces the password of a user.
func (s *SqliteRepo) SetPassword(ctx context.Context, username, password string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.writeTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE users SET password=? WHERE username=?`, string(hashed), username)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return model.ErrNotFound
		}
		return nil
	})
}

// PromoteUser grants admin privileges.
func (s *SqliteRepo) PromoteUser(ctx context.Context, username string) error {
	return s.writeTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE users SET is_admin=1 WHERE username=?`, username)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return model.ErrNotFound
		}
		return nil
	})
}

// DeleteUser removes a user. Sessions and playbacks cascade.
func (s *SqliteRepo) DeleteUser(ctx context.Context, username string) error {
	return s.writeTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM users WHERE username=?`, username)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return model.ErrNotFound
		}
		return nil
	})
}
