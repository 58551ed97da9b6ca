package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/task-tracker/internal/apperror"
	"github.com/sakif/task-tracker/internal/model"
)

// FindOrCreateUserByEmail links a sign-in to a user row.
//
// INSERT ... ON CONFLICT(email) DO NOTHING followed by a SELECT means two
// concurrent first sign-ins with the same email can't create two users or
// fail on the UNIQUE constraint: the loser's insert is a no-op and both read
// back the same row. An existing user's profile is left untouched.
func (db *DB) FindOrCreateUserByEmail(ctx context.Context, user *model.User) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, email, name, image, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(email) DO NOTHING`,
		xid.New().String(),
		user.Email,
		user.Name,
		user.Image,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting user %s: %w", user.Email, err)
	}

	stored, err := db.GetUserByEmail(ctx, user.Email)
	if err != nil {
		return fmt.Errorf("sqlite: reading back user %s: %w", user.Email, err)
	}
	*user = *stored
	return nil
}

// GetUserByID returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return db.getUser(ctx, `id`, id)
}

// GetUserByEmail returns apperror.ErrNotFound if no user has that email.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return db.getUser(ctx, `email`, email)
}

// getUser is only ever called with a column name from this file.
func (db *DB) getUser(ctx context.Context, column, value string) (*model.User, error) {
	var u model.User
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, email, name, image, created_at FROM users WHERE `+column+` = ?`,
		value,
	).Scan(&u.ID, &u.Email, &u.Name, &u.Image, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", value)
		}
		return nil, fmt.Errorf("sqlite: getting user by %s: %w", column, err)
	}
	return &u, nil
}
