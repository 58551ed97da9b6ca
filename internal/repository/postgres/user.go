package postgres

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

// FindOrCreateUserByEmail inserts the user unless the email is taken, then
// reads back whichever row owns the email.
func (db *DB) FindOrCreateUserByEmail(ctx context.Context, user *model.User) error {
	const q = `
INSERT INTO users (id, email, name, image, created_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (email) DO NOTHING;
`
	if _, err := db.conn.ExecContext(ctx, q, xid.New().String(), user.Email, user.Name, user.Image, time.Now().UTC()); err != nil {
		return fmt.Errorf("postgres: inserting user %s: %w", user.Email, err)
	}

	stored, err := db.GetUserByEmail(ctx, user.Email)
	if err != nil {
		return fmt.Errorf("postgres: reading back user %s: %w", user.Email, err)
	}
	*user = *stored
	return nil
}

func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return db.getUser(ctx, `SELECT id, email, name, image, created_at FROM users WHERE id = $1`, id)
}

func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return db.getUser(ctx, `SELECT id, email, name, image, created_at FROM users WHERE email = $1`, email)
}

func (db *DB) getUser(ctx context.Context, q, value string) (*model.User, error) {
	var u model.User
	err := db.conn.QueryRowContext(ctx, q, value).Scan(&u.ID, &u.Email, &u.Name, &u.Image, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", value)
		}
		return nil, fmt.Errorf("postgres: getting user %s: %w", value, err)
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return &u, nil
}
