package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/votara/votara-coordinator/types"
)

// UpsertUser records a successful login for the given address, creating the
// user row on first sight. Addresses are normalized to lowercase.
func (s *Storage) UpsertUser(ctx context.Context, address string) error {
	now := time.Now().Unix()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user (address, created_at, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(address) DO UPDATE SET updated_at = excluded.updated_at`,
		strings.ToLower(address), now, now,
	)
	return err
}

// GetUser returns a user by address, or ErrNotFound.
func (s *Storage) GetUser(ctx context.Context, address string) (*types.User, error) {
	var (
		u                    types.User
		createdAt, updatedAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT address, created_at, updated_at FROM user WHERE address = ?`,
		strings.ToLower(address),
	).Scan(&u.Address, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.CreatedAt = time.Unix(createdAt, 0).UTC()
	u.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &u, nil
}
