package storage

import (
	"context"
	"fmt"
	"time"
)

// Cursor returns the inclusive upper bound of blocks whose events have been
// durably applied. The tail reads it before any chain read.
func (s *Storage) Cursor(ctx context.Context) (uint64, error) {
	var last uint64
	err := s.db.QueryRowContext(ctx,
		`SELECT last_block FROM tail_cursor WHERE id = 1`,
	).Scan(&last)
	if err != nil {
		return 0, fmt.Errorf("cannot read tail cursor: %w", err)
	}
	return last, nil
}

// AdvanceCursor moves the tail cursor forward inside the batch transaction
// that applied the corresponding events. The guard keeps the cursor
// monotone: it never moves backward, even on replay.
func (b *Batch) AdvanceCursor(newHeight uint64) error {
	_, err := b.tx.ExecContext(b.ctx,
		`UPDATE tail_cursor SET last_block = ? WHERE id = 1 AND last_block < ?`,
		newHeight, newHeight,
	)
	return err
}

// ResetCursor rewinds the cursor, used only by tests and operational
// re-tailing; event idempotence makes the replay safe.
func (s *Storage) ResetCursor(ctx context.Context, height uint64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE tail_cursor SET last_block = ? WHERE id = 1`, height)
	return err
}

// AcquireLease takes (or renews) the cooperative tail lease for holder. It
// returns false when another live holder owns it, in which case the caller
// must not run the tail. The lease enforces the single-instance constraint
// of the chain-derived writes.
func (s *Storage) AcquireLease(ctx context.Context, holder string, ttl time.Duration) (bool, error) {
	now := time.Now().Unix()
	expires := time.Now().Add(ttl).Unix()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO tail_lease (id, holder, expires_at) VALUES (1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET holder = excluded.holder, expires_at = excluded.expires_at
		 WHERE tail_lease.holder = excluded.holder OR tail_lease.expires_at < ?`,
		holder, expires, now,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ReleaseLease drops the lease if held by holder.
func (s *Storage) ReleaseLease(ctx context.Context, holder string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM tail_lease WHERE id = 1 AND holder = ?`, holder)
	return err
}
