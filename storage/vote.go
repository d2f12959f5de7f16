package storage

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/votara/votara-coordinator/types"
)

// UpsertVote mirrors a VoteCast event into the vote table. A repeated
// nullifier collapses into the existing row and reports VoteDuplicate, which
// callers treat as success: this is what makes event replay idempotent.
// Unknown polls yield ErrNotFound and out-of-range options ErrBadOption; the
// tail logs and drops both, since the chain remains authoritative.
func (b *Batch) UpsertVote(vote *types.Vote) (VoteOutcome, error) {
	var optionsRaw string
	err := b.tx.QueryRowContext(b.ctx,
		`SELECT options FROM poll WHERE id = ?`, pollKey(vote.PollID),
	).Scan(&optionsRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("poll %s: %w", vote.PollID, ErrNotFound)
	}
	if err != nil {
		return 0, err
	}
	var options []types.PollOption
	if err := json.Unmarshal([]byte(optionsRaw), &options); err != nil {
		return 0, fmt.Errorf("corrupt options: %w", err)
	}
	if int(vote.OptionIndex) >= len(options) {
		return 0, fmt.Errorf("option %d of poll %s: %w", vote.OptionIndex, vote.PollID, ErrBadOption)
	}
	res, err := b.tx.ExecContext(b.ctx,
		`INSERT INTO poll_vote (nullifier_hash, poll_id, option_index, block_number, tx_hash, created_at)
		 VALUES (?, ?, ?, ?, ?, ?) ON CONFLICT(nullifier_hash) DO NOTHING`,
		vote.NullifierHash.String(), pollKey(vote.PollID), vote.OptionIndex,
		vote.BlockNumber, hex.EncodeToString(vote.TxHash), time.Now().Unix(),
	)
	if err != nil {
		return 0, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return 0, err
	} else if n == 0 {
		return VoteDuplicate, nil
	}
	return VoteInserted, nil
}

// UpsertVote is the standalone form, wrapping a single-vote batch.
func (s *Storage) UpsertVote(ctx context.Context, vote *types.Vote) (VoteOutcome, error) {
	var outcome VoteOutcome
	err := s.RunBatch(ctx, func(b *Batch) error {
		var err error
		outcome, err = b.UpsertVote(vote)
		return err
	})
	return outcome, err
}

// Results computes the per-option tallies of a poll from the mirrored votes.
// Options with no votes are included with a zero count.
func (s *Storage) Results(ctx context.Context, id types.HexBytes) ([]types.OptionResult, uint64, error) {
	poll, err := s.GetPoll(ctx, id)
	if err != nil {
		return nil, 0, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT option_index, COUNT(*) FROM poll_vote WHERE poll_id = ? GROUP BY option_index`,
		pollKey(id),
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	counts := map[uint8]uint64{}
	for rows.Next() {
		var idx uint8
		var n uint64
		if err := rows.Scan(&idx, &n); err != nil {
			return nil, 0, err
		}
		counts[idx] = n
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	results := make([]types.OptionResult, len(poll.Options))
	var total uint64
	for i, opt := range poll.Options {
		results[i] = types.OptionResult{
			OptionID: opt.ID,
			Label:    opt.Label,
			Votes:    counts[opt.ID],
		}
		total += counts[opt.ID]
	}
	return results, total, nil
}

// Votes returns the mirrored votes of a poll, ordered by block number.
func (s *Storage) Votes(ctx context.Context, id types.HexBytes) ([]*types.Vote, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT nullifier_hash, poll_id, option_index, block_number, tx_hash, created_at
		 FROM poll_vote WHERE poll_id = ? ORDER BY block_number, nullifier_hash`,
		pollKey(id),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	votes := []*types.Vote{}
	for rows.Next() {
		var (
			v                    types.Vote
			nullifier, pid, txh  string
			createdAt            int64
		)
		if err := rows.Scan(&nullifier, &pid, &v.OptionIndex, &v.BlockNumber, &txh, &createdAt); err != nil {
			return nil, err
		}
		n, ok := new(types.BigInt).SetString(nullifier)
		if !ok {
			return nil, fmt.Errorf("corrupt nullifier: %q", nullifier)
		}
		v.NullifierHash = n
		if err := v.PollID.SetString(pid); err != nil {
			return nil, err
		}
		if err := v.TxHash.SetString(txh); err != nil {
			return nil, err
		}
		v.CreatedAt = time.Unix(createdAt, 0).UTC()
		votes = append(votes, &v)
	}
	return votes, rows.Err()
}
