package storage

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/votara/votara-coordinator/types"
)

// pollKey converts a poll identifier to its canonical column value
// (lowercase hex, no prefix).
func pollKey(id types.HexBytes) string {
	return hex.EncodeToString(id)
}

func encodeOptions(options []types.PollOption) (string, error) {
	data, err := json.Marshal(options)
	if err != nil {
		return "", fmt.Errorf("cannot encode options: %w", err)
	}
	return string(data), nil
}

func encodeRoster(roster []*types.BigInt) (string, error) {
	strs := make([]string, len(roster))
	for i, c := range roster {
		strs[i] = c.String()
	}
	data, err := json.Marshal(strs)
	if err != nil {
		return "", fmt.Errorf("cannot encode roster: %w", err)
	}
	return string(data), nil
}

func decodeRoster(raw string) ([]*types.BigInt, error) {
	var strs []string
	if err := json.Unmarshal([]byte(raw), &strs); err != nil {
		return nil, fmt.Errorf("cannot decode roster: %w", err)
	}
	roster := make([]*types.BigInt, len(strs))
	for i, s := range strs {
		v, ok := new(types.BigInt).SetString(s)
		if !ok {
			return nil, fmt.Errorf("invalid roster entry: %q", s)
		}
		roster[i] = v
	}
	return roster, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// InsertDraftPoll inserts a new poll in draft status with an empty roster.
// Returns ErrAlreadyExists if the poll id is taken.
func (s *Storage) InsertDraftPoll(ctx context.Context, poll *types.Poll) error {
	options, err := encodeOptions(poll.Options)
	if err != nil {
		return err
	}
	now := time.Now().Unix()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO poll (id, title, description, options, start_time, end_time, created_by, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		pollKey(poll.ID), poll.Title, poll.Description, options,
		poll.StartTime.Unix(), poll.EndTime.Unix(),
		strings.ToLower(poll.CreatorAddress), now, now,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("poll %s: %w", poll.ID, ErrAlreadyExists)
	}
	return err
}

// SetRoster stores the ordered commitment list of a poll, exactly once and
// only while the poll is a draft. The guarded update makes two concurrent
// group creations race cleanly: the loser observes ErrRosterAlreadySet.
func (s *Storage) SetRoster(ctx context.Context, id types.HexBytes, commitments []*types.BigInt) error {
	if len(commitments) == 0 {
		return ErrRosterEmpty
	}
	roster, err := encodeRoster(commitments)
	if err != nil {
		return err
	}
	return s.RunBatch(ctx, func(b *Batch) error {
		res, err := b.tx.ExecContext(b.ctx,
			`UPDATE poll SET roster = ?, updated_at = ? WHERE id = ? AND status = 'draft' AND roster = '[]'`,
			roster, time.Now().Unix(), pollKey(id),
		)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 1 {
			return nil
		}
		// Diagnose why the guard did not match.
		var status, current string
		err = b.tx.QueryRowContext(b.ctx,
			`SELECT status, roster FROM poll WHERE id = ?`, pollKey(id),
		).Scan(&status, &current)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("poll %s: %w", id, ErrNotFound)
		}
		if err != nil {
			return err
		}
		if current != "[]" {
			return fmt.Errorf("poll %s: %w", id, ErrRosterAlreadySet)
		}
		return fmt.Errorf("poll %s is %s: %w", id, status, ErrWrongStatus)
	})
}

// ApplyActivation promotes a draft poll to active, binding the on-chain group
// and activation transaction. It only applies when the current status is
// draft and the roster is non-empty; any other state is reported through the
// outcome so the tail can log and drop. Idempotent on replay.
func (s *Storage) ApplyActivation(ctx context.Context, id types.HexBytes, groupID *types.BigInt, txHash types.HexBytes, blockNumber uint64) (ActivationOutcome, error) {
	var outcome ActivationOutcome
	err := s.RunBatch(ctx, func(b *Batch) error {
		var err error
		outcome, err = b.ApplyActivation(id, groupID, txHash, blockNumber)
		return err
	})
	return outcome, err
}

// ApplyActivation is the batch form used by the chain tail.
func (b *Batch) ApplyActivation(id types.HexBytes, groupID *types.BigInt, txHash types.HexBytes, _ uint64) (ActivationOutcome, error) {
	res, err := b.tx.ExecContext(b.ctx,
		`UPDATE poll SET status = 'active', group_id = ?, activation_tx = ?, updated_at = ?
		 WHERE id = ? AND status = 'draft' AND roster != '[]'`,
		groupID.String(), hex.EncodeToString(txHash), time.Now().Unix(), pollKey(id),
	)
	if err != nil {
		return 0, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return 0, err
	} else if n == 1 {
		return ActivationApplied, nil
	}
	var status, roster string
	err = b.tx.QueryRowContext(b.ctx,
		`SELECT status, roster FROM poll WHERE id = ?`, pollKey(id),
	).Scan(&status, &roster)
	if errors.Is(err, sql.ErrNoRows) {
		return ActivationNotFound, nil
	}
	if err != nil {
		return 0, err
	}
	if status == string(types.PollStatusActive) {
		return ActivationAlreadyActive, nil
	}
	return ActivationMissingRoster, nil
}

// UpdateMetadata updates title and/or description, permitted only while the
// poll is a draft and only for its creator.
func (s *Storage) UpdateMetadata(ctx context.Context, id types.HexBytes, actor string, title, description *string) error {
	if title == nil && description == nil {
		return nil
	}
	return s.RunBatch(ctx, func(b *Batch) error {
		var status, creator string
		err := b.tx.QueryRowContext(b.ctx,
			`SELECT status, created_by FROM poll WHERE id = ?`, pollKey(id),
		).Scan(&status, &creator)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("poll %s: %w", id, ErrNotFound)
		}
		if err != nil {
			return err
		}
		if creator != strings.ToLower(actor) {
			return ErrNotCreator
		}
		if status != string(types.PollStatusDraft) {
			return fmt.Errorf("poll %s is %s: %w", id, status, ErrWrongStatus)
		}
		set := []string{"updated_at = ?"}
		args := []any{time.Now().Unix()}
		if title != nil {
			set = append(set, "title = ?")
			args = append(args, *title)
		}
		if description != nil {
			set = append(set, "description = ?")
			args = append(args, *description)
		}
		args = append(args, pollKey(id))
		_, err = b.tx.ExecContext(b.ctx,
			`UPDATE poll SET `+strings.Join(set, ", ")+` WHERE id = ?`, args...)
		return err
	})
}

// RecordCreatorBinding stores the creator observed in a PollCreated event for
// which no draft exists yet. Duplicates are ignored.
func (b *Batch) RecordCreatorBinding(id types.HexBytes, creator string, txHash types.HexBytes, blockNumber uint64) error {
	_, err := b.tx.ExecContext(b.ctx,
		`INSERT INTO creator_binding (poll_id, creator, tx_hash, block_number, created_at)
		 VALUES (?, ?, ?, ?, ?) ON CONFLICT(poll_id) DO NOTHING`,
		pollKey(id), strings.ToLower(creator), hex.EncodeToString(txHash), blockNumber, time.Now().Unix(),
	)
	return err
}

const pollColumns = `id, title, description, options, start_time, end_time, status, group_id,
	created_by, activation_tx, roster, created_at, updated_at,
	(SELECT COUNT(*) FROM poll_vote WHERE poll_vote.poll_id = poll.id) AS vote_count`

func scanPoll(row interface{ Scan(...any) error }) (*types.Poll, error) {
	var (
		p                                  types.Poll
		idHex, optionsRaw, rosterRaw       string
		groupID, activationTx, status      string
		startTime, endTime, createdAt, updatedAt int64
	)
	err := row.Scan(&idHex, &p.Title, &p.Description, &optionsRaw, &startTime, &endTime,
		&status, &groupID, &p.CreatorAddress, &activationTx, &rosterRaw,
		&createdAt, &updatedAt, &p.VoteCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := p.ID.SetString(idHex); err != nil {
		return nil, fmt.Errorf("corrupt poll id: %w", err)
	}
	if err := json.Unmarshal([]byte(optionsRaw), &p.Options); err != nil {
		return nil, fmt.Errorf("corrupt options: %w", err)
	}
	if p.Roster, err = decodeRoster(rosterRaw); err != nil {
		return nil, err
	}
	gid, ok := new(types.BigInt).SetString(groupID)
	if !ok {
		return nil, fmt.Errorf("corrupt group id: %q", groupID)
	}
	if gid.MathBigInt().Sign() != 0 {
		p.GroupID = gid
	}
	if activationTx != "" {
		if err := p.ActivationTxHash.SetString(activationTx); err != nil {
			return nil, fmt.Errorf("corrupt activation tx: %w", err)
		}
	}
	p.Status = types.PollStatus(status)
	p.StartTime = time.Unix(startTime, 0).UTC()
	p.EndTime = time.Unix(endTime, 0).UTC()
	p.CreatedAt = time.Unix(createdAt, 0).UTC()
	p.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	// ENDED is derived, never stored.
	p.Status = p.EffectiveStatus(time.Now())
	return &p, nil
}

// GetPoll returns a poll by id, with its computed vote count and effective
// status. Returns ErrNotFound if absent.
func (s *Storage) GetPoll(ctx context.Context, id types.HexBytes) (*types.Poll, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+pollColumns+` FROM poll WHERE id = ?`, pollKey(id))
	return scanPoll(row)
}

// ListFilter narrows and pages ListPolls results.
type ListFilter struct {
	Status  types.PollStatus
	Creator string
	Page    int
	Limit   int
}

// ListPolls returns a page of polls, newest first, together with the total
// number of polls matching the filter. Limit is clamped to types.MaxPageLimit.
func (s *Storage) ListPolls(ctx context.Context, filter ListFilter) ([]*types.Poll, int, error) {
	if filter.Limit <= 0 || filter.Limit > types.MaxPageLimit {
		filter.Limit = types.MaxPageLimit
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	where := []string{"1=1"}
	args := []any{}
	now := time.Now().Unix()
	switch filter.Status {
	case types.PollStatusDraft:
		where = append(where, "status = 'draft'")
	case types.PollStatusActive:
		where = append(where, "status = 'active' AND end_time > ?")
		args = append(args, now)
	case types.PollStatusEnded:
		where = append(where, "status = 'active' AND end_time <= ?")
		args = append(args, now)
	}
	if filter.Creator != "" {
		where = append(where, "created_by = ?")
		args = append(args, strings.ToLower(filter.Creator))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM poll WHERE `+cond, args...,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, filter.Limit, (filter.Page-1)*filter.Limit)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+pollColumns+` FROM poll WHERE `+cond+` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`,
		args...,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	polls := []*types.Poll{}
	for rows.Next() {
		p, err := scanPoll(rows)
		if err != nil {
			return nil, 0, err
		}
		polls = append(polls, p)
	}
	return polls, total, rows.Err()
}
