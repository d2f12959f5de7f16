package storage

import (
	"context"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/votara/votara-coordinator/types"
	"github.com/votara/votara-coordinator/util"
)

func activatedPoll(c *qt.C, s *Storage) *types.Poll {
	ctx := context.Background()
	poll := testPoll("0xabcd000000000000000000000000000000000001")
	c.Assert(s.InsertDraftPoll(ctx, poll), qt.IsNil)
	c.Assert(s.SetRoster(ctx, poll.ID, testRoster(2)), qt.IsNil)
	outcome, err := s.ApplyActivation(ctx, poll.ID, new(types.BigInt).SetUint64(42), util.RandomBytes(32), 10)
	c.Assert(err, qt.IsNil)
	c.Assert(outcome, qt.Equals, ActivationApplied)
	return poll
}

func TestUpsertVote(t *testing.T) {
	c := qt.New(t)
	s := newTestStorage(t)
	ctx := context.Background()
	poll := activatedPoll(c, s)

	vote := &types.Vote{
		PollID:        poll.ID,
		OptionIndex:   1,
		NullifierHash: new(types.BigInt).SetUint64(0xDEAD),
		BlockNumber:   12,
		TxHash:        util.RandomBytes(32),
	}
	outcome, err := s.UpsertVote(ctx, vote)
	c.Assert(err, qt.IsNil)
	c.Assert(outcome, qt.Equals, VoteInserted)

	// same nullifier collapses to one row, even from a later block
	replay := *vote
	replay.BlockNumber = 17
	outcome, err = s.UpsertVote(ctx, &replay)
	c.Assert(err, qt.IsNil)
	c.Assert(outcome, qt.Equals, VoteDuplicate)

	votes, err := s.Votes(ctx, poll.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(votes, qt.HasLen, 1)
	c.Assert(votes[0].BlockNumber, qt.Equals, uint64(12))

	// option index outside the poll's options
	bad := &types.Vote{
		PollID:        poll.ID,
		OptionIndex:   7,
		NullifierHash: new(types.BigInt).SetUint64(0xBEEF),
		BlockNumber:   13,
		TxHash:        util.RandomBytes(32),
	}
	_, err = s.UpsertVote(ctx, bad)
	c.Assert(err, qt.ErrorIs, ErrBadOption)

	// unknown poll
	unknown := util.Random32()
	_, err = s.UpsertVote(ctx, &types.Vote{
		PollID:        unknown[:],
		OptionIndex:   0,
		NullifierHash: new(types.BigInt).SetUint64(0xFEED),
		BlockNumber:   14,
		TxHash:        util.RandomBytes(32),
	})
	c.Assert(err, qt.ErrorIs, ErrNotFound)
}

func TestResults(t *testing.T) {
	c := qt.New(t)
	s := newTestStorage(t)
	ctx := context.Background()
	poll := activatedPoll(c, s)

	for i, optIdx := range []uint8{1, 1, 0} {
		_, err := s.UpsertVote(ctx, &types.Vote{
			PollID:        poll.ID,
			OptionIndex:   optIdx,
			NullifierHash: new(types.BigInt).SetUint64(uint64(0xD000 + i)),
			BlockNumber:   uint64(20 + i),
			TxHash:        util.RandomBytes(32),
		})
		c.Assert(err, qt.IsNil)
	}

	results, total, err := s.Results(ctx, poll.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(total, qt.Equals, uint64(3))
	c.Assert(results, qt.HasLen, 2)
	c.Assert(results[0].Votes, qt.Equals, uint64(1))
	c.Assert(results[1].Votes, qt.Equals, uint64(2))

	got, err := s.GetPoll(ctx, poll.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(got.VoteCount, qt.Equals, uint64(3))
}
