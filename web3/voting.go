package web3

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
)

// PollExists reports whether the Voting contract knows the poll.
func (c *Contracts) PollExists(ctx context.Context, pollID [32]byte) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, web3QueryTimeout)
	defer cancel()
	var out []any
	if err := c.voting.Call(&bind.CallOpts{Context: ctx}, &out, "pollExists", pollID); err != nil {
		return false, fmt.Errorf("failed to call pollExists: %w", err)
	}
	exists, ok := out[0].(bool)
	if !ok {
		return false, fmt.Errorf("unexpected pollExists output type %T", out[0])
	}
	return exists, nil
}

// GroupIDOf returns the groupId bound to the poll on chain, zero when the
// poll has not been activated.
func (c *Contracts) GroupIDOf(ctx context.Context, pollID [32]byte) (*big.Int, error) {
	return c.votingUint256(ctx, "groupIdOf", pollID)
}

// TotalVotes returns the on-chain vote count of the poll.
func (c *Contracts) TotalVotes(ctx context.Context, pollID [32]byte) (*big.Int, error) {
	return c.votingUint256(ctx, "totalVotes", pollID)
}

// OptionVoteCount returns the on-chain vote count of one option of the poll.
func (c *Contracts) OptionVoteCount(ctx context.Context, pollID [32]byte, optionIndex uint8) (*big.Int, error) {
	ctx, cancel := context.WithTimeout(ctx, web3QueryTimeout)
	defer cancel()
	var out []any
	if err := c.voting.Call(&bind.CallOpts{Context: ctx}, &out, "optionVoteCount", pollID, optionIndex); err != nil {
		return nil, fmt.Errorf("failed to call optionVoteCount: %w", err)
	}
	count, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected optionVoteCount output type %T", out[0])
	}
	return count, nil
}

func (c *Contracts) votingUint256(ctx context.Context, method string, pollID [32]byte) (*big.Int, error) {
	ctx, cancel := context.WithTimeout(ctx, web3QueryTimeout)
	defer cancel()
	var out []any
	if err := c.voting.Call(&bind.CallOpts{Context: ctx}, &out, method, pollID); err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", method, err)
	}
	value, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected %s output type %T", method, out[0])
	}
	return value, nil
}
