package web3

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/votara/votara-coordinator/log"
)

// Typed chain errors surfaced by the membership registry writes. The API
// layer maps them to its HTTP taxonomy.
var (
	ErrNotGroupAdmin   = fmt.Errorf("signer is not the group admin")
	ErrDuplicateMember = fmt.Errorf("commitment already enrolled in the group")
	ErrGroupNotFound   = fmt.Errorf("group does not exist")
	ErrOutOfFunds      = fmt.Errorf("signing account has insufficient funds")
	ErrTxReverted      = fmt.Errorf("transaction reverted")
)

// mapRegistryError translates a raw RPC or revert error into one of the
// typed registry errors, or wraps the original when unrecognized.
func mapRegistryError(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "caller is not the group admin") ||
		strings.Contains(msg, "not the admin"):
		return fmt.Errorf("%w: %s", ErrNotGroupAdmin, err)
	case strings.Contains(msg, "member already exists") ||
		strings.Contains(msg, "duplicate"):
		return fmt.Errorf("%w: %s", ErrDuplicateMember, err)
	case strings.Contains(msg, "group does not exist") ||
		strings.Contains(msg, "nonexistent group"):
		return fmt.Errorf("%w: %s", ErrGroupNotFound, err)
	case strings.Contains(msg, "insufficient funds") ||
		strings.Contains(msg, "out of gas"):
		return fmt.Errorf("%w: %s", ErrOutOfFunds, err)
	}
	return err
}

// CreateGroup submits a createGroup transaction, waits for its receipt and
// returns the new groupId decoded from the GroupCreated log, along with the
// transaction hash. The coordinator signing key becomes the group admin.
func (c *Contracts) CreateGroup(ctx context.Context) (*big.Int, common.Hash, error) {
	txOpts, err := c.authTransactOpts()
	if err != nil {
		return nil, common.Hash{}, fmt.Errorf("failed to create transact options: %w", err)
	}
	txOpts.Context = ctx
	tx, err := c.registry.Transact(txOpts, "createGroup")
	if err != nil {
		return nil, common.Hash{}, mapRegistryError(err)
	}
	log.Debugw("createGroup submitted", "tx", tx.Hash().Hex())
	receipt, err := c.WaitTx(ctx, tx)
	if err != nil {
		return nil, tx.Hash(), err
	}
	groupCreatedTopic := c.registryABI.Events["GroupCreated"].ID
	for _, l := range receipt.Logs {
		if len(l.Topics) >= 2 && l.Topics[0] == groupCreatedTopic {
			groupID := new(big.Int).SetBytes(l.Topics[1].Bytes())
			return groupID, tx.Hash(), nil
		}
	}
	return nil, tx.Hash(), fmt.Errorf("no GroupCreated log in receipt of tx %s", tx.Hash().Hex())
}

// AddMembers enrolls the commitments into the group and waits for the
// receipt. On revert the groupId is orphaned but harmless. Returns the
// transaction hash.
func (c *Contracts) AddMembers(ctx context.Context, groupID *big.Int, commitments []*big.Int) (common.Hash, error) {
	if len(commitments) == 0 {
		return common.Hash{}, fmt.Errorf("no commitments to enroll")
	}
	txOpts, err := c.authTransactOpts()
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to create transact options: %w", err)
	}
	txOpts.Context = ctx
	tx, err := c.registry.Transact(txOpts, "addMembers", groupID, commitments)
	if err != nil {
		return common.Hash{}, mapRegistryError(err)
	}
	log.Debugw("addMembers submitted", "tx", tx.Hash().Hex(),
		"groupId", groupID.String(), "count", len(commitments))
	if _, err := c.WaitTx(ctx, tx); err != nil {
		return tx.Hash(), mapRegistryError(err)
	}
	return tx.Hash(), nil
}

// MerkleTreeRoot returns the on-chain Merkle root of the group.
func (c *Contracts) MerkleTreeRoot(ctx context.Context, groupID *big.Int) (*big.Int, error) {
	return c.registryUint256(ctx, "getMerkleTreeRoot", groupID)
}

// MerkleTreeDepth returns the on-chain Merkle tree depth of the group.
func (c *Contracts) MerkleTreeDepth(ctx context.Context, groupID *big.Int) (*big.Int, error) {
	return c.registryUint256(ctx, "getMerkleTreeDepth", groupID)
}

// MerkleTreeSize returns the number of leaves of the group tree.
func (c *Contracts) MerkleTreeSize(ctx context.Context, groupID *big.Int) (*big.Int, error) {
	return c.registryUint256(ctx, "getMerkleTreeSize", groupID)
}

func (c *Contracts) registryUint256(ctx context.Context, method string, groupID *big.Int) (*big.Int, error) {
	ctx, cancel := context.WithTimeout(ctx, web3QueryTimeout)
	defer cancel()
	var out []any
	if err := c.registry.Call(&bind.CallOpts{Context: ctx}, &out, method, groupID); err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", method, mapRegistryError(err))
	}
	value, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected %s output type %T", method, out[0])
	}
	return value, nil
}
