// Package roster keeps an in-memory Merkle mirror of each poll's commitment
// roster. The tree uses the same Poseidon hash as the on-chain membership
// registry, so clients can cross-check the locally computed root against
// getMerkleTreeRoot before generating proofs.
package roster

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/vocdoni/arbo"
	"github.com/vocdoni/arbo/memdb"
	"github.com/votara/votara-coordinator/types"
)

// TreeMaxLevels bounds the mirror tree depth; 160 levels covers any group
// size the registry can hold.
const TreeMaxLevels = 160

// ErrAlreadyMirrored is returned by Set when the poll already has a mirror,
// matching the set-exactly-once roster rule.
var ErrAlreadyMirrored = fmt.Errorf("roster already mirrored")

// ErrNotMirrored is returned by Root when no mirror exists for the poll.
var ErrNotMirrored = fmt.Errorf("roster not mirrored")

// Mirror holds one Merkle tree per poll, keyed by poll id. Safe for
// concurrent use. Trees are rebuilt lazily after a restart from the stored
// roster, so losing the process memory is harmless.
type Mirror struct {
	mu    sync.RWMutex
	trees map[string]*arbo.Tree
}

// NewMirror returns an empty Mirror.
func NewMirror() *Mirror {
	return &Mirror{trees: make(map[string]*arbo.Tree)}
}

// Set builds the Merkle mirror for the poll from its ordered commitments.
// The leaf at index i holds the i-th commitment, matching the insertion
// order of the on-chain addMembers call.
func (m *Mirror) Set(pollID types.HexBytes, commitments []*types.BigInt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := pollID.String()
	if _, ok := m.trees[key]; ok {
		return fmt.Errorf("poll %s: %w", pollID, ErrAlreadyMirrored)
	}
	tree, err := arbo.NewTree(arbo.Config{
		Database:     memdb.New(),
		MaxLevels:    TreeMaxLevels,
		HashFunction: arbo.HashFunctionPoseidon,
	})
	if err != nil {
		return fmt.Errorf("cannot create mirror tree: %w", err)
	}
	for i, commitment := range commitments {
		k := arbo.BigIntToBytes(TreeMaxLevels/8, big.NewInt(int64(i)))
		v := arbo.BigIntToBytes(arbo.HashFunctionPoseidon.Len(), commitment.MathBigInt())
		if err := tree.Add(k, v); err != nil {
			return fmt.Errorf("cannot add commitment %d: %w", i, err)
		}
	}
	m.trees[key] = tree
	return nil
}

// Root returns the mirror root of the poll as a field element.
func (m *Mirror) Root(pollID types.HexBytes) (*big.Int, error) {
	m.mu.RLock()
	tree, ok := m.trees[pollID.String()]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("poll %s: %w", pollID, ErrNotMirrored)
	}
	root, err := tree.Root()
	if err != nil {
		return nil, fmt.Errorf("cannot read mirror root: %w", err)
	}
	return arbo.BytesToBigInt(root), nil
}

// Has reports whether a mirror exists for the poll.
func (m *Mirror) Has(pollID types.HexBytes) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.trees[pollID.String()]
	return ok
}
