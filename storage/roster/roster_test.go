package roster

import (
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/votara/votara-coordinator/types"
	"github.com/votara/votara-coordinator/util"
)

func TestMirror(t *testing.T) {
	c := qt.New(t)
	m := NewMirror()

	id := util.Random32()
	pollID := types.HexBytes(id[:])
	commitments := []*types.BigInt{
		new(types.BigInt).SetUint64(1001),
		new(types.BigInt).SetUint64(1002),
		new(types.BigInt).SetUint64(1003),
	}

	_, err := m.Root(pollID)
	c.Assert(err, qt.ErrorIs, ErrNotMirrored)

	c.Assert(m.Set(pollID, commitments), qt.IsNil)
	c.Assert(m.Has(pollID), qt.IsTrue)

	root, err := m.Root(pollID)
	c.Assert(err, qt.IsNil)
	c.Assert(root.Sign(), qt.Equals, 1)

	// the mirror is built exactly once per poll
	c.Assert(m.Set(pollID, commitments), qt.ErrorIs, ErrAlreadyMirrored)

	// the same roster in the same order yields the same root
	m2 := NewMirror()
	c.Assert(m2.Set(pollID, commitments), qt.IsNil)
	root2, err := m2.Root(pollID)
	c.Assert(err, qt.IsNil)
	c.Assert(root2.Cmp(root), qt.Equals, 0)

	// a different order yields a different root
	m3 := NewMirror()
	reversed := []*types.BigInt{commitments[2], commitments[1], commitments[0]}
	c.Assert(m3.Set(pollID, reversed), qt.IsNil)
	root3, err := m3.Root(pollID)
	c.Assert(err, qt.IsNil)
	c.Assert(root3.Cmp(root), qt.Not(qt.Equals), 0)
}
