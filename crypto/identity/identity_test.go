package identity

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	qt "github.com/frankban/quicktest"
	"github.com/votara/votara-coordinator/util"
)

func TestCommitmentFromAddress(t *testing.T) {
	c := qt.New(t)

	addr := common.HexToAddress("0x8626f6940E2eb28930eFb4CeF49B2d1F2C9C1199")
	first, err := CommitmentFromAddress(addr)
	c.Assert(err, qt.IsNil)
	c.Assert(first.Sign(), qt.Equals, 1)
	// always strictly below the field order
	c.Assert(first.Cmp(util.BN254ScalarField()) < 0, qt.IsTrue)

	// deterministic
	second, err := CommitmentFromAddress(addr)
	c.Assert(err, qt.IsNil)
	c.Assert(second.Cmp(first), qt.Equals, 0)

	// a different address yields a different commitment
	other, err := CommitmentFromAddress(common.HexToAddress("0xdD2FD4581271e230360230F9337D5c0430Bf44C0"))
	c.Assert(err, qt.IsNil)
	c.Assert(other.Cmp(first), qt.Not(qt.Equals), 0)
}

func TestParseCommitment(t *testing.T) {
	c := qt.New(t)

	// addresses are projected
	fromAddr, err := ParseCommitment("0x8626f6940E2eb28930eFb4CeF49B2d1F2C9C1199")
	c.Assert(err, qt.IsNil)
	expected, err := CommitmentFromAddress(common.HexToAddress("0x8626f6940E2eb28930eFb4CeF49B2d1F2C9C1199"))
	c.Assert(err, qt.IsNil)
	c.Assert(fromAddr.Cmp(expected), qt.Equals, 0)

	// raw decimal field elements pass through
	raw, err := ParseCommitment("123456789")
	c.Assert(err, qt.IsNil)
	c.Assert(raw.String(), qt.Equals, "123456789")

	// out-of-field values are rejected
	_, err = ParseCommitment(util.BN254ScalarField().String())
	c.Assert(err, qt.Not(qt.IsNil))

	// garbage is rejected
	_, err = ParseCommitment("not-a-commitment")
	c.Assert(err, qt.Not(qt.IsNil))
}
