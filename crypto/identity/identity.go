// Package identity projects external voter identifiers into SNARK-field
// commitments usable as membership leaves. The projection is a demo identity
// scheme: in production the voter chooses the commitment and keeps the
// preimage for proof generation.
package identity

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/iden3/go-iden3-crypto/poseidon"
	"github.com/votara/votara-coordinator/util"
)

// CommitmentFromAddress maps a ledger address to a field element commitment:
// Poseidon(addressAsFieldElement), reduced modulo the BN254 scalar field.
// The result is always strictly below the field order and deterministic for
// a given address.
func CommitmentFromAddress(addr common.Address) (*big.Int, error) {
	elem := util.BigToFF(new(big.Int).SetBytes(addr.Bytes()))
	hash, err := poseidon.Hash([]*big.Int{elem})
	if err != nil {
		return nil, fmt.Errorf("poseidon hash failed: %w", err)
	}
	return util.BigToFF(hash), nil
}

// ParseCommitment accepts either a raw commitment (decimal or 0x-hex field
// element) or a 20-byte ledger address, returning the corresponding
// commitment. This is the "eligibleAddresses means project these for me"
// contract of the group creation endpoint.
func ParseCommitment(s string) (*big.Int, error) {
	if common.IsHexAddress(s) {
		return CommitmentFromAddress(common.HexToAddress(s))
	}
	v, ok := new(big.Int).SetString(util.TrimHex(s), base(s))
	if !ok {
		return nil, fmt.Errorf("not an address nor a field element: %q", s)
	}
	if v.Sign() <= 0 || v.Cmp(util.BN254ScalarField()) >= 0 {
		return nil, fmt.Errorf("commitment out of field range: %q", s)
	}
	return v, nil
}

func base(s string) int {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return 16
	}
	return 10
}
