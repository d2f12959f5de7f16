package api

import (
	"github.com/votara/votara-coordinator/types"
)

// NonceResponse is the payload of GET /auth/nonce.
type NonceResponse struct {
	Nonce       string `json:"nonce"`
	SignedNonce string `json:"signedNonce"`
}

// LoginMessage is the canonical login statement the client signs. Its
// canonical serialization (see canonicalLoginMessage) is what the signature
// covers.
type LoginMessage struct {
	Domain   string `json:"domain"`
	Address  string `json:"address"`
	Nonce    string `json:"nonce"`
	ChainID  uint64 `json:"chainId"`
	IssuedAt int64  `json:"issuedAt"`
}

// VerifyRequest is the body of POST /auth/verify.
type VerifyRequest struct {
	Message     LoginMessage   `json:"message"`
	Signature   types.HexBytes `json:"signature"`
	SignedNonce string         `json:"signedNonce"`
}

// VerifyResponse is the payload of POST /auth/verify.
type VerifyResponse struct {
	Token     string `json:"token"`
	Address   string `json:"address"`
	ExpiresAt int64  `json:"expiresAt"`
}

// CreatePollRequest is the body of POST /polls. Times are unix seconds.
type CreatePollRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Options     []string `json:"options"`
	StartTime   int64    `json:"startTime"`
	EndTime     int64    `json:"endTime"`
}

// UpdatePollRequest is the body of PUT /polls/{id}. Nil fields are left
// untouched.
type UpdatePollRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

// CreateGroupRequest is the body of POST /polls/{id}/create-group. Entries
// are ledger addresses (projected to commitments) or raw field-element
// commitments.
type CreateGroupRequest struct {
	EligibleAddresses []string `json:"eligibleAddresses"`
}

// CreateGroupResponse is the payload of POST /polls/{id}/create-group.
type CreateGroupResponse struct {
	GroupID *types.BigInt  `json:"groupId"`
	TxHash  types.HexBytes `json:"txHash"`
	Count   int            `json:"count"`
}

// ResultsResponse is the payload of GET /polls/{id}/results.
type ResultsResponse struct {
	Poll       *types.Poll          `json:"poll"`
	Results    []types.OptionResult `json:"results"`
	TotalVotes uint64               `json:"totalVotes"`
}

// GroupMembersResponse is the payload of GET /polls/{id}/group-members. The
// commitments are returned in roster order; MirrorRoot is the locally
// computed Merkle root, OnchainRoot the registry's, when available.
type GroupMembersResponse struct {
	Commitments []*types.BigInt `json:"commitments"`
	MirrorRoot  *types.BigInt   `json:"mirrorRoot,omitempty"`
	OnchainRoot *types.BigInt   `json:"onchainRoot,omitempty"`
	TreeDepth   *types.BigInt   `json:"treeDepth,omitempty"`
	TreeSize    *types.BigInt   `json:"treeSize,omitempty"`
}

// InfoResponse is the payload of GET /info.
type InfoResponse struct {
	ChainID            uint64 `json:"chainId"`
	VotingContract     string `json:"votingContract"`
	MembershipContract string `json:"membershipContract"`
	TailCursor         uint64 `json:"tailCursor"`
	ChainHead          uint64 `json:"chainHead"`
}
