package types

import (
	"encoding/json"
	"time"
)

// PollStatus is the lifecycle state of a poll. The only legal progression is
// DRAFT -> ACTIVE -> ENDED. ACTIVE is written exclusively by the chain tail
// when it observes a PollActivated event; ENDED is computed from the end time
// and never persisted.
type PollStatus string

const (
	PollStatusDraft  PollStatus = "draft"
	PollStatusActive PollStatus = "active"
	PollStatusEnded  PollStatus = "ended"
)

// Valid reports whether s is one of the known statuses.
func (s PollStatus) Valid() bool {
	switch s {
	case PollStatusDraft, PollStatusActive, PollStatusEnded:
		return true
	}
	return false
}

// PollOption is one voteable choice. IDs are dense from 0 and immutable once
// the poll leaves the draft state.
type PollOption struct {
	ID    uint8  `json:"id"`
	Label string `json:"label"`
}

// Poll is the off-chain record of a voting process. The metadata store is the
// authority for the draft fields and the roster; the chain is the authority
// for the activation fields (GroupID, ActivationTxHash) and for votes.
type Poll struct {
	ID               HexBytes     `json:"pollId"`
	Title            string       `json:"title"`
	Description      string       `json:"description"`
	Options          []PollOption `json:"options"`
	StartTime        time.Time    `json:"startTime"`
	EndTime          time.Time    `json:"endTime"`
	Status           PollStatus   `json:"status"`
	GroupID          *BigInt      `json:"groupId,omitempty"`
	CreatorAddress   string       `json:"creatorAddress"`
	ActivationTxHash HexBytes     `json:"activationTxHash,omitempty"`
	Roster           []*BigInt    `json:"-"`
	VoteCount        uint64       `json:"voteCount"`
	CreatedAt        time.Time    `json:"createdAt"`
	UpdatedAt        time.Time    `json:"updatedAt"`
}

func (p *Poll) String() string {
	data, err := json.Marshal(p)
	if err != nil {
		return ""
	}
	return string(data)
}

// EffectiveStatus returns the status with the ENDED transition applied, which
// is derived from the wall clock rather than stored.
func (p *Poll) EffectiveStatus(now time.Time) PollStatus {
	if p.Status == PollStatusActive && !now.Before(p.EndTime) {
		return PollStatusEnded
	}
	return p.Status
}

// OptionByID returns the option with the given id, or false if out of range.
func (p *Poll) OptionByID(id uint8) (PollOption, bool) {
	for _, opt := range p.Options {
		if opt.ID == id {
			return opt, true
		}
	}
	return PollOption{}, false
}

// Vote is the off-chain mirror of a VoteCast event. The nullifier hash is
// globally unique; a second event carrying the same nullifier collapses into
// the existing row.
type Vote struct {
	PollID        HexBytes  `json:"pollId"`
	OptionIndex   uint8     `json:"optionIndex"`
	NullifierHash *BigInt   `json:"nullifierHash"`
	BlockNumber   uint64    `json:"blockNumber"`
	TxHash        HexBytes  `json:"txHash"`
	CreatedAt     time.Time `json:"createdAt"`
}

// User is a login record keyed by the normalized (lowercased) ledger address.
// No PII is kept.
type User struct {
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// OptionResult is the aggregated tally for a single option.
type OptionResult struct {
	OptionID uint8  `json:"optionId"`
	Label    string `json:"label"`
	Votes    uint64 `json:"votes"`
}

const (
	// PollIDLen is the length in bytes of a poll identifier.
	PollIDLen = 32
	// MinPollOptions and MaxPollOptions bound the option list of a poll.
	MinPollOptions = 2
	MaxPollOptions = 256
	// MaxPageLimit caps the page size of list endpoints.
	MaxPageLimit = 50
)
