package web3

import (
	"context"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/votara/votara-coordinator/log"
)

// EventKind discriminates the decoded Voting contract events.
type EventKind int

const (
	EventPollCreated EventKind = iota
	EventPollActivated
	EventVoteCast
)

func (k EventKind) String() string {
	switch k {
	case EventPollCreated:
		return "PollCreated"
	case EventPollActivated:
		return "PollActivated"
	case EventVoteCast:
		return "VoteCast"
	}
	return "unknown"
}

// Event is a decoded Voting contract log. Only the fields matching its Kind
// are populated: Creator for PollCreated, GroupID for PollActivated,
// OptionIndex and NullifierHash for VoteCast.
type Event struct {
	Kind          EventKind
	PollID        [32]byte
	Creator       common.Address
	GroupID       *big.Int
	OptionIndex   uint8
	NullifierHash *big.Int
	BlockNumber   uint64
	TxHash        common.Hash
	LogIndex      uint
}

// FilterPollEvents fetches and decodes the Voting contract events in the
// inclusive block range [from, to]. The result is sorted by block number and
// log index, so within-block ordering between an activation and a vote is
// preserved.
func (c *Contracts) FilterPollEvents(ctx context.Context, from, to uint64) ([]*Event, error) {
	createdTopic := c.votingABI.Events["PollCreated"].ID
	activatedTopic := c.votingABI.Events["PollActivated"].ID
	castTopic := c.votingABI.Events["VoteCast"].ID

	logs, err := c.cli.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []common.Address{c.votingAddr},
		Topics:    [][]common.Hash{{createdTopic, activatedTopic, castTopic}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to filter poll events: %w", err)
	}
	events := make([]*Event, 0, len(logs))
	for i := range logs {
		event, err := c.decodePollEvent(&logs[i])
		if err != nil {
			log.Warnw("skipping undecodable poll event",
				"block", logs[i].BlockNumber, "tx", logs[i].TxHash.Hex(), "error", err)
			continue
		}
		events = append(events, event)
	}
	sort.Slice(events, func(i, j int) bool {
		if events[i].BlockNumber != events[j].BlockNumber {
			return events[i].BlockNumber < events[j].BlockNumber
		}
		return events[i].LogIndex < events[j].LogIndex
	})
	return events, nil
}

// decodePollEvent maps a raw log to a typed Event by its topic0.
func (c *Contracts) decodePollEvent(l *ethtypes.Log) (*Event, error) {
	if len(l.Topics) < 2 {
		return nil, fmt.Errorf("log has %d topics, want at least 2", len(l.Topics))
	}
	event := &Event{
		BlockNumber: l.BlockNumber,
		TxHash:      l.TxHash,
		LogIndex:    l.Index,
	}
	copy(event.PollID[:], l.Topics[1].Bytes())
	switch l.Topics[0] {
	case c.votingABI.Events["PollCreated"].ID:
		if len(l.Topics) < 3 {
			return nil, fmt.Errorf("PollCreated log missing creator topic")
		}
		event.Kind = EventPollCreated
		event.Creator = common.BytesToAddress(l.Topics[2].Bytes())
	case c.votingABI.Events["PollActivated"].ID:
		event.Kind = EventPollActivated
		values, err := c.votingABI.Unpack("PollActivated", l.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to unpack PollActivated: %w", err)
		}
		groupID, ok := values[0].(*big.Int)
		if !ok {
			return nil, fmt.Errorf("unexpected groupId type %T", values[0])
		}
		event.GroupID = groupID
	case c.votingABI.Events["VoteCast"].ID:
		event.Kind = EventVoteCast
		values, err := c.votingABI.Unpack("VoteCast", l.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to unpack VoteCast: %w", err)
		}
		optionIndex, ok := values[0].(uint8)
		if !ok {
			return nil, fmt.Errorf("unexpected optionIndex type %T", values[0])
		}
		nullifier, ok := values[1].(*big.Int)
		if !ok {
			return nil, fmt.Errorf("unexpected nullifierHash type %T", values[1])
		}
		event.OptionIndex = optionIndex
		event.NullifierHash = nullifier
	default:
		return nil, fmt.Errorf("unknown topic %s", l.Topics[0].Hex())
	}
	return event, nil
}
