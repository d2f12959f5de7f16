package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/votara/votara-coordinator/log"
	"github.com/votara/votara-coordinator/storage"
	"github.com/votara/votara-coordinator/types"
	"github.com/votara/votara-coordinator/web3"
)

const (
	// DefaultPollInterval is the default chain polling interval.
	DefaultPollInterval = 4 * time.Second
	// DefaultMaxWindow is the default maximum number of blocks scanned in a
	// single tail pass.
	DefaultMaxWindow = 2000
	// DefaultConfirmations is the default number of blocks subtracted from
	// the chain head before windowing.
	DefaultConfirmations = 1
	// maxBackoff caps the exponential delay after consecutive RPC errors.
	maxBackoff = 60 * time.Second
	// leaseTTL is the lifetime of the cooperative tail lease; it is renewed
	// on every pass.
	leaseTTL = 30 * time.Second
)

// ErrStorage marks tail failures coming from the local store. Chain errors
// back off and retry; storage errors stop the loop so the supervisor
// restarts the process with a fresh database handle.
var ErrStorage = errors.New("storage failure")

// ChainGateway defines the chain operations the tail needs. It is
// implemented by web3.Contracts and by MockChain in tests.
type ChainGateway interface {
	CurrentBlock(ctx context.Context) (uint64, error)
	FilterPollEvents(ctx context.Context, from, to uint64) ([]*web3.Event, error)
}

// ChainTail polls the ledger for Voting contract events and projects them
// into the store. It is the sole writer of activations and votes; every
// window is applied in one transaction together with the cursor advance, so
// a crash at any point replays the window and the guarded store operations
// absorb the duplicates.
type ChainTail struct {
	chain         ChainGateway
	storage       *storage.Storage
	interval      time.Duration
	maxWindow     uint64
	confirmations uint64
	holder        string

	mu     sync.Mutex
	cancel context.CancelFunc
}

// TailConfig tunes the chain tail. Zero values fall back to the defaults.
type TailConfig struct {
	PollInterval  time.Duration
	MaxWindow     uint64
	Confirmations uint64
}

// NewChainTail creates a new ChainTail service.
func NewChainTail(chain ChainGateway, stg *storage.Storage, cfg TailConfig) *ChainTail {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.MaxWindow == 0 {
		cfg.MaxWindow = DefaultMaxWindow
	}
	if cfg.Confirmations == 0 {
		cfg.Confirmations = DefaultConfirmations
	}
	return &ChainTail{
		chain:         chain,
		storage:       stg,
		interval:      cfg.PollInterval,
		maxWindow:     cfg.MaxWindow,
		confirmations: cfg.Confirmations,
		holder:        "tail-" + uuid.NewString(),
	}
}

// Start begins tailing the chain. It returns an error if the service is
// already running.
func (ct *ChainTail) Start(ctx context.Context) error {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	if ct.cancel != nil {
		return fmt.Errorf("service already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	ct.cancel = cancel

	go ct.run(ctx)
	return nil
}

// Stop halts the tail and releases the lease.
func (ct *ChainTail) Stop() {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	if ct.cancel != nil {
		ct.cancel()
		ct.cancel = nil
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := ct.storage.ReleaseLease(ctx, ct.holder); err != nil {
			log.Warnw("failed to release tail lease", "holder", ct.holder, "error", err)
		}
	}
}

func (ct *ChainTail) run(ctx context.Context) {
	backoff := ct.interval
	ticker := time.NewTicker(ct.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Warnw("exiting chain tail")
			return
		case <-ticker.C:
			if err := ct.pass(ctx); err != nil {
				if errors.Is(err, ErrStorage) {
					log.Errorw(err, "tail stopped on storage failure")
					return
				}
				log.Warnw("tail pass failed, backing off",
					"error", err, "backoff", backoff.String())
				select {
				case <-ctx.Done():
					return
				case <-time.After(backoff):
				}
				if backoff *= 2; backoff > maxBackoff {
					backoff = maxBackoff
				}
				continue
			}
			backoff = ct.interval
		}
	}
}

// pass runs one tail iteration: lease, cursor, window, fetch, apply.
func (ct *ChainTail) pass(ctx context.Context) error {
	ok, err := ct.storage.AcquireLease(ctx, ct.holder, leaseTTL)
	if err != nil {
		return fmt.Errorf("cannot acquire tail lease: %w: %w", ErrStorage, err)
	}
	if !ok {
		// another instance owns the tail
		return nil
	}
	cursor, err := ct.storage.Cursor(ctx)
	if err != nil {
		return fmt.Errorf("cannot read cursor: %w: %w", ErrStorage, err)
	}
	head, err := ct.chain.CurrentBlock(ctx)
	if err != nil {
		return fmt.Errorf("cannot read chain head: %w", err)
	}
	if head < ct.confirmations {
		return nil
	}
	head -= ct.confirmations
	if head <= cursor {
		return nil
	}
	windowEnd := head
	if limit := cursor + ct.maxWindow; windowEnd > limit {
		windowEnd = limit
	}
	events, err := ct.chain.FilterPollEvents(ctx, cursor+1, windowEnd)
	if err != nil {
		return fmt.Errorf("cannot fetch poll events: %w", err)
	}
	if err := ct.applyWindow(ctx, events, windowEnd); err != nil {
		return fmt.Errorf("cannot apply window (%d, %d]: %w: %w", cursor, windowEnd, ErrStorage, err)
	}
	if len(events) > 0 {
		log.Debugw("tail window applied",
			"from", cursor+1, "to", windowEnd, "events", len(events))
	}
	return nil
}

// applyWindow applies every event and the cursor advance in one store
// transaction. Benign outcomes (replays, unknown polls, duplicate
// nullifiers) are logged and dropped; only store failures abort the batch.
func (ct *ChainTail) applyWindow(ctx context.Context, events []*web3.Event, windowEnd uint64) error {
	return ct.storage.RunBatch(ctx, func(b *storage.Batch) error {
		for _, event := range events {
			if err := ct.applyEvent(b, event); err != nil {
				return err
			}
		}
		return b.AdvanceCursor(windowEnd)
	})
}

func (ct *ChainTail) applyEvent(b *storage.Batch, event *web3.Event) error {
	pollID := types.HexBytes(event.PollID[:])
	switch event.Kind {
	case web3.EventPollCreated:
		// drafts are born in the API; record a soft creator binding so an
		// API-first draft can later be cross-checked against the chain
		return b.RecordCreatorBinding(pollID, event.Creator.Hex(),
			event.TxHash.Bytes(), event.BlockNumber)
	case web3.EventPollActivated:
		groupID := (*types.BigInt)(event.GroupID)
		outcome, err := b.ApplyActivation(pollID, groupID, event.TxHash.Bytes(), event.BlockNumber)
		if err != nil {
			return err
		}
		if outcome != storage.ActivationApplied {
			log.Warnw("dropping poll activation",
				"pollId", pollID.String(), "outcome", outcome.String(),
				"block", event.BlockNumber)
		}
		return nil
	case web3.EventVoteCast:
		outcome, err := b.UpsertVote(&types.Vote{
			PollID:        pollID,
			OptionIndex:   event.OptionIndex,
			NullifierHash: (*types.BigInt)(event.NullifierHash),
			BlockNumber:   event.BlockNumber,
			TxHash:        event.TxHash.Bytes(),
		})
		switch {
		case err == nil:
			if outcome == storage.VoteDuplicate {
				log.Warnw("dropping duplicate vote",
					"pollId", pollID.String(), "block", event.BlockNumber)
			}
			return nil
		case errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrBadOption):
			// chain is authoritative; the off-chain mirror is just incomplete
			log.Warnw("dropping vote for unknown poll or option",
				"pollId", pollID.String(), "block", event.BlockNumber, "error", err)
			return nil
		default:
			return err
		}
	}
	return fmt.Errorf("unknown event kind %d", event.Kind)
}
