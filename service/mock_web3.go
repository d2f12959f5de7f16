package service

import (
	"context"
	"sort"
	"sync"

	"github.com/votara/votara-coordinator/web3"
)

// MockChain implements ChainGateway over an in-memory event log for testing.
type MockChain struct {
	mu      sync.Mutex
	head    uint64
	headErr error
	events  []*web3.Event
}

func NewMockChain() *MockChain {
	return &MockChain{}
}

// SetHead moves the simulated chain head.
func (m *MockChain) SetHead(head uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.head = head
}

// AddEvent appends an event to the simulated log.
func (m *MockChain) AddEvent(event *web3.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	if event.BlockNumber > m.head {
		m.head = event.BlockNumber
	}
}

// SetHeadError makes CurrentBlock fail until called again with nil.
func (m *MockChain) SetHeadError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.headErr = err
}

func (m *MockChain) CurrentBlock(ctx context.Context) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.headErr != nil {
		return 0, m.headErr
	}
	return m.head, nil
}

func (m *MockChain) FilterPollEvents(ctx context.Context, from, to uint64) ([]*web3.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*web3.Event
	for _, event := range m.events {
		if event.BlockNumber >= from && event.BlockNumber <= to {
			out = append(out, event)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].BlockNumber != out[j].BlockNumber {
			return out[i].BlockNumber < out[j].BlockNumber
		}
		return out[i].LogIndex < out[j].LogIndex
	})
	return out, nil
}
