package rpc

import (
	"fmt"
	"sync"
)

// Web3Iterator rotates over a set of Web3Endpoint instances for the same
// chainID. Next returns the next available endpoint in round-robin order.
// When every endpoint has been disabled, the iterator resets all of them to
// available and starts the rotation again, so a transient outage of every
// provider does not permanently starve the pool.
type Web3Iterator struct {
	mtx       sync.Mutex
	endpoints []*Web3Endpoint
	next      int
}

// NewWeb3Iterator returns a new Web3Iterator over the endpoints provided.
func NewWeb3Iterator(endpoints ...*Web3Endpoint) *Web3Iterator {
	return &Web3Iterator{endpoints: endpoints}
}

// Add registers a new endpoint in the rotation.
func (i *Web3Iterator) Add(endpoint *Web3Endpoint) {
	i.mtx.Lock()
	defer i.mtx.Unlock()
	endpoint.available = true
	i.endpoints = append(i.endpoints, endpoint)
}

// Available returns the number of endpoints currently flagged available.
func (i *Web3Iterator) Available() int {
	i.mtx.Lock()
	defer i.mtx.Unlock()
	n := 0
	for _, e := range i.endpoints {
		if e.available {
			n++
		}
	}
	return n
}

// Disabled returns the number of endpoints currently flagged unavailable.
func (i *Web3Iterator) Disabled() int {
	i.mtx.Lock()
	defer i.mtx.Unlock()
	n := 0
	for _, e := range i.endpoints {
		if !e.available {
			n++
		}
	}
	return n
}

// Next returns the next available endpoint in the rotation. If every
// endpoint is disabled, it resets all of them to available and returns the
// first one. It returns an error only when the iterator holds no endpoints.
func (i *Web3Iterator) Next() (*Web3Endpoint, error) {
	i.mtx.Lock()
	defer i.mtx.Unlock()
	if len(i.endpoints) == 0 {
		return nil, fmt.Errorf("no endpoints registered")
	}
	for range i.endpoints {
		e := i.endpoints[i.next]
		i.next = (i.next + 1) % len(i.endpoints)
		if e.available {
			return e, nil
		}
	}
	// all disabled, reset and start over
	for _, e := range i.endpoints {
		e.available = true
	}
	e := i.endpoints[i.next]
	i.next = (i.next + 1) % len(i.endpoints)
	return e, nil
}

// Disable flags the endpoint with the URI provided as unavailable.
func (i *Web3Iterator) Disable(uri string) {
	i.mtx.Lock()
	defer i.mtx.Unlock()
	for _, e := range i.endpoints {
		if e.URI == uri {
			e.available = false
		}
	}
}
