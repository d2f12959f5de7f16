package rpc

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
)

// Client implements bind.ContractBackend for a chainID over a Web3Pool.
// Every call takes the next available endpoint from the pool; on failure the
// endpoint is disabled and the error returned, so the next call rotates to a
// healthy provider.
type Client struct {
	w3p     *Web3Pool
	chainID uint64
}

// ChainID returns the chainID this client is bound to.
func (c *Client) ChainID() uint64 {
	return c.chainID
}

// endpoint returns the next available endpoint for the client chainID.
func (c *Client) endpoint() (*Web3Endpoint, error) {
	e, err := c.w3p.Endpoint(c.chainID)
	if err != nil {
		return nil, fmt.Errorf("error getting endpoint for chainID %d: %w", c.chainID, err)
	}
	return e, nil
}

// CodeAt implements bind.ContractBackend.
func (c *Client) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	e, err := c.endpoint()
	if err != nil {
		return nil, err
	}
	code, err := e.client.CodeAt(ctx, account, blockNumber)
	if err != nil {
		c.w3p.DisableEndpoint(c.chainID, e.URI)
		return nil, err
	}
	return code, nil
}

// CallContract implements bind.ContractBackend.
func (c *Client) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	e, err := c.endpoint()
	if err != nil {
		return nil, err
	}
	res, err := e.client.CallContract(ctx, call, blockNumber)
	if err != nil {
		c.w3p.DisableEndpoint(c.chainID, e.URI)
		return nil, err
	}
	return res, nil
}

// HeaderByNumber implements bind.ContractBackend.
func (c *Client) HeaderByNumber(ctx context.Context, number *big.Int) (*ethtypes.Header, error) {
	e, err := c.endpoint()
	if err != nil {
		return nil, err
	}
	header, err := e.client.HeaderByNumber(ctx, number)
	if err != nil {
		c.w3p.DisableEndpoint(c.chainID, e.URI)
		return nil, err
	}
	return header, nil
}

// PendingCodeAt implements bind.ContractBackend.
func (c *Client) PendingCodeAt(ctx context.Context, account common.Address) ([]byte, error) {
	e, err := c.endpoint()
	if err != nil {
		return nil, err
	}
	code, err := e.client.PendingCodeAt(ctx, account)
	if err != nil {
		c.w3p.DisableEndpoint(c.chainID, e.URI)
		return nil, err
	}
	return code, nil
}

// PendingNonceAt implements bind.ContractBackend.
func (c *Client) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	e, err := c.endpoint()
	if err != nil {
		return 0, err
	}
	nonce, err := e.client.PendingNonceAt(ctx, account)
	if err != nil {
		c.w3p.DisableEndpoint(c.chainID, e.URI)
		return 0, err
	}
	return nonce, nil
}

// SuggestGasPrice implements bind.ContractBackend.
func (c *Client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	e, err := c.endpoint()
	if err != nil {
		return nil, err
	}
	price, err := e.client.SuggestGasPrice(ctx)
	if err != nil {
		c.w3p.DisableEndpoint(c.chainID, e.URI)
		return nil, err
	}
	return price, nil
}

// SuggestGasTipCap implements bind.ContractBackend.
func (c *Client) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	e, err := c.endpoint()
	if err != nil {
		return nil, err
	}
	tip, err := e.client.SuggestGasTipCap(ctx)
	if err != nil {
		c.w3p.DisableEndpoint(c.chainID, e.URI)
		return nil, err
	}
	return tip, nil
}

// EstimateGas implements bind.ContractBackend.
func (c *Client) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	e, err := c.endpoint()
	if err != nil {
		return 0, err
	}
	gas, err := e.client.EstimateGas(ctx, call)
	if err != nil {
		c.w3p.DisableEndpoint(c.chainID, e.URI)
		return 0, err
	}
	return gas, nil
}

// SendTransaction implements bind.ContractBackend.
func (c *Client) SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error {
	e, err := c.endpoint()
	if err != nil {
		return err
	}
	if err := e.client.SendTransaction(ctx, tx); err != nil {
		c.w3p.DisableEndpoint(c.chainID, e.URI)
		return err
	}
	return nil
}

// FilterLogs implements bind.ContractBackend.
func (c *Client) FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]ethtypes.Log, error) {
	e, err := c.endpoint()
	if err != nil {
		return nil, err
	}
	logs, err := e.client.FilterLogs(ctx, query)
	if err != nil {
		c.w3p.DisableEndpoint(c.chainID, e.URI)
		return nil, err
	}
	return logs, nil
}

// SubscribeFilterLogs implements bind.ContractBackend.
func (c *Client) SubscribeFilterLogs(ctx context.Context, query ethereum.FilterQuery,
	ch chan<- ethtypes.Log,
) (ethereum.Subscription, error) {
	e, err := c.endpoint()
	if err != nil {
		return nil, err
	}
	sub, err := e.client.SubscribeFilterLogs(ctx, query, ch)
	if err != nil {
		c.w3p.DisableEndpoint(c.chainID, e.URI)
		return nil, err
	}
	return sub, nil
}

// BlockNumber returns the current block number of the chain.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	e, err := c.endpoint()
	if err != nil {
		return 0, err
	}
	n, err := e.client.BlockNumber(ctx)
	if err != nil {
		c.w3p.DisableEndpoint(c.chainID, e.URI)
		return 0, err
	}
	return n, nil
}

// TransactionReceipt returns the receipt of a mined transaction, or an error
// if the transaction is still pending.
func (c *Client) TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error) {
	e, err := c.endpoint()
	if err != nil {
		return nil, err
	}
	receipt, err := e.client.TransactionReceipt(ctx, txHash)
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// BalanceAt returns the wei balance of the account at the latest block.
func (c *Client) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	e, err := c.endpoint()
	if err != nil {
		return nil, err
	}
	balance, err := e.client.BalanceAt(ctx, account, nil)
	if err != nil {
		c.w3p.DisableEndpoint(c.chainID, e.URI)
		return nil, err
	}
	return balance, nil
}
