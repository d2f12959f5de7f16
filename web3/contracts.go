package web3

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/votara/votara-coordinator/log"
	"github.com/votara/votara-coordinator/web3/rpc"
)

const (
	// web3QueryTimeout is the timeout for read-only contract calls.
	web3QueryTimeout = 10 * time.Second
	// waitTxInterval is the polling interval while waiting for a receipt.
	waitTxInterval = 2 * time.Second
)

// Addresses contains the addresses of the contracts deployed in the network.
type Addresses struct {
	Voting             common.Address
	MembershipRegistry common.Address
}

// Contracts contains the bindings to the deployed Voting and Membership
// Registry contracts. Writes are signed with the coordinator service key.
type Contracts struct {
	ChainID    uint64
	voting     *bind.BoundContract
	registry   *bind.BoundContract
	votingAddr common.Address
	web3pool   *rpc.Web3Pool
	cli        *rpc.Client
	privKey    *ecdsa.PrivateKey
	address    common.Address

	votingABI   abi.ABI
	registryABI abi.ABI
}

// NewContracts creates a new Contracts instance with the given web3 endpoint.
func NewContracts(addresses *Addresses, web3rpc string) (*Contracts, error) {
	w3pool := rpc.NewWeb3Pool()
	chainID, err := w3pool.AddEndpoint(web3rpc)
	if err != nil {
		return nil, fmt.Errorf("failed to add web3 endpoint: %w", err)
	}
	cli, err := w3pool.Client(chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	votingABI, err := abi.JSON(strings.NewReader(votingABIJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to parse voting ABI: %w", err)
	}
	registryABI, err := abi.JSON(strings.NewReader(registryABIJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to parse registry ABI: %w", err)
	}
	return &Contracts{
		ChainID:     chainID,
		voting:      bind.NewBoundContract(addresses.Voting, votingABI, cli, cli, cli),
		registry:    bind.NewBoundContract(addresses.MembershipRegistry, registryABI, cli, cli, cli),
		votingAddr:  addresses.Voting,
		web3pool:    w3pool,
		cli:         cli,
		votingABI:   votingABI,
		registryABI: registryABI,
	}, nil
}

// AddWeb3Endpoint adds a new web3 endpoint to the pool.
func (c *Contracts) AddWeb3Endpoint(web3rpc string) error {
	_, err := c.web3pool.AddEndpoint(web3rpc)
	return err
}

// SetAccountPrivateKey sets the private key to be used for signing transactions.
func (c *Contracts) SetAccountPrivateKey(hexPrivKey string) error {
	var err error
	c.privKey, err = crypto.HexToECDSA(hexPrivKey)
	if err != nil {
		return fmt.Errorf("failed to parse private key: %w", err)
	}
	c.address = crypto.PubkeyToAddress(c.privKey.PublicKey)
	return nil
}

// AccountAddress returns the address of the account used to sign transactions.
func (c *Contracts) AccountAddress() common.Address {
	return c.address
}

// AccountBalance returns the wei balance of the signing account.
func (c *Contracts) AccountBalance(ctx context.Context) (*big.Int, error) {
	return c.cli.BalanceAt(ctx, c.address)
}

// CurrentBlock returns the current block number of the chain.
func (c *Contracts) CurrentBlock(ctx context.Context) (uint64, error) {
	return c.cli.BlockNumber(ctx)
}

// authTransactOpts helper method creates the transact options with the
// configured private key. It sets the nonce, gas tip cap, and gas limit. If
// something goes wrong creating the signer, getting the nonce, or getting
// the gas price, it returns an error.
func (c *Contracts) authTransactOpts() (*bind.TransactOpts, error) {
	if c.privKey == nil {
		return nil, fmt.Errorf("no private key set")
	}
	bChainID := new(big.Int).SetUint64(c.ChainID)
	auth, err := bind.NewKeyedTransactorWithChainID(c.privKey, bChainID)
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), web3QueryTimeout)
	defer cancel()
	log.Debugw("getting nonce", "address", c.address.Hex())
	nonce, err := c.cli.PendingNonceAt(ctx, c.address)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}
	auth.Nonce = new(big.Int).SetUint64(nonce)
	if auth.GasTipCap, err = c.cli.SuggestGasTipCap(ctx); err != nil {
		return nil, fmt.Errorf("failed to get gas tip cap: %w", err)
	}
	auth.GasLimit = 10000000
	return auth, nil
}

// WaitTx blocks until the transaction is mined with at least one
// confirmation, then returns its receipt. It returns an error if the
// transaction reverted or ctx expires first.
func (c *Contracts) WaitTx(ctx context.Context, tx *ethtypes.Transaction) (*ethtypes.Receipt, error) {
	ticker := time.NewTicker(waitTxInterval)
	defer ticker.Stop()
	for {
		receipt, err := c.cli.TransactionReceipt(ctx, tx.Hash())
		if err == nil && receipt != nil {
			head, err := c.cli.BlockNumber(ctx)
			if err == nil && head >= receipt.BlockNumber.Uint64() {
				if receipt.Status != ethtypes.ReceiptStatusSuccessful {
					return receipt, fmt.Errorf("transaction %s reverted: %w", tx.Hash().Hex(), ErrTxReverted)
				}
				return receipt, nil
			}
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for tx %s: %w", tx.Hash().Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}
