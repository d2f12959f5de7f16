package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/votara/votara-coordinator/api"
	"github.com/votara/votara-coordinator/config"
	"github.com/votara/votara-coordinator/log"
	"github.com/votara/votara-coordinator/service"
	"github.com/votara/votara-coordinator/storage"
	"github.com/votara/votara-coordinator/web3"
)

func main() {
	cfg, err := config.New()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	log.Init(cfg.LogLevel, cfg.LogOutput)
	log.Infow("starting votara coordinator", "chain", cfg.Chain, "db", cfg.DBPath)

	stg, err := storage.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open storage: %v", err)
	}
	defer func() {
		if err := stg.Close(); err != nil {
			log.Warnw("failed to close storage", "error", err)
		}
	}()

	contracts, err := web3.NewContracts(&web3.Addresses{
		Voting:             common.HexToAddress(cfg.VotingContract),
		MembershipRegistry: common.HexToAddress(cfg.MembershipContract),
	}, cfg.RPCURL[0])
	if err != nil {
		log.Fatalf("failed to initialize contracts: %v", err)
	}
	for _, rpcURL := range cfg.RPCURL[1:] {
		if err := contracts.AddWeb3Endpoint(rpcURL); err != nil {
			log.Warnw("failed to add web3 endpoint", "rpc", rpcURL, "error", err)
		}
	}
	if err := contracts.SetAccountPrivateKey(cfg.SigningKey); err != nil {
		log.Fatalf("failed to load signing key: %v", err)
	}
	log.Infow("contracts initialized",
		"chainId", contracts.ChainID, "account", contracts.AccountAddress().Hex())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tail := service.NewChainTail(contracts, stg, service.TailConfig{
		PollInterval:  cfg.PollInterval,
		MaxWindow:     cfg.MaxWindow,
		Confirmations: cfg.Confirmations,
	})
	if err := tail.Start(ctx); err != nil {
		log.Fatalf("failed to start chain tail: %v", err)
	}
	defer tail.Stop()

	apiService := service.NewAPI(&api.APIConfig{
		Host:               cfg.ListenHost,
		Port:               cfg.ListenPort,
		Storage:            stg,
		Chain:              contracts,
		ChainID:            contracts.ChainID,
		VotingContract:     cfg.VotingContract,
		MembershipContract: cfg.MembershipContract,
		ServerKey:          []byte(cfg.ServerKey),
		TokenTTL:           cfg.TokenTTL,
		CORSOrigin:         cfg.CORSOrigin,
	})
	if err := apiService.Start(ctx); err != nil {
		log.Fatalf("failed to start API service: %v", err)
	}
	defer apiService.Stop()

	// block until interrupted
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Infow("shutting down", "signal", sig.String())
}
