// Package config loads the coordinator configuration from command line flags
// and environment variables. Every flag maps to an environment variable with
// the same name in upper snake case (e.g. --voting-contract-address to
// VOTING_CONTRACT_ADDRESS).
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds the full coordinator configuration.
type Config struct {
	Chain              string
	RPCURL             []string
	VotingContract     string
	MembershipContract string
	// SigningKey is the hex ECDSA key used to sign registry transactions.
	SigningKey string
	// ServerKey signs login nonces and bearer tokens. It is used as raw
	// bytes, not hex-decoded.
	ServerKey     string
	TokenTTL      time.Duration
	PollInterval  time.Duration
	MaxWindow     uint64
	Confirmations uint64
	DBPath        string
	CORSOrigin    string
	ListenHost    string
	ListenPort    int
	LogLevel      string
	LogOutput     string
}

// New parses flags and environment and returns the validated configuration.
func New() (*Config, error) {
	pflag.String("chain", "sepolia", "name of the target network")
	pflag.StringSlice("rpc-url", nil, "web3 rpc endpoint(s), comma separated")
	pflag.String("voting-contract-address", "", "address of the Voting contract")
	pflag.String("membership-contract-address", "", "address of the Membership Registry contract")
	pflag.String("signing-key", "", "hex private key used to sign registry transactions")
	pflag.String("server-key", "", "secret string used to sign nonces and bearer tokens (32+ bytes)")
	pflag.Duration("token-ttl", 7*24*time.Hour, "bearer token lifetime")
	pflag.Duration("poll-interval", 4*time.Second, "chain tail polling interval")
	pflag.Uint64("max-window", 2000, "maximum blocks scanned per tail pass")
	pflag.Uint64("confirmations", 1, "blocks subtracted from the chain head before tailing")
	pflag.String("db-path", "votara.db", "path of the sqlite database file")
	pflag.String("cors-origin", "*", "allowed CORS origin")
	pflag.String("listen-host", "0.0.0.0", "API listen host")
	pflag.Int("listen-port", 8080, "API listen port")
	pflag.String("log-level", "info", "log level (debug, info, warn, error)")
	pflag.String("log-output", "stdout", "log output (stdout, stderr or file path)")
	pflag.Parse()

	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	if err := viper.BindPFlags(pflag.CommandLine); err != nil {
		return nil, fmt.Errorf("cannot bind flags: %w", err)
	}

	cfg := &Config{
		Chain:              viper.GetString("chain"),
		RPCURL:             viper.GetStringSlice("rpc-url"),
		VotingContract:     viper.GetString("voting-contract-address"),
		MembershipContract: viper.GetString("membership-contract-address"),
		SigningKey:         viper.GetString("signing-key"),
		ServerKey:          viper.GetString("server-key"),
		TokenTTL:           viper.GetDuration("token-ttl"),
		PollInterval:       viper.GetDuration("poll-interval"),
		MaxWindow:          viper.GetUint64("max-window"),
		Confirmations:      viper.GetUint64("confirmations"),
		DBPath:             viper.GetString("db-path"),
		CORSOrigin:         viper.GetString("cors-origin"),
		ListenHost:         viper.GetString("listen-host"),
		ListenPort:         viper.GetInt("listen-port"),
		LogLevel:           viper.GetString("log-level"),
		LogOutput:          viper.GetString("log-output"),
	}
	return cfg, cfg.Validate()
}

// Validate checks the required fields are present and plausible.
func (c *Config) Validate() error {
	if len(c.RPCURL) == 0 {
		return fmt.Errorf("rpc-url is required")
	}
	if c.VotingContract == "" {
		return fmt.Errorf("voting-contract-address is required")
	}
	if c.MembershipContract == "" {
		return fmt.Errorf("membership-contract-address is required")
	}
	if c.SigningKey == "" {
		return fmt.Errorf("signing-key is required")
	}
	if len(c.ServerKey) < 32 {
		return fmt.Errorf("server-key must be at least 32 bytes")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll-interval must be positive")
	}
	if c.MaxWindow == 0 {
		return fmt.Errorf("max-window must be positive")
	}
	return nil
}
