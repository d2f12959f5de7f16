package api

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/votara/votara-coordinator/log"
	stg "github.com/votara/votara-coordinator/storage"
	"github.com/votara/votara-coordinator/storage/roster"
)

// ChainService defines the chain operations the handlers need. It is
// implemented by web3.Contracts and by MockChainService in tests.
type ChainService interface {
	CreateGroup(ctx context.Context) (*big.Int, common.Hash, error)
	AddMembers(ctx context.Context, groupID *big.Int, commitments []*big.Int) (common.Hash, error)
	MerkleTreeRoot(ctx context.Context, groupID *big.Int) (*big.Int, error)
	MerkleTreeDepth(ctx context.Context, groupID *big.Int) (*big.Int, error)
	MerkleTreeSize(ctx context.Context, groupID *big.Int) (*big.Int, error)
	CurrentBlock(ctx context.Context) (uint64, error)
	AccountAddress() common.Address
}

// APIConfig type represents the configuration for the API HTTP server.
type APIConfig struct {
	Host               string
	Port               int
	Storage            *stg.Storage
	Chain              ChainService
	ChainID            uint64
	VotingContract     string
	MembershipContract string
	// ServerKey signs nonce envelopes and bearer tokens.
	ServerKey  []byte
	TokenTTL   time.Duration
	CORSOrigin string
}

// API type represents the API HTTP server with bearer authentication.
type API struct {
	router     *chi.Mux
	storage    *stg.Storage
	chain      ChainService
	chainID    uint64
	votingAddr string
	registry   string
	mirror     *roster.Mirror
	serverKey  []byte
	tokenTTL   time.Duration
	corsOrigin string
}

// New creates a new API instance with the given configuration and starts the
// HTTP server.
func New(conf *APIConfig) (*API, error) {
	if conf == nil {
		return nil, fmt.Errorf("missing API configuration")
	}
	if conf.Storage == nil {
		return nil, fmt.Errorf("missing storage instance")
	}
	if len(conf.ServerKey) < 32 {
		return nil, fmt.Errorf("server key must be at least 32 bytes")
	}
	tokenTTL := conf.TokenTTL
	if tokenTTL <= 0 {
		tokenTTL = 7 * 24 * time.Hour
	}
	corsOrigin := conf.CORSOrigin
	if corsOrigin == "" {
		corsOrigin = "*"
	}
	a := &API{
		storage:    conf.Storage,
		chain:      conf.Chain,
		chainID:    conf.ChainID,
		votingAddr: conf.VotingContract,
		registry:   conf.MembershipContract,
		mirror:     roster.NewMirror(),
		serverKey:  conf.ServerKey,
		tokenTTL:   tokenTTL,
		corsOrigin: corsOrigin,
	}

	a.initRouter()
	go func() {
		log.Infow("Starting API server", "host", conf.Host, "port", conf.Port)
		if err := http.ListenAndServe(fmt.Sprintf("%s:%d", conf.Host, conf.Port), a.router); err != nil {
			log.Fatalf("failed to start the API server: %v", err)
		}
	}()
	return a, nil
}

// Router returns the chi router for testing purposes
func (a *API) Router() *chi.Mux {
	return a.router
}

// registerHandlers registers all the API handlers.
func (a *API) registerHandlers() {
	log.Infow("register handler", "endpoint", PingEndpoint, "method", "GET")
	a.router.Get(PingEndpoint, func(w http.ResponseWriter, r *http.Request) {
		httpWriteOK(w)
	})
	log.Infow("register handler", "endpoint", InfoEndpoint, "method", "GET")
	a.router.Get(InfoEndpoint, a.info)
	log.Infow("register handler", "endpoint", AuthNonceEndpoint, "method", "GET")
	a.router.Get(AuthNonceEndpoint, a.authNonce)
	log.Infow("register handler", "endpoint", AuthVerifyEndpoint, "method", "POST")
	a.router.Post(AuthVerifyEndpoint, a.authVerify)
	log.Infow("register handler", "endpoint", PollsEndpoint, "method", "GET")
	a.router.Get(PollsEndpoint, a.listPolls)
	log.Infow("register handler", "endpoint", PollEndpoint, "method", "GET")
	a.router.Get(PollEndpoint, a.getPoll)
	log.Infow("register handler", "endpoint", PollResultsEndpoint, "method", "GET")
	a.router.Get(PollResultsEndpoint, a.pollResults)
	log.Infow("register handler", "endpoint", PollGroupMembersEndpoint, "method", "GET")
	a.router.Get(PollGroupMembersEndpoint, a.groupMembers)

	// mutations require a bearer token
	a.router.Group(func(r chi.Router) {
		r.Use(a.requireAuth)
		log.Infow("register handler", "endpoint", PollsEndpoint, "method", "POST")
		r.Post(PollsEndpoint, a.createPoll)
		log.Infow("register handler", "endpoint", PollEndpoint, "method", "PUT")
		r.Put(PollEndpoint, a.updatePoll)
		log.Infow("register handler", "endpoint", PollCreateGroupEndpoint, "method", "POST")
		r.Post(PollCreateGroupEndpoint, a.createGroup)
	})
}

// initRouter creates the router with all the routes and middleware.
func (a *API) initRouter() {
	// Create the router with a basic middleware stack
	a.router = chi.NewRouter()
	a.router.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{a.corsOrigin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}).Handler)
	a.router.Use(middleware.Logger)
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Throttle(100))
	a.router.Use(middleware.ThrottleBacklog(5000, 40000, 60*time.Second))
	a.router.Use(middleware.Timeout(45 * time.Second))

	// Register the API handlers
	a.registerHandlers()
}

// info reports chain identity and tail progress.
// GET /info
func (a *API) info(w http.ResponseWriter, r *http.Request) {
	cursor, err := a.storage.Cursor(r.Context())
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	var head uint64
	if a.chain != nil {
		if head, err = a.chain.CurrentBlock(r.Context()); err != nil {
			log.Warnw("failed to read chain head", "error", err)
		}
	}
	httpWriteJSON(w, &InfoResponse{
		ChainID:            a.chainID,
		VotingContract:     a.votingAddr,
		MembershipContract: a.registry,
		TailCursor:         cursor,
		ChainHead:          head,
	})
}
