package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	qt "github.com/frankban/quicktest"
	"github.com/votara/votara-coordinator/crypto/ethereum"
	"github.com/votara/votara-coordinator/storage"
	"github.com/votara/votara-coordinator/storage/roster"
	"github.com/votara/votara-coordinator/types"
)

// MockChainService implements ChainService over in-memory counters.
type MockChainService struct {
	mu          sync.Mutex
	nextGroupID int64
	groups      map[string][]*big.Int
	failAdd     bool
}

func NewMockChainService() *MockChainService {
	return &MockChainService{nextGroupID: 42, groups: map[string][]*big.Int{}}
}

func (m *MockChainService) CreateGroup(ctx context.Context) (*big.Int, common.Hash, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	groupID := big.NewInt(m.nextGroupID)
	m.nextGroupID++
	return groupID, common.HexToHash("0xc0ffee"), nil
}

func (m *MockChainService) AddMembers(ctx context.Context, groupID *big.Int, commitments []*big.Int) (common.Hash, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAdd {
		return common.Hash{}, fmt.Errorf("insufficient funds for gas")
	}
	m.groups[groupID.String()] = commitments
	return common.HexToHash("0xbeef"), nil
}

func (m *MockChainService) MerkleTreeRoot(ctx context.Context, groupID *big.Int) (*big.Int, error) {
	return big.NewInt(0xABC), nil
}

func (m *MockChainService) MerkleTreeDepth(ctx context.Context, groupID *big.Int) (*big.Int, error) {
	return big.NewInt(16), nil
}

func (m *MockChainService) MerkleTreeSize(ctx context.Context, groupID *big.Int) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return big.NewInt(int64(len(m.groups[groupID.String()]))), nil
}

func (m *MockChainService) CurrentBlock(ctx context.Context) (uint64, error) {
	return 100, nil
}

func (m *MockChainService) AccountAddress() common.Address {
	return common.HexToAddress("0x1234567890123456789012345678901234567890")
}

func newTestAPI(t *testing.T) (*API, *MockChainService) {
	t.Helper()
	stg, err := storage.New(filepath.Join(t.TempDir(), "votara.db"))
	qt.Assert(t, err, qt.IsNil)
	t.Cleanup(func() { _ = stg.Close() })
	chain := NewMockChainService()
	a := &API{
		storage:    stg,
		chain:      chain,
		chainID:    1337,
		votingAddr: "0x00000000000000000000000000000000000000aa",
		registry:   "0x00000000000000000000000000000000000000bb",
		mirror:     roster.NewMirror(),
		serverKey:  bytes.Repeat([]byte{7}, 32),
		tokenTTL:   time.Hour,
		corsOrigin: "*",
	}
	a.initRouter()
	return a, chain
}

// doJSON performs a request against the router and decodes the success
// envelope into out, returning the HTTP status code.
func doJSON(t *testing.T, a *API, method, path, token string, body, out any) int {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		qt.Assert(t, err, qt.IsNil)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	if out != nil && rec.Code == http.StatusOK {
		var env struct {
			Success    bool            `json:"success"`
			Data       json.RawMessage `json:"data"`
			Pagination *Pagination     `json:"pagination"`
		}
		qt.Assert(t, json.Unmarshal(rec.Body.Bytes(), &env), qt.IsNil)
		qt.Assert(t, env.Success, qt.IsTrue)
		qt.Assert(t, json.Unmarshal(env.Data, out), qt.IsNil)
	}
	return rec.Code
}

// login runs the nonce/verify flow with a fresh key and returns the bearer
// token and the lowercased address.
func login(t *testing.T, a *API) (string, string) {
	t.Helper()
	c := qt.New(t)
	signer := ethereum.NewSignKeys()
	c.Assert(signer.Generate(), qt.IsNil)

	var nonce NonceResponse
	code := doJSON(t, a, http.MethodGet, AuthNonceEndpoint, "", nil, &nonce)
	c.Assert(code, qt.Equals, http.StatusOK)

	msg := LoginMessage{
		Domain:   loginDomain,
		Address:  signer.AddressString(),
		Nonce:    nonce.Nonce,
		ChainID:  a.chainID,
		IssuedAt: time.Now().Unix(),
	}
	signature, err := signer.SignEthereum(canonicalLoginMessage(&msg))
	c.Assert(err, qt.IsNil)

	var verify VerifyResponse
	code = doJSON(t, a, http.MethodPost, AuthVerifyEndpoint, "", &VerifyRequest{
		Message:     msg,
		Signature:   signature,
		SignedNonce: nonce.SignedNonce,
	}, &verify)
	c.Assert(code, qt.Equals, http.StatusOK)
	c.Assert(verify.Token, qt.Not(qt.Equals), "")
	return verify.Token, verify.Address
}

func TestPing(t *testing.T) {
	c := qt.New(t)
	a, _ := newTestAPI(t)
	code := doJSON(t, a, http.MethodGet, PingEndpoint, "", nil, nil)
	c.Assert(code, qt.Equals, http.StatusOK)
}

func TestAuthFlow(t *testing.T) {
	c := qt.New(t)
	a, _ := newTestAPI(t)

	token, address := login(t, a)
	c.Assert(token, qt.Not(qt.Equals), "")

	// the login upserted the user
	user, err := a.storage.GetUser(context.Background(), address)
	c.Assert(err, qt.IsNil)
	c.Assert(user.Address, qt.Equals, address)

	// a tampered envelope is refused
	var nonce NonceResponse
	code := doJSON(t, a, http.MethodGet, AuthNonceEndpoint, "", nil, &nonce)
	c.Assert(code, qt.Equals, http.StatusOK)
	signer := ethereum.NewSignKeys()
	c.Assert(signer.Generate(), qt.IsNil)
	msg := LoginMessage{
		Domain:   loginDomain,
		Address:  signer.AddressString(),
		Nonce:    nonce.Nonce,
		ChainID:  a.chainID,
		IssuedAt: time.Now().Unix(),
	}
	signature, err := signer.SignEthereum(canonicalLoginMessage(&msg))
	c.Assert(err, qt.IsNil)
	code = doJSON(t, a, http.MethodPost, AuthVerifyEndpoint, "", &VerifyRequest{
		Message:     msg,
		Signature:   signature,
		SignedNonce: nonce.SignedNonce + "x",
	}, nil)
	c.Assert(code, qt.Equals, http.StatusUnauthorized)

	// a signature by a different key is refused
	other := ethereum.NewSignKeys()
	c.Assert(other.Generate(), qt.IsNil)
	badSig, err := other.SignEthereum(canonicalLoginMessage(&msg))
	c.Assert(err, qt.IsNil)
	code = doJSON(t, a, http.MethodPost, AuthVerifyEndpoint, "", &VerifyRequest{
		Message:     msg,
		Signature:   badSig,
		SignedNonce: nonce.SignedNonce,
	}, nil)
	c.Assert(code, qt.Equals, http.StatusUnauthorized)
}

func TestAuthRequired(t *testing.T) {
	c := qt.New(t)
	a, _ := newTestAPI(t)

	code := doJSON(t, a, http.MethodPost, PollsEndpoint, "", &CreatePollRequest{}, nil)
	c.Assert(code, qt.Equals, http.StatusUnauthorized)

	code = doJSON(t, a, http.MethodPost, PollsEndpoint, "not-a-jwt", &CreatePollRequest{}, nil)
	c.Assert(code, qt.Equals, http.StatusUnauthorized)
}

func validCreateRequest() *CreatePollRequest {
	return &CreatePollRequest{
		Title:       "favorite color",
		Description: "pick one",
		Options:     []string{"red", "blue"},
		StartTime:   time.Now().Add(time.Minute).Unix(),
		EndTime:     time.Now().Add(time.Hour).Unix(),
	}
}

func TestCreateAndGetPoll(t *testing.T) {
	c := qt.New(t)
	a, _ := newTestAPI(t)
	token, address := login(t, a)

	var poll types.Poll
	code := doJSON(t, a, http.MethodPost, PollsEndpoint, token, validCreateRequest(), &poll)
	c.Assert(code, qt.Equals, http.StatusOK)
	c.Assert(poll.ID, qt.HasLen, types.PollIDLen)
	c.Assert(poll.Status, qt.Equals, types.PollStatusDraft)
	c.Assert(poll.CreatorAddress, qt.Equals, address)
	c.Assert(poll.Options, qt.HasLen, 2)
	c.Assert(poll.Options[1].ID, qt.Equals, uint8(1))

	var got types.Poll
	code = doJSON(t, a, http.MethodGet, PollsEndpoint+"/"+poll.ID.String(), "", nil, &got)
	c.Assert(code, qt.Equals, http.StatusOK)
	c.Assert(got.Title, qt.Equals, "favorite color")

	// unknown id
	code = doJSON(t, a, http.MethodGet,
		PollsEndpoint+"/0x"+"00000000000000000000000000000000000000000000000000000000000000ff", "", nil, nil)
	c.Assert(code, qt.Equals, http.StatusNotFound)

	// malformed id
	code = doJSON(t, a, http.MethodGet, PollsEndpoint+"/zzz", "", nil, nil)
	c.Assert(code, qt.Equals, http.StatusBadRequest)
}

func TestCreatePollValidation(t *testing.T) {
	c := qt.New(t)
	a, _ := newTestAPI(t)
	token, _ := login(t, a)

	req := validCreateRequest()
	req.Options = []string{"only one"}
	code := doJSON(t, a, http.MethodPost, PollsEndpoint, token, req, nil)
	c.Assert(code, qt.Equals, http.StatusBadRequest)

	// the option count upper bound is inclusive
	labels := make([]string, types.MaxPollOptions+1)
	for i := range labels {
		labels[i] = fmt.Sprintf("option %d", i)
	}
	req = validCreateRequest()
	req.Options = labels[:types.MaxPollOptions]
	var poll types.Poll
	code = doJSON(t, a, http.MethodPost, PollsEndpoint, token, req, &poll)
	c.Assert(code, qt.Equals, http.StatusOK)
	c.Assert(poll.Options, qt.HasLen, types.MaxPollOptions)
	c.Assert(poll.Options[types.MaxPollOptions-1].ID, qt.Equals, uint8(types.MaxPollOptions-1))

	req = validCreateRequest()
	req.Options = labels
	code = doJSON(t, a, http.MethodPost, PollsEndpoint, token, req, nil)
	c.Assert(code, qt.Equals, http.StatusBadRequest)

	req = validCreateRequest()
	req.StartTime, req.EndTime = req.EndTime, req.StartTime
	code = doJSON(t, a, http.MethodPost, PollsEndpoint, token, req, nil)
	c.Assert(code, qt.Equals, http.StatusBadRequest)

	// an instant poll is refused as well
	req = validCreateRequest()
	req.EndTime = req.StartTime
	code = doJSON(t, a, http.MethodPost, PollsEndpoint, token, req, nil)
	c.Assert(code, qt.Equals, http.StatusBadRequest)

	req = validCreateRequest()
	req.Title = "  "
	code = doJSON(t, a, http.MethodPost, PollsEndpoint, token, req, nil)
	c.Assert(code, qt.Equals, http.StatusBadRequest)

	// unknown fields are rejected, not ignored
	raw := map[string]any{"title": "x", "options": []string{"a", "b"},
		"startTime": 1, "endTime": 2, "bogus": true}
	code = doJSON(t, a, http.MethodPost, PollsEndpoint, token, raw, nil)
	c.Assert(code, qt.Equals, http.StatusBadRequest)
}

func TestUpdatePollScope(t *testing.T) {
	c := qt.New(t)
	a, _ := newTestAPI(t)
	token, _ := login(t, a)

	var poll types.Poll
	code := doJSON(t, a, http.MethodPost, PollsEndpoint, token, validCreateRequest(), &poll)
	c.Assert(code, qt.Equals, http.StatusOK)

	title := "renamed"
	var updated types.Poll
	code = doJSON(t, a, http.MethodPut, PollsEndpoint+"/"+poll.ID.String(), token,
		&UpdatePollRequest{Title: &title}, &updated)
	c.Assert(code, qt.Equals, http.StatusOK)
	c.Assert(updated.Title, qt.Equals, "renamed")

	// another user is not the creator
	otherToken, _ := login(t, a)
	hijack := "hijack"
	code = doJSON(t, a, http.MethodPut, PollsEndpoint+"/"+poll.ID.String(), otherToken,
		&UpdatePollRequest{Title: &hijack}, nil)
	c.Assert(code, qt.Equals, http.StatusForbidden)

	var got types.Poll
	code = doJSON(t, a, http.MethodGet, PollsEndpoint+"/"+poll.ID.String(), "", nil, &got)
	c.Assert(code, qt.Equals, http.StatusOK)
	c.Assert(got.Title, qt.Equals, "renamed")
}

func TestListPolls(t *testing.T) {
	c := qt.New(t)
	a, _ := newTestAPI(t)
	token, address := login(t, a)

	for i := 0; i < 3; i++ {
		req := validCreateRequest()
		req.Title = fmt.Sprintf("poll %d", i)
		code := doJSON(t, a, http.MethodPost, PollsEndpoint, token, req, nil)
		c.Assert(code, qt.Equals, http.StatusOK)
	}

	var polls []*types.Poll
	req := httptest.NewRequest(http.MethodGet, PollsEndpoint+"?page=1&limit=2", nil)
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	c.Assert(rec.Code, qt.Equals, http.StatusOK)
	var env struct {
		Success    bool            `json:"success"`
		Data       json.RawMessage `json:"data"`
		Pagination *Pagination     `json:"pagination"`
	}
	c.Assert(json.Unmarshal(rec.Body.Bytes(), &env), qt.IsNil)
	c.Assert(env.Success, qt.IsTrue)
	c.Assert(json.Unmarshal(env.Data, &polls), qt.IsNil)
	c.Assert(polls, qt.HasLen, 2)
	c.Assert(env.Pagination.Total, qt.Equals, 3)

	code := doJSON(t, a, http.MethodGet, PollsEndpoint+"?creator="+address, "", nil, &polls)
	c.Assert(code, qt.Equals, http.StatusOK)
	c.Assert(polls, qt.HasLen, 3)

	code = doJSON(t, a, http.MethodGet, PollsEndpoint+"?status=bogus", "", nil, nil)
	c.Assert(code, qt.Equals, http.StatusBadRequest)
}

func TestInfo(t *testing.T) {
	c := qt.New(t)
	a, _ := newTestAPI(t)

	var info InfoResponse
	code := doJSON(t, a, http.MethodGet, InfoEndpoint, "", nil, &info)
	c.Assert(code, qt.Equals, http.StatusOK)
	c.Assert(info.ChainID, qt.Equals, uint64(1337))
	c.Assert(info.ChainHead, qt.Equals, uint64(100))
	c.Assert(info.TailCursor, qt.Equals, uint64(0))
}
