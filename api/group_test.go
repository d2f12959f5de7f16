package api

import (
	"context"
	"net/http"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/votara/votara-coordinator/storage"
	"github.com/votara/votara-coordinator/types"
	"github.com/votara/votara-coordinator/util"
)

func createDraft(t *testing.T, a *API, token string) *types.Poll {
	t.Helper()
	var poll types.Poll
	code := doJSON(t, a, http.MethodPost, PollsEndpoint, token, validCreateRequest(), &poll)
	qt.Assert(t, code, qt.Equals, http.StatusOK)
	return &poll
}

func TestCreateGroup(t *testing.T) {
	c := qt.New(t)
	a, chain := newTestAPI(t)
	token, _ := login(t, a)
	poll := createDraft(t, a, token)

	body := &CreateGroupRequest{EligibleAddresses: []string{
		"0x1111111111111111111111111111111111111111",
		"0x2222222222222222222222222222222222222222",
		"12345678901234567890", // a raw commitment passes through
	}}
	var resp CreateGroupResponse
	code := doJSON(t, a, http.MethodPost,
		PollsEndpoint+"/"+poll.ID.String()+"/create-group", token, body, &resp)
	c.Assert(code, qt.Equals, http.StatusOK)
	c.Assert(resp.GroupID.String(), qt.Equals, "42")
	c.Assert(resp.Count, qt.Equals, 3)
	c.Assert(chain.groups["42"], qt.HasLen, 3)

	// the roster is pinned in the store
	stored, err := a.storage.GetPoll(context.Background(), poll.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(stored.Roster, qt.HasLen, 3)
	c.Assert(stored.Status, qt.Equals, types.PollStatusDraft)

	// a second group creation conflicts
	code = doJSON(t, a, http.MethodPost,
		PollsEndpoint+"/"+poll.ID.String()+"/create-group", token, body, nil)
	c.Assert(code, qt.Equals, http.StatusConflict)
}

func TestCreateGroupChainFailure(t *testing.T) {
	c := qt.New(t)
	a, chain := newTestAPI(t)
	token, _ := login(t, a)
	poll := createDraft(t, a, token)

	chain.failAdd = true
	body := &CreateGroupRequest{EligibleAddresses: []string{
		"0x1111111111111111111111111111111111111111",
	}}
	code := doJSON(t, a, http.MethodPost,
		PollsEndpoint+"/"+poll.ID.String()+"/create-group", token, body, nil)
	c.Assert(code, qt.Equals, http.StatusBadGateway)

	// the poll stays draft with an empty roster, retry allowed
	stored, err := a.storage.GetPoll(context.Background(), poll.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(stored.Status, qt.Equals, types.PollStatusDraft)
	c.Assert(stored.Roster, qt.HasLen, 0)

	chain.failAdd = false
	var resp CreateGroupResponse
	code = doJSON(t, a, http.MethodPost,
		PollsEndpoint+"/"+poll.ID.String()+"/create-group", token, body, &resp)
	c.Assert(code, qt.Equals, http.StatusOK)
	// the orphan group 42 is skipped
	c.Assert(resp.GroupID.String(), qt.Equals, "43")
}

func TestCreateGroupScope(t *testing.T) {
	c := qt.New(t)
	a, _ := newTestAPI(t)
	token, _ := login(t, a)
	poll := createDraft(t, a, token)

	body := &CreateGroupRequest{EligibleAddresses: []string{
		"0x1111111111111111111111111111111111111111",
	}}

	// only the creator may create the group
	otherToken, _ := login(t, a)
	code := doJSON(t, a, http.MethodPost,
		PollsEndpoint+"/"+poll.ID.String()+"/create-group", otherToken, body, nil)
	c.Assert(code, qt.Equals, http.StatusForbidden)

	// a malformed entry is refused before any chain write
	bad := &CreateGroupRequest{EligibleAddresses: []string{"not-an-address"}}
	code = doJSON(t, a, http.MethodPost,
		PollsEndpoint+"/"+poll.ID.String()+"/create-group", token, bad, nil)
	c.Assert(code, qt.Equals, http.StatusBadRequest)
}

func TestResultsAndGroupMembers(t *testing.T) {
	c := qt.New(t)
	a, _ := newTestAPI(t)
	token, _ := login(t, a)
	poll := createDraft(t, a, token)
	ctx := context.Background()

	body := &CreateGroupRequest{EligibleAddresses: []string{
		"0x1111111111111111111111111111111111111111",
		"0x2222222222222222222222222222222222222222",
	}}
	var groupResp CreateGroupResponse
	code := doJSON(t, a, http.MethodPost,
		PollsEndpoint+"/"+poll.ID.String()+"/create-group", token, body, &groupResp)
	c.Assert(code, qt.Equals, http.StatusOK)

	// the tail activates the poll and mirrors two votes
	outcome, err := a.storage.ApplyActivation(ctx, poll.ID,
		groupResp.GroupID, util.RandomBytes(32), 10)
	c.Assert(err, qt.IsNil)
	c.Assert(outcome, qt.Equals, storage.ActivationApplied)
	for i, optIdx := range []uint8{1, 1} {
		_, err := a.storage.UpsertVote(ctx, &types.Vote{
			PollID:        poll.ID,
			OptionIndex:   optIdx,
			NullifierHash: new(types.BigInt).SetUint64(uint64(0xA0 + i)),
			BlockNumber:   uint64(11 + i),
			TxHash:        util.RandomBytes(32),
		})
		c.Assert(err, qt.IsNil)
	}

	var results ResultsResponse
	code = doJSON(t, a, http.MethodGet,
		PollsEndpoint+"/"+poll.ID.String()+"/results", "", nil, &results)
	c.Assert(code, qt.Equals, http.StatusOK)
	c.Assert(results.TotalVotes, qt.Equals, uint64(2))
	c.Assert(results.Results, qt.HasLen, 2)
	c.Assert(results.Results[0].Votes, qt.Equals, uint64(0))
	c.Assert(results.Results[1].Votes, qt.Equals, uint64(2))
	c.Assert(results.Poll.Status, qt.Equals, types.PollStatusActive)

	var members GroupMembersResponse
	code = doJSON(t, a, http.MethodGet,
		PollsEndpoint+"/"+poll.ID.String()+"/group-members", "", nil, &members)
	c.Assert(code, qt.Equals, http.StatusOK)
	c.Assert(members.Commitments, qt.HasLen, 2)
	c.Assert(members.MirrorRoot, qt.Not(qt.IsNil))
	c.Assert(members.OnchainRoot.String(), qt.Equals, "2748")
	c.Assert(members.TreeSize.String(), qt.Equals, "2")
}
