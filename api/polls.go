package api

import (
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/go-chi/chi/v5"
	"github.com/votara/votara-coordinator/crypto/identity"
	"github.com/votara/votara-coordinator/log"
	"github.com/votara/votara-coordinator/storage"
	"github.com/votara/votara-coordinator/types"
	"github.com/votara/votara-coordinator/util"
)

// pollIDFromURL parses the {pollId} URL parameter as a 32-byte hex id.
func pollIDFromURL(r *http.Request) (types.HexBytes, error) {
	var id types.HexBytes
	if err := id.SetString(chi.URLParam(r, PollURLParam)); err != nil {
		return nil, err
	}
	if len(id) != types.PollIDLen {
		return nil, errors.New("poll id must be 32 bytes")
	}
	return id, nil
}

// createPoll creates a new draft poll
// POST /polls
func (a *API) createPoll(w http.ResponseWriter, r *http.Request) {
	req := &CreatePollRequest{}
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(req); err != nil {
		ErrMalformedBody.Withf("could not decode request body: %v", err).Write(w)
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		ErrInvalidPollFields.With("title is required").Write(w)
		return
	}
	if len(req.Options) < types.MinPollOptions || len(req.Options) > types.MaxPollOptions {
		ErrInvalidPollFields.Withf("options must be between %d and %d, got %d",
			types.MinPollOptions, types.MaxPollOptions, len(req.Options)).Write(w)
		return
	}
	if req.StartTime >= req.EndTime {
		ErrInvalidPollFields.With("startTime must be before endTime").Write(w)
		return
	}
	options := make([]types.PollOption, len(req.Options))
	for i, label := range req.Options {
		if strings.TrimSpace(label) == "" {
			ErrInvalidPollFields.Withf("option %d has an empty label", i).Write(w)
			return
		}
		options[i] = types.PollOption{ID: uint8(i), Label: label}
	}

	// content-addressed id: keccak256 over fresh randomness
	seed := util.Random32()
	poll := &types.Poll{
		ID:             ethcrypto.Keccak256(seed[:]),
		Title:          req.Title,
		Description:    req.Description,
		Options:        options,
		StartTime:      time.Unix(req.StartTime, 0).UTC(),
		EndTime:        time.Unix(req.EndTime, 0).UTC(),
		CreatorAddress: loggedAddress(r),
	}
	if err := a.storage.InsertDraftPoll(r.Context(), poll); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			ErrPollConflict.WithErr(err).Write(w)
			return
		}
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	created, err := a.storage.GetPoll(r.Context(), poll.ID)
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	log.Infow("new poll draft", "pollId", poll.ID.String(), "creator", poll.CreatorAddress)
	httpWriteJSON(w, created)
}

// listPolls returns a paginated poll list
// GET /polls?page&limit&status&creator
func (a *API) listPolls(w http.ResponseWriter, r *http.Request) {
	filter := storage.ListFilter{
		Creator: r.URL.Query().Get("creator"),
	}
	if s := r.URL.Query().Get("status"); s != "" {
		status := types.PollStatus(s)
		if !status.Valid() {
			ErrInvalidPollFields.Withf("unknown status %q", s).Write(w)
			return
		}
		filter.Status = status
	}
	if p := r.URL.Query().Get("page"); p != "" {
		page, err := strconv.Atoi(p)
		if err != nil || page < 1 {
			ErrInvalidPollFields.Withf("invalid page %q", p).Write(w)
			return
		}
		filter.Page = page
	}
	if l := r.URL.Query().Get("limit"); l != "" {
		limit, err := strconv.Atoi(l)
		if err != nil || limit < 1 {
			ErrInvalidPollFields.Withf("invalid limit %q", l).Write(w)
			return
		}
		filter.Limit = limit
	}
	polls, total, err := a.storage.ListPolls(r.Context(), filter)
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit <= 0 || filter.Limit > types.MaxPageLimit {
		filter.Limit = types.MaxPageLimit
	}
	httpWriteList(w, polls, &Pagination{
		Page:  filter.Page,
		Limit: filter.Limit,
		Total: total,
	})
}

// getPoll returns a single poll
// GET /polls/{pollId}
func (a *API) getPoll(w http.ResponseWriter, r *http.Request) {
	id, err := pollIDFromURL(r)
	if err != nil {
		ErrMalformedPollID.WithErr(err).Write(w)
		return
	}
	poll, err := a.storage.GetPoll(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		ErrPollNotFound.Write(w)
		return
	}
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	httpWriteJSON(w, poll)
}

// updatePoll updates draft metadata, creator only
// PUT /polls/{pollId}
func (a *API) updatePoll(w http.ResponseWriter, r *http.Request) {
	id, err := pollIDFromURL(r)
	if err != nil {
		ErrMalformedPollID.WithErr(err).Write(w)
		return
	}
	req := &UpdatePollRequest{}
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(req); err != nil {
		ErrMalformedBody.Withf("could not decode request body: %v", err).Write(w)
		return
	}
	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		ErrInvalidPollFields.With("title cannot be empty").Write(w)
		return
	}
	err = a.storage.UpdateMetadata(r.Context(), id, loggedAddress(r), req.Title, req.Description)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		ErrPollNotFound.Write(w)
		return
	case errors.Is(err, storage.ErrNotCreator):
		ErrNotPollCreator.Write(w)
		return
	case errors.Is(err, storage.ErrWrongStatus):
		ErrPollConflict.With("poll is no longer a draft").Write(w)
		return
	case err != nil:
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	poll, err := a.storage.GetPoll(r.Context(), id)
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	httpWriteJSON(w, poll)
}

// createGroup enrolls the eligible voters on chain and pins the roster
// POST /polls/{pollId}/create-group
func (a *API) createGroup(w http.ResponseWriter, r *http.Request) {
	id, err := pollIDFromURL(r)
	if err != nil {
		ErrMalformedPollID.WithErr(err).Write(w)
		return
	}
	req := &CreateGroupRequest{}
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(req); err != nil {
		ErrMalformedBody.Withf("could not decode request body: %v", err).Write(w)
		return
	}
	if len(req.EligibleAddresses) == 0 {
		ErrInvalidPollFields.With("eligibleAddresses is empty").Write(w)
		return
	}
	poll, err := a.storage.GetPoll(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		ErrPollNotFound.Write(w)
		return
	}
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	if poll.CreatorAddress != loggedAddress(r) {
		ErrNotPollCreator.Write(w)
		return
	}
	if poll.Status != types.PollStatusDraft || len(poll.Roster) > 0 {
		ErrPollConflict.With("poll already has a group").Write(w)
		return
	}

	// project addresses to field commitments; raw commitments pass through
	commitments := make([]*big.Int, len(req.EligibleAddresses))
	for i, entry := range req.EligibleAddresses {
		c, err := identity.ParseCommitment(entry)
		if err != nil {
			ErrMalformedAddress.Withf("entry %d: %v", i, err).Write(w)
			return
		}
		commitments[i] = c
	}

	groupID, _, err := a.chain.CreateGroup(r.Context())
	if err != nil {
		ErrChainOperationFailed.Withf("createGroup: %v", err).Write(w)
		return
	}
	txHash, err := a.chain.AddMembers(r.Context(), groupID, commitments)
	if err != nil {
		// the group stays orphan; the poll stays draft, retry allowed
		ErrChainOperationFailed.Withf("addMembers on group %s: %v", groupID, err).Write(w)
		return
	}

	roster := make([]*types.BigInt, len(commitments))
	for i, c := range commitments {
		roster[i] = (*types.BigInt)(c)
	}
	if err := a.storage.SetRoster(r.Context(), id, roster); err != nil {
		if errors.Is(err, storage.ErrRosterAlreadySet) || errors.Is(err, storage.ErrWrongStatus) {
			ErrPollConflict.WithErr(err).Write(w)
			return
		}
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	if err := a.mirror.Set(id, roster); err != nil {
		log.Warnw("failed to mirror roster", "pollId", id.String(), "error", err)
	}
	log.Infow("group created", "pollId", id.String(), "groupId", groupID.String(),
		"members", len(commitments), "tx", txHash.Hex())
	httpWriteJSON(w, &CreateGroupResponse{
		GroupID: (*types.BigInt)(groupID),
		TxHash:  txHash.Bytes(),
		Count:   len(commitments),
	})
}

// pollResults returns the per-option tallies
// GET /polls/{pollId}/results
func (a *API) pollResults(w http.ResponseWriter, r *http.Request) {
	id, err := pollIDFromURL(r)
	if err != nil {
		ErrMalformedPollID.WithErr(err).Write(w)
		return
	}
	poll, err := a.storage.GetPoll(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		ErrPollNotFound.Write(w)
		return
	}
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	results, total, err := a.storage.Results(r.Context(), id)
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	httpWriteJSON(w, &ResultsResponse{
		Poll:       poll,
		Results:    results,
		TotalVotes: total,
	})
}

// groupMembers returns the roster for client-side proof generation
// GET /polls/{pollId}/group-members
func (a *API) groupMembers(w http.ResponseWriter, r *http.Request) {
	id, err := pollIDFromURL(r)
	if err != nil {
		ErrMalformedPollID.WithErr(err).Write(w)
		return
	}
	poll, err := a.storage.GetPoll(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		ErrPollNotFound.Write(w)
		return
	}
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	resp := &GroupMembersResponse{Commitments: poll.Roster}

	// rebuild the mirror lazily after a restart
	if len(poll.Roster) > 0 && !a.mirror.Has(id) {
		if err := a.mirror.Set(id, poll.Roster); err != nil {
			log.Warnw("failed to mirror roster", "pollId", id.String(), "error", err)
		}
	}
	if root, err := a.mirror.Root(id); err == nil {
		resp.MirrorRoot = (*types.BigInt)(root)
	}
	if a.chain != nil && poll.GroupID != nil {
		gid := poll.GroupID.MathBigInt()
		if root, err := a.chain.MerkleTreeRoot(r.Context(), gid); err == nil {
			resp.OnchainRoot = (*types.BigInt)(root)
		} else {
			log.Warnw("failed to read on-chain root", "pollId", id.String(), "error", err)
		}
		if depth, err := a.chain.MerkleTreeDepth(r.Context(), gid); err == nil {
			resp.TreeDepth = (*types.BigInt)(depth)
		}
		if size, err := a.chain.MerkleTreeSize(r.Context(), gid); err == nil {
			resp.TreeSize = (*types.BigInt)(size)
		}
	}
	httpWriteJSON(w, resp)
}
