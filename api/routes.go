package api

const (
	// PingEndpoint is the endpoint for checking the API status
	PingEndpoint = "/ping"
	// InfoEndpoint reports chain and tail status
	InfoEndpoint = "/info"
	// AuthNonceEndpoint issues a signed login nonce
	AuthNonceEndpoint = "/auth/nonce"
	// AuthVerifyEndpoint exchanges a signed login message for a bearer token
	AuthVerifyEndpoint = "/auth/verify"
	// PollsEndpoint lists polls and creates drafts
	PollsEndpoint = "/polls"
	// PollURLParam is the chi URL parameter carrying the poll id
	PollURLParam = "pollId"
	// PollEndpoint addresses a single poll
	PollEndpoint = "/polls/{" + PollURLParam + "}"
	// PollCreateGroupEndpoint creates the membership group of a poll
	PollCreateGroupEndpoint = PollEndpoint + "/create-group"
	// PollResultsEndpoint returns the per-option tallies of a poll
	PollResultsEndpoint = PollEndpoint + "/results"
	// PollGroupMembersEndpoint returns the roster for proof generation
	PollGroupMembersEndpoint = PollEndpoint + "/group-members"
)
