package web3

// Hand-maintained ABI fragments for the deployed Voting and Membership
// Registry contracts. Only the functions and events the coordinator consumes
// are declared; the layouts match the on-chain interfaces exactly.

const votingABIJSON = `[
	{
		"type": "event",
		"name": "PollCreated",
		"inputs": [
			{"name": "pollId", "type": "bytes32", "indexed": true},
			{"name": "creator", "type": "address", "indexed": true}
		]
	},
	{
		"type": "event",
		"name": "PollActivated",
		"inputs": [
			{"name": "pollId", "type": "bytes32", "indexed": true},
			{"name": "groupId", "type": "uint256", "indexed": false}
		]
	},
	{
		"type": "event",
		"name": "VoteCast",
		"inputs": [
			{"name": "pollId", "type": "bytes32", "indexed": true},
			{"name": "optionIndex", "type": "uint8", "indexed": false},
			{"name": "nullifierHash", "type": "uint256", "indexed": false}
		]
	},
	{
		"type": "function",
		"name": "pollExists",
		"stateMutability": "view",
		"inputs": [{"name": "pollId", "type": "bytes32"}],
		"outputs": [{"name": "", "type": "bool"}]
	},
	{
		"type": "function",
		"name": "groupIdOf",
		"stateMutability": "view",
		"inputs": [{"name": "pollId", "type": "bytes32"}],
		"outputs": [{"name": "", "type": "uint256"}]
	},
	{
		"type": "function",
		"name": "optionVoteCount",
		"stateMutability": "view",
		"inputs": [
			{"name": "pollId", "type": "bytes32"},
			{"name": "optionIndex", "type": "uint8"}
		],
		"outputs": [{"name": "", "type": "uint256"}]
	},
	{
		"type": "function",
		"name": "totalVotes",
		"stateMutability": "view",
		"inputs": [{"name": "pollId", "type": "bytes32"}],
		"outputs": [{"name": "", "type": "uint256"}]
	}
]`

const registryABIJSON = `[
	{
		"type": "event",
		"name": "GroupCreated",
		"inputs": [{"name": "groupId", "type": "uint256", "indexed": true}]
	},
	{
		"type": "function",
		"name": "createGroup",
		"stateMutability": "nonpayable",
		"inputs": [],
		"outputs": [{"name": "", "type": "uint256"}]
	},
	{
		"type": "function",
		"name": "addMembers",
		"stateMutability": "nonpayable",
		"inputs": [
			{"name": "groupId", "type": "uint256"},
			{"name": "commitments", "type": "uint256[]"}
		],
		"outputs": []
	},
	{
		"type": "function",
		"name": "getMerkleTreeRoot",
		"stateMutability": "view",
		"inputs": [{"name": "groupId", "type": "uint256"}],
		"outputs": [{"name": "", "type": "uint256"}]
	},
	{
		"type": "function",
		"name": "getMerkleTreeDepth",
		"stateMutability": "view",
		"inputs": [{"name": "groupId", "type": "uint256"}],
		"outputs": [{"name": "", "type": "uint256"}]
	},
	{
		"type": "function",
		"name": "getMerkleTreeSize",
		"stateMutability": "view",
		"inputs": [{"name": "groupId", "type": "uint256"}],
		"outputs": [{"name": "", "type": "uint256"}]
	}
]`
