package ledger

// governanceABI is the fragment of the governance contract's interface the
// oracle consumes: the privileged voter authorization call, the read-only
// proposal queries, and the two governance events it relays.
const governanceABI = `[
  {
    "type": "function",
    "name": "verifyVoter",
    "stateMutability": "nonpayable",
    "inputs": [{"name": "_voter", "type": "address"}],
    "outputs": []
  },
  {
    "type": "function",
    "name": "getProposal",
    "stateMutability": "view",
    "inputs": [{"name": "id", "type": "uint256"}],
    "outputs": [
      {"name": "proposer", "type": "address"},
      {"name": "description", "type": "string"},
      {"name": "recipient", "type": "address"},
      {"name": "amount", "type": "uint256"},
      {"name": "forVotes", "type": "uint256"},
      {"name": "againstVotes", "type": "uint256"},
      {"name": "startTime", "type": "uint256"},
      {"name": "endTime", "type": "uint256"},
      {"name": "executed", "type": "bool"},
      {"name": "cancelled", "type": "bool"}
    ]
  },
  {
    "type": "function",
    "name": "state",
    "stateMutability": "view",
    "inputs": [{"name": "id", "type": "uint256"}],
    "outputs": [{"name": "", "type": "uint8"}]
  },
  {
    "type": "function",
    "name": "isVerified",
    "stateMutability": "view",
    "inputs": [{"name": "", "type": "address"}],
    "outputs": [{"name": "", "type": "bool"}]
  },
  {
    "type": "function",
    "name": "hasVoted",
    "stateMutability": "view",
    "inputs": [
      {"name": "id", "type": "uint256"},
      {"name": "account", "type": "address"}
    ],
    "outputs": [{"name": "", "type": "bool"}]
  },
  {
    "type": "function",
    "name": "nextProposalId",
    "stateMutability": "view",
    "inputs": [],
    "outputs": [{"name": "", "type": "uint256"}]
  },
  {
    "type": "event",
    "name": "ProposalCreated",
    "inputs": [
      {"name": "id", "type": "uint256", "indexed": true},
      {"name": "proposer", "type": "address", "indexed": true},
      {"name": "description", "type": "string", "indexed": false},
      {"name": "recipient", "type": "address", "indexed": false},
      {"name": "amount", "type": "uint256", "indexed": false}
    ]
  },
  {
    "type": "event",
    "name": "Voted",
    "inputs": [
      {"name": "id", "type": "uint256", "indexed": true},
      {"name": "voter", "type": "address", "indexed": true},
      {"name": "support", "type": "bool", "indexed": false},
      {"name": "weight", "type": "uint256", "indexed": false}
    ]
  }
]`
