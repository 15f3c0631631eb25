package interfaces

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// GrantReceipt reports a confirmed voting-right grant transaction.
type GrantReceipt struct {
	TxHash      common.Hash
	BlockNumber uint64
	GasUsed     uint64
}

// ProposalState is the lifecycle stage reported by the governance contract.
type ProposalState uint8

const (
	ProposalPending ProposalState = iota
	ProposalActive
	ProposalSucceeded
	ProposalDefeated
	ProposalExecuted
	ProposalCancelled
)

var proposalStateLabels = [...]string{
	"Pending", "Active", "Succeeded", "Defeated", "Executed", "Cancelled",
}

func (s ProposalState) String() string {
	if int(s) >= len(proposalStateLabels) {
		return "Unknown"
	}
	return proposalStateLabels[s]
}

// ProposalSnapshot is a point-in-time read of a proposal's derived state,
// pulled directly from the ledger independently of the event stream.
type ProposalSnapshot struct {
	ID           uint64         `json:"id"`
	Proposer     common.Address `json:"proposer"`
	Description  string         `json:"description"`
	Recipient    common.Address `json:"recipient"`
	Amount       *big.Int       `json:"amount"`
	ForVotes     *big.Int       `json:"for_votes"`
	AgainstVotes *big.Int       `json:"against_votes"`
	StartTime    time.Time      `json:"start_time"`
	EndTime      time.Time      `json:"end_time"`
	Executed     bool           `json:"executed"`
	Cancelled    bool           `json:"cancelled"`
	State        ProposalState  `json:"-"`
}

// LedgerEventKind tags a normalized governance event.
type LedgerEventKind string

const (
	LedgerEventProposalCreated LedgerEventKind = "proposal_created"
	LedgerEventVoteCast        LedgerEventKind = "vote_cast"
)

// LedgerEvent is the normalized representation of a ledger-emitted
// governance event. Records are append-only in ledger emission order; the
// relay never reorders or drops an observed record, but observation order is
// only as reliable as the upstream provider's delivery.
type LedgerEvent struct {
	Kind        LedgerEventKind `json:"kind"`
	ProposalID  uint64          `json:"proposal_id"`
	Actor       string          `json:"actor"`
	Description string          `json:"description,omitempty"`
	Recipient   string          `json:"recipient,omitempty"`
	Amount      string          `json:"amount,omitempty"`
	Support     *bool           `json:"support,omitempty"`
	Weight      string          `json:"weight,omitempty"`
	TxHash      string          `json:"tx_hash"`
	ObservedAt  time.Time       `json:"observed_at"`
}

// GovernanceLedger is the oracle's view of the on-chain governance contract.
// The contract's internal mechanics (quorum arithmetic, token-weighted
// tallying, treasury execution) are not this oracle's concern; it only
// consumes this query/command surface.
type GovernanceLedger interface {
	// GrantVotingRight submits the privileged transaction naming the target
	// address as an authorized voter and blocks until it is mined.
	// Contract-side rejection surfaces as *LedgerRejectedError; transport
	// and timeout failures as *ProviderError. The bridge never resubmits on
	// its own: a second submission must be an explicit new call.
	GrantVotingRight(ctx context.Context, voter common.Address) (*GrantReceipt, error)

	// Proposal reads a proposal's current tallies and lifecycle state.
	Proposal(ctx context.Context, id uint64) (ProposalSnapshot, error)

	// State reads only the lifecycle stage of a proposal.
	State(ctx context.Context, id uint64) (ProposalState, error)

	// IsVerified reports whether an address already holds voting rights.
	IsVerified(ctx context.Context, voter common.Address) (bool, error)

	// HasVoted reports whether the address has voted on the proposal.
	HasVoted(ctx context.Context, id uint64, voter common.Address) (bool, error)

	// NextProposalID reads the id the next proposal will be assigned.
	NextProposalID(ctx context.Context) (uint64, error)

	// WatchGovernance subscribes to the contract's governance event topics,
	// delivering raw logs onto sink until the context is cancelled.
	WatchGovernance(ctx context.Context, sink chan<- types.Log) (ethereum.Subscription, error)

	// ParseLog decodes a raw contract log into a normalized event record
	// with the actor address unredacted and ObservedAt unset.
	ParseLog(log types.Log) (LedgerEvent, error)
}
