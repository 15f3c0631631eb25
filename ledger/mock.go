package ledger

import (
	"context"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/mock"

	"github.com/chainballot/voter-oracle/interfaces"
)

// MockGovernanceLedger mocks the interfaces.GovernanceLedger interface.
type MockGovernanceLedger struct {
	mock.Mock
}

// GrantVotingRight mocks the GrantVotingRight method.
func (m *MockGovernanceLedger) GrantVotingRight(ctx context.Context, voter common.Address) (*interfaces.GrantReceipt, error) {
	args := m.Called(ctx, voter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*interfaces.GrantReceipt), args.Error(1)
}

// Proposal mocks the Proposal method.
func (m *MockGovernanceLedger) Proposal(ctx context.Context, id uint64) (interfaces.ProposalSnapshot, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(interfaces.ProposalSnapshot), args.Error(1)
}

// State mocks the State method.
func (m *MockGovernanceLedger) State(ctx context.Context, id uint64) (interfaces.ProposalState, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(interfaces.ProposalState), args.Error(1)
}

// IsVerified mocks the IsVerified method.
func (m *MockGovernanceLedger) IsVerified(ctx context.Context, voter common.Address) (bool, error) {
	args := m.Called(ctx, voter)
	return args.Bool(0), args.Error(1)
}

// HasVoted mocks the HasVoted method.
func (m *MockGovernanceLedger) HasVoted(ctx context.Context, id uint64, voter common.Address) (bool, error) {
	args := m.Called(ctx, id, voter)
	return args.Bool(0), args.Error(1)
}

// NextProposalID mocks the NextProposalID method.
func (m *MockGovernanceLedger) NextProposalID(ctx context.Context) (uint64, error) {
	args := m.Called(ctx)
	return args.Get(0).(uint64), args.Error(1)
}

// WatchGovernance mocks the WatchGovernance method.
func (m *MockGovernanceLedger) WatchGovernance(ctx context.Context, sink chan<- types.Log) (ethereum.Subscription, error) {
	args := m.Called(ctx, sink)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(ethereum.Subscription), args.Error(1)
}

// ParseLog mocks the ParseLog method.
func (m *MockGovernanceLedger) ParseLog(log types.Log) (interfaces.LedgerEvent, error) {
	args := m.Called(log)
	return args.Get(0).(interfaces.LedgerEvent), args.Error(1)
}
