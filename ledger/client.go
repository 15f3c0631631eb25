// Package ledger bridges the oracle to the on-chain governance contract. It
// submits the privileged voter authorization transaction, serves read-only
// proposal queries, and subscribes to governance event logs.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/chainballot/voter-oracle/interfaces"
)

// ErrNoTransactOpts is returned when a transaction is attempted without
// first setting transaction options.
var ErrNoTransactOpts = errors.New("no authorized transactor available")

// GovernanceClient implements interfaces.GovernanceLedger against a
// governance contract deployed on an Ethereum-compatible chain.
type GovernanceClient struct {
	contract *bind.BoundContract
	abi      abi.ABI
	client   bind.ContractBackend
	backend  bind.DeployBackend
	address  common.Address
	auth     *bind.TransactOpts
	log      *slog.Logger
}

// NewGovernanceClient creates a client for the governance contract at the
// given address. It requires a ContractBackend for calls and subscriptions
// and a DeployBackend for waiting on transaction confirmation.
func NewGovernanceClient(client bind.ContractBackend, backend bind.DeployBackend, address common.Address, log *slog.Logger) (*GovernanceClient, error) {
	parsed, err := abi.JSON(strings.NewReader(governanceABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse governance ABI: %w", err)
	}

	return &GovernanceClient{
		contract: bind.NewBoundContract(address, parsed, client, client, client),
		abi:      parsed,
		client:   client,
		backend:  backend,
		address:  address,
		log:      log,
	}, nil
}

// SetTransactOpts sets the transaction options required for the privileged
// verifyVoter call. Must be called before GrantVotingRight.
func (c *GovernanceClient) SetTransactOpts(auth *bind.TransactOpts) {
	c.auth = auth
}

// TransactorFromHexKey builds keyed transaction options from a hex-encoded
// ECDSA private key for the given chain.
func TransactorFromHexKey(hexKey string, chainID *big.Int) (*bind.TransactOpts, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid signer key: %w", err)
	}
	return bind.NewKeyedTransactorWithChainID(key, chainID)
}

// GrantVotingRight submits verifyVoter(voter) and blocks until the
// transaction is mined. It never resubmits: if the caller's context expires
// while the transaction is in flight, the transaction may still confirm, and
// the caller must re-query ledger state rather than call again blindly.
func (c *GovernanceClient) GrantVotingRight(ctx context.Context, voter common.Address) (*interfaces.GrantReceipt, error) {
	if c.auth == nil {
		return nil, ErrNoTransactOpts
	}

	opts := *c.auth
	opts.Context = ctx

	tx, err := c.contract.Transact(&opts, "verifyVoter", voter)
	if err != nil {
		if reason, ok := revertReason(err); ok {
			return nil, &interfaces.LedgerRejectedError{Reason: reason}
		}
		return nil, &interfaces.ProviderError{Provider: "ledger", Err: err}
	}

	c.log.Info("Voting-right grant submitted",
		slog.String("voter", interfaces.MaskAddress(voter)),
		slog.String("tx", tx.Hash().Hex()))

	receipt, err := bind.WaitMined(ctx, c.backend, tx)
	if err != nil {
		return nil, &interfaces.ProviderError{Provider: "ledger", Err: err}
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, &interfaces.LedgerRejectedError{
			Reason: "transaction reverted",
			TxHash: tx.Hash(),
		}
	}

	return &interfaces.GrantReceipt{
		TxHash:      tx.Hash(),
		BlockNumber: receipt.BlockNumber.Uint64(),
		GasUsed:     receipt.GasUsed,
	}, nil
}

// Proposal reads a proposal's fields and lifecycle state.
func (c *GovernanceClient) Proposal(ctx context.Context, id uint64) (interfaces.ProposalSnapshot, error) {
	var out []interface{}
	if err := c.call(ctx, &out, "getProposal", new(big.Int).SetUint64(id)); err != nil {
		return interfaces.ProposalSnapshot{}, c.classifyRead(err, true)
	}

	snapshot := interfaces.ProposalSnapshot{
		ID:           id,
		Proposer:     *abi.ConvertType(out[0], new(common.Address)).(*common.Address),
		Description:  *abi.ConvertType(out[1], new(string)).(*string),
		Recipient:    *abi.ConvertType(out[2], new(common.Address)).(*common.Address),
		Amount:       *abi.ConvertType(out[3], new(*big.Int)).(**big.Int),
		ForVotes:     *abi.ConvertType(out[4], new(*big.Int)).(**big.Int),
		AgainstVotes: *abi.ConvertType(out[5], new(*big.Int)).(**big.Int),
		Executed:     *abi.ConvertType(out[8], new(bool)).(*bool),
		Cancelled:    *abi.ConvertType(out[9], new(bool)).(*bool),
	}

	startTime := *abi.ConvertType(out[6], new(*big.Int)).(**big.Int)
	endTime := *abi.ConvertType(out[7], new(*big.Int)).(**big.Int)
	snapshot.StartTime = time.Unix(startTime.Int64(), 0).UTC()
	snapshot.EndTime = time.Unix(endTime.Int64(), 0).UTC()

	state, err := c.State(ctx, id)
	if err != nil {
		return interfaces.ProposalSnapshot{}, err
	}
	snapshot.State = state

	return snapshot, nil
}

// State reads only the lifecycle stage of a proposal.
func (c *GovernanceClient) State(ctx context.Context, id uint64) (interfaces.ProposalState, error) {
	var out []interface{}
	if err := c.call(ctx, &out, "state", new(big.Int).SetUint64(id)); err != nil {
		return 0, c.classifyRead(err, true)
	}
	return interfaces.ProposalState(*abi.ConvertType(out[0], new(uint8)).(*uint8)), nil
}

// IsVerified reports whether the address already holds voting rights.
func (c *GovernanceClient) IsVerified(ctx context.Context, voter common.Address) (bool, error) {
	var out []interface{}
	if err := c.call(ctx, &out, "isVerified", voter); err != nil {
		return false, c.classifyRead(err, false)
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

// HasVoted reports whether the address has voted on the proposal.
func (c *GovernanceClient) HasVoted(ctx context.Context, id uint64, voter common.Address) (bool, error) {
	var out []interface{}
	if err := c.call(ctx, &out, "hasVoted", new(big.Int).SetUint64(id), voter); err != nil {
		return false, c.classifyRead(err, true)
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

// NextProposalID reads the id the next proposal will be assigned.
func (c *GovernanceClient) NextProposalID(ctx context.Context) (uint64, error) {
	var out []interface{}
	if err := c.call(ctx, &out, "nextProposalId"); err != nil {
		return 0, c.classifyRead(err, false)
	}
	next := *abi.ConvertType(out[0], new(*big.Int)).(**big.Int)
	return next.Uint64(), nil
}

// WatchGovernance subscribes to the contract's ProposalCreated and Voted
// logs, delivering raw logs onto sink until ctx is cancelled.
func (c *GovernanceClient) WatchGovernance(ctx context.Context, sink chan<- types.Log) (ethereum.Subscription, error) {
	query := ethereum.FilterQuery{
		Addresses: []common.Address{c.address},
		Topics: [][]common.Hash{{
			c.abi.Events["ProposalCreated"].ID,
			c.abi.Events["Voted"].ID,
		}},
	}

	sub, err := c.client.SubscribeFilterLogs(ctx, query, sink)
	if err != nil {
		return nil, &interfaces.ProviderError{Provider: "ledger", Err: err}
	}
	return sub, nil
}

// ParseLog decodes a raw governance log into a normalized event record. The
// actor address is left unredacted; display redaction is the relay's call.
func (c *GovernanceClient) ParseLog(log types.Log) (interfaces.LedgerEvent, error) {
	if len(log.Topics) == 0 {
		return interfaces.LedgerEvent{}, fmt.Errorf("log without topics")
	}

	switch log.Topics[0] {
	case c.abi.Events["ProposalCreated"].ID:
		var ev struct {
			Id          *big.Int
			Proposer    common.Address
			Description string
			Recipient   common.Address
			Amount      *big.Int
		}
		if err := c.contract.UnpackLog(&ev, "ProposalCreated", log); err != nil {
			return interfaces.LedgerEvent{}, fmt.Errorf("failed to unpack ProposalCreated: %w", err)
		}
		return interfaces.LedgerEvent{
			Kind:        interfaces.LedgerEventProposalCreated,
			ProposalID:  ev.Id.Uint64(),
			Actor:       ev.Proposer.Hex(),
			Description: ev.Description,
			Recipient:   ev.Recipient.Hex(),
			Amount:      ev.Amount.String(),
			TxHash:      log.TxHash.Hex(),
		}, nil

	case c.abi.Events["Voted"].ID:
		var ev struct {
			Id      *big.Int
			Voter   common.Address
			Support bool
			Weight  *big.Int
		}
		if err := c.contract.UnpackLog(&ev, "Voted", log); err != nil {
			return interfaces.LedgerEvent{}, fmt.Errorf("failed to unpack Voted: %w", err)
		}
		support := ev.Support
		return interfaces.LedgerEvent{
			Kind:       interfaces.LedgerEventVoteCast,
			ProposalID: ev.Id.Uint64(),
			Actor:      ev.Voter.Hex(),
			Support:    &support,
			Weight:     ev.Weight.String(),
			TxHash:     log.TxHash.Hex(),
		}, nil

	default:
		return interfaces.LedgerEvent{}, fmt.Errorf("unrecognized governance log topic %s", log.Topics[0].Hex())
	}
}

func (c *GovernanceClient) call(ctx context.Context, out *[]interface{}, method string, params ...interface{}) error {
	opts := &bind.CallOpts{Context: ctx}
	return c.contract.Call(opts, out, method, params...)
}

// classifyRead maps read errors onto the taxonomy. Proposal-keyed views
// revert for unknown ids, which surfaces as ErrProposalNotFound.
func (c *GovernanceClient) classifyRead(err error, proposalKeyed bool) error {
	if _, ok := revertReason(err); ok && proposalKeyed {
		return interfaces.ErrProposalNotFound
	}
	return &interfaces.ProviderError{Provider: "ledger", Err: err}
}

// revertReason extracts the revert reason from a provider error, reporting
// whether the error was a contract-side rejection at all.
func revertReason(err error) (string, bool) {
	if err == nil {
		return "", false
	}
	msg := err.Error()
	const marker = "execution reverted"
	idx := strings.Index(msg, marker)
	if idx < 0 {
		return "", false
	}
	reason := strings.TrimPrefix(msg[idx+len(marker):], ":")
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = marker
	}
	return reason, true
}
