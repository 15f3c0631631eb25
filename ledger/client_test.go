package ledger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainballot/voter-oracle/interfaces"
)

func newTestClient(t *testing.T) *GovernanceClient {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client, err := NewGovernanceClient(nil, nil,
		common.HexToAddress("0x00000000000000000000000000000000000000aa"), logger)
	require.NoError(t, err)
	return client
}

func TestRevertReason(t *testing.T) {
	reason, ok := revertReason(errors.New("execution reverted: Voter already verified"))
	require.True(t, ok)
	assert.Equal(t, "Voter already verified", reason)

	reason, ok = revertReason(errors.New("execution reverted"))
	require.True(t, ok)
	assert.Equal(t, "execution reverted", reason)

	_, ok = revertReason(errors.New("connection refused"))
	assert.False(t, ok)

	_, ok = revertReason(nil)
	assert.False(t, ok)
}

func TestClassifyRead(t *testing.T) {
	client := newTestClient(t)

	// A revert on a proposal-keyed view means the id does not exist.
	err := client.classifyRead(errors.New("execution reverted: Invalid proposal"), true)
	assert.ErrorIs(t, err, interfaces.ErrProposalNotFound)

	// The same revert on a non-keyed view is a provider failure.
	err = client.classifyRead(errors.New("execution reverted: Invalid proposal"), false)
	var provider *interfaces.ProviderError
	assert.ErrorAs(t, err, &provider)

	// Transport failures are provider failures either way.
	err = client.classifyRead(errors.New("connection refused"), true)
	assert.ErrorAs(t, err, &provider)
}

func TestGrantVotingRight_RequiresTransactor(t *testing.T) {
	client := newTestClient(t)

	_, err := client.GrantVotingRight(context.Background(),
		common.HexToAddress("0x1111111111111111111111111111111111111111"))
	assert.ErrorIs(t, err, ErrNoTransactOpts)
}

func TestTransactorFromHexKey(t *testing.T) {
	// Well-known dev-chain key.
	const hexKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

	opts, err := TransactorFromHexKey(hexKey, big.NewInt(1337))
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"), opts.From)

	// A 0x prefix is accepted.
	opts2, err := TransactorFromHexKey("0x"+hexKey, big.NewInt(1337))
	require.NoError(t, err)
	assert.Equal(t, opts.From, opts2.From)

	_, err = TransactorFromHexKey("not-hex", big.NewInt(1337))
	assert.Error(t, err)
}

func packEventData(t *testing.T, parsed abi.ABI, name string, args ...interface{}) []byte {
	t.Helper()
	data, err := parsed.Events[name].Inputs.NonIndexed().Pack(args...)
	require.NoError(t, err)
	return data
}

func TestParseLog_ProposalCreated(t *testing.T) {
	client := newTestClient(t)
	parsed, err := abi.JSON(strings.NewReader(governanceABI))
	require.NoError(t, err)

	proposer := common.HexToAddress("0x3333333333333333333333333333333333333333")
	recipient := common.HexToAddress("0x4444444444444444444444444444444444444444")

	lg := types.Log{
		Topics: []common.Hash{
			parsed.Events["ProposalCreated"].ID,
			common.BigToHash(big.NewInt(7)),
			common.BytesToHash(proposer.Bytes()),
		},
		Data:   packEventData(t, parsed, "ProposalCreated", "fund the library", recipient, big.NewInt(1000)),
		TxHash: common.HexToHash("0xdead"),
	}

	event, err := client.ParseLog(lg)
	require.NoError(t, err)
	assert.Equal(t, interfaces.LedgerEventProposalCreated, event.Kind)
	assert.Equal(t, uint64(7), event.ProposalID)
	assert.Equal(t, proposer.Hex(), event.Actor)
	assert.Equal(t, "fund the library", event.Description)
	assert.Equal(t, recipient.Hex(), event.Recipient)
	assert.Equal(t, "1000", event.Amount)
	assert.Equal(t, lg.TxHash.Hex(), event.TxHash)
}

func TestParseLog_Voted(t *testing.T) {
	client := newTestClient(t)
	parsed, err := abi.JSON(strings.NewReader(governanceABI))
	require.NoError(t, err)

	voter := common.HexToAddress("0x5555555555555555555555555555555555555555")

	lg := types.Log{
		Topics: []common.Hash{
			parsed.Events["Voted"].ID,
			common.BigToHash(big.NewInt(7)),
			common.BytesToHash(voter.Bytes()),
		},
		Data:   packEventData(t, parsed, "Voted", true, big.NewInt(250)),
		TxHash: common.HexToHash("0xbeef"),
	}

	event, err := client.ParseLog(lg)
	require.NoError(t, err)
	assert.Equal(t, interfaces.LedgerEventVoteCast, event.Kind)
	assert.Equal(t, uint64(7), event.ProposalID)
	assert.Equal(t, voter.Hex(), event.Actor)
	require.NotNil(t, event.Support)
	assert.True(t, *event.Support)
	assert.Equal(t, "250", event.Weight)
}

func TestParseLog_UnknownTopic(t *testing.T) {
	client := newTestClient(t)

	_, err := client.ParseLog(types.Log{Topics: []common.Hash{common.HexToHash("0x01")}})
	assert.Error(t, err)

	_, err = client.ParseLog(types.Log{})
	assert.Error(t, err)
}

func TestProposalStateLabels(t *testing.T) {
	assert.Equal(t, "Pending", interfaces.ProposalPending.String())
	assert.Equal(t, "Active", interfaces.ProposalActive.String())
	assert.Equal(t, "Succeeded", interfaces.ProposalSucceeded.String())
	assert.Equal(t, "Defeated", interfaces.ProposalDefeated.String())
	assert.Equal(t, "Executed", interfaces.ProposalExecuted.String())
	assert.Equal(t, "Cancelled", interfaces.ProposalCancelled.String())
	assert.Equal(t, "Unknown", interfaces.ProposalState(99).String())
}
