package relay

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/chainballot/voter-oracle/interfaces"
	"github.com/chainballot/voter-oracle/ledger"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNormalize_RedactsActor(t *testing.T) {
	raw := interfaces.LedgerEvent{
		Kind:       interfaces.LedgerEventVoteCast,
		ProposalID: 7,
		Actor:      "0x1111111111111111111111111111111111111111",
		Weight:     "100",
	}
	observedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	record := Normalize(raw, observedAt)
	assert.Equal(t, "0x1111...1111", record.Actor)
	assert.Equal(t, observedAt, record.ObservedAt)

	// Normalize is pure: the input record is untouched.
	assert.Equal(t, "0x1111111111111111111111111111111111111111", raw.Actor)
	assert.True(t, raw.ObservedAt.IsZero())
}

func TestNormalize_LeavesNonAddressActor(t *testing.T) {
	raw := interfaces.LedgerEvent{Actor: "not-an-address"}
	record := Normalize(raw, time.Now())
	assert.Equal(t, "not-an-address", record.Actor)
}

func TestHub_BroadcastReachesAllSubscribers(t *testing.T) {
	r := New(nil, nil, testLogger())

	first := r.Subscribe()
	second := r.Subscribe()
	defer first.Close()
	defer second.Close()

	assert.Equal(t, 2, r.SubscriberCount())

	record := interfaces.LedgerEvent{Kind: interfaces.LedgerEventProposalCreated, ProposalID: 1}
	r.hub.broadcast(record)

	assert.Equal(t, record, <-first.Events())
	assert.Equal(t, record, <-second.Events())
}

func TestHub_LateSubscriberMissesEarlierEvents(t *testing.T) {
	r := New(nil, nil, testLogger())

	r.hub.broadcast(interfaces.LedgerEvent{ProposalID: 1})

	sub := r.Subscribe()
	defer sub.Close()

	select {
	case record := <-sub.Events():
		t.Fatalf("unexpected replayed event: %+v", record)
	default:
	}

	// Events from now on are delivered.
	r.hub.broadcast(interfaces.LedgerEvent{ProposalID: 2})
	assert.Equal(t, uint64(2), (<-sub.Events()).ProposalID)
}

func TestHub_SlowSubscriberIsDropped(t *testing.T) {
	r := New(nil, nil, testLogger())

	slow := r.Subscribe()

	// Fill the subscriber's buffer without draining, then push one more
	// event to trigger the drop.
	for i := 0; i <= subscriberBuffer; i++ {
		r.hub.broadcast(interfaces.LedgerEvent{ProposalID: uint64(i)})
	}

	assert.Equal(t, 0, r.SubscriberCount())

	// The dropped subscriber's channel drains its buffer and then closes.
	received := 0
	for range slow.Events() {
		received++
	}
	assert.Equal(t, subscriberBuffer, received)
}

func TestSubscriber_CloseIsIdempotent(t *testing.T) {
	r := New(nil, nil, testLogger())

	sub := r.Subscribe()
	sub.Close()
	sub.Close()

	assert.Equal(t, 0, r.SubscriberCount())

	_, open := <-sub.Events()
	assert.False(t, open)
}

func TestSnapshot_DelegatesToLedger(t *testing.T) {
	mockLedger := new(ledger.MockGovernanceLedger)
	r := New(mockLedger, nil, testLogger())

	want := interfaces.ProposalSnapshot{
		ID:          3,
		Description: "fund the library",
		State:       interfaces.ProposalActive,
	}
	mockLedger.On("Proposal", mock.Anything, uint64(3)).Return(want, nil)

	got, err := r.Snapshot(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	mockLedger.On("Proposal", mock.Anything, uint64(99)).Return(interfaces.ProposalSnapshot{}, interfaces.ErrProposalNotFound)
	_, err = r.Snapshot(context.Background(), 99)
	assert.ErrorIs(t, err, interfaces.ErrProposalNotFound)

	mockLedger.AssertExpectations(t)
}

type stubSubscription struct {
	errs chan error
}

func (s *stubSubscription) Unsubscribe()      {}
func (s *stubSubscription) Err() <-chan error { return s.errs }

func TestConsume_FiltersAndBroadcasts(t *testing.T) {
	mockLedger := new(ledger.MockGovernanceLedger)
	upstream := &stubSubscription{errs: make(chan error, 1)}

	sinkCh := make(chan chan<- types.Log, 1)
	mockLedger.On("WatchGovernance", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			sinkCh <- args.Get(1).(chan<- types.Log)
		}).
		Return(upstream, nil)

	reorged := types.Log{Index: 1, Removed: true}
	garbled := types.Log{Index: 2}
	voted := types.Log{Index: 3}

	// No ParseLog expectation exists for the reorged log; feeding it to the
	// decoder would fail the mock.
	mockLedger.On("ParseLog", garbled).
		Return(interfaces.LedgerEvent{}, errors.New("unknown event topic"))
	mockLedger.On("ParseLog", voted).
		Return(interfaces.LedgerEvent{
			Kind:       interfaces.LedgerEventVoteCast,
			ProposalID: 7,
			Actor:      "0x1111111111111111111111111111111111111111",
		}, nil)

	r := New(mockLedger, nil, testLogger())
	sub := r.Subscribe()
	defer sub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- r.consume(ctx) }()

	sink := <-sinkCh
	sink <- reorged
	sink <- garbled
	sink <- voted

	// Only the well-formed, still-canonical log reaches subscribers,
	// normalized on the way out.
	record := <-sub.Events()
	assert.Equal(t, uint64(7), record.ProposalID)
	assert.Equal(t, "0x1111...1111", record.Actor)
	assert.False(t, record.ObservedAt.IsZero())

	select {
	case extra := <-sub.Events():
		t.Fatalf("unexpected event: %+v", extra)
	default:
	}

	// An upstream failure ends the pass so Run can resubscribe.
	cause := errors.New("connection reset")
	upstream.errs <- cause
	select {
	case err := <-done:
		assert.ErrorIs(t, err, cause)
	case <-time.After(time.Second):
		t.Fatal("consume did not return after upstream error")
	}

	mockLedger.AssertExpectations(t)
}

func TestConsume_WatchFailure(t *testing.T) {
	mockLedger := new(ledger.MockGovernanceLedger)
	cause := errors.New("dial refused")
	mockLedger.On("WatchGovernance", mock.Anything, mock.Anything).Return(nil, cause)

	r := New(mockLedger, nil, testLogger())
	err := r.consume(context.Background())
	assert.ErrorIs(t, err, cause)
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	mockLedger := new(ledger.MockGovernanceLedger)
	ctx, cancel := context.WithCancel(context.Background())
	mockLedger.On("WatchGovernance", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return(nil, errors.New("dial refused"))

	r := New(mockLedger, nil, testLogger())

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Run(ctx)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("relay did not stop after cancellation")
	}
	mockLedger.AssertExpectations(t)
}

func TestHub_SubscribeUnderFanOut(t *testing.T) {
	r := New(nil, nil, testLogger())

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			r.hub.broadcast(interfaces.LedgerEvent{ProposalID: uint64(i)})
		}
	}()

	// Churn subscribers concurrently with the broadcasts.
	for i := 0; i < 20; i++ {
		sub := r.Subscribe()
		sub.Close()
	}

	<-done
	assert.Equal(t, 0, r.SubscriberCount())
}
