// Package relay owns the continuous governance event subscription and fans
// normalized records out to attached live subscribers. It also serves
// point-in-time snapshot queries straight from the ledger, independent of
// the event stream: a reconnecting subscriber recovers missed state via
// Snapshot, never via replay.
package relay

import (
	"context"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/chainballot/voter-oracle/interfaces"
	"github.com/chainballot/voter-oracle/metrics"
)

const (
	// subscriberBuffer is the per-subscriber channel capacity. A subscriber
	// that falls this far behind is dropped rather than blocking delivery
	// to the others.
	subscriberBuffer = 16

	// resubscribeDelay is how long the relay waits before re-establishing
	// a failed upstream subscription.
	resubscribeDelay = 5 * time.Second

	// logBuffer is the capacity of the raw log channel from the provider.
	logBuffer = 64
)

// Relay subscribes to ledger governance events and rebroadcasts normalized
// records to live subscribers. One Run goroutine owns the subscription for
// the process lifetime; request handlers never touch it.
type Relay struct {
	ledger  interfaces.GovernanceLedger
	metrics *metrics.Metrics
	log     *slog.Logger

	hub *hub
}

// New creates a relay over the given ledger. metrics may be nil.
func New(ledger interfaces.GovernanceLedger, m *metrics.Metrics, log *slog.Logger) *Relay {
	return &Relay{
		ledger:  ledger,
		metrics: m,
		log:     log,
		hub:     newHub(m, log),
	}
}

// Run blocks consuming the governance event feed until ctx is cancelled,
// re-establishing the upstream subscription with a delay whenever it fails.
// Request failures elsewhere in the process never stop this loop.
func (r *Relay) Run(ctx context.Context) {
	for ctx.Err() == nil {
		if err := r.consume(ctx); err != nil {
			r.log.Warn("Governance subscription lost, retrying",
				"err", err,
				slog.Duration("delay", resubscribeDelay))
		}

		select {
		case <-ctx.Done():
		case <-time.After(resubscribeDelay):
		}
	}
	r.log.Info("Event relay stopped")
}

func (r *Relay) consume(ctx context.Context) error {
	logs := make(chan types.Log, logBuffer)
	sub, err := r.ledger.WatchGovernance(ctx, logs)
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	r.log.Info("Governance event subscription established")

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-sub.Err():
			return err
		case lg := <-logs:
			if lg.Removed {
				// Reorged-out log; the snapshot path is authoritative.
				continue
			}
			raw, err := r.ledger.ParseLog(lg)
			if err != nil {
				r.log.Warn("Discarding unparseable governance log", "err", err)
				continue
			}
			record := Normalize(raw, time.Now().UTC())
			r.metrics.IncRelayEvent(string(record.Kind))
			r.hub.broadcast(record)
		}
	}
}

// Normalize turns a decoded ledger event into the record delivered to
// subscribers: the actor address is redacted for display and the
// observation timestamp is stamped. Pure; no fan-out side effects.
func Normalize(raw interfaces.LedgerEvent, observedAt time.Time) interfaces.LedgerEvent {
	record := raw
	if common.IsHexAddress(raw.Actor) {
		record.Actor = interfaces.MaskAddress(common.HexToAddress(raw.Actor))
	}
	record.ObservedAt = observedAt
	return record
}

// Subscribe attaches a live subscriber. Only events observed from this
// point onward are delivered; there is no history replay.
func (r *Relay) Subscribe() *Subscriber {
	return r.hub.subscribe()
}

// SubscriberCount reports the number of currently attached subscribers.
func (r *Relay) SubscriberCount() int {
	return r.hub.count()
}

// Snapshot reads a proposal's current derived state directly from the
// ledger, independent of the event stream.
func (r *Relay) Snapshot(ctx context.Context, proposalID uint64) (interfaces.ProposalSnapshot, error) {
	return r.ledger.Proposal(ctx, proposalID)
}
