// Package biometric implements the facial-descriptor gate: first capture
// enrolls the template, later captures are compared against it by Euclidean
// distance. Templates are write-once; comparison never mutates them.
package biometric

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/chainballot/voter-oracle/interfaces"
)

// MatchThreshold is the fixed Euclidean distance below which a captured
// descriptor counts as the enrolled person.
const MatchThreshold = 0.5

// Outcome tags a gate result.
type Outcome string

const (
	// Registered: no template existed; the capture became the template.
	Registered Outcome = "registered"
	// Matched: distance to the template was below the threshold.
	Matched Outcome = "matched"
	// Rejected: distance to the template was at or above the threshold.
	Rejected Outcome = "rejected"
)

// Result reports a register-or-compare run. Confidence is only meaningful
// for Matched, Distance for Matched and Rejected.
type Result struct {
	Outcome    Outcome `json:"outcome"`
	Confidence float64 `json:"confidence,omitempty"`
	Distance   float64 `json:"distance,omitempty"`
}

// templateStore is the slice of the identity store the gate needs.
type templateStore interface {
	Resolve(ctx context.Context, id interfaces.VoterID) (interfaces.Profile, error)
	SetTemplate(ctx context.Context, id interfaces.VoterID, descriptor []float64) error
	MarkBiometricPassed(id interfaces.VoterID)
}

// Gate performs register-or-compare against stored templates.
type Gate struct {
	store templateStore
	log   *slog.Logger
}

// NewGate creates a biometric gate over the given identity store.
func NewGate(store templateStore, log *slog.Logger) *Gate {
	return &Gate{store: store, log: log}
}

// RegisterOrCompare enrolls the descriptor as the identifier's template if
// none exists, or compares it against the stored template otherwise. The
// comparison is one-shot and stateless: no retry budget, no lockout.
//
// A malformed descriptor (empty, non-finite values, or a length differing
// from the stored template) fails with ErrInvalidInput before any numeric
// result is produced.
func (g *Gate) RegisterOrCompare(ctx context.Context, id interfaces.VoterID, descriptor []float64) (Result, error) {
	if err := validateDescriptor(descriptor); err != nil {
		return Result{}, err
	}

	profile, err := g.store.Resolve(ctx, id)
	if err != nil {
		return Result{}, err
	}

	if !profile.Enrolled() {
		if err := g.store.SetTemplate(ctx, id, descriptor); err != nil {
			return Result{}, err
		}
		g.store.MarkBiometricPassed(id)
		g.log.Info("Biometric template registered", slog.String("voter", string(id)))
		return Result{Outcome: Registered}, nil
	}

	if len(descriptor) != len(profile.BiometricTemplate) {
		return Result{}, fmt.Errorf("%w: descriptor length %d does not match template length %d",
			interfaces.ErrInvalidInput, len(descriptor), len(profile.BiometricTemplate))
	}

	distance := EuclideanDistance(profile.BiometricTemplate, descriptor)
	if distance < MatchThreshold {
		g.store.MarkBiometricPassed(id)
		g.log.Info("Biometric match",
			slog.String("voter", string(id)),
			slog.Float64("distance", distance))
		return Result{
			Outcome:    Matched,
			Confidence: (1 - distance) * 100,
			Distance:   distance,
		}, nil
	}

	g.log.Info("Biometric rejection",
		slog.String("voter", string(id)),
		slog.Float64("distance", distance))
	return Result{Outcome: Rejected, Distance: distance}, nil
}

// EuclideanDistance computes the L2 distance between two equal-length
// descriptors.
func EuclideanDistance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		diff := a[i] - b[i]
		sum += diff * diff
	}
	return math.Sqrt(sum)
}

func validateDescriptor(descriptor []float64) error {
	if len(descriptor) == 0 {
		return fmt.Errorf("%w: empty descriptor", interfaces.ErrInvalidInput)
	}
	for i, v := range descriptor {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite descriptor value at index %d", interfaces.ErrInvalidInput, i)
		}
	}
	return nil
}
