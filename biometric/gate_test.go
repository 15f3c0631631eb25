package biometric

import (
	"context"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainballot/voter-oracle/identity"
	"github.com/chainballot/voter-oracle/interfaces"
	"github.com/chainballot/voter-oracle/storage"
)

func newTestGate(t *testing.T, profiles ...interfaces.Profile) (*Gate, *identity.Store) {
	t.Helper()

	directory := storage.NewMemoryDirectory()
	for _, p := range profiles {
		directory.Seed(p)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := identity.NewStore(context.Background(), directory, logger)
	require.NoError(t, err)
	return NewGate(store, logger), store
}

// descriptorAt returns a 128-dim descriptor whose distance from the zero
// descriptor is exactly d: all components zero except the first.
func descriptorAt(d float64) []float64 {
	v := make([]float64, 128)
	v[0] = d
	return v
}

func TestRegisterOrCompare_FirstCaptureRegisters(t *testing.T) {
	gate, store := newTestGate(t, interfaces.Profile{ID: "voter-1"})

	result, err := gate.RegisterOrCompare(context.Background(), "voter-1", descriptorAt(0))
	require.NoError(t, err)
	assert.Equal(t, Registered, result.Outcome)

	// Registration counts as a biometric pass and persists the template.
	assert.True(t, store.BiometricPassed("voter-1"))
	profile, err := store.Resolve(context.Background(), "voter-1")
	require.NoError(t, err)
	assert.True(t, profile.Enrolled())
}

func TestRegisterOrCompare_MatchBelowThreshold(t *testing.T) {
	gate, store := newTestGate(t, interfaces.Profile{
		ID:                "voter-1",
		BiometricTemplate: descriptorAt(0),
	})

	result, err := gate.RegisterOrCompare(context.Background(), "voter-1", descriptorAt(0.3))
	require.NoError(t, err)
	assert.Equal(t, Matched, result.Outcome)
	assert.InDelta(t, 0.3, result.Distance, 1e-9)
	assert.InDelta(t, 70.0, result.Confidence, 1e-9)
	assert.True(t, store.BiometricPassed("voter-1"))
}

func TestRegisterOrCompare_RejectAtThreshold(t *testing.T) {
	gate, store := newTestGate(t, interfaces.Profile{
		ID:                "voter-1",
		BiometricTemplate: descriptorAt(0),
	})

	// Exactly the threshold is a rejection: match requires strictly less.
	result, err := gate.RegisterOrCompare(context.Background(), "voter-1", descriptorAt(MatchThreshold))
	require.NoError(t, err)
	assert.Equal(t, Rejected, result.Outcome)
	assert.InDelta(t, MatchThreshold, result.Distance, 1e-9)
	assert.False(t, store.BiometricPassed("voter-1"))
}

func TestRegisterOrCompare_RejectAboveThreshold(t *testing.T) {
	gate, _ := newTestGate(t, interfaces.Profile{
		ID:                "voter-1",
		BiometricTemplate: descriptorAt(0),
	})

	result, err := gate.RegisterOrCompare(context.Background(), "voter-1", descriptorAt(0.7))
	require.NoError(t, err)
	assert.Equal(t, Rejected, result.Outcome)
	assert.InDelta(t, 0.7, result.Distance, 1e-9)
}

func TestRegisterOrCompare_IdenticalDescriptor(t *testing.T) {
	template := make([]float64, 128)
	for i := range template {
		template[i] = float64(i) / 128
	}
	gate, _ := newTestGate(t, interfaces.Profile{
		ID:                "voter-1",
		BiometricTemplate: template,
	})

	result, err := gate.RegisterOrCompare(context.Background(), "voter-1", template)
	require.NoError(t, err)
	assert.Equal(t, Matched, result.Outcome)
	assert.Equal(t, 0.0, result.Distance)
	assert.Equal(t, 100.0, result.Confidence)
}

func TestRegisterOrCompare_LengthMismatch(t *testing.T) {
	gate, _ := newTestGate(t, interfaces.Profile{
		ID:                "voter-1",
		BiometricTemplate: descriptorAt(0),
	})

	_, err := gate.RegisterOrCompare(context.Background(), "voter-1", make([]float64, 64))
	assert.ErrorIs(t, err, interfaces.ErrInvalidInput)
}

func TestRegisterOrCompare_EmptyDescriptor(t *testing.T) {
	gate, _ := newTestGate(t, interfaces.Profile{ID: "voter-1"})

	_, err := gate.RegisterOrCompare(context.Background(), "voter-1", nil)
	assert.ErrorIs(t, err, interfaces.ErrInvalidInput)
}

func TestRegisterOrCompare_NonFiniteValues(t *testing.T) {
	gate, _ := newTestGate(t, interfaces.Profile{ID: "voter-1"})

	bad := descriptorAt(0)
	bad[64] = math.NaN()
	_, err := gate.RegisterOrCompare(context.Background(), "voter-1", bad)
	assert.ErrorIs(t, err, interfaces.ErrInvalidInput)

	bad[64] = math.Inf(1)
	_, err = gate.RegisterOrCompare(context.Background(), "voter-1", bad)
	assert.ErrorIs(t, err, interfaces.ErrInvalidInput)
}

func TestRegisterOrCompare_UnknownVoter(t *testing.T) {
	gate, _ := newTestGate(t)

	_, err := gate.RegisterOrCompare(context.Background(), "nobody", descriptorAt(0))
	assert.ErrorIs(t, err, interfaces.ErrProfileNotFound)
}

func TestEuclideanDistance(t *testing.T) {
	a := []float64{0, 0, 0}
	b := []float64{3, 4, 0}
	assert.Equal(t, 5.0, EuclideanDistance(a, b))
	assert.Equal(t, 0.0, EuclideanDistance(a, a))
}
