package storage

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainballot/voter-oracle/interfaces"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFileDirectory_RoundTrip(t *testing.T) {
	tempDir := t.TempDir()
	directory, err := NewFileDirectory(tempDir, testLogger())
	require.NoError(t, err)

	profile := interfaces.Profile{
		ID:                "voter-1",
		DisplayName:       "Ada",
		ContactChannel:    "+15551230001",
		BoundAddress:      common.HexToAddress("0x1111111111111111111111111111111111111111"),
		BiometricTemplate: []float64{0.1, 0.2, 0.3},
		UpdatedAt:         time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, directory.Store(context.Background(), profile))

	loaded, err := directory.Load(context.Background(), "voter-1")
	require.NoError(t, err)
	assert.Equal(t, profile, loaded)

	all, err := directory.LoadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, profile, all[0])
}

func TestFileDirectory_LoadUnknown(t *testing.T) {
	directory, err := NewFileDirectory(t.TempDir(), testLogger())
	require.NoError(t, err)

	_, err = directory.Load(context.Background(), "nobody")
	assert.ErrorIs(t, err, interfaces.ErrProfileNotFound)
}

func TestFileDirectory_OverwriteLeavesNoTempFiles(t *testing.T) {
	tempDir := t.TempDir()
	directory, err := NewFileDirectory(tempDir, testLogger())
	require.NoError(t, err)

	profile := interfaces.Profile{ID: "voter-1", DisplayName: "Ada"}
	require.NoError(t, directory.Store(context.Background(), profile))

	profile.DisplayName = "Ada L."
	require.NoError(t, directory.Store(context.Background(), profile))

	loaded, err := directory.Load(context.Background(), "voter-1")
	require.NoError(t, err)
	assert.Equal(t, "Ada L.", loaded.DisplayName)

	// The temp-and-rename write must not leave stragglers behind.
	entries, err := os.ReadDir(tempDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "voter-1.json", entries[0].Name())
}

func TestFileDirectory_EscapesHostileIdentifiers(t *testing.T) {
	tempDir := t.TempDir()
	directory, err := NewFileDirectory(tempDir, testLogger())
	require.NoError(t, err)

	hostile := interfaces.VoterID("../../etc/passwd")
	profile := interfaces.Profile{ID: hostile}
	require.NoError(t, directory.Store(context.Background(), profile))

	// The document must land inside the base directory.
	entries, err := os.ReadDir(tempDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	loaded, err := directory.Load(context.Background(), hostile)
	require.NoError(t, err)
	assert.Equal(t, hostile, loaded.ID)

	// Nothing escaped upward.
	_, err = os.Stat(filepath.Join(tempDir, "..", "..", "etc"))
	assert.True(t, os.IsNotExist(err))
}

func TestFileDirectory_Available(t *testing.T) {
	tempDir := t.TempDir()
	directory, err := NewFileDirectory(tempDir, testLogger())
	require.NoError(t, err)

	assert.True(t, directory.Available(context.Background()))

	require.NoError(t, os.RemoveAll(tempDir))
	assert.False(t, directory.Available(context.Background()))
}

func TestFileDirectory_LoadAllSkipsForeignFiles(t *testing.T) {
	tempDir := t.TempDir()
	directory, err := NewFileDirectory(tempDir, testLogger())
	require.NoError(t, err)

	require.NoError(t, directory.Store(context.Background(), interfaces.Profile{ID: "voter-1"}))
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, "README.txt"), []byte("not a profile"), 0o644))

	all, err := directory.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
