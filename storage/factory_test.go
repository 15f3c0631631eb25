package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectoryFor_File(t *testing.T) {
	factory := NewDirectoryFactory(testLogger())

	baseDir := filepath.Join(t.TempDir(), "profiles")
	directory, err := factory.DirectoryFor("file://" + baseDir)
	require.NoError(t, err)
	assert.IsType(t, &FileDirectory{}, directory)
	assert.Equal(t, "file://"+baseDir, directory.LocationURI())
}

func TestDirectoryFor_Memory(t *testing.T) {
	factory := NewDirectoryFactory(testLogger())

	directory, err := factory.DirectoryFor("memory://")
	require.NoError(t, err)
	assert.IsType(t, &MemoryDirectory{}, directory)
}

func TestDirectoryFor_S3(t *testing.T) {
	factory := NewDirectoryFactory(testLogger())

	directory, err := factory.DirectoryFor("s3://key:secret@voters-bucket/prod/profiles?region=eu-west-1&endpoint=http://127.0.0.1:9000")
	require.NoError(t, err)
	assert.IsType(t, &S3Directory{}, directory)
}

func TestDirectoryFor_Vault(t *testing.T) {
	factory := NewDirectoryFactory(testLogger())

	directory, err := factory.DirectoryFor("vault://vault.internal:8200/secret/voters")
	require.NoError(t, err)
	assert.IsType(t, &VaultDirectory{}, directory)
}

func TestDirectoryFor_VaultMissingPath(t *testing.T) {
	factory := NewDirectoryFactory(testLogger())

	_, err := factory.DirectoryFor("vault://vault.internal:8200/secret")
	assert.Error(t, err)
}

func TestDirectoryFor_UnsupportedScheme(t *testing.T) {
	factory := NewDirectoryFactory(testLogger())

	_, err := factory.DirectoryFor("ftp://example.com/profiles")
	assert.Error(t, err)
}

func TestDirectoryFor_S3MissingBucket(t *testing.T) {
	factory := NewDirectoryFactory(testLogger())

	_, err := factory.DirectoryFor("s3:///no-bucket")
	assert.Error(t, err)
}
