package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/chainballot/voter-oracle/interfaces"
)

// FileDirectory stores one JSON document per profile under a base directory.
type FileDirectory struct {
	baseDir     string
	log         *slog.Logger
	locationURI string
}

// NewFileDirectory creates a file-backed identity directory rooted at
// baseDir, creating the directory if needed.
func NewFileDirectory(baseDir string, log *slog.Logger) (*FileDirectory, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create profiles directory: %w", err)
	}

	return &FileDirectory{
		baseDir:     baseDir,
		log:         log,
		locationURI: fmt.Sprintf("file://%s", baseDir),
	}, nil
}

func (d *FileDirectory) profilePath(id interfaces.VoterID) string {
	// Identifiers come from an external enrollment system; escape them so
	// they cannot traverse outside the base directory.
	return filepath.Join(d.baseDir, url.PathEscape(string(id))+".json")
}

// LoadAll reads every profile document under the base directory.
func (d *FileDirectory) LoadAll(ctx context.Context) ([]interfaces.Profile, error) {
	entries, err := os.ReadDir(d.baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read profiles directory: %w", err)
	}

	var profiles []interfaces.Profile
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(d.baseDir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read profile %s: %w", entry.Name(), err)
		}

		var p interfaces.Profile
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("failed to decode profile %s: %w", entry.Name(), err)
		}
		profiles = append(profiles, p)
	}

	d.log.Debug("Loaded profiles from file directory",
		slog.Int("count", len(profiles)),
		slog.String("baseDir", d.baseDir))
	return profiles, nil
}

// Load reads a single profile document.
func (d *FileDirectory) Load(ctx context.Context, id interfaces.VoterID) (interfaces.Profile, error) {
	data, err := os.ReadFile(d.profilePath(id))
	if os.IsNotExist(err) {
		return interfaces.Profile{}, interfaces.ErrProfileNotFound
	}
	if err != nil {
		return interfaces.Profile{}, fmt.Errorf("failed to read profile: %w", err)
	}

	var p interfaces.Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return interfaces.Profile{}, fmt.Errorf("failed to decode profile: %w", err)
	}
	return p, nil
}

// Store persists a profile atomically: the document is written to a temp
// file in the same directory and renamed over the previous version, so a
// crash mid-write never leaves a partial profile observable.
func (d *FileDirectory) Store(ctx context.Context, profile interfaces.Profile) error {
	data, err := json.MarshalIndent(profile, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}

	target := d.profilePath(profile.ID)
	tmp, err := os.CreateTemp(d.baseDir, ".profile-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write profile: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync profile: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace profile: %w", err)
	}

	d.log.Debug("Stored profile",
		slog.String("voter", string(profile.ID)),
		slog.String("path", target))
	return nil
}

// Available checks that the base directory still exists.
func (d *FileDirectory) Available(ctx context.Context) bool {
	_, err := os.Stat(d.baseDir)
	if err != nil {
		d.log.Debug("File directory unavailable", "err", err)
		return false
	}
	return true
}

// LocationURI returns the URI this directory was created from.
func (d *FileDirectory) LocationURI() string {
	return d.locationURI
}
