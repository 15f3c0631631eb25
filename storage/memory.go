package storage

import (
	"context"
	"errors"
	"sync"

	"github.com/chainballot/voter-oracle/interfaces"
)

// MemoryDirectory is an ephemeral in-process identity directory. It backs
// tests and local development; nothing survives a restart.
type MemoryDirectory struct {
	mu         sync.RWMutex
	profiles   map[interfaces.VoterID]interfaces.Profile
	failStores bool
}

// NewMemoryDirectory creates an empty in-memory directory.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{profiles: make(map[interfaces.VoterID]interfaces.Profile)}
}

// Seed inserts a profile without going through Store. Test helper.
func (d *MemoryDirectory) Seed(profile interfaces.Profile) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.profiles[profile.ID] = profile
}

// FailStores toggles write failures. Test helper.
func (d *MemoryDirectory) FailStores(fail bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failStores = fail
}

func (d *MemoryDirectory) LoadAll(ctx context.Context) ([]interfaces.Profile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	profiles := make([]interfaces.Profile, 0, len(d.profiles))
	for _, p := range d.profiles {
		profiles = append(profiles, p)
	}
	return profiles, nil
}

func (d *MemoryDirectory) Load(ctx context.Context, id interfaces.VoterID) (interfaces.Profile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.profiles[id]
	if !ok {
		return interfaces.Profile{}, interfaces.ErrProfileNotFound
	}
	return p, nil
}

func (d *MemoryDirectory) Store(ctx context.Context, profile interfaces.Profile) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failStores {
		return errors.New("memory directory: writes disabled")
	}
	d.profiles[profile.ID] = profile
	return nil
}

func (d *MemoryDirectory) Available(ctx context.Context) bool {
	return true
}

func (d *MemoryDirectory) LocationURI() string {
	return "memory://"
}
