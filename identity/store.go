// Package identity owns the in-memory identity store, the sybil guard over
// address bindings, and the process-lifetime verified-voter cache.
package identity

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/chainballot/voter-oracle/interfaces"
)

// lockShards is the number of per-identifier mutex shards. Mutations for the
// same identifier always serialize on the same shard.
const lockShards = 64

// Store resolves profiles and serializes all profile mutations. It is the
// only component that writes to the identity directory; every mutation is
// durably persisted before it becomes visible to readers.
type Store struct {
	directory interfaces.IdentityDirectory
	log       *slog.Logger

	mu        sync.RWMutex
	profiles  map[interfaces.VoterID]interfaces.Profile
	addresses map[common.Address]interfaces.VoterID

	locks [lockShards]sync.Mutex

	cacheMu    sync.RWMutex
	authorized map[interfaces.VoterID]common.Address
	biometric  map[interfaces.VoterID]bool
}

// NewStore loads the full identity directory and returns a ready store.
func NewStore(ctx context.Context, directory interfaces.IdentityDirectory, log *slog.Logger) (*Store, error) {
	profiles, err := directory.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading identity directory: %w", err)
	}

	byID := make(map[interfaces.VoterID]interfaces.Profile, len(profiles))
	byAddr := make(map[common.Address]interfaces.VoterID)
	for _, p := range profiles {
		byID[p.ID] = p
		if p.Bound() {
			byAddr[p.BoundAddress] = p.ID
		}
	}

	log.Info("Identity directory loaded",
		slog.Int("profiles", len(byID)),
		slog.String("location", directory.LocationURI()))

	return &Store{
		directory:  directory,
		log:        log,
		profiles:   byID,
		addresses:  byAddr,
		authorized: make(map[interfaces.VoterID]common.Address),
		biometric:  make(map[interfaces.VoterID]bool),
	}, nil
}

func (s *Store) shard(id interfaces.VoterID) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(id))
	return &s.locks[h.Sum32()%lockShards]
}

// Resolve returns a copy of the profile for the given identifier.
func (s *Store) Resolve(_ context.Context, id interfaces.VoterID) (interfaces.Profile, error) {
	s.mu.RLock()
	p, ok := s.profiles[id]
	s.mu.RUnlock()
	if !ok {
		return interfaces.Profile{}, interfaces.ErrProfileNotFound
	}
	p.BiometricTemplate = slices.Clone(p.BiometricTemplate)
	return p, nil
}

// BindAddress binds a ledger address to the identifier. The guard is
// bidirectional and write-once in both directions: an identical rebind is an
// idempotent no-op, a different address for a bound identifier returns
// *interfaces.ConflictError, and an address another identifier already holds
// returns ErrAddressInUse. The existing binding always wins. Concurrent binds
// for the same identifier serialize on a per-identifier lock, so two racing
// first-time binds resolve to exactly one winner; racing binds of the same
// address by different identifiers resolve through the reverse index.
func (s *Store) BindAddress(ctx context.Context, id interfaces.VoterID, addr common.Address) error {
	if addr == (common.Address{}) {
		return fmt.Errorf("%w: zero address", interfaces.ErrInvalidInput)
	}

	lock := s.shard(id)
	lock.Lock()
	defer lock.Unlock()

	s.mu.RLock()
	p, ok := s.profiles[id]
	s.mu.RUnlock()
	if !ok {
		return interfaces.ErrProfileNotFound
	}

	if p.Bound() {
		if p.BoundAddress == addr {
			return nil
		}
		return &interfaces.ConflictError{ExistingAddress: p.BoundAddress}
	}

	// Claim the address in the reverse index before persisting. Identifiers
	// racing for the same address sit on different shard locks, so the claim
	// itself is the arbiter.
	s.mu.Lock()
	if owner, taken := s.addresses[addr]; taken && owner != id {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", interfaces.ErrAddressInUse, interfaces.MaskAddress(addr))
	}
	s.addresses[addr] = id
	s.mu.Unlock()

	updated := p
	updated.BoundAddress = addr
	updated.UpdatedAt = time.Now().UTC()
	if err := s.directory.Store(ctx, updated); err != nil {
		s.mu.Lock()
		delete(s.addresses, addr)
		s.mu.Unlock()
		return fmt.Errorf("persisting address binding: %w", err)
	}

	s.mu.Lock()
	s.profiles[id] = updated
	s.mu.Unlock()

	s.log.Info("Address bound",
		slog.String("voter", string(id)),
		slog.String("address", interfaces.MaskAddress(addr)))
	return nil
}

// SetTemplate enrolls the biometric template for the identifier. Templates
// are write-once; enrollment of an already enrolled identifier fails with
// ErrTemplateExists and never overwrites.
func (s *Store) SetTemplate(ctx context.Context, id interfaces.VoterID, descriptor []float64) error {
	if len(descriptor) == 0 {
		return fmt.Errorf("%w: empty descriptor", interfaces.ErrInvalidInput)
	}

	lock := s.shard(id)
	lock.Lock()
	defer lock.Unlock()

	s.mu.RLock()
	p, ok := s.profiles[id]
	s.mu.RUnlock()
	if !ok {
		return interfaces.ErrProfileNotFound
	}
	if p.Enrolled() {
		return interfaces.ErrTemplateExists
	}

	updated := p
	updated.BiometricTemplate = slices.Clone(descriptor)
	updated.UpdatedAt = time.Now().UTC()
	if err := s.directory.Store(ctx, updated); err != nil {
		return fmt.Errorf("persisting biometric template: %w", err)
	}

	s.mu.Lock()
	s.profiles[id] = updated
	s.mu.Unlock()

	s.log.Info("Biometric template enrolled", slog.String("voter", string(id)))
	return nil
}

// MarkBiometricPassed records that the biometric gate passed for this
// identifier. The record lives for the process lifetime only and feeds the
// reduced-assurance policy when the code provider degrades.
func (s *Store) MarkBiometricPassed(id interfaces.VoterID) {
	s.cacheMu.Lock()
	s.biometric[id] = true
	s.cacheMu.Unlock()
}

// BiometricPassed reports whether the biometric gate has passed for this
// identifier during this process's lifetime.
func (s *Store) BiometricPassed(id interfaces.VoterID) bool {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	return s.biometric[id]
}

// MarkAuthorized records a confirmed on-chain grant in the verified-voter
// cache. The cache is an audit aid, never authoritative: the ledger remains
// the source of truth for voting rights.
func (s *Store) MarkAuthorized(id interfaces.VoterID, addr common.Address) {
	s.cacheMu.Lock()
	s.authorized[id] = addr
	s.cacheMu.Unlock()
}

// Authorized reports whether this process has observed a confirmed grant for
// the identifier, and if so for which address.
func (s *Store) Authorized(id interfaces.VoterID) (common.Address, bool) {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	addr, ok := s.authorized[id]
	return addr, ok
}
