package interfaces

import "context"

// IdentityDirectory is durable profile storage. Implementations load the
// whole directory on start and write back one profile at a time.
//
// Store must be atomic from a reader's perspective: a crash mid-write must
// never leave a partially written profile observable.
type IdentityDirectory interface {
	// LoadAll reads every enrolled profile. Called once on startup.
	LoadAll(ctx context.Context) ([]Profile, error)

	// Load reads a single profile by identifier.
	// Returns ErrProfileNotFound for unknown identifiers.
	Load(ctx context.Context, id VoterID) (Profile, error)

	// Store durably persists a single profile, replacing any prior version.
	Store(ctx context.Context, profile Profile) error

	// Available checks whether the backing store is reachable.
	Available(ctx context.Context) bool

	// LocationURI returns the URI this directory was created from.
	LocationURI() string
}

// DirectoryFactory creates identity directories from location URIs.
type DirectoryFactory interface {
	DirectoryFor(locationURI string) (IdentityDirectory, error)
}

// CodeProvider wraps the external one-time-code service. Issuing a challenge
// has no side effects on the identity store, and checking is stateless from
// the oracle's perspective: the provider keeps the session, not the oracle.
type CodeProvider interface {
	// Issue sends a one-time code to the given contact channel.
	Issue(ctx context.Context, channel string) (ChallengeHandle, error)

	// Check submits a code for verification against the channel's pending
	// session. A missing session surfaces as ErrCodeSessionNotFound; all
	// other provider failures wrap into *ProviderError.
	Check(ctx context.Context, channel, code string) (CodeCheckResult, error)
}
