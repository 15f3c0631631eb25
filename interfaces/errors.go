package interfaces

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Sentinel errors shared across components. Handlers map these onto HTTP
// status codes; none of them is ever fatal to the process.
var (
	// ErrProfileNotFound indicates an unknown voter identifier.
	ErrProfileNotFound = errors.New("profile not found")

	// ErrProposalNotFound indicates an unknown ledger subject.
	ErrProposalNotFound = errors.New("proposal not found")

	// ErrInvalidInput indicates a malformed request (empty code, malformed
	// descriptor, bad address). Rejected before any external call is made.
	ErrInvalidInput = errors.New("invalid input")

	// ErrTemplateExists indicates an attempt to overwrite an enrolled
	// biometric template. Templates are write-once; there is no update path.
	ErrTemplateExists = errors.New("biometric template already enrolled")

	// ErrAddressInUse indicates a bind would associate a ledger address that
	// some other identifier already holds. The guard is bidirectional: one
	// identifier per address just as one address per identifier.
	ErrAddressInUse = errors.New("address already bound to another identifier")

	// ErrCodeSessionNotFound indicates the code provider has no verification
	// session for the channel. This is the only degradable provider failure:
	// the caller may bypass the possession factor and rely on the biometric
	// factor, flagging the result as reduced assurance.
	ErrCodeSessionNotFound = errors.New("verification session not found")
)

// ConflictError is returned when a bind would associate an identifier with a
// second, different ledger address. The existing binding always wins; the
// conflicting request is permanently rejected, never merged or overwritten.
type ConflictError struct {
	ExistingAddress common.Address
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("identifier already bound to %s", MaskAddress(e.ExistingAddress))
}

// Masked returns the existing address partially hidden for display.
func (e *ConflictError) Masked() string {
	return MaskAddress(e.ExistingAddress)
}

// ProviderError wraps a transport or service failure from an external
// collaborator (code provider, ledger RPC). Never silently retried.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s provider failure: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// LedgerRejectedError indicates the governance contract itself rejected the
// call (already authorized, malformed address, reverted execution). The
// reason is surfaced verbatim and the transaction is not resubmitted.
type LedgerRejectedError struct {
	Reason string
	TxHash common.Hash
}

func (e *LedgerRejectedError) Error() string {
	return fmt.Sprintf("ledger rejected: %s", e.Reason)
}
