package interfaces

import (
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// VoterID is a person's stable identifier, unique and immutable, assigned at
// enrollment. Enrollment itself happens outside this oracle.
type VoterID string

// Profile is the durable record for one enrolled person.
//
// BoundAddress and BiometricTemplate both start unset and are settable
// exactly once. The zero address means no binding; a nil template means no
// enrollment. Neither field is ever overwritten by this oracle.
type Profile struct {
	ID                VoterID        `json:"id"`
	DisplayName       string         `json:"display_name"`
	ContactChannel    string         `json:"contact_channel"`
	BoundAddress      common.Address `json:"bound_address"`
	BiometricTemplate []float64      `json:"biometric_template,omitempty"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// Bound reports whether a ledger address has been bound to this profile.
func (p *Profile) Bound() bool {
	return p.BoundAddress != (common.Address{})
}

// Enrolled reports whether a biometric template has been captured.
func (p *Profile) Enrolled() bool {
	return len(p.BiometricTemplate) > 0
}

// MaskAddress renders a ledger address for display without revealing it
// fully, e.g. "0x1234...abcd".
func MaskAddress(addr common.Address) string {
	hex := addr.Hex()
	return hex[:6] + "..." + hex[len(hex)-4:]
}

// MaskChannel renders a contact channel (typically a phone number) with all
// but the last four characters hidden.
func MaskChannel(channel string) string {
	if len(channel) <= 4 {
		return strings.Repeat("*", len(channel))
	}
	return strings.Repeat("*", len(channel)-4) + channel[len(channel)-4:]
}

// ChallengeHandle identifies an issued one-time-code challenge at the
// external provider. The oracle stores no codes itself.
type ChallengeHandle struct {
	SID     string
	Status  string
	Channel string
}

// CodeCheckResult is the provider's verdict for a submitted code. Denial is
// a result, not an error: the request failed a factor, the provider worked.
type CodeCheckResult struct {
	Approved bool
	Status   string
}
