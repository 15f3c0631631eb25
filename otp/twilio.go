// Package otp implements the possession-factor gate over Twilio Verify.
// The provider keeps all verification session state; the oracle never
// stores codes.
package otp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/twilio/twilio-go"
	twilioclient "github.com/twilio/twilio-go/client"
	verify "github.com/twilio/twilio-go/rest/verify/v2"

	"github.com/chainballot/voter-oracle/interfaces"
)

// sessionNotFoundCode is Twilio's error code for a verification check
// against a channel with no pending session (expired or never issued).
const sessionNotFoundCode = 20404

// statusApproved is the Twilio verification status for a correct code.
const statusApproved = "approved"

// TwilioGate implements interfaces.CodeProvider against Twilio Verify v2.
type TwilioGate struct {
	client     *twilio.RestClient
	serviceSID string
	channel    string
	log        *slog.Logger
}

// NewTwilioGate creates a gate for the given Verify service. The delivery
// channel is typically "sms".
func NewTwilioGate(accountSID, authToken, serviceSID, channel string, log *slog.Logger) (*TwilioGate, error) {
	if accountSID == "" || authToken == "" || serviceSID == "" {
		return nil, errors.New("twilio account SID, auth token and verify service SID are required")
	}
	if channel == "" {
		channel = "sms"
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})

	return &TwilioGate{
		client:     client,
		serviceSID: serviceSID,
		channel:    channel,
		log:        log,
	}, nil
}

// Issue starts a verification for the contact channel. The provider
// delivers the code out-of-band; nothing is persisted locally.
//
// The Twilio SDK does not thread contexts through individual calls; the
// ctx parameter is honored only for early cancellation checks.
func (g *TwilioGate) Issue(ctx context.Context, channel string) (interfaces.ChallengeHandle, error) {
	if channel == "" {
		return interfaces.ChallengeHandle{}, fmt.Errorf("%w: empty contact channel", interfaces.ErrInvalidInput)
	}
	if err := ctx.Err(); err != nil {
		return interfaces.ChallengeHandle{}, err
	}

	params := &verify.CreateVerificationParams{}
	params.SetTo(channel)
	params.SetChannel(g.channel)

	v, err := g.client.VerifyV2.CreateVerification(g.serviceSID, params)
	if err != nil {
		return interfaces.ChallengeHandle{}, g.classify(err)
	}

	handle := interfaces.ChallengeHandle{Channel: channel}
	if v.Sid != nil {
		handle.SID = *v.Sid
	}
	if v.Status != nil {
		handle.Status = *v.Status
	}

	g.log.Info("Verification code issued",
		slog.String("channel", interfaces.MaskChannel(channel)),
		slog.String("status", handle.Status))
	return handle, nil
}

// Check submits a code against the channel's pending verification session.
// Approval is determined entirely by the provider.
func (g *TwilioGate) Check(ctx context.Context, channel, code string) (interfaces.CodeCheckResult, error) {
	if channel == "" || strings.TrimSpace(code) == "" {
		return interfaces.CodeCheckResult{}, fmt.Errorf("%w: channel and code are required", interfaces.ErrInvalidInput)
	}
	if err := ctx.Err(); err != nil {
		return interfaces.CodeCheckResult{}, err
	}

	params := &verify.CreateVerificationCheckParams{}
	params.SetTo(channel)
	params.SetCode(code)

	check, err := g.client.VerifyV2.CreateVerificationCheck(g.serviceSID, params)
	if err != nil {
		return interfaces.CodeCheckResult{}, g.classify(err)
	}

	result := interfaces.CodeCheckResult{}
	if check.Status != nil {
		result.Status = *check.Status
		result.Approved = *check.Status == statusApproved
	}

	g.log.Info("Verification code checked",
		slog.String("channel", interfaces.MaskChannel(channel)),
		slog.Bool("approved", result.Approved))
	return result, nil
}

// classify maps Twilio errors onto the oracle taxonomy: a missing
// verification session is degradable, everything else is a fatal provider
// failure for the request.
func (g *TwilioGate) classify(err error) error {
	var restErr *twilioclient.TwilioRestError
	if errors.As(err, &restErr) {
		if restErr.Code == sessionNotFoundCode || restErr.Status == 404 {
			return interfaces.ErrCodeSessionNotFound
		}
	}
	return &interfaces.ProviderError{Provider: "twilio", Err: err}
}
