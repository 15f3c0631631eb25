package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"github.com/chainballot/voter-oracle/biometric"
	"github.com/chainballot/voter-oracle/identity"
	"github.com/chainballot/voter-oracle/interfaces"
	"github.com/chainballot/voter-oracle/metrics"
	"github.com/chainballot/voter-oracle/relay"
)

// maxBodySize is the maximum allowed request body size (1MB).
const maxBodySize = 1024 * 1024

// Error kinds returned in responses so callers can distinguish the failure
// taxonomy programmatically.
const (
	kindNotFound         = "not_found"
	kindConflict         = "conflict"
	kindInvalidInput     = "invalid_input"
	kindCodeDenied       = "code_denied"
	kindBiometricReject  = "biometric_rejected"
	kindProviderDegraded = "provider_degraded"
	kindProviderFailure  = "provider_failure"
	kindLedgerRejected   = "ledger_rejected"
)

// Handler composes the identity store, the two gates, the ledger bridge,
// and the event relay into the oracle's externally visible operations.
type Handler struct {
	store   *identity.Store
	codes   interfaces.CodeProvider
	gate    *biometric.Gate
	ledger  interfaces.GovernanceLedger
	relay   *relay.Relay
	metrics *metrics.Metrics
	log     *slog.Logger
}

// NewHandler creates a request handler with the given collaborators.
// metrics may be nil.
func NewHandler(store *identity.Store, codes interfaces.CodeProvider, gate *biometric.Gate, ledger interfaces.GovernanceLedger, eventRelay *relay.Relay, m *metrics.Metrics, log *slog.Logger) *Handler {
	return &Handler{
		store:   store,
		codes:   codes,
		gate:    gate,
		ledger:  ledger,
		relay:   eventRelay,
		metrics: m,
		log:     log,
	}
}

type challengeRequest struct {
	VoterID string `json:"voter_id"`
}

type challengeResponse struct {
	Status  string `json:"status"`
	Channel string `json:"channel"`
}

// HandleIssueChallenge resolves the identifier and issues a one-time code
// to the profile's contact channel.
//
// URL format: POST /api/v1/challenge
func (h *Handler) HandleIssueChallenge(w http.ResponseWriter, r *http.Request) {
	var req challengeRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if req.VoterID == "" {
		h.writeError(w, fmt.Errorf("%w: voter_id is required", interfaces.ErrInvalidInput))
		return
	}

	profile, err := h.store.Resolve(r.Context(), interfaces.VoterID(req.VoterID))
	if err != nil {
		h.writeError(w, err)
		return
	}

	start := time.Now()
	handle, err := h.codes.Issue(r.Context(), profile.ContactChannel)
	h.metrics.ObserveGateDuration("otp", time.Since(start))
	if err != nil {
		h.writeError(w, err)
		return
	}

	status := handle.Status
	if status == "" {
		status = "sent"
	}
	writeJSON(w, http.StatusOK, challengeResponse{
		Status:  status,
		Channel: interfaces.MaskChannel(profile.ContactChannel),
	})
}

type authorizeRequest struct {
	VoterID       string `json:"voter_id"`
	Code          string `json:"code"`
	WalletAddress string `json:"wallet_address"`
}

type authorizeResponse struct {
	Status           string `json:"status"`
	TxHash           string `json:"tx_hash"`
	BlockNumber      uint64 `json:"block_number"`
	ReducedAssurance bool   `json:"reduced_assurance"`
}

// HandleAuthorize verifies the possession-factor code, applies the sybil
// guard, and submits the ledger grant.
//
// URL format: POST /api/v1/authorize
//
// If the code provider reports a missing verification session, the
// possession factor may be bypassed: the grant proceeds on the biometric
// result alone, flagged reduced_assurance, and only if the biometric gate
// has already passed for the identifier in this process. Otherwise the
// request fails before any ledger call.
//
// The address binding is persisted before the grant is submitted. If the
// grant fails afterwards, the binding stays: a retry with the same address
// is an idempotent rebind followed by a fresh grant submission.
func (h *Handler) HandleAuthorize(w http.ResponseWriter, r *http.Request) {
	var req authorizeRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if req.VoterID == "" || req.WalletAddress == "" {
		h.writeError(w, fmt.Errorf("%w: voter_id and wallet_address are required", interfaces.ErrInvalidInput))
		return
	}
	if !common.IsHexAddress(req.WalletAddress) {
		h.writeError(w, fmt.Errorf("%w: malformed wallet address", interfaces.ErrInvalidInput))
		return
	}

	id := interfaces.VoterID(req.VoterID)
	addr := common.HexToAddress(req.WalletAddress)

	profile, err := h.store.Resolve(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	reduced := false
	start := time.Now()
	result, err := h.codes.Check(r.Context(), profile.ContactChannel, req.Code)
	h.metrics.ObserveGateDuration("otp", time.Since(start))
	switch {
	case errors.Is(err, interfaces.ErrCodeSessionNotFound):
		if !h.store.BiometricPassed(id) {
			h.metrics.IncAuthorizationOutcome("degraded")
			h.writeError(w, err)
			return
		}
		reduced = true
		h.log.Warn("Possession factor bypassed, relying on biometric result",
			slog.String("voter", string(id)))
	case err != nil:
		h.metrics.IncAuthorizationOutcome("failed")
		h.writeError(w, err)
		return
	case !result.Approved:
		h.metrics.IncAuthorizationOutcome("denied")
		writeErrorKind(w, http.StatusBadRequest, kindCodeDenied, "invalid or expired code")
		return
	}

	if err := h.store.BindAddress(r.Context(), id, addr); err != nil {
		var conflict *interfaces.ConflictError
		if errors.As(err, &conflict) {
			h.metrics.IncAuthorizationOutcome("conflict")
		} else {
			h.metrics.IncAuthorizationOutcome("failed")
		}
		h.writeError(w, err)
		return
	}

	start = time.Now()
	receipt, err := h.ledger.GrantVotingRight(r.Context(), addr)
	h.metrics.ObserveGrantDuration(time.Since(start))
	if err != nil {
		h.metrics.IncAuthorizationOutcome("failed")
		h.writeError(w, err)
		return
	}

	// The cache gains the entry only after the grant is confirmed.
	h.store.MarkAuthorized(id, addr)
	if reduced {
		h.metrics.IncAuthorizationOutcome("reduced_assurance")
	} else {
		h.metrics.IncAuthorizationOutcome("granted")
	}

	h.log.Info("Voter authorized on-chain",
		slog.String("voter", string(id)),
		slog.String("address", interfaces.MaskAddress(addr)),
		slog.String("tx", receipt.TxHash.Hex()),
		slog.Bool("reducedAssurance", reduced))

	writeJSON(w, http.StatusOK, authorizeResponse{
		Status:           "authorized",
		TxHash:           receipt.TxHash.Hex(),
		BlockNumber:      receipt.BlockNumber,
		ReducedAssurance: reduced,
	})
}

type biometricRequest struct {
	VoterID    string    `json:"voter_id"`
	Descriptor []float64 `json:"descriptor"`
}

// HandleBiometric submits a facial descriptor for registration-or-compare
// against the identifier's stored template.
//
// URL format: POST /api/v1/biometric
func (h *Handler) HandleBiometric(w http.ResponseWriter, r *http.Request) {
	var req biometricRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if req.VoterID == "" {
		h.writeError(w, fmt.Errorf("%w: voter_id is required", interfaces.ErrInvalidInput))
		return
	}

	start := time.Now()
	result, err := h.gate.RegisterOrCompare(r.Context(), interfaces.VoterID(req.VoterID), req.Descriptor)
	h.metrics.ObserveGateDuration("biometric", time.Since(start))
	if err != nil {
		h.writeError(w, err)
		return
	}

	if result.Outcome == biometric.Rejected {
		writeJSON(w, http.StatusForbidden, map[string]any{
			"error":    "face verification failed",
			"kind":     kindBiometricReject,
			"distance": result.Distance,
		})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

type voterStatusResponse struct {
	VoterID           string `json:"voter_id"`
	DisplayName       string `json:"display_name"`
	Channel           string `json:"channel"`
	Bound             bool   `json:"bound"`
	BoundAddress      string `json:"bound_address,omitempty"`
	BiometricEnrolled bool   `json:"biometric_enrolled"`
	BiometricPassed   bool   `json:"biometric_passed"`
	GrantObserved     bool   `json:"grant_observed"`
	OnchainVerified   *bool  `json:"onchain_verified,omitempty"`
	HasVoted          *bool  `json:"has_voted,omitempty"`
}

// HandleVoterStatus reports the public status of a resolved identifier. No
// mutation. The on-chain verification flag is a best-effort ledger read:
// when the ledger is unreachable the field is simply omitted. With a
// ?proposal=<id> query the response additionally reports whether the bound
// address has voted on that proposal.
//
// URL format: GET /api/v1/voters/{voter_id}/status
func (h *Handler) HandleVoterStatus(w http.ResponseWriter, r *http.Request) {
	id := interfaces.VoterID(chi.URLParam(r, "voter_id"))
	profile, err := h.store.Resolve(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	_, granted := h.store.Authorized(id)
	resp := voterStatusResponse{
		VoterID:           string(profile.ID),
		DisplayName:       profile.DisplayName,
		Channel:           interfaces.MaskChannel(profile.ContactChannel),
		Bound:             profile.Bound(),
		BiometricEnrolled: profile.Enrolled(),
		BiometricPassed:   h.store.BiometricPassed(id),
		GrantObserved:     granted,
	}
	if profile.Bound() {
		resp.BoundAddress = interfaces.MaskAddress(profile.BoundAddress)

		if verified, err := h.ledger.IsVerified(r.Context(), profile.BoundAddress); err == nil {
			resp.OnchainVerified = &verified
		} else {
			h.log.Debug("Skipping on-chain verification status", "err", err)
		}

		if raw := r.URL.Query().Get("proposal"); raw != "" {
			proposalID, err := strconv.ParseUint(raw, 10, 64)
			if err != nil {
				h.writeError(w, fmt.Errorf("%w: malformed proposal id", interfaces.ErrInvalidInput))
				return
			}
			if voted, err := h.ledger.HasVoted(r.Context(), proposalID, profile.BoundAddress); err == nil {
				resp.HasVoted = &voted
			} else {
				h.log.Debug("Skipping vote status", "err", err)
			}
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

type proposalResponse struct {
	interfaces.ProposalSnapshot
	State string `json:"state"`
}

// HandleProposal serves a point-in-time snapshot of a proposal's derived
// state, read directly from the ledger.
//
// URL format: GET /api/v1/proposals/{proposal_id}
func (h *Handler) HandleProposal(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "proposal_id"), 10, 64)
	if err != nil {
		h.writeError(w, fmt.Errorf("%w: malformed proposal id", interfaces.ErrInvalidInput))
		return
	}

	snapshot, err := h.relay.Snapshot(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, proposalResponse{
		ProposalSnapshot: snapshot,
		State:            snapshot.State.String(),
	})
}

// HandleProposals serves snapshots of every proposal known to the ledger,
// newest first. Ids whose reads revert (created and pruned, or racing a
// concurrent creation) are skipped rather than failing the listing.
//
// URL format: GET /api/v1/proposals
func (h *Handler) HandleProposals(w http.ResponseWriter, r *http.Request) {
	next, err := h.ledger.NextProposalID(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	// next is ledger-reported; cap the preallocation so a hostile or
	// corrupted counter cannot force a huge allocation up front.
	proposals := make([]proposalResponse, 0, min(next, 128))
	for id := next; id > 0; id-- {
		snapshot, err := h.relay.Snapshot(r.Context(), id-1)
		if errors.Is(err, interfaces.ErrProposalNotFound) {
			continue
		}
		if err != nil {
			h.writeError(w, err)
			return
		}
		proposals = append(proposals, proposalResponse{
			ProposalSnapshot: snapshot,
			State:            snapshot.State.String(),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"proposals": proposals})
}

func decodeBody(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("%w: failed to read request body", interfaces.ErrInvalidInput)
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("%w: malformed JSON body", interfaces.ErrInvalidInput)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeErrorKind(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, map[string]string{"error": message, "kind": kind})
}

// writeError maps the oracle's error taxonomy onto HTTP statuses. Every
// failure reaches the caller with a machine-readable kind; nothing is
// swallowed.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var conflict *interfaces.ConflictError
	var rejected *interfaces.LedgerRejectedError
	var provider *interfaces.ProviderError

	switch {
	case errors.Is(err, interfaces.ErrProfileNotFound),
		errors.Is(err, interfaces.ErrProposalNotFound):
		writeErrorKind(w, http.StatusNotFound, kindNotFound, err.Error())

	case errors.As(err, &conflict):
		writeJSON(w, http.StatusConflict, map[string]string{
			"error":            "identifier is already linked to another wallet address",
			"kind":             kindConflict,
			"existing_address": conflict.Masked(),
		})

	case errors.Is(err, interfaces.ErrInvalidInput):
		writeErrorKind(w, http.StatusBadRequest, kindInvalidInput, err.Error())

	case errors.Is(err, interfaces.ErrTemplateExists),
		errors.Is(err, interfaces.ErrAddressInUse):
		writeErrorKind(w, http.StatusConflict, kindConflict, err.Error())

	case errors.Is(err, interfaces.ErrCodeSessionNotFound):
		writeErrorKind(w, http.StatusBadGateway, kindProviderDegraded, err.Error())

	case errors.As(err, &rejected):
		writeErrorKind(w, http.StatusBadGateway, kindLedgerRejected, rejected.Reason)

	case errors.As(err, &provider):
		h.log.Error("Provider failure", "err", err)
		writeErrorKind(w, http.StatusBadGateway, kindProviderFailure, err.Error())

	default:
		h.log.Error("Request failed", "err", err)
		writeErrorKind(w, http.StatusInternalServerError, "internal", "internal error")
	}
}
