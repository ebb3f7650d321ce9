package authn

import (
	"crypto/ed25519"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"

	"launch-ledger/internal/domain"
)

// Authentication errors. Binding mismatches (chain, launch, caller,
// unknown group) deliberately collapse into ErrInvalidRequest; only
// expiry and signature failures are distinguishable by callers.
var (
	// ErrInvalidRequest is returned for any request binding mismatch.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrInvalidSignature is returned when the signature does not verify
	// against the canonical request digest.
	ErrInvalidSignature = errors.New("invalid request signature")
)

// ExpiredRequestError is returned when a request's expiry is not
// strictly in the future of ledger time.
type ExpiredRequestError struct {
	ExpiresAt int64
	Now       int64
}

func (e *ExpiredRequestError) Error() string {
	return fmt.Sprintf("request expired: expires_at=%d now=%d", e.ExpiresAt, e.Now)
}

// CapabilityError is returned when an identity lacks a required capability.
type CapabilityError struct {
	Identity   string
	Capability Capability
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("capability denied: identity=%s capability=%s", e.Identity, e.Capability)
}

// Signature is a detached signature over a canonical request digest.
// SignerKey is the base58 ed25519 public key of the signing authority,
// Value the base58 64-byte signature.
type Signature struct {
	SignerKey string
	Value     string
}

// GroupDirectory answers group existence questions during request
// validation. The ledger implements it.
type GroupDirectory interface {
	HasGroup(groupID string) bool
}

// Verifier authenticates signed, chain/launch-bound, time-boxed
// requests. It has no state side effects.
type Verifier struct {
	launchID string
	chainID  string
	groups   GroupDirectory
	signers  Checker
}

// NewVerifier creates a verifier bound to one launch deployment.
func NewVerifier(launchID, chainID string, groups GroupDirectory, signers Checker) *Verifier {
	return &Verifier{
		launchID: launchID,
		chainID:  chainID,
		groups:   groups,
		signers:  signers,
	}
}

// bindings are the signature-independent checks shared by all request types.
type bindings struct {
	chainID     string
	launchID    string
	groupID     string
	userAddress string
	expiresAt   int64
}

// check validates the request bindings against this deployment and the
// actual caller. Expiry is reported distinctly; every other mismatch
// collapses into ErrInvalidRequest.
func (v *Verifier) check(b bindings, caller string, now int64) error {
	if b.expiresAt <= now {
		return &ExpiredRequestError{ExpiresAt: b.expiresAt, Now: now}
	}
	if b.chainID != v.chainID ||
		b.launchID != v.launchID ||
		b.userAddress == "" ||
		b.userAddress != caller ||
		!v.groups.HasGroup(b.groupID) {
		return ErrInvalidRequest
	}
	return nil
}

// verifySignature checks sig against digest and requires the signer to
// hold the signer capability at verification time.
func (v *Verifier) verifySignature(digest [32]byte, sig Signature) error {
	key, err := base58.Decode(sig.SignerKey)
	if err != nil || len(key) != ed25519.PublicKeySize {
		return ErrInvalidSignature
	}
	// Reject non-canonical curve points before verifying.
	if _, err := new(edwards25519.Point).SetBytes(key); err != nil {
		return ErrInvalidSignature
	}

	raw, err := base58.Decode(sig.Value)
	if err != nil || len(raw) != ed25519.SignatureSize {
		return ErrInvalidSignature
	}

	if !ed25519.Verify(ed25519.PublicKey(key), digest[:], raw) {
		return ErrInvalidSignature
	}

	if !v.signers.HasCapability(sig.SignerKey, CapabilitySigner) {
		return &CapabilityError{Identity: sig.SignerKey, Capability: CapabilitySigner}
	}
	return nil
}

// VerifyParticipation authenticates a participation request from caller.
func (v *Verifier) VerifyParticipation(r *domain.ParticipationRequest, sig Signature, caller string, now int64) error {
	b := bindings{r.ChainID, r.LaunchID, r.GroupID, r.UserAddress, r.RequestExpiresAt}
	if err := v.check(b, caller, now); err != nil {
		return err
	}
	return v.verifySignature(DigestParticipation(r), sig)
}

// VerifyUpdate authenticates an update request from caller.
func (v *Verifier) VerifyUpdate(r *domain.UpdateParticipationRequest, sig Signature, caller string, now int64) error {
	b := bindings{r.ChainID, r.LaunchID, r.GroupID, r.UserAddress, r.RequestExpiresAt}
	if err := v.check(b, caller, now); err != nil {
		return err
	}
	return v.verifySignature(DigestUpdate(r), sig)
}

// VerifyCancel authenticates a cancel request from caller.
func (v *Verifier) VerifyCancel(r *domain.CancelParticipationRequest, sig Signature, caller string, now int64) error {
	b := bindings{r.ChainID, r.LaunchID, r.GroupID, r.UserAddress, r.RequestExpiresAt}
	if err := v.check(b, caller, now); err != nil {
		return err
	}
	return v.verifySignature(DigestCancel(r), sig)
}

// VerifyClaimRefund authenticates a refund claim request from caller.
func (v *Verifier) VerifyClaimRefund(r *domain.ClaimRefundRequest, sig Signature, caller string, now int64) error {
	b := bindings{r.ChainID, r.LaunchID, r.GroupID, r.UserAddress, r.RequestExpiresAt}
	if err := v.check(b, caller, now); err != nil {
		return err
	}
	return v.verifySignature(DigestClaimRefund(r), sig)
}

// Sign produces a detached signature over digest with the given ed25519
// private key, returning it in wire form. Intended for signing tools
// and tests; the verifier never needs a private key.
func Sign(priv ed25519.PrivateKey, digest [32]byte) Signature {
	pub := priv.Public().(ed25519.PublicKey)
	raw := ed25519.Sign(priv, digest[:])
	return Signature{
		SignerKey: base58.Encode(pub),
		Value:     base58.Encode(raw),
	}
}
