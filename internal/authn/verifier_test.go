package authn

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"math/big"
	"testing"

	"github.com/mr-tron/base58"

	"launch-ledger/internal/domain"
)

type staticGroups map[string]bool

func (g staticGroups) HasGroup(groupID string) bool { return g[groupID] }

func newTestSigner(t *testing.T) (ed25519.PrivateKey, string) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return priv, base58.Encode(pub)
}

func testRequest() *domain.ParticipationRequest {
	return &domain.ParticipationRequest{
		ChainID:          "chain-1",
		LaunchID:         "launch-1",
		GroupID:          "group-a",
		ParticipationID:  "part-1",
		UserID:           "user-1",
		UserAddress:      "Caller1",
		TokenAmount:      big.NewInt(100),
		CurrencyID:       "USDC",
		RequestExpiresAt: 1000,
	}
}

func newTestVerifier(t *testing.T) (*Verifier, ed25519.PrivateKey) {
	t.Helper()
	priv, pubKey := newTestSigner(t)
	signers := NewMemoryChecker()
	signers.Grant(pubKey, CapabilitySigner)
	v := NewVerifier("launch-1", "chain-1", staticGroups{"group-a": true}, signers)
	return v, priv
}

func TestVerifyParticipation_Valid(t *testing.T) {
	v, priv := newTestVerifier(t)
	r := testRequest()
	sig := Sign(priv, DigestParticipation(r))

	if err := v.VerifyParticipation(r, sig, "Caller1", 500); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}
}

func TestVerifyParticipation_Expired(t *testing.T) {
	v, priv := newTestVerifier(t)
	r := testRequest()
	sig := Sign(priv, DigestParticipation(r))

	// Expiry must be strictly in the future
	err := v.VerifyParticipation(r, sig, "Caller1", 1000)
	var expired *ExpiredRequestError
	if !errors.As(err, &expired) {
		t.Fatalf("expected ExpiredRequestError, got %v", err)
	}
	if expired.ExpiresAt != 1000 || expired.Now != 1000 {
		t.Errorf("unexpected fields: %+v", expired)
	}
}

func TestVerifyParticipation_BindingMismatches(t *testing.T) {
	v, priv := newTestVerifier(t)

	cases := []struct {
		name   string
		mutate func(*domain.ParticipationRequest)
		caller string
	}{
		{"wrong chain", func(r *domain.ParticipationRequest) { r.ChainID = "chain-2" }, "Caller1"},
		{"wrong launch", func(r *domain.ParticipationRequest) { r.LaunchID = "launch-2" }, "Caller1"},
		{"unknown group", func(r *domain.ParticipationRequest) { r.GroupID = "group-x" }, "Caller1"},
		{"empty user address", func(r *domain.ParticipationRequest) { r.UserAddress = "" }, ""},
		{"caller mismatch", func(r *domain.ParticipationRequest) {}, "Caller2"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := testRequest()
			tc.mutate(r)
			sig := Sign(priv, DigestParticipation(r))

			err := v.VerifyParticipation(r, sig, tc.caller, 500)
			if !errors.Is(err, ErrInvalidRequest) {
				t.Errorf("expected ErrInvalidRequest, got %v", err)
			}
		})
	}
}

func TestVerifyParticipation_TamperedField(t *testing.T) {
	v, priv := newTestVerifier(t)
	r := testRequest()
	sig := Sign(priv, DigestParticipation(r))

	// Any signed field changed after signing invalidates the signature
	r.TokenAmount = big.NewInt(101)
	err := v.VerifyParticipation(r, sig, "Caller1", 500)
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestVerifyParticipation_WrongKey(t *testing.T) {
	v, _ := newTestVerifier(t)
	otherPriv, _ := newTestSigner(t)

	r := testRequest()
	sig := Sign(otherPriv, DigestParticipation(r))

	// Signature verifies against its own key, but that key holds no
	// signer capability.
	err := v.VerifyParticipation(r, sig, "Caller1", 500)
	var capErr *CapabilityError
	if !errors.As(err, &capErr) {
		t.Fatalf("expected CapabilityError, got %v", err)
	}
	if capErr.Capability != CapabilitySigner {
		t.Errorf("expected signer capability, got %s", capErr.Capability)
	}
}

func TestVerifyParticipation_RevokedSigner(t *testing.T) {
	priv, pubKey := newTestSigner(t)
	signers := NewMemoryChecker()
	signers.Grant(pubKey, CapabilitySigner)
	v := NewVerifier("launch-1", "chain-1", staticGroups{"group-a": true}, signers)

	r := testRequest()
	sig := Sign(priv, DigestParticipation(r))
	if err := v.VerifyParticipation(r, sig, "Caller1", 500); err != nil {
		t.Fatalf("expected valid before revocation, got %v", err)
	}

	// Capability is checked at verification time, not signing time
	signers.Revoke(pubKey, CapabilitySigner)
	err := v.VerifyParticipation(r, sig, "Caller1", 500)
	var capErr *CapabilityError
	if !errors.As(err, &capErr) {
		t.Fatalf("expected CapabilityError after revocation, got %v", err)
	}
}

func TestVerifyParticipation_MalformedSignature(t *testing.T) {
	v, priv := newTestVerifier(t)
	r := testRequest()
	good := Sign(priv, DigestParticipation(r))

	cases := []struct {
		name string
		sig  Signature
	}{
		{"garbage key", Signature{SignerKey: "not-base58-!!!", Value: good.Value}},
		{"short key", Signature{SignerKey: base58.Encode([]byte{1, 2, 3}), Value: good.Value}},
		{"garbage value", Signature{SignerKey: good.SignerKey, Value: "not-base58-!!!"}},
		{"short value", Signature{SignerKey: good.SignerKey, Value: base58.Encode([]byte{1, 2, 3})}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := v.VerifyParticipation(r, tc.sig, "Caller1", 500)
			if !errors.Is(err, ErrInvalidSignature) {
				t.Errorf("expected ErrInvalidSignature, got %v", err)
			}
		})
	}
}

func TestVerifyParticipation_NonCanonicalKey(t *testing.T) {
	v, priv := newTestVerifier(t)
	r := testRequest()
	good := Sign(priv, DigestParticipation(r))

	// All-0xFF is not a canonical curve point encoding
	bad := make([]byte, ed25519.PublicKeySize)
	for i := range bad {
		bad[i] = 0xFF
	}
	sig := Signature{SignerKey: base58.Encode(bad), Value: good.Value}

	err := v.VerifyParticipation(r, sig, "Caller1", 500)
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestVerifyUpdate_Valid(t *testing.T) {
	v, priv := newTestVerifier(t)

	r := &domain.UpdateParticipationRequest{
		ChainID:             "chain-1",
		LaunchID:            "launch-1",
		GroupID:             "group-a",
		PrevParticipationID: "part-1",
		NewParticipationID:  "part-2",
		UserID:              "user-1",
		UserAddress:         "Caller1",
		TokenAmount:         big.NewInt(200),
		CurrencyID:          "USDC",
		RequestExpiresAt:    1000,
	}
	sig := Sign(priv, DigestUpdate(r))

	if err := v.VerifyUpdate(r, sig, "Caller1", 500); err != nil {
		t.Fatalf("expected valid update, got %v", err)
	}

	// Swapping prev/new ids breaks the signature
	r.PrevParticipationID, r.NewParticipationID = r.NewParticipationID, r.PrevParticipationID
	if err := v.VerifyUpdate(r, sig, "Caller1", 500); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestVerifyCancelAndClaimRefund_DistinctDigests(t *testing.T) {
	v, priv := newTestVerifier(t)

	cancel := &domain.CancelParticipationRequest{
		ChainID:          "chain-1",
		LaunchID:         "launch-1",
		GroupID:          "group-a",
		ParticipationID:  "part-1",
		UserID:           "user-1",
		UserAddress:      "Caller1",
		RequestExpiresAt: 1000,
	}
	claim := &domain.ClaimRefundRequest{
		ChainID:          "chain-1",
		LaunchID:         "launch-1",
		GroupID:          "group-a",
		ParticipationID:  "part-1",
		UserID:           "user-1",
		UserAddress:      "Caller1",
		RequestExpiresAt: 1000,
	}

	cancelSig := Sign(priv, DigestCancel(cancel))
	if err := v.VerifyCancel(cancel, cancelSig, "Caller1", 500); err != nil {
		t.Fatalf("expected valid cancel, got %v", err)
	}

	// Domain separation: a cancel signature must not authorize a claim
	// over identical fields.
	if err := v.VerifyClaimRefund(claim, cancelSig, "Caller1", 500); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature for cross-operation replay, got %v", err)
	}

	claimSig := Sign(priv, DigestClaimRefund(claim))
	if err := v.VerifyClaimRefund(claim, claimSig, "Caller1", 500); err != nil {
		t.Fatalf("expected valid claim, got %v", err)
	}
}

func TestMemoryChecker(t *testing.T) {
	c := NewMemoryChecker()

	if c.HasCapability("id-1", CapabilityManager) {
		t.Error("expected no capability before grant")
	}

	c.Grant("id-1", CapabilityManager)
	c.Grant("id-1", CapabilityOperator)
	if !c.HasCapability("id-1", CapabilityManager) || !c.HasCapability("id-1", CapabilityOperator) {
		t.Error("expected granted capabilities to hold")
	}
	if c.HasCapability("id-1", CapabilityWithdrawer) {
		t.Error("expected ungranted capability to be denied")
	}

	c.Revoke("id-1", CapabilityManager)
	if c.HasCapability("id-1", CapabilityManager) {
		t.Error("expected revoked capability to be denied")
	}
	if !c.HasCapability("id-1", CapabilityOperator) {
		t.Error("expected unrelated capability to survive revocation")
	}
}
