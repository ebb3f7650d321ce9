package authn

import (
	"crypto/sha256"
	"encoding/binary"
	"math/big"

	"launch-ledger/internal/domain"
)

// Canonical request encoding. Every signed payload is serialized as a
// domain tag followed by its fields in declaration order, each field
// length-prefixed, then hashed with SHA-256. Signatures are produced
// and verified over the 32-byte digest.

// Domain tags keep digests of different request types disjoint.
const (
	tagParticipate = "launch-ledger/participate/v1"
	tagUpdate      = "launch-ledger/update/v1"
	tagCancel      = "launch-ledger/cancel/v1"
	tagClaimRefund = "launch-ledger/claim-refund/v1"
)

type canonicalBuf struct {
	data []byte
}

func (b *canonicalBuf) writeBytes(p []byte) {
	b.data = binary.AppendUvarint(b.data, uint64(len(p)))
	b.data = append(b.data, p...)
}

func (b *canonicalBuf) writeString(s string) {
	b.writeBytes([]byte(s))
}

func (b *canonicalBuf) writeAmount(v *big.Int) {
	if v == nil {
		b.writeBytes(nil)
		return
	}
	b.writeBytes(v.Bytes())
}

func (b *canonicalBuf) writeInt64(v int64) {
	var p [8]byte
	binary.BigEndian.PutUint64(p[:], uint64(v))
	b.writeBytes(p[:])
}

func (b *canonicalBuf) digest() [32]byte {
	return sha256.Sum256(b.data)
}

// DigestParticipation computes the signing digest of a participation request.
func DigestParticipation(r *domain.ParticipationRequest) [32]byte {
	b := &canonicalBuf{}
	b.writeString(tagParticipate)
	b.writeString(r.ChainID)
	b.writeString(r.LaunchID)
	b.writeString(r.GroupID)
	b.writeString(r.ParticipationID)
	b.writeString(r.UserID)
	b.writeString(r.UserAddress)
	b.writeAmount(r.TokenAmount)
	b.writeString(r.CurrencyID)
	b.writeInt64(r.RequestExpiresAt)
	return b.digest()
}

// DigestUpdate computes the signing digest of an update request.
func DigestUpdate(r *domain.UpdateParticipationRequest) [32]byte {
	b := &canonicalBuf{}
	b.writeString(tagUpdate)
	b.writeString(r.ChainID)
	b.writeString(r.LaunchID)
	b.writeString(r.GroupID)
	b.writeString(r.PrevParticipationID)
	b.writeString(r.NewParticipationID)
	b.writeString(r.UserID)
	b.writeString(r.UserAddress)
	b.writeAmount(r.TokenAmount)
	b.writeString(r.CurrencyID)
	b.writeInt64(r.RequestExpiresAt)
	return b.digest()
}

// DigestCancel computes the signing digest of a cancel request.
func DigestCancel(r *domain.CancelParticipationRequest) [32]byte {
	b := &canonicalBuf{}
	b.writeString(tagCancel)
	b.writeString(r.ChainID)
	b.writeString(r.LaunchID)
	b.writeString(r.GroupID)
	b.writeString(r.ParticipationID)
	b.writeString(r.UserID)
	b.writeString(r.UserAddress)
	b.writeInt64(r.RequestExpiresAt)
	return b.digest()
}

// DigestClaimRefund computes the signing digest of a refund claim request.
func DigestClaimRefund(r *domain.ClaimRefundRequest) [32]byte {
	b := &canonicalBuf{}
	b.writeString(tagClaimRefund)
	b.writeString(r.ChainID)
	b.writeString(r.LaunchID)
	b.writeString(r.GroupID)
	b.writeString(r.ParticipationID)
	b.writeString(r.UserID)
	b.writeString(r.UserAddress)
	b.writeInt64(r.RequestExpiresAt)
	return b.digest()
}
