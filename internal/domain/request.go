package domain

import "math/big"

// Signed request payloads consumed by the request authenticator.
// Every field is covered by the detached signature; ChainID and
// LaunchID bind a request to one deployment, RequestExpiresAt bounds
// its lifetime.

// ParticipationRequest asks to commit funds toward a new participation.
type ParticipationRequest struct {
	ChainID          string
	LaunchID         string
	GroupID          string
	ParticipationID  string
	UserID           string
	UserAddress      string
	TokenAmount      *big.Int
	CurrencyID       string
	RequestExpiresAt int64 // unix seconds, strictly after ledger time
}

// UpdateParticipationRequest replaces a prior participation with a new
// one at a different token amount, settling the funds difference.
type UpdateParticipationRequest struct {
	ChainID             string
	LaunchID            string
	GroupID             string
	PrevParticipationID string
	NewParticipationID  string
	UserID              string
	UserAddress         string
	TokenAmount         *big.Int
	CurrencyID          string
	RequestExpiresAt    int64
}

// CancelParticipationRequest asks to cancel an unfinalized participation
// and refund its full currency amount.
type CancelParticipationRequest struct {
	ChainID          string
	LaunchID         string
	GroupID          string
	ParticipationID  string
	UserID           string
	UserAddress      string
	RequestExpiresAt int64
}

// ClaimRefundRequest asks to refund an unfinalized participation after
// its group has completed.
type ClaimRefundRequest struct {
	ChainID          string
	LaunchID         string
	GroupID          string
	ParticipationID  string
	UserID           string
	UserAddress      string
	RequestExpiresAt int64
}
