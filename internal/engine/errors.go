package engine

import (
	"errors"
	"fmt"
	"math/big"

	"launch-ledger/internal/domain"
)

// Engine-level failure conditions. Every error aborts the whole call
// and leaves ledger state unchanged, except BatchRefundPartialError,
// which names the refunds already committed before a transfer failed.
// Callers are expected to inspect the specific condition and resubmit
// a corrected, freshly-signed request. Binding-style failures reuse
// authn.ErrInvalidRequest.
var (
	// ErrEnginePaused is returned while the engine-wide pause flag is set.
	ErrEnginePaused = errors.New("engine paused")

	// ErrReentrantCall is returned on nested entry into a mutating
	// operation while another one is in progress.
	ErrReentrantCall = errors.New("operation already in progress")
)

// ParticipationAlreadyExistsError reports reuse of a participation id.
type ParticipationAlreadyExistsError struct {
	ParticipationID string
}

func (e *ParticipationAlreadyExistsError) Error() string {
	return fmt.Sprintf("participation already exists: %s", e.ParticipationID)
}

// MaxUserParticipationsReachedError reports a second participation by a
// user in a group that does not finalize at participation.
type MaxUserParticipationsReachedError struct {
	GroupID string
	UserID  string
}

func (e *MaxUserParticipationsReachedError) Error() string {
	return fmt.Sprintf("max user participations reached: group=%s user=%s", e.GroupID, e.UserID)
}

// MinUserTokenAllocationError reports a user total falling below the
// group's per-user minimum.
type MinUserTokenAllocationError struct {
	GroupID   string
	UserID    string
	Current   *big.Int
	Requested *big.Int
}

func (e *MinUserTokenAllocationError) Error() string {
	return fmt.Sprintf("below min user token allocation: group=%s user=%s current=%s requested=%s",
		e.GroupID, e.UserID, e.Current, e.Requested)
}

// MaxUserTokenAllocationError reports a user total exceeding the
// group's per-user maximum.
type MaxUserTokenAllocationError struct {
	GroupID   string
	UserID    string
	Current   *big.Int
	Requested *big.Int
}

func (e *MaxUserTokenAllocationError) Error() string {
	return fmt.Sprintf("above max user token allocation: group=%s user=%s current=%s requested=%s",
		e.GroupID, e.UserID, e.Current, e.Requested)
}

// MaxTokenAllocationReachedError reports the group allocation cap being hit.
type MaxTokenAllocationReachedError struct {
	GroupID string
}

func (e *MaxTokenAllocationReachedError) Error() string {
	return fmt.Sprintf("max token allocation reached: group=%s", e.GroupID)
}

// CurrencyMismatchError reports an update in a different currency than
// the prior participation's.
type CurrencyMismatchError struct {
	Expected string
	Actual   string
}

func (e *CurrencyMismatchError) Error() string {
	return fmt.Sprintf("currency mismatch: expected=%s actual=%s", e.Expected, e.Actual)
}

// UserIDMismatchError reports a request user that does not match the
// participation record's user.
type UserIDMismatchError struct {
	Expected string
	Actual   string
}

func (e *UserIDMismatchError) Error() string {
	return fmt.Sprintf("user id mismatch: expected=%s actual=%s", e.Expected, e.Actual)
}

// InvalidLaunchGroupStatusError reports a group in the wrong status for
// the attempted operation.
type InvalidLaunchGroupStatusError struct {
	GroupID  string
	Expected domain.GroupStatus
	Actual   domain.GroupStatus
}

func (e *InvalidLaunchGroupStatusError) Error() string {
	return fmt.Sprintf("invalid launch group status: group=%s expected=%s actual=%s",
		e.GroupID, e.Expected, e.Actual)
}

// ParticipationUpdatesNotAllowedError reports an update or cancel
// against a finalized participation or a finalize-at-participation group.
type ParticipationUpdatesNotAllowedError struct {
	GroupID         string
	ParticipationID string
}

func (e *ParticipationUpdatesNotAllowedError) Error() string {
	return fmt.Sprintf("participation updates not allowed: group=%s participation=%s",
		e.GroupID, e.ParticipationID)
}

// InvalidRefundRequestError reports a refund of a finalized, empty, or
// never-funded participation.
type InvalidRefundRequestError struct {
	ParticipationID string
	UserID          string
}

func (e *InvalidRefundRequestError) Error() string {
	return fmt.Sprintf("invalid refund request: participation=%s user=%s", e.ParticipationID, e.UserID)
}

// BatchRefundPartialError reports a batch refund that stopped on a
// failed transfer after one or more refunds had already committed.
// Refunded lists the participation ids paid and tombstoned before the
// failure; ParticipationID is the id whose transfer failed. The ids in
// Refunded stay refunded and must not be resubmitted.
type BatchRefundPartialError struct {
	Refunded        []string
	ParticipationID string
	Err             error
}

func (e *BatchRefundPartialError) Error() string {
	return fmt.Sprintf("batch refund stopped at participation=%s after %d refunds: %v",
		e.ParticipationID, len(e.Refunded), e.Err)
}

func (e *BatchRefundPartialError) Unwrap() error {
	return e.Err
}

// InvalidWinnerError reports winner selection of a finalized, empty, or
// never-funded participation.
type InvalidWinnerError struct {
	ParticipationID string
	UserID          string
}

func (e *InvalidWinnerError) Error() string {
	return fmt.Sprintf("invalid winner: participation=%s user=%s", e.ParticipationID, e.UserID)
}

// InvalidWithdrawalAmountError reports a withdrawal exceeding the
// withdrawable balance.
type InvalidWithdrawalAmountError struct {
	Requested *big.Int
	Available *big.Int
}

func (e *InvalidWithdrawalAmountError) Error() string {
	return fmt.Sprintf("invalid withdrawal amount: requested=%s available=%s", e.Requested, e.Available)
}
