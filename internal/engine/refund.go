package engine

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"launch-ledger/internal/authn"
	"launch-ledger/internal/domain"
)

// ClaimRefund refunds an unfinalized, still-funded participation after
// its group has completed. The full currency amount goes back to the
// stored payer and the record is tombstoned.
func (e *Engine) ClaimRefund(ctx context.Context, caller string, req *domain.ClaimRefundRequest, sig authn.Signature) (err error) {
	start := time.Now()
	defer func() { e.observe("claim_refund", start, err) }()

	if err = e.enter(); err != nil {
		return err
	}
	defer e.exit()

	if err = e.requireNotPaused(); err != nil {
		return err
	}
	if _, err = e.groupInStatus(req.GroupID, domain.GroupStatusCompleted); err != nil {
		return err
	}
	now := e.now()
	if err = e.verifier.VerifyClaimRefund(req, sig, caller, now); err != nil {
		return err
	}

	info := e.ledger.Participation(req.ParticipationID)
	if err = validateRefund(info); err != nil {
		return err
	}
	if err = e.push(ctx, info.CurrencyID, info.PayerAddress, info.CurrencyAmount); err != nil {
		return err
	}
	e.commitRefund(ctx, req.GroupID, info, now)
	return nil
}

// BatchRefund refunds several participations of a completed group in
// one call. The caller must hold the operator capability. Every id is
// validated before the first refund moves, and any invalid id
// (including a repeated one) rejects the whole call with no effects.
// Payouts then commit one by one; if a transfer fails mid-batch the
// earlier refunds stand and a BatchRefundPartialError names them.
func (e *Engine) BatchRefund(ctx context.Context, caller, groupID string, participationIDs []string) (err error) {
	start := time.Now()
	defer func() { e.observe("batch_refund", start, err) }()

	if err = e.enter(); err != nil {
		return err
	}
	defer e.exit()

	if err = e.requireCapability(caller, authn.CapabilityOperator); err != nil {
		return err
	}
	if err = e.requireNotPaused(); err != nil {
		return err
	}
	if _, err = e.groupInStatus(groupID, domain.GroupStatusCompleted); err != nil {
		return err
	}

	now := e.now()
	seen := make(map[string]bool, len(participationIDs))
	infos := make([]*domain.ParticipationInfo, 0, len(participationIDs))
	for _, id := range participationIDs {
		info := e.ledger.Participation(id)
		if seen[id] {
			return &InvalidRefundRequestError{ParticipationID: id, UserID: info.UserID}
		}
		seen[id] = true
		if err = validateRefund(info); err != nil {
			return err
		}
		infos = append(infos, info)
	}

	refunded := make([]string, 0, len(infos))
	for _, info := range infos {
		if pushErr := e.push(ctx, info.CurrencyID, info.PayerAddress, info.CurrencyAmount); pushErr != nil {
			if len(refunded) == 0 {
				err = pushErr
				return err
			}
			err = &BatchRefundPartialError{
				Refunded:        refunded,
				ParticipationID: info.ParticipationID,
				Err:             pushErr,
			}
			return err
		}
		e.commitRefund(ctx, groupID, info, now)
		refunded = append(refunded, info.ParticipationID)
	}
	return nil
}

// validateRefund is the only guard against refunding an already
// refunded, finalized, or never-funded participation.
func validateRefund(info *domain.ParticipationInfo) error {
	if info.IsFinalized || info.TokenAmount.Sign() == 0 || info.CurrencyAmount.Sign() == 0 {
		return &InvalidRefundRequestError{ParticipationID: info.ParticipationID, UserID: info.UserID}
	}
	return nil
}

// commitRefund applies the ledger mutations and audit record for one
// already-paid-out refund.
func (e *Engine) commitRefund(ctx context.Context, groupID string, info *domain.ParticipationInfo, now int64) {
	userTotal := e.ledger.UserTokens(groupID, info.UserID)
	e.ledger.SetUserTokens(groupID, info.UserID, new(big.Int).Sub(userTotal, info.TokenAmount))

	refunded := new(big.Int).Set(info.CurrencyAmount)
	tokens := new(big.Int).Set(info.TokenAmount)
	info.TokenAmount = new(big.Int)
	info.CurrencyAmount = new(big.Int)
	e.ledger.PutParticipation(info)

	if e.metrics != nil {
		e.metrics.RefundsTotal.Inc()
	}
	e.emit(ctx, &domain.LaunchEvent{
		Kind:            domain.EventRefundClaimed,
		GroupID:         groupID,
		ParticipationID: info.ParticipationID,
		UserID:          info.UserID,
		UserAddress:     info.PayerAddress,
		CurrencyID:      info.CurrencyID,
		TokenAmount:     tokens,
		CurrencyAmount:  refunded,
		EmittedAt:       now,
	})
}

// FinalizeWinners locks in the given participations of an ACTIVE,
// non-finalizing group as winners. The allocation cap is enforced
// cumulatively across the batch, and the group's sold total commits
// once after the whole batch validates. No funds move.
func (e *Engine) FinalizeWinners(ctx context.Context, caller, groupID string, participationIDs []string) (err error) {
	start := time.Now()
	defer func() { e.observe("finalize_winners", start, err) }()

	if err = e.enter(); err != nil {
		return err
	}
	defer e.exit()

	if err = e.requireCapability(caller, authn.CapabilityOperator); err != nil {
		return err
	}
	if err = e.requireNotPaused(); err != nil {
		return err
	}
	g, err := e.groupInStatus(groupID, domain.GroupStatusActive)
	if err != nil {
		return err
	}
	if g.FinalizesAtParticipation {
		return fmt.Errorf("%w: group %s finalizes at participation", authn.ErrInvalidRequest, groupID)
	}

	sold := e.ledger.TokensSold(groupID)
	seen := make(map[string]bool, len(participationIDs))
	winners := make([]*domain.ParticipationInfo, 0, len(participationIDs))
	for _, id := range participationIDs {
		info := e.ledger.Participation(id)
		if seen[id] || info.IsFinalized || info.TokenAmount.Sign() == 0 || info.CurrencyAmount.Sign() == 0 {
			return &InvalidWinnerError{ParticipationID: id, UserID: info.UserID}
		}
		seen[id] = true
		sold.Add(sold, info.TokenAmount)
		if sold.Cmp(g.MaxTokenAllocation) > 0 {
			return &MaxTokenAllocationReachedError{GroupID: groupID}
		}
		winners = append(winners, info)
	}

	now := e.now()
	for _, info := range winners {
		e.ledger.AddWithdrawable(info.CurrencyID, info.CurrencyAmount)
		info.IsFinalized = true
		e.ledger.PutParticipation(info)

		if e.metrics != nil {
			e.metrics.WinnersTotal.Inc()
		}
		e.emit(ctx, &domain.LaunchEvent{
			Kind:            domain.EventWinnerSelected,
			GroupID:         groupID,
			ParticipationID: info.ParticipationID,
			UserID:          info.UserID,
			UserAddress:     info.PayerAddress,
			CurrencyID:      info.CurrencyID,
			TokenAmount:     new(big.Int).Set(info.TokenAmount),
			CurrencyAmount:  new(big.Int).Set(info.CurrencyAmount),
			EmittedAt:       now,
		})
	}
	e.ledger.SetTokensSold(groupID, sold)
	return nil
}

// Withdraw moves amount of currency from custody to the configured
// withdrawal destination. Allowed only once every registered group has
// completed, and only up to the finalized withdrawable balance.
func (e *Engine) Withdraw(ctx context.Context, caller, currencyID string, amount *big.Int) (err error) {
	start := time.Now()
	defer func() { e.observe("withdraw", start, err) }()

	if err = e.enter(); err != nil {
		return err
	}
	defer e.exit()

	if err = e.requireCapability(caller, authn.CapabilityWithdrawer); err != nil {
		return err
	}
	if err = e.requireNotPaused(); err != nil {
		return err
	}
	for _, id := range e.ledger.GroupIDs() {
		g, _ := e.ledger.Group(id)
		if g.Status != domain.GroupStatusCompleted {
			return &InvalidLaunchGroupStatusError{
				GroupID: id, Expected: domain.GroupStatusCompleted, Actual: g.Status,
			}
		}
	}

	available := e.ledger.Withdrawable(currencyID)
	if amount.Cmp(available) > 0 {
		return &InvalidWithdrawalAmountError{Requested: new(big.Int).Set(amount), Available: available}
	}

	destination := e.ledger.WithdrawalAddress()
	if err = e.push(ctx, currencyID, destination, amount); err != nil {
		return err
	}
	e.ledger.SubWithdrawable(currencyID, amount)

	e.emit(ctx, &domain.LaunchEvent{
		Kind:           domain.EventWithdrawal,
		UserAddress:    destination,
		CurrencyID:     currencyID,
		CurrencyAmount: new(big.Int).Set(amount),
		EmittedAt:      e.now(),
	})
	return nil
}
