package engine

import (
	"context"
	"math/big"
	"time"

	"launch-ledger/internal/authn"
	"launch-ledger/internal/domain"
	"launch-ledger/internal/ledger"
)

// Participate commits funds from caller toward a new participation.
// The group must be ACTIVE with its window open, the request signed by
// a signer-capability holder, and the resulting user total within the
// group's per-user caps. In a finalize-at-participation group the
// record is locked in immediately and counts toward the allocation cap.
func (e *Engine) Participate(ctx context.Context, caller string, req *domain.ParticipationRequest, sig authn.Signature) (p *domain.ParticipationInfo, err error) {
	start := time.Now()
	defer func() { e.observe("participate", start, err) }()

	if err = e.enter(); err != nil {
		return nil, err
	}
	defer e.exit()

	if err = e.requireNotPaused(); err != nil {
		return nil, err
	}
	g, err := e.groupInStatus(req.GroupID, domain.GroupStatusActive)
	if err != nil {
		return nil, err
	}
	now := e.now()
	if err = e.verifier.VerifyParticipation(req, sig, caller, now); err != nil {
		return nil, err
	}
	if err = e.requireWindowOpen(g, now); err != nil {
		return nil, err
	}
	priceBps, err := e.validCurrency(req.GroupID, req.CurrencyID)
	if err != nil {
		return nil, err
	}

	if e.ledger.Participation(req.ParticipationID).Exists() {
		return nil, &ParticipationAlreadyExistsError{ParticipationID: req.ParticipationID}
	}

	userTokens := e.ledger.UserTokens(req.GroupID, req.UserID)
	// Non-finalizing groups permit one active participation per user;
	// finalizing groups intentionally permit several, each locked in
	// on its own.
	if !g.FinalizesAtParticipation && userTokens.Sign() > 0 {
		return nil, &MaxUserParticipationsReachedError{GroupID: req.GroupID, UserID: req.UserID}
	}

	newTotal := new(big.Int).Add(userTokens, req.TokenAmount)
	if newTotal.Cmp(g.MinTokenAmountPerUser) < 0 {
		return nil, &MinUserTokenAllocationError{
			GroupID: req.GroupID, UserID: req.UserID,
			Current: userTokens, Requested: req.TokenAmount,
		}
	}
	if newTotal.Cmp(g.MaxTokenAmountPerUser) > 0 {
		return nil, &MaxUserTokenAllocationError{
			GroupID: req.GroupID, UserID: req.UserID,
			Current: userTokens, Requested: req.TokenAmount,
		}
	}

	currencyAmount := e.currencyAmount(priceBps, req.TokenAmount)

	if g.FinalizesAtParticipation {
		sold := e.ledger.TokensSold(req.GroupID)
		if new(big.Int).Add(sold, req.TokenAmount).Cmp(g.MaxTokenAllocation) > 0 {
			return nil, &MaxTokenAllocationReachedError{GroupID: req.GroupID}
		}
	}

	// Funds move before any ledger write so a failed transfer aborts
	// with no partial state.
	if err = e.pull(ctx, req.CurrencyID, caller, currencyAmount); err != nil {
		return nil, err
	}

	info := &domain.ParticipationInfo{
		ParticipationID: req.ParticipationID,
		GroupID:         req.GroupID,
		UserID:          req.UserID,
		TokenAmount:     new(big.Int).Set(req.TokenAmount),
		CurrencyAmount:  currencyAmount,
		CurrencyID:      req.CurrencyID,
		PayerAddress:    caller,
		IsFinalized:     g.FinalizesAtParticipation,
	}
	if g.FinalizesAtParticipation {
		e.ledger.AddWithdrawable(req.CurrencyID, currencyAmount)
		e.ledger.AddTokensSold(req.GroupID, req.TokenAmount)
	}
	e.ledger.PutParticipation(info)
	e.ledger.SetUserTokens(req.GroupID, req.UserID, newTotal)

	if e.metrics != nil {
		e.metrics.ParticipationsTotal.Inc()
	}
	e.emit(ctx, &domain.LaunchEvent{
		Kind:            domain.EventParticipationRegistered,
		GroupID:         req.GroupID,
		ParticipationID: req.ParticipationID,
		UserID:          req.UserID,
		UserAddress:     caller,
		CurrencyID:      req.CurrencyID,
		TokenAmount:     new(big.Int).Set(req.TokenAmount),
		CurrencyAmount:  new(big.Int).Set(currencyAmount),
		EmittedAt:       now,
	})
	return info.Clone(), nil
}

// UpdateParticipation replaces an unfinalized participation with a new
// record at the requested token amount and settles the funds difference
// with the payer.
//
// The increase/decrease branches compare the currency-unit delta against
// the token-unit user aggregate. That unit mixture is preserved from the
// reference accounting deliberately; see the engine tests that document
// it as a known discrepancy.
func (e *Engine) UpdateParticipation(ctx context.Context, caller string, req *domain.UpdateParticipationRequest, sig authn.Signature) (p *domain.ParticipationInfo, err error) {
	start := time.Now()
	defer func() { e.observe("update_participation", start, err) }()

	if err = e.enter(); err != nil {
		return nil, err
	}
	defer e.exit()

	if err = e.requireNotPaused(); err != nil {
		return nil, err
	}
	g, err := e.groupInStatus(req.GroupID, domain.GroupStatusActive)
	if err != nil {
		return nil, err
	}
	now := e.now()
	if err = e.verifier.VerifyUpdate(req, sig, caller, now); err != nil {
		return nil, err
	}
	if err = e.requireWindowOpen(g, now); err != nil {
		return nil, err
	}
	priceBps, err := e.validCurrency(req.GroupID, req.CurrencyID)
	if err != nil {
		return nil, err
	}

	prev := e.ledger.Participation(req.PrevParticipationID)
	if prev.IsFinalized || g.FinalizesAtParticipation {
		return nil, &ParticipationUpdatesNotAllowedError{GroupID: req.GroupID, ParticipationID: req.PrevParticipationID}
	}
	if req.CurrencyID != prev.CurrencyID {
		return nil, &CurrencyMismatchError{Expected: prev.CurrencyID, Actual: req.CurrencyID}
	}
	if req.UserID != prev.UserID {
		return nil, &UserIDMismatchError{Expected: prev.UserID, Actual: req.UserID}
	}
	if e.ledger.Participation(req.NewParticipationID).Exists() {
		return nil, &ParticipationAlreadyExistsError{ParticipationID: req.NewParticipationID}
	}

	newCurrencyAmount := e.currencyAmount(priceBps, req.TokenAmount)
	userTotal := e.ledger.UserTokens(req.GroupID, req.UserID)

	switch prev.CurrencyAmount.Cmp(newCurrencyAmount) {
	case 1:
		refund := new(big.Int).Sub(prev.CurrencyAmount, newCurrencyAmount)
		remaining := new(big.Int).Sub(userTotal, refund)
		if remaining.Cmp(g.MinTokenAmountPerUser) < 0 {
			return nil, &MinUserTokenAllocationError{
				GroupID: req.GroupID, UserID: req.UserID,
				Current: userTotal, Requested: req.TokenAmount,
			}
		}
		if err = e.push(ctx, req.CurrencyID, prev.PayerAddress, refund); err != nil {
			return nil, err
		}
		e.ledger.SetUserTokens(req.GroupID, req.UserID, remaining)
	case -1:
		additional := new(big.Int).Sub(newCurrencyAmount, prev.CurrencyAmount)
		increased := new(big.Int).Add(userTotal, additional)
		if increased.Cmp(g.MaxTokenAmountPerUser) > 0 {
			return nil, &MaxUserTokenAllocationError{
				GroupID: req.GroupID, UserID: req.UserID,
				Current: userTotal, Requested: req.TokenAmount,
			}
		}
		if err = e.pull(ctx, req.CurrencyID, caller, additional); err != nil {
			return nil, err
		}
		e.ledger.SetUserTokens(req.GroupID, req.UserID, increased)
	}

	info := &domain.ParticipationInfo{
		ParticipationID: req.NewParticipationID,
		GroupID:         req.GroupID,
		UserID:          req.UserID,
		TokenAmount:     new(big.Int).Set(req.TokenAmount),
		CurrencyAmount:  newCurrencyAmount,
		CurrencyID:      req.CurrencyID,
		PayerAddress:    prev.PayerAddress,
		IsFinalized:     false,
	}
	e.ledger.PutParticipation(info)

	// Tombstone the prior record: amounts zeroed, user id retained.
	prev.TokenAmount = new(big.Int)
	prev.CurrencyAmount = new(big.Int)
	e.ledger.PutParticipation(prev)

	e.emit(ctx, &domain.LaunchEvent{
		Kind:            domain.EventParticipationUpdated,
		GroupID:         req.GroupID,
		ParticipationID: req.NewParticipationID,
		PrevID:          req.PrevParticipationID,
		UserID:          req.UserID,
		UserAddress:     caller,
		CurrencyID:      req.CurrencyID,
		TokenAmount:     new(big.Int).Set(req.TokenAmount),
		CurrencyAmount:  new(big.Int).Set(newCurrencyAmount),
		EmittedAt:       now,
	})
	return info.Clone(), nil
}

// CancelParticipation cancels an unfinalized participation and refunds
// its full currency amount to the stored payer. A user whose group
// total reaches zero leaves the group's participant set entirely.
func (e *Engine) CancelParticipation(ctx context.Context, caller string, req *domain.CancelParticipationRequest, sig authn.Signature) (err error) {
	start := time.Now()
	defer func() { e.observe("cancel_participation", start, err) }()

	if err = e.enter(); err != nil {
		return err
	}
	defer e.exit()

	if err = e.requireNotPaused(); err != nil {
		return err
	}
	g, err := e.groupInStatus(req.GroupID, domain.GroupStatusActive)
	if err != nil {
		return err
	}
	now := e.now()
	if err = e.verifier.VerifyCancel(req, sig, caller, now); err != nil {
		return err
	}
	if err = e.requireWindowOpen(g, now); err != nil {
		return err
	}

	info := e.ledger.Participation(req.ParticipationID)
	if info.IsFinalized || g.FinalizesAtParticipation {
		return &ParticipationUpdatesNotAllowedError{GroupID: req.GroupID, ParticipationID: req.ParticipationID}
	}
	if info.UserID != req.UserID {
		return &UserIDMismatchError{Expected: info.UserID, Actual: req.UserID}
	}

	userTotal := e.ledger.UserTokens(req.GroupID, req.UserID)
	remaining := new(big.Int).Sub(userTotal, info.TokenAmount)
	if remaining.Sign() != 0 && remaining.Cmp(g.MinTokenAmountPerUser) < 0 {
		return &MinUserTokenAllocationError{
			GroupID: req.GroupID, UserID: req.UserID,
			Current: userTotal, Requested: new(big.Int),
		}
	}

	if err = e.push(ctx, info.CurrencyID, info.PayerAddress, info.CurrencyAmount); err != nil {
		return err
	}

	if remaining.Sign() == 0 {
		e.ledger.RemoveUser(req.GroupID, req.UserID)
	} else {
		e.ledger.SetUserTokens(req.GroupID, req.UserID, remaining)
	}

	refunded := new(big.Int).Set(info.CurrencyAmount)
	cancelled := new(big.Int).Set(info.TokenAmount)
	info.TokenAmount = new(big.Int)
	info.CurrencyAmount = new(big.Int)
	e.ledger.PutParticipation(info)

	e.emit(ctx, &domain.LaunchEvent{
		Kind:            domain.EventParticipationCancelled,
		GroupID:         req.GroupID,
		ParticipationID: req.ParticipationID,
		UserID:          req.UserID,
		UserAddress:     info.PayerAddress,
		CurrencyID:      info.CurrencyID,
		TokenAmount:     cancelled,
		CurrencyAmount:  refunded,
		EmittedAt:       now,
	})
	return nil
}

// currencyAmount prices tokenAmount at the engine's token decimals.
func (e *Engine) currencyAmount(priceBps, tokenAmount *big.Int) *big.Int {
	return ledger.CurrencyAmount(priceBps, tokenAmount, e.tokenDecimals)
}
