package router

import (
	"fmt"
	"math/big"
)

// finalSettle runs once the last stage completes. Proceeds are normalised to
// the route's declared output representation: same-kind holdings are ready
// immediately, the rest go through one conversion each before the minimum
// bound is checked and the total forwarded.
func (e *Engine) finalSettle(res *Result, store *Store, plan *RoutePlan, st *ExecutionState, id uint64) error {
	target, err := finalTarget(plan)
	if err != nil {
		return err
	}

	ready := big.NewInt(0)
	var pending []Asset
	for _, asset := range st.Accumulated {
		if asset.Info.Kind == target.Kind {
			ready.Add(ready, asset.Amount)
			continue
		}
		pending = append(pending, asset)
	}
	st.Accumulated = nil

	if len(pending) == 0 {
		return e.finish(res, store, plan, st, id, Asset{Info: target, Amount: ready})
	}

	for _, asset := range pending {
		res.addCall(e.conversionCall(id, asset, target))
		res.emit(conversionScheduledEvent(id, asset.Amount, target))
	}
	st.Awaiting = PhaseFinalConversions
	st.FinalTarget = &target
	st.FinalReady = ready
	st.RepliesExpected = uint32(len(pending))
	return store.PutExecution(id, st)
}

// finish enforces the minimum-receive bound, forwards the proceeds to the
// initiator, and retires the execution's persisted records.
func (e *Engine) finish(res *Result, store *Store, plan *RoutePlan, st *ExecutionState, id uint64, total Asset) error {
	minimum := plan.MinimumReceive
	if minimum != nil && total.Amount.Cmp(minimum) < 0 {
		return fmt.Errorf("%w: received %s, need %s", ErrMinimumReceiveNotMet, total.Amount, minimum)
	}
	if total.Amount.Sign() > 0 {
		res.addCall(Call{
			ExecutionID: id,
			Kind:        CallTransfer,
			Target:      plan.Initiator,
			Offer:       total.Clone(),
		})
	}
	if err := store.DeleteExecution(id); err != nil {
		return err
	}
	if err := store.DeletePlan(id); err != nil {
		return err
	}
	res.emit(routeCompletedEvent(id, plan.Initiator, total.Amount, total.Info))
	res.Completed = true
	received := total.Clone()
	res.FinalReceived = &received
	return nil
}

// finalTarget is the representation the route promises to deliver: the
// declared output of the last stage's first split.
func finalTarget(plan *RoutePlan) (AssetInfo, error) {
	last := plan.Stages[len(plan.Stages)-1]
	if len(last.Splits) == 0 {
		return AssetInfo{}, fmt.Errorf("%w: final stage has no splits", ErrEmptyRoute)
	}
	return last.Splits[0].Output()
}
