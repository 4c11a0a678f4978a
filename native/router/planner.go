package router

import (
	"fmt"

	"swaproute/core/state"
	"swaproute/crypto"
)

// Submit validates a route plan, persists it together with a fresh execution
// continuation, and plans the first stage. The returned Result carries the
// first batch of outbound calls; nothing is committed when an error is
// returned.
func (e *Engine) Submit(plan *RoutePlan, offer Asset) (*Result, error) {
	if err := validatePlan(plan, offer); err != nil {
		return nil, err
	}

	overlay := state.NewOverlay(e.db)
	store := NewStore(overlay)

	id, err := store.NextExecutionID()
	if err != nil {
		return nil, err
	}
	if err := store.PutPlan(id, plan); err != nil {
		return nil, err
	}

	res := &Result{ExecutionID: id}
	res.emit(routeSubmittedEvent(id, plan.Initiator, len(plan.Stages), offer.Amount))

	st := &ExecutionState{Accumulated: []Asset{offer.Clone()}}
	if err := e.advanceStage(res, store, plan, st, id); err != nil {
		return nil, err
	}
	if err := overlay.Commit(); err != nil {
		return nil, err
	}
	return res, nil
}

func validatePlan(plan *RoutePlan, offer Asset) error {
	if plan == nil {
		return fmt.Errorf("%w: nil plan", ErrEmptyRoute)
	}
	if _, err := crypto.ValidateAddress(plan.Initiator); err != nil {
		return fmt.Errorf("%w: initiator: %v", ErrEmptyRoute, err)
	}
	if err := offer.Info.validate(); err != nil {
		return err
	}
	if err := checkAmount(offer.Amount); err != nil {
		return err
	}
	if offer.Amount.Sign() == 0 {
		return ErrZeroAmount
	}
	if plan.MinimumReceive != nil {
		if err := checkAmount(plan.MinimumReceive); err != nil {
			return err
		}
	}
	if len(plan.Stages) == 0 {
		return ErrNoStages
	}

	for si, stage := range plan.Stages {
		if err := validateStage(si, stage); err != nil {
			return err
		}
	}

	// The offered asset must be an input the first stage declares.
	matched := false
	for _, split := range plan.Stages[0].Splits {
		input, err := split.Input()
		if err != nil {
			return err
		}
		if input.Equal(offer.Info) {
			matched = true
			break
		}
	}
	if !matched {
		return fmt.Errorf("%w: offered %s", ErrMismatchedInitialFunds, offer.Info.ID())
	}

	// The first stage consumes the offer completely.
	var pctSum uint32
	for _, split := range plan.Stages[0].Splits {
		pctSum += uint32(split.Percent)
	}
	if pctSum != 100 {
		return fmt.Errorf("%w: first stage sums to %d%%", ErrInvalidPercentageSum, pctSum)
	}
	return nil
}

func validateStage(index int, stage Stage) error {
	if len(stage.Splits) == 0 {
		return fmt.Errorf("%w: stage %d has no splits", ErrEmptyRoute, index)
	}
	venues := map[string]struct{}{}
	for _, split := range stage.Splits {
		if len(split.Ops) == 0 {
			return fmt.Errorf("%w: stage %d split has no operations", ErrEmptyRoute, index)
		}
		if len(split.Ops) > 1 && len(stage.Splits) > 1 {
			return fmt.Errorf("%w: stage %d", ErrInvalidSplitPath, index)
		}
		if split.Percent == 0 {
			return fmt.Errorf("%w: stage %d split has zero percent", ErrEmptyRoute, index)
		}
		for _, op := range split.Ops {
			if err := op.validate(); err != nil {
				return err
			}
			// Completions are matched back by venue, so a venue may
			// appear only once per stage.
			if _, dup := venues[op.Venue]; dup {
				return fmt.Errorf("%w: stage %d reuses venue %s", ErrEmptyRoute, index, op.Venue)
			}
			venues[op.Venue] = struct{}{}
		}
	}
	return nil
}
