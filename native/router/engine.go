package router

import (
	"fmt"
	"math/big"

	"swaproute/core/state"
	"swaproute/core/types"
)

// Config carries the addresses the engine stamps on outbound calls.
type Config struct {
	// SelfAddress is the router's own address; conversion credits are
	// matched against it when decoding replies.
	SelfAddress string
	// FeeCollector receives every venue fee deduction.
	FeeCollector string
	// AdapterAddress performs native-to-wrapped conversions.
	AdapterAddress string
}

// Engine drives route executions as a persisted continuation machine. Every
// entry point runs on a write-buffered overlay of the backing store, so a
// transition either commits whole or leaves no trace.
type Engine struct {
	db   state.KV
	fees FeeTable
	cfg  Config
}

// NewEngine constructs an engine over the supplied KV backend.
func NewEngine(db state.KV, fees FeeTable, cfg Config) *Engine {
	return &Engine{db: db, fees: fees, cfg: cfg}
}

// OnComplete applies one settlement callback to the execution's persisted
// continuation. Callbacks are accepted in any order; a callback for an
// unknown or already-terminated execution returns ErrExecutionNotFound.
func (e *Engine) OnComplete(id uint64, evts []types.Event) (*Result, error) {
	overlay := state.NewOverlay(e.db)
	store := NewStore(overlay)

	st, ok, err := store.Execution(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrExecutionNotFound, id)
	}
	plan, ok, err := store.Plan(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: id %d has no plan", ErrExecutionNotFound, id)
	}

	res := &Result{ExecutionID: id}
	switch st.Awaiting {
	case PhaseSwaps:
		err = e.handleSwaps(res, store, plan, st, id, evts)
	case PhaseConversions:
		err = e.handleConversions(res, store, plan, st, id, evts)
	case PhaseFinalConversions:
		err = e.handleFinalConversions(res, store, plan, st, id, evts)
	case PhasePathConversion:
		err = e.handlePathConversion(res, store, plan, st, id, evts)
	default:
		err = fmt.Errorf("%w: id %d in unknown phase %d", ErrExecutionNotFound, id, st.Awaiting)
	}
	if err != nil {
		return nil, err
	}
	if err := overlay.Commit(); err != nil {
		return nil, err
	}
	return res, nil
}

// Abandon retires a permanently failed execution, releasing its plan and
// continuation records. Callers invoke it when an outbound call for the id
// cannot be completed and no further callback will ever arrive, so the
// persisted continuation would otherwise survive forever.
func (e *Engine) Abandon(id uint64) error {
	overlay := state.NewOverlay(e.db)
	store := NewStore(overlay)

	_, ok, err := store.Execution(id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: id %d", ErrExecutionNotFound, id)
	}
	if err := store.DeleteExecution(id); err != nil {
		return err
	}
	if err := store.DeletePlan(id); err != nil {
		return err
	}
	return overlay.Commit()
}

// advanceStage plans the stage st.CurrentStage points at, queues conversions
// when the held representations do not line up, and otherwise dispatches the
// stage's hops. An exhausted stage list hands over to final settlement.
func (e *Engine) advanceStage(res *Result, store *Store, plan *RoutePlan, st *ExecutionState, id uint64) error {
	if int(st.CurrentStage) >= len(plan.Stages) {
		return e.finalSettle(res, store, plan, st, id)
	}
	stage := plan.Stages[st.CurrentStage]

	sp, err := planStage(stage, st.Accumulated)
	if err != nil {
		return err
	}
	st.Accumulated = nil
	st.PendingSwaps = sp.swaps

	if len(sp.conversions) > 0 {
		for _, conv := range sp.conversions {
			res.addCall(e.conversionCall(id, conv.from, conv.target))
			res.emit(conversionScheduledEvent(id, conv.from.Amount, conv.target))
		}
		st.Awaiting = PhaseConversions
		st.RepliesExpected = uint32(len(sp.conversions))
		return store.PutExecution(id, st)
	}
	return e.dispatchPending(res, store, plan, st, id)
}

// dispatchPending emits the calls for every funded pending hop. Zero-amount
// entries (splits whose allocation rounded away with nothing left to feed
// them) are dropped; a stage left with nothing to dispatch completes
// immediately.
func (e *Engine) dispatchPending(res *Result, store *Store, plan *RoutePlan, st *ExecutionState, id uint64) error {
	funded := st.PendingSwaps[:0]
	for _, swap := range st.PendingSwaps {
		if swap.Amount.Sign() == 0 {
			continue
		}
		funded = append(funded, swap)
	}
	st.PendingSwaps = funded

	if len(st.PendingSwaps) == 0 {
		st.CurrentStage++
		return e.advanceStage(res, store, plan, st, id)
	}
	for _, swap := range st.PendingSwaps {
		res.addCall(swapCall(id, swap.Op, swap.Amount))
	}
	st.Awaiting = PhaseSwaps
	st.RepliesExpected = uint32(len(st.PendingSwaps))
	return store.PutExecution(id, st)
}

// handleSwaps applies one venue completion: deduct the venue fee, then either
// chain the split's next hop, queue a mid-path conversion, or bank the output
// and close out the stage when it was the last outstanding reply.
func (e *Engine) handleSwaps(res *Result, store *Store, plan *RoutePlan, st *ExecutionState, id uint64, evts []types.Event) error {
	venue, gross, kind, err := decodeSwapCompletion(evts)
	if err != nil {
		return err
	}
	if err := checkAmount(gross); err != nil {
		return err
	}

	idx := -1
	for i, swap := range st.PendingSwaps {
		if swap.Op.Venue == venue {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: no outstanding hop at venue %s", ErrReplyParse, venue)
	}
	op := st.PendingSwaps[idx].Op
	if op.Kind != kind {
		return fmt.Errorf("%w: venue %s answered as the wrong venue kind", ErrReplyParse, venue)
	}

	net, err := e.chargeFee(res, id, venue, Asset{Info: op.Ask, Amount: gross})
	if err != nil {
		return err
	}

	if next, ok := nextHop(plan, st.CurrentStage, venue); ok {
		if next.Offer.Equal(op.Ask) {
			// The path continues in the same representation.
			st.PendingSwaps[idx] = PlannedSwap{Op: next, Amount: net}
			res.addCall(swapCall(id, next, net))
			return store.PutExecution(id, st)
		}
		// The next hop consumes the other representation. Multi-hop
		// splits run alone in their stage, so this is the only
		// outstanding reply.
		res.addCall(e.conversionCall(id, Asset{Info: op.Ask, Amount: net}, next.Offer))
		res.emit(conversionScheduledEvent(id, net, next.Offer))
		st.PendingSwaps = nil
		st.PendingPathOp = &PendingPathOp{Op: next, Amount: cloneAmount(net)}
		st.Awaiting = PhasePathConversion
		st.RepliesExpected = 1
		return store.PutExecution(id, st)
	}

	st.Accumulated = accumulate(st.Accumulated, Asset{Info: op.Ask, Amount: net})
	st.PendingSwaps = append(st.PendingSwaps[:idx], st.PendingSwaps[idx+1:]...)
	st.RepliesExpected--
	if st.RepliesExpected > 0 {
		return store.PutExecution(id, st)
	}
	res.emit(stageCompletedEvent(id, st.CurrentStage))
	st.CurrentStage++
	return e.advanceStage(res, store, plan, st, id)
}

// handleConversions banks one pre-stage conversion credit. Once every
// conversion has landed, the pooled output is spread across the deficit hops
// and the stage dispatches.
func (e *Engine) handleConversions(res *Result, store *Store, plan *RoutePlan, st *ExecutionState, id uint64, evts []types.Event) error {
	credited, err := decodeConversionCompletion(evts, e.cfg.SelfAddress)
	if err != nil {
		return err
	}
	if err := checkAmount(credited); err != nil {
		return err
	}

	target, ok := deficitTarget(st.PendingSwaps)
	if !ok {
		return fmt.Errorf("%w: %s converted units", ErrUnroutableSurplus, credited)
	}
	st.Accumulated = accumulate(st.Accumulated, Asset{Info: target, Amount: credited})
	st.RepliesExpected--
	if st.RepliesExpected > 0 {
		return store.PutExecution(id, st)
	}

	pool := sum(st.Accumulated)
	st.Accumulated = nil
	if err := feedDeficits(st.PendingSwaps, stagePercents(plan, st), pool); err != nil {
		return err
	}
	return e.dispatchPending(res, store, plan, st, id)
}

// handlePathConversion resumes a multi-hop split after its mid-path
// representation conversion settles.
func (e *Engine) handlePathConversion(res *Result, store *Store, plan *RoutePlan, st *ExecutionState, id uint64, evts []types.Event) error {
	if st.PendingPathOp == nil {
		return fmt.Errorf("%w: id %d has no pending path hop", ErrExecutionNotFound, id)
	}
	credited, err := decodeConversionCompletion(evts, e.cfg.SelfAddress)
	if err != nil {
		return err
	}
	if err := checkAmount(credited); err != nil {
		return err
	}

	op := st.PendingPathOp.Op
	st.PendingPathOp = nil
	if credited.Sign() == 0 {
		// The hop's input vanished to rounding; the split is done.
		res.emit(stageCompletedEvent(id, st.CurrentStage))
		st.CurrentStage++
		st.RepliesExpected = 0
		return e.advanceStage(res, store, plan, st, id)
	}
	st.PendingSwaps = []PlannedSwap{{Op: op, Amount: cloneAmount(credited)}}
	st.Awaiting = PhaseSwaps
	st.RepliesExpected = 1
	res.addCall(swapCall(id, op, credited))
	return store.PutExecution(id, st)
}

// handleFinalConversions banks one settlement-time conversion credit and
// finishes the execution when the last one lands.
func (e *Engine) handleFinalConversions(res *Result, store *Store, plan *RoutePlan, st *ExecutionState, id uint64, evts []types.Event) error {
	if st.FinalTarget == nil {
		return fmt.Errorf("%w: id %d has no settlement target", ErrExecutionNotFound, id)
	}
	credited, err := decodeConversionCompletion(evts, e.cfg.SelfAddress)
	if err != nil {
		return err
	}
	if err := checkAmount(credited); err != nil {
		return err
	}
	st.FinalReady = new(big.Int).Add(cloneAmount(st.FinalReady), credited)
	st.RepliesExpected--
	if st.RepliesExpected > 0 {
		return store.PutExecution(id, st)
	}
	return e.finish(res, store, plan, st, id, Asset{Info: *st.FinalTarget, Amount: st.FinalReady})
}

// --- call construction and small helpers ---

func swapCall(id uint64, op Operation, amount *big.Int) Call {
	kind := CallPoolSwap
	if op.Kind == OpBookSwap {
		kind = CallBookSwap
	}
	return Call{
		ExecutionID: id,
		Kind:        kind,
		Target:      op.Venue,
		Offer:       Asset{Info: op.Offer, Amount: cloneAmount(amount)},
		Ask:         op.Ask,
		ExpectReply: true,
	}
}

// conversionCall builds the wrap or unwrap moving from into the target
// representation. Wraps go through the adapter, unwraps through the wrapped
// asset's own contract.
func (e *Engine) conversionCall(id uint64, from Asset, target AssetInfo) Call {
	kind := CallWrap
	tgt := e.cfg.AdapterAddress
	if from.Info.Kind == KindWrapped {
		kind = CallUnwrap
		tgt = from.Info.Contract
	}
	return Call{
		ExecutionID: id,
		Kind:        kind,
		Target:      tgt,
		Offer:       from.Clone(),
		Ask:         target,
		ExpectReply: true,
	}
}

// nextHop locates the hop following the one venue just completed within the
// current stage's split paths.
func nextHop(plan *RoutePlan, stageIdx uint32, venue string) (Operation, bool) {
	if int(stageIdx) >= len(plan.Stages) {
		return Operation{}, false
	}
	for _, split := range plan.Stages[stageIdx].Splits {
		for h, op := range split.Ops {
			if op.Venue != venue {
				continue
			}
			if h+1 < len(split.Ops) {
				return split.Ops[h+1], true
			}
			return Operation{}, false
		}
	}
	return Operation{}, false
}

// deficitTarget returns the representation the conversion phase is feeding:
// the declared input of the first unfunded hop.
func deficitTarget(swaps []PlannedSwap) (AssetInfo, bool) {
	for _, swap := range swaps {
		if swap.Amount.Sign() == 0 {
			return swap.Op.Offer, true
		}
	}
	return AssetInfo{}, false
}

// stagePercents maps pending-swap indices to their declared percentages by
// matching first-hop venues against the current stage.
func stagePercents(plan *RoutePlan, st *ExecutionState) map[int]uint8 {
	percents := make(map[int]uint8, len(st.PendingSwaps))
	if int(st.CurrentStage) >= len(plan.Stages) {
		return percents
	}
	stage := plan.Stages[st.CurrentStage]
	for i, swap := range st.PendingSwaps {
		for _, split := range stage.Splits {
			if len(split.Ops) > 0 && split.Ops[0].Venue == swap.Op.Venue {
				percents[i] = split.Percent
				break
			}
		}
	}
	return percents
}

// accumulate merges an asset into the held list, coalescing equal infos.
func accumulate(held []Asset, add Asset) []Asset {
	if add.Amount == nil || add.Amount.Sign() == 0 {
		return held
	}
	for i := range held {
		if held[i].Info.Equal(add.Info) {
			held[i].Amount = new(big.Int).Add(held[i].Amount, add.Amount)
			return held
		}
	}
	return append(held, add.Clone())
}

func sum(held []Asset) *big.Int {
	total := big.NewInt(0)
	for _, asset := range held {
		total.Add(total, asset.Amount)
	}
	return total
}
