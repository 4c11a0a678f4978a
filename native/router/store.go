package router

import (
	"fmt"
	"math/big"

	"swaproute/core/state"
)

// Store persists route plans and execution continuations behind the typed KV
// layer. All records are RLP encoded through explicit stored forms so the
// on-disk shape stays independent of the in-memory types.
type Store struct {
	kv state.KV
}

// NewStore binds a store to the supplied KV backend.
func NewStore(kv state.KV) *Store {
	return &Store{kv: kv}
}

func (s *Store) withKV() (state.KV, error) {
	if s == nil || s.kv == nil {
		return nil, fmt.Errorf("router: store not configured")
	}
	return s.kv, nil
}

// NextExecutionID allocates the next execution id from the persisted
// monotonic sequence.
func (s *Store) NextExecutionID() (uint64, error) {
	kv, err := s.withKV()
	if err != nil {
		return 0, err
	}
	var seq uint64
	if _, err := kv.KVGet(executionSeqKey(), &seq); err != nil {
		return 0, err
	}
	seq++
	if err := kv.KVPut(executionSeqKey(), seq); err != nil {
		return 0, err
	}
	return seq, nil
}

// PutPlan persists the immutable route plan for id.
func (s *Store) PutPlan(id uint64, plan *RoutePlan) error {
	kv, err := s.withKV()
	if err != nil {
		return err
	}
	if plan == nil {
		return fmt.Errorf("router: nil route plan")
	}
	return kv.KVPut(routePlanKey(id), storePlan(plan))
}

// Plan loads the route plan for id.
func (s *Store) Plan(id uint64) (*RoutePlan, bool, error) {
	kv, err := s.withKV()
	if err != nil {
		return nil, false, err
	}
	var stored storedRoutePlan
	ok, err := kv.KVGet(routePlanKey(id), &stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	return loadPlan(&stored), true, nil
}

// DeletePlan removes the route plan for id.
func (s *Store) DeletePlan(id uint64) error {
	kv, err := s.withKV()
	if err != nil {
		return err
	}
	return kv.KVDelete(routePlanKey(id))
}

// PutExecution persists the live continuation for id.
func (s *Store) PutExecution(id uint64, st *ExecutionState) error {
	kv, err := s.withKV()
	if err != nil {
		return err
	}
	if st == nil {
		return fmt.Errorf("router: nil execution state")
	}
	return kv.KVPut(executionKey(id), storeExecution(st))
}

// Execution loads the live continuation for id.
func (s *Store) Execution(id uint64) (*ExecutionState, bool, error) {
	kv, err := s.withKV()
	if err != nil {
		return nil, false, err
	}
	var stored storedExecutionState
	ok, err := kv.KVGet(executionKey(id), &stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	return loadExecution(&stored), true, nil
}

// DeleteExecution removes the continuation for id.
func (s *Store) DeleteExecution(id uint64) error {
	kv, err := s.withKV()
	if err != nil {
		return err
	}
	return kv.KVDelete(executionKey(id))
}

// --- stored forms ---

type storedAssetInfo struct {
	Kind     uint8
	Denom    string
	Contract string
}

type storedAsset struct {
	Info   storedAssetInfo
	Amount *big.Int
}

type storedOperation struct {
	Kind  uint8
	Venue string
	Offer storedAssetInfo
	Ask   storedAssetInfo
}

type storedSplit struct {
	Ops     []storedOperation
	Percent uint8
}

type storedStage struct {
	Splits []storedSplit
}

type storedRoutePlan struct {
	Initiator      string
	MinimumReceive *big.Int
	Stages         []storedStage
}

type storedPlannedSwap struct {
	Op     storedOperation
	Amount *big.Int
}

type storedExecutionState struct {
	Awaiting        uint8
	CurrentStage    uint32
	RepliesExpected uint32
	Accumulated     []storedAsset
	PendingSwaps    []storedPlannedSwap
	HasPathOp       bool
	PathOp          storedPlannedSwap
	HasFinalTarget  bool
	FinalTarget     storedAssetInfo
	FinalReady      *big.Int
}

func storeInfo(i AssetInfo) storedAssetInfo {
	return storedAssetInfo{Kind: uint8(i.Kind), Denom: i.Denom, Contract: i.Contract}
}

func loadInfo(i storedAssetInfo) AssetInfo {
	return AssetInfo{Kind: AssetKind(i.Kind), Denom: i.Denom, Contract: i.Contract}
}

func storeOp(o Operation) storedOperation {
	return storedOperation{Kind: uint8(o.Kind), Venue: o.Venue, Offer: storeInfo(o.Offer), Ask: storeInfo(o.Ask)}
}

func loadOp(o storedOperation) Operation {
	return Operation{Kind: OpKind(o.Kind), Venue: o.Venue, Offer: loadInfo(o.Offer), Ask: loadInfo(o.Ask)}
}

func storePlan(plan *RoutePlan) *storedRoutePlan {
	stored := &storedRoutePlan{
		Initiator:      plan.Initiator,
		MinimumReceive: cloneAmount(plan.MinimumReceive),
		Stages:         make([]storedStage, len(plan.Stages)),
	}
	for i, stage := range plan.Stages {
		splits := make([]storedSplit, len(stage.Splits))
		for j, split := range stage.Splits {
			ops := make([]storedOperation, len(split.Ops))
			for k, op := range split.Ops {
				ops[k] = storeOp(op)
			}
			splits[j] = storedSplit{Ops: ops, Percent: split.Percent}
		}
		stored.Stages[i] = storedStage{Splits: splits}
	}
	return stored
}

func loadPlan(stored *storedRoutePlan) *RoutePlan {
	plan := &RoutePlan{
		Initiator:      stored.Initiator,
		MinimumReceive: cloneAmount(stored.MinimumReceive),
		Stages:         make([]Stage, len(stored.Stages)),
	}
	for i, stage := range stored.Stages {
		splits := make([]Split, len(stage.Splits))
		for j, split := range stage.Splits {
			ops := make([]Operation, len(split.Ops))
			for k, op := range split.Ops {
				ops[k] = loadOp(op)
			}
			splits[j] = Split{Ops: ops, Percent: split.Percent}
		}
		plan.Stages[i] = Stage{Splits: splits}
	}
	return plan
}

func storeExecution(st *ExecutionState) *storedExecutionState {
	stored := &storedExecutionState{
		Awaiting:        uint8(st.Awaiting),
		CurrentStage:    st.CurrentStage,
		RepliesExpected: st.RepliesExpected,
		Accumulated:     make([]storedAsset, len(st.Accumulated)),
		PendingSwaps:    make([]storedPlannedSwap, len(st.PendingSwaps)),
		FinalReady:      cloneAmount(st.FinalReady),
	}
	for i, asset := range st.Accumulated {
		stored.Accumulated[i] = storedAsset{Info: storeInfo(asset.Info), Amount: cloneAmount(asset.Amount)}
	}
	for i, swap := range st.PendingSwaps {
		stored.PendingSwaps[i] = storedPlannedSwap{Op: storeOp(swap.Op), Amount: cloneAmount(swap.Amount)}
	}
	if st.PendingPathOp != nil {
		stored.HasPathOp = true
		stored.PathOp = storedPlannedSwap{Op: storeOp(st.PendingPathOp.Op), Amount: cloneAmount(st.PendingPathOp.Amount)}
	}
	if st.FinalTarget != nil {
		stored.HasFinalTarget = true
		stored.FinalTarget = storeInfo(*st.FinalTarget)
	}
	return stored
}

func loadExecution(stored *storedExecutionState) *ExecutionState {
	st := &ExecutionState{
		Awaiting:        Phase(stored.Awaiting),
		CurrentStage:    stored.CurrentStage,
		RepliesExpected: stored.RepliesExpected,
		Accumulated:     make([]Asset, len(stored.Accumulated)),
		PendingSwaps:    make([]PlannedSwap, len(stored.PendingSwaps)),
		FinalReady:      cloneAmount(stored.FinalReady),
	}
	for i, asset := range stored.Accumulated {
		st.Accumulated[i] = Asset{Info: loadInfo(asset.Info), Amount: cloneAmount(asset.Amount)}
	}
	for i, swap := range stored.PendingSwaps {
		st.PendingSwaps[i] = PlannedSwap{Op: loadOp(swap.Op), Amount: cloneAmount(swap.Amount)}
	}
	if stored.HasPathOp {
		st.PendingPathOp = &PendingPathOp{Op: loadOp(stored.PathOp.Op), Amount: cloneAmount(stored.PathOp.Amount)}
	}
	if stored.HasFinalTarget {
		target := loadInfo(stored.FinalTarget)
		st.FinalTarget = &target
	}
	return st
}
