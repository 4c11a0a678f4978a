package router

import (
	"swaproute/core/events"
)

// CallKind labels an outbound instruction produced by the engine.
type CallKind uint8

const (
	// CallPoolSwap swaps against a constant-product pool venue.
	CallPoolSwap CallKind = iota + 1
	// CallBookSwap places an atomic fill-or-kill order on a book venue.
	CallBookSwap
	// CallWrap converts a native denomination into its wrapped contract form.
	CallWrap
	// CallUnwrap converts a wrapped contract balance back to the native form.
	CallUnwrap
	// CallTransfer moves an asset to a plain recipient with no reply expected.
	CallTransfer
)

// Call is one outbound instruction for the host to dispatch. Calls carrying
// ExpectReply must be answered with Engine.OnComplete using the same
// execution id once the venue settles.
type Call struct {
	ExecutionID uint64
	Kind        CallKind
	Target      string
	Offer       Asset
	Ask         AssetInfo
	ExpectReply bool
}

// Result reports the outcome of one engine transition: the calls to dispatch,
// the events emitted while the transition was applied, and whether the
// execution reached settlement.
type Result struct {
	ExecutionID   uint64
	Calls         []Call
	Events        []events.Event
	Completed     bool
	FinalReceived *Asset
}

func (r *Result) addCall(c Call) {
	r.Calls = append(r.Calls, c)
}

func (r *Result) emit(evt events.Event) {
	r.Events = append(r.Events, evt)
}
