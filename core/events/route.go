package events

import (
	"math/big"
	"strconv"
	"strings"

	"swaproute/core/types"
)

const (
	// TypeRouteSubmitted is emitted when a route execution has been planned
	// and its first batch of venue calls dispatched.
	TypeRouteSubmitted = "route.submitted"
	// TypeStageCompleted is emitted when every callback of a stage has landed.
	TypeStageCompleted = "route.stage_completed"
	// TypeConversionScheduled is emitted for every wrap/unwrap the reconciler
	// queues between stages.
	TypeConversionScheduled = "route.conversion"
	// TypeFeeCharged is emitted whenever a venue fee is deducted from a swap
	// output.
	TypeFeeCharged = "route.fee_charged"
	// TypeRouteCompleted is emitted when final settlement forwards proceeds to
	// the initiator.
	TypeRouteCompleted = "route.completed"
)

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// RouteSubmitted announces a freshly planned execution.
type RouteSubmitted struct {
	ExecutionID uint64
	Initiator   string
	Stages      int
	OfferAmount *big.Int
}

func (RouteSubmitted) EventType() string { return TypeRouteSubmitted }

// Event renders the submission as an attribute record.
func (e RouteSubmitted) Event() *types.Event {
	return &types.Event{
		Type: TypeRouteSubmitted,
		Attributes: map[string]string{
			"executionId": strconv.FormatUint(e.ExecutionID, 10),
			"initiator":   strings.TrimSpace(e.Initiator),
			"stages":      strconv.Itoa(e.Stages),
			"offerAmount": amountString(e.OfferAmount),
		},
	}
}

// StageCompleted marks the completion of one stage of a route.
type StageCompleted struct {
	ExecutionID uint64
	Stage       uint32
}

func (StageCompleted) EventType() string { return TypeStageCompleted }

// Event renders the stage completion as an attribute record.
func (e StageCompleted) Event() *types.Event {
	return &types.Event{
		Type: TypeStageCompleted,
		Attributes: map[string]string{
			"executionId": strconv.FormatUint(e.ExecutionID, 10),
			"stage":       strconv.FormatUint(uint64(e.Stage), 10),
		},
	}
}

// ConversionScheduled records a representation conversion queued between
// stages or during final settlement.
type ConversionScheduled struct {
	ExecutionID uint64
	Amount      *big.Int
	Target      string
}

func (ConversionScheduled) EventType() string { return TypeConversionScheduled }

// Event renders the conversion as an attribute record.
func (e ConversionScheduled) Event() *types.Event {
	return &types.Event{
		Type: TypeConversionScheduled,
		Attributes: map[string]string{
			"executionId": strconv.FormatUint(e.ExecutionID, 10),
			"amount":      amountString(e.Amount),
			"target":      strings.TrimSpace(e.Target),
		},
	}
}

// FeeCharged records a venue fee deduction.
type FeeCharged struct {
	ExecutionID uint64
	Venue       string
	Amount      *big.Int
}

func (FeeCharged) EventType() string { return TypeFeeCharged }

// Event renders the fee deduction as an attribute record.
func (e FeeCharged) Event() *types.Event {
	return &types.Event{
		Type: TypeFeeCharged,
		Attributes: map[string]string{
			"executionId": strconv.FormatUint(e.ExecutionID, 10),
			"venue":       strings.TrimSpace(e.Venue),
			"amount":      amountString(e.Amount),
		},
	}
}

// RouteCompleted records a settled execution and the exact amount forwarded to
// the initiator.
type RouteCompleted struct {
	ExecutionID   uint64
	Initiator     string
	FinalReceived *big.Int
	Asset         string
}

func (RouteCompleted) EventType() string { return TypeRouteCompleted }

// Event renders the settlement as an attribute record.
func (e RouteCompleted) Event() *types.Event {
	return &types.Event{
		Type: TypeRouteCompleted,
		Attributes: map[string]string{
			"executionId":   strconv.FormatUint(e.ExecutionID, 10),
			"initiator":     strings.TrimSpace(e.Initiator),
			"finalReceived": amountString(e.FinalReceived),
			"asset":         strings.TrimSpace(e.Asset),
		},
	}
}
