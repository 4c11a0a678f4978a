package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"swaproute/core/events"
	"swaproute/core/types"
	"swaproute/native/router"
	"swaproute/observability"
)

// VenueClient executes one swap at a venue and returns the settlement events
// the venue produced.
type VenueClient interface {
	Swap(ctx context.Context, call router.Call) ([]types.Event, error)
}

// AdapterClient performs wrap and unwrap conversions.
type AdapterClient interface {
	Convert(ctx context.Context, call router.Call) ([]types.Event, error)
}

// BankClient moves assets to plain recipients: fee payouts and the final
// settlement transfer.
type BankClient interface {
	Transfer(ctx context.Context, call router.Call) error
}

// ErrUnknownVenue reports a dispatched call targeting an unregistered venue.
var ErrUnknownVenue = errors.New("host: no client registered for venue")

// Host owns the engine and drives executions to completion: it performs each
// outbound call, gathers the events the counterparty settled with, and feeds
// them back as the execution's next callback. Calls are pumped one at a time
// per execution, so the engine never sees concurrent callbacks for one id.
type Host struct {
	engine  *router.Engine
	venues  map[string]VenueClient
	adapter AdapterClient
	bank    BankClient
	emitter events.Emitter
	metrics *observability.RouterMetrics
	tracer  trace.Tracer
	log     *slog.Logger
}

// New wires a host around an engine. Venues are added with RegisterVenue.
func New(engine *router.Engine, adapter AdapterClient, bank BankClient, emitter events.Emitter, metrics *observability.RouterMetrics, log *slog.Logger) *Host {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Host{
		engine:  engine,
		venues:  make(map[string]VenueClient),
		adapter: adapter,
		bank:    bank,
		emitter: emitter,
		metrics: metrics,
		tracer:  otel.Tracer("swaproute/host"),
		log:     log,
	}
}

// RegisterVenue installs the client handling calls addressed to venue.
func (h *Host) RegisterVenue(venue string, client VenueClient) {
	h.venues[venue] = client
}

// Execute submits a route and pumps its dispatch loop until settlement. The
// returned asset is what the initiator received. A failed call or a rejected
// callback aborts the loop; the engine's own writes for the failed transition
// were already discarded, so the persisted continuation stays consistent.
func (h *Host) Execute(ctx context.Context, plan *router.RoutePlan, offer router.Asset) (*router.Asset, error) {
	ctx, span := h.tracer.Start(ctx, "router.execute")
	defer span.End()

	res, err := h.engine.Submit(plan, offer)
	if err != nil {
		h.countAbort("submit")
		return nil, err
	}
	span.SetAttributes(
		attribute.Int64("swaproute.execution_id", int64(res.ExecutionID)),
		attribute.Int("swaproute.stages", len(plan.Stages)),
	)
	if h.metrics != nil {
		h.metrics.ExecutionsStarted.Inc()
	}
	h.log.Info("route submitted",
		"execution_id", res.ExecutionID,
		"initiator", plan.Initiator,
		"stages", len(plan.Stages),
	)
	h.publish(res)

	var final *router.Asset
	queue := append([]router.Call(nil), res.Calls...)
	for len(queue) > 0 {
		call := queue[0]
		queue = queue[1:]
		if h.metrics != nil {
			h.metrics.OutboundCalls.WithLabelValues(callKindLabel(call.Kind)).Inc()
		}

		if !call.ExpectReply {
			if err := h.bank.Transfer(ctx, call); err != nil {
				h.abandon(res.ExecutionID, "transfer")
				return nil, fmt.Errorf("host: transfer to %s: %w", call.Target, err)
			}
			continue
		}

		evts, err := h.perform(ctx, call)
		if err != nil {
			h.abandon(res.ExecutionID, "venue_call")
			return nil, err
		}
		next, err := h.engine.OnComplete(call.ExecutionID, evts)
		if err != nil {
			if h.metrics != nil {
				h.metrics.CallbacksProcessed.WithLabelValues("rejected").Inc()
			}
			h.abandon(res.ExecutionID, "callback")
			return nil, err
		}
		if h.metrics != nil {
			h.metrics.CallbacksProcessed.WithLabelValues("applied").Inc()
		}
		h.publish(next)
		queue = append(queue, next.Calls...)
		if next.Completed {
			final = next.FinalReceived
		}
	}

	if final == nil {
		h.abandon(res.ExecutionID, "stalled")
		return nil, fmt.Errorf("host: execution %d drained without settling", res.ExecutionID)
	}
	if h.metrics != nil {
		h.metrics.ExecutionsCompleted.Inc()
	}
	h.log.Info("route settled",
		"execution_id", res.ExecutionID,
		"final_received", final.Amount.String(),
		"asset", final.Info.ID(),
	)
	return final, nil
}

// Recover forwards a balance held at the router's own address to recipient.
// The admin surface uses it to free assets stranded by failed venue or
// adapter calls; authorization happens at that surface.
func (h *Host) Recover(ctx context.Context, asset router.Asset, recipient string) error {
	h.log.Info("balance recovery",
		"recipient", recipient,
		"asset", asset.Info.ID(),
		"amount", asset.Amount.String(),
	)
	return h.bank.Transfer(ctx, router.Call{
		Kind:   router.CallTransfer,
		Target: recipient,
		Offer:  asset.Clone(),
	})
}

func (h *Host) perform(ctx context.Context, call router.Call) ([]types.Event, error) {
	ctx, span := h.tracer.Start(ctx, "router.call", trace.WithAttributes(
		attribute.String("swaproute.call_kind", callKindLabel(call.Kind)),
		attribute.String("swaproute.target", call.Target),
	))
	defer span.End()

	switch call.Kind {
	case router.CallPoolSwap, router.CallBookSwap:
		client, ok := h.venues[call.Target]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownVenue, call.Target)
		}
		return client.Swap(ctx, call)
	case router.CallWrap, router.CallUnwrap:
		return h.adapter.Convert(ctx, call)
	default:
		return nil, fmt.Errorf("host: call kind %d expects no reply", call.Kind)
	}
}

func (h *Host) publish(res *router.Result) {
	for _, evt := range res.Events {
		h.emitter.Emit(evt)
		if h.metrics != nil && evt.EventType() == events.TypeFeeCharged {
			h.metrics.FeesCharged.Inc()
		}
	}
}

func (h *Host) countAbort(reason string) {
	if h.metrics != nil {
		h.metrics.ExecutionsAborted.WithLabelValues(reason).Inc()
	}
}

// abandon releases the persisted records of an execution the pump cannot
// finish. A completed execution has already retired its own records, so a
// missing id is not an error here.
func (h *Host) abandon(id uint64, reason string) {
	h.countAbort(reason)
	if err := h.engine.Abandon(id); err != nil && !errors.Is(err, router.ErrExecutionNotFound) {
		h.log.Warn("abandon failed", "execution_id", id, "error", err)
	}
	h.log.Info("route abandoned", "execution_id", id, "reason", reason)
}

func callKindLabel(kind router.CallKind) string {
	switch kind {
	case router.CallPoolSwap:
		return "pool_swap"
	case router.CallBookSwap:
		return "book_swap"
	case router.CallWrap:
		return "wrap"
	case router.CallUnwrap:
		return "unwrap"
	case router.CallTransfer:
		return "transfer"
	default:
		return "unknown"
	}
}
