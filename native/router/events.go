package router

import (
	"math/big"

	"swaproute/core/events"
)

func routeSubmittedEvent(id uint64, initiator string, stages int, offer *big.Int) events.Event {
	return events.RouteSubmitted{ExecutionID: id, Initiator: initiator, Stages: stages, OfferAmount: cloneAmount(offer)}
}

func stageCompletedEvent(id uint64, stage uint32) events.Event {
	return events.StageCompleted{ExecutionID: id, Stage: stage}
}

func conversionScheduledEvent(id uint64, amount *big.Int, target AssetInfo) events.Event {
	return events.ConversionScheduled{ExecutionID: id, Amount: cloneAmount(amount), Target: target.ID()}
}

func feeChargedEvent(id uint64, venue string, amount *big.Int) events.Event {
	return events.FeeCharged{ExecutionID: id, Venue: venue, Amount: cloneAmount(amount)}
}

func routeCompletedEvent(id uint64, initiator string, received *big.Int, asset AssetInfo) events.Event {
	return events.RouteCompleted{ExecutionID: id, Initiator: initiator, FinalReceived: cloneAmount(received), Asset: asset.ID()}
}
