package router

import "errors"

var (
	// ErrZeroAmount rejects submissions whose offer amount is zero.
	ErrZeroAmount = errors.New("router: input amount must be greater than zero")
	// ErrNoStages rejects submissions with an empty stage list.
	ErrNoStages = errors.New("router: no stages provided")
	// ErrEmptyRoute reports a structurally incomplete route declaration.
	ErrEmptyRoute = errors.New("router: route cannot be empty")
	// ErrInvalidPercentageSum rejects a first stage whose split percentages do
	// not sum to exactly 100.
	ErrInvalidPercentageSum = errors.New("router: percentages in a stage must sum to 100")
	// ErrInvalidSplitPath rejects a multi-hop split sharing its stage with
	// other splits.
	ErrInvalidSplitPath = errors.New("router: a multi-hop split must be the only split of its stage")
	// ErrUnroutableSurplus reports a surplus pile with no split of the other
	// representation to consume it after conversion.
	ErrUnroutableSurplus = errors.New("router: surplus has no consumer in the next stage")
	// ErrMismatchedInitialFunds rejects a submission whose offered asset is
	// not consumed by any first-stage split.
	ErrMismatchedInitialFunds = errors.New("router: offered asset does not match the first stage inputs")
	// ErrExecutionNotFound reports a callback for an execution id with no
	// persisted continuation, including stale re-deliveries after completion.
	ErrExecutionNotFound = errors.New("router: execution state not found")
	// ErrReplyParse reports a completion record missing or malformed.
	ErrReplyParse = errors.New("router: failed to parse completion reply")
	// ErrNoVenueInReply reports a swap completion event missing its venue tag.
	ErrNoVenueInReply = errors.New("router: completion reply missing venue")
	// ErrNoAmountInReply reports a completion event with a malformed amount.
	ErrNoAmountInReply = errors.New("router: completion reply missing amount")
	// ErrNoConversionEventInReply reports a conversion reply carrying no
	// credit addressed to the router.
	ErrNoConversionEventInReply = errors.New("router: no conversion event in reply")
	// ErrMinimumReceiveNotMet aborts settlement below the declared floor.
	ErrMinimumReceiveNotMet = errors.New("router: minimum receive amount not met")
	// ErrAmountOverflow reports an amount outside the unsigned 128-bit range.
	ErrAmountOverflow = errors.New("router: amount out of range")
	// ErrInsufficientBalance reports a checked subtraction that would go
	// negative.
	ErrInsufficientBalance = errors.New("router: insufficient balance")
)
