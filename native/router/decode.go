package router

import (
	"fmt"
	"math/big"
	"strings"

	"swaproute/core/types"
)

const (
	eventTypeSwap       = "swap"
	eventTypeAtomicSwap = "atomic_swap_execution"
	eventTypeTransfer   = "transfer"
	eventTypeWasm       = "wasm"

	attrVenue        = "venue"
	attrReturnAmount = "return_amount"
	attrFinalAmount  = "swap_final_amount"
	attrRecipient    = "recipient"
	attrAmount       = "amount"
	attrAction       = "action"

	actionTransfer = "transfer"
)

// parseAmount reads a base-10 amount, tolerating a trailing denomination
// suffix such as "12500uatom" the way transfer events report balances.
func parseAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	end := 0
	for end < len(trimmed) && trimmed[end] >= '0' && trimmed[end] <= '9' {
		end++
	}
	if end == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNoAmountInReply, raw)
	}
	amount, ok := new(big.Int).SetString(trimmed[:end], 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoAmountInReply, raw)
	}
	return amount, nil
}

// decodeSwapCompletion extracts the reporting venue, the gross output amount,
// and the venue kind from a settlement event batch. Book venues report
// through an atomic_swap_execution event, pool venues through a swap event or
// a wasm event carrying return_amount.
func decodeSwapCompletion(evts []types.Event) (string, *big.Int, OpKind, error) {
	for _, evt := range evts {
		switch evt.Type {
		case eventTypeAtomicSwap:
			raw, ok := evt.Attribute(attrFinalAmount)
			if !ok {
				continue
			}
			venue, ok := evt.Attribute(attrVenue)
			if !ok {
				return "", nil, 0, fmt.Errorf("%w: atomic swap event", ErrNoVenueInReply)
			}
			amount, err := parseAmount(raw)
			if err != nil {
				return "", nil, 0, err
			}
			return venue, amount, OpBookSwap, nil
		case eventTypeSwap, eventTypeWasm:
			raw, ok := evt.Attribute(attrReturnAmount)
			if !ok {
				continue
			}
			venue, ok := evt.Attribute(attrVenue)
			if !ok {
				return "", nil, 0, fmt.Errorf("%w: swap event", ErrNoVenueInReply)
			}
			amount, err := parseAmount(raw)
			if err != nil {
				return "", nil, 0, err
			}
			return venue, amount, OpPoolSwap, nil
		}
	}
	return "", nil, 0, fmt.Errorf("%w: no swap completion event", ErrReplyParse)
}

// decodeConversionCompletion extracts the converted amount credited to self
// from a wrap or unwrap settlement. Native credits arrive as bank transfer
// events addressed to self; contract credits arrive as wasm transfer actions.
func decodeConversionCompletion(evts []types.Event, self string) (*big.Int, error) {
	for _, evt := range evts {
		switch evt.Type {
		case eventTypeTransfer:
			recipient, ok := evt.Attribute(attrRecipient)
			if !ok || recipient != self {
				continue
			}
			raw, ok := evt.Attribute(attrAmount)
			if !ok {
				continue
			}
			return parseAmount(raw)
		case eventTypeWasm:
			action, ok := evt.Attribute(attrAction)
			if !ok || action != actionTransfer {
				continue
			}
			raw, ok := evt.Attribute(attrAmount)
			if !ok {
				continue
			}
			return parseAmount(raw)
		}
	}
	return nil, fmt.Errorf("%w: for recipient %s", ErrNoConversionEventInReply, self)
}
