package gateway

import (
	"fmt"
	"math/big"
	"strings"

	"swaproute/native/router"
)

// Wire types for the JSON surface. Amounts travel as decimal strings so
// 128-bit values survive encoding.

type assetInfoWire struct {
	Kind     string `json:"kind"`
	Denom    string `json:"denom,omitempty"`
	Contract string `json:"contract,omitempty"`
}

type assetWire struct {
	Kind     string `json:"kind"`
	Denom    string `json:"denom,omitempty"`
	Contract string `json:"contract,omitempty"`
	Amount   string `json:"amount"`
}

type operationWire struct {
	Kind  string        `json:"kind"`
	Venue string        `json:"venue"`
	Offer assetInfoWire `json:"offer"`
	Ask   assetInfoWire `json:"ask"`
}

type splitWire struct {
	Percent uint8           `json:"percent"`
	Ops     []operationWire `json:"ops"`
}

type stageWire struct {
	Splits []splitWire `json:"splits"`
}

type routeRequest struct {
	Initiator      string      `json:"initiator"`
	MinimumReceive string      `json:"minimum_receive,omitempty"`
	Offer          assetWire   `json:"offer"`
	Stages         []stageWire `json:"stages"`
}

type routeResponse struct {
	FinalReceived string        `json:"final_received"`
	Asset         assetInfoWire `json:"asset"`
}

type quoteRequest struct {
	Offer  assetWire   `json:"offer"`
	Stages []stageWire `json:"stages"`
}

type quoteResponse struct {
	Output string        `json:"output"`
	Asset  assetInfoWire `json:"asset"`
}

type feeWire struct {
	Venue string `json:"venue"`
	Bps   uint32 `json:"bps"`
}

type setFeeRequest struct {
	Caller string `json:"caller"`
	Bps    uint32 `json:"bps"`
}

type removeFeeRequest struct {
	Caller string `json:"caller"`
}

type updateAdminRequest struct {
	Caller string `json:"caller"`
	Admin  string `json:"admin"`
}

type updateCollectorRequest struct {
	Caller    string `json:"caller"`
	Collector string `json:"collector"`
}

type withdrawRequest struct {
	Caller    string    `json:"caller"`
	Recipient string    `json:"recipient"`
	Asset     assetWire `json:"asset"`
}

type withdrawResponse struct {
	Recipient string        `json:"recipient"`
	Amount    string        `json:"amount"`
	Asset     assetInfoWire `json:"asset"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func parseInfo(w assetInfoWire) (router.AssetInfo, error) {
	switch strings.ToLower(strings.TrimSpace(w.Kind)) {
	case "native":
		if w.Denom == "" {
			return router.AssetInfo{}, fmt.Errorf("native asset requires denom")
		}
		return router.NativeInfo(w.Denom), nil
	case "wrapped":
		if w.Contract == "" {
			return router.AssetInfo{}, fmt.Errorf("wrapped asset requires contract")
		}
		return router.WrappedInfo(w.Contract), nil
	default:
		return router.AssetInfo{}, fmt.Errorf("asset kind must be native or wrapped, got %q", w.Kind)
	}
}

func renderInfo(info router.AssetInfo) assetInfoWire {
	if info.Kind == router.KindWrapped {
		return assetInfoWire{Kind: "wrapped", Contract: info.Contract}
	}
	return assetInfoWire{Kind: "native", Denom: info.Denom}
}

func parseAsset(w assetWire) (router.Asset, error) {
	info, err := parseInfo(assetInfoWire{Kind: w.Kind, Denom: w.Denom, Contract: w.Contract})
	if err != nil {
		return router.Asset{}, err
	}
	amount, err := parseAmount(w.Amount)
	if err != nil {
		return router.Asset{}, err
	}
	return router.Asset{Info: info, Amount: amount}, nil
}

func parseAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("amount required")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || amount.Sign() < 0 {
		return nil, fmt.Errorf("amount %q is not a non-negative decimal", raw)
	}
	return amount, nil
}

func parseStages(wire []stageWire) ([]router.Stage, error) {
	stages := make([]router.Stage, len(wire))
	for i, sw := range wire {
		splits := make([]router.Split, len(sw.Splits))
		for j, spw := range sw.Splits {
			ops := make([]router.Operation, len(spw.Ops))
			for k, ow := range spw.Ops {
				var kind router.OpKind
				switch strings.ToLower(strings.TrimSpace(ow.Kind)) {
				case "pool":
					kind = router.OpPoolSwap
				case "book":
					kind = router.OpBookSwap
				default:
					return nil, fmt.Errorf("operation kind must be pool or book, got %q", ow.Kind)
				}
				offer, err := parseInfo(ow.Offer)
				if err != nil {
					return nil, err
				}
				ask, err := parseInfo(ow.Ask)
				if err != nil {
					return nil, err
				}
				ops[k] = router.Operation{Kind: kind, Venue: ow.Venue, Offer: offer, Ask: ask}
			}
			splits[j] = router.Split{Ops: ops, Percent: spw.Percent}
		}
		stages[i] = router.Stage{Splits: splits}
	}
	return stages, nil
}

func parseRouteRequest(req routeRequest) (*router.RoutePlan, router.Asset, error) {
	offer, err := parseAsset(req.Offer)
	if err != nil {
		return nil, router.Asset{}, err
	}
	stages, err := parseStages(req.Stages)
	if err != nil {
		return nil, router.Asset{}, err
	}
	minimum := big.NewInt(0)
	if strings.TrimSpace(req.MinimumReceive) != "" {
		if minimum, err = parseAmount(req.MinimumReceive); err != nil {
			return nil, router.Asset{}, err
		}
	}
	plan := &router.RoutePlan{
		Initiator:      req.Initiator,
		MinimumReceive: minimum,
		Stages:         stages,
	}
	return plan, offer, nil
}
