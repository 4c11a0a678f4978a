package quote

import (
	"fmt"
	"math/big"

	"swaproute/native/router"
)

// VenueQuerier answers read-only pricing questions. Pool venues are asked to
// Simulate a swap, book venues for the OutputQuantity an atomic fill would
// yield.
type VenueQuerier interface {
	Simulate(venue string, offer router.Asset, ask router.AssetInfo) (*big.Int, error)
	OutputQuantity(venue string, offer router.Asset, ask router.AssetInfo) (*big.Int, error)
}

// Quote is the simulated outcome of a route.
type Quote struct {
	Asset  router.AssetInfo
	Output *big.Int
}

// SimulateRoute walks the declared stages without touching any state,
// allocating per-split amounts exactly the way execution would: percentages
// address the pile of the split's input representation, the last split of a
// fully allocated representation absorbs the rounding remainder, and
// surpluses cross representations at par to feed the splits holding nothing.
// Venue fees are deducted per completed hop.
func SimulateRoute(q VenueQuerier, fees router.FeeTable, stages []router.Stage, offer router.Asset) (*Quote, error) {
	if len(stages) == 0 {
		return nil, router.ErrNoStages
	}
	if offer.Amount == nil || offer.Amount.Sign() == 0 {
		return nil, router.ErrZeroAmount
	}

	held := map[router.AssetKind]*big.Int{
		offer.Info.Kind: new(big.Int).Set(offer.Amount),
	}
	for _, stage := range stages {
		next, err := simulateStage(q, fees, stage, held)
		if err != nil {
			return nil, err
		}
		held = next
	}

	last := stages[len(stages)-1]
	if len(last.Splits) == 0 {
		return nil, router.ErrEmptyRoute
	}
	target, err := last.Splits[0].Output()
	if err != nil {
		return nil, err
	}
	total := big.NewInt(0)
	for _, amount := range held {
		total.Add(total, amount)
	}
	return &Quote{Asset: target, Output: total}, nil
}

type allocation struct {
	split  router.Split
	amount *big.Int
}

func simulateStage(q VenueQuerier, fees router.FeeTable, stage router.Stage, held map[router.AssetKind]*big.Int) (map[router.AssetKind]*big.Int, error) {
	if len(stage.Splits) == 0 {
		return nil, router.ErrEmptyRoute
	}

	byKind := map[router.AssetKind][]router.Split{}
	for _, split := range stage.Splits {
		input, err := split.Input()
		if err != nil {
			return nil, err
		}
		byKind[input.Kind] = append(byKind[input.Kind], split)
	}

	var (
		funded  []allocation
		deficit = map[router.AssetKind][]router.Split{}
		surplus = map[router.AssetKind]*big.Int{}
	)

	for _, kind := range []router.AssetKind{router.KindNative, router.KindWrapped} {
		splits := byKind[kind]
		var pctSum uint32
		for _, split := range splits {
			pctSum += uint32(split.Percent)
		}
		if pctSum > 100 {
			return nil, router.ErrInvalidPercentageSum
		}
		pile := held[kind]
		if pile == nil || pile.Sign() == 0 {
			deficit[kind] = splits
			continue
		}
		if len(splits) == 0 {
			surplus[kind] = new(big.Int).Set(pile)
			continue
		}
		allocated := big.NewInt(0)
		for n, split := range splits {
			var share *big.Int
			if pctSum == 100 && n == len(splits)-1 {
				share = new(big.Int).Sub(pile, allocated)
			} else {
				share = new(big.Int).Mul(pile, big.NewInt(int64(split.Percent)))
				share.Quo(share, big.NewInt(100))
			}
			allocated.Add(allocated, share)
			if share.Sign() == 0 {
				continue
			}
			funded = append(funded, allocation{split: split, amount: share})
		}
		if rest := new(big.Int).Sub(pile, allocated); rest.Sign() > 0 {
			surplus[kind] = rest
		}
	}

	// Surpluses convert at par and feed the other representation's unfunded
	// splits, weighted by their percentages with the remainder on the last.
	for _, kind := range []router.AssetKind{router.KindNative, router.KindWrapped} {
		pool := surplus[kind]
		if pool == nil || pool.Sign() == 0 {
			continue
		}
		targets := deficit[kind.Other()]
		var pctSum uint32
		for _, split := range targets {
			pctSum += uint32(split.Percent)
		}
		if len(targets) == 0 || pctSum == 0 {
			return nil, fmt.Errorf("%w: %s simulated units", router.ErrUnroutableSurplus, pool)
		}
		allocated := big.NewInt(0)
		for n, split := range targets {
			var share *big.Int
			if n == len(targets)-1 {
				share = new(big.Int).Sub(pool, allocated)
			} else {
				share = new(big.Int).Mul(pool, big.NewInt(int64(split.Percent)))
				share.Quo(share, big.NewInt(int64(pctSum)))
			}
			allocated.Add(allocated, share)
			if share.Sign() == 0 {
				continue
			}
			funded = append(funded, allocation{split: split, amount: share})
		}
	}

	out := map[router.AssetKind]*big.Int{}
	for _, alloc := range funded {
		output, outKind, err := simulateSplit(q, fees, alloc.split, alloc.amount)
		if err != nil {
			return nil, err
		}
		if out[outKind] == nil {
			out[outKind] = big.NewInt(0)
		}
		out[outKind].Add(out[outKind], output)
	}
	return out, nil
}

// simulateSplit pushes an amount through a split's hop path. Mid-path
// representation changes convert at par, just like execution.
func simulateSplit(q VenueQuerier, fees router.FeeTable, split router.Split, amount *big.Int) (*big.Int, router.AssetKind, error) {
	current := new(big.Int).Set(amount)
	var outKind router.AssetKind
	for _, op := range split.Ops {
		offer := router.Asset{Info: op.Offer, Amount: current}
		var (
			gross *big.Int
			err   error
		)
		switch op.Kind {
		case router.OpPoolSwap:
			gross, err = q.Simulate(op.Venue, offer, op.Ask)
		case router.OpBookSwap:
			gross, err = q.OutputQuantity(op.Venue, offer, op.Ask)
		default:
			err = fmt.Errorf("%w: unknown operation kind %d", router.ErrEmptyRoute, op.Kind)
		}
		if err != nil {
			return nil, 0, err
		}
		if current, err = deductFee(fees, op.Venue, gross); err != nil {
			return nil, 0, err
		}
		outKind = op.Ask.Kind
	}
	return current, outKind, nil
}

// deductFee mirrors execution's fee charge. A lookup failure propagates, so
// the quote aborts on the same fee-table faults the engine would abort on.
func deductFee(fees router.FeeTable, venue string, gross *big.Int) (*big.Int, error) {
	if fees == nil {
		return gross, nil
	}
	bps, ok, err := fees.FeeBps(venue)
	if err != nil {
		return nil, err
	}
	if !ok || bps == 0 {
		return gross, nil
	}
	fee := new(big.Int).Mul(gross, big.NewInt(int64(bps)))
	fee.Quo(fee, big.NewInt(10_000))
	return new(big.Int).Sub(gross, fee), nil
}
