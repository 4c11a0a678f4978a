package router

import (
	"fmt"
	"math/big"
)

// conversionOrder is one wrap/unwrap the reconciler wants performed before the
// stage can dispatch: convert from.Amount units of from.Info into target.
type conversionOrder struct {
	from   Asset
	target AssetInfo
}

// stagePlan is the reconciler's output for one stage: the hops to dispatch
// (deficit splits carry a zero amount until conversions feed them) and the
// conversions required first.
type stagePlan struct {
	swaps       []PlannedSwap
	conversions []conversionOrder
}

type pile struct {
	info   AssetInfo
	amount *big.Int
}

// planStage allocates the held assets across the stage's splits. Splits are
// grouped by the representation kind their first hop consumes; within a kind
// the percentages address that kind's pile. A per-kind sum of exactly 100
// consumes the pile with the remainder assigned to the last split, a sum
// under 100 leaves a surplus that is converted to the other kind, and a kind
// holding nothing yields zero-amount swaps fed later by conversion outputs.
func planStage(stage Stage, held []Asset) (*stagePlan, error) {
	if len(stage.Splits) == 0 {
		return nil, fmt.Errorf("%w: stage has no splits", ErrEmptyRoute)
	}

	piles := map[AssetKind]*pile{}
	for _, asset := range held {
		if asset.Amount == nil || asset.Amount.Sign() == 0 {
			continue
		}
		p, ok := piles[asset.Info.Kind]
		if !ok {
			piles[asset.Info.Kind] = &pile{info: asset.Info, amount: cloneAmount(asset.Amount)}
			continue
		}
		p.amount.Add(p.amount, asset.Amount)
	}

	byKind := map[AssetKind][]int{}
	for i, split := range stage.Splits {
		input, err := split.Input()
		if err != nil {
			return nil, err
		}
		byKind[input.Kind] = append(byKind[input.Kind], i)
	}

	plan := &stagePlan{}
	// Native first keeps allocation and conversion order deterministic.
	for _, kind := range []AssetKind{KindNative, KindWrapped} {
		if err := planKind(plan, stage, piles, byKind, kind); err != nil {
			return nil, err
		}
	}
	return plan, nil
}

func planKind(plan *stagePlan, stage Stage, piles map[AssetKind]*pile, byKind map[AssetKind][]int, kind AssetKind) error {
	indices := byKind[kind]
	held := piles[kind]

	var pctSum uint32
	for _, i := range indices {
		pctSum += uint32(stage.Splits[i].Percent)
	}
	if pctSum > 100 {
		return fmt.Errorf("%w: %d%% requested of the %s pile", ErrInvalidPercentageSum, pctSum, kindName(kind))
	}

	if held == nil || held.amount.Sign() == 0 {
		// Nothing held in this representation. Every split of the kind
		// waits on conversion feed.
		for _, i := range indices {
			plan.swaps = append(plan.swaps, PlannedSwap{Op: stage.Splits[i].Ops[0], Amount: big.NewInt(0)})
		}
		return nil
	}

	if len(indices) == 0 {
		// The whole pile is surplus for this stage.
		return plan.addSurplus(stage, byKind, kind, held.info, cloneAmount(held.amount))
	}

	total := held.amount
	allocated := big.NewInt(0)
	hundred := big.NewInt(100)
	for n, i := range indices {
		split := stage.Splits[i]
		var share *big.Int
		if pctSum == 100 && n == len(indices)-1 {
			// Last split of a fully-allocated kind absorbs the
			// rounding remainder so the pile is conserved exactly.
			var err error
			share, err = checkedSub(total, allocated)
			if err != nil {
				return err
			}
		} else {
			share = new(big.Int).Mul(total, big.NewInt(int64(split.Percent)))
			share.Quo(share, hundred)
		}
		allocated.Add(allocated, share)
		if share.Sign() == 0 {
			// A share rounding to zero is skipped outright.
			continue
		}
		plan.swaps = append(plan.swaps, PlannedSwap{Op: split.Ops[0], Amount: share})
	}

	surplus, err := checkedSub(total, allocated)
	if err != nil {
		return err
	}
	if surplus.Sign() > 0 {
		return plan.addSurplus(stage, byKind, kind, held.info, surplus)
	}
	return nil
}

// addSurplus queues the conversion of a surplus pile toward the opposite
// representation. The target is read off the deficit splits' declared hops,
// so discovery works even when nothing of the target kind is held yet. A
// surplus with no declared consumer on the other side cannot be routed.
func (p *stagePlan) addSurplus(stage Stage, byKind map[AssetKind][]int, kind AssetKind, from AssetInfo, amount *big.Int) error {
	other := byKind[kind.Other()]
	if len(other) == 0 {
		return fmt.Errorf("%w: %s units of %s", ErrUnroutableSurplus, amount, from.ID())
	}
	target, err := stage.Splits[other[0]].Input()
	if err != nil {
		return err
	}
	p.conversions = append(p.conversions, conversionOrder{
		from:   Asset{Info: from, Amount: amount},
		target: target,
	})
	return nil
}

// feedDeficits distributes a conversion pool across the zero-amount planned
// swaps, weighted by their declared percentages with the remainder assigned
// to the last one.
func feedDeficits(swaps []PlannedSwap, percents map[int]uint8, pool *big.Int) error {
	var targets []int
	var pctSum uint32
	for i, swap := range swaps {
		if swap.Amount.Sign() != 0 {
			continue
		}
		targets = append(targets, i)
		pctSum += uint32(percents[i])
	}
	if len(targets) == 0 || pctSum == 0 {
		return fmt.Errorf("%w: %s converted units", ErrUnroutableSurplus, pool)
	}
	allocated := big.NewInt(0)
	for n, i := range targets {
		var share *big.Int
		if n == len(targets)-1 {
			var err error
			share, err = checkedSub(pool, allocated)
			if err != nil {
				return err
			}
		} else {
			share = new(big.Int).Mul(pool, big.NewInt(int64(percents[i])))
			share.Quo(share, big.NewInt(int64(pctSum)))
		}
		allocated.Add(allocated, share)
		swaps[i].Amount = share
	}
	return nil
}

func kindName(k AssetKind) string {
	if k == KindWrapped {
		return "wrapped"
	}
	return "native"
}
