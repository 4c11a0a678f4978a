package router

import (
	"fmt"
	"math/big"
)

// feeDenominator is the basis-point scale: a fee of 10_000 bps would take the
// whole output, so configured fees are always strictly below it.
const feeDenominator = 10_000

// FeeTable resolves the platform fee charged on a venue's output. The second
// return reports whether a fee is configured for the venue at all.
type FeeTable interface {
	FeeBps(venue string) (uint32, bool, error)
}

// applyFee deducts the venue fee from a gross swap output, flooring the fee
// share so the trader keeps every indivisible remainder unit. It returns the
// net amount retained for routing and the fee portion owed to the collector.
func applyFee(gross *big.Int, bps uint32) (*big.Int, *big.Int, error) {
	if gross == nil || gross.Sign() < 0 {
		return nil, nil, fmt.Errorf("router: invalid gross amount")
	}
	if bps >= feeDenominator {
		return nil, nil, fmt.Errorf("router: fee %d bps out of range", bps)
	}
	if bps == 0 || gross.Sign() == 0 {
		return cloneAmount(gross), big.NewInt(0), nil
	}
	fee := new(big.Int).Mul(gross, big.NewInt(int64(bps)))
	fee.Quo(fee, big.NewInt(feeDenominator))
	net := new(big.Int).Sub(gross, fee)
	return net, fee, nil
}

// chargeFee resolves the venue fee and applies it, emitting a transfer to the
// collector when a positive fee was taken. A venue with no configured fee
// passes the gross amount through untouched.
func (e *Engine) chargeFee(res *Result, id uint64, venue string, output Asset) (*big.Int, error) {
	bps, ok, err := e.fees.FeeBps(venue)
	if err != nil {
		return nil, err
	}
	if !ok || bps == 0 {
		return cloneAmount(output.Amount), nil
	}
	net, fee, err := applyFee(output.Amount, bps)
	if err != nil {
		return nil, err
	}
	if fee.Sign() > 0 {
		res.addCall(Call{
			ExecutionID: id,
			Kind:        CallTransfer,
			Target:      e.cfg.FeeCollector,
			Offer:       Asset{Info: output.Info, Amount: fee},
		})
		res.emit(feeChargedEvent(id, venue, fee))
	}
	return net, nil
}
