package quote

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"swaproute/crypto"
	"swaproute/native/router"
)

func addr(seed byte) string {
	return crypto.NewAddress("rt", bytes.Repeat([]byte{seed}, 20)).String()
}

// fixedRate quotes every venue at a constant output-per-input ratio,
// expressed as numerator/denominator to keep the math integral.
type fixedRate struct {
	rates map[string][2]int64
}

func (f *fixedRate) quote(venue string, offer router.Asset) (*big.Int, error) {
	rate, ok := f.rates[venue]
	if !ok {
		return nil, fmt.Errorf("no market at %s", venue)
	}
	out := new(big.Int).Mul(offer.Amount, big.NewInt(rate[0]))
	return out.Quo(out, big.NewInt(rate[1])), nil
}

func (f *fixedRate) Simulate(venue string, offer router.Asset, _ router.AssetInfo) (*big.Int, error) {
	return f.quote(venue, offer)
}

func (f *fixedRate) OutputQuantity(venue string, offer router.Asset, _ router.AssetInfo) (*big.Int, error) {
	return f.quote(venue, offer)
}

type stubFees map[string]uint32

func (s stubFees) FeeBps(venue string) (uint32, bool, error) {
	bps, ok := s[venue]
	return bps, ok, nil
}

func TestSimulateSingleSplit(t *testing.T) {
	native := router.NativeInfo("uatom")
	wrapped := router.WrappedInfo(addr(0x20))
	v1 := addr(0x10)
	q := &fixedRate{rates: map[string][2]int64{v1: {50, 1}}}

	stages := []router.Stage{{Splits: []router.Split{
		{Ops: []router.Operation{{Kind: router.OpPoolSwap, Venue: v1, Offer: native, Ask: wrapped}}, Percent: 100},
	}}}
	got, err := SimulateRoute(q, nil, stages, router.Asset{Info: native, Amount: big.NewInt(1000)})
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if got.Output.Cmp(big.NewInt(50000)) != 0 {
		t.Fatalf("output %s, want 50000", got.Output)
	}
	if !got.Asset.Equal(wrapped) {
		t.Fatalf("asset %+v, want wrapped", got.Asset)
	}
}

func TestSimulateMatchesExecutionAllocation(t *testing.T) {
	native := router.NativeInfo("uatom")
	wrapped := router.WrappedInfo(addr(0x20))
	v1, v2, v3 := addr(0x10), addr(0x11), addr(0x12)
	// Identity markets isolate the allocator: the quote equals the sum of
	// the allocated shares, which must reproduce remainder-to-last.
	q := &fixedRate{rates: map[string][2]int64{v1: {1, 1}, v2: {1, 1}, v3: {1, 1}}}

	stages := []router.Stage{{Splits: []router.Split{
		{Ops: []router.Operation{{Kind: router.OpPoolSwap, Venue: v1, Offer: native, Ask: wrapped}}, Percent: 33},
		{Ops: []router.Operation{{Kind: router.OpPoolSwap, Venue: v2, Offer: native, Ask: wrapped}}, Percent: 42},
		{Ops: []router.Operation{{Kind: router.OpBookSwap, Venue: v3, Offer: native, Ask: wrapped}}, Percent: 25},
	}}}
	got, err := SimulateRoute(q, nil, stages, router.Asset{Info: native, Amount: big.NewInt(9999)})
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if got.Output.Cmp(big.NewInt(9999)) != 0 {
		t.Fatalf("identity route lost units: %s", got.Output)
	}
}

func TestSimulateCrossRepresentationStage(t *testing.T) {
	uatom := router.NativeInfo("uatom")
	uosmo := router.NativeInfo("uosmo")
	wosmo := router.WrappedInfo(addr(0x21))
	final := router.NativeInfo("ufinal")
	v1, v2, v3 := addr(0x10), addr(0x11), addr(0x12)
	q := &fixedRate{rates: map[string][2]int64{v1: {1, 5}, v2: {2, 1}, v3: {3, 1}}}

	stages := []router.Stage{
		{Splits: []router.Split{
			{Ops: []router.Operation{{Kind: router.OpPoolSwap, Venue: v1, Offer: uatom, Ask: uosmo}}, Percent: 100},
		}},
		{Splits: []router.Split{
			{Ops: []router.Operation{{Kind: router.OpPoolSwap, Venue: v2, Offer: uosmo, Ask: final}}, Percent: 60},
			{Ops: []router.Operation{{Kind: router.OpPoolSwap, Venue: v3, Offer: wosmo, Ask: final}}, Percent: 40},
		}},
	}
	got, err := SimulateRoute(q, nil, stages, router.Asset{Info: uatom, Amount: big.NewInt(5000)})
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	// 5000/5 = 1000 uosmo; 600 native through v2 at x2, 400 converted at
	// par through v3 at x3: 1200 + 1200.
	if got.Output.Cmp(big.NewInt(2400)) != 0 {
		t.Fatalf("output %s, want 2400", got.Output)
	}
}

func TestSimulateAppliesFees(t *testing.T) {
	native := router.NativeInfo("uatom")
	wrapped := router.WrappedInfo(addr(0x20))
	v1 := addr(0x10)
	q := &fixedRate{rates: map[string][2]int64{v1: {10, 1}}}

	stages := []router.Stage{{Splits: []router.Split{
		{Ops: []router.Operation{{Kind: router.OpPoolSwap, Venue: v1, Offer: native, Ask: wrapped}}, Percent: 100},
	}}}
	got, err := SimulateRoute(q, stubFees{v1: 30}, stages, router.Asset{Info: native, Amount: big.NewInt(1000)})
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	// 10000 gross, 30 bps = 30 fee.
	if got.Output.Cmp(big.NewInt(9970)) != 0 {
		t.Fatalf("output %s, want 9970", got.Output)
	}
}

type failingFees struct {
	err error
}

func (f failingFees) FeeBps(string) (uint32, bool, error) {
	return 0, false, f.err
}

func TestSimulateFeeLookupFailurePropagates(t *testing.T) {
	native := router.NativeInfo("uatom")
	wrapped := router.WrappedInfo(addr(0x20))
	v1 := addr(0x10)
	q := &fixedRate{rates: map[string][2]int64{v1: {10, 1}}}

	stages := []router.Stage{{Splits: []router.Split{
		{Ops: []router.Operation{{Kind: router.OpPoolSwap, Venue: v1, Offer: native, Ask: wrapped}}, Percent: 100},
	}}}
	tableDown := errors.New("fee table unavailable")
	_, err := SimulateRoute(q, failingFees{err: tableDown}, stages, router.Asset{Info: native, Amount: big.NewInt(1000)})
	if !errors.Is(err, tableDown) {
		t.Fatalf("expected fee lookup failure to surface, got %v", err)
	}
}

func TestSimulateValidation(t *testing.T) {
	native := router.NativeInfo("uatom")
	if _, err := SimulateRoute(&fixedRate{}, nil, nil, router.Asset{Info: native, Amount: big.NewInt(1)}); !errors.Is(err, router.ErrNoStages) {
		t.Fatalf("expected ErrNoStages, got %v", err)
	}
	stages := []router.Stage{{Splits: []router.Split{
		{Ops: []router.Operation{{Kind: router.OpPoolSwap, Venue: addr(0x10), Offer: native, Ask: native}}, Percent: 100},
	}}}
	if _, err := SimulateRoute(&fixedRate{}, nil, stages, router.Asset{Info: native, Amount: big.NewInt(0)}); !errors.Is(err, router.ErrZeroAmount) {
		t.Fatalf("expected ErrZeroAmount, got %v", err)
	}
}
