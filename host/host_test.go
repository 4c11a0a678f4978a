package host

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"testing"

	"swaproute/core/events"
	"swaproute/core/state"
	"swaproute/core/types"
	"swaproute/crypto"
	"swaproute/native/router"
	"swaproute/storage"
)

func addr(seed byte) string {
	return crypto.NewAddress("rt", bytes.Repeat([]byte{seed}, 20)).String()
}

var (
	selfAddr      = addr(0x01)
	collectorAddr = addr(0x02)
	adapterAddr   = addr(0x03)
	initiatorAddr = addr(0x04)
)

type stubFees map[string]uint32

func (s stubFees) FeeBps(venue string) (uint32, bool, error) {
	bps, ok := s[venue]
	return bps, ok, nil
}

// rateVenue answers every swap with amount*rate and a well-formed settlement
// event of the matching venue style.
type rateVenue struct {
	venue string
	rate  int64
	book  bool
	fail  bool
}

func (v *rateVenue) Swap(_ context.Context, call router.Call) ([]types.Event, error) {
	if v.fail {
		return nil, errors.New("venue offline")
	}
	out := new(big.Int).Mul(call.Offer.Amount, big.NewInt(v.rate))
	if v.book {
		return []types.Event{{
			Type: "atomic_swap_execution",
			Attributes: map[string]string{
				"venue":             v.venue,
				"swap_final_amount": out.String(),
			},
		}}, nil
	}
	return []types.Event{{
		Type: "swap",
		Attributes: map[string]string{
			"venue":         v.venue,
			"return_amount": out.String(),
		},
	}}, nil
}

// parAdapter converts one representation to the other without loss.
type parAdapter struct{ calls int }

func (a *parAdapter) Convert(_ context.Context, call router.Call) ([]types.Event, error) {
	a.calls++
	return []types.Event{{
		Type: "transfer",
		Attributes: map[string]string{
			"recipient": selfAddr,
			"amount":    call.Offer.Amount.String() + "converted",
		},
	}}, nil
}

// recordingBank captures outbound transfers.
type recordingBank struct {
	transfers []router.Call
}

func (b *recordingBank) Transfer(_ context.Context, call router.Call) error {
	b.transfers = append(b.transfers, call)
	return nil
}

type captureEmitter struct {
	seen []string
}

func (c *captureEmitter) Emit(evt events.Event) {
	c.seen = append(c.seen, evt.EventType())
}

type hostFixture struct {
	host    *Host
	bank    *recordingBank
	adapter *parAdapter
	emitter *captureEmitter
	db      *storage.MemDB
}

func newHost(t *testing.T, fees stubFees) *hostFixture {
	t.Helper()
	db := storage.NewMemDB()
	eng := router.NewEngine(state.NewStore(db), fees, router.Config{
		SelfAddress:    selfAddr,
		FeeCollector:   collectorAddr,
		AdapterAddress: adapterAddr,
	})
	bank := &recordingBank{}
	adapter := &parAdapter{}
	emitter := &captureEmitter{}
	return &hostFixture{
		host:    New(eng, adapter, bank, emitter, nil, nil),
		bank:    bank,
		adapter: adapter,
		emitter: emitter,
		db:      db,
	}
}

func TestExecuteSingleHopRoute(t *testing.T) {
	native := router.NativeInfo("uatom")
	wrapped := router.WrappedInfo(addr(0x20))
	v1 := addr(0x10)
	fx := newHost(t, stubFees{v1: 50})
	fx.host.RegisterVenue(v1, &rateVenue{venue: v1, rate: 10})

	plan := &router.RoutePlan{
		Initiator:      initiatorAddr,
		MinimumReceive: big.NewInt(0),
		Stages: []router.Stage{{Splits: []router.Split{
			{Ops: []router.Operation{{Kind: router.OpPoolSwap, Venue: v1, Offer: native, Ask: wrapped}}, Percent: 100},
		}}},
	}
	final, err := fx.host.Execute(context.Background(), plan, router.Asset{Info: native, Amount: big.NewInt(1000)})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	// 10000 gross, 50 bps fee = 50.
	if final.Amount.Cmp(big.NewInt(9950)) != 0 {
		t.Fatalf("final %s, want 9950", final.Amount)
	}

	if len(fx.bank.transfers) != 2 {
		t.Fatalf("expected fee and settlement transfers, got %d", len(fx.bank.transfers))
	}
	byTarget := map[string]*big.Int{}
	for _, xfer := range fx.bank.transfers {
		byTarget[xfer.Target] = xfer.Offer.Amount
	}
	if byTarget[collectorAddr].Cmp(big.NewInt(50)) != 0 {
		t.Fatalf("fee transfer %v", byTarget[collectorAddr])
	}
	if byTarget[initiatorAddr].Cmp(big.NewInt(9950)) != 0 {
		t.Fatalf("settlement transfer %v", byTarget[initiatorAddr])
	}

	want := map[string]bool{
		events.TypeRouteSubmitted: false,
		events.TypeFeeCharged:     false,
		events.TypeRouteCompleted: false,
	}
	for _, kind := range fx.emitter.seen {
		if _, ok := want[kind]; ok {
			want[kind] = true
		}
	}
	for kind, seen := range want {
		if !seen {
			t.Fatalf("missing lifecycle event %s (saw %v)", kind, fx.emitter.seen)
		}
	}
}

func TestExecuteCrossRepresentationRoute(t *testing.T) {
	uatom := router.NativeInfo("uatom")
	uosmo := router.NativeInfo("uosmo")
	wosmo := router.WrappedInfo(addr(0x21))
	final := router.NativeInfo("ufinal")
	v1, v2, v3 := addr(0x10), addr(0x11), addr(0x12)
	fx := newHost(t, stubFees{})
	fx.host.RegisterVenue(v1, &rateVenue{venue: v1, rate: 1})
	fx.host.RegisterVenue(v2, &rateVenue{venue: v2, rate: 2})
	fx.host.RegisterVenue(v3, &rateVenue{venue: v3, rate: 3, book: true})

	plan := &router.RoutePlan{
		Initiator:      initiatorAddr,
		MinimumReceive: big.NewInt(0),
		Stages: []router.Stage{
			{Splits: []router.Split{
				{Ops: []router.Operation{{Kind: router.OpPoolSwap, Venue: v1, Offer: uatom, Ask: uosmo}}, Percent: 100},
			}},
			{Splits: []router.Split{
				{Ops: []router.Operation{{Kind: router.OpPoolSwap, Venue: v2, Offer: uosmo, Ask: final}}, Percent: 60},
				{Ops: []router.Operation{{Kind: router.OpBookSwap, Venue: v3, Offer: wosmo, Ask: final}}, Percent: 40},
			}},
		},
	}
	got, err := fx.host.Execute(context.Background(), plan, router.Asset{Info: uatom, Amount: big.NewInt(1000)})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	// 1000 through v1 at par; 600*2 + 400*3 after one conversion of 400.
	if got.Amount.Cmp(big.NewInt(2400)) != 0 {
		t.Fatalf("final %s, want 2400", got.Amount)
	}
	if fx.adapter.calls != 1 {
		t.Fatalf("expected exactly one conversion call, got %d", fx.adapter.calls)
	}
}

func TestExecuteUnknownVenueAborts(t *testing.T) {
	native := router.NativeInfo("uatom")
	wrapped := router.WrappedInfo(addr(0x20))
	fx := newHost(t, stubFees{})

	plan := &router.RoutePlan{
		Initiator:      initiatorAddr,
		MinimumReceive: big.NewInt(0),
		Stages: []router.Stage{{Splits: []router.Split{
			{Ops: []router.Operation{{Kind: router.OpPoolSwap, Venue: addr(0x10), Offer: native, Ask: wrapped}}, Percent: 100},
		}}},
	}
	_, err := fx.host.Execute(context.Background(), plan, router.Asset{Info: native, Amount: big.NewInt(100)})
	if !errors.Is(err, ErrUnknownVenue) {
		t.Fatalf("expected ErrUnknownVenue, got %v", err)
	}
	if len(fx.bank.transfers) != 0 {
		t.Fatalf("no transfers expected on abort, got %v", fx.bank.transfers)
	}
	// Abandoning releases everything but the id sequence.
	if fx.db.Len() != 1 {
		t.Fatalf("abandoned execution left %d keys", fx.db.Len())
	}
}

func TestExecuteVenueFailureAborts(t *testing.T) {
	native := router.NativeInfo("uatom")
	wrapped := router.WrappedInfo(addr(0x20))
	v1 := addr(0x10)
	fx := newHost(t, stubFees{})
	fx.host.RegisterVenue(v1, &rateVenue{venue: v1, rate: 10, fail: true})

	plan := &router.RoutePlan{
		Initiator:      initiatorAddr,
		MinimumReceive: big.NewInt(0),
		Stages: []router.Stage{{Splits: []router.Split{
			{Ops: []router.Operation{{Kind: router.OpPoolSwap, Venue: v1, Offer: native, Ask: wrapped}}, Percent: 100},
		}}},
	}
	if _, err := fx.host.Execute(context.Background(), plan, router.Asset{Info: native, Amount: big.NewInt(100)}); err == nil {
		t.Fatal("expected venue failure to abort execution")
	}
	if fx.db.Len() != 1 {
		t.Fatalf("abandoned execution left %d keys", fx.db.Len())
	}
}

func TestRecoverForwardsBalance(t *testing.T) {
	wrapped := router.WrappedInfo(addr(0x20))
	fx := newHost(t, stubFees{})

	asset := router.Asset{Info: wrapped, Amount: big.NewInt(777)}
	if err := fx.host.Recover(context.Background(), asset, initiatorAddr); err != nil {
		t.Fatalf("recover: %v", err)
	}
	if len(fx.bank.transfers) != 1 {
		t.Fatalf("expected one transfer, got %d", len(fx.bank.transfers))
	}
	xfer := fx.bank.transfers[0]
	if xfer.Kind != router.CallTransfer || xfer.Target != initiatorAddr {
		t.Fatalf("unexpected transfer %+v", xfer)
	}
	if xfer.Offer.Amount.Cmp(big.NewInt(777)) != 0 || !xfer.Offer.Info.Equal(wrapped) {
		t.Fatalf("unexpected recovered asset %+v", xfer.Offer)
	}
}

func TestCallKindLabels(t *testing.T) {
	for kind, want := range map[router.CallKind]string{
		router.CallPoolSwap: "pool_swap",
		router.CallBookSwap: "book_swap",
		router.CallWrap:     "wrap",
		router.CallUnwrap:   "unwrap",
		router.CallTransfer: "transfer",
	} {
		if got := callKindLabel(kind); got != want {
			t.Fatalf("label for %d: %s, want %s", kind, got, want)
		}
	}
}
