package router

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

// AssetKind distinguishes the two mutually-convertible asset representations
// the router normalises between.
type AssetKind uint8

const (
	// KindNative identifies bank-denominated assets.
	KindNative AssetKind = iota + 1
	// KindWrapped identifies contract-wrapped assets.
	KindWrapped
)

func (k AssetKind) valid() bool {
	return k == KindNative || k == KindWrapped
}

// Other returns the opposite representation kind.
func (k AssetKind) Other() AssetKind {
	if k == KindNative {
		return KindWrapped
	}
	return KindNative
}

// AssetInfo names one concrete asset in one representation. Denom is set for
// native assets, Contract for wrapped assets; the other field is empty.
type AssetInfo struct {
	Kind     AssetKind
	Denom    string
	Contract string
}

// NativeInfo builds the native representation of denom.
func NativeInfo(denom string) AssetInfo {
	return AssetInfo{Kind: KindNative, Denom: denom}
}

// WrappedInfo builds the wrapped representation backed by contract.
func WrappedInfo(contract string) AssetInfo {
	return AssetInfo{Kind: KindWrapped, Contract: contract}
}

// Equal reports whether two infos name the same asset in the same
// representation. Infos are only ever compared for equality, never ordered.
func (i AssetInfo) Equal(o AssetInfo) bool {
	return i.Kind == o.Kind && i.Denom == o.Denom && i.Contract == o.Contract
}

// ID returns the denom or contract address identifying the asset.
func (i AssetInfo) ID() string {
	if i.Kind == KindWrapped {
		return i.Contract
	}
	return i.Denom
}

func (i AssetInfo) validate() error {
	switch i.Kind {
	case KindNative:
		if i.Denom == "" {
			return fmt.Errorf("%w: native asset missing denom", ErrEmptyRoute)
		}
	case KindWrapped:
		if i.Contract == "" {
			return fmt.Errorf("%w: wrapped asset missing contract", ErrEmptyRoute)
		}
	default:
		return fmt.Errorf("%w: unknown asset kind %d", ErrEmptyRoute, i.Kind)
	}
	return nil
}

// Asset pairs an AssetInfo with an amount. Amounts are never negative and
// must fit in 128 bits.
type Asset struct {
	Info   AssetInfo
	Amount *big.Int
}

// Clone returns a deep copy of the asset.
func (a Asset) Clone() Asset {
	return Asset{Info: a.Info, Amount: cloneAmount(a.Amount)}
}

// OpKind distinguishes the venue styles a hop can execute against.
type OpKind uint8

const (
	// OpPoolSwap executes against a pool-style automated market maker.
	OpPoolSwap OpKind = iota + 1
	// OpBookSwap executes against an order-book-style venue.
	OpBookSwap
)

func (k OpKind) valid() bool {
	return k == OpPoolSwap || k == OpBookSwap
}

// Operation identifies a single hop at a single venue.
type Operation struct {
	Kind  OpKind
	Venue string
	Offer AssetInfo
	Ask   AssetInfo
}

func (o Operation) validate() error {
	if !o.Kind.valid() {
		return fmt.Errorf("%w: unknown operation kind %d", ErrEmptyRoute, o.Kind)
	}
	if o.Venue == "" {
		return fmt.Errorf("%w: operation missing venue address", ErrEmptyRoute)
	}
	if err := o.Offer.validate(); err != nil {
		return err
	}
	return o.Ask.validate()
}

// Split is a fractional allocation within a stage. Ops is the hop path the
// allocated amount travels; the common case is a single hop.
type Split struct {
	Ops     []Operation
	Percent uint8
}

// Input returns the representation the split's first hop consumes.
func (s Split) Input() (AssetInfo, error) {
	if len(s.Ops) == 0 {
		return AssetInfo{}, fmt.Errorf("%w: split has no operations", ErrEmptyRoute)
	}
	return s.Ops[0].Offer, nil
}

// Output returns the representation the split's last hop produces.
func (s Split) Output() (AssetInfo, error) {
	if len(s.Ops) == 0 {
		return AssetInfo{}, fmt.Errorf("%w: split has no operations", ErrEmptyRoute)
	}
	return s.Ops[len(s.Ops)-1].Ask, nil
}

// Stage is one sequential step of a route.
type Stage struct {
	Splits []Split
}

// RoutePlan is the immutable declaration of one route execution. It is
// written once at submission and deleted when the execution terminates.
type RoutePlan struct {
	Initiator      string
	MinimumReceive *big.Int
	Stages         []Stage
}

// Phase names the callback kind the continuation is waiting on.
type Phase uint8

const (
	// PhaseSwaps awaits venue swap completions for the current stage.
	PhaseSwaps Phase = iota + 1
	// PhaseConversions awaits wrap/unwrap completions between stages.
	PhaseConversions
	// PhaseFinalConversions awaits wrap/unwrap completions during settlement.
	PhaseFinalConversions
	// PhasePathConversion awaits a single mid-path wrap/unwrap inside a
	// multi-hop split.
	PhasePathConversion
)

// PlannedSwap is a concrete, already-allocated hop queued for dispatch. A
// zero amount marks a split waiting to be fed by conversion outputs.
type PlannedSwap struct {
	Op     Operation
	Amount *big.Int
}

// PendingPathOp records the next hop of a multi-hop split while a mid-path
// conversion is in flight.
type PendingPathOp struct {
	Op     Operation
	Amount *big.Int
}

// ExecutionState is the live continuation for one execution id. It is
// exclusively owned by that id and mutated only by the engine.
type ExecutionState struct {
	Awaiting        Phase
	CurrentStage    uint32
	RepliesExpected uint32
	Accumulated     []Asset
	PendingSwaps    []PlannedSwap
	PendingPathOp   *PendingPathOp
	FinalTarget     *AssetInfo
	FinalReady      *big.Int
}

func cloneAmount(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// checkAmount rejects nil, negative, and over-128-bit amounts.
func checkAmount(v *big.Int) error {
	if v == nil {
		return fmt.Errorf("%w: nil amount", ErrAmountOverflow)
	}
	if v.Sign() < 0 {
		return fmt.Errorf("%w: negative amount %s", ErrAmountOverflow, v)
	}
	u, overflow := uint256.FromBig(v)
	if overflow || u.BitLen() > 128 {
		return fmt.Errorf("%w: amount %s exceeds 128 bits", ErrAmountOverflow, v)
	}
	return nil
}

// checkedSub returns a-b, erroring instead of going negative.
func checkedSub(a, b *big.Int) (*big.Int, error) {
	if a.Cmp(b) < 0 {
		return nil, fmt.Errorf("%w: %s - %s", ErrInsufficientBalance, a, b)
	}
	return new(big.Int).Sub(a, b), nil
}
