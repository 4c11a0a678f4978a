package feetable

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"swaproute/core/state"
	"swaproute/crypto"
)

// maxFeeBps is the exclusive upper bound on a configured fee.
const maxFeeBps = 10_000

// defaultListLimit caps unbounded Fees listings.
const defaultListLimit = 30

var (
	// ErrUnauthorized rejects mutations from anyone but the admin.
	ErrUnauthorized = errors.New("feetable: caller is not the admin")
	// ErrFeeOutOfRange rejects fees at or above 100%.
	ErrFeeOutOfRange = errors.New("feetable: fee must be below 10000 bps")
	// ErrNotInitialized reports a table used before Init.
	ErrNotInitialized = errors.New("feetable: not initialized")
)

var (
	configKey = []byte("feetable/config")
	feesKey   = []byte("feetable/fees")
)

// Config holds the router's administrative addresses.
type Config struct {
	Admin        string
	FeeCollector string
	Adapter      string
}

// Fee is one venue's configured platform fee.
type Fee struct {
	Venue string
	Bps   uint32
}

type storedConfig struct {
	Admin        string
	FeeCollector string
	Adapter      string
}

type storedFee struct {
	Venue string
	Bps   uint32
}

type storedFees struct {
	Entries []storedFee
}

// Table is the persisted venue fee map plus admin configuration. All reads
// and writes go through the supplied KV so callers control atomicity.
type Table struct {
	kv state.KV
}

// NewTable binds a table to a KV backend.
func NewTable(kv state.KV) *Table {
	return &Table{kv: kv}
}

// Init writes the initial configuration. Addresses are canonicalised.
func (t *Table) Init(cfg Config) error {
	stored := storedConfig{}
	var err error
	if stored.Admin, err = crypto.ValidateAddress(cfg.Admin); err != nil {
		return fmt.Errorf("feetable: admin: %w", err)
	}
	if stored.FeeCollector, err = crypto.ValidateAddress(cfg.FeeCollector); err != nil {
		return fmt.Errorf("feetable: fee collector: %w", err)
	}
	if stored.Adapter, err = crypto.ValidateAddress(cfg.Adapter); err != nil {
		return fmt.Errorf("feetable: adapter: %w", err)
	}
	return t.kv.KVPut(configKey, &stored)
}

// Current returns the stored configuration.
func (t *Table) Current() (Config, error) {
	var stored storedConfig
	ok, err := t.kv.KVGet(configKey, &stored)
	if err != nil {
		return Config{}, err
	}
	if !ok {
		return Config{}, ErrNotInitialized
	}
	return Config{Admin: stored.Admin, FeeCollector: stored.FeeCollector, Adapter: stored.Adapter}, nil
}

func (t *Table) authorize(caller string) (storedConfig, error) {
	var stored storedConfig
	ok, err := t.kv.KVGet(configKey, &stored)
	if err != nil {
		return storedConfig{}, err
	}
	if !ok {
		return storedConfig{}, ErrNotInitialized
	}
	canonical, err := crypto.ValidateAddress(caller)
	if err != nil {
		return storedConfig{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if canonical != stored.Admin {
		return storedConfig{}, fmt.Errorf("%w: %s", ErrUnauthorized, canonical)
	}
	return stored, nil
}

// EnsureAdmin verifies that caller is the configured admin. Other components
// gate their own admin-only operations with it.
func (t *Table) EnsureAdmin(caller string) error {
	_, err := t.authorize(caller)
	return err
}

// SetFee installs or replaces the fee for a venue. Admin only.
func (t *Table) SetFee(caller, venue string, bps uint32) error {
	if _, err := t.authorize(caller); err != nil {
		return err
	}
	if bps >= maxFeeBps {
		return fmt.Errorf("%w: %d", ErrFeeOutOfRange, bps)
	}
	canonical, err := crypto.ValidateAddress(venue)
	if err != nil {
		return fmt.Errorf("feetable: venue: %w", err)
	}
	fees, err := t.loadFees()
	if err != nil {
		return err
	}
	idx := sort.Search(len(fees.Entries), func(i int) bool {
		return fees.Entries[i].Venue >= canonical
	})
	if idx < len(fees.Entries) && fees.Entries[idx].Venue == canonical {
		fees.Entries[idx].Bps = bps
	} else {
		fees.Entries = append(fees.Entries, storedFee{})
		copy(fees.Entries[idx+1:], fees.Entries[idx:])
		fees.Entries[idx] = storedFee{Venue: canonical, Bps: bps}
	}
	return t.kv.KVPut(feesKey, fees)
}

// RemoveFee deletes a venue's fee entry. Removing an absent venue is a
// no-op. Admin only.
func (t *Table) RemoveFee(caller, venue string) error {
	if _, err := t.authorize(caller); err != nil {
		return err
	}
	canonical, err := crypto.ValidateAddress(venue)
	if err != nil {
		return fmt.Errorf("feetable: venue: %w", err)
	}
	fees, err := t.loadFees()
	if err != nil {
		return err
	}
	idx := sort.Search(len(fees.Entries), func(i int) bool {
		return fees.Entries[i].Venue >= canonical
	})
	if idx >= len(fees.Entries) || fees.Entries[idx].Venue != canonical {
		return nil
	}
	fees.Entries = append(fees.Entries[:idx], fees.Entries[idx+1:]...)
	return t.kv.KVPut(feesKey, fees)
}

// UpdateAdmin hands control to a new admin address. Admin only.
func (t *Table) UpdateAdmin(caller, next string) error {
	stored, err := t.authorize(caller)
	if err != nil {
		return err
	}
	if stored.Admin, err = crypto.ValidateAddress(next); err != nil {
		return fmt.Errorf("feetable: new admin: %w", err)
	}
	return t.kv.KVPut(configKey, &stored)
}

// UpdateFeeCollector points fee transfers at a new collector. Admin only.
func (t *Table) UpdateFeeCollector(caller, next string) error {
	stored, err := t.authorize(caller)
	if err != nil {
		return err
	}
	if stored.FeeCollector, err = crypto.ValidateAddress(next); err != nil {
		return fmt.Errorf("feetable: new collector: %w", err)
	}
	return t.kv.KVPut(configKey, &stored)
}

// FeeBps resolves a venue's fee. The second return reports presence; an
// absent venue pays nothing. Satisfies the router's fee lookup.
func (t *Table) FeeBps(venue string) (uint32, bool, error) {
	canonical, err := crypto.ValidateAddress(venue)
	if err != nil {
		// Venues the router was never told about simply pay no fee.
		canonical = strings.TrimSpace(venue)
	}
	fees, err := t.loadFees()
	if err != nil {
		return 0, false, err
	}
	idx := sort.Search(len(fees.Entries), func(i int) bool {
		return fees.Entries[i].Venue >= canonical
	})
	if idx < len(fees.Entries) && fees.Entries[idx].Venue == canonical {
		return fees.Entries[idx].Bps, true, nil
	}
	return 0, false, nil
}

// Fees lists configured fees in venue order, starting strictly after
// startAfter, at most limit entries (a zero limit applies the default).
func (t *Table) Fees(startAfter string, limit int) ([]Fee, error) {
	fees, err := t.loadFees()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	start := 0
	if startAfter != "" {
		start = sort.Search(len(fees.Entries), func(i int) bool {
			return fees.Entries[i].Venue > startAfter
		})
	}
	out := make([]Fee, 0, limit)
	for _, entry := range fees.Entries[start:] {
		if len(out) == limit {
			break
		}
		out = append(out, Fee{Venue: entry.Venue, Bps: entry.Bps})
	}
	return out, nil
}

func (t *Table) loadFees() (*storedFees, error) {
	fees := &storedFees{}
	if _, err := t.kv.KVGet(feesKey, fees); err != nil {
		return nil, err
	}
	return fees, nil
}
