package crypto

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/bech32"
)

// Address represents a bech32-encoded account, venue, or contract address.
// The router never interprets the payload; it only needs a canonical string
// form for equality checks and storage keys.
type Address struct {
	prefix string
	bytes  []byte
}

// NewAddress builds an address from a human-readable prefix and raw payload.
func NewAddress(prefix string, b []byte) Address {
	return Address{prefix: prefix, bytes: append([]byte(nil), b...)}
}

// String returns the bech32 encoding of the address.
func (a Address) String() string {
	conv, err := bech32.ConvertBits(a.bytes, 8, 5, true)
	if err != nil {
		panic(err)
	}
	encoded, err := bech32.Encode(a.prefix, conv)
	if err != nil {
		panic(err)
	}
	return encoded
}

// Bytes returns the raw payload.
func (a Address) Bytes() []byte {
	return a.bytes
}

// Prefix returns the human-readable prefix associated with the address.
func (a Address) Prefix() string {
	return a.prefix
}

// DecodeAddress parses a bech32 address string.
func DecodeAddress(addrStr string) (Address, error) {
	prefix, decoded, err := bech32.Decode(strings.TrimSpace(addrStr))
	if err != nil {
		return Address{}, fmt.Errorf("invalid bech32 string: %w", err)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("error converting bits: %w", err)
	}
	return Address{prefix: prefix, bytes: conv}, nil
}

// ValidateAddress reports whether the supplied string is a well-formed bech32
// address and returns its canonical lower-case form.
func ValidateAddress(addrStr string) (string, error) {
	addr, err := DecodeAddress(addrStr)
	if err != nil {
		return "", err
	}
	return addr.String(), nil
}
