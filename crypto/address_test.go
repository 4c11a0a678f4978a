package crypto

import (
	"bytes"
	"testing"
)

func TestAddressRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte{0xAB}, 20)
	addr := NewAddress("rt", payload)
	encoded := addr.String()

	decoded, err := DecodeAddress(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Prefix() != "rt" {
		t.Fatalf("prefix %q", decoded.Prefix())
	}
	if !bytes.Equal(decoded.Bytes(), payload) {
		t.Fatalf("payload mismatch: %x", decoded.Bytes())
	}
}

func TestValidateAddress(t *testing.T) {
	addr := NewAddress("rt", bytes.Repeat([]byte{0x01}, 20)).String()

	canonical, err := ValidateAddress("  " + addr + "  ")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if canonical != addr {
		t.Fatalf("canonical %q, want %q", canonical, addr)
	}

	for _, bad := range []string{"", "not-bech32", "rt1qqqqinvalidchecksum"} {
		if _, err := ValidateAddress(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}
