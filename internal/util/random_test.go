package util

import "testing"

func TestGenerateRandomHex(t *testing.T) {
	hex := GenerateRandomHex(16)
	if len(hex) != 16 {
		t.Errorf("expected 16 characters, got %d", len(hex))
	}
	for _, c := range hex {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			t.Errorf("unexpected character %q in hex string", c)
		}
	}

	if GenerateRandomHex(0) != "" {
		t.Error("expected empty string for zero length")
	}
	if GenerateRandomHex(-1) != "" {
		t.Error("expected empty string for negative length")
	}
}
