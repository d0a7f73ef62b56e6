package validate

import (
	"strings"
	"testing"
)

func TestPhoneValidator(t *testing.T) {
	v := PhoneValidator{}

	valid := []struct {
		input string
		want  string
	}{
		{"11999998888", "11999998888"},
		{"(11) 99999-8888", "11999998888"},
		{"11-99999-8888", "11999998888"},
		{"+5511999998888", "+5511999998888"},
		{"  11999998888  ", "11999998888"},
	}
	for _, c := range valid {
		result := v.Validate(c.input)
		if !result.Valid {
			t.Errorf("expected %q to be valid, got error %q", c.input, result.Message)
			continue
		}
		if result.Normalized != c.want {
			t.Errorf("Validate(%q) normalized to %q, want %q", c.input, result.Normalized, c.want)
		}
	}

	invalid := []string{"", "   ", "abc", "123", "x", "9999-9999x", "99999999999999999999"}
	for _, input := range invalid {
		if result := v.Validate(input); result.Valid {
			t.Errorf("expected %q to be invalid, got normalized %q", input, result.Normalized)
		}
	}
}

func TestEmailValidator(t *testing.T) {
	v := EmailValidator{}

	result := v.Validate("Maria.Silva@Example.COM")
	if !result.Valid {
		t.Fatalf("expected valid, got error %q", result.Message)
	}
	if result.Normalized != "maria.silva@example.com" {
		t.Errorf("expected lowercase normalization, got %q", result.Normalized)
	}

	longLocal := strings.Repeat("a", 250) + "@example.com"
	if result := v.Validate(longLocal); result.Valid {
		t.Error("expected over-length email to be invalid")
	}

	invalid := []string{"", "not-an-email", "a@b", "user@domain", "@example.com"}
	for _, input := range invalid {
		if result := v.Validate(input); result.Valid {
			t.Errorf("expected %q to be invalid", input)
		}
	}
}

func TestAddressValidator(t *testing.T) {
	v := AddressValidator{}

	result := v.Validate("Rua  das   Flores, 123, Centro")
	if !result.Valid {
		t.Fatalf("expected valid, got error %q", result.Message)
	}
	if result.Normalized != "Rua das Flores, 123, Centro" {
		t.Errorf("expected collapsed whitespace, got %q", result.Normalized)
	}

	invalid := []string{
		"",
		"Rua A",
		"12345, 678-90.",
		strings.Repeat("a", 501),
	}
	for _, input := range invalid {
		if result := v.Validate(input); result.Valid {
			t.Errorf("expected %q to be invalid", truncate(input))
		}
	}
}

func truncate(s string) string {
	if len(s) > 30 {
		return s[:30] + "..."
	}
	return s
}
