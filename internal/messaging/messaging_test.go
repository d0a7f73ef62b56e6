package messaging

import "testing"

func TestCanonicalize(t *testing.T) {
	cases := map[string]string{
		"+5511999998888":          "whatsapp:+5511999998888",
		"5511999998888":           "whatsapp:+5511999998888",
		"whatsapp:+5511999998888": "whatsapp:+5511999998888",
		"whatsapp:5511999998888":  "whatsapp:+5511999998888",
		" +5511999998888 ":        "whatsapp:+5511999998888",
	}
	for in, want := range cases {
		if got := canonicalize(in); got != want {
			t.Errorf("canonicalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewTwilioClientRequiresCredentials(t *testing.T) {
	t.Setenv("TWILIO_ACCOUNT_SID", "")
	t.Setenv("TWILIO_AUTH_TOKEN", "")
	t.Setenv("TWILIO_FROM_NUMBER", "")

	if _, err := NewTwilioClient(); err == nil {
		t.Error("expected error without credentials")
	}
	if _, err := NewTwilioClient(WithAccountSID("AC123"), WithAuthToken("token")); err == nil {
		t.Error("expected error without from number")
	}
	client, err := NewTwilioClient(WithAccountSID("AC123"), WithAuthToken("token"), WithFromNumber("+14155550100"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.from != "whatsapp:+14155550100" {
		t.Errorf("from = %q", client.from)
	}
}
