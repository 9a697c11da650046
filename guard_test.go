package graphqa

import "testing"

func TestContainsPII(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{"email", "contact me at jane.doe@example.com about this", true},
		{"phone international", "call +34 612 345 678 tomorrow", true},
		{"payment card", "my card is 4111 1111 1111 1111", true},
		{"iban", "send it to ES9121000418450200051332", true},
		{"spanish nif", "my id is 12345678Z", true},
		{"spanish nie", "registered as X1234567L", true},
		{"honorific name", "ask Mr. Smith about it", true},
		{"introduced name", "my name is Alice", true},
		{"ipv4", "the server at 192.168.1.10 is down", true},
		{"url", "see https://example.com/docs for details", true},
		{"eth address", "pay 0x52908400098527886E0F7030069857D2E4169EE7", true},
		{"dea number", "prescriber BB1388568 issued it", true},

		{"plain question", "What problems do software developers face?", false},
		{"numbers below phone length", "there are 12345678 records", false},
		{"nif with wrong letter", "code 12345678A appears twice", false},
		{"ip with bad octet", "version 999.1.2.3 of the tool", false},
		{"capitalized sentence start", "Developers struggle with traceability", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := containsPII(tt.text); got != tt.want {
				t.Errorf("containsPII(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"clean", "What problems exist", "What problems exist"},
		{"punctuation stripped", "I have a question~~&---", "I have a question"},
		{"question mark stripped", "What problems do developers face?", "What problems do developers face"},
		{"whitespace trimmed", "  spaced out  ", "spaced out"},
		{"only symbols", "@#$%^&*", ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizeInput(tt.in); got != tt.want {
				t.Errorf("sanitizeInput(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSanitizeInputIdempotent(t *testing.T) {
	inputs := []string{
		"I have a question~~&---",
		"  mixed 123 content!?  ",
		"plain text",
	}
	for _, in := range inputs {
		once := sanitizeInput(in)
		twice := sanitizeInput(once)
		if once != twice {
			t.Errorf("sanitizeInput not idempotent for %q: %q != %q", in, once, twice)
		}
	}
}

func TestLuhnValid(t *testing.T) {
	if !luhnValid("4111111111111111") {
		t.Error("expected valid Luhn checksum")
	}
	if luhnValid("4111111111111112") {
		t.Error("expected invalid Luhn checksum")
	}
}

func TestIbanValid(t *testing.T) {
	if !ibanValid("ES9121000418450200051332") {
		t.Error("expected valid IBAN")
	}
	if ibanValid("ES0021000418450200051332") {
		t.Error("expected invalid IBAN")
	}
}
