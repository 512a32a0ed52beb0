package identity

import (
	"testing"
	"time"
)

func TestResolveSender(t *testing.T) {
	tests := []struct {
		name   string
		sender string
		text   string
		number string
		who    string
		rule   SenderRule
	}{
		{"spaced international", "Ahmed +20 10 123 4567", "", "+20101234567", "Ahmed", RuleEmbeddedIntl},
		{"bare international", "+20 111 222 3333", "", "+201112223333", "", RuleEmbeddedIntl},
		{"compact international", "Mai +201012345678", "", "+201012345678", "Mai", RuleEmbeddedIntl},
		{"trailing local", "Mona 01012345678", "", "+201012345678", "Mona", RuleTrailing},
		{"trailing ten digits", "Hany 1098765432", "", "+201098765432", "Hany", RuleTrailing},
		{"bare local", "01122334455", "", "+201122334455", "", RuleTrailing},
		{"number in text", "Sami", "محل للايجار 01122334455 اتصل", "+201122334455", "Sami", RuleMessageText},
		{"first number in text wins", "Sami", "01111111111 او 01222222222", "+201111111111", "Sami", RuleMessageText},
		{"unresolved", "Khaled", "شقة للبيع", "", "Khaled", RuleNone},
		{"eleven digits without trunk zero", "Ali 21012345678", "", "", "Ali 21012345678", RuleNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveSender(tt.sender, tt.text)
			if got.Number != tt.number {
				t.Fatalf("expected number %q, got %q", tt.number, got.Number)
			}
			if got.Name != tt.who {
				t.Fatalf("expected name %q, got %q", tt.who, got.Name)
			}
			if got.Rule != tt.rule {
				t.Fatalf("expected rule %q, got %q", tt.rule, got.Rule)
			}
			if got.Resolved() && !IsNormalized(got.Number) {
				t.Fatalf("resolved number %q is not normalized", got.Number)
			}
		})
	}
}

func TestResolveSender_HeaderBeatsText(t *testing.T) {
	got := ResolveSender("Mona 01012345678", "call 01199998888")
	if got.Number != "+201012345678" {
		t.Fatalf("sender header should win over text, got %q", got.Number)
	}
}

func TestNormalizeMobile(t *testing.T) {
	tests := map[string]string{
		"01012345678":      "+201012345678",
		"+20 101 234 5678": "+201012345678",
		"00201012345678":   "+201012345678",
		"201012345678":     "+201012345678",
		"010-1234-5678":    "+201012345678",
		"1012345678":       "+201012345678",
		"0223456789":       "",
		"12345":            "",
		"":                 "",
	}
	for in, want := range tests {
		if got := NormalizeMobile(in); got != want {
			t.Fatalf("NormalizeMobile(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFromLocal(t *testing.T) {
	if got := FromLocal("01012345678"); got != "+201012345678" {
		t.Fatalf("unexpected %q", got)
	}
	for _, bad := range []string{"1012345678", "0101234567", "0101234567x", ""} {
		if got := FromLocal(bad); got != "" {
			t.Fatalf("FromLocal(%q) should be empty, got %q", bad, got)
		}
	}
}

func TestMask(t *testing.T) {
	tests := map[string]string{
		"+201012345678":           "+20**********",
		"call 01012345678 now":    "call 010******** now",
		"Ahmed +20 10 123 4567":   "Ahmed +20 ** *** ****",
		"price 2000000 no phone":  "price 2000000 no phone",
	}
	for in, want := range tests {
		if got := Mask(in); got != want {
			t.Fatalf("Mask(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMessageFingerprint(t *testing.T) {
	date := time.Date(2024, 3, 1, 17, 30, 0, 0, time.UTC)

	a := MessageFingerprint("+201012345678", date, "شقة للبيع  في الحي 5")
	b := MessageFingerprint("+201012345678", date, " شقة للبيع في\tالحي 5 ")
	if a != b {
		t.Fatalf("whitespace differences should not change the fingerprint")
	}
	if len(a) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(a))
	}

	if a == MessageFingerprint("+201099999999", date, "شقة للبيع في الحي 5") {
		t.Fatalf("different sender should change the fingerprint")
	}
	if a == MessageFingerprint("+201012345678", date.Add(time.Second), "شقة للبيع في الحي 5") {
		t.Fatalf("different date should change the fingerprint")
	}
	if a == MessageFingerprint("+201012345678", date, "شقة للبيع في الحي 6") {
		t.Fatalf("different text should change the fingerprint")
	}

	loc := time.FixedZone("EET", 2*3600)
	if a != MessageFingerprint("+201012345678", date.In(loc), "شقة للبيع في الحي 5") {
		t.Fatalf("same instant in another zone should hash the same")
	}
}

func TestMessageFingerprint_FieldBoundaries(t *testing.T) {
	date := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	if MessageFingerprint("+2010", date, "1") == MessageFingerprint("+20101", date, "") {
		t.Fatalf("field separator missing")
	}
}
