package identity

import (
	"regexp"
	"strings"
)

var (
	// +20 10 123 4567, +2010 1234567, +201012345678 ...
	embeddedIntlRegex = regexp.MustCompile(`\+20\s*(\d{2,3})\s*(\d{3})\s*(\d{4})`)
	// "Name 01012345678", "Name +201012345678", "01012345678"
	trailingNumberRegex = regexp.MustCompile(`^(.*?)\s*(?:\+?20)?\s*(\d{10,11})$`)
)

// SenderRule names the rule that resolved a sender
type SenderRule string

const (
	RuleNone         SenderRule = ""
	RuleEmbeddedIntl SenderRule = "embedded_intl"
	RuleTrailing     SenderRule = "trailing_number"
	RuleMessageText  SenderRule = "message_text"
)

// Sender is the resolved identity of a message author
type Sender struct {
	Number string // normalized +20 number, or "" when unresolved
	Name   string
	Rule   SenderRule
}

// Resolved reports whether a phone number was found.
func (s Sender) Resolved() bool {
	return s.Number != ""
}

// ResolveSender extracts the sender's phone number and display name from
// the raw sender field, falling back to the first local number in the
// message text. First matching rule wins.
func ResolveSender(rawSender, text string) Sender {
	sender := strings.TrimSpace(spaceCleaner.Replace(rawSender))
	out := Sender{Name: sender}

	if m := embeddedIntlRegex.FindStringSubmatchIndex(sender); m != nil {
		number := CountryPrefix + sender[m[2]:m[3]] + sender[m[4]:m[5]] + sender[m[6]:m[7]]
		if IsNormalized(number) {
			out.Number = number
			out.Name = strings.TrimSpace(sender[:m[0]] + " " + sender[m[1]:])
			out.Rule = RuleEmbeddedIntl
			return out
		}
	}

	if m := trailingNumberRegex.FindStringSubmatch(sender); m != nil {
		if number := trailingToIntl(m[2]); number != "" {
			out.Number = number
			out.Name = strings.TrimSpace(m[1])
			out.Rule = RuleTrailing
			return out
		}
	}

	if local := FindLocalMobile(text); local != "" {
		out.Number = FromLocal(local)
		out.Rule = RuleMessageText
	}
	return out
}

// trailingToIntl accepts the 10 subscriber digits or the 11-digit local
// form; anything else is not a number this rule can vouch for.
func trailingToIntl(digits string) string {
	switch len(digits) {
	case 10:
		return CountryPrefix + digits
	case 11:
		return FromLocal(digits)
	}
	return ""
}

var spaceCleaner = strings.NewReplacer("\u00a0", " ", "\u202f", " ", "\u200e", "", "\u200f", "")
