package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"time"
)

var multiSpaceRegex = regexp.MustCompile(`\s+`)

// MessageFingerprint identifies a chat message across re-runs of the same
// or overlapping exports. Messages from unresolved senders hash with an
// empty number.
func MessageFingerprint(senderNumber string, date time.Time, text string) string {
	h := sha256.New()
	h.Write([]byte(senderNumber))
	h.Write([]byte{0})
	h.Write([]byte(date.UTC().Format(time.RFC3339)))
	h.Write([]byte{0})
	h.Write([]byte(NormalizeText(text)))
	return hex.EncodeToString(h.Sum(nil))
}

// NormalizeText collapses whitespace runs so re-wrapped continuation lines
// hash the same.
func NormalizeText(text string) string {
	return strings.TrimSpace(multiSpaceRegex.ReplaceAllString(text, " "))
}
