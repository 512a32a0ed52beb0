// Package chatlog splits exported WhatsApp chat logs into messages.
//
// An export line opening a message looks like
//
//	[01/03/2024, 5:30:00 PM] Ahmed +20 10 123 4567: text
//
// Any other non-blank line continues the message opened before it.
package chatlog

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"
)

const dateTimeLayout = "02/01/2006 3:04:05 PM"

var headerRegex = regexp.MustCompile(`^\[(\d{2}/\d{2}/\d{4}),\s*(\d{1,2}:\d{2}:\d{2})\s*(AM|PM)\]\s*([^:]+):\s*(.*)$`)

// Export noise: direction marks and BOM are dropped, exotic spaces become
// plain spaces so the header regex and phone patterns see ASCII whitespace.
var lineCleaner = strings.NewReplacer(
	"\u200e", "",
	"\u200f", "",
	"\ufeff", "",
	"\u00a0", " ",
	"\u202f", " ",
	"\r", "",
)

// Message is one (date, sender, text) tuple recovered from an export
type Message struct {
	Date   time.Time
	Sender string
	Text   string
	Line   int // 1-based line of the header
}

// Rejected is a header whose timestamp could not be parsed. Its
// continuation lines are dropped with it.
type Rejected struct {
	Line   int
	Header string
	Err    error
}

// Result holds the messages of one export in file order
type Result struct {
	Messages []Message
	Rejected []Rejected
}

// Segmenter turns export text into messages, reading timestamps in Location.
type Segmenter struct {
	Location *time.Location
}

// New returns a Segmenter for the given location; nil means UTC.
func New(loc *time.Location) *Segmenter {
	if loc == nil {
		loc = time.UTC
	}
	return &Segmenter{Location: loc}
}

// SegmentString is Segment over an in-memory export.
func (s *Segmenter) SegmentString(content string) Result {
	res, _ := s.Segment(strings.NewReader(content))
	return res
}

// Segment scans r line by line. Only read errors are returned; malformed
// timestamps end up in Result.Rejected.
func (s *Segmenter) Segment(r io.Reader) (Result, error) {
	var (
		res     Result
		current *Message
		lineNum int
	)

	flush := func() {
		// a header with no text and no continuation carries nothing
		if current != nil && current.Text != "" {
			res.Messages = append(res.Messages, *current)
		}
		current = nil
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(lineCleaner.Replace(scanner.Text()))
		if line == "" {
			continue
		}

		m := headerRegex.FindStringSubmatch(line)
		if m == nil {
			// current is nil before the first header and after a rejected one
			if current != nil {
				current.Text = appendContinuation(current.Text, line)
			}
			continue
		}

		flush()

		date, err := s.parseTimestamp(m[1], m[2], m[3])
		if err != nil {
			res.Rejected = append(res.Rejected, Rejected{Line: lineNum, Header: line, Err: err})
			continue
		}

		current = &Message{
			Date:   date,
			Sender: strings.TrimSpace(m[4]),
			Text:   strings.TrimSpace(m[5]),
			Line:   lineNum,
		}
	}
	flush()

	if err := scanner.Err(); err != nil {
		return res, fmt.Errorf("read export: %w", err)
	}
	return res, nil
}

func (s *Segmenter) parseTimestamp(date, clock, meridiem string) (time.Time, error) {
	t, err := time.ParseInLocation(dateTimeLayout, date+" "+clock+" "+meridiem, s.Location)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", date+", "+clock+" "+meridiem, err)
	}
	return t, nil
}

func appendContinuation(text, line string) string {
	if text == "" {
		return line
	}
	return text + " " + line
}
