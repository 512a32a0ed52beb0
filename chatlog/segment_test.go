package chatlog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func loadFixture(t *testing.T, name string) []byte {
	t.Helper()
	path := filepath.Join("testdata", name)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read fixture %s: %v", name, err)
	}
	return data
}

func cairo(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Africa/Cairo")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	return loc
}

func TestSegment_Fixture(t *testing.T) {
	loc := cairo(t)
	seg := New(loc)

	res, err := seg.Segment(strings.NewReader(string(loadFixture(t, "export_basic.txt"))))
	if err != nil {
		t.Fatalf("segment failed: %v", err)
	}
	if len(res.Messages) != 4 {
		t.Fatalf("expected 4 messages, got %d: %+v", len(res.Messages), res.Messages)
	}

	first := res.Messages[0]
	if !first.Date.Equal(time.Date(2024, 3, 1, 17, 30, 0, 0, loc)) {
		t.Fatalf("unexpected first date %s", first.Date)
	}
	if first.Sender != "Ahmed +20 10 123 4567" {
		t.Fatalf("unexpected sender %q", first.Sender)
	}
	if first.Text != "شقة للبيع في الحي 5 مساحة 150 متر سعر 2 مليون" {
		t.Fatalf("continuation lines not joined: %q", first.Text)
	}
	if first.Line != 1 {
		t.Fatalf("expected header on line 1, got %d", first.Line)
	}

	second := res.Messages[1]
	if !second.Date.Equal(time.Date(2024, 3, 2, 9, 5, 12, 0, loc)) {
		t.Fatalf("narrow no-break space before AM not handled: %s", second.Date)
	}
	if second.Sender != "Mona 01012345678" {
		t.Fatalf("direction mark not stripped: %q", second.Sender)
	}

	third := res.Messages[2]
	if third.Sender != "+20 111 222 3333" || !third.Date.Equal(time.Date(2024, 3, 3, 0, 0, 0, 0, loc)) {
		t.Fatalf("unexpected third message %+v", third)
	}

	last := res.Messages[3]
	if last.Sender != "Sami" {
		t.Fatalf("unexpected sender %q", last.Sender)
	}
	if last.Text != "محل تجاري للايجار 01122334455" {
		t.Fatalf("empty header text should take the continuation verbatim, got %q", last.Text)
	}

	if len(res.Rejected) != 1 {
		t.Fatalf("expected 1 rejected header, got %d", len(res.Rejected))
	}
	if res.Rejected[0].Line != 6 {
		t.Fatalf("expected rejection on line 6, got %d", res.Rejected[0].Line)
	}
	for _, m := range res.Messages {
		if strings.Contains(m.Text, "continuation") {
			t.Fatalf("continuation of a rejected message leaked into %q", m.Text)
		}
	}
}

func TestSegment_HeaderTripleRecovered(t *testing.T) {
	tests := []struct {
		line   string
		date   time.Time
		sender string
		text   string
	}{
		{
			line:   "[15/08/2023, 11:59:59 PM] Khaled: مكتب للايجار",
			date:   time.Date(2023, 8, 15, 23, 59, 59, 0, time.UTC),
			sender: "Khaled",
			text:   "مكتب للايجار",
		},
		{
			line:   "[01/01/2024, 12:00:00 PM] +20 12 345 6789: hello",
			date:   time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
			sender: "+20 12 345 6789",
			text:   "hello",
		},
		{
			line:   "[09/11/2022, 7:03:00AM] Omar 01011112222:  spaced out text  ",
			date:   time.Date(2022, 11, 9, 7, 3, 0, 0, time.UTC),
			sender: "Omar 01011112222",
			text:   "spaced out text",
		},
	}

	seg := New(nil)
	for _, tt := range tests {
		res := seg.SegmentString(tt.line)
		if len(res.Messages) != 1 {
			t.Fatalf("%q: expected 1 message, got %d", tt.line, len(res.Messages))
		}
		m := res.Messages[0]
		if !m.Date.Equal(tt.date) {
			t.Fatalf("%q: expected date %s, got %s", tt.line, tt.date, m.Date)
		}
		if m.Sender != tt.sender {
			t.Fatalf("%q: expected sender %q, got %q", tt.line, tt.sender, m.Sender)
		}
		if m.Text != tt.text {
			t.Fatalf("%q: expected text %q, got %q", tt.line, tt.text, m.Text)
		}
	}
}

func TestSegment_ContinuationOrder(t *testing.T) {
	input := "[01/02/2024, 8:00:00 AM] A: one\ntwo\n\n   three  \n[01/02/2024, 8:01:00 AM] B: four"
	res := New(nil).SegmentString(input)
	if len(res.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(res.Messages))
	}
	if res.Messages[0].Text != "one two three" {
		t.Fatalf("unexpected joined text %q", res.Messages[0].Text)
	}
	if res.Messages[1].Text != "four" {
		t.Fatalf("unexpected text %q", res.Messages[1].Text)
	}
}

func TestSegment_LeadingContinuationIgnored(t *testing.T) {
	input := "orphan line before any header\n[01/02/2024, 8:00:00 AM] A: first"
	res := New(nil).SegmentString(input)
	if len(res.Messages) != 1 || res.Messages[0].Text != "first" {
		t.Fatalf("unexpected messages %+v", res.Messages)
	}
}

func TestSegment_BadHourRejected(t *testing.T) {
	res := New(nil).SegmentString("[01/02/2024, 13:00:00 PM] A: text\nmore")
	if len(res.Messages) != 0 {
		t.Fatalf("expected no messages, got %+v", res.Messages)
	}
	if len(res.Rejected) != 1 || res.Rejected[0].Err == nil {
		t.Fatalf("expected one rejection with an error, got %+v", res.Rejected)
	}
}

func TestSegment_EmptyInput(t *testing.T) {
	res := New(nil).SegmentString("")
	if len(res.Messages) != 0 || len(res.Rejected) != 0 {
		t.Fatalf("expected empty result, got %+v", res)
	}
}
