package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRotatingWriter_Rotates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ingest.log")
	w, err := NewRotatingWriter(path, 10, 1)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer w.Close()

	if _, err := w.Write([]byte("0123456789ab")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := w.Write([]byte("fresh")); err != nil {
		t.Fatalf("write: %v", err)
	}

	backup, err := os.ReadFile(path + ".1")
	if err != nil {
		t.Fatalf("expected backup file: %v", err)
	}
	if string(backup) != "0123456789ab" {
		t.Fatalf("unexpected backup contents %q", backup)
	}
	current, _ := os.ReadFile(path)
	if string(current) != "fresh" {
		t.Fatalf("unexpected current contents %q", current)
	}
}

func TestRotatingWriter_KeepsBackups(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ingest.log")
	w, err := NewRotatingWriter(path, 4, 2)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer w.Close()

	for _, chunk := range []string{"aaaa", "bbbb", "cccc", "dddd"} {
		if _, err := w.Write([]byte(chunk)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	want := map[string]string{path: "dddd", path + ".1": "cccc", path + ".2": "bbbb"}
	for file, contents := range want {
		got, err := os.ReadFile(file)
		if err != nil {
			t.Fatalf("read %s: %v", file, err)
		}
		if string(got) != contents {
			t.Fatalf("%s = %q, want %q", file, got, contents)
		}
	}
	if _, err := os.Stat(path + ".3"); !os.IsNotExist(err) {
		t.Fatalf("expected at most two backups")
	}
}

func TestRotatingWriter_OversizedLeftover(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ingest.log")
	if err := os.WriteFile(path, []byte("old run output"), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}

	w, err := NewRotatingWriter(path, 8, 1)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	w.Write([]byte("new"))
	w.Close()

	if got, _ := os.ReadFile(path + ".1"); string(got) != "old run output" {
		t.Fatalf("leftover not kept as backup: %q", got)
	}
	if got, _ := os.ReadFile(path); string(got) != "new" {
		t.Fatalf("unexpected current contents %q", got)
	}
}

func TestSetup_WritesBothSinksAndMasks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ingest.log")
	var stdout bytes.Buffer

	log, err := Setup(Options{File: path, Level: "debug", Format: "json", Stdout: &stdout})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	log.Info("user created",
		"sender_number", "+201012345678",
		"password_hash", "$2a$10$abc",
		"text", "call 01012345678",
		"file", "chat.txt",
	)
	if err := log.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	fileOut, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	for name, out := range map[string]string{"stdout": stdout.String(), "file": string(fileOut)} {
		if !strings.Contains(out, `"sender_number":"+20**********"`) {
			t.Fatalf("%s: phone not masked: %s", name, out)
		}
		if strings.Contains(out, "$2a$10$abc") {
			t.Fatalf("%s: hash leaked: %s", name, out)
		}
		if strings.Contains(out, "01012345678") {
			t.Fatalf("%s: number in text leaked: %s", name, out)
		}
		if !strings.Contains(out, `"file":"chat.txt"`) {
			t.Fatalf("%s: plain field missing: %s", name, out)
		}
	}
}

func TestSetup_LevelFilters(t *testing.T) {
	var stdout bytes.Buffer
	log, err := Setup(Options{Level: "warn", Stdout: &stdout})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	log.Info("hidden")
	log.Warn("shown")
	log.Close()

	if strings.Contains(stdout.String(), "hidden") || !strings.Contains(stdout.String(), "shown") {
		t.Fatalf("level not applied: %q", stdout.String())
	}
}

func TestSetup_BadLevel(t *testing.T) {
	if _, err := Setup(Options{Level: "loud"}); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestMaskMobile(t *testing.T) {
	tests := map[string]string{
		"+201012345678": "+20**********",
		"010":           "010",
		"":              "",
		"01012345678":   "010********",
	}
	for in, want := range tests {
		if got := MaskMobile(in); got != want {
			t.Fatalf("MaskMobile(%q) = %q, want %q", in, got, want)
		}
	}
}
