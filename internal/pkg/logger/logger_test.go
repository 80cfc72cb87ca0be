package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestLog_RedactsUserAndTruncatesNotes(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(nil)

	Info("row rejected", "user_id", "3f2a9c1e-77b0", "notes", strings.Repeat("x", 100), "row", 3)

	var entry map[string]string
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if entry["user_id"] != "3f2a***" {
		t.Errorf("user_id = %q", entry["user_id"])
	}
	if got := []rune(entry["notes"]); len(got) != maxTextLen+1 {
		t.Errorf("notes has %d runes, want %d", len(got), maxTextLen+1)
	}
	if entry["row"] != "3" || entry["level"] != "INFO" {
		t.Errorf("unexpected entry %v", entry)
	}
}

func TestLog_BelowLevelIsDropped(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(WARN)
	defer func() {
		SetLevel(INFO)
		SetOutput(nil)
	}()

	Info("quiet")
	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
	Warn("loud")
	if !strings.Contains(buf.String(), `"msg":"loud"`) {
		t.Errorf("expected warn entry, got %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{"debug": DEBUG, "WARNING": WARN, "error": ERROR, "": INFO, "verbose": INFO}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %d, want %d", in, got, want)
		}
	}
}
