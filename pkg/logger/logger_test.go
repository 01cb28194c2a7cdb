package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
)

func TestLogMeetingEventWritesStructuredFields(t *testing.T) {
	Init(Config{Level: InfoLevel, Format: JSONFormat})
	var buf bytes.Buffer
	SetOutput(&buf)

	LogMeetingEvent("accepted", "m1", "time_selected", "confirmed", map[string]interface{}{"counselor_id": "c1"})

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}
	if entry["meeting_id"] != "m1" || entry["to"] != "confirmed" || entry["counselor_id"] != "c1" {
		t.Fatalf("unexpected entry: %v", entry)
	}
	if entry["message"] != "Meeting Event" {
		t.Fatalf("message = %v", entry["message"])
	}
}

func TestLogErrorHandlesNilError(t *testing.T) {
	Init(Config{Level: ErrorLevel, Format: JSONFormat})
	var buf bytes.Buffer
	SetOutput(&buf)

	LogError(nil, "nothing", nil)
	LogError(errors.New("boom"), "ctx", map[string]interface{}{"k": "v"})
	if !bytes.Contains(buf.Bytes(), []byte("boom")) {
		t.Fatalf("expected error text in output, got %q", buf.String())
	}
}

func TestSetLevelFiltersDebug(t *testing.T) {
	Init(Config{Level: InfoLevel, Format: JSONFormat})
	var buf bytes.Buffer
	SetOutput(&buf)

	Debugf("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug output at info level: %q", buf.String())
	}
	SetLevel(DebugLevel)
	Debugf("shown")
	if buf.Len() == 0 {
		t.Fatal("debug output missing after SetLevel")
	}
}
