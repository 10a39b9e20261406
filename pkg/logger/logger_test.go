package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Config{Level: "debug", JSON: true}, &buf)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	log.Debug().Str("device", "olt-a").Int("onus", 3).Msg("poll complete")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%s)", err, buf.String())
	}
	if entry["device"] != "olt-a" || entry["message"] != "poll complete" || entry["level"] != "debug" {
		t.Errorf("unexpected entry: %v", entry)
	}
}

func TestNew_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Config{Level: "warn", JSON: true}, &buf)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	log.Info().Msg("hidden")
	if buf.Len() != 0 {
		t.Errorf("info written at warn level: %s", buf.String())
	}
	log.Warn().Msg("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("warn missing: %s", buf.String())
	}
}

func TestNew_Console(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Config{Level: "info"}, &buf)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	log.Info().Str("device", "olt-a").Msg("started")
	out := buf.String()
	if !strings.Contains(out, "started") || !strings.Contains(out, "device=") {
		t.Errorf("console output = %q", out)
	}
}

func TestNew_InvalidLevel(t *testing.T) {
	if _, err := New(Config{Level: "loud"}, nil); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestFormatLevel(t *testing.T) {
	if got := formatLevel("error"); !strings.Contains(got, "ERRO") {
		t.Errorf("formatLevel(error) = %q", got)
	}
	if got := formatLevel(42); !strings.Contains(got, "UNKN") {
		t.Errorf("formatLevel(42) = %q", got)
	}
}
