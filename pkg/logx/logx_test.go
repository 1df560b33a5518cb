package logx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"tgremind/internal/transport"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{" WARNING ", zerolog.WarnLevel},
		{"Error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"loud", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in, zerolog.InfoLevel); got != tt.want {
			t.Fatalf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestWriterLoggerFields(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := NewWriter(&buf, "debug").With(String("comp", "test"))
	log.Debug("hello", Int64("chat", 42), Err(errors.New("boom")), Err(nil))

	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("unmarshal log line: %v (%q)", err, buf.String())
	}
	if m["message"] != "hello" || m["comp"] != "test" || m["level"] != "debug" {
		t.Fatalf("unexpected log line: %v", m)
	}
	if m["chat"] != float64(42) {
		t.Fatalf("chat = %v, want 42", m["chat"])
	}
	caller, _ := m["caller"].(string)
	if !strings.HasPrefix(caller, "logx_test.go:") {
		t.Fatalf("caller = %q, want the test file", caller)
	}
}

func TestWriterLoggerLevelFilter(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := NewWriter(&buf, "info")
	log.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug line written at info level: %q", buf.String())
	}
	log.Warn("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Fatalf("warn line missing: %q", buf.String())
	}
}

func TestZeroLoggerIsNop(t *testing.T) {
	t.Parallel()
	var l Logger
	if !l.IsZero() {
		t.Fatal("zero Logger should report IsZero")
	}
	l.Info("nothing happens")
	if Nop().IsZero() {
		t.Fatal("Nop() should not report IsZero")
	}
}

func TestServiceApplyFollowsLevel(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "app.log")
	svc, log := New(Config{Level: "warn", File: FileConfig{Enabled: true, Path: path}}, nil)
	t.Cleanup(func() { _ = svc.Close() })

	child := log.With(String("comp", "loop"))
	if child.target().GetLevel() != zerolog.WarnLevel {
		t.Fatalf("level = %v, want warn", child.target().GetLevel())
	}
	svc.Apply(Config{Level: "debug", File: FileConfig{Enabled: true, Path: path}})
	if child.target().GetLevel() != zerolog.DebugLevel {
		t.Fatalf("derived logger kept level %v after Apply", child.target().GetLevel())
	}
}

func TestChatText(t *testing.T) {
	t.Parallel()
	got := chatText([]byte(`{"level":"warn","message":"send failed","chat":42,"comp":"loop","time":"x"}` + "\n"))
	want := "[WARN] send failed\n- chat=42\n- comp=loop"
	if got != want {
		t.Fatalf("chatText = %q, want %q", got, want)
	}
	if got := chatText([]byte("plain text\n")); got != "plain text" {
		t.Fatalf("non-JSON line = %q", got)
	}
}

func TestChatSinkRespectsMinLevel(t *testing.T) {
	t.Parallel()
	c := &chatSink{
		sender:   nopSender{},
		queue:    make(chan chatLine, 4),
		chatID:   -100,
		minLevel: zerolog.WarnLevel,
		limit:    rate.NewLimiter(rate.Inf, 1),
	}
	_, _ = c.WriteLevel(zerolog.InfoLevel, []byte(`{"level":"info","message":"skip"}`))
	_, _ = c.WriteLevel(zerolog.ErrorLevel, []byte(`{"level":"error","message":"keep"}`))

	if len(c.queue) != 1 {
		t.Fatalf("queued = %d, want 1", len(c.queue))
	}
	l := <-c.queue
	if l.chatID != -100 || !strings.Contains(l.text, "keep") {
		t.Fatalf("unexpected line: %+v", l)
	}
}

type nopSender struct{}

func (nopSender) SendText(context.Context, transport.ChatID, string, *transport.SendOptions) error {
	return nil
}
