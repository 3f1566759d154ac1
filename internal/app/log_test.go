package app

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLogHandlerFormat(t *testing.T) {
	ts := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		name   string
		level  slog.Level
		msg    string
		attrs  []slog.Attr
		expect string
	}{
		{
			name:   "plain message",
			level:  slog.LevelInfo,
			msg:    "starting export",
			expect: "2024-01-15T10:30:00Z\tINFO\trun-1\tstarting export\n",
		},
		{
			name:   "with attrs",
			level:  slog.LevelWarn,
			msg:    "photo skipped",
			attrs:  []slog.Attr{slog.String("photo_id", "p1"), slog.Int("size", 42)},
			expect: "2024-01-15T10:30:00Z\tWARN\trun-1\tphoto skipped\tphoto_id=p1\tsize=42\n",
		},
		{
			name:   "error level",
			level:  slog.LevelError,
			msg:    "backend unavailable",
			attrs:  []slog.Attr{slog.String("backend", "drive")},
			expect: "2024-01-15T10:30:00Z\tERROR\trun-1\tbackend unavailable\tbackend=drive\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := &logHandler{w: &buf, runID: "run-1"}

			r := slog.NewRecord(ts, tt.level, tt.msg, 0)
			r.AddAttrs(tt.attrs...)

			if err := h.Handle(context.Background(), r); err != nil {
				t.Fatalf("Handle failed: %v", err)
			}
			if got := buf.String(); got != tt.expect {
				t.Errorf("got %q, want %q", got, tt.expect)
			}
		})
	}
}

func TestLogHandlerWithAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := &logHandler{w: &buf, runID: "run-1"}

	h2 := h.WithAttrs([]slog.Attr{slog.String("job", "j1")})

	ts := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	r := slog.NewRecord(ts, slog.LevelInfo, "photo uploaded", 0)
	r.AddAttrs(slog.String("filename", "street.jpg"))

	if err := h2.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	want := "2024-01-15T10:30:00Z\tINFO\trun-1\tphoto uploaded\tjob=j1\tfilename=street.jpg\n"
	if got := buf.String(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	// The original handler must not pick up the derived handler's attrs.
	buf.Reset()
	r2 := slog.NewRecord(ts, slog.LevelInfo, "plain", 0)
	if err := h.Handle(context.Background(), r2); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if strings.Contains(buf.String(), "job=j1") {
		t.Errorf("original handler leaked derived attrs: %q", buf.String())
	}
}

func TestLogHandlerEnabled(t *testing.T) {
	h := &logHandler{w: &bytes.Buffer{}, runID: "run-1"}
	for _, level := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError} {
		if !h.Enabled(context.Background(), level) {
			t.Errorf("Enabled(%v) = false, want true", level)
		}
	}
}

func TestNewLogger(t *testing.T) {
	logDir := filepath.Join(t.TempDir(), "log")

	logger, f, err := newLogger(logDir, "run-1")
	if err != nil {
		t.Fatalf("newLogger failed: %v", err)
	}
	defer f.Close()

	logger.Info("archive opened", "backend_count", 2)

	data, err := os.ReadFile(filepath.Join(logDir, "photark.log"))
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	line := string(data)
	if !strings.Contains(line, "INFO\trun-1\tarchive opened\tbackend_count=2") {
		t.Errorf("unexpected log line: %q", line)
	}
}
