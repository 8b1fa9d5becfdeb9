// Papermap - Scientific Article Search and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/papermap

package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestSlogHandlerWritesThroughZerolog(t *testing.T) {
	var buf bytes.Buffer
	prev := Logger()
	SetLogger(zerolog.New(&buf))
	t.Cleanup(func() { SetLogger(prev) })

	logger := NewSlogLogger()
	logger.Info("rebuild done", slog.String("job", "index"), slog.Int("docs", 42))

	out := buf.String()
	for _, want := range []string{`"message":"rebuild done"`, `"job":"index"`, `"docs":42`} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}

func TestSlogHandlerGroups(t *testing.T) {
	var buf bytes.Buffer
	prev := Logger()
	SetLogger(zerolog.New(&buf))
	t.Cleanup(func() { SetLogger(prev) })

	logger := NewSlogLogger().WithGroup("fetch").With(slog.String("source", "pubmed"))
	logger.Warn("slow upstream")

	out := buf.String()
	if !strings.Contains(out, `"fetch.source":"pubmed"`) {
		t.Errorf("output %q missing grouped attribute", out)
	}
}

func TestSlogLevelMapping(t *testing.T) {
	tests := []struct {
		in   slog.Level
		want zerolog.Level
	}{
		{slog.LevelDebug, zerolog.DebugLevel},
		{slog.LevelInfo, zerolog.InfoLevel},
		{slog.LevelWarn, zerolog.WarnLevel},
		{slog.LevelError, zerolog.ErrorLevel},
	}
	for _, tt := range tests {
		if got := slogToZerologLevel(tt.in); got != tt.want {
			t.Errorf("slogToZerologLevel(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
