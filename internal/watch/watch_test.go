package watch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func quiet() Option { return WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))) }

func writeScore(t *testing.T, path, text string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestPollReportsChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "score.lp")
	writeScore(t, path, "speed = 16")
	var got []string
	w := New(path, func(text string) error { got = append(got, text); return nil }, quiet())

	steps := []struct {
		write   string
		changed bool
	}{
		{"", true},
		{"", false},
		{"speed = 20\n", true},
		{"", false},
	}
	for i, step := range steps {
		if step.write != "" {
			writeScore(t, path, step.write)
		}
		changed, err := w.Poll()
		if err != nil || changed != step.changed {
			t.Fatalf("poll %d = %v, %v, want %v", i, changed, err, step.changed)
		}
	}
	if len(got) != 2 || got[0] != "speed = 16" || got[1] != "speed = 20\n" {
		t.Fatalf("updates = %q", got)
	}
}

func TestPollFailedUpdateWaitsForNextChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "score.lp")
	writeScore(t, path, "oops(")
	calls := 0
	w := New(path, func(string) error { calls++; return errors.New("syntax") }, quiet())
	if _, err := w.Poll(); err == nil {
		t.Fatalf("update error not returned")
	}
	if changed, err := w.Poll(); changed || err != nil {
		t.Fatalf("retried unchanged file: %v, %v", changed, err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d", calls)
	}
}

func TestPollMissingFile(t *testing.T) {
	w := New(filepath.Join(t.TempDir(), "nope.lp"), func(string) error { return nil }, quiet())
	if _, err := w.Poll(); err == nil {
		t.Fatalf("missing file polled cleanly")
	}
}

func TestRunStopsWithContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "score.lp")
	writeScore(t, path, "tonic = C4")
	loaded := make(chan string, 4)
	w := New(path, func(text string) error { loaded <- text; return nil }, quiet(), WithInterval(time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	select {
	case text := <-loaded:
		if text != "tonic = C4" {
			t.Fatalf("loaded %q", text)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("initial load never happened")
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("run did not stop")
	}
}
