// Package watch reloads a score file when it changes on disk.
package watch

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/pkg/errors"
)

const DefaultInterval = 100 * time.Millisecond

// UpdateFunc receives the full text of the file after each change.
type UpdateFunc func(text string) error

type Option func(*Watcher)

func WithInterval(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(w *Watcher) {
		if log != nil {
			w.log = log
		}
	}
}

// Watcher polls a file's modification time, the same way a text editor's
// save is noticed without filesystem notifications.
type Watcher struct {
	path     string
	update   UpdateFunc
	interval time.Duration
	log      *slog.Logger

	modTime time.Time
	size    int64
	seen    bool
}

func New(path string, update UpdateFunc, opts ...Option) *Watcher {
	w := &Watcher{
		path:     path,
		update:   update,
		interval: DefaultInterval,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Poll checks the file once and calls the update function if it changed
// since the last poll. A failed update is not retried until the file
// changes again.
func (w *Watcher) Poll() (bool, error) {
	st, err := os.Stat(w.path)
	if err != nil {
		return false, errors.Wrap(err, "stat score")
	}
	if w.seen && st.ModTime().Equal(w.modTime) && st.Size() == w.size {
		return false, nil
	}
	data, err := os.ReadFile(w.path)
	if err != nil {
		return false, errors.Wrap(err, "read score")
	}
	w.modTime, w.size, w.seen = st.ModTime(), st.Size(), true
	if err := w.update(string(data)); err != nil {
		return true, errors.Wrapf(err, "reload %s", w.path)
	}
	return true, nil
}

// Run polls until ctx is done. The first poll happens immediately. Errors
// are logged and watching continues.
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	var lastErr string
	for {
		changed, err := w.Poll()
		switch {
		case err != nil:
			if msg := err.Error(); msg != lastErr {
				w.log.Error("Watch failed", "path", w.path, "err", err)
				lastErr = msg
			}
		case changed:
			w.log.Info("Reloaded", "path", w.path)
			lastErr = ""
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
