// Package live holds the score namespace that editors update while playback
// reads it.
package live

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/cbegin/livepsg/internal/pattern"
	"github.com/cbegin/livepsg/internal/script"
)

const (
	DefaultSpeed  = 16
	DefaultTuning = 440.0
)

// NoSuchNameError reports a lookup of a name the score never bound.
type NoSuchNameError struct {
	Name string
}

func (e *NoSuchNameError) Error() string { return fmt.Sprintf("no such name: %s", e.Name) }

type Option func(*contextConfig)

type contextConfig struct {
	speed  float64
	tuning float64
	bias   float64
	log    *slog.Logger
}

func WithSpeed(speed float64) Option {
	return func(cfg *contextConfig) {
		cfg.speed = speed
	}
}

func WithTuning(hz float64) Option {
	return func(cfg *contextConfig) {
		cfg.tuning = hz
	}
}

// WithSlideBias sets the exponent of // slides in value patterns.
func WithSlideBias(bias float64) Option {
	return func(cfg *contextConfig) {
		cfg.bias = bias
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(cfg *contextConfig) {
		cfg.log = log
	}
}

// Context is the live namespace. Update runs on editor goroutines and only
// touches the working copy; the audio goroutine calls Flip to publish it and
// reads the published copy without locking.
type Context struct {
	mu        sync.Mutex
	working   *Namespace
	pending   map[string]struct{}
	versions  uint64
	gens      atomic.Uint64
	published atomic.Pointer[Namespace]
	sections  atomic.Pointer[sectionsCache]

	interp *script.Interp
	log    *slog.Logger
}

type sectionsCache struct {
	version uint64
	s       *Sections
	err     error
}

const defaults = `
mode = 1
scale = major
tonic = C4
sections = (E(rest, "1"),),
`

func New(opts ...Option) *Context {
	cfg := contextConfig{speed: DefaultSpeed, tuning: DefaultTuning, bias: pattern.DefaultBias}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.log == nil {
		cfg.log = slog.Default()
	}
	c := &Context{
		pending: make(map[string]struct{}),
		interp:  script.NewInterp(cfg.bias),
		log:     cfg.log,
	}
	c.working = newNamespace(&c.gens)
	c.working.Assign("speed", script.Number(cfg.speed))
	c.working.Assign("tuning", script.Number(cfg.tuning))
	if err := c.interp.Run(defaults, c.working); err != nil {
		panic(err)
	}
	c.publish()
	return c
}

// Interp is the interpreter used for updates; programs perform through it.
func (c *Context) Interp() *script.Interp { return c.interp }

// Update runs text against a copy of the working namespace. On success the
// copy replaces the working namespace and waits for the next Flip; on failure
// nothing changes.
func (c *Context) Update(text string) (*Diff, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := c.working.clone()
	if err := c.interp.Run(text, next); err != nil {
		return nil, errors.Wrap(err, "update")
	}
	d := diff(c.working, next)
	c.working = next
	for _, name := range d.Updated {
		c.pending[name] = struct{}{}
	}
	for _, name := range d.Deleted {
		c.pending[name] = struct{}{}
	}
	c.logDiff(d)
	return d, nil
}

func (c *Context) logDiff(d *Diff) {
	if d.Empty() {
		c.log.Info("No change.")
		return
	}
	if len(d.Updated) > 0 {
		c.log.Info("Add/update: " + strings.Join(d.Updated, ", "))
	}
	if len(d.Deleted) > 0 {
		c.log.Info("Delete: " + strings.Join(d.Deleted, ", "))
	}
}

// Flip publishes pending updates unless an update is in progress, in which
// case it returns false and they wait for a later Flip. It never blocks.
func (c *Context) Flip() bool {
	if !c.mu.TryLock() {
		return false
	}
	defer c.mu.Unlock()
	if len(c.pending) == 0 {
		return true
	}
	c.publish()
	clear(c.pending)
	return true
}

// publish requires c.mu or exclusive access. Updates replace the working
// namespace rather than mutate it, so it can be published as is.
func (c *Context) publish() {
	c.versions++
	c.working.version = c.versions
	c.published.Store(c.working)
}

// Published is the namespace playback currently reads.
func (c *Context) Published() *Namespace { return c.published.Load() }

// Pending lists names updated or deleted since the last publish.
func (c *Context) Pending() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.pending))
	for name := range c.pending {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get reads name from the published namespace, resolving references.
func (c *Context) Get(name string) (script.Value, error) {
	ns := c.Published()
	v, ok := ns.Lookup(name)
	if !ok {
		return nil, &NoSuchNameError{Name: name}
	}
	forced, err := script.Force(v, ns)
	if err != nil {
		return nil, errors.Wrapf(err, "get %s", name)
	}
	return forced, nil
}

// Sections indexes the published section list, rebuilding it only after a
// publish.
func (c *Context) Sections() (*Sections, error) {
	ns := c.Published()
	if cached := c.sections.Load(); cached != nil && cached.version == ns.Version() {
		return cached.s, cached.err
	}
	s, err := buildSections(ns)
	if err != nil {
		err = errors.Wrap(err, "sections")
	}
	c.sections.Store(&sectionsCache{version: ns.Version(), s: s, err: err})
	return s, err
}
