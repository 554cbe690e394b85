// Package dispatch turns a stream of selection changes into a serialized
// sequence of fetch, complete and project cycles.
//
// A Coalescer is owned by exactly one coordinating context: the Bubble Tea
// program or a Loop. Submit and Complete must both be called from it. The
// tea.Cmd returned by either is the worker; run it off the coordinating
// context and feed its FetchDoneMsg back to Complete.
package dispatch

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Phase is the externally visible part of the dispatch state.
type Phase int

const (
	Idle Phase = iota
	Busy
)

func (p Phase) String() string {
	if p == Busy {
		return "busy"
	}
	return "idle"
}

// Fetch identifies one fetch cycle.
type Fetch struct {
	ID      uuid.UUID
	Key     string
	Started time.Time
}

// FetchDoneMsg carries the outcome of a fetch back to the coordinating
// context.
type FetchDoneMsg struct {
	Fetch   Fetch
	Results ResultSet
	Err     *FetchError
}

// Observer receives notifications on the coordinating context. Nil fields
// are skipped.
type Observer struct {
	FetchStarted   func(f Fetch)
	DisplayUpdated func(d *Display)
	SelectAll      func()
	FetchFailed    func(err *FetchError)
	Idle           func()
}

// Coalescer is a single-flight dispatcher with a one-slot, last-writer-wins
// pending request.
type Coalescer struct {
	ctx       context.Context
	exec      Executor
	log       zerolog.Logger
	display   Display
	projector Projector
	observers []Observer

	current    *Fetch
	pending    string
	hasPending bool

	discardSuperseded bool
}

// Option configures a Coalescer.
type Option func(*Coalescer)

// WithLogger sets the logger used for fetch cycle events.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Coalescer) { c.log = l }
}

// WithDiscardSuperseded skips projecting a completed fetch when a different
// key is already pending. The pending fetch still runs.
func WithDiscardSuperseded(on bool) Option {
	return func(c *Coalescer) { c.discardSuperseded = on }
}

// NewCoalescer returns an idle coalescer. ctx is passed to every Execute call.
func NewCoalescer(ctx context.Context, exec Executor, opts ...Option) *Coalescer {
	c := &Coalescer{ctx: ctx, exec: exec, log: zerolog.Nop()}
	c.projector = Projector{Updated: c.notifyUpdated, SelectAll: c.notifySelectAll}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Observe registers o for all future notifications.
func (c *Coalescer) Observe(o Observer) {
	c.observers = append(c.observers, o)
}

// Phase reports whether a fetch is in flight.
func (c *Coalescer) Phase() Phase {
	if c.current != nil {
		return Busy
	}
	return Idle
}

// Current returns the key of the in-flight fetch.
func (c *Coalescer) Current() (string, bool) {
	if c.current == nil {
		return "", false
	}
	return c.current.Key, true
}

// Pending returns the key waiting for the in-flight fetch to finish.
func (c *Coalescer) Pending() (string, bool) {
	return c.pending, c.hasPending
}

// Display returns the live display collection.
func (c *Coalescer) Display() *Display { return &c.display }

// Submit requests a fetch for key. When idle it starts one and returns the
// worker command. When busy it stores key as the pending request, replacing
// any earlier one, and returns nil.
func (c *Coalescer) Submit(key string) tea.Cmd {
	if c.current != nil {
		if prev, ok := c.Pending(); ok && prev != key {
			c.log.Debug().Str("key", key).Str("dropped", prev).Msg("pending fetch replaced")
		}
		c.pending, c.hasPending = key, true
		c.log.Debug().Str("key", key).Str("running", c.current.Key).Msg("fetch coalesced")
		return nil
	}
	c.pending, c.hasPending = "", false
	return c.start(key)
}

// Complete handles the outcome of the in-flight fetch and, if a key is
// pending, starts the next fetch and returns its worker command.
func (c *Coalescer) Complete(msg FetchDoneMsg) tea.Cmd {
	if c.current == nil || c.current.ID != msg.Fetch.ID {
		c.log.Warn().Str("fetch_id", msg.Fetch.ID.String()).Str("key", msg.Fetch.Key).Msg("completion for unknown fetch ignored")
		return nil
	}
	elapsed := time.Since(msg.Fetch.Started)

	switch {
	case msg.Err != nil:
		c.log.Error().Err(msg.Err.Err).
			Str("fetch_id", msg.Fetch.ID.String()).
			Str("key", msg.Fetch.Key).
			Str("kind", msg.Err.Kind.String()).
			Dur("elapsed", elapsed).
			Msg("fetch failed")
		for _, o := range c.observers {
			if o.FetchFailed != nil {
				o.FetchFailed(msg.Err)
			}
		}
	case c.discardSuperseded && c.hasPending && c.pending != msg.Fetch.Key:
		c.log.Info().
			Str("fetch_id", msg.Fetch.ID.String()).
			Str("key", msg.Fetch.Key).
			Str("pending", c.pending).
			Msg("superseded result discarded")
	default:
		c.log.Info().
			Str("fetch_id", msg.Fetch.ID.String()).
			Str("key", msg.Fetch.Key).
			Int("results", len(msg.Results)).
			Dur("elapsed", elapsed).
			Msg("fetch completed")
		c.projector.Apply(msg.Fetch.Key, msg.Results, &c.display)
	}

	c.current = nil
	if c.hasPending {
		next := c.pending
		c.pending, c.hasPending = "", false
		return c.start(next)
	}
	for _, o := range c.observers {
		if o.Idle != nil {
			o.Idle()
		}
	}
	return nil
}

func (c *Coalescer) start(key string) tea.Cmd {
	f := Fetch{ID: uuid.New(), Key: key, Started: time.Now()}
	c.current = &f
	c.log.Debug().Str("fetch_id", f.ID.String()).Str("key", key).Msg("fetch started")
	for _, o := range c.observers {
		if o.FetchStarted != nil {
			o.FetchStarted(f)
		}
	}
	ctx, exec := c.ctx, c.exec
	return func() tea.Msg {
		return execute(ctx, exec, f)
	}
}

func execute(ctx context.Context, exec Executor, f Fetch) (msg FetchDoneMsg) {
	msg.Fetch = f
	defer func() {
		if r := recover(); r != nil {
			msg.Results = nil
			msg.Err = &FetchError{Kind: StoreUnavailable, Key: f.Key, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	res, err := exec.Execute(ctx, f.Key)
	if err != nil {
		msg.Err = asFetchError(f.Key, err)
		return msg
	}
	msg.Results = res
	return msg
}

func (c *Coalescer) notifyUpdated(d *Display) {
	for _, o := range c.observers {
		if o.DisplayUpdated != nil {
			o.DisplayUpdated(d)
		}
	}
}

func (c *Coalescer) notifySelectAll() {
	for _, o := range c.observers {
		if o.SelectAll != nil {
			o.SelectAll()
		}
	}
}
