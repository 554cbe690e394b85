package dispatch

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

type submitMsg string

type closeMsg struct{}

// Loop is a headless coordinating context. Run processes submissions and
// completions one at a time on the calling goroutine; workers run on their
// own goroutines and post their results back to the inbox.
type Loop struct {
	c *Coalescer

	mu    sync.Mutex
	inbox []tea.Msg
	wake  chan struct{}

	closing bool
}

// NewLoop returns a loop driving c. c must not be used from anywhere else.
func NewLoop(c *Coalescer) *Loop {
	return &Loop{c: c, wake: make(chan struct{}, 1)}
}

// Submit queues a selection change. It never blocks.
func (l *Loop) Submit(key string) {
	l.post(submitMsg(key))
}

// Close asks Run to return once every queued submission has been handled and
// the coalescer is idle.
func (l *Loop) Close() {
	l.post(closeMsg{})
}

// Run processes events until ctx is done or Close has drained the loop.
func (l *Loop) Run(ctx context.Context) error {
	for {
		for {
			msg, ok := l.take()
			if !ok {
				break
			}
			l.handle(msg)
		}
		if l.closing && l.c.Phase() == Idle {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}

func (l *Loop) handle(msg tea.Msg) {
	var cmd tea.Cmd
	switch m := msg.(type) {
	case submitMsg:
		cmd = l.c.Submit(string(m))
	case FetchDoneMsg:
		cmd = l.c.Complete(m)
	case closeMsg:
		l.closing = true
	}
	if cmd != nil {
		go func() { l.post(cmd()) }()
	}
}

func (l *Loop) post(msg tea.Msg) {
	l.mu.Lock()
	l.inbox = append(l.inbox, msg)
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *Loop) take() (tea.Msg, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.inbox) == 0 {
		return nil, false
	}
	msg := l.inbox[0]
	l.inbox[0] = nil
	l.inbox = l.inbox[1:]
	return msg, true
}
