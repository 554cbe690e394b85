package dispatch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// gatedExec blocks every Execute until the test releases it.
type gatedExec struct {
	mu       sync.Mutex
	calls    []string
	started  chan string
	release  chan struct{}
	inflight atomic.Int32
	peak     atomic.Int32
}

func newGatedExec() *gatedExec {
	return &gatedExec{started: make(chan string, 64), release: make(chan struct{})}
}

func (g *gatedExec) Execute(_ context.Context, key string) (ResultSet, error) {
	n := g.inflight.Add(1)
	for {
		p := g.peak.Load()
		if n <= p || g.peak.CompareAndSwap(p, n) {
			break
		}
	}
	g.mu.Lock()
	g.calls = append(g.calls, key)
	g.mu.Unlock()

	g.started <- key
	<-g.release
	g.inflight.Add(-1)
	return ResultSet{item(len(key), "Active")}, nil
}

func waitStarted(t *testing.T, g *gatedExec) string {
	t.Helper()
	select {
	case k := <-g.started:
		return k
	case <-time.After(2 * time.Second):
		t.Fatal("no fetch started")
		return ""
	}
}

func TestLoopCoalescesWhileWorkerBlocked(t *testing.T) {
	t.Parallel()

	g := newGatedExec()
	c := NewCoalescer(context.Background(), g)
	var updates []string
	c.Observe(Observer{DisplayUpdated: func(d *Display) { updates = append(updates, d.Key()) }})

	l := NewLoop(c)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	l.Submit("k1")
	require.Equal(t, "k1", waitStarted(t, g))
	for i := 2; i <= 10; i++ {
		l.Submit(fmt.Sprintf("k%d", i))
	}
	g.release <- struct{}{}

	require.Equal(t, "k10", waitStarted(t, g))
	g.release <- struct{}{}

	l.Close()
	require.NoError(t, <-done)

	require.Equal(t, []string{"k1", "k10"}, g.calls)
	require.Equal(t, []string{"k1", "k10"}, updates)
	require.EqualValues(t, 1, g.peak.Load())
	require.Equal(t, Idle, c.Phase())
}

func TestLoopConcurrentSubmittersStaySingleFlight(t *testing.T) {
	t.Parallel()

	g := newGatedExec()
	c := NewCoalescer(context.Background(), g)
	l := NewLoop(c)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	stop := make(chan struct{})
	go func() {
		for {
			select {
			case <-g.started:
				g.release <- struct{}{}
			case <-stop:
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				l.Submit(fmt.Sprintf("w%d-%d", w, i))
			}
		}(w)
	}
	wg.Wait()
	l.Submit("final")
	l.Close()

	require.NoError(t, <-done)
	close(stop)

	require.EqualValues(t, 1, g.peak.Load())
	require.Equal(t, "final", c.Display().Key())
}

func TestLoopStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	g := newGatedExec()
	l := NewLoop(NewCoalescer(context.Background(), g))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	l.Submit("stuck")
	waitStarted(t, g)
	l.Close()
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
	close(g.release)
}
