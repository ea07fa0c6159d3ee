package session

import (
	"context"
	"sync"
	"time"
)

// RefreshTask is the periodic token refresh started by a successful Start.
type RefreshTask struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
	c      *Controller
}

func (c *Controller) startRefresh(parent context.Context) *RefreshTask {
	ctx, cancel := context.WithCancel(parent)
	t := &RefreshTask{cancel: cancel, done: make(chan struct{}), c: c}
	go t.run(ctx, c.interval)
	return t
}

func (t *RefreshTask) run(ctx context.Context, interval time.Duration) {
	defer close(t.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// A slow refresh makes the ticker drop ticks rather than overlap them.
			if !t.c.tick(ctx) {
				return
			}
		}
	}
}

// Stop cancels the refresh loop and waits for it to exit.
func (t *RefreshTask) Stop() {
	if t == nil {
		return
	}
	t.once.Do(func() {
		t.cancel()
		<-t.done
		t.c.mu.Lock()
		if t.c.state == Authenticated {
			t.c.state = Stopped
		}
		t.c.mu.Unlock()
	})
}

// Done is closed once the refresh loop has exited.
func (t *RefreshTask) Done() <-chan struct{} {
	return t.done
}
