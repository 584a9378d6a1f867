package tracking

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/smartsense/smartsense/domain/task"
)

var (
	_ task.Reporter = (*Cooldown)(nil)
	_ io.Closer     = (*Cooldown)(nil)
)

// Cooldown wraps a Reporter and delivers at most one non-terminal update
// per status ID per interval. Row progress can change hundreds of times a
// second; the latest throttled update is delivered when the interval
// elapses. Terminal states are delivered immediately and drop anything
// pending for the same ID.
type Cooldown struct {
	inner    task.Reporter
	interval time.Duration

	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	sent    time.Time
	pending *task.Status
	timer   *time.Timer
}

// NewCooldown creates a Cooldown around inner.
func NewCooldown(inner task.Reporter, interval time.Duration) *Cooldown {
	return &Cooldown{
		inner:    inner,
		interval: interval,
		slots:    make(map[string]*slot),
	}
}

// OnChange receives a status update.
func (c *Cooldown) OnChange(ctx context.Context, status task.Status) error {
	id := status.ID()

	c.mu.Lock()
	if status.State().IsTerminal() {
		if s, ok := c.slots[id]; ok {
			s.stop()
			delete(c.slots, id)
		}
		c.mu.Unlock()
		return c.inner.OnChange(ctx, status)
	}

	s, ok := c.slots[id]
	if !ok {
		s = &slot{}
		c.slots[id] = s
	}

	since := time.Since(s.sent)
	if since >= c.interval {
		s.stop()
		s.pending = nil
		s.sent = time.Now()
		c.mu.Unlock()
		return c.inner.OnChange(ctx, status)
	}

	latest := status
	s.pending = &latest
	if s.timer == nil {
		s.timer = time.AfterFunc(c.interval-since, func() { c.flush(id) })
	}
	c.mu.Unlock()
	return nil
}

// Close delivers every pending update and stops all timers.
func (c *Cooldown) Close() error {
	c.mu.Lock()
	slots := c.slots
	c.slots = make(map[string]*slot)
	c.mu.Unlock()

	for _, s := range slots {
		s.stop()
		if s.pending != nil {
			_ = c.inner.OnChange(context.Background(), *s.pending)
		}
	}
	return nil
}

func (c *Cooldown) flush(id string) {
	c.mu.Lock()
	s, ok := c.slots[id]
	if !ok {
		c.mu.Unlock()
		return
	}
	s.timer = nil
	if s.pending == nil {
		c.mu.Unlock()
		return
	}
	status := *s.pending
	s.pending = nil
	s.sent = time.Now()
	c.mu.Unlock()

	_ = c.inner.OnChange(context.Background(), status)
}

func (s *slot) stop() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
