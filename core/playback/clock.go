package playback

import (
	"sync"
	"time"
)

// State of the playback cursor.
type State int

const (
	Stopped State = iota
	Running
)

// Clock is a monotonic virtual cursor over [0, duration] seconds. While
// running, the position is recomputed from the wall clock on every tick
// (frame-rate independent; a late tick lands on the right position). When
// the cursor reaches the duration it wraps: the clock stops and the position
// resets to zero.
//
// OnTick and OnStop run on the clock's tick goroutine and must not call back
// into the clock.
type Clock struct {
	mu       sync.Mutex
	duration float64
	current  float64
	state    State
	anchor   time.Time

	now          func() time.Time
	tickInterval time.Duration
	stop         chan struct{}

	// OnTick observes the position while running. OnStop fires when the
	// cursor wraps at the end, not on an explicit Pause.
	OnTick func(position float64)
	OnStop func()
}

// NewClock creates a clock over [0, duration] seconds ticking at the given
// interval. A non-positive interval disables the background loop; the owner
// drives the clock with Tick, which the tests use with a fake time source.
func NewClock(duration float64, tickInterval time.Duration) *Clock {
	return &Clock{
		duration:     duration,
		now:          time.Now,
		tickInterval: tickInterval,
	}
}

// SetNow replaces the time source. Only meaningful before Start.
func (c *Clock) SetNow(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// SetDuration updates the playable range after a song duration edit.
func (c *Clock) SetDuration(duration float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.duration = duration
}

// State returns the current state.
func (c *Clock) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// CurrentTime returns the cursor position in seconds.
func (c *Clock) CurrentTime() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Running {
		return c.position(c.now())
	}
	return c.current
}

// Start transitions Stopped -> Running, anchoring the wall clock so the
// cursor resumes from its retained position. Starting a running clock is a
// no-op.
func (c *Clock) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Running || c.duration <= 0 {
		return
	}

	c.state = Running
	c.anchor = c.now().Add(-secondsToDuration(c.current))
	if c.tickInterval > 0 {
		c.stop = make(chan struct{})
		go c.loop(c.stop)
	}
}

// Pause transitions Running -> Stopped, retaining the cursor position. The
// tick loop is torn down; no tick is delivered after Pause returns.
func (c *Clock) Pause() {
	c.mu.Lock()
	if c.state != Running {
		c.mu.Unlock()
		return
	}
	c.current = c.position(c.now())
	c.state = Stopped
	stop := c.stop
	c.stop = nil
	c.mu.Unlock()

	if stop != nil {
		close(stop)
	}
}

// Seek moves the cursor while stopped. Ignored while running; seeking the
// live cursor is not a supported transition.
func (c *Clock) Seek(position float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Running {
		return
	}
	if position < 0 {
		position = 0
	}
	if position > c.duration {
		position = c.duration
	}
	c.current = position
}

// Reset stops the clock and returns the cursor to zero.
func (c *Clock) Reset() {
	c.Pause()
	c.mu.Lock()
	c.current = 0
	c.mu.Unlock()
}

// Tick evaluates one clock step. The background loop calls this on every
// ticker fire; owners that disabled the loop call it directly.
func (c *Clock) Tick() {
	c.mu.Lock()
	if c.state != Running {
		c.mu.Unlock()
		return
	}

	pos := c.position(c.now())
	if pos >= c.duration {
		// Wrap: stop and reset to zero rather than clamping at the end.
		c.state = Stopped
		c.current = 0
		stop := c.stop
		c.stop = nil
		onStop := c.OnStop
		c.mu.Unlock()

		if stop != nil {
			close(stop)
		}
		if onStop != nil {
			onStop()
		}
		return
	}

	c.current = pos
	onTick := c.OnTick
	c.mu.Unlock()

	if onTick != nil {
		onTick(pos)
	}
}

func (c *Clock) loop(stop chan struct{}) {
	ticker := time.NewTicker(c.tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.Tick()
		case <-stop:
			return
		}
	}
}

// position computes now - anchor in seconds, bounded below by zero.
func (c *Clock) position(now time.Time) float64 {
	pos := now.Sub(c.anchor).Seconds()
	if pos < 0 {
		return 0
	}
	// A snapshot between ticks must never report past the song end.
	if pos > c.duration {
		return c.duration
	}
	return pos
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
