// Package examtimer counts down a section's time budget from real elapsed
// time, so a throttled or backgrounded tab never gains time.
package examtimer

import (
	"sync"
	"time"

	"github.com/eptportal/ept-backend/internal/clock"
)

// State of the countdown.
type State string

const (
	Stopped        State = "stopped"
	Running        State = "running"
	WarningRunning State = "warning"
	Expired        State = "expired"
)

// Options configures a Timer. Zero fields take the defaults.
type Options struct {
	Tick       time.Duration
	Warning    time.Duration
	AutoSubmit time.Duration
	// OnTick receives the remaining time after every tick.
	OnTick func(remaining time.Duration)
	// OnAutoSubmit fires once when remaining time crosses AutoSubmit.
	OnAutoSubmit func()
}

// Timer is a delta-based countdown: each tick subtracts the elapsed time
// since the previous tick, scaled by the clock's speed factor.
type Timer struct {
	clock clock.Clock
	opts  Options

	mu         sync.Mutex
	state      State
	remaining  time.Duration
	lastTick   time.Time
	warning    bool
	autoFired  bool
	scheduled  clock.Timer
	generation uint64
}

// New creates a stopped timer.
func New(clk clock.Clock, opts Options) *Timer {
	if opts.Tick <= 0 {
		opts.Tick = time.Second
	}
	if opts.Warning <= 0 {
		opts.Warning = 5 * time.Minute
	}
	if opts.AutoSubmit <= 0 {
		opts.AutoSubmit = 30 * time.Second
	}
	return &Timer{clock: clk, opts: opts, state: Stopped}
}

// Start begins counting down from initial. Restarting a running timer
// replaces its budget. Thresholds already crossed take effect on the first
// tick; the warning flag is set immediately.
func (t *Timer) Start(initial time.Duration) {
	if initial < 0 {
		initial = 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopLocked()
	t.remaining = initial
	t.lastTick = t.clock.Now()
	t.warning = initial <= t.opts.Warning
	t.autoFired = false
	t.state = Running
	if t.warning {
		t.state = WarningRunning
	}
	t.scheduleLocked()
}

// Tick applies the elapsed time since the previous tick. It is driven by
// the timer's own schedule and may also be called directly.
func (t *Timer) Tick() {
	t.mu.Lock()
	if t.state != Running && t.state != WarningRunning {
		t.mu.Unlock()
		return
	}

	now := t.clock.Now()
	delta := now.Sub(t.lastTick)
	if delta < 0 {
		delta = 0
	}
	t.lastTick = now

	t.remaining -= time.Duration(float64(delta) * t.clock.SpeedFactor())
	if t.remaining < 0 {
		t.remaining = 0
	}
	remaining := t.remaining

	if remaining <= t.opts.Warning {
		t.warning = true
		t.state = WarningRunning
	}

	fireAuto := false
	if remaining <= t.opts.AutoSubmit && !t.autoFired {
		t.autoFired = true
		fireAuto = true
	}

	if remaining == 0 {
		t.state = Expired
		t.stopLocked()
	}

	onTick, onAuto := t.opts.OnTick, t.opts.OnAutoSubmit
	t.mu.Unlock()

	if onTick != nil {
		onTick(remaining)
	}
	if fireAuto && onAuto != nil {
		onAuto()
	}
}

// Reanchor resets the tick anchor to now. Used when the page becomes
// visible again so the next tick measures from the restore.
func (t *Timer) Reanchor() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == Running || t.state == WarningRunning {
		t.lastTick = t.clock.Now()
	}
}

// Stop halts the countdown, keeping the remaining time.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
	if t.state != Expired {
		t.state = Stopped
	}
}

// Remaining returns the time left as of the last tick.
func (t *Timer) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining
}

// IsWarning reports whether the warning threshold has been reached.
func (t *Timer) IsWarning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.warning
}

// IsAutoSubmitting reports whether auto-submit has fired.
func (t *Timer) IsAutoSubmitting() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.autoFired
}

// State returns the current state.
func (t *Timer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Timer) scheduleLocked() {
	gen := t.generation
	t.scheduled = t.clock.AfterFunc(t.opts.Tick, func() {
		t.Tick()
		t.mu.Lock()
		defer t.mu.Unlock()
		if t.generation == gen && (t.state == Running || t.state == WarningRunning) {
			t.scheduleLocked()
		}
	})
}

func (t *Timer) stopLocked() {
	t.generation++
	if t.scheduled != nil {
		t.scheduled.Stop()
		t.scheduled = nil
	}
}
