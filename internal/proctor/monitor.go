// Package proctor turns raw browser signals into an audit-grade summary of
// exam-integrity violations and decides when a section must be forced in.
package proctor

import (
	"strings"
	"sync"
	"time"

	"github.com/eptportal/ept-backend/internal/clock"
	"github.com/eptportal/ept-backend/internal/config"
	"github.com/rs/zerolog"
)

// Warnings are the violation counters of the current section.
type Warnings struct {
	FullscreenExits   int  `json:"fullscreen_exits"`
	WindowBlurs       int  `json:"window_blurs"`
	CopyPasteAttempts int  `json:"copy_paste_attempts"`
	MultipleMonitors  bool `json:"multiple_monitors"`
}

// Thresholds at which a single counter forces submission.
type Thresholds struct {
	FullscreenExits int
	WindowBlurs     int
	CopyPaste       int
}

// Snapshot is the proctoring digest included with a submission.
type Snapshot struct {
	Warnings                 Warnings   `json:"warnings"`
	FocusEvents              []LogEntry `json:"focus_events"`
	MultipleMonitorsDetected bool       `json:"multiple_monitors_detected"`
	HasStartedTest           bool       `json:"has_started_test"`
	ShouldForceSubmit        bool       `json:"should_force_submit"`
	Timestamp                time.Time  `json:"timestamp"`
}

// Options tune a Monitor.
type Options struct {
	Thresholds      Thresholds
	LogCapacity     int
	SnapshotEvents  int
	ResizeDebounce  time.Duration
	WideScreenWidth int
	WindowFillRatio float64
	// OnChange is called after every observation that touched the log or
	// the counters.
	OnChange func()
	Sink     Sink
}

// OptionsFromPolicy maps the proctoring policy onto monitor options.
func OptionsFromPolicy(p config.ProctoringPolicy) Options {
	return Options{
		Thresholds: Thresholds{
			FullscreenExits: p.MaxFullscreenExits,
			WindowBlurs:     p.MaxWindowBlurs,
			CopyPaste:       p.MaxCopyPaste,
		},
		LogCapacity:     p.EventLogCapacity,
		SnapshotEvents:  p.SnapshotEvents,
		ResizeDebounce:  p.ResizeDebounce,
		WideScreenWidth: p.WideScreenWidth,
		WindowFillRatio: p.WindowFillRatio,
	}
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(LogEntry)

func (f SinkFunc) Record(e LogEntry) { f(e) }

// Monitor is the violation monitor of one proctored tab.
type Monitor struct {
	browser Browser
	clock   clock.Clock
	log     zerolog.Logger
	opts    Options

	listeners registry

	mu          sync.Mutex
	active      bool
	started     bool
	warnings    Warnings
	events      []LogEntry
	resizeTimer clock.Timer
}

// NewMonitor creates an idle monitor for browser.
func NewMonitor(browser Browser, clk clock.Clock, log zerolog.Logger, opts Options) *Monitor {
	def := OptionsFromPolicy(config.DefaultPolicy().Proctoring)
	if opts.Thresholds.FullscreenExits <= 0 {
		opts.Thresholds.FullscreenExits = def.Thresholds.FullscreenExits
	}
	if opts.Thresholds.WindowBlurs <= 0 {
		opts.Thresholds.WindowBlurs = def.Thresholds.WindowBlurs
	}
	if opts.Thresholds.CopyPaste <= 0 {
		opts.Thresholds.CopyPaste = def.Thresholds.CopyPaste
	}
	if opts.LogCapacity <= 0 {
		opts.LogCapacity = def.LogCapacity
	}
	if opts.SnapshotEvents <= 0 {
		opts.SnapshotEvents = def.SnapshotEvents
	}
	if opts.ResizeDebounce <= 0 {
		opts.ResizeDebounce = def.ResizeDebounce
	}
	if opts.WideScreenWidth <= 0 {
		opts.WideScreenWidth = def.WideScreenWidth
	}
	if opts.WindowFillRatio <= 0 {
		opts.WindowFillRatio = def.WindowFillRatio
	}

	return &Monitor{
		browser: browser,
		clock:   clk,
		log:     log.With().Str("component", "violation_monitor").Logger(),
		opts:    opts,
	}
}

// ToggleProctoring arms or disarms the monitor. Turning it on resets the
// counters and the log, marks the test as started and attaches listeners.
// Turning it off detaches everything and leaves fullscreen. Both are
// idempotent.
func (m *Monitor) ToggleProctoring(on bool) {
	if !on {
		m.deactivate(true)
		return
	}

	m.listeners.teardownAll()

	m.mu.Lock()
	m.stopResizeLocked()
	m.warnings = Warnings{}
	m.events = nil
	m.started = true
	m.active = true
	m.mu.Unlock()

	m.attach()
	m.checkGeometry(false)

	m.log.Info().Msg("Proctoring activated")
}

// Detach turns proctoring off but keeps the tab in fullscreen, for moving
// straight into the next section.
func (m *Monitor) Detach() {
	m.deactivate(false)
}

// ClearWarnings zeroes the counters and empties the log.
func (m *Monitor) ClearWarnings() {
	m.mu.Lock()
	m.warnings = Warnings{}
	m.events = nil
	m.mu.Unlock()
}

// ShouldForceSubmit reports whether any counter reached its threshold.
func (m *Monitor) ShouldForceSubmit() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shouldForceSubmitLocked()
}

// Warnings returns a copy of the counters.
func (m *Monitor) Warnings() Warnings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.warnings
}

// IsActive reports whether listeners are attached and counting.
func (m *Monitor) IsActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active && m.started
}

// Snapshot returns the digest for a submission payload, with the most
// recent log entries.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	events := m.events
	if len(events) > m.opts.SnapshotEvents {
		events = events[len(events)-m.opts.SnapshotEvents:]
	}
	return Snapshot{
		Warnings:                 m.warnings,
		FocusEvents:              append([]LogEntry(nil), events...),
		MultipleMonitorsDetected: m.warnings.MultipleMonitors,
		HasStartedTest:           m.started,
		ShouldForceSubmit:        m.shouldForceSubmitLocked(),
		Timestamp:                m.clock.Now(),
	}
}

// RequestFullscreen asks the browser for fullscreen. Failures are logged.
func (m *Monitor) RequestFullscreen() {
	if err := m.browser.RequestFullscreen(); err != nil {
		m.log.Warn().Err(err).Msg("Fullscreen request failed")
	}
}

// ExitFullscreen leaves fullscreen if the tab is in it. Failures are logged.
func (m *Monitor) ExitFullscreen() {
	if !m.browser.IsFullscreen() {
		return
	}
	if err := m.browser.ExitFullscreen(); err != nil {
		m.log.Warn().Err(err).Msg("Fullscreen exit failed")
	}
}

// ─── Listeners ─────────────────────────────────────────────────────

func (m *Monitor) attach() {
	doc, win := m.browser.Document(), m.browser.Window()

	for _, ev := range FullscreenEvents {
		m.listeners.add(doc, ev, m.onFullscreenChange)
	}
	m.listeners.add(doc, EventVisibilityChange, m.onVisibilityChange)
	for _, ev := range []string{EventCopy, EventPaste, EventCut} {
		m.listeners.add(doc, ev, m.onClipboard)
	}
	m.listeners.add(doc, EventContextMenu, m.onContextMenu)
	m.listeners.add(doc, EventKeyDown, m.onKeyDown)
	m.listeners.add(win, EventResize, m.onResize)
}

func (m *Monitor) deactivate(exitFullscreen bool) {
	m.listeners.teardownAll()

	m.mu.Lock()
	wasActive := m.active
	m.stopResizeLocked()
	m.active = false
	m.started = false
	m.mu.Unlock()

	if exitFullscreen {
		m.ExitFullscreen()
	}
	if wasActive {
		m.log.Info().Bool("exit_fullscreen", exitFullscreen).Msg("Proctoring deactivated")
	}
}

func (m *Monitor) onFullscreenChange(_ *Event) {
	if m.browser.IsFullscreen() {
		return
	}
	m.observe(LogEntry{Type: EntryFullscreenExit}, func(w *Warnings) { w.FullscreenExits++ })
}

func (m *Monitor) onVisibilityChange(ev *Event) {
	if ev.Hidden {
		m.observe(LogEntry{Type: EntryBlur}, func(w *Warnings) { w.WindowBlurs++ })
		return
	}
	m.observe(LogEntry{Type: EntryFocus}, nil)
}

func (m *Monitor) onClipboard(ev *Event) {
	if !m.IsActive() {
		return
	}
	ev.PreventDefault()
	m.observe(LogEntry{Type: EntryCopyPaste, Action: ev.Type}, func(w *Warnings) { w.CopyPasteAttempts++ })
}

func (m *Monitor) onContextMenu(ev *Event) {
	if !m.IsActive() {
		return
	}
	ev.PreventDefault()
	m.observe(LogEntry{Type: EntryRightClick}, nil)
}

func (m *Monitor) onKeyDown(ev *Event) {
	if !m.IsActive() {
		return
	}
	blocked, modifier := ClassifyShortcut(ev, IsMacPlatform(m.browser.Platform()))
	if !blocked {
		return
	}
	ev.PreventDefault()
	m.observe(LogEntry{Type: EntryKeyboardShortcut, Key: ev.Key, Modifier: modifier},
		func(w *Warnings) { w.CopyPasteAttempts++ })
}

func (m *Monitor) onResize(_ *Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.active || !m.started {
		return
	}
	m.stopResizeLocked()
	m.resizeTimer = m.clock.AfterFunc(m.opts.ResizeDebounce, func() { m.checkGeometry(true) })
}

// observe records entry and applies bump while the test is running.
func (m *Monitor) observe(entry LogEntry, bump func(*Warnings)) {
	m.mu.Lock()
	if !m.active || !m.started {
		m.mu.Unlock()
		return
	}
	entry.Timestamp = m.clock.Now()
	if bump != nil {
		bump(&m.warnings)
	}
	m.events = append(m.events, entry)
	if over := len(m.events) - m.opts.LogCapacity; over > 0 {
		m.events = append([]LogEntry(nil), m.events[over:]...)
	}
	warnings := m.warnings
	m.mu.Unlock()

	m.log.Debug().
		Str("type", string(entry.Type)).
		Int("fullscreen_exits", warnings.FullscreenExits).
		Int("window_blurs", warnings.WindowBlurs).
		Int("copy_paste", warnings.CopyPasteAttempts).
		Msg("Integrity event")

	if m.opts.Sink != nil {
		m.opts.Sink.Record(entry)
	}
	if m.opts.OnChange != nil {
		m.opts.OnChange()
	}
}

// checkGeometry flags a probable second monitor. The heuristic is best
// effort: a very wide available area, or a window much narrower than it.
// Once set the flag stays for the section. The activation check does not
// notify, so ToggleProctoring never calls back into its caller.
func (m *Monitor) checkGeometry(notify bool) {
	s := m.browser.Screen()
	if s.AvailWidth <= 0 {
		return
	}
	multiple := s.AvailWidth > m.opts.WideScreenWidth ||
		float64(s.OuterWidth) < float64(s.AvailWidth)*m.opts.WindowFillRatio

	m.mu.Lock()
	changed := multiple && !m.warnings.MultipleMonitors && m.started
	if changed {
		m.warnings.MultipleMonitors = true
	}
	m.mu.Unlock()

	if changed {
		m.log.Warn().
			Int("avail_width", s.AvailWidth).
			Int("outer_width", s.OuterWidth).
			Msg("Multiple monitors suspected")
		if notify && m.opts.OnChange != nil {
			m.opts.OnChange()
		}
	}
}

func (m *Monitor) stopResizeLocked() {
	if m.resizeTimer != nil {
		m.resizeTimer.Stop()
		m.resizeTimer = nil
	}
}

func (m *Monitor) shouldForceSubmitLocked() bool {
	t := m.opts.Thresholds
	return m.warnings.FullscreenExits >= t.FullscreenExits ||
		m.warnings.WindowBlurs >= t.WindowBlurs ||
		m.warnings.CopyPasteAttempts >= t.CopyPaste
}

// ─── Shortcuts ─────────────────────────────────────────────────────

// ShortcutLetters are blocked with the platform modifier: copy, paste,
// cut and print.
var ShortcutLetters = []string{"c", "v", "x", "p"}

// BlockedKeys are blocked without a modifier: screenshot and devtools.
var BlockedKeys = []string{"PrintScreen", "F12"}

// ClassifyShortcut reports whether a keydown must be blocked, and which
// modifier was held ("meta", "ctrl" or "none").
func ClassifyShortcut(ev *Event, mac bool) (bool, string) {
	held := ev.CtrlKey
	name := "ctrl"
	if mac {
		held = ev.MetaKey
		name = "meta"
	}
	modifier := "none"
	if held {
		modifier = name
	}

	if held {
		key := strings.ToLower(ev.Key)
		for _, l := range ShortcutLetters {
			if key == l {
				return true, modifier
			}
		}
	}
	for _, k := range BlockedKeys {
		if ev.Key == k {
			return true, modifier
		}
	}
	return false, modifier
}
