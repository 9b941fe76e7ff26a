package proctor

import (
	"errors"
	"testing"
	"time"

	"github.com/eptportal/ept-backend/internal/clock"
	"github.com/rs/zerolog"
)

// testTab is a RemoteBrowser whose tab grants fullscreen requests at once.
type testTab struct {
	b        *RemoteBrowser
	commands []Command
	deny     bool
}

func newTestTab(platform string) *testTab {
	t := &testTab{}
	t.b = NewRemoteBrowser(platform, func(cmd Command) error {
		t.commands = append(t.commands, cmd)
		if t.deny {
			return errors.New("permission denied")
		}
		on := cmd == CommandRequestFullscreen
		t.b.Dispatch(Report{Target: TargetDocument, Event: Event{Type: EventFullscreenChange}, Fullscreen: &on})
		return nil
	}, zerolog.Nop())
	return t
}

func (t *testTab) fire(ev Event) *Event {
	return t.b.Dispatch(Report{Target: TargetDocument, Event: ev})
}

func (t *testTab) setFullscreen(on bool, eventType string) {
	t.b.Dispatch(Report{Target: TargetDocument, Event: Event{Type: eventType}, Fullscreen: &on})
}

func (t *testTab) resize(avail, outer int) {
	t.b.Dispatch(Report{Target: TargetWindow, Event: Event{Type: EventResize}, Screen: &ScreenMetrics{AvailWidth: avail, OuterWidth: outer}})
}

func newTestMonitor(tab *testTab, opts Options) (*Monitor, *clock.Fake) {
	clk := clock.NewFake(time.Date(2025, 10, 3, 10, 0, 0, 0, time.UTC))
	return NewMonitor(tab.b, clk, zerolog.Nop(), opts), clk
}

func TestMonitorIgnoresEventsBeforeStart(t *testing.T) {
	t.Parallel()
	tab := newTestTab("Win32")
	m, _ := newTestMonitor(tab, Options{})

	ev := tab.fire(Event{Type: EventCopy})
	tab.fire(Event{Type: EventVisibilityChange, Hidden: true})
	tab.setFullscreen(false, EventFullscreenChange)

	if ev.DefaultPrevented() {
		t.Error("copy was prevented before proctoring started")
	}
	if w := m.Warnings(); w != (Warnings{}) {
		t.Errorf("Warnings() = %+v before start, want zero", w)
	}
	if snap := m.Snapshot(); snap.HasStartedTest || len(snap.FocusEvents) != 0 {
		t.Errorf("Snapshot() = %+v before start", snap)
	}
}

func TestMonitorCountsViolations(t *testing.T) {
	t.Parallel()
	tab := newTestTab("Win32")
	changes := 0
	var sunk []LogEntry
	m, _ := newTestMonitor(tab, Options{
		OnChange: func() { changes++ },
		Sink:     SinkFunc(func(e LogEntry) { sunk = append(sunk, e) }),
	})
	m.ToggleProctoring(true)

	tab.fire(Event{Type: EventVisibilityChange, Hidden: true})
	tab.fire(Event{Type: EventVisibilityChange, Hidden: false})
	if m.ShouldForceSubmit() {
		t.Fatal("one blur must not force submission")
	}

	copyEv := tab.fire(Event{Type: EventCopy})
	pasteEv := tab.fire(Event{Type: EventPaste})
	menuEv := tab.fire(Event{Type: EventContextMenu})
	if !copyEv.DefaultPrevented() || !pasteEv.DefaultPrevented() || !menuEv.DefaultPrevented() {
		t.Error("clipboard and context menu events must be prevented")
	}

	w := m.Warnings()
	want := Warnings{WindowBlurs: 1, CopyPasteAttempts: 2}
	if w != want {
		t.Fatalf("Warnings() = %+v, want %+v", w, want)
	}

	tab.fire(Event{Type: EventCut})
	if !m.ShouldForceSubmit() {
		t.Fatal("three copy/paste attempts must force submission")
	}

	types := []EntryType{EntryBlur, EntryFocus, EntryCopyPaste, EntryCopyPaste, EntryRightClick, EntryCopyPaste}
	snap := m.Snapshot()
	if len(snap.FocusEvents) != len(types) {
		t.Fatalf("log has %d entries, want %d", len(snap.FocusEvents), len(types))
	}
	for i, e := range snap.FocusEvents {
		if e.Type != types[i] {
			t.Errorf("entry %d type = %s, want %s", i, e.Type, types[i])
		}
	}
	if snap.FocusEvents[2].Action != EventCopy {
		t.Errorf("copy entry action = %q", snap.FocusEvents[2].Action)
	}
	if !snap.ShouldForceSubmit || !snap.HasStartedTest {
		t.Errorf("snapshot flags = %+v", snap)
	}
	if changes != len(types) || len(sunk) != len(types) {
		t.Errorf("observers saw %d changes and %d entries, want %d", changes, len(sunk), len(types))
	}
}

func TestMonitorFullscreenExitsAcrossVendorEvents(t *testing.T) {
	t.Parallel()
	tab := newTestTab("Win32")
	m, _ := newTestMonitor(tab, Options{})
	m.ToggleProctoring(true)

	for _, name := range []string{EventFullscreenChange, EventWebkitFullscreenChange, EventMSFullscreenChange} {
		tab.setFullscreen(true, name)
		tab.setFullscreen(false, name)
	}

	if got := m.Warnings().FullscreenExits; got != 3 {
		t.Fatalf("FullscreenExits = %d, want 3 (entering must not count)", got)
	}
	if !m.ShouldForceSubmit() {
		t.Error("three exits must force submission")
	}
}

func TestClassifyShortcut(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		ev       Event
		mac      bool
		blocked  bool
		modifier string
	}{
		{"ctrl+c on windows", Event{Key: "c", CtrlKey: true}, false, true, "ctrl"},
		{"ctrl+V uppercase", Event{Key: "V", CtrlKey: true}, false, true, "ctrl"},
		{"meta+c on windows", Event{Key: "c", MetaKey: true}, false, false, "none"},
		{"meta+x on mac", Event{Key: "x", MetaKey: true}, true, true, "meta"},
		{"ctrl+p on mac", Event{Key: "p", CtrlKey: true}, true, false, "none"},
		{"print screen", Event{Key: "PrintScreen"}, false, true, "none"},
		{"devtools", Event{Key: "F12"}, true, true, "none"},
		{"plain letter", Event{Key: "c"}, false, false, "none"},
		{"ctrl+a", Event{Key: "a", CtrlKey: true}, false, false, "ctrl"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ev := tt.ev
			blocked, modifier := ClassifyShortcut(&ev, tt.mac)
			if blocked != tt.blocked || modifier != tt.modifier {
				t.Errorf("ClassifyShortcut() = %v, %q; want %v, %q", blocked, modifier, tt.blocked, tt.modifier)
			}
		})
	}
}

func TestMonitorKeyboardShortcutsArePlatformAware(t *testing.T) {
	t.Parallel()
	tab := newTestTab("MacIntel")
	m, _ := newTestMonitor(tab, Options{})
	m.ToggleProctoring(true)

	blocked := tab.fire(Event{Type: EventKeyDown, Key: "c", MetaKey: true})
	allowed := tab.fire(Event{Type: EventKeyDown, Key: "c", CtrlKey: true})

	if !blocked.DefaultPrevented() || allowed.DefaultPrevented() {
		t.Fatalf("prevented: meta+c=%v ctrl+c=%v", blocked.DefaultPrevented(), allowed.DefaultPrevented())
	}
	snap := m.Snapshot()
	if snap.Warnings.CopyPasteAttempts != 1 {
		t.Fatalf("CopyPasteAttempts = %d, want 1", snap.Warnings.CopyPasteAttempts)
	}
	e := snap.FocusEvents[0]
	if e.Type != EntryKeyboardShortcut || e.Key != "c" || e.Modifier != "meta" {
		t.Errorf("entry = %+v", e)
	}
}

func TestToggleProctoringOffIsIdempotent(t *testing.T) {
	t.Parallel()
	tab := newTestTab("Win32")
	m, _ := newTestMonitor(tab, Options{})

	m.ToggleProctoring(true)
	tab.setFullscreen(true, EventFullscreenChange)
	if tab.b.doc.ListenerCount() == 0 || tab.b.win.ListenerCount() == 0 {
		t.Fatal("no listeners attached on activation")
	}
	if got, want := m.listeners.len(), tab.b.doc.ListenerCount()+tab.b.win.ListenerCount(); got != want {
		t.Fatalf("tracking %d listeners, %d attached", got, want)
	}

	m.ToggleProctoring(false)
	m.ToggleProctoring(false)

	if n := tab.b.doc.ListenerCount() + tab.b.win.ListenerCount(); n != 0 {
		t.Errorf("%d listeners left after teardown", n)
	}
	if n := m.listeners.len(); n != 0 {
		t.Errorf("registry still tracks %d listeners", n)
	}
	if tab.b.IsFullscreen() {
		t.Error("deactivation did not leave fullscreen")
	}
	exits := 0
	for _, c := range tab.commands {
		if c == CommandExitFullscreen {
			exits++
		}
	}
	if exits != 1 {
		t.Errorf("sent %d exit commands, want 1", exits)
	}

	tab.fire(Event{Type: EventCopy})
	if m.Warnings().CopyPasteAttempts != 0 {
		t.Error("events counted after deactivation")
	}
}

func TestDetachKeepsFullscreen(t *testing.T) {
	t.Parallel()
	tab := newTestTab("Win32")
	m, _ := newTestMonitor(tab, Options{})
	m.ToggleProctoring(true)
	tab.setFullscreen(true, EventFullscreenChange)

	m.Detach()

	if !tab.b.IsFullscreen() {
		t.Error("Detach() left fullscreen")
	}
	if m.IsActive() {
		t.Error("Detach() left the monitor active")
	}
}

func TestReactivationResetsCounters(t *testing.T) {
	t.Parallel()
	tab := newTestTab("Win32")
	m, _ := newTestMonitor(tab, Options{})

	m.ToggleProctoring(true)
	tab.fire(Event{Type: EventVisibilityChange, Hidden: true})
	m.ToggleProctoring(true)

	if w := m.Warnings(); w.WindowBlurs != 0 {
		t.Errorf("WindowBlurs = %d after reactivation, want 0", w.WindowBlurs)
	}
	tab.fire(Event{Type: EventVisibilityChange, Hidden: true})
	if w := m.Warnings(); w.WindowBlurs != 1 {
		t.Errorf("WindowBlurs = %d, want 1 (listeners doubled?)", w.WindowBlurs)
	}
}

func TestMonitorGeometry(t *testing.T) {
	t.Parallel()

	t.Run("wide desktop flagged on activation", func(t *testing.T) {
		t.Parallel()
		tab := newTestTab("Win32")
		tab.b.Sync("", false, ScreenMetrics{AvailWidth: 3840, OuterWidth: 3840})
		m, _ := newTestMonitor(tab, Options{})
		m.ToggleProctoring(true)
		if !m.Snapshot().MultipleMonitorsDetected {
			t.Error("available width above 2560 not flagged")
		}
	})

	t.Run("narrow window flagged after debounce and stays", func(t *testing.T) {
		t.Parallel()
		tab := newTestTab("Win32")
		tab.b.Sync("", false, ScreenMetrics{AvailWidth: 1920, OuterWidth: 1920})
		changes := 0
		m, clk := newTestMonitor(tab, Options{OnChange: func() { changes++ }})
		m.ToggleProctoring(true)
		if m.Warnings().MultipleMonitors {
			t.Fatal("full-width window flagged")
		}

		tab.resize(1920, 1000)
		clk.Advance(200 * time.Millisecond)
		tab.resize(1920, 1200)
		clk.Advance(200 * time.Millisecond)
		if m.Warnings().MultipleMonitors {
			t.Fatal("flagged before the resize settled")
		}
		clk.Advance(100 * time.Millisecond)
		if !m.Warnings().MultipleMonitors {
			t.Fatal("window at 62% of the screen not flagged")
		}
		if changes != 1 {
			t.Errorf("OnChange called %d times, want 1", changes)
		}

		tab.resize(1920, 1920)
		clk.Advance(time.Second)
		if !m.Warnings().MultipleMonitors {
			t.Error("flag cleared after the window was maximised")
		}
	})
}

func TestMonitorLogCapacity(t *testing.T) {
	t.Parallel()
	tab := newTestTab("Win32")
	m, _ := newTestMonitor(tab, Options{
		Thresholds:     Thresholds{FullscreenExits: 100, WindowBlurs: 100, CopyPaste: 100},
		LogCapacity:    5,
		SnapshotEvents: 3,
	})
	m.ToggleProctoring(true)

	for i := 0; i < 8; i++ {
		tab.fire(Event{Type: EventContextMenu})
	}
	tab.fire(Event{Type: EventCopy})

	snap := m.Snapshot()
	if len(snap.FocusEvents) != 3 {
		t.Fatalf("snapshot has %d events, want 3", len(snap.FocusEvents))
	}
	if last := snap.FocusEvents[2]; last.Type != EntryCopyPaste {
		t.Errorf("last snapshot entry = %s, want the most recent", last.Type)
	}
	m.mu.Lock()
	n := len(m.events)
	m.mu.Unlock()
	if n != 5 {
		t.Errorf("log holds %d entries, want capacity 5", n)
	}
}

func TestEventBusSurvivesPanickingListener(t *testing.T) {
	t.Parallel()
	bus := NewEventBus("document", zerolog.Nop())
	called := false
	bus.AddEventListener(EventCopy, func(*Event) { panic("boom") })
	id := bus.AddEventListener(EventCopy, func(*Event) { called = true })

	bus.Dispatch(&Event{Type: EventCopy})
	if !called {
		t.Fatal("listener after a panicking one was not called")
	}

	bus.RemoveEventListener(id)
	bus.RemoveEventListener(id)
	if bus.ListenerCount() != 1 {
		t.Errorf("ListenerCount() = %d, want 1", bus.ListenerCount())
	}
}

func TestFullscreenController(t *testing.T) {
	t.Parallel()
	tab := newTestTab("Win32")
	f := NewFullscreenController(tab.b, zerolog.Nop())
	defer f.Close()

	if !f.NeedsRecovery(true) {
		t.Error("recovery prompt expected while proctored outside fullscreen")
	}

	f.Enter()
	if !f.IsFullscreen() || f.ExitWarning() {
		t.Fatalf("after Enter: fullscreen=%v warning=%v", f.IsFullscreen(), f.ExitWarning())
	}

	tab.setFullscreen(false, EventMozFullscreenChange)
	if !f.ExitWarning() || !f.NeedsRecovery(true) {
		t.Fatal("leaving fullscreen must raise the exit warning")
	}
	if f.NeedsRecovery(false) {
		t.Error("no recovery prompt when proctoring is off")
	}

	f.Enter()
	if f.ExitWarning() {
		t.Error("student re-entry did not clear the exit warning")
	}

	tab.deny = true
	tab.setFullscreen(false, EventFullscreenChange)
	f.Enter()
	if f.IsFullscreen() || !f.ExitWarning() {
		t.Error("a refused request must leave the warning pending")
	}

	f.Close()
	f.Close()
}
