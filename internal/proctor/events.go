package proctor

import (
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DOM event names observed during a proctored section.
const (
	EventFullscreenChange       = "fullscreenchange"
	EventWebkitFullscreenChange = "webkitfullscreenchange"
	EventMozFullscreenChange    = "mozfullscreenchange"
	EventMSFullscreenChange     = "MSFullscreenChange"
	EventVisibilityChange       = "visibilitychange"
	EventCopy                   = "copy"
	EventPaste                  = "paste"
	EventCut                    = "cut"
	EventContextMenu            = "contextmenu"
	EventKeyDown                = "keydown"
	EventResize                 = "resize"
)

// FullscreenEvents lists every vendor spelling of the fullscreen change event.
var FullscreenEvents = []string{
	EventFullscreenChange,
	EventWebkitFullscreenChange,
	EventMozFullscreenChange,
	EventMSFullscreenChange,
}

// Event is one DOM observation reported by the browser.
type Event struct {
	Type     string
	Key      string
	MetaKey  bool
	CtrlKey  bool
	ShiftKey bool
	// Hidden is the document visibility after a visibilitychange.
	Hidden bool

	prevented bool
}

// PreventDefault marks the browser default action as suppressed.
func (e *Event) PreventDefault() { e.prevented = true }

// DefaultPrevented reports whether a listener suppressed the default action.
func (e *Event) DefaultPrevented() bool { return e.prevented }

// Handler receives dispatched events.
type Handler func(ev *Event)

// ListenerID identifies a registered listener for removal.
type ListenerID uint64

// EventTarget is a DOM node that listeners can be attached to.
type EventTarget interface {
	AddEventListener(event string, h Handler) ListenerID
	RemoveEventListener(id ListenerID)
}

// ScreenMetrics is the geometry the browser last reported.
type ScreenMetrics struct {
	AvailWidth int `json:"avail_width"`
	OuterWidth int `json:"outer_width"`
}

// Browser is the proctored tab: its event targets and the process-wide
// resources (fullscreen, screen) a section may touch.
type Browser interface {
	Document() EventTarget
	Window() EventTarget
	IsFullscreen() bool
	RequestFullscreen() error
	ExitFullscreen() error
	Screen() ScreenMetrics
	Platform() string
}

// IsMacPlatform reports whether shortcuts use the meta key on platform.
func IsMacPlatform(platform string) bool {
	return strings.Contains(strings.ToUpper(platform), "MAC")
}

// ─── EventBus ──────────────────────────────────────────────────────

type listener struct {
	id    ListenerID
	event string
	fn    Handler
}

// EventBus is an EventTarget that dispatches to registered listeners in
// registration order. A panicking listener is logged and skipped.
type EventBus struct {
	name string
	log  zerolog.Logger

	mu        sync.Mutex
	next      ListenerID
	listeners []listener
}

// NewEventBus creates an empty bus named for logging.
func NewEventBus(name string, log zerolog.Logger) *EventBus {
	return &EventBus{name: name, log: log.With().Str("target", name).Logger()}
}

func (b *EventBus) AddEventListener(event string, h Handler) ListenerID {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	b.listeners = append(b.listeners, listener{id: b.next, event: event, fn: h})
	return b.next
}

func (b *EventBus) RemoveEventListener(id ListenerID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, l := range b.listeners {
		if l.id == id {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			return
		}
	}
}

// Dispatch delivers ev to every listener registered for ev.Type.
func (b *EventBus) Dispatch(ev *Event) {
	b.mu.Lock()
	targets := make([]Handler, 0, len(b.listeners))
	for _, l := range b.listeners {
		if l.event == ev.Type {
			targets = append(targets, l.fn)
		}
	}
	b.mu.Unlock()

	for _, fn := range targets {
		b.call(fn, ev)
	}
}

// ListenerCount returns the number of registered listeners.
func (b *EventBus) ListenerCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners)
}

func (b *EventBus) call(fn Handler, ev *Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().Interface("panic", r).Str("event", ev.Type).Msg("Listener panicked")
		}
	}()
	fn(ev)
}

// ─── Log entries ───────────────────────────────────────────────────

// EntryType classifies an integrity log entry.
type EntryType string

const (
	EntryFullscreenExit   EntryType = "fullscreen_exit"
	EntryBlur             EntryType = "blur"
	EntryFocus            EntryType = "focus"
	EntryCopyPaste        EntryType = "copy_paste"
	EntryRightClick       EntryType = "right_click"
	EntryKeyboardShortcut EntryType = "keyboard_shortcut"
)

// LogEntry is one timestamped integrity observation.
type LogEntry struct {
	Type      EntryType `json:"type"`
	Action    string    `json:"action,omitempty"`
	Key       string    `json:"key,omitempty"`
	Modifier  string    `json:"modifier,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Sink receives every log entry for durable audit.
type Sink interface {
	Record(entry LogEntry)
}
