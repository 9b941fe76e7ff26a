package proctor

import (
	"sync"

	"github.com/rs/zerolog"
)

// Command is an instruction the engine sends to the tab.
type Command string

const (
	CommandRequestFullscreen Command = "request_fullscreen"
	CommandExitFullscreen    Command = "exit_fullscreen"
)

// Commander delivers a command to the tab.
type Commander func(cmd Command) error

// Target names the DOM node an observation was made on.
type Target string

const (
	TargetDocument Target = "document"
	TargetWindow   Target = "window"
)

// Report is one observation forwarded by the tab. Fullscreen and Screen
// carry the browser state as it was when the event fired.
type Report struct {
	Target     Target
	Event      Event
	Fullscreen *bool
	Screen     *ScreenMetrics
}

// RemoteBrowser mirrors a tab that lives on the other end of a stream.
// Observations come in through Dispatch; fullscreen requests go out through
// the Commander.
type RemoteBrowser struct {
	doc  *EventBus
	win  *EventBus
	send Commander

	mu         sync.Mutex
	platform   string
	fullscreen bool
	screen     ScreenMetrics
}

// NewRemoteBrowser creates a mirror with no listeners attached.
func NewRemoteBrowser(platform string, send Commander, log zerolog.Logger) *RemoteBrowser {
	return &RemoteBrowser{
		doc:      NewEventBus(string(TargetDocument), log),
		win:      NewEventBus(string(TargetWindow), log),
		send:     send,
		platform: platform,
	}
}

func (b *RemoteBrowser) Document() EventTarget { return b.doc }
func (b *RemoteBrowser) Window() EventTarget   { return b.win }

func (b *RemoteBrowser) IsFullscreen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fullscreen
}

func (b *RemoteBrowser) Screen() ScreenMetrics {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.screen
}

func (b *RemoteBrowser) Platform() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.platform
}

func (b *RemoteBrowser) RequestFullscreen() error {
	return b.send(CommandRequestFullscreen)
}

func (b *RemoteBrowser) ExitFullscreen() error {
	return b.send(CommandExitFullscreen)
}

// Sync records tab state without dispatching an event, as reported when a
// tab connects.
func (b *RemoteBrowser) Sync(platform string, fullscreen bool, screen ScreenMetrics) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if platform != "" {
		b.platform = platform
	}
	b.fullscreen = fullscreen
	b.screen = screen
}

// Dispatch applies the state carried by r and delivers its event to the
// listeners of the target node. The returned event tells the tab whether
// the default action must be suppressed.
func (b *RemoteBrowser) Dispatch(r Report) *Event {
	b.mu.Lock()
	if r.Fullscreen != nil {
		b.fullscreen = *r.Fullscreen
	}
	if r.Screen != nil {
		b.screen = *r.Screen
	}
	b.mu.Unlock()

	ev := r.Event
	switch r.Target {
	case TargetWindow:
		b.win.Dispatch(&ev)
	default:
		b.doc.Dispatch(&ev)
	}
	return &ev
}
