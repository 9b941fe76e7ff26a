package proctor

import (
	"sync"

	"github.com/rs/zerolog"
)

// FullscreenController reflects the tab's fullscreen state as one boolean
// and tracks whether an exit still needs the student's attention.
type FullscreenController struct {
	browser Browser
	log     zerolog.Logger
	reg     registry

	mu          sync.Mutex
	fullscreen  bool
	exitWarning bool
	requested   bool
}

// NewFullscreenController subscribes to every fullscreen change variant
// until Close.
func NewFullscreenController(browser Browser, log zerolog.Logger) *FullscreenController {
	f := &FullscreenController{
		browser:    browser,
		log:        log.With().Str("component", "fullscreen").Logger(),
		fullscreen: browser.IsFullscreen(),
	}
	for _, ev := range FullscreenEvents {
		f.reg.add(browser.Document(), ev, f.onChange)
	}
	return f
}

// Enter asks for fullscreen on the student's behalf. The pending exit
// warning clears once the browser reports fullscreen. Refusals are logged.
func (f *FullscreenController) Enter() {
	f.mu.Lock()
	f.requested = true
	if f.fullscreen {
		f.exitWarning = false
		f.requested = false
	}
	f.mu.Unlock()

	if err := f.browser.RequestFullscreen(); err != nil {
		f.log.Warn().Err(err).Msg("Fullscreen request refused")
	}
}

// Exit leaves fullscreen. Refusals are logged.
func (f *FullscreenController) Exit() {
	if err := f.browser.ExitFullscreen(); err != nil {
		f.log.Warn().Err(err).Msg("Fullscreen exit refused")
	}
}

// IsFullscreen reports the last known state.
func (f *FullscreenController) IsFullscreen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fullscreen
}

// ExitWarning reports whether fullscreen was lost since the last
// student-requested entry.
func (f *FullscreenController) ExitWarning() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exitWarning
}

// NeedsRecovery reports whether a "Return to Fullscreen" prompt is due.
func (f *FullscreenController) NeedsRecovery(proctoringActive bool) bool {
	return proctoringActive && !f.IsFullscreen()
}

// Close unsubscribes. Safe to call more than once.
func (f *FullscreenController) Close() {
	f.reg.teardownAll()
}

func (f *FullscreenController) onChange(_ *Event) {
	now := f.browser.IsFullscreen()

	f.mu.Lock()
	defer f.mu.Unlock()
	switch {
	case now && f.requested:
		f.exitWarning = false
		f.requested = false
	case !now && f.fullscreen:
		f.exitWarning = true
	}
	f.fullscreen = now
}
