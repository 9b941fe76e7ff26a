package websocket

import "github.com/eptportal/ept-backend/internal/proctor"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionHello            Action = "hello"
	ActionDOMEvent         Action = "dom_event"
	ActionStart            Action = "start"
	ActionAnswer           Action = "answer"
	ActionSubmit           Action = "submit"
	ActionContinue         Action = "continue"
	ActionRetry            Action = "retry"
	ActionReturnFullscreen Action = "return_fullscreen"
	ActionReturnHome       Action = "return_home"
	ActionPing             Action = "ping"
)

// RequestPayload is every client message. Fields beyond Action are read
// according to it.
type RequestPayload struct {
	Action Action `json:"action"`

	// hello
	Platform string `json:"platform,omitempty"`

	// hello, dom_event: browser state when the message was sent
	Fullscreen *bool                  `json:"fullscreen,omitempty"`
	Screen     *proctor.ScreenMetrics `json:"screen,omitempty"`

	// dom_event
	Target   proctor.Target `json:"target,omitempty"`
	Type     string         `json:"type,omitempty"`
	Key      string         `json:"key,omitempty"`
	MetaKey  bool           `json:"meta_key,omitempty"`
	CtrlKey  bool           `json:"ctrl_key,omitempty"`
	ShiftKey bool           `json:"shift_key,omitempty"`
	Hidden   bool           `json:"hidden,omitempty"`

	// answer
	QuestionKey string `json:"key_id,omitempty"`
	Value       string `json:"value,omitempty"`
}

// Report converts a dom_event into the observation the browser mirror
// dispatches.
func (p *RequestPayload) Report() proctor.Report {
	return proctor.Report{
		Target:     p.Target,
		Fullscreen: p.Fullscreen,
		Screen:     p.Screen,
		Event: proctor.Event{
			Type:     p.Type,
			Key:      p.Key,
			MetaKey:  p.MetaKey,
			CtrlKey:  p.CtrlKey,
			ShiftKey: p.ShiftKey,
			Hidden:   p.Hidden,
		},
	}
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventState   Event = "state"
	EventCommand Event = "command"
	EventPolicy  Event = "policy"
	EventBlocked Event = "blocked"
	EventError   Event = "error"
	EventPong    Event = "pong"
)

// StateResponse carries a runner snapshot.
type StateResponse struct {
	Event Event `json:"event"`
	State any   `json:"state"`
}

// CommandResponse asks the tab to change a browser resource.
type CommandResponse struct {
	Event   Event           `json:"event"`
	Command proctor.Command `json:"command"`
}

// PolicyResponse tells the tab which defaults to suppress on its own,
// since the decision has to be made before the event leaves the page.
type PolicyResponse struct {
	Event            Event    `json:"event"`
	ShortcutLetters  []string `json:"shortcut_letters"`
	BlockedKeys      []string `json:"blocked_keys"`
	BlockClipboard   bool     `json:"block_clipboard"`
	BlockContextMenu bool     `json:"block_context_menu"`
}

// BlockedResponse acknowledges a dom_event whose default was suppressed.
type BlockedResponse struct {
	Event Event  `json:"event"`
	Type  string `json:"type"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
