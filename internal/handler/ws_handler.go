package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/eptportal/ept-backend/internal/clock"
	"github.com/eptportal/ept-backend/internal/config"
	"github.com/eptportal/ept-backend/internal/middleware"
	"github.com/eptportal/ept-backend/internal/persistence"
	"github.com/eptportal/ept-backend/internal/proctor"
	"github.com/eptportal/ept-backend/internal/response"
	"github.com/eptportal/ept-backend/internal/runner"
	"github.com/eptportal/ept-backend/internal/service"
	ws "github.com/eptportal/ept-backend/internal/websocket"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// ExamDeps are the collaborators every exam stream shares.
type ExamDeps struct {
	Redis        *redis.Client
	Registration *service.RegistrationService
	Content      runner.ContentService
	Submissions  runner.SubmissionService
	Audit        runner.AuditSink
	Policy       config.Policy
	Clock        clock.Clock
}

// WSHandler hosts one exam runner per connected tab.
type WSHandler struct {
	deps     ExamDeps
	log      zerolog.Logger
	upgrader websocket.Upgrader

	mu   sync.Mutex
	tabs map[string]*runner.Runner
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(deps ExamDeps, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		deps:     deps,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
		tabs:     make(map[string]*runner.Runner),
	}
}

// ExamStream godoc
// WS /ws/v1/student/exam?token=...&tab=...
// Runs the student's exam: the tab forwards DOM observations and actions,
// the server pushes state snapshots and fullscreen commands.
func (h *WSHandler) ExamStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	status, err := h.deps.Registration.Availability(c.Request.Context(), claims.EptID)
	if err != nil {
		if errors.Is(err, service.ErrNoBooking) {
			response.Fail(c, http.StatusNotFound, response.ErrNoBooking)
			return
		}
		h.log.Error().Err(err).Str("ept_id", claims.EptID).Msg("Availability lookup failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if status.Availability != clock.Available {
		response.Fail(c, http.StatusForbidden, response.ErrTestNotAvailable)
		return
	}

	// The tab id scopes persisted answers; a reload of the same tab keeps it.
	tabID := c.Query("tab")
	if _, err := uuid.Parse(tabID); err != nil {
		tabID = uuid.New().String()
	}

	raw, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	conn := ws.Wrap(raw)
	defer conn.Close(websocket.CloseNormalClosure, "")

	wsLog := h.log.With().
		Str("ept_id", claims.EptID).
		Str("tab_id", tabID).
		Logger()
	wsLog.Info().Str("date", status.SelectedDate).Msg("Student connected")

	s := &examStream{
		h:    h,
		conn: conn,
		log:  wsLog,
		session: runner.Session{
			StudentID: claims.EptID,
			Date:      status.SelectedDate,
			TabID:     tabID,
		},
	}
	s.serve()
	wsLog.Info().Msg("Student disconnected")
}

// tabKey identifies a hosted runner. Tab ids are client supplied, so they
// only name a tab within one student's sessions.
func tabKey(s runner.Session) string {
	return s.StudentID + "/" + s.TabID
}

// claim registers r as the runner of the session's tab, closing any runner
// a stale connection of the same student and tab left behind.
func (h *WSHandler) claim(s runner.Session, r *runner.Runner) {
	key := tabKey(s)
	h.mu.Lock()
	prev := h.tabs[key]
	h.tabs[key] = r
	h.mu.Unlock()
	if prev != nil && prev != r {
		prev.Close()
	}
}

func (h *WSHandler) release(s runner.Session, r *runner.Runner) {
	key := tabKey(s)
	h.mu.Lock()
	if h.tabs[key] == r {
		delete(h.tabs, key)
	}
	h.mu.Unlock()
}

// CloseAll ends every hosted runner, flushing their pending answers.
func (h *WSHandler) CloseAll() {
	h.mu.Lock()
	runners := make([]*runner.Runner, 0, len(h.tabs))
	for _, r := range h.tabs {
		runners = append(runners, r)
	}
	h.tabs = make(map[string]*runner.Runner)
	h.mu.Unlock()

	for _, r := range runners {
		r.Close()
	}
}

// examStream is one connection's read loop and its runner.
type examStream struct {
	h       *WSHandler
	conn    *ws.Conn
	log     zerolog.Logger
	session runner.Session

	browser *proctor.RemoteBrowser
	runner  *runner.Runner
	wg      sync.WaitGroup
}

func (s *examStream) serve() {
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		if s.runner != nil {
			s.runner.Close()
			s.h.release(s.session, s.runner)
		}
		s.wg.Wait()
	}()

	for {
		var msg ws.RequestPayload
		if err := s.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn().Err(err).Msg("Unexpected close")
			} else {
				s.log.Debug().Msg("Connection closed")
			}
			return
		}

		if msg.Action == ws.ActionPing {
			_ = s.conn.WriteTyped(ws.PongResponse{Event: ws.EventPong})
			continue
		}
		if msg.Action == ws.ActionHello {
			s.hello(ctx, &msg)
			continue
		}
		if s.runner == nil {
			_ = s.conn.WriteError("send hello first")
			continue
		}
		if msg.Action == ws.ActionReturnHome {
			s.runner.ReturnHome()
			return
		}
		s.dispatch(&msg)
	}
}

// hello reports the tab's platform and geometry, then opens the runner.
func (s *examStream) hello(ctx context.Context, msg *ws.RequestPayload) {
	if s.runner != nil {
		if msg.Fullscreen != nil && msg.Screen != nil {
			s.browser.Sync(msg.Platform, *msg.Fullscreen, *msg.Screen)
		}
		_ = s.conn.WriteTyped(ws.StateResponse{Event: ws.EventState, State: s.runner.View()})
		return
	}

	s.browser = proctor.NewRemoteBrowser(msg.Platform, func(cmd proctor.Command) error {
		return s.conn.WriteTyped(ws.CommandResponse{Event: ws.EventCommand, Command: cmd})
	}, s.log)
	fullscreen := msg.Fullscreen != nil && *msg.Fullscreen
	var screen proctor.ScreenMetrics
	if msg.Screen != nil {
		screen = *msg.Screen
	}
	s.browser.Sync(msg.Platform, fullscreen, screen)

	_ = s.conn.WriteTyped(ws.PolicyResponse{
		Event:            ws.EventPolicy,
		ShortcutLetters:  proctor.ShortcutLetters,
		BlockedKeys:      proctor.BlockedKeys,
		BlockClipboard:   true,
		BlockContextMenu: true,
	})

	deps := s.h.deps
	backend := persistence.NewRedisBackend(deps.Redis, s.session.StudentID, s.session.TabID, deps.Policy.Persistence.TTL)
	s.runner = runner.New(runner.Deps{
		Browser:     s.browser,
		Clock:       deps.Clock,
		Store:       persistence.NewStore(backend, deps.Clock, s.log),
		Content:     deps.Content,
		Submissions: deps.Submissions,
		Policy:      deps.Policy,
		Audit:       deps.Audit,
		Observer: runner.ObserverFunc(func(v runner.View) {
			_ = s.conn.WriteTyped(ws.StateResponse{Event: ws.EventState, State: v})
		}),
		Log: s.log,
	}, s.session)
	s.h.claim(s.session, s.runner)

	s.async("open", func() error { return s.runner.Open(ctx) })
}

func (s *examStream) dispatch(msg *ws.RequestPayload) {
	r := s.runner
	switch msg.Action {
	case ws.ActionDOMEvent:
		ev := s.browser.Dispatch(msg.Report())
		if ev.DefaultPrevented() {
			_ = s.conn.WriteTyped(ws.BlockedResponse{Event: ws.EventBlocked, Type: ev.Type})
		}
	case ws.ActionStart:
		s.reply(r.Start())
	case ws.ActionAnswer:
		s.reply(r.Answer(msg.QuestionKey, msg.Value))
	case ws.ActionSubmit:
		s.async("submit", func() error { return r.Submit(runner.TriggerManual) })
	case ws.ActionContinue:
		s.async("continue", r.Continue)
	case ws.ActionRetry:
		s.async("retry", r.Retry)
	case ws.ActionReturnFullscreen:
		r.ReturnToFullscreen()
	default:
		s.log.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
		_ = s.conn.WriteError("unknown action: " + string(msg.Action))
	}
}

// async runs a blocking runner call off the read loop, so DOM events keep
// flowing while content loads or a submission is in flight.
func (s *examStream) async(name string, fn func() error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := fn(); err != nil {
			s.log.Debug().Err(err).Str("action", name).Msg("Action rejected")
			// Submission failures are already part of the state the tab sees.
			if !errors.Is(err, runner.ErrNotActive) && name != "submit" {
				_ = s.conn.WriteError(err.Error())
			}
		}
	}()
}

func (s *examStream) reply(err error) {
	if err != nil {
		_ = s.conn.WriteError(err.Error())
	}
}
