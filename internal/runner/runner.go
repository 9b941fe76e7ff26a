// Package runner sequences the sections of one exam tab: it loads content,
// collects answers, drives the countdown and the violation monitor, and
// submits every section exactly once.
package runner

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/eptportal/ept-backend/internal/clock"
	"github.com/eptportal/ept-backend/internal/config"
	"github.com/eptportal/ept-backend/internal/examtimer"
	"github.com/eptportal/ept-backend/internal/model"
	"github.com/eptportal/ept-backend/internal/persistence"
	"github.com/eptportal/ept-backend/internal/proctor"
	"github.com/eptportal/ept-backend/internal/scoring"
	"github.com/rs/zerolog"
)

var (
	ErrNotActive        = errors.New("section is not accepting input")
	ErrNotAwaitingStart = errors.New("section is not waiting to start")
	ErrNotConfirmed     = errors.New("section is not confirmed")
	ErrNotRetryable     = errors.New("nothing to retry")
	ErrUnknownQuestion  = errors.New("unknown question key")
	ErrAlreadyOpen      = errors.New("runner already open")
	ErrClosed           = errors.New("runner closed")
)

const submitTimeout = 30 * time.Second

// Trigger says what started a submission.
type Trigger string

const (
	TriggerManual Trigger = "manual"
	TriggerTimer  Trigger = "timer"
	TriggerForce  Trigger = "force"
)

// Deps are the collaborators of a Runner.
type Deps struct {
	Browser     proctor.Browser
	Clock       clock.Clock
	Store       *persistence.Store
	Content     ContentService
	Submissions SubmissionService
	Policy      config.Policy
	// Audit is optional.
	Audit    AuditSink
	Observer Observer
	Log      zerolog.Logger
}

// Runner is the exam orchestrator of one tab.
type Runner struct {
	deps       Deps
	session    Session
	sections   []config.SectionPolicy
	log        zerolog.Logger
	monitor    *proctor.Monitor
	fullscreen *proctor.FullscreenController

	auditMu      sync.Mutex
	auditTestID  string
	auditSection model.SectionType

	mu           sync.Mutex
	opened       bool
	closed       bool
	baseCtx      context.Context
	baseCancel   context.CancelFunc
	visibilityID proctor.ListenerID

	phase      Phase
	idx        int
	loadSeq    uint64
	cancelLoad context.CancelFunc

	content      *Content
	known        map[string]bool
	responses    map[string]string
	contentDirty bool
	timer        *examtimer.Timer

	countdown      int
	countdownTimer clock.Timer
	countdownGen   uint64
	forced         bool

	errMsg        string
	submissionErr string
	result        *model.SubmitResult
	redirect      string

	seq uint64
}

// New creates a runner for session. Nothing happens until Open.
func New(deps Deps, session Session) *Runner {
	r := &Runner{
		deps:      deps,
		session:   session,
		sections:  deps.Policy.Sections,
		phase:     PhaseLoading,
		countdown: -1,
		log: deps.Log.With().
			Str("component", "test_runner").
			Str("student_id", session.StudentID).
			Str("tab_id", session.TabID).
			Logger(),
	}

	opts := proctor.OptionsFromPolicy(deps.Policy.Proctoring)
	opts.OnChange = r.onMonitorChange
	opts.Sink = proctor.SinkFunc(r.audit)
	r.monitor = proctor.NewMonitor(deps.Browser, deps.Clock, deps.Log, opts)
	r.fullscreen = proctor.NewFullscreenController(deps.Browser, deps.Log)
	return r
}

// Open starts the sequence at the first section. It blocks until that
// section (or the first one not yet submitted) has loaded.
func (r *Runner) Open(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	if r.opened {
		r.mu.Unlock()
		return ErrAlreadyOpen
	}
	r.opened = true
	r.baseCtx, r.baseCancel = context.WithCancel(ctx)
	r.visibilityID = r.deps.Browser.Document().AddEventListener(proctor.EventVisibilityChange, func(ev *proctor.Event) {
		if !ev.Hidden {
			r.VisibilityRestored()
		}
	})
	r.mu.Unlock()

	r.log.Info().Str("date", r.session.Date).Int("sections", len(r.sections)).Msg("Exam session opened")
	r.load()
	return nil
}

// Start begins the proctored section after the pre-test prompt.
func (r *Runner) Start() error {
	r.mu.Lock()
	if r.phase != PhaseAwaitingStart {
		r.mu.Unlock()
		return ErrNotAwaitingStart
	}
	r.phase = PhaseActive
	r.mu.Unlock()

	r.fullscreen.Enter()
	r.monitor.ToggleProctoring(true)
	r.notify()
	return nil
}

// Answer records value for the question or prompt at key.
func (r *Runner) Answer(key, value string) error {
	r.mu.Lock()
	if r.phase != PhaseActive {
		r.mu.Unlock()
		return ErrNotActive
	}
	if !r.known[key] {
		r.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrUnknownQuestion, key)
	}
	r.responses[key] = value
	saved := copyResponses(r.responses)
	storeKey := config.CacheKey.SectionResponsesKey(string(r.currentLocked()))
	r.mu.Unlock()

	if err := r.deps.Store.SetJSONDebounced(storeKey, saved, r.deps.Policy.Persistence.ResponsesDebounce); err != nil {
		r.log.Warn().Err(err).Msg("Failed to persist responses")
	}
	r.notify()
	return nil
}

// Submit hands the current section to the submission service. Only the
// first trigger of a section gets through; later ones return ErrNotActive.
// On failure the section becomes active again with the error shown and the
// answers still persisted.
func (r *Runner) Submit(trigger Trigger) error {
	r.mu.Lock()
	if !r.canSubmitLocked(trigger) {
		r.mu.Unlock()
		return ErrNotActive
	}
	prev := r.phase
	r.phase = PhaseSubmitting
	r.submissionErr = ""
	r.cancelCountdownLocked()
	if trigger == TriggerForce {
		r.forced = true
	}
	payload := r.payloadLocked()
	seq := r.loadSeq
	section := r.currentLocked()
	base := r.baseCtx
	r.mu.Unlock()

	r.log.Info().
		Str("section", string(section)).
		Str("trigger", string(trigger)).
		Bool("flagged", payload.ProctoringSummary.Flagged).
		Msg("Submitting section")
	r.notify()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(base), submitTimeout)
	res, err := r.deps.Submissions.Submit(ctx, payload)
	cancel()

	if errors.Is(err, model.ErrAlreadySubmitted) {
		res = model.SubmitResult{Status: model.SubmitAlreadySubmitted}
		err = nil
	}

	if err != nil {
		r.log.Error().Err(err).Str("section", string(section)).Msg("Submission failed")
		r.mu.Lock()
		if !r.closed && r.loadSeq == seq && r.phase == PhaseSubmitting {
			r.phase = prev
			r.submissionErr = "Your answers could not be submitted. They are saved; please try submitting again."
		}
		r.mu.Unlock()
		r.notify()
		return fmt.Errorf("submit %s: %w", section, err)
	}

	r.mu.Lock()
	current := !r.closed && r.loadSeq == seq
	last := r.isLastLocked()
	if current {
		r.phase = PhaseConfirmed
		r.result = &res
		if r.timer != nil {
			r.timer.Stop()
		}
	}
	r.mu.Unlock()

	// Ticks stop persisting once the phase leaves Submitting, so nothing
	// can re-create these keys after removal.
	r.deps.Store.Remove(config.CacheKey.SectionResponsesKey(string(section)))
	r.deps.Store.Remove(config.CacheKey.SectionTimeRemainingKey(string(section)))
	if !current {
		return nil
	}

	if !last && r.fullscreen.IsFullscreen() {
		r.deps.Store.Set(config.CacheKey.FullscreenResumeIntentKey(), "true")
	}
	r.monitor.Detach()

	r.log.Info().Str("section", string(section)).Str("status", string(res.Status)).Msg("Section confirmed")
	r.notify()
	return nil
}

// Continue moves past a confirmed section: to the next one, or to the
// completion redirect after the last.
func (r *Runner) Continue() error {
	r.mu.Lock()
	if r.phase != PhaseConfirmed {
		r.mu.Unlock()
		return ErrNotConfirmed
	}
	if r.isLastLocked() {
		r.mu.Unlock()
		r.finish()
		return nil
	}
	r.idx++
	r.mu.Unlock()

	r.monitor.ClearWarnings()
	r.load()
	return nil
}

// Retry reloads a section whose content failed to load.
func (r *Runner) Retry() error {
	r.mu.Lock()
	if r.phase != PhaseError {
		r.mu.Unlock()
		return ErrNotRetryable
	}
	r.mu.Unlock()

	r.load()
	return nil
}

// ReturnToFullscreen is the student's recovery action after losing
// fullscreen.
func (r *Runner) ReturnToFullscreen() {
	r.fullscreen.Enter()
	r.notify()
}

// ReturnHome abandons the session and redirects home.
func (r *Runner) ReturnHome() {
	r.mu.Lock()
	r.redirect = RedirectHome
	r.mu.Unlock()
	r.Close()
}

// VisibilityRestored re-anchors the countdown after the tab was hidden.
func (r *Runner) VisibilityRestored() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.timer != nil {
		r.timer.Reanchor()
	}
}

// Close tears the session down: timers stop, pending answers are flushed,
// proctoring is turned off and fullscreen released. Safe to call more than
// once.
func (r *Runner) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.phase = PhaseClosed
	r.loadSeq++
	if r.cancelLoad != nil {
		r.cancelLoad()
		r.cancelLoad = nil
	}
	r.cancelCountdownLocked()
	if r.timer != nil {
		r.timer.Stop()
	}
	visibilityID := r.visibilityID
	r.visibilityID = 0
	cancel := r.baseCancel
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if visibilityID != 0 {
		r.deps.Browser.Document().RemoveEventListener(visibilityID)
	}
	r.deps.Store.Close()
	r.monitor.ToggleProctoring(false)
	r.monitor.ClearWarnings()
	r.fullscreen.Close()

	r.log.Info().Msg("Exam session closed")
	r.notify()
}

// View returns the current state without consuming the content marker.
func (r *Runner) View() View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.viewLocked(false)
}

// ─── Loading ───────────────────────────────────────────────────────

type restored struct {
	responses map[string]string
	remaining time.Duration
	expired   bool
	resume    bool
}

func (r *Runner) load() {
	for {
		r.mu.Lock()
		if r.closed {
			r.mu.Unlock()
			return
		}
		r.loadSeq++
		seq := r.loadSeq
		if r.cancelLoad != nil {
			r.cancelLoad()
		}
		ctx, cancel := context.WithCancel(r.baseCtx)
		r.cancelLoad = cancel
		r.resetSectionLocked()
		r.phase = PhaseLoading
		section := r.currentLocked()
		r.mu.Unlock()

		r.setAuditScope("", section)
		r.notify()

		content, err := r.deps.Content.Fetch(ctx, ContentRequest{
			Date:      r.session.Date,
			Section:   section,
			StudentID: r.session.StudentID,
		})

		var saved restored
		if err == nil {
			saved = r.restore(section, content)
		}

		r.mu.Lock()
		if r.closed || seq != r.loadSeq {
			r.mu.Unlock()
			cancel()
			r.log.Debug().Str("section", string(section)).Msg("Discarding stale content")
			return
		}
		cancel()
		r.cancelLoad = nil

		switch {
		case errors.Is(err, model.ErrAlreadySubmitted):
			r.log.Info().Str("section", string(section)).Msg("Section already submitted, skipping")
			if r.isLastLocked() {
				r.mu.Unlock()
				r.finish()
				return
			}
			r.idx++
			r.mu.Unlock()
			continue

		case errors.Is(err, model.ErrTestNotFound):
			r.phase = PhaseError
			r.errMsg = fmt.Sprintf("No %s test is scheduled for %s.", section, r.session.Date)
			r.mu.Unlock()

		case err != nil:
			r.log.Error().Err(err).Str("section", string(section)).Msg("Failed to load section")
			r.phase = PhaseError
			r.errMsg = fmt.Sprintf("The %s section could not be loaded. Please try again.", section)
			r.mu.Unlock()

		default:
			r.activateLocked(content, saved)
			r.mu.Unlock()
			r.setAuditScope(content.Test.ID, section)
			r.afterActivate(saved)
		}

		r.notify()
		if err == nil && saved.expired {
			if err := r.Submit(TriggerTimer); err != nil && !errors.Is(err, ErrNotActive) {
				r.log.Warn().Err(err).Msg("Expired section submission failed")
			}
		}
		return
	}
}

// restore reads the persisted answers, time and resume intent of section.
// Corrupt values fall back to a fresh start.
func (r *Runner) restore(section model.SectionType, c *Content) restored {
	out := restored{remaining: r.deps.Policy.DurationOf(section)}

	var responses map[string]string
	if r.deps.Store.GetJSON(config.CacheKey.SectionResponsesKey(string(section)), &responses) {
		known := addressableKeys(c)
		out.responses = make(map[string]string, len(responses))
		for k, v := range responses {
			if known[k] {
				out.responses[k] = v
			}
		}
	}

	if raw, ok := r.deps.Store.Get(config.CacheKey.SectionTimeRemainingKey(string(section))); ok {
		ms, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		switch {
		case err != nil || ms < 0:
			r.log.Warn().Str("value", raw).Msg("Ignoring invalid persisted time")
		case ms == 0:
			out.remaining = 0
			out.expired = true
		default:
			out.remaining = time.Duration(ms) * time.Millisecond
		}
	}

	if v, ok := r.deps.Store.Get(config.CacheKey.FullscreenResumeIntentKey()); ok && v == "true" {
		out.resume = true
	}
	return out
}

func (r *Runner) activateLocked(c *Content, saved restored) {
	section := r.currentLocked()
	r.content = c
	r.known = addressableKeys(c)
	r.responses = saved.responses
	if r.responses == nil {
		r.responses = make(map[string]string)
	}
	r.contentDirty = true
	r.phase = PhaseAwaitingStart
	if saved.resume {
		r.phase = PhaseActive
	}

	seq := r.loadSeq
	tp := r.deps.Policy.Timer
	r.timer = examtimer.New(r.deps.Clock, examtimer.Options{
		Tick:         tp.Tick,
		Warning:      tp.Warning,
		AutoSubmit:   tp.AutoSubmit,
		OnTick:       func(d time.Duration) { r.onTick(seq, section, d) },
		OnAutoSubmit: func() { r.onAutoSubmit(seq) },
	})
	if !saved.expired {
		r.timer.Start(saved.remaining)
	}

	r.log.Info().
		Str("section", string(section)).
		Str("test_id", c.Test.ID).
		Int("restored_answers", len(r.responses)).
		Dur("remaining", saved.remaining).
		Bool("resumed", saved.resume).
		Msg("Section active")
}

func (r *Runner) afterActivate(saved restored) {
	if !saved.resume {
		return
	}
	r.deps.Store.Remove(config.CacheKey.FullscreenResumeIntentKey())
	r.fullscreen.Enter()
	r.monitor.ToggleProctoring(true)
}

func (r *Runner) resetSectionLocked() {
	r.cancelCountdownLocked()
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.content = nil
	r.known = nil
	r.responses = nil
	r.contentDirty = false
	r.forced = false
	r.errMsg = ""
	r.submissionErr = ""
	r.result = nil
}

func (r *Runner) finish() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.resetSectionLocked()
	r.phase = PhaseDone
	r.redirect = RedirectTestComplete
	r.mu.Unlock()

	r.deps.Store.Remove(config.CacheKey.FullscreenResumeIntentKey())
	r.monitor.ToggleProctoring(false)
	r.monitor.ClearWarnings()

	r.log.Info().Msg("All sections complete")
	r.notify()
}

// ─── Timer and monitor callbacks ───────────────────────────────────

func (r *Runner) onTick(seq uint64, section model.SectionType, remaining time.Duration) {
	r.mu.Lock()
	live := !r.closed && seq == r.loadSeq &&
		(r.phase == PhaseActive || r.phase == PhaseAwaitingStart || r.phase == PhaseSubmitting)
	if live {
		r.deps.Store.SetDebounced(
			config.CacheKey.SectionTimeRemainingKey(string(section)),
			strconv.FormatInt(remaining.Milliseconds(), 10),
			r.deps.Policy.Persistence.TimeDebounce,
		)
	}
	r.mu.Unlock()
	if live {
		r.notify()
	}
}

func (r *Runner) onAutoSubmit(seq uint64) {
	r.mu.Lock()
	live := !r.closed && seq == r.loadSeq
	r.mu.Unlock()
	if !live {
		return
	}
	if err := r.Submit(TriggerTimer); err != nil && !errors.Is(err, ErrNotActive) {
		r.log.Warn().Err(err).Msg("Auto-submit failed")
	}
}

func (r *Runner) onMonitorChange() {
	r.mu.Lock()
	if r.closed || r.phase != PhaseActive || r.countdown >= 0 || !r.monitor.ShouldForceSubmit() {
		r.mu.Unlock()
		r.notify()
		return
	}

	secs := int(r.deps.Policy.Proctoring.ForceSubmitCountdown / time.Second)
	r.log.Warn().Int("countdown", secs).Msg("Violation threshold reached, force submit pending")
	if secs <= 0 {
		r.forced = true
		r.mu.Unlock()
		r.forceSubmit()
		return
	}
	r.countdown = secs
	r.scheduleCountdownLocked()
	r.mu.Unlock()
	r.notify()
}

func (r *Runner) scheduleCountdownLocked() {
	gen := r.countdownGen
	r.countdownTimer = r.deps.Clock.AfterFunc(time.Second, func() { r.countdownStep(gen) })
}

func (r *Runner) countdownStep(gen uint64) {
	r.mu.Lock()
	if r.closed || gen != r.countdownGen || r.phase != PhaseActive {
		r.mu.Unlock()
		return
	}
	r.countdown--
	if r.countdown > 0 {
		r.scheduleCountdownLocked()
		r.mu.Unlock()
		r.notify()
		return
	}

	r.countdownTimer = nil
	if !r.monitor.ShouldForceSubmit() {
		r.countdown = -1
		r.mu.Unlock()
		r.log.Info().Msg("Force submit cancelled")
		r.notify()
		return
	}
	r.countdown = -1
	r.forced = true
	r.mu.Unlock()
	r.forceSubmit()
}

func (r *Runner) forceSubmit() {
	if err := r.Submit(TriggerForce); err != nil && !errors.Is(err, ErrNotActive) {
		r.log.Warn().Err(err).Msg("Forced submission failed")
	}
}

func (r *Runner) cancelCountdownLocked() {
	r.countdownGen++
	if r.countdownTimer != nil {
		r.countdownTimer.Stop()
		r.countdownTimer = nil
	}
	r.countdown = -1
}

// ─── Audit ─────────────────────────────────────────────────────────

func (r *Runner) setAuditScope(testID string, section model.SectionType) {
	r.auditMu.Lock()
	r.auditTestID = testID
	r.auditSection = section
	r.auditMu.Unlock()
}

func (r *Runner) audit(e proctor.LogEntry) {
	if r.deps.Audit == nil {
		return
	}
	r.auditMu.Lock()
	testID, section := r.auditTestID, r.auditSection
	r.auditMu.Unlock()

	detail := e.Action
	if e.Key != "" {
		detail = e.Modifier + "+" + e.Key
	}
	r.deps.Audit.Record(model.ProctoringEvent{
		StudentID:   r.session.StudentID,
		TestID:      testID,
		SectionType: section,
		TabID:       r.session.TabID,
		Type:        string(e.Type),
		Detail:      detail,
		Timestamp:   e.Timestamp.UnixMilli(),
	})
}

// ─── State ─────────────────────────────────────────────────────────

func (r *Runner) currentLocked() model.SectionType {
	if r.idx < len(r.sections) {
		return r.sections[r.idx].Type
	}
	return ""
}

func (r *Runner) isLastLocked() bool {
	return r.idx >= len(r.sections)-1
}

// canSubmitLocked reports whether trigger may submit in the current phase.
// Before Start only the timer submits, for a section whose saved time ran
// out; the student may then repeat that submission if it failed.
func (r *Runner) canSubmitLocked(trigger Trigger) bool {
	switch r.phase {
	case PhaseActive:
		return true
	case PhaseAwaitingStart:
		return trigger == TriggerTimer || r.submissionErr != ""
	default:
		return false
	}
}

func summaryOf(snap proctor.Snapshot, forced bool) model.ProctoringSummary {
	events := make([]model.FocusEvent, len(snap.FocusEvents))
	for i, e := range snap.FocusEvents {
		events[i] = model.FocusEvent{
			Type:      string(e.Type),
			Action:    e.Action,
			Key:       e.Key,
			Modifier:  e.Modifier,
			Timestamp: e.Timestamp.UTC(),
		}
	}
	w := snap.Warnings
	return model.ProctoringSummary{
		FullscreenExits:          w.FullscreenExits,
		WindowBlurs:              w.WindowBlurs,
		CopyPasteAttempts:        w.CopyPasteAttempts,
		MultipleMonitorsDetected: snap.MultipleMonitorsDetected,
		FocusEvents:              events,
		HasStartedTest:           snap.HasStartedTest,
		ShouldForceSubmit:        snap.ShouldForceSubmit,
		Timestamp:                snap.Timestamp.UTC(),
		ForceSubmitTriggered:     forced,
	}.Derive()
}

func (r *Runner) payloadLocked() model.SubmissionPayload {
	section := r.currentLocked()
	p := model.SubmissionPayload{
		StudentID:           r.session.StudentID,
		SectionType:         section,
		Responses:           copyResponses(r.responses),
		SubmissionTimestamp: r.deps.Clock.Now().UTC(),
		ProctoringSummary:   summaryOf(r.monitor.Snapshot(), r.forced),
	}
	if r.timer != nil {
		p.TimeRemainingMs = r.timer.Remaining().Milliseconds()
	}
	if r.content == nil {
		return p
	}
	p.TestID = r.content.Test.ID
	p.TotalPoints = r.content.Test.TotalPoints
	if section != model.SectionWriting {
		res := scoring.Calculate(r.content.Questions, r.responses)
		p.Score = &res.Score
		p.Percentage = &res.Percentage
		p.TotalPoints = res.TotalPoints
	}
	return p
}

// notify pushes the current view to the observer, outside the lock.
func (r *Runner) notify() {
	if r.deps.Observer == nil {
		return
	}
	r.mu.Lock()
	v := r.viewLocked(true)
	r.mu.Unlock()
	r.deps.Observer.OnState(v)
}

func (r *Runner) viewLocked(consume bool) View {
	r.seq++
	proctoring := r.monitor.IsActive()
	v := View{
		Seq:                     r.seq,
		Phase:                   r.phase,
		Section:                 r.currentLocked(),
		SectionIndex:            r.idx,
		SectionCount:            len(r.sections),
		IsLast:                  r.isLastLocked(),
		Countdown:               r.countdown,
		Proctoring:              proctoring,
		Fullscreen:              r.fullscreen.IsFullscreen(),
		NeedsFullscreenRecovery: r.fullscreen.NeedsRecovery(proctoring),
		ExitWarning:             r.fullscreen.ExitWarning(),
		Warnings:                r.monitor.Warnings(),
		Error:                   r.errMsg,
		SubmissionError:         r.submissionErr,
		Result:                  r.result,
		Redirect:                r.redirect,
	}
	if r.timer != nil {
		v.RemainingMs = r.timer.Remaining().Milliseconds()
		v.Warning = r.timer.IsWarning()
		v.AutoSubmitting = r.timer.IsAutoSubmitting()
	}
	if r.content != nil {
		if r.contentDirty || !consume {
			v.Content = ContentViewOf(r.content)
		}
		if consume {
			r.contentDirty = false
		}
		v.Responses = copyResponses(r.responses)
		if r.content.Test.Type == model.SectionWriting {
			v.WordCounts = make(map[string]int, len(r.responses))
			for k, text := range r.responses {
				v.WordCounts[k] = scoring.WordCount(text)
			}
		}
	}
	return v
}

func copyResponses(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
