package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/eptportal/ept-backend/internal/cache"
	"github.com/eptportal/ept-backend/internal/clock"
	"github.com/eptportal/ept-backend/internal/config"
	"github.com/eptportal/ept-backend/internal/model"
	"github.com/eptportal/ept-backend/internal/repository"
	"github.com/eptportal/ept-backend/internal/runner"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// ─── Fakes ─────────────────────────────────────────────────────────

type memTests struct {
	byKey map[string]*model.Test
	reads int
}

func (m *memTests) GetByDateAndType(_ context.Context, date string, section model.SectionType) (*model.Test, error) {
	m.reads++
	if t, ok := m.byKey[date+"/"+string(section)]; ok {
		return t, nil
	}
	return nil, pgx.ErrNoRows
}

func (m *memTests) GetByID(_ context.Context, id string) (*model.Test, error) {
	for _, t := range m.byKey {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, pgx.ErrNoRows
}

type memContent struct {
	questions map[string][]model.Question
	prompts   map[string][]model.WritingPrompt
}

func (m *memContent) ListByTest(_ context.Context, testID string) ([]model.Question, error) {
	return m.questions[testID], nil
}

func (m *memContent) ListPromptsByTest(_ context.Context, testID string) ([]model.WritingPrompt, error) {
	return m.prompts[testID], nil
}

type memSubmissions struct {
	mu   sync.Mutex
	rows []*model.Submission
	// raceOnCreate simulates a concurrent insert winning the unique constraint.
	raceOnCreate bool
}

func (m *memSubmissions) LatestBySection(_ context.Context, studentID string, section model.SectionType) (*model.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.rows) - 1; i >= 0; i-- {
		if m.rows[i].StudentID == studentID && m.rows[i].SectionType == section {
			return m.rows[i], nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memSubmissions) GetByTestAndStudent(_ context.Context, testID, studentID string) (*model.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.rows {
		if s.TestID == testID && s.StudentID == studentID {
			return s, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memSubmissions) Create(_ context.Context, s *model.Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.raceOnCreate {
		return repository.ErrDuplicateSubmission
	}
	m.rows = append(m.rows, s)
	return nil
}

func (m *memSubmissions) ListLatestByStudent(_ context.Context, studentID string) ([]*model.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	latest := map[model.SectionType]*model.Submission{}
	for _, s := range m.rows {
		if s.StudentID == studentID {
			latest[s.SectionType] = s
		}
	}
	out := make([]*model.Submission, 0, len(latest))
	for _, s := range latest {
		out = append(out, s)
	}
	return out, nil
}

func fixtures() (*memTests, *memContent) {
	tests := &memTests{byKey: map[string]*model.Test{
		"Friday, 03 October/reading": {ID: "R-1", Type: model.SectionReading, Date: "Friday, 03 October", TotalPoints: 6},
		"Friday, 03 October/writing": {ID: "W-1", Type: model.SectionWriting, Date: "Friday, 03 October", TotalPoints: 20},
	}}
	content := &memContent{
		questions: map[string][]model.Question{
			"R-1": {
				{TestID: "R-1", SectionNumber: 1, Number: 1, Text: "q1", CorrectAnswers: []string{"B"}, Points: 4},
				{TestID: "R-1", SectionNumber: 1, Number: 2, Text: "q2", CorrectAnswers: []string{"A", "C"}, Points: 2},
			},
		},
		prompts: map[string][]model.WritingPrompt{
			"W-1": {{TestID: "W-1", Label: "Task 1", Title: "Letter", WordLimit: 150}},
		},
	}
	return tests, content
}

var testNow = time.Date(2025, 10, 3, 10, 30, 0, 0, time.UTC)

// ─── ContentService ────────────────────────────────────────────────

func TestContentServiceFetch(t *testing.T) {
	t.Parallel()

	tests, content := fixtures()
	subs := &memSubmissions{}
	c := cache.NewRequestCache[*runner.Content](clock.NewFake(testNow), time.Minute, 16)
	svc := NewContentService(tests, content, subs, c, zerolog.Nop())
	ctx := context.Background()

	got, err := svc.Fetch(ctx, runner.ContentRequest{Date: "Friday, 03 October", Section: model.SectionReading, StudentID: "S1"})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got.Test.ID != "R-1" || len(got.Questions) != 2 || got.Prompts != nil {
		t.Fatalf("unexpected content %+v", got)
	}

	if _, err := svc.Fetch(ctx, runner.ContentRequest{Date: "Friday, 03 October", Section: model.SectionReading, StudentID: "S2"}); err != nil {
		t.Fatalf("second Fetch: %v", err)
	}
	if tests.reads != 1 {
		t.Fatalf("test reads = %d, want 1 (cached)", tests.reads)
	}

	w, err := svc.Fetch(ctx, runner.ContentRequest{Date: "Friday, 03 October", Section: model.SectionWriting, StudentID: "S1"})
	if err != nil {
		t.Fatalf("writing Fetch: %v", err)
	}
	if len(w.Prompts) != 1 || w.Questions != nil {
		t.Fatalf("unexpected writing content %+v", w)
	}

	view, err := svc.Deliver(ctx, runner.ContentRequest{Date: "Friday, 03 October", Section: model.SectionReading})
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if len(view.Sections) != 1 || view.Sections[0].Questions[1].Key != "0-1" {
		t.Fatalf("unexpected view %+v", view)
	}
}

func TestContentServiceErrors(t *testing.T) {
	t.Parallel()

	tests, content := fixtures()
	subs := &memSubmissions{rows: []*model.Submission{
		{TestID: "R-0", StudentID: "S1", SectionType: model.SectionReading},
	}}
	svc := NewContentService(tests, content, subs, nil, zerolog.Nop())
	ctx := context.Background()

	cases := []struct {
		name string
		req  runner.ContentRequest
		want error
	}{
		{
			name: "submitted on an earlier date",
			req:  runner.ContentRequest{Date: "Friday, 03 October", Section: model.SectionReading, StudentID: "S1"},
			want: model.ErrAlreadySubmitted,
		},
		{
			name: "nothing scheduled",
			req:  runner.ContentRequest{Date: "Friday, 03 October", Section: model.SectionListening, StudentID: "S1"},
			want: model.ErrTestNotFound,
		},
		{
			name: "other date",
			req:  runner.ContentRequest{Date: "Monday, 06 October", Section: model.SectionWriting, StudentID: "S2"},
			want: model.ErrTestNotFound,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Fetch(ctx, tc.req); !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

// ─── SubmissionService ─────────────────────────────────────────────

func readingPayload(responses map[string]string) model.SubmissionPayload {
	return model.SubmissionPayload{
		TestID:            "R-1",
		StudentID:         "S1",
		SectionType:       model.SectionReading,
		Responses:         responses,
		TimeRemainingMs:   120000,
		ProctoringSummary: model.ProctoringSummary{WindowBlurs: 2},
	}
}

func TestSubmissionServiceGradesOnServer(t *testing.T) {
	t.Parallel()

	tests, content := fixtures()
	subs := &memSubmissions{}
	svc := NewSubmissionService(tests, content, subs, zerolog.Nop())
	svc.now = func() time.Time { return testNow }

	claimed := 6
	p := readingPayload(map[string]string{"0-0": " b ", "0-1": "D"})
	p.Score = &claimed

	res, err := svc.Submit(context.Background(), p)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.Status != model.SubmitAccepted || res.Score == nil || *res.Score != 4 || res.TotalPoints != 6 {
		t.Fatalf("unexpected result %+v", res)
	}
	if !res.SubmittedAt.Equal(testNow) {
		t.Fatalf("submitted at %v", res.SubmittedAt)
	}

	stored := subs.rows[0]
	if *stored.Percentage != 67 {
		t.Fatalf("percentage = %d, want 67", *stored.Percentage)
	}
	if !stored.Proctoring.Flagged {
		t.Fatal("two blurs must flag the submission")
	}
}

func TestSubmissionServiceKeepsProctoringSnapshot(t *testing.T) {
	t.Parallel()

	tests, content := fixtures()
	subs := &memSubmissions{}
	svc := NewSubmissionService(tests, content, subs, zerolog.Nop())
	svc.now = func() time.Time { return testNow }

	events := make([]model.FocusEvent, 60)
	for i := range events {
		events[i] = model.FocusEvent{Type: "focus", Timestamp: testNow.Add(time.Duration(i) * time.Second)}
	}
	p := readingPayload(map[string]string{"0-0": "B"})
	p.ProctoringSummary = model.ProctoringSummary{
		FocusEvents:    events,
		HasStartedTest: true,
		Timestamp:      testNow,
		Flagged:        true,
	}

	if _, err := svc.Submit(context.Background(), p); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	got := subs.rows[0].Proctoring
	if got.Flagged {
		t.Error("client-supplied flag kept for a clean summary")
	}
	if len(got.FocusEvents) != model.MaxFocusEvents {
		t.Fatalf("stored %d focus events, want %d", len(got.FocusEvents), model.MaxFocusEvents)
	}
	if last := got.FocusEvents[len(got.FocusEvents)-1]; !last.Timestamp.Equal(events[59].Timestamp) {
		t.Errorf("newest event dropped: %+v", last)
	}
	if !got.HasStartedTest || !got.Timestamp.Equal(testNow) {
		t.Errorf("snapshot fields lost: %+v", got)
	}
}

func TestSubmissionServiceIsExactlyOnce(t *testing.T) {
	t.Parallel()

	tests, content := fixtures()
	subs := &memSubmissions{}
	svc := NewSubmissionService(tests, content, subs, zerolog.Nop())
	ctx := context.Background()

	if _, err := svc.Submit(ctx, readingPayload(map[string]string{"0-0": "B"})); err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	if _, err := svc.Submit(ctx, readingPayload(map[string]string{"0-0": "A"})); !errors.Is(err, model.ErrAlreadySubmitted) {
		t.Fatalf("second Submit err = %v, want ErrAlreadySubmitted", err)
	}
	if len(subs.rows) != 1 || subs.rows[0].Responses["0-0"] != "B" {
		t.Fatalf("first submission must be kept, rows = %+v", subs.rows)
	}

	racing := &memSubmissions{raceOnCreate: true}
	svc = NewSubmissionService(tests, content, racing, zerolog.Nop())
	if _, err := svc.Submit(ctx, readingPayload(map[string]string{})); !errors.Is(err, model.ErrAlreadySubmitted) {
		t.Fatalf("constraint conflict err = %v, want ErrAlreadySubmitted", err)
	}
}

func TestSubmissionServiceRejects(t *testing.T) {
	t.Parallel()

	tests, content := fixtures()
	svc := NewSubmissionService(tests, content, &memSubmissions{}, zerolog.Nop())
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(p *model.SubmissionPayload)
		want   error
	}{
		{"missing test", func(p *model.SubmissionPayload) { p.TestID = "" }, ErrInvalidSubmission},
		{"unknown section", func(p *model.SubmissionPayload) { p.SectionType = "speaking" }, ErrInvalidSubmission},
		{"nil responses", func(p *model.SubmissionPayload) { p.Responses = nil }, ErrInvalidSubmission},
		{"type mismatch", func(p *model.SubmissionPayload) { p.SectionType = model.SectionListening }, ErrInvalidSubmission},
		{"unknown test", func(p *model.SubmissionPayload) { p.TestID = "R-9" }, model.ErrTestNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := readingPayload(map[string]string{})
			tc.mutate(&p)
			if _, err := svc.Submit(ctx, p); !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestSubmissionServiceWritingIsUnscored(t *testing.T) {
	t.Parallel()

	tests, content := fixtures()
	subs := &memSubmissions{}
	svc := NewSubmissionService(tests, content, subs, zerolog.Nop())

	res, err := svc.Submit(context.Background(), model.SubmissionPayload{
		TestID:      "W-1",
		StudentID:   "S1",
		SectionType: model.SectionWriting,
		Responses:   map[string]string{"prompt-0": "Dear Sir"},
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.Score != nil || res.TotalPoints != 20 {
		t.Fatalf("unexpected result %+v", res)
	}
	if subs.rows[0].Percentage != nil {
		t.Fatal("writing submissions carry no percentage")
	}
}

// ─── ResultService ─────────────────────────────────────────────────

func TestResultServiceKeepsLatestPerSection(t *testing.T) {
	t.Parallel()

	older, newer := 3, 5
	subs := &memSubmissions{rows: []*model.Submission{
		{TestID: "R-0", StudentID: "S1", SectionType: model.SectionReading, Score: &older},
		{TestID: "R-1", StudentID: "S1", SectionType: model.SectionReading, Score: &newer, Proctoring: model.ProctoringSummary{Flagged: true}},
		{TestID: "W-1", StudentID: "S1", SectionType: model.SectionWriting},
		{TestID: "R-1", StudentID: "S2", SectionType: model.SectionReading},
	}}

	got, err := NewResultService(subs).Results(context.Background(), "S1")
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d sections, want 2", len(got))
	}
	r := got[model.SectionReading]
	if r.TestID != "R-1" || *r.Score != 5 || !r.Flagged || !r.Completed {
		t.Fatalf("unexpected reading result %+v", r)
	}
	if got[model.SectionWriting].Score != nil {
		t.Fatal("writing result must be unscored")
	}
}

// ─── RegistrationService ───────────────────────────────────────────

type memBookings struct {
	rows []*model.Booking
}

func (m *memBookings) GetByEptID(_ context.Context, eptID string) (*model.Booking, error) {
	for _, b := range m.rows {
		if b.EptID == eptID {
			return b, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memBookings) CountsByDate(_ context.Context) (map[string]model.DateCapacity, error) {
	out := map[string]model.DateCapacity{}
	for _, b := range m.rows {
		c := out[b.SelectedDate]
		c.Date = b.SelectedDate
		if b.HasLaptop {
			c.WithLaptop++
		} else {
			c.WithoutLaptop++
		}
		out[b.SelectedDate] = c
	}
	return out, nil
}

func (m *memBookings) CreateWithin(_ context.Context, b *model.Booking, capacity int) error {
	taken := 0
	for _, r := range m.rows {
		if r.EptID == b.EptID {
			return repository.ErrDuplicateBooking
		}
		if r.SelectedDate == b.SelectedDate && r.HasLaptop == b.HasLaptop {
			taken++
		}
	}
	if capacity > 0 && taken >= capacity {
		return repository.ErrDateFull
	}
	b.ID = len(m.rows) + 1
	m.rows = append(m.rows, b)
	return nil
}

type memStudents struct {
	byEptID map[string]*model.Student
}

func (m *memStudents) Upsert(_ context.Context, s *model.Student) error {
	m.byEptID[s.EptID] = s
	return nil
}

func schedulePolicy() config.Policy {
	p := config.DefaultPolicy()
	p.Schedule.RegularDates = []config.RegularDate{
		{Date: "Friday, 03 October", Venues: 1, CapacityLaptop: 1, CapacityNoLaptop: 2},
	}
	p.Schedule.RefugeeDates = []config.RefugeeDate{
		{Date: "Saturday, 04 October", Location: "Online"},
	}
	return p
}

func TestRegistrationServiceBook(t *testing.T) {
	t.Parallel()

	bookings := &memBookings{}
	students := &memStudents{byEptID: map[string]*model.Student{}}
	svc := NewRegistrationService(bookings, students, schedulePolicy(), clock.NewFake(testNow), false, zerolog.Nop())
	ctx := context.Background()

	req := func(eptID, date string, laptop, refugee bool) model.CreateBookingRequest {
		return model.CreateBookingRequest{
			Name: " Ana ", Email: "Ana@Example.org", EptID: eptID, SelectedDate: date,
			HasLaptop: laptop, IsRefugee: refugee, ConfirmedAttendance: true,
		}
	}

	b, err := svc.Book(ctx, req("E1", "Friday, 03 October", true, false))
	if err != nil {
		t.Fatalf("Book: %v", err)
	}
	if b.Name != "Ana" || b.Email != "ana@example.org" {
		t.Fatalf("booking not normalised: %+v", b)
	}
	if students.byEptID["E1"] == nil {
		t.Fatal("booking must register the student")
	}

	cases := []struct {
		name string
		req  model.CreateBookingRequest
		want error
	}{
		{"laptop group full", req("E2", "Friday, 03 October", true, false), repository.ErrDateFull},
		{"duplicate", req("E1", "Friday, 03 October", false, false), repository.ErrDuplicateBooking},
		{"unknown date", req("E3", "Sunday, 05 October", false, false), ErrUnknownTestDate},
		{"refugee date for regular candidate", req("E4", "Saturday, 04 October", false, false), ErrRefugeeDateMismatch},
		{"attendance unconfirmed", model.CreateBookingRequest{EptID: "E5", SelectedDate: "Friday, 03 October"}, ErrAttendanceRequired},
	}
	for _, tc := range cases {
		if _, err := svc.Book(ctx, tc.req); !errors.Is(err, tc.want) {
			t.Fatalf("%s: err = %v, want %v", tc.name, err, tc.want)
		}
	}

	if _, err := svc.Book(ctx, req("E6", "Friday, 03 October", false, false)); err != nil {
		t.Fatalf("other laptop group must still have seats: %v", err)
	}
	if _, err := svc.Book(ctx, req("E7", "Saturday, 04 October", false, true)); err != nil {
		t.Fatalf("refugee booking: %v", err)
	}

	dates, err := svc.Dates(ctx)
	if err != nil {
		t.Fatalf("Dates: %v", err)
	}
	if len(dates.RegularDates) != 1 || dates.RegularDates[0].WithLaptop != 1 || dates.RegularDates[0].WithoutLaptop != 1 {
		t.Fatalf("unexpected catalogue %+v", dates.RegularDates)
	}
	if len(dates.RefugeeDates) != 1 {
		t.Fatalf("refugee dates = %+v", dates.RefugeeDates)
	}
}

func TestRegistrationServiceCheckAndAvailability(t *testing.T) {
	t.Parallel()

	bookings := &memBookings{rows: []*model.Booking{
		{EptID: "E1", SelectedDate: "Friday, 03 October"},
		{EptID: "E2", SelectedDate: "Monday, 06 October"},
	}}
	clk := clock.NewFake(testNow)
	svc := NewRegistrationService(bookings, &memStudents{}, schedulePolicy(), clk, false, zerolog.Nop())
	ctx := context.Background()

	st, err := svc.Check(ctx, "E1")
	if err != nil || !st.HasRegistration || st.Registration.SelectedDate != "Friday, 03 October" {
		t.Fatalf("Check(E1) = %+v, %v", st, err)
	}
	st, err = svc.Check(ctx, "nobody")
	if err != nil || st.HasRegistration {
		t.Fatalf("Check(nobody) = %+v, %v", st, err)
	}

	a, err := svc.Availability(ctx, "E1")
	if err != nil || a.Availability != clock.Available {
		t.Fatalf("Availability(E1) = %+v, %v", a, err)
	}
	a, err = svc.Availability(ctx, "E2")
	if err != nil || a.Availability != clock.NotYet {
		t.Fatalf("Availability(E2) = %+v, %v", a, err)
	}
	if _, err := svc.Availability(ctx, "nobody"); !errors.Is(err, ErrNoBooking) {
		t.Fatalf("err = %v, want ErrNoBooking", err)
	}

	rehearsal := NewRegistrationService(bookings, &memStudents{}, schedulePolicy(), clk, true, zerolog.Nop())
	a, err = rehearsal.Availability(ctx, "E2")
	if err != nil || a.Availability != clock.Available || !a.TestMode {
		t.Fatalf("test mode Availability(E2) = %+v, %v", a, err)
	}
}
