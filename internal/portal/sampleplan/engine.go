package sampleplan

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/cases"

	"github.com/qualtrack/qualtrack/internal/common/httpclient"
)

// State is the engine's position in the plan-browsing flow.
type State int

const (
	Idle State = iota
	CourseSelected
	PlanListLoading
	PlanSelected
	LearnersLoading
	FilterApplied
	FilterError
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case CourseSelected:
		return "course-selected"
	case PlanListLoading:
		return "plan-list-loading"
	case PlanSelected:
		return "plan-selected"
	case LearnersLoading:
		return "learners-loading"
	case FilterApplied:
		return "filter-applied"
	case FilterError:
		return "filter-error"
	}
	return "unknown"
}

// Client is the API surface the engine needs. *httpclient.HTTPClient
// satisfies it.
type Client interface {
	Get(ctx context.Context, path string, queryParams map[string]string) ([]byte, error)
	Post(ctx context.Context, path string, body []byte) ([]byte, error)
}

// Notifier receives the transient success/error notifications the engine
// raises after write operations.
type Notifier interface {
	Success(msg string)
	Error(msg string)
}

type noopNotifier struct{}

func (noopNotifier) Success(string) {}
func (noopNotifier) Error(string)   {}

// Engine drives one plan-browsing session: course and plan selection, the
// learners fetch, free-text filtering, and the selection overlay. All fetch
// results are generation-checked so a slow stale response can never
// overwrite the result of a newer request.
type Engine struct {
	mu       sync.Mutex
	client   Client
	userID   string
	notifier Notifier

	state          State
	course         *Course
	plans          []PlanOption
	selectedPlanID string
	sampleType     string
	methods        []string
	filterApplied  bool
	filterError    string
	planSummary    *PlanSummary
	rows           []LearnerRow
	overlay        *SelectionOverlay
	generation     uint64

	applyInFlight  bool
	updateInFlight bool
}

// NewEngine creates an engine for the given API client and current user id.
func NewEngine(client Client, userID string, opts ...Option) *Engine {
	e := &Engine{
		client:   client,
		userID:   userID,
		notifier: noopNotifier{},
		state:    Idle,
		overlay:  NewSelectionOverlay(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Option configures an Engine.
type Option func(*Engine)

// WithNotifier routes the engine's transient notifications to n.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) {
		e.notifier = n
	}
}

// SelectCourse switches the engine to a new course. Any previously selected
// plan and applied filter are cleared, any in-flight fetch for the old
// selection is invalidated, and the plan list for the course is fetched,
// scoped to the current user.
func (e *Engine) SelectCourse(ctx context.Context, course Course) error {
	e.mu.Lock()
	e.course = &course
	e.selectedPlanID = ""
	e.filterApplied = false
	e.filterError = ""
	e.planSummary = nil
	e.rows = nil
	e.state = PlanListLoading
	e.generation++
	gen := e.generation
	userID := e.userID
	e.mu.Unlock()

	body, err := e.client.Get(ctx, "/sampleplan", map[string]string{
		"course_id": course.ID,
		"iqa_id":    userID,
	})

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.generation != gen {
		return nil // superseded by a newer selection
	}
	if err != nil {
		e.plans = nil
		e.state = CourseSelected
		return err
	}

	e.plans = NormalizePlans(body)
	e.state = CourseSelected
	log.Debug().Str("course_id", course.ID).Int("plans", len(e.plans)).Msg("plan list loaded")
	return nil
}

// RefreshPlans refetches the plan list for the current course. If the
// previously selected plan is no longer present in the refreshed list, the
// selection is cleared.
func (e *Engine) RefreshPlans(ctx context.Context) error {
	e.mu.Lock()
	if e.course == nil {
		e.mu.Unlock()
		return ErrValidation.Msg(msgSelectCourse)
	}
	courseID := e.course.ID
	userID := e.userID
	e.generation++
	gen := e.generation
	e.mu.Unlock()

	body, err := e.client.Get(ctx, "/sampleplan", map[string]string{
		"course_id": courseID,
		"iqa_id":    userID,
	})

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.generation != gen {
		return nil
	}
	if err != nil {
		return err
	}

	e.plans = NormalizePlans(body)
	if e.selectedPlanID != "" && !e.planExists(e.selectedPlanID) {
		e.selectedPlanID = ""
		e.filterApplied = false
		e.state = CourseSelected
	}
	return nil
}

// SelectPlan selects one of the loaded plans. Selecting a plan clears an
// applied filter and invalidates any in-flight learners fetch for the
// previous plan.
func (e *Engine) SelectPlan(planID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.planExists(planID) {
		return ErrValidation.Msg(msgSelectPlan)
	}
	e.selectedPlanID = planID
	e.filterApplied = false
	e.filterError = ""
	e.planSummary = nil
	e.rows = nil
	e.state = PlanSelected
	e.generation++
	return nil
}

// SetSampleType records the chosen sampling category.
func (e *Engine) SetSampleType(sampleType string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sampleType = sampleType
}

// SetAssessmentMethods records the chosen assessment method ids.
func (e *Engine) SetAssessmentMethods(methods []string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.methods = append([]string(nil), methods...)
}

// Filter validates the current selection and fetches the learner list for
// the selected plan. Validation failures are local: they never call the API
// and leave filterApplied false.
func (e *Engine) Filter(ctx context.Context) error {
	e.mu.Lock()
	if e.course == nil {
		e.mu.Unlock()
		return ErrValidation.Msg(msgSelectCourse)
	}
	if len(e.plans) == 0 {
		e.mu.Unlock()
		return ErrValidation.Msg(msgNoPlans)
	}
	if e.selectedPlanID == "" || !e.planExists(e.selectedPlanID) {
		e.mu.Unlock()
		return ErrValidation.Msg(msgSelectPlan)
	}

	e.state = LearnersLoading
	e.generation++
	gen := e.generation
	planID := e.selectedPlanID
	courseName := e.course.Name
	e.mu.Unlock()

	body, err := e.client.Get(ctx, "/sampleplan/"+planID+"/learners", nil)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.generation != gen || e.selectedPlanID != planID {
		return nil // a newer request superseded this one
	}

	if err != nil {
		msg := serverMessageOf(err, msgFilterFallback)
		e.state = FilterError
		e.filterApplied = false
		e.planSummary = nil
		e.filterError = msg
		return err
	}

	rows := NormalizeLearners(body)
	e.rows = rows
	e.overlay.MergeServerSelections(rows)
	e.filterApplied = true
	e.filterError = ""
	e.state = FilterApplied
	e.planSummary = planSummaryOf(body, planID, courseName)
	log.Debug().Str("plan_id", planID).Int("learners", len(rows)).Msg("filter applied")
	return nil
}

// refetchLearners re-fetches the current plan's learners with the force
// flag so server caches are bypassed. It runs after successful writes; a
// stale or failed refetch is discarded without disturbing engine state.
func (e *Engine) refetchLearners(ctx context.Context, planID string) {
	e.mu.Lock()
	if e.selectedPlanID != planID {
		e.mu.Unlock()
		return
	}
	e.generation++
	gen := e.generation
	e.mu.Unlock()

	body, err := e.client.Get(ctx, "/sampleplan/"+planID+"/learners", map[string]string{
		"force": "true",
	})

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.generation != gen || e.selectedPlanID != planID {
		return
	}
	if err != nil {
		log.Warn().Err(err).Str("plan_id", planID).Msg("learner refetch failed")
		return
	}

	rows := NormalizeLearners(body)
	e.rows = rows
	e.overlay.MergeServerSelections(rows)
}

// VisibleRows derives the rows the table should show: a case-insensitive
// substring match against assessor name, learner name, sample type, and
// status. Before a filter has been applied the visible set is always empty.
func (e *Engine) VisibleRows(query string) []LearnerRow {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.filterApplied {
		return nil
	}
	if query == "" {
		return append([]LearnerRow(nil), e.rows...)
	}

	fold := cases.Fold()
	needle := fold.String(query)
	matches := func(s string) bool {
		return strings.Contains(fold.String(s), needle)
	}

	var visible []LearnerRow
	for _, row := range e.rows {
		if matches(row.AssessorName) || matches(row.LearnerName) || matches(row.SampleType) || matches(row.Status) {
			visible = append(visible, row)
		}
	}
	return visible
}

// Overlay returns the selection overlay shared by user clicks and fetch
// reconciliation.
func (e *Engine) Overlay() *SelectionOverlay {
	return e.overlay
}

// State returns the engine's current state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Plans returns the normalized plan options for the selected course.
func (e *Engine) Plans() []PlanOption {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]PlanOption(nil), e.plans...)
}

// Rows returns the last fetched learner rows.
func (e *Engine) Rows() []LearnerRow {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]LearnerRow(nil), e.rows...)
}

// SelectedPlanID returns the currently selected plan id, or empty.
func (e *Engine) SelectedPlanID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selectedPlanID
}

// FilterIsApplied reports whether a filter has been applied successfully.
func (e *Engine) FilterIsApplied() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.filterApplied
}

// FilterError returns the inline error message, or empty.
func (e *Engine) FilterError() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.filterError
}

// PlanSummary returns the summary of the filtered plan, or nil.
func (e *Engine) PlanSummary() *PlanSummary {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.planSummary == nil {
		return nil
	}
	summary := *e.planSummary
	return &summary
}

// planExists reports whether the id is present in the loaded plan list.
// Callers must hold e.mu.
func (e *Engine) planExists(planID string) bool {
	for _, p := range e.plans {
		if p.ID == planID {
			return true
		}
	}
	return false
}

// serverMessageOf extracts the server's message from a request error,
// falling back to the action-specific default.
func serverMessageOf(err error, fallback string) string {
	if httpErr, ok := err.(*httpclient.HTTPError); ok && httpErr.Message != "" {
		return httpErr.Message
	}
	return fallback
}
