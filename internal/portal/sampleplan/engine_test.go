package sampleplan

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qualtrack/qualtrack/internal/common/httpclient"
)

type fakeCall struct {
	path  string
	query map[string]string
	body  []byte
}

// fakeClient satisfies Client with programmable responses and records every
// call it receives.
type fakeClient struct {
	mu     sync.Mutex
	gets   []fakeCall
	posts  []fakeCall
	getFn  func(path string, query map[string]string) ([]byte, error)
	postFn func(path string, body []byte) ([]byte, error)
}

func (f *fakeClient) Get(_ context.Context, path string, query map[string]string) ([]byte, error) {
	f.mu.Lock()
	f.gets = append(f.gets, fakeCall{path: path, query: query})
	fn := f.getFn
	f.mu.Unlock()
	if fn == nil {
		return []byte(`{}`), nil
	}
	return fn(path, query)
}

func (f *fakeClient) Post(_ context.Context, path string, body []byte) ([]byte, error) {
	f.mu.Lock()
	f.posts = append(f.posts, fakeCall{path: path, body: body})
	fn := f.postFn
	f.mu.Unlock()
	if fn == nil {
		return []byte(`{}`), nil
	}
	return fn(path, body)
}

func (f *fakeClient) getCalls() []fakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]fakeCall(nil), f.gets...)
}

func (f *fakeClient) postCalls() []fakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]fakeCall(nil), f.posts...)
}

// recordingNotifier captures notifications for assertions.
type recordingNotifier struct {
	mu        sync.Mutex
	successes []string
	errors    []string
}

func (n *recordingNotifier) Success(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.successes = append(n.successes, msg)
}

func (n *recordingNotifier) Error(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, msg)
}

const (
	planListBody = `{"data":{"data":[
		{"plan_id":"p1","plan_name":"Autumn sampling"},
		{"plan_id":"p2","plan_name":"Spring sampling"}
	]}}`

	learnersBody = `{"data":{"plan_id":"p1","course_name":"Plumbing L2","learners":[
		{"learner_id":"l1","learner_name":"Ada Price","assessor_name":"Bob Shaw",
		 "sample_type":"formative","status":"planned","planned_date":"2026-10-01",
		 "units":[{"unit_code":"U101","unit_name":"Pipework basics","is_selected":true},
		          {"unit_code":"U102","unit_name":"Joints"}]},
		{"learner_id":"l2","learner_name":"Cem Aydin","assessor_name":"Dana Reed",
		 "sample_type":"summative","status":"sampled","planned_date":"2026-10-02",
		 "units":[{"unit_code":"U103","unit_name":"Welding"}]}
	]}}`
)

func planListClient(t *testing.T) *fakeClient {
	t.Helper()
	return &fakeClient{
		getFn: func(path string, _ map[string]string) ([]byte, error) {
			switch path {
			case "/sampleplan":
				return []byte(planListBody), nil
			case "/sampleplan/p1/learners":
				return []byte(learnersBody), nil
			default:
				return []byte(`{"data":{"learners":[]}}`), nil
			}
		},
	}
}

func filteredEngine(t *testing.T, client *fakeClient, opts ...Option) *Engine {
	t.Helper()
	e := NewEngine(client, "iqa-9", opts...)
	require.NoError(t, e.SelectCourse(context.Background(), Course{ID: "c1", Name: "Plumbing L2"}))
	require.NoError(t, e.SelectPlan("p1"))
	require.NoError(t, e.Filter(context.Background()))
	return e
}

func TestSelectCourseLoadsPlans(t *testing.T) {
	client := planListClient(t)
	e := NewEngine(client, "iqa-9")

	err := e.SelectCourse(context.Background(), Course{ID: "c1", Name: "Plumbing L2"})
	require.NoError(t, err)
	assert.Equal(t, CourseSelected, e.State())
	assert.Equal(t, []PlanOption{
		{ID: "p1", Label: "Autumn sampling"},
		{ID: "p2", Label: "Spring sampling"},
	}, e.Plans())

	calls := client.getCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "/sampleplan", calls[0].path)
	assert.Equal(t, "c1", calls[0].query["course_id"])
	assert.Equal(t, "iqa-9", calls[0].query["iqa_id"])
}

func TestSelectCourseClearsPreviousSelection(t *testing.T) {
	client := planListClient(t)
	e := filteredEngine(t, client)
	require.True(t, e.FilterIsApplied())

	require.NoError(t, e.SelectCourse(context.Background(), Course{ID: "c2", Name: "Carpentry L3"}))
	assert.Empty(t, e.SelectedPlanID())
	assert.False(t, e.FilterIsApplied())
	assert.Nil(t, e.PlanSummary())
	assert.Empty(t, e.Rows())
}

func TestSelectPlanUnknownID(t *testing.T) {
	e := NewEngine(planListClient(t), "iqa-9")
	require.NoError(t, e.SelectCourse(context.Background(), Course{ID: "c1", Name: "Plumbing L2"}))

	err := e.SelectPlan("nope")
	require.Error(t, err)
	assert.True(t, IsValidation(err))
	assert.Equal(t, "Please select a sample plan.", err.Error())
}

func TestFilterValidations(t *testing.T) {
	client := planListClient(t)

	t.Run("no course", func(t *testing.T) {
		e := NewEngine(client, "iqa-9")
		err := e.Filter(context.Background())
		require.Error(t, err)
		assert.True(t, IsValidation(err))
		assert.Equal(t, "Please select a course first.", err.Error())
	})

	t.Run("no plans for course", func(t *testing.T) {
		empty := &fakeClient{getFn: func(string, map[string]string) ([]byte, error) {
			return []byte(`{"data":{"data":[]}}`), nil
		}}
		e := NewEngine(empty, "iqa-9")
		require.NoError(t, e.SelectCourse(context.Background(), Course{ID: "c1"}))
		err := e.Filter(context.Background())
		require.Error(t, err)
		assert.Equal(t, "No sample plans are available for this course.", err.Error())
	})

	t.Run("no plan selected", func(t *testing.T) {
		e := NewEngine(client, "iqa-9")
		require.NoError(t, e.SelectCourse(context.Background(), Course{ID: "c1"}))
		err := e.Filter(context.Background())
		require.Error(t, err)
		assert.Equal(t, "Please select a sample plan.", err.Error())
	})

	// validation failures never reach the API beyond the plan-list fetches
	for _, call := range client.getCalls() {
		assert.Equal(t, "/sampleplan", call.path)
	}
}

func TestFilterSuccess(t *testing.T) {
	e := filteredEngine(t, planListClient(t))

	assert.Equal(t, FilterApplied, e.State())
	assert.True(t, e.FilterIsApplied())
	assert.Empty(t, e.FilterError())

	summary := e.PlanSummary()
	require.NotNil(t, summary)
	assert.Equal(t, "p1", summary.PlanID)
	assert.Equal(t, "Plumbing L2", summary.CourseName)

	rows := e.Rows()
	require.Len(t, rows, 2)

	// server pre-selections are merged into the overlay
	assert.True(t, e.Overlay().Has("l1", "U101"))
	assert.False(t, e.Overlay().Has("l1", "U102"))
}

func TestFilterServerError(t *testing.T) {
	client := planListClient(t)
	client.getFn = func(path string, q map[string]string) ([]byte, error) {
		if path == "/sampleplan" {
			return []byte(planListBody), nil
		}
		return nil, &httpclient.HTTPError{StatusCode: 500, Message: "plan detail unavailable"}
	}

	e := NewEngine(client, "iqa-9")
	require.NoError(t, e.SelectCourse(context.Background(), Course{ID: "c1", Name: "Plumbing L2"}))
	require.NoError(t, e.SelectPlan("p1"))

	err := e.Filter(context.Background())
	require.Error(t, err)
	assert.Equal(t, FilterError, e.State())
	assert.False(t, e.FilterIsApplied())
	assert.Equal(t, "plan detail unavailable", e.FilterError())
	assert.Nil(t, e.PlanSummary())
}

func TestFilterServerErrorFallbackMessage(t *testing.T) {
	client := planListClient(t)
	client.getFn = func(path string, q map[string]string) ([]byte, error) {
		if path == "/sampleplan" {
			return []byte(planListBody), nil
		}
		return nil, &httpclient.HTTPError{StatusCode: 502}
	}

	e := NewEngine(client, "iqa-9")
	require.NoError(t, e.SelectCourse(context.Background(), Course{ID: "c1"}))
	require.NoError(t, e.SelectPlan("p1"))

	require.Error(t, e.Filter(context.Background()))
	assert.Equal(t, "Failed to fetch learners for the selected plan.", e.FilterError())
}

func TestFilterStaleResponseDiscarded(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})

	client := &fakeClient{}
	client.getFn = func(path string, q map[string]string) ([]byte, error) {
		switch path {
		case "/sampleplan":
			return []byte(planListBody), nil
		case "/sampleplan/p1/learners":
			close(started)
			<-release
			return []byte(learnersBody), nil
		default:
			return []byte(`{"data":{"learners":[]}}`), nil
		}
	}

	e := NewEngine(client, "iqa-9")
	require.NoError(t, e.SelectCourse(context.Background(), Course{ID: "c1", Name: "Plumbing L2"}))
	require.NoError(t, e.SelectPlan("p1"))

	done := make(chan error, 1)
	go func() {
		done <- e.Filter(context.Background())
	}()

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("learners fetch never started")
	}

	// the user changes plan while the fetch for p1 is still in flight
	require.NoError(t, e.SelectPlan("p2"))
	close(release)

	require.NoError(t, <-done)
	assert.False(t, e.FilterIsApplied(), "stale learners response must be discarded")
	assert.Empty(t, e.Rows())
	assert.Equal(t, "p2", e.SelectedPlanID())
}

func TestRefreshPlansClearsMissingSelection(t *testing.T) {
	client := planListClient(t)
	e := filteredEngine(t, client)

	client.mu.Lock()
	client.getFn = func(path string, _ map[string]string) ([]byte, error) {
		return []byte(`{"data":{"data":[{"plan_id":"p2","plan_name":"Spring sampling"}]}}`), nil
	}
	client.mu.Unlock()

	require.NoError(t, e.RefreshPlans(context.Background()))
	assert.Empty(t, e.SelectedPlanID())
	assert.False(t, e.FilterIsApplied())
}

func TestVisibleRows(t *testing.T) {
	e := NewEngine(planListClient(t), "iqa-9")

	// nothing is visible before a filter has been applied
	assert.Nil(t, e.VisibleRows(""))
	assert.Nil(t, e.VisibleRows("ada"))

	require.NoError(t, e.SelectCourse(context.Background(), Course{ID: "c1", Name: "Plumbing L2"}))
	require.NoError(t, e.SelectPlan("p1"))
	require.NoError(t, e.Filter(context.Background()))

	assert.Len(t, e.VisibleRows(""), 2)

	byLearner := e.VisibleRows("ADA")
	require.Len(t, byLearner, 1)
	assert.Equal(t, "l1", byLearner[0].LearnerID)

	byAssessor := e.VisibleRows("dana")
	require.Len(t, byAssessor, 1)
	assert.Equal(t, "l2", byAssessor[0].LearnerID)

	bySampleType := e.VisibleRows("Summative")
	require.Len(t, bySampleType, 1)
	assert.Equal(t, "l2", bySampleType[0].LearnerID)

	byStatus := e.VisibleRows("planned")
	require.Len(t, byStatus, 1)
	assert.Equal(t, "l1", byStatus[0].LearnerID)

	assert.Empty(t, e.VisibleRows("no such thing"))
}
