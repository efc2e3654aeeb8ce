package sampleplan

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/qualtrack/qualtrack/internal/common/httpclient"
)

func TestApplySamplesValidations(t *testing.T) {
	client := planListClient(t)

	t.Run("no plan selected", func(t *testing.T) {
		e := NewEngine(client, "iqa-9")
		err := e.ApplySamples(context.Background())
		require.Error(t, err)
		assert.True(t, IsValidation(err))
		assert.Equal(t, "Please select a sample plan.", err.Error())
	})

	t.Run("no sample type", func(t *testing.T) {
		e := filteredEngine(t, planListClient(t))
		err := e.ApplySamples(context.Background())
		require.Error(t, err)
		assert.Equal(t, "Please select a sample type before applying samples.", err.Error())
	})

	t.Run("no resolvable user", func(t *testing.T) {
		e := filteredEngine(t, planListClient(t))
		e.userID = ""
		e.SetSampleType("formative")
		err := e.ApplySamples(context.Background())
		require.Error(t, err)
		assert.Equal(t, "Unable to resolve the current user.", err.Error())
	})

	t.Run("no units selected", func(t *testing.T) {
		noSelection := planListClient(t)
		noSelection.getFn = func(path string, q map[string]string) ([]byte, error) {
			if path == "/sampleplan" {
				return []byte(planListBody), nil
			}
			return []byte(`{"data":{"learners":[
				{"learner_id":"l1","units":[{"unit_code":"U101"}]}
			]}}`), nil
		}
		e := filteredEngine(t, noSelection)
		e.SetSampleType("formative")
		err := e.ApplySamples(context.Background())
		require.Error(t, err)
		assert.Equal(t, "Please select at least one unit to sample.", err.Error())
	})
}

func TestApplySamplesSuccess(t *testing.T) {
	client := planListClient(t)
	client.postFn = func(path string, body []byte) ([]byte, error) {
		return []byte(`{"status":"success","message":"Sampled learners added successfully."}`), nil
	}

	notifier := &recordingNotifier{}
	e := filteredEngine(t, client, WithNotifier(notifier))
	e.SetSampleType("formative")
	e.SetAssessmentMethods([]string{"observation", "questioning"})

	// user adds a unit on top of the server's pre-selection
	e.Overlay().Select("l1", "U102")

	require.NoError(t, e.ApplySamples(context.Background()))

	posts := client.postCalls()
	require.Len(t, posts, 1)
	assert.Equal(t, "/sampleplan/apply", posts[0].path)

	payload := gjson.ParseBytes(posts[0].body)
	assert.Equal(t, "p1", payload.Get("plan_id").String())
	assert.Equal(t, "formative", payload.Get("sample_type").String())
	assert.Equal(t, "iqa-9", payload.Get("created_by").String())

	// the method map always carries every known method explicitly
	methods := payload.Get("assessment_methods").Map()
	assert.Len(t, methods, len(AssessmentMethods))
	assert.True(t, methods["observation"].Bool())
	assert.True(t, methods["questioning"].Bool())
	assert.False(t, methods["simulation"].Bool())

	// learner l2 has no selected units and is dropped from the request
	learners := payload.Get("learners").Array()
	require.Len(t, learners, 1)
	assert.Equal(t, "l1", learners[0].Get("learner_id").String())
	assert.Equal(t, "2026-10-01", learners[0].Get("plannedDate").String())

	units := learners[0].Get("units").Array()
	require.Len(t, units, 2)
	assert.Equal(t, "U101", units[0].Get("id").String())
	assert.Equal(t, "Pipework basics", units[0].Get("unit_ref").String())
	assert.Equal(t, "U102", units[1].Get("id").String())

	require.Len(t, notifier.successes, 1)
	assert.Equal(t, "Sampled learners added successfully.", notifier.successes[0])
	assert.Empty(t, notifier.errors)

	// a forced refetch followed the successful apply
	var forced bool
	for _, call := range client.getCalls() {
		if call.path == "/sampleplan/p1/learners" && call.query["force"] == "true" {
			forced = true
		}
	}
	assert.True(t, forced, "apply must force a learner refetch")
}

func TestApplySamplesServerError(t *testing.T) {
	client := planListClient(t)
	client.postFn = func(path string, body []byte) ([]byte, error) {
		return nil, &httpclient.HTTPError{StatusCode: 422, Message: "Plan is locked for editing."}
	}

	notifier := &recordingNotifier{}
	e := filteredEngine(t, client, WithNotifier(notifier))
	e.SetSampleType("formative")
	e.Overlay().Select("l1", "U102")

	err := e.ApplySamples(context.Background())
	require.Error(t, err)

	require.Len(t, notifier.errors, 1)
	assert.Equal(t, "Plan is locked for editing.", notifier.errors[0])
	assert.Equal(t, "Plan is locked for editing.", e.FilterError())

	// selections survive the failure so the user can retry
	assert.True(t, e.Overlay().Has("l1", "U101"))
	assert.True(t, e.Overlay().Has("l1", "U102"))
	assert.Empty(t, notifier.successes)
}

func TestApplySamplesServerErrorFallbackMessage(t *testing.T) {
	client := planListClient(t)
	client.postFn = func(path string, body []byte) ([]byte, error) {
		return nil, &httpclient.HTTPError{StatusCode: 500}
	}

	notifier := &recordingNotifier{}
	e := filteredEngine(t, client, WithNotifier(notifier))
	e.SetSampleType("formative")

	require.Error(t, e.ApplySamples(context.Background()))
	require.Len(t, notifier.errors, 1)
	assert.Equal(t, "Failed to apply sampled learners.", notifier.errors[0])
}

func TestApplySamplesRefetchFailureIsIgnored(t *testing.T) {
	client := planListClient(t)
	client.postFn = func(path string, body []byte) ([]byte, error) {
		return []byte(`{}`), nil
	}

	notifier := &recordingNotifier{}
	e := filteredEngine(t, client, WithNotifier(notifier))
	e.SetSampleType("formative")

	client.mu.Lock()
	client.getFn = func(path string, q map[string]string) ([]byte, error) {
		return nil, &httpclient.HTTPError{StatusCode: 500}
	}
	client.mu.Unlock()

	require.NoError(t, e.ApplySamples(context.Background()))
	require.Len(t, notifier.successes, 1)
	assert.Equal(t, "Sampled learners added successfully.", notifier.successes[0])

	// rows from the earlier successful filter are kept
	assert.Len(t, e.Rows(), 2)
}

func TestApplySamplesInFlightGuard(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})

	client := planListClient(t)
	client.postFn = func(path string, body []byte) ([]byte, error) {
		close(started)
		<-release
		return []byte(`{}`), nil
	}

	e := filteredEngine(t, client)
	e.SetSampleType("formative")

	done := make(chan error, 1)
	go func() {
		done <- e.ApplySamples(context.Background())
	}()

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("apply never started")
	}

	err := e.ApplySamples(context.Background())
	require.ErrorIs(t, err, ErrMutationInFlight)

	close(release)
	require.NoError(t, <-done)
}

func TestUpdateSampleDetailSparsePayload(t *testing.T) {
	client := planListClient(t)
	client.postFn = func(path string, body []byte) ([]byte, error) {
		return []byte(`{"status":"success"}`), nil
	}

	notifier := &recordingNotifier{}
	e := filteredEngine(t, client, WithNotifier(notifier))

	err := e.UpdateSampleDetail(context.Background(), UpdateSampleDetailInput{
		CompletedDate:           "2026-10-05",
		Status:                  "completed",
		AssessmentMethods:       []string{"observation"},
		AssessorDecisionCorrect: "Yes",
	})
	require.NoError(t, err)

	posts := client.postCalls()
	require.Len(t, posts, 1)
	assert.Equal(t, "/sampleplan/detail", posts[0].path)

	payload := gjson.ParseBytes(posts[0].body)
	assert.Equal(t, "p1", payload.Get("plan_id").String())
	assert.Equal(t, "2026-10-05", payload.Get("completedDate").String())
	assert.Equal(t, "completed", payload.Get("status").String())
	assert.True(t, payload.Get("assessor_decision_correct").Bool())

	methods := payload.Get("assessment_methods").Map()
	assert.Len(t, methods, len(AssessmentMethods))
	assert.True(t, methods["observation"].Bool())
	assert.False(t, methods["rpl"].Bool())

	// untouched fields never appear in the payload
	assert.False(t, payload.Get("feedback").Exists())
	assert.False(t, payload.Get("iqa_conclusion").Exists())
	assert.False(t, payload.Get("sample_type").Exists())
	assert.False(t, payload.Get("plannedDate").Exists())
	assert.False(t, payload.Get("type").Exists())

	require.Len(t, notifier.successes, 1)
	assert.Equal(t, "Sample detail updated successfully.", notifier.successes[0])

	var forced bool
	for _, call := range client.getCalls() {
		if call.query["force"] == "true" {
			forced = true
		}
	}
	assert.True(t, forced, "update must force a learner refetch")
}

func TestUpdateSampleDetailDecisionNo(t *testing.T) {
	client := planListClient(t)
	e := filteredEngine(t, client)

	err := e.UpdateSampleDetail(context.Background(), UpdateSampleDetailInput{
		AssessorDecisionCorrect: "No",
		IQAConclusion:           []string{"action_required"},
	})
	require.NoError(t, err)

	payload := gjson.ParseBytes(client.postCalls()[0].body)
	require.True(t, payload.Get("assessor_decision_correct").Exists())
	assert.False(t, payload.Get("assessor_decision_correct").Bool())

	conclusions := payload.Get("iqa_conclusion").Map()
	assert.Len(t, conclusions, len(IQAConclusions))
	assert.True(t, conclusions["action_required"].Bool())
	assert.False(t, conclusions["decision_confirmed"].Bool())
}

func TestUpdateSampleDetailServerError(t *testing.T) {
	client := planListClient(t)
	client.postFn = func(path string, body []byte) ([]byte, error) {
		return nil, &httpclient.HTTPError{StatusCode: 409}
	}

	notifier := &recordingNotifier{}
	e := filteredEngine(t, client, WithNotifier(notifier))

	err := e.UpdateSampleDetail(context.Background(), UpdateSampleDetailInput{Status: "completed"})
	require.Error(t, err)
	require.Len(t, notifier.errors, 1)
	assert.Equal(t, "Failed to update sample detail.", notifier.errors[0])
	assert.Empty(t, notifier.successes)
}

func TestUpdateSampleDetailRequiresPlan(t *testing.T) {
	e := NewEngine(planListClient(t), "iqa-9")
	err := e.UpdateSampleDetail(context.Background(), UpdateSampleDetailInput{Status: "completed"})
	require.Error(t, err)
	assert.True(t, IsValidation(err))
	assert.Equal(t, "Please select a sample plan.", err.Error())
}
