package sampleplan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePlansShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []PlanOption
	}{
		{
			name: "bare array",
			body: `[{"plan_id":"p1","plan_name":"Autumn sampling"},{"plan_id":"p2","plan_name":"Spring sampling"}]`,
			want: []PlanOption{
				{ID: "p1", Label: "Autumn sampling"},
				{ID: "p2", Label: "Spring sampling"},
			},
		},
		{
			name: "nested data.data array",
			body: `{"status":"success","data":{"data":[{"plan_id":"p1","plan_name":"Autumn sampling"}]}}`,
			want: []PlanOption{{ID: "p1", Label: "Autumn sampling"}},
		},
		{
			name: "nested data.data single object",
			body: `{"data":{"data":{"plan_id":"p3","plan_name":"One-off"}}}`,
			want: []PlanOption{{ID: "p3", Label: "One-off"}},
		},
		{
			name: "data array",
			body: `{"data":[{"id":"p4","name":"Legacy plan"}]}`,
			want: []PlanOption{{ID: "p4", Label: "Legacy plan"}},
		},
		{
			name: "bare object with alternate keys",
			body: `{"id":"p5","name":"Solo"}`,
			want: []PlanOption{{ID: "p5", Label: "Solo"}},
		},
		{
			name: "missing id is skipped",
			body: `[{"plan_name":"no id"},{"plan_id":"p6","plan_name":"kept"}]`,
			want: []PlanOption{{ID: "p6", Label: "kept"}},
		},
		{
			name: "missing label gets placeholder",
			body: `[{"plan_id":"p7"}]`,
			want: []PlanOption{{ID: "p7", Label: "Plan p7"}},
		},
		{
			name: "empty body",
			body: `{}`,
			want: []PlanOption{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizePlans([]byte(tt.body))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeLearners(t *testing.T) {
	body := `{
		"data": {
			"plan_id": "p1",
			"course_name": "Plumbing L2",
			"learners": [
				{
					"learner_id": "l1",
					"learner_name": "Ada Price",
					"assessor_name": "Bob Shaw",
					"risk_level": "high",
					"qa_approved": true,
					"employer": "Acme Ltd",
					"planned_date": "2026-10-01",
					"sample_type": "formative",
					"status": "planned",
					"units": [
						{
							"unit_code": "U101",
							"unit_name": "Pipework basics",
							"is_selected": true,
							"completed": false,
							"sample_history": [
								{"planned_date": "2026-04-01", "detail_id": "d1", "completed": true}
							]
						},
						{"unit_name": "Safety fundamentals"}
					]
				}
			]
		}
	}`

	rows := NormalizeLearners([]byte(body))
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, "l1", row.LearnerID)
	assert.Equal(t, "Ada Price", row.LearnerName)
	assert.Equal(t, "Bob Shaw", row.AssessorName)
	assert.Equal(t, "high", row.RiskLevel)
	assert.True(t, row.QAApproved)
	assert.Equal(t, "Acme Ltd", row.Employer)
	assert.Equal(t, "formative", row.SampleType)
	assert.Equal(t, "planned", row.Status)

	require.Len(t, row.Units, 2)
	assert.Equal(t, "U101", row.Units[0].Key())
	assert.True(t, row.Units[0].Selected)
	require.Len(t, row.Units[0].History, 1)
	assert.Equal(t, "d1", row.Units[0].History[0].DetailID)
	assert.True(t, row.Units[0].History[0].Completed)

	// code-less unit falls back to its name as key
	assert.Equal(t, "Safety fundamentals", row.Units[1].Key())
}

func TestNormalizeLearnersBareArray(t *testing.T) {
	rows := NormalizeLearners([]byte(`[{"learner_id":"l1","learner_name":"Ada Price"}]`))
	require.Len(t, rows, 1)
	assert.Equal(t, "l1", rows[0].LearnerID)
}

func TestNormalizeLearnersUnrecognisedShape(t *testing.T) {
	assert.Nil(t, NormalizeLearners([]byte(`{"status":"success"}`)))
}

func TestLearnerRowKeyFallback(t *testing.T) {
	withID := LearnerRow{LearnerID: "l9", LearnerName: "Ada Price"}
	assert.Equal(t, "l9", withID.Key(3))

	withoutID := LearnerRow{LearnerName: "Ada Price"}
	assert.Equal(t, "Ada Price#3", withoutID.Key(3))
}

func TestPlanSummaryOf(t *testing.T) {
	body := []byte(`{"data":{"plan_id":"p-server","course_name":"Plumbing L2","learners":[]}}`)
	summary := planSummaryOf(body, "p-local", "Local course")
	assert.Equal(t, "p-server", summary.PlanID)
	assert.Equal(t, "Plumbing L2", summary.CourseName)

	summary = planSummaryOf([]byte(`{"data":{"learners":[]}}`), "p-local", "Local course")
	assert.Equal(t, "p-local", summary.PlanID)
	assert.Equal(t, "Local course", summary.CourseName)
}
