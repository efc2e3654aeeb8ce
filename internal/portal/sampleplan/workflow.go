package sampleplan

import (
	"context"

	jsoniter "github.com/json-iterator/go"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type applyUnit struct {
	ID      string `json:"id"`
	UnitRef string `json:"unit_ref"`
}

type applyLearner struct {
	LearnerID   string      `json:"learner_id"`
	PlannedDate string      `json:"plannedDate"`
	Units       []applyUnit `json:"units"`
}

type applyRequest struct {
	PlanID            string          `json:"plan_id"`
	SampleType        string          `json:"sample_type"`
	CreatedBy         string          `json:"created_by"`
	AssessmentMethods map[string]bool `json:"assessment_methods"`
	Learners          []applyLearner  `json:"learners"`
}

// ApplySamples submits the selected units as new samples on the current
// plan. The submitted set per learner is the union of the server's persisted
// selections and the local overlay; learners with no selected units are
// omitted. On success the engine raises a success notification and forces a
// learner refetch; on failure the selections are kept so the user can retry.
func (e *Engine) ApplySamples(ctx context.Context) error {
	e.mu.Lock()
	if e.applyInFlight {
		e.mu.Unlock()
		return ErrMutationInFlight
	}
	if e.selectedPlanID == "" {
		e.mu.Unlock()
		return ErrValidation.Msg(msgSelectPlan)
	}
	if e.sampleType == "" {
		e.mu.Unlock()
		return ErrValidation.Msg(msgSelectSampleType)
	}
	if e.userID == "" {
		e.mu.Unlock()
		return ErrValidation.Msg(msgNoUser)
	}
	learners := buildApplyLearners(e.rows, e.overlay)
	if len(learners) == 0 {
		e.mu.Unlock()
		return ErrValidation.Msg(msgNoUnitsSelected)
	}
	e.applyInFlight = true
	req := applyRequest{
		PlanID:            e.selectedPlanID,
		SampleType:        e.sampleType,
		CreatedBy:         e.userID,
		AssessmentMethods: booleanMap(e.methods, AssessmentMethods),
		Learners:          learners,
	}
	planID := e.selectedPlanID
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.applyInFlight = false
		e.mu.Unlock()
	}()

	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}

	body, err := e.client.Post(ctx, "/sampleplan/apply", payload)
	if err != nil {
		msg := serverMessageOf(err, msgApplyFallback)
		e.mu.Lock()
		e.filterError = msg
		e.mu.Unlock()
		e.notifier.Error(msg)
		return err
	}

	msg := gjson.GetBytes(body, "message").String()
	if msg == "" {
		msg = msgApplySuccess
	}
	e.mu.Lock()
	e.filterError = ""
	e.mu.Unlock()
	e.notifier.Success(msg)

	e.refetchLearners(ctx, planID)
	return nil
}

// buildApplyLearners collects, per learner, the union of server-persisted
// and locally overlaid unit selections. Learners with an empty union are
// dropped from the request.
func buildApplyLearners(rows []LearnerRow, overlay *SelectionOverlay) []applyLearner {
	var learners []applyLearner
	for i, row := range rows {
		learnerKey := row.Key(i)
		var units []applyUnit
		for _, u := range row.Units {
			if !u.Selected && !overlay.Has(learnerKey, u.Key()) {
				continue
			}
			ref := u.Name
			if ref == "" {
				ref = u.Key()
			}
			units = append(units, applyUnit{ID: u.Key(), UnitRef: ref})
		}
		if len(units) == 0 {
			continue
		}
		learners = append(learners, applyLearner{
			LearnerID:   row.LearnerID,
			PlannedDate: row.PlannedDate,
			Units:       units,
		})
	}
	return learners
}

// UpdateSampleDetailInput carries an edit to one sample occurrence. Zero
// values mean "leave unchanged": the request payload carries only the fields
// the user actually set. A nil methods or conclusions slice is unset; an
// empty non-nil slice clears every flag.
type UpdateSampleDetailInput struct {
	CompletedDate           string
	Feedback                string
	Status                  string
	AssessmentMethods       []string
	IQAConclusion           []string
	AssessorDecisionCorrect string // "Yes", "No", or empty for unset
	SampleType              string
	PlannedDate             string
	Type                    string
}

// UpdateSampleDetail submits an edit to one sample detail on the current
// plan. On success the engine raises a success notification and forces a
// learner refetch; the caller closes its edit surface only on a nil return.
func (e *Engine) UpdateSampleDetail(ctx context.Context, input UpdateSampleDetailInput) error {
	e.mu.Lock()
	if e.updateInFlight {
		e.mu.Unlock()
		return ErrMutationInFlight
	}
	if e.selectedPlanID == "" {
		e.mu.Unlock()
		return ErrValidation.Msg(msgSelectPlan)
	}
	e.updateInFlight = true
	planID := e.selectedPlanID
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.updateInFlight = false
		e.mu.Unlock()
	}()

	payload, err := buildUpdatePayload(planID, input)
	if err != nil {
		return err
	}

	body, err := e.client.Post(ctx, "/sampleplan/detail", payload)
	if err != nil {
		msg := serverMessageOf(err, msgUpdateFallback)
		e.notifier.Error(msg)
		return err
	}

	msg := gjson.GetBytes(body, "message").String()
	if msg == "" {
		msg = msgUpdateSuccess
	}
	e.notifier.Success(msg)

	e.refetchLearners(ctx, planID)
	return nil
}

func buildUpdatePayload(planID string, input UpdateSampleDetailInput) ([]byte, error) {
	payload := []byte(`{}`)
	var err error
	set := func(path string, value any) {
		if err != nil {
			return
		}
		payload, err = sjson.SetBytes(payload, path, value)
	}

	set("plan_id", planID)
	if input.CompletedDate != "" {
		set("completedDate", input.CompletedDate)
	}
	if input.Feedback != "" {
		set("feedback", input.Feedback)
	}
	if input.Status != "" {
		set("status", input.Status)
	}
	if input.AssessmentMethods != nil {
		set("assessment_methods", booleanMap(input.AssessmentMethods, AssessmentMethods))
	}
	if input.IQAConclusion != nil {
		set("iqa_conclusion", booleanMap(input.IQAConclusion, IQAConclusions))
	}
	if input.AssessorDecisionCorrect != "" {
		set("assessor_decision_correct", input.AssessorDecisionCorrect == "Yes")
	}
	if input.SampleType != "" {
		set("sample_type", input.SampleType)
	}
	if input.PlannedDate != "" {
		set("plannedDate", input.PlannedDate)
	}
	if input.Type != "" {
		set("type", input.Type)
	}
	if err != nil {
		return nil, err
	}
	return payload, nil
}
