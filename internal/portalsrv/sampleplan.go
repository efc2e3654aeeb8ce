package portalsrv

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/qualtrack/qualtrack/internal/common/httpx"
	"github.com/qualtrack/qualtrack/internal/portalsrv/store"
)

// applySchema validates apply requests before any store mutation happens.
const applySchema = `{
	"type": "object",
	"required": ["plan_id", "sample_type", "created_by", "learners"],
	"properties": {
		"plan_id": {"type": "string", "minLength": 1},
		"sample_type": {"type": "string", "enum": ["formative", "summative", "interim"]},
		"created_by": {"type": "string", "minLength": 1},
		"assessment_methods": {
			"type": "object",
			"additionalProperties": {"type": "boolean"}
		},
		"learners": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"required": ["learner_id", "units"],
				"properties": {
					"learner_id": {"type": "string", "minLength": 1},
					"plannedDate": {"type": "string"},
					"units": {
						"type": "array",
						"minItems": 1,
						"items": {
							"type": "object",
							"required": ["id"],
							"properties": {
								"id": {"type": "string", "minLength": 1},
								"unit_ref": {"type": "string"}
							}
						}
					}
				}
			}
		}
	}
}`

var compiledApplySchema = jsonschema.MustCompileString("apply.json", applySchema)

type planOption struct {
	PlanID   string `json:"plan_id"`
	PlanName string `json:"plan_name"`
}

// listPlans serves the plan list for a course. The response shape follows
// the course fixture's list_shape so clients see every variant the
// production API is known to emit: a bare array, a nested envelope, or a
// single bare object.
func (s *PortalServer) listPlans(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	courseID := r.URL.Query().Get("course_id")
	if courseID == "" {
		httpx.SendErrorMsg(ctx, w, http.StatusBadRequest, "course_id is required")
		return
	}
	iqaID := r.URL.Query().Get("iqa_id")

	plans := s.store.PlansForCourse(courseID, iqaID)
	options := make([]planOption, 0, len(plans))
	for _, plan := range plans {
		options = append(options, planOption{PlanID: plan.PlanID, PlanName: plan.PlanName})
	}

	course, _ := s.store.Course(courseID)
	switch course.ListShape {
	case "array":
		sendRawJSON(w, options)
	case "object":
		if len(options) == 1 {
			sendRawJSON(w, options[0])
			return
		}
		sendRawJSON(w, options)
	default:
		httpx.SendSuccess(ctx, w, http.StatusOK, "", map[string]any{"data": options})
	}
}

func (s *PortalServer) getLearners(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	planID := chi.URLParam(r, "planID")
	plan, ok := s.store.Plan(planID)
	if !ok {
		httpx.SendErrorMsg(ctx, w, http.StatusNotFound, "Sample plan not found.")
		return
	}

	if r.URL.Query().Get("force") == "true" {
		log.Ctx(ctx).Debug().Str("plan_id", planID).Msg("forced learner fetch")
	}

	httpx.SendSuccess(ctx, w, http.StatusOK, "", map[string]any{
		"plan_id":     plan.PlanID,
		"course_name": plan.CourseName,
		"learners":    plan.Learners,
	})
}

type applyRequest struct {
	PlanID            string                 `json:"plan_id"`
	SampleType        string                 `json:"sample_type"`
	CreatedBy         string                 `json:"created_by"`
	AssessmentMethods map[string]bool        `json:"assessment_methods"`
	Learners          []store.AppliedLearner `json:"learners"`
}

func (s *PortalServer) applySamples(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var raw any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		httpx.SendErrorMsg(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := compiledApplySchema.Validate(raw); err != nil {
		log.Ctx(ctx).Info().Err(err).Msg("apply request failed validation")
		httpx.SendErrorMsg(ctx, w, http.StatusUnprocessableEntity, "Apply request is incomplete or malformed.")
		return
	}

	encoded, err := json.Marshal(raw)
	if err != nil {
		httpx.SendErrorMsg(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}
	var req applyRequest
	if err := json.Unmarshal(encoded, &req); err != nil {
		httpx.SendErrorMsg(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.store.ApplySamples(req.PlanID, req.SampleType, req.CreatedBy, req.Learners); err != nil {
		httpx.SendErrorMsg(ctx, w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	log.Ctx(ctx).Info().Str("plan_id", req.PlanID).Int("learners", len(req.Learners)).Msg("samples applied")
	httpx.SendSuccess(ctx, w, http.StatusOK, "Sampled learners added successfully.", nil)
}

type detailRequest struct {
	PlanID                  string          `json:"plan_id"`
	CompletedDate           string          `json:"completedDate"`
	Feedback                string          `json:"feedback"`
	Status                  string          `json:"status"`
	AssessmentMethods       map[string]bool `json:"assessment_methods"`
	IQAConclusion           map[string]bool `json:"iqa_conclusion"`
	AssessorDecisionCorrect *bool           `json:"assessor_decision_correct"`
	SampleType              string          `json:"sample_type"`
	PlannedDate             string          `json:"plannedDate"`
	Type                    string          `json:"type"`
}

func (s *PortalServer) saveDetail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req detailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.SendErrorMsg(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PlanID == "" {
		httpx.SendErrorMsg(ctx, w, http.StatusBadRequest, "plan_id is required")
		return
	}

	record := store.DetailRecord{
		CompletedDate:           req.CompletedDate,
		Feedback:                req.Feedback,
		Status:                  req.Status,
		AssessmentMethods:       req.AssessmentMethods,
		IQAConclusion:           req.IQAConclusion,
		AssessorDecisionCorrect: req.AssessorDecisionCorrect,
		SampleType:              req.SampleType,
		PlannedDate:             req.PlannedDate,
		Type:                    req.Type,
	}
	if err := s.store.SaveDetail(req.PlanID, record); err != nil {
		httpx.SendErrorMsg(ctx, w, http.StatusNotFound, err.Error())
		return
	}

	log.Ctx(ctx).Info().Str("plan_id", req.PlanID).Msg("sample detail saved")
	httpx.SendSuccess(ctx, w, http.StatusOK, "Sample detail updated successfully.", nil)
}

func sendRawJSON(w http.ResponseWriter, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}
