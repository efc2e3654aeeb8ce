// Package sampleplan implements the QA sample-plan browsing engine: course
// and plan selection, learner filtering, per-unit selection bookkeeping, and
// the apply/update write workflows against the portal API.
package sampleplan

import "fmt"

// Course identifies a course a plan belongs to.
type Course struct {
	ID   string
	Name string
}

// PlanOption is one selectable sample plan, normalized from whichever shape
// the server returned.
type PlanOption struct {
	ID    string
	Label string
}

// PlanSummary describes the plan a filter was applied against.
type PlanSummary struct {
	PlanID     string
	CourseName string
}

// SampleHistory is one prior sampling event for a unit, append-only and
// chronological.
type SampleHistory struct {
	PlannedDate string `json:"planned_date"`
	DetailID    string `json:"detail_id"`
	Completed   bool   `json:"completed"`
}

// Unit is a curriculum unit belonging to a learner row.
type Unit struct {
	Code      string          `json:"unit_code"`
	Name      string          `json:"unit_name"`
	Selected  bool            `json:"is_selected"`
	Completed bool            `json:"completed"`
	History   []SampleHistory `json:"sample_history"`
}

// Key uniquely identifies the unit within one learner row. The unit code is
// the primary key; rows from older course imports may only carry a name.
func (u Unit) Key() string {
	if u.Code != "" {
		return u.Code
	}
	return u.Name
}

// LearnerRow is one learner's entry in a sample plan, replaced wholesale on
// every learners fetch. Selection state lives in the overlay, not here.
type LearnerRow struct {
	LearnerID    string `json:"learner_id"`
	LearnerName  string `json:"learner_name"`
	AssessorName string `json:"assessor_name"`
	RiskLevel    string `json:"risk_level"`
	QAApproved   bool   `json:"qa_approved"`
	Employer     string `json:"employer"`
	PlannedDate  string `json:"planned_date"`
	SampleType   string `json:"sample_type"`
	Status       string `json:"status"`
	Units        []Unit `json:"units"`
}

// Key returns the overlay key for this row. The stable learner id is
// preferred; the name#index fallback only applies to rows with no id, since
// positional keys do not survive a refetch that reorders the list.
func (r LearnerRow) Key(index int) string {
	if r.LearnerID != "" {
		return r.LearnerID
	}
	return fmt.Sprintf("%s#%d", r.LearnerName, index)
}

// AssessmentMethods lists every assessment method id the portal knows.
// Serialized method maps must carry an explicit boolean for each of these,
// never a sparse subset.
var AssessmentMethods = []string{
	"observation",
	"product_evidence",
	"questioning",
	"professional_discussion",
	"witness_testimony",
	"rpl",
	"simulation",
}

// IQAConclusions lists every IQA conclusion id the portal knows. The same
// completeness rule applies as for assessment methods.
var IQAConclusions = []string{
	"decision_confirmed",
	"feedback_given",
	"action_required",
	"resampling_required",
}

// SampleTypes are the recognised sampling categories.
var SampleTypes = []string{
	"formative",
	"summative",
	"interim",
}

// booleanMap serializes a selection as a complete id→bool map over every
// known id.
func booleanMap(selected []string, known []string) map[string]bool {
	chosen := make(map[string]struct{}, len(selected))
	for _, id := range selected {
		chosen[id] = struct{}{}
	}
	out := make(map[string]bool, len(known))
	for _, id := range known {
		_, ok := chosen[id]
		out[id] = ok
	}
	return out
}
