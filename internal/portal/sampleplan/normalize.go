package sampleplan

import (
	"fmt"

	"github.com/tidwall/gjson"
)

// NormalizePlans converts a plan-list response into a uniform option list.
// The endpoint is inconsistent about its shape: it may return a bare plan
// object, an array of plans, or a nested {data:{data:[...]}} envelope. All
// three resolve here, once, so nothing downstream ever sees the raw shape.
func NormalizePlans(body []byte) []PlanOption {
	root := gjson.ParseBytes(body)

	var items []gjson.Result
	switch {
	case root.IsArray():
		items = root.Array()
	case root.Get("data.data").IsArray():
		items = root.Get("data.data").Array()
	case root.Get("data.data").Exists():
		items = []gjson.Result{root.Get("data.data")}
	case root.Get("data").IsArray():
		items = root.Get("data").Array()
	default:
		items = []gjson.Result{root}
	}

	options := make([]PlanOption, 0, len(items))
	for _, item := range items {
		id := item.Get("plan_id")
		if !id.Exists() {
			id = item.Get("id")
		}
		if !id.Exists() || id.String() == "" {
			continue
		}

		label := item.Get("plan_name").String()
		if label == "" {
			label = item.Get("name").String()
		}
		if label == "" {
			label = fmt.Sprintf("Plan %s", id.String())
		}

		options = append(options, PlanOption{
			ID:    id.String(),
			Label: label,
		})
	}
	return options
}

// NormalizeLearners converts a learners response into rows. The endpoint
// returns either {data:{learners:[...]}} or a bare array.
func NormalizeLearners(body []byte) []LearnerRow {
	root := gjson.ParseBytes(body)

	list := root.Get("data.learners")
	if !list.IsArray() {
		if root.IsArray() {
			list = root
		} else {
			return nil
		}
	}

	var rows []LearnerRow
	for _, item := range list.Array() {
		row := LearnerRow{
			LearnerID:    item.Get("learner_id").String(),
			LearnerName:  item.Get("learner_name").String(),
			AssessorName: item.Get("assessor_name").String(),
			RiskLevel:    item.Get("risk_level").String(),
			QAApproved:   item.Get("qa_approved").Bool(),
			Employer:     item.Get("employer").String(),
			PlannedDate:  item.Get("planned_date").String(),
			SampleType:   item.Get("sample_type").String(),
			Status:       item.Get("status").String(),
		}

		for _, u := range item.Get("units").Array() {
			unit := Unit{
				Code:      u.Get("unit_code").String(),
				Name:      u.Get("unit_name").String(),
				Selected:  u.Get("is_selected").Bool(),
				Completed: u.Get("completed").Bool(),
			}
			for _, h := range u.Get("sample_history").Array() {
				unit.History = append(unit.History, SampleHistory{
					PlannedDate: h.Get("planned_date").String(),
					DetailID:    h.Get("detail_id").String(),
					Completed:   h.Get("completed").Bool(),
				})
			}
			row.Units = append(row.Units, unit)
		}

		rows = append(rows, row)
	}
	return rows
}

// planSummaryOf builds the header summary for a filtered plan, preferring
// the identifiers in the response body over the locally selected values.
func planSummaryOf(body []byte, planID, courseName string) *PlanSummary {
	summary := &PlanSummary{PlanID: planID, CourseName: courseName}
	if v := gjson.GetBytes(body, "data.plan_id"); v.Exists() {
		summary.PlanID = v.String()
	}
	if v := gjson.GetBytes(body, "data.course_name"); v.Exists() && v.String() != "" {
		summary.CourseName = v.String()
	}
	return summary
}
