package cli

import (
	"github.com/spf13/cobra"

	"github.com/qualtrack/qualtrack/internal/portal/sampleplan"
)

// newSampleCmd creates and returns the sample command group
func newSampleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Work with individual sample details",
	}
	cmd.AddCommand(newSampleUpdateCmd())
	return cmd
}

func newSampleUpdateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Record the outcome of a sample",
		Long: `Record the outcome of a sample on a plan. Only the flags you set are
sent; everything else is left unchanged on the server.

Example:
  qualtrack sample update --course c1 --plan p1 \
    --completed-date 2026-10-06 --status completed \
    --decision-correct Yes --conclusions decision_confirmed`,
		RunE: runSampleUpdate,
	}

	cmd.Flags().String("course", "", "Course id")
	cmd.Flags().String("course-name", "", "Course display name")
	cmd.Flags().String("plan", "", "Sample plan id")
	cmd.Flags().String("completed-date", "", "Date the sample was completed")
	cmd.Flags().String("feedback", "", "Feedback to the assessor")
	cmd.Flags().String("status", "", "Sample status")
	cmd.Flags().StringSlice("methods", nil, "Assessment method ids")
	cmd.Flags().StringSlice("conclusions", nil, "IQA conclusion ids")
	cmd.Flags().String("decision-correct", "", "Whether the assessor decision was correct (Yes/No)")
	cmd.Flags().String("sample-type", "", "Sampling category")
	cmd.Flags().String("planned-date", "", "Planned date of the sample")
	cmd.Flags().String("type", "", "Sample record type")
	cmd.MarkFlagRequired("course")
	cmd.MarkFlagRequired("plan")
	return cmd
}

func runSampleUpdate(cmd *cobra.Command, args []string) error {
	engine, err := newPlanEngine()
	if err != nil {
		return err
	}

	courseID, _ := cmd.Flags().GetString("course")
	courseName, _ := cmd.Flags().GetString("course-name")
	planID, _ := cmd.Flags().GetString("plan")

	if err := selectAndFilter(cmd, engine, courseID, courseName, planID); err != nil {
		return err
	}

	input := sampleplan.UpdateSampleDetailInput{}
	input.CompletedDate, _ = cmd.Flags().GetString("completed-date")
	input.Feedback, _ = cmd.Flags().GetString("feedback")
	input.Status, _ = cmd.Flags().GetString("status")
	input.AssessorDecisionCorrect, _ = cmd.Flags().GetString("decision-correct")
	input.SampleType, _ = cmd.Flags().GetString("sample-type")
	input.PlannedDate, _ = cmd.Flags().GetString("planned-date")
	input.Type, _ = cmd.Flags().GetString("type")
	if cmd.Flags().Changed("methods") {
		input.AssessmentMethods, _ = cmd.Flags().GetStringSlice("methods")
	}
	if cmd.Flags().Changed("conclusions") {
		input.IQAConclusion, _ = cmd.Flags().GetStringSlice("conclusions")
	}

	if err := engine.UpdateSampleDetail(cmd.Context(), input); err != nil {
		if sampleplan.IsValidation(err) {
			return err
		}
		return ErrAlreadyHandled
	}

	if jsonOutput {
		printJSON(map[string]string{"status": "success"})
	}
	return nil
}
