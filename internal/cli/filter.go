package cli

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/qualtrack/qualtrack/internal/portal/sampleplan"
)

// newFilterCmd creates and returns a new filter command
func newFilterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "filter",
		Short: "Fetch and display the learners on a sample plan",
		Long: `Select a course and plan, fetch the plan's learner list, and display it.
The optional --query flag narrows the table by learner, assessor, sample
type, or status, matching case-insensitively.

Examples:
  qualtrack filter --course c1 --plan p1
  qualtrack filter --course c1 --plan p1 --query "ada"`,
		RunE: runFilter,
	}

	cmd.Flags().String("course", "", "Course id")
	cmd.Flags().String("course-name", "", "Course display name")
	cmd.Flags().String("plan", "", "Sample plan id")
	cmd.Flags().String("query", "", "Search text applied to the learner table")
	cmd.MarkFlagRequired("course")
	cmd.MarkFlagRequired("plan")
	return cmd
}

func runFilter(cmd *cobra.Command, args []string) error {
	engine, err := newPlanEngine()
	if err != nil {
		return err
	}

	courseID, _ := cmd.Flags().GetString("course")
	courseName, _ := cmd.Flags().GetString("course-name")
	planID, _ := cmd.Flags().GetString("plan")
	query, _ := cmd.Flags().GetString("query")

	if err := selectAndFilter(cmd, engine, courseID, courseName, planID); err != nil {
		return err
	}

	rows := engine.VisibleRows(query)
	if jsonOutput {
		printJSON(rows)
		return nil
	}

	if summary := engine.PlanSummary(); summary != nil {
		fmt.Printf("Plan %s — %s\n", summary.PlanID, summary.CourseName)
	}
	if len(rows) == 0 {
		fmt.Println("No learners match.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "LEARNER\tASSESSOR\tSAMPLE TYPE\tSTATUS\tUNITS")
	for i, row := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			row.LearnerName, row.AssessorName, row.SampleType, row.Status,
			unitSummary(engine, row, i))
	}
	return w.Flush()
}

// selectAndFilter walks the engine through course selection, plan selection,
// and the learners fetch, translating validation failures into plain
// errors.
func selectAndFilter(cmd *cobra.Command, engine *sampleplan.Engine, courseID, courseName, planID string) error {
	if err := engine.SelectCourse(cmd.Context(), sampleplan.Course{ID: courseID, Name: courseName}); err != nil {
		return err
	}
	if err := engine.SelectPlan(planID); err != nil {
		return err
	}
	if err := engine.Filter(cmd.Context()); err != nil {
		if sampleplan.IsValidation(err) {
			return err
		}
		if msg := engine.FilterError(); msg != "" {
			return fmt.Errorf("%s", msg)
		}
		return err
	}
	return nil
}

// unitSummary renders a row's units, marking selected ones.
func unitSummary(engine *sampleplan.Engine, row sampleplan.LearnerRow, index int) string {
	learnerKey := row.Key(index)
	parts := make([]string, 0, len(row.Units))
	for _, unit := range row.Units {
		name := unit.Key()
		if unit.Selected || engine.Overlay().Has(learnerKey, unit.Key()) {
			name = "[" + name + "]"
		}
		parts = append(parts, name)
	}
	return strings.Join(parts, " ")
}
