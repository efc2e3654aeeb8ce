package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/qualtrack/qualtrack/internal/portal/roles"
	"github.com/qualtrack/qualtrack/internal/portal/sampleplan"
)

// cliNotifier routes engine notifications to the terminal.
type cliNotifier struct{}

func (cliNotifier) Success(msg string) {
	okLabel.Printf("✓ %s\n", msg)
}

func (cliNotifier) Error(msg string) {
	errorLabel.Fprintf(os.Stderr, "✗ %s\n", msg)
}

// newPlanEngine builds a sample-plan engine over the signed-in session.
// Guests and roles without sample-plan access are rejected up front.
func newPlanEngine() (*sampleplan.Engine, error) {
	store, _, err := newSession()
	if err != nil {
		return nil, err
	}

	role, claims, ok := store.Current()
	if !ok {
		return nil, errors.New("not signed in")
	}
	if !roles.CanView(roles.RouteSamplePlans, role) {
		return nil, fmt.Errorf("role %s does not have access to sample plans", role)
	}

	return sampleplan.NewEngine(store.Client(), claims.UserID, sampleplan.WithNotifier(cliNotifier{})), nil
}

// newPlansCmd creates and returns a new plans command
func newPlansCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plans",
		Short: "List the sample plans for a course",
		Long: `List the sample plans available for a course, scoped to the signed-in
quality assurer.

Example:
  qualtrack plans --course c1`,
		RunE: runPlans,
	}

	cmd.Flags().String("course", "", "Course id")
	cmd.Flags().String("course-name", "", "Course display name")
	cmd.MarkFlagRequired("course")
	return cmd
}

func runPlans(cmd *cobra.Command, args []string) error {
	engine, err := newPlanEngine()
	if err != nil {
		return err
	}

	courseID, _ := cmd.Flags().GetString("course")
	courseName, _ := cmd.Flags().GetString("course-name")

	if err := engine.SelectCourse(cmd.Context(), sampleplan.Course{ID: courseID, Name: courseName}); err != nil {
		return errors.Wrap(err, "unable to fetch sample plans")
	}

	plans := engine.Plans()
	if jsonOutput {
		out := make([]map[string]string, 0, len(plans))
		for _, plan := range plans {
			out = append(out, map[string]string{"plan_id": plan.ID, "plan_name": plan.Label})
		}
		printJSON(out)
		return nil
	}

	if len(plans) == 0 {
		fmt.Println("No sample plans are available for this course.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PLAN ID\tNAME")
	for _, plan := range plans {
		fmt.Fprintf(w, "%s\t%s\n", plan.ID, plan.Label)
	}
	return w.Flush()
}
