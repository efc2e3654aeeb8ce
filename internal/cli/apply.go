package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/qualtrack/qualtrack/internal/portal/sampleplan"
)

// newApplyCmd creates and returns a new apply command
func newApplyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply sampled units to a plan",
		Long: `Select units for sampling and submit them. Each --select takes a
learner:unit pair; server-side pre-selections are kept and submitted too.

Example:
  qualtrack apply --course c1 --plan p1 --sample-type formative \
    --methods observation,questioning \
    --select l1:U101 --select l1:U102`,
		RunE: runApply,
	}

	cmd.Flags().String("course", "", "Course id")
	cmd.Flags().String("course-name", "", "Course display name")
	cmd.Flags().String("plan", "", "Sample plan id")
	cmd.Flags().String("sample-type", "", "Sampling category (formative, summative, interim)")
	cmd.Flags().StringSlice("methods", nil, "Assessment method ids")
	cmd.Flags().StringArray("select", nil, "Unit selection as learner:unit (repeatable)")
	cmd.MarkFlagRequired("course")
	cmd.MarkFlagRequired("plan")
	return cmd
}

func runApply(cmd *cobra.Command, args []string) error {
	engine, err := newPlanEngine()
	if err != nil {
		return err
	}

	courseID, _ := cmd.Flags().GetString("course")
	courseName, _ := cmd.Flags().GetString("course-name")
	planID, _ := cmd.Flags().GetString("plan")
	sampleType, _ := cmd.Flags().GetString("sample-type")
	methods, _ := cmd.Flags().GetStringSlice("methods")
	selections, _ := cmd.Flags().GetStringArray("select")

	if err := selectAndFilter(cmd, engine, courseID, courseName, planID); err != nil {
		return err
	}

	engine.SetSampleType(sampleType)
	engine.SetAssessmentMethods(methods)

	pairs, err := parseSelections(selections)
	if err != nil {
		return err
	}
	for _, pair := range pairs {
		engine.Overlay().Select(pair.learnerKey, pair.unitKey)
	}

	if err := engine.ApplySamples(cmd.Context()); err != nil {
		if sampleplan.IsValidation(err) {
			return err
		}
		// server failures were already reported through the notifier
		return ErrAlreadyHandled
	}

	if jsonOutput {
		printJSON(map[string]any{
			"status": "success",
			"rows":   engine.Rows(),
		})
	}
	return nil
}

type selectionPair struct {
	learnerKey string
	unitKey    string
}

// parseSelections parses learner:unit pairs from the --select flag.
func parseSelections(raw []string) ([]selectionPair, error) {
	pairs := make([]selectionPair, 0, len(raw))
	for _, entry := range raw {
		learnerKey, unitKey, ok := strings.Cut(entry, ":")
		if !ok || learnerKey == "" || unitKey == "" {
			return nil, fmt.Errorf("invalid --select value %q, expected learner:unit", entry)
		}
		pairs = append(pairs, selectionPair{learnerKey: learnerKey, unitKey: unitKey})
	}
	return pairs, nil
}
