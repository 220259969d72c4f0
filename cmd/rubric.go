package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spigell/interview-feedback/internal/feedback"
)

var rubricCmd = &cobra.Command{
	Use:   "rubric",
	Short: "Print the evaluation rubric and the response schema",
	Run: func(cmd *cobra.Command, _ []string) {
		printRubric(cmd, feedback.DefaultRubric)
	},
}

func init() {
	rootCmd.AddCommand(rubricCmd)

	rubricCmd.Flags().Bool("schema-only", false, "print only the JSON schema")
}

func printRubric(cmd *cobra.Command, rubric feedback.Rubric) {
	out := cmd.OutOrStdout()

	if flagValue(cmd, "schema-only") != "true" {
		fmt.Fprintf(out, "rubric version: %s\n\n", rubric.Version)
		for _, c := range rubric.Categories {
			fmt.Fprintf(out, "%-22s %s\n", c.Name, c.Guidance)
		}
		fmt.Fprintln(out)
	}

	fmt.Fprintln(out, feedback.ResponseSchema())
}
