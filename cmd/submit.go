package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/interview-feedback/internal/feedback"
	"github.com/spigell/interview-feedback/internal/transcriptfile"
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Run the feedback pipeline once for a transcript file",
	Run: func(cmd *cobra.Command, _ []string) {
		if !submit(cmd) {
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(submitCmd)

	submitCmd.Flags().StringP("transcript", "t", "", "transcript file (json or yaml)")
	submitCmd.Flags().String("interview-id", "", "interview id (overrides the file)")
	submitCmd.Flags().String("user-id", "", "user id (overrides the file)")
	submitCmd.Flags().String("feedback-id", "", "existing feedback id to overwrite")

	submitCmd.MarkFlagRequired("transcript")
}

// submit prints the projected response and reports whether it succeeded.
func submit(cmd *cobra.Command) bool {
	ctx := context.Background()

	logger, config := bootstrap()
	defer logger.Sync()

	file, err := transcriptfile.Load(flagValue(cmd, "transcript"))
	if err != nil {
		logger.Fatal("loading the transcript", zap.Error(err))
	}

	req := file.Request(flagValue(cmd, "interview-id"), flagValue(cmd, "user-id"), flagValue(cmd, "feedback-id"))

	if req.InterviewID == "" {
		req.InterviewID = ask("Interview ID")
	}
	if req.UserID == "" {
		req.UserID = ask("User ID")
	}

	d := newDeps(ctx, config, logger)
	defer d.Close()

	pipeline, err := d.Pipeline()
	if err != nil {
		logger.Fatal("building the pipeline", zap.Error(err))
	}

	res := pipeline.Submit(ctx, req)

	pretty, _ := json.MarshalIndent(feedback.Project(res), "", "  ")
	fmt.Fprintln(cmd.OutOrStdout(), string(pretty))

	return res.IsOk()
}

func flagValue(cmd *cobra.Command, name string) string {
	flag := cmd.Flag(name)
	if flag == nil {
		return ""
	}
	return strings.TrimSpace(flag.Value.String())
}

func ask(label string) string {
	prompt := promptui.Prompt{
		Label: label,
		Validate: func(input string) error {
			if strings.TrimSpace(input) == "" {
				return errors.New("value is required")
			}
			return nil
		},
	}

	value, err := prompt.Run()
	if err != nil {
		log.Fatalf("reading %s: %s", strings.ToLower(label), err)
	}
	return strings.TrimSpace(value)
}
