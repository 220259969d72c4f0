package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume queued feedback jobs and run the pipeline for each",
	Run: func(_ *cobra.Command, _ []string) {
		work()
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func work() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, config := bootstrap()
	defer logger.Sync()

	logger.Info("starting the interview-feedback worker", zap.String("version", version))

	d := newDeps(ctx, config, logger)
	defer d.Close()

	pipeline, err := d.Pipeline()
	if err != nil {
		logger.Fatal("building the pipeline", zap.Error(err))
	}

	q, err := d.Queue()
	if err != nil {
		logger.Fatal("connecting to the queue", zap.Error(err))
	}

	if err := q.Consume(ctx, pipeline.Submit); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", zap.Error(err))
	}
}
