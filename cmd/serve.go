package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/interview-feedback/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the feedback HTTP API",
	Run: func(_ *cobra.Command, _ []string) {
		serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("address", "", "listen address (default :8080)")
	viper.BindPFlag("server.address", serveCmd.Flags().Lookup("address"))
}

func serve() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, config := bootstrap()
	defer logger.Sync()

	logger.Info("starting the interview-feedback server", zap.String("version", version))

	d := newDeps(ctx, config, logger)
	defer d.Close()

	pipeline, err := d.Pipeline()
	if err != nil {
		logger.Fatal("building the pipeline", zap.Error(err))
	}

	store, err := d.Store()
	if err != nil {
		logger.Fatal("opening the store", zap.Error(err))
	}

	var publisher server.Publisher
	if config.Queue.Enabled() {
		q, err := d.Queue()
		if err != nil {
			logger.Fatal("connecting to the queue", zap.Error(err))
		}
		publisher = q
	} else {
		logger.Info("queue is not configured, POST /feedback/jobs is disabled")
	}

	if !viper.GetBool("debug") {
		gin.SetMode(gin.ReleaseMode)
	}

	handler := server.NewHandler(pipeline, store, publisher, logger).
		WithSubmitTimeout(server.SubmitTimeout(config.Server.WriteTimeout))
	srv := server.New(config.Server, server.NewRouter(handler, logger), logger)

	if err := srv.Run(ctx); err != nil {
		logger.Error("server stopped", zap.Error(err))
	}
}
