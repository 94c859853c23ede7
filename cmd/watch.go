package cmd

import (
	"context"
	"errors"
	"log"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/jobscout-dev/jobscout/internal/logger"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run cycles on a cron schedule until interrupted",
	Run: func(cmd *cobra.Command, _ []string) {
		watch(cmd)
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().BoolP("auto-approve", "y", true, "send notifications without asking for confirmation")
	watchCmd.Flags().Bool("dry-run", false, "log notifications instead of delivering them")
}

func watch(cmd *cobra.Command) {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	if config == nil || config.Watch == nil || config.Watch.Schedule == "" {
		logger.Fatal("watch.schedule is required", zap.Error(errors.New("no cron schedule configured")))
	}

	logger.Info("starting the jobscout watcher",
		zap.String("version", version),
		zap.String("schedule", config.Watch.Schedule),
	)

	c := cron.New()
	_, err = c.AddFunc(config.Watch.Schedule, func() {
		summary, err := executeRun(context.Background(), cmd, config, logger)
		if err != nil {
			// A failed cycle never kills the watcher.
			logger.Error("scheduled run failed", zap.Error(err))
			return
		}
		logSummary(logger, summary)
	})
	if err != nil {
		logger.Fatal("registering cron schedule", zap.Error(err))
	}

	c.Run()
}
