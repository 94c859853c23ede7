package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/jobscout-dev/jobscout/internal/ai/gemini"
	"github.com/jobscout-dev/jobscout/internal/filtering"
	"github.com/jobscout-dev/jobscout/internal/history"
	"github.com/jobscout-dev/jobscout/internal/logger"
	"github.com/jobscout-dev/jobscout/internal/notify"
	"github.com/jobscout-dev/jobscout/internal/orchestrator"
	"github.com/jobscout-dev/jobscout/internal/pipeline"
	"github.com/jobscout-dev/jobscout/internal/profile"
	"github.com/jobscout-dev/jobscout/internal/reliability"
	"github.com/jobscout-dev/jobscout/internal/secrets"
	"github.com/jobscout-dev/jobscout/internal/source"
	"github.com/jobscout-dev/jobscout/internal/source/greenhouse"
	"github.com/jobscout-dev/jobscout/internal/source/headhunter"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one full search-filter-generate cycle",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolP("auto-approve", "y", false, "send notifications without asking for confirmation")
	runCmd.Flags().Bool("dry-run", false, "log notifications instead of delivering them")
}

// run is the main command for the cli.
func run(cmd *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the jobscout", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	summary, err := executeRun(ctx, cmd, config, logger)
	if err != nil {
		logger.Fatal("run failed", zap.Error(err))
	}

	logSummary(logger, summary)
}

// executeRun wires every component and runs one cycle. Shared by the run and
// watch commands.
func executeRun(ctx context.Context, cmd *cobra.Command, config *Config, logger *zap.Logger) (*orchestrator.Summary, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if len(config.Queries) == 0 {
		return nil, errors.New("at least one query is required under queries")
	}
	if config.Profile == nil || config.Profile.CriteriaFile == "" || config.Profile.ResumeFile == "" {
		return nil, errors.New("profile.criteria-file and profile.resume-file are required")
	}

	prof, err := profile.Load(config.Profile.CriteriaFile, config.Profile.ResumeFile, config.Profile.SamplesDir)
	if err != nil {
		return nil, fmt.Errorf("loading profile: %w", err)
	}

	logger.Info("profile loaded",
		zap.String("resume", prof.Resume.Name),
		zap.Int("writing_samples", len(prof.WritingSamples)),
	)

	trips := &orchestrator.TripLog{}

	registry, sourceWrappers, err := buildRegistry(config, trips, logger)
	if err != nil {
		return nil, err
	}

	matcher, writer, reviewer, err := newGeminiSuite(ctx, config.AI, logger)
	if err != nil {
		return nil, err
	}

	validateWrapper := reliability.New("gemini-validate", reliability.Config{}, gemini.IsRetryable, trips.Record, logger)
	generateWrapper := reliability.New("gemini-generate", reliability.Config{}, gemini.IsRetryable, trips.Record, logger)
	reviewWrapper := reliability.New("gemini-review", reliability.Config{}, gemini.IsRetryable, trips.Record, logger)

	fit := filtering.NewFit(matcher, validateWrapper, logger)

	pipeCfg := pipeline.Config{}
	if config.AI != nil {
		pipeCfg.MaxAttempts = config.AI.MaxAttempts
		pipeCfg.ApproveScore = config.AI.ApproveScore
	}
	pipe := pipeline.New(writer, reviewer, generateWrapper, reviewWrapper, pipeCfg, logger)

	notifier, notifierName, err := newNotifier(cmd, config.Notify, logger)
	if err != nil {
		return nil, err
	}
	sendWrapper := reliability.New(notifierName, reliability.Config{}, notify.IsRetryable, trips.Record, logger)

	var store *history.Store
	if config.History != nil && config.History.Path != "" {
		store, err = history.Open(config.History.Path)
		if err != nil {
			return nil, fmt.Errorf("opening history store: %w", err)
		}
		defer store.Close()

		if config.History.CleanupAfter > 0 {
			if err := store.Cleanup(ctx, config.History.CleanupAfter); err != nil {
				logger.Warn("history cleanup failed", zap.Error(err))
			}
		}
	}

	runCfg := orchestrator.Config{}
	if config.Run != nil {
		runCfg.Parallelism = config.Run.Parallelism
		runCfg.SilenceValidationOutage = config.Run.SilenceValidationOutage

		if config.Run.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, config.Run.Timeout)
			defer cancel()
		}
	}

	// A nil interface must stay nil, not wrap a nil *Store.
	var seen orchestrator.History
	if store != nil {
		seen = store
	}

	orch := orchestrator.New(registry, sourceWrappers, fit, pipe, notifier, sendWrapper, seen, trips, runCfg, logger)

	return orch.RunOnce(ctx, config.Queries, prof)
}

// buildRegistry registers every configured source adapter with its
// reliability wrapper.
func buildRegistry(config *Config, trips *orchestrator.TripLog, logger *zap.Logger) (*source.Registry, map[string]*reliability.Wrapper, error) {
	registry := source.NewRegistry()
	wrappers := map[string]*reliability.Wrapper{}

	hhToken, err := secrets.LoadOptional(secrets.Source{
		Name: "headhunter token",
		File: headhunterTokenFile(config),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("loading headhunter token: %w", err)
	}

	hh := headhunter.New(logger, &source.AuthContext{Blob: hhToken})
	if config.UserAgent != "" {
		hh.UserAgent = config.UserAgent
	}
	registry.Register("hh.ru", hh)
	wrappers[hh.Name()] = reliability.New(hh.Name(), reliability.Config{}, source.Retryable, trips.Record, logger)

	gh := greenhouse.New(logger)
	registry.Register("greenhouse.io", gh)
	wrappers[gh.Name()] = reliability.New(gh.Name(), reliability.Config{}, source.Retryable, trips.Record, logger)

	return registry, wrappers, nil
}

func headhunterTokenFile(config *Config) string {
	if config.Sources != nil && config.Sources.HeadHunter != nil && config.Sources.HeadHunter.TokenFile != "" {
		return config.Sources.HeadHunter.TokenFile
	}
	return strings.TrimSpace(viper.GetString("sources.headhunter.token-file"))
}

// newGeminiSuite builds the matcher, writer and reviewer on one shared
// generator.
func newGeminiSuite(ctx context.Context, cfg *AIConfig, logger *zap.Logger) (*gemini.Matcher, *gemini.Writer, *gemini.Reviewer, error) {
	if cfg == nil || cfg.Gemini == nil {
		return nil, nil, nil, errors.New("ai.gemini configuration is required")
	}

	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider != "" && provider != "gemini" {
		return nil, nil, nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name: "gemini api key",
		File: cfg.Gemini.APIKeyFile,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY_FILE)", err)
	}

	generator, err := gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Model)
	if err != nil {
		return nil, nil, nil, err
	}

	minScore := cfg.MinimumFitScore
	if minScore < 0 {
		minScore = 0
	}

	aiLogger := logger.With(
		zap.String("provider", "gemini"),
		zap.String("model", generator.Model()),
	)

	matcher := gemini.NewMatcher(generator, minScore, cfg.Gemini.MaxLogLength, aiLogger)
	writer := gemini.NewWriter(generator, cfg.Gemini.MaxLogLength, aiLogger)
	reviewer := gemini.NewReviewer(generator, cfg.Gemini.MaxLogLength, aiLogger)

	return matcher, writer, reviewer, nil
}

// newNotifier picks the delivery channel: telegram when configured, the log
// otherwise. Manual mode wraps it in a confirmation prompt.
func newNotifier(cmd *cobra.Command, cfg *NotifyConfig, logger *zap.Logger) (notify.Notifier, string, error) {
	dryRun := flagSet(cmd, "dry-run")

	var notifier notify.Notifier
	name := "log"

	switch {
	case dryRun:
		logger.Info("dry run, notifications are logged only")
		notifier = notify.NewLog(logger)
	case cfg != nil && cfg.Telegram != nil && cfg.Telegram.ChatID != "":
		token, err := secrets.Load(secrets.Source{
			Name: "telegram bot token",
			File: cfg.Telegram.TokenFile,
		})
		if err != nil {
			return nil, "", fmt.Errorf("%w (set notify.telegram.token-file or TELEGRAM_TOKEN_FILE)", err)
		}
		notifier = notify.NewTelegram(token, cfg.Telegram.ChatID, logger)
		name = "telegram"
	default:
		logger.Info("telegram is not configured, notifications are logged only")
		notifier = notify.NewLog(logger)
	}

	if !dryRun && !flagSet(cmd, "auto-approve") {
		notifier = notify.NewConfirming(notifier, logger)
	}

	return notifier, name, nil
}

func flagSet(cmd *cobra.Command, name string) bool {
	if cmd == nil {
		return false
	}
	flag := cmd.Flag(name)
	return flag != nil && strings.EqualFold(flag.Value.String(), "true")
}

func logSummary(logger *zap.Logger, summary *orchestrator.Summary) {
	fields := []zap.Field{
		zap.Int("seen", summary.Seen),
		zap.Int("accepted", summary.Accepted),
		zap.Int("rejected", summary.Rejected),
		zap.Int("skipped", summary.Skipped),
		zap.Int("approved", len(summary.Approved)),
		zap.Int("abandoned", len(summary.Abandoned)),
		zap.Int("notifications_sent", summary.NotificationsSent),
		zap.Int("notifications_failed", summary.NotificationsFailed),
	}
	if len(summary.Approved) > 0 {
		fields = append(fields, zap.Strings("approved_postings", summary.Approved))
	}
	if len(summary.Alerts) > 0 {
		fields = append(fields, zap.Strings("alerts", summary.Alerts))
	}

	logger.Info("run finished", fields...)

	for _, a := range summary.Abandoned {
		logger.Info("abandoned posting",
			zap.String("posting_id", a.PostingID),
			zap.String("reason", string(a.Reason)),
			zap.Int("attempts", a.Attempts),
		)
	}
}
