package cmd

import (
	"log"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "jobscout"
)

type Config struct {
	// Queries are the search locator URLs routed to source adapters.
	Queries   []string       `mapstructure:"queries"`
	UserAgent string         `mapstructure:"user-agent"`
	Profile   *ProfileConfig `mapstructure:"profile"`
	Sources   *SourcesConfig `mapstructure:"sources"`
	AI        *AIConfig      `mapstructure:"ai"`
	Notify    *NotifyConfig  `mapstructure:"notify"`
	History   *HistoryConfig `mapstructure:"history"`
	Run       *RunConfig     `mapstructure:"run"`
	Watch     *WatchConfig   `mapstructure:"watch"`
}

type ProfileConfig struct {
	CriteriaFile string `mapstructure:"criteria-file"`
	ResumeFile   string `mapstructure:"resume-file"`
	SamplesDir   string `mapstructure:"samples-dir"`
}

type SourcesConfig struct {
	HeadHunter *HeadHunterConfig `mapstructure:"headhunter"`
}

type HeadHunterConfig struct {
	TokenFile string `mapstructure:"token-file"`
}

type AIConfig struct {
	Provider        string        `mapstructure:"provider"`
	MinimumFitScore float64       `mapstructure:"minimum-fit-score"`
	ApproveScore    float64       `mapstructure:"approve-score"`
	MaxAttempts     int           `mapstructure:"max-attempts"`
	Gemini          *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

type NotifyConfig struct {
	Telegram *TelegramConfig `mapstructure:"telegram"`
}

type TelegramConfig struct {
	TokenFile string `mapstructure:"token-file"`
	ChatID    string `mapstructure:"chat-id"`
}

type HistoryConfig struct {
	Path         string        `mapstructure:"path"`
	CleanupAfter time.Duration `mapstructure:"cleanup-after"`
}

type RunConfig struct {
	Parallelism             int           `mapstructure:"parallelism"`
	Timeout                 time.Duration `mapstructure:"timeout"`
	SilenceValidationOutage bool          `mapstructure:"silence-validation-outage-alerts"`
}

type WatchConfig struct {
	Schedule string `mapstructure:"schedule"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "jobscout watches job boards, filters postings against your profile and drafts application content",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	envBindings := map[string]string{
		"sources.headhunter.token-file": "HH_TOKEN_FILE",
		"ai.gemini.api-key-file":        "GEMINI_API_KEY_FILE",
		"notify.telegram.token-file":    "TELEGRAM_TOKEN_FILE",
		"notify.telegram.chat-id":       "TELEGRAM_CHAT_ID",
	}
	for key, env := range envBindings {
		if err := viper.BindEnv(key, env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is jobscout.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// Config needed only for the run and watch commands. If there is no
	// config, we can skip initialization.
	if runCmd.CalledAs() == "" && watchCmd.CalledAs() == "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app + ".yaml")
	}

	// We can't proceed if the config file parsed with error.
	if err := viper.ReadInConfig(); err != nil {
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}
