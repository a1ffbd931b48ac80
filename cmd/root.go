package cmd

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/ai-screener/internal/dialguard"
	"github.com/spigell/ai-screener/internal/orchestrator"
	"github.com/spigell/ai-screener/internal/server"
)

const (
	app       = "ai-screener"
	envPrefix = "AI_SCREENER"
)

// envReplacer maps store.dsn to AI_SCREENER_STORE_DSN.
var envReplacer = strings.NewReplacer("-", "_", ".", "_")

type Config struct {
	// PublicURL is the externally reachable base of the webhook endpoints.
	PublicURL string              `mapstructure:"public-url"`
	Store     StoreConfig         `mapstructure:"store"`
	Server    server.Config       `mapstructure:"server"`
	Twilio    TwilioConfig        `mapstructure:"twilio"`
	OpenAI    OpenAIConfig        `mapstructure:"openai"`
	Gemini    GeminiConfig        `mapstructure:"gemini"`
	Dial      dialguard.Config    `mapstructure:"dial"`
	Interview orchestrator.Config `mapstructure:"interview"`
	Sweep     SweepConfig         `mapstructure:"sweep"`
	Tracing   TracingConfig       `mapstructure:"tracing"`
}

type StoreConfig struct {
	// Driver is sqlite or memory.
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type TwilioConfig struct {
	AccountSID        string `mapstructure:"account-sid"`
	AuthToken         string `mapstructure:"auth-token"`
	AuthTokenFile     string `mapstructure:"auth-token-file"`
	From              string `mapstructure:"from"`
	ValidateSignature bool   `mapstructure:"validate-signature"`
}

type OpenAIConfig struct {
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`
	Model      string `mapstructure:"model"`
}

type GeminiConfig struct {
	APIKey       string `mapstructure:"api-key"`
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

type SweepConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

type TracingConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "ai-screener places automated phone interviews and scores the answers",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is ai-screener.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))

	setDefaults()
}

// setDefaults also registers the keys AutomaticEnv can override.
func setDefaults() {
	viper.SetDefault("public-url", "")
	viper.SetDefault("store.driver", "sqlite")
	viper.SetDefault("store.dsn", app+".db")
	viper.SetDefault("server.addr", ":8080")
	viper.SetDefault("twilio.account-sid", "")
	viper.SetDefault("twilio.auth-token", "")
	viper.SetDefault("twilio.auth-token-file", "")
	viper.SetDefault("twilio.from", "")
	viper.SetDefault("twilio.validate-signature", true)
	viper.SetDefault("openai.api-key", "")
	viper.SetDefault("openai.api-key-file", "")
	viper.SetDefault("openai.model", "whisper-1")
	viper.SetDefault("gemini.api-key", "")
	viper.SetDefault("gemini.api-key-file", "")
	viper.SetDefault("gemini.model", "gemini-2.5-flash")
	viper.SetDefault("gemini.max-log-length", 2000)
	viper.SetDefault("dial.do-not-call-file", "")
	viper.SetDefault("interview.stuck-after", 0)
	viper.SetDefault("interview.stale-after", 0)
	viper.SetDefault("interview.call-end-grace", 0)
	viper.SetDefault("interview.aggregate-timeout", 0)
	viper.SetDefault("interview.pipeline.retries", 0)
	viper.SetDefault("interview.pipeline.timeout", 0)
	viper.SetDefault("interview.pipeline.workers", 0)
	viper.SetDefault("sweep.interval", time.Minute)
	viper.SetDefault("sweep.disabled", false)
	viper.SetDefault("tracing.enabled", false)
}

func initConfig() {
	// A missing .env is fine.
	_ = godotenv.Load()

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(envReplacer)
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// The default file is optional; an explicit one is not.
		if cfgFile == "" && errors.As(err, &notFound) {
			return
		}
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
