package cmd

import (
	"log"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "vacradar"
)

type Config struct {
	Server        *ServerConfig        `mapstructure:"server"`
	Storage       *StorageConfig       `mapstructure:"storage"`
	Duplicates    *DuplicatesConfig    `mapstructure:"duplicates"`
	Classifier    *ClassifierConfig    `mapstructure:"classifier"`
	Notifications *NotificationsConfig `mapstructure:"notifications"`
}

type ServerConfig struct {
	BindAddr      string `mapstructure:"bind-addr"`
	MinTextLength int    `mapstructure:"min-text-length"`
}

type StorageConfig struct {
	Path string `mapstructure:"path"`
}

type DuplicatesConfig struct {
	Threshold float64 `mapstructure:"threshold"`
}

type ClassifierConfig struct {
	BatchSize int           `mapstructure:"batch-size"`
	Interval  time.Duration `mapstructure:"interval"`
	Gemini    *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

type NotificationsConfig struct {
	Enabled  bool            `mapstructure:"enabled"`
	Telegram *TelegramConfig `mapstructure:"telegram"`
}

type TelegramConfig struct {
	TokenFile string `mapstructure:"token-file"`
	Channel   string `mapstructure:"channel"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "vacradar ingests job vacancies, deduplicates them and classifies them with an LLM",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("classifier.gemini.api-key-file", "GEMINI_API_KEY_FILE"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY_FILE environment variable: %v", err)
	}
	if err := viper.BindEnv("notifications.telegram.token-file", "TELEGRAM_TOKEN_FILE"); err != nil {
		log.Fatalf("binding TELEGRAM_TOKEN_FILE environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is vacradar.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))

	viper.SetDefault("server.bind-addr", ":8080")
	viper.SetDefault("server.min-text-length", 50)
	viper.SetDefault("storage.path", app+".db")
	viper.SetDefault("duplicates.threshold", 0.85)
	viper.SetDefault("classifier.batch-size", 10)
	viper.SetDefault("classifier.interval", time.Minute)
}

func initConfig() {
	// Config needed only for serve and cycle commands. If there is no config, we can skip initialization
	if serveCmd.CalledAs() == "" && cycleCmd.CalledAs() == "" {
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
