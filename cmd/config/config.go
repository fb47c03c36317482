package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/grovetools/jana/pkg/service"
)

var cfgFile string

func InitConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		configDir := filepath.Join(home, ".config", "jana")
		viper.AddConfigPath(configDir)
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("JANA")
	viper.AutomaticEnv()

	// Set defaults
	home := os.Getenv("HOME")
	viper.SetDefault("base_url", "http://127.0.0.1:8000")
	viper.SetDefault("timeout", "15s")
	viper.SetDefault("max_retries", 3)
	viper.SetDefault("data_dir", filepath.Join(home, ".local", "share", "jana"))
	viper.SetDefault("session_file", filepath.Join(home, ".config", "jana", "session.yaml"))
	viper.SetDefault("log_level", "warn")
	viper.SetDefault("editor", os.Getenv("EDITOR"))

	if err := viper.ReadInConfig(); err == nil {
		// Do not print this in normal operation, it's noisy.
		logrus.Debugf("Using config file: %s", viper.ConfigFileUsed())
	}
}

// NewLogger builds the stderr logger at the configured level.
func NewLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	level, err := logrus.ParseLevel(viper.GetString("log_level"))
	if err != nil {
		level = logrus.WarnLevel
	}
	logger.SetLevel(level)
	return logrus.NewEntry(logger).WithField("component", "jana")
}

// ServiceConfig maps viper settings onto the service configuration.
func ServiceConfig() *service.Config {
	return &service.Config{
		BaseURL:     viper.GetString("base_url"),
		Timeout:     viper.GetDuration("timeout"),
		MaxRetries:  viper.GetInt("max_retries"),
		DataDir:     viper.GetString("data_dir"),
		SessionFile: viper.GetString("session_file"),
		Editor:      viper.GetString("editor"),
		JournalDSN:  viper.GetString("journal_dsn"),
		Token:       viper.GetString("token"),
	}
}

func InitService(logger *logrus.Entry) (*service.Service, error) {
	svc, err := service.New(ServiceConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize service: %w", err)
	}
	return svc, nil
}

func AddGlobalFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/jana/config.yaml)")
	cmd.PersistentFlags().String("base-url", "", "remote store URL (overrides base_url)")
	cmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	_ = viper.BindPFlag("base_url", cmd.PersistentFlags().Lookup("base-url"))
	_ = viper.BindPFlag("log_level", cmd.PersistentFlags().Lookup("log-level"))
}
