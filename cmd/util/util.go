package util

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/momentics/hioload-bench/control"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
	// EnvPrefix prefixes every environment variable read by the CLI
	EnvPrefix = "hioload"
)

// Store holds the effective configuration and notifies listeners when the
// config file changes.
var Store = control.NewConfigStore()

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		if lineWidth > 0 && lineWidth+1+len(word) > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}
		currentLine.WriteString(word)
		lineWidth += len(word)
	}
	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}
	return strings.Join(wrappedLines, "\n")
}

// SetupCommonFlags adds the flags shared by every server command
func SetupCommonFlags(cmd *cobra.Command) {
	key := "addr"
	cmd.PersistentFlags().String(key, "127.0.0.1:9000", WrapString("Listen address, an IPv4 or IPv6 literal with port (e.g. 127.0.0.1:9000, [::1]:9000)"))

	key = "listen-backlog"
	cmd.PersistentFlags().Int(key, 256, WrapString("Length of the kernel accept queue"))

	key = "log-level"
	cmd.PersistentFlags().String(key, "info", WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))

	key = "cpu"
	cmd.PersistentFlags().Int(key, -1, WrapString("Pin the serving thread to this CPU and steer incoming packets to it with SO_INCOMING_CPU; -1 disables pinning"))

	key = "metrics-addr"
	cmd.PersistentFlags().String(key, "", WrapString("When set, serve Prometheus /metrics and JSON /debug/state on this address"))

	key = "config"
	cmd.PersistentFlags().String(key, "", WrapString("Optional config file (yaml, toml, json); log-level changes in it apply while running"))
}

// ProcessConfig binds the command's flags to viper and records the effective
// settings.
func ProcessConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	if path := viper.GetString("config"); path != "" {
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}
		viper.OnConfigChange(func(e fsnotify.Event) {
			logrus.WithField("file", e.Name).Info("config file changed")
			Store.SetConfig(viper.AllSettings())
		})
		viper.WatchConfig()
	}
	if err := SetupLogging(viper.GetString("log-level")); err != nil {
		return err
	}
	Store.OnReload(func(settings map[string]any) {
		level, _ := settings["log-level"].(string)
		if err := SetupLogging(level); err != nil {
			logrus.WithError(err).Warn("ignoring log level from config")
		}
	})
	Store.SetConfig(viper.AllSettings())
	return nil
}

// SetupLogging configures the standard logrus logger.
func SetupLogging(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	logrus.SetLevel(lvl)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return nil
}

// InitConfig reads in .env files and ENV variables if set.
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}
