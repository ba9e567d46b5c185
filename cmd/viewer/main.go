package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"github.com/spf13/cobra"

	"rentchat/internal"
	"rentchat/transport"
)

var rootCmd = &cobra.Command{
	Use:   "rentchat",
	Short: "Terminal client for the marketplace chat",
	Long: "rentchat talks to the marketplace chat backend the same way the web\n" +
		"client does: REST for pages, WebSocket push for live updates, polling\n" +
		"when the push channel is down.",
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig resolves the effective configuration: profile file first,
// environment on top. Profile values only fill blanks so CI and one-off
// overrides keep working through plain env vars.
func loadConfig() (internal.Config, error) {
	_ = godotenv.Load()

	profile, err := loadProfile()
	if err != nil {
		return internal.Config{}, err
	}
	profile.fillEnviron()

	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return internal.Config{}, fmt.Errorf("config error: %w", err)
	}
	return config, nil
}

func newLogger(config internal.Config) *slog.Logger {
	return logs.GetLoggerFromString(config.LogLevel)
}

func newRESTClient(log *slog.Logger, config internal.Config) *transport.RESTClient {
	return transport.NewRESTClient(log, config.APIBaseURL, config.APIToken)
}
