package main

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vango-dev/inputwire/internal/config"
	"github.com/vango-dev/inputwire/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// configPath is the --config flag shared by every command.
var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   "inputwire",
		Short: "Redundant delta-compressed input transport for game clients",
		Long: `inputwire moves player input from client to server.

Every packet carries the last N inputs: the oldest in full and each
later one as a field-level delta against the one before it, so the
server recovers lost packets from the next one that arrives.

  • init     write a default inputwire.json
  • serve    accept input connections
  • send     stream synthetic input to a server
  • inspect  decode a packet from hex
  • capture  decode a captured segment`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to inputwire.json (default ./inputwire.json if present)")

	rootCmd.AddCommand(
		initCmd(),
		serveCmd(),
		sendCmd(),
		inspectCmd(),
		captureCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		printError(err)
		os.Exit(1)
	}
}

// loadConfig loads --config, or ./inputwire.json, or the defaults, and
// installs the configured slog handler as the default logger.
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		if _, err := os.Stat(config.ConfigFileName); err == nil {
			path = config.ConfigFileName
		}
	}
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return nil, err
	}

	level, err := cfg.LogLevel()
	if err != nil {
		return nil, err
	}
	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(handler))

	return cfg, nil
}

// printError prints coded errors with their hint and anything else on
// one line.
func printError(err error) {
	var coded *errors.Error
	if stderrors.As(err, &coded) {
		fmt.Fprint(os.Stderr, coded.Format())
		return
	}
	fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
}

// success prints a success message.
func success(format string, args ...any) {
	fmt.Printf("\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(format string, args ...any) {
	fmt.Printf("  %s\n", fmt.Sprintf(format, args...))
}
