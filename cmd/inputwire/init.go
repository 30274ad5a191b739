package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vango-dev/inputwire/internal/config"
	"github.com/vango-dev/inputwire/internal/errors"
)

func initCmd() *cobra.Command {
	var (
		window int
		force  bool
	)

	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Write a default inputwire.json",
		Long: `Write inputwire.json with the default settings into dir (default: the
current directory). Client and server must share the window size.

Examples:
  inputwire init
  inputwire init deploy/ --window=16`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			path, err := writeDefaultConfig(dir, window, force)
			if err != nil {
				return err
			}
			success("Wrote %s", path)
			return nil
		},
	}

	cmd.Flags().IntVarP(&window, "window", "w", 0, "Window size (default 8)")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing inputwire.json")

	return cmd
}

// writeDefaultConfig writes the default config into dir and returns its path.
func writeDefaultConfig(dir string, window int, force bool) (string, error) {
	path := filepath.Join(dir, config.ConfigFileName)
	if _, err := os.Stat(path); err == nil && !force {
		return "", errors.New("E106").
			WithDetail(path + " already exists").
			WithSuggestion("Pass --force to overwrite it")
	}

	cfg := config.New()
	if window > 0 {
		cfg.Window.Size = window
	}
	if err := cfg.Validate(); err != nil {
		return "", err
	}
	if err := cfg.SaveTo(path); err != nil {
		return "", err
	}
	return cfg.Path(), nil
}
