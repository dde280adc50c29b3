// ally-undo inspects and reverts the patch history the coding assistant
// records for each session.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/benhmoore/Code-Ally-sub003/internal/config"
	"github.com/benhmoore/Code-Ally-sub003/internal/manager"
)

var (
	flagConfig  string
	flagSession string
	flagVerbose bool

	rootCmd = &cobra.Command{
		Use:           "ally-undo",
		Short:         "Inspect and revert the assistant's file-change history",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := zerolog.WarnLevel
			if flagVerbose {
				level = zerolog.DebugLevel
			}
			log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
				Level(level).With().Timestamp().Logger()
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default "+config.DefaultPath()+")")
	rootCmd.PersistentFlags().StringVarP(&flagSession, "session", "s", "", "session id")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(historyCmd, previewCmd, undoCmd, statsCmd, checkCmd, clearCmd, cleanupCmd)
}

// newManager builds a Manager for the --session flag. Commands that need
// an active session should call requireSession first. A missing file at
// the default path means defaults apply, but a missing file behind an
// explicit --config is an error: a typo'd flag must not silently fall
// back.
func newManager() (*manager.Manager, error) {
	path := flagConfig
	if path == "" {
		path = config.DefaultPath()
	} else if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return manager.New(cfg, func() string { return flagSession }), nil
}

func requireSession() error {
	if flagSession == "" {
		return fmt.Errorf("a session id is required (--session)")
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
