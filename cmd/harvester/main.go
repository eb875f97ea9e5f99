package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aluiziolira/go-scrape-reviews/config"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	// A missing .env is the common case.
	_ = godotenv.Load()

	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:           "harvester",
		Short:         "Harvest paginated Ctrip listings into append-only files",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "Config file (yaml, toml or json)")
	config.BindFlags(root.PersistentFlags())

	root.AddCommand(
		newResourceCommand(config.ResourceComments, "Harvest the comments of one attraction", &configFile),
		newResourceCommand(config.ResourceAttractions, "Harvest the attraction listing of one district", &configFile),
	)
	return root
}

func newResourceCommand(resource, short string, configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   resource,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := config.NewViper(cmd.Flags(), *configFile)
			if err != nil {
				return err
			}
			cfg, err := config.Load(v, resource)
			if err != nil {
				return err
			}

			logger := newLogger(cfg.Verbose, cfg.JSON)
			slog.SetDefault(logger)

			if err := cfg.Validate(); err != nil {
				slog.Error("invalid configuration", slog.Any("error", err))
				return fmt.Errorf("invalid configuration: %w", err)
			}
			if err := run(cmd.Context(), cfg, cmd.OutOrStdout(), nil); err != nil {
				slog.Error("harvest failed", slog.Any("error", err))
				return err
			}
			return nil
		},
	}
}

func newLogger(verbose, forceJSON bool) *slog.Logger {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if !forceJSON && isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
