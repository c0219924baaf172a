package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/anonto42/inkwell/backend/pkg/config"
)

func main() {
	root := &cobra.Command{
		Use:           "inkwell",
		Short:         "Inkwell blogging platform backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCommand())
	root.AddCommand(newPromoteCommand())

	if err := root.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// setupLogger installs the process-wide slog handler: JSON outside
// development, human readable text in development.
func setupLogger(cfg *config.Config) {
	opts := &slog.HandlerOptions{Level: config.LogLevel(cfg.LogLevel)}
	var handler slog.Handler = slog.NewJSONHandler(os.Stdout, opts)
	if cfg.IsDevelopment() {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler).With("service", "inkwell-api"))
}
