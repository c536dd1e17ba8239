// File: cmd/bucketmirror/root.go
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"bucketmirror/internal/config"
	"bucketmirror/internal/flags"
	"bucketmirror/internal/logger"

	"github.com/spf13/cobra"
)

const exitInterrupted = 130

type rootFlags struct {
	debug   bool
	logFile string
}

func newRootCmd() *cobra.Command {
	rf := &rootFlags{}

	rootCmd := &cobra.Command{
		Use:   "bucketmirror",
		Short: "bucketmirror mirrors a local directory into an object-storage bucket.",
		Long: `Mirror a local directory tree into an AWS S3, Google Cloud Storage or
MinIO bucket. Files already present remotely with the same key and size
are skipped, the rest are uploaded in parallel with retries, and remote
objects that no longer exist locally can optionally be deleted.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			app, err := bootstrap(rf)
			if err != nil {
				return err
			}
			cmd.SetContext(withApp(cmd.Context(), app))
			return nil
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&rf.debug, flags.Debug, flags.DebugShort, false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&rf.logFile, flags.LogFile, "", "Also write logs to this file (overrides 'log.file')")

	rootCmd.AddCommand(newSyncCmd(rf), newConfigCmd())
	return rootCmd
}

// Loads configuration and builds the logger and application container
func bootstrap(rf *rootFlags) (*appContainer, error) {
	cfgManager, err := config.NewConfigManager()
	if err != nil {
		return nil, err
	}

	cfg, err := cfgManager.LoadConfig()
	if err != nil {
		return nil, err
	}

	logFile := cfg.Log.File
	if rf.logFile != "" {
		logFile = rf.logFile
	}

	log, closeLog, err := logger.NewLogger(logger.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   logFile,
		Debug:  rf.debug,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	log.Debug("Configuration loaded", "path", cfgManager.Path())

	return newApp(cfgManager, cfg, log, closeLog), nil
}

// Execute runs the CLI and returns the process exit code
func Execute(ctx context.Context, args []string) int {
	return execute(ctx, newRootCmd(), args, os.Stderr)
}

// The app's log file is closed here rather than in a post-run hook, which cobra skips when RunE fails
func execute(ctx context.Context, rootCmd *cobra.Command, args []string, errOut io.Writer) int {
	rootCmd.SetArgs(args)
	cmd, err := rootCmd.ExecuteContextC(ctx)
	if cmd != nil && cmd.Context() != nil {
		if app, appErr := appFromContext(cmd.Context()); appErr == nil {
			if closeErr := app.Close(); err == nil {
				err = closeErr
			}
		}
	}

	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled) || ctx.Err() != nil:
		fmt.Fprintln(errOut, "Interrupted")
		return exitInterrupted
	default:
		fmt.Fprintln(errOut, "Error:", err)
		return 1
	}
}
