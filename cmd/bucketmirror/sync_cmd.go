// File: cmd/bucketmirror/sync_cmd.go
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"bucketmirror/internal/config"
	"bucketmirror/internal/flags"
	"bucketmirror/internal/logger"
	"bucketmirror/internal/service"
	"bucketmirror/internal/ui/progress"
	"bucketmirror/internal/ui/prompt"
	"bucketmirror/pkg/formatter"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

type syncFlags struct {
	provider   string
	bucket     string
	prefix     string
	threads    int
	batchSize  int
	excludes   []string
	delete     bool
	dryRun     bool
	force      bool
	verifySize bool
	noProgress bool
	format     string
}

var (
	bannerTitleStyle = lipgloss.NewStyle().Bold(true)
	dryRunStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
)

func newSyncCmd(rf *rootFlags) *cobra.Command {
	sf := &syncFlags{}

	syncCmd := &cobra.Command{
		Use:   "sync [source]",
		Short: "Mirror a local directory into a bucket",
		Long: `Uploads every file under the source directory that is missing remotely or
differs in size, using <prefix>/<relative path> as the object key.
With --delete, remote objects under the prefix that have no local
counterpart are removed after confirmation. For example:

  bucketmirror sync ./photos --provider aws --bucket my-backups --prefix photos --delete`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFromContext(cmd.Context())
			if err != nil {
				return err
			}

			if !slices.Contains(formatter.SupportedFormats, strings.ToLower(sf.format)) {
				return fmt.Errorf("unsupported output format '%s', expected one of: %s", sf.format, strings.Join(formatter.SupportedFormats, ", "))
			}

			opts, err := buildRunOptions(cmd, app, sf, args[0])
			if err != nil {
				return err
			}

			errOut := cmd.ErrOrStderr()
			printBanner(errOut, opts)

			interactive := !sf.noProgress && !rf.debug && isTerminal(errOut)
			reporter := newReporter(errOut, sf.noProgress, interactive)

			svc := app.SyncService
			if interactive {
				// The live bar owns the terminal, so only warnings and errors reach the console
				svc = app.syncServiceWithLogger(logger.WithMinLevel(app.Logger, slog.LevelWarn))
			}

			if opts.Delete && !sf.force {
				prompter := prompt.NewStandardPrompter(cmd.InOrStdin(), errOut)
				opts.ConfirmDelete = func(keys []string) (bool, error) {
					return prompt.ConfirmDeletion(prompter, errOut, opts.Bucket, keys)
				}
			}

			report, runErr := svc.Run(cmd.Context(), opts, reporter)
			reporter.Finish()

			if report != nil {
				out, err := app.SummaryFormatter.Format(report, sf.format)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), out)
			}
			return runErr
		},
	}

	sf.bind(syncCmd)
	return syncCmd
}

func (sf *syncFlags) bind(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&sf.provider, flags.Provider, flags.ProviderShort, "", "Storage provider (aws, gcp, minio). Defaults to 'sync.provider' or the only configured provider")
	f.StringVarP(&sf.bucket, flags.Bucket, flags.BucketShort, "", "Destination bucket (overrides 'sync.bucket')")
	f.StringVar(&sf.prefix, flags.Prefix, "", "Key prefix under which the source is mirrored (overrides 'sync.prefix')")
	f.IntVarP(&sf.threads, flags.Threads, flags.ThreadsShort, config.DefaultThreads, "Number of parallel workers per batch")
	f.IntVar(&sf.batchSize, flags.BatchSize, config.DefaultBatchSize, "Number of files dispatched per batch")
	f.StringArrayVarP(&sf.excludes, flags.Exclude, flags.ExcludeShort, nil, "Exclude paths matching a glob, 'dir/' or '**' pattern (repeatable)")
	f.BoolVar(&sf.delete, flags.Delete, false, "Delete remote objects under the prefix that no longer exist locally")
	f.BoolVarP(&sf.dryRun, flags.DryRun, flags.DryRunShort, false, "Report what would change without modifying the bucket")
	f.BoolVarP(&sf.force, flags.Force, flags.ForceShort, false, "Skip the confirmation prompt before deleting")
	f.BoolVar(&sf.verifySize, flags.VerifySize, false, "Check the remote size of each object after upload")
	f.BoolVar(&sf.noProgress, flags.NoProgress, false, "Disable the progress display")
	f.StringVarP(&sf.format, flags.Format, flags.FormatShort, formatter.FormatTable, "Summary output format: table, json or yaml")
}

// Merges flags over the sync section of the configuration. Config excludes are kept and flag excludes appended
func buildRunOptions(cmd *cobra.Command, app *appContainer, sf *syncFlags, source string) (service.RunOptions, error) {
	sc := app.Config.Sync

	providerName, err := app.ProviderFactory.ResolveProvider(sf.provider)
	if err != nil {
		return service.RunOptions{}, err
	}

	opts := service.RunOptions{
		Source:     source,
		Provider:   providerName,
		Bucket:     firstNonEmpty(sf.bucket, sc.Bucket),
		Prefix:     firstNonEmpty(sf.prefix, sc.Prefix),
		Threads:    sc.Threads,
		BatchSize:  sc.BatchSize,
		Excludes:   append(slices.Clone(sc.Exclude), sf.excludes...),
		Delete:     sf.delete,
		DryRun:     sf.dryRun,
		VerifySize: sf.verifySize,
	}
	if cmd.Flags().Changed(flags.Threads) {
		opts.Threads = sf.threads
	}
	if cmd.Flags().Changed(flags.BatchSize) {
		opts.BatchSize = sf.batchSize
	}

	if opts.Bucket == "" {
		return service.RunOptions{}, fmt.Errorf("no bucket given. Use --%s or 'bucketmirror config set sync.bucket <name>'", flags.Bucket)
	}
	return opts, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func printBanner(w io.Writer, opts service.RunOptions) {
	source := opts.Source
	if abs, err := filepath.Abs(source); err == nil {
		source = abs
	}

	fmt.Fprintln(w, bannerTitleStyle.Render("bucketmirror"))
	fmt.Fprintf(w, "  Source:      %s\n", source)
	fmt.Fprintf(w, "  Destination: %s\n", formatter.Destination(opts.Provider, opts.Bucket, opts.Prefix))
	fmt.Fprintf(w, "  Threads:     %d, batch size: %d\n", opts.Threads, opts.BatchSize)
	if opts.Delete {
		fmt.Fprintln(w, "  Delete:      remote objects absent locally will be removed")
	}
	if opts.DryRun {
		fmt.Fprintln(w, dryRunStyle.Render("  DRY RUN: no changes will be made to the bucket"))
	}
	fmt.Fprintln(w)
}

func newReporter(w io.Writer, disabled, interactive bool) progress.Reporter {
	switch {
	case disabled:
		return progress.Nop()
	case interactive:
		return progress.NewTUIReporter("Mirroring", w)
	default:
		return progress.NewTextReporter(w)
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
