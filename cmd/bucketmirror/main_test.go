package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"bucketmirror/internal/config"
	"bucketmirror/internal/provider/registry"
	"bucketmirror/internal/testutil"
	"bucketmirror/pkg/storage"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Replaced by each test that syncs against the "memory" provider
var memoryStore *testutil.MemoryStore

func init() {
	registry.RegisterProvider("memory", registry.ProviderRegistration{
		ConfigCheck: func(*config.Config) bool { return memoryStore != nil },
		Initializer: func(context.Context, *config.Config, *slog.Logger) (storage.ObjectStore, error) {
			return memoryStore, nil
		},
	})
}

func testConfig() *config.Config {
	return &config.Config{
		Sync: &config.SyncConfig{Threads: config.DefaultThreads, BatchSize: config.DefaultBatchSize},
		Log:  &config.LogConfig{Level: "info", Format: "text"},
	}
}

func newTestApp(t *testing.T, cfg *config.Config) *appContainer {
	t.Helper()
	cm, err := config.NewConfigManagerWithPath(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)
	return newApp(cm, cfg, testutil.DiscardLogger(), nil)
}

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func TestExecute_ExitCodes(t *testing.T) {
	tests := []struct {
		name   string
		cancel bool
		runErr error
		want   int
		output string
	}{
		{name: "success", want: 0},
		{name: "fatal error", runErr: errors.New("bucket not found"), want: 1, output: "Error: bucket not found"},
		{name: "interrupted", cancel: true, runErr: context.Canceled, want: exitInterrupted, output: "Interrupted"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			if tt.cancel {
				cancel()
			}

			cmd := &cobra.Command{
				Use:           "test",
				SilenceErrors: true,
				SilenceUsage:  true,
				RunE:          func(*cobra.Command, []string) error { return tt.runErr },
			}

			var errOut bytes.Buffer
			assert.Equal(t, tt.want, execute(ctx, cmd, []string{}, &errOut))
			assert.Contains(t, errOut.String(), tt.output)
		})
	}
}

func TestExecute_ClosesLogFileWhenCommandFails(t *testing.T) {
	for _, runErr := range []error{nil, errors.New("bucket not found")} {
		closed := 0
		cmd := &cobra.Command{
			Use:           "test",
			SilenceErrors: true,
			SilenceUsage:  true,
			PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
				cm, err := config.NewConfigManagerWithPath(filepath.Join(t.TempDir(), "config.json"))
				require.NoError(t, err)
				app := newApp(cm, testConfig(), testutil.DiscardLogger(), func() error {
					closed++
					return nil
				})
				cmd.SetContext(withApp(cmd.Context(), app))
				return nil
			},
			RunE: func(*cobra.Command, []string) error { return runErr },
		}

		var errOut bytes.Buffer
		execute(context.Background(), cmd, []string{}, &errOut)
		assert.Equal(t, 1, closed, "run error: %v", runErr)
	}
}

func TestExecute_LogCloseErrorFailsSuccessfulRun(t *testing.T) {
	cmd := &cobra.Command{
		Use:           "test",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			app := newTestApp(t, testConfig())
			app.closeLog = func() error { return errors.New("disk full") }
			cmd.SetContext(withApp(cmd.Context(), app))
			return nil
		},
		RunE: func(*cobra.Command, []string) error { return nil },
	}

	var errOut bytes.Buffer
	assert.Equal(t, 1, execute(context.Background(), cmd, []string{}, &errOut))
	assert.Contains(t, errOut.String(), "disk full")
}

func TestAppContainer_CloseIsIdempotent(t *testing.T) {
	app := newTestApp(t, testConfig())
	calls := 0
	app.closeLog = func() error {
		calls++
		return nil
	}

	require.NoError(t, app.Close())
	require.NoError(t, app.Close())
	assert.Equal(t, 1, calls)
}

func TestBuildRunOptions_FlagsOverrideConfig(t *testing.T) {
	memoryStore = testutil.NewMemoryStore("bkt")
	t.Cleanup(func() { memoryStore = nil })

	cfg := testConfig()
	cfg.Sync.Provider = "memory"
	cfg.Sync.Bucket = "cfg-bucket"
	cfg.Sync.Prefix = "cfg-prefix"
	cfg.Sync.Exclude = []string{".git/"}
	app := newTestApp(t, cfg)

	sf := &syncFlags{}
	cmd := &cobra.Command{}
	sf.bind(cmd)
	require.NoError(t, cmd.Flags().Parse([]string{"--bucket", "flag-bucket", "-t", "8", "-e", "*.tmp", "--dry-run"}))

	opts, err := buildRunOptions(cmd, app, sf, "/data")
	require.NoError(t, err)

	assert.Equal(t, "memory", opts.Provider)
	assert.Equal(t, "flag-bucket", opts.Bucket)
	assert.Equal(t, "cfg-prefix", opts.Prefix)
	assert.Equal(t, 8, opts.Threads)
	assert.Equal(t, config.DefaultBatchSize, opts.BatchSize)
	assert.Equal(t, []string{".git/", "*.tmp"}, opts.Excludes)
	assert.True(t, opts.DryRun)
	assert.Equal(t, []string{".git/"}, cfg.Sync.Exclude)
}

func TestBuildRunOptions_RequiresBucket(t *testing.T) {
	app := newTestApp(t, testConfig())

	sf := &syncFlags{}
	cmd := &cobra.Command{}
	sf.bind(cmd)
	require.NoError(t, cmd.Flags().Parse([]string{"--provider", "aws"}))

	_, err := buildRunOptions(cmd, app, sf, "/data")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no bucket given")
}

func TestSyncCmd_MirrorsDirectory(t *testing.T) {
	memoryStore = testutil.NewMemoryStore("bkt")
	t.Cleanup(func() { memoryStore = nil })
	memoryStore.Seed("bkt", "backup/b.txt", []byte("bb"))
	memoryStore.Seed("bkt", "backup/d.txt", []byte("stale"))

	src := t.TempDir()
	writeFiles(t, src, map[string]string{
		"a.txt":     "a",
		"b.txt":     "bb",
		"sub/c.txt": "ccc",
	})

	app := newTestApp(t, testConfig())
	cmd := newSyncCmd(&rootFlags{})
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs([]string{src, "--provider", "memory", "--bucket", "bkt", "--prefix", "backup", "--delete", "--force", "--no-progress", "-o", "json"})

	require.NoError(t, cmd.ExecuteContext(withApp(context.Background(), app)))

	var report struct {
		Summary struct {
			Uploaded int `json:"uploaded"`
			Skipped  int `json:"skipped"`
			Deleted  int `json:"deleted"`
			Failed   int `json:"failed"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	assert.Equal(t, 2, report.Summary.Uploaded)
	assert.Equal(t, 1, report.Summary.Skipped)
	assert.Equal(t, 1, report.Summary.Deleted)
	assert.Equal(t, 0, report.Summary.Failed)

	assert.Equal(t, []string{"backup/a.txt", "backup/b.txt", "backup/sub/c.txt"}, memoryStore.Keys("bkt"))
	assert.Contains(t, errOut.String(), "memory://bkt/backup")
}

func TestSyncCmd_DeclinedDeletionKeepsOrphans(t *testing.T) {
	memoryStore = testutil.NewMemoryStore("bkt")
	t.Cleanup(func() { memoryStore = nil })
	memoryStore.Seed("bkt", "old.txt", []byte("x"))

	src := t.TempDir()
	writeFiles(t, src, map[string]string{"new.txt": "n"})

	app := newTestApp(t, testConfig())
	cmd := newSyncCmd(&rootFlags{})
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(bytes.NewBufferString("no\n"))
	cmd.SetArgs([]string{src, "-p", "memory", "-b", "bkt", "--delete", "--no-progress"})

	require.NoError(t, cmd.ExecuteContext(withApp(context.Background(), app)))

	assert.Contains(t, errOut.String(), "- old.txt")
	assert.Contains(t, out.String(), "Deletion of remote orphans was skipped.")
	assert.Equal(t, []string{"new.txt", "old.txt"}, memoryStore.Keys("bkt"))
}

func TestSyncCmd_RejectsUnknownFormat(t *testing.T) {
	app := newTestApp(t, testConfig())
	cmd := newSyncCmd(&rootFlags{})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{t.TempDir(), "-b", "bkt", "-o", "xml"})

	err := cmd.ExecuteContext(withApp(context.Background(), app))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported output format 'xml'")
}
