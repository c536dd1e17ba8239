// File: internal/testutil/helpers.go
package testutil

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// WriteTree creates every file (absolute path → content) on fs
func WriteTree(t testing.TB, fs afero.Fs, files map[string]string) {
	t.Helper()
	for name, content := range files {
		require.NoError(t, afero.WriteFile(fs, name, []byte(content), 0o644))
	}
}

// DenyOpenFs fails Open on the listed paths with a permission error,
// like a directory the current user cannot read.
type DenyOpenFs struct {
	afero.Fs
	Denied []string
}

func (fs *DenyOpenFs) Open(name string) (afero.File, error) {
	for _, d := range fs.Denied {
		if filepath.Clean(name) == filepath.Clean(d) {
			return nil, &os.PathError{Op: "open", Path: name, Err: os.ErrPermission}
		}
	}
	return fs.Fs.Open(name)
}
