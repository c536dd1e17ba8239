// File: internal/scanner/scanner.go
package scanner

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// LocalFile is a regular file found under the scan root
type LocalFile struct {
	AbsPath string
	// Slash separated, relative to the scan root
	RelPath string
	Size    int64
}

// ScanError is returned when the scan cannot start at all
type ScanError struct {
	Root string
	Err  error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("cannot scan source directory %s: %v", e.Root, e.Err)
}

func (e *ScanError) Unwrap() error {
	return e.Err
}

// EntryError reports a single entry that could not be read. It does not stop the scan
type EntryError struct {
	RelPath string
	Dir     bool
	Err     error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("cannot read %s: %v", e.RelPath, e.Err)
}

func (e *EntryError) Unwrap() error {
	return e.Err
}

var errStopWalk = errors.New("scanner: stop walk")

type Scanner struct {
	fs      afero.Fs
	root    string
	matcher *matcher
}

func New(fs afero.Fs, root string, excludes []string) (*Scanner, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, &ScanError{Root: root, Err: err}
	}

	info, err := fs.Stat(abs)
	if err != nil {
		return nil, &ScanError{Root: root, Err: err}
	}
	if !info.IsDir() {
		return nil, &ScanError{Root: root, Err: errors.New("not a directory")}
	}

	m, err := newMatcher(excludes)
	if err != nil {
		return nil, &ScanError{Root: root, Err: err}
	}

	return &Scanner{fs: fs, root: abs, matcher: m}, nil
}

func (s *Scanner) Root() string {
	return s.root
}

// Excluded reports whether a root-relative, slash separated path is excluded
func (s *Scanner) Excluded(rel string) bool {
	return s.matcher.match(rel, false)
}

// Files walks the tree lazily. Each call starts a fresh walk.
// Unreadable entries are yielded as *EntryError and the walk continues; a cancelled ctx ends it with ctx.Err()
func (s *Scanner) Files(ctx context.Context) iter.Seq2[LocalFile, error] {
	return func(yield func(LocalFile, error) bool) {
		err := afero.Walk(s.fs, s.root, func(p string, info os.FileInfo, walkErr error) error {
			if err := ctx.Err(); err != nil {
				return err
			}

			rel, err := filepath.Rel(s.root, p)
			if err != nil {
				return err
			}
			rel = filepath.ToSlash(rel)

			if walkErr != nil {
				isDir := info != nil && info.IsDir()
				if rel != "." && s.matcher.match(rel, isDir) {
					return nil
				}
				if !yield(LocalFile{}, &EntryError{RelPath: rel, Dir: isDir, Err: walkErr}) {
					return errStopWalk
				}
				if isDir {
					return filepath.SkipDir
				}
				return nil
			}

			if info.IsDir() {
				if rel != "." && s.matcher.match(rel, true) {
					return filepath.SkipDir
				}
				return nil
			}

			if !info.Mode().IsRegular() || s.Excluded(rel) {
				return nil
			}

			if !yield(LocalFile{AbsPath: p, RelPath: rel, Size: info.Size()}, nil) {
				return errStopWalk
			}
			return nil
		})

		if err != nil && !errors.Is(err, errStopWalk) && !errors.Is(err, filepath.SkipDir) {
			yield(LocalFile{}, err)
		}
	}
}
