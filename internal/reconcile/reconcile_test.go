package reconcile

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"bucketmirror/internal/index"
	"bucketmirror/internal/retry"
	"bucketmirror/internal/scanner"
	"bucketmirror/internal/stats"
	"bucketmirror/internal/testutil"
	"bucketmirror/pkg/storage"
	"bucketmirror/pkg/storage/mocks"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const bucket = "backups"

func fastRetry() retry.Policy {
	return retry.Policy{Attempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

type fixture struct {
	fs    afero.Fs
	store *testutil.MemoryStore
	idx   *index.Index
	stats *stats.Stats
}

func newFixture(t *testing.T, files map[string]string) *fixture {
	t.Helper()
	fs := afero.NewMemMapFs()
	testutil.WriteTree(t, fs, files)
	return &fixture{
		fs:    fs,
		store: testutil.NewMemoryStore(bucket),
		idx:   index.New(testutil.DiscardLogger()),
		stats: stats.New(),
	}
}

func (f *fixture) reconciler(opts Options) *Reconciler {
	opts.Bucket = bucket
	opts.Retry = fastRetry()
	return New(f.store, f.fs, f.idx, f.stats, opts, testutil.DiscardLogger())
}

func local(abs, rel string, size int64) scanner.LocalFile {
	return scanner.LocalFile{AbsPath: abs, RelPath: rel, Size: size}
}

func TestSyncKey(t *testing.T) {
	tests := []struct {
		prefix, rel, want string
	}{
		{"backup", "a/b.jpg", "backup/a/b.jpg"},
		{"/backup/", "a/b.jpg", "backup/a/b.jpg"},
		{"", "a/b.jpg", "a/b.jpg"},
		{"p", "/x", "p/x"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SyncKey(tt.prefix, tt.rel), "SyncKey(%q, %q)", tt.prefix, tt.rel)
	}
}

func TestSyncKey_Backslash(t *testing.T) {
	if filepath.Separator == '\\' {
		assert.Equal(t, "backup/a/b.jpg", SyncKey("backup", `a\b.jpg`))
		assert.Equal(t, "photos/2024/raw/img.cr2", SyncKey(`photos\2024`, `raw\img.cr2`))
		return
	}
	// a POSIX file name may hold a backslash; it must not collide with a nested path
	assert.Equal(t, "backup/a\\b.jpg", SyncKey("backup", `a\b.jpg`))
	assert.NotEqual(t, SyncKey("backup", "a/b.jpg"), SyncKey("backup", `a\b.jpg`))

	rel, ok := RelPath("backup", SyncKey("backup", `a\b.jpg`))
	assert.True(t, ok)
	assert.Equal(t, `a\b.jpg`, rel)
}

func TestRelPath(t *testing.T) {
	rel, ok := RelPath("backup", "backup/a/b.jpg")
	assert.True(t, ok)
	assert.Equal(t, "a/b.jpg", rel)

	_, ok = RelPath("backup", "other/a")
	assert.False(t, ok)

	rel, ok = RelPath("", "a")
	assert.True(t, ok)
	assert.Equal(t, "a", rel)
}

func TestProcess_UploadsMissingFile(t *testing.T) {
	f := newFixture(t, map[string]string{"/src/a.txt": "hello"})
	r := f.reconciler(Options{Prefix: "backup"})

	res := r.Process(context.Background(), local("/src/a.txt", "a.txt", 5))

	require.NoError(t, res.Err)
	assert.Equal(t, ActionUpload, res.Action)
	assert.Equal(t, "backup/a.txt", res.Key)

	data, ok := f.store.Object(bucket, "backup/a.txt")
	require.True(t, ok)
	assert.Equal(t, "hello", string(data))

	size, ok := f.idx.Lookup("backup/a.txt")
	assert.True(t, ok)
	assert.Equal(t, int64(5), size)

	got := f.stats.Snapshot()
	assert.Equal(t, int64(1), got.Uploaded)
	assert.Equal(t, int64(5), got.BytesUploaded)
}

func TestProcess_SkipsSameSize(t *testing.T) {
	f := newFixture(t, map[string]string{"/src/a.txt": "hello"})
	f.idx.RecordUpload("backup/a.txt", 5)
	r := f.reconciler(Options{Prefix: "backup"})

	res := r.Process(context.Background(), local("/src/a.txt", "a.txt", 5))

	assert.Equal(t, ActionSkip, res.Action)
	assert.Equal(t, 0, f.store.TotalPutCalls())
	assert.Equal(t, int64(1), f.stats.Snapshot().Skipped)
}

func TestProcess_ReuploadsOnSizeMismatch(t *testing.T) {
	f := newFixture(t, map[string]string{"/src/a.txt": "hello world"})
	f.idx.RecordUpload("backup/a.txt", 5)
	r := f.reconciler(Options{Prefix: "backup"})

	res := r.Process(context.Background(), local("/src/a.txt", "a.txt", 11))

	require.NoError(t, res.Err)
	assert.Equal(t, ActionUpload, res.Action)
	assert.Equal(t, 1, f.store.PutCalls("backup/a.txt"))
	size, _ := f.idx.Lookup("backup/a.txt")
	assert.Equal(t, int64(11), size)
}

func TestProcess_DryRunHasNoSideEffects(t *testing.T) {
	f := newFixture(t, map[string]string{"/src/a.txt": "hello"})
	r := f.reconciler(Options{Prefix: "backup", DryRun: true})

	res := r.Process(context.Background(), local("/src/a.txt", "a.txt", 5))

	assert.True(t, res.DryRun)
	assert.Equal(t, ActionUpload, res.Action)
	assert.Equal(t, 0, f.store.TotalPutCalls())
	_, ok := f.idx.Lookup("backup/a.txt")
	assert.False(t, ok)
	assert.Equal(t, int64(1), f.stats.Snapshot().Uploaded)
}

func TestProcess_GivesUpAfterThreeAttempts(t *testing.T) {
	f := newFixture(t, map[string]string{"/src/a.txt": "hello"})
	f.store.FailPut("a.txt", 10)
	r := f.reconciler(Options{})

	res := r.Process(context.Background(), local("/src/a.txt", "a.txt", 5))

	require.Error(t, res.Err)
	var exhausted *retry.ExhaustedError
	assert.ErrorAs(t, res.Err, &exhausted)
	assert.Equal(t, 3, f.store.PutCalls("a.txt"))

	got := f.stats.Snapshot()
	assert.Equal(t, int64(1), got.Failed)
	assert.Equal(t, int64(0), got.Uploaded)
	_, ok := f.idx.Lookup("a.txt")
	assert.False(t, ok)
}

func TestProcess_RecoversFromTransientFailure(t *testing.T) {
	f := newFixture(t, map[string]string{"/src/a.txt": "hello"})
	f.store.FailPut("a.txt", 2)
	r := f.reconciler(Options{})

	res := r.Process(context.Background(), local("/src/a.txt", "a.txt", 5))

	require.NoError(t, res.Err)
	assert.Equal(t, 3, f.store.PutCalls("a.txt"))
	assert.Equal(t, int64(1), f.stats.Snapshot().Uploaded)
}

func TestProcess_VanishedFileIsNotRetried(t *testing.T) {
	f := newFixture(t, map[string]string{})
	r := f.reconciler(Options{})

	res := r.Process(context.Background(), local("/src/gone.txt", "gone.txt", 3))

	require.Error(t, res.Err)
	assert.True(t, retry.IsPermanent(res.Err))
	assert.Equal(t, 0, f.store.TotalPutCalls())
	assert.Equal(t, int64(1), f.stats.Snapshot().Failed)
}

func TestProcess_SetsContentTypeAndVerifiesSize(t *testing.T) {
	fs := afero.NewMemMapFs()
	testutil.WriteTree(t, fs, map[string]string{"/src/notes.txt": "plain text content"})

	ctrl := gomock.NewController(t)
	store := mocks.NewMockObjectStore(ctrl)

	gomock.InOrder(
		store.EXPECT().PutObject(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, in storage.PutInput) error {
			assert.Equal(t, bucket, in.Bucket)
			assert.Equal(t, "notes.txt", in.Key)
			assert.Equal(t, int64(18), in.Size)
			assert.Contains(t, in.ContentType, "text/plain")
			return nil
		}),
		store.EXPECT().HeadObject(gomock.Any(), bucket, "notes.txt").Return(storage.Object{Key: "notes.txt", Size: 18}, nil),
	)

	st := stats.New()
	r := New(store, fs, index.New(testutil.DiscardLogger()), st, Options{Bucket: bucket, VerifySize: true, Retry: fastRetry()}, testutil.DiscardLogger())

	res := r.Process(context.Background(), local("/src/notes.txt", "notes.txt", 18))
	require.NoError(t, res.Err)
	assert.Equal(t, int64(1), st.Snapshot().Uploaded)
}

func TestProcess_VerifySizeMismatchIsRetried(t *testing.T) {
	fs := afero.NewMemMapFs()
	testutil.WriteTree(t, fs, map[string]string{"/src/a.bin": "abcd"})

	ctrl := gomock.NewController(t)
	store := mocks.NewMockObjectStore(ctrl)
	store.EXPECT().PutObject(gomock.Any(), gomock.Any()).Return(nil).Times(3)
	store.EXPECT().HeadObject(gomock.Any(), bucket, "a.bin").Return(storage.Object{Size: 1}, nil).Times(3)

	st := stats.New()
	r := New(store, fs, index.New(testutil.DiscardLogger()), st, Options{Bucket: bucket, VerifySize: true, Retry: fastRetry()}, testutil.DiscardLogger())

	res := r.Process(context.Background(), local("/src/a.bin", "a.bin", 4))
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "does not match")
	assert.Equal(t, int64(1), st.Snapshot().Failed)
}

func TestOrphans(t *testing.T) {
	keys := []string{"p/a", "p/b", "p/c.tmp", "p/locked/x", "p/d"}
	seen := map[string]struct{}{"p/a": {}}
	protect := func(key string) bool {
		return key == "p/c.tmp" || key == "p/locked/x"
	}

	assert.Equal(t, []string{"p/b", "p/d"}, Orphans(keys, seen, protect))
	assert.Equal(t, []string{"p/b", "p/c.tmp", "p/locked/x", "p/d"}, Orphans(keys, seen, nil))
}

func TestDelete(t *testing.T) {
	f := newFixture(t, nil)
	f.store.Seed(bucket, "backup/old.txt", []byte("old"))
	f.idx.RecordUpload("backup/old.txt", 3)
	r := f.reconciler(Options{Prefix: "backup"})

	res := r.Delete(context.Background(), "backup/old.txt")

	require.NoError(t, res.Err)
	assert.Equal(t, ActionDelete, res.Action)
	assert.Empty(t, f.store.Keys(bucket))
	_, ok := f.idx.Lookup("backup/old.txt")
	assert.False(t, ok)
	assert.Equal(t, int64(1), f.stats.Snapshot().Deleted)
}

func TestDelete_DryRun(t *testing.T) {
	f := newFixture(t, nil)
	f.store.Seed(bucket, "old.txt", []byte("old"))
	f.idx.RecordUpload("old.txt", 3)
	r := f.reconciler(Options{DryRun: true})

	res := r.Delete(context.Background(), "old.txt")

	assert.True(t, res.DryRun)
	assert.Equal(t, []string{"old.txt"}, f.store.Keys(bucket))
	assert.Equal(t, 0, f.store.TotalDeleteCalls())
	assert.Equal(t, int64(1), f.stats.Snapshot().Deleted)
}

func TestDelete_FailureIsCounted(t *testing.T) {
	f := newFixture(t, nil)
	f.store.SetDeleteError(errors.New("throttled"))
	r := f.reconciler(Options{})

	res := r.Delete(context.Background(), "old.txt")

	require.Error(t, res.Err)
	assert.Equal(t, 3, f.store.TotalDeleteCalls())
	assert.Equal(t, int64(1), f.stats.Snapshot().Failed)
	assert.Equal(t, int64(0), f.stats.Snapshot().Deleted)
}
