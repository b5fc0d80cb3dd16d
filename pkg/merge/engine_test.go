package merge

import (
	"context"
	"os"
	"path/filepath"
	gosync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdejongh/assurance/pkg/compare"
	"github.com/sdejongh/assurance/pkg/models"
	"github.com/sdejongh/assurance/pkg/output"
	"github.com/sdejongh/assurance/pkg/storage"
	"github.com/sdejongh/assurance/pkg/sync"
	"github.com/sdejongh/assurance/pkg/workerpool"
)

var fixedTime = time.Date(2024, 3, 9, 14, 5, 6, 0, time.UTC)

type fixture struct {
	t       *testing.T
	source  string
	target  string
	trash   string
	fs      *storage.Local
	pool    *workerpool.Pool
	mu      gosync.Mutex
	publish []string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	f := &fixture{
		t:      t,
		source: filepath.Join(root, "source"),
		target: filepath.Join(root, "target"),
		trash:  filepath.Join(root, "deleted"),
		fs:     storage.NewLocal(),
		pool:   workerpool.New(4),
	}
	require.NoError(t, os.MkdirAll(f.source, 0755))
	require.NoError(t, os.MkdirAll(f.target, 0755))
	t.Cleanup(f.pool.Close)
	return f
}

func (f *fixture) src(name string) string { return filepath.Join(f.source, name) }
func (f *fixture) dst(name string) string { return filepath.Join(f.target, name) }

func (f *fixture) write(path, content string) {
	f.t.Helper()
	require.NoError(f.t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(f.t, os.WriteFile(path, []byte(content), 0644))
	require.NoError(f.t, os.Chtimes(path, fixedTime, fixedTime))
}

func (f *fixture) read(path string) string {
	f.t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(f.t, err)
	return string(data)
}

func (f *fixture) config() Config {
	return Config{
		Filesystem: f.fs,
		Pool:       f.pool,
		Sink: output.FuncSink(func(msg string) {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.publish = append(f.publish, msg)
		}),
		DeletedItemsDir: f.trash,
	}
}

func (f *fixture) engine(strategy models.MergeStrategy) *Engine {
	f.t.Helper()
	e, err := New(strategy, f.config())
	require.NoError(f.t, err)
	return e
}

func (f *fixture) scan(definition *models.ScanDefinition) *models.Scan {
	f.t.Helper()
	factory := compare.NewFactory(f.fs, 4096, nil)
	scanner := sync.NewScanner(f.fs, factory, f.pool, nil, nil, sync.ScannerConfig{DeepScan: true})

	var scan *models.Scan
	var err error
	if definition == nil {
		scan, err = scanner.RunPair(context.Background(), f.source, f.target)
	} else {
		scan, err = scanner.Run(context.Background(), definition)
	}
	require.NoError(f.t, err)
	return scan
}

func byName(scan *models.Scan) map[string]*models.ComparisonResult {
	out := make(map[string]*models.ComparisonResult)
	for _, r := range scan.Results() {
		name := r.Source.Name()
		if name == "" {
			name = r.Target.Name()
		}
		out[name] = r
	}
	return out
}

func TestMergeScan_SourceWinsConverges(t *testing.T) {
	f := newFixture(t)

	f.write(f.src("changed.txt"), "new")
	f.write(f.dst("changed.txt"), "old")
	f.write(f.src("added/deep/file.txt"), "added")
	f.write(f.dst("removed.txt"), "gone")
	f.write(f.src("kind"), "a file")
	f.write(f.dst("kind/child.txt"), "a directory")
	f.write(f.src("real.txt"), "real")
	f.write(f.dst("real.txt"), "real")
	require.NoError(t, os.Symlink("real.txt", f.src("link")))
	f.write(f.dst("link"), "not a link")

	scan := f.scan(nil)
	require.Equal(t, 5, scan.Len())

	stats, err := f.engine(models.StrategySource).MergeScan(context.Background(), scan)
	require.NoError(t, err)
	assert.Equal(t, 5, stats.Submitted)
	assert.Zero(t, stats.Failed)

	results := byName(scan)
	assert.Equal(t, models.ResolutionReplaceTarget, results["changed.txt"].Resolution)
	assert.Equal(t, models.ResolutionReplaceTarget, results["added"].Resolution)
	assert.Equal(t, models.ResolutionDeleteTarget, results["removed.txt"].Resolution)
	assert.Equal(t, models.ResolutionReplaceTarget, results["kind"].Resolution)
	assert.Equal(t, models.ResolutionReplaceTarget, results["link"].Resolution)

	rescan := f.scan(nil)
	assert.Zero(t, rescan.Len(), "rescan after source-wins merge: %v", byName(rescan))

	trashed := results["removed.txt"].DeletedItemLocation(scan.DeletedItemsDir(f.trash), models.SideTarget)
	assert.Equal(t, "gone", f.read(trashed))
}

func TestMergeScan_TargetWins(t *testing.T) {
	f := newFixture(t)

	f.write(f.src("changed.txt"), "source")
	f.write(f.dst("changed.txt"), "target")
	f.write(f.src("extra.txt"), "only in source")

	scan := f.scan(nil)
	_, err := f.engine(models.StrategyTarget).MergeScan(context.Background(), scan)
	require.NoError(t, err)

	results := byName(scan)
	assert.Equal(t, models.ResolutionReplaceSource, results["changed.txt"].Resolution)
	assert.Equal(t, models.ResolutionDeleteSource, results["extra.txt"].Resolution)
	assert.Equal(t, "target", f.read(f.src("changed.txt")))
	assert.NoFileExists(t, f.src("extra.txt"))
}

func TestMergeScan_BidirectionalScenario(t *testing.T) {
	f := newFixture(t)

	f.write(f.src("a/1.txt"), "X")
	f.write(f.src("a/2.txt"), "2")
	f.write(f.dst("a/1.txt"), "Y")

	scan := f.scan(nil)
	results := byName(scan)
	require.Len(t, results, 2)
	require.Equal(t, models.ReasonCompareFailed, results["1.txt"].Reason)
	require.Equal(t, models.ReasonTargetDoesNotExist, results["2.txt"].Reason)

	_, err := f.engine(models.StrategyBoth).MergeScan(context.Background(), scan)
	require.NoError(t, err)

	assert.Equal(t, models.ResolutionKeepBoth, results["1.txt"].Resolution)
	assert.Equal(t, models.ResolutionReplaceTarget, results["2.txt"].Resolution)

	for _, tree := range []string{f.source, f.target} {
		assert.Equal(t, "X", f.read(filepath.Join(tree, "a/1.source-conflict.txt")))
		assert.Equal(t, "Y", f.read(filepath.Join(tree, "a/1.target-conflict.txt")))
		assert.NoFileExists(t, filepath.Join(tree, "a/1.txt"))
	}
	assert.Equal(t, "2", f.read(f.dst("a/2.txt")))

	assert.Zero(t, f.scan(nil).Len())
}

func TestMergeScan_AutoResolveOff(t *testing.T) {
	tests := []struct {
		strategy models.MergeStrategy
		merged   []string
	}{
		// source-wins never deletes target-only items without auto-resolution
		{models.StrategySource, []string{"source-only.txt"}},
		// target-wins never deletes source-only items without auto-resolution
		{models.StrategyTarget, []string{"target-only.txt"}},
		{models.StrategyBoth, []string{"source-only.txt", "target-only.txt"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.strategy), func(t *testing.T) {
			f := newFixture(t)
			f.write(f.src("conflict.txt"), "a")
			f.write(f.dst("conflict.txt"), "b")
			f.write(f.src("source-only.txt"), "s")
			f.write(f.dst("target-only.txt"), "t")

			def := models.NewScanDefinition("manual")
			def.MergeStrategy = tt.strategy
			def.AddMapping(f.source, f.target)

			scan := f.scan(def)
			require.Equal(t, 3, scan.Len())

			engine, err := ForScan(scan, f.config())
			require.NoError(t, err)
			assert.Equal(t, tt.strategy, engine.Strategy())

			stats, err := engine.MergeScan(context.Background(), scan)
			require.NoError(t, err)
			assert.Equal(t, len(tt.merged), stats.Submitted)
			assert.Equal(t, 3-len(tt.merged), stats.Skipped)

			results := byName(scan)
			assert.Equal(t, models.ResolutionUnresolved, results["conflict.txt"].Resolution)
			for _, name := range tt.merged {
				assert.NotEqual(t, models.ResolutionUnresolved, results[name].Resolution, name)
			}
		})
	}
}

func TestMergeScan_AutoResolveOffFollowsRunningEngine(t *testing.T) {
	tests := []struct {
		definition models.MergeStrategy
		engine     models.MergeStrategy
		kept       string
	}{
		{models.StrategyTarget, models.StrategySource, "target-only.txt"},
		{models.StrategySource, models.StrategyTarget, "source-only.txt"},
	}

	for _, tt := range tests {
		t.Run(string(tt.engine), func(t *testing.T) {
			f := newFixture(t)
			f.write(f.src("source-only.txt"), "s")
			f.write(f.dst("target-only.txt"), "t")

			def := models.NewScanDefinition("manual")
			def.MergeStrategy = tt.definition
			def.AddMapping(f.source, f.target)
			scan := f.scan(def)
			require.Equal(t, 2, scan.Len())

			// an explicit strategy overrides the definition's
			stats, err := f.engine(tt.engine).MergeScan(context.Background(), scan)
			require.NoError(t, err)
			assert.Equal(t, 1, stats.Submitted)
			assert.Equal(t, 1, stats.Skipped)

			results := byName(scan)
			assert.Equal(t, models.ResolutionUnresolved, results[tt.kept].Resolution)
			assert.FileExists(t, filepath.Join(f.source, "source-only.txt"))
			assert.FileExists(t, filepath.Join(f.target, "target-only.txt"))
			assert.NoDirExists(t, f.trash)
		})
	}
}

// faultyFS hides paths from Lstat and fails copies to one destination
type faultyFS struct {
	storage.Filesystem
	hidden     string
	failCopyTo string
}

func (fs *faultyFS) Lstat(ctx context.Context, path string) (*storage.FileInfo, error) {
	if path == fs.hidden {
		return nil, os.ErrNotExist
	}
	return fs.Filesystem.Lstat(ctx, path)
}

func (fs *faultyFS) Copy(ctx context.Context, src, dst string) error {
	if dst == fs.failCopyTo {
		if err := fs.Filesystem.Copy(ctx, src, dst); err != nil {
			return err
		}
		return os.ErrPermission
	}
	return fs.Filesystem.Copy(ctx, src, dst)
}

func TestMergeResult_DecidesThroughFilesystem(t *testing.T) {
	f := newFixture(t)
	f.write(f.src("a.txt"), "source")
	f.write(f.dst("a.txt"), "target")

	scan := models.NewScan(nil)
	result := models.NewComparisonResult(f.src("a.txt"), f.dst("a.txt"), models.ReasonCompareFailed)
	scan.AddResult(result)

	cfg := f.config()
	cfg.Filesystem = &faultyFS{Filesystem: f.fs, hidden: f.src("a.txt")}
	engine, err := NewSourceEngine(cfg)
	require.NoError(t, err)

	// the filesystem reports no source, so source-wins trashes the target
	require.NoError(t, engine.MergeResult(context.Background(), scan, result))
	assert.Equal(t, models.ResolutionDeleteTarget, result.Resolution)
	assert.False(t, result.Source.Exists)
	assert.False(t, result.Target.Exists)
	assert.NoFileExists(t, f.dst("a.txt"))
}

func TestKeepBoth_RollsBackOnFailure(t *testing.T) {
	f := newFixture(t)
	f.write(f.src("1.txt"), "X")
	f.write(f.dst("1.txt"), "Y")

	scan := models.NewScan(nil)
	result := models.NewComparisonResult(f.src("1.txt"), f.dst("1.txt"), models.ReasonCompareFailed)
	scan.AddResult(result)

	cfg := f.config()
	cfg.Filesystem = &faultyFS{Filesystem: f.fs, failCopyTo: f.src("1.target-conflict.txt")}
	engine, err := NewBidirectionalEngine(cfg)
	require.NoError(t, err)

	err = engine.MergeResult(context.Background(), scan, result)
	require.ErrorIs(t, err, os.ErrPermission)
	assert.Equal(t, models.ResolutionProcessingError, result.Resolution)

	assert.Equal(t, "X", f.read(f.src("1.txt")))
	assert.Equal(t, "Y", f.read(f.dst("1.txt")))
	for _, tree := range []string{f.source, f.target} {
		assert.NoFileExists(t, filepath.Join(tree, "1.source-conflict.txt"))
		assert.NoFileExists(t, filepath.Join(tree, "1.target-conflict.txt"))
	}

	// a retry starts again from the original pair
	result.Reset()
	require.NoError(t, f.engine(models.StrategyBoth).MergeResult(context.Background(), scan, result))
	assert.Equal(t, models.ResolutionKeepBoth, result.Resolution)
	for _, tree := range []string{f.source, f.target} {
		assert.Equal(t, "X", f.read(filepath.Join(tree, "1.source-conflict.txt")))
		assert.Equal(t, "Y", f.read(filepath.Join(tree, "1.target-conflict.txt")))
	}
}

func TestMergeScan_OnlyUnresolved(t *testing.T) {
	f := newFixture(t)
	f.write(f.src("a.txt"), "a")
	f.write(f.src("b.txt"), "b")

	scan := f.scan(nil)
	byName(scan)["a.txt"].Fail(os.ErrPermission)

	stats, err := f.engine(models.StrategySource).MergeScan(context.Background(), scan)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Submitted)
	assert.Equal(t, 1, stats.Skipped)
	assert.NoFileExists(t, f.dst("a.txt"))
	assert.FileExists(t, f.dst("b.txt"))
}

func TestMergeResult_NullReference(t *testing.T) {
	f := newFixture(t)
	scan := models.NewScan(nil)
	result := models.NewComparisonResult(f.src("x"), "", models.ReasonFileNull)
	scan.AddResult(result)

	for _, strategy := range []models.MergeStrategy{models.StrategySource, models.StrategyTarget, models.StrategyBoth} {
		result.Reset()
		err := f.engine(strategy).MergeResult(context.Background(), scan, result)
		assert.ErrorIs(t, err, models.ErrNullFileReference)
		assert.Equal(t, models.ResolutionProcessingError, result.Resolution)
		assert.Contains(t, result.ResolutionError, "null file reference")
	}
}

func TestMergeScan_FailureIsIsolated(t *testing.T) {
	f := newFixture(t)
	f.write(f.src("ok.txt"), "ok")

	scan := models.NewScan(nil)
	broken := models.NewComparisonResult(f.src("ok.txt"), "", models.ReasonFileNull)
	scan.AddResult(broken)
	good := models.NewComparisonResult(f.src("ok.txt"), f.dst("ok.txt"), models.ReasonTargetDoesNotExist)
	scan.AddResult(good)

	stats, err := f.engine(models.StrategySource).MergeScan(context.Background(), scan)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, models.ResolutionProcessingError, broken.Resolution)
	assert.Equal(t, models.ResolutionReplaceTarget, good.Resolution)
}

func TestRestoreDeletedItem(t *testing.T) {
	t.Run("FromTrash", func(t *testing.T) {
		f := newFixture(t)
		f.write(f.src("doc.txt"), "precious")

		scan := f.scan(nil)
		engine := f.engine(models.StrategyTarget)
		_, err := engine.MergeScan(context.Background(), scan)
		require.NoError(t, err)

		result := byName(scan)["doc.txt"]
		require.Equal(t, models.ResolutionDeleteSource, result.Resolution)
		require.NoFileExists(t, f.src("doc.txt"))

		require.NoError(t, engine.RestoreDeletedItem(context.Background(), scan, result))
		assert.Equal(t, "precious", f.read(f.src("doc.txt")))
		assert.Equal(t, models.ResolutionUnresolved, result.Resolution)
		assert.Empty(t, result.ResolutionError)
	})

	t.Run("FromCounterpart", func(t *testing.T) {
		f := newFixture(t)
		f.write(f.dst("doc.txt"), "target copy")

		scan := models.NewScan(nil)
		result := models.NewComparisonResult(f.src("doc.txt"), f.dst("doc.txt"), models.ReasonSourceDoesNotExist)
		scan.AddResult(result)
		result.Resolve(models.ResolutionDeleteSource)

		// any engine restores by resolution
		require.NoError(t, f.engine(models.StrategySource).RestoreDeletedItem(context.Background(), scan, result))
		assert.Equal(t, "target copy", f.read(f.src("doc.txt")))
		assert.Equal(t, models.ResolutionUnresolved, result.Resolution)
	})

	t.Run("Missing", func(t *testing.T) {
		f := newFixture(t)
		scan := models.NewScan(nil)
		result := models.NewComparisonResult(f.src("doc.txt"), f.dst("doc.txt"), models.ReasonTargetDoesNotExist)
		scan.AddResult(result)
		result.Resolve(models.ResolutionDeleteTarget)

		err := f.engine(models.StrategyBoth).RestoreDeletedItem(context.Background(), scan, result)
		assert.ErrorIs(t, err, models.ErrItemToRestoreMissing)
		assert.Equal(t, models.ResolutionProcessingError, result.Resolution)
		assert.Equal(t, "item to restore does not exist", result.ResolutionError)
	})

	t.Run("NotDeleted", func(t *testing.T) {
		f := newFixture(t)
		scan := models.NewScan(nil)
		result := models.NewComparisonResult(f.src("doc.txt"), f.dst("doc.txt"), models.ReasonCompareFailed)
		scan.AddResult(result)
		result.Resolve(models.ResolutionKeepBoth)

		err := f.engine(models.StrategyBoth).RestoreDeletedItem(context.Background(), scan, result)
		assert.ErrorIs(t, err, models.ErrNotRestorable)
		assert.Equal(t, models.ResolutionKeepBoth, result.Resolution)
	})
}

func TestProgressMessages(t *testing.T) {
	f := newFixture(t)
	f.write(f.src("a.txt"), "a")

	scan := f.scan(nil)
	engine := f.engine(models.StrategySource)
	_, err := engine.MergeScan(context.Background(), scan)
	require.NoError(t, err)

	assert.Equal(t, []string{"Merging " + f.src("a.txt") + " to " + f.dst("a.txt")}, f.publish)
}

func TestNew(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		strategy models.MergeStrategy
		want     models.MergeStrategy
	}{
		{models.StrategySource, models.StrategySource},
		{models.StrategyTarget, models.StrategyTarget},
		{models.StrategyBoth, models.StrategyBoth},
		{"", models.StrategyBoth},
		{"Bidirectional", models.StrategyBoth},
	}
	for _, tt := range tests {
		e, err := New(tt.strategy, f.config())
		require.NoError(t, err)
		assert.Equal(t, tt.want, e.Strategy())
	}

	_, err := New("newest", f.config())
	var verr *models.ValidationError
	assert.ErrorAs(t, err, &verr)

	cfg := f.config()
	cfg.DeletedItemsDir = ""
	_, err = New(models.StrategySource, cfg)
	assert.ErrorAs(t, err, &verr)
}

func TestConflictPath(t *testing.T) {
	tests := []struct {
		path string
		side models.Side
		want string
	}{
		{"/a/1.txt", models.SideSource, "/a/1.source-conflict.txt"},
		{"/a/archive.tar.gz", models.SideTarget, "/a/archive.tar.target-conflict.gz"},
		{"/a/README", models.SideSource, "/a/README.source-conflict"},
		{"/a/.bashrc", models.SideTarget, "/a/.bashrc.target-conflict"},
	}
	for _, tt := range tests {
		got := conflictPath(filepath.FromSlash(tt.path), tt.side)
		assert.Equal(t, filepath.FromSlash(tt.want), got)
	}
}
