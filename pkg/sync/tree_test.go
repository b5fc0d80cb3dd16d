package sync

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	gosync "sync"
	"testing"
	"time"

	"github.com/sdejongh/assurance/pkg/compare"
	"github.com/sdejongh/assurance/pkg/models"
	"github.com/sdejongh/assurance/pkg/output"
	"github.com/sdejongh/assurance/pkg/storage"
	"github.com/sdejongh/assurance/pkg/workerpool"
)

var fixedTime = time.Date(2024, 3, 9, 14, 5, 6, 0, time.UTC)

// TestHelper provides utilities for tree comparison tests
type TestHelper struct {
	t         *testing.T
	tempDir   string
	sourceDir string
	targetDir string
	fs        *storage.Local
	pool      *workerpool.Pool
}

// NewTestHelper creates a new test helper with empty source and target trees
func NewTestHelper(t *testing.T) *TestHelper {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "assurance-tree-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}

	h := &TestHelper{
		t:         t,
		tempDir:   tempDir,
		sourceDir: filepath.Join(tempDir, "source"),
		targetDir: filepath.Join(tempDir, "target"),
		fs:        storage.NewLocal(),
		pool:      workerpool.New(4),
	}
	for _, dir := range []string{h.sourceDir, h.targetDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatalf("failed to create %s: %v", dir, err)
		}
	}
	return h
}

// Cleanup stops the pool and removes all temporary files
func (h *TestHelper) Cleanup() {
	h.pool.Close()
	os.RemoveAll(h.tempDir)
}

func (h *TestHelper) Source(name string) string { return filepath.Join(h.sourceDir, name) }
func (h *TestHelper) Target(name string) string { return filepath.Join(h.targetDir, name) }

// CreateFile writes content with a fixed mode and modification time
func (h *TestHelper) CreateFile(path, content string) {
	h.t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		h.t.Fatalf("failed to create parent dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		h.t.Fatalf("failed to create file: %v", err)
	}
	if err := os.Chtimes(path, fixedTime, fixedTime); err != nil {
		h.t.Fatalf("failed to set mod time: %v", err)
	}
}

// CreateBoth writes the same file in both trees
func (h *TestHelper) CreateBoth(name, content string) {
	h.t.Helper()
	h.CreateFile(h.Source(name), content)
	h.CreateFile(h.Target(name), content)
}

func (h *TestHelper) Symlink(target, link string) {
	h.t.Helper()
	if err := os.MkdirAll(filepath.Dir(link), 0755); err != nil {
		h.t.Fatalf("failed to create parent dir: %v", err)
	}
	if err := os.Symlink(target, link); err != nil {
		h.t.Fatalf("failed to create symlink: %v", err)
	}
}

// Scanner returns a deep scanner with the given options
func (h *TestHelper) Scanner(opts models.ScanOptions, sink output.Sink) *Scanner {
	factory := compare.NewFactory(h.fs, 4096, nil)
	return NewScanner(h.fs, factory, h.pool, sink, nil, ScannerConfig{Options: opts, DeepScan: true})
}

// RunPair compares the two trees and fails the test on error
func (h *TestHelper) RunPair(opts models.ScanOptions) *models.Scan {
	h.t.Helper()
	scan, err := h.Scanner(opts, nil).RunPair(context.Background(), h.sourceDir, h.targetDir)
	if err != nil {
		h.t.Fatalf("RunPair() error = %v", err)
	}
	return scan
}

// reasons maps the base name of each result to its reason
func reasons(scan *models.Scan) map[string]models.Reason {
	out := make(map[string]models.Reason)
	for _, r := range scan.Results() {
		name := r.Source.Name()
		if name == "" {
			name = r.Target.Name()
		}
		out[name] = r.Reason
	}
	return out
}

func TestTreeComparator_Idempotence(t *testing.T) {
	h := NewTestHelper(t)
	defer h.Cleanup()

	h.CreateBoth("a/1.txt", "one")
	h.CreateBoth("a/b/2.txt", "two")
	h.CreateBoth("a/b/c/d/3.txt", "three")
	h.CreateBoth("top.txt", "")
	h.Symlink("top.txt", h.Source("link"))
	h.Symlink("top.txt", h.Target("link"))

	scan := h.RunPair(models.ScanOptions{})

	if scan.Len() != 0 {
		t.Errorf("identical trees produced %d results: %v", scan.Len(), reasons(scan))
	}
	if !scan.IsComplete() {
		t.Error("scan should be complete")
	}
}

func TestTreeComparator_ConcreteScenario(t *testing.T) {
	h := NewTestHelper(t)
	defer h.Cleanup()

	h.CreateFile(h.Source("a/1.txt"), "X")
	h.CreateFile(h.Source("a/2.txt"), "2")
	h.CreateFile(h.Target("a/1.txt"), "Y")

	scan := h.RunPair(models.ScanOptions{})

	got := reasons(scan)
	want := map[string]models.Reason{
		"1.txt": models.ReasonCompareFailed,
		"2.txt": models.ReasonTargetDoesNotExist,
	}
	if len(got) != len(want) {
		t.Fatalf("results = %v, want %v", got, want)
	}
	for name, reason := range want {
		if got[name] != reason {
			t.Errorf("%s: reason = %s, want %s", name, got[name], reason)
		}
	}
	for _, r := range scan.Results() {
		if r.Resolution != models.ResolutionUnresolved {
			t.Errorf("%s: resolution = %s, want UNRESOLVED", r.Source, r.Resolution)
		}
		if r.ScanID != scan.ID {
			t.Errorf("result scan id = %s, want %s", r.ScanID, scan.ID)
		}
	}
}

func TestTreeComparator_Symmetry(t *testing.T) {
	h := NewTestHelper(t)
	defer h.Cleanup()

	h.CreateBoth("shared.txt", "same")
	h.CreateFile(h.Source("nested/only.txt"), "only in source")
	h.CreateBoth("nested/keep.txt", "keep")

	scanner := h.Scanner(models.ScanOptions{}, nil)

	forward, err := scanner.RunPair(context.Background(), h.sourceDir, h.targetDir)
	if err != nil {
		t.Fatalf("RunPair() error = %v", err)
	}
	if got := reasons(forward); len(got) != 1 || got["only.txt"] != models.ReasonTargetDoesNotExist {
		t.Errorf("forward results = %v, want one TARGET_DOES_NOT_EXIST", got)
	}

	reverse, err := scanner.RunPair(context.Background(), h.targetDir, h.sourceDir)
	if err != nil {
		t.Fatalf("RunPair() error = %v", err)
	}
	if got := reasons(reverse); len(got) != 1 || got["only.txt"] != models.ReasonSourceDoesNotExist {
		t.Errorf("reverse results = %v, want one SOURCE_DOES_NOT_EXIST", got)
	}
}

func TestTreeComparator_ExclusionPrecedence(t *testing.T) {
	h := NewTestHelper(t)
	defer h.Cleanup()

	h.CreateFile(h.Source("notes.TMP"), "draft one")
	h.CreateFile(h.Target("notes.TMP"), "draft two")
	h.CreateFile(h.Source("cache.log"), "only in source")
	h.CreateFile(h.Target("Thumbs.db"), "only in target")
	h.CreateFile(h.Source("build/out.bin"), "binary")
	h.CreateFile(h.Source("node_modules/pkg/index.js"), "js")
	h.CreateFile(h.Source("backup.bak"), "bak")

	opts := models.NewScanOptions(
		[]string{"Thumbs.db"},
		[]string{"*.tmp", ".log"},
		[]string{"build/", "node_modules/", "*.bak"},
	)
	scan := h.RunPair(opts)

	if scan.Len() != 0 {
		t.Errorf("ignored entries produced results: %v", reasons(scan))
	}
}

func TestTreeComparator_MappingExclusions(t *testing.T) {
	h := NewTestHelper(t)
	defer h.Cleanup()

	h.CreateFile(h.Source("private/secret.txt"), "a")
	h.CreateFile(h.Target("private/secret.txt"), "b")
	h.CreateFile(h.Target("extra.txt"), "target only")
	h.CreateFile(h.Source("visible.txt"), "source only")

	def := models.NewScanDefinition("exclusions")
	mapping := def.AddMapping(h.sourceDir, h.targetDir)
	mapping.AddExclusion(h.Source("private"))
	mapping.AddExclusion(h.Target("extra.txt"))

	scan, err := h.Scanner(models.ScanOptions{}, nil).Run(context.Background(), def)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	got := reasons(scan)
	if len(got) != 1 || got["visible.txt"] != models.ReasonTargetDoesNotExist {
		t.Errorf("results = %v, want only visible.txt", got)
	}
}

func TestTreeComparator_SymbolicLinks(t *testing.T) {
	h := NewTestHelper(t)
	defer h.Cleanup()

	h.CreateBoth("real.txt", "content")
	h.CreateBoth("other.txt", "content")
	h.CreateBoth("dir/keep.txt", "keep")

	// link on one side, regular file on the other
	h.Symlink("real.txt", h.Source("file-vs-link"))
	h.CreateFile(h.Target("file-vs-link"), "content")

	// link on one side, directory on the other
	h.Symlink("dir", h.Source("dir-vs-link"))
	if err := os.MkdirAll(h.Target("dir-vs-link"), 0755); err != nil {
		t.Fatal(err)
	}

	// both links, different targets
	h.Symlink("real.txt", h.Source("retargeted"))
	h.Symlink("other.txt", h.Target("retargeted"))

	// both links, same target
	h.Symlink("real.txt", h.Source("same-link"))
	h.Symlink("real.txt", h.Target("same-link"))

	got := reasons(h.RunPair(models.ScanOptions{}))

	want := map[string]models.Reason{
		"file-vs-link": models.ReasonSymbolicLinkMismatch,
		"dir-vs-link":  models.ReasonSymbolicLinkMismatch,
		"retargeted":   models.ReasonSymbolicLinkMismatch,
	}
	if len(got) != len(want) {
		t.Fatalf("results = %v, want %v", got, want)
	}
	for name, reason := range want {
		if got[name] != reason {
			t.Errorf("%s: reason = %s, want %s", name, got[name], reason)
		}
	}
}

func TestTreeComparator_FileDirectoryMismatch(t *testing.T) {
	h := NewTestHelper(t)
	defer h.Cleanup()

	h.CreateFile(h.Source("thing"), "file")
	h.CreateFile(h.Target("thing/inside.txt"), "dir")

	got := reasons(h.RunPair(models.ScanOptions{}))
	if len(got) != 1 || got["thing"] != models.ReasonFileDirectoryMismatch {
		t.Errorf("results = %v, want one FILE_DIRECTORY_MISMATCH", got)
	}
}

func TestTreeComparator_NullRoot(t *testing.T) {
	h := NewTestHelper(t)
	defer h.Cleanup()

	scan, err := h.Scanner(models.ScanOptions{}, nil).RunPair(context.Background(), h.sourceDir, h.Target("missing"))
	if err != nil {
		t.Fatalf("RunPair() error = %v", err)
	}
	results := scan.Results()
	if len(results) != 1 || results[0].Reason != models.ReasonFileNull {
		t.Fatalf("results = %v, want one FILE_NULL", reasons(scan))
	}
}

// runWith compares the two trees through fsys
func (h *TestHelper) runWith(fsys storage.Filesystem) *models.Scan {
	h.t.Helper()
	factory := compare.NewFactory(fsys, 4096, nil)
	scanner := NewScanner(fsys, factory, h.pool, nil, nil, ScannerConfig{DeepScan: true})
	scan, err := scanner.RunPair(context.Background(), h.sourceDir, h.targetDir)
	if err != nil {
		h.t.Fatalf("RunPair() error = %v", err)
	}
	return scan
}

// checkProcessingErrors fails unless every UNDETERMINED result carries a processing error
func checkProcessingErrors(t *testing.T, scan *models.Scan) {
	t.Helper()
	for _, r := range scan.Results() {
		if r.Reason != models.ReasonUndetermined {
			continue
		}
		if r.Resolution != models.ResolutionProcessingError || r.ResolutionError == "" {
			t.Errorf("undetermined result = %s %q, want processing error with message", r.Resolution, r.ResolutionError)
		}
	}
}

func TestTreeComparator_DeepEnumerationFailure(t *testing.T) {
	h := NewTestHelper(t)
	defer h.Cleanup()

	h.CreateBoth("locked/file.txt", "x")
	h.CreateBoth("open/file.txt", "y")
	h.CreateFile(h.Source("open/new.txt"), "new")

	scan := h.runWith(&failingReadDir{Local: h.fs, fail: h.Source("locked")})

	got := reasons(scan)
	if len(got) != 2 {
		t.Errorf("results = %v, want locked and new.txt", got)
	}
	if got["locked"] != models.ReasonUndetermined {
		t.Errorf("locked: reason = %s, want UNDETERMINED", got["locked"])
	}
	if got["new.txt"] != models.ReasonTargetDoesNotExist {
		t.Errorf("sibling work should continue, got %v", got)
	}
	checkProcessingErrors(t, scan)
}

func TestTreeComparator_ReadFailure(t *testing.T) {
	h := NewTestHelper(t)
	defer h.Cleanup()

	h.CreateBoth("docs/unreadable.txt", "same")
	h.CreateBoth("docs/readable.txt", "same")
	h.CreateFile(h.Source("docs/changed.txt"), "one")
	h.CreateFile(h.Target("docs/changed.txt"), "two")

	scan := h.runWith(&failingOpen{Local: h.fs, fail: h.Target("docs/unreadable.txt")})

	got := reasons(scan)
	if len(got) != 2 {
		t.Errorf("results = %v, want unreadable.txt and changed.txt", got)
	}
	if got["unreadable.txt"] != models.ReasonUndetermined {
		t.Errorf("unreadable.txt: reason = %s, want UNDETERMINED", got["unreadable.txt"])
	}
	if got["changed.txt"] != models.ReasonCompareFailed {
		t.Errorf("sibling comparison should continue, got %v", got)
	}
	for _, r := range scan.Results() {
		if r.Reason == models.ReasonUndetermined && !strings.Contains(r.ResolutionError, "input/output error") {
			t.Errorf("ResolutionError = %q, want the read error", r.ResolutionError)
		}
	}
	checkProcessingErrors(t, scan)
}

func TestScanner_RootEnumerationFailure(t *testing.T) {
	h := NewTestHelper(t)
	defer h.Cleanup()

	def := models.NewScanDefinition("broken")
	def.AddMapping(h.sourceDir, h.targetDir)
	def.AddMapping(h.sourceDir, h.targetDir)
	h.CreateFile(h.Source("a.txt"), "a")

	fsys := &failingReadDir{Local: h.fs, fail: h.targetDir}
	factory := compare.NewFactory(fsys, 4096, nil)
	scanner := NewScanner(fsys, factory, h.pool, nil, nil, ScannerConfig{DeepScan: true})

	scan, err := scanner.Run(context.Background(), def)
	if err == nil {
		t.Fatal("Run() should report the root enumeration failure")
	}
	if !strings.Contains(err.Error(), "failed to enumerate target directory") {
		t.Errorf("error = %v", err)
	}
	if scan == nil || !scan.IsComplete() {
		t.Error("scan should still be returned and completed")
	}
}

func TestScanner_InvalidDefinition(t *testing.T) {
	h := NewTestHelper(t)
	defer h.Cleanup()

	scan, err := h.Scanner(models.ScanOptions{}, nil).Run(context.Background(), models.NewScanDefinition("empty"))
	if !errors.Is(err, models.ErrIncompleteScanDefinition) {
		t.Errorf("Run() error = %v, want ErrIncompleteScanDefinition", err)
	}
	if scan != nil {
		t.Error("no scan should be created for an invalid definition")
	}
}

func TestScanner_Cancelled(t *testing.T) {
	h := NewTestHelper(t)
	defer h.Cleanup()

	h.CreateBoth("a/1.txt", "1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.Scanner(models.ScanOptions{}, nil).RunPair(ctx, h.sourceDir, h.targetDir)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("RunPair() error = %v, want context.Canceled", err)
	}
}

func TestScanner_ProgressMessages(t *testing.T) {
	h := NewTestHelper(t)
	defer h.Cleanup()

	h.CreateBoth("a/1.txt", "1")

	var mu gosync.Mutex
	var messages []string
	sink := output.FuncSink(func(msg string) {
		mu.Lock()
		defer mu.Unlock()
		messages = append(messages, msg)
	})

	if _, err := h.Scanner(models.ScanOptions{}, sink).RunPair(context.Background(), h.sourceDir, h.targetDir); err != nil {
		t.Fatalf("RunPair() error = %v", err)
	}

	sort.Strings(messages)
	want := []string{
		"Comparing " + h.sourceDir + " to " + h.targetDir,
		"Comparing " + h.Source("a") + " to " + h.Target("a"),
		"Comparing " + h.Source("a/1.txt") + " to " + h.Target("a/1.txt"),
	}
	sort.Strings(want)
	if strings.Join(messages, "\n") != strings.Join(want, "\n") {
		t.Errorf("messages = %v, want %v", messages, want)
	}
}

func TestFilter(t *testing.T) {
	f := NewFilter(models.NewScanOptions(
		[]string{".DS_Store"},
		[]string{"TMP"},
		[]string{"*.bak", ".git/", "logs/*.txt", "**/cache/**"},
	), []string{"/data/excluded"})

	tests := []struct {
		path string
		want bool
	}{
		{"", false},
		{"/data/file.txt", false},
		{"/data/.ds_store", true},
		{"/data/x.tmp", true},
		{"/data/x.Tmp", true},
		{"/data/tmp", false},
		{"/data/old.bak", true},
		{"/data/repo/.git", true},
		{"/data/repo/.git/config", true},
		{"/data/logs/a.txt", true},
		{"/data/logs/deep/a.txt", false},
		{"/data/app/cache/item", true},
		{"/data/excluded", true},
		{"/data/excluded/../excluded", true},
		{"/data/excluded-not", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := f.Skip(tt.path); got != tt.want {
				t.Errorf("Skip(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}

	if !f.SkipPair("/data/file.txt", "/data/x.tmp") {
		t.Error("SkipPair should skip when either side is filtered")
	}
}

func TestFilter_RelativeToRoots(t *testing.T) {
	f := NewFilter(models.NewScanOptions(nil, nil, []string{"build/", "/docs/*.md"}), nil, "/home/build/src", "/mnt/backup")

	tests := []struct {
		path string
		want bool
	}{
		{"/home/build/src", false},
		{"/home/build/src/main.go", false},
		{"/home/build/src/build", true},
		{"/home/build/src/build/out.o", true},
		{"/mnt/backup/build", true},
		{"/home/build/src/docs/a.md", true},
		{"/home/build/src/pkg/docs/a.md", false},
	}
	for _, tt := range tests {
		if got := f.Skip(tt.path); got != tt.want {
			t.Errorf("Skip(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

// failingReadDir fails enumeration of one directory
type failingReadDir struct {
	*storage.Local
	fail string
}

func (f *failingReadDir) ReadDir(ctx context.Context, path string) ([]string, error) {
	if path == f.fail {
		return nil, errors.New("permission denied")
	}
	return f.Local.ReadDir(ctx, path)
}

// failingOpen fails reading one file
type failingOpen struct {
	*storage.Local
	fail string
}

func (f *failingOpen) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	if path == f.fail {
		return nil, errors.New("input/output error")
	}
	return f.Local.Open(ctx, path)
}
