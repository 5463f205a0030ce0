package archive

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type removeAll struct{ removed []string }

func (r *removeAll) Cleanup(path string) error {
	r.removed = append(r.removed, path)
	return os.RemoveAll(path)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestFileNameOrderMatchesTime(t *testing.T) {
	times := []time.Time{
		time.UnixMilli(1),
		time.UnixMilli(999),
		time.UnixMilli(1_000_000_000_000),
		time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 1, 12, 0, 0, int(time.Millisecond), time.UTC),
		time.Date(2099, 12, 31, 23, 59, 59, 0, time.UTC),
	}
	names := make([]string, len(times))
	for i, ts := range times {
		names[i] = FileName(ts)
		assert.Len(t, names[i], len(Prefix)+timestampWidth+len(Extension))
	}
	assert.True(t, sort.StringsAreSorted(names), "names %v", names)

	got, ok := ParseFileName(names[3])
	require.True(t, ok)
	assert.True(t, got.Equal(times[3]))
}

func TestParseFileNameRejects(t *testing.T) {
	for _, name := range []string{
		"deployment-123.tar.gz",
		"deployment-00000000000x1.tar.gz",
		"release-1700000000000.tar.gz",
		"deployment-1700000000000.zip",
	} {
		_, ok := ParseFileName(name)
		assert.False(t, ok, name)
	}
}

func TestPackageWritesContentsAtRoot(t *testing.T) {
	staging := filepath.Join(t.TempDir(), "staging")
	writeFile(t, filepath.Join(staging, "deployment-info.json"), "{}")
	writeFile(t, filepath.Join(staging, "frontend", "index.html"), "<html>")

	out := t.TempDir()
	remover := &removeAll{}
	p := NewPackager(out, remover, nil)
	p.now = func() time.Time { return time.UnixMilli(1_700_000_000_123) }

	art, err := p.Package(staging)
	require.NoError(t, err)
	assert.Equal(t, "deployment-1700000000123.tar.gz", art.Name)
	assert.Equal(t, filepath.Join(out, art.Name), art.Path)
	assert.Positive(t, art.Size)

	entries, err := Entries(art.Path)
	require.NoError(t, err)
	assert.Equal(t, []string{"deployment-info.json", "frontend/", "frontend/index.html"}, entries)

	assert.Equal(t, []string{staging}, remover.removed)
	assert.NoDirExists(t, staging)
	assert.NoFileExists(t, art.Path+".tmp")
}

func TestPackageAvoidsNameCollision(t *testing.T) {
	out := t.TempDir()
	p := NewPackager(out, &removeAll{}, nil)
	p.now = func() time.Time { return time.UnixMilli(1_700_000_000_000) }

	var names []string
	for i := 0; i < 2; i++ {
		staging := filepath.Join(t.TempDir(), "s")
		writeFile(t, filepath.Join(staging, "a.txt"), "a")
		art, err := p.Package(staging)
		require.NoError(t, err)
		names = append(names, art.Name)
	}
	assert.Equal(t, []string{
		"deployment-1700000000000.tar.gz",
		"deployment-1700000000001.tar.gz",
	}, names)
}

func TestPackageFailureStillRemovesStaging(t *testing.T) {
	staging := filepath.Join(t.TempDir(), "staging")
	writeFile(t, filepath.Join(staging, "a.txt"), "a")

	// a regular file where the artifact directory should be
	blocker := filepath.Join(t.TempDir(), "blocked")
	writeFile(t, blocker, "")

	remover := &removeAll{}
	_, err := NewPackager(filepath.Join(blocker, "artifacts"), remover, nil).Package(staging)
	require.Error(t, err)
	assert.NoDirExists(t, staging)
	assert.Len(t, remover.removed, 1)
}

func TestCatalog(t *testing.T) {
	dir := t.TempDir()
	for _, ms := range []int64{1_700_000_000_300, 1_700_000_000_100, 1_700_000_000_200} {
		writeFile(t, filepath.Join(dir, FileName(time.UnixMilli(ms))), "x")
	}
	writeFile(t, filepath.Join(dir, "notes.txt"), "ignored")

	all, err := List(dir)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "deployment-1700000000100.tar.gz", all[0].Name)

	latest, err := Latest(dir)
	require.NoError(t, err)
	assert.Equal(t, "deployment-1700000000300.tar.gz", latest.Name)

	removed, err := Prune(dir, 1)
	require.NoError(t, err)
	assert.Len(t, removed, 2)

	left, err := List(dir)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, latest.Name, left[0].Name)
	assert.FileExists(t, filepath.Join(dir, "notes.txt"))

	_, err = Prune(dir, -1)
	require.Error(t, err)
}

func TestLatestEmpty(t *testing.T) {
	_, err := Latest(filepath.Join(t.TempDir(), "missing"))
	require.True(t, errors.Is(err, ErrNoArtifacts))
}

type failingRemover struct{}

func (failingRemover) Cleanup(string) error { return errors.New("device busy") }

func TestPackageCleanupFailureLeavesNoArtifact(t *testing.T) {
	staging := filepath.Join(t.TempDir(), "staging")
	writeFile(t, filepath.Join(staging, "a.txt"), "a")
	out := t.TempDir()

	art, err := NewPackager(out, failingRemover{}, nil).Package(staging)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device busy")
	assert.Nil(t, art)

	all, err := List(out)
	require.NoError(t, err)
	assert.Empty(t, all)
}
