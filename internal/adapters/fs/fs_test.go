package fs_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/kiln/internal/adapters/fs"
	"go.trai.ch/kiln/internal/core/domain"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, body := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), domain.DirPerm))
		require.NoError(t, os.WriteFile(path, []byte(body), domain.FilePerm))
	}
}

func collect(t *testing.T, src *fs.Source, root string, raws ...string) []*domain.File {
	t.Helper()

	patterns, err := domain.NewGlobPatterns(raws)
	require.NoError(t, err)

	var files []*domain.File
	for f, err := range src.Files(context.Background(), root, patterns) {
		require.NoError(t, err)
		files = append(files, f)
	}
	return files
}

func rels(files []*domain.File) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f.SlashRel())
	}
	return out
}

func TestWalker_WalkFiles_SkipsStateAndVCS(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"dev/index.html":          "<p>",
		".git/config":             "x",
		"dev/node_modules/a.js":   "x",
		".kiln/manifest.json":     "{}",
		"dev/blog/post/page.html": "<p>",
	})

	var got []string
	for path, err := range fs.NewWalker().WalkFiles(root) {
		require.NoError(t, err)
		rel, _ := filepath.Rel(root, path)
		got = append(got, filepath.ToSlash(rel))
	}

	assert.Equal(t, []string{"dev/blog/post/page.html", "dev/index.html"}, got)
}

func TestWalker_WalkFiles_MissingRoot(t *testing.T) {
	for _, err := range fs.NewWalker().WalkFiles(filepath.Join(t.TempDir(), "nope")) {
		t.Fatalf("unexpected yield: %v", err)
	}
}

func TestSource_Files_RelativeToGlobBase(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"dev/js/app.js":        "let a = 1",
		"dev/js/vendor/lib.js": "var b",
		"dev/js/notes.txt":     "n",
		"dev/other/stray.js":   "s",
	})

	files := collect(t, fs.NewSource(fs.NewWalker()), root, "dev/js/**/*.js")

	assert.Equal(t, []string{"app.js", "vendor/lib.js"}, rels(files))
	assert.Equal(t, "let a = 1", string(files[0].Contents))
	assert.Equal(t, filepath.Join(root, "dev", "js"), files[0].Base)
	assert.Equal(t, files[0].Path, files[0].Source)
	assert.False(t, files[0].ModTime.IsZero())
}

func TestSource_Files_NegationAndDedup(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"dev/js/app.js":        "a",
		"dev/js/vendor/lib.js": "b",
	})

	files := collect(t, fs.NewSource(fs.NewWalker()), root,
		"dev/js/**/*.js", "dev/js/app.js", "!dev/js/vendor/**")

	assert.Equal(t, []string{"app.js"}, rels(files))
}

func TestSource_Files_NoMatchesIsEmpty(t *testing.T) {
	root := t.TempDir()

	files := collect(t, fs.NewSource(fs.NewWalker()), root, "dev/**/*.html")

	assert.Empty(t, files)
}

func TestSource_Files_CancelledContext(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"dev/a.html": "a"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	patterns := []domain.GlobPattern{domain.MustGlobPattern("dev/**/*.html")}
	for _, err := range fs.NewSource(fs.NewWalker()).Files(ctx, root, patterns) {
		require.ErrorIs(t, err, context.Canceled)
	}
}

func TestSink_Write(t *testing.T) {
	root := t.TempDir()
	dest := filepath.Join(root, "app", "js")

	f := &domain.File{
		Base:     filepath.Join(root, "dev", "js"),
		Path:     filepath.Join(root, "dev", "js", "vendor", "lib.min.js"),
		Contents: []byte("var b"),
	}

	before := time.Now().Add(-time.Second)
	out, err := fs.NewSink().Write(context.Background(), dest, f)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dest, "vendor", "lib.min.js"), out)
	body, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "var b", string(body))

	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.True(t, info.ModTime().After(before))
}
