package loader

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func TestFSLoaderDefaultPatterns(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "readme.md", "readme text")
	writeFile(t, root, "notes/plan.txt", "plan text")
	writeFile(t, root, "notes/image.png", "binary junk")
	writeFile(t, root, "deep/nested/guide.md", "guide text")

	docs, err := NewFSLoader(root, nil, testLogger()).Load()
	require.NoError(t, err)

	require.Len(t, docs, 3)
	sources := []string{docs[0].Source, docs[1].Source, docs[2].Source}
	assert.Equal(t, []string{"deep/nested/guide.md", "notes/plan.txt", "readme.md"}, sources,
		"documents are sorted by source path")
	assert.Equal(t, "guide text", docs[0].Content)
}

func TestFSLoaderCustomPattern(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.md", "md")
	writeFile(t, root, "b.rst", "rst")

	docs, err := NewFSLoader(root, []string{"**/*.rst"}, testLogger()).Load()
	require.NoError(t, err)

	require.Len(t, docs, 1)
	assert.Equal(t, "b.rst", docs[0].Source)
}

func TestFSLoaderDeterministicAcrossRuns(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "z.md", "z")
	writeFile(t, root, "a.md", "a")
	writeFile(t, root, "m.txt", "m")

	l := NewFSLoader(root, nil, testLogger())
	first, err := l.Load()
	require.NoError(t, err)
	second, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestFSLoaderMissingRoot(t *testing.T) {
	_, err := NewFSLoader(filepath.Join(t.TempDir(), "absent"), nil, testLogger()).Load()
	assert.Error(t, err)
}

func TestFSLoaderSplitMarkdown(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "doc.md", "# Title\n\nIntro.\n\n## Part One\n\nBody one.\n\n## Part Two\n\nBody two.\n")

	l := NewFSLoader(root, nil, testLogger())
	l.SplitMarkdown = true

	docs, err := l.Load()
	require.NoError(t, err)

	require.Len(t, docs, 3)
	assert.Equal(t, "doc.md#0", docs[0].Source)
	assert.Contains(t, docs[1].Content, "# Title > ## Part One")
	assert.Contains(t, docs[1].Content, "Body one.")
	assert.Equal(t, "doc.md#2", docs[2].Source)
}
