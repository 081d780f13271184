// Package loader turns external sources — local directories, markdown
// files, GitHub repositories — into documents ready for ingestion.
package loader

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/bull/ragdex/internal/rag"
)

// DefaultPatterns matches the file types indexed when none are given.
var DefaultPatterns = []string{"**/*.md", "**/*.txt"}

// FSLoader reads documents from a directory tree.
type FSLoader struct {
	root     string
	patterns []string
	logger   *slog.Logger

	// SplitMarkdown routes .md files through the section splitter, so a
	// long document becomes one document per H1/H2 section with its
	// header path prepended.
	SplitMarkdown bool
}

// NewFSLoader creates a loader rooted at dir. Patterns are doublestar
// globs relative to dir; nil means DefaultPatterns.
func NewFSLoader(dir string, patterns []string, logger *slog.Logger) *FSLoader {
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FSLoader{root: dir, patterns: patterns, logger: logger}
}

// Load reads every matching file under the root. Documents come back
// sorted by source path, so two runs over the same tree produce the same
// document order. A file that fails to read is skipped with a warning
// rather than failing the whole load.
func (l *FSLoader) Load() ([]rag.Document, error) {
	info, err := os.Stat(l.root)
	if err != nil {
		return nil, fmt.Errorf("loader root %s: %w", l.root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("loader root %s is not a directory", l.root)
	}

	fsys := os.DirFS(l.root)
	seen := make(map[string]bool)
	var paths []string
	for _, pattern := range l.patterns {
		matches, err := doublestar.Glob(fsys, pattern)
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", pattern, err)
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				paths = append(paths, m)
			}
		}
	}
	sort.Strings(paths)

	var docs []rag.Document
	for _, rel := range paths {
		content, err := os.ReadFile(filepath.Join(l.root, filepath.FromSlash(rel)))
		if err != nil {
			l.logger.Warn("skipping unreadable file", "path", rel, "error", err)
			continue
		}

		if l.SplitMarkdown && strings.HasSuffix(rel, ".md") {
			docs = append(docs, SplitMarkdownDoc(rel, content, l.logger)...)
			continue
		}

		docs = append(docs, rag.Document{Source: rel, Content: string(content)})
	}

	l.logger.Info("loaded documents", "root", l.root, "files", len(paths), "documents", len(docs))
	return docs, nil
}
