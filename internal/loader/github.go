package loader

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"strings"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"
	"github.com/google/go-github/v81/github"

	"github.com/bull/ragdex/internal/rag"
)

// GitHubLoader fetches markdown documents from a repository directory.
// Rate limits are handled transparently by the waiter transport; setting
// GITHUB_TOKEN raises the hourly quota.
type GitHubLoader struct {
	client   *github.Client
	owner    string
	repo     string
	basePath string
	logger   *slog.Logger

	// SplitMarkdown routes fetched files through the section splitter.
	SplitMarkdown bool
}

// NewGitHubLoader creates a loader for owner/repo rooted at basePath.
func NewGitHubLoader(owner, repo, basePath string, logger *slog.Logger) (*GitHubLoader, error) {
	if owner == "" || repo == "" {
		return nil, fmt.Errorf("github loader requires owner and repo")
	}
	if logger == nil {
		logger = slog.Default()
	}

	transport, err := github_ratelimit.NewRateLimitWaiterClient(nil)
	if err != nil {
		return nil, fmt.Errorf("create rate limit transport: %w", err)
	}
	client := github.NewClient(transport)
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		client = client.WithAuthToken(token)
	}

	return &GitHubLoader{
		client:   client,
		owner:    owner,
		repo:     repo,
		basePath: basePath,
		logger:   logger,
	}, nil
}

// Load lists every markdown file under the base path and fetches each
// one. A file that fails to fetch is skipped with a warning; listing
// failures are fatal because they leave nothing to ingest.
func (l *GitHubLoader) Load(ctx context.Context) ([]rag.Document, error) {
	paths, err := l.list(ctx, l.basePath)
	if err != nil {
		return nil, fmt.Errorf("list %s/%s:%s: %w", l.owner, l.repo, l.basePath, err)
	}

	var docs []rag.Document
	for _, p := range paths {
		content, err := l.fetch(ctx, p)
		if err != nil {
			l.logger.Warn("skipping document", "path", p, "error", err)
			continue
		}

		source := fmt.Sprintf("github.com/%s/%s/%s", l.owner, l.repo, p)
		if l.SplitMarkdown {
			docs = append(docs, SplitMarkdownDoc(source, []byte(content), l.logger)...)
		} else {
			docs = append(docs, rag.Document{Source: source, Content: content})
		}
	}

	l.logger.Info("fetched repository documents",
		"repo", fmt.Sprintf("%s/%s", l.owner, l.repo),
		"files", len(paths),
		"documents", len(docs),
	)
	return docs, nil
}

// list walks the repository tree under dir and returns markdown paths.
func (l *GitHubLoader) list(ctx context.Context, dir string) ([]string, error) {
	_, entries, _, err := l.client.Repositories.GetContents(ctx, l.owner, l.repo, dir, nil)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, entry := range entries {
		name := entry.GetName()
		switch entry.GetType() {
		case "file":
			if strings.HasSuffix(name, ".md") {
				paths = append(paths, path.Join(dir, name))
			}
		case "dir":
			sub, err := l.list(ctx, path.Join(dir, name))
			if err != nil {
				return nil, err
			}
			paths = append(paths, sub...)
		}
	}
	return paths, nil
}

// fetch retrieves and decodes one file.
func (l *GitHubLoader) fetch(ctx context.Context, filePath string) (string, error) {
	file, _, _, err := l.client.Repositories.GetContents(ctx, l.owner, l.repo, filePath, nil)
	if err != nil {
		return "", err
	}
	if file == nil {
		return "", fmt.Errorf("no content returned for %s", filePath)
	}
	return file.GetContent()
}
