package github

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/google/go-github/v81/github"

	"github.com/bull/rag-assistant/internal/extract"
)

// DefaultRef is the branch read when none is configured.
const DefaultRef = "main"

// Fetcher lists and downloads the ingestible files below a repository
// directory. It implements indexer.Source.
type Fetcher struct {
	client   *Client
	owner    string
	repo     string
	basePath string
	ref      string
}

// NewFetcher creates a fetcher for owner/repo at ref, rooted at basePath.
func NewFetcher(client *Client, owner, repo, basePath, ref string) *Fetcher {
	if ref == "" {
		ref = DefaultRef
	}
	return &Fetcher{
		client:   client,
		owner:    owner,
		repo:     repo,
		basePath: basePath,
		ref:      ref,
	}
}

// ListFiles recursively lists every file whose extension the extractor
// supports. Paths are relative to the base path.
func (f *Fetcher) ListFiles(ctx context.Context) ([]string, error) {
	return f.listRecursive(ctx, f.basePath, "")
}

func (f *Fetcher) listRecursive(ctx context.Context, fullPath, relativePath string) ([]string, error) {
	var files []string

	_, dirContents, _, err := f.client.Repositories.GetContents(
		ctx,
		f.owner,
		f.repo,
		fullPath,
		f.refOptions(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get contents of %s: %w", fullPath, err)
	}

	for _, item := range dirContents {
		name := item.GetName()
		if name == "" {
			continue
		}
		itemRelPath := path.Join(relativePath, name)

		switch item.GetType() {
		case "file":
			if extract.Supported(name) {
				files = append(files, itemRelPath)
			}
		case "dir":
			sub, err := f.listRecursive(ctx, path.Join(fullPath, name), itemRelPath)
			if err != nil {
				return nil, err
			}
			files = append(files, sub...)
		}
	}
	return files, nil
}

// FetchFile returns the raw bytes of a file relative to the base path.
// Files above the 1 MB contents API limit are streamed through the download
// endpoint.
func (f *Fetcher) FetchFile(ctx context.Context, relativePath string) ([]byte, error) {
	fullPath := path.Join(f.basePath, relativePath)

	fileContent, _, _, err := f.client.Repositories.GetContents(
		ctx,
		f.owner,
		f.repo,
		fullPath,
		f.refOptions(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get content of %s: %w", fullPath, err)
	}
	if fileContent == nil {
		return nil, fmt.Errorf("no file content returned for %s", fullPath)
	}

	if fileContent.GetEncoding() == "base64" && fileContent.Content != nil && *fileContent.Content != "" {
		data, err := base64.StdEncoding.DecodeString(*fileContent.Content)
		if err != nil {
			return nil, fmt.Errorf("failed to decode content of %s: %w", fullPath, err)
		}
		return data, nil
	}

	rc, _, err := f.client.Repositories.DownloadContents(ctx, f.owner, f.repo, fullPath, f.refOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", fullPath, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", fullPath, err)
	}
	return data, nil
}

// GetLatestCommitSHA retrieves the SHA of the most recent commit affecting the base path.
func (f *Fetcher) GetLatestCommitSHA(ctx context.Context) (string, error) {
	commits, _, err := f.client.Repositories.ListCommits(
		ctx,
		f.owner,
		f.repo,
		&github.CommitsListOptions{
			SHA:  f.ref,
			Path: f.basePath,
			ListOptions: github.ListOptions{
				PerPage: 1,
			},
		},
	)
	if err != nil {
		return "", fmt.Errorf("failed to get latest commit: %w", err)
	}
	if len(commits) == 0 {
		return "", fmt.Errorf("no commits found for path %s", f.basePath)
	}
	if commits[0].SHA == nil {
		return "", errors.New("commit SHA is nil")
	}
	return commits[0].GetSHA(), nil
}

func (f *Fetcher) refOptions() *github.RepositoryContentGetOptions {
	return &github.RepositoryContentGetOptions{Ref: f.ref}
}
