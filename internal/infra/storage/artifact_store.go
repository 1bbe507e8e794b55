package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"telegram-video-gen/internal/domain/ports/adapter"
)

var _ adapter.ArtifactStore = (*FSArtifactStore)(nil)

// FSArtifactStore downloads remote result references into a local artifacts
// directory. The stored path is what gets recorded on the job, so a provider
// purging its CDN later cannot lose a delivered result.
type FSArtifactStore struct {
	dir    string
	client *http.Client
}

func NewFSArtifactStore(dir string) (*FSArtifactStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("artifact dir: %w", err)
	}
	return &FSArtifactStore{
		dir:    dir,
		client: &http.Client{Timeout: 120 * time.Second},
	}, nil
}

func (s *FSArtifactStore) Store(ctx context.Context, jobID, remoteURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, remoteURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download artifact: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("download artifact: http %d", resp.StatusCode)
	}

	path := filepath.Join(s.dir, jobID+".mp4")
	tmp := path + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("write artifact: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", err
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", err
	}
	return path, nil
}

// PassthroughStore keeps the provider's remote URL as the result location.
// Wired when no artifacts directory is configured.
type PassthroughStore struct{}

var _ adapter.ArtifactStore = (*PassthroughStore)(nil)

func (PassthroughStore) Store(_ context.Context, _ string, remoteURL string) (string, error) {
	return remoteURL, nil
}
