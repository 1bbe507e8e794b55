package adapter

import "context"

// ArtifactStore moves a provider's remote result reference into durable
// storage and returns the retrievable location. Implementations may be
// pass-through when no durable storage is configured.
type ArtifactStore interface {
	Store(ctx context.Context, jobID, remoteURL string) (string, error)
}
