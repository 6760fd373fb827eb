package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrAuth wraps any failure to authenticate against the remote platform.
// A cycle that fails with ErrAuth produced no batches.
var ErrAuth = errors.New("remote authentication failed")

// Remote authenticates against the remote platform.
type Remote interface {
	Login(ctx context.Context, creds Credentials) (Session, error)
}

// Session is an authenticated handle reused for every target of a cycle.
type Session interface {
	// UserStories lists the live stories of a source in the platform's order.
	UserStories(ctx context.Context, sourceID int64) ([]RemoteItem, error)
	// DownloadByURL stores url in dir as stem plus an extension chosen by the
	// download, and returns the resulting local path.
	DownloadByURL(ctx context.Context, url, stem, dir string) (string, error)
}

// Engine runs synchronization cycles.
type Engine struct {
	remote Remote
	logger *slog.Logger
}

// NewEngine creates an Engine that talks to remote.
func NewEngine(remote Remote, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{remote: remote, logger: logger}
}

// RunCycle authenticates once, then walks targets in order, downloading every
// live story whose identifier is not in seen. Each successful download is
// added to seen before the next item is considered.
//
// Exactly one batch is returned per target, in target order. A target whose
// stories cannot be listed yields an empty batch with FetchErr set; a failed
// download, or a story listed without an identifier, is left out of both the
// batch and seen.
func (e *Engine) RunCycle(ctx context.Context, creds Credentials, targets []Target, dir string, seen SeenSet) ([]Batch, error) {
	session, err := e.remote.Login(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAuth, err)
	}

	batches := make([]Batch, 0, len(targets))
	for _, target := range targets {
		batches = append(batches, e.syncTarget(ctx, session, target, dir, seen))
	}
	return batches, nil
}

func (e *Engine) syncTarget(ctx context.Context, session Session, target Target, dir string, seen SeenSet) Batch {
	batch := Batch{
		SourceID:   target.ID,
		SourceName: target.Name,
		Items:      []ContentItem{},
	}

	stories, err := session.UserStories(ctx, target.ID)
	if err != nil {
		e.logger.Error("Failed to list stories", "target", target.Name, "id", target.ID, "error", err)
		batch.FetchErr = err
		return batch
	}

	for _, story := range stories {
		id := ItemID(target.ID, story.ID)
		if story.ID == "" {
			// Every such story would share one identifier.
			e.logger.Warn("Story has no identifier", "target", target.Name, "kind", story.Kind)
			batch.FailedIDs = append(batch.FailedIDs, id)
			continue
		}
		if seen.Has(id) {
			continue
		}

		path, err := session.DownloadByURL(ctx, story.SourceURL(), id, dir)
		if err != nil {
			e.logger.Warn("Failed to download story", "target", target.Name, "item", id, "error", err)
			batch.FailedIDs = append(batch.FailedIDs, id)
			continue
		}

		seen.Add(id)
		batch.Items = append(batch.Items, ContentItem{LocalPath: path})
		e.logger.Debug("Downloaded story", "target", target.Name, "item", id, "path", path)
	}

	e.logger.Info("Target synced", "target", target.Name,
		"live", len(stories), "new", len(batch.Items), "failed", len(batch.FailedIDs))
	return batch
}
