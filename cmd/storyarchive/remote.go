package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/gauthierbraillon/storyarchive/internal/archive"
	"github.com/gauthierbraillon/storyarchive/internal/config"
	"github.com/gauthierbraillon/storyarchive/internal/delivery"
	"github.com/gauthierbraillon/storyarchive/internal/instagram"
	"github.com/gauthierbraillon/storyarchive/internal/telegram"
	"github.com/gauthierbraillon/storyarchive/pkg/session"
)

// limiterFor allows one request per gap. A zero gap disables pacing.
func limiterFor(gap time.Duration, burst int) *rate.Limiter {
	if gap <= 0 {
		return rate.NewLimiter(rate.Inf, burst)
	}
	return rate.NewLimiter(rate.Every(gap), burst)
}

// newInstagramClient creates a client presenting the account's persisted
// device identity, creating one on first use.
func newInstagramClient(cfg *config.Config, logger *slog.Logger) (*instagram.Client, error) {
	device, err := session.NewStorage(cfg.Session.Dir).LoadOrCreate(cfg.Account.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to load device settings: %w", err)
	}

	return instagram.NewClient(device,
		instagram.WithBaseURL(cfg.Instagram.BaseURL),
		instagram.WithLimiter(limiterFor(cfg.Instagram.RateLimit, 2)),
		instagram.WithLogger(logger),
	), nil
}

func newRemote(cfg *config.Config, logger *slog.Logger) (archive.Remote, error) {
	client, err := newInstagramClient(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &instagramRemote{client: client}, nil
}

func newDispatcher(cfg *config.Config, logger *slog.Logger) *delivery.Dispatcher {
	client := telegram.NewClient(cfg.Telegram.Token,
		telegram.WithBaseURL(cfg.Telegram.BaseURL),
		telegram.WithLimiter(limiterFor(cfg.Telegram.RateLimit, 1)),
	)
	return delivery.NewDispatcher(client, cfg.Telegram.ChatID,
		delivery.WithAnnounceEmpty(cfg.Telegram.AnnounceEmpty),
		delivery.WithLogger(logger),
	)
}

// instagramRemote adapts the Instagram client to archive.Remote.
type instagramRemote struct {
	client *instagram.Client
}

func (r *instagramRemote) Login(ctx context.Context, creds archive.Credentials) (archive.Session, error) {
	s, err := r.client.Login(ctx, creds.Username, creds.Password)
	if err != nil {
		return nil, err
	}
	return &instagramSession{session: s}, nil
}

type instagramSession struct {
	session *instagram.Session
}

func (s *instagramSession) UserStories(ctx context.Context, sourceID int64) ([]archive.RemoteItem, error) {
	stories, err := s.session.UserStories(ctx, sourceID)
	if err != nil {
		return nil, err
	}

	items := make([]archive.RemoteItem, 0, len(stories))
	for _, story := range stories {
		items = append(items, toRemoteItem(story))
	}
	return items, nil
}

func (s *instagramSession) DownloadByURL(ctx context.Context, url, stem, dir string) (string, error) {
	return s.session.DownloadByURL(ctx, url, stem, dir)
}

func toRemoteItem(story instagram.Story) archive.RemoteItem {
	kind := archive.MediaVideo
	if story.IsPhoto() {
		kind = archive.MediaPhoto
	}
	return archive.RemoteItem{
		ID:           story.PK,
		Kind:         kind,
		ThumbnailURL: story.ThumbnailURL,
		VideoURL:     story.VideoURL,
	}
}
