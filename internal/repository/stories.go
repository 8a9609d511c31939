package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/UkralStul/nexus-sync/internal/domain"
	"github.com/UkralStul/nexus-sync/internal/remote"
	"github.com/UkralStul/nexus-sync/internal/session"
)

var ErrStoryWithoutImage = errors.New("story needs an image")

// GetStories возвращает истории за последние StoryTTL, новые первыми.
func (r *Repository) GetStories(ctx context.Context) ([]domain.Story, error) {
	stories, err := remote.GetCollection[domain.Story](ctx, r.store, "stories")
	if err != nil {
		return nil, err
	}
	cutoff := r.now().Add(-StoryTTL).UnixMilli()
	for id, s := range stories {
		if s.Timestamp < cutoff {
			delete(stories, id)
		}
	}
	return entries(stories,
		func(s *domain.Story, id string) { s.ID = id },
		func(a, b *domain.Story) bool { return a.Timestamp > b.Timestamp },
	), nil
}

// CreateStory публикует историю от имени s.
func (r *Repository) CreateStory(ctx context.Context, s *session.Session, image []byte) (*domain.Story, error) {
	if s == nil || s.UserID == "" {
		return nil, ErrNotLoggedIn
	}
	if len(image) == 0 {
		return nil, ErrStoryWithoutImage
	}
	ref, err := r.images.Upload(ctx, image)
	if err != nil {
		return nil, fmt.Errorf("upload story image: %w", err)
	}

	now := r.now().UnixMilli()
	story := &domain.Story{
		ID:        "story_" + strconv.FormatInt(now, 10),
		UserID:    s.UserID,
		Username:  DefaultUsername,
		ImageURL:  *ref,
		Timestamp: now,
	}
	if author, err := r.GetUser(ctx, s.UserID); err == nil {
		story.Username = author.Username
		story.UserAvatarURL = author.ProfileImageURL
	}

	if err := r.store.PutFull(ctx, remote.Path("stories", story.ID), story); err != nil {
		return nil, err
	}
	return story, nil
}
