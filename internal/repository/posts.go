package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/UkralStul/nexus-sync/internal/dataloader"
	"github.com/UkralStul/nexus-sync/internal/domain"
	"github.com/UkralStul/nexus-sync/internal/remote"
	"github.com/UkralStul/nexus-sync/internal/session"
	"go.uber.org/zap"
)

// DefaultUsername подставляется, если профиль автора не прочитался.
const DefaultUsername = "Usuario"

var (
	ErrEmptyPost    = errors.New("post needs text or an image")
	ErrEmptyComment = errors.New("comment text cannot be empty")
	ErrNotLoggedIn  = errors.New("not logged in")
)

// === Post Methods ===

// GetAllPosts возвращает посты от новых к старым. Ключ записи копируется в ID.
func (r *Repository) GetAllPosts(ctx context.Context) ([]domain.Post, error) {
	posts, err := remote.GetCollection[domain.Post](ctx, r.store, "posts")
	if err != nil {
		return nil, err
	}
	return entries(posts,
		func(p *domain.Post, id string) { p.ID = id },
		func(a, b *domain.Post) bool { return a.Timestamp > b.Timestamp },
	), nil
}

func (r *Repository) GetPost(ctx context.Context, id string) (*domain.Post, error) {
	p, err := remote.Get[domain.Post](ctx, r.store, remote.Path("posts", id))
	if err != nil {
		return nil, err
	}
	p.ID = id
	return &p, nil
}

// CreatePost публикует пост от имени s. Имя и аватар автора копируются в пост на момент создания.
func (r *Repository) CreatePost(ctx context.Context, s *session.Session, text string, image []byte) (*domain.Post, error) {
	if s == nil || s.UserID == "" {
		return nil, ErrNotLoggedIn
	}
	text = strings.TrimSpace(text)
	if text == "" && len(image) == 0 {
		return nil, ErrEmptyPost
	}

	now := r.now().UnixMilli()
	post := &domain.Post{
		ID:          "post_" + strconv.FormatInt(now, 10),
		UserID:      s.UserID,
		Username:    DefaultUsername,
		Description: text,
		Timestamp:   now,
	}
	if author, err := r.GetUser(ctx, s.UserID); err == nil {
		post.Username = author.Username
		post.UserAvatarURL = author.ProfileImageURL
	} else {
		r.log.Debug("post author lookup failed", zap.String("user_id", s.UserID), zap.Error(err))
	}

	if len(image) > 0 {
		ref, err := r.images.Upload(ctx, image)
		if err != nil {
			return nil, fmt.Errorf("upload post image: %w", err)
		}
		post.ImageURL = ref
	}

	if err := r.store.PutFull(ctx, remote.Path("posts", post.ID), post); err != nil {
		return nil, err
	}
	return post, nil
}

// LikePost читает текущее число лайков и записывает +1 двумя отдельными запросами.
// Два одновременных лайка могут дать один инкремент: атомарного счетчика нет.
func (r *Repository) LikePost(ctx context.Context, postID string) (int, error) {
	post, err := r.GetPost(ctx, postID)
	if err != nil {
		return 0, err
	}
	likes := post.Likes + 1
	err = r.store.PatchFields(ctx, remote.Path("posts", postID), map[string]any{"likes": likes})
	if err != nil {
		return 0, err
	}
	return likes, nil
}

// CommentPost добавляет комментарий "автор: текст" под ключом c_<мс>.
func (r *Repository) CommentPost(ctx context.Context, postID, author, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyComment
	}
	id := domain.CommentID(r.now().UnixMilli())
	err := r.store.PatchFields(ctx, remote.Path("posts", postID, "comments"), map[string]any{
		id: domain.FormatComment(author, text),
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// === Feed ===

// FeedItem - пост с актуальным профилем автора (nil, если профиль не прочитался).
type FeedItem struct {
	Post   domain.Post
	Author *domain.User
}

// FeedWithAuthors читает ленту и подтягивает авторов пачкой через dataloader.
func (r *Repository) FeedWithAuthors(ctx context.Context) ([]FeedItem, error) {
	posts, err := r.GetAllPosts(ctx)
	if err != nil {
		return nil, err
	}

	loaders, ok := dataloader.For(ctx)
	if !ok {
		loaders = dataloader.NewLoaders(r)
	}

	ids := make([]string, len(posts))
	for i, p := range posts {
		ids[i] = p.UserID
	}
	authors, errs := loaders.LoadUsers(ctx, ids)

	items := make([]FeedItem, len(posts))
	for i, p := range posts {
		items[i] = FeedItem{Post: p, Author: authors[i]}
		if errs != nil && errs[i] != nil {
			r.log.Debug("feed author lookup failed", zap.String("user_id", p.UserID), zap.Error(errs[i]))
		}
	}
	return items, nil
}
