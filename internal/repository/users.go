package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/UkralStul/nexus-sync/internal/domain"
	"github.com/UkralStul/nexus-sync/internal/remote"
)

// === User Methods ===

func (r *Repository) GetUser(ctx context.Context, id string) (*domain.User, error) {
	u, err := remote.Get[domain.User](ctx, r.store, remote.Path("users", id))
	if err != nil {
		return nil, err
	}
	if u.ID == "" {
		u.ID = id
	}
	return &u, nil
}

// GetUsersByID читает всю коллекцию пользователей одним запросом.
func (r *Repository) GetUsersByID(ctx context.Context) (map[string]domain.User, error) {
	users, err := remote.GetCollection[domain.User](ctx, r.store, "users")
	if err != nil {
		return nil, err
	}
	for id, u := range users {
		if u.ID == "" {
			u.ID = id
			users[id] = u
		}
	}
	return users, nil
}

// GetAllUsers возвращает пользователей, отсортированных по имени.
func (r *Repository) GetAllUsers(ctx context.Context) ([]domain.User, error) {
	users, err := r.GetUsersByID(ctx)
	if err != nil {
		return nil, err
	}
	return entries(users,
		func(u *domain.User, id string) { u.ID = id },
		func(a, b *domain.User) bool { return strings.ToLower(a.Username) < strings.ToLower(b.Username) },
	), nil
}

// SearchUsers ищет по префиксу имени без учета регистра. Фильтрация на клиенте.
func (r *Repository) SearchUsers(ctx context.Context, prefix string) ([]domain.User, error) {
	all, err := r.GetAllUsers(ctx)
	if err != nil {
		return nil, err
	}
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	out := make([]domain.User, 0, len(all))
	for _, u := range all {
		if strings.HasPrefix(strings.ToLower(u.Username), prefix) {
			out = append(out, u)
		}
	}
	return out, nil
}

// SaveUser создает или перезаписывает профиль.
func (r *Repository) SaveUser(ctx context.Context, u *domain.User) error {
	if err := domain.ValidateUserID(u.ID); err != nil {
		return fmt.Errorf("save user %q: %w", u.ID, err)
	}
	return r.store.PutFull(ctx, remote.Path("users", u.ID), u)
}

// UpdateAvatar загружает картинку и меняет только поле profileImageUrl.
func (r *Repository) UpdateAvatar(ctx context.Context, userID string, image []byte) (*domain.ImageRef, error) {
	ref, err := r.images.Upload(ctx, image)
	if err != nil {
		return nil, fmt.Errorf("upload avatar: %w", err)
	}
	err = r.store.PatchFields(ctx, remote.Path("users", userID), map[string]any{
		"profileImageUrl": ref.String(),
	})
	if err != nil {
		return nil, err
	}
	return ref, nil
}

func (r *Repository) UpdateBio(ctx context.Context, userID, bio string) error {
	return r.store.PatchFields(ctx, remote.Path("users", userID), map[string]any{
		"bio": strings.TrimSpace(bio),
	})
}
