package dataloader

import (
	"context"
	"time"

	"github.com/UkralStul/nexus-sync/internal/domain"
	"github.com/graph-gophers/dataloader"
)

type contextKey string

const key = contextKey("dataloaders")

// UserSource - откуда лоадер берет пользователей.
type UserSource interface {
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetUsersByID(ctx context.Context) (map[string]domain.User, error)
}

// Loaders содержит все дата-лоадеры одного обновления экрана.
type Loaders struct {
	UserByID *dataloader.Loader
}

// NewLoaders создает лоадеры. Кэш живет столько же, сколько Loaders.
// opts дополняют настройки по умолчанию (окно сбора пачки 2мс).
func NewLoaders(src UserSource, opts ...dataloader.Option) *Loaders {
	// Создаем батч-функцию для лоадера
	batchFn := func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		results := make([]*dataloader.Result, len(keys))

		// Один ключ - одна запись, иначе дешевле прочитать всю коллекцию одним запросом
		if len(keys) == 1 {
			u, err := src.GetUser(ctx, keys[0].String())
			results[0] = &dataloader.Result{Data: u, Error: err}
			return results
		}

		users, err := src.GetUsersByID(ctx)
		if err != nil {
			// В случае ошибки, возвращаем ее для всех ключей
			for i := range results {
				results[i] = &dataloader.Result{Error: err}
			}
			return results
		}

		// Формируем результат в том же порядке, что и ключи
		for i, k := range keys {
			u, ok := users[k.String()]
			if !ok {
				results[i] = &dataloader.Result{Error: domain.NewError(domain.KindNotFound, "get", "users/"+k.String(), nil)}
				continue
			}
			results[i] = &dataloader.Result{Data: &u}
		}
		return results
	}

	opts = append([]dataloader.Option{dataloader.WithWait(2 * time.Millisecond)}, opts...)
	return &Loaders{
		UserByID: dataloader.NewBatchedLoader(batchFn, opts...),
	}
}

// WithLoaders помещает лоадеры в контекст.
func WithLoaders(ctx context.Context, l *Loaders) context.Context {
	return context.WithValue(ctx, key, l)
}

// For извлекает лоадеры из контекста.
func For(ctx context.Context) (*Loaders, bool) {
	l, ok := ctx.Value(key).(*Loaders)
	return l, ok
}

// LoadUsers загружает пользователей пачкой. Ошибки возвращаются по индексам ids.
func (l *Loaders) LoadUsers(ctx context.Context, ids []string) ([]*domain.User, []error) {
	thunk := l.UserByID.LoadMany(ctx, dataloader.NewKeysFromStrings(ids))
	data, errs := thunk()

	users := make([]*domain.User, len(ids))
	for i, d := range data {
		if u, ok := d.(*domain.User); ok {
			users[i] = u
		}
	}
	if len(errs) == 0 {
		errs = nil
	}
	return users, errs
}
