// Package repository - единый слой доступа к данным поверх remote.Client.
// Все ошибки сохраняют вид (domain.Kind); решать, показывать ли пустое состояние, - дело экранов.
package repository

import (
	"sort"
	"time"

	"github.com/UkralStul/nexus-sync/internal/media"
	"github.com/UkralStul/nexus-sync/internal/remote"
	"go.uber.org/zap"
)

// FeedPageSize - сколько постов лента подгружает за раз.
const FeedPageSize = 7

// StoryTTL - сколько живет история.
const StoryTTL = 24 * time.Hour

// Repository объединяет операции над пользователями, постами, чатами и историями.
type Repository struct {
	store  *remote.Client
	images media.Host
	log    *zap.Logger
	now    func() time.Time
}

// New создает репозиторий. images может быть nil - тогда картинки встраиваются в запись.
func New(store *remote.Client, images media.Host, log *zap.Logger) *Repository {
	if images == nil {
		images = media.InlineHost{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Repository{store: store, images: images, log: log, now: time.Now}
}

// Page возвращает первые page*size элементов: лента растет страницами, не сдвигаясь.
func Page[T any](items []T, page, size int) []T {
	if page < 1 || size < 1 {
		return []T{}
	}
	n := page * size
	if n > len(items) {
		n = len(items)
	}
	return items[:n]
}

// entries превращает map[key]record в срез, отсортированный по less, с ключом в поле ID.
func entries[T any](m map[string]T, setID func(*T, string), less func(a, b *T) bool) []T {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// Ключи сортируются первыми, чтобы равные метки времени давали стабильный порядок
	sort.Strings(keys)

	out := make([]T, 0, len(m))
	for _, k := range keys {
		v := m[k]
		setID(&v, k)
		out = append(out, v)
	}
	sort.SliceStable(out, func(i, j int) bool { return less(&out[i], &out[j]) })
	return out
}
