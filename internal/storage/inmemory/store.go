package inmemory

import (
	"context"
	"sync"

	"github.com/UkralStul/nexus-sync/internal/storage"
	"github.com/google/uuid"
)

// Store реализует интерфейс Storage в памяти.
type Store struct {
	mu    sync.RWMutex
	root  any
	newID func() string
}

// New создает новый экземпляр in-memory хранилища.
func New() *Store {
	return &Store{newID: NewPushID}
}

// NewPushID генерирует ключ, упорядоченный по времени создания (UUIDv7).
func NewPushID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// === Read Methods ===

func (s *Store) Get(ctx context.Context, path storage.Path) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Отдаем копию, чтобы вызывающий не мог изменить дерево в обход блокировки
	return storage.Clone(storage.Lookup(s.root, path)), nil
}

// === Write Methods ===

func (s *Store) Set(ctx context.Context, path storage.Path, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.root = storage.Assign(s.root, path, storage.Clone(value))
	return nil
}

func (s *Store) Update(ctx context.Context, path storage.Path, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	root, err := storage.Merge(storage.Clone(s.root), path, cloneFields(fields))
	if err != nil {
		return err
	}
	s.root = root
	return nil
}

func (s *Store) Push(ctx context.Context, path storage.Path, value any) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.newID()
	s.root = storage.Assign(s.root, path.Child(id), storage.Clone(value))
	return id, nil
}

func (s *Store) Delete(ctx context.Context, path storage.Path) error {
	return s.Set(ctx, path, nil)
}

func cloneFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = storage.Clone(v)
	}
	return out
}
