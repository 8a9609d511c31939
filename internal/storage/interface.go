package storage

import (
	"context"
)

// Storage определяет контракт иерархического JSON-хранилища без схемы.
// Значения - декодированный JSON: map[string]any, string, bool, json.Number.
// Отсутствующий узел читается как nil.
type Storage interface {
	Get(ctx context.Context, path Path) (any, error)
	// Set заменяет узел целиком. nil удаляет узел.
	Set(ctx context.Context, path Path, value any) error
	// Update записывает только перечисленные дочерние поля. Ключи могут быть путями "a/b".
	Update(ctx context.Context, path Path, fields map[string]any) error
	// Push добавляет дочерний узел под ключом, сгенерированным хранилищем.
	Push(ctx context.Context, path Path, value any) (string, error)
	Delete(ctx context.Context, path Path) error
}
