package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/UkralStul/nexus-sync/internal/storage"
	"github.com/UkralStul/nexus-sync/internal/storage/inmemory"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// node - одна строка на коллекцию верхнего уровня (users, posts, chats, ...).
type node struct {
	Key       string `gorm:"primaryKey;type:varchar(768)"`
	Data      []byte `gorm:"type:jsonb;not null"`
	UpdatedAt time.Time
}

func (node) TableName() string { return "nodes" }

// Store реализует интерфейс Storage с использованием PostgreSQL.
type Store struct {
	db    *gorm.DB
	newID func() string
}

// New создает новый экземпляр хранилища PostgreSQL.
func New(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Выполняем миграцию схемы
	if err := db.AutoMigrate(&node{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{db: db, newID: inmemory.NewPushID}, nil
}

// === Read Methods ===

func (s *Store) Get(ctx context.Context, path storage.Path) (any, error) {
	if len(path) == 0 {
		var rows []node
		if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
			return nil, err
		}
		return decodeRows(rows)
	}

	var row node
	err := s.db.WithContext(ctx).Limit(1).Find(&row, "key = ?", path[0]).Error
	if err != nil {
		return nil, err
	}
	if row.Key == "" {
		return nil, nil
	}
	tree, err := storage.DecodeJSON(row.Data)
	if err != nil {
		return nil, fmt.Errorf("corrupted node %s: %w", row.Key, err)
	}
	return storage.Lookup(tree, path[1:]), nil
}

// === Write Methods ===

func (s *Store) Set(ctx context.Context, path storage.Path, value any) error {
	return s.mutate(ctx, path, func(root any) (any, error) {
		return storage.Assign(root, path, value), nil
	})
}

func (s *Store) Update(ctx context.Context, path storage.Path, fields map[string]any) error {
	return s.mutate(ctx, path, func(root any) (any, error) {
		return storage.Merge(root, path, fields)
	})
}

func (s *Store) Push(ctx context.Context, path storage.Path, value any) (string, error) {
	id := s.newID()
	err := s.mutate(ctx, path, func(root any) (any, error) {
		return storage.Assign(root, path.Child(id), value), nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) Delete(ctx context.Context, path storage.Path) error {
	return s.Set(ctx, path, nil)
}

// mutate выполняет чтение-изменение-запись в одной транзакции с блокировкой затронутых строк.
// Для пути с первым сегментом блокируется одна строка, для корня - вся таблица.
func (s *Store) mutate(ctx context.Context, path storage.Path, fn func(root any) (any, error)) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx.Clauses(clause.Locking{Strength: "UPDATE"})
		if len(path) > 0 {
			// Строка должна существовать до блокировки, иначе FOR UPDATE ничего не держит
			// и две первые записи в новую коллекцию перезапишут друг друга
			placeholder := node{Key: path[0], Data: []byte("null"), UpdatedAt: time.Now().UTC()}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&placeholder).Error; err != nil {
				return err
			}
			query = query.Where("key = ?", path[0])
		}
		var rows []node
		if err := query.Find(&rows).Error; err != nil {
			return err
		}
		root, err := decodeRows(rows)
		if err != nil {
			return err
		}

		next, err := fn(root)
		if err != nil {
			return err
		}

		touched := make(map[string]bool, len(rows))
		for _, r := range rows {
			touched[r.Key] = true
		}
		nextMap, _ := next.(map[string]any)
		if len(path) > 0 {
			touched[path[0]] = true
		} else {
			for k := range nextMap {
				touched[k] = true
			}
		}

		for key := range touched {
			child, ok := nextMap[key]
			if !ok || child == nil {
				if err := tx.Delete(&node{}, "key = ?", key).Error; err != nil {
					return err
				}
				continue
			}
			data, err := json.Marshal(child)
			if err != nil {
				return err
			}
			if err := tx.Save(&node{Key: key, Data: data, UpdatedAt: time.Now().UTC()}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func decodeRows(rows []node) (any, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	root := make(map[string]any, len(rows))
	for _, r := range rows {
		v, err := storage.DecodeJSON(r.Data)
		if err != nil {
			return nil, fmt.Errorf("corrupted node %s: %w", r.Key, err)
		}
		if v == nil {
			continue
		}
		root[r.Key] = v
	}
	if len(root) == 0 {
		return nil, nil
	}
	return root, nil
}
