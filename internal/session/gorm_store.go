package session

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Entry is one persisted key-value pair.
type Entry struct {
	Key   string `gorm:"column:storage_key;primarykey;type:varchar(255)"`
	Value []byte `gorm:"column:storage_value;not null"`
}

// TableName keeps client-local entries apart from any server schema.
func (Entry) TableName() string {
	return "local_storage"
}

// GormStore persists entries in a GORM database, normally a SQLite file in
// the user's config directory.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore migrates the entry table and returns a Store on db.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate local storage: %w", err)
	}
	return &GormStore{db: db}, nil
}

// OpenSQLite opens (creating if needed) a SQLite-backed store at path.
func OpenSQLite(path string) (*GormStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open local storage %s: %w", path, err)
	}
	return NewGormStore(db)
}

func (s *GormStore) Get(ctx context.Context, key string) ([]byte, error) {
	var e Entry
	if err := s.db.WithContext(ctx).First(&e, "storage_key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrKeyNotFound
		}
		return nil, err
	}
	return e.Value, nil
}

func (s *GormStore) Set(ctx context.Context, key string, value []byte) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "storage_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"storage_value"}),
		}).
		Create(&Entry{Key: key, Value: value}).Error
}

func (s *GormStore) Delete(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).Delete(&Entry{}, "storage_key = ?", key).Error
}

func (s *GormStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := s.db.WithContext(ctx).Model(&Entry{}).
		Where("storage_key LIKE ? ESCAPE '\\'", escapeLike(prefix)+"%").
		Order("storage_key").
		Pluck("storage_key", &keys).Error
	return keys, err
}

// escapeLike neutralises LIKE wildcards; session keys contain underscores.
func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%', '_', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
