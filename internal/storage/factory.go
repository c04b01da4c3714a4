package storage

import (
	"fmt"
	"path/filepath"

	"educahub/internal/config"
	"educahub/internal/database"
	"educahub/internal/hub"
)

// NewStateStoreFromConfig creates a StateStore implementation based on the storage config type.
func NewStateStoreFromConfig(cfg config.StorageConfig, clock hub.Clock) (hub.StateStore, error) {
	switch cfg.Type {
	case "sqlite", "":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite storage")
		}
		db, err := database.NewSQLiteDatabase(filepath.Join(cfg.DataDir, "client.db"), clock)
		if err != nil {
			return nil, err
		}
		return db, nil
	case "filesystem":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for filesystem storage")
		}
		fs, err := NewFileSystemStore(cfg.DataDir)
		if err != nil {
			return nil, err
		}
		return fs, nil
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
