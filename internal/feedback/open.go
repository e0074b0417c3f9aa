package feedback

import (
	"fmt"

	"github.com/sadit-diagnostic-engine/internal/domain"
)

// Open returns the review store selected by cfg.Driver.
func Open(cfg domain.StorageConfig) (Store, error) {
	switch cfg.Driver {
	case "", "sqlite":
		return NewSQLiteStore(cfg.SQLitePath)
	case "postgres":
		return NewPostgresStoreFromURL(cfg.PostgresURL)
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Driver)
	}
}
