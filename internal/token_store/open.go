package token_store

import (
	"fmt"

	"go.uber.org/zap"
)

// Open builds the store selected by driver. A non-empty sealKey wraps it in
// Sealed.
func Open(driver, dsn, sealKey string, logger *zap.Logger) (Store, error) {
	var store Store
	switch driver {
	case "", "memory":
		store = NewMemoryStore()
	case "postgres", "sqlite":
		sqlStore, err := OpenSQL(driver, dsn, logger)
		if err != nil {
			return nil, err
		}
		store = sqlStore
	default:
		return nil, fmt.Errorf("unsupported token store driver %q", driver)
	}

	if sealKey == "" {
		if driver != "" && driver != "memory" {
			logger.Warn("Token store is not sealed; tokens are stored in plaintext", zap.String("driver", driver))
		}
		return store, nil
	}

	key, err := ParseKey(sealKey)
	if err != nil {
		store.Close()
		return nil, err
	}
	sealed, err := NewSealed(store, key)
	if err != nil {
		store.Close()
		return nil, err
	}
	return sealed, nil
}
