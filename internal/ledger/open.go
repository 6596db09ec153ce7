package ledger

import (
	"errors"
	"strings"

	logx "quakepost/pkg/logx"
)

// Open initializes the configured ledger store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, errors.New("unknown ledger driver: " + driver)
	}
}
