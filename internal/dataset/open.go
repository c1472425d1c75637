package dataset

import (
	"net/http"

	"github.com/lox/drillboard/internal/config"
	"github.com/lox/drillboard/internal/store"
)

var _ Store = (*store.Store)(nil)

// Open resolves the configured backend once at startup. Persistent
// backends are wrapped in a Fallback.
func Open(cfg *config.Config, sqlite *store.Store, httpClient *http.Client) (Store, string) {
	switch backend := cfg.Backend(); backend {
	case config.BackendMemory:
		return NewMemory(), backend
	case config.BackendS3:
		return NewFallback(NewS3(cfg.AWS, httpClient), backend), backend
	default:
		return NewFallback(sqlite, config.BackendSQLite), config.BackendSQLite
	}
}
