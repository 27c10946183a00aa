package datasource

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-quality/pkg/dialect"
)

// AdapterInfo describes a registered connectivity adapter.
type AdapterInfo struct {
	Type        dialect.ID `json:"type"`         // "postgres", "snowflake", "bigquery"
	DisplayName string     `json:"display_name"` // "PostgreSQL", "Snowflake"
	Description string     `json:"description"`
}

// QueryExecutorFactory opens a query handle from an adapter-specific options map.
type QueryExecutorFactory func(ctx context.Context, config map[string]any, logger *zap.Logger) (QueryExecutor, error)

// AdapterRegistration contains info + factory for creating executors.
type AdapterRegistration struct {
	Info                 AdapterInfo
	QueryExecutorFactory QueryExecutorFactory
}

var (
	registryMu sync.RWMutex
	registry   = make(map[dialect.ID]AdapterRegistration)
)

// Register is called by each adapter's init() function.
// Thread-safe for concurrent init() calls.
func Register(reg AdapterRegistration) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[reg.Info.Type] = reg
}

// RegisteredAdapters returns info for all adapters compiled into the binary,
// sorted by type.
func RegisteredAdapters() []AdapterInfo {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]AdapterInfo, 0, len(registry))
	for _, reg := range registry {
		result = append(result, reg.Info)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Type < result[j].Type })
	return result
}

// GetQueryExecutorFactory returns the executor factory for a dialect.
// Returns nil if no adapter for it is compiled in.
func GetQueryExecutorFactory(id dialect.ID) QueryExecutorFactory {
	registryMu.RLock()
	defer registryMu.RUnlock()

	if reg, ok := registry[id]; ok {
		return reg.QueryExecutorFactory
	}
	return nil
}

// IsRegistered checks if an adapter for the dialect is available.
func IsRegistered(id dialect.ID) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[id]
	return ok
}
