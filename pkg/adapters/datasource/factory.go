package datasource

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-quality/pkg/dialect"
)

// NewQueryExecutor resolves dsType to a dialect and opens a handle with the
// adapter registered for it. Unknown dialects fail with
// apperrors.ErrUnsupportedDialect; known dialects whose adapter was not
// compiled in fail with a build-tag hint.
func NewQueryExecutor(ctx context.Context, dsType string, config map[string]any, logger *zap.Logger) (QueryExecutor, error) {
	d, err := dialect.Lookup(dsType)
	if err != nil {
		return nil, err
	}

	factory := GetQueryExecutorFactory(d.ID())
	if factory == nil {
		return nil, fmt.Errorf("datasource type %s is not compiled in (build with -tags %s or all_adapters)", d.ID(), d.ID())
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return factory(ctx, config, logger.Named(string(d.ID())))
}
