// Package repository holds the persistence layer: the read-only catalog
// view, the pgvector embedding store, and the search audit tables.
package repository

import (
	"context"

	"github.com/gould-simon/ai-accounting-job-matching/internal/config"
)

// withTimeout bounds a repository call by the configured query timeout so a
// wedged connection surfaces as ErrTimeout instead of hanging a request.
func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, config.LoadDBConfig().QueryTimeout)
}
