package ports

import (
	"context"

	"ferret/internal/domain"
)

// Advisor produces a short human-readable summary of a completed scan's
// findings. It is optional and strictly best-effort: callers swallow any
// error and substitute a placeholder, and an advisor failure never changes a
// job's outcome.
type Advisor interface {
	Summarize(ctx context.Context, target string, findings []domain.NormalizedResult) (string, error)
}
