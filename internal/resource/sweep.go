package resource

import (
	"context"

	"go.uber.org/zap"

	"admin-console/internal/models"
)

// PageFetcher returns the 1-based page of a collection.
type PageFetcher[T any] func(ctx context.Context, page int) (*models.Page[T], error)

// Sweep walks pages 1, 2, ... while the envelope has a next link. The first
// failed request ends the sweep and whatever was collected so far is returned.
func Sweep[T any](ctx context.Context, fetch PageFetcher[T], logger *zap.Logger) []T {
	results := make([]T, 0)
	for page := 1; ; page++ {
		p, err := fetch(ctx, page)
		if err != nil {
			logger.Warn("Pagination sweep stopped early",
				zap.Int("page", page), zap.Int("collected", len(results)), zap.Error(err))
			return results
		}
		results = append(results, p.Results...)
		if !p.HasNext() {
			return results
		}
	}
}
