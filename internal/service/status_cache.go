package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/qr-attendance-api/pkg/jobs"
)

// JobTypeStatusInvalidate evicts the cached daily status of one day. The payload is the day.
const JobTypeStatusInvalidate = "attendance.status.invalidate"

const (
	statusCachePrefix  = "attendance:status:"
	statusCachePattern = statusCachePrefix + "*"
)

// StatusCacheKey returns the cache key of the reconciled view for day.
func StatusCacheKey(day string) string {
	return statusCachePrefix + day
}

// NewStatusInvalidationHandler builds the queue handler that evicts daily status entries.
func NewStatusInvalidationHandler(cache *CacheService, logger *zap.Logger) jobs.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context, job jobs.Job) error {
		if job.Type != JobTypeStatusInvalidate {
			return fmt.Errorf("unexpected job type %q", job.Type)
		}
		day, ok := job.Payload.(string)
		if !ok || day == "" {
			logger.Warn("dropping invalidation job without day", zap.String("job_id", job.ID))
			return nil
		}
		return cache.Evict(ctx, StatusCacheKey(day))
	}
}
