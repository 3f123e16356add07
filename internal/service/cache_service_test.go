package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/qr-attendance-api/internal/models"
	"github.com/noah-isme/qr-attendance-api/pkg/jobs"
)

func TestCacheServiceDisabledIsNoop(t *testing.T) {
	repo := newMemoryCacheRepo()
	svc := NewCacheService(repo, nil, 0, nil, false)

	require.NoError(t, svc.Set(context.Background(), "k", 1, time.Second))
	hit, err := svc.Get(context.Background(), "k", new(int))
	require.NoError(t, err)
	assert.False(t, hit)
	assert.False(t, repo.has("k"))

	var nilSvc *CacheService
	assert.False(t, nilSvc.Enabled())
	assert.NoError(t, nilSvc.Invalidate(context.Background(), statusCachePattern))
}

func TestCacheServiceRecordsMetrics(t *testing.T) {
	metrics := NewMetricsService()
	repo := newMemoryCacheRepo()
	svc := NewCacheService(repo, metrics, time.Minute, nil, true)
	ctx := context.Background()

	var dest models.DailyStatusReport
	hit, err := svc.Get(ctx, StatusCacheKey("2024-05-01"), &dest)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, svc.Set(ctx, StatusCacheKey("2024-05-01"), models.DailyStatusReport{Date: "2024-05-01", Total: 3}, 0))
	hit, err = svc.Get(ctx, StatusCacheKey("2024-05-01"), &dest)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 3, dest.Total)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.cacheHits))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.cacheMisses))
	assert.Equal(t, 0.5, testutil.ToFloat64(metrics.cacheHitRatio))

	require.NoError(t, svc.Invalidate(ctx, statusCachePattern))
	assert.False(t, repo.has(StatusCacheKey("2024-05-01")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.cacheInvalidation.WithLabelValues("pattern")))
}

func TestCacheServiceSurfacesBackendErrors(t *testing.T) {
	repo := newMemoryCacheRepo()
	repo.getErr = errors.New("redis: connection refused")
	svc := NewCacheService(repo, nil, time.Minute, nil, true)

	hit, err := svc.Get(context.Background(), "k", new(int))
	assert.Error(t, err)
	assert.False(t, hit)
}

func TestStatusInvalidationHandler(t *testing.T) {
	repo := newMemoryCacheRepo()
	cache := NewCacheService(repo, nil, time.Minute, nil, true)
	ctx := context.Background()
	require.NoError(t, cache.Set(ctx, StatusCacheKey("2024-05-01"), 1, 0))
	require.NoError(t, cache.Set(ctx, StatusCacheKey("2024-05-02"), 1, 0))

	handle := NewStatusInvalidationHandler(cache, nil)
	require.NoError(t, handle(ctx, jobs.Job{Type: JobTypeStatusInvalidate, Payload: "2024-05-01"}))

	assert.False(t, repo.has(StatusCacheKey("2024-05-01")))
	assert.True(t, repo.has(StatusCacheKey("2024-05-02")))

	assert.Error(t, handle(ctx, jobs.Job{Type: "report.generate", Payload: "2024-05-01"}))
	assert.NoError(t, handle(ctx, jobs.Job{Type: JobTypeStatusInvalidate, Payload: 42}))
}

func TestCheckInOutcomeMetrics(t *testing.T) {
	f := newAttendanceFixture(t, false, ann)
	metrics := NewMetricsService()
	f.svc.metrics = metrics
	ctx := context.Background()

	_, _ = f.svc.RecordCheckIn(ctx, models.ScanRequest{StudentID: "STU001"})
	_, _ = f.svc.RecordCheckIn(ctx, models.ScanRequest{StudentID: "STU001"})
	_, _ = f.svc.RecordCheckIn(ctx, models.ScanRequest{StudentID: "NOPE"})
	_, _ = f.svc.RecordCheckIn(ctx, models.ScanRequest{StudentID: ""})

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.checkIns.WithLabelValues(string(models.CheckInRecorded))))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.checkIns.WithLabelValues(string(models.CheckInAlreadyRecorded))))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.checkIns.WithLabelValues("not_found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.checkIns.WithLabelValues("invalid")))
}
