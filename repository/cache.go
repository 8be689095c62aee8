package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"buyside-ai/models"
	"buyside-ai/observability"
)

// AnalysisCache stores finished analyses in Postgres with a TTL
type AnalysisCache struct {
	repo *Repository
	ttl  time.Duration
}

// NewAnalysisCache creates a cache backed by the analysis_cache table
func NewAnalysisCache(repo *Repository, ttl time.Duration) *AnalysisCache {
	return &AnalysisCache{repo: repo, ttl: ttl}
}

// Get retrieves a cached analysis. Expired rows are treated as missing.
func (c *AnalysisCache) Get(ctx context.Context, key string) (*models.AnalysisResult, bool, error) {
	if c.ttl <= 0 {
		return nil, false, nil
	}
	result, err := c.repo.GetCachedAnalysis(ctx, key)
	metrics := observability.GetMetrics()
	if err != nil {
		return nil, false, err
	}
	if result == nil {
		metrics.RecordCacheMiss("postgres")
		return nil, false, nil
	}
	metrics.RecordCacheHit("postgres")
	return result, true, nil
}

// Set stores an analysis for the cache TTL
func (c *AnalysisCache) Set(ctx context.Context, key string, result *models.AnalysisResult) error {
	if c.ttl <= 0 {
		return nil
	}
	return c.repo.SetCachedAnalysis(ctx, key, result, c.ttl)
}

// GetCachedAnalysis returns the analysis stored under key, or nil if there is
// none or it has expired.
func (r *Repository) GetCachedAnalysis(ctx context.Context, key string) (*models.AnalysisResult, error) {
	if err := r.checkDB(); err != nil {
		return nil, err
	}
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("select", "analysis_cache")

	var (
		data   []byte
		report []byte
	)
	// Let the database handle expiry check to avoid timezone issues
	err := r.db.QueryRow(ctx, `
		SELECT result, report FROM analysis_cache
		WHERE cache_key = $1 AND expires_at > NOW()
	`, key).Scan(&data, &report)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		metrics.RecordDBError("select", "analysis_cache")
		return nil, fmt.Errorf("failed to query cache: %w", err)
	}

	var result models.AnalysisResult
	if err := json.Unmarshal(data, &result); err != nil {
		metrics.RecordDBError("select", "analysis_cache")
		return nil, fmt.Errorf("failed to unmarshal cached analysis: %w", err)
	}
	result.Report = report

	return &result, nil
}

// SetCachedAnalysis stores an analysis with a TTL, replacing any previous entry for key
func (r *Repository) SetCachedAnalysis(ctx context.Context, key string, result *models.AnalysisResult, ttl time.Duration) error {
	if err := r.checkDB(); err != nil {
		return err
	}
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("upsert", "analysis_cache")

	data, err := json.Marshal(result)
	if err != nil {
		metrics.RecordDBError("upsert", "analysis_cache")
		return fmt.Errorf("failed to marshal analysis: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO analysis_cache (cache_key, tickers, language, result, report, expires_at)
		VALUES ($1, $2, $3, $4, $5, NOW() + make_interval(secs => $6))
		ON CONFLICT (cache_key)
		DO UPDATE SET result = EXCLUDED.result, report = EXCLUDED.report,
			expires_at = EXCLUDED.expires_at, created_at = NOW()
	`, key, result.Tickers, string(result.Language), data, result.Report, ttl.Seconds())

	if err != nil {
		metrics.RecordDBError("upsert", "analysis_cache")
		return fmt.Errorf("failed to set cache: %w", err)
	}

	return nil
}

// InvalidateCache removes one cached analysis
func (r *Repository) InvalidateCache(ctx context.Context, key string) error {
	if err := r.checkDB(); err != nil {
		return err
	}
	_, err := r.db.Exec(ctx, `DELETE FROM analysis_cache WHERE cache_key = $1`, key)
	if err != nil {
		observability.GetMetrics().RecordDBError("delete", "analysis_cache")
		return fmt.Errorf("failed to invalidate cache: %w", err)
	}
	return nil
}

// CleanExpiredCache removes all expired cache entries
func (r *Repository) CleanExpiredCache(ctx context.Context) (int64, error) {
	if err := r.checkDB(); err != nil {
		return 0, err
	}
	result, err := r.db.Exec(ctx, `DELETE FROM analysis_cache WHERE expires_at < NOW()`)
	if err != nil {
		observability.GetMetrics().RecordDBError("delete", "analysis_cache")
		return 0, fmt.Errorf("failed to clean expired cache: %w", err)
	}
	return result.RowsAffected(), nil
}
