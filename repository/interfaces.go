package repository

import (
	"context"
	"time"

	"buyside-ai/models"
)

// RepositoryInterface defines all repository operations
type RepositoryInterface interface {
	// Health and lifecycle
	Close()
	Health(ctx context.Context) error
	EnsureSchema(ctx context.Context) error

	// Analysis cache
	GetCachedAnalysis(ctx context.Context, key string) (*models.AnalysisResult, error)
	SetCachedAnalysis(ctx context.Context, key string, result *models.AnalysisResult, ttl time.Duration) error
	InvalidateCache(ctx context.Context, key string) error
	CleanExpiredCache(ctx context.Context) (int64, error)
}

// Compile-time interface verification
var _ RepositoryInterface = (*Repository)(nil)
