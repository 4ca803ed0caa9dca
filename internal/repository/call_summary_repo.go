package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/ClareAI/astra-voice-tools/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormCallSummaryRepository implements CallSummaryRepository using GORM
type GormCallSummaryRepository struct {
	db *gorm.DB
}

// NewGormCallSummaryRepository creates a new GORM call summary repository
func NewGormCallSummaryRepository(db *gorm.DB) *GormCallSummaryRepository {
	return &GormCallSummaryRepository{db: db}
}

// Create stores a call summary
func (r *GormCallSummaryRepository) Create(ctx context.Context, summary *domain.CallSummary) error {
	if err := r.db.WithContext(ctx).Create(summary).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("summary %s: %w", summary.SummaryID, domain.ErrDuplicateKey)
		}
		return fmt.Errorf("failed to create call summary: %w", err)
	}
	return nil
}

// Get retrieves a call summary by id
func (r *GormCallSummaryRepository) Get(ctx context.Context, summaryID string) (*domain.CallSummary, error) {
	var summary domain.CallSummary
	if err := r.db.WithContext(ctx).First(&summary, "summary_id = ?", summaryID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("summary %s: %w", summaryID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get call summary: %w", err)
	}
	return &summary, nil
}

// GormOAuthTokenRepository implements OAuthTokenRepository using GORM
type GormOAuthTokenRepository struct {
	db *gorm.DB
}

// NewGormOAuthTokenRepository creates a new GORM OAuth token repository
func NewGormOAuthTokenRepository(db *gorm.DB) *GormOAuthTokenRepository {
	return &GormOAuthTokenRepository{db: db}
}

// Save inserts or replaces the token of token.Provider
func (r *GormOAuthTokenRepository) Save(ctx context.Context, token *domain.OAuthToken) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "provider"}},
			UpdateAll: true,
		}).
		Create(token).Error
	if err != nil {
		return fmt.Errorf("failed to save oauth token: %w", err)
	}
	return nil
}

// Get retrieves the token of a provider
func (r *GormOAuthTokenRepository) Get(ctx context.Context, provider string) (*domain.OAuthToken, error) {
	var token domain.OAuthToken
	if err := r.db.WithContext(ctx).First(&token, "provider = ?", provider).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("oauth token %s: %w", provider, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get oauth token: %w", err)
	}
	return &token, nil
}
