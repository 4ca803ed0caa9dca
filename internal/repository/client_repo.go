package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ClareAI/astra-voice-tools/internal/domain"
	"github.com/ClareAI/astra-voice-tools/pkg/logger"
	"github.com/jinzhu/copier"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// GormClientRepository implements ClientRepository using GORM
type GormClientRepository struct {
	db *gorm.DB
}

// NewGormClientRepository creates a new GORM client repository
func NewGormClientRepository(db *gorm.DB) *GormClientRepository {
	return &GormClientRepository{db: db}
}

// Create inserts a new client record
func (r *GormClientRepository) Create(ctx context.Context, record *domain.ClientRecord) error {
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	record.Revision = 1

	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("client %s: %w", record.ClientID, domain.ErrDuplicateKey)
		}
		return fmt.Errorf("failed to create client record: %w", err)
	}
	return nil
}

// Get retrieves a client record by id
func (r *GormClientRepository) Get(ctx context.Context, clientID string) (*domain.ClientRecord, error) {
	var record domain.ClientRecord
	if err := r.db.WithContext(ctx).First(&record, "client_id = ?", clientID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("client %s: %w", clientID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get client record: %w", err)
	}
	return &record, nil
}

// Update performs an optimistic read-modify-write of a single record
func (r *GormClientRepository) Update(ctx context.Context, clientID string, fn UpdateFunc) (*domain.ClientRecord, error) {
	for attempt := 1; attempt <= maxUpdateAttempts; attempt++ {
		current, err := r.Get(ctx, clientID)
		if err != nil {
			return nil, err
		}

		next, err := applyUpdate(current, fn)
		if err != nil {
			return nil, err
		}

		result := r.db.WithContext(ctx).
			Model(&domain.ClientRecord{}).
			Where("client_id = ? AND revision = ?", clientID, current.Revision).
			Select("*").
			Omit("client_id", "created_at").
			Updates(next)
		if result.Error != nil {
			return nil, fmt.Errorf("failed to update client record: %w", result.Error)
		}
		if result.RowsAffected == 1 {
			return next, nil
		}

		logger.Warn(ctx, "client record changed concurrently, retrying update",
			zap.String("client_id", clientID),
			zap.Int64("revision", current.Revision),
			zap.Int("attempt", attempt))
	}
	return nil, fmt.Errorf("client %s: %w", clientID, domain.ErrConcurrentUpdate)
}

// applyUpdate runs fn on a deep copy of current and stamps the next revision
func applyUpdate(current *domain.ClientRecord, fn UpdateFunc) (*domain.ClientRecord, error) {
	next, err := cloneClient(current)
	if err != nil {
		return nil, err
	}
	if err := fn(next); err != nil {
		return nil, err
	}
	next.ClientID = current.ClientID
	next.CreatedAt = current.CreatedAt
	next.Revision = current.Revision + 1
	next.UpdatedAt = time.Now().UTC()
	return next, nil
}

func cloneClient(src *domain.ClientRecord) (*domain.ClientRecord, error) {
	dst := &domain.ClientRecord{}
	if err := copier.CopyWithOption(dst, src, copier.Option{DeepCopy: true}); err != nil {
		return nil, fmt.Errorf("failed to copy client record: %w", err)
	}
	return dst, nil
}
