package repository

import (
	"context"

	"github.com/ClareAI/astra-voice-tools/internal/domain"
	"gorm.io/gorm"
)

// UpdateFunc mutates a copy of a client record; returning an error aborts the write
type UpdateFunc func(record *domain.ClientRecord) error

// ClientRepository persists onboarding client records keyed by client id
type ClientRepository interface {
	// Create fails with domain.ErrDuplicateKey if the client id already exists
	Create(ctx context.Context, record *domain.ClientRecord) error

	// Get fails with domain.ErrNotFound if the client id is unknown
	Get(ctx context.Context, clientID string) (*domain.ClientRecord, error)

	// Update applies fn to the current record and persists the result only if no other
	// writer changed the record in between (revision check), retrying on conflict
	Update(ctx context.Context, clientID string, fn UpdateFunc) (*domain.ClientRecord, error)
}

// CallSummaryRepository persists call summaries
type CallSummaryRepository interface {
	Create(ctx context.Context, summary *domain.CallSummary) error
	Get(ctx context.Context, summaryID string) (*domain.CallSummary, error)
}

// OAuthTokenRepository persists OAuth credentials per provider
type OAuthTokenRepository interface {
	Save(ctx context.Context, token *domain.OAuthToken) error
	Get(ctx context.Context, provider string) (*domain.OAuthToken, error)
}

// RepositoryManager combines all repositories
type RepositoryManager interface {
	Clients() ClientRepository
	CallSummaries() CallSummaryRepository
	OAuthTokens() OAuthTokenRepository

	// Health check
	Ping(ctx context.Context) error

	// Close connection
	Close() error
}

// maxUpdateAttempts bounds optimistic retries before ErrConcurrentUpdate
const maxUpdateAttempts = 5

// GormRepositoryManager implements RepositoryManager using GORM
type GormRepositoryManager struct {
	db              *gorm.DB
	clientRepo      *GormClientRepository
	callSummaryRepo *GormCallSummaryRepository
	oauthTokenRepo  *GormOAuthTokenRepository
}

// NewGormRepositoryManager creates a new GORM repository manager
func NewGormRepositoryManager(db *gorm.DB) *GormRepositoryManager {
	return &GormRepositoryManager{
		db:              db,
		clientRepo:      NewGormClientRepository(db),
		callSummaryRepo: NewGormCallSummaryRepository(db),
		oauthTokenRepo:  NewGormOAuthTokenRepository(db),
	}
}

// Clients returns the client record repository
func (m *GormRepositoryManager) Clients() ClientRepository {
	return m.clientRepo
}

// CallSummaries returns the call summary repository
func (m *GormRepositoryManager) CallSummaries() CallSummaryRepository {
	return m.callSummaryRepo
}

// OAuthTokens returns the OAuth token repository
func (m *GormRepositoryManager) OAuthTokens() OAuthTokenRepository {
	return m.oauthTokenRepo
}

// Ping checks the database connection
func (m *GormRepositoryManager) Ping(ctx context.Context) error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection
func (m *GormRepositoryManager) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
