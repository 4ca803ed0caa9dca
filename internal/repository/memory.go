package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ClareAI/astra-voice-tools/internal/domain"
	"github.com/jinzhu/copier"
)

// MemoryClientRepository is an in-process ClientRepository. Each Update holds the lock
// for the whole read-modify-write, so concurrent writers never lose updates.
type MemoryClientRepository struct {
	mu      sync.Mutex
	records map[string]*domain.ClientRecord
}

// NewMemoryClientRepository creates an empty in-memory client repository
func NewMemoryClientRepository() *MemoryClientRepository {
	return &MemoryClientRepository{records: make(map[string]*domain.ClientRecord)}
}

// Create stores a copy of record
func (r *MemoryClientRepository) Create(ctx context.Context, record *domain.ClientRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[record.ClientID]; exists {
		return fmt.Errorf("client %s: %w", record.ClientID, domain.ErrDuplicateKey)
	}

	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	record.Revision = 1

	stored, err := cloneClient(record)
	if err != nil {
		return err
	}
	r.records[record.ClientID] = stored
	return nil
}

// Get returns a copy of the stored record
func (r *MemoryClientRepository) Get(ctx context.Context, clientID string) (*domain.ClientRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[clientID]
	if !ok {
		return nil, fmt.Errorf("client %s: %w", clientID, domain.ErrNotFound)
	}
	return cloneClient(record)
}

// Update applies fn under the repository lock
func (r *MemoryClientRepository) Update(ctx context.Context, clientID string, fn UpdateFunc) (*domain.ClientRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.records[clientID]
	if !ok {
		return nil, fmt.Errorf("client %s: %w", clientID, domain.ErrNotFound)
	}

	next, err := applyUpdate(current, fn)
	if err != nil {
		return nil, err
	}
	r.records[clientID] = next
	return cloneClient(next)
}

// Len returns the number of stored records
func (r *MemoryClientRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// MemoryCallSummaryRepository is an in-process CallSummaryRepository
type MemoryCallSummaryRepository struct {
	mu        sync.Mutex
	summaries map[string]*domain.CallSummary
}

// NewMemoryCallSummaryRepository creates an empty in-memory call summary repository
func NewMemoryCallSummaryRepository() *MemoryCallSummaryRepository {
	return &MemoryCallSummaryRepository{summaries: make(map[string]*domain.CallSummary)}
}

// Create stores a copy of summary
func (r *MemoryCallSummaryRepository) Create(ctx context.Context, summary *domain.CallSummary) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.summaries[summary.SummaryID]; exists {
		return fmt.Errorf("summary %s: %w", summary.SummaryID, domain.ErrDuplicateKey)
	}
	stored := &domain.CallSummary{}
	if err := copier.CopyWithOption(stored, summary, copier.Option{DeepCopy: true}); err != nil {
		return fmt.Errorf("failed to copy call summary: %w", err)
	}
	r.summaries[summary.SummaryID] = stored
	return nil
}

// Get returns a copy of the stored summary
func (r *MemoryCallSummaryRepository) Get(ctx context.Context, summaryID string) (*domain.CallSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	summary, ok := r.summaries[summaryID]
	if !ok {
		return nil, fmt.Errorf("summary %s: %w", summaryID, domain.ErrNotFound)
	}
	out := &domain.CallSummary{}
	if err := copier.CopyWithOption(out, summary, copier.Option{DeepCopy: true}); err != nil {
		return nil, fmt.Errorf("failed to copy call summary: %w", err)
	}
	return out, nil
}

// MemoryOAuthTokenRepository is an in-process OAuthTokenRepository
type MemoryOAuthTokenRepository struct {
	mu     sync.Mutex
	tokens map[string]domain.OAuthToken
}

// NewMemoryOAuthTokenRepository creates an empty in-memory token repository
func NewMemoryOAuthTokenRepository() *MemoryOAuthTokenRepository {
	return &MemoryOAuthTokenRepository{tokens: make(map[string]domain.OAuthToken)}
}

// Save replaces the token of token.Provider
func (r *MemoryOAuthTokenRepository) Save(ctx context.Context, token *domain.OAuthToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *token
	stored.UpdatedAt = time.Now().UTC()
	r.tokens[token.Provider] = stored
	return nil
}

// Get returns the token of a provider
func (r *MemoryOAuthTokenRepository) Get(ctx context.Context, provider string) (*domain.OAuthToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	token, ok := r.tokens[provider]
	if !ok {
		return nil, fmt.Errorf("oauth token %s: %w", provider, domain.ErrNotFound)
	}
	return &token, nil
}

// MemoryRepositoryManager implements RepositoryManager without a database
type MemoryRepositoryManager struct {
	clients       *MemoryClientRepository
	callSummaries *MemoryCallSummaryRepository
	oauthTokens   *MemoryOAuthTokenRepository
}

// NewMemoryRepositoryManager creates a repository manager backed by process memory
func NewMemoryRepositoryManager() *MemoryRepositoryManager {
	return &MemoryRepositoryManager{
		clients:       NewMemoryClientRepository(),
		callSummaries: NewMemoryCallSummaryRepository(),
		oauthTokens:   NewMemoryOAuthTokenRepository(),
	}
}

func (m *MemoryRepositoryManager) Clients() ClientRepository            { return m.clients }
func (m *MemoryRepositoryManager) CallSummaries() CallSummaryRepository { return m.callSummaries }
func (m *MemoryRepositoryManager) OAuthTokens() OAuthTokenRepository    { return m.oauthTokens }
func (m *MemoryRepositoryManager) Ping(ctx context.Context) error       { return nil }
func (m *MemoryRepositoryManager) Close() error                         { return nil }
