package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/ClareAI/astra-voice-tools/internal/domain"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	selectClientSQL = `SELECT \* FROM "onboarding_clients" WHERE client_id = \$1`
	updateClientSQL = `UPDATE "onboarding_clients" SET .* WHERE client_id = \$\d+ AND revision = \$\d+`
)

func newMockClientRepository(t *testing.T) (*GormClientRepository, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Discard,
	})
	require.NoError(t, err)

	return NewGormClientRepository(db), mock
}

func expectClientRow(mock sqlmock.Sqlmock, clientID string, revision int64) {
	rows := sqlmock.NewRows([]string{"client_id", "client_name", "client_phone", "amount", "payment_status", "revision"}).
		AddRow(clientID, "Dana", "+15550100", 299.0, string(domain.PaymentStatusPending), revision)
	mock.ExpectQuery(selectClientSQL).WillReturnRows(rows)
}

func markPaid(r *domain.ClientRecord) error {
	r.PaymentStatus = domain.PaymentStatusCompleted
	r.PaymentIntentID = "pi_123"
	return nil
}

func TestGormClientRepositoryUpdateRetriesOnStaleRevision(t *testing.T) {
	repo, mock := newMockClientRepository(t)

	// first attempt loses the race, second sees the bumped revision and wins
	expectClientRow(mock, "client_1", 2)
	mock.ExpectExec(updateClientSQL).WillReturnResult(sqlmock.NewResult(0, 0))
	expectClientRow(mock, "client_1", 3)
	mock.ExpectExec(updateClientSQL).WillReturnResult(sqlmock.NewResult(0, 1))

	calls := 0
	updated, err := repo.Update(context.Background(), "client_1", func(r *domain.ClientRecord) error {
		calls++
		return markPaid(r)
	})
	require.NoError(t, err)

	assert.Equal(t, 2, calls)
	assert.Equal(t, int64(4), updated.Revision)
	assert.Equal(t, domain.PaymentStatusCompleted, updated.PaymentStatus)
	assert.Equal(t, "pi_123", updated.PaymentIntentID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormClientRepositoryUpdateGivesUpAfterMaxAttempts(t *testing.T) {
	repo, mock := newMockClientRepository(t)

	for i := 0; i < maxUpdateAttempts; i++ {
		expectClientRow(mock, "client_1", int64(i+1))
		mock.ExpectExec(updateClientSQL).WillReturnResult(sqlmock.NewResult(0, 0))
	}

	calls := 0
	updated, err := repo.Update(context.Background(), "client_1", func(r *domain.ClientRecord) error {
		calls++
		return markPaid(r)
	})
	require.Error(t, err)
	assert.Nil(t, updated)
	assert.ErrorIs(t, err, domain.ErrConcurrentUpdate)
	assert.Equal(t, maxUpdateAttempts, calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormClientRepositoryUpdateNotFound(t *testing.T) {
	repo, mock := newMockClientRepository(t)

	mock.ExpectQuery(selectClientSQL).WillReturnRows(sqlmock.NewRows([]string{"client_id"}))

	_, err := repo.Update(context.Background(), "missing", markPaid)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormClientRepositoryUpdateFuncErrorSkipsWrite(t *testing.T) {
	repo, mock := newMockClientRepository(t)

	expectClientRow(mock, "client_1", 1)
	errStop := errors.New("stop")

	_, err := repo.Update(context.Background(), "client_1", func(r *domain.ClientRecord) error {
		return errStop
	})
	assert.ErrorIs(t, err, errStop)
	assert.NoError(t, mock.ExpectationsWereMet())
}
