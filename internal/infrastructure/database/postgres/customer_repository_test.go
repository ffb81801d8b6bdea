package postgres

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"clientes-service/internal/domain/customer"
	"clientes-service/internal/pkg/apperrors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pgxmockExpectationsNotMetMsg = "pgxmock expectations were not met"

var logger = slog.New(slog.NewTextHandler(io.Discard, nil))

var customerTest = &customer.Customer{
	ID:          1,
	Name:        "Ana",
	CreditLimit: decimal.RequireFromString("1000"),
}

func setupCustomerRepo(t *testing.T, opts ...RepositoryOption) (context.Context, *CustomerRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to open a stub database connection: %v", err)
	}

	ctx := context.Background()
	repo := NewCustomerRepository(mockPool, logger, opts...)

	return ctx, repo, mockPool
}

func beginMockTx(t *testing.T, ctx context.Context, mockPool pgxmock.PgxPoolIface) pgx.Tx {
	t.Helper()
	mockPool.ExpectBegin()
	tx, err := mockPool.Begin(ctx)
	require.NoError(t, err)
	return tx
}

func TestNewCustomerRepositoryPanicsOnNilPool(t *testing.T) {
	assert.Panics(t, func() { NewCustomerRepository(nil, logger) })
}

func TestFindAllCustomersReturnsRows(t *testing.T) {
	ctx, repo, mockPool := setupCustomerRepo(t)
	defer mockPool.Close()

	mockPool.ExpectQuery(regexp.QuoteMeta(findAllCustomersQuery)).
		WillReturnRows(pgxmock.NewRows([]string{"idcliente", "nome_cliente", "limite_credito"}).
			AddRow(int64(1), "Ana", "1000.00").
			AddRow(int64(2), "Bruno", "0"))

	customers, err := repo.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, customers, 2)
	assert.Equal(t, "Ana", customers[0].Name)
	assert.True(t, decimal.RequireFromString("1000").Equal(customers[0].CreditLimit))
	assert.Equal(t, int64(2), customers[1].ID)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestFindAllCustomersEmptyTable(t *testing.T) {
	ctx, repo, mockPool := setupCustomerRepo(t)
	defer mockPool.Close()

	mockPool.ExpectQuery(regexp.QuoteMeta(findAllCustomersQuery)).
		WillReturnRows(pgxmock.NewRows([]string{"idcliente", "nome_cliente", "limite_credito"}))

	customers, err := repo.FindAll(ctx)
	assert.NoError(t, err)
	assert.NotNil(t, customers)
	assert.Empty(t, customers)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestFindAllCustomersConnectionFailure(t *testing.T) {
	ctx, repo, mockPool := setupCustomerRepo(t)
	defer mockPool.Close()

	mockPool.ExpectQuery(regexp.QuoteMeta(findAllCustomersQuery)).
		WillReturnError(errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"))

	customers, err := repo.FindAll(ctx)
	assert.Nil(t, customers)
	assert.ErrorIs(t, err, apperrors.ErrConnectivity)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestFindCustomerByIDReturnOne(t *testing.T) {
	ctx, repo, mockPool := setupCustomerRepo(t)
	defer mockPool.Close()

	mockPool.ExpectQuery(regexp.QuoteMeta(findCustomerByIDQuery)).WithArgs(customerTest.ID).
		WillReturnRows(pgxmock.NewRows([]string{"idcliente", "nome_cliente", "limite_credito"}).
			AddRow(customerTest.ID, customerTest.Name, "1000.00"))

	customerResult, err := repo.FindByID(ctx, customerTest.ID)
	require.NoError(t, err)
	assert.Equal(t, customerTest.ID, customerResult.ID)
	assert.Equal(t, customerTest.Name, customerResult.Name)
	assert.True(t, customerTest.CreditLimit.Equal(customerResult.CreditLimit))
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestFindCustomerByIDReturnNone(t *testing.T) {
	ctx, repo, mockPool := setupCustomerRepo(t)
	defer mockPool.Close()

	mockPool.ExpectQuery(regexp.QuoteMeta(findCustomerByIDQuery)).WithArgs(customerTest.ID).WillReturnError(pgx.ErrNoRows)

	customerResult, err := repo.FindByID(ctx, customerTest.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Nil(t, customerResult)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestFindCustomerByIDRejectsGarbageLimit(t *testing.T) {
	ctx, repo, mockPool := setupCustomerRepo(t)
	defer mockPool.Close()

	mockPool.ExpectQuery(regexp.QuoteMeta(findCustomerByIDQuery)).WithArgs(customerTest.ID).
		WillReturnRows(pgxmock.NewRows([]string{"idcliente", "nome_cliente", "limite_credito"}).
			AddRow(customerTest.ID, customerTest.Name, "NaN?"))

	_, err := repo.FindByID(ctx, customerTest.ID)
	assert.Equal(t, apperrors.KindQuery, apperrors.KindOf(err))
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestCustomerStats(t *testing.T) {
	ctx, repo, mockPool := setupCustomerRepo(t)
	defer mockPool.Close()

	mockPool.ExpectQuery(regexp.QuoteMeta(customerStatsQuery)).
		WillReturnRows(pgxmock.NewRows([]string{"count", "sum"}).AddRow(int64(2), "2500.50"))

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Customers)
	assert.True(t, decimal.RequireFromString("2500.50").Equal(stats.TotalCreditLimit))
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestInsertCustomerInTx(t *testing.T) {
	ctx, repo, mockPool := setupCustomerRepo(t)
	defer mockPool.Close()
	tx := beginMockTx(t, ctx, mockPool)

	mockPool.ExpectExec(regexp.QuoteMeta(insertCustomerQuery)).
		WithArgs(customerTest.ID, customerTest.Name, "1000.00").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mockPool.ExpectCommit()

	require.NoError(t, repo.InsertInTx(ctx, tx, customerTest))
	require.NoError(t, repo.CommitTx(ctx, tx))
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestInsertCustomerInTxDuplicateID(t *testing.T) {
	ctx, repo, mockPool := setupCustomerRepo(t)
	defer mockPool.Close()
	tx := beginMockTx(t, ctx, mockPool)

	mockPool.ExpectExec(regexp.QuoteMeta(insertCustomerQuery)).
		WithArgs(customerTest.ID, customerTest.Name, "1000.00").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "clientes_pkey"})
	mockPool.ExpectRollback()

	err := repo.InsertInTx(ctx, tx, customerTest)
	assert.ErrorIs(t, err, apperrors.ErrConstraintViolation)
	assert.Contains(t, err.Error(), "clientes_pkey")
	require.NoError(t, repo.RollbackTx(ctx, tx))
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestInsertCustomerInTxNil(t *testing.T) {
	ctx, repo, mockPool := setupCustomerRepo(t)
	defer mockPool.Close()

	err := repo.InsertInTx(ctx, nil, nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
}

func TestLockCustomerNoWait(t *testing.T) {
	ctx, repo, mockPool := setupCustomerRepo(t)
	defer mockPool.Close()
	tx := beginMockTx(t, ctx, mockPool)

	mockPool.ExpectQuery(regexp.QuoteMeta(lockCustomerNoWaitQuery)).WithArgs(customerTest.ID).
		WillReturnRows(pgxmock.NewRows([]string{"nome_cliente", "limite_credito"}).AddRow("Ana", "1000.00"))

	snap, err := repo.LockByIDInTx(ctx, tx, customerTest.ID, customer.LockNoWait)
	require.NoError(t, err)
	assert.True(t, snap.Matches(customerTest.Snapshot()))
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestLockCustomerNoWaitWhileHeld(t *testing.T) {
	ctx, repo, mockPool := setupCustomerRepo(t)
	defer mockPool.Close()
	tx := beginMockTx(t, ctx, mockPool)

	mockPool.ExpectQuery(regexp.QuoteMeta(lockCustomerNoWaitQuery)).WithArgs(customerTest.ID).
		WillReturnError(&pgconn.PgError{Code: "55P03", Message: `could not obtain lock on row in relation "clientes"`})

	snap, err := repo.LockByIDInTx(ctx, tx, customerTest.ID, customer.LockNoWait)
	assert.Nil(t, snap)
	assert.ErrorIs(t, err, apperrors.ErrLocked)
	assert.Equal(t, apperrors.KindLocked, apperrors.KindOf(err))
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestLockCustomerWaitMissingRow(t *testing.T) {
	ctx, repo, mockPool := setupCustomerRepo(t)
	defer mockPool.Close()
	tx := beginMockTx(t, ctx, mockPool)

	mockPool.ExpectQuery(regexp.QuoteMeta(lockCustomerQuery) + "$").WithArgs(int64(99)).
		WillReturnError(pgx.ErrNoRows)

	snap, err := repo.LockByIDInTx(ctx, tx, 99, customer.LockWait)
	assert.Nil(t, snap)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestLockCustomerWaitAppliesLockTimeout(t *testing.T) {
	ctx, repo, mockPool := setupCustomerRepo(t, WithLockTimeout(1500*time.Millisecond))
	defer mockPool.Close()
	tx := beginMockTx(t, ctx, mockPool)

	mockPool.ExpectExec(regexp.QuoteMeta(setLockTimeoutQuery)).WithArgs("1500ms").
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mockPool.ExpectQuery(regexp.QuoteMeta(lockCustomerQuery) + "$").WithArgs(customerTest.ID).
		WillReturnError(&pgconn.PgError{Code: "55P03", Message: "canceling statement due to lock timeout"})

	_, err := repo.LockByIDInTx(ctx, tx, customerTest.ID, customer.LockWait)
	assert.ErrorIs(t, err, apperrors.ErrLocked)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestUpdateCustomerInTx(t *testing.T) {
	ctx, repo, mockPool := setupCustomerRepo(t)
	defer mockPool.Close()
	tx := beginMockTx(t, ctx, mockPool)
	updated := &customer.Customer{ID: 1, Name: "Ana Maria", CreditLimit: decimal.RequireFromString("1200.5")}

	mockPool.ExpectExec(regexp.QuoteMeta(updateCustomerQuery)).
		WithArgs("Ana Maria", "1200.50", int64(1)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	assert.NoError(t, repo.UpdateInTx(ctx, tx, updated))
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestUpdateCustomerInTxZeroRows(t *testing.T) {
	ctx, repo, mockPool := setupCustomerRepo(t)
	defer mockPool.Close()
	tx := beginMockTx(t, ctx, mockPool)

	mockPool.ExpectExec(regexp.QuoteMeta(updateCustomerQuery)).
		WithArgs(customerTest.Name, "1000.00", customerTest.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.UpdateInTx(ctx, tx, customerTest)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestDeleteCustomerInTx(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
	}{
		{name: "existing row", affected: 1},
		{name: "missing row", affected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, repo, mockPool := setupCustomerRepo(t)
			defer mockPool.Close()
			tx := beginMockTx(t, ctx, mockPool)

			mockPool.ExpectExec(regexp.QuoteMeta(deleteCustomerQuery)).WithArgs(customerTest.ID).
				WillReturnResult(pgxmock.NewResult("DELETE", tt.affected))

			affected, err := repo.DeleteInTx(ctx, tx, customerTest.ID)
			assert.NoError(t, err)
			assert.Equal(t, tt.affected, affected)
			assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
		})
	}
}

func TestDeleteCustomerInTxQueryError(t *testing.T) {
	ctx, repo, mockPool := setupCustomerRepo(t)
	defer mockPool.Close()
	tx := beginMockTx(t, ctx, mockPool)

	mockPool.ExpectExec(regexp.QuoteMeta(deleteCustomerQuery)).WithArgs(customerTest.ID).
		WillReturnError(&pgconn.PgError{Code: "42P01", Message: `relation "clientes" does not exist`})

	_, err := repo.DeleteInTx(ctx, tx, customerTest.ID)
	assert.Equal(t, apperrors.KindQuery, apperrors.KindOf(err))
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestBeginTxFailure(t *testing.T) {
	ctx, repo, mockPool := setupCustomerRepo(t)
	defer mockPool.Close()

	mockPool.ExpectBegin().WillReturnError(&pgconn.PgError{Code: "08006", Message: "connection failure"})

	tx, err := repo.BeginTx(ctx)
	assert.Nil(t, tx)
	assert.ErrorIs(t, err, apperrors.ErrConnectivity)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestRollbackTxIgnoresClosedTransaction(t *testing.T) {
	ctx, repo, mockPool := setupCustomerRepo(t)
	defer mockPool.Close()
	tx := beginMockTx(t, ctx, mockPool)

	mockPool.ExpectRollback().WillReturnError(pgx.ErrTxClosed)

	assert.NoError(t, repo.RollbackTx(ctx, tx))
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestPing(t *testing.T) {
	ctx, repo, mockPool := setupCustomerRepo(t)
	defer mockPool.Close()

	mockPool.ExpectPing()
	mockPool.ExpectPing().WillReturnError(errors.New("connection reset by peer"))

	assert.NoError(t, repo.Ping(ctx))
	assert.ErrorIs(t, repo.Ping(ctx), apperrors.ErrConnectivity)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}
