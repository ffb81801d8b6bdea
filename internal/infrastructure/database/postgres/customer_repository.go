package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"clientes-service/internal/domain/customer"
	"clientes-service/internal/infrastructure/monitoring"
	"clientes-service/internal/pkg/apperrors"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const (
	selectCustomerColumns = `SELECT idcliente, COALESCE(nome_cliente, ''), COALESCE(limite_credito, 0)::text FROM clientes`

	findAllCustomersQuery = selectCustomerColumns + ` ORDER BY idcliente ASC`

	findCustomerByIDQuery = selectCustomerColumns + ` WHERE idcliente = $1`

	lockCustomerQuery = `SELECT COALESCE(nome_cliente, ''), COALESCE(limite_credito, 0)::text FROM clientes WHERE idcliente = $1 FOR UPDATE`

	lockCustomerNoWaitQuery = lockCustomerQuery + ` NOWAIT`

	setLockTimeoutQuery = `SELECT set_config('lock_timeout', $1, true)`

	insertCustomerQuery = `INSERT INTO clientes (idcliente, nome_cliente, limite_credito) VALUES ($1, $2, $3)`

	updateCustomerQuery = `UPDATE clientes SET nome_cliente = $1, limite_credito = $2 WHERE idcliente = $3`

	deleteCustomerQuery = `DELETE FROM clientes WHERE idcliente = $1`

	customerStatsQuery = `SELECT COUNT(*), COALESCE(SUM(limite_credito), 0)::text FROM clientes`
)

type CustomerRepository struct {
	db          DBPool
	lockTimeout time.Duration
	logger      *slog.Logger
}

var _ customer.CustomerRepository = (*CustomerRepository)(nil)

type RepositoryOption func(*CustomerRepository)

// WithLockTimeout bounds how long a blocking row lock may wait. Zero keeps
// the server default.
func WithLockTimeout(d time.Duration) RepositoryOption {
	return func(r *CustomerRepository) {
		r.lockTimeout = d
	}
}

func NewCustomerRepository(db DBPool, logger *slog.Logger, opts ...RepositoryOption) *CustomerRepository {
	if db == nil {
		panic("DBPool cannot be nil for CustomerRepository")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
		logger.Warn("Warning: No logger provided to NewCustomerRepository, using default stderr handler")
	}
	r := &CustomerRepository{
		db:     db,
		logger: logger.With("component", "CustomerRepository"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *CustomerRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	r.logger.DebugContext(ctx, "Beginning transaction")
	tx, err := r.db.Begin(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to begin transaction", slog.Any("error", err))
		return nil, translateDBError(err, "failed to begin transaction", r.logger)
	}
	return tx, nil
}

func (r *CustomerRepository) CommitTx(ctx context.Context, tx pgx.Tx) error {
	r.logger.DebugContext(ctx, "Committing transaction")
	if err := tx.Commit(ctx); err != nil {
		r.logger.ErrorContext(ctx, "Failed to commit transaction", slog.Any("error", err))
		return translateDBError(err, "failed to commit transaction", r.logger)
	}
	r.logger.DebugContext(ctx, "Transaction committed successfully")
	return nil
}

func (r *CustomerRepository) RollbackTx(ctx context.Context, tx pgx.Tx) error {
	r.logger.DebugContext(ctx, "Rolling back transaction")
	err := tx.Rollback(ctx)

	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		r.logger.ErrorContext(ctx, "Failed to rollback transaction", slog.Any("error", err))
		return fmt.Errorf("%w: failed to rollback transaction: %w", apperrors.ErrDatabase, err)
	}
	if err == nil {
		r.logger.DebugContext(ctx, "Transaction rolled back successfully")
	} else {
		r.logger.DebugContext(ctx, "Transaction rollback attempted on closed transaction")
	}
	return nil
}

func (r *CustomerRepository) FindAll(ctx context.Context) (customers []*customer.Customer, err error) {
	defer r.observe("FindAll", time.Now(), &err)

	r.logger.InfoContext(ctx, "Attempting to find all customers")

	rows, err := r.db.Query(ctx, findAllCustomersQuery)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to query customers", slog.Any("error", err))
		return nil, translateDBError(err, "failed to query customers", r.logger)
	}
	defer rows.Close()

	customers = make([]*customer.Customer, 0)
	for rows.Next() {
		cust, scanErr := scanCustomer(rows)
		if scanErr != nil {
			r.logger.ErrorContext(ctx, "Failed to scan customer row", slog.Any("error", scanErr))
			return nil, fmt.Errorf("%w: failed to scan customer row: %w", apperrors.ErrDatabase, scanErr)
		}
		customers = append(customers, cust)
	}

	if err = rows.Err(); err != nil {
		r.logger.ErrorContext(ctx, "Error iterating customer rows", slog.Any("error", err))
		return nil, translateDBError(err, "error iterating customer rows", r.logger)
	}

	r.logger.InfoContext(ctx, "Finished finding customers", slog.Int("count", len(customers)))
	return customers, nil
}

func (r *CustomerRepository) FindByID(ctx context.Context, customerID int64) (cust *customer.Customer, err error) {
	defer r.observe("FindByID", time.Now(), &err)

	logger := r.logger.With(slog.Int64("customerID", customerID))
	logger.InfoContext(ctx, "Attempting to find customer by ID")

	cust, err = scanCustomer(r.db.QueryRow(ctx, findCustomerByIDQuery, customerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			logger.WarnContext(ctx, "Customer not found")
			return nil, apperrors.ErrNotFound
		}
		logger.ErrorContext(ctx, "Failed to query/scan customer by ID", slog.Any("error", err))
		return nil, translateDBError(err, "failed to get customer by ID", r.logger)
	}

	logger.InfoContext(ctx, "Customer found successfully")
	return cust, nil
}

func (r *CustomerRepository) Stats(ctx context.Context) (stats *customer.BookStats, err error) {
	defer r.observe("Stats", time.Now(), &err)

	var count int64
	var total string
	if err = r.db.QueryRow(ctx, customerStatsQuery).Scan(&count, &total); err != nil {
		r.logger.ErrorContext(ctx, "Failed to compute customer stats", slog.Any("error", err))
		return nil, translateDBError(err, "failed to compute customer stats", r.logger)
	}

	sum, err := decimal.NewFromString(total)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid credit limit total %q: %w", apperrors.ErrDatabase, total, err)
	}
	return &customer.BookStats{Customers: count, TotalCreditLimit: sum}, nil
}

func (r *CustomerRepository) InsertInTx(ctx context.Context, tx pgx.Tx, cust *customer.Customer) (err error) {
	if cust == nil {
		return fmt.Errorf("%w: customer cannot be nil", apperrors.ErrInvalidArgument)
	}
	defer r.observe("InsertInTx", time.Now(), &err)

	logger := r.logger.With(slog.Int64("customerID", cust.ID))
	logger.InfoContext(ctx, "Attempting to insert new customer")

	_, err = tx.Exec(ctx, insertCustomerQuery, cust.ID, cust.Name, creditLimitParam(cust.CreditLimit))
	if err != nil {
		translated := translateDBError(err, fmt.Sprintf("failed to insert customer %d", cust.ID), logger)
		if errors.Is(translated, apperrors.ErrConstraintViolation) {
			logger.WarnContext(ctx, "Failed to insert customer due to constraint violation")
		} else {
			logger.ErrorContext(ctx, "Failed to insert customer", slog.Any("error", err))
		}
		return translated
	}

	logger.InfoContext(ctx, "Customer inserted successfully")
	return nil
}

// LockByIDInTx runs SELECT ... FOR UPDATE (NOWAIT for LockNoWait) and
// returns the locked row. A configured lock timeout only applies to
// LockWait.
func (r *CustomerRepository) LockByIDInTx(ctx context.Context, tx pgx.Tx, customerID int64, mode customer.LockMode) (snap *customer.Snapshot, err error) {
	defer r.observe("LockByIDInTx", time.Now(), &err)

	logger := r.logger.With(slog.Int64("customerID", customerID), slog.String("lockMode", mode.String()))
	logger.InfoContext(ctx, "Attempting to lock customer row")

	query := lockCustomerQuery
	if mode == customer.LockNoWait {
		query = lockCustomerNoWaitQuery
	} else if r.lockTimeout > 0 {
		timeout := fmt.Sprintf("%dms", r.lockTimeout.Milliseconds())
		if _, err = tx.Exec(ctx, setLockTimeoutQuery, timeout); err != nil {
			logger.ErrorContext(ctx, "Failed to set lock timeout", slog.Any("error", err))
			return nil, translateDBError(err, "failed to set lock timeout", logger)
		}
	}

	var name, rawLimit string
	if err = tx.QueryRow(ctx, query, customerID).Scan(&name, &rawLimit); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			logger.WarnContext(ctx, "Customer not found while locking")
			return nil, apperrors.ErrNotFound
		}
		return nil, translateDBError(err, fmt.Sprintf("failed to lock customer %d", customerID), logger)
	}

	creditLimit, err := decimal.NewFromString(rawLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid credit limit %q: %w", apperrors.ErrDatabase, rawLimit, err)
	}

	logger.InfoContext(ctx, "Customer row locked")
	return &customer.Snapshot{Name: name, CreditLimit: creditLimit}, nil
}

func (r *CustomerRepository) UpdateInTx(ctx context.Context, tx pgx.Tx, cust *customer.Customer) (err error) {
	if cust == nil {
		return fmt.Errorf("%w: customer cannot be nil", apperrors.ErrInvalidArgument)
	}
	defer r.observe("UpdateInTx", time.Now(), &err)

	logger := r.logger.With(slog.Int64("customerID", cust.ID))
	logger.InfoContext(ctx, "Attempting to update customer")

	cmdTag, err := tx.Exec(ctx, updateCustomerQuery, cust.Name, creditLimitParam(cust.CreditLimit), cust.ID)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to update customer", slog.Any("error", err))
		return translateDBError(err, fmt.Sprintf("failed to update customer %d", cust.ID), logger)
	}

	if cmdTag.RowsAffected() == 0 {
		logger.WarnContext(ctx, "Update affected zero rows, customer likely not found")
		return apperrors.ErrNotFound
	}

	logger.InfoContext(ctx, "Customer updated successfully")
	return nil
}

func (r *CustomerRepository) DeleteInTx(ctx context.Context, tx pgx.Tx, customerID int64) (affected int64, err error) {
	defer r.observe("DeleteInTx", time.Now(), &err)

	logger := r.logger.With(slog.Int64("customerID", customerID))
	logger.InfoContext(ctx, "Attempting to delete customer")

	cmdTag, err := tx.Exec(ctx, deleteCustomerQuery, customerID)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to execute delete customer", slog.Any("error", err))
		return 0, translateDBError(err, fmt.Sprintf("failed to delete customer %d", customerID), logger)
	}

	logger.InfoContext(ctx, "Delete statement executed", slog.Int64("rowsAffected", cmdTag.RowsAffected()))
	return cmdTag.RowsAffected(), nil
}

// Ping reports whether the database answers.
func (r *CustomerRepository) Ping(ctx context.Context) error {
	if err := r.db.Ping(ctx); err != nil {
		return translateDBError(err, "database ping failed", r.logger)
	}
	return nil
}

func (r *CustomerRepository) observe(queryName string, start time.Time, err *error) {
	monitoring.RecordDBQuery(queryName, queryStatus(*err), time.Since(start))
}

func scanCustomer(row pgx.Row) (*customer.Customer, error) {
	var cust customer.Customer
	var rawLimit string
	if err := row.Scan(&cust.ID, &cust.Name, &rawLimit); err != nil {
		return nil, err
	}
	limit, err := decimal.NewFromString(rawLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid credit limit %q: %w", apperrors.ErrDatabase, rawLimit, err)
	}
	cust.CreditLimit = limit
	return &cust, nil
}

func creditLimitParam(limit decimal.Decimal) string {
	return limit.StringFixed(customer.CreditLimitPlaces)
}
