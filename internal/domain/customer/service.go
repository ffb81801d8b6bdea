package customer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"clientes-service/internal/event"
	"clientes-service/internal/infrastructure/monitoring"
	"clientes-service/internal/pkg/apperrors"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	opListAll   = "list"
	opCreate    = "create"
	opFetchByID = "fetch"
	opUpdate    = "update"
	opDelete    = "delete"

	tracerName = "clientes-service/internal/domain/customer"
)

type CustomerService interface {
	ListAll(ctx context.Context) ([]*Customer, error)
	Create(ctx context.Context, cust *Customer) (*Customer, error)
	FetchByID(ctx context.Context, customerID int64) (*Customer, error)
	Update(ctx context.Context, customerID int64, name string, creditLimit decimal.Decimal, expected Snapshot) error
	Delete(ctx context.Context, customerID int64) error
}

var _ CustomerService = (*customerService)(nil)

type customerService struct {
	repo           CustomerRepository
	pub            event.EventPublisher
	deleteLockMode LockMode
	tracer         trace.Tracer
	logger         *slog.Logger
}

type ServiceOption func(*customerService)

func WithEventPublisher(pub event.EventPublisher) ServiceOption {
	return func(s *customerService) {
		if pub != nil {
			s.pub = pub
		}
	}
}

// WithDeleteLockMode sets how Delete waits for the row lock. The default is
// LockWait; Update always uses LockNoWait.
func WithDeleteLockMode(mode LockMode) ServiceOption {
	return func(s *customerService) {
		s.deleteLockMode = mode
	}
}

func NewCustomerService(repo CustomerRepository, logger *slog.Logger, opts ...ServiceOption) CustomerService {
	if repo == nil {
		panic("customer repository cannot be nil")
	}

	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
		logger.Warn("Warning: No logger provided to NewCustomerService, using default stderr handler")
	}

	s := &customerService{
		repo:           repo,
		pub:            event.NoopPublisher{},
		deleteLockMode: LockWait,
		tracer:         otel.Tracer(tracerName),
		logger:         logger.With(slog.String("component", "customerService")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func NewCustomerEventPayload(cust *Customer) event.CustomerEventPayload {
	if cust == nil {
		return event.CustomerEventPayload{}
	}
	return event.CustomerEventPayload{
		CustomerID:  cust.ID,
		Name:        cust.Name,
		CreditLimit: FormatCreditLimit(cust.CreditLimit),
	}
}

func (s *customerService) ListAll(ctx context.Context) (customers []*Customer, err error) {
	ctx, span := s.startSpan(ctx, opListAll)
	defer func() { s.finish(span, opListAll, err) }()

	s.logger.InfoContext(ctx, "Attempting to list all customers")

	customers, err = s.repo.FindAll(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Repository error listing customers", slog.Any("error", err))
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}

	span.SetAttributes(attribute.Int("customer.count", len(customers)))
	s.logger.InfoContext(ctx, "Successfully retrieved customers", slog.Int("count", len(customers)))
	return customers, nil
}

func (s *customerService) Create(ctx context.Context, cust *Customer) (created *Customer, err error) {
	ctx, span := s.startSpan(ctx, opCreate)
	defer func() { s.finish(span, opCreate, err) }()

	s.logger.InfoContext(ctx, "Attempting to create new customer")

	if cust == nil {
		s.logger.WarnContext(ctx, "Validation failed: customer is nil")
		return nil, apperrors.NewValidationError("", "customer cannot be nil")
	}
	span.SetAttributes(attribute.Int64("customer.id", cust.ID))
	logger := s.logger.With(slog.Int64("customerID", cust.ID))

	candidate, err := NewCustomer(cust.ID, cust.Name, cust.CreditLimit)
	if err != nil {
		logger.WarnContext(ctx, "Validation failed for new customer", slog.Any("error", err))
		return nil, err
	}
	logger.InfoContext(ctx, "Input validation passed")

	err = s.inTx(ctx, opCreate, func(tx pgx.Tx) error {
		return s.repo.InsertInTx(ctx, tx, candidate)
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrConstraintViolation) {
			logger.WarnContext(ctx, "Customer id already exists", slog.Any("error", err))
			return nil, fmt.Errorf("customer %d already exists: %w", candidate.ID, err)
		}
		logger.ErrorContext(ctx, "Repository failed to save new customer", slog.Any("error", err))
		return nil, fmt.Errorf("failed to save new customer: %w", err)
	}

	logger.InfoContext(ctx, "Successfully created new customer, publishing creation event")
	if pubErr := s.pub.PublishCustomerCreated(ctx, event.NewCustomerCreatedEvent(NewCustomerEventPayload(candidate))); pubErr != nil {
		logger.ErrorContext(ctx, "Customer created, but FAILED to publish creation event", slog.Any("error", pubErr))
	}
	return candidate, nil
}

func (s *customerService) FetchByID(ctx context.Context, customerID int64) (cust *Customer, err error) {
	ctx, span := s.startSpan(ctx, opFetchByID, attribute.Int64("customer.id", customerID))
	defer func() { s.finish(span, opFetchByID, err) }()

	logger := s.logger.With(slog.Int64("customerID", customerID))
	logger.InfoContext(ctx, "Attempting to get customer by ID")

	if err := ValidateID(customerID); err != nil {
		logger.WarnContext(ctx, "Validation failed: invalid customer ID")
		return nil, err
	}

	cust, err = s.repo.FindByID(ctx, customerID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			logger.WarnContext(ctx, "Customer not found by repository")
			return nil, fmt.Errorf("customer %d: %w", customerID, apperrors.ErrNotFound)
		}
		logger.ErrorContext(ctx, "Repository error finding customer", slog.Any("error", err))
		return nil, fmt.Errorf("failed to get customer %d: %w", customerID, err)
	}

	logger.InfoContext(ctx, "Successfully retrieved customer")
	return cust, nil
}

// Update replaces name and credit limit of an existing customer. The row is
// locked without waiting and compared against expected before the write, so
// a concurrent writer yields ErrLocked and a stale snapshot yields
// ErrConflict.
func (s *customerService) Update(ctx context.Context, customerID int64, name string, creditLimit decimal.Decimal, expected Snapshot) (err error) {
	ctx, span := s.startSpan(ctx, opUpdate, attribute.Int64("customer.id", customerID))
	defer func() { s.finish(span, opUpdate, err) }()

	logger := s.logger.With(slog.Int64("customerID", customerID))
	logger.InfoContext(ctx, "Attempting to update customer")

	updated, err := NewCustomer(customerID, name, creditLimit)
	if err != nil {
		logger.WarnContext(ctx, "Validation failed for customer update", slog.Any("error", err))
		return err
	}

	var updatedPayload event.CustomerEventPayload
	err = s.inTx(ctx, opUpdate, func(tx pgx.Tx) error {
		current, lockErr := s.repo.LockByIDInTx(ctx, tx, customerID, LockNoWait)
		if lockErr != nil {
			switch {
			case errors.Is(lockErr, apperrors.ErrLocked):
				logger.WarnContext(ctx, "Customer row is locked by another writer")
				return fmt.Errorf("customer %d: %w", customerID, apperrors.ErrLocked)
			case errors.Is(lockErr, apperrors.ErrNotFound):
				logger.WarnContext(ctx, "Customer not found under lock")
				return fmt.Errorf("customer %d: %w", customerID, apperrors.ErrNotFound)
			}
			logger.ErrorContext(ctx, "Failed to lock customer for update", slog.Any("error", lockErr))
			return fmt.Errorf("failed to lock customer %d for update: %w", customerID, lockErr)
		}

		if !current.Matches(expected) {
			logger.WarnContext(ctx, "Customer changed since it was loaded",
				slog.String("expected", expected.String()),
				slog.String("current", current.String()))
			return fmt.Errorf("customer %d: %w", customerID, apperrors.ErrConflict)
		}

		if updateErr := s.repo.UpdateInTx(ctx, tx, updated); updateErr != nil {
			logger.ErrorContext(ctx, "Repository failed to update customer", slog.Any("error", updateErr))
			return fmt.Errorf("failed to update customer %d: %w", customerID, updateErr)
		}
		updatedPayload = NewCustomerEventPayload(updated)
		return nil
	})
	if err != nil {
		return err
	}

	logger.InfoContext(ctx, "Successfully updated customer, publishing update event")
	if pubErr := s.pub.PublishCustomerUpdated(ctx, event.NewCustomerUpdatedEvent(updatedPayload)); pubErr != nil {
		logger.ErrorContext(ctx, "Customer updated, but FAILED to publish update event", slog.Any("error", pubErr))
	}
	return nil
}

// Delete removes a customer under an exclusive row lock. Deleting an id that
// does not exist commits with no affected rows and is not an error.
func (s *customerService) Delete(ctx context.Context, customerID int64) (err error) {
	ctx, span := s.startSpan(ctx, opDelete,
		attribute.Int64("customer.id", customerID),
		attribute.String("lock.mode", s.deleteLockMode.String()))
	defer func() { s.finish(span, opDelete, err) }()

	logger := s.logger.With(slog.Int64("customerID", customerID))
	logger.InfoContext(ctx, "Attempting to delete customer")

	if err := ValidateID(customerID); err != nil {
		logger.WarnContext(ctx, "Validation failed: invalid customer ID")
		return err
	}

	var affected int64
	err = s.inTx(ctx, opDelete, func(tx pgx.Tx) error {
		if _, lockErr := s.repo.LockByIDInTx(ctx, tx, customerID, s.deleteLockMode); lockErr != nil {
			switch {
			case errors.Is(lockErr, apperrors.ErrNotFound):
				logger.InfoContext(ctx, "Customer not present, delete will affect no rows")
			case errors.Is(lockErr, apperrors.ErrLocked):
				logger.WarnContext(ctx, "Customer row is locked by another writer")
				return fmt.Errorf("customer %d: %w", customerID, apperrors.ErrLocked)
			default:
				logger.ErrorContext(ctx, "Failed to lock customer for delete", slog.Any("error", lockErr))
				return fmt.Errorf("failed to lock customer %d for delete: %w", customerID, lockErr)
			}
		}

		var deleteErr error
		affected, deleteErr = s.repo.DeleteInTx(ctx, tx, customerID)
		if deleteErr != nil {
			logger.ErrorContext(ctx, "Repository failed to delete customer", slog.Any("error", deleteErr))
			return fmt.Errorf("failed to delete customer %d: %w", customerID, deleteErr)
		}
		return nil
	})
	if err != nil {
		return err
	}

	span.SetAttributes(attribute.Int64("rows.affected", affected))
	if affected == 0 {
		logger.InfoContext(ctx, "Delete committed with no affected rows")
		return nil
	}

	logger.InfoContext(ctx, "Successfully deleted customer, publishing delete event")
	if pubErr := s.pub.PublishCustomerDeleted(ctx, event.NewCustomerDeletedEvent(customerID)); pubErr != nil {
		logger.ErrorContext(ctx, "Customer deleted, but FAILED to publish delete event", slog.Any("error", pubErr))
	}
	return nil
}

// inTx runs fn inside a transaction. Any error or panic from fn rolls the
// transaction back; a panic is reported as ErrInternalServer.
func (s *customerService) inTx(ctx context.Context, op string, fn func(tx pgx.Tx) error) (err error) {
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to begin transaction", slog.String("operation", op), slog.Any("error", err))
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			s.logger.ErrorContext(ctx, "Panic occurred inside transaction", slog.String("operation", op), slog.Any("panic", p))
			err = fmt.Errorf("%w: panic during %s: %v", apperrors.ErrInternalServer, op, p)
		}
		if err != nil {
			if rbErr := s.repo.RollbackTx(ctx, tx); rbErr != nil {
				s.logger.ErrorContext(ctx, "Rollback failed", slog.String("operation", op), slog.Any("error", rbErr))
			}
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	return s.repo.CommitTx(ctx, tx)
}

func (s *customerService) startSpan(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	name := "CustomerService." + strings.ToUpper(op[:1]) + op[1:]
	return s.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func (s *customerService) finish(span trace.Span, op string, err error) {
	kind := apperrors.KindOf(err)
	monitoring.RecordOperation(op, string(kind))
	span.SetAttributes(attribute.String("outcome", string(kind)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
