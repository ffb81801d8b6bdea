package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"clientes-service/internal/config"
	"clientes-service/internal/domain/customer"
	"clientes-service/internal/pkg/apperrors"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockCustomerService struct {
	mock.Mock
}

func (m *MockCustomerService) ListAll(ctx context.Context) ([]*customer.Customer, error) {
	args := m.Called(ctx)
	if customers, ok := args.Get(0).([]*customer.Customer); ok {
		return customers, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCustomerService) Create(ctx context.Context, cust *customer.Customer) (*customer.Customer, error) {
	args := m.Called(ctx, cust)
	if created, ok := args.Get(0).(*customer.Customer); ok {
		return created, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCustomerService) FetchByID(ctx context.Context, customerID int64) (*customer.Customer, error) {
	args := m.Called(ctx, customerID)
	if cust, ok := args.Get(0).(*customer.Customer); ok {
		return cust, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCustomerService) Update(ctx context.Context, customerID int64, name string, creditLimit decimal.Decimal, expected customer.Snapshot) error {
	args := m.Called(ctx, customerID, name, creditLimit, expected)
	return args.Error(0)
}

func (m *MockCustomerService) Delete(ctx context.Context, customerID int64) error {
	args := m.Called(ctx, customerID)
	return args.Error(0)
}

type result struct {
	code   int
	stdout string
	stderr string
	closed bool
}

func run(svc customer.CustomerService, stdin string, args ...string) result {
	var out, errOut bytes.Buffer
	closed := false
	factory := func(context.Context, *config.Config, *slog.Logger) (customer.CustomerService, func(), error) {
		return svc, func() { closed = true }, nil
	}

	code := Run(context.Background(), args, factory, strings.NewReader(stdin), &out, &errOut)
	return result{code: code, stdout: out.String(), stderr: errOut.String(), closed: closed}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decEq(s string) any {
	want := dec(s)
	return mock.MatchedBy(func(d decimal.Decimal) bool { return d.Equal(want) })
}

func snapEq(name, limit string) any {
	want := customer.Snapshot{Name: name, CreditLimit: dec(limit)}
	return mock.MatchedBy(func(s customer.Snapshot) bool { return s.Matches(want) })
}

func TestList(t *testing.T) {
	t.Run("Prints a table", func(t *testing.T) {
		svc := new(MockCustomerService)
		svc.On("ListAll", mock.Anything).Return([]*customer.Customer{
			{ID: 1, Name: "Ana", CreditLimit: dec("1000")},
			{ID: 2, Name: "Bia", CreditLimit: dec("250.5")},
		}, nil)

		res := run(svc, "", "list")

		assert.Equal(t, 0, res.code)
		assert.Contains(t, res.stdout, "CREDIT LIMIT")
		assert.Contains(t, res.stdout, "1000.00")
		assert.Contains(t, res.stdout, "250.50")
		assert.True(t, res.closed)
		svc.AssertExpectations(t)
	})

	t.Run("Empty table", func(t *testing.T) {
		svc := new(MockCustomerService)
		svc.On("ListAll", mock.Anything).Return([]*customer.Customer{}, nil)

		res := run(svc, "", "list")

		assert.Equal(t, 0, res.code)
		assert.Equal(t, "No customers found\n", res.stdout)
	})

	t.Run("Database unavailable", func(t *testing.T) {
		svc := new(MockCustomerService)
		svc.On("ListAll", mock.Anything).Return(nil, fmt.Errorf("failed to list customers: %w", apperrors.ErrConnectivity))

		res := run(svc, "", "list")

		assert.Equal(t, 1, res.code)
		assert.Contains(t, res.stderr, "Error: failed to list customers")
	})
}

func TestGet(t *testing.T) {
	t.Run("Found", func(t *testing.T) {
		svc := new(MockCustomerService)
		svc.On("FetchByID", mock.Anything, int64(7)).Return(&customer.Customer{ID: 7, Name: "Caio", CreditLimit: dec("10")}, nil)

		res := run(svc, "", "get", "7")

		assert.Equal(t, 0, res.code)
		assert.Contains(t, res.stdout, "Caio")
		assert.Contains(t, res.stdout, "10.00")
	})

	t.Run("Not found", func(t *testing.T) {
		svc := new(MockCustomerService)
		svc.On("FetchByID", mock.Anything, int64(99)).Return(nil, fmt.Errorf("customer 99: %w", apperrors.ErrNotFound))

		res := run(svc, "", "get", "99")

		assert.Equal(t, 3, res.code)
		assert.Contains(t, res.stderr, "customer 99")
	})

	t.Run("Non numeric id", func(t *testing.T) {
		svc := new(MockCustomerService)

		res := run(svc, "", "get", "abc")

		assert.Equal(t, 2, res.code)
		svc.AssertNotCalled(t, "FetchByID", mock.Anything, mock.Anything)
	})
}

func TestCreate(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		svc := new(MockCustomerService)
		match := mock.MatchedBy(func(c *customer.Customer) bool {
			return c.ID == 1 && c.Name == "Ana Maria" && c.CreditLimit.Equal(dec("1500"))
		})
		svc.On("Create", mock.Anything, match).Return(&customer.Customer{ID: 1, Name: "Ana Maria", CreditLimit: dec("1500")}, nil)

		res := run(svc, "", "create", "1", "Ana Maria", "1500.00")

		assert.Equal(t, 0, res.code)
		assert.Equal(t, "Customer 1 created\n", res.stdout)
		svc.AssertExpectations(t)
	})

	t.Run("Duplicate id", func(t *testing.T) {
		svc := new(MockCustomerService)
		svc.On("Create", mock.Anything, mock.Anything).Return(nil, fmt.Errorf("customer 1 already exists: %w", apperrors.ErrConstraintViolation))

		res := run(svc, "", "create", "1", "Ana", "10")

		assert.Equal(t, 4, res.code)
	})

	t.Run("Non numeric limit", func(t *testing.T) {
		svc := new(MockCustomerService)

		res := run(svc, "", "create", "1", "Ana", "12,50")

		assert.Equal(t, 2, res.code)
		svc.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("Missing argument", func(t *testing.T) {
		res := run(new(MockCustomerService), "", "create", "1", "Ana")
		assert.Equal(t, 1, res.code)
	})
}

func TestUpdate(t *testing.T) {
	t.Run("Explicit snapshot", func(t *testing.T) {
		svc := new(MockCustomerService)
		svc.On("Update", mock.Anything, int64(1), "Ana Maria", decEq("1200"), snapEq("Ana", "1000")).Return(nil)

		res := run(svc, "", "update", "1", "--name", "Ana Maria", "--limit", "1200",
			"--expected-name", "Ana", "--expected-limit", "1000")

		assert.Equal(t, 0, res.code)
		assert.Equal(t, "Customer 1 updated\n", res.stdout)
		svc.AssertNotCalled(t, "FetchByID", mock.Anything, mock.Anything)
		svc.AssertExpectations(t)
	})

	t.Run("Loads the snapshot when none is given", func(t *testing.T) {
		svc := new(MockCustomerService)
		svc.On("FetchByID", mock.Anything, int64(1)).Return(&customer.Customer{ID: 1, Name: "Ana", CreditLimit: dec("1000")}, nil)
		svc.On("Update", mock.Anything, int64(1), "Ana Maria", decEq("1200"), snapEq("Ana", "1000.00")).Return(nil)

		res := run(svc, "", "update", "1", "--name", "Ana Maria", "--limit", "1200")

		assert.Equal(t, 0, res.code)
		svc.AssertExpectations(t)
	})

	t.Run("Snapshot keeps stored scale and spacing", func(t *testing.T) {
		svc := new(MockCustomerService)
		svc.On("Update", mock.Anything, int64(1), "Ana", decEq("1"), mock.MatchedBy(func(s customer.Snapshot) bool {
			return s.Name == "Ana " && s.CreditLimit.Equal(dec("1000.555"))
		})).Return(nil)

		res := run(svc, "", "update", "1", "--name", "Ana", "--limit", "1",
			"--expected-name", "Ana ", "--expected-limit", "1000.555")

		assert.Equal(t, 0, res.code)
		svc.AssertExpectations(t)
	})

	t.Run("Half a snapshot", func(t *testing.T) {
		svc := new(MockCustomerService)

		res := run(svc, "", "update", "1", "--name", "Ana", "--limit", "1", "--expected-name", "Ana")

		assert.Equal(t, 2, res.code)
		svc.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Stale snapshot", func(t *testing.T) {
		svc := new(MockCustomerService)
		svc.On("Update", mock.Anything, int64(1), mock.Anything, mock.Anything, mock.Anything).Return(apperrors.ErrConflict)

		res := run(svc, "", "update", "1", "--name", "Ana", "--limit", "1",
			"--expected-name", "Ana", "--expected-limit", "1000")

		assert.Equal(t, 4, res.code)
		assert.Contains(t, res.stderr, "modified by someone else")
	})

	t.Run("Row locked", func(t *testing.T) {
		svc := new(MockCustomerService)
		svc.On("Update", mock.Anything, int64(1), mock.Anything, mock.Anything, mock.Anything).Return(fmt.Errorf("customer 1: %w", apperrors.ErrLocked))

		res := run(svc, "", "update", "1", "--name", "Ana", "--limit", "1",
			"--expected-name", "Ana", "--expected-limit", "1000")

		assert.Equal(t, 4, res.code)
		assert.Contains(t, res.stderr, "retry later")
	})

	t.Run("Required flags", func(t *testing.T) {
		res := run(new(MockCustomerService), "", "update", "1", "--name", "Ana")
		assert.Equal(t, 1, res.code)
	})
}

func TestDelete(t *testing.T) {
	t.Run("Skips the prompt with --yes", func(t *testing.T) {
		svc := new(MockCustomerService)
		svc.On("Delete", mock.Anything, int64(3)).Return(nil)

		res := run(svc, "", "delete", "3", "--yes")

		assert.Equal(t, 0, res.code)
		assert.Equal(t, "Customer 3 deleted\n", res.stdout)
		svc.AssertExpectations(t)
	})

	t.Run("Confirmed at the prompt", func(t *testing.T) {
		svc := new(MockCustomerService)
		svc.On("Delete", mock.Anything, int64(3)).Return(nil)

		res := run(svc, "yes\n", "delete", "3")

		assert.Equal(t, 0, res.code)
		assert.Contains(t, res.stdout, "Are you sure you want to delete customer 3?")
		assert.Contains(t, res.stdout, "Customer 3 deleted")
	})

	t.Run("Declined at the prompt", func(t *testing.T) {
		svc := new(MockCustomerService)

		res := run(svc, "no\n", "delete", "3")

		assert.Equal(t, 0, res.code)
		assert.Contains(t, res.stdout, "Cancelled")
		svc.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})

	t.Run("No input counts as declined", func(t *testing.T) {
		svc := new(MockCustomerService)

		res := run(svc, "", "delete", "3")

		assert.Contains(t, res.stdout, "Cancelled")
		svc.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})

	t.Run("Locked", func(t *testing.T) {
		svc := new(MockCustomerService)
		svc.On("Delete", mock.Anything, int64(3)).Return(apperrors.ErrLocked)

		res := run(svc, "", "delete", "3", "-y")

		assert.Equal(t, 4, res.code)
	})
}

func TestRun_FactoryError(t *testing.T) {
	var out, errOut bytes.Buffer
	factory := func(context.Context, *config.Config, *slog.Logger) (customer.CustomerService, func(), error) {
		return nil, nil, fmt.Errorf("failed to connect: %w", apperrors.ErrConnectivity)
	}

	code := Run(context.Background(), []string{"list"}, factory, strings.NewReader(""), &out, &errOut)

	assert.Equal(t, 1, code)
	assert.Contains(t, errOut.String(), "failed to connect")
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, 0},
		{apperrors.NewValidationError("name", "cannot be empty"), 2},
		{fmt.Errorf("customer 1: %w", apperrors.ErrNotFound), 3},
		{apperrors.ErrConflict, 4},
		{apperrors.ErrLocked, 4},
		{apperrors.ErrConstraintViolation, 4},
		{apperrors.WrapDatabaseError(errors.New("boom"), "query failed"), 1},
		{errors.New("unknown command"), 1},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ExitCode(tt.err), "%v", tt.err)
	}
}
