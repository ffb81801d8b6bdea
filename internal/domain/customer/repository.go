package customer

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// LockMode selects how a row lock request behaves when another transaction
// already holds the lock.
type LockMode int

const (
	// LockWait blocks until the lock is granted (SELECT ... FOR UPDATE).
	LockWait LockMode = iota
	// LockNoWait fails immediately (SELECT ... FOR UPDATE NOWAIT).
	LockNoWait
)

func (m LockMode) String() string {
	if m == LockNoWait {
		return "nowait"
	}
	return "wait"
}

func ParseLockMode(s string) (LockMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "wait":
		return LockWait, nil
	case "nowait":
		return LockNoWait, nil
	default:
		return LockWait, fmt.Errorf("unknown lock mode %q", s)
	}
}

// BookStats summarizes the whole customer table.
type BookStats struct {
	Customers        int64
	TotalCreditLimit decimal.Decimal
}

type CustomerRepository interface {
	FindAll(ctx context.Context) ([]*Customer, error)

	FindByID(ctx context.Context, customerID int64) (*Customer, error)

	Stats(ctx context.Context) (*BookStats, error)

	InsertInTx(ctx context.Context, tx pgx.Tx, cust *Customer) error

	// LockByIDInTx takes an exclusive row lock and returns the row as stored
	// at the moment the lock was granted.
	LockByIDInTx(ctx context.Context, tx pgx.Tx, customerID int64, mode LockMode) (*Snapshot, error)

	UpdateInTx(ctx context.Context, tx pgx.Tx, cust *Customer) error

	DeleteInTx(ctx context.Context, tx pgx.Tx, customerID int64) (int64, error)

	BeginTx(ctx context.Context) (pgx.Tx, error)

	CommitTx(ctx context.Context, tx pgx.Tx) error

	RollbackTx(ctx context.Context, tx pgx.Tx) error
}
