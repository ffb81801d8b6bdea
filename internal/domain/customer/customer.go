package customer

import (
	"fmt"
	"math"
	"strings"
	"unicode"

	"clientes-service/internal/pkg/apperrors"

	"github.com/shopspring/decimal"
)

// CreditLimitPlaces is the fixed number of fractional digits a credit limit carries.
const CreditLimitPlaces = 2

const (
	MinCustomerID int64 = 0
	MaxCustomerID int64 = math.MaxInt32
)

type Customer struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	CreditLimit decimal.Decimal `json:"creditLimit"`
}

// Snapshot is the (name, credit limit) pair a caller saw when it selected a
// row. Update only proceeds while the stored row still equals it.
type Snapshot struct {
	Name        string
	CreditLimit decimal.Decimal
}

func NewCustomer(id int64, name string, creditLimit decimal.Decimal) (*Customer, error) {
	c := &Customer{
		ID:          id,
		Name:        strings.TrimSpace(name),
		CreditLimit: creditLimit,
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Customer) Snapshot() Snapshot {
	return Snapshot{Name: c.Name, CreditLimit: c.CreditLimit}
}

func (c *Customer) Validate() error {
	if err := ValidateID(c.ID); err != nil {
		return err
	}
	if err := ValidateName(c.Name); err != nil {
		return err
	}
	return ValidateCreditLimit(c.CreditLimit)
}

// Matches compares names exactly and credit limits by value, so 1000 and
// 1000.00 are the same limit.
func (s Snapshot) Matches(other Snapshot) bool {
	return s.Name == other.Name && s.CreditLimit.Equal(other.CreditLimit)
}

func (s Snapshot) String() string {
	return fmt.Sprintf("(%q, %s)", s.Name, FormatCreditLimit(s.CreditLimit))
}

// ParseSnapshot builds the snapshot a caller sends back on update. The name
// is kept byte for byte and the limit may carry any scale, since rows written
// by other clients are not bound to this package's validation rules.
func ParseSnapshot(name, rawLimit string) (Snapshot, error) {
	limit, err := decimal.NewFromString(strings.TrimSpace(rawLimit))
	if err != nil {
		return Snapshot{}, apperrors.NewValidationError("expected.creditLimit", "must be a numeric value")
	}
	return Snapshot{Name: name, CreditLimit: limit}, nil
}

// FormatCreditLimit renders limit with two decimals, or exactly when that
// would round it. The output always parses back to an equal value.
func FormatCreditLimit(limit decimal.Decimal) string {
	if limit.Equal(limit.Round(CreditLimitPlaces)) {
		return limit.StringFixed(CreditLimitPlaces)
	}
	return limit.String()
}

func ValidateID(id int64) error {
	if id < MinCustomerID || id > MaxCustomerID {
		return apperrors.NewValidationError("id", fmt.Sprintf("must be between %d and %d", MinCustomerID, MaxCustomerID))
	}
	return nil
}

func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return apperrors.NewValidationError("name", "cannot be empty")
	}
	for _, r := range name {
		if !unicode.IsLetter(r) && !unicode.IsSpace(r) {
			return apperrors.NewValidationError("name", "must contain only letters and spaces")
		}
	}
	return nil
}

func ValidateCreditLimit(limit decimal.Decimal) error {
	if limit.IsNegative() {
		return apperrors.NewValidationError("creditLimit", "cannot be negative")
	}
	if !limit.Equal(limit.Round(CreditLimitPlaces)) {
		return apperrors.NewValidationError("creditLimit", fmt.Sprintf("cannot have more than %d decimal places", CreditLimitPlaces))
	}
	return nil
}

// ParseCreditLimit accepts a plain decimal string with '.' as the only
// separator, e.g. "1500" or "1500.25".
func ParseCreditLimit(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, apperrors.NewValidationError("creditLimit", "cannot be empty")
	}
	for _, r := range raw {
		if r != '.' && r != '-' && !unicode.IsDigit(r) {
			return decimal.Zero, apperrors.NewValidationError("creditLimit", "must be a numeric value")
		}
	}

	limit, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, apperrors.NewValidationError("creditLimit", "must be a numeric value")
	}
	if err := ValidateCreditLimit(limit); err != nil {
		return decimal.Zero, err
	}
	return limit, nil
}
