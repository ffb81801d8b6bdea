package dto

import (
	"strings"

	"clientes-service/internal/domain/customer"
	"clientes-service/internal/pkg/apperrors"
)

type CreateCustomerRequest struct {
	ID          *int64 `json:"id" example:"1"`
	Name        string `json:"name" example:"Ana Maria"`
	CreditLimit string `json:"creditLimit" example:"1500.00"`
}

// Validate only checks presence. Format rules live in the domain.
func (r *CreateCustomerRequest) Validate() error {
	if r.ID == nil {
		return apperrors.NewValidationError("id", "is required")
	}
	return requireFields(r.Name, r.CreditLimit)
}

type SnapshotRequest struct {
	Name        string `json:"name" example:"Ana"`
	CreditLimit string `json:"creditLimit" example:"1000.00"`
}

// UpdateCustomerRequest carries the new values and the values the caller
// saw when it loaded the row.
type UpdateCustomerRequest struct {
	Name        string           `json:"name" example:"Ana Maria"`
	CreditLimit string           `json:"creditLimit" example:"1200.00"`
	Expected    *SnapshotRequest `json:"expected"`
}

func (r *UpdateCustomerRequest) Validate() error {
	if err := requireFields(r.Name, r.CreditLimit); err != nil {
		return err
	}
	if r.Expected == nil {
		return apperrors.NewValidationError("expected", "snapshot of the loaded row is required")
	}
	return nil
}

// Snapshot parses the expected values exactly as a GET returned them.
func (r *UpdateCustomerRequest) Snapshot() (customer.Snapshot, error) {
	return customer.ParseSnapshot(r.Expected.Name, r.Expected.CreditLimit)
}

func requireFields(name, creditLimit string) error {
	if strings.TrimSpace(name) == "" {
		return apperrors.NewValidationError("name", "is required")
	}
	if strings.TrimSpace(creditLimit) == "" {
		return apperrors.NewValidationError("creditLimit", "is required")
	}
	return nil
}

type CustomerResponse struct {
	ID          int64  `json:"id" example:"1"`
	Name        string `json:"name" example:"Ana"`
	CreditLimit string `json:"creditLimit" example:"1000.00"`
}

func NewCustomerResponse(c *customer.Customer) CustomerResponse {
	return CustomerResponse{
		ID:          c.ID,
		Name:        c.Name,
		CreditLimit: customer.FormatCreditLimit(c.CreditLimit),
	}
}

func NewCustomerListResponse(customers []*customer.Customer) []CustomerResponse {
	resp := make([]CustomerResponse, 0, len(customers))
	for _, c := range customers {
		resp = append(resp, NewCustomerResponse(c))
	}
	return resp
}

type ErrorDetail struct {
	Code    string `json:"code" example:"STALE_SNAPSHOT"`
	Message string `json:"message" example:"row was modified by someone else between load and update"`
	Field   string `json:"field,omitempty"`
}

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type HealthResponse struct {
	Status   string `json:"status" example:"ok"`
	Database string `json:"database" example:"up"`
}
