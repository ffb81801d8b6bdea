package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"clientes-service/internal/api/handler/dto"
	"clientes-service/internal/domain/customer"
	"clientes-service/internal/pkg/apperrors"

	"github.com/go-chi/chi/v5"
)

type CustomerHandler struct {
	service customer.CustomerService
	logger  *slog.Logger
}

func NewCustomerHandler(s customer.CustomerService, l *slog.Logger) *CustomerHandler {
	if s == nil {
		panic("customer service cannot be nil")
	}
	if l == nil {
		panic("logger cannot be nil")
	}
	return &CustomerHandler{
		service: s,
		logger:  l.With("component", "CustomerHandler"),
	}
}

func getCustomerIDFromURL(r *http.Request) (int64, error) {
	idStr := chi.URLParam(r, "customerID")
	if idStr == "" {
		return 0, apperrors.NewValidationError("customerID", "not found in URL path")
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return 0, apperrors.NewValidationError("customerID", fmt.Sprintf("invalid format: %s", idStr))
	}
	return id, nil
}

func (h *CustomerHandler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	h.logger.Log(r.Context(), logLevelFor(err), msg, slog.Any("error", err), slog.String("kind", string(apperrors.KindOf(err))))
	respondError(w, err)
}

// ListCustomers handles GET /customers
// @Summary List customers
// @Description Returns every customer ordered by id.
// @Tags Customers
// @Produce json
// @Success 200 {array} dto.CustomerResponse "List of customers"
// @Failure 503 {object} dto.ErrorResponse "Database unavailable"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /customers [get]
func (h *CustomerHandler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	h.logger.DebugContext(r.Context(), "Received list customers request")

	customers, err := h.service.ListAll(r.Context())
	if err != nil {
		h.fail(w, r, "Service failed to list customers", err)
		return
	}

	h.logger.InfoContext(r.Context(), "Customers listed successfully", slog.Int("count", len(customers)))
	respondJSON(w, http.StatusOK, dto.NewCustomerListResponse(customers))
}

// CreateCustomer handles POST /customers
// @Summary Create a new customer
// @Description Creates a customer with a caller-chosen id, a name made of letters and spaces, and a non-negative credit limit.
// @Tags Customers
// @Accept json
// @Produce json
// @Param request body dto.CreateCustomerRequest true "Customer creation request"
// @Success 201 {object} dto.CustomerResponse "Customer successfully created"
// @Failure 400 {object} dto.ErrorResponse "Missing or malformed fields"
// @Failure 409 {object} dto.ErrorResponse "A customer with this id already exists"
// @Failure 503 {object} dto.ErrorResponse "Database unavailable"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /customers [post]
func (h *CustomerHandler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	h.logger.DebugContext(r.Context(), "Received create customer request")

	var req dto.CreateCustomerRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, "Failed to decode request body", fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}
	if err := req.Validate(); err != nil {
		h.fail(w, r, "Validation failed for create request", err)
		return
	}

	creditLimit, err := customer.ParseCreditLimit(req.CreditLimit)
	if err != nil {
		h.fail(w, r, "Invalid credit limit in create request", err)
		return
	}

	created, err := h.service.Create(r.Context(), &customer.Customer{ID: *req.ID, Name: req.Name, CreditLimit: creditLimit})
	if err != nil {
		h.fail(w, r, "Service failed to create customer", err)
		return
	}

	h.logger.InfoContext(r.Context(), "Customer created successfully", slog.Int64("customerID", created.ID))
	respondJSON(w, http.StatusCreated, dto.NewCustomerResponse(created))
}

// GetCustomer handles GET /customers/{customerID}
// @Summary Retrieve customer details
// @Description Returns the stored row. Its name and creditLimit are the snapshot to send back as "expected" on update.
// @Tags Customers
// @Produce json
// @Param customerID path int true "Customer ID" Minimum(0)
// @Success 200 {object} dto.CustomerResponse "Customer details retrieved"
// @Failure 400 {object} dto.ErrorResponse "Invalid customer ID"
// @Failure 404 {object} dto.ErrorResponse "Customer not found"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /customers/{customerID} [get]
func (h *CustomerHandler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	customerID, err := getCustomerIDFromURL(r)
	if err != nil {
		h.fail(w, r, "Failed to get customer ID from URL", err)
		return
	}

	cust, err := h.service.FetchByID(r.Context(), customerID)
	if err != nil {
		h.fail(w, r, "Service failed to get customer", err)
		return
	}

	h.logger.InfoContext(r.Context(), "Customer retrieved successfully", slog.Int64("customerID", customerID))
	respondJSON(w, http.StatusOK, dto.NewCustomerResponse(cust))
}

// UpdateCustomer handles PUT /customers/{customerID}
// @Summary Update a customer
// @Description Replaces name and credit limit if the row still equals the expected snapshot. A row being edited by another writer yields 423, a row changed since it was loaded yields 409.
// @Tags Customers
// @Accept json
// @Produce json
// @Param customerID path int true "Customer ID" Minimum(0)
// @Param request body dto.UpdateCustomerRequest true "New values plus the snapshot the caller loaded"
// @Success 204 "Customer updated"
// @Failure 400 {object} dto.ErrorResponse "Missing or malformed fields"
// @Failure 404 {object} dto.ErrorResponse "Customer not found"
// @Failure 409 {object} dto.ErrorResponse "Stale snapshot"
// @Failure 423 {object} dto.ErrorResponse "Row locked by another writer"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /customers/{customerID} [put]
func (h *CustomerHandler) UpdateCustomer(w http.ResponseWriter, r *http.Request) {
	customerID, err := getCustomerIDFromURL(r)
	if err != nil {
		h.fail(w, r, "Failed to get customer ID from URL", err)
		return
	}

	var req dto.UpdateCustomerRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, "Failed to decode request body", fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}
	if err := req.Validate(); err != nil {
		h.fail(w, r, "Validation failed for update request", err)
		return
	}

	creditLimit, err := customer.ParseCreditLimit(req.CreditLimit)
	if err != nil {
		h.fail(w, r, "Invalid credit limit in update request", err)
		return
	}
	expected, err := req.Snapshot()
	if err != nil {
		h.fail(w, r, "Invalid expected snapshot in update request", err)
		return
	}

	if err := h.service.Update(r.Context(), customerID, req.Name, creditLimit, expected); err != nil {
		h.fail(w, r, "Service failed to update customer", err)
		return
	}

	h.logger.InfoContext(r.Context(), "Customer updated successfully", slog.Int64("customerID", customerID))
	w.WriteHeader(http.StatusNoContent)
}

// DeleteCustomer handles DELETE /customers/{customerID}
// @Summary Delete a customer
// @Description Deletes the customer under a row lock. Deleting an id that does not exist succeeds.
// @Tags Customers
// @Param customerID path int true "Customer ID" Minimum(0)
// @Success 204 "Customer deleted"
// @Failure 400 {object} dto.ErrorResponse "Invalid customer ID"
// @Failure 423 {object} dto.ErrorResponse "Row locked by another writer"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /customers/{customerID} [delete]
func (h *CustomerHandler) DeleteCustomer(w http.ResponseWriter, r *http.Request) {
	customerID, err := getCustomerIDFromURL(r)
	if err != nil {
		h.fail(w, r, "Failed to get customer ID from URL", err)
		return
	}

	if err := h.service.Delete(r.Context(), customerID); err != nil {
		h.fail(w, r, "Service failed to delete customer", err)
		return
	}

	h.logger.InfoContext(r.Context(), "Customer deleted successfully", slog.Int64("customerID", customerID))
	w.WriteHeader(http.StatusNoContent)
}
