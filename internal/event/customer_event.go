package event

import (
	"time"

	"github.com/google/uuid"
)

type CustomerEventPayload struct {
	CustomerID  int64  `json:"customerId"`
	Name        string `json:"name"`
	CreditLimit string `json:"creditLimit"`
}

type CustomerCreatedEvent struct {
	EventID   string               `json:"eventId"`
	Timestamp time.Time            `json:"timestamp"`
	Payload   CustomerEventPayload `json:"payload"`
}

type CustomerUpdatedEvent struct {
	EventID   string               `json:"eventId"`
	Timestamp time.Time            `json:"timestamp"`
	Payload   CustomerEventPayload `json:"payload"`
}

type CustomerDeletedEvent struct {
	EventID    string    `json:"eventId"`
	Timestamp  time.Time `json:"timestamp"`
	CustomerID int64     `json:"customerId"`
}

func NewCustomerCreatedEvent(payload CustomerEventPayload) CustomerCreatedEvent {
	return CustomerCreatedEvent{EventID: uuid.NewString(), Timestamp: time.Now().UTC(), Payload: payload}
}

func NewCustomerUpdatedEvent(payload CustomerEventPayload) CustomerUpdatedEvent {
	return CustomerUpdatedEvent{EventID: uuid.NewString(), Timestamp: time.Now().UTC(), Payload: payload}
}

func NewCustomerDeletedEvent(customerID int64) CustomerDeletedEvent {
	return CustomerDeletedEvent{EventID: uuid.NewString(), Timestamp: time.Now().UTC(), CustomerID: customerID}
}
