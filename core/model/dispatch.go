package model

import "time"

// RequestStatus represents the state of a dispatch request. All states
// except pending are terminal.
type RequestStatus string

// List of possible dispatch request statuses.
const (
	RequestPending  RequestStatus = "pending"
	RequestAccepted RequestStatus = "accepted"
	RequestRejected RequestStatus = "rejected"
	RequestExpired  RequestStatus = "expired"
)

// Terminal reports whether the status can never change again.
func (s RequestStatus) Terminal() bool {
	return s != RequestPending
}

// DispatchRequest is a time-bounded offer of one order to one courier.
// At most one request per order ever reaches accepted.
type DispatchRequest struct {
	ID        int64
	OrderID   int64
	CourierID int64
	Status    RequestStatus
	CreatedAt time.Time
	ExpiresAt time.Time
}

// DeliveryStatus represents the state of a delivery.
type DeliveryStatus string

// List of possible delivery statuses. There is no cancel path in the
// dispatch subsystem.
const (
	DeliveryAssigned  DeliveryStatus = "assigned"
	DeliveryPickedUp  DeliveryStatus = "picked_up"
	DeliveryDelivered DeliveryStatus = "delivered"
)

// Delivery records a courier executing one order, from assignment to
// completion. Created exactly once per order, when a request is accepted.
type Delivery struct {
	ID          int64
	OrderID     int64
	CourierID   int64
	Status      DeliveryStatus
	PickedUpAt  *time.Time
	DeliveredAt *time.Time
	CreatedAt   time.Time
}
