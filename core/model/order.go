package model

import "time"

// OrderStatus represents the lifecycle state of an order.
type OrderStatus string

// List of possible order statuses. Dispatch owns only the
// ready -> rider_assigned -> picked_up -> delivered edges; everything
// before "ready" belongs to the restaurant flow.
const (
	OrderPending       OrderStatus = "pending"
	OrderConfirmed     OrderStatus = "confirmed"
	OrderPreparing     OrderStatus = "preparing"
	OrderReady         OrderStatus = "ready"
	OrderRiderAssigned OrderStatus = "rider_assigned"
	OrderPickedUp      OrderStatus = "picked_up"
	OrderDelivered     OrderStatus = "delivered"
	OrderCancelled     OrderStatus = "cancelled"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:       {OrderConfirmed, OrderCancelled},
	OrderConfirmed:     {OrderPreparing, OrderCancelled},
	OrderPreparing:     {OrderReady, OrderCancelled},
	OrderReady:         {OrderRiderAssigned},
	OrderRiderAssigned: {OrderPickedUp},
	OrderPickedUp:      {OrderDelivered},
}

// CanTransition reports whether the order status may advance to next.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// OrderItem is one line item of an order as shown to the courier.
type OrderItem struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// Order is the dispatch view of an order: identity, parties, geometry and
// the fields needed to build an offer. The record is owned externally;
// dispatch reads it and writes status edges only.
type Order struct {
	ID              int64
	RestaurantID    int64
	CustomerID      int64 // actor id used for customer addressing
	RestaurantName  string
	CustomerName    string
	Status          OrderStatus
	RestaurantCoord Coordinate
	CustomerCoord   Coordinate
	Items           []OrderItem
	DeliveryAddress string
	TotalCents      int64
	PaymentMethod   string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
