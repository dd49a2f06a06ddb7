// Package events defines the dispatch lifecycle events published on the
// internal event bus.
package events

import (
	"time"

	"github.com/quickbite/dispatch/core/model"
)

// Event is implemented by every dispatch lifecycle event.
type Event interface{ event() }

// OfferEvent is published for each offer push attempt.
type OfferEvent struct {
	RequestID int64
	OrderID   int64
	CourierID int64
	Score     float64
	Delivered bool
	Time      time.Time
}

// RequestResolvedEvent is published when a request reaches a terminal
// status.
type RequestResolvedEvent struct {
	RequestID int64
	OrderID   int64
	CourierID int64
	Status    model.RequestStatus
	Time      time.Time
}

// OrderStatusEvent is published after an order status edge is written.
type OrderStatusEvent struct {
	OrderID int64
	Status  model.OrderStatus
	Time    time.Time
}

// DeliveryEvent is published when a delivery advances.
type DeliveryEvent struct {
	DeliveryID int64
	OrderID    int64
	CourierID  int64
	Status     model.DeliveryStatus
	Time       time.Time
}

// ExhaustedEvent is published when a dispatch cycle ran out of
// candidates without an assignment. Reportable, not an error.
type ExhaustedEvent struct {
	OrderID int64
	Time    time.Time
}

func (OfferEvent) event()           {}
func (RequestResolvedEvent) event() {}
func (OrderStatusEvent) event()     {}
func (DeliveryEvent) event()        {}
func (ExhaustedEvent) event()       {}
