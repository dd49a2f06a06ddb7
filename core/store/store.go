package store

import (
	"context"
	"errors"
	"time"

	"github.com/quickbite/dispatch/core/model"
)

// ErrNotFound indicates that the referenced record does not exist.
var ErrNotFound = errors.New("not found")

// ErrInvalidState indicates an action against a resolved or foreign
// record (stale, duplicate or raced request).
var ErrInvalidState = errors.New("invalid state")

// ErrConflict indicates a uniqueness conflict, e.g. a second delivery
// for the same order.
var ErrConflict = errors.New("conflict")

// OrderStore reads orders and writes the status edges dispatch owns.
type OrderStore interface {
	Order(ctx context.Context, id int64) (model.Order, error)
	SetOrderStatus(ctx context.Context, id int64, status model.OrderStatus) error
}

// CourierStore reads and mutates courier operational state.
type CourierStore interface {
	Courier(ctx context.Context, id int64) (model.Courier, error)
	// CourierByUser resolves a courier from the actor id a connection
	// authenticates as.
	CourierByUser(ctx context.Context, userID int64) (model.Courier, error)
	// AvailableCouriers returns couriers with status available,
	// optionally scoped to a city. An empty city means no scoping.
	AvailableCouriers(ctx context.Context, city string) ([]model.Courier, error)
	SetCourierStatus(ctx context.Context, id int64, status model.CourierStatus) error
	SetCourierLocation(ctx context.Context, id int64, loc model.Coordinate, at time.Time) error
	AddCashCollected(ctx context.Context, id int64, cents int64) error
}

// DispatchStore persists dispatch requests. Status transitions here are
// the single source of truth for "already resolved".
type DispatchStore interface {
	CreateRequest(ctx context.Context, orderID, courierID int64, expiresAt time.Time) (model.DispatchRequest, error)
	Request(ctx context.Context, id int64) (model.DispatchRequest, error)
	// ResolvePending atomically moves a request from pending to the
	// given terminal status. It returns false when the request had
	// already resolved, which is how concurrent accepts lose the race.
	ResolvePending(ctx context.Context, id int64, status model.RequestStatus) (bool, error)
	// ExpireSiblings marks every other pending request for the order as
	// expired and returns how many were flipped.
	ExpireSiblings(ctx context.Context, orderID, exceptID int64) (int, error)
	// AttemptedCourierIDs lists couriers that already received a request
	// for this order, regardless of outcome.
	AttemptedCourierIDs(ctx context.Context, orderID int64) ([]int64, error)
	PendingForCourier(ctx context.Context, courierID int64) ([]model.DispatchRequest, error)
}

// DeliveryStore persists deliveries.
type DeliveryStore interface {
	CreateDelivery(ctx context.Context, orderID, courierID int64) (model.Delivery, error)
	Delivery(ctx context.Context, id int64) (model.Delivery, error)
	DeliveryByOrder(ctx context.Context, orderID int64) (model.Delivery, error)
	SetDeliveryStatus(ctx context.Context, id int64, status model.DeliveryStatus, at time.Time) error
	// CompletedForCourier returns delivered deliveries, newest first.
	CompletedForCourier(ctx context.Context, courierID int64) ([]model.Delivery, error)
}

// PaymentStore exposes the boundary effect of cash-on-delivery
// settlement.
type PaymentStore interface {
	PaymentByOrder(ctx context.Context, orderID int64) (model.Payment, error)
	MarkPaid(ctx context.Context, id int64) error
}

// Store is the full data-store contract the dispatcher depends on.
type Store interface {
	OrderStore
	CourierStore
	DispatchStore
	DeliveryStore
	PaymentStore
}
