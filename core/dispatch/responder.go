package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/quickbite/dispatch/core/events"
	"github.com/quickbite/dispatch/core/logger"
	coremetrics "github.com/quickbite/dispatch/core/metrics"
	"github.com/quickbite/dispatch/core/model"
	"github.com/quickbite/dispatch/core/store"
)

// Action is a courier's answer to an offer.
type Action string

// List of courier response actions.
const (
	ActionAccept Action = "accept"
	ActionReject Action = "reject"
)

// Valid reports whether the action is a recognised response.
func (a Action) Valid() bool {
	return a == ActionAccept || a == ActionReject
}

// Responder applies courier decisions: accepting or rejecting offers and
// advancing deliveries through pickup and completion.
type Responder struct {
	store store.Store
	mgr   *Manager
	log   logger.Logger
	sink  coremetrics.MetricsSink
	now   func() time.Time
}

// NewResponder creates a new Responder bound to the given manager.
func NewResponder(st store.Store, mgr *Manager, sink coremetrics.MetricsSink, log logger.Logger) (*Responder, error) {
	if st == nil || mgr == nil || log == nil {
		return nil, fmt.Errorf("dispatch: nil parameter provided to NewResponder")
	}
	if sink == nil {
		sink = coremetrics.NopSink{}
	}
	return &Responder{
		store: st,
		mgr:   mgr,
		log:   log,
		sink:  sink,
		now:   time.Now,
	}, nil
}

// Respond resolves a pending request with the courier's decision.
// Responses to requests that already resolved, and responses from a
// courier the request was not addressed to, fail with
// store.ErrInvalidState. Acceptance of an already-won order loses the
// compare-and-set and is reported the same way.
func (r *Responder) Respond(ctx context.Context, requestID, courierID int64, action Action) error {
	if !action.Valid() {
		return fmt.Errorf("%w: unknown action %q", store.ErrInvalidState, action)
	}
	req, err := r.store.Request(ctx, requestID)
	if err != nil {
		return fmt.Errorf("load request %d: %w", requestID, err)
	}
	if req.CourierID != courierID {
		return fmt.Errorf("%w: request %d is not addressed to courier %d", store.ErrInvalidState, requestID, courierID)
	}
	if req.Status.Terminal() {
		return fmt.Errorf("%w: request %d already %s", store.ErrInvalidState, requestID, req.Status)
	}
	if action == ActionReject {
		return r.reject(ctx, req)
	}
	return r.accept(ctx, req)
}

func (r *Responder) accept(ctx context.Context, req model.DispatchRequest) error {
	won, err := r.store.ResolvePending(ctx, req.ID, model.RequestAccepted)
	if err != nil {
		return fmt.Errorf("accept request %d: %w", req.ID, err)
	}
	if !won {
		return fmt.Errorf("%w: request %d resolved concurrently", store.ErrInvalidState, req.ID)
	}
	r.mgr.resolved(req, model.RequestAccepted)

	delivery, err := r.store.CreateDelivery(ctx, req.OrderID, req.CourierID)
	if err != nil {
		return fmt.Errorf("create delivery for order %d: %w", req.OrderID, err)
	}
	if err := r.advanceOrder(ctx, req.OrderID, model.OrderRiderAssigned); err != nil {
		return fmt.Errorf("assign order %d: %w", req.OrderID, err)
	}
	if err := r.store.SetCourierStatus(ctx, req.CourierID, model.CourierBusy); err != nil {
		return fmt.Errorf("mark courier %d busy: %w", req.CourierID, err)
	}
	if n, err := r.store.ExpireSiblings(ctx, req.OrderID, req.ID); err != nil {
		r.log.Errorf("expire sibling requests for order %d: %v", req.OrderID, err)
	} else if n > 0 {
		r.log.Debugf("expired %d sibling requests for order %d", n, req.OrderID)
	}
	r.mgr.ForgetOrder(req.OrderID)

	courier, err := r.store.Courier(ctx, req.CourierID)
	if err != nil {
		r.log.Errorf("load courier %d after accept: %v", req.CourierID, err)
	}
	order, err := r.store.Order(ctx, req.OrderID)
	if err != nil {
		r.log.Errorf("load order %d after accept: %v", req.OrderID, err)
	} else {
		r.mgr.NotifyOrderStatus(order, model.OrderRiderAssigned, courier.Name)
	}
	r.recordDelivery(delivery)
	r.log.Infof("courier %d accepted order %d (delivery %d)", req.CourierID, req.OrderID, delivery.ID)
	return nil
}

func (r *Responder) reject(ctx context.Context, req model.DispatchRequest) error {
	ok, err := r.store.ResolvePending(ctx, req.ID, model.RequestRejected)
	if err != nil {
		return fmt.Errorf("reject request %d: %w", req.ID, err)
	}
	if !ok {
		return fmt.Errorf("%w: request %d resolved concurrently", store.ErrInvalidState, req.ID)
	}
	r.mgr.resolved(req, model.RequestRejected)
	r.log.Infof("courier %d rejected order %d, re-dispatching", req.CourierID, req.OrderID)
	// The rejecting courier must not wait on the next matching round.
	go func() {
		if err := r.mgr.DispatchOrder(context.Background(), req.OrderID, nil); err != nil {
			r.log.Errorf("re-dispatch order %d: %v", req.OrderID, err)
		}
	}()
	return nil
}

// Pickup marks the delivery picked up and mirrors the edge onto the
// order. Only the assigned courier may advance the delivery.
func (r *Responder) Pickup(ctx context.Context, deliveryID, courierID int64) error {
	delivery, err := r.ownedDelivery(ctx, deliveryID, courierID)
	if err != nil {
		return err
	}
	if delivery.Status != model.DeliveryAssigned {
		return fmt.Errorf("%w: delivery %d is %s", store.ErrInvalidState, deliveryID, delivery.Status)
	}
	if err := r.advanceOrder(ctx, delivery.OrderID, model.OrderPickedUp); err != nil {
		return fmt.Errorf("mark order %d picked up: %w", delivery.OrderID, err)
	}
	now := r.now().UTC()
	if err := r.store.SetDeliveryStatus(ctx, deliveryID, model.DeliveryPickedUp, now); err != nil {
		return fmt.Errorf("mark delivery %d picked up: %w", deliveryID, err)
	}
	delivery.Status = model.DeliveryPickedUp
	delivery.PickedUpAt = &now
	r.notifyDelivery(ctx, delivery, model.OrderPickedUp)
	r.recordDelivery(delivery)
	r.log.Infof("courier %d picked up order %d", courierID, delivery.OrderID)
	return nil
}

// Deliver completes the delivery, mirrors the edge onto the order,
// settles cash-on-delivery payments and returns the courier to the
// available pool.
func (r *Responder) Deliver(ctx context.Context, deliveryID, courierID int64) error {
	delivery, err := r.ownedDelivery(ctx, deliveryID, courierID)
	if err != nil {
		return err
	}
	if delivery.Status != model.DeliveryPickedUp {
		return fmt.Errorf("%w: delivery %d is %s", store.ErrInvalidState, deliveryID, delivery.Status)
	}
	if err := r.advanceOrder(ctx, delivery.OrderID, model.OrderDelivered); err != nil {
		return fmt.Errorf("mark order %d delivered: %w", delivery.OrderID, err)
	}
	now := r.now().UTC()
	if err := r.store.SetDeliveryStatus(ctx, deliveryID, model.DeliveryDelivered, now); err != nil {
		return fmt.Errorf("mark delivery %d delivered: %w", deliveryID, err)
	}
	r.settleCash(ctx, delivery)
	if err := r.store.SetCourierStatus(ctx, courierID, model.CourierAvailable); err != nil {
		r.log.Errorf("return courier %d to available: %v", courierID, err)
	}
	delivery.Status = model.DeliveryDelivered
	delivery.DeliveredAt = &now
	r.notifyDelivery(ctx, delivery, model.OrderDelivered)
	r.recordDelivery(delivery)
	r.log.Infof("courier %d delivered order %d", courierID, delivery.OrderID)
	return nil
}

// advanceOrder writes an order status edge after verifying it is a
// legal transition from the order's current status.
func (r *Responder) advanceOrder(ctx context.Context, orderID int64, next model.OrderStatus) error {
	order, err := r.store.Order(ctx, orderID)
	if err != nil {
		return fmt.Errorf("load order %d: %w", orderID, err)
	}
	if !order.Status.CanTransition(next) {
		return fmt.Errorf("%w: order %d cannot go %s to %s", store.ErrInvalidState, orderID, order.Status, next)
	}
	return r.store.SetOrderStatus(ctx, orderID, next)
}

// settleCash marks a cash-on-delivery payment paid and credits the
// collected amount to the courier. Card payments settle elsewhere.
func (r *Responder) settleCash(ctx context.Context, delivery model.Delivery) {
	payment, err := r.store.PaymentByOrder(ctx, delivery.OrderID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			r.log.Errorf("load payment for order %d: %v", delivery.OrderID, err)
		}
		return
	}
	if payment.Method != model.PaymentMethodCash || payment.Status == model.PaymentPaid {
		return
	}
	if err := r.store.MarkPaid(ctx, payment.ID); err != nil {
		r.log.Errorf("settle payment %d: %v", payment.ID, err)
		return
	}
	if err := r.store.AddCashCollected(ctx, delivery.CourierID, payment.AmountCents); err != nil {
		r.log.Errorf("credit courier %d cash: %v", delivery.CourierID, err)
	}
}

func (r *Responder) ownedDelivery(ctx context.Context, deliveryID, courierID int64) (model.Delivery, error) {
	delivery, err := r.store.Delivery(ctx, deliveryID)
	if err != nil {
		return model.Delivery{}, fmt.Errorf("load delivery %d: %w", deliveryID, err)
	}
	if delivery.CourierID != courierID {
		return model.Delivery{}, fmt.Errorf("%w: delivery %d is not assigned to courier %d", store.ErrInvalidState, deliveryID, courierID)
	}
	return delivery, nil
}

func (r *Responder) notifyDelivery(ctx context.Context, delivery model.Delivery, status model.OrderStatus) {
	courier, err := r.store.Courier(ctx, delivery.CourierID)
	if err != nil {
		r.log.Errorf("load courier %d: %v", delivery.CourierID, err)
	}
	order, err := r.store.Order(ctx, delivery.OrderID)
	if err != nil {
		r.log.Errorf("load order %d: %v", delivery.OrderID, err)
		return
	}
	r.mgr.NotifyOrderStatus(order, status, courier.Name)
}

func (r *Responder) recordDelivery(delivery model.Delivery) {
	r.mgr.publish(events.DeliveryEvent{
		DeliveryID: delivery.ID,
		OrderID:    delivery.OrderID,
		CourierID:  delivery.CourierID,
		Status:     delivery.Status,
		Time:       r.now(),
	})
	dr, ok := r.sink.(coremetrics.DeliveryRecorder)
	if !ok {
		return
	}
	rec := coremetrics.DeliveryRecord{
		DeliveryID: delivery.ID,
		OrderID:    delivery.OrderID,
		CourierID:  delivery.CourierID,
		Status:     delivery.Status,
		Time:       r.now(),
	}
	if err := dr.RecordDelivery(rec); err != nil {
		r.log.Errorf("metrics error: %v", err)
	}
}
