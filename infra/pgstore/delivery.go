package pgstore

import (
	"context"
	"fmt"
	"time"

	"github.com/quickbite/dispatch/core/model"
	"github.com/quickbite/dispatch/core/store"
)

const deliveryColumns = `id, order_id, courier_id, status, picked_up_at, delivered_at, created_at`

// CreateDelivery inserts the delivery record for an accepted order. The
// unique index on order_id enforces at most one delivery per order.
func (s *PGStore) CreateDelivery(ctx context.Context, orderID, courierID int64) (model.Delivery, error) {
	d := model.Delivery{
		OrderID:   orderID,
		CourierID: courierID,
		Status:    model.DeliveryAssigned,
	}
	err := s.db.QueryRow(ctx, `
        INSERT INTO deliveries (order_id, courier_id, status)
        VALUES ($1, $2, $3)
        RETURNING id, created_at`,
		orderID, courierID, model.DeliveryAssigned,
	).Scan(&d.ID, &d.CreatedAt)
	if err != nil {
		if isDuplicate(err) {
			return model.Delivery{}, fmt.Errorf("delivery for order %d exists: %w", orderID, store.ErrConflict)
		}
		return model.Delivery{}, fmt.Errorf("create delivery: %w", err)
	}
	return d, nil
}

// Delivery returns a delivery by ID.
func (s *PGStore) Delivery(ctx context.Context, id int64) (model.Delivery, error) {
	var d model.Delivery
	err := s.db.QueryRow(ctx,
		`SELECT `+deliveryColumns+` FROM deliveries WHERE id = $1`, id,
	).Scan(&d.ID, &d.OrderID, &d.CourierID, &d.Status, &d.PickedUpAt, &d.DeliveredAt, &d.CreatedAt)
	if err != nil {
		if isNotFound(err) {
			return model.Delivery{}, fmt.Errorf("delivery %d: %w", id, store.ErrNotFound)
		}
		return model.Delivery{}, fmt.Errorf("get delivery %d: %w", id, err)
	}
	return d, nil
}

// DeliveryByOrder returns the delivery of an order.
func (s *PGStore) DeliveryByOrder(ctx context.Context, orderID int64) (model.Delivery, error) {
	var d model.Delivery
	err := s.db.QueryRow(ctx,
		`SELECT `+deliveryColumns+` FROM deliveries WHERE order_id = $1`, orderID,
	).Scan(&d.ID, &d.OrderID, &d.CourierID, &d.Status, &d.PickedUpAt, &d.DeliveredAt, &d.CreatedAt)
	if err != nil {
		if isNotFound(err) {
			return model.Delivery{}, fmt.Errorf("delivery for order %d: %w", orderID, store.ErrNotFound)
		}
		return model.Delivery{}, fmt.Errorf("get delivery for order %d: %w", orderID, err)
	}
	return d, nil
}

// SetDeliveryStatus advances a delivery and stamps the matching
// timestamp column.
func (s *PGStore) SetDeliveryStatus(ctx context.Context, id int64, status model.DeliveryStatus, at time.Time) error {
	q := `UPDATE deliveries SET status = $2 WHERE id = $1`
	args := []any{id, status}
	switch status {
	case model.DeliveryPickedUp:
		q = `UPDATE deliveries SET status = $2, picked_up_at = $3 WHERE id = $1`
		args = append(args, at)
	case model.DeliveryDelivered:
		q = `UPDATE deliveries SET status = $2, delivered_at = $3 WHERE id = $1`
		args = append(args, at)
	}
	ct, err := s.db.Exec(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("update delivery %d status: %w", id, err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("delivery %d: %w", id, store.ErrNotFound)
	}
	return nil
}

// CompletedForCourier lists a courier's finished deliveries, most recent
// first.
func (s *PGStore) CompletedForCourier(ctx context.Context, courierID int64) ([]model.Delivery, error) {
	rows, err := s.db.Query(ctx, `
        SELECT `+deliveryColumns+` FROM deliveries
        WHERE courier_id = $1 AND status = $2
        ORDER BY id DESC`, courierID, model.DeliveryDelivered)
	if err != nil {
		return nil, fmt.Errorf("list deliveries of courier %d: %w", courierID, err)
	}
	defer rows.Close()
	var out []model.Delivery
	for rows.Next() {
		var d model.Delivery
		if err := rows.Scan(&d.ID, &d.OrderID, &d.CourierID, &d.Status, &d.PickedUpAt, &d.DeliveredAt, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
