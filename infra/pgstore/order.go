package pgstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/quickbite/dispatch/core/model"
	"github.com/quickbite/dispatch/core/store"
)

// Order returns the dispatch view of an order, joined with the
// restaurant and customer records it references.
func (s *PGStore) Order(ctx context.Context, id int64) (model.Order, error) {
	var (
		o                model.Order
		restLat, restLng *float64
		dropLat, dropLng *float64
		items            []byte
	)
	err := s.db.QueryRow(ctx, `
        SELECT o.id, o.restaurant_id, o.customer_id, r.name, u.name, o.status,
               r.lat, r.lng, o.dropoff_lat, o.dropoff_lng,
               o.items, o.delivery_address, o.total_cents, o.payment_method,
               o.created_at, o.updated_at
        FROM orders o
        JOIN restaurants r ON r.id = o.restaurant_id
        JOIN users u ON u.id = o.customer_id
        WHERE o.id = $1`, id,
	).Scan(&o.ID, &o.RestaurantID, &o.CustomerID, &o.RestaurantName, &o.CustomerName, &o.Status,
		&restLat, &restLng, &dropLat, &dropLng,
		&items, &o.DeliveryAddress, &o.TotalCents, &o.PaymentMethod,
		&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if isNotFound(err) {
			return model.Order{}, fmt.Errorf("order %d: %w", id, store.ErrNotFound)
		}
		return model.Order{}, fmt.Errorf("get order %d: %w", id, err)
	}
	o.RestaurantCoord = coord(restLat, restLng)
	o.CustomerCoord = coord(dropLat, dropLng)
	if len(items) > 0 {
		if err := json.Unmarshal(items, &o.Items); err != nil {
			return model.Order{}, fmt.Errorf("decode items of order %d: %w", id, err)
		}
	}
	return o, nil
}

// SetOrderStatus writes an order status edge.
func (s *PGStore) SetOrderStatus(ctx context.Context, id int64, status model.OrderStatus) error {
	ct, err := s.db.Exec(ctx,
		`UPDATE orders SET status = $2, updated_at = now() WHERE id = $1`,
		id, status)
	if err != nil {
		return fmt.Errorf("update order %d status: %w", id, err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("order %d: %w", id, store.ErrNotFound)
	}
	return nil
}

func coord(lat, lng *float64) model.Coordinate {
	if lat == nil || lng == nil {
		return model.Coordinate{}
	}
	return model.Coordinate{Lat: *lat, Lon: *lng}
}
