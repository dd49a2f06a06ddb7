package pgstore

import (
	"context"
	"fmt"
	"time"

	"github.com/quickbite/dispatch/core/model"
	"github.com/quickbite/dispatch/core/store"
)

// CreateRequest inserts a pending offer for the courier.
func (s *PGStore) CreateRequest(ctx context.Context, orderID, courierID int64, expiresAt time.Time) (model.DispatchRequest, error) {
	req := model.DispatchRequest{
		OrderID:   orderID,
		CourierID: courierID,
		Status:    model.RequestPending,
		ExpiresAt: expiresAt,
	}
	err := s.db.QueryRow(ctx, `
        INSERT INTO dispatch_requests (order_id, courier_id, status, expires_at)
        VALUES ($1, $2, $3, $4)
        RETURNING id, created_at`,
		orderID, courierID, model.RequestPending, expiresAt,
	).Scan(&req.ID, &req.CreatedAt)
	if err != nil {
		if isDuplicate(err) {
			return model.DispatchRequest{}, fmt.Errorf("request for order %d courier %d exists: %w", orderID, courierID, store.ErrConflict)
		}
		return model.DispatchRequest{}, fmt.Errorf("create request: %w", err)
	}
	return req, nil
}

// Request returns a dispatch request by ID.
func (s *PGStore) Request(ctx context.Context, id int64) (model.DispatchRequest, error) {
	var r model.DispatchRequest
	err := s.db.QueryRow(ctx, `
        SELECT id, order_id, courier_id, status, created_at, expires_at
        FROM dispatch_requests WHERE id = $1`, id,
	).Scan(&r.ID, &r.OrderID, &r.CourierID, &r.Status, &r.CreatedAt, &r.ExpiresAt)
	if err != nil {
		if isNotFound(err) {
			return model.DispatchRequest{}, fmt.Errorf("dispatch request %d: %w", id, store.ErrNotFound)
		}
		return model.DispatchRequest{}, fmt.Errorf("get request %d: %w", id, err)
	}
	return r, nil
}

// ResolvePending flips a pending request to a terminal status. The
// conditional UPDATE makes concurrent resolutions race safely: exactly
// one caller observes true.
func (s *PGStore) ResolvePending(ctx context.Context, id int64, status model.RequestStatus) (bool, error) {
	ct, err := s.db.Exec(ctx, `
        UPDATE dispatch_requests SET status = $2
        WHERE id = $1 AND status = $3`,
		id, status, model.RequestPending)
	if err != nil {
		return false, fmt.Errorf("resolve request %d: %w", id, err)
	}
	if ct.RowsAffected() > 0 {
		return true, nil
	}
	// Distinguish a lost race from a missing row.
	var exists bool
	if err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM dispatch_requests WHERE id = $1)`, id,
	).Scan(&exists); err != nil {
		return false, fmt.Errorf("check request %d: %w", id, err)
	}
	if !exists {
		return false, fmt.Errorf("dispatch request %d: %w", id, store.ErrNotFound)
	}
	return false, nil
}

// ExpireSiblings expires every other pending request of the order.
func (s *PGStore) ExpireSiblings(ctx context.Context, orderID, exceptID int64) (int, error) {
	ct, err := s.db.Exec(ctx, `
        UPDATE dispatch_requests SET status = $3
        WHERE order_id = $1 AND id <> $2 AND status = $4`,
		orderID, exceptID, model.RequestExpired, model.RequestPending)
	if err != nil {
		return 0, fmt.Errorf("expire siblings of order %d: %w", orderID, err)
	}
	return int(ct.RowsAffected()), nil
}

// AttemptedCourierIDs lists couriers that ever received a request for
// the order, regardless of outcome.
func (s *PGStore) AttemptedCourierIDs(ctx context.Context, orderID int64) ([]int64, error) {
	rows, err := s.db.Query(ctx,
		`SELECT DISTINCT courier_id FROM dispatch_requests WHERE order_id = $1`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list attempted couriers of order %d: %w", orderID, err)
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// PendingForCourier lists the courier's open requests, oldest first.
func (s *PGStore) PendingForCourier(ctx context.Context, courierID int64) ([]model.DispatchRequest, error) {
	rows, err := s.db.Query(ctx, `
        SELECT id, order_id, courier_id, status, created_at, expires_at
        FROM dispatch_requests
        WHERE courier_id = $1 AND status = $2
        ORDER BY id`, courierID, model.RequestPending)
	if err != nil {
		return nil, fmt.Errorf("list pending requests of courier %d: %w", courierID, err)
	}
	defer rows.Close()
	var out []model.DispatchRequest
	for rows.Next() {
		var r model.DispatchRequest
		if err := rows.Scan(&r.ID, &r.OrderID, &r.CourierID, &r.Status, &r.CreatedAt, &r.ExpiresAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
