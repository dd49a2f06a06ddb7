package pgstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/quickbite/dispatch/core/model"
	"github.com/quickbite/dispatch/core/store"
)

const courierColumns = `id, user_id, name, status, lat, lng, city, last_location_at, cash_collected_cents`

// Courier returns a courier by its ID.
func (s *PGStore) Courier(ctx context.Context, id int64) (model.Courier, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+courierColumns+` FROM couriers WHERE id = $1`, id)
	c, err := scanCourier(row)
	if err != nil {
		if isNotFound(err) {
			return model.Courier{}, fmt.Errorf("courier %d: %w", id, store.ErrNotFound)
		}
		return model.Courier{}, fmt.Errorf("get courier %d: %w", id, err)
	}
	return c, nil
}

// CourierByUser returns the courier owned by the given platform user.
func (s *PGStore) CourierByUser(ctx context.Context, userID int64) (model.Courier, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+courierColumns+` FROM couriers WHERE user_id = $1`, userID)
	c, err := scanCourier(row)
	if err != nil {
		if isNotFound(err) {
			return model.Courier{}, fmt.Errorf("courier for user %d: %w", userID, store.ErrNotFound)
		}
		return model.Courier{}, fmt.Errorf("get courier for user %d: %w", userID, err)
	}
	return c, nil
}

// AvailableCouriers lists couriers open for offers, optionally scoped to
// one city.
func (s *PGStore) AvailableCouriers(ctx context.Context, city string) ([]model.Courier, error) {
	q := `SELECT ` + courierColumns + ` FROM couriers WHERE status = $1`
	args := []any{model.CourierAvailable}
	if city != "" {
		q += ` AND city = $2`
		args = append(args, city)
	}
	q += ` ORDER BY id`

	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list available couriers: %w", err)
	}
	defer rows.Close()
	var out []model.Courier
	for rows.Next() {
		c, err := scanCourier(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SetCourierStatus writes a courier availability edge.
func (s *PGStore) SetCourierStatus(ctx context.Context, id int64, status model.CourierStatus) error {
	ct, err := s.db.Exec(ctx,
		`UPDATE couriers SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("update courier %d status: %w", id, err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("courier %d: %w", id, store.ErrNotFound)
	}
	return nil
}

// SetCourierLocation writes the courier's live position.
func (s *PGStore) SetCourierLocation(ctx context.Context, id int64, loc model.Coordinate, at time.Time) error {
	ct, err := s.db.Exec(ctx,
		`UPDATE couriers SET lat = $2, lng = $3, last_location_at = $4 WHERE id = $1`,
		id, loc.Lat, loc.Lon, at)
	if err != nil {
		return fmt.Errorf("update courier %d location: %w", id, err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("courier %d: %w", id, store.ErrNotFound)
	}
	return nil
}

// AddCashCollected credits cash collected on delivery to the courier.
func (s *PGStore) AddCashCollected(ctx context.Context, id int64, cents int64) error {
	ct, err := s.db.Exec(ctx,
		`UPDATE couriers SET cash_collected_cents = cash_collected_cents + $2 WHERE id = $1`,
		id, cents)
	if err != nil {
		return fmt.Errorf("credit courier %d cash: %w", id, err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("courier %d: %w", id, store.ErrNotFound)
	}
	return nil
}

func scanCourier(row pgx.Row) (model.Courier, error) {
	var (
		c        model.Courier
		lat, lng *float64
		lastLoc  *time.Time
	)
	err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.Status, &lat, &lng, &c.City, &lastLoc, &c.CashCollectedCents)
	if err != nil {
		return model.Courier{}, err
	}
	c.Location = coord(lat, lng)
	if lastLoc != nil {
		c.LastLocationUpdate = *lastLoc
	}
	return c, nil
}
