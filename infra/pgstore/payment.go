package pgstore

import (
	"context"
	"fmt"

	"github.com/quickbite/dispatch/core/model"
	"github.com/quickbite/dispatch/core/store"
)

// PaymentByOrder returns the payment record of an order.
func (s *PGStore) PaymentByOrder(ctx context.Context, orderID int64) (model.Payment, error) {
	var p model.Payment
	err := s.db.QueryRow(ctx, `
        SELECT id, order_id, method, status, amount_cents
        FROM payments WHERE order_id = $1`, orderID,
	).Scan(&p.ID, &p.OrderID, &p.Method, &p.Status, &p.AmountCents)
	if err != nil {
		if isNotFound(err) {
			return model.Payment{}, fmt.Errorf("payment for order %d: %w", orderID, store.ErrNotFound)
		}
		return model.Payment{}, fmt.Errorf("get payment for order %d: %w", orderID, err)
	}
	return p, nil
}

// MarkPaid settles a payment.
func (s *PGStore) MarkPaid(ctx context.Context, id int64) error {
	ct, err := s.db.Exec(ctx,
		`UPDATE payments SET status = $2 WHERE id = $1`, id, model.PaymentPaid)
	if err != nil {
		return fmt.Errorf("settle payment %d: %w", id, err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("payment %d: %w", id, store.ErrNotFound)
	}
	return nil
}
