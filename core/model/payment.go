package model

// PaymentStatus represents the settlement state of a payment record.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
)

// PaymentMethodCash marks cash-on-delivery orders, settled by the courier
// at handover.
const PaymentMethodCash = "cash"

// Payment is the external payment record dispatch touches only to
// finalize cash-on-delivery settlement.
type Payment struct {
	ID          int64
	OrderID     int64
	Method      string
	Status      PaymentStatus
	AmountCents int64
}
