package dispatch

import (
	"math"
	"time"

	"github.com/quickbite/dispatch/core/model"
)

// Message types pushed over actor connections.
const (
	TypeNewOrderRequest   = "NEW_ORDER_REQUEST"
	TypeOrderStatusUpdate = "ORDER_STATUS_UPDATE"
)

// OfferPayload is the "new order offer" message pushed to a courier. The
// same shape is returned by the poll endpoint so the accept/reject
// contract is transport independent.
type OfferPayload struct {
	Type                 string            `json:"type"`
	MessageID            string            `json:"message_id"`
	RequestID            int64             `json:"request_id"`
	OrderID              int64             `json:"order_id"`
	RestaurantName       string            `json:"restaurant_name"`
	Items                []model.OrderItem `json:"items"`
	CustomerName         string            `json:"customer_name,omitempty"`
	DeliveryAddress      string            `json:"delivery_address"`
	DistanceKM           float64           `json:"distance_km"`
	DistanceToCustomerKM *float64          `json:"distance_to_customer_km,omitempty"`
	MatchScore           float64           `json:"match_score"`
	ExpiresAt            time.Time         `json:"expires_at"`
}

// StatusPayload is the "order status update" message pushed to customers
// and restaurants.
type StatusPayload struct {
	Type      string    `json:"type"`
	OrderID   int64     `json:"order_id"`
	Status    string    `json:"status"`
	RiderName string    `json:"rider_name,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// round2 trims distances and scores to two decimals for display.
func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
