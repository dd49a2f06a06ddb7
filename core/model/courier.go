package model

import "time"

// CourierStatus represents the operational state of a courier.
type CourierStatus string

// List of possible courier statuses.
const (
	CourierAvailable   CourierStatus = "available"
	CourierUnavailable CourierStatus = "unavailable"
	CourierBusy        CourierStatus = "busy"
	CourierInactive    CourierStatus = "inactive"
)

var allowedCourierStatuses = [...]CourierStatus{
	CourierAvailable, CourierUnavailable, CourierBusy, CourierInactive,
}

// Valid checks if the CourierStatus is one of the known values.
func (s CourierStatus) Valid() bool {
	for _, v := range allowedCourierStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Courier is a delivery actor eligible to receive offers.
type Courier struct {
	ID                 int64
	UserID             int64 // actor id used for connection addressing
	Name               string
	Status             CourierStatus
	Location           Coordinate
	City               string
	LastLocationUpdate time.Time
	CashCollectedCents int64
}
