package dispatch

import (
	"fmt"
	"time"

	"github.com/quickbite/dispatch/core/model"
)

// Config defines matching and timeout parameters.
type Config struct {
	// OfferTimeoutSeconds bounds how long a courier may sit on an offer.
	OfferTimeoutSeconds int `json:"offer_timeout_seconds"`
	// TimeoutGraceSeconds is added before the watcher re-checks, so the
	// store write of a last-second response wins over the watcher.
	TimeoutGraceSeconds int `json:"timeout_grace_seconds"`
	// PickupWeight and DropoffWeight combine the two distance legs when
	// the customer position is known.
	PickupWeight  float64 `json:"pickup_weight"`
	DropoffWeight float64 `json:"dropoff_weight"`
	// FallbackLat/Lon substitute for any unknown position so matching
	// never hard-stops on missing geo data.
	FallbackLat float64 `json:"fallback_lat"`
	FallbackLon float64 `json:"fallback_lon"`
	// City optionally scopes candidate couriers.
	City string `json:"city"`
}

// SetDefaults applies the documented defaults.
func (c *Config) SetDefaults() {
	if c.OfferTimeoutSeconds == 0 {
		c.OfferTimeoutSeconds = 60
	}
	if c.TimeoutGraceSeconds == 0 {
		c.TimeoutGraceSeconds = 5
	}
	if c.PickupWeight == 0 && c.DropoffWeight == 0 {
		c.PickupWeight = 0.6
		c.DropoffWeight = 0.4
	}
	if c.FallbackLat == 0 && c.FallbackLon == 0 {
		c.FallbackLat = 16.87
		c.FallbackLon = 96.20
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.OfferTimeoutSeconds <= 0 {
		return fmt.Errorf("offer_timeout_seconds must be positive")
	}
	if c.TimeoutGraceSeconds < 0 {
		return fmt.Errorf("timeout_grace_seconds must not be negative")
	}
	if c.PickupWeight <= 0 || c.DropoffWeight < 0 {
		return fmt.Errorf("distance weights must be positive")
	}
	return nil
}

// OfferTTL returns the offer timeout as a duration.
func (c Config) OfferTTL() time.Duration {
	return time.Duration(c.OfferTimeoutSeconds) * time.Second
}

// Grace returns the watcher grace as a duration.
func (c Config) Grace() time.Duration {
	return time.Duration(c.TimeoutGraceSeconds) * time.Second
}

// Fallback returns the configured fallback coordinate.
func (c Config) Fallback() model.Coordinate {
	return model.Coordinate{Lat: c.FallbackLat, Lon: c.FallbackLon}
}
