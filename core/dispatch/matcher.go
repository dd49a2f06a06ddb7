package dispatch

import (
	"sort"

	"github.com/quickbite/dispatch/core/geo"
	"github.com/quickbite/dispatch/core/model"
)

// Matcher scores courier candidates by weighted proximity. The pickup
// leg (restaurant to courier) weighs more than the drop-off leg because
// a courier far from the restaurant delays every later step.
type Matcher struct {
	PickupWeight  float64
	DropoffWeight float64
	Fallback      model.Coordinate
}

// NewMatcher builds a Matcher from the dispatch configuration.
func NewMatcher(cfg Config) Matcher {
	return Matcher{
		PickupWeight:  cfg.PickupWeight,
		DropoffWeight: cfg.DropoffWeight,
		Fallback:      cfg.Fallback(),
	}
}

// Candidate is a scored courier, best candidates first after Rank.
type Candidate struct {
	Courier              model.Courier
	DistanceToRestaurant float64
	DistanceToCustomer   float64
	HasCustomerLeg       bool
	Score                float64
}

// Rank scores the couriers against the pickup point and, when known, the
// drop-off point, and returns them sorted ascending by score. Couriers
// without a live position are scored from the fallback coordinate.
func (m Matcher) Rank(couriers []model.Courier, pickup, dropoff model.Coordinate, hasDropoff bool) []Candidate {
	cands := make([]Candidate, 0, len(couriers))
	for _, c := range couriers {
		pos := c.Location
		if !pos.Known() {
			pos = m.Fallback
		}
		dRest := geo.Distance(pickup.Lat, pickup.Lon, pos.Lat, pos.Lon)
		cand := Candidate{
			Courier:              c,
			DistanceToRestaurant: dRest,
			Score:                dRest,
		}
		if hasDropoff {
			dCust := geo.Distance(dropoff.Lat, dropoff.Lon, pos.Lat, pos.Lon)
			cand.DistanceToCustomer = dCust
			cand.HasCustomerLeg = true
			cand.Score = m.PickupWeight*dRest + m.DropoffWeight*dCust
		}
		cands = append(cands, cand)
	}
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].Score != cands[j].Score {
			return cands[i].Score < cands[j].Score
		}
		return cands[i].Courier.ID < cands[j].Courier.ID
	})
	return cands
}
