// Package fare computes trip pricing. Pure functions over the configured
// rates so settlements can be recomputed and verified from stored inputs.
package fare

import "math"

// Rates carries the pricing constants. Defaults match the production
// tariff: 500 RWF/km quoted, and on cancellation a 500 RWF base plus
// 300 RWF/km traveled plus 15% of the original quote.
type Rates struct {
	PerKm              float64
	CancelBase         float64
	CancelPerKm        float64
	PickupLossFraction float64
}

func DefaultRates() Rates {
	return Rates{
		PerKm:              500,
		CancelBase:         500,
		CancelPerKm:        300,
		PickupLossFraction: 0.15,
	}
}

type Calculator struct {
	rates Rates
}

func New(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Quote returns the fare for a trip of the given distance.
func (c *Calculator) Quote(distanceKm float64) float64 {
	return distanceKm * c.rates.PerKm
}

// SettleCancellation returns the amount due when a trip is cancelled after
// the driver has already covered distanceTraveledKm toward or with the
// client. originalAmount is the quote at booking time; the pickup-loss
// fraction compensates the driver for the lost trip. Rounded to the
// nearest whole currency unit.
func (c *Calculator) SettleCancellation(distanceTraveledKm, originalAmount float64) float64 {
	tripFare := c.rates.CancelBase + distanceTraveledKm*c.rates.CancelPerKm
	pickupLoss := originalAmount * c.rates.PickupLossFraction
	return math.Round(tripFare + pickupLoss)
}
