package payment

import "math"

// GrossUp returns the amount to charge so that, after the gateway takes
// its fixed and proportional cut, dueCents is left over.  surcharge is the
// part of total that covers the gateway.  Nothing is charged when nothing
// is due.
func GrossUp(dueCents, fixedCents int64, rate float64) (total, surcharge int64) {
	if dueCents <= 0 {
		return 0, 0
	}
	if rate < 0 || rate >= 1 {
		rate = 0
	}
	total = int64(math.Round(float64(dueCents+fixedCents) / (1 - rate)))
	return total, total - dueCents
}
