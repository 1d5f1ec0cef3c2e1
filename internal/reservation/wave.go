package reservation

import (
	"math"
	"time"

	"github.com/bhmc/slot-reservation/internal/model"
)

// AllWavesOpen is returned by CurrentWave for events that do not use
// waves, so every position compares as open.
const AllWavesOpen = 999

// StartingWave returns the 1-based wave a position opens in.  total
// positions are split into waves buckets; the first total%waves buckets
// hold one extra position.
func StartingWave(total, waves, order int) int {
	if total <= 0 || waves <= 0 {
		return 1
	}
	base := total / waves
	rem := total % waves
	if base == 0 {
		// fewer positions than waves: one position per wave
		if order < rem {
			return order + 1
		}
		return waves
	}
	if order < rem*(base+1) {
		return order/(base+1) + 1
	}
	w := rem + (order-rem*(base+1))/base + 1
	if w > waves {
		return waves
	}
	return w
}

// EffectiveOrder is the index a slot's position occupies in the wave
// ordering.  Shotgun holes host an A and a B group, so each hole takes
// two consecutive indexes.
func EffectiveOrder(e *model.Event, s model.Slot) int {
	if e.IsShotgun() {
		return (s.HoleNumber-1)*2 + s.StartingOrder
	}
	return s.StartingOrder
}

// CurrentWave returns the highest wave open at now: 0 before the priority
// window, 1..N during it and N+1 once general signup starts.
func CurrentWave(e *model.Event, now time.Time) int {
	n := e.SignupWaves
	if n <= 0 || e.PrioritySignupStart == nil || e.SignupStart == nil {
		return AllWavesOpen
	}
	start, end := *e.PrioritySignupStart, *e.SignupStart
	if now.Before(start) {
		return 0
	}
	if !now.Before(end) {
		return n + 1
	}
	perWave := end.Sub(start).Minutes() / float64(n)
	if perWave <= 0 {
		return n + 1
	}
	w := int(math.Floor(now.Sub(start).Minutes()/perWave)) + 1
	if w < 1 {
		return 1
	}
	if w > n {
		return n
	}
	return w
}

// checkWave fails with a *WaveNotOpenError for the first slot whose wave
// is later than the one currently open.  Only choosable events in their
// priority window are gated.
func checkWave(e *model.Event, slots []model.Slot, now time.Time) error {
	if !e.CanChoose || e.SignupWaves <= 0 || e.RegistrationWindow(now) != model.WindowPriority {
		return nil
	}
	open := CurrentWave(e, now)
	for _, s := range slots {
		if w := StartingWave(e.TotalGroups, e.SignupWaves, EffectiveOrder(e, s)); w > open {
			return &WaveNotOpenError{Wave: w}
		}
	}
	return nil
}
