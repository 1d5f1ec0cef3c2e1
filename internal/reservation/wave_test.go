package reservation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/bhmc/slot-reservation/internal/model"
)

func TestStartingWaveBucketSizes(t *testing.T) {
	sizes := map[int]int{}
	for o := 0; o < 42; o++ {
		sizes[StartingWave(42, 4, o)]++
	}
	assert.Equal(t, map[int]int{1: 11, 2: 11, 3: 10, 4: 10}, sizes)

	cases := []struct{ order, wave int }{
		{0, 1}, {10, 1}, {11, 2}, {21, 2}, {22, 3}, {31, 3}, {32, 4}, {41, 4},
	}
	for _, c := range cases {
		assert.Equal(t, c.wave, StartingWave(42, 4, c.order), "order %d", c.order)
	}
}

func TestStartingWaveEvenAndBoundaries(t *testing.T) {
	for o, want := range map[int]int{0: 1, 9: 1, 10: 2, 19: 2, 20: 3, 29: 3, 30: 4, 39: 4} {
		assert.Equal(t, want, StartingWave(40, 4, o), "order %d", o)
	}
	// 37 over 5: two buckets of 8, then three of 7
	for o, want := range map[int]int{7: 1, 8: 2, 15: 2, 16: 3, 22: 3, 23: 4, 29: 4, 30: 5, 36: 5} {
		assert.Equal(t, want, StartingWave(37, 5, o), "order %d", o)
	}
}

func TestStartingWaveEdgeCases(t *testing.T) {
	assert.Equal(t, 1, StartingWave(0, 4, 5))
	assert.Equal(t, 1, StartingWave(40, 0, 5))
	assert.Equal(t, 1, StartingWave(-3, 4, 5))
	// fewer positions than waves
	assert.Equal(t, 1, StartingWave(3, 5, 0))
	assert.Equal(t, 3, StartingWave(3, 5, 2))
	assert.Equal(t, 5, StartingWave(3, 5, 7))
	// out of range orders clamp to the last wave
	assert.Equal(t, 4, StartingWave(42, 4, 100))
}

func TestEffectiveOrder(t *testing.T) {
	sg := &model.Event{StartType: model.StartTypeShotgun}
	tt := &model.Event{StartType: model.StartTypeTeeTimes}
	assert.Equal(t, 0, EffectiveOrder(sg, model.Slot{HoleNumber: 1, StartingOrder: 0}))
	assert.Equal(t, 1, EffectiveOrder(sg, model.Slot{HoleNumber: 1, StartingOrder: 1}))
	assert.Equal(t, 18, EffectiveOrder(sg, model.Slot{HoleNumber: 10, StartingOrder: 0}))
	assert.Equal(t, 7, EffectiveOrder(tt, model.Slot{HoleNumber: 1, StartingOrder: 7}))
}

func TestCurrentWave(t *testing.T) {
	start := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	end := start.Add(4 * time.Hour)
	ev := &model.Event{SignupWaves: 4, PrioritySignupStart: &start, SignupStart: &end}

	assert.Equal(t, 0, CurrentWave(ev, start.Add(-time.Minute)))
	assert.Equal(t, 1, CurrentWave(ev, start))
	assert.Equal(t, 1, CurrentWave(ev, start.Add(59*time.Minute)))
	assert.Equal(t, 2, CurrentWave(ev, start.Add(75*time.Minute)))
	assert.Equal(t, 4, CurrentWave(ev, start.Add(210*time.Minute)))
	assert.Equal(t, 5, CurrentWave(ev, end))
	assert.Equal(t, 5, CurrentWave(ev, end.Add(time.Hour)))

	assert.Equal(t, AllWavesOpen, CurrentWave(&model.Event{SignupWaves: 0, PrioritySignupStart: &start, SignupStart: &end}, start))
	assert.Equal(t, AllWavesOpen, CurrentWave(&model.Event{SignupWaves: 4, SignupStart: &end}, start))
}

func TestCheckWaveOnlyGatesPriorityWindow(t *testing.T) {
	prio := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	start := prio.Add(4 * time.Hour)
	end := start.Add(48 * time.Hour)
	ev := &model.Event{
		RegistrationType: "M", StartType: model.StartTypeShotgun, CanChoose: true,
		TotalGroups: 18, SignupWaves: 2,
		PrioritySignupStart: &prio, SignupStart: &start, SignupEnd: &end,
	}
	late := []model.Slot{{HoleNumber: 9, StartingOrder: 1}}

	err := checkWave(ev, late, prio.Add(time.Minute))
	var wn *WaveNotOpenError
	if assert.ErrorAs(t, err, &wn) {
		assert.Equal(t, 2, wn.Wave)
	}
	assert.ErrorIs(t, err, ErrWaveNotOpen)

	assert.NoError(t, checkWave(ev, []model.Slot{{HoleNumber: 1}}, prio.Add(time.Minute)))
	assert.NoError(t, checkWave(ev, late, prio.Add(3*time.Hour)))
	assert.NoError(t, checkWave(ev, late, start.Add(time.Minute)), "general signup is not gated")

	ev.CanChoose = false
	assert.NoError(t, checkWave(ev, late, prio.Add(time.Minute)))
}
