package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGrossUp(t *testing.T) {
	cases := []struct {
		name      string
		due       int64
		fixed     int64
		rate      float64
		total     int64
		surcharge int64
	}{
		{"ten dollars", 1000, 30, 0.029, 1061, 61},
		{"member dues", 10000, 30, 0.029, 10330, 330},
		{"nothing due", 0, 30, 0.029, 0, 0},
		{"fixed only", 500, 30, 0, 530, 30},
		{"bad rate ignored", 500, 0, 1.5, 500, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			total, surcharge := GrossUp(tc.due, tc.fixed, tc.rate)
			assert.Equal(t, tc.total, total)
			assert.Equal(t, tc.surcharge, surcharge)
		})
	}
}
