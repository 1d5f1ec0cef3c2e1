package reservation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bhmc/slot-reservation/internal/model"
)

func course(id uint64, pars ...int) model.Course {
	c := model.Course{ID: id, Name: "Course"}
	for i, p := range pars {
		c.Holes = append(c.Holes, model.Hole{ID: id*100 + uint64(i+1), CourseID: id, HoleNumber: i + 1, Par: p})
	}
	return c
}

func TestBuildLayoutShotgunCreatesTwoGroupsPerHole(t *testing.T) {
	ev := &model.Event{ID: 9, CanChoose: true, StartType: model.StartTypeShotgun, GroupSize: 4,
		Courses: []model.Course{course(1, 4, 3, 5)}}
	slots := BuildLayout(ev)
	assert.Len(t, slots, 3*2*4)

	groups := map[[2]int]int{}
	for _, s := range slots {
		assert.Equal(t, model.SlotAvailable, s.Status)
		assert.Equal(t, uint64(9), s.EventID)
		groups[[2]int{s.HoleNumber, s.StartingOrder}]++
	}
	for hole := 1; hole <= 3; hole++ {
		assert.Equal(t, 4, groups[[2]int{hole, 0}], "hole %d A", hole)
		assert.Equal(t, 4, groups[[2]int{hole, 1}], "hole %d B", hole)
	}
}

func TestBuildLayoutTeeTimesWithStarterInterval(t *testing.T) {
	ev := &model.Event{ID: 3, CanChoose: true, StartType: model.StartTypeTeeTimes, GroupSize: 2,
		TotalGroups: 6, StarterTimeInterval: 3,
		Courses: []model.Course{course(1, 4, 4), course(2, 5, 3)}}
	slots := BuildLayout(ev)
	assert.Len(t, slots, 2*6*2)

	for _, s := range slots {
		assert.Equal(t, 1, s.HoleNumber)
		want := model.SlotAvailable
		if s.StartingOrder == 2 || s.StartingOrder == 5 {
			want = model.SlotUnavailable
		}
		assert.Equal(t, want, s.Status, "order %d", s.StartingOrder)
	}
}

func TestBuildLayoutNonChoosableIsEmpty(t *testing.T) {
	ev := &model.Event{StartType: model.StartTypeTeeTimes, TotalGroups: 5, GroupSize: 4,
		Courses: []model.Course{course(1, 4)}}
	assert.Empty(t, BuildLayout(ev))
}
