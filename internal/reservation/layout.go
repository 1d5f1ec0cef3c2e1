package reservation

import "github.com/bhmc/slot-reservation/internal/model"

// BuildLayout returns the full slot grid for a choosable event without
// persisting it.
//
// Shotgun starts get an A (order 0) and a B (order 1) group on every hole
// of every course.  Tee-time starts get TotalGroups tee times off hole 1
// of every course; with a starter interval of N every Nth tee time is
// created Unavailable.  Other events have no fixed layout.
func BuildLayout(e *model.Event) []model.Slot {
	if !e.CanChoose {
		return nil
	}
	var out []model.Slot
	group := func(hole model.Hole, order int, status model.SlotStatus) {
		holeID := hole.ID
		for i := 0; i < e.GroupSize; i++ {
			out = append(out, model.Slot{
				EventID:       e.ID,
				HoleID:        &holeID,
				HoleNumber:    hole.HoleNumber,
				StartingOrder: order,
				SlotIndex:     i,
				Status:        status,
			})
		}
	}
	switch e.StartType {
	case model.StartTypeShotgun:
		for _, c := range e.Courses {
			for _, h := range c.Holes {
				group(h, 0, model.SlotAvailable)
				group(h, 1, model.SlotAvailable)
			}
		}
	case model.StartTypeTeeTimes:
		for _, c := range e.Courses {
			first, ok := firstHole(c)
			if !ok {
				continue
			}
			for order := 0; order < e.TotalGroups; order++ {
				status := model.SlotAvailable
				if e.StarterTimeInterval > 0 && (order+1)%e.StarterTimeInterval == 0 {
					status = model.SlotUnavailable
				}
				group(first, order, status)
			}
		}
	}
	return out
}

func firstHole(c model.Course) (model.Hole, bool) {
	for _, h := range c.Holes {
		if h.HoleNumber == 1 {
			return h, true
		}
	}
	return model.Hole{}, false
}

func findHole(e *model.Event, holeID uint64) (model.Hole, bool) {
	for _, c := range e.Courses {
		for _, h := range c.Holes {
			if h.ID == holeID {
				return h, true
			}
		}
	}
	return model.Hole{}, false
}
