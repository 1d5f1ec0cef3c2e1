package model

import "time"

// Event types that carry behaviour in the reservation flow.
const (
	EventTypeWeeknight          = "N"
	EventTypeWeekendMajor       = "W"
	EventTypeSeasonRegistration = "R"
)

// Start types.
const (
	StartTypeTeeTimes = "TT"
	StartTypeShotgun  = "SG"
	StartTypeNone     = "NA"
)

// RegistrationTypeNone marks an event that does not take signups.
const RegistrationTypeNone = "N"

// Registration window states returned by Event.RegistrationWindow.
const (
	WindowNotApplicable = "n/a"
	WindowPriority      = "priority"
	WindowRegistration  = "registration"
	WindowFuture        = "future"
	WindowPast          = "past"
)

// Event is a scheduled club event that players sign up for.  Only the
// columns used by the reservation engine are mapped here.
//
// Fields:
//
//	ID                     – primary key identifier.
//	Name                   – event title.
//	EventType              – N, W, R (season registration), ...
//	RegistrationType       – N means the event takes no signups.
//	StartType              – TT (tee times), SG (shotgun) or NA.
//	CanChoose              – players pick their own hole or tee time.
//	GroupSize              – players per group on the course.
//	TotalGroups            – groups per course; also the wave bucket total.
//	MinimumSignupGroupSize – smallest group a player may sign up.
//	MaximumSignupGroupSize – largest group a player may sign up.
//	RegistrationMaximum    – reserved slot cap, zero for unlimited.
//	PrioritySignupStart    – start of the wave-gated priority window.
//	SignupStart            – start of general signup.
//	SignupEnd              – end of signup.
//	SignupWaves            – number of priority waves, zero disables waves.
//	StarterTimeInterval    – every Nth tee time is held back, zero disables.
//	Courses                – courses played, loaded separately.
type Event struct {
	ID                     uint64     `db:"id"`
	Name                   string     `db:"name"`
	EventType              string     `db:"event_type"`
	RegistrationType       string     `db:"registration_type"`
	StartType              string     `db:"start_type"`
	CanChoose              bool       `db:"can_choose"`
	GroupSize              int        `db:"group_size"`
	TotalGroups            int        `db:"total_groups"`
	MinimumSignupGroupSize int        `db:"minimum_signup_group_size"`
	MaximumSignupGroupSize int        `db:"maximum_signup_group_size"`
	RegistrationMaximum    int        `db:"registration_maximum"`
	PrioritySignupStart    *time.Time `db:"priority_signup_start"`
	SignupStart            *time.Time `db:"signup_start"`
	SignupEnd              *time.Time `db:"signup_end"`
	SignupWaves            int        `db:"signup_waves"`
	StarterTimeInterval    int        `db:"starter_time_interval"`
	Courses                []Course   `db:"-"`
}

// RegistrationWindow reports which signup window the event is in at the
// given instant.  Boundaries are exclusive, matching the club's existing
// behaviour: at exactly SignupStart neither window is open.
func (e *Event) RegistrationWindow(now time.Time) string {
	if e.RegistrationType == RegistrationTypeNone {
		return WindowNotApplicable
	}
	if e.SignupStart == nil || e.SignupEnd == nil {
		return WindowPast
	}
	start, end := *e.SignupStart, *e.SignupEnd
	switch {
	case e.PrioritySignupStart != nil && e.PrioritySignupStart.Before(now) && now.Before(start):
		return WindowPriority
	case start.Before(now) && now.Before(end):
		return WindowRegistration
	case start.After(now):
		return WindowFuture
	}
	return WindowPast
}

// IsShotgun reports whether groups start simultaneously from different holes.
func (e *Event) IsShotgun() bool { return e.StartType == StartTypeShotgun }

// Course is a set of holes an event is played on.
type Course struct {
	ID    uint64 `db:"id"`
	Name  string `db:"name"`
	Holes []Hole `db:"-"`
}

// Hole is a single hole on a course.
type Hole struct {
	ID         uint64 `db:"id"`
	CourseID   uint64 `db:"course_id"`
	HoleNumber int    `db:"hole_number"`
	Par        int    `db:"par"`
}

// EventFee is a fee line an event charges per player, e.g. entry or
// greens fee.  Amounts are stored in cents.
type EventFee struct {
	ID          uint64 `db:"id"`
	EventID     uint64 `db:"event_id"`
	Name        string `db:"name"`
	AmountCents int64  `db:"amount_cents"`
	IsRequired  bool   `db:"is_required"`
}
