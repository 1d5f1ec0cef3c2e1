package model

import "time"

// Registration groups the slots one user claimed together for an event.
//
// Fields:
//
//	ID         – primary key identifier.
//	EventID    – event signed up for.
//	CourseID   – course chosen on multi-course events.
//	UserID     – user who signed up.
//	SignedUpBy – display name of whoever performed the signup.
//	Notes      – free-text notes.
//	Expires    – end of the hold while any slot is Pending, nil once paid.
//	CreatedAt  – creation timestamp.
//	Slots      – owned slots, loaded separately.
type Registration struct {
	ID         uint64     `db:"id" json:"id"`
	EventID    uint64     `db:"event_id" json:"event_id"`
	CourseID   *uint64    `db:"course_id" json:"course_id,omitempty"`
	UserID     uint64     `db:"user_id" json:"user_id"`
	SignedUpBy string     `db:"signed_up_by" json:"signed_up_by"`
	Notes      *string    `db:"notes" json:"notes,omitempty"`
	Expires    *time.Time `db:"expires" json:"expires,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	Slots      []Slot     `db:"-" json:"slots"`
}

// Player is a club member or guest who can occupy a slot.
type Player struct {
	ID        uint64 `db:"id" json:"id"`
	FirstName string `db:"first_name" json:"first_name"`
	LastName  string `db:"last_name" json:"last_name"`
	Email     string `db:"email" json:"email"`
	IsMember  bool   `db:"is_member" json:"is_member"`
}

// Name returns "First Last".
func (p Player) Name() string { return p.FirstName + " " + p.LastName }
