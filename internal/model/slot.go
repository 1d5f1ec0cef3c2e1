package model

// SlotStatus is the reservation state of a single slot.
type SlotStatus string

const (
	SlotAvailable   SlotStatus = "A"
	SlotPending     SlotStatus = "P"
	SlotProcessing  SlotStatus = "X"
	SlotReserved    SlotStatus = "R"
	SlotUnavailable SlotStatus = "U"
)

// Held reports whether the status means the slot belongs to a
// registration (Pending, ProcessingPayment or Reserved).
func (s SlotStatus) Held() bool {
	return s == SlotPending || s == SlotProcessing || s == SlotReserved
}

// String returns the human readable status name.
func (s SlotStatus) String() string {
	switch s {
	case SlotAvailable:
		return "Available"
	case SlotPending:
		return "Pending"
	case SlotProcessing:
		return "ProcessingPayment"
	case SlotReserved:
		return "Reserved"
	case SlotUnavailable:
		return "Unavailable"
	}
	return string(s)
}

// Slot is one reservable position in an event: a place in a tee time or
// a shotgun group, or a flat numbered position for events where players
// do not choose.
//
// Fields:
//
//	ID             – primary key identifier.
//	EventID        – event the slot belongs to.
//	HoleID         – starting hole, nil for non-choosable events.
//	HoleNumber     – number of the starting hole (denormalised for wave math).
//	StartingOrder  – tee time index, or 0/1 for shotgun A/B groups.
//	SlotIndex      – position within the group.
//	PlayerID       – occupant, nil while the slot is empty.
//	Status         – A, P, X, R or U.
//	RegistrationID – owning registration, set iff the status is held.
//	ExternalID     – correlation id in an external scoring system.
type Slot struct {
	ID             uint64     `db:"id" json:"id"`
	EventID        uint64     `db:"event_id" json:"event_id"`
	HoleID         *uint64    `db:"hole_id" json:"hole_id,omitempty"`
	HoleNumber     int        `db:"hole_number" json:"hole_number"`
	StartingOrder  int        `db:"starting_order" json:"starting_order"`
	SlotIndex      int        `db:"slot" json:"slot"`
	PlayerID       *uint64    `db:"player_id" json:"player_id,omitempty"`
	Status         SlotStatus `db:"status" json:"status"`
	RegistrationID *uint64    `db:"registration_id" json:"registration_id,omitempty"`
	ExternalID     *string    `db:"external_id" json:"external_id,omitempty"`
}

// SameGroup reports whether two slots start together (same hole and
// starting order).
func (s Slot) SameGroup(o Slot) bool {
	return s.EventID == o.EventID && s.StartingOrder == o.StartingOrder && eqID(s.HoleID, o.HoleID)
}

// Release returns the slot to the pool of available positions.
func (s *Slot) Release() {
	s.Status = SlotAvailable
	s.RegistrationID = nil
	s.PlayerID = nil
}

func eqID(a, b *uint64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// SlotClaimRequest names a slot a caller wants to claim and, optionally,
// who should occupy it.
type SlotClaimRequest struct {
	SlotID   uint64  `json:"slot_id"`
	PlayerID *uint64 `json:"player_id,omitempty"`
}
