package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bhmc/slot-reservation/internal/model"
)

// MemoryStore is an in-process Store used by tests and local development.
// A single mutex is held for the whole transaction, which gives the same
// guarantee as row locks (every lock-acquiring read observes committed
// state) at the cost of serialising all work.  Rollback restores a
// snapshot taken when the transaction began.
type MemoryStore struct {
	mu    sync.Mutex
	state *memState
}

type memState struct {
	nextID      uint64
	events      map[uint64]model.Event
	slots       map[uint64]model.Slot
	regs        map[uint64]model.Registration
	eventFees   map[uint64]model.EventFee
	payments    map[uint64]model.Payment
	fees        map[uint64]model.RegistrationFee
	refunds     map[uint64]model.Refund
	players     map[uint64]model.Player
	memberships map[membershipKey]struct{}
}

type membershipKey struct {
	playerID uint64
	season   int
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: &memState{
		events:      map[uint64]model.Event{},
		slots:       map[uint64]model.Slot{},
		regs:        map[uint64]model.Registration{},
		eventFees:   map[uint64]model.EventFee{},
		payments:    map[uint64]model.Payment{},
		fees:        map[uint64]model.RegistrationFee{},
		refunds:     map[uint64]model.Refund{},
		players:     map[uint64]model.Player{},
		memberships: map[membershipKey]struct{}{},
	}}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// clone copies every table.  Stored values are never mutated through
// their pointer fields, so a shallow copy of each value is enough.
func (s *memState) clone() *memState {
	return &memState{
		nextID:      s.nextID,
		events:      cloneMap(s.events),
		slots:       cloneMap(s.slots),
		regs:        cloneMap(s.regs),
		eventFees:   cloneMap(s.eventFees),
		payments:    cloneMap(s.payments),
		fees:        cloneMap(s.fees),
		refunds:     cloneMap(s.refunds),
		players:     cloneMap(s.players),
		memberships: cloneMap(s.memberships),
	}
}

func (s *memState) id() uint64 {
	s.nextID++
	return s.nextID
}

// WithTx runs fn while holding the store lock.  Calling WithTx again from
// inside fn deadlocks.
func (m *MemoryStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := m.state.clone()
	if err := fn(&memTx{s: m.state}); err != nil {
		m.state = snapshot
		return err
	}
	return nil
}

// AddEvent seeds an event.  Course and hole ids are assigned when zero.
func (m *MemoryStore) AddEvent(e model.Event) model.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.ID == 0 {
		e.ID = m.state.id()
	}
	courses := make([]model.Course, len(e.Courses))
	for i, c := range e.Courses {
		if c.ID == 0 {
			c.ID = m.state.id()
		}
		holes := make([]model.Hole, len(c.Holes))
		for j, h := range c.Holes {
			if h.ID == 0 {
				h.ID = m.state.id()
			}
			h.CourseID = c.ID
			holes[j] = h
		}
		c.Holes = holes
		courses[i] = c
	}
	e.Courses = courses
	m.state.events[e.ID] = e
	return e
}

// AddPlayer seeds a player.
func (m *MemoryStore) AddPlayer(p model.Player) model.Player {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == 0 {
		p.ID = m.state.id()
	}
	m.state.players[p.ID] = p
	return p
}

// AddEventFee seeds a fee definition.
func (m *MemoryStore) AddEventFee(f model.EventFee) model.EventFee {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f.ID == 0 {
		f.ID = m.state.id()
	}
	m.state.eventFees[f.ID] = f
	return f
}

// Slots returns a copy of the event's slots ordered by id.
func (m *MemoryStore) Slots(eventID uint64) []model.Slot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.slotsWhere(func(s model.Slot) bool { return s.EventID == eventID })
}

// Registrations returns a copy of every registration ordered by id.
func (m *MemoryStore) Registrations() []model.Registration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return sortedValues(m.state.regs, func(r model.Registration) uint64 { return r.ID })
}

// Payments returns a copy of every payment ordered by id.
func (m *MemoryStore) Payments() []model.Payment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return sortedValues(m.state.payments, func(p model.Payment) uint64 { return p.ID })
}

// RegistrationFees returns a copy of every fee line ordered by id.
func (m *MemoryStore) RegistrationFees() []model.RegistrationFee {
	m.mu.Lock()
	defer m.mu.Unlock()
	return sortedValues(m.state.fees, func(f model.RegistrationFee) uint64 { return f.ID })
}

// Refunds returns a copy of every refund ordered by id.
func (m *MemoryStore) Refunds() []model.Refund {
	m.mu.Lock()
	defer m.mu.Unlock()
	return sortedValues(m.state.refunds, func(r model.Refund) uint64 { return r.ID })
}

// Player returns a seeded player.
func (m *MemoryStore) Player(id uint64) (model.Player, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.state.players[id]
	return p, ok
}

// HasMembership reports whether the player was granted the season.
func (m *MemoryStore) HasMembership(playerID uint64, season int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.state.memberships[membershipKey{playerID, season}]
	return ok
}

func sortedValues[V any](m map[uint64]V, id func(V) uint64) []V {
	out := make([]V, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return id(out[i]) < id(out[j]) })
	return out
}

func (s *memState) slotsWhere(keep func(model.Slot) bool) []model.Slot {
	var out []model.Slot
	for _, sl := range s.slots {
		if keep(sl) {
			out = append(out, sl)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// checkOccupant enforces the (event, occupant) uniqueness across held
// slots, mirroring the MySQL generated-column unique key.
func (s *memState) checkOccupant(sl model.Slot) error {
	if sl.PlayerID == nil || !sl.Status.Held() {
		return nil
	}
	for id, other := range s.slots {
		if id == sl.ID || other.EventID != sl.EventID || other.PlayerID == nil || !other.Status.Held() {
			continue
		}
		if *other.PlayerID == *sl.PlayerID {
			return ErrDuplicate
		}
	}
	return nil
}

type memTx struct {
	s *memState
}

func (t *memTx) GetEvent(_ context.Context, eventID uint64) (*model.Event, error) {
	e, ok := t.s.events[eventID]
	if !ok {
		return nil, ErrNotFound
	}
	return &e, nil
}

func (t *memTx) LockSlots(_ context.Context, eventID uint64, slotIDs []uint64) ([]model.Slot, error) {
	want := make(map[uint64]bool, len(slotIDs))
	for _, id := range slotIDs {
		want[id] = true
	}
	return t.s.slotsWhere(func(s model.Slot) bool { return s.EventID == eventID && want[s.ID] }), nil
}

func (t *memTx) LockRegistrationSlots(_ context.Context, registrationID uint64) ([]model.Slot, error) {
	return t.s.slotsWhere(func(s model.Slot) bool {
		return s.RegistrationID != nil && *s.RegistrationID == registrationID
	}), nil
}

func (t *memTx) LockGroupSlots(_ context.Context, eventID uint64, holeID *uint64, startingOrder int) ([]model.Slot, error) {
	out := t.s.slotsWhere(func(s model.Slot) bool {
		return s.EventID == eventID && s.StartingOrder == startingOrder && eqID(s.HoleID, holeID)
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].SlotIndex < out[j].SlotIndex })
	return out, nil
}

func (t *memTx) LockHeldSlotsForPlayers(_ context.Context, eventID uint64, playerIDs []uint64) ([]model.Slot, error) {
	want := make(map[uint64]bool, len(playerIDs))
	for _, id := range playerIDs {
		want[id] = true
	}
	return t.s.slotsWhere(func(s model.Slot) bool {
		return s.EventID == eventID && s.Status.Held() && s.PlayerID != nil && want[*s.PlayerID]
	}), nil
}

func (t *memTx) ListEventSlots(_ context.Context, eventID uint64) ([]model.Slot, error) {
	out := t.s.slotsWhere(func(s model.Slot) bool { return s.EventID == eventID })
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.HoleNumber != b.HoleNumber {
			return a.HoleNumber < b.HoleNumber
		}
		if a.StartingOrder != b.StartingOrder {
			return a.StartingOrder < b.StartingOrder
		}
		return a.SlotIndex < b.SlotIndex
	})
	return out, nil
}

func (t *memTx) CountSlots(_ context.Context, eventID uint64, statuses ...model.SlotStatus) (int, error) {
	n := 0
	for _, s := range t.s.slots {
		if s.EventID != eventID {
			continue
		}
		if len(statuses) == 0 {
			n++
			continue
		}
		for _, st := range statuses {
			if s.Status == st {
				n++
				break
			}
		}
	}
	return n, nil
}

func (t *memTx) InsertSlots(_ context.Context, slots []model.Slot) error {
	for i := range slots {
		slots[i].ID = t.s.id()
		if err := t.s.checkOccupant(slots[i]); err != nil {
			return err
		}
		t.s.slots[slots[i].ID] = slots[i]
	}
	return nil
}

func (t *memTx) UpdateSlot(_ context.Context, s *model.Slot) error {
	cur, ok := t.s.slots[s.ID]
	if !ok {
		return ErrNotFound
	}
	if err := t.s.checkOccupant(*s); err != nil {
		return err
	}
	cur.PlayerID = s.PlayerID
	cur.Status = s.Status
	cur.RegistrationID = s.RegistrationID
	cur.ExternalID = s.ExternalID
	t.s.slots[s.ID] = cur
	return nil
}

func (t *memTx) DeleteSlots(_ context.Context, ids []uint64) error {
	for _, id := range ids {
		delete(t.s.slots, id)
		t.s.detachFee(id)
	}
	return nil
}

func (t *memTx) DeleteEventSlots(_ context.Context, eventID uint64) error {
	for id, s := range t.s.slots {
		if s.EventID == eventID {
			delete(t.s.slots, id)
			t.s.detachFee(id)
		}
	}
	return nil
}

// detachFee mirrors ON DELETE SET NULL on registration_fees.slot_id.
func (s *memState) detachFee(slotID uint64) {
	for id, f := range s.fees {
		if f.SlotID != nil && *f.SlotID == slotID {
			f.SlotID = nil
			s.fees[id] = f
		}
	}
}

func (t *memTx) GetRegistration(_ context.Context, id uint64) (*model.Registration, error) {
	r, ok := t.s.regs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (t *memTx) FindRegistration(_ context.Context, eventID, userID uint64) (*model.Registration, error) {
	var found *model.Registration
	for _, r := range t.s.regs {
		if r.EventID == eventID && r.UserID == userID && (found == nil || r.ID > found.ID) {
			r := r
			found = &r
		}
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

func (t *memTx) InsertRegistration(_ context.Context, r *model.Registration) error {
	r.ID = t.s.id()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	stored := *r
	stored.Slots = nil
	t.s.regs[r.ID] = stored
	return nil
}

func (t *memTx) UpdateRegistration(_ context.Context, r *model.Registration) error {
	cur, ok := t.s.regs[r.ID]
	if !ok {
		return ErrNotFound
	}
	cur.CourseID = r.CourseID
	cur.SignedUpBy = r.SignedUpBy
	cur.Notes = r.Notes
	cur.Expires = r.Expires
	t.s.regs[r.ID] = cur
	return nil
}

func (t *memTx) DeleteRegistration(_ context.Context, id uint64) error {
	if _, ok := t.s.regs[id]; !ok {
		return ErrNotFound
	}
	delete(t.s.regs, id)
	// ON DELETE SET NULL on registration_slots.registration_id
	for sid, s := range t.s.slots {
		if s.RegistrationID != nil && *s.RegistrationID == id {
			s.RegistrationID = nil
			t.s.slots[sid] = s
		}
	}
	return nil
}

func (t *memTx) ExpiredRegistrationIDs(_ context.Context, now time.Time) ([]uint64, error) {
	pending := map[uint64]bool{}
	for _, s := range t.s.slots {
		if s.Status == model.SlotPending && s.RegistrationID != nil {
			pending[*s.RegistrationID] = true
		}
	}
	var ids []uint64
	for id, r := range t.s.regs {
		if r.Expires != nil && r.Expires.Before(now) && pending[id] {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (t *memTx) ListEventFees(_ context.Context, eventID uint64) ([]model.EventFee, error) {
	out := sortedValues(t.s.eventFees, func(f model.EventFee) uint64 { return f.ID })
	n := 0
	for _, f := range out {
		if f.EventID == eventID {
			out[n] = f
			n++
		}
	}
	return out[:n], nil
}

func (t *memTx) InsertPayment(_ context.Context, p *model.Payment) error {
	p.ID = t.s.id()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	t.s.payments[p.ID] = *p
	return nil
}

func (t *memTx) GetPayment(_ context.Context, id uint64) (*model.Payment, error) {
	p, ok := t.s.payments[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (t *memTx) GetPaymentByCode(_ context.Context, code string) (*model.Payment, error) {
	if code == "" {
		return nil, ErrNotFound
	}
	var found *model.Payment
	for _, p := range t.s.payments {
		if p.PaymentCode == code && (found == nil || p.ID < found.ID) {
			p := p
			found = &p
		}
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

func (t *memTx) UnconfirmedPayments(_ context.Context, registrationID uint64) ([]model.Payment, error) {
	var out []model.Payment
	for _, p := range t.s.payments {
		if !p.Confirmed && p.RegistrationID != nil && *p.RegistrationID == registrationID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memTx) UpdatePayment(_ context.Context, p *model.Payment) error {
	cur, ok := t.s.payments[p.ID]
	if !ok {
		return ErrNotFound
	}
	p.CreatedAt = cur.CreatedAt
	t.s.payments[p.ID] = *p
	return nil
}

func (t *memTx) DeletePayment(_ context.Context, id uint64) error {
	if _, ok := t.s.payments[id]; !ok {
		return ErrNotFound
	}
	delete(t.s.payments, id)
	for fid, f := range t.s.fees {
		if f.PaymentID == id {
			delete(t.s.fees, fid)
		}
	}
	return nil
}

func (t *memTx) AbandonedPaymentIDs(_ context.Context, before time.Time) ([]uint64, error) {
	var ids []uint64
	for id, p := range t.s.payments {
		if !p.Confirmed && p.PaymentCode == "" && p.CreatedAt.Before(before) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (t *memTx) InsertRegistrationFees(_ context.Context, fees []model.RegistrationFee) error {
	for i := range fees {
		if _, ok := t.s.payments[fees[i].PaymentID]; !ok {
			return ErrNotFound
		}
		fees[i].ID = t.s.id()
		t.s.fees[fees[i].ID] = fees[i]
	}
	return nil
}

func (t *memTx) ListRegistrationFees(_ context.Context, paymentID uint64) ([]model.RegistrationFee, error) {
	var out []model.RegistrationFee
	for _, f := range sortedValues(t.s.fees, func(f model.RegistrationFee) uint64 { return f.ID }) {
		if f.PaymentID == paymentID {
			out = append(out, f)
		}
	}
	return out, nil
}

func (t *memTx) MarkFeesPaid(_ context.Context, paymentID uint64) error {
	for id, f := range t.s.fees {
		if f.PaymentID == paymentID {
			f.IsPaid = true
			t.s.fees[id] = f
		}
	}
	return nil
}

func (t *memTx) DeleteUnpaidFees(_ context.Context, paymentID uint64) error {
	for id, f := range t.s.fees {
		if f.PaymentID == paymentID && !f.IsPaid {
			delete(t.s.fees, id)
		}
	}
	return nil
}

func (t *memTx) DetachFees(_ context.Context, slotIDs []uint64) error {
	for _, id := range slotIDs {
		t.s.detachFee(id)
	}
	return nil
}

func (t *memTx) GetRefundByCode(_ context.Context, code string) (*model.Refund, error) {
	for _, r := range t.s.refunds {
		if r.RefundCode == code {
			r := r
			return &r, nil
		}
	}
	return nil, ErrNotFound
}

func (t *memTx) InsertRefund(_ context.Context, r *model.Refund) error {
	for _, other := range t.s.refunds {
		if other.RefundCode == r.RefundCode {
			return ErrDuplicate
		}
	}
	r.ID = t.s.id()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	t.s.refunds[r.ID] = *r
	return nil
}

func (t *memTx) UpdateRefund(_ context.Context, r *model.Refund) error {
	cur, ok := t.s.refunds[r.ID]
	if !ok {
		return ErrNotFound
	}
	cur.AmountCents = r.AmountCents
	cur.IssuerID = r.IssuerID
	cur.Notes = r.Notes
	cur.Confirmed = r.Confirmed
	t.s.refunds[r.ID] = cur
	return nil
}

func (t *memTx) GetPlayers(_ context.Context, ids []uint64) ([]model.Player, error) {
	var out []model.Player
	for _, id := range ids {
		if p, ok := t.s.players[id]; ok {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memTx) GrantMembership(_ context.Context, playerID uint64, season int) error {
	p, ok := t.s.players[playerID]
	if !ok {
		return ErrNotFound
	}
	p.IsMember = true
	t.s.players[playerID] = p
	t.s.memberships[membershipKey{playerID, season}] = struct{}{}
	return nil
}

func eqID(a, b *uint64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
