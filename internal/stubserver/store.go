package stubserver

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lorenzolpandolfo/agenda/internal/availability"
	"github.com/lorenzolpandolfo/agenda/internal/timewindow"
)

// Store-level rejections. The HTTP layer maps these to the same status codes
// and detail strings the real scheduling service produces.
var (
	errOverlap           = errors.New("stubserver: window overlaps an existing availability")
	errAvailabilityGone  = errors.New("stubserver: availability not found")
	errNotSchedulable    = errors.New("stubserver: availability cannot be scheduled")
	errDuplicateSchedule = errors.New("stubserver: schedule already exists")
	errIllegalTransition = errors.New("stubserver: status change not allowed")
	errNotOwner          = errors.New("stubserver: availability belongs to another professional")
)

// Store is the in-memory authority backing the stub server. It enforces the
// same commit-time checks the production service runs: per-owner overlap on
// create, AVAILABLE-only reservation, one schedule per availability.
type Store struct {
	mu             sync.Mutex
	users          map[uuid.UUID]*availability.User
	usersByEmail   map[string]uuid.UUID
	availabilities map[uuid.UUID]*availability.Availability
	schedules      map[uuid.UUID]*availability.Schedule
	scheduledAvail map[uuid.UUID]uuid.UUID // availability id -> schedule id

	now func() time.Time
}

// NewStore returns an empty store using the wall clock.
func NewStore() *Store {
	return &Store{
		users:          make(map[uuid.UUID]*availability.User),
		usersByEmail:   make(map[string]uuid.UUID),
		availabilities: make(map[uuid.UUID]*availability.Availability),
		schedules:      make(map[uuid.UUID]*availability.Schedule),
		scheduledAvail: make(map[uuid.UUID]uuid.UUID),
		now:            time.Now,
	}
}

// FindOrCreateUser returns the user registered under email, creating one
// with the given role and status on first sight.
func (s *Store) FindOrCreateUser(email, name string, role availability.Role, status availability.UserStatus) *availability.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.usersByEmail[email]; ok {
		return s.users[id]
	}
	u := &availability.User{
		ID:        uuid.New(),
		Name:      name,
		Email:     email,
		Role:      role,
		Status:    status,
		CreatedAt: s.now().UTC(),
	}
	s.users[u.ID] = u
	s.usersByEmail[email] = u.ID
	return u
}

// UserByID looks up a user.
func (s *Store) UserByID(id uuid.UUID) (*availability.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	return u, ok
}

// occupiesCalendar reports whether w overlaps any AVAILABLE or TAKEN slot of
// the same owner, skipping the slot with id exclude. Callers hold mu.
func (s *Store) occupiesCalendar(ownerID uuid.UUID, w timewindow.Window, exclude uuid.UUID) bool {
	for _, existing := range s.availabilities {
		if existing.ID == exclude || existing.OwnerID != ownerID {
			continue
		}
		switch existing.Status {
		case availability.StatusAvailable, availability.StatusTaken:
			if timewindow.Overlaps(w, existing.Window) {
				return true
			}
		case availability.StatusCompleted, availability.StatusCanceled:
		}
	}
	return false
}

// CreateAvailability commits a new slot after the authoritative overlap
// check against every AVAILABLE or TAKEN slot of the same owner.
func (s *Store) CreateAvailability(ownerID uuid.UUID, w timewindow.Window) (*availability.Availability, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.occupiesCalendar(ownerID, w, uuid.Nil) {
		return nil, errOverlap
	}

	a := &availability.Availability{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Window:    w,
		Status:    availability.StatusAvailable,
		CreatedAt: s.now().UTC(),
	}
	s.availabilities[a.ID] = a
	return a, nil
}

// ListAvailabilities filters by owner, status and time filter, ordered by
// window start, with skip/limit pagination.
func (s *Store) ListAvailabilities(ownerID uuid.UUID, status availability.Status, filter timewindow.TimeFilter, skip, limit int) []availability.Availability {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().In(timewindow.ReferenceZone)
	items := make([]availability.Availability, 0)
	for _, a := range s.availabilities {
		if ownerID != uuid.Nil && a.OwnerID != ownerID {
			continue
		}
		if status != "" && a.Status != status {
			continue
		}
		if !filter.Contains(now, a.Window.Start.In(timewindow.ReferenceZone)) {
			continue
		}
		item := *a
		if owner, ok := s.users[a.OwnerID]; ok {
			item.Owner = owner
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Window.Before(items[j].Window) })

	if skip >= len(items) {
		return nil
	}
	items = items[skip:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// ChangeStatus moves a slot through the lifecycle table on behalf of its
// owner. Re-publishing a canceled slot repeats the overlap check: the window
// stopped occupying the calendar when it was canceled, and something else may
// have been published over it since.
func (s *Store) ChangeStatus(actorID, availabilityID uuid.UUID, to availability.Status) (*availability.Availability, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.availabilities[availabilityID]
	if !ok {
		return nil, errAvailabilityGone
	}
	if a.OwnerID != actorID {
		return nil, errNotOwner
	}
	if _, err := availability.Transition(a.Status, to); err != nil {
		return nil, errIllegalTransition
	}
	if to == availability.StatusAvailable && s.occupiesCalendar(a.OwnerID, a.Window, a.ID) {
		return nil, errOverlap
	}
	a.Status = to
	updated := *a
	return &updated, nil
}

// CreateSchedule reserves an AVAILABLE slot for a patient and moves the slot
// to TAKEN. A slot can back at most one schedule.
func (s *Store) CreateSchedule(patientID, availabilityID uuid.UUID) (*availability.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.availabilities[availabilityID]
	if !ok {
		return nil, errAvailabilityGone
	}
	if _, taken := s.scheduledAvail[availabilityID]; taken {
		return nil, errDuplicateSchedule
	}
	if a.Status != availability.StatusAvailable {
		return nil, errNotSchedulable
	}

	sched := &availability.Schedule{
		ID:             uuid.New(),
		ProfessionalID: a.OwnerID,
		PatientID:      patientID,
		AvailabilityID: a.ID,
		Status:         availability.StatusTaken,
		StartTime:      a.Window.Start,
		CreatedAt:      s.now().UTC(),
	}
	a.Status = availability.StatusTaken
	s.schedules[sched.ID] = sched
	s.scheduledAvail[a.ID] = sched.ID
	return sched, nil
}

// ListSchedules returns the schedules where user participates as either
// side, restricted to the time filter and ordered by start time. Status
// mirrors the backing availability.
func (s *Store) ListSchedules(userID uuid.UUID, filter timewindow.TimeFilter) []availability.Schedule {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().In(timewindow.ReferenceZone)
	items := make([]availability.Schedule, 0)
	for _, sched := range s.schedules {
		if sched.ProfessionalID != userID && sched.PatientID != userID {
			continue
		}
		if !filter.Contains(now, sched.StartTime.In(timewindow.ReferenceZone)) {
			continue
		}
		item := *sched
		if a, ok := s.availabilities[sched.AvailabilityID]; ok {
			item.Status = a.Status
		}
		otherID := sched.ProfessionalID
		if userID == sched.ProfessionalID {
			otherID = sched.PatientID
		}
		if other, ok := s.users[otherID]; ok {
			item.Other = other
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].StartTime.Before(items[j].StartTime) })
	return items
}
