// Package scheduling orchestrates availability publishing and reservation:
// window construction, the optimistic conflict pre-check, eligibility gates,
// submission to the scheduling service and classification of its rejections.
package scheduling

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lorenzolpandolfo/agenda/internal/apiclient"
	"github.com/lorenzolpandolfo/agenda/internal/availability"
	"github.com/lorenzolpandolfo/agenda/internal/timewindow"
	"github.com/lorenzolpandolfo/agenda/pkg/logging"
)

// RemoteClient is the slice of the scheduling service API the workflow
// needs. *apiclient.Client implements it.
type RemoteClient interface {
	CreateAvailability(ctx context.Context, w timewindow.Window) (uuid.UUID, error)
	ListAvailabilities(ctx context.Context, params apiclient.ListAvailabilitiesParams) ([]availability.Availability, error)
	ChangeAvailabilityStatus(ctx context.Context, id uuid.UUID, status availability.Status) (availability.Availability, error)
	CreateSchedule(ctx context.Context, availabilityID uuid.UUID) (uuid.UUID, error)
	ListSchedules(ctx context.Context, filter timewindow.TimeFilter) ([]availability.Schedule, error)
}

// Actor identifies who is performing an operation. It is passed explicitly
// on every call instead of being read from ambient session state.
type Actor struct {
	ID     uuid.UUID
	Role   availability.Role
	Status availability.UserStatus
}

// Workflow runs the client-side scheduling operations. It holds no mutable
// state of its own: the known-windows collection used by the conflict
// pre-check is owned by the caller and passed per call.
type Workflow struct {
	remote    RemoteClient
	zone      *time.Location
	logger    *logging.Logger
	pageLimit int
}

// New constructs a workflow. zone is the reference civil timezone used for
// all wall-clock conversions; pass timewindow.ReferenceZone in production.
func New(remote RemoteClient, zone *time.Location, logger *logging.Logger) *Workflow {
	if remote == nil {
		panic("scheduling: remote client required")
	}
	if zone == nil {
		zone = timewindow.ReferenceZone
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Workflow{remote: remote, zone: zone, logger: logger, pageLimit: defaultPageLimit}
}

const defaultPageLimit = 100

// SetPageLimit overrides the listing page size used by KnownWindows.
func (wf *Workflow) SetPageLimit(n int) {
	if n > 0 {
		wf.pageLimit = n
	}
}

// CreateAvailability publishes a new open slot for actor.
//
// Steps run strictly in order: window construction (ErrInvalidRange),
// conflict pre-check against known (ErrLocalConflict), eligibility
// (ErrNotEligible), then remote submission. The first three fail without any
// network call. The service remains the authority and may still reject the
// window (ErrRemoteConflict) when another client raced this one.
func (wf *Workflow) CreateAvailability(ctx context.Context, actor Actor, date timewindow.Date, start, end timewindow.TimeOfDay, known []timewindow.Window) (uuid.UUID, timewindow.Window, error) {
	w, err := timewindow.FromLocalParts(date, start, end, wf.zone)
	if err != nil {
		return uuid.Nil, timewindow.Window{}, err
	}

	if timewindow.HasConflict(w, known) {
		return uuid.Nil, timewindow.Window{}, ErrLocalConflict
	}

	if actor.Role != availability.RoleProfessional || actor.Status != availability.UserStatusReady {
		return uuid.Nil, timewindow.Window{}, ErrNotEligible
	}

	id, err := wf.remote.CreateAvailability(ctx, w)
	if err != nil {
		return uuid.Nil, timewindow.Window{}, wf.classifyPublish(err)
	}

	wf.logger.Info("availability created", "availability_id", id, "owner_id", actor.ID,
		"start", w.Start, "end", w.End)
	return id, w, nil
}

// Reserve books an open slot for a patient. There is no local pre-check:
// other patients' pending reservations are invisible to this client, so the
// service's answer is the only one that matters. After success the caller
// must refresh its local view; the referenced availability is now TAKEN.
func (wf *Workflow) Reserve(ctx context.Context, actor Actor, availabilityID uuid.UUID) (uuid.UUID, error) {
	if actor.Role != availability.RolePatient {
		return uuid.Nil, ErrNotEligible
	}

	id, err := wf.remote.CreateSchedule(ctx, availabilityID)
	if err != nil {
		return uuid.Nil, wf.classifyReserve(err)
	}

	wf.logger.Info("schedule created", "schedule_id", id, "availability_id", availabilityID,
		"patient_id", actor.ID)
	return id, nil
}

// ChangeStatus moves one of the professional's slots through the lifecycle
// table (cancel, complete, re-publish). The AVAILABLE -> TAKEN transition is
// reserved for the reservation flow and rejected here. Re-publishing can
// still fail with ErrRemoteConflict: while the slot sat canceled, another
// slot may have been published over its window.
func (wf *Workflow) ChangeStatus(ctx context.Context, actor Actor, slot availability.Availability, to availability.Status) (availability.Availability, error) {
	if actor.Role != availability.RoleProfessional || actor.ID != slot.OwnerID {
		return availability.Availability{}, ErrNotEligible
	}
	if to == availability.StatusTaken {
		return availability.Availability{}, &availability.InvalidTransitionError{From: slot.Status, To: to}
	}
	if _, err := availability.Transition(slot.Status, to); err != nil {
		return availability.Availability{}, err
	}

	updated, err := wf.remote.ChangeAvailabilityStatus(ctx, slot.ID, to)
	if err != nil {
		return availability.Availability{}, wf.classifyPublish(err)
	}

	wf.logger.Info("availability status changed", "availability_id", slot.ID,
		"from", slot.Status, "to", updated.Status)
	return updated, nil
}

// KnownWindows fetches the actor's calendar-occupying windows for the
// conflict pre-check: AVAILABLE and TAKEN slots only.
func (wf *Workflow) KnownWindows(ctx context.Context, ownerID uuid.UUID) ([]timewindow.Window, error) {
	items, err := wf.ListAvailabilities(ctx, apiclient.ListAvailabilitiesParams{
		ProfessionalID: ownerID,
		TimeFilter:     timewindow.FilterAll,
		Limit:          wf.pageLimit,
	})
	if err != nil {
		return nil, err
	}
	return availability.Windows(items), nil
}

// ListAvailabilities proxies the listing endpoint with session-expiry
// classification applied.
func (wf *Workflow) ListAvailabilities(ctx context.Context, params apiclient.ListAvailabilitiesParams) ([]availability.Availability, error) {
	items, err := wf.remote.ListAvailabilities(ctx, params)
	if err != nil {
		return nil, wf.classifyRemote(err)
	}
	return items, nil
}

// ListSchedules proxies the schedule listing with session-expiry
// classification applied.
func (wf *Workflow) ListSchedules(ctx context.Context, filter timewindow.TimeFilter) ([]availability.Schedule, error) {
	items, err := wf.remote.ListSchedules(ctx, filter)
	if err != nil {
		return nil, wf.classifyRemote(err)
	}
	return items, nil
}

// classifyPublish maps rejections of operations that put a window on the
// calendar (create, re-publish). The service reports an overlap with a 409
// whose detail mentions the conflicting range.
func (wf *Workflow) classifyPublish(err error) error {
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusUnauthorized:
			return ErrSessionExpired
		case strings.Contains(apiErr.Detail, "conflicting"):
			return ErrRemoteConflict
		}
		return &RemoteError{Message: apiErr.Detail, err: err}
	}
	return &RemoteError{Message: err.Error(), err: err}
}

// classifyReserve maps reservation rejections: a duplicate reservation is a
// 409 "This schedule already exists", a slot that left AVAILABLE is a 400
// "This availability cannot be scheduled." and a deleted slot a 404.
func (wf *Workflow) classifyReserve(err error) error {
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusUnauthorized:
			return ErrSessionExpired
		case strings.Contains(apiErr.Detail, "already exists"):
			return ErrAlreadyTaken
		case strings.Contains(apiErr.Detail, "cannot be scheduled"):
			return ErrNoLongerAvailable
		case apiErr.StatusCode == http.StatusNotFound:
			return ErrNoLongerAvailable
		}
		return &RemoteError{Message: apiErr.Detail, err: err}
	}
	return &RemoteError{Message: err.Error(), err: err}
}

func (wf *Workflow) classifyRemote(err error) error {
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusUnauthorized {
			return ErrSessionExpired
		}
		return &RemoteError{Message: apiErr.Detail, err: err}
	}
	return &RemoteError{Message: err.Error(), err: err}
}
