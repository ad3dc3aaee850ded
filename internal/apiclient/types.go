package apiclient

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lorenzolpandolfo/agenda/internal/availability"
	"github.com/lorenzolpandolfo/agenda/internal/timewindow"
)

// APIError is a structured rejection from the scheduling service. Detail
// carries the service's human-readable reason verbatim.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("apiclient: status %d: %s", e.StatusCode, e.Detail)
}

// CreateAvailabilityRequest is the POST /availabilities body. Timestamps are
// RFC 3339 UTC strings.
type CreateAvailabilityRequest struct {
	StartTime string              `json:"start_time"`
	EndTime   string              `json:"end_time"`
	Status    availability.Status `json:"status"`
}

// ChangeStatusRequest is the POST /availabilities/change-status body.
type ChangeStatusRequest struct {
	AvailabilityID uuid.UUID           `json:"availability_id"`
	Status         availability.Status `json:"status"`
}

// CreateScheduleRequest is the POST /schedule body.
type CreateScheduleRequest struct {
	AvailabilityID uuid.UUID `json:"availability_id"`
}

// ListAvailabilitiesParams filters GET /availabilities.
type ListAvailabilitiesParams struct {
	ProfessionalID uuid.UUID // zero value means all professionals
	TimeFilter     timewindow.TimeFilter
	Status         availability.Status // optional
	Skip           int
	Limit          int
}

type availabilityRecord struct {
	ID        uuid.UUID           `json:"id"`
	StartTime time.Time           `json:"start_time"`
	EndTime   time.Time           `json:"end_time"`
	Status    availability.Status `json:"status"`
	OwnerID   uuid.UUID           `json:"owner_id"`
	CreatedAt time.Time           `json:"created_at"`
	User      *availability.User  `json:"user,omitempty"`
}

type scheduleRecord struct {
	ID             uuid.UUID           `json:"id"`
	ProfessionalID uuid.UUID           `json:"professional_id"`
	PatientID      uuid.UUID           `json:"patient_id"`
	AvailabilityID uuid.UUID           `json:"availability_id"`
	Status         availability.Status `json:"status"`
	StartTime      time.Time           `json:"start_time"`
	CreatedAt      time.Time           `json:"created_at"`
	User           *availability.User  `json:"user,omitempty"`
}

func (r availabilityRecord) toDomain() (availability.Availability, error) {
	w, err := timewindow.FromInstants(r.StartTime, r.EndTime)
	if err != nil {
		return availability.Availability{}, fmt.Errorf("apiclient: availability %s: %w", r.ID, err)
	}
	return availability.Availability{
		ID:        r.ID,
		OwnerID:   r.OwnerID,
		Window:    w,
		Status:    r.Status,
		CreatedAt: r.CreatedAt,
		Owner:     r.User,
	}, nil
}

func (r scheduleRecord) toDomain() availability.Schedule {
	return availability.Schedule{
		ID:             r.ID,
		ProfessionalID: r.ProfessionalID,
		PatientID:      r.PatientID,
		AvailabilityID: r.AvailabilityID,
		Status:         r.Status,
		StartTime:      r.StartTime,
		CreatedAt:      r.CreatedAt,
		Other:          r.User,
	}
}
