package stubserver

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/lorenzolpandolfo/agenda/internal/availability"
)

type availabilityResponse struct {
	ID        uuid.UUID           `json:"id"`
	StartTime time.Time           `json:"start_time"`
	EndTime   time.Time           `json:"end_time"`
	Status    availability.Status `json:"status"`
	OwnerID   uuid.UUID           `json:"owner_id"`
	CreatedAt time.Time           `json:"created_at"`
	User      *availability.User  `json:"user,omitempty"`
}

func toAvailabilityResponse(a availability.Availability) availabilityResponse {
	return availabilityResponse{
		ID:        a.ID,
		StartTime: a.Window.Start,
		EndTime:   a.Window.End,
		Status:    a.Status,
		OwnerID:   a.OwnerID,
		CreatedAt: a.CreatedAt,
		User:      a.Owner,
	}
}

type scheduleResponse struct {
	ID             uuid.UUID           `json:"id"`
	ProfessionalID uuid.UUID           `json:"professional_id"`
	PatientID      uuid.UUID           `json:"patient_id"`
	AvailabilityID uuid.UUID           `json:"availability_id"`
	Status         availability.Status `json:"status"`
	StartTime      time.Time           `json:"start_time"`
	CreatedAt      time.Time           `json:"created_at"`
	User           *availability.User  `json:"user,omitempty"`
}

func toScheduleResponse(s availability.Schedule) scheduleResponse {
	return scheduleResponse{
		ID:             s.ID,
		ProfessionalID: s.ProfessionalID,
		PatientID:      s.PatientID,
		AvailabilityID: s.AvailabilityID,
		Status:         s.Status,
		StartTime:      s.StartTime,
		CreatedAt:      s.CreatedAt,
		User:           s.Other,
	}
}

func withUser(ctx context.Context, u *availability.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

func userFrom(ctx context.Context) *availability.User {
	u, _ := ctx.Value(userKey).(*availability.User)
	return u
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeDetail mirrors the production service's error envelope.
func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
