package availability

import (
	"time"

	"github.com/google/uuid"

	"github.com/lorenzolpandolfo/agenda/internal/timewindow"
)

// Role is a user's role in the product.
type Role string

const (
	RolePatient      Role = "PATIENT"
	RoleProfessional Role = "PROFESSIONAL"
)

// UserStatus tracks whether a professional's license (CRP) has been
// validated. Patients are READY from registration.
type UserStatus string

const (
	UserStatusReady             UserStatus = "READY"
	UserStatusWaitingValidation UserStatus = "WAITING_VALIDATION"
)

// User is the public profile embedded in availability and schedule listings.
type User struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	Bio       string     `json:"bio,omitempty"`
	Email     string     `json:"email"`
	Role      Role       `json:"role"`
	Status    UserStatus `json:"status"`
	CRP       string     `json:"crp,omitempty"`
	ImageURL  string     `json:"image_url,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Availability is a professional-published open time slot.
type Availability struct {
	ID        uuid.UUID
	OwnerID   uuid.UUID
	Window    timewindow.Window
	Status    Status
	CreatedAt time.Time

	// Owner is the owning professional's public profile when the listing
	// embeds it; nil otherwise.
	Owner *User
}

// Schedule is a confirmed reservation linking a patient to an availability.
// Status mirrors the underlying availability's status.
type Schedule struct {
	ID             uuid.UUID
	ProfessionalID uuid.UUID
	PatientID      uuid.UUID
	AvailabilityID uuid.UUID
	Status         Status
	StartTime      time.Time
	CreatedAt      time.Time

	// Other is the counterparty profile (the professional when listed by a
	// patient, the patient when listed by a professional), when embedded.
	Other *User
}

// Windows extracts the windows from a set of availabilities, skipping states
// that no longer occupy the calendar. Only AVAILABLE and TAKEN slots block a
// new window for the same owner.
func Windows(items []Availability) []timewindow.Window {
	out := make([]timewindow.Window, 0, len(items))
	for _, a := range items {
		switch a.Status {
		case StatusAvailable, StatusTaken:
			out = append(out, a.Window)
		case StatusCompleted, StatusCanceled:
		}
	}
	return out
}
