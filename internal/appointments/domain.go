// Package appointments books services with an employee and keeps the booked
// duration in step with the appointment lines.
package appointments

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/barberia/backoffice/internal/shared"
)

// Status of an appointment.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusNoShow    Status = "no_show"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// Open reports whether lines may still be edited.
func (s Status) Open() bool {
	return s == StatusPending || s == StatusConfirmed
}

// Appointment reserves an employee at a point in time.
type Appointment struct {
	ID            int64     `json:"id"`
	ClientID      *int64    `json:"client_id,omitempty"`
	EmployeeID    int64     `json:"employee_id"`
	ScheduledAt   time.Time `json:"scheduled_at"`
	TotalDuration int       `json:"total_duration"`
	Status        Status    `json:"status"`
	Notes         string    `json:"notes"`
	CreatedAt     time.Time `json:"created_at"`
	Lines         []Line    `json:"lines,omitempty"`
}

// EndsAt is ScheduledAt plus the booked duration.
func (a Appointment) EndsAt() time.Time {
	return a.ScheduledAt.Add(time.Duration(a.TotalDuration) * time.Minute)
}

// Total sums the applied prices of the loaded lines.
func (a Appointment) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range a.Lines {
		total = total.Add(l.AppliedPrice)
	}
	return total
}

// Line is a service booked on an appointment. Price and duration are copied
// from the catalog when the line is created.
type Line struct {
	ID              int64           `json:"id"`
	AppointmentID   int64           `json:"appointment_id"`
	ServiceID       int64           `json:"service_id"`
	AppliedPrice    decimal.Decimal `json:"applied_price"`
	DurationMinutes int             `json:"duration_minutes"`
	Notes           string          `json:"notes"`
}

// CreateInput books a new appointment with its services.
type CreateInput struct {
	ClientID    *int64    `json:"client_id,omitempty" validate:"omitempty,gt=0"`
	EmployeeID  int64     `json:"employee_id" validate:"required,gt=0"`
	ScheduledAt time.Time `json:"scheduled_at" validate:"required"`
	Status      Status    `json:"status,omitempty"`
	Notes       string    `json:"notes"`
	ServiceIDs  []int64   `json:"service_ids" validate:"dive,gt=0"`
}

// UpdateInput reschedules an appointment or changes its parties.
type UpdateInput struct {
	ClientID    *int64    `json:"client_id,omitempty" validate:"omitempty,gt=0"`
	EmployeeID  int64     `json:"employee_id" validate:"required,gt=0"`
	ScheduledAt time.Time `json:"scheduled_at" validate:"required"`
	Notes       string    `json:"notes"`
}

// LineInput adds a service to an appointment.
type LineInput struct {
	ServiceID int64  `json:"service_id" validate:"required,gt=0"`
	Notes     string `json:"notes"`
}

// Filter narrows appointment listings.
type Filter struct {
	Status     Status
	EmployeeID *int64
	ClientID   *int64
	From       time.Time
	To         time.Time
	Page       shared.PageRequest
}

func (in CreateInput) validate() error {
	var problems []string
	if in.EmployeeID <= 0 {
		problems = append(problems, "employee_id is required")
	}
	if in.ScheduledAt.IsZero() {
		problems = append(problems, "scheduled_at is required")
	}
	if in.Status != "" && !in.Status.Valid() {
		problems = append(problems, fmt.Sprintf("unknown status %q", in.Status))
	}
	seen := make(map[int64]struct{}, len(in.ServiceIDs))
	for _, id := range in.ServiceIDs {
		if id <= 0 {
			problems = append(problems, "service_ids must be positive")
			break
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: service %d booked twice", shared.ErrConflict, id)
		}
		seen[id] = struct{}{}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", shared.ErrValidation, strings.Join(problems, "; "))
	}
	return nil
}

func (in UpdateInput) validate() error {
	if in.EmployeeID <= 0 || in.ScheduledAt.IsZero() {
		return fmt.Errorf("%w: employee_id and scheduled_at are required", shared.ErrValidation)
	}
	return nil
}
