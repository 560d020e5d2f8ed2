// Package staff manages employees and their weekly schedules.
package staff

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/barberia/backoffice/internal/shared"
)

// Status of an employee.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusOnLeave  Status = "on_leave"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusOnLeave:
		return true
	}
	return false
}

// Employee works at the shop and may take appointments.
type Employee struct {
	ID                int64           `json:"id"`
	FirstName         string          `json:"first_name"`
	LastName          string          `json:"last_name"`
	Phone             string          `json:"phone"`
	Email             *string         `json:"email,omitempty"`
	Role              string          `json:"role"`
	Specialty         string          `json:"specialty"`
	HiredOn           time.Time       `json:"hired_on"`
	CommissionPercent decimal.Decimal `json:"commission_percent"`
	Status            Status          `json:"status"`
}

// FullName joins first and last name.
func (e Employee) FullName() string {
	return strings.TrimSpace(e.FirstName + " " + e.LastName)
}

// Input carries the editable attributes of an employee.
type Input struct {
	FirstName         string          `json:"first_name" validate:"required,max=50"`
	LastName          string          `json:"last_name" validate:"required,max=50"`
	Phone             string          `json:"phone" validate:"required,max=15"`
	Email             *string         `json:"email,omitempty" validate:"omitempty,email,max=100"`
	Role              string          `json:"role" validate:"required,max=50"`
	Specialty         string          `json:"specialty" validate:"max=100"`
	HiredOn           time.Time       `json:"hired_on" validate:"required"`
	CommissionPercent decimal.Decimal `json:"commission_percent"`
	Status            Status          `json:"status,omitempty"`
}

// Filter narrows employee listings.
type Filter struct {
	Search    string
	Specialty string
	Status    Status
	Page      shared.PageRequest
}

func (in Input) validate() error {
	var problems []string
	if strings.TrimSpace(in.FirstName) == "" || strings.TrimSpace(in.LastName) == "" {
		problems = append(problems, "first_name and last_name are required")
	}
	if strings.TrimSpace(in.Phone) == "" {
		problems = append(problems, "phone is required")
	}
	if strings.TrimSpace(in.Role) == "" {
		problems = append(problems, "role is required")
	}
	if in.HiredOn.IsZero() {
		problems = append(problems, "hired_on is required")
	}
	if in.CommissionPercent.IsNegative() || in.CommissionPercent.GreaterThan(decimal.NewFromInt(100)) {
		problems = append(problems, "commission_percent must be between 0 and 100")
	}
	if in.Status != "" && !in.Status.Valid() {
		problems = append(problems, fmt.Sprintf("unknown status %q", in.Status))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", shared.ErrValidation, strings.Join(problems, "; "))
	}
	return nil
}

func (in Input) apply(e Employee) Employee {
	e.FirstName = strings.TrimSpace(in.FirstName)
	e.LastName = strings.TrimSpace(in.LastName)
	e.Phone = strings.TrimSpace(in.Phone)
	e.Email = nil
	if in.Email != nil {
		if email := strings.ToLower(strings.TrimSpace(*in.Email)); email != "" {
			e.Email = &email
		}
	}
	e.Role = strings.TrimSpace(in.Role)
	e.Specialty = strings.TrimSpace(in.Specialty)
	e.HiredOn = in.HiredOn
	e.CommissionPercent = in.CommissionPercent.Round(2)
	if in.Status != "" {
		e.Status = in.Status
	}
	return e
}

// TimeOfDay is a wall clock time with second precision.
type TimeOfDay int

const (
	midnight   TimeOfDay = 0
	lastSecond TimeOfDay = 23*3600 + 59*60 + 59
)

// NewTimeOfDay builds a TimeOfDay from its components.
func NewTimeOfDay(hour, minute, second int) TimeOfDay {
	return TimeOfDay(hour*3600 + minute*60 + second)
}

// ParseTimeOfDay accepts HH:MM or HH:MM:SS.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return NewTimeOfDay(t.Hour(), t.Minute(), t.Second()), nil
		}
	}
	return 0, fmt.Errorf("%w: invalid time of day %q", shared.ErrValidation, s)
}

// String formats as HH:MM:SS.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", int(t)/3600, int(t)%3600/60, int(t)%60)
}

// MarshalJSON implements json.Marshaler.
func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseTimeOfDay(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Schedule is one working or break slot on a weekday (1 = Monday, 7 = Sunday).
type Schedule struct {
	ID         int64     `json:"id"`
	EmployeeID int64     `json:"employee_id"`
	Weekday    int       `json:"weekday"`
	Start      TimeOfDay `json:"start"`
	End        TimeOfDay `json:"end"`
	IsBreak    bool      `json:"is_break"`
}

// IsFullDayBreak reports whether the slot blocks the whole day.
func (s Schedule) IsFullDayBreak() bool {
	return s.IsBreak && s.Start == midnight && s.End == lastSecond
}

// ValidateSchedule enforces weekday range and start before end. A full-day
// break from 00:00:00 to 23:59:59 is always accepted.
func ValidateSchedule(s Schedule) error {
	if s.Weekday < 1 || s.Weekday > 7 {
		return fmt.Errorf("%w: weekday must be between 1 and 7", shared.ErrValidation)
	}
	if s.Start < midnight || s.End > lastSecond || s.End < midnight {
		return fmt.Errorf("%w: times must fall within the day", shared.ErrValidation)
	}
	if s.IsFullDayBreak() {
		return nil
	}
	if s.Start >= s.End {
		if s.IsBreak {
			return fmt.Errorf("%w: break start %s must be before end %s", shared.ErrValidation, s.Start, s.End)
		}
		return fmt.Errorf("%w: start %s must be before end %s", shared.ErrValidation, s.Start, s.End)
	}
	return nil
}
