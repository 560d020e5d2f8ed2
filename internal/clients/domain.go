// Package clients keeps the customer register.
package clients

import (
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/barberia/backoffice/internal/shared"
)

// Client is a registered customer of the shop.
type Client struct {
	ID           int64      `json:"id"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	Phone        string     `json:"phone"`
	Email        *string    `json:"email,omitempty"`
	BirthDate    *time.Time `json:"birth_date,omitempty"`
	Address      string     `json:"address"`
	Preferences  string     `json:"preferences"`
	Notes        string     `json:"notes"`
	RegisteredAt time.Time  `json:"registered_at"`
	LastVisitAt  *time.Time `json:"last_visit_at,omitempty"`
	Active       bool       `json:"active"`
}

// FullName joins first and last name.
func (c Client) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// Input carries the editable attributes of a client.
type Input struct {
	FirstName   string     `json:"first_name" validate:"required,max=50"`
	LastName    string     `json:"last_name" validate:"required,max=50"`
	Phone       string     `json:"phone" validate:"required,max=15"`
	Email       *string    `json:"email,omitempty" validate:"omitempty,email,max=100"`
	BirthDate   *time.Time `json:"birth_date,omitempty"`
	Address     string     `json:"address" validate:"max=255"`
	Preferences string     `json:"preferences"`
	Notes       string     `json:"notes"`
	Active      *bool      `json:"active,omitempty"`
}

// Filter narrows client listings. Search matches names, phone and email.
type Filter struct {
	Search string
	Active *bool
	Page   shared.PageRequest
}

func (in Input) validate(now time.Time) error {
	var problems []string
	if strings.TrimSpace(in.FirstName) == "" {
		problems = append(problems, "first_name is required")
	}
	if strings.TrimSpace(in.LastName) == "" {
		problems = append(problems, "last_name is required")
	}
	if strings.TrimSpace(in.Phone) == "" {
		problems = append(problems, "phone is required")
	}
	if in.Email != nil && strings.TrimSpace(*in.Email) != "" {
		if _, err := mail.ParseAddress(strings.TrimSpace(*in.Email)); err != nil {
			problems = append(problems, "email is invalid")
		}
	}
	if in.BirthDate != nil && in.BirthDate.After(now) {
		problems = append(problems, "birth_date is in the future")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", shared.ErrValidation, strings.Join(problems, "; "))
	}
	return nil
}

func (in Input) apply(c Client) Client {
	c.FirstName = strings.TrimSpace(in.FirstName)
	c.LastName = strings.TrimSpace(in.LastName)
	c.Phone = strings.TrimSpace(in.Phone)
	c.Email = nil
	if in.Email != nil {
		if email := strings.ToLower(strings.TrimSpace(*in.Email)); email != "" {
			c.Email = &email
		}
	}
	c.BirthDate = in.BirthDate
	c.Address = strings.TrimSpace(in.Address)
	c.Preferences = in.Preferences
	c.Notes = in.Notes
	if in.Active != nil {
		c.Active = *in.Active
	}
	return c
}
