// Package catalog maintains the services the shop offers.
package catalog

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/barberia/backoffice/internal/shared"
)

// Service is a bookable barbershop service such as a haircut or beard trim.
type Service struct {
	ID              int64           `json:"id"`
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	Category        string          `json:"category"`
	DurationMinutes int             `json:"duration_minutes"`
	Price           decimal.Decimal `json:"price"`
	Active          bool            `json:"active"`
}

// ServiceInput carries the editable attributes of a service.
type ServiceInput struct {
	Name            string          `json:"name" validate:"required,max=100"`
	Description     string          `json:"description"`
	Category        string          `json:"category" validate:"required,max=50"`
	DurationMinutes int             `json:"duration_minutes" validate:"gte=1"`
	Price           decimal.Decimal `json:"price"`
	Active          *bool           `json:"active,omitempty"`
}

// Filter narrows service listings.
type Filter struct {
	Search   string
	Category string
	Active   *bool
	Page     shared.PageRequest
}

func (in ServiceInput) validate() error {
	var problems []string
	if strings.TrimSpace(in.Name) == "" {
		problems = append(problems, "name is required")
	}
	if strings.TrimSpace(in.Category) == "" {
		problems = append(problems, "category is required")
	}
	if in.DurationMinutes < 1 {
		problems = append(problems, "duration_minutes must be >= 1")
	}
	if in.Price.IsNegative() {
		problems = append(problems, "price must be >= 0")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", shared.ErrValidation, strings.Join(problems, "; "))
	}
	return nil
}

func (in ServiceInput) apply(s Service) Service {
	s.Name = strings.TrimSpace(in.Name)
	s.Description = in.Description
	s.Category = strings.TrimSpace(in.Category)
	s.DurationMinutes = in.DurationMinutes
	s.Price = in.Price.Round(2)
	if in.Active != nil {
		s.Active = *in.Active
	}
	return s
}
