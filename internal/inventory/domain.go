package inventory

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/barberia/backoffice/internal/shared"
)

// MovementType enumerates supported stock movements.
type MovementType string

const (
	// MovementIn records goods received.
	MovementIn MovementType = "in"
	// MovementSaleOut records goods leaving through a sale.
	MovementSaleOut MovementType = "sale_out"
	// MovementInternalOut records goods consumed by the shop itself.
	MovementInternalOut MovementType = "internal_out"
	// MovementAdjustUp corrects a stock count upwards.
	MovementAdjustUp MovementType = "adjust_up"
	// MovementAdjustDown corrects a stock count downwards.
	MovementAdjustDown MovementType = "adjust_down"
)

// Sign returns +1 for inbound types, -1 for outbound types and 0 for unknown ones.
func (t MovementType) Sign() int {
	switch t {
	case MovementIn, MovementAdjustUp:
		return 1
	case MovementSaleOut, MovementInternalOut, MovementAdjustDown:
		return -1
	}
	return 0
}

// Valid reports whether t is a known movement type.
func (t MovementType) Valid() bool { return t.Sign() != 0 }

// StockLevel classifies a product's stock against its minimum.
type StockLevel string

const (
	StockOut StockLevel = "out"
	StockLow StockLevel = "low"
	StockOK  StockLevel = "ok"
)

// Product is a sellable or internally consumed item.
type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Brand       string          `json:"brand"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	SalePrice   decimal.Decimal `json:"sale_price"`
	CostPrice   decimal.Decimal `json:"cost_price"`
	StockQty    int             `json:"stock_qty"`
	MinStock    int             `json:"min_stock"`
	Unit        string          `json:"unit"`
	ForSale     bool            `json:"for_sale"`
	Active      bool            `json:"active"`
}

// StockStatus classifies stock: out when at or below zero, low when at or
// below the minimum, ok otherwise.
func StockStatus(p Product) StockLevel {
	switch {
	case p.StockQty <= 0:
		return StockOut
	case p.StockQty <= p.MinStock:
		return StockLow
	default:
		return StockOK
	}
}

// Movement is one entry of the stock ledger.
type Movement struct {
	ID          int64        `json:"id"`
	ProductID   int64        `json:"product_id"`
	Type        MovementType `json:"movement_type"`
	Quantity    int          `json:"quantity"`
	StockBefore int          `json:"stock_before"`
	StockAfter  int          `json:"stock_after"`
	MovedAt     time.Time    `json:"moved_at"`
	EmployeeID  *int64       `json:"employee_id,omitempty"`
	SaleID      *int64       `json:"sale_id,omitempty"`
	Reason      string       `json:"reason"`
	Reference   string       `json:"reference"`
}

// MovementInput describes a request to move stock.
type MovementInput struct {
	ProductID  int64        `json:"-"`
	Type       MovementType `json:"movement_type" validate:"required"`
	Quantity   int          `json:"quantity" validate:"gte=1"`
	EmployeeID *int64       `json:"employee_id,omitempty"`
	SaleID     *int64       `json:"sale_id,omitempty"`
	Reason     string       `json:"reason" validate:"max=255"`
	Reference  string       `json:"reference" validate:"max=50"`
}

// ProductInput carries the editable product attributes. Stock is not part of
// it: stock only changes through movements.
type ProductInput struct {
	Name         string          `json:"name" validate:"required,max=100"`
	Brand        string          `json:"brand" validate:"max=50"`
	Category     string          `json:"category" validate:"required,max=50"`
	Description  string          `json:"description"`
	SalePrice    decimal.Decimal `json:"sale_price"`
	CostPrice    decimal.Decimal `json:"cost_price"`
	MinStock     int             `json:"min_stock" validate:"gte=0"`
	Unit         string          `json:"unit" validate:"max=20"`
	ForSale      *bool           `json:"for_sale,omitempty"`
	Active       *bool           `json:"active,omitempty"`
	InitialStock int             `json:"initial_stock,omitempty" validate:"gte=0"`
}

// ProductFilter narrows product listings.
type ProductFilter struct {
	Search   string
	Category string
	Brand    string
	Active   *bool
	Level    StockLevel
	Page     shared.PageRequest
}

// MovementFilter narrows movement listings.
type MovementFilter struct {
	ProductID *int64
	Type      MovementType
	From      time.Time
	To        time.Time
	Page      shared.PageRequest
}

// ErrInsufficientStock is returned when a movement would drive stock below zero.
var ErrInsufficientStock = fmt.Errorf("%w: insufficient stock", shared.ErrValidation)

// ErrInvalidQuantity indicates a non positive quantity.
var ErrInvalidQuantity = fmt.Errorf("%w: quantity must be greater than zero", shared.ErrValidation)

// ErrUnknownMovementType indicates a type outside the known set.
var ErrUnknownMovementType = fmt.Errorf("%w: unknown movement type", shared.ErrValidation)

func (in ProductInput) validate() error {
	var problems []string
	if strings.TrimSpace(in.Name) == "" {
		problems = append(problems, "name is required")
	}
	if strings.TrimSpace(in.Category) == "" {
		problems = append(problems, "category is required")
	}
	if in.SalePrice.IsNegative() {
		problems = append(problems, "sale_price must be >= 0")
	}
	if in.CostPrice.IsNegative() {
		problems = append(problems, "cost_price must be >= 0")
	}
	if in.MinStock < 0 {
		problems = append(problems, "min_stock must be >= 0")
	}
	if in.InitialStock < 0 {
		problems = append(problems, "initial_stock must be >= 0")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", shared.ErrValidation, strings.Join(problems, "; "))
	}
	return nil
}

func (in ProductInput) apply(p Product) Product {
	p.Name = strings.TrimSpace(in.Name)
	p.Brand = strings.TrimSpace(in.Brand)
	p.Category = strings.TrimSpace(in.Category)
	p.Description = in.Description
	p.SalePrice = in.SalePrice.Round(2)
	p.CostPrice = in.CostPrice.Round(2)
	p.MinStock = in.MinStock
	p.Unit = strings.TrimSpace(in.Unit)
	if p.Unit == "" {
		p.Unit = "unit"
	}
	if in.ForSale != nil {
		p.ForSale = *in.ForSale
	}
	if in.Active != nil {
		p.Active = *in.Active
	}
	return p
}

// IsInsufficientStock reports whether err came from the stock floor check.
func IsInsufficientStock(err error) bool {
	return errors.Is(err, ErrInsufficientStock)
}
