// Package sales records sales, both counter sales and sales generated from
// appointments, and keeps their totals consistent with their lines.
package sales

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/barberia/backoffice/internal/shared"
)

// Status of a sale.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusVoided    Status = "voided"
	StatusRefunded  Status = "refunded"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusCompleted, StatusVoided, StatusRefunded:
		return true
	}
	return false
}

// PaymentMethod used to settle a sale.
type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "cash"
	PaymentCredit   PaymentMethod = "credit_card"
	PaymentDebit    PaymentMethod = "debit_card"
	PaymentTransfer PaymentMethod = "transfer"
	PaymentOther    PaymentMethod = "other"
)

// Valid reports whether m is a known payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentCredit, PaymentDebit, PaymentTransfer, PaymentOther:
		return true
	}
	return false
}

// LineType discriminates sale lines.
type LineType string

const (
	LineProduct LineType = "product"
	LineService LineType = "service"
)

// LineItem is what a sale line sells: exactly one product or one service.
// The set of implementations is closed to this package.
type LineItem interface {
	Type() LineType
	isLineItem()
}

// ProductItem sells a product from stock.
type ProductItem struct {
	ProductID int64
}

// ServiceItem sells a catalog service.
type ServiceItem struct {
	ServiceID int64
}

func (ProductItem) Type() LineType { return LineProduct }
func (ProductItem) isLineItem() {}
func (ServiceItem) Type() LineType { return LineService }
func (ServiceItem) isLineItem() {}

// Line is one row of a sale.
type Line struct {
	ID           int64
	SaleID       int64
	Item         LineItem
	Quantity     int
	UnitPrice    decimal.Decimal
	Discount     decimal.Decimal
	LineSubtotal decimal.Decimal
}

type lineJSON struct {
	ID           int64           `json:"id"`
	SaleID       int64           `json:"sale_id"`
	LineType     LineType        `json:"line_type"`
	ProductID    *int64          `json:"product_id"`
	ServiceID    *int64          `json:"service_id"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Discount     decimal.Decimal `json:"discount"`
	LineSubtotal decimal.Decimal `json:"line_subtotal"`
}

// MarshalJSON flattens the item into line_type plus exactly one reference.
func (l Line) MarshalJSON() ([]byte, error) {
	out := lineJSON{
		ID:           l.ID,
		SaleID:       l.SaleID,
		Quantity:     l.Quantity,
		UnitPrice:    l.UnitPrice,
		Discount:     l.Discount,
		LineSubtotal: l.LineSubtotal,
	}
	switch item := l.Item.(type) {
	case ProductItem:
		out.LineType, out.ProductID = LineProduct, &item.ProductID
	case ServiceItem:
		out.LineType, out.ServiceID = LineService, &item.ServiceID
	default:
		return nil, fmt.Errorf("sales: line %d has no item", l.ID)
	}
	return json.Marshal(out)
}

// itemFromColumns rebuilds the item from the stored discriminator.
func itemFromColumns(lineType string, productID, serviceID *int64) (LineItem, error) {
	switch LineType(lineType) {
	case LineProduct:
		if productID != nil && serviceID == nil {
			return ProductItem{ProductID: *productID}, nil
		}
	case LineService:
		if serviceID != nil && productID == nil {
			return ServiceItem{ServiceID: *serviceID}, nil
		}
	}
	return nil, fmt.Errorf("%w: inconsistent sale line %q", shared.ErrValidation, lineType)
}

// itemColumns splits the item into the stored discriminator and references.
func itemColumns(item LineItem) (string, *int64, *int64) {
	switch it := item.(type) {
	case ProductItem:
		return string(LineProduct), &it.ProductID, nil
	case ServiceItem:
		return string(LineService), nil, &it.ServiceID
	}
	return "", nil, nil
}

// Gross is Quantity × UnitPrice.
func (l Line) Gross() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

func (l Line) validate() error {
	var problems []string
	if l.Item == nil {
		problems = append(problems, "line needs a product or a service")
	}
	if l.Quantity < 1 {
		problems = append(problems, "quantity must be >= 1")
	}
	if l.UnitPrice.IsNegative() {
		problems = append(problems, "unit_price must be >= 0")
	}
	if l.Discount.IsNegative() {
		problems = append(problems, "discount must be >= 0")
	} else if l.Discount.GreaterThan(l.Gross()) {
		problems = append(problems, "discount exceeds line amount")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", shared.ErrValidation, strings.Join(problems, "; "))
	}
	return nil
}

// withSubtotal sets LineSubtotal = Quantity × UnitPrice − Discount.
func (l Line) withSubtotal() Line {
	l.LineSubtotal = l.Gross().Sub(l.Discount).Round(2)
	return l
}

// Sale is a settled transaction with a client.
type Sale struct {
	ID            int64           `json:"id"`
	ClientID      *int64          `json:"client_id,omitempty"`
	EmployeeID    int64           `json:"employee_id"`
	AppointmentID *int64          `json:"appointment_id,omitempty"`
	SoldAt        time.Time       `json:"sold_at"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Tax           decimal.Decimal `json:"tax"`
	Discount      decimal.Decimal `json:"discount"`
	Total         decimal.Decimal `json:"total"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	Status        Status          `json:"status"`
	Notes         string          `json:"notes"`
	Lines         []Line          `json:"lines,omitempty"`
}

// withTotals recomputes Subtotal from lines and Total = Subtotal + Tax − Discount.
func (s Sale) withTotals(lines []Line) Sale {
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.LineSubtotal)
	}
	s.Subtotal = subtotal.Round(2)
	s.Total = s.Subtotal.Add(s.Tax).Sub(s.Discount).Round(2)
	return s
}

// LineInput describes one line of a counter sale. UnitPrice defaults to the
// current catalog price.
type LineInput struct {
	Type      LineType         `json:"line_type" validate:"required,oneof=product service"`
	ProductID *int64           `json:"product_id,omitempty"`
	ServiceID *int64           `json:"service_id,omitempty"`
	Quantity  int              `json:"quantity" validate:"gte=1"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
	Discount  decimal.Decimal  `json:"discount"`
}

// Item converts the input to a line item, rejecting ambiguous references.
func (in LineInput) Item() (LineItem, error) {
	switch in.Type {
	case LineProduct:
		if in.ProductID != nil && in.ServiceID == nil && *in.ProductID > 0 {
			return ProductItem{ProductID: *in.ProductID}, nil
		}
	case LineService:
		if in.ServiceID != nil && in.ProductID == nil && *in.ServiceID > 0 {
			return ServiceItem{ServiceID: *in.ServiceID}, nil
		}
	}
	return nil, fmt.Errorf("%w: line_type %q needs exactly one matching reference", shared.ErrValidation, in.Type)
}

// CreateInput records a counter sale.
type CreateInput struct {
	ClientID      *int64          `json:"client_id,omitempty" validate:"omitempty,gt=0"`
	EmployeeID    int64           `json:"employee_id" validate:"required,gt=0"`
	SoldAt        *time.Time      `json:"sold_at,omitempty"`
	Tax           decimal.Decimal `json:"tax"`
	Discount      decimal.Decimal `json:"discount"`
	PaymentMethod PaymentMethod   `json:"payment_method" validate:"required"`
	Notes         string          `json:"notes"`
	Lines         []LineInput     `json:"lines" validate:"required,min=1,dive"`
}

func (in CreateInput) validate() error {
	var problems []string
	if in.EmployeeID <= 0 {
		problems = append(problems, "employee_id is required")
	}
	if !in.PaymentMethod.Valid() {
		problems = append(problems, fmt.Sprintf("unknown payment method %q", in.PaymentMethod))
	}
	if in.Tax.IsNegative() || in.Discount.IsNegative() {
		problems = append(problems, "tax and discount must be >= 0")
	}
	if len(in.Lines) == 0 {
		problems = append(problems, "at least one line is required")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", shared.ErrValidation, strings.Join(problems, "; "))
	}
	return nil
}

// Filter narrows sale listings.
type Filter struct {
	Status        Status
	PaymentMethod PaymentMethod
	EmployeeID    *int64
	ClientID      *int64
	From          time.Time
	To            time.Time
	Page          shared.PageRequest
}
