// Package dashboard builds the back-office landing counters.
package dashboard

import (
	"time"

	"github.com/shopspring/decimal"
)

// Summary aggregates the counters shown on the admin landing page for one day.
type Summary struct {
	Day                  string          `json:"day"`
	AppointmentsByStatus map[string]int  `json:"appointments_by_status"`
	AppointmentsTotal    int             `json:"appointments_total"`
	CompletedSales       int             `json:"completed_sales"`
	Revenue              decimal.Decimal `json:"revenue"`
	LowStockProducts     int             `json:"low_stock_products"`
	OutOfStockProducts   int             `json:"out_of_stock_products"`
	ActiveClients        int             `json:"active_clients"`
	LowStock             []LowStockItem  `json:"low_stock,omitempty"`
	GeneratedAt          time.Time       `json:"generated_at"`
}

// SalesTotals is the completed sales count and revenue for a window.
type SalesTotals struct {
	Count   int
	Revenue decimal.Decimal
}

// StockCounts counts products at or below their minimum.
type StockCounts struct {
	Low int
	Out int
}

// LowStockItem is one product captured by the periodic stock scan.
type LowStockItem struct {
	ProductID int64     `json:"product_id"`
	Name      string    `json:"name"`
	StockQty  int       `json:"stock_qty"`
	MinStock  int       `json:"min_stock"`
	Level     string    `json:"level"`
	ScannedAt time.Time `json:"scanned_at"`
}

const dayLayout = "2006-01-02"

func dayBounds(day time.Time, loc *time.Location) (time.Time, time.Time) {
	d := day.In(loc)
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}
