package audit

import (
	"encoding/json"
	"time"

	"github.com/barberia/backoffice/internal/shared"
)

// Operation is the kind of write captured by an audit entry.
type Operation string

const (
	OpInsert Operation = "INSERT"
	OpUpdate Operation = "UPDATE"
	OpDelete Operation = "DELETE"
)

// Valid reports whether op is one of the tracked write kinds.
func (op Operation) Valid() bool {
	switch op {
	case OpInsert, OpUpdate, OpDelete:
		return true
	}
	return false
}

// Tracked tables.
const (
	TableClients            = "clients"
	TableEmployees          = "employees"
	TableEmployeeSchedules  = "employee_schedules"
	TableServices           = "services"
	TableAppointments       = "appointments"
	TableAppointmentLines   = "appointment_lines"
	TableProducts           = "products"
	TableSales              = "sales"
	TableSaleLines          = "sale_lines"
	TableInventoryMovements = "inventory_movements"
)

var trackedTables = map[string]struct{}{
	TableClients:            {},
	TableEmployees:          {},
	TableEmployeeSchedules:  {},
	TableServices:           {},
	TableAppointments:       {},
	TableAppointmentLines:   {},
	TableProducts:           {},
	TableSales:              {},
	TableSaleLines:          {},
	TableInventoryMovements: {},
}

// IsTracked reports whether writes to table are audited.
func IsTracked(table string) bool {
	_, ok := trackedTables[table]
	return ok
}

// Entry is one immutable row of the audit trail.
type Entry struct {
	ID        int64           `json:"id"`
	Table     string          `json:"table"`
	Operation Operation       `json:"operation"`
	RecordID  int64           `json:"record_id"`
	OldData   json.RawMessage `json:"old_data,omitempty"`
	NewData   json.RawMessage `json:"new_data,omitempty"`
	DBUser    string          `json:"db_user"`
	AppUser   *string         `json:"app_user,omitempty"`
	At        time.Time       `json:"at"`
	OriginIP  *string         `json:"origin_ip,omitempty"`
}

// Change describes a write about to be recorded. Old and New are JSON encoded
// snapshots of the row before and after the write.
type Change struct {
	Table     string
	Operation Operation
	RecordID  int64
	Old       any
	New       any
}

// Filter narrows the audit timeline.
type Filter struct {
	Table     string
	Operation Operation
	RecordID  *int64
	From      time.Time
	To        time.Time
	Page      shared.PageRequest
}

// Result wraps a page of the timeline.
type Result struct {
	Entries    []Entry           `json:"items"`
	Pagination shared.Pagination `json:"pagination"`
}
