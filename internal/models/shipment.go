package models

import "time"

// Статусы отправления. Порядок переходов проверяет statemachine.
const (
	StatusCreated    = "CREATED"
	StatusProcessing = "PROCESSING"
	StatusInTransit  = "IN_TRANSIT"
	StatusDelivered  = "DELIVERED"
	StatusCancelled  = "CANCELLED"
)

// Роли вызывающих. Роль приходит из API-слоя, мы ей только доверяем.
const (
	RoleCustomer = "CUSTOMER"
	RoleStaff    = "STAFF"
	RoleAdmin    = "ADMIN"
	RoleSensor   = "SENSOR"
)

// KnownStatus reports whether s is one of the fixed status values.
func KnownStatus(s string) bool {
	switch s {
	case StatusCreated, StatusProcessing, StatusInTransit, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// TerminalStatus reports whether no transition is permitted out of s.
func TerminalStatus(s string) bool {
	return s == StatusDelivered || s == StatusCancelled
}

// Band is the acceptable temperature range for a shipment.
// A nil bound means "unconstrained on that side".
type Band struct {
	Min *float64
	Max *float64
}

// Unbounded reports whether the band can never trigger an alert.
func (b Band) Unbounded() bool {
	return b.Min == nil && b.Max == nil
}

type Shipment struct {
	ID          uint64
	CustomerID  uint64
	TrackNumber string
	Band        Band
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TrackingEvent is one immutable status-transition record.
// Seq is gapless and strictly increasing per shipment.
type TrackingEvent struct {
	ID         uint64
	ShipmentID uint64
	Seq        uint64
	Status     string
	Location   *string
	Note       *string
	VehicleID  *uint64
	StaffID    *uint64
	CreatedAt  time.Time
}

// TemperatureReading is one immutable telemetry sample. IsAlert is derived
// from the band in force at recording time and is never recomputed.
type TemperatureReading struct {
	ID          uint64
	ShipmentID  uint64
	Temperature float64
	Humidity    *float64
	IsAlert     bool
	Location    *string
	ActorID     *uint64
	Note        *string
	CreatedAt   time.Time
}

type AuditEntry struct {
	ID         uint64
	ActorID    uint64
	ActorRole  string
	ShipmentID uint64
	Action     string
	Details    string
	CreatedAt  time.Time
}

type ShipmentCreateInput struct {
	CustomerID  uint64
	TrackNumber string
	Band        Band
}

// ReadingStats is the streaming aggregation over a shipment's readings.
type ReadingStats struct {
	Count      int64
	AlertCount int64
	Min        float64
	Max        float64
	Avg        float64
}
