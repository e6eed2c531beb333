package audit

import (
	"encoding/json"
	"time"

	"github.com/BearBump/ColdTrack/internal/models"
)

// Action kinds recorded in the audit trail.
const (
	ActionStatusUpdate      = "status-update"
	ActionTemperatureUpdate = "temperature-update"
	ActionLocationUpdate    = "location-update"
	ActionThresholdUpdate   = "threshold-update"
)

// Actor identifies who performed a mutation.
type Actor struct {
	ID   uint64
	Role string
}

// StatusDetails is the snapshot stored for a status-update entry.
type StatusDetails struct {
	OldStatus string    `json:"old_status"`
	NewStatus string    `json:"new_status"`
	Location  string    `json:"location,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// TemperatureDetails is the snapshot stored for a temperature-update entry.
type TemperatureDetails struct {
	Temperature float64   `json:"temperature"`
	Humidity    *float64  `json:"humidity,omitempty"`
	IsAlert     bool      `json:"is_alert"`
	Location    string    `json:"location,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// LocationDetails is the snapshot stored for a location-update entry.
type LocationDetails struct {
	Location  string    `json:"location"`
	Timestamp time.Time `json:"timestamp"`
}

// ThresholdDetails is the snapshot stored for a threshold-update entry.
type ThresholdDetails struct {
	OldMin    *float64  `json:"old_min,omitempty"`
	OldMax    *float64  `json:"old_max,omitempty"`
	NewMin    *float64  `json:"new_min,omitempty"`
	NewMax    *float64  `json:"new_max,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEntry builds an audit entry with the details snapshot serialized as JSON.
// Сами поля details фиксируются на момент записи и больше не меняются.
func NewEntry(actor Actor, shipmentID uint64, action string, details any, at time.Time) *models.AuditEntry {
	b, err := json.Marshal(details)
	if err != nil {
		// Снапшоты выше — плоские структуры, сюда попасть нельзя.
		b = []byte("{}")
	}
	return &models.AuditEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		ShipmentID: shipmentID,
		Action:     action,
		Details:    string(b),
		CreatedAt:  at,
	}
}
