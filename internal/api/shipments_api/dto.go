package shipments_api

import (
	"encoding/json"
	"time"

	"github.com/BearBump/ColdTrack/internal/models"
)

type shipmentDTO struct {
	ID          uint64    `json:"id"`
	CustomerID  uint64    `json:"customer_id"`
	TrackNumber string    `json:"track_number"`
	BandMin     *float64  `json:"band_min,omitempty"`
	BandMax     *float64  `json:"band_max,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toShipmentDTO(sh *models.Shipment) shipmentDTO {
	return shipmentDTO{
		ID:          sh.ID,
		CustomerID:  sh.CustomerID,
		TrackNumber: sh.TrackNumber,
		BandMin:     sh.Band.Min,
		BandMax:     sh.Band.Max,
		CreatedAt:   sh.CreatedAt,
		UpdatedAt:   sh.UpdatedAt,
	}
}

type eventDTO struct {
	ID         uint64    `json:"id"`
	ShipmentID uint64    `json:"shipment_id"`
	Seq        uint64    `json:"seq"`
	Status     string    `json:"status"`
	Location   *string   `json:"location,omitempty"`
	Note       *string   `json:"note,omitempty"`
	VehicleID  *uint64   `json:"vehicle_id,omitempty"`
	StaffID    *uint64   `json:"staff_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func toEventDTO(ev *models.TrackingEvent) eventDTO {
	return eventDTO{
		ID:         ev.ID,
		ShipmentID: ev.ShipmentID,
		Seq:        ev.Seq,
		Status:     ev.Status,
		Location:   ev.Location,
		Note:       ev.Note,
		VehicleID:  ev.VehicleID,
		StaffID:    ev.StaffID,
		CreatedAt:  ev.CreatedAt,
	}
}

type readingDTO struct {
	ID          uint64    `json:"id"`
	ShipmentID  uint64    `json:"shipment_id"`
	Temperature float64   `json:"temperature"`
	Humidity    *float64  `json:"humidity,omitempty"`
	IsAlert     bool      `json:"is_alert"`
	Location    *string   `json:"location,omitempty"`
	Note        *string   `json:"note,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func toReadingDTO(rd *models.TemperatureReading) readingDTO {
	return readingDTO{
		ID:          rd.ID,
		ShipmentID:  rd.ShipmentID,
		Temperature: rd.Temperature,
		Humidity:    rd.Humidity,
		IsAlert:     rd.IsAlert,
		Location:    rd.Location,
		Note:        rd.Note,
		CreatedAt:   rd.CreatedAt,
	}
}

type statsDTO struct {
	Count      int64   `json:"count"`
	AlertCount int64   `json:"alert_count"`
	Min        float64 `json:"min"`
	Max        float64 `json:"max"`
	Avg        float64 `json:"avg"`
}

type auditDTO struct {
	ID         uint64          `json:"id"`
	ActorID    uint64          `json:"actor_id"`
	ActorRole  string          `json:"actor_role"`
	ShipmentID uint64          `json:"shipment_id"`
	Action     string          `json:"action"`
	Details    json.RawMessage `json:"details"`
	CreatedAt  time.Time       `json:"created_at"`
}

func toAuditDTO(e *models.AuditEntry) auditDTO {
	return auditDTO{
		ID:         e.ID,
		ActorID:    e.ActorID,
		ActorRole:  e.ActorRole,
		ShipmentID: e.ShipmentID,
		Action:     e.Action,
		Details:    json.RawMessage(e.Details),
		CreatedAt:  e.CreatedAt,
	}
}
