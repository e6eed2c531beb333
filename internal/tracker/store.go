package tracker

import (
	"context"

	"github.com/BearBump/ColdTrack/internal/models"
)

// Store is the durable log the coordinator writes to. The contract is narrow:
// atomic per-shipment appends (primary record + its audit entry in one
// transaction), latest-by-shipment reads, newest-first ranges and a streaming
// scan for aggregation. Sequence numbers are assigned by the coordinator,
// never by the store.
type Store interface {
	CreateShipment(ctx context.Context, in models.ShipmentCreateInput) (*models.Shipment, error)
	// GetShipment returns ErrShipmentNotFound for unknown ids.
	GetShipment(ctx context.Context, id uint64) (*models.Shipment, error)
	// UpdateBand changes the threshold band and appends the audit entry in the
	// same transaction.
	UpdateBand(ctx context.Context, id uint64, band models.Band, entry *models.AuditEntry) error

	// LatestEvent returns (nil, nil) if the shipment has no events yet.
	LatestEvent(ctx context.Context, shipmentID uint64) (*models.TrackingEvent, error)
	// AppendEvent appends the event and, if entry is non-nil, its audit entry
	// atomically. Replaying an append with an already-taken (shipment, seq)
	// pair must be a no-op, so the coordinator's single retry is safe.
	AppendEvent(ctx context.Context, ev *models.TrackingEvent, entry *models.AuditEntry) error
	AppendReading(ctx context.Context, rd *models.TemperatureReading, entry *models.AuditEntry) error

	ListEvents(ctx context.Context, shipmentID uint64, limit, offset int) ([]*models.TrackingEvent, error)
	ListReadings(ctx context.Context, shipmentID uint64, limit, offset int) ([]*models.TemperatureReading, error)
	// ScanReadings streams every reading of the shipment, oldest first.
	ScanReadings(ctx context.Context, shipmentID uint64, fn func(*models.TemperatureReading) error) error
	ListAuditEntries(ctx context.Context, shipmentID uint64, limit, offset int) ([]*models.AuditEntry, error)
}
