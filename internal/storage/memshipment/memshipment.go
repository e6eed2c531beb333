// Package memshipment is the in-memory Store adapter: the same contract as
// pgshipment, backed by slices. Used in tests and local runs without postgres.
package memshipment

import (
	"context"
	"sync"
	"time"

	"github.com/BearBump/ColdTrack/internal/models"
	"github.com/BearBump/ColdTrack/internal/tracker"
	"github.com/pkg/errors"
)

type Storage struct {
	mu sync.Mutex

	nextShipmentID uint64
	nextEventID    uint64
	nextReadingID  uint64
	nextAuditID    uint64

	shipments  map[uint64]*models.Shipment
	trackNums  map[string]uint64
	events     map[uint64][]*models.TrackingEvent
	readings   map[uint64][]*models.TemperatureReading
	auditTrail map[uint64][]*models.AuditEntry
}

func New() *Storage {
	return &Storage{
		shipments:  make(map[uint64]*models.Shipment),
		trackNums:  make(map[string]uint64),
		events:     make(map[uint64][]*models.TrackingEvent),
		readings:   make(map[uint64][]*models.TemperatureReading),
		auditTrail: make(map[uint64][]*models.AuditEntry),
	}
}

func (s *Storage) CreateShipment(_ context.Context, in models.ShipmentCreateInput) (*models.Shipment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.trackNums[in.TrackNumber]; ok {
		sh := *s.shipments[id]
		return &sh, nil
	}

	s.nextShipmentID++
	now := time.Now().UTC()
	sh := &models.Shipment{
		ID:          s.nextShipmentID,
		CustomerID:  in.CustomerID,
		TrackNumber: in.TrackNumber,
		Band:        in.Band,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.shipments[sh.ID] = sh
	s.trackNums[sh.TrackNumber] = sh.ID

	out := *sh
	return &out, nil
}

func (s *Storage) GetShipment(_ context.Context, id uint64) (*models.Shipment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sh, ok := s.shipments[id]
	if !ok {
		return nil, tracker.ErrShipmentNotFound
	}
	out := *sh
	return &out, nil
}

func (s *Storage) UpdateBand(_ context.Context, id uint64, band models.Band, entry *models.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sh, ok := s.shipments[id]
	if !ok {
		return tracker.ErrShipmentNotFound
	}
	sh.Band = band
	sh.UpdatedAt = time.Now().UTC()
	if entry != nil {
		s.appendAuditLocked(entry)
	}
	return nil
}

func (s *Storage) LatestEvent(_ context.Context, shipmentID uint64) (*models.TrackingEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	evs := s.events[shipmentID]
	if len(evs) == 0 {
		return nil, nil
	}
	out := *evs[len(evs)-1]
	return &out, nil
}

func (s *Storage) AppendEvent(_ context.Context, ev *models.TrackingEvent, entry *models.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.shipments[ev.ShipmentID]; !ok {
		return tracker.ErrShipmentNotFound
	}
	// Повтор с тем же seq — уже записано, молча выходим.
	for _, e := range s.events[ev.ShipmentID] {
		if e.Seq == ev.Seq {
			return nil
		}
	}

	s.nextEventID++
	ev.ID = s.nextEventID
	cp := *ev
	s.events[ev.ShipmentID] = append(s.events[ev.ShipmentID], &cp)
	if entry != nil {
		s.appendAuditLocked(entry)
	}
	return nil
}

func (s *Storage) AppendReading(_ context.Context, rd *models.TemperatureReading, entry *models.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.shipments[rd.ShipmentID]; !ok {
		return tracker.ErrShipmentNotFound
	}

	s.nextReadingID++
	rd.ID = s.nextReadingID
	cp := *rd
	s.readings[rd.ShipmentID] = append(s.readings[rd.ShipmentID], &cp)
	if entry != nil {
		s.appendAuditLocked(entry)
	}
	return nil
}

func (s *Storage) ListEvents(_ context.Context, shipmentID uint64, limit, offset int) ([]*models.TrackingEvent, error) {
	limit, offset = clamp(limit, offset)

	s.mu.Lock()
	defer s.mu.Unlock()

	evs := s.events[shipmentID]
	out := make([]*models.TrackingEvent, 0, limit)
	for i := len(evs) - 1 - offset; i >= 0 && len(out) < limit; i-- {
		cp := *evs[i]
		out = append(out, &cp)
	}
	return out, nil
}

func (s *Storage) ListReadings(_ context.Context, shipmentID uint64, limit, offset int) ([]*models.TemperatureReading, error) {
	limit, offset = clamp(limit, offset)

	s.mu.Lock()
	defer s.mu.Unlock()

	rds := s.readings[shipmentID]
	out := make([]*models.TemperatureReading, 0, limit)
	for i := len(rds) - 1 - offset; i >= 0 && len(out) < limit; i-- {
		cp := *rds[i]
		out = append(out, &cp)
	}
	return out, nil
}

func (s *Storage) ScanReadings(_ context.Context, shipmentID uint64, fn func(*models.TemperatureReading) error) error {
	s.mu.Lock()
	snapshot := make([]*models.TemperatureReading, len(s.readings[shipmentID]))
	copy(snapshot, s.readings[shipmentID])
	s.mu.Unlock()

	for _, rd := range snapshot {
		cp := *rd
		if err := fn(&cp); err != nil {
			return errors.Wrap(err, "scan readings")
		}
	}
	return nil
}

func (s *Storage) ListAuditEntries(_ context.Context, shipmentID uint64, limit, offset int) ([]*models.AuditEntry, error) {
	limit, offset = clamp(limit, offset)

	s.mu.Lock()
	defer s.mu.Unlock()

	es := s.auditTrail[shipmentID]
	out := make([]*models.AuditEntry, 0, limit)
	for i := len(es) - 1 - offset; i >= 0 && len(out) < limit; i-- {
		cp := *es[i]
		out = append(out, &cp)
	}
	return out, nil
}

func (s *Storage) appendAuditLocked(entry *models.AuditEntry) {
	s.nextAuditID++
	entry.ID = s.nextAuditID
	cp := *entry
	s.auditTrail[entry.ShipmentID] = append(s.auditTrail[entry.ShipmentID], &cp)
}

func clamp(limit, offset int) (int, int) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
