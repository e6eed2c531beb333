package pgshipment

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS shipments (
  id BIGSERIAL PRIMARY KEY,
  customer_id BIGINT NOT NULL,
  track_number TEXT NOT NULL,
  band_min DOUBLE PRECISION NULL,
  band_max DOUBLE PRECISION NULL,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL,
  UNIQUE (track_number)
)`,
		// Журнал переходов. Никакой колонки "текущий статус" у shipments нет:
		// статус всегда выводится из события с максимальным seq.
		`
CREATE TABLE IF NOT EXISTS tracking_events (
  id BIGSERIAL PRIMARY KEY,
  shipment_id BIGINT NOT NULL REFERENCES shipments(id) ON DELETE RESTRICT,
  seq BIGINT NOT NULL,
  status TEXT NOT NULL,
  location TEXT NULL,
  note TEXT NULL,
  vehicle_id BIGINT NULL,
  staff_id BIGINT NULL,
  created_at TIMESTAMPTZ NOT NULL,
  UNIQUE (shipment_id, seq)
)`,
		`CREATE INDEX IF NOT EXISTS idx_tracking_events_shipment_id_seq ON tracking_events(shipment_id, seq DESC)`,
		`
CREATE TABLE IF NOT EXISTS temperature_readings (
  id BIGSERIAL PRIMARY KEY,
  shipment_id BIGINT NOT NULL REFERENCES shipments(id) ON DELETE RESTRICT,
  temperature DOUBLE PRECISION NOT NULL,
  humidity DOUBLE PRECISION NULL,
  is_alert BOOLEAN NOT NULL,
  location TEXT NULL,
  actor_id BIGINT NULL,
  note TEXT NULL,
  created_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_temperature_readings_shipment_id_id ON temperature_readings(shipment_id, id DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_temperature_readings_alerts ON temperature_readings(shipment_id) WHERE is_alert`,
		`
CREATE TABLE IF NOT EXISTS audit_entries (
  id BIGSERIAL PRIMARY KEY,
  actor_id BIGINT NOT NULL,
  actor_role TEXT NOT NULL,
  shipment_id BIGINT NOT NULL,
  action TEXT NOT NULL,
  details JSONB NOT NULL,
  created_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_entries_shipment_id_id ON audit_entries(shipment_id, id DESC)`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
