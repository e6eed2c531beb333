package pgshipment

import (
	"context"

	"github.com/BearBump/ColdTrack/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

func (s *Storage) AppendReading(ctx context.Context, rd *models.TemperatureReading, entry *models.AuditEntry) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var id uint64
	err = tx.QueryRow(ctx, `
INSERT INTO temperature_readings (shipment_id, temperature, humidity, is_alert, location, actor_id, note, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
RETURNING id
`, rd.ShipmentID, rd.Temperature, rd.Humidity, rd.IsAlert, rd.Location, rd.ActorID, rd.Note, rd.CreatedAt.UTC()).Scan(&id)
	if err != nil {
		return errors.Wrap(err, "insert reading")
	}
	rd.ID = id

	if entry != nil {
		if err := insertAuditTx(ctx, tx, entry); err != nil {
			return err
		}
	}

	return errors.Wrap(tx.Commit(ctx), "commit tx")
}

func (s *Storage) ListReadings(ctx context.Context, shipmentID uint64, limit, offset int) ([]*models.TemperatureReading, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.Query(ctx, `
SELECT id, shipment_id, temperature, humidity, is_alert, location, actor_id, note, created_at
FROM temperature_readings
WHERE shipment_id = $1
ORDER BY id DESC
LIMIT $2 OFFSET $3
`, shipmentID, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "select readings")
	}
	defer rows.Close()

	return scanReadingRows(rows)
}

// ScanReadings streams all readings oldest first, without materializing the
// full log in memory.
func (s *Storage) ScanReadings(ctx context.Context, shipmentID uint64, fn func(*models.TemperatureReading) error) error {
	rows, err := s.db.Query(ctx, `
SELECT id, shipment_id, temperature, humidity, is_alert, location, actor_id, note, created_at
FROM temperature_readings
WHERE shipment_id = $1
ORDER BY id ASC
`, shipmentID)
	if err != nil {
		return errors.Wrap(err, "select readings")
	}
	defer rows.Close()

	for rows.Next() {
		var rd models.TemperatureReading
		if err := rows.Scan(
			&rd.ID, &rd.ShipmentID, &rd.Temperature, &rd.Humidity,
			&rd.IsAlert, &rd.Location, &rd.ActorID, &rd.Note, &rd.CreatedAt,
		); err != nil {
			return errors.Wrap(err, "scan reading")
		}
		if err := fn(&rd); err != nil {
			return err
		}
	}
	return errors.Wrap(rows.Err(), "rows")
}

func scanReadingRows(rows pgx.Rows) ([]*models.TemperatureReading, error) {
	var out []*models.TemperatureReading
	for rows.Next() {
		var rd models.TemperatureReading
		if err := rows.Scan(
			&rd.ID, &rd.ShipmentID, &rd.Temperature, &rd.Humidity,
			&rd.IsAlert, &rd.Location, &rd.ActorID, &rd.Note, &rd.CreatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "scan reading")
		}
		out = append(out, &rd)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}
