package pgshipment

import (
	"context"

	"github.com/BearBump/ColdTrack/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

func (s *Storage) LatestEvent(ctx context.Context, shipmentID uint64) (*models.TrackingEvent, error) {
	var e models.TrackingEvent
	err := s.db.QueryRow(ctx, `
SELECT id, shipment_id, seq, status, location, note, vehicle_id, staff_id, created_at
FROM tracking_events
WHERE shipment_id = $1
ORDER BY seq DESC
LIMIT 1
`, shipmentID).Scan(
		&e.ID, &e.ShipmentID, &e.Seq, &e.Status,
		&e.Location, &e.Note, &e.VehicleID, &e.StaffID, &e.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "select latest event")
	}
	return &e, nil
}

// AppendEvent пишет событие и аудит в одной транзакции. Конфликт по
// (shipment_id, seq) — это повтор уже применённой записи: выходим без изменений.
func (s *Storage) AppendEvent(ctx context.Context, ev *models.TrackingEvent, entry *models.AuditEntry) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var id uint64
	err = tx.QueryRow(ctx, `
INSERT INTO tracking_events (shipment_id, seq, status, location, note, vehicle_id, staff_id, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (shipment_id, seq) DO NOTHING
RETURNING id
`, ev.ShipmentID, ev.Seq, ev.Status, ev.Location, ev.Note, ev.VehicleID, ev.StaffID, ev.CreatedAt.UTC()).Scan(&id)
	if err == pgx.ErrNoRows {
		// Повторная запись того же seq.
		return errors.Wrap(tx.Commit(ctx), "commit tx")
	}
	if err != nil {
		return errors.Wrap(err, "insert tracking event")
	}
	ev.ID = id

	if entry != nil {
		if err := insertAuditTx(ctx, tx, entry); err != nil {
			return err
		}
	}

	return errors.Wrap(tx.Commit(ctx), "commit tx")
}

func (s *Storage) ListEvents(ctx context.Context, shipmentID uint64, limit, offset int) ([]*models.TrackingEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.Query(ctx, `
SELECT id, shipment_id, seq, status, location, note, vehicle_id, staff_id, created_at
FROM tracking_events
WHERE shipment_id = $1
ORDER BY seq DESC
LIMIT $2 OFFSET $3
`, shipmentID, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "select events")
	}
	defer rows.Close()

	var out []*models.TrackingEvent
	for rows.Next() {
		var e models.TrackingEvent
		if err := rows.Scan(
			&e.ID, &e.ShipmentID, &e.Seq, &e.Status,
			&e.Location, &e.Note, &e.VehicleID, &e.StaffID, &e.CreatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "scan event")
		}
		out = append(out, &e)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}
