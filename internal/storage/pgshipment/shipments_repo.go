package pgshipment

import (
	"context"
	"time"

	"github.com/BearBump/ColdTrack/internal/models"
	"github.com/BearBump/ColdTrack/internal/tracker"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

func (s *Storage) CreateShipment(ctx context.Context, in models.ShipmentCreateInput) (*models.Shipment, error) {
	now := time.Now().UTC()

	var id uint64
	err := s.db.QueryRow(ctx, `
INSERT INTO shipments (customer_id, track_number, band_min, band_max, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$5)
ON CONFLICT (track_number)
DO UPDATE SET updated_at = shipments.updated_at
RETURNING id
`, in.CustomerID, in.TrackNumber, in.Band.Min, in.Band.Max, now).Scan(&id)
	if err != nil {
		return nil, errors.Wrap(err, "insert shipment")
	}

	return s.GetShipment(ctx, id)
}

func (s *Storage) GetShipment(ctx context.Context, id uint64) (*models.Shipment, error) {
	var sh models.Shipment
	err := s.db.QueryRow(ctx, `
SELECT id, customer_id, track_number, band_min, band_max, created_at, updated_at
FROM shipments
WHERE id = $1
`, id).Scan(&sh.ID, &sh.CustomerID, &sh.TrackNumber, &sh.Band.Min, &sh.Band.Max, &sh.CreatedAt, &sh.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, tracker.ErrShipmentNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select shipment")
	}
	return &sh, nil
}

func (s *Storage) UpdateBand(ctx context.Context, id uint64, band models.Band, entry *models.AuditEntry) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
UPDATE shipments SET band_min = $2, band_max = $3, updated_at = now() WHERE id = $1
`, id, band.Min, band.Max)
	if err != nil {
		return errors.Wrap(err, "update band")
	}
	if tag.RowsAffected() == 0 {
		return tracker.ErrShipmentNotFound
	}

	if entry != nil {
		if err := insertAuditTx(ctx, tx, entry); err != nil {
			return err
		}
	}

	return errors.Wrap(tx.Commit(ctx), "commit tx")
}
