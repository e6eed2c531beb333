package pgshipment

import (
	"context"

	"github.com/BearBump/ColdTrack/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

func insertAuditTx(ctx context.Context, tx pgx.Tx, entry *models.AuditEntry) error {
	var id uint64
	// details передаём как []byte: для jsonb это уже готовый JSON,
	// строку pgx закодировал бы повторно.
	err := tx.QueryRow(ctx, `
INSERT INTO audit_entries (actor_id, actor_role, shipment_id, action, details, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
RETURNING id
`, entry.ActorID, entry.ActorRole, entry.ShipmentID, entry.Action, []byte(entry.Details), entry.CreatedAt.UTC()).Scan(&id)
	if err != nil {
		return errors.Wrap(err, "insert audit entry")
	}
	entry.ID = id
	return nil
}

func (s *Storage) ListAuditEntries(ctx context.Context, shipmentID uint64, limit, offset int) ([]*models.AuditEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.Query(ctx, `
SELECT id, actor_id, actor_role, shipment_id, action, details, created_at
FROM audit_entries
WHERE shipment_id = $1
ORDER BY id DESC
LIMIT $2 OFFSET $3
`, shipmentID, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "select audit entries")
	}
	defer rows.Close()

	var out []*models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		var details []byte
		if err := rows.Scan(
			&e.ID, &e.ActorID, &e.ActorRole, &e.ShipmentID,
			&e.Action, &details, &e.CreatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "scan audit entry")
		}
		e.Details = string(details)
		out = append(out, &e)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}
