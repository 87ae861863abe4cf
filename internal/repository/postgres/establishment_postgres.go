package postgres

import (
	"context"
	"database/sql"

	"docvault/internal/model"
	"docvault/internal/repository"
)

// EstablishmentPostgres resolves establishments for tenant scoping. The
// table is owned by an external system; this repository only reads it.
type EstablishmentPostgres struct {
	db *sql.DB
}

// NewEstablishmentPostgres creates a new EstablishmentPostgres repository.
func NewEstablishmentPostgres(db *sql.DB) *EstablishmentPostgres {
	return &EstablishmentPostgres{db: db}
}

var _ repository.EstablishmentRepository = (*EstablishmentPostgres)(nil)

// FindByID returns the establishment with its company id.
func (r *EstablishmentPostgres) FindByID(ctx context.Context, id string) (*model.Establishment, error) {
	const q = `SELECT id, company_id FROM establishments WHERE id = $1`
	var e model.Establishment
	if err := r.db.QueryRowContext(ctx, q, id).Scan(&e.ID, &e.CompanyID); err != nil {
		return nil, err
	}
	return &e, nil
}
