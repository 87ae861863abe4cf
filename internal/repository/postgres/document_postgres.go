package postgres

import (
	"context"
	"database/sql"
	"time"

	"docvault/internal/model"
	"docvault/internal/repository"
)

// DocumentPostgres is a PostgreSQL implementation of
// repository.DocumentRepository. It uses database/sql with parameterized
// queries and contains no business logic.
type DocumentPostgres struct {
	db *sql.DB
}

// NewDocumentPostgres creates a new DocumentPostgres repository.
func NewDocumentPostgres(db *sql.DB) *DocumentPostgres {
	return &DocumentPostgres{db: db}
}

var _ repository.DocumentRepository = (*DocumentPostgres)(nil)

const documentWithVersionColumns = `
		d.id, d.name, d.type_id, d.establishment_id, d.company_id, d.status, d.current_version_id, d.created_at, d.updated_at,
		v.id, v.document_id, v.version_number, v.filename, v.mime_type, v.size, v.sha256, v.storage_path, v.uploaded_by_user_id, v.version_status, v.activated_at, v.created_at`

// scanDocumentWithVersion scans one row of documentWithVersionColumns. The
// version columns are nullable because the join is on current_version_id,
// which is unset for DRAFT documents.
func scanDocumentWithVersion(row interface{ Scan(...any) error }) (*model.Document, error) {
	var d model.Document
	var (
		vID          sql.NullString
		vDocID       sql.NullString
		vNumber      sql.NullInt64
		vFilename    sql.NullString
		vMime        sql.NullString
		vSize        sql.NullInt64
		vSHA         sql.NullString
		vPath        sql.NullString
		vUploadedBy  sql.NullString
		vStatus      sql.NullString
		vActivatedAt sql.NullTime
		vCreatedAt   sql.NullTime
	)
	if err := row.Scan(
		&d.ID, &d.Name, &d.TypeID, &d.EstablishmentID, &d.CompanyID, &d.Status, &d.CurrentVersionID, &d.CreatedAt, &d.UpdatedAt,
		&vID, &vDocID, &vNumber, &vFilename, &vMime, &vSize, &vSHA, &vPath, &vUploadedBy, &vStatus, &vActivatedAt, &vCreatedAt,
	); err != nil {
		return nil, err
	}
	if vID.Valid {
		ver := model.DocumentVersion{
			ID:            vID.String,
			DocumentID:    vDocID.String,
			VersionNumber: int(vNumber.Int64),
			Filename:      vFilename.String,
			MimeType:      vMime.String,
			Size:          vSize.Int64,
			SHA256:        vSHA.String,
			StoragePath:   vPath.String,
			Status:        model.VersionStatus(vStatus.String),
			ActivatedAt:   vActivatedAt.Time,
			CreatedAt:     vCreatedAt.Time,
		}
		if vUploadedBy.Valid {
			ver.UploadedByUserID = &vUploadedBy.String
		}
		d.CurrentVersion = &ver
	}
	return &d, nil
}

// Create inserts a new document row and returns the stored record.
func (r *DocumentPostgres) Create(ctx context.Context, doc *model.Document) (*model.Document, error) {
	const q = `
		INSERT INTO documents (id, name, type_id, establishment_id, company_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, name, type_id, establishment_id, company_id, status, current_version_id, created_at, updated_at
	`
	row := r.db.QueryRowContext(ctx, q,
		doc.ID,
		doc.Name,
		doc.TypeID,
		doc.EstablishmentID,
		doc.CompanyID,
		doc.Status,
		doc.CreatedAt,
		doc.UpdatedAt,
	)
	var out model.Document
	if err := row.Scan(
		&out.ID,
		&out.Name,
		&out.TypeID,
		&out.EstablishmentID,
		&out.CompanyID,
		&out.Status,
		&out.CurrentVersionID,
		&out.CreatedAt,
		&out.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &out, nil
}

// FindByID fetches a single document with its current version attached.
func (r *DocumentPostgres) FindByID(ctx context.Context, id string) (*model.Document, error) {
	const q = `
		SELECT` + documentWithVersionColumns + `
		FROM documents d
		LEFT JOIN document_versions v ON v.id = d.current_version_id
		WHERE d.id = $1
	`
	return scanDocumentWithVersion(r.db.QueryRowContext(ctx, q, id))
}

// FindByIDInEstablishment fetches the document only when it belongs to the
// given establishment; otherwise sql.ErrNoRows.
func (r *DocumentPostgres) FindByIDInEstablishment(ctx context.Context, establishmentID, id string) (*model.Document, error) {
	const q = `
		SELECT` + documentWithVersionColumns + `
		FROM documents d
		LEFT JOIN document_versions v ON v.id = d.current_version_id
		WHERE d.id = $1 AND d.establishment_id = $2
	`
	return scanDocumentWithVersion(r.db.QueryRowContext(ctx, q, id, establishmentID))
}

// List returns documents for one establishment using LIMIT/OFFSET pagination
// and a total count. An empty search matches everything.
func (r *DocumentPostgres) List(ctx context.Context, establishmentID string, pq repository.ListQuery) (*repository.PageResult[model.Document], error) {
	const qCount = `
		SELECT COUNT(*) FROM documents
		WHERE establishment_id = $1 AND ($2 = '' OR name ILIKE '%' || $2 || '%')
	`
	var total int
	if err := r.db.QueryRowContext(ctx, qCount, establishmentID, pq.Search).Scan(&total); err != nil {
		return nil, err
	}

	const qList = `
		SELECT` + documentWithVersionColumns + `
		FROM documents d
		LEFT JOIN document_versions v ON v.id = d.current_version_id
		WHERE d.establishment_id = $1 AND ($2 = '' OR d.name ILIKE '%' || $2 || '%')
		ORDER BY d.created_at DESC, d.id DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.db.QueryContext(ctx, qList, establishmentID, pq.Search, pq.Limit, pq.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Document, 0)
	for rows.Next() {
		d, err := scanDocumentWithVersion(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &repository.PageResult[model.Document]{
		Items: items,
		Total: total,
	}, nil
}

// Update applies a partial update; nil fields keep their current value.
func (r *DocumentPostgres) Update(ctx context.Context, id string, upd repository.DocumentUpdate) (*model.Document, error) {
	const q = `
		UPDATE documents
		SET name = COALESCE($2, name),
		    type_id = COALESCE($3, type_id),
		    status = COALESCE($4, status),
		    updated_at = $5
		WHERE id = $1
		RETURNING id, name, type_id, establishment_id, company_id, status, current_version_id, created_at, updated_at
	`
	var status *string
	if upd.Status != nil {
		s := string(*upd.Status)
		status = &s
	}
	row := r.db.QueryRowContext(ctx, q, id, upd.Name, upd.TypeID, status, time.Now().UTC())
	var out model.Document
	if err := row.Scan(
		&out.ID,
		&out.Name,
		&out.TypeID,
		&out.EstablishmentID,
		&out.CompanyID,
		&out.Status,
		&out.CurrentVersionID,
		&out.CreatedAt,
		&out.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteWithVersions removes the document and all of its version rows in one
// transaction and returns the orphaned storage paths. All statements succeed
// or none do; sql.ErrNoRows if the document does not exist.
func (r *DocumentPostgres) DeleteWithVersions(ctx context.Context, id string) ([]string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	const qPaths = `SELECT storage_path FROM document_versions WHERE document_id = $1 AND storage_path <> ''`
	rows, err := tx.QueryContext(ctx, qPaths, id)
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0)
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			rows.Close()
			return nil, err
		}
		paths = append(paths, p)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if _, err := tx.ExecContext(ctx, `DELETE FROM document_versions WHERE document_id = $1`, id); err != nil {
		return nil, err
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, sql.ErrNoRows
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return paths, nil
}
