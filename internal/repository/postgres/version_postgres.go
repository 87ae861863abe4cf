package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"docvault/internal/model"
	"docvault/internal/repository"
)

// versionNumberConflictRetries bounds how often an insert is replayed when a
// concurrent upload claims the same version number first.
const versionNumberConflictRetries = 3

// uniqueViolation is the PostgreSQL SQLSTATE for unique constraint errors.
const uniqueViolation = "23505"

// versionNumberConstraint guards (document_id, version_number).
const versionNumberConstraint = "document_versions_document_id_version_number_key"

// VersionPostgres is a PostgreSQL implementation of
// repository.VersionRepository. Version-number allocation happens inside the
// insert transaction and is serialized per document by the unique constraint
// on (document_id, version_number): losers of a race get a unique violation
// and replay the allocation.
type VersionPostgres struct {
	db *sql.DB
}

// NewVersionPostgres creates a new VersionPostgres repository.
func NewVersionPostgres(db *sql.DB) *VersionPostgres {
	return &VersionPostgres{db: db}
}

var _ repository.VersionRepository = (*VersionPostgres)(nil)

const versionColumns = `
		id, document_id, version_number, filename, mime_type, size, sha256, storage_path, uploaded_by_user_id, version_status, activated_at, created_at`

func scanVersion(row interface{ Scan(...any) error }) (*model.DocumentVersion, error) {
	var v model.DocumentVersion
	if err := row.Scan(
		&v.ID, &v.DocumentID, &v.VersionNumber, &v.Filename, &v.MimeType, &v.Size,
		&v.SHA256, &v.StoragePath, &v.UploadedByUserID, &v.Status, &v.ActivatedAt, &v.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &v, nil
}

// isVersionNumberConflict reports whether err is a unique violation on the
// per-document version number.
func isVersionNumberConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return false
	}
	return pgErr.ConstraintName == "" || pgErr.ConstraintName == versionNumberConstraint
}

// CreateWithNextNumber inserts the version with the next number for its
// document and updates the parent's current version pointer, all in one
// transaction. Replayed on version-number conflicts.
func (r *VersionPostgres) CreateWithNextNumber(ctx context.Context, nv repository.NewVersion) (*model.DocumentVersion, error) {
	var (
		out *model.DocumentVersion
		err error
	)
	for attempt := 0; attempt <= versionNumberConflictRetries; attempt++ {
		out, err = r.createOnce(ctx, nv)
		if err == nil || !isVersionNumberConflict(err) {
			return out, err
		}
	}
	return nil, err
}

func (r *VersionPostgres) createOnce(ctx context.Context, nv repository.NewVersion) (*model.DocumentVersion, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	const qNext = `SELECT COALESCE(MAX(version_number), 0) + 1 FROM document_versions WHERE document_id = $1`
	var next int
	if err := tx.QueryRowContext(ctx, qNext, nv.DocumentID).Scan(&next); err != nil {
		return nil, err
	}

	const qInsert = `
		INSERT INTO document_versions (id, document_id, version_number, filename, mime_type, size, sha256, storage_path, uploaded_by_user_id, version_status, activated_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING` + versionColumns + `
	`
	v, err := scanVersion(tx.QueryRowContext(ctx, qInsert,
		nv.ID,
		nv.DocumentID,
		next,
		nv.Filename,
		nv.MimeType,
		nv.Size,
		nv.SHA256,
		nv.StoragePath,
		nv.UploadedByUserID,
		model.VersionStatusPublished,
		nv.ActivatedAt,
		nv.CreatedAt,
	))
	if err != nil {
		return nil, err
	}

	const qDoc = `UPDATE documents SET current_version_id = $1, status = $2, updated_at = $3 WHERE id = $4`
	res, err := tx.ExecContext(ctx, qDoc, v.ID, model.DocumentStatusPublished, nv.CreatedAt, nv.DocumentID)
	if err != nil {
		return nil, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, sql.ErrNoRows
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return v, nil
}

// FindByID fetches a version scoped to its document; sql.ErrNoRows when the
// version is absent or belongs to another document.
func (r *VersionPostgres) FindByID(ctx context.Context, documentID, versionID string) (*model.DocumentVersion, error) {
	const q = `
		SELECT` + versionColumns + `
		FROM document_versions
		WHERE id = $1 AND document_id = $2
	`
	return scanVersion(r.db.QueryRowContext(ctx, q, versionID, documentID))
}

// ListByDocument returns versions newest-number-first with uploader identity
// projected (id, name, email only).
func (r *VersionPostgres) ListByDocument(ctx context.Context, documentID string) ([]model.DocumentVersion, error) {
	const q = `
		SELECT v.id, v.document_id, v.version_number, v.filename, v.mime_type, v.size, v.sha256, v.storage_path, v.uploaded_by_user_id, v.version_status, v.activated_at, v.created_at,
		       u.id, u.name, u.email
		FROM document_versions v
		LEFT JOIN users u ON u.id = v.uploaded_by_user_id
		WHERE v.document_id = $1
		ORDER BY v.version_number DESC
	`
	rows, err := r.db.QueryContext(ctx, q, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.DocumentVersion, 0)
	for rows.Next() {
		var v model.DocumentVersion
		var uID, uName, uEmail sql.NullString
		if err := rows.Scan(
			&v.ID, &v.DocumentID, &v.VersionNumber, &v.Filename, &v.MimeType, &v.Size,
			&v.SHA256, &v.StoragePath, &v.UploadedByUserID, &v.Status, &v.ActivatedAt, &v.CreatedAt,
			&uID, &uName, &uEmail,
		); err != nil {
			return nil, err
		}
		if uID.Valid {
			v.UploadedBy = &model.UserRef{ID: uID.String, Name: uName.String, Email: uEmail.String}
		}
		items = append(items, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// Activate re-points the document at versionID and re-stamps its activation
// time in one transaction. Calling it twice with the same arguments yields
// the same end state.
func (r *VersionPostgres) Activate(ctx context.Context, documentID, versionID string, activatedAt time.Time, archivePrevious bool) (*model.DocumentVersion, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	const qFind = `
		SELECT` + versionColumns + `
		FROM document_versions
		WHERE id = $1 AND document_id = $2
	`
	v, err := scanVersion(tx.QueryRowContext(ctx, qFind, versionID, documentID))
	if err != nil {
		return nil, err
	}

	if archivePrevious {
		const qArchive = `
			UPDATE document_versions v
			SET version_status = $1
			FROM documents d
			WHERE d.id = $2 AND v.id = d.current_version_id AND v.id <> $3
		`
		if _, err := tx.ExecContext(ctx, qArchive, model.VersionStatusArchived, documentID, versionID); err != nil {
			return nil, err
		}
	}

	const qVersion = `UPDATE document_versions SET version_status = $1, activated_at = $2 WHERE id = $3`
	if _, err := tx.ExecContext(ctx, qVersion, model.VersionStatusPublished, activatedAt, versionID); err != nil {
		return nil, err
	}

	const qDoc = `UPDATE documents SET current_version_id = $1, status = $2, updated_at = $3 WHERE id = $4`
	if _, err := tx.ExecContext(ctx, qDoc, versionID, model.DocumentStatusPublished, activatedAt, documentID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	v.Status = model.VersionStatusPublished
	v.ActivatedAt = activatedAt
	return v, nil
}

// DeleteAndRestore removes a version row and puts the parent document back to
// its pre-insert pointer and status. Compensation for a failed blob promote.
func (r *VersionPostgres) DeleteAndRestore(ctx context.Context, documentID, versionID string, prevCurrentVersionID *string, prevStatus model.DocumentStatus) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const qDoc = `UPDATE documents SET current_version_id = $1, status = $2, updated_at = $3 WHERE id = $4`
	if _, err := tx.ExecContext(ctx, qDoc, prevCurrentVersionID, prevStatus, time.Now().UTC(), documentID); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM document_versions WHERE id = $1`, versionID); err != nil {
		return err
	}

	return tx.Commit()
}
