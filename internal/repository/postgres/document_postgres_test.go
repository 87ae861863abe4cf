package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"docvault/internal/model"
	"docvault/internal/repository"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var docColumns = []string{
	"id", "name", "type_id", "establishment_id", "company_id", "status", "current_version_id", "created_at", "updated_at",
}

var docWithVersionColumns = append(docColumns,
	"v_id", "v_document_id", "v_version_number", "v_filename", "v_mime_type", "v_size", "v_sha256", "v_storage_path", "v_uploaded_by_user_id", "v_version_status", "v_activated_at", "v_created_at",
)

func TestDocumentPostgres_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewDocumentPostgres(db)
	ctx := context.Background()

	now := time.Now().UTC()
	doc := &model.Document{
		ID:              "doc-1",
		Name:            "PGR",
		TypeID:          "type-1",
		EstablishmentID: "est-1",
		CompanyID:       "co-1",
		Status:          model.DocumentStatusDraft,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	rows := sqlmock.NewRows(docColumns).
		AddRow(doc.ID, doc.Name, doc.TypeID, doc.EstablishmentID, doc.CompanyID, string(doc.Status), nil, now, now)

	mock.ExpectQuery("INSERT INTO documents").
		WithArgs(doc.ID, doc.Name, doc.TypeID, doc.EstablishmentID, doc.CompanyID, doc.Status, doc.CreatedAt, doc.UpdatedAt).
		WillReturnRows(rows)

	result, err := repo.Create(ctx, doc)

	assert.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, doc.ID, result.ID)
	assert.Equal(t, model.DocumentStatusDraft, result.Status)
	assert.Nil(t, result.CurrentVersionID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentPostgres_FindByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewDocumentPostgres(db)
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("with current version", func(t *testing.T) {
		rows := sqlmock.NewRows(docWithVersionColumns).
			AddRow("doc-1", "PGR", "type-1", "est-1", "co-1", "PUBLISHED", "ver-2", now, now,
				"ver-2", "doc-1", 2, "pgr-v2.pdf", "application/pdf", 2048, "abc", "uploads/co-1/est-1/doc-1/ver-2/pgr-v2.pdf", nil, "PUBLISHED", now, now)

		mock.ExpectQuery("SELECT(.|\n)*FROM documents d(.|\n)*LEFT JOIN document_versions").
			WithArgs("doc-1").
			WillReturnRows(rows)

		d, err := repo.FindByID(ctx, "doc-1")
		require.NoError(t, err)
		require.NotNil(t, d.CurrentVersion)
		assert.Equal(t, 2, d.CurrentVersion.VersionNumber)
		assert.Equal(t, model.DocumentStatusPublished, d.Status)
	})

	t.Run("draft without version", func(t *testing.T) {
		rows := sqlmock.NewRows(docWithVersionColumns).
			AddRow("doc-2", "PCMSO", "type-1", "est-1", "co-1", "DRAFT", nil, now, now,
				nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil)

		mock.ExpectQuery("SELECT(.|\n)*FROM documents d(.|\n)*LEFT JOIN document_versions").
			WithArgs("doc-2").
			WillReturnRows(rows)

		d, err := repo.FindByID(ctx, "doc-2")
		require.NoError(t, err)
		assert.Nil(t, d.CurrentVersion)
		assert.Nil(t, d.CurrentVersionID)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT(.|\n)*FROM documents d").
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		_, err := repo.FindByID(ctx, "missing")
		assert.ErrorIs(t, err, sql.ErrNoRows)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentPostgres_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewDocumentPostgres(db)
	ctx := context.Background()
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM documents").
		WithArgs("est-1", "pgr").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	rows := sqlmock.NewRows(docWithVersionColumns).
		AddRow("doc-1", "PGR", "type-1", "est-1", "co-1", "PUBLISHED", "ver-1", now, now,
			"ver-1", "doc-1", 1, "pgr.pdf", "application/pdf", 10, "ff", "uploads/co-1/est-1/doc-1/ver-1/pgr.pdf", nil, "PUBLISHED", now, now)

	mock.ExpectQuery("SELECT(.|\n)*FROM documents d(.|\n)*LIMIT \\$3 OFFSET \\$4").
		WithArgs("est-1", "pgr", 10, 0).
		WillReturnRows(rows)

	res, err := repo.List(ctx, "est-1", repository.ListQuery{Limit: 10, Offset: 0, Search: "pgr"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)
	require.Len(t, res.Items, 1)
	require.NotNil(t, res.Items[0].CurrentVersion)
	assert.Equal(t, 1, res.Items[0].CurrentVersion.VersionNumber)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentPostgres_Update(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewDocumentPostgres(db)
	ctx := context.Background()
	now := time.Now().UTC()

	name := "PGR 2026"
	rows := sqlmock.NewRows(docColumns).
		AddRow("doc-1", name, "type-1", "est-1", "co-1", "PUBLISHED", "ver-1", now, now)

	mock.ExpectQuery("UPDATE documents").
		WithArgs("doc-1", &name, nil, nil, sqlmock.AnyArg()).
		WillReturnRows(rows)

	d, err := repo.Update(ctx, "doc-1", repository.DocumentUpdate{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, name, d.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentPostgres_DeleteWithVersions(t *testing.T) {
	ctx := context.Background()

	t.Run("collects paths and commits", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		repo := NewDocumentPostgres(db)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT storage_path FROM document_versions").
			WithArgs("doc-1").
			WillReturnRows(sqlmock.NewRows([]string{"storage_path"}).
				AddRow("uploads/c/e/doc-1/v1/a.pdf").
				AddRow("uploads/c/e/doc-1/v2/b.pdf"))
		mock.ExpectExec("DELETE FROM document_versions").
			WithArgs("doc-1").
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectExec("DELETE FROM documents").
			WithArgs("doc-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		paths, err := repo.DeleteWithVersions(ctx, "doc-1")
		require.NoError(t, err)
		assert.Equal(t, []string{"uploads/c/e/doc-1/v1/a.pdf", "uploads/c/e/doc-1/v2/b.pdf"}, paths)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing document rolls back", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		repo := NewDocumentPostgres(db)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT storage_path FROM document_versions").
			WithArgs("missing").
			WillReturnRows(sqlmock.NewRows([]string{"storage_path"}))
		mock.ExpectExec("DELETE FROM document_versions").
			WithArgs("missing").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("DELETE FROM documents").
			WithArgs("missing").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		_, err = repo.DeleteWithVersions(ctx, "missing")
		assert.ErrorIs(t, err, sql.ErrNoRows)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failure mid-delete rolls back everything", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		repo := NewDocumentPostgres(db)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT storage_path FROM document_versions").
			WithArgs("doc-1").
			WillReturnRows(sqlmock.NewRows([]string{"storage_path"}).AddRow("uploads/c/e/doc-1/v1/a.pdf"))
		mock.ExpectExec("DELETE FROM document_versions").
			WithArgs("doc-1").
			WillReturnError(errors.New("connection reset"))
		mock.ExpectRollback()

		_, err = repo.DeleteWithVersions(ctx, "doc-1")
		assert.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
