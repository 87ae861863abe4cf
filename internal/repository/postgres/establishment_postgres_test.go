package postgres

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstablishmentPostgres_FindByID(t *testing.T) {
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		repo := NewEstablishmentPostgres(db)

		mock.ExpectQuery("SELECT id, company_id FROM establishments").
			WithArgs("est-1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "company_id"}).AddRow("est-1", "co-7"))

		est, err := repo.FindByID(ctx, "est-1")
		require.NoError(t, err)
		assert.Equal(t, "co-7", est.CompanyID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		repo := NewEstablishmentPostgres(db)

		mock.ExpectQuery("SELECT id, company_id FROM establishments").
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		_, err = repo.FindByID(ctx, "missing")
		assert.ErrorIs(t, err, sql.ErrNoRows)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
