package database

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campaignops/resource-factory/internal/models"
)

func setupMockDB(t *testing.T) (*ResourceRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewGeneratedResourceRepository(db), mock
}

func resourceRows(resources ...*models.ResourceDetails) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "tenant_id", "type", "hierarchy_type", "file_store_id", "processed_file_store_id",
		"status", "action", "campaign_id", "reference_id", "additional_details",
		"created_by", "created_time", "last_modified_by", "last_modified_time",
	})
	for _, r := range resources {
		rows.AddRow(
			r.ID, r.TenantID, r.Type, r.HierarchyType, r.FileStoreID, r.ProcessedFileStoreID,
			r.Status, r.Action, r.CampaignID, r.ReferenceID, nil,
			r.AuditDetails.CreatedBy, r.AuditDetails.CreatedTime,
			r.AuditDetails.LastModifiedBy, r.AuditDetails.LastModifiedTime,
		)
	}
	return rows
}

func TestResourceCreate(t *testing.T) {
	repo, mock := setupMockDB(t)

	resource := &models.ResourceDetails{
		ID:            "res-1",
		TenantID:      "mz",
		Type:          models.TypeBoundary,
		HierarchyType: "HEALTH",
		Status:        models.StatusInProgress,
		AuditDetails:  models.AuditDetails{CreatedBy: "user-1", CreatedTime: 1000, LastModifiedBy: "user-1", LastModifiedTime: 1000},
	}

	mock.ExpectExec(`INSERT INTO generated_resources`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), resource)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResourceUpdateStatus(t *testing.T) {
	t.Run("AdvancesNonTerminalRow", func(t *testing.T) {
		repo, mock := setupMockDB(t)
		mock.ExpectExec(`UPDATE generated_resources`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.UpdateStatus(context.Background(), "res-1", StatusUpdate{
			Status: models.StatusCompleted, ModifiedBy: "user-1", ModifiedTime: 2000,
		})
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("TerminalRowIsNeverTouched", func(t *testing.T) {
		repo, mock := setupMockDB(t)
		mock.ExpectExec(`UPDATE generated_resources`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT .+ FROM generated_resources WHERE id`).
			WithArgs("res-1").
			WillReturnRows(resourceRows(&models.ResourceDetails{
				ID: "res-1", TenantID: "mz", Type: models.TypeBoundary,
				Status: models.StatusFailed,
			}))

		err := repo.UpdateStatus(context.Background(), "res-1", StatusUpdate{
			Status: models.StatusCompleted, ModifiedBy: "user-1", ModifiedTime: 2000,
		})
		assert.ErrorIs(t, err, ErrTerminalState)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("MissingRowIsNotFound", func(t *testing.T) {
		repo, mock := setupMockDB(t)
		mock.ExpectExec(`UPDATE generated_resources`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT .+ FROM generated_resources WHERE id`).
			WithArgs("missing").
			WillReturnRows(resourceRows())

		err := repo.UpdateStatus(context.Background(), "missing", StatusUpdate{
			Status: models.StatusCompleted, ModifiedBy: "user-1", ModifiedTime: 2000,
		})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestResourceGetByID(t *testing.T) {
	t.Run("DecodesRow", func(t *testing.T) {
		repo, mock := setupMockDB(t)
		rows := sqlmock.NewRows([]string{
			"id", "tenant_id", "type", "hierarchy_type", "file_store_id", "processed_file_store_id",
			"status", "action", "campaign_id", "reference_id", "additional_details",
			"created_by", "created_time", "last_modified_by", "last_modified_time",
		}).AddRow(
			"res-1", "mz", models.TypeBoundary, "HEALTH", "file-1", nil,
			models.StatusCompleted, models.ActionCreate, nil, nil,
			[]byte(`{"boundariesCreated": 3}`),
			"user-1", int64(1000), "user-1", int64(2000),
		)
		mock.ExpectQuery(`SELECT .+ FROM generated_resources WHERE id`).
			WithArgs("res-1").
			WillReturnRows(rows)

		got, err := repo.GetByID(context.Background(), "res-1")
		require.NoError(t, err)
		assert.Equal(t, "HEALTH", got.HierarchyType)
		assert.Equal(t, "file-1", got.FileStoreID)
		assert.Empty(t, got.ProcessedFileStoreID)
		assert.Equal(t, float64(3), got.AdditionalDetails["boundariesCreated"])
	})

	t.Run("MissingRowIsNotFound", func(t *testing.T) {
		repo, mock := setupMockDB(t)
		mock.ExpectQuery(`SELECT .+ FROM generated_resources WHERE id`).
			WithArgs("missing").
			WillReturnRows(resourceRows())

		got, err := repo.GetByID(context.Background(), "missing")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.Nil(t, got)
	})
}

func TestResourceSearch(t *testing.T) {
	repo, mock := setupMockDB(t)
	rows := resourceRows(
		&models.ResourceDetails{ID: "res-2", TenantID: "mz", Type: models.TypeBoundary, Status: models.StatusCompleted},
		&models.ResourceDetails{ID: "res-1", TenantID: "mz", Type: models.TypeBoundary, Status: models.StatusCompleted},
	)
	mock.ExpectQuery(`SELECT .+ FROM generated_resources WHERE tenant_id = \$1 AND type = \$2 AND status = \$3 ORDER BY created_time DESC`).
		WithArgs("mz", models.TypeBoundary, models.StatusCompleted).
		WillReturnRows(rows)

	got, err := repo.Search(context.Background(), models.SearchCriteria{
		TenantID: "mz", Type: models.TypeBoundary, Status: models.StatusCompleted,
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "res-2", got[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResourceFindLatest(t *testing.T) {
	repo, mock := setupMockDB(t)
	mock.ExpectQuery(`SELECT .+ FROM generated_resources\s+WHERE tenant_id = \$1 AND type = \$2 AND hierarchy_type = \$3`).
		WithArgs("mz", models.TypeBoundary, "HEALTH").
		WillReturnRows(resourceRows(&models.ResourceDetails{
			ID: "res-9", TenantID: "mz", Type: models.TypeBoundary, HierarchyType: "HEALTH",
			Status: models.StatusInProgress,
		}))

	got, err := repo.FindLatest(context.Background(), "mz", models.TypeBoundary, "HEALTH")
	require.NoError(t, err)
	assert.Equal(t, "res-9", got.ID)
}

func TestResourceExpireStale(t *testing.T) {
	repo, mock := setupMockDB(t)
	mock.ExpectExec(`UPDATE generated_resources`).
		WithArgs("mz", models.TypeBoundary, "HEALTH", models.StatusExpired, "user-1", int64(3000), models.StatusInProgress).
		WillReturnResult(sqlmock.NewResult(0, 2))

	err := repo.ExpireStale(context.Background(), "mz", models.TypeBoundary, "HEALTH", "user-1", 3000)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
