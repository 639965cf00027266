package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/campaignops/resource-factory/internal/models"
)

// ErrTerminalState is returned when a status update targets a row already
// in a terminal state. Terminal states are sticky.
var ErrTerminalState = errors.New("resource is already in a terminal state")

// ErrNotFound is returned when a row lookup matches nothing.
var ErrNotFound = errors.New("resource not found")

const (
	GeneratedResourceTable = "generated_resources"
	ProcessedResourceTable = "processed_resources"
)

var terminalStatuses = []string{
	models.StatusCompleted,
	models.StatusFailed,
	models.StatusInvalid,
	models.StatusExpired,
}

// ResourceRepository persists resource job rows. The relational store is
// the single source of truth for job state; caches never override it.
type ResourceRepository struct {
	db    *sql.DB
	table string
}

// NewGeneratedResourceRepository stores template generation jobs.
func NewGeneratedResourceRepository(db *sql.DB) *ResourceRepository {
	return &ResourceRepository{db: db, table: GeneratedResourceTable}
}

// NewProcessedResourceRepository stores upload processing jobs.
func NewProcessedResourceRepository(db *sql.DB) *ResourceRepository {
	return &ResourceRepository{db: db, table: ProcessedResourceTable}
}

const resourceColumns = `id, tenant_id, type, hierarchy_type, file_store_id, processed_file_store_id,
	status, action, campaign_id, reference_id, additional_details,
	created_by, created_time, last_modified_by, last_modified_time`

// Create inserts a new job row.
func (r *ResourceRepository) Create(ctx context.Context, resource *models.ResourceDetails) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		r.table, resourceColumns)

	details, err := marshalDetails(resource.AdditionalDetails)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query,
		resource.ID, resource.TenantID, resource.Type, nullable(resource.HierarchyType),
		nullable(resource.FileStoreID), nullable(resource.ProcessedFileStoreID),
		resource.Status, nullable(resource.Action), nullable(resource.CampaignID),
		nullable(resource.ReferenceID), details,
		resource.AuditDetails.CreatedBy, resource.AuditDetails.CreatedTime,
		resource.AuditDetails.LastModifiedBy, resource.AuditDetails.LastModifiedTime,
	)
	if err != nil {
		return fmt.Errorf("failed to insert resource %s: %w", resource.ID, err)
	}
	return nil
}

// StatusUpdate mutates one job row as processing advances.
type StatusUpdate struct {
	Status               string
	ProcessedFileStoreID string
	AdditionalDetails    map[string]interface{}
	ModifiedBy           string
	ModifiedTime         int64
}

// UpdateStatus advances a job's status. Rows already in a terminal state
// are never touched; attempting it returns ErrTerminalState.
func (r *ResourceRepository) UpdateStatus(ctx context.Context, id string, update StatusUpdate) error {
	details, err := marshalDetails(update.AdditionalDetails)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET status = $2,
		    processed_file_store_id = COALESCE($3, processed_file_store_id),
		    additional_details = COALESCE($4, additional_details),
		    last_modified_by = $5,
		    last_modified_time = $6
		WHERE id = $1 AND status NOT IN (%s)`,
		r.table, placeholderList(7, len(terminalStatuses)))

	args := []interface{}{
		id, update.Status, nullable(update.ProcessedFileStoreID), details,
		update.ModifiedBy, update.ModifiedTime,
	}
	for _, s := range terminalStatuses {
		args = append(args, s)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update status of resource %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows for resource %s: %w", id, err)
	}
	if affected == 0 {
		existing, err := r.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if models.IsTerminalStatus(existing.Status) {
			return ErrTerminalState
		}
		return ErrNotFound
	}
	return nil
}

// UpdateFileStoreID records the generated artifact on a job row.
func (r *ResourceRepository) UpdateFileStoreID(ctx context.Context, id, fileStoreID string) error {
	query := fmt.Sprintf(`UPDATE %s SET file_store_id = $2 WHERE id = $1`, r.table)
	if _, err := r.db.ExecContext(ctx, query, id, fileStoreID); err != nil {
		return fmt.Errorf("failed to update file store id of resource %s: %w", id, err)
	}
	return nil
}

// GetByID fetches one job row.
func (r *ResourceRepository) GetByID(ctx context.Context, id string) (*models.ResourceDetails, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, resourceColumns, r.table)
	row := r.db.QueryRowContext(ctx, query, id)

	resource, err := scanResource(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch resource %s: %w", id, err)
	}
	return resource, nil
}

// Search returns job rows matching the criteria, newest first.
func (r *ResourceRepository) Search(ctx context.Context, criteria models.SearchCriteria) ([]*models.ResourceDetails, error) {
	conditions := []string{"tenant_id = $1"}
	args := []interface{}{criteria.TenantID}

	if len(criteria.IDs) > 0 {
		placeholders := make([]string, len(criteria.IDs))
		for i, id := range criteria.IDs {
			args = append(args, id)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("id IN (%s)", strings.Join(placeholders, ", ")))
	}
	if criteria.Type != "" {
		args = append(args, criteria.Type)
		conditions = append(conditions, fmt.Sprintf("type = $%d", len(args)))
	}
	if criteria.Status != "" {
		args = append(args, criteria.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s ORDER BY created_time DESC`,
		resourceColumns, r.table, strings.Join(conditions, " AND "))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search resources: %w", err)
	}
	defer rows.Close()

	var resources []*models.ResourceDetails
	for rows.Next() {
		resource, err := scanResource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan resource row: %w", err)
		}
		resources = append(resources, resource)
	}
	return resources, rows.Err()
}

// FindLatest returns the most recent job for a (tenant, type, hierarchy),
// used to reuse in-flight or recent jobs instead of spawning duplicates.
func (r *ResourceRepository) FindLatest(ctx context.Context, tenantID, resourceType, hierarchyType string) (*models.ResourceDetails, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE tenant_id = $1 AND type = $2 AND hierarchy_type = $3
		ORDER BY created_time DESC
		LIMIT 1`, resourceColumns, r.table)

	row := r.db.QueryRowContext(ctx, query, tenantID, resourceType, hierarchyType)
	resource, err := scanResource(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch latest resource: %w", err)
	}
	return resource, nil
}

// ExpireStale marks non-terminal generation rows for a (tenant, type,
// hierarchy) as expired, used by forceUpdate regeneration.
func (r *ResourceRepository) ExpireStale(ctx context.Context, tenantID, resourceType, hierarchyType, modifiedBy string, modifiedTime int64) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET status = $4, last_modified_by = $5, last_modified_time = $6
		WHERE tenant_id = $1 AND type = $2 AND hierarchy_type = $3 AND status = $7`,
		r.table)

	_, err := r.db.ExecContext(ctx, query,
		tenantID, resourceType, hierarchyType,
		models.StatusExpired, modifiedBy, modifiedTime, models.StatusInProgress,
	)
	if err != nil {
		return fmt.Errorf("failed to expire stale resources: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanResource(row scanner) (*models.ResourceDetails, error) {
	var (
		resource      models.ResourceDetails
		hierarchyType sql.NullString
		fileStoreID   sql.NullString
		processedID   sql.NullString
		action        sql.NullString
		campaignID    sql.NullString
		referenceID   sql.NullString
		details       []byte
	)

	err := row.Scan(
		&resource.ID, &resource.TenantID, &resource.Type, &hierarchyType,
		&fileStoreID, &processedID, &resource.Status, &action, &campaignID,
		&referenceID, &details,
		&resource.AuditDetails.CreatedBy, &resource.AuditDetails.CreatedTime,
		&resource.AuditDetails.LastModifiedBy, &resource.AuditDetails.LastModifiedTime,
	)
	if err != nil {
		return nil, err
	}

	resource.HierarchyType = hierarchyType.String
	resource.FileStoreID = fileStoreID.String
	resource.ProcessedFileStoreID = processedID.String
	resource.Action = action.String
	resource.CampaignID = campaignID.String
	resource.ReferenceID = referenceID.String

	if len(details) > 0 {
		if err := json.Unmarshal(details, &resource.AdditionalDetails); err != nil {
			return nil, fmt.Errorf("failed to decode additional details: %w", err)
		}
	}
	return &resource, nil
}

func marshalDetails(details map[string]interface{}) (interface{}, error) {
	if details == nil {
		return nil, nil
	}
	encoded, err := json.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("failed to encode additional details: %w", err)
	}
	return encoded, nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func placeholderList(start, count int) string {
	placeholders := make([]string, count)
	for i := 0; i < count; i++ {
		placeholders[i] = fmt.Sprintf("$%d", start+i)
	}
	return strings.Join(placeholders, ", ")
}
