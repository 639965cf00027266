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

// CampaignRepository persists project-type campaign entities.
type CampaignRepository struct {
	db *sql.DB
}

// NewCampaignRepository creates a campaign repository.
func NewCampaignRepository(db *sql.DB) *CampaignRepository {
	return &CampaignRepository{db: db}
}

const campaignColumns = `id, tenant_id, name, project_type, hierarchy_type, status,
	boundaries, delivery_rules, additional_details,
	created_by, created_time, last_modified_by, last_modified_time`

// Create inserts a campaign row.
func (r *CampaignRepository) Create(ctx context.Context, campaign *models.CampaignDetails) error {
	query := fmt.Sprintf(`
		INSERT INTO campaigns (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`, campaignColumns)

	boundaries, deliveryRules, details, err := encodeCampaignJSON(campaign)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query,
		campaign.ID, campaign.TenantID, campaign.Name, campaign.ProjectType,
		nullable(campaign.HierarchyType), campaign.Status,
		boundaries, deliveryRules, details,
		campaign.AuditDetails.CreatedBy, campaign.AuditDetails.CreatedTime,
		campaign.AuditDetails.LastModifiedBy, campaign.AuditDetails.LastModifiedTime,
	)
	if err != nil {
		return fmt.Errorf("failed to insert campaign %s: %w", campaign.ID, err)
	}
	return nil
}

// Update replaces the mutable fields of a campaign row.
func (r *CampaignRepository) Update(ctx context.Context, campaign *models.CampaignDetails) error {
	boundaries, deliveryRules, details, err := encodeCampaignJSON(campaign)
	if err != nil {
		return err
	}

	query := `
		UPDATE campaigns
		SET name = $2, project_type = $3, hierarchy_type = $4, status = $5,
		    boundaries = $6, delivery_rules = $7, additional_details = $8,
		    last_modified_by = $9, last_modified_time = $10
		WHERE id = $1 AND tenant_id = $11`

	result, err := r.db.ExecContext(ctx, query,
		campaign.ID, campaign.Name, campaign.ProjectType,
		nullable(campaign.HierarchyType), campaign.Status,
		boundaries, deliveryRules, details,
		campaign.AuditDetails.LastModifiedBy, campaign.AuditDetails.LastModifiedTime,
		campaign.TenantID,
	)
	if err != nil {
		return fmt.Errorf("failed to update campaign %s: %w", campaign.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows for campaign %s: %w", campaign.ID, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByID fetches one campaign row.
func (r *CampaignRepository) GetByID(ctx context.Context, tenantID, id string) (*models.CampaignDetails, error) {
	query := fmt.Sprintf(`SELECT %s FROM campaigns WHERE id = $1 AND tenant_id = $2`, campaignColumns)
	row := r.db.QueryRowContext(ctx, query, id, tenantID)

	campaign, err := scanCampaign(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch campaign %s: %w", id, err)
	}
	return campaign, nil
}

// Search returns campaign rows matching the criteria, newest first.
func (r *CampaignRepository) Search(ctx context.Context, criteria models.CampaignSearchCriteria) ([]*models.CampaignDetails, error) {
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
	if criteria.Status != "" {
		args = append(args, criteria.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if criteria.Name != "" {
		args = append(args, "%"+criteria.Name+"%")
		conditions = append(conditions, fmt.Sprintf("name ILIKE $%d", len(args)))
	}

	query := fmt.Sprintf(`SELECT %s FROM campaigns WHERE %s ORDER BY created_time DESC`,
		campaignColumns, strings.Join(conditions, " AND "))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search campaigns: %w", err)
	}
	defer rows.Close()

	var campaigns []*models.CampaignDetails
	for rows.Next() {
		campaign, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan campaign row: %w", err)
		}
		campaigns = append(campaigns, campaign)
	}
	return campaigns, rows.Err()
}

func scanCampaign(row scanner) (*models.CampaignDetails, error) {
	var (
		campaign      models.CampaignDetails
		hierarchyType sql.NullString
		boundaries    []byte
		deliveryRules []byte
		details       []byte
	)

	err := row.Scan(
		&campaign.ID, &campaign.TenantID, &campaign.Name, &campaign.ProjectType,
		&hierarchyType, &campaign.Status,
		&boundaries, &deliveryRules, &details,
		&campaign.AuditDetails.CreatedBy, &campaign.AuditDetails.CreatedTime,
		&campaign.AuditDetails.LastModifiedBy, &campaign.AuditDetails.LastModifiedTime,
	)
	if err != nil {
		return nil, err
	}

	campaign.HierarchyType = hierarchyType.String
	if len(boundaries) > 0 {
		if err := json.Unmarshal(boundaries, &campaign.Boundaries); err != nil {
			return nil, fmt.Errorf("failed to decode campaign boundaries: %w", err)
		}
	}
	if len(deliveryRules) > 0 {
		if err := json.Unmarshal(deliveryRules, &campaign.DeliveryRules); err != nil {
			return nil, fmt.Errorf("failed to decode delivery rules: %w", err)
		}
	}
	if len(details) > 0 {
		if err := json.Unmarshal(details, &campaign.AdditionalDetails); err != nil {
			return nil, fmt.Errorf("failed to decode additional details: %w", err)
		}
	}
	return &campaign, nil
}

func encodeCampaignJSON(campaign *models.CampaignDetails) (interface{}, interface{}, interface{}, error) {
	boundaries, err := json.Marshal(campaign.Boundaries)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to encode campaign boundaries: %w", err)
	}
	deliveryRules, err := json.Marshal(campaign.DeliveryRules)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to encode delivery rules: %w", err)
	}
	details, err := marshalDetails(campaign.AdditionalDetails)
	if err != nil {
		return nil, nil, nil, err
	}
	return boundaries, deliveryRules, details, nil
}
