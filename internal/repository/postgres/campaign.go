package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/promotion-service/internal/domain"
	"github.com/utafrali/promotion-service/internal/repository"
	"github.com/utafrali/promotion-service/pkg/database"
	apperrors "github.com/utafrali/promotion-service/pkg/errors"
)

// campaignColumns is the standard SELECT column list for campaigns.
const campaignColumns = `id, name, note, discount_type, value, active, status,
	category_id, start_date, end_date, created_at, updated_at`

// CampaignRepository implements repository.CampaignRepository using
// PostgreSQL. Campaign product links live in the campaign_products join
// table and are written in the same transaction as the campaign row.
type CampaignRepository struct {
	pool database.DBTX
}

// NewCampaignRepository creates a new PostgreSQL-backed campaign repository.
func NewCampaignRepository(pool database.DBTX) *CampaignRepository {
	return &CampaignRepository{pool: pool}
}

// Create inserts a campaign and its product links in one transaction.
func (r *CampaignRepository) Create(ctx context.Context, c *domain.Campaign) (err error) {
	ctx, end := database.TraceQuery(ctx, "CreateCampaign", "INSERT INTO campaigns")
	defer func() { end(err) }()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create campaign: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `
		INSERT INTO campaigns (id, name, note, discount_type, value, active, status,
			category_id, start_date, end_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err = tx.Exec(ctx, query,
		c.ID,
		c.Name,
		c.Note,
		c.DiscountType,
		c.Value,
		c.Active,
		c.Status,
		c.CategoryID,
		c.StartDate,
		c.EndDate,
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("campaign", "id", c.ID)
		}
		return fmt.Errorf("insert campaign: %w", err)
	}

	if err := insertLinks(ctx, tx, c.ID, c.ProductIDs); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit create campaign: %w", err)
	}

	return nil
}

// GetByID retrieves a campaign along with its product links.
func (r *CampaignRepository) GetByID(ctx context.Context, id string) (*domain.Campaign, error) {
	query := fmt.Sprintf(`SELECT %s FROM campaigns WHERE id = $1`, campaignColumns)

	ctx, end := database.TraceQuery(ctx, "GetCampaign", query)
	row := r.pool.QueryRow(ctx, query, id)
	c, err := scanCampaign(row)
	end(err)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("campaign", id)
		}
		return nil, fmt.Errorf("scan campaign: %w", err)
	}

	if c.ProductIDs, err = r.loadLinks(ctx, id); err != nil {
		return nil, err
	}

	return c, nil
}

// List returns campaigns matching the filter with the total count.
func (r *CampaignRepository) List(ctx context.Context, filter repository.CampaignFilter) ([]domain.Campaign, int, error) {
	var (
		conditions []string
		args       []any
		argIndex   = 1
	)

	if filter.ProductID != nil {
		conditions = append(conditions, fmt.Sprintf(
			"id IN (SELECT campaign_id FROM campaign_products WHERE product_id = $%d)", argIndex))
		args = append(args, *filter.ProductID)
		argIndex++
	}

	if filter.CategoryID != nil {
		conditions = append(conditions, fmt.Sprintf("category_id = $%d", argIndex))
		args = append(args, *filter.CategoryID)
		argIndex++
	}

	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", argIndex))
		args = append(args, *filter.Active)
		argIndex++
	}

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, *filter.Status)
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT %s, count(*) OVER() AS total_count
		FROM campaigns
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		campaignColumns, whereClause, argIndex, argIndex+1,
	)

	limit := filter.PerPage
	if limit <= 0 {
		limit = 20
	}
	offset := 0
	if filter.Page > 1 {
		offset = (filter.Page - 1) * limit
	}

	args = append(args, limit, offset)

	ctx, end := database.TraceQuery(ctx, "ListCampaigns", query)
	rows, err := r.pool.Query(ctx, query, args...)
	end(err)
	if err != nil {
		return nil, 0, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	var (
		campaigns  []domain.Campaign
		totalCount int
	)

	for rows.Next() {
		var c domain.Campaign
		if err := rows.Scan(
			&c.ID,
			&c.Name,
			&c.Note,
			&c.DiscountType,
			&c.Value,
			&c.Active,
			&c.Status,
			&c.CategoryID,
			&c.StartDate,
			&c.EndDate,
			&c.CreatedAt,
			&c.UpdatedAt,
			&totalCount,
		); err != nil {
			return nil, 0, fmt.Errorf("scan campaign row: %w", err)
		}
		campaigns = append(campaigns, c)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate campaign rows: %w", err)
	}

	if err := r.attachLinks(ctx, campaigns); err != nil {
		return nil, 0, err
	}

	if campaigns == nil {
		campaigns = []domain.Campaign{}
	}

	return campaigns, totalCount, nil
}

// Update rewrites the campaign row and replaces its product links in one
// transaction.
func (r *CampaignRepository) Update(ctx context.Context, c *domain.Campaign) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin update campaign: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	c.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE campaigns
		SET name = $1, note = $2, discount_type = $3, value = $4, active = $5,
		    status = $6, category_id = $7, start_date = $8, end_date = $9,
		    updated_at = $10
		WHERE id = $11`

	ct, err := tx.Exec(ctx, query,
		c.Name,
		c.Note,
		c.DiscountType,
		c.Value,
		c.Active,
		c.Status,
		c.CategoryID,
		c.StartDate,
		c.EndDate,
		c.UpdatedAt,
		c.ID,
	)
	if err != nil {
		return fmt.Errorf("update campaign: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("campaign", c.ID)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM campaign_products WHERE campaign_id = $1`, c.ID); err != nil {
		return fmt.Errorf("delete campaign links: %w", err)
	}

	if err := insertLinks(ctx, tx, c.ID, c.ProductIDs); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit update campaign: %w", err)
	}

	return nil
}

// Delete removes the campaign and cascades to its product links.
func (r *CampaignRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin delete campaign: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM campaign_products WHERE campaign_id = $1`, id); err != nil {
		return fmt.Errorf("delete campaign links: %w", err)
	}

	ct, err := tx.Exec(ctx, `DELETE FROM campaigns WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete campaign: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("campaign", id)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit delete campaign: %w", err)
	}

	return nil
}

// FindActiveByProducts returns active, submitted campaigns touching at
// least one of the given products.
func (r *CampaignRepository) FindActiveByProducts(ctx context.Context, productIDs []string) ([]domain.Campaign, error) {
	if len(productIDs) == 0 {
		return []domain.Campaign{}, nil
	}

	query := fmt.Sprintf(`
		SELECT DISTINCT %s
		FROM campaigns c
		JOIN campaign_products cp ON cp.campaign_id = c.id
		WHERE cp.product_id = ANY($1) AND c.active = true AND c.status = $2`,
		prefixColumns("c"),
	)

	return r.queryCampaigns(ctx, query, productIDs, domain.CampaignStatusSubmitted)
}

// SetActive atomically flips the active flag.
func (r *CampaignRepository) SetActive(ctx context.Context, id string, active bool) error {
	ct, err := r.pool.Exec(ctx,
		`UPDATE campaigns SET active = $1, updated_at = NOW() WHERE id = $2`,
		active, id,
	)
	if err != nil {
		return fmt.Errorf("set campaign active: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("campaign", id)
	}
	return nil
}

// SetStatus atomically sets the lifecycle status.
func (r *CampaignRepository) SetStatus(ctx context.Context, id, status string) error {
	ct, err := r.pool.Exec(ctx,
		`UPDATE campaigns SET status = $1, updated_at = NOW() WHERE id = $2`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("set campaign status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("campaign", id)
	}
	return nil
}

// ListDue returns active, submitted campaigns whose window contains now.
func (r *CampaignRepository) ListDue(ctx context.Context, now time.Time) ([]domain.Campaign, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM campaigns
		WHERE active = true AND status = $1
		  AND (start_date IS NULL OR start_date <= $2)
		  AND (end_date IS NULL OR end_date >= $2)
		ORDER BY created_at`,
		campaignColumns,
	)

	return r.queryCampaigns(ctx, query, domain.CampaignStatusSubmitted, now)
}

// ListExpired returns active campaigns whose end date has passed.
func (r *CampaignRepository) ListExpired(ctx context.Context, now time.Time) ([]domain.Campaign, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM campaigns
		WHERE active = true AND end_date IS NOT NULL AND end_date < $1
		ORDER BY created_at`,
		campaignColumns,
	)

	return r.queryCampaigns(ctx, query, now)
}

// queryCampaigns runs a multi-row campaign query and attaches product links.
func (r *CampaignRepository) queryCampaigns(ctx context.Context, query string, args ...any) ([]domain.Campaign, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query campaigns: %w", err)
	}
	defer rows.Close()

	var campaigns []domain.Campaign
	for rows.Next() {
		var c domain.Campaign
		if err := rows.Scan(
			&c.ID,
			&c.Name,
			&c.Note,
			&c.DiscountType,
			&c.Value,
			&c.Active,
			&c.Status,
			&c.CategoryID,
			&c.StartDate,
			&c.EndDate,
			&c.CreatedAt,
			&c.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan campaign row: %w", err)
		}
		campaigns = append(campaigns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate campaign rows: %w", err)
	}

	if err := r.attachLinks(ctx, campaigns); err != nil {
		return nil, err
	}

	if campaigns == nil {
		campaigns = []domain.Campaign{}
	}

	return campaigns, nil
}

// loadLinks returns the product ids linked to one campaign, sorted.
func (r *CampaignRepository) loadLinks(ctx context.Context, campaignID string) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT product_id FROM campaign_products WHERE campaign_id = $1 ORDER BY product_id`,
		campaignID,
	)
	if err != nil {
		return nil, fmt.Errorf("load campaign links: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan campaign link: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate campaign links: %w", err)
	}

	return ids, nil
}

// attachLinks batch-loads product links for the given campaigns.
func (r *CampaignRepository) attachLinks(ctx context.Context, campaigns []domain.Campaign) error {
	if len(campaigns) == 0 {
		return nil
	}

	ids := make([]string, len(campaigns))
	for i := range campaigns {
		ids[i] = campaigns[i].ID
	}

	rows, err := r.pool.Query(ctx,
		`SELECT campaign_id, product_id FROM campaign_products WHERE campaign_id = ANY($1) ORDER BY product_id`,
		ids,
	)
	if err != nil {
		return fmt.Errorf("load campaign links: %w", err)
	}
	defer rows.Close()

	linksByCampaign := make(map[string][]string, len(campaigns))
	for rows.Next() {
		var campaignID, productID string
		if err := rows.Scan(&campaignID, &productID); err != nil {
			return fmt.Errorf("scan campaign link: %w", err)
		}
		linksByCampaign[campaignID] = append(linksByCampaign[campaignID], productID)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate campaign links: %w", err)
	}

	for i := range campaigns {
		links := linksByCampaign[campaigns[i].ID]
		if links == nil {
			links = []string{}
		}
		campaigns[i].ProductIDs = links
	}

	return nil
}

// insertLinks bulk-inserts the campaign_products rows for one campaign.
func insertLinks(ctx context.Context, tx pgx.Tx, campaignID string, productIDs []string) error {
	for _, productID := range productIDs {
		_, err := tx.Exec(ctx,
			`INSERT INTO campaign_products (campaign_id, product_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			campaignID, productID,
		)
		if err != nil {
			return fmt.Errorf("insert campaign link: %w", err)
		}
	}
	return nil
}

// scanCampaign scans a single campaign row without links.
func scanCampaign(row pgx.Row) (*domain.Campaign, error) {
	var c domain.Campaign
	err := row.Scan(
		&c.ID,
		&c.Name,
		&c.Note,
		&c.DiscountType,
		&c.Value,
		&c.Active,
		&c.Status,
		&c.CategoryID,
		&c.StartDate,
		&c.EndDate,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// prefixColumns prefixes every campaign column with a table alias.
func prefixColumns(alias string) string {
	cols := strings.Split(campaignColumns, ",")
	for i, col := range cols {
		cols[i] = alias + "." + strings.TrimSpace(col)
	}
	return strings.Join(cols, ", ")
}

// isUniqueViolation checks for a PostgreSQL unique constraint violation
// (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}
