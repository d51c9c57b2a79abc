package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/student-clearance-api/internal/models"
)

const requestColumns = `r.id, r.user_id, r.year_level, r.college, r.program, r.affiliation, r.request, r.clearance_status, r.is_graduate,
r.last_attended, r.request_purpose, r.request_status, r.claim_date, r.eclearance_proof, r.payment_proof, r.created_at, r.updated_at`

const requestSelect = `SELECT ` + requestColumns + `,
u.username AS owner_username, u.email AS owner_email,
p.id AS profile_id, p.first_name, p.middle_name, p.last_name, p.extension_name, p.birth_date, p.college_program, p.contact_number, p.created_at AS profile_created_at
FROM clearance_requests r
JOIN users u ON u.id = r.user_id
LEFT JOIN profiles p ON p.user_id = r.user_id`

type requestRow struct {
	models.ClearanceRequest
	OwnerUsername string `db:"owner_username"`
	OwnerEmail    string `db:"owner_email"`
	profileColumns
}

func (r requestRow) toModel() models.ClearanceRequestRecord {
	return models.ClearanceRequestRecord{
		ClearanceRequest: r.ClearanceRequest,
		Username:         r.OwnerUsername,
		Email:            r.OwnerEmail,
		Profile:          r.profileColumns.toProfile(r.UserID),
	}
}

// ClearanceRequestRepository handles persistence for clearance requests.
type ClearanceRequestRepository struct {
	db *sqlx.DB
}

// NewClearanceRequestRepository constructs the repository.
func NewClearanceRequestRepository(db *sqlx.DB) *ClearanceRequestRepository {
	return &ClearanceRequestRepository{db: db}
}

// List returns requests visible under the filter, newest first.
func (r *ClearanceRequestRepository) List(ctx context.Context, filter models.ClearanceRequestFilter) ([]models.ClearanceRequestRecord, error) {
	var (
		conditions []string
		args       []interface{}
	)
	if filter.Scope != models.ScopeAll {
		args = append(args, filter.OwnerID)
		conditions = append(conditions, fmt.Sprintf("r.user_id = $%d", len(args)))
	}
	if status := strings.TrimSpace(filter.Status); status != "" {
		args = append(args, status)
		conditions = append(conditions, fmt.Sprintf("r.request_status = $%d", len(args)))
	}

	var sb strings.Builder
	sb.WriteString(requestSelect)
	sb.WriteString(" WHERE 1=1")
	for _, cond := range conditions {
		sb.WriteString(" AND ")
		sb.WriteString(cond)
	}
	sb.WriteString(" ORDER BY r.created_at DESC, r.id DESC")

	var rows []requestRow
	if err := r.db.SelectContext(ctx, &rows, sb.String(), args...); err != nil {
		return nil, fmt.Errorf("list clearance requests: %w", err)
	}
	records := make([]models.ClearanceRequestRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.toModel())
	}
	return records, nil
}

// GetByID returns one request with owner details.
func (r *ClearanceRequestRepository) GetByID(ctx context.Context, id int64) (*models.ClearanceRequestRecord, error) {
	var row requestRow
	if err := r.db.GetContext(ctx, &row, requestSelect+` WHERE r.id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get clearance request: %w", err)
	}
	record := row.toModel()
	return &record, nil
}

// Create inserts a request and fills in its identifier and timestamps.
func (r *ClearanceRequestRepository) Create(ctx context.Context, req *models.ClearanceRequest) error {
	now := time.Now().UTC()
	req.CreatedAt = now
	req.UpdatedAt = now
	const query = `INSERT INTO clearance_requests (user_id, year_level, college, program, affiliation, request, clearance_status, is_graduate,
last_attended, request_purpose, request_status, claim_date, eclearance_proof, payment_proof, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16) RETURNING id`
	if err := r.db.QueryRowxContext(ctx, query,
		req.UserID,
		req.YearLevel,
		req.College,
		req.Program,
		req.Affiliation,
		req.Request,
		req.ClearanceStatus,
		req.IsGraduate,
		req.LastAttended,
		req.RequestPurpose,
		req.RequestStatus,
		req.ClaimDate,
		req.EClearanceProof,
		req.PaymentProof,
		req.CreatedAt,
		req.UpdatedAt,
	).Scan(&req.ID); err != nil {
		return fmt.Errorf("create clearance request: %w", err)
	}
	return nil
}

// Update overwrites every mutable column. The owner is never changed.
func (r *ClearanceRequestRepository) Update(ctx context.Context, req *models.ClearanceRequest) error {
	req.UpdatedAt = time.Now().UTC()
	const query = `UPDATE clearance_requests SET year_level = $2, college = $3, program = $4, affiliation = $5, request = $6,
clearance_status = $7, is_graduate = $8, last_attended = $9, request_purpose = $10, request_status = $11, claim_date = $12,
eclearance_proof = $13, payment_proof = $14, updated_at = $15 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query,
		req.ID,
		req.YearLevel,
		req.College,
		req.Program,
		req.Affiliation,
		req.Request,
		req.ClearanceStatus,
		req.IsGraduate,
		req.LastAttended,
		req.RequestPurpose,
		req.RequestStatus,
		req.ClaimDate,
		req.EClearanceProof,
		req.PaymentProof,
		req.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update clearance request: %w", err)
	}
	return expectAffected(res, "update clearance request")
}

// Delete removes a request by ID.
func (r *ClearanceRequestRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM clearance_requests WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete clearance request: %w", err)
	}
	return expectAffected(res, "delete clearance request")
}

// CountByStatus aggregates requests per stored status.
func (r *ClearanceRequestRepository) CountByStatus(ctx context.Context) ([]models.StatusCount, error) {
	const query = `SELECT request_status, COUNT(*) AS count FROM clearance_requests GROUP BY request_status ORDER BY request_status`
	var counts []models.StatusCount
	if err := r.db.SelectContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("count clearance requests by status: %w", err)
	}
	return counts, nil
}
