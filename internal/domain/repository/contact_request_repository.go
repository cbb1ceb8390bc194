package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"query_quest/internal/common"
	"query_quest/internal/domain/model"
)

type ContactRequestRepository interface {
	Create(ctx context.Context, req *model.ContactRequest) error
	FindByID(ctx context.Context, id string) (*model.ContactRequest, error)
	List(ctx context.Context, limit, offset int, status model.ContactRequestStatus) ([]model.ContactRequest, int, error)
	UpdateStatus(ctx context.Context, tx Tx, id string, status model.ContactRequestStatus) error
}

type pgContactRequestRepository struct {
	db *sql.DB
}

func NewPgContactRequestRepository(db *sql.DB) ContactRequestRepository {
	return &pgContactRequestRepository{db: db}
}

const contactRequestColumns = `id, institution_name, contact_name, contact_email, contact_phone,
	student_email_suffix, teacher_email_suffix, student_count, teacher_count, message, status, created_at, updated_at`

func scanContactRequest(row interface{ Scan(...interface{}) error }) (*model.ContactRequest, error) {
	cr := &model.ContactRequest{}
	err := row.Scan(
		&cr.ID, &cr.InstitutionName, &cr.ContactName, &cr.ContactEmail, &cr.ContactPhone,
		&cr.StudentEmailSuffix, &cr.TeacherEmailSuffix, &cr.StudentCount, &cr.TeacherCount,
		&cr.Message, &cr.Status, &cr.CreatedAt, &cr.UpdatedAt,
	)
	return cr, err
}

func (r *pgContactRequestRepository) Create(ctx context.Context, cr *model.ContactRequest) error {
	query := `INSERT INTO contact_requests (id, institution_name, contact_name, contact_email, contact_phone, student_email_suffix, teacher_email_suffix, student_count, teacher_count, message, status)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.db.ExecContext(ctx, query,
		cr.ID, cr.InstitutionName, cr.ContactName, cr.ContactEmail, cr.ContactPhone,
		cr.StudentEmailSuffix, cr.TeacherEmailSuffix, cr.StudentCount, cr.TeacherCount, cr.Message, cr.Status)
	if err != nil {
		return fmt.Errorf("pgContactRequestRepository.Create: %w", err)
	}
	return nil
}

func (r *pgContactRequestRepository) FindByID(ctx context.Context, id string) (*model.ContactRequest, error) {
	query := `SELECT ` + contactRequestColumns + ` FROM contact_requests WHERE id = $1`
	cr, err := scanContactRequest(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgContactRequestRepository.FindByID: %w", err)
	}
	return cr, nil
}

func (r *pgContactRequestRepository) List(ctx context.Context, limit, offset int, status model.ContactRequestStatus) ([]model.ContactRequest, int, error) {
	var baseQuery strings.Builder
	baseQuery.WriteString(`SELECT ` + contactRequestColumns + ` FROM contact_requests`)

	var countQuery strings.Builder
	countQuery.WriteString(`SELECT COUNT(*) FROM contact_requests`)

	var args []interface{}
	argID := 1
	if status != "" {
		where := fmt.Sprintf(" WHERE status = $%d", argID)
		baseQuery.WriteString(where)
		countQuery.WriteString(where)
		args = append(args, status)
		argID++
	}

	var total int
	if err := r.db.QueryRowContext(ctx, countQuery.String(), args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgContactRequestRepository.List count: %w", err)
	}

	baseQuery.WriteString(fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argID, argID+1))
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, baseQuery.String(), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgContactRequestRepository.List query: %w", err)
	}
	defer rows.Close()

	requests := []model.ContactRequest{}
	for rows.Next() {
		cr, err := scanContactRequest(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("pgContactRequestRepository.List scan: %w", err)
		}
		requests = append(requests, *cr)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("pgContactRequestRepository.List rows.Err: %w", err)
	}
	return requests, total, nil
}

func (r *pgContactRequestRepository) UpdateStatus(ctx context.Context, tx Tx, id string, status model.ContactRequestStatus) error {
	query := `UPDATE contact_requests SET status = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`

	var res sql.Result
	var err error
	if tx != nil {
		res, err = tx.ExecContext(ctx, query, status, id)
	} else {
		res, err = r.db.ExecContext(ctx, query, status, id)
	}
	if err != nil {
		return fmt.Errorf("pgContactRequestRepository.UpdateStatus: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}
