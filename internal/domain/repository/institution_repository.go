package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"query_quest/internal/common"
	"query_quest/internal/domain/model"

	"github.com/jackc/pgx/v5/pgconn"
)

type InstitutionRepository interface {
	Create(ctx context.Context, tx Tx, inst *model.Institution) error
	Update(ctx context.Context, inst *model.Institution) error
	FindByID(ctx context.Context, id string) (*model.Institution, error)
	FindByContactRequestID(ctx context.Context, requestID string) (*model.Institution, error)
	// ListAll returns the directory in creation order; the email resolver
	// depends on this order being stable.
	ListAll(ctx context.Context) ([]model.Institution, error)
	CountDependents(ctx context.Context, id string) (users, challenges int, err error)
	Aggregates(ctx context.Context, id string) (users, challenges, lessons int, err error)
	DeleteCascade(ctx context.Context, tx Tx, id string) error
}

type pgInstitutionRepository struct {
	db *sql.DB
}

func NewPgInstitutionRepository(db *sql.DB) InstitutionRepository {
	return &pgInstitutionRepository{db: db}
}

const institutionColumns = `id, name, address, student_email_suffix, teacher_email_suffix, contact_request_id, created_at, updated_at`

func scanInstitution(row interface{ Scan(...interface{}) error }) (*model.Institution, error) {
	inst := &model.Institution{}
	err := row.Scan(
		&inst.ID, &inst.Name, &inst.Address, &inst.StudentEmailSuffix, &inst.TeacherEmailSuffix,
		&inst.ContactRequestID, &inst.CreatedAt, &inst.UpdatedAt,
	)
	return inst, err
}

func (r *pgInstitutionRepository) Create(ctx context.Context, tx Tx, inst *model.Institution) error {
	query := `INSERT INTO institutions (id, name, address, student_email_suffix, teacher_email_suffix, contact_request_id)
	          VALUES ($1, $2, $3, $4, $5, $6)`

	var err error
	args := []interface{}{inst.ID, inst.Name, inst.Address, inst.StudentEmailSuffix, inst.TeacherEmailSuffix, inst.ContactRequestID}
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, args...)
	} else {
		_, err = r.db.ExecContext(ctx, query, args...)
	}
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // contact_request_id unique
			return fmt.Errorf("institution for this contact request already exists: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgInstitutionRepository.Create: %w", err)
	}
	return nil
}

func (r *pgInstitutionRepository) Update(ctx context.Context, inst *model.Institution) error {
	query := `UPDATE institutions SET
	            name = $1, address = $2, student_email_suffix = $3, teacher_email_suffix = $4, updated_at = CURRENT_TIMESTAMP
	          WHERE id = $5`
	res, err := r.db.ExecContext(ctx, query, inst.Name, inst.Address, inst.StudentEmailSuffix, inst.TeacherEmailSuffix, inst.ID)
	if err != nil {
		return fmt.Errorf("pgInstitutionRepository.Update: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *pgInstitutionRepository) FindByID(ctx context.Context, id string) (*model.Institution, error) {
	query := `SELECT ` + institutionColumns + ` FROM institutions WHERE id = $1`
	inst, err := scanInstitution(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgInstitutionRepository.FindByID: %w", err)
	}
	return inst, nil
}

func (r *pgInstitutionRepository) FindByContactRequestID(ctx context.Context, requestID string) (*model.Institution, error) {
	query := `SELECT ` + institutionColumns + ` FROM institutions WHERE contact_request_id = $1`
	inst, err := scanInstitution(r.db.QueryRowContext(ctx, query, requestID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgInstitutionRepository.FindByContactRequestID: %w", err)
	}
	return inst, nil
}

func (r *pgInstitutionRepository) ListAll(ctx context.Context) ([]model.Institution, error) {
	query := `SELECT ` + institutionColumns + ` FROM institutions ORDER BY created_at ASC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("pgInstitutionRepository.ListAll query: %w", err)
	}
	defer rows.Close()

	institutions := []model.Institution{}
	for rows.Next() {
		inst, err := scanInstitution(rows)
		if err != nil {
			return nil, fmt.Errorf("pgInstitutionRepository.ListAll scan: %w", err)
		}
		institutions = append(institutions, *inst)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgInstitutionRepository.ListAll rows.Err: %w", err)
	}
	return institutions, nil
}

func (r *pgInstitutionRepository) CountDependents(ctx context.Context, id string) (int, int, error) {
	var users, challenges int
	query := `SELECT
	            (SELECT COUNT(*) FROM users WHERE institution_id = $1),
	            (SELECT COUNT(*) FROM challenges WHERE institution_id = $1)`
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&users, &challenges); err != nil {
		return 0, 0, fmt.Errorf("pgInstitutionRepository.CountDependents: %w", err)
	}
	return users, challenges, nil
}

func (r *pgInstitutionRepository) Aggregates(ctx context.Context, id string) (int, int, int, error) {
	var users, challenges, lessons int
	query := `SELECT
	            (SELECT COUNT(*) FROM users WHERE institution_id = $1),
	            (SELECT COUNT(*) FROM challenges WHERE institution_id = $1),
	            (SELECT COUNT(*) FROM lessons WHERE institution_id = $1)`
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&users, &challenges, &lessons); err != nil {
		return 0, 0, 0, fmt.Errorf("pgInstitutionRepository.Aggregates: %w", err)
	}
	return users, challenges, lessons, nil
}

// DeleteCascade removes an institution and everything that transitively
// references it. Order matters: logs and attempts before their challenges and
// users, lessons before the users that created them, the institution last.
// The caller owns the transaction.
func (r *pgInstitutionRepository) DeleteCascade(ctx context.Context, tx Tx, id string) error {
	steps := []string{
		`DELETE FROM activity_logs WHERE challenge_id IN (SELECT id FROM challenges WHERE institution_id = $1)`,
		`DELETE FROM challenge_attempts WHERE challenge_id IN (SELECT id FROM challenges WHERE institution_id = $1)`,
		`DELETE FROM challenges WHERE institution_id = $1`,
		`DELETE FROM lessons WHERE institution_id = $1`,
		`DELETE FROM activity_logs WHERE user_id IN (SELECT id FROM users WHERE institution_id = $1)`,
		`DELETE FROM challenge_attempts WHERE user_id IN (SELECT id FROM users WHERE institution_id = $1)`,
		`UPDATE challenges SET created_by = NULL WHERE created_by IN (SELECT id FROM users WHERE institution_id = $1)`,
		`DELETE FROM users WHERE institution_id = $1`,
		`DELETE FROM institutions WHERE id = $1`,
	}
	for _, q := range steps {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			return fmt.Errorf("pgInstitutionRepository.DeleteCascade: %w", err)
		}
	}
	return nil
}
