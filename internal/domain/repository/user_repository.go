package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"query_quest/internal/common"
	"query_quest/internal/domain/model"

	"github.com/jackc/pgx/v5/pgconn"
)

type UserRepository interface {
	Create(ctx context.Context, tx Tx, user *model.User) error
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByVerificationToken(ctx context.Context, token string) (*model.User, error)
	List(ctx context.Context, limit, offset int, institutionID, role, searchTerm string) ([]model.User, int, error)
	Update(ctx context.Context, user *model.User) error
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	MarkVerified(ctx context.Context, id string) error
	AddSolveRewards(ctx context.Context, tx Tx, id string, points int) error
	DeleteCascade(ctx context.Context, tx Tx, id string) error
}

type pgUserRepository struct {
	db *sql.DB
}

func NewPgUserRepository(db *sql.DB) UserRepository {
	return &pgUserRepository{db: db}
}

const userColumns = `u.id, u.name, u.alias, u.email, u.hashed_password, u.role, u.verification_token,
	u.is_email_verified, u.institution_id, i.name, u.points, u.solved_challenges, u.last_login, u.created_at, u.updated_at`

const userJoins = ` FROM users u LEFT JOIN institutions i ON i.id = u.institution_id`

func scanUser(row interface{ Scan(...interface{}) error }) (*model.User, error) {
	user := &model.User{}
	err := row.Scan(
		&user.ID, &user.Name, &user.Alias, &user.Email, &user.HashedPassword, &user.Role,
		&user.VerificationToken, &user.IsEmailVerified, &user.InstitutionID, &user.InstitutionName,
		&user.Points, &user.SolvedChallenges, &user.LastLogin, &user.CreatedAt, &user.UpdatedAt,
	)
	return user, err
}

func (r *pgUserRepository) Create(ctx context.Context, tx Tx, user *model.User) error {
	query := `INSERT INTO users (id, name, alias, email, hashed_password, role, verification_token, is_email_verified, institution_id, points, solved_challenges)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	var err error
	args := []interface{}{
		user.ID, user.Name, user.Alias, user.Email, user.HashedPassword, user.Role,
		user.VerificationToken, user.IsEmailVerified, user.InstitutionID, user.Points, user.SolvedChallenges,
	}
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, args...)
	} else {
		_, err = r.db.ExecContext(ctx, query, args...)
	}
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // Unique constraint on email
			return fmt.Errorf("user with this email already exists: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgUserRepository.Create: %w", err)
	}
	return nil
}

func (r *pgUserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	query := `SELECT ` + userColumns + userJoins + ` WHERE u.id = $1`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgUserRepository.FindByID: %w", err)
	}
	return user, nil
}

func (r *pgUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT ` + userColumns + userJoins + ` WHERE u.email = $1`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, strings.ToLower(email)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgUserRepository.FindByEmail: %w", err)
	}
	return user, nil
}

func (r *pgUserRepository) FindByVerificationToken(ctx context.Context, token string) (*model.User, error) {
	query := `SELECT ` + userColumns + userJoins + ` WHERE u.verification_token = $1`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, token))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgUserRepository.FindByVerificationToken: %w", err)
	}
	return user, nil
}

func (r *pgUserRepository) List(ctx context.Context, limit, offset int, institutionID, role, searchTerm string) ([]model.User, int, error) {
	var baseQuery strings.Builder
	baseQuery.WriteString(`SELECT ` + userColumns + userJoins)

	var countQuery strings.Builder
	countQuery.WriteString(`SELECT COUNT(*) FROM users u`)

	var conditions []string
	var args []interface{}
	argID := 1

	if institutionID != "" {
		conditions = append(conditions, fmt.Sprintf("u.institution_id = $%d", argID))
		args = append(args, institutionID)
		argID++
	}
	if role != "" {
		conditions = append(conditions, fmt.Sprintf("u.role = $%d", argID))
		args = append(args, role)
		argID++
	}
	if searchTerm != "" {
		conditions = append(conditions, fmt.Sprintf("(u.name ILIKE $%d OR u.email ILIKE $%d)", argID, argID+1))
		likeTerm := "%" + searchTerm + "%"
		args = append(args, likeTerm, likeTerm)
		argID += 2
	}

	if len(conditions) > 0 {
		whereClause := " WHERE " + strings.Join(conditions, " AND ")
		baseQuery.WriteString(whereClause)
		countQuery.WriteString(whereClause)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, countQuery.String(), args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgUserRepository.List count: %w", err)
	}

	baseQuery.WriteString(fmt.Sprintf(" ORDER BY u.created_at DESC LIMIT $%d OFFSET $%d", argID, argID+1))
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, baseQuery.String(), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgUserRepository.List query: %w", err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("pgUserRepository.List scan: %w", err)
		}
		users = append(users, *user)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("pgUserRepository.List rows.Err: %w", err)
	}
	return users, total, nil
}

func (r *pgUserRepository) Update(ctx context.Context, user *model.User) error {
	query := `UPDATE users SET
	            name = $1, alias = $2, role = $3, institution_id = $4, updated_at = CURRENT_TIMESTAMP
	          WHERE id = $5`
	res, err := r.db.ExecContext(ctx, query, user.Name, user.Alias, user.Role, user.InstitutionID, user.ID)
	if err != nil {
		return fmt.Errorf("pgUserRepository.Update: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *pgUserRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE users SET last_login = $1 WHERE id = $2`
	if _, err := r.db.ExecContext(ctx, query, at, id); err != nil {
		return fmt.Errorf("pgUserRepository.UpdateLastLogin: %w", err)
	}
	return nil
}

func (r *pgUserRepository) MarkVerified(ctx context.Context, id string) error {
	query := `UPDATE users SET is_email_verified = TRUE, verification_token = NULL, updated_at = CURRENT_TIMESTAMP WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("pgUserRepository.MarkVerified: %w", err)
	}
	return nil
}

func (r *pgUserRepository) AddSolveRewards(ctx context.Context, tx Tx, id string, points int) error {
	query := `UPDATE users SET points = points + $1, solved_challenges = solved_challenges + 1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`
	if _, err := tx.ExecContext(ctx, query, points, id); err != nil {
		return fmt.Errorf("pgUserRepository.AddSolveRewards: %w", err)
	}
	return nil
}

// DeleteCascade removes a single account and everything referencing it.
// Lessons the user created survive with a cleared creator reference.
func (r *pgUserRepository) DeleteCascade(ctx context.Context, tx Tx, id string) error {
	steps := []string{
		`DELETE FROM activity_logs WHERE user_id = $1`,
		`DELETE FROM challenge_attempts WHERE user_id = $1`,
		`UPDATE lessons SET created_by = NULL WHERE created_by = $1`,
		`UPDATE challenges SET created_by = NULL WHERE created_by = $1`,
		`DELETE FROM users WHERE id = $1`,
	}
	for _, q := range steps {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			return fmt.Errorf("pgUserRepository.DeleteCascade: %w", err)
		}
	}
	return nil
}
