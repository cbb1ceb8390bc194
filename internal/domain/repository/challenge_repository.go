package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"query_quest/internal/common"
	"query_quest/internal/domain/model"

	"github.com/jackc/pgx/v5/pgconn"
)

type ChallengeRepository interface {
	Create(ctx context.Context, tx Tx, challenge *model.Challenge) error
	Update(ctx context.Context, challenge *model.Challenge) error
	FindByID(ctx context.Context, id string) (*model.Challenge, error)
	FindBySlug(ctx context.Context, slug string) (*model.Challenge, error)
	List(ctx context.Context, limit, offset, level int, institutionID, searchTerm string) ([]model.Challenge, int, error)
	Delete(ctx context.Context, id string) error
	TopBySolves(ctx context.Context, institutionID string, limit int) ([]model.Challenge, error)

	RecordAttempt(ctx context.Context, tx Tx, attempt *model.ChallengeAttempt) error
	HasCorrectAttempt(ctx context.Context, userID, challengeID string) (bool, error)
	ApplySolve(ctx context.Context, tx Tx, challengeID string, newScore int) error
	InsertLog(ctx context.Context, tx Tx, entry *model.ActivityLog) error
}

type pgChallengeRepository struct {
	db *sql.DB
}

func NewPgChallengeRepository(db *sql.DB) ChallengeRepository {
	return &pgChallengeRepository{db: db}
}

const challengeColumns = `c.id, c.title, c.slug, c.statement, c.help_text, c.solution, c.level,
	c.score, c.score_base, c.score_min, c.solves, c.institution_id, c.created_by, cu.name, c.created_at, c.updated_at`

const challengeJoins = ` FROM challenges c LEFT JOIN users cu ON cu.id = c.created_by`

func scanChallenge(row interface{ Scan(...interface{}) error }) (*model.Challenge, error) {
	c := &model.Challenge{}
	err := row.Scan(
		&c.ID, &c.Title, &c.Slug, &c.Statement, &c.HelpText, &c.Solution, &c.Level,
		&c.Score, &c.ScoreBase, &c.ScoreMin, &c.Solves, &c.InstitutionID, &c.CreatedByID,
		&c.CreatedByName, &c.CreatedAt, &c.UpdatedAt,
	)
	return c, err
}

func (r *pgChallengeRepository) Create(ctx context.Context, tx Tx, c *model.Challenge) error {
	query := `INSERT INTO challenges (id, title, slug, statement, help_text, solution, level, score, score_base, score_min, solves, institution_id, created_by)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	var err error
	args := []interface{}{
		c.ID, c.Title, c.Slug, c.Statement, c.HelpText, c.Solution, c.Level,
		c.Score, c.ScoreBase, c.ScoreMin, c.Solves, c.InstitutionID, c.CreatedByID,
	}
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, args...)
	} else {
		_, err = r.db.ExecContext(ctx, query, args...)
	}
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // Unique constraint for slug
			return fmt.Errorf("challenge with this slug already exists: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgChallengeRepository.Create: %w", err)
	}
	return nil
}

func (r *pgChallengeRepository) Update(ctx context.Context, c *model.Challenge) error {
	query := `UPDATE challenges SET
	            title = $1, slug = $2, statement = $3, help_text = $4, solution = $5,
	            level = $6, score = $7, score_base = $8, score_min = $9, institution_id = $10,
	            updated_at = CURRENT_TIMESTAMP
	          WHERE id = $11`
	res, err := r.db.ExecContext(ctx, query, c.Title, c.Slug, c.Statement, c.HelpText, c.Solution,
		c.Level, c.Score, c.ScoreBase, c.ScoreMin, c.InstitutionID, c.ID)
	if err != nil {
		return fmt.Errorf("pgChallengeRepository.Update: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *pgChallengeRepository) FindByID(ctx context.Context, id string) (*model.Challenge, error) {
	query := `SELECT ` + challengeColumns + challengeJoins + ` WHERE c.id = $1`
	c, err := scanChallenge(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgChallengeRepository.FindByID: %w", err)
	}
	return c, nil
}

func (r *pgChallengeRepository) FindBySlug(ctx context.Context, slug string) (*model.Challenge, error) {
	query := `SELECT ` + challengeColumns + challengeJoins + ` WHERE c.slug = $1`
	c, err := scanChallenge(r.db.QueryRowContext(ctx, query, slug))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgChallengeRepository.FindBySlug: %w", err)
	}
	return c, nil
}

func (r *pgChallengeRepository) List(ctx context.Context, limit, offset, level int, institutionID, searchTerm string) ([]model.Challenge, int, error) {
	var baseQuery strings.Builder
	baseQuery.WriteString(`SELECT ` + challengeColumns + challengeJoins)

	var countQuery strings.Builder
	countQuery.WriteString(`SELECT COUNT(*) FROM challenges c`)

	var conditions []string
	var args []interface{}
	argID := 1

	if level > 0 {
		conditions = append(conditions, fmt.Sprintf("c.level = $%d", argID))
		args = append(args, level)
		argID++
	}
	if institutionID != "" {
		// Platform-wide challenges are visible to every institution.
		conditions = append(conditions, fmt.Sprintf("(c.institution_id = $%d OR c.institution_id IS NULL)", argID))
		args = append(args, institutionID)
		argID++
	}
	if searchTerm != "" {
		conditions = append(conditions, fmt.Sprintf("(c.title ILIKE $%d OR c.statement ILIKE $%d)", argID, argID+1))
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
		return nil, 0, fmt.Errorf("pgChallengeRepository.List count: %w", err)
	}

	baseQuery.WriteString(fmt.Sprintf(" ORDER BY c.level ASC, c.created_at DESC LIMIT $%d OFFSET $%d", argID, argID+1))
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, baseQuery.String(), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgChallengeRepository.List query: %w", err)
	}
	defer rows.Close()

	challenges := []model.Challenge{}
	for rows.Next() {
		c, err := scanChallenge(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("pgChallengeRepository.List scan: %w", err)
		}
		challenges = append(challenges, *c)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("pgChallengeRepository.List rows.Err: %w", err)
	}
	return challenges, total, nil
}

func (r *pgChallengeRepository) Delete(ctx context.Context, id string) error {
	// Attempts and logs for the challenge go with it.
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("pgChallengeRepository.Delete begin: %w", err)
	}
	defer tx.Rollback()

	steps := []string{
		`DELETE FROM activity_logs WHERE challenge_id = $1`,
		`DELETE FROM challenge_attempts WHERE challenge_id = $1`,
		`DELETE FROM challenges WHERE id = $1`,
	}
	for _, q := range steps {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			return fmt.Errorf("pgChallengeRepository.Delete: %w", err)
		}
	}
	return tx.Commit()
}

func (r *pgChallengeRepository) TopBySolves(ctx context.Context, institutionID string, limit int) ([]model.Challenge, error) {
	query := `SELECT ` + challengeColumns + challengeJoins + `
	          WHERE c.institution_id = $1
	          ORDER BY c.solves DESC, c.created_at DESC LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, institutionID, limit)
	if err != nil {
		return nil, fmt.Errorf("pgChallengeRepository.TopBySolves query: %w", err)
	}
	defer rows.Close()

	challenges := []model.Challenge{}
	for rows.Next() {
		c, err := scanChallenge(rows)
		if err != nil {
			return nil, fmt.Errorf("pgChallengeRepository.TopBySolves scan: %w", err)
		}
		challenges = append(challenges, *c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgChallengeRepository.TopBySolves rows.Err: %w", err)
	}
	return challenges, nil
}

func (r *pgChallengeRepository) RecordAttempt(ctx context.Context, tx Tx, a *model.ChallengeAttempt) error {
	query := `INSERT INTO challenge_attempts (id, user_id, challenge_id, submitted_query, is_correct, awarded_points)
	          VALUES ($1, $2, $3, $4, $5, $6)`
	var err error
	args := []interface{}{a.ID, a.UserID, a.ChallengeID, a.SubmittedQuery, a.IsCorrect, a.AwardedPoints}
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, args...)
	} else {
		_, err = r.db.ExecContext(ctx, query, args...)
	}
	if err != nil {
		return fmt.Errorf("pgChallengeRepository.RecordAttempt: %w", err)
	}
	return nil
}

func (r *pgChallengeRepository) HasCorrectAttempt(ctx context.Context, userID, challengeID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM challenge_attempts WHERE user_id = $1 AND challenge_id = $2 AND is_correct)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, userID, challengeID).Scan(&exists); err != nil {
		return false, fmt.Errorf("pgChallengeRepository.HasCorrectAttempt: %w", err)
	}
	return exists, nil
}

func (r *pgChallengeRepository) ApplySolve(ctx context.Context, tx Tx, challengeID string, newScore int) error {
	query := `UPDATE challenges SET solves = solves + 1, score = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`
	if _, err := tx.ExecContext(ctx, query, newScore, challengeID); err != nil {
		return fmt.Errorf("pgChallengeRepository.ApplySolve: %w", err)
	}
	return nil
}

func (r *pgChallengeRepository) InsertLog(ctx context.Context, tx Tx, entry *model.ActivityLog) error {
	query := `INSERT INTO activity_logs (id, user_id, challenge_id, action, detail) VALUES ($1, $2, $3, $4, $5)`
	var err error
	args := []interface{}{entry.ID, entry.UserID, entry.ChallengeID, entry.Action, entry.Detail}
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, args...)
	} else {
		_, err = r.db.ExecContext(ctx, query, args...)
	}
	if err != nil {
		return fmt.Errorf("pgChallengeRepository.InsertLog: %w", err)
	}
	return nil
}
