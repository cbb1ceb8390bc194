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

type LessonRepository interface {
	Create(ctx context.Context, lesson *model.Lesson) error
	Update(ctx context.Context, lesson *model.Lesson) error
	FindByID(ctx context.Context, id string) (*model.Lesson, error)
	List(ctx context.Context, limit, offset int, institutionID string, publishedOnly bool) ([]model.Lesson, int, error)
	SetPublished(ctx context.Context, id string, published bool) error
	Delete(ctx context.Context, id string) error
	RecentPublished(ctx context.Context, institutionID string, limit int) ([]model.Lesson, error)
}

type pgLessonRepository struct {
	db *sql.DB
}

func NewPgLessonRepository(db *sql.DB) LessonRepository {
	return &pgLessonRepository{db: db}
}

const lessonColumns = `l.id, l.title, l.description, l.content, l.sort_order, l.is_published,
	l.institution_id, l.created_by, lu.name, l.created_at, l.updated_at`

const lessonJoins = ` FROM lessons l LEFT JOIN users lu ON lu.id = l.created_by`

func scanLesson(row interface{ Scan(...interface{}) error }) (*model.Lesson, error) {
	l := &model.Lesson{}
	err := row.Scan(
		&l.ID, &l.Title, &l.Description, &l.Content, &l.SortOrder, &l.IsPublished,
		&l.InstitutionID, &l.CreatedByID, &l.CreatedByName, &l.CreatedAt, &l.UpdatedAt,
	)
	return l, err
}

func (r *pgLessonRepository) Create(ctx context.Context, l *model.Lesson) error {
	query := `INSERT INTO lessons (id, title, description, content, sort_order, is_published, institution_id, created_by)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.db.ExecContext(ctx, query, l.ID, l.Title, l.Description, l.Content, l.SortOrder, l.IsPublished, l.InstitutionID, l.CreatedByID)
	if err != nil {
		return fmt.Errorf("pgLessonRepository.Create: %w", err)
	}
	return nil
}

func (r *pgLessonRepository) Update(ctx context.Context, l *model.Lesson) error {
	query := `UPDATE lessons SET
	            title = $1, description = $2, content = $3, sort_order = $4, updated_at = CURRENT_TIMESTAMP
	          WHERE id = $5`
	res, err := r.db.ExecContext(ctx, query, l.Title, l.Description, l.Content, l.SortOrder, l.ID)
	if err != nil {
		return fmt.Errorf("pgLessonRepository.Update: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *pgLessonRepository) FindByID(ctx context.Context, id string) (*model.Lesson, error) {
	query := `SELECT ` + lessonColumns + lessonJoins + ` WHERE l.id = $1`
	l, err := scanLesson(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgLessonRepository.FindByID: %w", err)
	}
	return l, nil
}

func (r *pgLessonRepository) List(ctx context.Context, limit, offset int, institutionID string, publishedOnly bool) ([]model.Lesson, int, error) {
	var baseQuery strings.Builder
	baseQuery.WriteString(`SELECT ` + lessonColumns + lessonJoins)

	var countQuery strings.Builder
	countQuery.WriteString(`SELECT COUNT(*) FROM lessons l`)

	var conditions []string
	var args []interface{}
	argID := 1

	if institutionID != "" {
		conditions = append(conditions, fmt.Sprintf("l.institution_id = $%d", argID))
		args = append(args, institutionID)
		argID++
	}
	if publishedOnly {
		conditions = append(conditions, "l.is_published")
	}

	if len(conditions) > 0 {
		whereClause := " WHERE " + strings.Join(conditions, " AND ")
		baseQuery.WriteString(whereClause)
		countQuery.WriteString(whereClause)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, countQuery.String(), args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgLessonRepository.List count: %w", err)
	}

	baseQuery.WriteString(fmt.Sprintf(" ORDER BY l.sort_order ASC, l.created_at ASC LIMIT $%d OFFSET $%d", argID, argID+1))
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, baseQuery.String(), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgLessonRepository.List query: %w", err)
	}
	defer rows.Close()

	lessons := []model.Lesson{}
	for rows.Next() {
		l, err := scanLesson(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("pgLessonRepository.List scan: %w", err)
		}
		lessons = append(lessons, *l)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("pgLessonRepository.List rows.Err: %w", err)
	}
	return lessons, total, nil
}

func (r *pgLessonRepository) SetPublished(ctx context.Context, id string, published bool) error {
	query := `UPDATE lessons SET is_published = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`
	res, err := r.db.ExecContext(ctx, query, published, id)
	if err != nil {
		return fmt.Errorf("pgLessonRepository.SetPublished: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *pgLessonRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM lessons WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("pgLessonRepository.Delete: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *pgLessonRepository) RecentPublished(ctx context.Context, institutionID string, limit int) ([]model.Lesson, error) {
	query := `SELECT ` + lessonColumns + lessonJoins + `
	          WHERE l.institution_id = $1 AND l.is_published
	          ORDER BY l.created_at DESC LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, institutionID, limit)
	if err != nil {
		return nil, fmt.Errorf("pgLessonRepository.RecentPublished query: %w", err)
	}
	defer rows.Close()

	lessons := []model.Lesson{}
	for rows.Next() {
		l, err := scanLesson(rows)
		if err != nil {
			return nil, fmt.Errorf("pgLessonRepository.RecentPublished scan: %w", err)
		}
		lessons = append(lessons, *l)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("pgLessonRepository.RecentPublished rows.Err: %w", err)
	}
	return lessons, nil
}
