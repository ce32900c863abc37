package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/schoolyard-io/timetable-api/internal/models"
)

// TemplateRepository persists saved timetable templates.
type TemplateRepository struct {
	db *sqlx.DB
}

// NewTemplateRepository constructs the repository.
func NewTemplateRepository(db *sqlx.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

const templateColumns = `id, school_id, name, source_class, keep_teachers, slots, created_by, created_at`

// Create inserts a new template snapshot. Templates are immutable after
// creation apart from deletion.
func (r *TemplateRepository) Create(ctx context.Context, template *models.Template) error {
	if template.ID == "" {
		template.ID = uuid.NewString()
	}
	if template.CreatedAt.IsZero() {
		template.CreatedAt = time.Now().UTC()
	}

	const query = `
INSERT INTO timetable_templates (id, school_id, name, source_class, keep_teachers, slots, created_by, created_at)
VALUES (:id, :school_id, :name, :source_class, :keep_teachers, :slots, :created_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, template); err != nil {
		return fmt.Errorf("create template: %w", err)
	}
	return nil
}

// FindByID loads a template by id.
func (r *TemplateRepository) FindByID(ctx context.Context, id string) (*models.Template, error) {
	query := fmt.Sprintf("SELECT %s FROM timetable_templates WHERE id = $1", templateColumns)
	var template models.Template
	if err := r.db.GetContext(ctx, &template, query, id); err != nil {
		return nil, err
	}
	return &template, nil
}

// ListBySchool returns a school's templates, newest first.
func (r *TemplateRepository) ListBySchool(ctx context.Context, schoolID string) ([]models.Template, error) {
	query := fmt.Sprintf("SELECT %s FROM timetable_templates WHERE school_id = $1 ORDER BY created_at DESC", templateColumns)
	var templates []models.Template
	if err := r.db.SelectContext(ctx, &templates, query, schoolID); err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return templates, nil
}

// Delete removes a stored template.
func (r *TemplateRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM timetable_templates WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check deleted template rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
