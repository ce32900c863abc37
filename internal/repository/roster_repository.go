package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/schoolyard-io/timetable-api/internal/models"
)

// RosterRepository reads the teacher/subject/class rosters owned by the
// surrounding administration system. Strictly read-only here.
type RosterRepository struct {
	db *sqlx.DB
}

// NewRosterRepository constructs the repository.
func NewRosterRepository(db *sqlx.DB) *RosterRepository {
	return &RosterRepository{db: db}
}

// FindTeacher loads a roster teacher by id.
func (r *RosterRepository) FindTeacher(ctx context.Context, id string) (*models.Teacher, error) {
	const query = `SELECT id, school_id, full_name, active FROM teachers WHERE id = $1`
	var teacher models.Teacher
	if err := r.db.GetContext(ctx, &teacher, query, id); err != nil {
		return nil, err
	}
	return &teacher, nil
}

// FindSubject loads a roster subject by id.
func (r *RosterRepository) FindSubject(ctx context.Context, id string) (*models.Subject, error) {
	const query = `SELECT id, school_id, name, active FROM subjects WHERE id = $1`
	var subject models.Subject
	if err := r.db.GetContext(ctx, &subject, query, id); err != nil {
		return nil, err
	}
	return &subject, nil
}

// FindClass loads a roster class by id.
func (r *RosterRepository) FindClass(ctx context.Context, id string) (*models.Class, error) {
	const query = `SELECT id, school_id, name, active FROM classes WHERE id = $1`
	var class models.Class
	if err := r.db.GetContext(ctx, &class, query, id); err != nil {
		return nil, err
	}
	return &class, nil
}
