package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/seatwatch/seatwatch-backend/internal/model"
)

type CourseRepository struct {
	pool *pgxpool.Pool
}

func NewCourseRepository(pool *pgxpool.Pool) *CourseRepository {
	return &CourseRepository{pool: pool}
}

// GetOrCreate inserts the course when it does not exist yet and returns the
// existing row otherwise. Idempotent on the full key tuple; the second return
// reports whether a row was created.
func (r *CourseRepository) GetOrCreate(ctx context.Context, key model.CourseKey) (*model.Course, bool, error) {
	c := model.Course{Key: key}

	err := r.pool.QueryRow(ctx, `
		INSERT INTO courses (campus, year, session, subject, number, section)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (campus, year, session, subject, number, section) DO NOTHING
		RETURNING id, last_open_at, created_at, updated_at`,
		key.Campus, key.Year, key.Session, key.Subject, key.Number, key.Section,
	).Scan(&c.ID, &c.LastOpenAt, &c.CreatedAt, &c.UpdatedAt)
	if err == nil {
		return &c, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, err
	}

	// Conflict: the course already exists.
	err = r.pool.QueryRow(ctx, `
		SELECT id, last_open_at, created_at, updated_at FROM courses
		WHERE campus = $1 AND year = $2 AND session = $3
		  AND subject = $4 AND number = $5 AND section = $6`,
		key.Campus, key.Year, key.Session, key.Subject, key.Number, key.Section,
	).Scan(&c.ID, &c.LastOpenAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, false, err
	}
	return &c, false, nil
}

// ListWatchedCourses returns every course record. Rows only exist while
// someone watches them (modulo the scheduler's pruning pass).
func (r *CourseRepository) ListWatchedCourses(ctx context.Context) ([]model.Course, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, campus, year, session, subject, number, section,
		       last_open_at, created_at, updated_at
		FROM courses
		ORDER BY year, session, subject, number, section`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var courses []model.Course
	for rows.Next() {
		var c model.Course
		if err := rows.Scan(
			&c.ID, &c.Key.Campus, &c.Key.Year, &c.Key.Session,
			&c.Key.Subject, &c.Key.Number, &c.Key.Section,
			&c.LastOpenAt, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, err
		}
		courses = append(courses, c)
	}
	return courses, rows.Err()
}

// DeleteCourse removes a course row; watch entries cascade.
func (r *CourseRepository) DeleteCourse(ctx context.Context, key model.CourseKey) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM courses
		WHERE campus = $1 AND year = $2 AND session = $3
		  AND subject = $4 AND number = $5 AND section = $6`,
		key.Campus, key.Year, key.Session, key.Subject, key.Number, key.Section)
	return err
}

// SaveLastOpenAt persists the cooldown anchor after a notification cycle.
func (r *CourseRepository) SaveLastOpenAt(ctx context.Context, key model.CourseKey, t time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE courses SET last_open_at = $1, updated_at = NOW()
		WHERE campus = $2 AND year = $3 AND session = $4
		  AND subject = $5 AND number = $6 AND section = $7`,
		t, key.Campus, key.Year, key.Session, key.Subject, key.Number, key.Section)
	return err
}

// CountWatched counts courses with at least one watch entry, for the public
// stats endpoint.
func (r *CourseRepository) CountWatched(ctx context.Context) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM courses c
		WHERE EXISTS (SELECT 1 FROM watch_entries w WHERE w.course_id = c.id)`,
	).Scan(&n)
	return n, err
}
