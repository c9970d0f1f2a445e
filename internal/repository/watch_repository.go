package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/seatwatch/seatwatch-backend/internal/model"
)

type WatchRepository struct {
	pool *pgxpool.Pool
}

func NewWatchRepository(pool *pgxpool.Pool) *WatchRepository {
	return &WatchRepository{pool: pool}
}

// Create inserts a watch entry and returns the stored row. Returns nil when
// the same (user, course, restricted) entry already exists.
func (r *WatchRepository) Create(ctx context.Context, userID, courseID int64, restricted bool) (*model.WatchEntry, error) {
	e := model.WatchEntry{UserID: userID, CourseID: courseID, Restricted: restricted}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO watch_entries (user_id, course_id, restricted)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, course_id, restricted) DO NOTHING
		RETURNING id, created_at`,
		userID, courseID, restricted,
	).Scan(&e.ID, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// DeleteOpposite removes the user's entry with the opposite restricted flag
// for the same course, so each user holds one effective entry per section.
func (r *WatchRepository) DeleteOpposite(ctx context.Context, userID, courseID int64, restricted bool) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM watch_entries
		WHERE user_id = $1 AND course_id = $2 AND restricted = $3`,
		userID, courseID, !restricted)
	return err
}

// DeleteByID removes one of the user's own entries. Returns false when no
// such entry belongs to the user.
func (r *WatchRepository) DeleteByID(ctx context.Context, id, userID int64) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM watch_entries WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ListByUser returns the user's watch entries with their course keys.
func (r *WatchRepository) ListByUser(ctx context.Context, userID int64) ([]model.WatchEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT w.id, w.user_id, w.course_id, w.restricted, w.created_at,
		       c.campus, c.year, c.session, c.subject, c.number, c.section
		FROM watch_entries w
		JOIN courses c ON c.id = w.course_id
		WHERE w.user_id = $1
		ORDER BY c.year, c.session, c.subject, c.number, c.section, w.restricted`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.WatchEntry
	for rows.Next() {
		var e model.WatchEntry
		if err := rows.Scan(
			&e.ID, &e.UserID, &e.CourseID, &e.Restricted, &e.CreatedAt,
			&e.Course.Campus, &e.Course.Year, &e.Course.Session,
			&e.Course.Subject, &e.Course.Number, &e.Course.Section,
		); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CountByUser counts the user's watch entries, for the section cap.
func (r *WatchRepository) CountByUser(ctx context.Context, userID int64) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM watch_entries WHERE user_id = $1`, userID).Scan(&n)
	return n, err
}

// WatchersOf implements the engine's watcher registry. restrictedOnly=true
// narrows to watchers holding a restricted entry; false returns every watcher
// of the course. Deduplicated by user, ordered by contact address.
func (r *WatchRepository) WatchersOf(ctx context.Context, key model.CourseKey, restrictedOnly bool) ([]model.Watcher, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT u.email, u.is_staff, u.is_premium
		FROM users u
		JOIN watch_entries w ON w.user_id = u.id
		JOIN courses c ON c.id = w.course_id
		WHERE c.campus = $1 AND c.year = $2 AND c.session = $3
		  AND c.subject = $4 AND c.number = $5 AND c.section = $6
		  AND (NOT $7 OR w.restricted)
		ORDER BY u.email`,
		key.Campus, key.Year, key.Session, key.Subject, key.Number, key.Section,
		restrictedOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var watchers []model.Watcher
	for rows.Next() {
		var (
			w                  model.Watcher
			isStaff, isPremium bool
		)
		if err := rows.Scan(&w.Email, &isStaff, &isPremium); err != nil {
			return nil, err
		}
		switch {
		case isStaff:
			w.Tier = model.TierStaff
		case isPremium:
			w.Tier = model.TierPremium
		default:
			w.Tier = model.TierStandard
		}
		watchers = append(watchers, w)
	}
	return watchers, rows.Err()
}

// WatcherCount counts distinct users watching the course.
func (r *WatchRepository) WatcherCount(ctx context.Context, key model.CourseKey) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(DISTINCT w.user_id)
		FROM watch_entries w
		JOIN courses c ON c.id = w.course_id
		WHERE c.campus = $1 AND c.year = $2 AND c.session = $3
		  AND c.subject = $4 AND c.number = $5 AND c.section = $6`,
		key.Campus, key.Year, key.Session, key.Subject, key.Number, key.Section,
	).Scan(&n)
	return n, err
}
