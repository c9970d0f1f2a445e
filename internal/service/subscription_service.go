package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/seatwatch/seatwatch-backend/internal/model"
	"github.com/seatwatch/seatwatch-backend/internal/monitor"
)

// Subscription errors surfaced to the API layer.
var (
	ErrInvalidCourseKey   = errors.New("invalid course key")
	ErrSectionLimit       = errors.New("section limit reached")
	ErrSectionUnreachable = errors.New("section page unreachable")
	ErrSectionNotOffered  = errors.New("section not offered")
	ErrAlreadyWatching    = errors.New("already watching")
	ErrWatchNotFound      = errors.New("watch entry not found")
)

// Warnings attached to an otherwise-successful subscription.
const (
	WarningOnlySTT = "The remaining seats in this section appear to only be available through an STT. " +
		"You will be notified if any non-STT seats open up in this section."
	WarningBlocked = "This section is currently blocked for registration. " +
		"You will be notified if the section is unblocked and there is an opening."
)

// CourseStore is the catalog surface the subscription flow needs.
type CourseStore interface {
	GetOrCreate(ctx context.Context, key model.CourseKey) (*model.Course, bool, error)
	DeleteCourse(ctx context.Context, key model.CourseKey) error
}

// WatchStore owns watch-entry rows.
type WatchStore interface {
	Create(ctx context.Context, userID, courseID int64, restricted bool) (*model.WatchEntry, error)
	DeleteOpposite(ctx context.Context, userID, courseID int64, restricted bool) error
	DeleteByID(ctx context.Context, id, userID int64) (bool, error)
	ListByUser(ctx context.Context, userID int64) ([]model.WatchEntry, error)
	CountByUser(ctx context.Context, userID int64) (int, error)
}

// Fetcher downloads a status page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// SubscriptionService owns watch-entry CRUD. The monitoring engine only ever
// reads what this service writes.
type SubscriptionService struct {
	courseRepo CourseStore
	watchRepo  WatchStore
	fetcher    Fetcher
	extractor  monitor.SeatExtractor

	maxStandardSections int
	log                 zerolog.Logger
}

func NewSubscriptionService(
	courseRepo CourseStore,
	watchRepo WatchStore,
	fetcher Fetcher,
	maxStandardSections int,
	log zerolog.Logger,
) *SubscriptionService {
	return &SubscriptionService{
		courseRepo:          courseRepo,
		watchRepo:           watchRepo,
		fetcher:             fetcher,
		maxStandardSections: maxStandardSections,
		log:                 log.With().Str("component", "subscription_service").Logger(),
	}
}

// AddWatch subscribes the user to a section. For a course seen for the first
// time the live page is probed once: an unreachable or no-longer-offered page
// rolls the course back and fails the request; an STT-only or blocked page is
// accepted with a warning. Adding an entry supersedes the user's entry with
// the opposite restricted flag for the same course.
func (s *SubscriptionService) AddWatch(ctx context.Context, user *model.User, req model.AddWatchRequest) (*model.WatchEntry, string, error) {
	key := req.CourseKey()
	if err := key.Validate(); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidCourseKey, err)
	}

	if user.Tier() == model.TierStandard {
		count, err := s.watchRepo.CountByUser(ctx, user.ID)
		if err != nil {
			return nil, "", fmt.Errorf("count watches: %w", err)
		}
		if count >= s.maxStandardSections {
			return nil, "", ErrSectionLimit
		}
	}

	course, created, err := s.courseRepo.GetOrCreate(ctx, key)
	if err != nil {
		return nil, "", fmt.Errorf("get or create course: %w", err)
	}

	warning, err := s.probe(ctx, key, created)
	if err != nil {
		if created {
			if derr := s.courseRepo.DeleteCourse(ctx, key); derr != nil {
				s.log.Error().Err(derr).Str("course", key.String()).Msg("Failed to roll back course")
			}
		}
		return nil, "", err
	}

	entry, err := s.watchRepo.Create(ctx, user.ID, course.ID, req.Restricted)
	if err != nil {
		return nil, "", fmt.Errorf("create watch entry: %w", err)
	}
	if entry == nil {
		return nil, "", ErrAlreadyWatching
	}
	entry.Course = key

	if err := s.watchRepo.DeleteOpposite(ctx, user.ID, course.ID, req.Restricted); err != nil {
		return nil, "", fmt.Errorf("supersede opposite entry: %w", err)
	}

	s.log.Info().
		Str("course", key.String()).
		Int64("user_id", user.ID).
		Bool("restricted", req.Restricted).
		Msg("Watch added")

	return entry, warning, nil
}

// probe downloads the section page once to catch dead or degenerate sections
// at subscription time. Failures are only fatal for newly created courses;
// an already-watched course is known to have been valid once.
func (s *SubscriptionService) probe(ctx context.Context, key model.CourseKey, created bool) (string, error) {
	markup, err := s.fetcher.Fetch(ctx, key.URL())
	if err != nil {
		if created {
			return "", ErrSectionUnreachable
		}
		s.log.Warn().Err(err).Str("course", key.String()).Msg("Probe fetch failed for existing course")
		return "", nil
	}

	ext := s.extractor.Extract(markup)
	switch {
	case ext.Outcome == monitor.OutcomeNoLongerOffered && created:
		return "", ErrSectionNotOffered
	case ext.Outcome == monitor.OutcomeStillOnlySTT:
		return WarningOnlySTT, nil
	case ext.Outcome == monitor.OutcomeSeats && ext.Seats.Blocked:
		return WarningBlocked, nil
	}
	return "", nil
}

// ListWatches returns the user's watch entries.
func (s *SubscriptionService) ListWatches(ctx context.Context, userID int64) ([]model.WatchEntry, error) {
	return s.watchRepo.ListByUser(ctx, userID)
}

// RemoveWatch deletes one of the user's entries. The course row stays even if
// this was its last watcher; the scheduler's pruning pass garbage-collects
// zero-watcher courses.
func (s *SubscriptionService) RemoveWatch(ctx context.Context, userID, entryID int64) error {
	ok, err := s.watchRepo.DeleteByID(ctx, entryID, userID)
	if err != nil {
		return fmt.Errorf("delete watch entry: %w", err)
	}
	if !ok {
		return ErrWatchNotFound
	}
	return nil
}
