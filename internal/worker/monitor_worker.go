package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/seatwatch/seatwatch-backend/internal/model"
	"github.com/seatwatch/seatwatch-backend/internal/monitor"
)

// CatalogStore is the engine's view of the course catalog. The worker owns
// the LastOpenAt lifecycle field and the garbage collection of courses
// nobody watches anymore.
type CatalogStore interface {
	ListWatchedCourses(ctx context.Context) ([]model.Course, error)
	DeleteCourse(ctx context.Context, key model.CourseKey) error
	SaveLastOpenAt(ctx context.Context, key model.CourseKey, t time.Time) error
}

// Fetcher downloads a status page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Extractor parses markup into a seat state.
type Extractor interface {
	Extract(markup string) monitor.Extraction
}

// Selector computes the notification audience for an opening.
type Selector interface {
	Select(ctx context.Context, key model.CourseKey, category monitor.Category) ([]model.Watcher, model.Tier, error)
}

// Notifier delivers one message to a recipient list.
type Notifier interface {
	Notify(recipients []model.Watcher, course model.Course) bool
}

// MonitorWorker is the polling scheduler. One worker polls the watched-course
// set sequentially with a flat pause between fetches, so at most one request
// to the status site is ever in flight. Running two workers against the same
// catalog is unsupported and would double notification volume.
type MonitorWorker struct {
	store     CatalogStore
	registry  monitor.WatcherRegistry
	fetcher   Fetcher
	extractor Extractor
	selector  Selector
	notifier  Notifier
	hub       *monitor.EventHub

	pollInterval time.Duration
	cooldown     time.Duration
	now          func() time.Time
	log          zerolog.Logger
}

func NewMonitorWorker(
	store CatalogStore,
	registry monitor.WatcherRegistry,
	fetcher Fetcher,
	extractor Extractor,
	selector Selector,
	notifier Notifier,
	hub *monitor.EventHub,
	pollInterval, cooldown time.Duration,
	log zerolog.Logger,
) *MonitorWorker {
	// Anything under a second would hammer the status site.
	if pollInterval < time.Second {
		pollInterval = time.Second
	}
	return &MonitorWorker{
		store:        store,
		registry:     registry,
		fetcher:      fetcher,
		extractor:    extractor,
		selector:     selector,
		notifier:     notifier,
		hub:          hub,
		pollInterval: pollInterval,
		cooldown:     cooldown,
		now:          time.Now,
		log:          log.With().Str("component", "monitor_worker").Logger(),
	}
}

// Start runs polling passes until the context is cancelled.
func (w *MonitorWorker) Start(ctx context.Context) {
	w.log.Info().
		Dur("poll_interval", w.pollInterval).
		Dur("cooldown_window", w.cooldown).
		Msg("MonitorWorker started")

	for {
		if ctx.Err() != nil {
			w.log.Info().Msg("MonitorWorker stopped")
			return
		}
		w.runPass(ctx)
		if !w.pause(ctx) {
			w.log.Info().Msg("MonitorWorker stopped")
			return
		}
	}
}

// runPass evaluates every watched course once. The watcher registry is
// consulted fresh at each course, never cached across passes. Courses whose
// watcher count is observed at zero are collected while iterating and
// deleted at the end of the pass; no fetch is issued for them.
func (w *MonitorWorker) runPass(ctx context.Context) {
	courses, err := w.store.ListWatchedCourses(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("Failed to list watched courses")
		return
	}

	var orphans []model.CourseKey
	for _, course := range courses {
		if ctx.Err() != nil {
			return
		}

		count, err := w.registry.WatcherCount(ctx, course.Key)
		if err != nil {
			w.log.Error().Err(err).Str("course", course.Key.String()).Msg("Failed to count watchers")
			continue
		}
		if count == 0 {
			orphans = append(orphans, course.Key)
			continue
		}

		if !w.eligible(course, w.now()) {
			continue
		}

		w.checkCourse(ctx, course)

		// Flat per-course delay. This throttles aggregate request rate
		// against the status site no matter how many courses are eligible.
		if !w.pause(ctx) {
			return
		}
	}

	w.prune(ctx, orphans)
}

// eligible reports whether the course's cooldown window has elapsed.
func (w *MonitorWorker) eligible(course model.Course, now time.Time) bool {
	return course.LastOpenAt == nil || course.LastOpenAt.Add(w.cooldown).Before(now)
}

// checkCourse runs one fetch-extract-classify-notify cycle. Every failure is
// soft: logged, published, and contained to this course so the rest of the
// pass proceeds.
func (w *MonitorWorker) checkCourse(ctx context.Context, course model.Course) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error().
				Str("course", course.Key.String()).
				Interface("panic", r).
				Msg("Course check panicked")
		}
	}()

	name := course.Key.String()
	log := w.log.With().Str("course", name).Logger()

	markup, err := w.fetcher.Fetch(ctx, course.Key.URL())
	if err != nil {
		log.Warn().Err(err).Msg("Failed to download status page")
		w.publish(name, "fetch_failed", err.Error())
		return
	}

	ext := w.extractor.Extract(markup)
	switch ext.Outcome {
	case monitor.OutcomeParseFailed:
		log.Warn().Msg("Status page matched no known pattern")
		w.publish(name, "parse_failed", "")
		return
	case monitor.OutcomeStillOnlySTT:
		log.Info().Msg("Only STT seats available at the moment")
		w.publish(name, "stt_only", "")
		return
	case monitor.OutcomeNoLongerOffered:
		log.Warn().Msg("Section appears to no longer be offered")
		w.publish(name, "not_offered", "")
		return
	}

	if ext.Seats.Blocked {
		// Distinct from a genuine zero-seat state: seats may show open,
		// but registration is administratively closed.
		log.Info().
			Int("total_open", ext.Seats.TotalOpen).
			Msg("Section is currently blocked for registration")
		w.publish(name, "blocked", "")
		return
	}

	category := monitor.Classify(ext.Seats)
	if category == monitor.CategoryNoOpening {
		log.Info().Msg("No openings")
		w.publish(name, "no_opening", "")
		return
	}

	log.Info().
		Str("category", category.String()).
		Int("total_open", ext.Seats.TotalOpen).
		Int("general_open", ext.Seats.GeneralOpen).
		Int("restricted_open", ext.Seats.RestrictedOpen).
		Msg("Seat opening detected")

	recipients, tier, err := w.selector.Select(ctx, course.Key, category)
	if err != nil {
		log.Error().Err(err).Msg("Failed to select recipients")
		w.publish(name, "selector_failed", err.Error())
		return
	}
	if len(recipients) == 0 {
		log.Info().Str("category", category.String()).Msg("No watchers entitled to this opening")
		w.publish(name, "no_recipients", "")
		return
	}

	delivered := w.notifier.Notify(recipients, course)
	if delivered {
		log.Info().Int("recipients", len(recipients)).Str("tier", string(tier)).Msg("Notification sent")
		w.publish(name, "notified", fmt.Sprintf("%d recipients (%s)", len(recipients), tier))
	} else {
		// The cooldown anchor still advances below: a failed send must
		// not cause an immediate re-notification storm.
		log.Warn().Int("recipients", len(recipients)).Msg("Notification delivery failed")
		w.publish(name, "delivery_failed", "")
	}

	anchor := rearmAnchor(tier, w.now(), w.cooldown)
	if err := w.store.SaveLastOpenAt(ctx, course.Key, anchor); err != nil {
		log.Error().Err(err).Msg("Failed to persist cooldown anchor")
	}
}

// rearmAnchor computes the backdated LastOpenAt value after a notification
// cycle. Staff re-arms in a quarter of the window, premium in half, standard
// waits the full window.
func rearmAnchor(tier model.Tier, now time.Time, window time.Duration) time.Time {
	switch tier {
	case model.TierStaff:
		return now.Add(-(window * 3 / 4))
	case model.TierPremium:
		return now.Add(-(window / 2))
	default:
		return now
	}
}

func (w *MonitorWorker) prune(ctx context.Context, orphans []model.CourseKey) {
	for _, key := range orphans {
		if err := w.store.DeleteCourse(ctx, key); err != nil {
			if !errors.Is(err, context.Canceled) {
				w.log.Error().Err(err).Str("course", key.String()).Msg("Failed to prune course")
			}
			continue
		}
		w.log.Info().Str("course", key.String()).Msg("Pruned course with no watchers")
		w.publish(key.String(), "pruned", "")
	}
}

func (w *MonitorWorker) publish(course, status, detail string) {
	if w.hub == nil {
		return
	}
	w.hub.Publish(monitor.Event{
		Time:   w.now(),
		Course: course,
		Status: status,
		Detail: detail,
	})
}

// pause sleeps for the poll interval, returning false when the context was
// cancelled first.
func (w *MonitorWorker) pause(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(w.pollInterval):
		return true
	}
}
