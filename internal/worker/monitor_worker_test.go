package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/seatwatch/seatwatch-backend/internal/model"
	"github.com/seatwatch/seatwatch-backend/internal/monitor"
)

var (
	baseTime = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	window   = 24 * time.Hour
)

func courseKey(section string) model.CourseKey {
	return model.CourseKey{
		Campus: "UBC", Year: "2024", Session: "W",
		Subject: "CPSC", Number: "110", Section: section,
	}
}

// ─── Fakes ─────────────────────────────────────────────────────────────

type fakeStore struct {
	courses []model.Course
	deleted []model.CourseKey
	saved   map[string]time.Time
}

func (s *fakeStore) ListWatchedCourses(context.Context) ([]model.Course, error) {
	return s.courses, nil
}

func (s *fakeStore) DeleteCourse(_ context.Context, key model.CourseKey) error {
	s.deleted = append(s.deleted, key)
	return nil
}

func (s *fakeStore) SaveLastOpenAt(_ context.Context, key model.CourseKey, t time.Time) error {
	if s.saved == nil {
		s.saved = map[string]time.Time{}
	}
	s.saved[key.String()] = t
	return nil
}

type fakeCountRegistry struct {
	counts map[string]int
}

func (r *fakeCountRegistry) WatchersOf(context.Context, model.CourseKey, bool) ([]model.Watcher, error) {
	return nil, nil
}

func (r *fakeCountRegistry) WatcherCount(_ context.Context, key model.CourseKey) (int, error) {
	if n, ok := r.counts[key.String()]; ok {
		return n, nil
	}
	return 1, nil
}

type fakeFetcher struct {
	markup  string
	err     error
	fetched []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (string, error) {
	f.fetched = append(f.fetched, url)
	if f.err != nil {
		return "", f.err
	}
	return f.markup, nil
}

type fakeExtractor struct {
	ext       monitor.Extraction
	panicking bool
}

func (e fakeExtractor) Extract(string) monitor.Extraction {
	if e.panicking {
		panic("bad markup")
	}
	return e.ext
}

type fakeSelector struct {
	recipients []model.Watcher
	tier       model.Tier
	err        error
}

func (s fakeSelector) Select(context.Context, model.CourseKey, monitor.Category) ([]model.Watcher, model.Tier, error) {
	return s.recipients, s.tier, s.err
}

type fakeNotifier struct {
	delivered bool
	calls     int
	lastTo    []model.Watcher
}

func (n *fakeNotifier) Notify(recipients []model.Watcher, _ model.Course) bool {
	n.calls++
	n.lastTo = recipients
	return n.delivered
}

func generalOpening() monitor.Extraction {
	return monitor.Extraction{
		Outcome: monitor.OutcomeSeats,
		Seats:   monitor.SeatState{TotalOpen: 3, GeneralOpen: 3},
	}
}

func oneStandardWatcher() []model.Watcher {
	return []model.Watcher{{Email: "w@x.y", Tier: model.TierStandard}}
}

// newTestWorker wires a worker with a sub-floor poll interval and a frozen
// clock, bypassing the constructor's interval floor.
func newTestWorker(store *fakeStore, reg monitor.WatcherRegistry, f Fetcher, e Extractor, sel Selector, n Notifier, hub *monitor.EventHub) *MonitorWorker {
	return &MonitorWorker{
		store:        store,
		registry:     reg,
		fetcher:      f,
		extractor:    e,
		selector:     sel,
		notifier:     n,
		hub:          hub,
		pollInterval: time.Millisecond,
		cooldown:     window,
		now:          func() time.Time { return baseTime },
		log:          zerolog.Nop(),
	}
}

// ─── Tests ─────────────────────────────────────────────────────────────

func TestCheckCourseNotifiesAndRearms(t *testing.T) {
	store := &fakeStore{}
	notifier := &fakeNotifier{delivered: true}
	w := newTestWorker(store, &fakeCountRegistry{}, &fakeFetcher{markup: "x"},
		fakeExtractor{ext: generalOpening()},
		fakeSelector{recipients: oneStandardWatcher(), tier: model.TierStandard},
		notifier, nil)

	course := model.Course{ID: 1, Key: courseKey("101")}
	w.checkCourse(context.Background(), course)

	if notifier.calls != 1 {
		t.Fatalf("notifier called %d times, want 1", notifier.calls)
	}
	got, ok := store.saved[course.Key.String()]
	if !ok {
		t.Fatal("cooldown anchor not saved")
	}
	if !got.Equal(baseTime) {
		t.Errorf("standard anchor = %v, want %v", got, baseTime)
	}
}

func TestCheckCourseRearmByTier(t *testing.T) {
	tests := []struct {
		tier model.Tier
		want time.Time
	}{
		{model.TierStaff, baseTime.Add(-(window * 3 / 4))},
		{model.TierPremium, baseTime.Add(-(window / 2))},
		{model.TierStandard, baseTime},
	}

	for _, tt := range tests {
		t.Run(string(tt.tier), func(t *testing.T) {
			store := &fakeStore{}
			w := newTestWorker(store, &fakeCountRegistry{}, &fakeFetcher{markup: "x"},
				fakeExtractor{ext: generalOpening()},
				fakeSelector{recipients: []model.Watcher{{Email: "w@x.y", Tier: tt.tier}}, tier: tt.tier},
				&fakeNotifier{delivered: true}, nil)

			course := model.Course{ID: 1, Key: courseKey("101")}
			w.checkCourse(context.Background(), course)

			got := store.saved[course.Key.String()]
			if !got.Equal(tt.want) {
				t.Errorf("anchor = %v, want %v", got, tt.want)
			}
		})
	}
}

// A staff-driven cycle leaves the course eligible again sooner than a premium
// one, which in turn beats standard.
func TestRearmAnchorOrdering(t *testing.T) {
	staff := rearmAnchor(model.TierStaff, baseTime, window)
	premium := rearmAnchor(model.TierPremium, baseTime, window)
	standard := rearmAnchor(model.TierStandard, baseTime, window)

	if !staff.Before(premium) {
		t.Errorf("staff anchor %v not before premium %v", staff, premium)
	}
	if !premium.Before(standard) {
		t.Errorf("premium anchor %v not before standard %v", premium, standard)
	}
}

func TestCheckCourseDeliveryFailureStillRearms(t *testing.T) {
	store := &fakeStore{}
	w := newTestWorker(store, &fakeCountRegistry{}, &fakeFetcher{markup: "x"},
		fakeExtractor{ext: generalOpening()},
		fakeSelector{recipients: oneStandardWatcher(), tier: model.TierStandard},
		&fakeNotifier{delivered: false}, nil)

	course := model.Course{ID: 1, Key: courseKey("101")}
	w.checkCourse(context.Background(), course)

	if _, ok := store.saved[course.Key.String()]; !ok {
		t.Error("failed delivery must still advance the cooldown anchor")
	}
}

func TestCheckCourseFetchFailure(t *testing.T) {
	store := &fakeStore{}
	notifier := &fakeNotifier{delivered: true}
	w := newTestWorker(store, &fakeCountRegistry{},
		&fakeFetcher{err: errors.New("timeout")},
		fakeExtractor{ext: generalOpening()},
		fakeSelector{recipients: oneStandardWatcher(), tier: model.TierStandard},
		notifier, nil)

	w.checkCourse(context.Background(), model.Course{ID: 1, Key: courseKey("101")})

	if notifier.calls != 0 {
		t.Error("notifier called despite fetch failure")
	}
	if len(store.saved) != 0 {
		t.Error("anchor saved despite fetch failure")
	}
}

func TestCheckCourseNonSeatOutcomes(t *testing.T) {
	outcomes := []monitor.Outcome{
		monitor.OutcomeParseFailed,
		monitor.OutcomeStillOnlySTT,
		monitor.OutcomeNoLongerOffered,
	}

	for _, outcome := range outcomes {
		t.Run(outcome.String(), func(t *testing.T) {
			store := &fakeStore{}
			notifier := &fakeNotifier{delivered: true}
			w := newTestWorker(store, &fakeCountRegistry{}, &fakeFetcher{markup: "x"},
				fakeExtractor{ext: monitor.Extraction{Outcome: outcome}},
				fakeSelector{recipients: oneStandardWatcher(), tier: model.TierStandard},
				notifier, nil)

			w.checkCourse(context.Background(), model.Course{ID: 1, Key: courseKey("101")})

			if notifier.calls != 0 || len(store.saved) != 0 {
				t.Errorf("outcome %v must not notify or re-arm", outcome)
			}
		})
	}
}

func TestCheckCourseBlockedSection(t *testing.T) {
	store := &fakeStore{}
	notifier := &fakeNotifier{delivered: true}
	w := newTestWorker(store, &fakeCountRegistry{}, &fakeFetcher{markup: "x"},
		fakeExtractor{ext: monitor.Extraction{
			Outcome: monitor.OutcomeSeats,
			Seats:   monitor.SeatState{TotalOpen: 4, GeneralOpen: 4, Blocked: true},
		}},
		fakeSelector{recipients: oneStandardWatcher(), tier: model.TierStandard},
		notifier, nil)

	w.checkCourse(context.Background(), model.Course{ID: 1, Key: courseKey("101")})

	if notifier.calls != 0 {
		t.Error("blocked section must not notify")
	}
	if len(store.saved) != 0 {
		t.Error("blocked section must not advance the anchor")
	}
}

func TestCheckCourseNoRecipients(t *testing.T) {
	store := &fakeStore{}
	notifier := &fakeNotifier{delivered: true}
	w := newTestWorker(store, &fakeCountRegistry{}, &fakeFetcher{markup: "x"},
		fakeExtractor{ext: generalOpening()},
		fakeSelector{recipients: nil, tier: model.TierStandard},
		notifier, nil)

	w.checkCourse(context.Background(), model.Course{ID: 1, Key: courseKey("101")})

	if notifier.calls != 0 {
		t.Error("empty audience must not notify")
	}
	if len(store.saved) != 0 {
		t.Error("empty audience must not advance the anchor")
	}
}

func TestCheckCoursePanicContained(t *testing.T) {
	store := &fakeStore{}
	w := newTestWorker(store, &fakeCountRegistry{}, &fakeFetcher{markup: "x"},
		fakeExtractor{panicking: true},
		fakeSelector{}, &fakeNotifier{}, nil)

	// Must not propagate.
	w.checkCourse(context.Background(), model.Course{ID: 1, Key: courseKey("101")})
}

func TestRunPassPrunesOrphans(t *testing.T) {
	watched := model.Course{ID: 1, Key: courseKey("101")}
	orphan := model.Course{ID: 2, Key: courseKey("102")}
	store := &fakeStore{courses: []model.Course{watched, orphan}}
	fetcher := &fakeFetcher{markup: "x"}
	reg := &fakeCountRegistry{counts: map[string]int{
		watched.Key.String(): 2,
		orphan.Key.String():  0,
	}}
	w := newTestWorker(store, reg, fetcher,
		fakeExtractor{ext: monitor.Extraction{Outcome: monitor.OutcomeSeats}},
		fakeSelector{}, &fakeNotifier{}, nil)

	w.runPass(context.Background())

	if len(store.deleted) != 1 || store.deleted[0] != orphan.Key {
		t.Errorf("deleted = %v, want just %v", store.deleted, orphan.Key)
	}
	for _, url := range fetcher.fetched {
		if url == orphan.Key.URL() {
			t.Error("orphaned course was fetched before pruning")
		}
	}
}

func TestRunPassCooldownEligibility(t *testing.T) {
	cooling := baseTime.Add(-window / 2)
	expired := baseTime.Add(-window - time.Minute)

	store := &fakeStore{courses: []model.Course{
		{ID: 1, Key: courseKey("101"), LastOpenAt: &cooling},
		{ID: 2, Key: courseKey("102"), LastOpenAt: &expired},
		{ID: 3, Key: courseKey("103")},
	}}
	fetcher := &fakeFetcher{markup: "x"}
	w := newTestWorker(store, &fakeCountRegistry{}, fetcher,
		fakeExtractor{ext: monitor.Extraction{Outcome: monitor.OutcomeSeats}},
		fakeSelector{}, &fakeNotifier{}, nil)

	w.runPass(context.Background())

	if len(fetcher.fetched) != 2 {
		t.Fatalf("fetched %d courses, want 2: %v", len(fetcher.fetched), fetcher.fetched)
	}
	for _, url := range fetcher.fetched {
		if url == courseKey("101").URL() {
			t.Error("cooling course was fetched")
		}
	}
}

func TestRunPassPublishesEvents(t *testing.T) {
	hub := monitor.NewEventHub()
	events, cancel := hub.Subscribe()
	defer cancel()

	store := &fakeStore{courses: []model.Course{{ID: 1, Key: courseKey("101")}}}
	w := newTestWorker(store, &fakeCountRegistry{}, &fakeFetcher{markup: "x"},
		fakeExtractor{ext: generalOpening()},
		fakeSelector{recipients: oneStandardWatcher(), tier: model.TierStandard},
		&fakeNotifier{delivered: true}, hub)

	w.runPass(context.Background())

	select {
	case evt := <-events:
		if evt.Status != "notified" {
			t.Errorf("event status = %q, want notified", evt.Status)
		}
		if evt.Course != courseKey("101").String() {
			t.Errorf("event course = %q", evt.Course)
		}
	default:
		t.Fatal("no event published")
	}
}

func TestStartStopsOnCancel(t *testing.T) {
	store := &fakeStore{}
	w := newTestWorker(store, &fakeCountRegistry{}, &fakeFetcher{markup: "x"},
		fakeExtractor{ext: monitor.Extraction{Outcome: monitor.OutcomeSeats}},
		fakeSelector{}, &fakeNotifier{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after context cancellation")
	}
}

func TestNewMonitorWorkerFloorsPollInterval(t *testing.T) {
	w := NewMonitorWorker(&fakeStore{}, &fakeCountRegistry{}, &fakeFetcher{},
		fakeExtractor{}, fakeSelector{}, &fakeNotifier{}, nil,
		10*time.Millisecond, window, zerolog.Nop())

	if w.pollInterval != time.Second {
		t.Errorf("pollInterval = %v, want floor of 1s", w.pollInterval)
	}
}
