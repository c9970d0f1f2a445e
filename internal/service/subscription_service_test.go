package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/seatwatch/seatwatch-backend/internal/model"
)

// Status-page fixtures for the add-watch probe.
const (
	seatsMarkup = `<html><body><table>
		<tr><td><strong>5</strong></td></tr>
		<tr><td><strong>95</strong></td></tr>
		<tr><td><strong>3</strong></td></tr>
		<tr><td><strong>2</strong></td></tr>
	</table></body></html>`
	blockedMarkup = `<html><body><table>
		<tr><td><strong>5</strong></td></tr>
		<tr><td><strong>95</strong></td></tr>
		<tr><td><strong>3</strong></td></tr>
		<tr><td><strong>2</strong></td></tr>
	</table><p>This section is blocked from registration.</p></body></html>`
	sttMarkup        = `<html><body><p>Seats are only available through a Standard Timetable.</p></body></html>`
	notOfferedMarkup = `<html><body><p>This section is no longer offered this session.</p></body></html>`
)

type fakeCourseStore struct {
	course  *model.Course
	created bool
	err     error
	deleted []model.CourseKey
}

func (s *fakeCourseStore) GetOrCreate(_ context.Context, key model.CourseKey) (*model.Course, bool, error) {
	if s.err != nil {
		return nil, false, s.err
	}
	if s.course == nil {
		s.course = &model.Course{ID: 7, Key: key}
	}
	return s.course, s.created, nil
}

func (s *fakeCourseStore) DeleteCourse(_ context.Context, key model.CourseKey) error {
	s.deleted = append(s.deleted, key)
	return nil
}

type fakeWatchStore struct {
	duplicate bool
	count     int
	entries   []model.WatchEntry

	createCalls     int
	oppositeDeletes []bool
	deletedIDs      []int64
	deleteOK        bool
}

func (s *fakeWatchStore) Create(_ context.Context, userID, courseID int64, restricted bool) (*model.WatchEntry, error) {
	s.createCalls++
	if s.duplicate {
		return nil, nil
	}
	return &model.WatchEntry{
		ID: 42, UserID: userID, CourseID: courseID,
		Restricted: restricted, CreatedAt: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}, nil
}

func (s *fakeWatchStore) DeleteOpposite(_ context.Context, _, _ int64, restricted bool) error {
	s.oppositeDeletes = append(s.oppositeDeletes, restricted)
	return nil
}

func (s *fakeWatchStore) DeleteByID(_ context.Context, id, _ int64) (bool, error) {
	s.deletedIDs = append(s.deletedIDs, id)
	return s.deleteOK, nil
}

func (s *fakeWatchStore) ListByUser(context.Context, int64) ([]model.WatchEntry, error) {
	return s.entries, nil
}

func (s *fakeWatchStore) CountByUser(context.Context, int64) (int, error) {
	return s.count, nil
}

type stubFetcher struct {
	markup string
	err    error
}

func (f stubFetcher) Fetch(context.Context, string) (string, error) {
	return f.markup, f.err
}

func addReq() model.AddWatchRequest {
	return model.AddWatchRequest{
		Campus: "UBC", Year: "2024", Session: "W",
		Subject: "CPSC", Number: "110", Section: "101",
	}
}

func standardUser() *model.User { return &model.User{ID: 1} }

func newTestService(courses *fakeCourseStore, watches *fakeWatchStore, f Fetcher) *SubscriptionService {
	return NewSubscriptionService(courses, watches, f, 2, zerolog.Nop())
}

func TestAddWatchReturnsStoredEntry(t *testing.T) {
	courses := &fakeCourseStore{}
	watches := &fakeWatchStore{}
	svc := newTestService(courses, watches, stubFetcher{markup: seatsMarkup})

	entry, warning, err := svc.AddWatch(context.Background(), standardUser(), addReq())
	if err != nil {
		t.Fatalf("AddWatch: %v", err)
	}
	if warning != "" {
		t.Errorf("warning = %q, want none", warning)
	}
	if entry.ID != 42 {
		t.Errorf("entry ID = %d, want the stored row's ID", entry.ID)
	}
	if entry.CreatedAt.IsZero() {
		t.Error("entry CreatedAt is zero")
	}
	if entry.Course != addReq().CourseKey() {
		t.Errorf("entry course = %+v", entry.Course)
	}
}

func TestAddWatchInvalidKey(t *testing.T) {
	svc := newTestService(&fakeCourseStore{}, &fakeWatchStore{}, stubFetcher{markup: seatsMarkup})

	req := addReq()
	req.Year = "24W"
	_, _, err := svc.AddWatch(context.Background(), standardUser(), req)
	if !errors.Is(err, ErrInvalidCourseKey) {
		t.Errorf("err = %v, want ErrInvalidCourseKey", err)
	}
}

func TestAddWatchSectionCap(t *testing.T) {
	watches := &fakeWatchStore{count: 2}
	svc := newTestService(&fakeCourseStore{}, watches, stubFetcher{markup: seatsMarkup})

	_, _, err := svc.AddWatch(context.Background(), standardUser(), addReq())
	if !errors.Is(err, ErrSectionLimit) {
		t.Fatalf("err = %v, want ErrSectionLimit", err)
	}
	if watches.createCalls != 0 {
		t.Error("entry created despite cap")
	}

	// Premium and staff accounts are exempt from the cap.
	for _, user := range []*model.User{
		{ID: 2, IsPremium: true},
		{ID: 3, IsStaff: true},
	} {
		if _, _, err := svc.AddWatch(context.Background(), user, addReq()); err != nil {
			t.Errorf("tier %v hit the cap: %v", user.Tier(), err)
		}
	}
}

func TestAddWatchDuplicate(t *testing.T) {
	watches := &fakeWatchStore{duplicate: true}
	svc := newTestService(&fakeCourseStore{}, watches, stubFetcher{markup: seatsMarkup})

	_, _, err := svc.AddWatch(context.Background(), standardUser(), addReq())
	if !errors.Is(err, ErrAlreadyWatching) {
		t.Errorf("err = %v, want ErrAlreadyWatching", err)
	}
}

func TestAddWatchSupersedesOpposite(t *testing.T) {
	watches := &fakeWatchStore{}
	svc := newTestService(&fakeCourseStore{}, watches, stubFetcher{markup: seatsMarkup})

	req := addReq()
	req.Restricted = true
	if _, _, err := svc.AddWatch(context.Background(), standardUser(), req); err != nil {
		t.Fatalf("AddWatch: %v", err)
	}

	if len(watches.oppositeDeletes) != 1 || watches.oppositeDeletes[0] != true {
		t.Errorf("opposite supersede calls = %v, want one for restricted=true", watches.oppositeDeletes)
	}
}

func TestAddWatchProbeUnreachableNewCourse(t *testing.T) {
	courses := &fakeCourseStore{created: true}
	watches := &fakeWatchStore{}
	svc := newTestService(courses, watches, stubFetcher{err: errors.New("timeout")})

	_, _, err := svc.AddWatch(context.Background(), standardUser(), addReq())
	if !errors.Is(err, ErrSectionUnreachable) {
		t.Fatalf("err = %v, want ErrSectionUnreachable", err)
	}
	if len(courses.deleted) != 1 {
		t.Error("first-seen course not rolled back after failed probe")
	}
	if watches.createCalls != 0 {
		t.Error("entry created despite failed probe")
	}
}

func TestAddWatchProbeUnreachableExistingCourse(t *testing.T) {
	courses := &fakeCourseStore{created: false}
	svc := newTestService(courses, &fakeWatchStore{}, stubFetcher{err: errors.New("timeout")})

	// A course that was valid once is accepted even when the probe fails.
	entry, warning, err := svc.AddWatch(context.Background(), standardUser(), addReq())
	if err != nil {
		t.Fatalf("AddWatch: %v", err)
	}
	if warning != "" || entry == nil {
		t.Errorf("entry = %v, warning = %q", entry, warning)
	}
	if len(courses.deleted) != 0 {
		t.Error("existing course rolled back")
	}
}

func TestAddWatchProbeNotOffered(t *testing.T) {
	courses := &fakeCourseStore{created: true}
	svc := newTestService(courses, &fakeWatchStore{}, stubFetcher{markup: notOfferedMarkup})

	_, _, err := svc.AddWatch(context.Background(), standardUser(), addReq())
	if !errors.Is(err, ErrSectionNotOffered) {
		t.Fatalf("err = %v, want ErrSectionNotOffered", err)
	}
	if len(courses.deleted) != 1 {
		t.Error("not-offered course not rolled back")
	}
}

func TestAddWatchProbeWarnings(t *testing.T) {
	tests := []struct {
		name   string
		markup string
		want   string
	}{
		{"stt only", sttMarkup, WarningOnlySTT},
		{"blocked", blockedMarkup, WarningBlocked},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(&fakeCourseStore{created: true}, &fakeWatchStore{}, stubFetcher{markup: tt.markup})

			entry, warning, err := svc.AddWatch(context.Background(), standardUser(), addReq())
			if err != nil {
				t.Fatalf("AddWatch: %v", err)
			}
			if entry == nil {
				t.Fatal("entry not created")
			}
			if warning != tt.want {
				t.Errorf("warning = %q, want %q", warning, tt.want)
			}
		})
	}
}

func TestRemoveWatch(t *testing.T) {
	watches := &fakeWatchStore{deleteOK: true}
	svc := newTestService(&fakeCourseStore{}, watches, stubFetcher{})

	if err := svc.RemoveWatch(context.Background(), 1, 42); err != nil {
		t.Fatalf("RemoveWatch: %v", err)
	}
	if len(watches.deletedIDs) != 1 || watches.deletedIDs[0] != 42 {
		t.Errorf("deleted IDs = %v", watches.deletedIDs)
	}

	watches.deleteOK = false
	if err := svc.RemoveWatch(context.Background(), 1, 99); !errors.Is(err, ErrWatchNotFound) {
		t.Errorf("err = %v, want ErrWatchNotFound", err)
	}
}
