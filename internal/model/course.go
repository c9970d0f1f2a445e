package model

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

// Session identifies the academic session a section belongs to.
type Session string

const (
	SessionWinter Session = "W"
	SessionSummer Session = "S"
)

// Field charsets enforced before a course row is ever created.
var (
	yearPattern    = regexp.MustCompile(`^\d{4}$`)
	campusPattern  = regexp.MustCompile(`^[A-Z]{2,4}$`)
	subjectPattern = regexp.MustCompile(`^[A-Z]{2,4}$`)
	numberPattern  = regexp.MustCompile(`^[A-Z0-9]{3,4}$`)
	sectionPattern = regexp.MustCompile(`^[A-Z0-9]{3,5}$`)
)

var (
	ErrInvalidYear    = errors.New("year must be 4 digits")
	ErrInvalidSession = errors.New("session must be W or S")
	ErrInvalidCampus  = errors.New("campus must be 2-4 uppercase letters")
	ErrInvalidSubject = errors.New("subject must be 2-4 uppercase letters")
	ErrInvalidNumber  = errors.New("course number must be 3-4 uppercase letters or digits")
	ErrInvalidSection = errors.New("section must be 3-5 uppercase letters or digits")
)

// CourseKey uniquely identifies a course section. Uniqueness is enforced on
// the full tuple; the status-page URL is a pure function of the key.
type CourseKey struct {
	Campus  string `json:"campus"`
	Year    string `json:"year"`
	Session string `json:"session"`
	Subject string `json:"subject"`
	Number  string `json:"number"`
	Section string `json:"section"`
}

// Validate checks every field against its fixed pattern.
func (k CourseKey) Validate() error {
	if !yearPattern.MatchString(k.Year) {
		return ErrInvalidYear
	}
	if k.Session != string(SessionWinter) && k.Session != string(SessionSummer) {
		return ErrInvalidSession
	}
	if !campusPattern.MatchString(k.Campus) {
		return ErrInvalidCampus
	}
	if !subjectPattern.MatchString(k.Subject) {
		return ErrInvalidSubject
	}
	if !numberPattern.MatchString(k.Number) {
		return ErrInvalidNumber
	}
	if !sectionPattern.MatchString(k.Section) {
		return ErrInvalidSection
	}
	return nil
}

// String renders the key the way it appears in logs and mail, e.g. "2024W CPSC 110 101".
func (k CourseKey) String() string {
	return fmt.Sprintf("%s%s %s %s %s", k.Year, k.Session, k.Subject, k.Number, k.Section)
}

// Label is the short "SUBJ NUM SECTION" form used in notification subjects.
func (k CourseKey) Label() string {
	return fmt.Sprintf("%s %s %s", k.Subject, k.Number, k.Section)
}

// URL builds the canonical status-page URL for this section. The query
// parameter order is part of the upstream contract and must not change.
func (k CourseKey) URL() string {
	return fmt.Sprintf(
		"https://courses.students.ubc.ca/cs/courseschedule?sesscd=%s&campuscd=%s&pname=subjarea&tname=subj-section&course=%s&sessyr=%s&section=%s&dept=%s",
		k.Session, k.Campus, k.Number, k.Year, k.Section, k.Subject,
	)
}

// Course is one watched section. LastOpenAt is nil until the first
// notification cycle fires; afterwards it anchors the per-course cooldown.
// Only the monitor scheduler mutates it.
type Course struct {
	ID         int64      `json:"id"`
	Key        CourseKey  `json:"key"`
	LastOpenAt *time.Time `json:"last_open_at"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// WatchEntry relates a user to a course section. Restricted=true means the
// user wants to hear about restricted-only openings as well; false means
// general openings only.
type WatchEntry struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"-"`
	CourseID   int64     `json:"-"`
	Restricted bool      `json:"restricted"`
	Course     CourseKey `json:"course"`
	CreatedAt  time.Time `json:"created_at"`
}

// AddWatchRequest is the payload for subscribing to a section. Charset
// validation beyond length happens via CourseKey.Validate.
type AddWatchRequest struct {
	Campus     string `json:"campus" binding:"required,min=2,max=4"`
	Year       string `json:"year" binding:"required,len=4"`
	Session    string `json:"session" binding:"required,oneof=W S"`
	Subject    string `json:"subject" binding:"required,min=2,max=4"`
	Number     string `json:"number" binding:"required,min=3,max=4"`
	Section    string `json:"section" binding:"required,min=3,max=5"`
	Restricted bool   `json:"restricted"`
}

// CourseKey assembles the key from the request fields.
func (r AddWatchRequest) CourseKey() CourseKey {
	return CourseKey{
		Campus:  r.Campus,
		Year:    r.Year,
		Session: r.Session,
		Subject: r.Subject,
		Number:  r.Number,
		Section: r.Section,
	}
}

// Stats is the public site summary.
type Stats struct {
	CoursesWatched int64 `json:"courses_watched"`
	UsersTotal     int64 `json:"users_total"`
}
