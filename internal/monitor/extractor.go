package monitor

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Outcome classifies what an extraction attempt produced.
type Outcome int

const (
	// OutcomeSeats means the four seat counts were parsed successfully.
	OutcomeSeats Outcome = iota
	// OutcomeStillOnlySTT means the remaining seats are reachable only
	// through a Standard Timetable enrollment.
	OutcomeStillOnlySTT
	// OutcomeNoLongerOffered means the section or course does not exist
	// this session.
	OutcomeNoLongerOffered
	// OutcomeParseFailed means markup was present but matched no known
	// pattern. Treated like a fetch failure: logged and retried on the
	// next eligible cycle.
	OutcomeParseFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSeats:
		return "seats"
	case OutcomeStillOnlySTT:
		return "stt_only"
	case OutcomeNoLongerOffered:
		return "not_offered"
	default:
		return "parse_failed"
	}
}

// SeatState is the parsed seat availability of a section. Produced fresh on
// every poll, never persisted.
type SeatState struct {
	TotalOpen      int
	Registered     int
	GeneralOpen    int
	RestrictedOpen int
	// Blocked reports that registration is administratively closed even
	// when seat counts are nonzero.
	Blocked bool
}

// Extraction is the result of parsing one status page.
type Extraction struct {
	Outcome Outcome
	Seats   SeatState
}

// Body phrases the status site uses for the non-tabular states.
const (
	sttMarker        = "only available through a Standard Timetable"
	notOfferedMarker = "no longer offered"
	blockedMarker    = "blocked from registration"
)

// seatCellSelector locates the four seat counts, in strict order
// [totalOpen, registered, generalOpen, restrictedOpen].
const seatCellSelector = "table tr td strong"

// SeatExtractor parses status-page markup into a SeatState.
type SeatExtractor struct{}

// Extract parses markup. The primary path reads the four numeric table cells;
// when that pattern is absent it falls back to matching the known body
// phrases, and finally to OutcomeParseFailed.
func (SeatExtractor) Extract(markup string) Extraction {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return Extraction{Outcome: OutcomeParseFailed}
	}

	var cells []string
	doc.Find(seatCellSelector).Each(func(_ int, s *goquery.Selection) {
		cells = append(cells, strings.TrimSpace(s.Text()))
	})

	if seats, ok := parseSeatCells(cells); ok {
		seats.Blocked = strings.Contains(doc.Text(), blockedMarker)
		return Extraction{Outcome: OutcomeSeats, Seats: seats}
	}

	body := doc.Text()
	switch {
	case strings.Contains(body, sttMarker):
		return Extraction{Outcome: OutcomeStillOnlySTT}
	case strings.Contains(body, notOfferedMarker):
		return Extraction{Outcome: OutcomeNoLongerOffered}
	default:
		return Extraction{Outcome: OutcomeParseFailed}
	}
}

func parseSeatCells(cells []string) (SeatState, bool) {
	if len(cells) < 4 {
		return SeatState{}, false
	}
	counts := make([]int, 4)
	for i := 0; i < 4; i++ {
		n, err := strconv.Atoi(cells[i])
		if err != nil || n < 0 {
			return SeatState{}, false
		}
		counts[i] = n
	}
	return SeatState{
		TotalOpen:      counts[0],
		Registered:     counts[1],
		GeneralOpen:    counts[2],
		RestrictedOpen: counts[3],
	}, true
}
