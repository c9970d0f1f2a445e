package monitor

// Category is the kind of seat opening a poll observed.
type Category int

const (
	CategoryNoOpening Category = iota
	CategoryGeneral
	CategoryRestrictedOnly
)

func (c Category) String() string {
	switch c {
	case CategoryGeneral:
		return "general"
	case CategoryRestrictedOnly:
		return "restricted"
	default:
		return "none"
	}
}

// Classify maps a seat state to an opening category.
//
// A blocked section is never an opening, regardless of counts. A nonzero
// general count always wins over restricted, so a simultaneous general and
// restricted opening is reported once, as general.
func Classify(s SeatState) Category {
	if s.Blocked {
		return CategoryNoOpening
	}
	if s.GeneralOpen > 0 {
		return CategoryGeneral
	}
	if s.TotalOpen > 0 {
		return CategoryRestrictedOnly
	}
	return CategoryNoOpening
}
