package monitor

import (
	"context"

	"github.com/seatwatch/seatwatch-backend/internal/model"
)

// WatcherRegistry is the read-only view of "who watches this section" that
// the engine consumes. restrictedOnly=true narrows to watchers who asked to
// hear about restricted-only openings; false returns every watcher of the
// course, deduplicated by user.
type WatcherRegistry interface {
	WatchersOf(ctx context.Context, key model.CourseKey, restrictedOnly bool) ([]model.Watcher, error)
	WatcherCount(ctx context.Context, key model.CourseKey) (int, error)
}

// RecipientSelector computes the notification audience for an opening.
type RecipientSelector struct {
	registry WatcherRegistry
}

func NewRecipientSelector(registry WatcherRegistry) *RecipientSelector {
	return &RecipientSelector{registry: registry}
}

// Select returns the recipients for the given opening category along with the
// effective tier of the selected set. A general opening goes to the union of
// restricted and unrestricted watchers; a restricted-only opening goes to
// restricted watchers alone. The base set is then narrowed by tier: staff
// present means staff only, else premium present means premium only, else
// every standard watcher.
func (s *RecipientSelector) Select(ctx context.Context, key model.CourseKey, category Category) ([]model.Watcher, model.Tier, error) {
	if category == CategoryNoOpening {
		return nil, model.TierStandard, nil
	}

	base, err := s.registry.WatchersOf(ctx, key, category == CategoryRestrictedOnly)
	if err != nil {
		return nil, model.TierStandard, err
	}

	recipients, tier := narrowByTier(base)
	return recipients, tier, nil
}

func narrowByTier(base []model.Watcher) ([]model.Watcher, model.Tier) {
	var staff, premium []model.Watcher
	for _, w := range base {
		switch w.Tier {
		case model.TierStaff:
			staff = append(staff, w)
		case model.TierPremium:
			premium = append(premium, w)
		}
	}
	if len(staff) > 0 {
		return staff, model.TierStaff
	}
	if len(premium) > 0 {
		return premium, model.TierPremium
	}
	return base, model.TierStandard
}
