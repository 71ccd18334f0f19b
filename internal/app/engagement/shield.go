package engagement

import (
	"time"

	"github.com/google/uuid"

	"github.com/lockin-app/lockin/internal/domain"
)

// ShieldMilestones are the streak lengths that grant a shield, ascending.
var ShieldMilestones = []int{7, 30, 100, 365}

// ShieldEarned returns the shield due for streak, or nil.
// The lowest reached milestone not already held wins, so one call grants
// at most one shield and repeated calls catch up one milestone at a time.
func ShieldEarned(streak int, existing []domain.Shield) *domain.Shield {
	held := make(map[int]bool, len(existing))
	for _, s := range existing {
		held[s.Milestone] = true
	}
	for _, m := range ShieldMilestones {
		if streak < m {
			return nil
		}
		if !held[m] {
			return &domain.Shield{Milestone: m}
		}
	}
	return nil
}

// stampShield fills the identity fields of a freshly earned shield.
func stampShield(s *domain.Shield, at time.Time) {
	s.ID = uuid.NewString()
	s.EarnedAt = at
}
