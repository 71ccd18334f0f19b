package engagement

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lockin-app/lockin/internal/domain"
	"github.com/lockin-app/lockin/internal/infra/metrics"
)

// grant is one pending XP award.
type grant struct {
	amount   int64
	source   string
	metadata map[string]string
}

// ledger carries one unit of work: the user document, today's aggregate
// and the pending XP queue. Awards, level-ups, badges and shields are
// drained to a fixpoint by settle.
type ledger struct {
	e      *Engine
	tx     domain.ProgressionTx
	u      *domain.UserProgression
	now    time.Time
	dayKey string
	today  domain.DayAggregate

	queue    []grant
	evaluate bool
	passes   int
	capped   bool

	// outcome
	awarded   int64
	leveledUp bool
	newLevel  int
	badges    []domain.Badge
	shields   []domain.Shield
	grants    []grant
}

// begin opens a ledger on tx and refreshes the day-scoped counters from
// today's timestamped records.
func (e *Engine) begin(tx domain.ProgressionTx) (*ledger, error) {
	now := e.now()
	today, err := tx.Today(startOfDay(now, e.loc))
	if err != nil {
		return nil, fmt.Errorf("today aggregate: %w", err)
	}
	u := tx.User()
	l := &ledger{
		e:      e,
		tx:     tx,
		u:      u,
		now:    now,
		dayKey: DayKey(now, e.loc),
		today:  today,
	}
	u.Stats.StatsDay = l.dayKey
	u.Stats.SessionsToday = today.Sessions
	u.Stats.XPToday = today.XP
	if u.DailyQuestsCompleted == nil {
		u.DailyQuestsCompleted = make(map[string][]string)
	}
	return l, nil
}

// award queues an XP grant.
func (l *ledger) award(amount int64, source string, metadata map[string]string) {
	if amount <= 0 {
		return
	}
	l.queue = append(l.queue, grant{amount: amount, source: source, metadata: metadata})
}

// requestBadgeCheck schedules a badge pass during settle.
func (l *ledger) requestBadgeCheck() {
	l.evaluate = true
}

// settle drains the XP queue and badge passes until nothing is pending
// or the pass limit is reached.
func (l *ledger) settle() error {
	for {
		for len(l.queue) > 0 {
			g := l.queue[0]
			l.queue = l.queue[1:]
			if err := l.apply(g); err != nil {
				return err
			}
		}
		if !l.evaluate {
			return nil
		}
		if l.passes >= l.e.cascadeLimit {
			log.Printf("[engagement] cascade for %s stopped after %d badge passes", l.u.UserID, l.passes)
			l.evaluate = false
			l.capped = true
			return nil
		}
		l.passes++
		l.evaluate = false
		for _, b := range EvaluateBadges(l.u, l.e.catalog) {
			if err := l.unlock(b); err != nil {
				return err
			}
		}
	}
}

// apply grants XP: audit entries, level resolution and the shield rule.
func (l *ledger) apply(g grant) error {
	u := l.u
	if g.amount > MaxTotalXP-u.TotalXP {
		return fmt.Errorf("%w: %s has %d XP, grant of %d refused", domain.ErrXPLimitReached, u.UserID, u.TotalXP, g.amount)
	}
	before := LevelForXP(u.TotalXP)

	u.TotalXP += g.amount
	u.Stats.XPToday += g.amount
	l.today.XP += g.amount
	l.awarded += g.amount

	u.XPHistory = append(u.XPHistory, domain.XPEntry{
		Amount:    g.amount,
		Source:    g.source,
		Metadata:  g.metadata,
		Timestamp: l.now,
	})
	if err := l.tx.AppendXPTransaction(domain.XPTransaction{
		ID:        uuid.NewString(),
		UserID:    u.UserID,
		Amount:    g.amount,
		Source:    g.source,
		Metadata:  g.metadata,
		Timestamp: l.now,
	}); err != nil {
		return fmt.Errorf("append xp transaction: %w", err)
	}
	l.grants = append(l.grants, g)
	l.e.debugf("%s +%d XP (%s)", u.UserID, g.amount, g.source)

	info := LevelFromXP(u.TotalXP)
	applyLevel(u, info)
	if info.Level > before {
		u.LevelHistory = append(u.LevelHistory, domain.LevelEvent{Level: info.Level, AchievedAt: l.now})
		for lvl := before + 1; lvl <= info.Level; lvl++ {
			for _, r := range LevelRewards(lvl) {
				u.UnlockedRewards = append(u.UnlockedRewards, domain.UnlockedReward{
					Reward:     r,
					Level:      lvl,
					UnlockedAt: l.now,
				})
			}
		}
		l.leveledUp = true
		l.newLevel = info.Level
		l.requestBadgeCheck()
	}

	if s := ShieldEarned(u.Streak, u.Shields); s != nil {
		stampShield(s, l.now)
		u.Shields = append(u.Shields, *s)
		l.shields = append(l.shields, *s)
	}
	return nil
}

// unlock records an earned badge and queues its XP.
func (l *ledger) unlock(b domain.Badge) error {
	if l.u.HasBadge(b.ID) {
		return nil
	}
	l.u.Badges = append(l.u.Badges, domain.EarnedBadge{
		ID:         b.ID,
		Name:       b.Name,
		Emoji:      b.Emoji,
		XPReward:   b.XPReward,
		UnlockedAt: l.now,
	})
	if err := l.tx.AppendBadgeEvent(domain.BadgeEvent{
		ID:        uuid.NewString(),
		UserID:    l.u.UserID,
		BadgeID:   b.ID,
		Timestamp: l.now,
	}); err != nil {
		return fmt.Errorf("append badge event: %w", err)
	}
	l.badges = append(l.badges, b)
	l.award(b.XPReward, "badge:"+b.ID, map[string]string{"badgeId": b.ID})
	return nil
}

// firstShield returns the first shield earned in this unit, or nil.
func (l *ledger) firstShield() *domain.Shield {
	if len(l.shields) == 0 {
		return nil
	}
	s := l.shields[0]
	return &s
}

// observe reports the committed outcome of a ledger to metrics.
// Called after commit so retried transactions are counted once.
func (l *ledger) observe() {
	for _, g := range l.grants {
		metrics.XPAwarded.WithLabelValues(sourceKind(g.source)).Add(float64(g.amount))
	}
	if l.leveledUp {
		metrics.LevelUps.Inc()
	}
	for _, b := range l.badges {
		metrics.BadgesUnlocked.WithLabelValues(b.ID).Inc()
	}
	for _, s := range l.shields {
		metrics.ShieldsEarned.WithLabelValues(strconv.Itoa(s.Milestone)).Inc()
	}
	if l.capped {
		metrics.CascadeCapHits.Inc()
	}
}

// sourceKind strips the identifier suffix of an XP source.
func sourceKind(source string) string {
	kind, _, _ := strings.Cut(source, ":")
	return kind
}
