package ledger

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cppla/carbontrack/notify"
)

// Notifier receives notifications generated by committed commands.
type Notifier interface {
	Push(ctx context.Context, userID string, n notify.Notification) (notify.Notification, error)
}

type rule func(e Entry, acct Account) (notify.Notification, bool)

var rules = map[EntryKind]rule{
	EntrySignup: func(e Entry, _ Account) (notify.Notification, bool) {
		return notify.Notification{
			Category: notify.CategorySystem,
			Title:    "Welcome to CarbonTrack",
			Message:  fmt.Sprintf("You received %d welcome points. Scan a product to get started.", e.PointsDelta),
		}, true
	},
	EntryOffset: func(e Entry, acct Account) (notify.Notification, bool) {
		return notify.Notification{
			Category: notify.CategorySystem,
			Title:    "Offset Complete",
			Message:  fmt.Sprintf("You offset %s t of CO2 with %s. Total saved: %s kg.", e.CarbonDeltaKg.String(), e.Detail, acct.CarbonSavedKg.String()),
		}, true
	},
	EntryRedemption: func(e Entry, acct Account) (notify.Notification, bool) {
		return notify.Notification{
			Category: notify.CategorySystem,
			Title:    "Reward Redeemed",
			Message:  fmt.Sprintf("%s is on its way. %d points left.", e.Detail, acct.PointsBalance),
		}, true
	},
	EntryCheckIn: func(_ Entry, acct Account) (notify.Notification, bool) {
		return notify.Notification{
			Category: notify.CategoryStreak,
			Title:    "Keep Your Streak Going!",
			Message:  fmt.Sprintf("You're on a %d-day streak. Check in tomorrow to keep it going!", acct.StreakDays),
		}, true
	},
}

func badgeNotification(b Badge) notify.Notification {
	return notify.Notification{
		Category: notify.CategoryChallenge,
		Title:    "Badge Earned: " + b.Name,
		Message:  b.Description,
	}
}

// announce pushes the notifications for a commit. Failures are logged only;
// the commit has already happened.
func (s *Service) announce(ctx context.Context, c commit) {
	if s.notifier == nil {
		return
	}
	var out []notify.Notification
	if r, ok := rules[c.entry.Kind]; ok {
		if n, ok := r(c.entry, c.acct); ok {
			out = append(out, n)
		}
	}
	for _, b := range c.newBadges {
		out = append(out, badgeNotification(b))
	}
	ctx = context.WithoutCancel(ctx)
	for _, n := range out {
		if _, err := s.notifier.Push(ctx, c.acct.ID, n); err != nil {
			s.logger.Warn("push notification failed",
				zap.String("account_id", c.acct.ID),
				zap.String("entry_kind", string(c.entry.Kind)),
				zap.Error(err),
			)
		}
	}
}
