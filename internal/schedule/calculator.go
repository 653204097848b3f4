// Package schedule computes the next run instant for a backup cadence.
package schedule

import (
	"time"

	"github.com/bubblevault/bubble-backup-service/internal/domain"
	"github.com/bubblevault/bubble-backup-service/pkg/code"

	"github.com/robfig/cron/v3"
)

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// NextRun returns the first occurrence of the cadence strictly after ref,
// evaluated in the project's time zone. The result is an absolute instant;
// callers store it in UTC.
//
// Built-in kinds use time.Date arithmetic rather than field iteration:
// when a DST jump skips the anchor wall time, time.Date normalizes to the
// instant the clock actually reaches, so the run happens on the same day
// instead of sliding to the next period. Repeated wall times on fall-back
// days resolve to whichever offset the runtime picks; either instant is on
// the right day.
func NextRun(setting *domain.ScheduleSetting, timezone string, ref time.Time) (time.Time, error) {
	if setting.ScheduleType == domain.ScheduleManual {
		return time.Time{}, code.ErrorManualSchedule
	}

	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return time.Time{}, code.ErrorScheduleComputation.WithDetails(err.Error())
	}

	if setting.CronExpression != "" {
		return nextCron(setting.CronExpression, loc, ref)
	}

	local := ref.In(loc)
	hour, minute := setting.AnchorHour, setting.AnchorMinute

	switch setting.ScheduleType {
	case domain.ScheduleDaily:
		candidate := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
		if !candidate.After(ref) {
			candidate = time.Date(local.Year(), local.Month(), local.Day()+1, hour, minute, 0, 0, loc)
		}
		return candidate, nil

	case domain.ScheduleWeekly:
		// Runs on Monday.
		days := (int(time.Monday) - int(local.Weekday()) + 7) % 7
		candidate := time.Date(local.Year(), local.Month(), local.Day()+days, hour, minute, 0, 0, loc)
		if !candidate.After(ref) {
			candidate = time.Date(local.Year(), local.Month(), local.Day()+days+7, hour, minute, 0, 0, loc)
		}
		return candidate, nil

	case domain.ScheduleMonthly:
		// Runs on the first of the month.
		candidate := time.Date(local.Year(), local.Month(), 1, hour, minute, 0, 0, loc)
		if !candidate.After(ref) {
			candidate = time.Date(local.Year(), local.Month()+1, 1, hour, minute, 0, 0, loc)
		}
		return candidate, nil
	}

	return time.Time{}, code.ErrorScheduleComputation.WithDetails("unknown schedule type: " + setting.ScheduleType)
}

// nextCron evaluates a custom five-field expression in loc. An explicit
// CRON_TZ prefix in the expression wins over the project time zone.
func nextCron(expr string, loc *time.Location, ref time.Time) (time.Time, error) {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return time.Time{}, code.ErrorScheduleComputation.WithDetails(err.Error())
	}
	next := sched.Next(ref.In(loc))
	if next.IsZero() {
		return time.Time{}, code.ErrorScheduleComputation.WithDetails("expression never fires: " + expr)
	}
	return next, nil
}
