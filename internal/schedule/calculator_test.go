package schedule

import (
	"testing"
	"time"

	"github.com/bubblevault/bubble-backup-service/internal/domain"
	"github.com/bubblevault/bubble-backup-service/pkg/code"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func daily(hour, minute int) *domain.ScheduleSetting {
	return &domain.ScheduleSetting{ScheduleType: domain.ScheduleDaily, AnchorHour: hour, AnchorMinute: minute}
}

func TestNextRunDaily(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// Before the anchor, same day.
	ref := time.Date(2024, 6, 1, 1, 30, 0, 0, loc)
	next, err := NextRun(daily(2, 0), "America/New_York", ref)
	require.NoError(t, err)
	assert.True(t, next.Equal(time.Date(2024, 6, 1, 2, 0, 0, 0, loc)))

	// At or past the anchor, next day. Strictly after.
	ref = time.Date(2024, 6, 1, 2, 0, 0, 0, loc)
	next, err = NextRun(daily(2, 0), "America/New_York", ref)
	require.NoError(t, err)
	assert.True(t, next.Equal(time.Date(2024, 6, 2, 2, 0, 0, 0, loc)))
}

func TestNextRunDailySpringForward(t *testing.T) {
	// 2024-03-10 in New York has no 02:00 wall time; clocks jump 02:00->03:00.
	// The run still happens that day, at the instant the clock reaches.
	ref := time.Date(2024, 3, 10, 1, 0, 0, 0, mustLoc(t, "America/New_York"))
	next, err := NextRun(daily(2, 0), "America/New_York", ref)
	require.NoError(t, err)
	assert.True(t, next.Equal(time.Date(2024, 3, 10, 7, 0, 0, 0, time.UTC)),
		"got %s", next.UTC())
}

func TestNextRunDailyAfterSpringForward(t *testing.T) {
	// Reference just past the DST jump: 03:00 EDT on 2024-03-10. That day's
	// anchor instant already passed, so the run lands on the 11th at a
	// plain 02:00 EDT (06:00Z).
	loc := mustLoc(t, "America/New_York")
	ref := time.Date(2024, 3, 10, 3, 0, 0, 0, loc)
	next, err := NextRun(daily(2, 0), "America/New_York", ref)
	require.NoError(t, err)
	assert.True(t, next.Equal(time.Date(2024, 3, 11, 2, 0, 0, 0, loc)),
		"got %s", next.UTC())
	assert.True(t, next.Equal(time.Date(2024, 3, 11, 6, 0, 0, 0, time.UTC)))
}

func TestNextRunIdempotent(t *testing.T) {
	// Same inputs, same output, no matter how often it is asked.
	ref := time.Date(2024, 3, 10, 1, 30, 0, 0, mustLoc(t, "America/New_York"))

	settings := []*domain.ScheduleSetting{
		daily(2, 0),
		{ScheduleType: domain.ScheduleWeekly, AnchorHour: 2},
		{ScheduleType: domain.ScheduleMonthly, AnchorHour: 2},
		{ScheduleType: domain.ScheduleDaily, CronExpression: "30 4 * * 1-5"},
	}
	for _, setting := range settings {
		first, err := NextRun(setting, "America/New_York", ref)
		require.NoError(t, err, setting.ScheduleType)
		for i := 0; i < 3; i++ {
			again, err := NextRun(setting, "America/New_York", ref)
			require.NoError(t, err, setting.ScheduleType)
			assert.True(t, again.Equal(first), "%s run %d: %s != %s",
				setting.ScheduleType, i, again.UTC(), first.UTC())
		}
	}
}

func TestNextRunDailyFallBack(t *testing.T) {
	// 2024-11-03 repeats the 01:00 hour. Whichever offset resolves, the run
	// lands on that same day.
	ref := time.Date(2024, 11, 3, 0, 30, 0, 0, mustLoc(t, "America/New_York"))
	next, err := NextRun(daily(1, 0), "America/New_York", ref)
	require.NoError(t, err)
	local := next.In(mustLoc(t, "America/New_York"))
	assert.Equal(t, 3, local.Day())
	assert.Equal(t, 1, local.Hour())
	assert.True(t, next.After(ref))
}

func TestNextRunWeekly(t *testing.T) {
	loc := mustLoc(t, "Europe/Paris")
	setting := &domain.ScheduleSetting{ScheduleType: domain.ScheduleWeekly, AnchorHour: 2, AnchorMinute: 0}

	// Wednesday -> following Monday.
	ref := time.Date(2024, 6, 5, 12, 0, 0, 0, loc)
	next, err := NextRun(setting, "Europe/Paris", ref)
	require.NoError(t, err)
	assert.True(t, next.Equal(time.Date(2024, 6, 10, 2, 0, 0, 0, loc)))

	// Monday after the anchor -> a full week out.
	ref = time.Date(2024, 6, 10, 3, 0, 0, 0, loc)
	next, err = NextRun(setting, "Europe/Paris", ref)
	require.NoError(t, err)
	assert.True(t, next.Equal(time.Date(2024, 6, 17, 2, 0, 0, 0, loc)))

	// Monday before the anchor -> same day.
	ref = time.Date(2024, 6, 10, 1, 0, 0, 0, loc)
	next, err = NextRun(setting, "Europe/Paris", ref)
	require.NoError(t, err)
	assert.True(t, next.Equal(time.Date(2024, 6, 10, 2, 0, 0, 0, loc)))
}

func TestNextRunMonthly(t *testing.T) {
	loc := mustLoc(t, "Asia/Tokyo")
	setting := &domain.ScheduleSetting{ScheduleType: domain.ScheduleMonthly, AnchorHour: 2, AnchorMinute: 0}

	ref := time.Date(2024, 6, 15, 12, 0, 0, 0, loc)
	next, err := NextRun(setting, "Asia/Tokyo", ref)
	require.NoError(t, err)
	assert.True(t, next.Equal(time.Date(2024, 7, 1, 2, 0, 0, 0, loc)))

	// December rolls over the year.
	ref = time.Date(2024, 12, 15, 12, 0, 0, 0, loc)
	next, err = NextRun(setting, "Asia/Tokyo", ref)
	require.NoError(t, err)
	assert.True(t, next.Equal(time.Date(2025, 1, 1, 2, 0, 0, 0, loc)))
}

func TestNextRunStrictlyAfterAndAdvances(t *testing.T) {
	for _, kind := range []string{domain.ScheduleDaily, domain.ScheduleWeekly, domain.ScheduleMonthly} {
		setting := &domain.ScheduleSetting{ScheduleType: kind, AnchorHour: 2, AnchorMinute: 0}
		ref := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

		first, err := NextRun(setting, "America/New_York", ref)
		require.NoError(t, err)
		assert.True(t, first.After(ref), kind)

		// Feeding the result back always moves forward.
		second, err := NextRun(setting, "America/New_York", first)
		require.NoError(t, err)
		assert.True(t, second.After(first), kind)
	}
}

func TestNextRunCronOverride(t *testing.T) {
	loc := mustLoc(t, "America/New_York")
	setting := &domain.ScheduleSetting{
		ScheduleType:   domain.ScheduleDaily,
		AnchorHour:     2,
		CronExpression: "30 4 * * 1-5",
	}

	// Friday 05:00 local -> next weekday is Monday 04:30.
	ref := time.Date(2024, 6, 7, 5, 0, 0, 0, loc)
	next, err := NextRun(setting, "America/New_York", ref)
	require.NoError(t, err)
	assert.True(t, next.Equal(time.Date(2024, 6, 10, 4, 30, 0, 0, loc)))

	// An explicit CRON_TZ wins over the project zone.
	setting.CronExpression = "CRON_TZ=Asia/Tokyo 0 9 * * *"
	next, err = NextRun(setting, "America/New_York", ref)
	require.NoError(t, err)
	tokyo := next.In(mustLoc(t, "Asia/Tokyo"))
	assert.Equal(t, 9, tokyo.Hour())
}

func TestNextRunCronInvalidExpression(t *testing.T) {
	setting := &domain.ScheduleSetting{
		ScheduleType:   domain.ScheduleDaily,
		CronExpression: "not a cron",
	}
	_, err := NextRun(setting, "UTC", time.Now())
	assert.ErrorIs(t, err, code.ErrorScheduleComputation)
}

func TestNextRunManualHasNoSchedule(t *testing.T) {
	setting := &domain.ScheduleSetting{ScheduleType: domain.ScheduleManual}
	_, err := NextRun(setting, "UTC", time.Now())
	assert.ErrorIs(t, err, code.ErrorManualSchedule)
}

func TestNextRunBadTimezone(t *testing.T) {
	_, err := NextRun(daily(2, 0), "Mars/Olympus", time.Now())
	assert.ErrorIs(t, err, code.ErrorScheduleComputation)
}

func mustLoc(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	require.NoError(t, err)
	return loc
}
