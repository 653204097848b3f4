package dao

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bubblevault/bubble-backup-service/internal/domain"
	"github.com/bubblevault/bubble-backup-service/internal/model"
	"github.com/bubblevault/bubble-backup-service/pkg/code"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDao(t *testing.T) *Dao {
	t.Helper()

	db, err := NewDBEngine(Config{
		Type:         "sqlite",
		Path:         filepath.Join(t.TempDir(), "test.db"),
		MaxIdleConns: 2,
		MaxOpenConns: 2,
	}, "release")
	require.NoError(t, err)
	require.NoError(t, model.AutoMigrate(db))

	return New(db)
}

func seedProject(t *testing.T, repo domain.ProjectRepository, scheduleType string) *domain.Project {
	t.Helper()

	p := &domain.Project{
		ID:            uuid.NewString(),
		AppURL:        "https://myapp.bubbleapps.io",
		APIKey:        "key-123",
		Timezone:      "America/New_York",
		DataTypes:     []string{"user", "order"},
		Status:        domain.ProjectStatusActive,
		BackupEnabled: true,
	}
	next := time.Date(2024, 3, 10, 7, 0, 0, 0, time.UTC)
	s := &domain.ScheduleSetting{
		ProjectID:    p.ID,
		ScheduleType: scheduleType,
		AnchorHour:   2,
		AnchorMinute: 0,
	}
	if scheduleType != domain.ScheduleManual {
		s.NextRunAt = &next
	}
	created, err := repo.Create(context.Background(), p, s)
	require.NoError(t, err)
	return created
}

func TestProjectCreateAndGet(t *testing.T) {
	d := testDao(t)
	repo := NewProjectRepository(d)

	p := seedProject(t, repo, domain.ScheduleDaily)

	got, err := repo.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, p.AppURL, got.AppURL)
	assert.Equal(t, []string{"user", "order"}, got.DataTypes)
	assert.Equal(t, domain.ProjectStatusActive, got.Status)
	assert.True(t, got.BackupEnabled)

	setting, err := repo.GetSetting(context.Background(), p.ID)
	require.NoError(t, err)
	require.NotNil(t, setting)
	assert.Equal(t, domain.ScheduleDaily, setting.ScheduleType)
	require.NotNil(t, setting.NextRunAt)
}

func TestProjectGetMissingReturnsNil(t *testing.T) {
	d := testDao(t)
	repo := NewProjectRepository(d)

	got, err := repo.GetByID(context.Background(), uuid.NewString())
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestProjectSoftDeleteHidesRow(t *testing.T) {
	d := testDao(t)
	repo := NewProjectRepository(d)

	p := seedProject(t, repo, domain.ScheduleDaily)
	require.NoError(t, repo.SoftDelete(context.Background(), p.ID))

	got, err := repo.GetByID(context.Background(), p.ID)
	assert.NoError(t, err)
	assert.Nil(t, got)

	err = repo.SoftDelete(context.Background(), p.ID)
	assert.ErrorIs(t, err, code.ErrorProjectNotFound)
}

func TestListDue(t *testing.T) {
	d := testDao(t)
	repo := NewProjectRepository(d)

	dueA := seedProject(t, repo, domain.ScheduleDaily)
	dueB := seedProject(t, repo, domain.ScheduleWeekly)
	seedProject(t, repo, domain.ScheduleManual)

	paused := seedProject(t, repo, domain.ScheduleDaily)
	require.NoError(t, repo.UpdateStatus(context.Background(), paused.ID, domain.ProjectStatusPaused))

	now := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)
	targets, err := repo.ListDue(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, targets, 2)

	byProject := map[string]*domain.DueTarget{}
	for _, tg := range targets {
		// Every target pairs the setting with its own project row.
		assert.Equal(t, tg.Project.ID, tg.Setting.ProjectID)
		byProject[tg.Project.ID] = tg
	}
	require.Contains(t, byProject, dueA.ID)
	require.Contains(t, byProject, dueB.ID)
	assert.Equal(t, domain.ScheduleDaily, byProject[dueA.ID].Setting.ScheduleType)
	assert.Equal(t, domain.ScheduleWeekly, byProject[dueB.ID].Setting.ScheduleType)
	assert.Equal(t, dueA.AppURL, byProject[dueA.ID].Project.AppURL)

	// Before the scheduled instant nothing is due.
	early := time.Date(2024, 3, 10, 6, 0, 0, 0, time.UTC)
	targets, err = repo.ListDue(context.Background(), early)
	require.NoError(t, err)
	assert.Empty(t, targets)
}

func TestBackupDuplicateActiveJob(t *testing.T) {
	d := testDao(t)
	projects := NewProjectRepository(d)
	backups := NewBackupRepository(d)

	p := seedProject(t, projects, domain.ScheduleDaily)

	first, err := backups.Create(context.Background(), &domain.Backup{
		ID:           uuid.NewString(),
		ProjectID:    p.ID,
		ScheduleType: domain.ScheduleDaily,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.BackupStatusPending, first.Status)

	_, err = backups.Create(context.Background(), &domain.Backup{
		ID:           uuid.NewString(),
		ProjectID:    p.ID,
		ScheduleType: domain.ScheduleDaily,
	})
	assert.ErrorIs(t, err, code.ErrorDuplicateActiveJob)

	// A terminal transition releases the slot.
	require.NoError(t, backups.MarkProcessing(context.Background(), first.ID))
	require.NoError(t, backups.MarkCompleted(context.Background(), first.ID, 1024, 10, "backups/x.json", time.Now().Add(time.Hour)))

	_, err = backups.Create(context.Background(), &domain.Backup{
		ID:           uuid.NewString(),
		ProjectID:    p.ID,
		ScheduleType: domain.ScheduleDaily,
	})
	assert.NoError(t, err)
}

func TestBackupCreateConcurrentSingleWinner(t *testing.T) {
	d := testDao(t)
	projects := NewProjectRepository(d)
	backups := NewBackupRepository(d)
	ctx := context.Background()

	p := seedProject(t, projects, domain.ScheduleDaily)

	const racers = 8
	errs := make([]error, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = backups.Create(ctx, &domain.Backup{
				ID:           uuid.NewString(),
				ProjectID:    p.ID,
				ScheduleType: domain.ScheduleDaily,
			})
		}(i)
	}
	wg.Wait()

	// The unique guard lets exactly one insert through; everyone else
	// sees the duplicate conflict.
	winners := 0
	for i, err := range errs {
		if err == nil {
			winners++
			continue
		}
		assert.ErrorIs(t, err, code.ErrorDuplicateActiveJob, "racer %d", i)
	}
	assert.Equal(t, 1, winners)
}

func TestBackupTransitions(t *testing.T) {
	d := testDao(t)
	projects := NewProjectRepository(d)
	backups := NewBackupRepository(d)

	p := seedProject(t, projects, domain.ScheduleDaily)
	b, err := backups.Create(context.Background(), &domain.Backup{
		ID:           uuid.NewString(),
		ProjectID:    p.ID,
		ScheduleType: domain.ScheduleDaily,
	})
	require.NoError(t, err)

	// completed requires processing first
	err = backups.MarkCompleted(context.Background(), b.ID, 1, 1, "x", time.Now())
	assert.ErrorIs(t, err, code.ErrorInvalidTransition)

	require.NoError(t, backups.MarkProcessing(context.Background(), b.ID))

	// a second claim loses the conditional update
	err = backups.MarkProcessing(context.Background(), b.ID)
	assert.ErrorIs(t, err, code.ErrorInvalidTransition)

	expires := time.Date(2024, 5, 9, 7, 0, 0, 0, time.UTC)
	detail := domain.ErrorDetail{Kind: domain.ErrorKindUnreachable, Message: "connect timeout"}
	require.NoError(t, backups.MarkFailed(context.Background(), b.ID, detail, expires))

	got, err := backups.GetByID(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BackupStatusFailed, got.Status)
	require.NotNil(t, got.ErrorDetail)
	assert.Equal(t, domain.ErrorKindUnreachable, got.ErrorDetail.Kind)
	require.NotNil(t, got.ExpiresAt)
	assert.True(t, got.ExpiresAt.Equal(expires))

	// terminal rows are immutable
	err = backups.MarkFailed(context.Background(), b.ID, detail, expires)
	assert.ErrorIs(t, err, code.ErrorInvalidTransition)
}

func TestBackupAggregate(t *testing.T) {
	d := testDao(t)
	projects := NewProjectRepository(d)
	backups := NewBackupRepository(d)
	ctx := context.Background()

	p := seedProject(t, projects, domain.ScheduleDaily)

	finish := func(size int64, fail bool) {
		b, err := backups.Create(ctx, &domain.Backup{
			ID:           uuid.NewString(),
			ProjectID:    p.ID,
			ScheduleType: domain.ScheduleDaily,
		})
		require.NoError(t, err)
		require.NoError(t, backups.MarkProcessing(ctx, b.ID))
		if fail {
			require.NoError(t, backups.MarkFailed(ctx, b.ID, domain.ErrorDetail{Kind: domain.ErrorKindExportFailed, Message: "boom"}, time.Now().Add(time.Hour)))
			return
		}
		require.NoError(t, backups.MarkCompleted(ctx, b.ID, size, 5, "backups/a.json", time.Now().Add(time.Hour)))
	}

	finish(100, false)
	finish(200, false)

	snap, err := backups.Aggregate(ctx, p.ID, domain.BackupFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), snap.TotalBackups)
	assert.Equal(t, int64(300), snap.TotalSizeBytes)
	assert.Equal(t, domain.BackupStatusCompleted, snap.LastBackupStatus)

	// Empty project yields zeroes, not an error.
	other := seedProject(t, projects, domain.ScheduleDaily)
	snap, err = backups.Aggregate(ctx, other.ID, domain.BackupFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), snap.TotalBackups)
	assert.Equal(t, "", snap.LastBackupStatus)
}

func TestListStale(t *testing.T) {
	d := testDao(t)
	projects := NewProjectRepository(d)
	backups := NewBackupRepository(d)
	ctx := context.Background()

	p := seedProject(t, projects, domain.ScheduleDaily)
	b, err := backups.Create(ctx, &domain.Backup{
		ID:           uuid.NewString(),
		ProjectID:    p.ID,
		ScheduleType: domain.ScheduleDaily,
	})
	require.NoError(t, err)

	// A row abandoned before the claim is stale too.
	stale, err := backups.ListStale(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, b.ID, stale[0].ID)
	assert.Equal(t, domain.BackupStatusPending, stale[0].Status)

	require.NoError(t, backups.MarkProcessing(ctx, b.ID))

	stale, err = backups.ListStale(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, domain.BackupStatusProcessing, stale[0].Status)

	stale, err = backups.ListStale(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Empty(t, stale)
}

func TestMarkAbandonedReleasesSlotAndLosesRaces(t *testing.T) {
	d := testDao(t)
	projects := NewProjectRepository(d)
	backups := NewBackupRepository(d)
	ctx := context.Background()

	p := seedProject(t, projects, domain.ScheduleDaily)
	b, err := backups.Create(ctx, &domain.Backup{
		ID:           uuid.NewString(),
		ProjectID:    p.ID,
		ScheduleType: domain.ScheduleDaily,
	})
	require.NoError(t, err)

	detail := domain.ErrorDetail{Kind: domain.ErrorKindTimeout, Message: "no progress"}
	expires := time.Now().Add(time.Hour)

	// A claimer that moved the row to processing wins over a sweep that
	// observed it pending.
	require.NoError(t, backups.MarkProcessing(ctx, b.ID))
	err = backups.MarkAbandoned(ctx, b.ID, domain.BackupStatusPending, detail, expires)
	assert.ErrorIs(t, err, code.ErrorInvalidTransition)

	// From the observed status the abandon goes through and frees the
	// per-project slot.
	require.NoError(t, backups.MarkAbandoned(ctx, b.ID, domain.BackupStatusProcessing, detail, expires))

	got, err := backups.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BackupStatusFailed, got.Status)
	require.NotNil(t, got.ErrorDetail)
	assert.Equal(t, domain.ErrorKindTimeout, got.ErrorDetail.Kind)

	_, err = backups.Create(ctx, &domain.Backup{
		ID:           uuid.NewString(),
		ProjectID:    p.ID,
		ScheduleType: domain.ScheduleManual,
	})
	require.NoError(t, err)

	// Terminal rows stay immutable regardless of the claimed status.
	err = backups.MarkAbandoned(ctx, b.ID, domain.BackupStatusProcessing, detail, expires)
	assert.ErrorIs(t, err, code.ErrorInvalidTransition)
	err = backups.MarkAbandoned(ctx, b.ID, domain.BackupStatusCompleted, detail, expires)
	assert.ErrorIs(t, err, code.ErrorInvalidTransition)
}
