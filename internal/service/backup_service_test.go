package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bubblevault/bubble-backup-service/internal/bubble"
	"github.com/bubblevault/bubble-backup-service/internal/dao"
	"github.com/bubblevault/bubble-backup-service/internal/domain"
	"github.com/bubblevault/bubble-backup-service/internal/model"
	"github.com/bubblevault/bubble-backup-service/pkg/app"
	"github.com/bubblevault/bubble-backup-service/pkg/code"
	"github.com/bubblevault/bubble-backup-service/pkg/storage"

	"github.com/google/uuid"
	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testEngine struct {
	projects domain.ProjectRepository
	backups  domain.BackupRepository
	backup   BackupService
	clock    *testclock.Clock
	savePath string
	server   *httptest.Server
}

// bubbleHandler serves a healthy two-type app with three user rows.
func bubbleHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/version-test/api/1.1/meta" {
			fmt.Fprint(w, `{"app_name":"myapp","get":["user","order"]}`)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"response": map[string]any{
				"results":   []map[string]any{{"_id": "1"}, {"_id": "2"}, {"_id": "3"}},
				"remaining": 0,
			},
		})
	})
}

func newTestEngine(t *testing.T, handler http.Handler) *testEngine {
	t.Helper()

	db, err := dao.NewDBEngine(dao.Config{
		Type:         "sqlite",
		Path:         filepath.Join(t.TempDir(), "test.db"),
		MaxIdleConns: 2,
		MaxOpenConns: 2,
	}, "release")
	require.NoError(t, err)
	require.NoError(t, model.AutoMigrate(db))
	d := dao.New(db)

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	savePath := filepath.Join(t.TempDir(), "artifacts")
	store, err := storage.NewClient(&storage.Config{Type: storage.LOCAL, SavePath: savePath})
	require.NoError(t, err)

	clk := testclock.NewClock(time.Now())

	e := &testEngine{
		projects: dao.NewProjectRepository(d),
		backups:  dao.NewBackupRepository(d),
		clock:    clk,
		savePath: savePath,
		server:   srv,
	}
	e.backup = NewBackupService(
		e.projects, e.backups,
		bubble.NewClient(bubble.WithHTTPClient(srv.Client())),
		store, BackupPolicy{}, clk, zap.NewNop(),
	)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = e.backup.Shutdown(ctx)
	})
	return e
}

// seedDue registers an active daily project that is already due.
func (e *testEngine) seedDue(t *testing.T) *domain.Project {
	t.Helper()

	p := &domain.Project{
		ID:            uuid.NewString(),
		AppURL:        e.server.URL,
		APIKey:        "secret",
		Timezone:      "America/New_York",
		DataTypes:     []string{"user", "order"},
		Status:        domain.ProjectStatusActive,
		BackupEnabled: true,
	}
	due := e.clock.Now().Add(-time.Minute).UTC()
	s := &domain.ScheduleSetting{
		ProjectID:    p.ID,
		ScheduleType: domain.ScheduleDaily,
		AnchorHour:   2,
		NextRunAt:    &due,
	}
	created, err := e.projects.Create(context.Background(), p, s)
	require.NoError(t, err)
	return created
}

func waitTerminal(t *testing.T, e *testEngine, projectID string) *domain.Backup {
	t.Helper()

	var last *domain.Backup
	require.Eventually(t, func() bool {
		list, _, err := e.backups.List(context.Background(), projectID, domain.BackupFilter{}, 1, 10)
		if err != nil || len(list) == 0 {
			return false
		}
		last = list[0]
		return last.Terminal()
	}, 5*time.Second, 20*time.Millisecond)
	return last
}

func TestDispatchRunsDueBackup(t *testing.T) {
	e := newTestEngine(t, bubbleHandler())
	p := e.seedDue(t)

	require.NoError(t, e.backup.RunDispatchCycle(context.Background()))

	b := waitTerminal(t, e, p.ID)
	assert.Equal(t, domain.BackupStatusCompleted, b.Status)
	assert.Equal(t, domain.ScheduleDaily, b.ScheduleType)
	assert.Equal(t, int64(6), b.RecordCount)
	assert.Greater(t, b.SizeBytes, int64(0))
	require.NotNil(t, b.ExpiresAt)

	// The artifact landed on disk.
	_, err := os.Stat(filepath.Join(e.savePath, b.FilePath))
	assert.NoError(t, err)

	// The schedule advanced past now and recorded the run.
	require.Eventually(t, func() bool {
		setting, err := e.projects.GetSetting(context.Background(), p.ID)
		if err != nil {
			return false
		}
		return setting.LastRunAt != nil &&
			setting.NextRunAt != nil &&
			setting.NextRunAt.After(e.clock.Now())
	}, 5*time.Second, 20*time.Millisecond)
}

func TestDispatchSkipsWhenJobInFlight(t *testing.T) {
	e := newTestEngine(t, bubbleHandler())
	p := e.seedDue(t)

	// Occupy the per-project slot before the cycle runs.
	_, err := e.backups.Create(context.Background(), &domain.Backup{
		ID:           uuid.NewString(),
		ProjectID:    p.ID,
		ScheduleType: domain.ScheduleManual,
	})
	require.NoError(t, err)

	before, err := e.projects.GetSetting(context.Background(), p.ID)
	require.NoError(t, err)

	require.NoError(t, e.backup.RunDispatchCycle(context.Background()))

	// Give any stray goroutine time to do damage, then check nothing moved.
	time.Sleep(200 * time.Millisecond)

	list, count, err := e.backups.List(context.Background(), p.ID, domain.BackupFilter{}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, domain.BackupStatusPending, list[0].Status)

	after, err := e.projects.GetSetting(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, before.NextRunAt.UTC(), after.NextRunAt.UTC())
	assert.Nil(t, after.LastRunAt)
}

func TestFailedExportStillAdvancesSchedule(t *testing.T) {
	e := newTestEngine(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	p := e.seedDue(t)

	require.NoError(t, e.backup.RunDispatchCycle(context.Background()))

	b := waitTerminal(t, e, p.ID)
	assert.Equal(t, domain.BackupStatusFailed, b.Status)
	require.NotNil(t, b.ErrorDetail)
	assert.Equal(t, domain.ErrorKindInvalidCredentials, b.ErrorDetail.Kind)
	require.NotNil(t, b.ExpiresAt)
	assert.Empty(t, b.FilePath)

	// A failing project must not wedge its own schedule.
	require.Eventually(t, func() bool {
		setting, err := e.projects.GetSetting(context.Background(), p.ID)
		if err != nil {
			return false
		}
		return setting.NextRunAt != nil && setting.NextRunAt.After(e.clock.Now())
	}, 5*time.Second, 20*time.Millisecond)
}

func TestSweepStaleFailsAbandonedJobs(t *testing.T) {
	e := newTestEngine(t, bubbleHandler())
	p := e.seedDue(t)

	b, err := e.backups.Create(context.Background(), &domain.Backup{
		ID:           uuid.NewString(),
		ProjectID:    p.ID,
		ScheduleType: domain.ScheduleDaily,
	})
	require.NoError(t, err)
	require.NoError(t, e.backups.MarkProcessing(context.Background(), b.ID))

	// Jump the clock past the stale timeout; the row's updated_at stays at
	// wall time, so the sweep sees it as abandoned.
	e.clock.Advance(time.Hour)
	require.NoError(t, e.backup.SweepStale(context.Background()))

	got, err := e.backups.GetByID(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BackupStatusFailed, got.Status)
	require.NotNil(t, got.ErrorDetail)
	assert.Equal(t, domain.ErrorKindTimeout, got.ErrorDetail.Kind)

	// The slot is free again.
	_, err = e.backups.Create(context.Background(), &domain.Backup{
		ID:           uuid.NewString(),
		ProjectID:    p.ID,
		ScheduleType: domain.ScheduleDaily,
	})
	assert.NoError(t, err)
}

func TestSweepStaleRecoversStuckPendingJob(t *testing.T) {
	e := newTestEngine(t, bubbleHandler())
	p := e.seedDue(t)

	// A crash between create and claim leaves the row pending while it
	// still holds the per-project slot.
	b, err := e.backups.Create(context.Background(), &domain.Backup{
		ID:           uuid.NewString(),
		ProjectID:    p.ID,
		ScheduleType: domain.ScheduleManual,
	})
	require.NoError(t, err)

	_, err = e.backup.TriggerManual(context.Background(), p.ID)
	require.ErrorIs(t, err, code.ErrorDuplicateActiveJob)

	e.clock.Advance(24 * time.Hour)
	require.NoError(t, e.backup.SweepStale(context.Background()))

	got, err := e.backups.GetByID(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BackupStatusFailed, got.Status)
	require.NotNil(t, got.ErrorDetail)
	assert.Equal(t, domain.ErrorKindTimeout, got.ErrorDetail.Kind)

	// The slot is free again, so manual triggers work.
	d, err := e.backup.TriggerManual(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BackupStatusPending, d.Status)
}

func TestTriggerManual(t *testing.T) {
	e := newTestEngine(t, bubbleHandler())
	p := e.seedDue(t)

	before, err := e.projects.GetSetting(context.Background(), p.ID)
	require.NoError(t, err)

	d, err := e.backup.TriggerManual(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ScheduleManual, d.ScheduleType)
	assert.Equal(t, domain.BackupStatusPending, d.Status)

	// A second trigger while the first is in flight conflicts.
	_, err = e.backup.TriggerManual(context.Background(), p.ID)
	if err == nil {
		// The first run may already have finished; only a live slot conflicts.
		b, getErr := e.backups.GetByID(context.Background(), d.ID)
		require.NoError(t, getErr)
		assert.True(t, b.Terminal())
	} else {
		assert.ErrorIs(t, err, code.ErrorDuplicateActiveJob)
	}

	b := waitTerminal(t, e, p.ID)
	assert.Equal(t, domain.BackupStatusCompleted, b.Status)

	// Manual runs leave the schedule alone.
	after, err := e.projects.GetSetting(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, before.NextRunAt.UTC(), after.NextRunAt.UTC())
	assert.Nil(t, after.LastRunAt)
}

func TestTriggerManualRejectsPausedAndMissing(t *testing.T) {
	e := newTestEngine(t, bubbleHandler())
	p := e.seedDue(t)
	require.NoError(t, e.projects.UpdateStatus(context.Background(), p.ID, domain.ProjectStatusPaused))

	_, err := e.backup.TriggerManual(context.Background(), p.ID)
	assert.ErrorIs(t, err, code.ErrorProjectPaused)

	_, err = e.backup.TriggerManual(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, code.ErrorProjectNotFound)
}

func TestStatsAndList(t *testing.T) {
	e := newTestEngine(t, bubbleHandler())
	p := e.seedDue(t)

	require.NoError(t, e.backup.RunDispatchCycle(context.Background()))
	waitTerminal(t, e, p.ID)

	pager := &app.Pager{Page: 1, PageSize: 10}
	list, count, err := e.backup.ListBackups(context.Background(), p.ID, nil, pager)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	require.Len(t, list, 1)

	stats, err := e.backup.Stats(context.Background(), p.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalBackups)
	assert.Greater(t, stats.TotalSizeBytes, int64(0))
	assert.Equal(t, domain.BackupStatusCompleted, stats.LastBackupStatus)

	_, err = e.backup.Stats(context.Background(), uuid.NewString(), nil)
	assert.ErrorIs(t, err, code.ErrorProjectNotFound)
}

func TestCleanupExpired(t *testing.T) {
	e := newTestEngine(t, bubbleHandler())
	p := e.seedDue(t)

	require.NoError(t, e.backup.RunDispatchCycle(context.Background()))
	b := waitTerminal(t, e, p.ID)
	require.Equal(t, domain.BackupStatusCompleted, b.Status)

	artifact := filepath.Join(e.savePath, b.FilePath)
	_, err := os.Stat(artifact)
	require.NoError(t, err)

	// Not expired yet.
	require.NoError(t, e.backup.CleanupExpired(context.Background(), 10))
	_, err = os.Stat(artifact)
	assert.NoError(t, err)

	// Jump past retention.
	e.clock.Advance(61 * 24 * time.Hour)
	require.NoError(t, e.backup.CleanupExpired(context.Background(), 10))

	_, err = os.Stat(artifact)
	assert.True(t, os.IsNotExist(err))

	got, err := e.backups.GetByID(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BackupStatusCompleted, got.Status)
	assert.Empty(t, got.FilePath)
}
