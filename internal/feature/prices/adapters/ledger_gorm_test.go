package adapters

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"stock_pipeline/internal/feature/prices/domain"
	"stock_pipeline/internal/feature/prices/domain/entity"
)

// setupTestDB prepares an in-memory SQLite database for testing.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err, "failed to initialize test database")

	// every pooled connection would otherwise get its own empty in-memory database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(LedgerModels()...)
	require.NoError(t, err, "failed to migrate tables")

	return db
}

func startRun(t *testing.T, l *ledgerGorm, id, market string, startedAt time.Time) {
	t.Helper()
	err := l.StartRun(context.Background(), entity.Run{
		ID:        id,
		Market:    market,
		Start:     entity.Date(2024, time.March, 1),
		End:       entity.Date(2024, time.March, 5),
		Tickers:   2,
		StartedAt: startedAt,
	})
	require.NoError(t, err)
}

func TestLedger_RunLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l := NewLedger(setupTestDB(t))
	t0 := time.Date(2024, time.March, 6, 9, 0, 0, 0, time.UTC)

	startRun(t, l, "run-1", "us", t0)

	d1 := entity.Date(2024, time.March, 1)
	d2 := entity.Date(2024, time.March, 2)
	require.NoError(t, l.RecordDay(ctx, "run-1", entity.DayResult{Day: d1, Outcome: entity.OutcomeWritten, Rows: 2}))
	require.NoError(t, l.RecordDay(ctx, "run-1", entity.DayResult{Day: d2, Outcome: entity.OutcomeFailed, Err: errors.New("timeout")}))

	require.NoError(t, l.FinishRun(ctx, entity.Summary{
		RunID:      "run-1",
		Written:    []entity.TradingDay{d1},
		Failed:     map[entity.TradingDay]error{d2: errors.New("timeout")},
		FinishedAt: t0.Add(time.Minute),
	}))

	rec, err := l.LastRun(ctx, "us")
	require.NoError(t, err)
	assert.Equal(t, "run-1", rec.ID)
	assert.Equal(t, entity.Date(2024, time.March, 1), rec.Start)
	assert.Equal(t, 1, rec.Written)
	assert.Equal(t, 1, rec.Failed)
	require.NotNil(t, rec.FinishedAt)
	assert.True(t, rec.FinishedAt.Equal(t0.Add(time.Minute)))

	failed, err := l.FailedDays(ctx, "us")
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, d2, failed[0].Day)
	assert.Equal(t, "timeout", failed[0].Error)
}

func TestLedger_FailedDays_LatestOutcomeWins(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l := NewLedger(setupTestDB(t))
	t0 := time.Date(2024, time.March, 6, 9, 0, 0, 0, time.UTC)
	d := entity.Date(2024, time.March, 4)
	other := entity.Date(2024, time.March, 5)

	startRun(t, l, "run-1", "hk", t0)
	require.NoError(t, l.RecordDay(ctx, "run-1", entity.DayResult{Day: d, Outcome: entity.OutcomeFailed, Err: errors.New("503")}))
	require.NoError(t, l.RecordDay(ctx, "run-1", entity.DayResult{Day: other, Outcome: entity.OutcomeFailed, Err: errors.New("503")}))

	startRun(t, l, "run-2", "hk", t0.Add(time.Hour))
	require.NoError(t, l.RecordDay(ctx, "run-2", entity.DayResult{Day: d, Outcome: entity.OutcomeWritten, Rows: 80}))

	// a failure in another market must not leak
	startRun(t, l, "run-3", "us", t0.Add(2*time.Hour))
	require.NoError(t, l.RecordDay(ctx, "run-3", entity.DayResult{Day: d, Outcome: entity.OutcomeFailed, Err: errors.New("x")}))

	failed, err := l.FailedDays(ctx, "hk")
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, other, failed[0].Day)

	rec, err := l.LastRun(ctx, "hk")
	require.NoError(t, err)
	assert.Equal(t, "run-2", rec.ID)
	assert.Nil(t, rec.FinishedAt)
}

func TestLedger_LastRun_NotFound(t *testing.T) {
	t.Parallel()

	l := NewLedger(setupTestDB(t))
	_, err := l.LastRun(context.Background(), "us")
	assert.ErrorIs(t, err, domain.ErrRunNotFound)
}
