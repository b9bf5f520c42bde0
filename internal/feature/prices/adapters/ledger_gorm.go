package adapters

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"

	"stock_pipeline/internal/feature/prices/domain"
	"stock_pipeline/internal/feature/prices/domain/entity"
	"stock_pipeline/internal/feature/prices/usecase"
)

// IngestRunModel is one row of the ingest_runs table.
type IngestRunModel struct {
	ID         string     `gorm:"primaryKey;size:36"`
	Market     string     `gorm:"size:16;not null;index"`
	StartDay   string     `gorm:"size:10;not null"`
	EndDay     string     `gorm:"size:10;not null"`
	Tickers    int        `gorm:"not null;default:0"`
	StartedAt  time.Time  `gorm:"not null;index"`
	FinishedAt *time.Time `gorm:"index"`
	Written    int        `gorm:"not null;default:0"`
	Empty      int        `gorm:"not null;default:0"`
	Skipped    int        `gorm:"not null;default:0"`
	Failed     int        `gorm:"not null;default:0"`
	Canceled   bool       `gorm:"not null;default:false"`
}

func (IngestRunModel) TableName() string {
	return "ingest_runs"
}

// DayResultModel is one row of the ingest_day_results table.
type DayResultModel struct {
	ID         uint      `gorm:"primaryKey"`
	RunID      string    `gorm:"size:36;not null;index"`
	Day        string    `gorm:"size:10;not null;index"`
	Outcome    string    `gorm:"size:16;not null"`
	RowCount   int       `gorm:"not null;default:0"`
	Error      string    `gorm:"type:text"`
	RecordedAt time.Time `gorm:"not null"`
}

func (DayResultModel) TableName() string {
	return "ingest_day_results"
}

// LedgerModels lists the models the run ledger needs migrated.
func LedgerModels() []any {
	return []any{&IngestRunModel{}, &DayResultModel{}}
}

type ledgerGorm struct {
	db  *gorm.DB
	now func() time.Time
}

var _ usecase.RunRecorder = (*ledgerGorm)(nil)

// NewLedger returns a RunRecorder that persists runs and per-day outcomes with gorm.
func NewLedger(db *gorm.DB) *ledgerGorm {
	return &ledgerGorm{db: db, now: time.Now}
}

func (l *ledgerGorm) StartRun(ctx context.Context, run entity.Run) error {
	m := IngestRunModel{
		ID:        run.ID,
		Market:    run.Market,
		StartDay:  run.Start.String(),
		EndDay:    run.End.String(),
		Tickers:   run.Tickers,
		StartedAt: run.StartedAt,
	}
	return l.db.WithContext(ctx).Create(&m).Error
}

func (l *ledgerGorm) RecordDay(ctx context.Context, runID string, result entity.DayResult) error {
	m := DayResultModel{
		RunID:      runID,
		Day:        result.Day.String(),
		Outcome:    string(result.Outcome),
		RowCount:   result.Rows,
		RecordedAt: l.now(),
	}
	if result.Err != nil {
		m.Error = result.Err.Error()
	}
	return l.db.WithContext(ctx).Create(&m).Error
}

func (l *ledgerGorm) FinishRun(ctx context.Context, s entity.Summary) error {
	return l.db.WithContext(ctx).
		Model(&IngestRunModel{}).
		Where("id = ?", s.RunID).
		Updates(map[string]any{
			"finished_at": s.FinishedAt,
			"written":     len(s.Written),
			"empty":       len(s.Empty),
			"skipped":     len(s.Skipped),
			"failed":      len(s.Failed),
			"canceled":    s.Canceled,
		}).Error
}

// LastRun returns the most recently started run for market.
func (l *ledgerGorm) LastRun(ctx context.Context, market string) (entity.RunRecord, error) {
	var m IngestRunModel
	err := l.db.WithContext(ctx).
		Where("market = ?", market).
		Order("started_at DESC").
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return entity.RunRecord{}, domain.ErrRunNotFound
	}
	if err != nil {
		return entity.RunRecord{}, err
	}
	return toRunRecord(m)
}

// FailedDays returns the days of market whose latest recorded attempt failed, ascending.
// A day that failed once and was later written, found empty or skipped is not reported.
func (l *ledgerGorm) FailedDays(ctx context.Context, market string) ([]entity.FailedDay, error) {
	var results []DayResultModel
	err := l.db.WithContext(ctx).
		Joins("JOIN ingest_runs ON ingest_runs.id = ingest_day_results.run_id").
		Where("ingest_runs.market = ?", market).
		Order("ingest_day_results.id ASC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}

	// 日付ごとに最新の結果のみを残す
	latest := make(map[string]DayResultModel, len(results))
	for _, r := range results {
		latest[r.Day] = r
	}

	var out []entity.FailedDay
	for _, r := range latest {
		if r.Outcome != string(entity.OutcomeFailed) {
			continue
		}
		day, err := entity.ParseTradingDay(r.Day)
		if err != nil {
			return nil, fmt.Errorf("ledger row %d: %w", r.ID, err)
		}
		out = append(out, entity.FailedDay{Day: day, RunID: r.RunID, Error: r.Error, FailedAt: r.RecordedAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })
	return out, nil
}

func toRunRecord(m IngestRunModel) (entity.RunRecord, error) {
	start, err := entity.ParseTradingDay(m.StartDay)
	if err != nil {
		return entity.RunRecord{}, err
	}
	end, err := entity.ParseTradingDay(m.EndDay)
	if err != nil {
		return entity.RunRecord{}, err
	}
	return entity.RunRecord{
		ID:         m.ID,
		Market:     m.Market,
		Start:      start,
		End:        end,
		Tickers:    m.Tickers,
		StartedAt:  m.StartedAt,
		FinishedAt: m.FinishedAt,
		Written:    m.Written,
		Empty:      m.Empty,
		Skipped:    m.Skipped,
		Failed:     m.Failed,
		Canceled:   m.Canceled,
	}, nil
}
