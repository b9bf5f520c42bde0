package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"stock_pipeline/internal/feature/prices/domain"
	"stock_pipeline/internal/feature/prices/domain/entity"
)

// IngestUsecase は外部APIから日次データを取得し、日付パーティションとして永続化するユースケースを定義します。
// 既に存在するパーティションはスキップされるため、同じ期間を何度実行しても安全です。
type IngestUsecase struct {
	store    PartitionStore
	fetcher  DayFetcher
	recorder RunRecorder
	now      func() time.Time
}

// NewIngestUsecase は新しい IngestUsecase を作成します。recorder が nil の場合は何も記録しません。
func NewIngestUsecase(store PartitionStore, fetcher DayFetcher, recorder RunRecorder) *IngestUsecase {
	if recorder == nil {
		recorder = NoopRecorder{}
	}
	return &IngestUsecase{store: store, fetcher: fetcher, recorder: recorder, now: time.Now}
}

// IngestDay ingests a single day; equivalent to IngestRange(day, day).
func (iu *IngestUsecase) IngestDay(ctx context.Context, market string, tickers []string, day entity.TradingDay) (entity.Summary, error) {
	return iu.IngestRange(ctx, market, tickers, day, day)
}

// IngestRange walks every calendar day in [start, end] ascending and makes sure a
// partition exists for each. A failing day is recorded in the summary and the
// walk continues; only invalid arguments and context cancellation end it early.
func (iu *IngestUsecase) IngestRange(ctx context.Context, market string, tickers []string, start, end entity.TradingDay) (entity.Summary, error) {
	if start.After(end) {
		return entity.Summary{}, fmt.Errorf("%s > %s: %w", start, end, domain.ErrInvalidRange)
	}
	if len(tickers) == 0 {
		return entity.Summary{}, domain.ErrNoTickers
	}

	run := entity.Run{
		ID:        uuid.NewString(),
		Market:    market,
		Start:     start,
		End:       end,
		Tickers:   len(tickers),
		StartedAt: iu.now(),
	}
	summary := entity.Summary{
		RunID:     run.ID,
		Market:    market,
		Start:     start,
		End:       end,
		StartedAt: run.StartedAt,
	}
	if err := iu.recorder.StartRun(ctx, run); err != nil {
		slog.Warn("failed to record run start", "run_id", run.ID, "error", err)
	}

	var runErr error
	for _, day := range entity.DaysBetween(start, end) {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		result, err := iu.ingestOne(ctx, tickers, day)
		if err != nil {
			runErr = err
			break
		}
		summary.Add(result)
		iu.logResult(market, result)
		if err := iu.recorder.RecordDay(ctx, run.ID, result); err != nil {
			slog.Warn("failed to record day result", "run_id", run.ID, "day", day, "error", err)
		}
	}

	summary.Canceled = runErr != nil
	summary.FinishedAt = iu.now()
	// キャンセル後も記録できるよう親 ctx から切り離す
	if err := iu.recorder.FinishRun(context.WithoutCancel(ctx), summary); err != nil {
		slog.Warn("failed to record run finish", "run_id", run.ID, "error", err)
	}
	return summary, runErr
}

// ingestOne は1日分の処理を行います。返り値の error は ctx のキャンセルのみで、
// それ以外の失敗は OutcomeFailed として DayResult に含めます。
func (iu *IngestUsecase) ingestOne(ctx context.Context, tickers []string, day entity.TradingDay) (entity.DayResult, error) {
	exists, err := iu.store.Exists(ctx, day)
	if err != nil {
		if ctx.Err() != nil {
			return entity.DayResult{}, ctx.Err()
		}
		return entity.DayResult{Day: day, Outcome: entity.OutcomeFailed, Err: err}, nil
	}
	if exists {
		return entity.DayResult{Day: day, Outcome: entity.OutcomeSkipped}, nil
	}

	rows, err := iu.fetcher.Fetch(ctx, tickers, day)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNoDataAvailable):
		rows = nil
	case ctx.Err() != nil:
		return entity.DayResult{}, ctx.Err()
	default:
		if !errors.Is(err, domain.ErrFetch) {
			err = &domain.FetchError{Day: day, Err: err}
		}
		return entity.DayResult{Day: day, Outcome: entity.OutcomeFailed, Err: err}, nil
	}

	if err := iu.store.Write(ctx, day, rows); err != nil {
		if errors.Is(err, domain.ErrPartitionExists) {
			// 並行実行が先に書き込んだ
			return entity.DayResult{Day: day, Outcome: entity.OutcomeSkipped}, nil
		}
		if ctx.Err() != nil {
			return entity.DayResult{}, ctx.Err()
		}
		return entity.DayResult{Day: day, Outcome: entity.OutcomeFailed, Err: err}, nil
	}

	if len(rows) == 0 {
		return entity.DayResult{Day: day, Outcome: entity.OutcomeEmpty}, nil
	}
	return entity.DayResult{Day: day, Outcome: entity.OutcomeWritten, Rows: len(rows)}, nil
}

func (iu *IngestUsecase) logResult(market string, r entity.DayResult) {
	if r.Outcome == entity.OutcomeFailed {
		slog.Error("failed to ingest day", "market", market, "day", r.Day, "error", r.Err)
		return
	}
	slog.Info("ingested day", "market", market, "day", r.Day, "outcome", string(r.Outcome), "rows", r.Rows)
}
