package usecase

import (
	"context"
	"errors"

	"stock_pipeline/internal/feature/prices/domain/entity"
)

// NoopRecorder discards every event.
type NoopRecorder struct{}

var _ RunRecorder = NoopRecorder{}

func (NoopRecorder) StartRun(context.Context, entity.Run) error                { return nil }
func (NoopRecorder) RecordDay(context.Context, string, entity.DayResult) error { return nil }
func (NoopRecorder) FinishRun(context.Context, entity.Summary) error           { return nil }

// MultiRecorder fans every event out to each recorder and joins their errors.
type MultiRecorder []RunRecorder

var _ RunRecorder = MultiRecorder(nil)

func (m MultiRecorder) StartRun(ctx context.Context, run entity.Run) error {
	var errs []error
	for _, r := range m {
		errs = append(errs, r.StartRun(ctx, run))
	}
	return errors.Join(errs...)
}

func (m MultiRecorder) RecordDay(ctx context.Context, runID string, result entity.DayResult) error {
	var errs []error
	for _, r := range m {
		errs = append(errs, r.RecordDay(ctx, runID, result))
	}
	return errors.Join(errs...)
}

func (m MultiRecorder) FinishRun(ctx context.Context, summary entity.Summary) error {
	var errs []error
	for _, r := range m {
		errs = append(errs, r.FinishRun(ctx, summary))
	}
	return errors.Join(errs...)
}
