// Package usecase implements the incremental ingestion of daily OHLCV partitions.
package usecase

import (
	"context"

	"stock_pipeline/internal/feature/prices/domain/entity"
)

// Following Go convention: interfaces are defined by the consumer (usecase), not the provider (adapters).

// PartitionStore は日付パーティションの存在確認と書き込みを抽象化します。
// 書き込みはアトミックで、既存のパーティションは上書きしません。
type PartitionStore interface {
	Exists(ctx context.Context, day entity.TradingDay) (bool, error)
	Write(ctx context.Context, day entity.TradingDay, rows []entity.OHLCVRow) error
}

// Provider は外部の株価データAPIを抽象化します。
// [start, end) の期間のデータをワイド形式のテーブルで返します。
type Provider interface {
	Download(ctx context.Context, tickers []string, start, end entity.TradingDay, interval string) (*entity.QuoteTable, error)
}

// DayFetcher は1日分の正規化済み行を取得します。
type DayFetcher interface {
	Fetch(ctx context.Context, tickers []string, day entity.TradingDay) ([]entity.OHLCVRow, error)
}

// RunRecorder はインジェスト実行の進捗を記録します（台帳、メトリクスなど）。
// 記録の失敗は実行結果に影響しません。
type RunRecorder interface {
	StartRun(ctx context.Context, run entity.Run) error
	RecordDay(ctx context.Context, runID string, result entity.DayResult) error
	FinishRun(ctx context.Context, summary entity.Summary) error
}
