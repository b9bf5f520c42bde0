// Package adapters provides persistence implementations for the prices feature.
package adapters

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/parquet-go/parquet-go"

	"stock_pipeline/internal/feature/prices/domain"
	"stock_pipeline/internal/feature/prices/domain/entity"
	"stock_pipeline/internal/feature/prices/usecase"
)

const (
	partitionPrefix = "Date="
	stagingPrefix   = ".staging-"
	partFileName    = "part-0.parquet"
)

// partitionRecord is the on-disk row layout. The trading day is not stored in the
// file; it is the partition key encoded in the directory name.
type partitionRecord struct {
	Ticker string  `parquet:"Ticker"`
	Open   float64 `parquet:"Open"`
	High   float64 `parquet:"High"`
	Low    float64 `parquet:"Low"`
	Close  float64 `parquet:"Close"`
	Volume int64   `parquet:"Volume"`
}

// ParquetStore persists one gzip-compressed parquet file per trading day under
// <root>/Date=YYYY-MM-DD/. A partition becomes visible only through an atomic
// directory rename, so readers never observe a half-written day.
type ParquetStore struct {
	root string
	mu   sync.Mutex
}

// ParquetStoreがPartitionStoreを実装していることをコンパイル時に検証します。
var _ usecase.PartitionStore = (*ParquetStore)(nil)

// NewParquetStore returns a store rooted at dir. The directory is created lazily on first write.
func NewParquetStore(dir string) *ParquetStore {
	return &ParquetStore{root: dir}
}

// Root returns the directory the store writes to.
func (s *ParquetStore) Root() string { return s.root }

// PartitionDir returns the directory that holds the partition for day.
func (s *ParquetStore) PartitionDir(day entity.TradingDay) string {
	return filepath.Join(s.root, partitionPrefix+day.String())
}

// Exists reports whether a complete partition for day is present.
func (s *ParquetStore) Exists(ctx context.Context, day entity.TradingDay) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	info, err := os.Stat(filepath.Join(s.PartitionDir(day), partFileName))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat partition %s: %w", day, err)
	}
	return info.Mode().IsRegular(), nil
}

// Write persists rows as the partition for day. An empty rows slice produces a
// zero-row partition that still counts as present.
func (s *ParquetStore) Write(ctx context.Context, day entity.TradingDay, rows []entity.OHLCVRow) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	records, err := toRecords(day, rows)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	exists, err := s.Exists(ctx, day)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%s: %w", day, domain.ErrPartitionExists)
	}

	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("create store root: %w", err)
	}
	staging, err := os.MkdirTemp(s.root, stagingPrefix+partitionPrefix+day.String()+"-")
	if err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			if rmErr := os.RemoveAll(staging); rmErr != nil {
				slog.Warn("failed to remove staging dir", "dir", staging, "error", rmErr)
			}
		}
	}()

	if err := writePartFile(filepath.Join(staging, partFileName), records); err != nil {
		return fmt.Errorf("write partition %s: %w", day, err)
	}

	target := s.PartitionDir(day)
	// 不完全なディレクトリ（part ファイルなし）は存在しないものとして置き換える
	if err := os.RemoveAll(target); err != nil {
		return fmt.Errorf("clear incomplete partition %s: %w", day, err)
	}
	if err := os.Rename(staging, target); err != nil {
		return fmt.Errorf("commit partition %s: %w", day, err)
	}
	committed = true
	syncDir(s.root)
	return nil
}

// Read returns the partition for day. ok is false when the day has not been written.
func (s *ParquetStore) Read(ctx context.Context, day entity.TradingDay) (entity.Partition, bool, error) {
	exists, err := s.Exists(ctx, day)
	if err != nil || !exists {
		return entity.Partition{}, false, err
	}
	rows, err := readPartFile(filepath.Join(s.PartitionDir(day), partFileName), day)
	if err != nil {
		return entity.Partition{}, false, fmt.Errorf("read partition %s: %w", day, err)
	}
	return entity.Partition{Day: day, Rows: rows}, true, nil
}

// ReadRange returns every present partition with start <= day <= end, ascending by day.
// Staging directories and unrelated entries are ignored.
func (s *ParquetStore) ReadRange(ctx context.Context, start, end entity.TradingDay) ([]entity.Partition, error) {
	days, err := s.Days(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]entity.Partition, 0, len(days))
	for _, d := range days {
		if d.Before(start) || d.After(end) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, err := readPartFile(filepath.Join(s.PartitionDir(d), partFileName), d)
		if err != nil {
			return nil, fmt.Errorf("read partition %s: %w", d, err)
		}
		out = append(out, entity.Partition{Day: d, Rows: rows})
	}
	return out, nil
}

// Days lists every day with a complete partition, ascending.
func (s *ParquetStore) Days(ctx context.Context) ([]entity.TradingDay, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list store root: %w", err)
	}

	var days []entity.TradingDay
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() || !strings.HasPrefix(name, partitionPrefix) {
			continue
		}
		day, err := entity.ParseTradingDay(strings.TrimPrefix(name, partitionPrefix))
		if err != nil {
			slog.Debug("ignoring malformed partition dir", "dir", name)
			continue
		}
		if _, err := os.Stat(filepath.Join(s.root, name, partFileName)); err != nil {
			continue
		}
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days, nil
}

func toRecords(day entity.TradingDay, rows []entity.OHLCVRow) ([]partitionRecord, error) {
	records := make([]partitionRecord, 0, len(rows))
	seen := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		if !r.Valid() {
			return nil, fmt.Errorf("%w: ticker %q on %s", domain.ErrInvalidRow, r.Ticker, day)
		}
		if !r.Day.IsZero() && r.Day != day {
			return nil, fmt.Errorf("%w: row for %s written to partition %s", domain.ErrInvalidRow, r.Day, day)
		}
		if _, dup := seen[r.Ticker]; dup {
			return nil, fmt.Errorf("%w: duplicate ticker %q on %s", domain.ErrInvalidRow, r.Ticker, day)
		}
		seen[r.Ticker] = struct{}{}
		records = append(records, partitionRecord{
			Ticker: r.Ticker,
			Open:   r.Open,
			High:   r.High,
			Low:    r.Low,
			Close:  r.Close,
			Volume: r.Volume,
		})
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Ticker < records[j].Ticker })
	return records, nil
}

func writePartFile(path string, records []partitionRecord) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	w := parquet.NewGenericWriter[partitionRecord](f, parquet.Compression(&parquet.Gzip))
	if len(records) > 0 {
		if _, err := w.Write(records); err != nil {
			return err
		}
	}
	if err := w.Close(); err != nil {
		return err
	}
	return f.Sync()
}

func readPartFile(path string, day entity.TradingDay) ([]entity.OHLCVRow, error) {
	records, err := parquet.ReadFile[partitionRecord](path)
	if err != nil {
		return nil, err
	}
	rows := make([]entity.OHLCVRow, 0, len(records))
	for _, r := range records {
		rows = append(rows, entity.OHLCVRow{
			Ticker: r.Ticker,
			Day:    day,
			Open:   r.Open,
			High:   r.High,
			Low:    r.Low,
			Close:  r.Close,
			Volume: r.Volume,
		})
	}
	return rows, nil
}

// syncDir flushes the directory entry created by a rename.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	defer func() { _ = d.Close() }()
	_ = d.Sync()
}
