// Package adapters writes feature tables to files.
package adapters

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"stock_pipeline/internal/feature/window/domain/entity"
)

// TableWriter serialises a feature table. The header is always
// Ticker, Date, then columns in order.
type TableWriter interface {
	WriteTable(w io.Writer, columns []string, rows []entity.FeatureVector) error
}

// ForPath returns the writer matching the file extension (.csv or .xlsx).
func ForPath(path string) (TableWriter, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return CSVWriter{}, nil
	case ".xlsx":
		return XLSXWriter{Sheet: DefaultSheet}, nil
	default:
		return nil, fmt.Errorf("unsupported output format %q (want .csv or .xlsx)", filepath.Ext(path))
	}
}

func header(columns []string) []string {
	return append([]string{"Ticker", "Date"}, columns...)
}

func checkWidth(columns []string, row entity.FeatureVector) error {
	if n := len(row.Features) + len(row.Labels); n != len(columns) {
		return fmt.Errorf("row %s/%s has %d values, header has %d columns", row.Ticker, row.Anchor, n, len(columns))
	}
	return nil
}

// CSVWriter writes comma-separated values.
type CSVWriter struct{}

func (CSVWriter) WriteTable(w io.Writer, columns []string, rows []entity.FeatureVector) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header(columns)); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	record := make([]string, len(columns)+2)
	for _, row := range rows {
		if err := checkWidth(columns, row); err != nil {
			return err
		}
		record[0] = row.Ticker
		record[1] = row.Anchor.String()
		for i, v := range row.Values() {
			record[i+2] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row %s/%s: %w", row.Ticker, row.Anchor, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// DefaultSheet is the sheet name used by ForPath.
const DefaultSheet = "features"

// XLSXWriter writes a single-sheet workbook through excelize's stream writer.
type XLSXWriter struct {
	Sheet string
}

func (x XLSXWriter) WriteTable(w io.Writer, columns []string, rows []entity.FeatureVector) (err error) {
	sheet := x.Sheet
	if sheet == "" {
		sheet = DefaultSheet
	}

	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("open stream writer: %w", err)
	}

	head := header(columns)
	cells := make([]interface{}, len(head))
	for i, h := range head {
		cells[i] = h
	}
	if err := sw.SetRow("A1", cells); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for r, row := range rows {
		if err := checkWidth(columns, row); err != nil {
			return err
		}
		cells := make([]interface{}, 0, len(head))
		cells = append(cells, row.Ticker, row.Anchor.String())
		for _, v := range row.Values() {
			cells = append(cells, v)
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, cells); err != nil {
			return fmt.Errorf("write row %s/%s: %w", row.Ticker, row.Anchor, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush sheet: %w", err)
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
