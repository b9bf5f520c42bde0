// Package adapters はuniverseフィーチャーの参照リスト実装を提供します。
package adapters

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"stock_pipeline/internal/feature/universe/usecase"
)

// MembershipCSV reads a checked-in constituents file.
// A numeric code column (代码 or code) is formatted as zero-padded Hong Kong
// tickers ("700" → "0700.HK"); a Symbol column is used verbatim.
type MembershipCSV struct {
	path string
}

// usecase.ReferenceSource を実装していることをコンパイル時に検証します。
var _ usecase.ReferenceSource = (*MembershipCSV)(nil)

// NewMembershipCSV は新しい MembershipCSV を作成します。
func NewMembershipCSV(path string) *MembershipCSV {
	return &MembershipCSV{path: path}
}

func (m *MembershipCSV) Codes(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(m.path)
	if err != nil {
		return nil, fmt.Errorf("open membership file: %w", err)
	}
	defer f.Close()

	codes, err := readMembership(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", m.path, err)
	}
	return codes, nil
}

func readMembership(r io.Reader) ([]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	head, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	codeCol, symbolCol := -1, -1
	for i, h := range head {
		switch normalizeHeader(h) {
		case "代码", "code":
			codeCol = i
		case "symbol":
			symbolCol = i
		}
	}
	if codeCol < 0 && symbolCol < 0 {
		return nil, fmt.Errorf("no 代码, code or Symbol column in header %v", head)
	}

	var codes []string
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		if codeCol >= 0 {
			if codeCol >= len(rec) || strings.TrimSpace(rec[codeCol]) == "" {
				continue
			}
			n, err := strconv.Atoi(strings.TrimSpace(rec[codeCol]))
			if err != nil {
				return nil, fmt.Errorf("line %d: code %q is not numeric", line, rec[codeCol])
			}
			codes = append(codes, fmt.Sprintf("%04d.HK", n))
			continue
		}
		if symbolCol < len(rec) {
			codes = append(codes, rec[symbolCol])
		}
	}
	return codes, nil
}

func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	return strings.ToLower(strings.TrimSpace(h))
}
