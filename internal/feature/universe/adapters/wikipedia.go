package adapters

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"

	"stock_pipeline/internal/feature/universe/usecase"
)

// DefaultWikipediaURL lists S&P 500 constituents in its first table.
const DefaultWikipediaURL = "https://en.wikipedia.org/wiki/List_of_S%26P_500_companies"

// WikipediaSource resolves a broad-index universe from a public constituents
// page. The first successful fetch is cached as a Symbol,Security CSV and
// later calls read only the cache.
type WikipediaSource struct {
	url       string
	cachePath string
	client    *http.Client
}

// usecase.ReferenceSource を実装していることをコンパイル時に検証します。
var _ usecase.ReferenceSource = (*WikipediaSource)(nil)

// NewWikipediaSource は新しい WikipediaSource を作成します。
func NewWikipediaSource(url, cachePath string, client *http.Client) *WikipediaSource {
	if url == "" {
		url = DefaultWikipediaURL
	}
	return &WikipediaSource{url: url, cachePath: cachePath, client: client}
}

func (w *WikipediaSource) Codes(ctx context.Context) ([]string, error) {
	f, err := os.Open(w.cachePath)
	if err == nil {
		defer f.Close()
		codes, err := readMembership(f)
		if err != nil {
			return nil, fmt.Errorf("read cache %s: %w", w.cachePath, err)
		}
		return normalizeSymbols(codes), nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("open cache: %w", err)
	}

	members, err := w.fetch(ctx)
	if err != nil {
		return nil, err
	}
	if err := writeCache(w.cachePath, members); err != nil {
		// キャッシュ書き込み失敗でも取得結果は使う
		slog.Warn("failed to write universe cache", "path", w.cachePath, "error", err)
	} else {
		slog.Info("cached universe", "path", w.cachePath, "members", len(members))
	}

	codes := make([]string, 0, len(members))
	for _, m := range members {
		codes = append(codes, m.symbol)
	}
	return normalizeSymbols(codes), nil
}

type member struct {
	symbol   string
	security string
}

func (w *WikipediaSource) fetch(ctx context.Context) ([]member, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch constituents: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch constituents: status %d", resp.StatusCode)
	}
	return parseConstituents(resp.Body)
}

// parseConstituents reads the Symbol and Security columns of the first table.
func parseConstituents(r io.Reader) ([]member, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	table := findElement(doc, "table")
	if table == nil {
		return nil, errors.New("no table in page")
	}

	symbolCol, securityCol := -1, -1
	var out []member
	for _, row := range elements(table, "tr") {
		cells := rowCells(row)
		if symbolCol < 0 {
			for i, c := range cells {
				switch c {
				case "Symbol":
					symbolCol = i
				case "Security":
					securityCol = i
				}
			}
			continue
		}
		if symbolCol >= len(cells) || cells[symbolCol] == "" {
			continue
		}
		m := member{symbol: cells[symbolCol]}
		if securityCol >= 0 && securityCol < len(cells) {
			m.security = cells[securityCol]
		}
		out = append(out, m)
	}
	if symbolCol < 0 {
		return nil, errors.New("no Symbol column in first table")
	}
	if len(out) == 0 {
		return nil, errors.New("first table has no rows")
	}
	return out, nil
}

func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

// elements returns descendants named tag in document order, not descending into nested tables.
func elements(n *html.Node, tag string) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			if c.Data == tag {
				out = append(out, c)
				continue
			}
			if c.Data != "table" {
				walk(c)
			}
		}
	}
	walk(n)
	return out
}

func rowCells(tr *html.Node) []string {
	var cells []string
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && (c.Data == "td" || c.Data == "th") {
			cells = append(cells, strings.TrimSpace(textContent(c)))
		}
	}
	return cells
}

func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(textContent(c))
	}
	return sb.String()
}

func writeCache(path string, members []member) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".universe-*.csv")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	cw := csv.NewWriter(tmp)
	_ = cw.Write([]string{"Symbol", "Security"})
	for _, m := range members {
		_ = cw.Write([]string{m.symbol, m.security})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// normalizeSymbols converts share-class dots to the dash form quote providers use (BRK.B → BRK-B).
func normalizeSymbols(codes []string) []string {
	out := make([]string, len(codes))
	for i, c := range codes {
		out[i] = strings.ReplaceAll(strings.TrimSpace(c), ".", "-")
	}
	return out
}
