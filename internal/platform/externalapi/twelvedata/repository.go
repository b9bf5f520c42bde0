package twelvedata

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"stock_pipeline/internal/feature/prices/domain/entity"
	"stock_pipeline/internal/feature/prices/usecase"
	"stock_pipeline/internal/platform/externalapi/twelvedata/dto"
)

// TwelveDataProvider はTwelve Data外部APIから株価データを取得するProvider実装です。
type TwelveDataProvider struct {
	cfg    Config
	client *http.Client
}

// TwelveDataProviderがProviderを実装していることをコンパイル時に検証します。
var _ usecase.Provider = (*TwelveDataProvider)(nil)

// NewTwelveDataProvider は指定された設定とHTTPクライアントでTwelveDataProviderの新しいインスタンスを生成します。
func NewTwelveDataProvider(cfg Config, client *http.Client) *TwelveDataProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	return &TwelveDataProvider{cfg: cfg, client: client}
}

// intervals maps provider-neutral intervals to Twelve Data's names.
var intervals = map[string]string{
	"1d":  "1day",
	"1wk": "1week",
	"1mo": "1month",
}

// Download はTwelve Data APIから [start, end) の時系列データを1回のバッチリクエストで取得し、
// ワイド形式のテーブルとして返します。銘柄が存在しない・データがない場合はその銘柄の欠損として扱い、
// それ以外の銘柄単位のエラー（レート制限、サーバーエラーなど）はバッチ全体を失敗させます。
func (t *TwelveDataProvider) Download(ctx context.Context, tickers []string, start, end entity.TradingDay, interval string) (*entity.QuoteTable, error) {
	if mapped, ok := intervals[interval]; ok {
		interval = mapped
	}

	q := url.Values{}
	// クエリパラメータを追加
	q.Set("symbol", strings.Join(tickers, ","))
	q.Set("interval", interval)
	q.Set("start_date", start.String())
	// end 以降の行が返ってきても呼び出し側が対象日だけを取り出す
	q.Set("end_date", end.String())
	q.Set("apikey", t.cfg.APIKey)

	// URLを生成
	u := fmt.Sprintf("%s/time_series?%s", t.cfg.BaseURL, q.Encode())

	// リクエストオブジェクトを作成
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	// リクエストを実行
	res, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := res.Body.Close(); err != nil {
			slog.Warn("failed to close response body", "error", err)
		}
	}()

	if res.StatusCode >= 400 {
		return nil, fmt.Errorf("twelvedata http %d", res.StatusCode)
	}

	// 単一銘柄とバッチでレスポンスの形が異なるため、まず生のオブジェクトとして読む
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(res.Body).Decode(&raw); err != nil {
		return nil, err
	}

	bodies := make(map[string]dto.TimeSeriesResponse, len(tickers))
	if _, single := raw["status"]; single {
		var body dto.TimeSeriesResponse
		if err := remarshal(raw, &body); err != nil {
			return nil, err
		}
		if body.Status == "error" {
			return nil, fmt.Errorf("twelvedata: %s", body.Message)
		}
		symbol := body.Meta.Symbol
		if symbol == "" && len(tickers) == 1 {
			symbol = tickers[0]
		}
		bodies[symbol] = body
	} else {
		for symbol, msg := range raw {
			var body dto.TimeSeriesResponse
			if err := json.Unmarshal(msg, &body); err != nil {
				return nil, fmt.Errorf("decode %s: %w", symbol, err)
			}
			bodies[symbol] = body
		}
	}

	table := entity.NewQuoteTable()
	for symbol, body := range bodies {
		if body.Status == "error" {
			if !noData(body.Code) {
				return nil, fmt.Errorf("twelvedata %s: %d %s", symbol, body.Code, body.Message)
			}
			slog.Warn("twelvedata symbol has no data", "ticker", symbol, "error", body.Message)
			continue
		}
		if err := putValues(table, symbol, body); err != nil {
			return nil, err
		}
	}
	return table, nil
}

// noData reports whether a per-symbol error code is a definitive answer
// (unknown symbol, nothing in range) rather than a transient failure.
func noData(code int) bool {
	return code == http.StatusBadRequest || code == http.StatusNotFound
}

func putValues(table *entity.QuoteTable, symbol string, body dto.TimeSeriesResponse) error {
	for _, v := range body.Values {
		// タイムスタンプをパース
		tm, err := time.Parse("2006-01-02 15:04:05", v.Datetime)
		if err != nil {
			tm, err = time.Parse("2006-01-02", v.Datetime)
			if err != nil {
				return fmt.Errorf("parse time %q: %w", v.Datetime, err)
			}
		}
		day := entity.NewTradingDay(tm)

		fields := []struct {
			name  string
			field entity.Field
			raw   string
		}{
			{"open", entity.FieldOpen, v.Open},
			{"high", entity.FieldHigh, v.High},
			{"low", entity.FieldLow, v.Low},
			{"close", entity.FieldClose, v.Close},
			{"volume", entity.FieldVolume, v.Volume},
		}
		for _, f := range fields {
			// 指数などは出来高を返さない
			if f.raw == "" {
				table.Put(symbol, day, f.field, math.NaN())
				continue
			}
			x, err := strconv.ParseFloat(f.raw, 64)
			if err != nil {
				return fmt.Errorf("parse %s %q: %w", f.name, f.raw, err)
			}
			table.Put(symbol, day, f.field, x)
		}
	}
	return nil
}

func remarshal(raw map[string]json.RawMessage, out any) error {
	b, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}
