package handler_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	priceentity "stock_pipeline/internal/feature/prices/domain/entity"
	"stock_pipeline/internal/feature/window/domain"
	"stock_pipeline/internal/feature/window/domain/entity"
	"stock_pipeline/internal/feature/window/transport/handler"
)

// mockWindowBuilder はWindowBuilderインターフェースのモック実装です。
type mockWindowBuilder struct {
	layout          entity.Layout
	BuildWindowFunc func(ctx context.Context, ticker string, anchor priceentity.TradingDay, withLabels bool) (entity.FeatureVector, error)
}

func (m *mockWindowBuilder) Layout() entity.Layout { return m.layout }

func (m *mockWindowBuilder) BuildWindow(ctx context.Context, ticker string, anchor priceentity.TradingDay, withLabels bool) (entity.FeatureVector, error) {
	return m.BuildWindowFunc(ctx, ticker, anchor, withLabels)
}

// TestFeatureHandler_GetFeatures はGetFeaturesのHTTPリクエスト/レスポンス処理をテストします。
func TestFeatureHandler_GetFeatures(t *testing.T) {
	gin.SetMode(gin.TestMode)

	anchor := priceentity.Date(2024, time.December, 27)
	// pre_days=1: 11 feature columns, post_days=1: 2 label columns
	layout := entity.MustLayout(1, 1)
	features := []float64{10, 0, 0, 0, 0, 20, 1, 1, 0.5, 0.5, 0.5}

	tests := []struct {
		name            string
		url             string
		mockBuildWindow func(ctx context.Context, ticker string, anchor priceentity.TradingDay, withLabels bool) (entity.FeatureVector, error)
		expectedStatus  int
		expectedBody    string // 空の場合は列名のみ検証
		wantLabels      bool
	}{
		{
			name: "success: features only",
			url:  "/markets/hk/features/0700.HK?anchor=2024-12-27",
			mockBuildWindow: func(ctx context.Context, ticker string, a priceentity.TradingDay, withLabels bool) (entity.FeatureVector, error) {
				assert.Equal(t, "0700.HK", ticker)
				assert.Equal(t, anchor, a)
				assert.False(t, withLabels)
				return entity.FeatureVector{Ticker: ticker, Anchor: a, Features: features}, nil
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "success: with labels",
			url:  "/markets/hk/features/0700.HK?anchor=2024-12-27&labels=true",
			mockBuildWindow: func(ctx context.Context, ticker string, a priceentity.TradingDay, withLabels bool) (entity.FeatureVector, error) {
				assert.True(t, withLabels)
				return entity.FeatureVector{Ticker: ticker, Anchor: a, Features: features, Labels: []float64{0.1, 0.1}}, nil
			},
			expectedStatus: http.StatusOK,
			wantLabels:     true,
		},
		{
			name:           "error: unknown market",
			url:            "/markets/jp/features/7203.T?anchor=2024-12-27",
			expectedStatus: http.StatusNotFound,
			expectedBody:   `{"error":"unknown market"}`,
		},
		{
			name:           "error: missing anchor",
			url:            "/markets/hk/features/0700.HK",
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"error":"anchor must be YYYY-MM-DD"}`,
		},
		{
			name: "error: insufficient window",
			url:  "/markets/hk/features/0700.HK?anchor=2024-12-27",
			mockBuildWindow: func(ctx context.Context, ticker string, a priceentity.TradingDay, withLabels bool) (entity.FeatureVector, error) {
				return entity.FeatureVector{}, &domain.InsufficientWindowError{Ticker: ticker, Anchor: a, Reason: domain.ReasonShortHistory}
			},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `{"error":"insufficient window","reason":"not enough trading days before anchor"}`,
		},
		{
			name: "error: store failure",
			url:  "/markets/hk/features/0700.HK?anchor=2024-12-27",
			mockBuildWindow: func(ctx context.Context, ticker string, a priceentity.TradingDay, withLabels bool) (entity.FeatureVector, error) {
				return entity.FeatureVector{}, errors.New("disk gone")
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `{"error":"failed to build features"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockWindowBuilder{layout: layout, BuildWindowFunc: tt.mockBuildWindow}
			h := handler.NewFeatureHandler(map[string]handler.WindowBuilder{"hk": mock})

			router := gin.New()
			router.GET("/markets/:market/features/:ticker", h.GetFeatures)

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedBody != "" {
				assert.JSONEq(t, tt.expectedBody, w.Body.String())
				return
			}
			assert.Contains(t, w.Body.String(), `"anchor":"2024-12-27"`)
			assert.Contains(t, w.Body.String(), `"Volume_p0"`)
			if tt.wantLabels {
				assert.Contains(t, w.Body.String(), `"maxFutureIncreaseRatio"`)
			} else {
				assert.NotContains(t, w.Body.String(), `futureIncrease`)
			}
		})
	}
}
