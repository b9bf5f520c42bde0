// Package handler はwindowフィーチャーのHTTPハンドラーを提供します。
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	priceentity "stock_pipeline/internal/feature/prices/domain/entity"
	"stock_pipeline/internal/feature/window/domain"
	"stock_pipeline/internal/feature/window/domain/entity"
	"stock_pipeline/internal/feature/window/transport/http/dto"
)

// WindowBuilder は単一ウィンドウの特徴量計算を抽象化します。
// Goの慣例に従い、インターフェースは利用者（handler）側で定義します。
type WindowBuilder interface {
	Layout() entity.Layout
	BuildWindow(ctx context.Context, ticker string, anchor priceentity.TradingDay, withLabels bool) (entity.FeatureVector, error)
}

// FeatureHandler は特徴量のHTTPリクエストを処理します。
type FeatureHandler struct {
	builders map[string]WindowBuilder
}

// NewFeatureHandler はマーケット名ごとの WindowBuilder で FeatureHandler を生成します。
func NewFeatureHandler(builders map[string]WindowBuilder) *FeatureHandler {
	return &FeatureHandler{builders: builders}
}

// GetFeatures は銘柄と基準日を受け取り、特徴量ベクトルをJSONで返します。
//
// エンドポイント例:
// GET /markets/:market/features/:ticker?anchor=2024-12-27&labels=true
func (h *FeatureHandler) GetFeatures(c *gin.Context) {
	b, ok := h.builders[c.Param("market")]
	if !ok {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "unknown market"})
		return
	}

	anchor, err := priceentity.ParseTradingDay(c.Query("anchor"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "anchor must be YYYY-MM-DD"})
		return
	}
	// 未指定または不正な値はラベルなし
	withLabels, _ := strconv.ParseBool(c.DefaultQuery("labels", "false"))

	ticker := c.Param("ticker")
	vec, err := b.BuildWindow(c.Request.Context(), ticker, anchor, withLabels)
	if err != nil {
		var iw *domain.InsufficientWindowError
		if errors.As(err, &iw) {
			c.JSON(http.StatusUnprocessableEntity, dto.ErrorResponse{Error: domain.ErrInsufficientWindow.Error(), Reason: string(iw.Reason)})
			return
		}
		slog.Error("failed to build window", "ticker", ticker, "anchor", anchor, "error", err)
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "failed to build features"})
		return
	}

	c.JSON(http.StatusOK, dto.FeatureResponse{
		Ticker:  vec.Ticker,
		Anchor:  vec.Anchor.String(),
		Columns: b.Layout().Columns(withLabels),
		Values:  vec.Values(),
	})
}
