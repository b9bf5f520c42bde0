// Package handler はuniverseフィーチャーのHTTPハンドラーを提供します。
package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"stock_pipeline/internal/feature/universe/domain"
	"stock_pipeline/internal/feature/universe/domain/entity"
	"stock_pipeline/internal/feature/universe/transport/http/dto"
)

// UniverseUsecase は銘柄ユニバースに関するユースケースのインターフェースです。
// Following Go convention: interfaces are defined by the consumer (handler), not the provider (usecase).
type UniverseUsecase interface {
	Resolve(ctx context.Context, market entity.Market) ([]string, error)
}

// UniverseHandler は銘柄ユニバースに関するHTTPリクエストを処理します。
type UniverseHandler struct {
	uc UniverseUsecase
}

// NewUniverseHandler は新しい UniverseHandler を作成します。
func NewUniverseHandler(uc UniverseUsecase) *UniverseHandler {
	return &UniverseHandler{uc: uc}
}

// List はマーケットの銘柄一覧を返すAPIです。
// 未知のマーケットは404、参照リストの取得失敗は502を返します。
func (h *UniverseHandler) List(c *gin.Context) {
	market := c.Param("market")
	tickers, err := h.uc.Resolve(c.Request.Context(), entity.Market(market))
	if errors.Is(err, domain.ErrUnknownMarket) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown market"})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, dto.TickerList{Market: market, Tickers: tickers})
}
