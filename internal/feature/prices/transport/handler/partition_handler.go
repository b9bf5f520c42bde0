// Package handler はpricesフィーチャーのHTTPハンドラーを提供します。
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"stock_pipeline/internal/feature/prices/domain/entity"
	"stock_pipeline/internal/feature/prices/transport/http/dto"
)

// PartitionReader は保存済みパーティションの読み取りを抽象化します。
// Goの慣例に従い、インターフェースは利用者（handler）側で定義します。
type PartitionReader interface {
	Days(ctx context.Context) ([]entity.TradingDay, error)
	Read(ctx context.Context, day entity.TradingDay) (entity.Partition, bool, error)
}

// PartitionHandler はパーティションのHTTPリクエストを処理します。
type PartitionHandler struct {
	readers map[string]PartitionReader
}

// NewPartitionHandler はマーケット名ごとの PartitionReader で PartitionHandler を生成します。
func NewPartitionHandler(readers map[string]PartitionReader) *PartitionHandler {
	return &PartitionHandler{readers: readers}
}

// ListPartitions は保存済みの日付を昇順で返します。
//
// エンドポイント例:
// GET /markets/:market/partitions
func (h *PartitionHandler) ListPartitions(c *gin.Context) {
	market := c.Param("market")
	r, ok := h.readers[market]
	if !ok {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "unknown market"})
		return
	}

	days, err := r.Days(c.Request.Context())
	if err != nil {
		slog.Error("failed to list partitions", "market", market, "error", err)
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "failed to list partitions"})
		return
	}

	out := dto.PartitionListResponse{Market: market, Dates: make([]string, 0, len(days))}
	for _, d := range days {
		out.Dates = append(out.Dates, d.String())
	}
	c.JSON(http.StatusOK, out)
}

// GetPartition は指定日のパーティションを返します。存在しない場合は404です。
//
// エンドポイント例:
// GET /markets/:market/partitions/2024-12-27
func (h *PartitionHandler) GetPartition(c *gin.Context) {
	market := c.Param("market")
	r, ok := h.readers[market]
	if !ok {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "unknown market"})
		return
	}

	day, err := entity.ParseTradingDay(c.Param("date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "date must be YYYY-MM-DD"})
		return
	}

	p, found, err := r.Read(c.Request.Context(), day)
	if err != nil {
		slog.Error("failed to read partition", "market", market, "day", day, "error", err)
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "failed to read partition"})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "partition not found"})
		return
	}

	out := dto.PartitionResponse{Date: p.Day.String(), Rows: make([]dto.RowResponse, 0, len(p.Rows))}
	for _, x := range p.Rows {
		out.Rows = append(out.Rows, dto.RowResponse{
			Ticker: x.Ticker,
			Open:   x.Open,
			High:   x.High,
			Low:    x.Low,
			Close:  x.Close,
			Volume: x.Volume,
		})
	}
	c.JSON(http.StatusOK, out)
}
