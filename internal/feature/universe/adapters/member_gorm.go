package adapters

import (
	"context"

	"gorm.io/gorm"

	"stock_pipeline/internal/feature/universe/domain/entity"
	"stock_pipeline/internal/feature/universe/usecase"
)

// memberGorm はReferenceSourceインターフェースのGORM実装です。
// universe_members テーブルから1マーケット分のアクティブな銘柄を返します。
type memberGorm struct {
	db     *gorm.DB
	market entity.Market
}

// usecase.ReferenceSource を実装していることをコンパイル時に検証します。
var _ usecase.ReferenceSource = (*memberGorm)(nil)

// NewMemberSource は指定されたDB接続とマーケットで memberGorm を生成します。
func NewMemberSource(db *gorm.DB, market entity.Market) *memberGorm {
	return &memberGorm{db: db, market: market}
}

// ListActive はsort_key順にアクティブな銘柄を返します。
func (r *memberGorm) ListActive(ctx context.Context) ([]entity.Member, error) {
	var members []entity.Member
	if err := r.db.WithContext(ctx).
		Where("market = ? AND is_active = ?", string(r.market), true).
		Order("sort_key ASC").
		Find(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}

// Codes はsort_key順にアクティブな銘柄のコードのみを返します。
func (r *memberGorm) Codes(ctx context.Context) ([]string, error) {
	var codes []string
	if err := r.db.WithContext(ctx).
		Model(&entity.Member{}).
		Where("market = ? AND is_active = ?", string(r.market), true).
		Order("sort_key ASC").
		Pluck("code", &codes).Error; err != nil {
		return nil, err
	}
	return codes, nil
}
