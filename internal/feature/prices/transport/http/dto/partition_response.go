package dto

// RowResponse は1銘柄1日分のOHLCVのレスポンスDTOです。
type RowResponse struct {
	Ticker string  `json:"ticker"` // 銘柄コード
	Open   float64 `json:"open"`   // 始値
	High   float64 `json:"high"`   // 高値
	Low    float64 `json:"low"`    // 安値
	Close  float64 `json:"close"`  // 終値
	Volume int64   `json:"volume"` // 出来高
}

// PartitionResponse は1日分のパーティションのレスポンスDTOです。
// 休場日は rows が空になります。
type PartitionResponse struct {
	Date string        `json:"date"`
	Rows []RowResponse `json:"rows"`
}

// PartitionListResponse は保存済みの日付一覧です。
type PartitionListResponse struct {
	Market string   `json:"market"`
	Dates  []string `json:"dates"`
}

// ErrorResponse はエラー時のレスポンスDTOです。
type ErrorResponse struct {
	Error string `json:"error"`
}
