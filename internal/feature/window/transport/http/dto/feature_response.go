package dto

// FeatureResponse は1つの (ticker, anchor) の特徴量ベクトルのレスポンスDTOです。
type FeatureResponse struct {
	Ticker  string    `json:"ticker"`  // 銘柄コード
	Anchor  string    `json:"anchor"`  // 基準日 (YYYY-MM-DD)
	Columns []string  `json:"columns"` // 列名（特徴量、続いてラベル）
	Values  []float64 `json:"values"`  // Columns と同じ順序の値
}

// ErrorResponse はエラー時のレスポンスDTOです。
type ErrorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}
