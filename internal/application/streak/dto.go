package streak

// ApplyBonusRequest 連続日数ボーナス適用リクエスト
type ApplyBonusRequest struct {
	UserID      string
	StreakCount int
	BaseAmount  int64
	Currency    string
	Kind        string
}

// GrantedTransaction 付与した監査ログ
type GrantedTransaction struct {
	TransactionID string `json:"transaction_id"`
	Kind          string `json:"kind"`
	Amount        int64  `json:"amount"`
	BalanceAfter  int64  `json:"balance_after"`
}

// ApplyBonusResponse 連続日数ボーナス適用レスポンス
type ApplyBonusResponse struct {
	StreakCount  int
	Currency     string
	Multiplied   int64
	Bonus        int64
	TotalGranted int64
	Transactions []GrantedTransaction
}

// RecordActivityResponse 活動記録レスポンス
type RecordActivityResponse struct {
	StreakCount int
	Advanced    bool
}

// MissionRewardRequest ミッション報酬リクエスト
type MissionRewardRequest struct {
	UserID     string
	MissionID  string
	BaseAmount int64
	Currency   string
}

// RewardResponse 連続日数の更新結果と付与結果
type RewardResponse struct {
	StreakCount int
	Advanced    bool
	// Granted 付与した場合のみ非nil
	Granted *ApplyBonusResponse
}
