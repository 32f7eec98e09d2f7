package handler

// GrantedItem 付与した監査ログ
// @Description 付与した監査ログ
type GrantedItem struct {
	TransactionID string `json:"transaction_id" example:"txn_123"`
	Kind          string `json:"kind" example:"streak_bonus"`
	Amount        string `json:"amount" example:"100"`
	BalanceAfter  string `json:"balance_after" example:"3200"`
}

// StreakBonusResult 連続日数ボーナスの内訳
// @Description 連続日数ボーナスの内訳
type StreakBonusResult struct {
	StreakCount  int           `json:"streak_count" example:"7"`
	Currency     string        `json:"currency" example:"diamonds"`
	Multiplied   string        `json:"multiplied" example:"100"`
	Bonus        string        `json:"bonus" example:"100"`
	TotalGranted string        `json:"total_granted" example:"200"`
	Transactions []GrantedItem `json:"transactions"`
}

// StreakBonusRequest 連続日数ボーナスリクエスト（管理API）
// @Description 連続日数を指定して報酬を付与する。kindを省略した場合はmission_reward
type StreakBonusRequest struct {
	StreakCount int    `json:"streak_count" validate:"gte=0" example:"7"`
	BaseAmount  string `json:"base_amount" validate:"required,int64str" example:"50"`
	Currency    string `json:"currency" validate:"required,max=16" example:"diamonds"`
	Kind        string `json:"kind" example:"mission_reward"`
}

// MissionRewardRequest ミッション報酬リクエスト（管理API）
// @Description ミッション達成を記録し、更新後の連続日数で報酬を付与する
type MissionRewardRequest struct {
	MissionID  string `json:"mission_id" validate:"required,max=128" example:"daily_clear_3"`
	BaseAmount string `json:"base_amount" validate:"required,int64str" example:"50"`
	Currency   string `json:"currency" validate:"required,max=16" example:"diamonds"`
}

// RewardResponse 連続日数の更新結果
// @Description 連続日数の更新結果。grantedは付与した場合のみ
type RewardResponse struct {
	StreakCount int                `json:"streak_count" example:"3"`
	Advanced    bool               `json:"advanced" example:"true"`
	Granted     *StreakBonusResult `json:"granted,omitempty"`
}
