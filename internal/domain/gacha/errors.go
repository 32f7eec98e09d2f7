package gacha

import "errors"

var (
	// ErrNoPrizesAvailable 抽選対象の景品が存在しない
	ErrNoPrizesAvailable = errors.New("no prizes available")
	// ErrPoolUnavailable プールが無効または期間外
	ErrPoolUnavailable = errors.New("pool unavailable")
	// ErrPoolNotFound プールが見つからない
	ErrPoolNotFound = errors.New("pool not found")
	// ErrInvalidPaymentMethod 未対応の支払い方法
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
	// ErrInvalidPullType 未対応の抽選タイプ
	ErrInvalidPullType = errors.New("invalid pull type")
	// ErrInvalidRarity 無効なレアリティ
	ErrInvalidRarity = errors.New("invalid rarity")
	// ErrPullInProgress 同一ユーザーの抽選が処理中
	ErrPullInProgress = errors.New("pull already in progress")
)
