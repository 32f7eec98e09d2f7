package transaction

import (
	"fmt"
)

// TransactionKind 監査ログの分類タグ
type TransactionKind string

const (
	KindMissionReward TransactionKind = "mission_reward" // ミッション報酬
	KindGachaSpend    TransactionKind = "gacha_spend"    // ガチャ消費
	KindStoreBonus    TransactionKind = "store_bonus"    // ストア購入特典
	KindLevelUp       TransactionKind = "level_up"       // レベルアップ報酬
	KindGift          TransactionKind = "gift"           // ギフト
	KindAdjustment    TransactionKind = "adjustment"     // 手動調整
	KindPaymentCredit TransactionKind = "payment_credit" // 決済による付与
	KindStreakBonus   TransactionKind = "streak_bonus"   // 連続日数ボーナス
	KindLoginBonus    TransactionKind = "login_bonus"    // ログインボーナス
)

// NewTransactionKind 新しいTransactionKindを作成
func NewTransactionKind(s string) (TransactionKind, error) {
	k := TransactionKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("%w: kind %s", ErrInvalidTransaction, s)
	}
	return k, nil
}

// String 文字列表現を返す
func (k TransactionKind) String() string {
	return string(k)
}

// IsGrant 呼び出し側が報酬付与の分類として指定できるかどうか
//
// 消費・決済・連続日数ボーナスの分類はそれぞれの処理だけが記録する。
func (k TransactionKind) IsGrant() bool {
	switch k {
	case KindMissionReward, KindStoreBonus, KindLevelUp, KindGift, KindAdjustment, KindLoginBonus:
		return true
	default:
		return false
	}
}

// Valid 有効な分類タグかどうかを返す
func (k TransactionKind) Valid() bool {
	switch k {
	case KindMissionReward, KindGachaSpend, KindStoreBonus, KindLevelUp, KindGift,
		KindAdjustment, KindPaymentCredit, KindStreakBonus, KindLoginBonus:
		return true
	default:
		return false
	}
}
