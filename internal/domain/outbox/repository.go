package outbox

import (
	"context"
)

// Repository アウトボックスリポジトリインターフェース
type Repository interface {
	// Append イベントを追加（呼び出し元のトランザクション内で実行）
	Append(ctx context.Context, event *Event) error

	// FetchPending 未送信イベントを古い順に取得
	FetchPending(ctx context.Context, limit int) ([]*Event, error)

	// MarkSent 送信済みにする
	MarkSent(ctx context.Context, id int64) error

	// MarkFailed 送信失敗を記録。maxRetriesに達したらfailedにする
	MarkFailed(ctx context.Context, id int64, maxRetries int) error
}

// Publisher イベントの送信先（メッセージブローカー）
type Publisher interface {
	Publish(ctx context.Context, event *Event) error
}
