package rng

import (
	crand "crypto/rand"
	"math/rand/v2"

	"fan-ledger/internal/domain/gacha"
)

// Factory 抽選ごとに乱数源を作成する
type Factory interface {
	New() gacha.RandomSource
}

// ChaCha8Factory 呼び出しごとにOSの乱数でシードしたChaCha8を返す
// 返した乱数源は1つのリクエスト内でのみ使う（ゴルーチン間で共有しない）
type ChaCha8Factory struct{}

// NewChaCha8Factory 新しいChaCha8Factoryを作成
func NewChaCha8Factory() *ChaCha8Factory {
	return &ChaCha8Factory{}
}

// New 新しい乱数源を返す
func (f *ChaCha8Factory) New() gacha.RandomSource {
	var seed [32]byte
	if _, err := crand.Read(seed[:]); err != nil {
		// シードを取れない場合はランタイムの乱数を使う
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return rand.New(rand.NewChaCha8(seed))
}

// SeededFactory 固定シードの乱数源を返す（再現性のある検証用）
type SeededFactory struct {
	Seed [32]byte
}

// New 同じシードから新しい乱数源を返す
func (f SeededFactory) New() gacha.RandomSource {
	return rand.New(rand.NewChaCha8(f.Seed))
}
