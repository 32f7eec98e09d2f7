package gacha

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sequenceRNG 決められた値を順番に返す乱数源
type sequenceRNG struct {
	values []float64
	pos    int
}

func (s *sequenceRNG) Float64() float64 {
	v := s.values[s.pos%len(s.values)]
	s.pos++
	return v
}

func entry(id string, rarity Rarity, weight float64) PoolEntry {
	return PoolEntry{
		Prize:  Prize{PrizeID: id, Name: id, Rarity: rarity},
		Weight: weight,
		Active: true,
	}
}

func testPool(entries ...PoolEntry) *Pool {
	now := time.Now()
	return NewPool("pool1", "test", true, now.Add(-time.Hour), now.Add(time.Hour), entries)
}

func TestSelectOne(t *testing.T) {
	entries := []PoolEntry{
		entry("a", RarityN, 50),
		entry("b", RarityR, 30),
		entry("c", RaritySSR, 20),
	}

	tests := []struct {
		name    string
		entries []PoolEntry
		r       float64
		want    string
		wantErr error
	}{
		{name: "正常系: 先頭の帯", entries: entries, r: 0.0, want: "a"},
		{name: "正常系: 帯の境界は次のエントリ", entries: entries, r: 0.5, want: "b"},
		{name: "正常系: 最後の帯", entries: entries, r: 0.99, want: "c"},
		{name: "正常系: 丸め残差は最後のエントリが吸収", entries: entries, r: 1.0, want: "c"},
		{
			name: "正常系: 無効・重みゼロは除外",
			entries: []PoolEntry{
				{Prize: Prize{PrizeID: "x", Rarity: RarityN}, Weight: 100, Active: false},
				entry("y", RarityN, 0),
				entry("z", RarityR, 1),
			},
			r:    0.0,
			want: "z",
		},
		{name: "異常系: 空のプール", entries: nil, r: 0.1, wantErr: ErrNoPrizesAvailable},
		{
			name:    "異常系: 全て無効",
			entries: []PoolEntry{{Prize: Prize{PrizeID: "x"}, Weight: 1, Active: false}},
			r:       0.1,
			wantErr: ErrNoPrizesAvailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SelectOne(tt.entries, &sequenceRNG{values: []float64{tt.r}})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Prize.PrizeID)
		})
	}
}

func TestSelectOne_WeightFidelity(t *testing.T) {
	entries := []PoolEntry{
		entry("a", RarityN, 50),
		entry("b", RarityR, 30),
		entry("c", RaritySSR, 20),
	}
	rng := rand.New(rand.NewPCG(42, 1024))

	const trials = 200_000
	counts := map[string]int{}
	for i := 0; i < trials; i++ {
		e, err := SelectOne(entries, rng)
		require.NoError(t, err)
		counts[e.Prize.PrizeID]++
	}

	assert.InDelta(t, 0.50, float64(counts["a"])/trials, 0.01)
	assert.InDelta(t, 0.30, float64(counts["b"])/trials, 0.01)
	assert.InDelta(t, 0.20, float64(counts["c"])/trials, 0.01)
}

func TestEngine_SelectTen(t *testing.T) {
	pool := testPool(
		entry("common", RarityN, 99),
		entry("rare", RaritySSR, 1),
	)
	engine := NewEngine(map[PaymentMethod]GuaranteePolicy{
		"diamonds": {MinRarity: RaritySSR, Slot: 9},
	}, PityPolicy{})

	t.Run("正常系: SSRが出なければ保証枠に1つだけ差し込まれる", func(t *testing.T) {
		// 10回は全てN、11回目は保証の再抽選
		rng := &sequenceRNG{values: []float64{0.0}}
		outcomes, err := engine.SelectTen(pool, rng, "diamonds")
		require.NoError(t, err)
		require.Len(t, outcomes, 10)

		ssr := 0
		for i, o := range outcomes {
			assert.Equal(t, i, o.Index)
			if o.Rarity().AtLeast(RaritySSR) {
				ssr++
				assert.Equal(t, 9, o.Index)
				assert.True(t, o.Guaranteed)
			}
		}
		assert.Equal(t, 1, ssr)
		assert.Equal(t, 11, rng.pos)
	})

	t.Run("正常系: 既にSSRがあれば差し替えない", func(t *testing.T) {
		values := []float64{0.0, 0.0, 0.995, 0.0, 0.0, 0.0, 0.0, 0.0, 0.0, 0.0}
		rng := &sequenceRNG{values: values}
		outcomes, err := engine.SelectTen(pool, rng, "diamonds")
		require.NoError(t, err)
		assert.Equal(t, "rare", outcomes[2].Entry.Prize.PrizeID)
		assert.False(t, outcomes[2].Guaranteed)
		assert.Equal(t, "common", outcomes[9].Entry.Prize.PrizeID)
		assert.Equal(t, 10, rng.pos)
	})

	t.Run("正常系: 保証のない支払い方法は独立抽選のみ", func(t *testing.T) {
		rng := &sequenceRNG{values: []float64{0.0}}
		outcomes, err := engine.SelectTen(pool, rng, "tickets")
		require.NoError(t, err)
		for _, o := range outcomes {
			assert.Equal(t, RarityN, o.Rarity())
		}
	})

	t.Run("正常系: 保証レアリティがプールにない場合はそのまま", func(t *testing.T) {
		commons := testPool(entry("common", RarityN, 1))
		outcomes, err := engine.SelectTen(commons, &sequenceRNG{values: []float64{0.3}}, "diamonds")
		require.NoError(t, err)
		assert.Len(t, outcomes, 10)
	})

	t.Run("異常系: 空のプール", func(t *testing.T) {
		_, err := engine.SelectTen(testPool(), &sequenceRNG{values: []float64{0.3}}, "diamonds")
		assert.ErrorIs(t, err, ErrNoPrizesAvailable)
	})
}

func TestEngine_ApplyPity(t *testing.T) {
	pool := testPool(
		entry("common", RarityN, 99),
		entry("rare", RaritySSR, 1),
	)
	engine := NewEngine(nil, PityPolicy{Threshold: 3, Rarity: RaritySSR})

	tests := []struct {
		name        string
		start       int
		drawn       []Rarity
		wantPity    []bool
		wantCounter int
	}{
		{
			name:        "正常系: 閾値に届かない",
			start:       0,
			drawn:       []Rarity{RarityN},
			wantPity:    []bool{false},
			wantCounter: 1,
		},
		{
			name:        "正常系: 閾値で確定しカウンターがリセット",
			start:       1,
			drawn:       []Rarity{RarityN, RarityN, RarityN},
			wantPity:    []bool{false, true, false},
			wantCounter: 1,
		},
		{
			name:        "正常系: 自然に当たればリセット",
			start:       1,
			drawn:       []Rarity{RaritySSR, RarityN},
			wantPity:    []bool{false, false},
			wantCounter: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcomes := make([]Outcome, len(tt.drawn))
			for i, r := range tt.drawn {
				id := "common"
				if r == RaritySSR {
					id = "rare"
				}
				outcomes[i] = Outcome{Index: i, Entry: entry(id, r, 1)}
			}

			got, counter, err := engine.ApplyPity(pool, &sequenceRNG{values: []float64{0.0}}, outcomes, tt.start)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCounter, counter)
			for i, o := range got {
				assert.Equal(t, tt.wantPity[i], o.Pity, "index %d", i)
				if o.Pity {
					assert.Equal(t, RaritySSR, o.Rarity())
				}
			}
		})
	}
}

func TestEngine_Draw(t *testing.T) {
	pool := testPool(entry("common", RarityN, 1))
	engine := NewEngine(nil, PityPolicy{})

	t.Run("正常系: 単発", func(t *testing.T) {
		outcomes, counter, err := engine.Draw(pool, &sequenceRNG{values: []float64{0.5}}, PullTypeSingle, "tickets", 0)
		require.NoError(t, err)
		assert.Len(t, outcomes, 1)
		assert.Equal(t, 0, counter)
	})

	t.Run("正常系: 10連", func(t *testing.T) {
		outcomes, _, err := engine.Draw(pool, &sequenceRNG{values: []float64{0.5}}, PullTypeTen, "tickets", 0)
		require.NoError(t, err)
		assert.Len(t, outcomes, 10)
	})

	t.Run("異常系: 不明な抽選タイプ", func(t *testing.T) {
		_, _, err := engine.Draw(pool, &sequenceRNG{values: []float64{0.5}}, PullType("hundred"), "tickets", 0)
		assert.ErrorIs(t, err, ErrInvalidPullType)
	})
}
