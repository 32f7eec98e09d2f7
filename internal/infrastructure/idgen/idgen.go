package idgen

import (
	"github.com/google/uuid"
)

// Generator ID生成
type Generator interface {
	// NewID prefix付きの一意なIDを返す
	NewID(prefix string) string
}

// UUIDGenerator UUIDv4ベースのID生成
type UUIDGenerator struct{}

// NewUUIDGenerator 新しいUUIDGeneratorを作成
func NewUUIDGenerator() *UUIDGenerator {
	return &UUIDGenerator{}
}

// NewID "prefix_UUID"形式のIDを返す（prefixが空ならUUIDのみ）
func (g *UUIDGenerator) NewID(prefix string) string {
	id := uuid.NewString()
	if prefix == "" {
		return id
	}
	return prefix + "_" + id
}
