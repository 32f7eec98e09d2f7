package idgen

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUIDGenerator_NewID(t *testing.T) {
	g := NewUUIDGenerator()

	tests := []struct {
		name   string
		prefix string
	}{
		{name: "正常系: prefixあり", prefix: "txn"},
		{name: "正常系: prefixなし", prefix: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := g.NewID(tt.prefix)
			raw := id
			if tt.prefix != "" {
				require.True(t, strings.HasPrefix(id, tt.prefix+"_"))
				raw = strings.TrimPrefix(id, tt.prefix+"_")
			}
			_, err := uuid.Parse(raw)
			assert.NoError(t, err)
		})
	}

	assert.NotEqual(t, g.NewID("txn"), g.NewID("txn"))
}
