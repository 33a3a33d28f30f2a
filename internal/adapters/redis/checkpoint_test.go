package redis

import (
	"testing"

	"github.com/LerianStudio/midaz-flow/internal/checkpoint"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestRedisKey_IsStableAndNamespaced(t *testing.T) {
	root := uuid.New()
	key := checkpoint.Key{Subscriber: "projector-1", Domain: "orders", Root: root}

	got := redisKey(key)

	assert.Equal(t, "midaz-flow:checkpoint:projector-1:orders:"+root.String(), got)
	assert.Equal(t, got, redisKey(key))
}
