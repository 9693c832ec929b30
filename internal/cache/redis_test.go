// internal/cache/redis_test.go
package cache

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestPublishActionWithoutClient(t *testing.T) {
	prev := Rdb
	Rdb = nil
	defer func() { Rdb = prev }()

	err := PublishAction(context.Background(), ActionRecord{TableID: uuid.New(), ActionType: "discard"})
	assert.Error(t, err)
}

func TestConnectRedisUnreachable(t *testing.T) {
	err := ConnectRedis("127.0.0.1:1", 0)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "127.0.0.1:1")
}
