package inference_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferguard/inferguard/internal/inference"
)

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	c := inference.NewMemoryCache()

	_, ok, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "a", inference.Prediction{SampleID: "a", Label: "benign"}))
	p, ok, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "benign", p.Label)

	n, err := c.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	removed, err := c.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
}

func TestRedisCache_SetAndGet(t *testing.T) {
	ctx := context.Background()
	db, mock := redismock.NewClientMock()
	c := inference.NewRedisCache(inference.RedisCacheConfig{Client: db, TTL: time.Minute})

	pred := inference.Prediction{SampleID: "test_sample_1", Label: "malware", Confidence: 0.95}
	data, err := json.Marshal(pred)
	require.NoError(t, err)

	mock.ExpectSet(inference.DefaultRedisKeyPrefix+"test_sample_1", string(data), time.Minute).SetVal("OK")
	mock.ExpectGet(inference.DefaultRedisKeyPrefix + "test_sample_1").SetVal(string(data))

	require.NoError(t, c.Set(ctx, "test_sample_1", pred))
	got, ok, err := c.Get(ctx, "test_sample_1")

	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, pred, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisCache_GetMiss(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := inference.NewRedisCache(inference.RedisCacheConfig{Client: db})

	mock.ExpectGet(inference.DefaultRedisKeyPrefix + "missing").RedisNil()

	_, ok, err := c.Get(context.Background(), "missing")

	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisCache_GetError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := inference.NewRedisCache(inference.RedisCacheConfig{Client: db})

	mock.ExpectGet(inference.DefaultRedisKeyPrefix + "x").SetErr(errors.New("connection refused"))

	_, _, err := c.Get(context.Background(), "x")

	assert.Error(t, err)
}

func TestRedisCache_Clear(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := inference.NewRedisCache(inference.RedisCacheConfig{Client: db})
	pattern := inference.DefaultRedisKeyPrefix + "*"

	keys := []string{inference.DefaultRedisKeyPrefix + "a", inference.DefaultRedisKeyPrefix + "b"}
	mock.ExpectScan(0, pattern, 100).SetVal(keys, 0)
	mock.ExpectDel(keys...).SetVal(2)

	n, err := c.Clear(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisCache_ClearEmpty(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := inference.NewRedisCache(inference.RedisCacheConfig{Client: db})

	mock.ExpectScan(0, inference.DefaultRedisKeyPrefix+"*", 100).SetVal(nil, 0)

	n, err := c.Clear(context.Background())

	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisCache_SizePaginates(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := inference.NewRedisCache(inference.RedisCacheConfig{Client: db, Prefix: "p:"})

	mock.ExpectScan(0, "p:*", 100).SetVal([]string{"p:1", "p:2"}, 17)
	mock.ExpectScan(17, "p:*", 100).SetVal([]string{"p:3"}, 0)

	n, err := c.Size(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
