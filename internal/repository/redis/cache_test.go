package redis

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cachedEvent struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

func TestCache_GetString_Miss(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	c := New(rdb)

	mock.ExpectGet("k").RedisNil()

	_, ok, err := c.GetString(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrSetJSON_CacheHit(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	c := New(rdb)

	cached, err := json.Marshal(cachedEvent{ID: 1, Title: "Festival"})
	require.NoError(t, err)
	mock.ExpectGet("k").SetVal(string(cached))

	out, err := GetOrSetJSON(context.Background(), c, "k", time.Minute, func(context.Context) (cachedEvent, error) {
		t.Fatal("loader must not run on a cache hit")
		return cachedEvent{}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, cachedEvent{ID: 1, Title: "Festival"}, out)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrSetJSON_MissLoadsAndStores(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	c := New(rdb)

	want := cachedEvent{ID: 2, Title: "Concierto"}
	payload, err := json.Marshal(want)
	require.NoError(t, err)

	mock.ExpectGet("k").RedisNil()
	mock.ExpectGet("k").RedisNil() // re-check inside singleflight
	mock.ExpectSet("k", string(payload), time.Minute).SetVal("OK")

	var loads int
	out, err := GetOrSetJSON(context.Background(), c, "k", time.Minute, func(context.Context) (cachedEvent, error) {
		loads++
		return want, nil
	})

	require.NoError(t, err)
	assert.Equal(t, want, out)
	assert.Equal(t, 1, loads)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrSetJSON_LoaderError(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	c := New(rdb)

	mock.ExpectGet("k").RedisNil()
	mock.ExpectGet("k").RedisNil()

	boom := errors.New("boom")
	_, err := GetOrSetJSON(context.Background(), c, "k", time.Minute, func(context.Context) (cachedEvent, error) {
		return cachedEvent{}, boom
	})

	assert.ErrorIs(t, err, boom)
}

func TestCache_InvalidateEvent(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	c := New(rdb)

	mock.ExpectDel(
		KeyEventSummary(7),
		KeyEventTiers(7),
		KeyEventList("", ""),
	).SetVal(3)

	require.NoError(t, c.InvalidateEvent(context.Background(), 7))
	assert.NoError(t, mock.ExpectationsWereMet())
}
