package walletage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redismock/v8"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	wsolMint      = "So11111111111111111111111111111111111111112"
	systemProgram = "11111111111111111111111111111111"
)

func TestValidateAddress(t *testing.T) {
	tests := []struct {
		addr  string
		valid bool
	}{
		{wsolMint, true},
		{systemProgram, true},
		{"", false},
		{"0OIl", false},   // not in the base58 alphabet
		{"3yZe7d", false}, // too short
		{wsolMint + "1", false},
	}
	for _, tt := range tests {
		err := ValidateAddress(tt.addr)
		if tt.valid {
			assert.NoError(t, err, tt.addr)
		} else {
			assert.ErrorIs(t, err, ErrInvalidAddress, tt.addr)
		}
	}
}

func TestAgeDays(t *testing.T) {
	now := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 9.0, AgeDays(now.AddDate(0, 0, -9), now))
	assert.Equal(t, 0.0, AgeDays(now.Add(time.Hour), now))
}

func testClient(url string, retries int, failures uint32) *Client {
	return NewClient(Config{
		BaseURL:         url,
		RateLimitRPS:    1000,
		Burst:           10,
		Retries:         retries,
		RetryWait:       time.Millisecond,
		RetryMaxWait:    5 * time.Millisecond,
		BreakerFailures: failures,
		BreakerTimeout:  time.Minute,
	})
}

func TestClient_CreatedAt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/wallets/"+wsolMint+"/created", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"address":%q,"created_at":1700000000}`, wsolMint)
	}))
	defer srv.Close()

	created, err := testClient(srv.URL, 0, 5).CreatedAt(context.Background(), wsolMint)
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000), created.Unix())
}

func TestClient_InvalidAddressMakesNoRequest(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, 0, 5).CreatedAt(context.Background(), "not-a-wallet")
	assert.ErrorIs(t, err, ErrInvalidAddress)
	assert.Zero(t, calls.Load())
}

func TestClient_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, 2, 5).CreatedAt(context.Background(), wsolMint)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"created_at":1700000000}`)
	}))
	defer srv.Close()

	created, err := testClient(srv.URL, 3, 5).CreatedAt(context.Background(), wsolMint)
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000), created.Unix())
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_BreakerOpens(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := testClient(srv.URL, 0, 2)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := c.CreatedAt(ctx, wsolMint)
		require.Error(t, err)
	}

	_, err := c.CreatedAt(ctx, wsolMint)
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState))
	assert.Equal(t, int32(2), calls.Load())
}

func TestMemoryCache_TTL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemoryCache(10, time.Minute)
	c.now = func() time.Time { return now }

	created := now.AddDate(0, 0, -3)
	require.NoError(t, c.Set(ctx, wsolMint, created))

	got, ok, err := c.Get(ctx, wsolMint)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, created, got)

	now = now.Add(time.Minute)
	_, ok, _ = c.Get(ctx, wsolMint)
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestMemoryCache_EvictsOldestInsertion(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(2, 0)
	t0 := time.Unix(1, 0)

	require.NoError(t, c.Set(ctx, "a", t0))
	require.NoError(t, c.Set(ctx, "b", t0))
	require.NoError(t, c.Set(ctx, "a", t0.Add(time.Second))) // rewrite keeps a newest
	require.NoError(t, c.Set(ctx, "c", t0))

	assert.Equal(t, 2, c.Len())
	_, ok, _ := c.Get(ctx, "b")
	assert.False(t, ok)
	got, ok, _ := c.Get(ctx, "a")
	assert.True(t, ok)
	assert.Equal(t, t0.Add(time.Second), got)
}

func TestMemoryCache_BoundedUnderChurn(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(5, 0)
	for i := 0; i < 1000; i++ {
		require.NoError(t, c.Set(ctx, fmt.Sprintf("k%d", i%7), time.Unix(int64(i), 0)))
	}
	assert.LessOrEqual(t, c.Len(), 5)
	assert.Less(t, len(c.order), 100)
}

func TestRedisCache(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewRedisCache(db, time.Hour)
	ctx := context.Background()
	key := redisKeyPrefix + wsolMint

	t.Run("hit", func(t *testing.T) {
		mock.ExpectGet(key).SetVal("1700000000")
		got, ok, err := c.Get(ctx, wsolMint)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, int64(1700000000), got.Unix())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("miss", func(t *testing.T) {
		mock.ExpectGet(key).RedisNil()
		_, ok, err := c.Get(ctx, wsolMint)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("error", func(t *testing.T) {
		mock.ExpectGet(key).SetErr(redis.TxFailedErr)
		_, _, err := c.Get(ctx, wsolMint)
		assert.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("set", func(t *testing.T) {
		mock.ExpectSet(key, "1700000000", time.Hour).SetVal("OK")
		require.NoError(t, c.Set(ctx, wsolMint, time.Unix(1700000000, 0)))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCached(t *testing.T) {
	ctx := context.Background()
	var lookups, hits, misses int
	lookup := LookupFunc(func(context.Context, string) (time.Time, error) {
		lookups++
		return time.Unix(1700000000, 0), nil
	})
	c := NewCached(lookup, NewMemoryCache(10, time.Hour), func(hit bool) {
		if hit {
			hits++
		} else {
			misses++
		}
	})

	for i := 0; i < 3; i++ {
		got, err := c.CreatedAt(ctx, wsolMint)
		require.NoError(t, err)
		assert.Equal(t, int64(1700000000), got.Unix())
	}
	assert.Equal(t, 1, lookups)
	assert.Equal(t, 2, hits)
	assert.Equal(t, 1, misses)

	_, err := c.CreatedAt(ctx, "bad")
	assert.ErrorIs(t, err, ErrInvalidAddress)
	assert.Equal(t, 1, lookups)
}

func TestCached_LookupErrorNotCached(t *testing.T) {
	ctx := context.Background()
	calls := 0
	lookup := LookupFunc(func(context.Context, string) (time.Time, error) {
		calls++
		return time.Time{}, ErrNotFound
	})
	c := NewCached(lookup, NewMemoryCache(10, time.Hour), nil)

	_, err := c.CreatedAt(ctx, wsolMint)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = c.CreatedAt(ctx, wsolMint)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 2, calls)
}
