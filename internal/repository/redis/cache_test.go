package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"vidshare/internal/domain"
	"vidshare/pkg/logger"
)

type MockLookup struct {
	mock.Mock
}

func (m *MockLookup) Exists(ctx context.Context, coll domain.Collection, id string) (bool, error) {
	args := m.Called(ctx, coll, id)
	return args.Bool(0), args.Error(1)
}

// MockClient is a mock implementation of Client
type MockClient struct {
	mock.Mock
}

func (m *MockClient) Exists(ctx context.Context, keys ...string) *redis.IntCmd {
	args := m.Called(ctx, keys)
	return redis.NewIntResult(int64(args.Int(0)), args.Error(1))
}

func (m *MockClient) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	args := m.Called(ctx, key, value, expiration)
	return redis.NewStatusResult(args.String(0), args.Error(1))
}

func (m *MockClient) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	args := m.Called(ctx, keys)
	return redis.NewIntResult(int64(args.Int(0)), args.Error(1))
}

// unreachable returns a client whose every command fails fast.
func unreachable(t *testing.T) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestExistsKey(t *testing.T) {
	assert.Equal(t, "exists:videos:abc", existsKey(domain.CollectionVideos, "abc"))
}

func TestExists_FallsBackWhenRedisFails(t *testing.T) {
	tests := []struct {
		name    string
		found   bool
		err     error
		wantErr bool
	}{
		{name: "present", found: true},
		{name: "absent", found: false},
		{name: "store error", err: errors.New("boom"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := new(MockLookup)
			next.On("Exists", mock.Anything, domain.CollectionUsers, "u1").Return(tt.found, tt.err).Once()

			cache := NewExistenceCache(unreachable(t), next, time.Minute, logger.Discard())
			ok, err := cache.Exists(context.Background(), domain.CollectionUsers, "u1")

			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.found, ok)
			}
			next.AssertExpectations(t)
		})
	}
}

func TestInvalidate_ReportsRedisError(t *testing.T) {
	cache := NewExistenceCache(unreachable(t), new(MockLookup), time.Minute, logger.Discard())
	err := cache.Invalidate(context.Background(), domain.CollectionVideos, "v1")
	assert.Error(t, err)
}

func TestExists_Hit(t *testing.T) {
	client, next := new(MockClient), new(MockLookup)
	client.On("Exists", mock.Anything, []string{"exists:users:u1"}).Return(1, nil).Once()

	cache := NewExistenceCache(client, next, time.Minute, logger.Discard())
	ok, err := cache.Exists(context.Background(), domain.CollectionUsers, "u1")

	require.NoError(t, err)
	assert.True(t, ok)
	client.AssertExpectations(t)
	next.AssertNotCalled(t, "Exists", mock.Anything, mock.Anything, mock.Anything)
}

func TestExists_MissStoresOnlyPositiveAnswers(t *testing.T) {
	tests := []struct {
		name   string
		found  bool
		stored bool
	}{
		{name: "present is cached", found: true, stored: true},
		{name: "absent is not cached", found: false, stored: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, next := new(MockClient), new(MockLookup)
			client.On("Exists", mock.Anything, []string{"exists:videos:v1"}).Return(0, nil).Once()
			next.On("Exists", mock.Anything, domain.CollectionVideos, "v1").Return(tt.found, nil).Once()
			if tt.stored {
				client.On("Set", mock.Anything, "exists:videos:v1", 1, 5*time.Minute).Return("OK", nil).Once()
			}

			cache := NewExistenceCache(client, next, 5*time.Minute, logger.Discard())
			ok, err := cache.Exists(context.Background(), domain.CollectionVideos, "v1")

			require.NoError(t, err)
			assert.Equal(t, tt.found, ok)
			client.AssertExpectations(t)
			next.AssertExpectations(t)
			if !tt.stored {
				client.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			}
		})
	}
}

func TestExists_WriteFailureIsIgnored(t *testing.T) {
	client, next := new(MockClient), new(MockLookup)
	client.On("Exists", mock.Anything, mock.Anything).Return(0, nil).Once()
	client.On("Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("readonly")).Once()
	next.On("Exists", mock.Anything, domain.CollectionUsers, "u1").Return(true, nil).Once()

	cache := NewExistenceCache(client, next, time.Minute, logger.Discard())
	ok, err := cache.Exists(context.Background(), domain.CollectionUsers, "u1")

	require.NoError(t, err)
	assert.True(t, ok)
}

func TestInvalidate_DeletesKey(t *testing.T) {
	client := new(MockClient)
	client.On("Del", mock.Anything, []string{"exists:playlists:p1"}).Return(1, nil).Once()

	cache := NewExistenceCache(client, new(MockLookup), time.Minute, logger.Discard())

	require.NoError(t, cache.Invalidate(context.Background(), domain.CollectionPlaylists, "p1"))
	client.AssertExpectations(t)
}
