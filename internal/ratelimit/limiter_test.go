package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResult(t *testing.T) {
	tests := []struct {
		name    string
		raw     any
		want    Result
		wantErr bool
	}{
		{
			name: "allowed",
			raw:  []any{int64(1), int64(4), int64(1700000060)},
			want: Result{Allowed: true, Remaining: 4, Reset: time.Unix(1700000060, 0)},
		},
		{
			name: "limited",
			raw:  []any{int64(0), int64(0), int64(1700000010)},
			want: Result{Allowed: false, Remaining: 0, Reset: time.Unix(1700000010, 0)},
		},
		{name: "not a list", raw: "OK", wantErr: true},
		{name: "short list", raw: []any{int64(1)}, wantErr: true},
		{name: "bad element", raw: []any{int64(1), "x", int64(2)}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseResult(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAllow_RedisUnavailable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	rl := New(client, 10, time.Minute)
	_, err := rl.Allow(context.Background(), "1.2.3.4")
	assert.Error(t, err)
	assert.Equal(t, 10, rl.MaxRequests())
}
