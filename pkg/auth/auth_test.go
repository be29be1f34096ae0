package auth

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractBearer(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	assert.Empty(t, ExtractBearer(r))

	r.Header.Set("Authorization", "Bearer abc")
	assert.Equal(t, "abc", ExtractBearer(r))

	r.Header.Set("Authorization", "bearer  xyz ")
	assert.Equal(t, "xyz", ExtractBearer(r))

	r.Header.Set("Authorization", "Basic abc")
	assert.Empty(t, ExtractBearer(r))
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.1:5000"
	assert.Equal(t, "10.0.0.1", ClientIP(r))

	r.Header.Set("X-Forwarded-For", "1.2.3.4, 10.0.0.1")
	assert.Equal(t, "1.2.3.4", ClientIP(r))
}

func TestTokenChecker(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	sign := func(secret string, exp time.Time) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": "u1",
			"exp": exp.Unix(),
		}).SignedString([]byte(secret))
		require.NoError(t, err)
		return s
	}

	unsigned := NewTokenChecker("")
	unsigned.now = func() time.Time { return now }
	assert.NoError(t, unsigned.Check("opaque"))
	assert.ErrorIs(t, unsigned.Check(""), ErrTokenInvalid)
	assert.NoError(t, unsigned.Check(sign("any", now.Add(time.Minute))))
	assert.ErrorIs(t, unsigned.Check(sign("any", now.Add(-time.Minute))), ErrTokenExpired)
	assert.ErrorIs(t, unsigned.Check("a.b.c"), ErrTokenInvalid)

	verified := NewTokenChecker("secret")
	verified.now = func() time.Time { return now }
	assert.NoError(t, verified.Check(sign("secret", now.Add(time.Minute))))
	assert.ErrorIs(t, verified.Check(sign("wrong", now.Add(time.Minute))), ErrTokenInvalid)
	assert.ErrorIs(t, verified.Check(sign("secret", now.Add(-time.Minute))), ErrTokenExpired)

	assert.Equal(t, "u1", Subject(sign("x", now)))
	assert.Empty(t, Subject("opaque"))
}

func TestSlidingWindowLimiter(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l := NewSlidingWindowLimiter(2, time.Minute)
	l.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		ok, err := l.Allow(ctx, "k")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, _ := l.Allow(ctx, "k")
	assert.False(t, ok)

	ok, _ = l.Allow(ctx, "other")
	assert.True(t, ok)

	now = now.Add(61 * time.Second)
	ok, _ = l.Allow(ctx, "k")
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	assert.Equal(t, 2, l.Sweep())
}

func TestPrefixedLimitersShareStore(t *testing.T) {
	ctx := context.Background()
	store := NewSlidingWindowLimiter(1, time.Minute)
	ip := NewIPRateLimiter(store)
	session := NewSessionRateLimiter(store)

	ok, _ := ip.Allow(ctx, "a")
	assert.True(t, ok)
	ok, _ = session.Allow(ctx, "a")
	assert.True(t, ok)
	ok, _ = ip.Allow(ctx, "a")
	assert.False(t, ok)

	require.NoError(t, ip.Reset(ctx, "a"))
	ok, _ = ip.Allow(ctx, "a")
	assert.True(t, ok)
}

type fakeDynamo struct {
	counts  map[string]int
	failErr error
}

func (f *fakeDynamo) UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	if f.failErr != nil {
		return nil, f.failErr
	}
	var key counterKey
	if err := attributevalue.UnmarshalMap(in.Key, &key); err != nil {
		return nil, err
	}
	var limit int
	if err := attributevalue.Unmarshal(in.ExpressionAttributeValues[":limit"], &limit); err != nil {
		return nil, err
	}
	if f.counts[key.PK] >= limit {
		return nil, &types.ConditionalCheckFailedException{}
	}
	f.counts[key.PK]++
	attrs, err := attributevalue.MarshalMap(RateLimitEntry{PK: key.PK, Count: f.counts[key.PK]})
	if err != nil {
		return nil, err
	}
	return &dynamodb.UpdateItemOutput{Attributes: attrs}, nil
}

func (f *fakeDynamo) DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	var key counterKey
	if err := attributevalue.UnmarshalMap(in.Key, &key); err != nil {
		return nil, err
	}
	delete(f.counts, key.PK)
	return &dynamodb.DeleteItemOutput{}, nil
}

func TestDistributedRateLimiter(t *testing.T) {
	ctx := context.Background()
	store := &fakeDynamo{counts: map[string]int{}}
	l := NewDistributedRateLimiter(store, "limits", 2, time.Minute)
	now := time.Date(2026, 1, 1, 12, 0, 10, 0, time.UTC)
	l.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		ok, err := l.Allow(ctx, "ip:1")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := l.Allow(ctx, "ip:1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, l.Reset(ctx, "ip:1"))
	ok, _ = l.Allow(ctx, "ip:1")
	assert.True(t, ok)

	now = now.Add(time.Minute)
	ok, _ = l.Allow(ctx, "ip:1")
	assert.True(t, ok)
}

func TestDistributedRateLimiterFailsOpen(t *testing.T) {
	store := &fakeDynamo{counts: map[string]int{}, failErr: errors.New("throttled")}
	l := NewDistributedRateLimiter(store, "limits", 1, time.Minute)

	ok, err := l.Allow(context.Background(), "k")
	assert.True(t, ok)
	assert.Error(t, err)
}
