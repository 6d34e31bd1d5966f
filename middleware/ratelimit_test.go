package middleware

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"skillmatch/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func TestTokenBucketRefills(t *testing.T) {
	tb := NewTokenBucket(2, 1)
	start := tb.lastRefillTime

	if !tb.allowAt(start) || !tb.allowAt(start) {
		t.Fatal("initial tokens not available")
	}
	if tb.allowAt(start) {
		t.Fatal("bucket should be empty")
	}
	if !tb.allowAt(start.Add(1500 * time.Millisecond)) {
		t.Fatal("bucket did not refill")
	}
}

func TestRateLimiterKeysAreIndependent(t *testing.T) {
	rl := NewRateLimiter(1, time.Hour)
	if !rl.Allow("a") {
		t.Fatal("first request for a rejected")
	}
	if rl.Allow("a") {
		t.Fatal("second request for a allowed")
	}
	if !rl.Allow("b") {
		t.Fatal("b shares a's bucket")
	}
}

func TestRateLimiterPrune(t *testing.T) {
	rl := NewRateLimiter(5, time.Minute)
	rl.Allow("old")
	rl.Allow("fresh")
	rl.buckets["old"].lastRefillTime = time.Now().Add(-time.Hour)

	if removed := rl.Prune(30 * time.Minute); removed != 1 {
		t.Fatalf("removed = %d", removed)
	}
	if _, ok := rl.buckets["fresh"]; !ok {
		t.Fatal("fresh bucket pruned")
	}
}

// fakeScripter runs the fixed-window script against an in-memory counter.
type fakeScripter struct {
	counts map[string]int64
	err    error
}

func (f *fakeScripter) run(ctx context.Context, keys []string, args ...interface{}) *redis.Cmd {
	cmd := redis.NewCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	f.counts[keys[0]]++
	if f.counts[keys[0]] > int64(args[1].(int)) {
		cmd.SetVal(int64(0))
	} else {
		cmd.SetVal(int64(1))
	}
	return cmd
}

func (f *fakeScripter) Eval(ctx context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	return f.run(ctx, keys, args...)
}

func (f *fakeScripter) EvalSha(ctx context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	return f.run(ctx, keys, args...)
}

func (f *fakeScripter) EvalRO(ctx context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	return f.run(ctx, keys, args...)
}

func (f *fakeScripter) EvalShaRO(ctx context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	return f.run(ctx, keys, args...)
}

func (f *fakeScripter) ScriptExists(ctx context.Context, _ ...string) *redis.BoolSliceCmd {
	return redis.NewBoolSliceCmd(ctx)
}

func (f *fakeScripter) ScriptLoad(ctx context.Context, _ string) *redis.StringCmd {
	return redis.NewStringCmd(ctx)
}

func TestRedisLimiter(t *testing.T) {
	fake := &fakeScripter{counts: map[string]int64{}}
	l := NewRedisLimiter(fake, "rl:", 2, time.Minute)

	got := []bool{l.Allow("ip:1"), l.Allow("ip:1"), l.Allow("ip:1"), l.Allow("ip:2")}
	want := []bool{true, true, false, true}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("call %d = %v, want %v", i, got[i], want[i])
		}
	}
	if fake.counts["rl:ip:1"] != 3 {
		t.Fatalf("prefix not applied: %v", fake.counts)
	}
}

func TestRedisLimiterFailsOpen(t *testing.T) {
	l := NewRedisLimiter(&fakeScripter{err: errors.New("connection refused")}, "rl:", 1, time.Minute)
	for i := 0; i < 3; i++ {
		if !l.Allow("k") {
			t.Fatal("redis error blocked the request")
		}
	}

	var nilLimiter *RedisLimiter
	if !nilLimiter.Allow("k") {
		t.Fatal("nil limiter blocked the request")
	}
}

func TestFiberRateLimitMiddleware(t *testing.T) {
	tests := []struct {
		name    string
		enabled bool
		path    string
		want    []int
	}{
		{"limits api", true, "/api/x", []int{200, 429}},
		{"disabled", false, "/api/x", []int{200, 200}},
		{"health exempt", true, "/health", []int{200, 200}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Use(FiberRateLimitMiddleware(NewRateLimiter(1, time.Hour), tt.enabled))
			app.Get(tt.path, func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

			for i, want := range tt.want {
				resp, err := app.Test(httptest.NewRequest("GET", tt.path, nil), -1)
				if err != nil {
					t.Fatalf("request: %v", err)
				}
				resp.Body.Close()
				if resp.StatusCode != want {
					t.Fatalf("request %d: status = %d, want %d", i, resp.StatusCode, want)
				}
			}
		})
	}
}

func TestAcceptRateLimitIsPerUser(t *testing.T) {
	limiter := NewRateLimiter(1, time.Hour)
	app := fiber.New()
	app.Post("/accept", AuthMiddleware(secret), AcceptRateLimitMiddleware(limiter, true),
		func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	tokenA, _ := IssueAccessToken(secret, uuid.New(), models.RoleStudent, time.Hour)
	tokenB, _ := IssueAccessToken(secret, uuid.New(), models.RoleStudent, time.Hour)

	for i, tc := range []struct {
		token string
		want  int
	}{{tokenA, 200}, {tokenA, 429}, {tokenB, 200}} {
		req := httptest.NewRequest("POST", "/accept", nil)
		req.Header.Set("Authorization", "Bearer "+tc.token)
		resp, err := app.Test(req, -1)
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != tc.want {
			t.Fatalf("request %d: status = %d, want %d", i, resp.StatusCode, tc.want)
		}
	}
}
