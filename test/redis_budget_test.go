//go:build integration
// +build integration

package test

import (
	"context"
	"net"
	"sync/atomic"
	"testing"

	goQR "github.com/MrEthical07/goQR"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// cmdCounter is a go-redis Hook that counts the number of Redis round-trips
// (individual commands and pipeline calls).
type cmdCounter struct {
	commands  atomic.Int64
	pipelines atomic.Int64
}

func (h *cmdCounter) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return next(ctx, network, addr)
	}
}

func (h *cmdCounter) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		h.commands.Add(1)
		return next(ctx, cmd)
	}
}

func (h *cmdCounter) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		// Each pipeline call is one network round-trip regardless of command count.
		h.pipelines.Add(1)
		h.commands.Add(int64(len(cmds)))
		return next(ctx, cmds)
	}
}

func (h *cmdCounter) Reset() {
	h.commands.Store(0)
	h.pipelines.Store(0)
}

func (h *cmdCounter) Commands() int64  { return h.commands.Load() }
func (h *cmdCounter) Pipelines() int64 { return h.pipelines.Load() }

// newCountedEngine creates an engine backed by miniredis with a cmdCounter
// hook installed. Reset the counter before each measured operation.
func newCountedEngine(t *testing.T, singleUse bool) (*goQR.Engine, *cmdCounter) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	counter := &cmdCounter{}
	rdb.AddHook(counter)

	// go-redis may emit handshake commands on first use.
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Fatalf("warmup ping: %v", err)
	}
	counter.Reset()

	return newIntegrationEngine(t, rdb, singleUse), counter
}

func assertBudget(t *testing.T, op string, counter *cmdCounter, budget int64) {
	t.Helper()

	cmds := counter.Commands()
	if cmds > budget {
		t.Errorf("%s used %d Redis commands; budget is <= %d", op, cmds, budget)
	}
	t.Logf("%s: %d commands, %d pipelines", op, cmds, counter.Pipelines())
}

// Generate without a client IP skips the throttle: one SETNX.
func TestGenerateRedisBudget(t *testing.T) {
	engine, counter := newCountedEngine(t, false)

	if _, err := engine.Generate(context.Background(), routePurchase, goQR.Principal("7")); err != nil {
		t.Fatalf("generate: %v", err)
	}
	assertBudget(t, "Generate", counter, 1)
}

// GenerateImage adds a cache probe and a cache write.
func TestGenerateImageRedisBudget(t *testing.T) {
	engine, counter := newCountedEngine(t, false)

	if _, err := engine.GenerateImage(context.Background(), routePurchase, goQR.Principal("7")); err != nil {
		t.Fatalf("generate image: %v", err)
	}
	assertBudget(t, "GenerateImage", counter, 3)
}

// A reusable confirmation reads the record and writes the result.
func TestReusableConfirmRedisBudget(t *testing.T) {
	engine, counter := newCountedEngine(t, false)
	ctx := context.Background()

	gen, err := engine.Generate(ctx, routePurchase, goQR.Principal("7"))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	counter.Reset()

	if _, err := engine.Confirm(ctx, routePurchase, gen.SessionKey, goQR.Principal("7")); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	assertBudget(t, "Confirm(reusable, confirmation)", counter, 2)
}

// A login costs the same; the login data rides in the result record.
func TestReusableLoginRedisBudget(t *testing.T) {
	engine, counter := newCountedEngine(t, false)
	ctx := context.Background()

	gen, err := engine.Generate(ctx, routeDevice, goQR.Anonymous())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	counter.Reset()

	if _, err := engine.Confirm(ctx, routeDevice, gen.SessionKey, goQR.Principal("42")); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	assertBudget(t, "Confirm(reusable, login)", counter, 2)
}

// Single-use consumption is WATCH, GET, MULTI/DEL/EXEC and UNWATCH, plus
// the result write.
func TestSingleUseLoginRedisBudget(t *testing.T) {
	engine, counter := newCountedEngine(t, true)
	ctx := context.Background()

	gen, err := engine.Generate(ctx, routeDevice, goQR.Anonymous())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	counter.Reset()

	if _, err := engine.Confirm(ctx, routeDevice, gen.SessionKey, goQR.Principal("42")); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	assertBudget(t, "Confirm(single-use, login)", counter, 8)
}

// An unknown key is rejected before any Redis access when it is malformed.
func TestMalformedKeyRedisBudget(t *testing.T) {
	engine, counter := newCountedEngine(t, false)

	if _, err := engine.Confirm(context.Background(), routePurchase, "not-a-key", goQR.Principal("7")); err == nil {
		t.Fatal("expected not found")
	}
	assertBudget(t, "Confirm(malformed key)", counter, 0)
}
