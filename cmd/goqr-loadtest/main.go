// Command goqr-loadtest drives the QR engine directly against Redis, or an
// embedded miniredis, and reports per-phase latency percentiles.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	goQR "github.com/MrEthical07/goQR"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const loadRoute = "device-login"

func main() {
	var (
		sessions    = flag.Int("sessions", 20000, "number of sessions to generate")
		concurrency = flag.Int("concurrency", 128, "number of concurrent workers")
		ops         = flag.Int("ops", 50000, "confirm operations")
		racers      = flag.Int("racers", 64, "goroutines racing on one single-use session")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "qrload", "session key prefix")
	)
	flag.Parse()

	if *sessions <= 0 || *concurrency <= 0 || *ops <= 0 || *racers <= 0 {
		fmt.Fprintln(os.Stderr, "sessions, concurrency, ops and racers must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", mr.Addr())
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	reusable, err := newEngine(client, *prefix, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine build failed: %v\n", err)
		os.Exit(1)
	}
	defer reusable.Close()

	singleUse, err := newEngine(client, *prefix+"-once", true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine build failed: %v\n", err)
		os.Exit(1)
	}
	defer singleUse.Close()

	keys, genStats := runGeneratePhase(ctx, reusable, *sessions, *concurrency)
	if len(keys) == 0 {
		fmt.Fprintln(os.Stderr, "no sessions generated")
		os.Exit(1)
	}
	confirmStats, outcomes := runConfirmPhase(ctx, reusable, keys, *ops, *concurrency)

	winners, err := runRace(ctx, singleUse, *racers)
	if err != nil {
		fmt.Fprintf(os.Stderr, "race failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("---- results ----")
	printStats("generate", genStats)
	printStats("confirm", confirmStats)
	for _, name := range sortedKeys(outcomes) {
		fmt.Printf("  %s=%d\n", name, outcomes[name])
	}
	fmt.Printf("single-use race: racers=%d winners=%d\n", *racers, winners)
	if winners != 1 {
		os.Exit(1)
	}
}

func newEngine(client redis.UniversalClient, prefix string, singleUse bool) (*goQR.Engine, error) {
	cfg := goQR.DefaultConfig()
	cfg.Session.Salt = []byte("goqr-loadtest-salt-not-for-production")
	cfg.Session.RedisPrefix = prefix
	cfg.Session.SingleUse = singleUse
	cfg.Session.TTL = 10 * time.Minute
	cfg.Security.EnableConfirmThrottle = false
	cfg.Metrics.Enabled = true

	return goQR.New().
		WithConfig(cfg).
		WithRedis(client).
		WithRoutes("https://loadtest.invalid", map[string]string{loadRoute: "/qr/confirm"}).
		WithLoginHandler(func(_ context.Context, req goQR.LoginRequest) (goQR.LoginResult, error) {
			return goQR.LoginResult{"subject": req.Subject.ID()}, nil
		}).
		WithConfirmHandler(func(context.Context, goQR.ConfirmRequest) bool { return true }).
		Build()
}

// ownerFor makes every third session anonymous so all table rows are hit.
func ownerFor(i int) goQR.Identity {
	if i%3 == 0 {
		return goQR.Anonymous()
	}
	return goQR.Principal("user-" + strconv.Itoa(i%97))
}

type generated struct {
	key   string
	owner goQR.Identity
}

func runGeneratePhase(ctx context.Context, engine *goQR.Engine, n, concurrency int) ([]generated, phaseStats) {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		keys      = make([]generated, n)
		latencies = make([]time.Duration, 0, n)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= n {
					return
				}
				owner := ownerFor(i)
				t0 := time.Now()
				res, err := engine.Generate(ctx, loadRoute, owner)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				} else {
					keys[i] = generated{key: res.SessionKey, owner: owner}
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	total := time.Since(start)

	out := keys[:0]
	for _, k := range keys {
		if k.key != "" {
			out = append(out, k)
		}
	}
	return out, computeStats(total, latencies, failures)
}

func runConfirmPhase(ctx context.Context, engine *goQR.Engine, keys []generated, ops, concurrency int) (phaseStats, map[string]int64) {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		outcomes  = make(map[string]int64)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				target := keys[r.Intn(len(keys))]

				var confirmer goQR.Identity
				switch r.Intn(3) {
				case 0:
					confirmer = target.owner
				case 1:
					confirmer = goQR.Principal("user-" + strconv.Itoa(r.Intn(97)))
				default:
					confirmer = goQR.Anonymous()
				}

				t0 := time.Now()
				res, err := engine.Confirm(ctx, loadRoute, target.key, confirmer)
				d := time.Since(t0)
				if err != nil && !errors.Is(err, goQR.ErrForbidden) && !errors.Is(err, goQR.ErrSessionNotFound) {
					atomic.AddInt64(&failures, 1)
				}

				mu.Lock()
				latencies = append(latencies, d)
				if res != nil {
					outcomes[res.Outcome.String()]++
				}
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures), outcomes
}

// runRace confirms one single-use session from many goroutines at once and
// returns how many of them were accepted.
func runRace(ctx context.Context, engine *goQR.Engine, racers int) (int64, error) {
	res, err := engine.Generate(ctx, loadRoute, goQR.Anonymous())
	if err != nil {
		return 0, err
	}

	var (
		wg      sync.WaitGroup
		winners int64
		gate    = make(chan struct{})
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-gate
			out, err := engine.Confirm(ctx, loadRoute, res.SessionKey, goQR.Principal("racer-"+strconv.Itoa(i)))
			if err == nil && out.Outcome.Accepted() {
				atomic.AddInt64(&winners, 1)
			}
		}(i)
	}
	close(gate)
	wg.Wait()
	return winners, nil
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}

func sortedKeys(m map[string]int64) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
