// Command authcore-loadtest measures the throughput of the two hot Redis
// paths: one-time code save/consume round trips and audit log appends.
// Without -redis-addr (or REDIS_ADDR) it runs against an embedded
// miniredis, which measures encoding and transaction overhead rather than
// network latency.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dotstore/authcore/internal"
	"github.com/dotstore/authcore/internal/audit"
	"github.com/dotstore/authcore/internal/otp"
	"github.com/redis/go-redis/v9"
)

func main() {
	var (
		ops         = flag.Int("ops", 100000, "operations per phase")
		concurrency = flag.Int("concurrency", 128, "number of concurrent workers")
		accounts    = flag.Int("accounts", 10000, "distinct email addresses to spread load over")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	)
	flag.Parse()

	if *ops <= 0 || *concurrency <= 0 || *accounts <= 0 {
		fmt.Fprintln(os.Stderr, "ops, concurrency, and accounts must be > 0")
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
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{mr.Addr()},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", mr.Addr())
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	otpStats := runOTPPhase(ctx, client, *ops, *concurrency, *accounts)
	auditStats := runAuditPhase(ctx, client, *ops, *concurrency, *accounts)

	fmt.Println("---- results ----")
	printStats("otp save+consume", otpStats)
	printStats("audit append", auditStats)
}

// runOTPPhase performs one save and one successful consume per operation.
// Workers spread across the account pool, so WATCH contention stays
// realistic rather than artificially serialized on one key.
func runOTPPhase(ctx context.Context, client redis.UniversalClient, ops, concurrency, accounts int) phaseStats {
	store := otp.NewStore(client)

	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
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

				email := fmt.Sprintf("load-%d@example.com", r.Intn(accounts))
				hash := internal.HashCode(fmt.Sprintf("%06d", 100000+i%900000))
				record := &otp.Record{
					CodeHash:  hash,
					CreatedAt: time.Now().Unix(),
					ExpiresAt: time.Now().Add(10 * time.Minute).Unix(),
				}

				t0 := time.Now()
				err := store.Save(ctx, email, otp.PurposeEmailVerification, record, 10*time.Minute)
				if err == nil {
					_, err = store.Consume(ctx, email, otp.PurposeEmailVerification, hash, 5)
				}
				d := time.Since(t0)

				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()

	return computeStats(time.Since(start), latencies, failures)
}

// runAuditPhase appends one fully indexed failure entry per operation,
// which is the worst case: every zset index is touched.
func runAuditPhase(ctx context.Context, client redis.UniversalClient, ops, concurrency, accounts int) phaseStats {
	store := audit.NewStore(client, 90*24*time.Hour)

	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*6151))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}

				entry := &audit.Entry{
					ID:        fmt.Sprintf("load-%d-%d", worker, i),
					Timestamp: time.Now().UTC(),
					Action:    audit.ActionSignInFailure,
					Email:     fmt.Sprintf("load-%d@example.com", r.Intn(accounts)),
					IP:        fmt.Sprintf("10.0.%d.%d", r.Intn(256), r.Intn(256)),
					UserAgent: "loadtest",
				}

				t0 := time.Now()
				err := store.Append(ctx, entry)
				d := time.Since(t0)

				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()

	return computeStats(time.Since(start), latencies, failures)
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
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
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
