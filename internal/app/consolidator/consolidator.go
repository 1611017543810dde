// Package consolidator implements the batch job that merges every user's
// pending readings into the durable ledger.
//
// The consolidator is a two-state machine: Accepting (normal operation) and
// Draining (a cycle in progress). The API layer checks Accepting() before any
// mutating request and answers 503 while a drain runs. A cycle:
//
//  1. close the gate (Accepting → Draining)
//  2. load the ledger mapping once
//  3. merge every user's snapshot concurrently through a bounded worker pool
//  4. join, then save the fully merged mapping atomically
//  5. only after a confirmed save: clear pending state and truncate the
//     audit log
//  6. reopen the gate
//
// On save failure the ledger file is untouched and pending data is retained,
// so a retry re-runs the merge from a freshly loaded, pristine mapping.
package consolidator

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/metergrid/metergrid/internal/audit"
	"github.com/metergrid/metergrid/internal/infra/observability"
	"github.com/metergrid/metergrid/internal/infra/sqlite"
	"github.com/metergrid/metergrid/internal/ledger"
	"github.com/metergrid/metergrid/internal/publisher"
	"github.com/metergrid/metergrid/internal/store"
)

// Config controls drain behavior.
type Config struct {
	// Workers bounds per-user merge concurrency (default: 8). A bounded
	// pool instead of one goroutine per user keeps large user counts from
	// fanning out unboundedly.
	Workers int
}

// DefaultConfig returns safe drain defaults.
func DefaultConfig() Config {
	return Config{Workers: 8}
}

// Consolidator runs consolidation cycles over the store and ledger.
type Consolidator struct {
	cfg    Config
	store  *store.Store
	ledger *ledger.Ledger
	audit  *audit.Log

	history *sqlite.DB          // optional drain-run history
	pub     *publisher.Publisher // optional MQTT summary publisher

	accepting atomic.Bool
	runMu     sync.Mutex // one drain at a time
}

// New creates a consolidator in the Accepting state. audit, history and pub
// may be nil.
func New(cfg Config, st *store.Store, led *ledger.Ledger, aud *audit.Log) *Consolidator {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig().Workers
	}
	c := &Consolidator{cfg: cfg, store: st, ledger: led, audit: aud}
	c.accepting.Store(true)
	return c
}

// SetHistory wires the drain-run history database.
func (c *Consolidator) SetHistory(db *sqlite.DB) { c.history = db }

// SetPublisher wires the MQTT drain-summary publisher.
func (c *Consolidator) SetPublisher(p *publisher.Publisher) { c.pub = p }

// Accepting reports whether mutating requests may currently be served.
func (c *Consolidator) Accepting() bool { return c.accepting.Load() }

// Result summarizes one completed drain cycle.
type Result struct {
	Users    int           `json:"users"`
	Readings int           `json:"readings"`
	Duration time.Duration `json:"-"`
}

// Drain runs one full consolidation cycle. It always returns with the gate
// reopened — a failed save leaves pending data intact for a safe retry, it
// never leaves the system stuck in Draining.
func (c *Consolidator) Drain(ctx context.Context) (Result, error) {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	start := time.Now()
	c.accepting.Store(false)
	observability.Accepting.Set(0)
	defer func() {
		c.accepting.Store(true)
		observability.Accepting.Set(1)
	}()

	res, err := c.drain(ctx)
	dur := time.Since(start)
	res.Duration = dur
	observability.DrainDuration.Observe(dur.Seconds())

	outcome := "success"
	errMsg := ""
	if err != nil {
		outcome = "failure"
		errMsg = err.Error()
		log.Printf("[consolidator] drain failed after %s: %v", dur, err)
	} else {
		observability.ReadingsConsolidated.Add(float64(res.Readings))
		log.Printf("[consolidator] drained %d readings from %d users in %s",
			res.Readings, res.Users, dur)
	}
	observability.DrainRuns.WithLabelValues(outcome).Inc()
	c.recordRun(start, res, err == nil, errMsg)

	if err == nil {
		c.publishSummary(res)
	}
	return res, err
}

func (c *Consolidator) drain(ctx context.Context) (Result, error) {
	entries, err := c.ledger.Load()
	if err != nil {
		return Result{}, fmt.Errorf("load ledger: %w", err)
	}

	pending := c.store.Snapshot()

	var (
		wg    sync.WaitGroup
		mapMu sync.Mutex
		sem   = make(chan struct{}, c.cfg.Workers)
		total atomic.Int64
	)
	for id, user := range pending {
		wg.Add(1)
		sem <- struct{}{}
		go func(id string, user store.PendingUser) {
			defer wg.Done()
			defer func() { <-sem }()

			// Per-user merges touch disjoint keys; the lock only
			// covers mutation of the shared mapping.
			mapMu.Lock()
			ledger.MergeUser(entries, id, user.Profile, user.Readings)
			mapMu.Unlock()
			total.Add(int64(len(user.Readings)))
		}(id, user)
	}
	wg.Wait()

	res := Result{Users: len(pending), Readings: int(total.Load())}

	// The save must observe the fully merged mapping, never a partial one;
	// the join above guarantees that. Honor cancellation before the one
	// blocking I/O point.
	if err := ctx.Err(); err != nil {
		return res, err
	}
	if err := c.ledger.Save(entries); err != nil {
		// Pending data is only discarded after a confirmed durable
		// write. Leave everything intact and surface the failure.
		return res, fmt.Errorf("save ledger: %w", err)
	}

	c.store.ClearPending()
	if c.audit != nil {
		if err := c.audit.Truncate(); err != nil {
			// The readings are already durable; a stale audit log is
			// not worth failing the cycle over.
			log.Printf("[consolidator] audit truncate failed: %v", err)
		}
	}
	return res, nil
}

func (c *Consolidator) recordRun(start time.Time, res Result, success bool, errMsg string) {
	if c.history == nil {
		return
	}
	_, err := c.history.InsertDrainRun(sqlite.DrainRun{
		StartedAt:  start,
		FinishedAt: start.Add(res.Duration),
		Users:      res.Users,
		Readings:   res.Readings,
		Duration:   res.Duration,
		Success:    success,
		Error:      errMsg,
	})
	if err != nil {
		log.Printf("[consolidator] record drain run: %v", err)
	}
}

func (c *Consolidator) publishSummary(res Result) {
	if c.pub == nil {
		return
	}
	err := c.pub.PublishDrainSummary(publisher.Summary{
		CompletedAt: time.Now(),
		Users:       res.Users,
		Readings:    res.Readings,
		DurationMS:  res.Duration.Milliseconds(),
	})
	if err != nil {
		log.Printf("[consolidator] publish drain summary: %v", err)
	}
}
