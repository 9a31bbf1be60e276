package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/prophyt-api/internal/domain"
	"github.com/alanyoungcy/prophyt-api/internal/notify"
)

// PriceFeed fetches the current price of an asset from an upstream source.
type PriceFeed interface {
	FetchPrice(ctx context.Context, asset, vsCurrency string) (domain.OraclePrice, error)
}

// Alerter receives operational alerts.
type Alerter interface {
	Notify(ctx context.Context, a notify.Alert) error
}

// lockGrace is added to the fetch timeout to form the cross-replica lock TTL.
const lockGrace = 5 * time.Second

// PriceEvent is published on domain.PriceChannel after every stored update.
type PriceEvent struct {
	Type            string          `json:"type"`
	Asset           string          `json:"asset"`
	VsCurrency      string          `json:"vsCurrency"`
	Price           decimal.Decimal `json:"price"`
	Source          string          `json:"source"`
	SourceUpdatedAt time.Time       `json:"sourceUpdatedAt"`
	FetchedAt       time.Time       `json:"fetchedAt"`
}

// PriceUpdaterConfig configures a PriceUpdater.
type PriceUpdaterConfig struct {
	Asset        string
	VsCurrency   string
	Interval     time.Duration
	FetchTimeout time.Duration
	StaleAfter   time.Duration
	MaxBackoff   time.Duration
}

// PriceUpdaterDeps are the collaborators of a PriceUpdater. Cache, Bus, Locks
// and Alerter are optional.
type PriceUpdaterDeps struct {
	Feed    PriceFeed
	Store   domain.OracleStore
	Cache   domain.PriceCache
	Bus     domain.SignalBus
	Locks   domain.LockManager
	Alerter Alerter
}

// PriceUpdater periodically refreshes the stored oracle price. At most one
// run is in flight per process. Ticks arriving during a run are dropped; one
// manual trigger arriving during a run is held and runs when it finishes. A
// Redis lock extends this across replicas.
type PriceUpdater struct {
	deps    PriceUpdaterDeps
	cfg     PriceUpdaterConfig
	logger  *slog.Logger
	now     func() time.Time
	trigger chan struct{}
	wg      sync.WaitGroup

	mu           sync.Mutex
	running      bool
	pending      bool
	failures     int
	skipTicks    int
	lastSuccess  time.Time
	startedAt    time.Time
	staleAlerted bool
}

// NewPriceUpdater creates a PriceUpdater.
func NewPriceUpdater(deps PriceUpdaterDeps, cfg PriceUpdaterConfig, logger *slog.Logger) *PriceUpdater {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 10 * time.Second
	}
	if cfg.MaxBackoff < cfg.Interval {
		cfg.MaxBackoff = cfg.Interval
	}
	return &PriceUpdater{
		deps:    deps,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "price_updater"), slog.String("asset", cfg.Asset)),
		now:     time.Now,
		trigger: make(chan struct{}, 1),
	}
}

// Trigger requests an immediate run, or a follow-up run when one is in
// flight. It reports false when a request is already pending.
func (u *PriceUpdater) Trigger() bool {
	u.mu.Lock()
	pending := u.pending
	u.mu.Unlock()
	if pending {
		return false
	}

	select {
	case u.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// Run executes an update immediately and then on every interval tick or
// manual trigger until ctx is cancelled. It waits for an in-flight update
// before returning ctx.Err().
func (u *PriceUpdater) Run(ctx context.Context) error {
	u.mu.Lock()
	u.startedAt = u.now()
	u.mu.Unlock()

	u.logger.Info("price updater started",
		slog.Duration("interval", u.cfg.Interval),
		slog.Duration("fetch_timeout", u.cfg.FetchTimeout),
	)

	u.tick(ctx, true)

	ticker := time.NewTicker(u.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			u.wg.Wait()
			u.logger.Info("price updater stopped")
			return ctx.Err()
		case <-ticker.C:
			u.tick(ctx, false)
		case <-u.trigger:
			u.tick(ctx, true)
		}
	}
}

// tick starts one update in the background unless the updater is backing
// off. Manual triggers ignore backoff. While a run is in flight, scheduled
// ticks are dropped and a manual trigger is held for one follow-up run.
func (u *PriceUpdater) tick(ctx context.Context, manual bool) {
	if !manual && u.consumeBackoffTick() {
		u.logger.Debug("backing off, tick skipped")
		u.checkStale(ctx)
		return
	}

	u.mu.Lock()
	if u.running {
		queued := manual && !u.pending
		if queued {
			u.pending = true
		}
		u.mu.Unlock()
		if queued {
			u.logger.Info("update in flight, manual refresh queued")
		} else {
			u.logger.Info("update already in flight, skipping", slog.Bool("manual", manual))
		}
		return
	}
	u.running = true
	u.mu.Unlock()

	u.wg.Add(1)
	go func() {
		defer u.wg.Done()
		for {
			_ = u.RunOnce(ctx)
			if !u.finishRun(ctx) {
				return
			}
		}
	}()
}

// finishRun clears the in-flight flag, or keeps it and reports true when a
// queued manual refresh should run next.
func (u *PriceUpdater) finishRun(ctx context.Context) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	again := u.pending && ctx.Err() == nil
	u.pending = false
	if !again {
		u.running = false
	}
	return again
}

func (u *PriceUpdater) consumeBackoffTick() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.skipTicks > 0 {
		u.skipTicks--
		return true
	}
	return false
}

// RunOnce performs a single fetch-and-store cycle. A failed fetch or store
// leaves the previously stored price untouched.
func (u *PriceUpdater) RunOnce(ctx context.Context) error {
	if u.deps.Locks != nil {
		unlock, err := u.deps.Locks.Acquire(ctx, "oracle:"+u.cfg.Asset, u.cfg.FetchTimeout+lockGrace)
		switch {
		case errors.Is(err, domain.ErrLockHeld):
			u.logger.Debug("another replica holds the update lock")
			return nil
		case err != nil:
			u.logger.Warn("update lock unavailable, continuing without it", slog.String("error", err.Error()))
		default:
			defer unlock()
		}
	}

	fetchCtx, cancel := context.WithTimeout(ctx, u.cfg.FetchTimeout)
	p, err := u.deps.Feed.FetchPrice(fetchCtx, u.cfg.Asset, u.cfg.VsCurrency)
	cancel()
	if err != nil {
		err = fmt.Errorf("price_updater: fetch: %w", err)
		u.recordFailure(ctx, err)
		return err
	}

	if err := u.deps.Store.SaveLatest(ctx, p); err != nil {
		err = fmt.Errorf("price_updater: save: %w", err)
		u.recordFailure(ctx, err)
		return err
	}

	if u.deps.Cache != nil {
		if err := u.deps.Cache.SetPrice(ctx, p); err != nil {
			u.logger.Warn("price cache update failed", slog.String("error", err.Error()))
		}
	}
	u.publish(ctx, p)
	u.recordSuccess(ctx, p)
	return nil
}

func (u *PriceUpdater) publish(ctx context.Context, p domain.OraclePrice) {
	if u.deps.Bus == nil {
		return
	}
	payload, err := json.Marshal(PriceEvent{
		Type:            "oracle_price",
		Asset:           p.Asset,
		VsCurrency:      p.VsCurrency,
		Price:           p.Price,
		Source:          p.Source,
		SourceUpdatedAt: p.SourceUpdatedAt,
		FetchedAt:       p.FetchedAt,
	})
	if err != nil {
		u.logger.Warn("marshal price event failed", slog.String("error", err.Error()))
		return
	}
	if err := u.deps.Bus.Publish(ctx, domain.PriceChannel, payload); err != nil {
		u.logger.Warn("publish price event failed", slog.String("error", err.Error()))
	}
}

func (u *PriceUpdater) recordFailure(ctx context.Context, err error) {
	u.mu.Lock()
	u.failures++
	backoff := u.backoffLocked()
	u.skipTicks = int(backoff/u.cfg.Interval) - 1
	failures := u.failures
	u.mu.Unlock()

	u.logger.Error("price update failed",
		slog.String("error", err.Error()),
		slog.Int("consecutive_failures", failures),
		slog.Duration("backoff", backoff),
	)
	u.checkStale(ctx)
}

// backoffLocked returns interval * 2^(failures-1), capped at MaxBackoff.
func (u *PriceUpdater) backoffLocked() time.Duration {
	backoff := u.cfg.Interval
	for i := 1; i < u.failures && backoff < u.cfg.MaxBackoff; i++ {
		backoff *= 2
	}
	return min(backoff, u.cfg.MaxBackoff)
}

func (u *PriceUpdater) recordSuccess(ctx context.Context, p domain.OraclePrice) {
	u.mu.Lock()
	u.failures = 0
	u.skipTicks = 0
	u.lastSuccess = u.now()
	recovered := u.staleAlerted
	u.staleAlerted = false
	u.mu.Unlock()

	u.logger.Info("price updated",
		slog.String("price", p.Price.String()),
		slog.String("vs_currency", p.VsCurrency),
	)

	if recovered {
		u.alert(ctx, notify.Alert{
			Event:    notify.EventOracleRecovered,
			Severity: notify.SeverityInfo,
			Title:    "Oracle price recovered",
			Message:  fmt.Sprintf("%s/%s updated to %s", p.Asset, p.VsCurrency, p.Price),
		})
	}
}

// checkStale raises a single alarm per stale episode once the last successful
// update is older than StaleAfter.
func (u *PriceUpdater) checkStale(ctx context.Context) {
	if u.cfg.StaleAfter <= 0 {
		return
	}

	u.mu.Lock()
	ref := u.lastSuccess
	if ref.IsZero() {
		ref = u.startedAt
	}
	age := u.now().Sub(ref)
	fire := !ref.IsZero() && age > u.cfg.StaleAfter && !u.staleAlerted
	if fire {
		u.staleAlerted = true
	}
	failures := u.failures
	u.mu.Unlock()

	if !fire {
		return
	}
	u.logger.Warn("oracle price is stale", slog.Duration("age", age))
	u.alert(ctx, notify.Alert{
		Event:    notify.EventOracleStale,
		Severity: notify.SeverityCritical,
		Title:    "Oracle price stale",
		Message: fmt.Sprintf("%s/%s has not been updated for %s (%d consecutive failures)",
			u.cfg.Asset, u.cfg.VsCurrency, age.Round(time.Second), failures),
	})
}

func (u *PriceUpdater) alert(ctx context.Context, a notify.Alert) {
	if u.deps.Alerter == nil {
		return
	}
	if err := u.deps.Alerter.Notify(ctx, a); err != nil {
		u.logger.Warn("alert delivery failed", slog.String("event", a.Event), slog.String("error", err.Error()))
	}
}

// UpdaterStatus is a snapshot of the updater's health.
type UpdaterStatus struct {
	LastSuccess         time.Time
	ConsecutiveFailures int
	Running             bool
}

// Status reports the updater's current state.
func (u *PriceUpdater) Status() UpdaterStatus {
	u.mu.Lock()
	defer u.mu.Unlock()
	return UpdaterStatus{
		LastSuccess:         u.lastSuccess,
		ConsecutiveFailures: u.failures,
		Running:             u.running,
	}
}
