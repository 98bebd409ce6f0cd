package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/nexus-trading/scout/internal/api"
	"github.com/nexus-trading/scout/internal/audit"
	"github.com/nexus-trading/scout/internal/bus"
	"github.com/nexus-trading/scout/internal/checks"
	"github.com/nexus-trading/scout/internal/clickhouse"
	"github.com/nexus-trading/scout/internal/config"
	"github.com/nexus-trading/scout/internal/feed"
	"github.com/nexus-trading/scout/internal/model"
	"github.com/nexus-trading/scout/internal/moonshot"
	"github.com/nexus-trading/scout/internal/observability"
	"github.com/nexus-trading/scout/internal/quality"
	"github.com/nexus-trading/scout/internal/risk"
	"github.com/nexus-trading/scout/internal/rules"
	"github.com/nexus-trading/scout/internal/scan"
	"github.com/nexus-trading/scout/internal/snapshot"
	"github.com/nexus-trading/scout/internal/store"
	"github.com/nexus-trading/scout/internal/walletage"
)

// app holds the wired components shared by every command.
type app struct {
	cfg *config.Config

	metrics *observability.Metrics
	health  *observability.Health

	models      store.ModelStore
	checkModels store.CheckModelStore

	rules     *rules.Registry
	evaluator *model.Evaluator
	checks    *checks.Evaluator
	risk      *risk.Engine
	moon      *moonshot.Engine
	enricher  *scan.Enricher

	feedQuality *quality.Monitor

	producer bus.Producer
	trail    *audit.Trail
	verdicts *clickhouse.VerdictWriter

	closers []func()
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{
		cfg:    cfg,
		health: observability.NewHealth(0),
		rules:  rules.Default(),
		checks: checks.NewEvaluator(nil),
		risk:   risk.New(cfg.Risk),
		moon:   moonshot.New(cfg.Moonshot),
	}
	a.feedQuality = quality.NewMonitor(cfg.Feed.LagThreshold, cfg.Feed.StaleTimeout)
	a.health.Register("feed", a.feedQuality.HealthCheck())

	var evalOpts []model.Option
	if cfg.Metrics.Enabled {
		a.metrics = observability.NewMetrics()
		evalOpts = append(evalOpts, model.WithFaultObserver(a.metrics.RuleFault))
	}
	a.evaluator = model.NewEvaluator(a.rules, evalOpts...)

	if err := a.openStore(ctx); err != nil {
		a.Close()
		return nil, err
	}

	ages, err := a.walletAges(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.enricher = scan.NewEnricher(a.risk, a.moon, ages, a.observer())

	if len(cfg.Bus.Brokers) > 0 {
		p, err := bus.NewProducer(cfg.Bus.Brokers, bus.WithInstanceID(cfg.General.InstanceID))
		if err != nil {
			a.Close()
			return nil, err
		}
		a.producer = p
		a.closers = append(a.closers, p.Close)
	}
	a.trail = audit.NewTrail(a.producer, cfg.Audit.Buffer)

	if err := a.openAnalytics(ctx); err != nil {
		a.Close()
		return nil, err
	}

	log.Info().
		Str("store", cfg.Store.Driver).
		Bool("wallet_age", cfg.WalletAge.Enabled).
		Str("cache", cfg.Cache.Driver).
		Bool("metrics", cfg.Metrics.Enabled).
		Bool("kafka", a.producer != nil).
		Bool("analytics", a.verdicts != nil).
		Int("rules", a.rules.Len()).
		Msg("scout: components initialized")
	return a, nil
}

// openStore loads the catalog into memory and, for postgres, upserts its
// models into the database. Check models are always served from the catalog.
func (a *app) openStore(ctx context.Context) error {
	catalog, err := a.loadCatalog()
	if err != nil {
		return err
	}
	a.checkModels = catalog

	if a.cfg.Store.Driver != "postgres" {
		a.models = catalog
		return nil
	}

	pg, err := store.NewPostgresStore(ctx, a.cfg.Store.DSN)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, pg.Close)
	if err := pg.EnsureSchema(ctx); err != nil {
		return err
	}

	seed, err := catalog.List(ctx)
	if err != nil {
		return err
	}
	for _, m := range seed {
		if err := pg.Put(ctx, m); err != nil {
			return fmt.Errorf("seed model %s: %w", m.ID, err)
		}
	}
	a.health.Register("postgres", observability.PingCheck(pg.Ping))
	a.models = pg
	log.Info().Int("seeded", len(seed)).Msg("scout: postgres model store ready")
	return nil
}

func (a *app) loadCatalog() (*store.MemoryStore, error) {
	if a.cfg.Scoring.ModelsFile != "" {
		return store.LoadCatalog(a.cfg.Scoring.ModelsFile)
	}

	// No catalog: serve the default thresholds over every built-in rule.
	m := model.DefaultModel()
	m.ID = "default"
	m.Name = "Default"
	for _, r := range a.rules.All() {
		m.Rules = append(m.Rules, model.Ref(r.ID()))
	}
	st := store.NewMemoryStore()
	if err := st.Put(context.Background(), m); err != nil {
		return nil, err
	}
	if a.cfg.Scoring.DefaultModelID == "" {
		a.cfg.Scoring.DefaultModelID = m.ID
	}
	return st, nil
}

// openAnalytics starts the ClickHouse verdict writer when a DSN is configured.
func (a *app) openAnalytics(ctx context.Context) error {
	ac := a.cfg.Analytics
	if ac.ClickHouseDSN == "" {
		return nil
	}
	client, err := clickhouse.NewClient(ac.ClickHouseDSN)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func() { _ = client.Close() })
	if err := client.EnsureSchema(ctx, ac.Database); err != nil {
		return err
	}
	a.health.Register("clickhouse", observability.PingCheck(client.Ping))

	w := clickhouse.NewVerdictWriter(client, ac.Database, ac.BatchSize, ac.FlushInterval)
	wctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Start(wctx)
	}()
	a.closers = append(a.closers, func() {
		cancel()
		<-done
		_ = w.Close(context.Background())
	})
	a.verdicts = w
	return nil
}

// walletAges builds the cached wallet-age lookup, or nil when disabled.
func (a *app) walletAges(ctx context.Context) (walletage.Lookup, error) {
	wc := a.cfg.WalletAge
	if !wc.Enabled {
		return nil, nil
	}

	clientCfg := walletage.DefaultConfig()
	clientCfg.BaseURL = wc.BaseURL
	clientCfg.APIKey = wc.APIKey
	clientCfg.RateLimitRPS = wc.RateLimitRPS
	clientCfg.Burst = wc.Burst
	clientCfg.Timeout = wc.Timeout
	clientCfg.Retries = wc.Retries
	clientCfg.BreakerFailures = wc.BreakerFailures
	clientCfg.BreakerTimeout = wc.BreakerTimeout
	client := walletage.NewClient(clientCfg)

	var cache walletage.Cache
	switch a.cfg.Cache.Driver {
	case "redis":
		rdb, err := walletage.DialRedis(ctx, a.cfg.Cache.RedisAddr, a.cfg.Cache.RedisDB)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = rdb.Close() })
		a.health.Register("redis", observability.PingCheck(func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}))
		cache = walletage.NewRedisCache(rdb, a.cfg.Cache.TTL)
	default:
		cache = walletage.NewMemoryCache(a.cfg.Cache.MaxEntries, a.cfg.Cache.TTL)
	}

	var observe walletage.CacheObserver
	if a.metrics != nil {
		observe = a.metrics.CacheLookup
	}
	return walletage.NewCached(client, cache, observe), nil
}

// observer returns the metrics as a scan observer, or nil when disabled.
func (a *app) observer() scan.Observer {
	if a.metrics == nil {
		return nil
	}
	return a.metrics
}

// sink fans alerts out to the log, the audit trail and, with kafka, the alert topic.
func (a *app) sink() scan.AlertSink {
	sinks := scan.MultiSink{scan.LogSink{}, a.trail}
	if a.producer != nil {
		sinks = append(sinks, bus.NewAlertPublisher(a.producer, a.cfg.Bus.AlertTopic))
	}
	return sinks
}

func (a *app) job() *scan.Job {
	j := scan.NewJob(scan.Config{
		Workers:        a.cfg.Scan.Workers,
		AlertMinScore:  float64(a.cfg.Scan.AlertMinScore),
		DedupeCapacity: a.cfg.Scan.DedupeCapacity,
	}, a.enricher, a.evaluator, a.sink(), a.observer())
	if a.verdicts != nil {
		j.SetRecorder(a.verdicts)
	}
	return j
}

// snapshots opens the configured snapshot source. The returned stop
// function releases it and reports its counters.
func (a *app) snapshots(ctx context.Context) (<-chan snapshot.Snapshot, func(), error) {
	var observe func(bool)
	if a.metrics != nil {
		observe = a.metrics.FeedFrame
	}

	if a.cfg.Feed.Source == "kafka" {
		c, err := bus.NewConsumer(a.cfg.Bus.Brokers, a.cfg.Bus.GroupID, []string{a.cfg.Bus.SnapshotTopic})
		if err != nil {
			return nil, nil, err
		}
		return bus.Snapshots(ctx, c, feed.DefaultConfig().Buffer, observe), c.Close, nil
	}

	client := a.feed()
	stop := func() {
		log.Info().Interface("feed", client.Stats()).Msg("scout: feed stopped")
	}
	return client.Run(ctx), stop, nil
}

func (a *app) feed() *feed.Client {
	fc := feed.DefaultConfig()
	fc.URL = a.cfg.Feed.URL
	fc.ReconnectMin = a.cfg.Feed.ReconnectMin
	fc.ReconnectMax = a.cfg.Feed.ReconnectMax
	fc.PingInterval = a.cfg.Feed.PingInterval

	var observe func(bool)
	if a.metrics != nil {
		observe = a.metrics.FeedFrame
	}
	return feed.NewClient(fc, observe)
}

func (a *app) server() *api.Server {
	return api.NewServer(api.Deps{
		Models:         a.models,
		CheckModels:    a.checkModels,
		DefaultModelID: a.cfg.Scoring.DefaultModelID,
		Evaluator:      a.evaluator,
		Checks:         a.checks,
		Risk:           a.risk,
		Moon:           a.moon,
		Enricher:       a.enricher,
		Rules:          a.rules,
		Metrics:        a.metrics,
		Health:         a.health,
		Alerts:         a.trail,
	})
}

// selectModels returns the named models, or every stored model when ids is empty.
func (a *app) selectModels(ctx context.Context, ids []string) ([]model.Model, error) {
	if len(ids) == 0 {
		return a.models.List(ctx)
	}
	out := make([]model.Model, 0, len(ids))
	for _, id := range ids {
		m, err := a.models.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// Close releases connections in reverse order of opening.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// openInput returns stdin for "" or "-", else the named file.
func openInput(path string) (io.ReadCloser, error) {
	if path == "" || path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	return f, nil
}

func readSnapshot(path string) (snapshot.Snapshot, error) {
	r, err := openInput(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return snapshot.Decode(r)
}

func readSnapshots(path string) ([]snapshot.Snapshot, error) {
	r, err := openInput(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return snapshot.DecodeAll(r)
}
