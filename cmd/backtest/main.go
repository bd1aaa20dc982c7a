package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/grafana/pyroscope-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"simtrade/internal/bus"
	"simtrade/internal/core"
	"simtrade/internal/feed"
	"simtrade/internal/instrument"
	"simtrade/internal/obs"
	"simtrade/internal/ops"
	"simtrade/internal/report"
	"simtrade/internal/risk"
	"simtrade/internal/state"
	"simtrade/internal/store"
	"simtrade/internal/strategy"
	"simtrade/pkg/conn"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "Path to config file (json, yaml or toml)")
	flag.StringVar(&configPath, "c", "config.yaml", "Shorthand for -config")
	expectPath := flag.String("expect", "", "Snapshot to compare the final positions against")
	configReload := flag.Duration("config-reload-interval", 2*time.Second, "Risk config reload interval (0=disable)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loaded, err := ops.Load(configPath)
	if err != nil {
		logs.Warnf("[Main] using default config, err: %+v", err)
		if loaded, err = ops.Load(""); err != nil {
			log.Fatalf("default config invalid: %v", err)
		}
	}

	if loaded.Profiling.Enabled {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: loaded.Profiling.AppName,
			ServerAddress:   loaded.Profiling.ServerAddress,
			Tags: map[string]string{
				"env": "local",
			},
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			log.Fatalf("pyroscope start failed: %v", err)
		}
		defer func() {
			_ = profiler.Stop()
		}()
	}

	if err := run(ctx, loaded, *configReload, *expectPath); err != nil {
		log.Fatalf("backtest failed: %v", err)
	}
}

func run(ctx context.Context, loaded ops.Loaded, reload time.Duration, expectPath string) error {
	catalog := instrument.NewCatalog()
	instrument.Configure(catalog, loaded.Backtest.Meta, loaded.Backtest.Rules)

	metrics := obs.NewMetrics()
	ledger := risk.NewLedger(loaded.Risk)

	if loaded.Metrics.Addr != "" {
		registry := obs.NewRegistry(obs.NewCollector(metrics, ledger.Gauges))
		srv := serveMetrics(loaded.Metrics.Addr, registry)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	if loaded.Path != "" && reload > 0 {
		go ops.Watch(ctx, loaded.Path, reload, func(l ops.Loaded) {
			ledger.SetConfig(l.Risk)
			logs.Infof("[Main] risk config updated: %+v", l.Risk)
		})
	}

	opts := []core.Option{core.WithMetrics(metrics)}

	if loaded.Report.Enabled {
		tradeLog, err := report.OpenTradeLog(loaded.Report.Dir)
		if err != nil {
			return err
		}
		defer func() {
			if err := tradeLog.Close(); err != nil {
				logs.Errorf("[Main] close trade log, err: %+v", err)
			}
		}()
		opts = append(opts, core.WithTradeLog(tradeLog))
	}

	var st *store.Store
	if loaded.Store.Driver != "" {
		client, err := conn.New(conn.Option{Driver: loaded.Store.Driver, ConnString: loaded.Store.DSN})
		if err != nil {
			return err
		}
		defer client.Close()

		st, err = store.New(client.DB())
		if err != nil {
			return err
		}
		if _, err := st.StartRun(ctx, loaded.Instruments, loaded.Path); err != nil {
			return err
		}

		queue := bus.NewQueue(loaded.Store.QueueSize)
		consumed := make(chan struct{})
		go func() {
			defer close(consumed)
			st.Consume(context.Background(), queue)
		}()
		defer func() {
			queue.Close()
			<-consumed
			if err := st.FinishRun(context.Background()); err != nil {
				logs.Errorf("[Main] finish run, err: %+v", err)
			}
		}()
		opts = append(opts, core.WithPublisher(bus.NewPublisher(queue, metrics), loaded.Store.Snapshot))
	}

	strat := strategy.NewDualMA(loaded.Strategy.Fast, loaded.Strategy.Slow, decimal.NewFromFloat(loaded.Strategy.Threshold))
	source, err := newSource(loaded)
	if err != nil {
		return err
	}
	eng, err := core.New(catalog, ledger, source, strat, loaded.BarInterval, opts...)
	if err != nil {
		return err
	}

	logs.Infof("[Main] backtest start, instruments=%v feed=%s run_for=%s", loaded.Instruments, loaded.Feed.Kind, loaded.RunFor)
	runErr := eng.Run(ctx, loaded.RunFor)
	if runErr != nil {
		logs.Errorf("[Main] feed stopped with error: %+v", runErr)
	}

	if loaded.Report.Enabled {
		if err := report.NewWriter(loaded.Report.Dir).WriteAll(eng.Stats().Summary(catalog), ledger); err != nil {
			return err
		}
		logs.Infof("[Main] reports written to %s", loaded.Report.Dir)
	}

	snapshot := ledger.Snapshot()
	if st != nil {
		snapshot.RunID = st.RunID()
	}
	if path := loaded.Report.Snapshot; path != "" {
		if !filepath.IsAbs(path) {
			path = filepath.Join(loaded.Report.Dir, path)
		}
		if err := state.WriteSnapshot(path, snapshot); err != nil {
			return err
		}
	}
	if expectPath != "" {
		expected, err := state.ReadSnapshot(expectPath)
		if err != nil {
			return err
		}
		if err := state.CompareSnapshots(expected, snapshot); err != nil {
			return err
		}
		logs.Infof("[Main] positions match %s", expectPath)
	}

	logMetrics(metrics.Snapshot())
	return runErr
}

func newSource(loaded ops.Loaded) (feed.Source, error) {
	var source feed.Source
	if loaded.Feed.Kind == ops.FeedCSV {
		source = feed.NewCSVSource(loaded.Backtest.File, loaded.Instruments, loaded.Backtest.Speed)
	} else {
		source = feed.NewSynthetic(loaded.Instruments, loaded.Feed.Rounds, loaded.Feed.Interval, loaded.Feed.Seed)
	}
	if !loaded.Feed.Chaos.Enabled() {
		return source, nil
	}
	logs.Warnf("[Main] chaos enabled on the feed: %+v", loaded.Feed.Chaos)
	return feed.NewChaos(source, loaded.Feed.Chaos)
}

func serveMetrics(addr string, registry *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logs.Errorf("[Main] metrics server, err: %+v", err)
		}
	}()
	logs.Infof("[Main] metrics listening on %s", addr)
	return srv
}

func logMetrics(snap obs.Snapshot) {
	logs.Infof("[Main] ticks=%d unmatched_fills=%d queue_drops=%d", snap.Ticks, snap.UnmatchedFills, snap.QueueDrops)
	for status, n := range snap.StatusCounts {
		logs.Infof("[Main] status %s=%d", status, n)
	}
	for reason, n := range snap.RiskReasonCounts {
		logs.Infof("[Main] risk %s=%d", reason, n)
	}
}
