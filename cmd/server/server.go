package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"fenrir/internal/api"
	"fenrir/internal/book"
	"fenrir/internal/clock"
	"fenrir/internal/config"
	"fenrir/internal/engine"
	"fenrir/internal/marketdata"
	"fenrir/internal/persistence"
	"fenrir/internal/sequencer"
	"fenrir/internal/stream"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml (defaults to built-in defaults)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	configureLogging(cfg.Logging)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	t, ctx := tomb.WithContext(ctx)

	hub := stream.NewHub()
	hubDone := make(chan struct{})
	t.Go(func() error {
		hub.Run(hubDone)
		return nil
	})

	pub := marketdata.NewPublisher(marketdata.Config{
		TapeSize:         cfg.MarketData.TapeSize,
		CandleRetention:  cfg.MarketData.CandleRetention,
		DeltaThreshold:   cfg.MarketData.DeltaThreshold,
		SnapshotInterval: cfg.MarketData.SnapshotInterval,
		DefaultDepth:     cfg.MarketData.DefaultDepth,
		StatsWindow:      cfg.MarketData.StatsWindow,
	}, hub)

	store := persistence.NewMemStore(nil)
	deadLetter := persistence.NewLoggingDeadLetter()
	sink := persistence.New(persistence.Config{
		BatchSize:      cfg.Persistence.BatchSize,
		BatchInterval:  cfg.Persistence.BatchInterval,
		QueueCapacity:  cfg.Persistence.QueueCapacity,
		RetryBaseDelay: cfg.Persistence.RetryBaseDelay,
		RetryMaxDelay:  cfg.Persistence.RetryMaxDelay,
		MaxRetries:     cfg.Persistence.MaxRetries,
	}, store, deadLetter, persistence.NewMetrics(nil))
	t.Go(func() error { return sink.Run(t) })

	sequencers := make(map[string]*sequencer.Sequencer, len(cfg.Symbols))
	engines := make(map[string]*engine.Engine, len(cfg.Symbols))

	for _, symbol := range cfg.Symbols {
		eng := engine.New(symbol)
		engines[symbol] = eng

		seq := sequencer.New(eng, clock.Real, cfg.Channels.IntakeCapacity, pub, sink)
		sequencers[symbol] = seq
		t.Go(func() error { return seq.Run(t) })

		pub.Register(symbol, snapshotSourceFor(eng, cfg.MarketData.DefaultDepth))
	}

	snapshotCtx, cancelSnapshot := context.WithCancel(ctx)
	t.Go(func() error {
		pub.RunSnapshotLoop(snapshotCtx)
		return nil
	})

	lookup := func(symbol string) (*sequencer.Sequencer, bool) {
		seq, ok := sequencers[symbol]
		return seq, ok
	}

	srv := api.NewServer(lookup, pub, hub)
	srv.Backpressuring = cfg.API.Backpressuring

	httpServer := &http.Server{Addr: cfg.API.ListenAddr, Handler: srv.Router()}
	t.Go(func() error {
		log.Info().Str("addr", cfg.API.ListenAddr).Msg("api server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	_ = httpServer.Shutdown(shutdownCtx)
	cancelSnapshot()
	close(hubDone)

	t.Kill(nil)
	if err := t.Wait(); err != nil {
		log.Error().Err(err).Msg("shutdown with error")
	}
}

func snapshotSourceFor(eng *engine.Engine, depth int) func() (book.Snapshot, bool) {
	return func() (book.Snapshot, bool) {
		return eng.Book.Snapshot(depth), true
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func configureLogging(cfg config.LoggingConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}
