package cli

import (
	"context"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"homescore/internal/alerts"
	"homescore/internal/config"
	"homescore/internal/lock"
	"homescore/internal/logger"
	"homescore/internal/metrics"
	"homescore/internal/model"
	"homescore/internal/repository"
	"homescore/internal/service"
	"homescore/internal/state"
)

const lockTTL = 30 * time.Second

// dataStore is what the commands need from the data-access layer.
type dataStore interface {
	repository.Repository
	ClientIDs(ctx context.Context) ([]string, error)
}

// app holds the wired dependencies of one command invocation.
type app struct {
	cfg     *config.Config
	log     *logrus.Logger
	repo    dataStore
	store   state.Store
	metrics *metrics.Registry
	svc     *service.Service
	closers []func() error
}

// openApp loads configuration and connects every backend it names:
// Postgres or an in-memory repository, the Pebble report store, Redis locks
// and the alert sinks.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	a := &app{
		cfg:     cfg,
		log:     logger.NewWithOutput(cfg.LogLevel, os.Stderr),
		metrics: metrics.NewRegistry(),
	}
	if err := a.open(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) open(ctx context.Context) error {
	cfg := a.cfg
	if cfg.DatabaseURL != "" {
		pg, err := repository.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, pg.Close)
		a.repo = pg
	} else {
		mem := repository.NewMemory()
		if err := seed(ctx, mem, rootListings, rootInteractions); err != nil {
			return err
		}
		a.repo = mem
	}

	st, err := state.NewPebbleStore(cfg.PebbleDir)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, st.Close)
	a.store = st

	var locker lock.Locker
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return errors.Wrapf(err, "redis ping %s", cfg.RedisAddr)
		}
		a.closers = append(a.closers, rdb.Close)
		locker = lock.NewRedisLocker(rdb, lockTTL)
	}

	var pubs []alerts.Publisher
	if cfg.AlertLogDir != "" {
		fp, err := alerts.NewFilePublisher(cfg.AlertLogDir, "deal-alerts.jsonl")
		if err != nil {
			return err
		}
		pubs = append(pubs, fp)
	}
	if cfg.KafkaBootstrap != "" {
		kp := alerts.NewKafkaPublisher(cfg.KafkaBootstrap, cfg.DealAlertTopic)
		a.closers = append(a.closers, kp.Close)
		pubs = append(pubs, kp)
	}

	a.svc = service.New(a.repo, a.store, locker, alerts.NewMultiPublisher(pubs...), a.metrics, a.log, service.Options{
		CMA:        cfg.CMAPolicy(),
		Deal:       cfg.DealPolicy(),
		Preference: cfg.PreferencePolicy(),
		Workers:    cfg.Workers,
	})
	a.log.WithFields(logrus.Fields{
		"postgres": cfg.DatabaseURL != "",
		"redis":    cfg.RedisAddr != "",
		"kafka":    cfg.KafkaBootstrap != "",
		"pebble":   cfg.PebbleDir,
	}).Debug("backends ready")
	return nil
}

// Close releases backends in reverse order of opening.
func (a *app) Close() error {
	var err error
	for i := len(a.closers) - 1; i >= 0; i-- {
		err = errors.CombineErrors(err, a.closers[i]())
	}
	a.closers = nil
	return err
}

// window applies flag overrides to the configured default window.
func (a *app) window(radius float64, days int) model.Window {
	w := a.cfg.Window()
	if radius > 0 {
		w.RadiusMiles = radius
	}
	if days > 0 {
		w.DayRange = days
	}
	return w
}
