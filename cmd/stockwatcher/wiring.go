package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/stockwatcher/internal/clock/system"
	"github.com/JakeFAU/stockwatcher/internal/config"
	collyfetcher "github.com/JakeFAU/stockwatcher/internal/fetcher/colly"
	headlessfetcher "github.com/JakeFAU/stockwatcher/internal/fetcher/headless"
	"github.com/JakeFAU/stockwatcher/internal/id/uuid"
	"github.com/JakeFAU/stockwatcher/internal/notifier"
	memorynotifier "github.com/JakeFAU/stockwatcher/internal/notifier/memory"
	pubsubnotifier "github.com/JakeFAU/stockwatcher/internal/notifier/pubsub"
	snsnotifier "github.com/JakeFAU/stockwatcher/internal/notifier/sns"
	"github.com/JakeFAU/stockwatcher/internal/policy/ratelimit"
	"github.com/JakeFAU/stockwatcher/internal/stock"
)

// buildChecker assembles the checker and returns a cleanup func that
// releases the notifier.
func buildChecker(cfg config.Config, logger *zap.Logger) (*stock.Checker, func(), error) {
	ntf, closeNotifier, err := newNotifier(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := closeNotifier(); err != nil {
			logger.Warn("close notifier failed", zap.Error(err))
		}
	}

	checker := stock.NewChecker(
		stock.DefaultTarget(),
		newFetcherFactory(cfg),
		ntf,
		uuid.New(),
		system.New(),
		stock.Config{
			Topic:              cfg.Topic(),
			VariantConcurrency: cfg.Checker.VariantConcurrency,
		},
		logger.Named("checker"),
	)
	return checker, cleanup, nil
}

// newFetcherFactory returns a factory that builds a fresh fetcher per run,
// headless when enabled. The rate limiter outlives runs so back-to-back
// triggers share one budget.
func newFetcherFactory(cfg config.Config) stock.FetcherFactory {
	var limiter *ratelimit.Limiter
	if cfg.HTTP.RequestsPerSecond > 0 {
		limiter = ratelimit.New(ratelimit.Config{
			RPS:   cfg.HTTP.RequestsPerSecond,
			Burst: cfg.HTTP.Burst,
		})
	}
	return func() (stock.Fetcher, error) {
		if !cfg.Headless.Enabled {
			return ratelimit.Wrap(collyfetcher.New(collyfetcher.Config{
				UserAgent: cfg.HTTP.UserAgent,
				Timeout:   cfg.FetchTimeout(),
			}), limiter), nil
		}
		f, err := headlessfetcher.NewChromedp(headlessfetcher.Config{
			MaxParallel:       cfg.Headless.MaxParallel,
			UserAgent:         cfg.HTTP.UserAgent,
			NavigationTimeout: cfg.NavigationTimeout(),
		})
		if err != nil {
			return nil, fmt.Errorf("init headless fetcher: %w", err)
		}
		return ratelimit.Wrap(f, limiter), nil
	}
}

// newNotifier selects the transport. Cloud clients are dialed on the first
// publish, so credential problems fail that run's publish step instead of
// startup.
func newNotifier(cfg config.Config, logger *zap.Logger) (stock.Notifier, func() error, error) {
	switch cfg.Notifier.Kind {
	case config.NotifierPubSub:
		lazy := notifier.NewLazy(func(ctx context.Context) (notifier.Publisher, error) {
			p, err := pubsubnotifier.Dial(ctx, cfg.PubSub.ProjectID)
			if err != nil {
				return nil, fmt.Errorf("init pubsub notifier: %w", err)
			}
			return p, nil
		})
		return lazy, lazy.Close, nil
	case config.NotifierSNS:
		lazy := notifier.NewLazy(func(ctx context.Context) (notifier.Publisher, error) {
			p, err := snsnotifier.Dial(ctx, cfg.SNS.Region)
			if err != nil {
				return nil, fmt.Errorf("init sns notifier: %w", err)
			}
			return p, nil
		})
		return lazy, lazy.Close, nil
	case config.NotifierLog:
		return memorynotifier.New(logger.Named("notifier")), func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown notifier kind %q", cfg.Notifier.Kind)
	}
}
