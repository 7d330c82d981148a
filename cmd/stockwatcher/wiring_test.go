package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/stockwatcher/internal/config"
	collyfetcher "github.com/JakeFAU/stockwatcher/internal/fetcher/colly"
	"github.com/JakeFAU/stockwatcher/internal/notifier"
	memorynotifier "github.com/JakeFAU/stockwatcher/internal/notifier/memory"
	"github.com/JakeFAU/stockwatcher/internal/policy/ratelimit"
	"github.com/JakeFAU/stockwatcher/internal/stock"
)

func testConfig() config.Config {
	var cfg config.Config
	cfg.Server.Port = 8080
	cfg.HTTP.TimeoutSeconds = 5
	cfg.HTTP.UserAgent = "stockwatcher-test"
	cfg.Checker.VariantConcurrency = 1
	cfg.Notifier.Kind = config.NotifierLog
	return cfg
}

// siteFetcher serves fixed pages for the default target.
type siteFetcher struct {
	pages map[string]string
}

func (f *siteFetcher) Fetch(_ context.Context, rawURL string) (stock.Page, error) {
	body, ok := f.pages[rawURL]
	if !ok {
		return stock.Page{}, fmt.Errorf("no page for %s", rawURL)
	}
	return stock.Page{URL: rawURL, StatusCode: http.StatusOK, Body: []byte(body)}, nil
}

func (f *siteFetcher) Close() error { return nil }

func inStockSite() *siteFetcher {
	target := stock.DefaultTarget()
	productURL := target.BaseURL + "/products/" + target.ItemType
	pages := make(map[string]string)
	pages[target.CollectionURL()] = `<html><body><a class="product-item__action-button button" href="/products/` +
		target.ItemType + `">View</a></body></html>`
	pages[productURL] = `<html><body>product</body></html>`
	pages[productURL+".json"] = `{"product":{"variants":[{"id":111}]}}`
	pages[target.VariantURL("111")] = `<html><body><button class="product-form__add-button button" disabled>Add</button></body></html>`
	return &siteFetcher{pages: pages}
}

type fixedClock struct{}

func (fixedClock) Now() time.Time { return time.Unix(0, 0).UTC() }

type fixedID struct{}

func (fixedID) NewID() (string, error) { return "run-1", nil }

func TestNewFetcherFactory_Static(t *testing.T) {
	t.Parallel()

	factory := newFetcherFactory(testConfig())
	f, err := factory()
	require.NoError(t, err)
	require.IsType(t, &collyfetcher.Fetcher{}, f)
	require.NoError(t, f.Close())
}

func TestNewFetcherFactory_RateLimited(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.HTTP.RequestsPerSecond = 5
	cfg.HTTP.Burst = 2
	f, err := newFetcherFactory(cfg)()
	require.NoError(t, err)
	require.IsType(t, &ratelimit.Fetcher{}, f)
	require.NoError(t, f.Close())
}

func TestNewFetcherFactory_HeadlessInitErrorIsReturned(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Headless.Enabled = true
	cfg.Headless.MaxParallel = -1
	f, err := newFetcherFactory(cfg)()
	require.ErrorContains(t, err, "init headless fetcher")
	require.Nil(t, f)
}

func TestNewNotifier_Log(t *testing.T) {
	t.Parallel()

	n, closeFn, err := newNotifier(testConfig(), zap.NewNop())
	require.NoError(t, err)
	require.IsType(t, &memorynotifier.Publisher{}, n)
	require.NoError(t, closeFn())
}

func TestNewNotifier_CloudKindsDialLazily(t *testing.T) {
	t.Parallel()

	for _, kind := range []string{config.NotifierPubSub, config.NotifierSNS} {
		cfg := testConfig()
		cfg.Notifier.Kind = kind
		n, closeFn, err := newNotifier(cfg, zap.NewNop())
		require.NoError(t, err, kind)
		require.IsType(t, &notifier.Lazy{}, n, kind)
		require.NoError(t, closeFn(), kind)
	}
}

func TestNewNotifier_UnknownKind(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Notifier.Kind = "carrier-pigeon"
	_, _, err := newNotifier(cfg, zap.NewNop())
	require.ErrorContains(t, err, "carrier-pigeon")
}

func TestBuildChecker_LogNotifier(t *testing.T) {
	t.Parallel()

	checker, cleanup, err := buildChecker(testConfig(), zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, checker)
	cleanup()
}

func TestPubSubDialFailureFailsThePublishStep(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "/nonexistent/creds.json")
	t.Setenv("PUBSUB_EMULATOR_HOST", "")

	cfg := testConfig()
	cfg.Notifier.Kind = config.NotifierPubSub
	cfg.PubSub.ProjectID = "stock-project"
	cfg.PubSub.Topic = "stock-alerts"

	// Startup succeeds without credentials.
	_, cleanup, err := buildChecker(cfg, zap.NewNop())
	require.NoError(t, err)
	cleanup()

	n, closeFn, err := newNotifier(cfg, zap.NewNop())
	require.NoError(t, err)
	defer func() { _ = closeFn() }()

	site := inStockSite()
	checker := stock.NewChecker(
		stock.DefaultTarget(),
		func() (stock.Fetcher, error) { return site, nil },
		n,
		fixedID{},
		fixedClock{},
		stock.Config{Topic: cfg.Topic(), VariantConcurrency: 1},
		zap.NewNop(),
	)

	res := checker.Run(context.Background())
	require.Equal(t, stock.OutcomeFailed, res.Outcome)
	require.ErrorIs(t, res.Err, stock.ErrPublish)
	require.ErrorContains(t, res.Err, "init pubsub notifier")
	require.Equal(t, map[string]string{"111": stock.DefaultTarget().VariantURL("111")}, res.InStock)
	require.NoError(t, exitError(res, false))
}

func TestExitError(t *testing.T) {
	t.Parallel()

	failed := stock.Result{
		Outcome: stock.OutcomeFailed,
		Err:     fmt.Errorf("%w: boom", stock.ErrPublish),
	}

	require.NoError(t, exitError(failed, false))
	require.NoError(t, exitError(stock.Result{Outcome: stock.OutcomeOutOfStock}, true))
	require.NoError(t, exitError(stock.Result{Outcome: stock.OutcomeNotified}, true))

	err := exitError(failed, true)
	require.True(t, errors.Is(err, errRunFailed))
	require.True(t, errors.Is(err, stock.ErrPublish))
}
