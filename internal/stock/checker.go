package stock

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/stockwatcher/internal/metrics"
	"github.com/JakeFAU/stockwatcher/internal/page"
)

// Config controls Checker behavior.
type Config struct {
	// Topic is the notification destination. It is not validated here; an
	// empty topic surfaces as a publish failure.
	Topic string
	// VariantConcurrency bounds parallel variant checks within one product.
	// Values below 1 mean strictly sequential.
	VariantConcurrency int
}

// Checker runs the scrape-and-notify pipeline for one Target.
type Checker struct {
	target     Target
	newFetcher FetcherFactory
	notifier   Notifier
	ids        IDGenerator
	clock      Clock
	cfg        Config
	logger     *zap.Logger
}

// NewChecker constructs a Checker.
func NewChecker(
	target Target,
	newFetcher FetcherFactory,
	notifier Notifier,
	ids IDGenerator,
	clock Clock,
	cfg Config,
	logger *zap.Logger,
) *Checker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.VariantConcurrency < 1 {
		cfg.VariantConcurrency = 1
	}
	return &Checker{
		target:     target,
		newFetcher: newFetcher,
		notifier:   notifier,
		ids:        ids,
		clock:      clock,
		cfg:        cfg,
		logger:     logger,
	}
}

// Run performs one stock check. It never returns an error: failures are
// logged and reported through Result.Err with Outcome set to OutcomeFailed.
func (c *Checker) Run(ctx context.Context) (res Result) {
	res.StartedAt = c.clock.Now()
	res.RunID = c.newRunID()
	logger := c.logger.With(zap.String("run_id", res.RunID))

	defer func() {
		if rec := recover(); rec != nil {
			res.Outcome = OutcomeFailed
			res.Err = fmt.Errorf("stock check panicked: %v", rec)
			logger.Error("Error occurred", zap.Any("panic", rec), zap.Stack("stacktrace"))
		}
		res.FinishedAt = c.clock.Now()
		if res.Failed() {
			metrics.ObserveRunFailure(ErrorKind(res.Err))
		}
		metrics.ObserveRun(string(res.Outcome), res.FinishedAt.Sub(res.StartedAt))
	}()

	logger.Info("stock check started",
		zap.String("collection_url", c.target.CollectionURL()),
		zap.String("item_type", c.target.ItemType),
	)
	if err := c.check(ctx, logger, &res); err != nil {
		res.Outcome = OutcomeFailed
		res.Err = err
		logger.Error("Error occurred",
			zap.String("kind", ErrorKind(err)),
			zap.Error(err),
			zap.Stack("stacktrace"),
		)
	}
	return res
}

func (c *Checker) newRunID() string {
	if c.ids == nil {
		return ""
	}
	id, err := c.ids.NewID()
	if err != nil {
		c.logger.Warn("run id generation failed", zap.Error(err))
		return ""
	}
	return id
}

func (c *Checker) check(ctx context.Context, logger *zap.Logger, res *Result) error {
	fetcher, err := c.newFetcher()
	if err != nil {
		return fmt.Errorf("%w: create fetcher: %w", ErrFetch, err)
	}
	defer func() {
		if cerr := fetcher.Close(); cerr != nil {
			logger.Warn("close fetcher failed", zap.Error(cerr))
		}
	}()

	listing, err := c.fetch(ctx, fetcher, c.target.CollectionURL())
	if err != nil {
		return err
	}
	doc, err := parseDocument(listing)
	if err != nil {
		return err
	}
	links, err := doc.Links(c.target.ProductLinkXPath)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrParse, listing.URL, err)
	}
	if len(links) == 0 {
		logger.Info("product not found on the website, it may have been taken down",
			zap.String("url", listing.URL))
		res.Outcome = OutcomeProductNotFound
		return nil
	}

	inStock := make(map[string]string)
	for _, link := range links {
		if !strings.Contains(link.Markup, c.target.ItemType) {
			continue
		}
		variants, err := c.loadVariants(ctx, fetcher, listing.URL, link)
		if err != nil {
			return err
		}
		if err := c.checkVariants(ctx, fetcher, variants, inStock, logger); err != nil {
			return err
		}
	}
	res.InStock = inStock

	if len(inStock) == 0 {
		logger.Info("no variants in stock, try again later")
		res.Outcome = OutcomeOutOfStock
		return nil
	}

	logger.Info("found variants in stock, publishing notification", zap.Int("variants", len(inStock)))
	res.Message = FormatMessage(inStock)
	messageID, err := c.notifier.Publish(ctx, c.cfg.Topic, res.Message)
	if err != nil {
		return fmt.Errorf("%w: topic %q: %w", ErrPublish, c.cfg.Topic, err)
	}
	res.MessageID = messageID
	res.Outcome = OutcomeNotified
	logger.Info("notification published",
		zap.String("message_id", messageID),
		zap.String("topic", c.cfg.Topic),
	)
	return nil
}

// loadVariants follows a product link and decodes the product's variant
// metadata from "<product page URL>.json".
func (c *Checker) loadVariants(ctx context.Context, fetcher Fetcher, baseURL string, link page.Link) ([]Variant, error) {
	productURL, err := resolveLink(baseURL, link.Href)
	if err != nil {
		return nil, err
	}
	product, err := c.fetch(ctx, fetcher, productURL)
	if err != nil {
		return nil, err
	}

	metaURL := product.URL + ".json"
	meta, err := c.fetch(ctx, fetcher, metaURL)
	if err != nil {
		return nil, err
	}
	variants, err := decodeVariants(meta.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrParse, metaURL, err)
	}
	c.logger.Debug("variants loaded", zap.String("url", metaURL), zap.Int("count", len(variants)))
	return variants, nil
}

func (c *Checker) checkVariants(
	ctx context.Context,
	fetcher Fetcher,
	variants []Variant,
	inStock map[string]string,
	logger *zap.Logger,
) error {
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.VariantConcurrency)

	for _, variant := range variants {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			id := string(variant.ID)
			variantURL := c.target.VariantURL(id)
			available, err := c.checkVariant(gctx, fetcher, variantURL)
			if err != nil {
				return err
			}
			logger.Debug("variant checked",
				zap.String("variant_id", id),
				zap.Bool("in_stock", available),
			)
			if available {
				mu.Lock()
				inStock[id] = variantURL
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("check variants: %w", err)
	}
	return nil
}

func (c *Checker) checkVariant(ctx context.Context, fetcher Fetcher, variantURL string) (bool, error) {
	p, err := c.fetch(ctx, fetcher, variantURL)
	if err != nil {
		return false, err
	}
	doc, err := parseDocument(p)
	if err != nil {
		return false, err
	}
	disabled, err := doc.Disabled(c.target.AddToCartXPath)
	switch {
	case errors.Is(err, page.ErrNoMatch):
		return false, fmt.Errorf("%w: add-to-cart control on %s: %w", ErrElementNotFound, variantURL, err)
	case err != nil:
		return false, fmt.Errorf("%w: %s: %w", ErrParse, variantURL, err)
	}
	available := c.target.InStock(disabled)
	metrics.ObserveVariant(available)
	return available, nil
}

// fetch wraps transport failures and non-success statuses in ErrFetch.
func (c *Checker) fetch(ctx context.Context, fetcher Fetcher, rawURL string) (Page, error) {
	start := c.clock.Now()
	p, err := fetcher.Fetch(ctx, rawURL)
	elapsed := c.clock.Now().Sub(start)
	if err != nil {
		metrics.ObserveFetch(rawURL, "error", elapsed)
		return Page{}, fmt.Errorf("%w: %s: %w", ErrFetch, rawURL, err)
	}
	metrics.ObserveFetch(rawURL, strconv.Itoa(p.StatusCode), elapsed)
	if p.StatusCode >= 300 {
		return Page{}, fmt.Errorf("%w: %s: unexpected status %d", ErrFetch, rawURL, p.StatusCode)
	}
	if p.URL == "" {
		p.URL = rawURL
	}
	return p, nil
}

func parseDocument(p Page) (*page.Document, error) {
	doc, err := page.Parse(p.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrParse, p.URL, err)
	}
	return doc, nil
}

func resolveLink(baseURL, href string) (string, error) {
	if strings.TrimSpace(href) == "" {
		return "", fmt.Errorf("%w: product link on %s has no href", ErrParse, baseURL)
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("%w: base url %q: %w", ErrParse, baseURL, err)
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", fmt.Errorf("%w: product link %q: %w", ErrParse, href, err)
	}
	return base.ResolveReference(ref).String(), nil
}

func decodeVariants(body []byte) ([]Variant, error) {
	var doc productDocument
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode product json: %w", err)
	}
	if doc.Product == nil {
		return nil, errors.New("product json has no product object")
	}
	if doc.Product.Variants == nil {
		return nil, errors.New("product json has no variants array")
	}
	for i, v := range doc.Product.Variants {
		if v.ID == "" {
			return nil, fmt.Errorf("variant %d has no id", i)
		}
	}
	return doc.Product.Variants, nil
}
