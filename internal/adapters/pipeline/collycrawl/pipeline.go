// Package collycrawl implements the crawl pipeline using the Colly library.
package collycrawl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/target/crawld/internal/core"
	"github.com/target/crawld/internal/domain/model"
)

const defaultTimeout = 30 * time.Second

// Config tunes the Colly collectors built per request.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// Pipeline fetches pages synchronously and emits one document per successful
// response through the progress callback.
type Pipeline struct {
	cfg    Config
	logger *slog.Logger
}

// NewPipeline constructs a Colly-backed crawl pipeline.
func NewPipeline(cfg Config, logger *slog.Logger) *Pipeline {
	if cfg.UserAgent == "" {
		cfg.UserAgent = "crawld/1.0"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if logger != nil {
		logger = logger.With("component", "colly_pipeline")
	}
	return &Pipeline{cfg: cfg, logger: logger}
}

// Run executes the crawl described by req. Crawl mode follows links from the
// single seed within its domain; any other mode fetches each target as an
// independent single page. Partial results are returned even when some
// fetches fail; an error is returned only when nothing was produced.
func (p *Pipeline) Run(
	ctx context.Context,
	req core.CrawlRequest,
	onProgress core.ProgressFunc,
) ([]model.Document, error) {
	if len(req.Targets) == 0 {
		return nil, errors.New("no crawl targets")
	}

	crawlMode := req.Mode == model.ModeCrawl
	totalSteps := len(req.Targets)
	if crawlMode {
		totalSteps = req.Options.Limit
	}

	var docs []model.Document
	var firstErr error

	collector, err := p.buildCollector(ctx, req, crawlMode)
	if err != nil {
		return nil, err
	}

	collector.OnResponse(func(r *colly.Response) {
		if crawlMode && req.Options.Limit > 0 && len(docs) >= req.Options.Limit {
			return
		}
		doc := model.Document{
			Content:  string(r.Body),
			Metadata: model.DocumentMetadata{SourceURL: r.Request.URL.String()},
		}
		docs = append(docs, doc)
		if onProgress != nil {
			onProgress("fetching", totalSteps, &doc)
		}
	})

	collector.OnError(func(r *colly.Response, visitErr error) {
		if firstErr == nil {
			firstErr = fmt.Errorf("fetch %s: %w", r.Request.URL, visitErr)
		}
		if p.logger != nil {
			p.logger.WarnContext(ctx, "fetch failed",
				"url", r.Request.URL.String(),
				"status", r.StatusCode,
				"error", visitErr,
			)
		}
	})

	for _, target := range req.Targets {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if visitErr := collector.Visit(target); visitErr != nil && firstErr == nil {
			firstErr = fmt.Errorf("visit %s: %w", target, visitErr)
		}
	}
	collector.Wait()

	if len(docs) == 0 && firstErr != nil {
		return nil, firstErr
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	return docs, nil
}

func (p *Pipeline) buildCollector(
	ctx context.Context,
	req core.CrawlRequest,
	crawlMode bool,
) (*colly.Collector, error) {
	opts := []colly.CollectorOption{
		colly.UserAgent(p.cfg.UserAgent),
		colly.Async(false),
	}
	if crawlMode {
		if req.Options.MaxDepth > 0 {
			opts = append(opts, colly.MaxDepth(req.Options.MaxDepth))
		}
		domains, err := seedDomains(req.Targets[0])
		if err != nil {
			return nil, err
		}
		opts = append(opts, colly.AllowedDomains(domains...))
	} else {
		// Single-page fetches never follow links.
		opts = append(opts, colly.MaxDepth(1))
	}

	collector := colly.NewCollector(opts...)
	collector.AllowURLRevisit = false
	collector.SetRequestTimeout(p.cfg.Timeout)

	visited := 0
	collector.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
			return
		}
		if crawlMode && req.Options.Limit > 0 {
			if visited >= req.Options.Limit {
				r.Abort()
				return
			}
			visited++
		}
	})

	if crawlMode {
		collector.OnHTML("a[href]", func(e *colly.HTMLElement) {
			// Revisit and depth rules are enforced by the collector.
			_ = e.Request.Visit(e.Attr("href"))
		})
	}

	return collector, nil
}

// seedDomains restricts a crawl to the seed's host, with and without a
// leading www so either form of internal link stays in scope.
func seedDomains(seed string) ([]string, error) {
	parsed, err := url.Parse(seed)
	if err != nil {
		return nil, fmt.Errorf("parse seed url %s: %w", seed, err)
	}
	host := parsed.Hostname()
	if host == "" {
		return nil, fmt.Errorf("seed url %s has no host", seed)
	}
	if len(host) > 4 && host[:4] == "www." {
		return []string{host, host[4:]}, nil
	}
	return []string{host, "www." + host}, nil
}
