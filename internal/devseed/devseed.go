// Package devseed populates a development database with example crawl jobs
// so the queue surface has something to show on a fresh checkout.
package devseed

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/target/crawld/internal/data"
	"github.com/target/crawld/internal/domain/model"
)

// Options groups dependencies for development seeding.
type Options struct {
	DB     *sql.DB
	Logger *slog.Logger
}

// seedPayloads are the example jobs inserted into an empty development queue.
var seedPayloads = []model.CrawlPayload{
	{
		URL:    "https://example.com",
		Mode:   model.ModeCrawl,
		TeamID: "dev-team",
		CrawlerOptions: model.CrawlerOptions{
			Limit:    10,
			MaxDepth: 2,
		},
	},
	{
		URL:    "https://example.com/a,https://example.com/b",
		Mode:   "scrape",
		TeamID: "dev-team",
	},
	{
		URL:            "https://example.org",
		Mode:           model.ModeCrawl,
		TeamID:         "dev-team",
		CrawlerOptions: model.CrawlerOptions{ReturnOnlyURLs: true, Limit: 5},
		PageOptions:    json.RawMessage(`{"waitFor":0}`),
	},
}

// Run inserts the example jobs when the queue is completely empty. Seeding a
// non-empty database is a no-op so repeated dev restarts don't pile up jobs.
func Run(ctx context.Context, opts Options) error {
	if opts.DB == nil {
		return fmt.Errorf("devseed requires a database handle")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "devseed")

	var total int
	if err := opts.DB.QueryRowContext(ctx, "SELECT count(*) FROM jobs").Scan(&total); err != nil {
		return fmt.Errorf("count jobs: %w", err)
	}
	if total > 0 {
		logger.InfoContext(ctx, "queue not empty; skipping dev seed", "jobs", total)
		return nil
	}

	repo := data.NewJobRepo(opts.DB, data.RepoConfig{Logger: logger})
	for _, payload := range seedPayloads {
		job, err := repo.Enqueue(ctx, payload)
		if err != nil {
			return fmt.Errorf("seed job for %s: %w", payload.URL, err)
		}
		logger.InfoContext(ctx, "seeded dev job", "job_id", job.ID, "url", payload.URL, "mode", payload.Mode)
	}

	logger.InfoContext(ctx, "development seed complete", "jobs", len(seedPayloads))
	return nil
}
