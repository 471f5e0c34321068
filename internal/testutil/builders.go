package testutil

import (
	"encoding/json"

	"github.com/target/crawld/internal/domain/model"
)

// EnqueueRequestBuilder provides a fluent interface for building
// EnqueueRequest objects for testing.
type EnqueueRequestBuilder struct {
	req *model.EnqueueRequest
}

// NewEnqueueRequest creates a new EnqueueRequestBuilder with sensible defaults.
func NewEnqueueRequest() *EnqueueRequestBuilder {
	return &EnqueueRequestBuilder{
		req: &model.EnqueueRequest{
			URL:    "https://example.com",
			Mode:   model.ModeCrawl,
			TeamID: "team-1",
		},
	}
}

// WithURL sets the target URL field.
func (b *EnqueueRequestBuilder) WithURL(url string) *EnqueueRequestBuilder {
	b.req.URL = url
	return b
}

// WithMode sets the crawl mode.
func (b *EnqueueRequestBuilder) WithMode(mode string) *EnqueueRequestBuilder {
	b.req.Mode = mode
	return b
}

// WithTeamID sets the billing team.
func (b *EnqueueRequestBuilder) WithTeamID(teamID string) *EnqueueRequestBuilder {
	b.req.TeamID = teamID
	return b
}

// WithCrawlerOptions sets traversal and result-shaping options.
func (b *EnqueueRequestBuilder) WithCrawlerOptions(opts model.CrawlerOptions) *EnqueueRequestBuilder {
	b.req.CrawlerOptions = opts
	return b
}

// WithPageOptions sets the opaque per-page options blob.
func (b *EnqueueRequestBuilder) WithPageOptions(raw string) *EnqueueRequestBuilder {
	b.req.PageOptions = json.RawMessage(raw)
	return b
}

// Build returns the built request.
func (b *EnqueueRequestBuilder) Build() *model.EnqueueRequest {
	req := *b.req
	return &req
}

// BuildPayload returns the request converted to a job payload.
func (b *EnqueueRequestBuilder) BuildPayload() model.CrawlPayload {
	return b.req.Payload()
}
