package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobStateValidAndTerminal(t *testing.T) {
	for _, s := range []JobState{JobStateWaiting, JobStateActive, JobStateCompleted, JobStateFailed} {
		assert.True(t, s.Valid(), string(s))
	}
	assert.False(t, JobState("paused").Valid())

	assert.False(t, JobStateWaiting.Terminal())
	assert.False(t, JobStateActive.Terminal())
	assert.True(t, JobStateCompleted.Terminal())
	assert.True(t, JobStateFailed.Terminal())
}

func TestCrawlPayloadValidate(t *testing.T) {
	tests := []struct {
		name    string
		payload CrawlPayload
		errMsg  string
	}{
		{
			name:    "valid",
			payload: CrawlPayload{URL: "https://example.com", Mode: ModeCrawl, TeamID: "t"},
		},
		{
			name:    "missing url",
			payload: CrawlPayload{TeamID: "t"},
			errMsg:  "url is required",
		},
		{
			name:    "whitespace url",
			payload: CrawlPayload{URL: "   ", TeamID: "t"},
			errMsg:  "url is required",
		},
		{
			name:    "missing team",
			payload: CrawlPayload{URL: "https://example.com"},
			errMsg:  "team id is required",
		},
		{
			name: "negative limit",
			payload: CrawlPayload{
				URL:            "https://example.com",
				TeamID:         "t",
				CrawlerOptions: CrawlerOptions{Limit: -1},
			},
			errMsg: "crawler limit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.payload.Validate()
			if tt.errMsg == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.errMsg)
		})
	}
}

func TestCrawlPayloadTargets(t *testing.T) {
	t.Run("crawl mode keeps the seed whole", func(t *testing.T) {
		p := CrawlPayload{URL: " https://a.example.com,https://b.example.com ", Mode: ModeCrawl}
		assert.Equal(t, []string{"https://a.example.com,https://b.example.com"}, p.Targets())
	})

	t.Run("other modes split on commas", func(t *testing.T) {
		p := CrawlPayload{URL: "https://a.example.com, https://b.example.com ,, https://c.example.com", Mode: "scrape"}
		assert.Equal(t, []string{
			"https://a.example.com",
			"https://b.example.com",
			"https://c.example.com",
		}, p.Targets())
	})

	t.Run("empty segments drop out", func(t *testing.T) {
		p := CrawlPayload{URL: " , ,", Mode: "scrape"}
		assert.Empty(t, p.Targets())
	})
}

func TestEnqueueRequestPayloadRoundTrip(t *testing.T) {
	req := &EnqueueRequest{
		URL:            "https://example.com",
		Mode:           ModeCrawl,
		CrawlerOptions: CrawlerOptions{ReturnOnlyURLs: true, Limit: 5, MaxDepth: 2},
		PageOptions:    json.RawMessage(`{"waitFor":100}`),
		TeamID:         "team-9",
	}

	require.NoError(t, req.Validate())

	p := req.Payload()
	assert.Equal(t, req.URL, p.URL)
	assert.Equal(t, req.Mode, p.Mode)
	assert.Equal(t, req.CrawlerOptions, p.CrawlerOptions)
	assert.Equal(t, req.TeamID, p.TeamID)
	assert.JSONEq(t, `{"waitFor":100}`, string(p.PageOptions))
}

func TestJobErrorMarshalResult(t *testing.T) {
	raw := JobError{Kind: FailureBilling, Message: "insufficient credits"}.MarshalResult()

	var decoded JobError
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, FailureBilling, decoded.Kind)
	assert.Equal(t, "insufficient credits", decoded.Message)
}

func TestDocumentHelpers(t *testing.T) {
	doc := Document{Content: "  hello  ", Metadata: DocumentMetadata{SourceURL: "https://example.com/a"}}
	assert.True(t, doc.HasContent())
	assert.False(t, Document{Content: "   "}.HasContent())

	stripped := doc.URLOnly()
	assert.Empty(t, stripped.Content)
	assert.Equal(t, "https://example.com/a", stripped.Metadata.SourceURL)
}
