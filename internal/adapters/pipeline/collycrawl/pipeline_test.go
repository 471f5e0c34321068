package collycrawl

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/crawld/internal/core"
	"github.com/target/crawld/internal/domain/model"
)

func newSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><body>home <a href="/one">one</a> <a href="/two">two</a></body></html>`)
	})
	mux.HandleFunc("/one", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><body>page one</body></html>`)
	})
	mux.HandleFunc("/two", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><body>page two</body></html>`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func sourceURLs(docs []model.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.Metadata.SourceURL
	}
	return out
}

func TestPipelineSinglePageTargets(t *testing.T) {
	srv := newSite(t)
	p := NewPipeline(Config{}, nil)

	var progressDocs int
	docs, err := p.Run(context.Background(), core.CrawlRequest{
		Targets: []string{srv.URL + "/one", srv.URL + "/two"},
		Mode:    "scrape",
	}, func(_ string, _ int, doc *model.Document) {
		if doc != nil {
			progressDocs++
		}
	})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Contains(t, docs[0].Content, "page one")
	assert.Contains(t, docs[1].Content, "page two")
	assert.Equal(t, 2, progressDocs)
}

func TestPipelineSingleModeDoesNotFollowLinks(t *testing.T) {
	srv := newSite(t)
	p := NewPipeline(Config{}, nil)

	docs, err := p.Run(context.Background(), core.CrawlRequest{
		Targets: []string{srv.URL + "/"},
		Mode:    "scrape",
	}, nil)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Contains(t, docs[0].Content, "home")
}

func TestPipelineCrawlModeFollowsLinks(t *testing.T) {
	srv := newSite(t)
	p := NewPipeline(Config{}, nil)

	docs, err := p.Run(context.Background(), core.CrawlRequest{
		Targets: []string{srv.URL + "/"},
		Mode:    model.ModeCrawl,
	}, nil)
	require.NoError(t, err)

	urls := sourceURLs(docs)
	assert.Len(t, docs, 3)
	assert.Contains(t, urls, srv.URL+"/")
	assert.Contains(t, urls, srv.URL+"/one")
	assert.Contains(t, urls, srv.URL+"/two")
}

func TestPipelineCrawlModeRespectsLimit(t *testing.T) {
	srv := newSite(t)
	p := NewPipeline(Config{}, nil)

	docs, err := p.Run(context.Background(), core.CrawlRequest{
		Targets: []string{srv.URL + "/"},
		Mode:    model.ModeCrawl,
		Options: model.CrawlerOptions{Limit: 2},
	}, nil)
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestPipelineErrorWithNoDocuments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	p := NewPipeline(Config{}, nil)
	_, err := p.Run(context.Background(), core.CrawlRequest{
		Targets: []string{srv.URL + "/"},
		Mode:    "scrape",
	}, nil)
	assert.Error(t, err)
}

func TestPipelineRequiresTargets(t *testing.T) {
	p := NewPipeline(Config{}, nil)
	_, err := p.Run(context.Background(), core.CrawlRequest{Mode: "scrape"}, nil)
	assert.ErrorContains(t, err, "no crawl targets")
}

func TestSeedDomains(t *testing.T) {
	domains, err := seedDomains("https://example.com/path")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"example.com", "www.example.com"}, domains)

	domains, err = seedDomains("https://www.example.com/")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"example.com", "www.example.com"}, domains)

	_, err = seedDomains("not-a-url")
	assert.Error(t, err)
}
