package crawler

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/scrapeworks/wormy/internal/extract"
)

func htmlPage(url, body string) Page {
	return Page{
		URL:         url,
		StatusCode:  200,
		ContentType: "text/html; charset=utf-8",
		Body:        []byte(body),
	}
}

func newStaticDetector() *MockDetector {
	d := new(MockDetector)
	d.On("NeedsRender", mock.Anything, mock.Anything).Return(false).Maybe()
	return d
}

func newEngineForTest(t *testing.T, cfg EngineConfig, fetcher Fetcher, extraDeps func(*EngineDeps)) *Engine {
	t.Helper()
	pipeline := NewPipeline(PipelineConfig{MaxAttempts: 1, InitialRetryDelay: time.Millisecond},
		fetcher, newStaticDetector(), zap.NewNop())
	deps := EngineDeps{
		Pipeline: pipeline,
		Limiter:  nopLimiter{},
		HTML:     extract.New(zap.NewNop()),
		Logger:   zap.NewNop(),
	}
	if extraDeps != nil {
		extraDeps(&deps)
	}
	engine, err := NewEngine(cfg, deps)
	require.NoError(t, err)
	return engine
}

func TestEngineCrawlsSeedAndDiscoveredPages(t *testing.T) {
	fetcher := new(MockFetcher)
	fetcher.On("Fetch", mock.Anything, "https://example.com").Return(htmlPage("https://example.com", `
		<html><body>
		<a href="/a">a</a>
		<a href="/b">b</a>
		<a href="https://other.com/x">foreign</a>
		<a href="/banner.jpg">media</a>
		</body></html>`), nil).Once()
	fetcher.On("Fetch", mock.Anything, "https://example.com/a").Return(
		htmlPage("https://example.com/a", `<html><body><a href="/c">deeper</a>page a</body></html>`), nil).Once()
	fetcher.On("Fetch", mock.Anything, "https://example.com/b").Return(
		htmlPage("https://example.com/b", `<html><body>page b</body></html>`), nil).Once()

	engine := newEngineForTest(t, EngineConfig{
		BaseURL:     "https://example.com",
		Concurrency: 3,
		MaxDepth:    1,
		MaxPages:    50,
	}, fetcher, nil)

	records, err := engine.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, records, 3)
	assert.Equal(t, "https://example.com", records[0].URL)
	assert.Equal(t, "https://example.com/a", records[1].URL)
	assert.Equal(t, "https://example.com/b", records[2].URL)

	// foreign and media links never surface in a record
	assert.Equal(t, []string{"https://example.com/a", "https://example.com/b"}, records[0].DiscoveredURLs)

	// depth limit: /c was discovered on a depth-1 page but never fetched
	assert.Equal(t, []string{"https://example.com/c"}, records[1].DiscoveredURLs)
	fetcher.AssertNotCalled(t, "Fetch", mock.Anything, "https://example.com/c")
}

func TestEngineSinglePageMode(t *testing.T) {
	fetcher := new(MockFetcher)
	fetcher.On("Fetch", mock.Anything, "https://example.com").Return(htmlPage("https://example.com",
		`<html><body><a href="/a">a</a></body></html>`), nil).Once()

	engine := newEngineForTest(t, EngineConfig{
		BaseURL:     "https://example.com",
		SeedURLs:    []string{"https://example.com/from-sitemap"},
		Concurrency: 2,
		MaxDepth:    0,
	}, fetcher, nil)

	records, err := engine.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, records, 1)
	assert.Equal(t, []string{"https://example.com/a"}, records[0].DiscoveredURLs)
	fetcher.AssertNotCalled(t, "Fetch", mock.Anything, "https://example.com/a")

	// sitemap seeds are report-only at depth 0
	fetcher.AssertNotCalled(t, "Fetch", mock.Anything, "https://example.com/from-sitemap")
}

func TestEngineRecordsTerminalFailure(t *testing.T) {
	fetcher := new(MockFetcher)
	fetcher.On("Fetch", mock.Anything, "https://example.com").Return(htmlPage("https://example.com",
		`<html><body><a href="/broken">x</a></body></html>`), nil).Once()
	fetcher.On("Fetch", mock.Anything, "https://example.com/broken").Return(
		Page{StatusCode: 404}, errors.New("not found")).Once()

	engine := newEngineForTest(t, EngineConfig{
		BaseURL:     "https://example.com",
		Concurrency: 2,
		MaxDepth:    1,
	}, fetcher, nil)

	records, err := engine.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)

	broken := records[1]
	assert.Equal(t, "https://example.com/broken", broken.URL)
	assert.True(t, broken.Failed)
	assert.Contains(t, broken.Text, "failed to fetch")
	assert.Contains(t, broken.Metadata["error"], "not found")
}

func TestEngineMaxPagesCap(t *testing.T) {
	fetcher := new(MockFetcher)
	var links string
	for i := 0; i < 20; i++ {
		links += fmt.Sprintf(`<a href="/page-%02d">p</a>`, i)
	}
	fetcher.On("Fetch", mock.Anything, "https://example.com").Return(
		htmlPage("https://example.com", "<html><body>"+links+"</body></html>"), nil).Once()
	fetcher.On("Fetch", mock.Anything, mock.Anything).Return(
		htmlPage("", "<html><body>leaf</body></html>"), nil).Maybe()

	engine := newEngineForTest(t, EngineConfig{
		BaseURL:     "https://example.com",
		Concurrency: 1,
		MaxDepth:    1,
		MaxPages:    5,
	}, fetcher, nil)

	records, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 5)
}

// With several workers racing, the cap is enforced when the record is
// admitted, so the count never overshoots MaxPages.
func TestEngineMaxPagesCapConcurrent(t *testing.T) {
	fetcher := new(MockFetcher)
	var links string
	for i := 0; i < 30; i++ {
		links += fmt.Sprintf(`<a href="/page-%02d">p</a>`, i)
	}
	fetcher.On("Fetch", mock.Anything, "https://example.com").Return(
		htmlPage("https://example.com", "<html><body>"+links+"</body></html>"), nil).Once()
	fetcher.On("Fetch", mock.Anything, mock.Anything).Return(
		htmlPage("", "<html><body>leaf</body></html>"), nil).Maybe()

	engine := newEngineForTest(t, EngineConfig{
		BaseURL:     "https://example.com",
		Concurrency: 8,
		MaxDepth:    1,
		MaxPages:    5,
	}, fetcher, nil)

	records, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 5)
}

func TestEngineSkipsConfirmedBinarySuspiciousURL(t *testing.T) {
	fetcher := new(MockFetcher)
	fetcher.On("Fetch", mock.Anything, "https://example.com").Return(htmlPage("https://example.com", `
		<html><body>
		<a href="/gallery?itemId=5">gallery</a>
		<a href="/article?itemId=9">article</a>
		</body></html>`), nil).Once()
	fetcher.On("Fetch", mock.Anything, "https://example.com/article").Return(
		htmlPage("https://example.com/article", `<html><body>real article</body></html>`), nil).Once()

	prober := new(MockHeadProber)
	prober.On("ContentType", mock.Anything, "https://example.com/gallery").Return("image/jpeg", nil).Once()
	prober.On("ContentType", mock.Anything, "https://example.com/article").Return("text/html", nil).Once()

	engine := newEngineForTest(t, EngineConfig{
		BaseURL:     "https://example.com",
		Concurrency: 1,
		MaxDepth:    1,
	}, fetcher, func(deps *EngineDeps) {
		deps.Prober = prober
	})

	records, err := engine.Run(context.Background())
	require.NoError(t, err)

	urls := make([]string, 0, len(records))
	for _, rec := range records {
		urls = append(urls, rec.URL)
	}
	assert.NotContains(t, urls, "https://example.com/gallery")
	assert.Contains(t, urls, "https://example.com/article")
	prober.AssertExpectations(t)
	fetcher.AssertNotCalled(t, "Fetch", mock.Anything, "https://example.com/gallery")
}

func TestEngineSitemapSeedsEnqueued(t *testing.T) {
	fetcher := new(MockFetcher)
	fetcher.On("Fetch", mock.Anything, "https://example.com").Return(
		htmlPage("https://example.com", `<html><body>home</body></html>`), nil).Once()
	fetcher.On("Fetch", mock.Anything, "https://example.com/from-sitemap").Return(
		htmlPage("https://example.com/from-sitemap", `<html><body>sitemap page</body></html>`), nil).Once()

	engine := newEngineForTest(t, EngineConfig{
		BaseURL:     "https://example.com",
		SeedURLs:    []string{"https://example.com/from-sitemap"},
		Concurrency: 2,
		MaxDepth:    1,
	}, fetcher, nil)

	records, err := engine.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "https://example.com/from-sitemap", records[1].URL)
}

func TestEngineRecyclesRendererAndRetries(t *testing.T) {
	fetcher := new(MockFetcher)
	sparse := htmlPage("https://example.com", `<html><body></body></html>`)
	fetcher.On("Fetch", mock.Anything, "https://example.com").Return(sparse, nil)

	detector := new(MockDetector)
	detector.On("NeedsRender", mock.Anything, mock.Anything).Return(true)

	broken := new(MockRenderer)
	broken.On("Render", mock.Anything, "https://example.com").Return(Page{}, errors.New("tab crashed")).Once()
	broken.On("Close").Return(nil).Once()

	healthy := new(MockRenderer)
	rendered := Page{
		URL:         "https://example.com",
		StatusCode:  200,
		ContentType: "text/html",
		Body:        []byte(`<html><body>rendered content</body></html>`),
		Rendered:    true,
	}
	healthy.On("Render", mock.Anything, "https://example.com").Return(rendered, nil).Once()
	healthy.On("Close").Return(nil).Once()

	renderers := []Renderer{broken, healthy}
	var built int
	factory := func(_ context.Context) (Renderer, error) {
		r := renderers[built]
		built++
		return r, nil
	}

	pipeline := NewPipeline(PipelineConfig{MaxAttempts: 1, InitialRetryDelay: time.Millisecond},
		fetcher, detector, zap.NewNop())
	engine, err := NewEngine(EngineConfig{
		BaseURL:     "https://example.com",
		Concurrency: 1,
		MaxDepth:    1,
	}, EngineDeps{
		Pipeline:        pipeline,
		Limiter:         nopLimiter{},
		RendererFactory: factory,
		HTML:            extract.New(zap.NewNop()),
		Logger:          zap.NewNop(),
	})
	require.NoError(t, err)

	records, err := engine.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].Rendered)
	assert.Equal(t, 2, built)
	broken.AssertExpectations(t)
	healthy.AssertExpectations(t)
}

func TestEngineRunInterrupted(t *testing.T) {
	fetcher := new(MockFetcher)
	fetcher.On("Fetch", mock.Anything, mock.Anything).Return(
		htmlPage("https://example.com", `<html><body>home</body></html>`), nil).Maybe()

	engine := newEngineForTest(t, EngineConfig{
		BaseURL:     "https://example.com",
		Concurrency: 1,
	}, fetcher, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewEngineValidation(t *testing.T) {
	_, err := NewEngine(EngineConfig{BaseURL: "://bad"}, EngineDeps{})
	assert.Error(t, err)

	_, err = NewEngine(EngineConfig{BaseURL: "https://example.com"}, EngineDeps{})
	assert.Error(t, err)
}
