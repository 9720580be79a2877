package crawler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playwise/playwise/internal/knowledge"
)

type fakeStore struct {
	mu     sync.Mutex
	recent map[string]bool
	pages  []knowledge.Page
	chunks [][]knowledge.Chunk
}

func (f *fakeStore) RecentlyScraped(ctx context.Context, url string, cooldown time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.recent[url], nil
}

func (f *fakeStore) ReplaceSource(ctx context.Context, page knowledge.Page, chunks []knowledge.Chunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages = append(f.pages, page)
	f.chunks = append(f.chunks, chunks)
	return nil
}

func (f *fakeStore) storedURLs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	urls := make([]string, len(f.pages))
	for i, p := range f.pages {
		urls[i] = p.SourceURL
	}
	return urls
}

type identityEmbedder struct{}

func (identityEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{float32(i + 1), 1, 0}
	}
	return vectors, nil
}

const pageBody = `The PlayStation 5 console uses a custom AMD Zen 2 CPU with eight
cores running at a variable frequency, paired with an RDNA 2 based GPU capable
of 10.28 teraflops. Its internal SSD delivers raw throughput of 5.5 gigabytes
per second, which removed traditional loading screens from most game software.`

func page(title string, links ...string) string {
	html := fmt.Sprintf("<html><head><title>%s</title></head><body><article>", title)
	for i := 0; i < 3; i++ {
		html += "<p>" + pageBody + "</p>"
	}
	for _, l := range links {
		html += fmt.Sprintf(`<p><a href="%s">more</a></p>`, l)
	}
	return html + "</article></body></html>"
}

func newSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			fmt.Fprint(w, page("Start Page", "/second", "/third", "https://offsite.example/x"))
		case "/second":
			fmt.Fprint(w, page("Second Page", "/third"))
		case "/third":
			fmt.Fprint(w, page("Third Page"))
		default:
			http.NotFound(w, r)
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newCrawler(t *testing.T, store Store) *Crawler {
	t.Helper()
	c, err := New(Config{Store: store, Embedder: identityEmbedder{}})
	require.NoError(t, err)
	return c
}

func TestCrawl_FollowsSameDomainLinks(t *testing.T) {
	srv := newSite(t)
	store := &fakeStore{}
	c := newCrawler(t, store)

	require.NoError(t, c.Crawl(context.Background(), srv.URL+"/", 10))

	urls := store.storedURLs()
	require.Len(t, urls, 3)
	assert.Contains(t, urls, srv.URL+"/")
	assert.Contains(t, urls, srv.URL+"/second")
	assert.Contains(t, urls, srv.URL+"/third")

	// Page title and non-empty embedded chunks are stored alongside.
	assert.Equal(t, "Start Page", store.pages[0].Title)
	require.NotEmpty(t, store.chunks[0])
	assert.NotEmpty(t, store.chunks[0][0].Embedding)
	assert.False(t, store.pages[0].ScrapedAt.IsZero())
}

func TestCrawl_RespectsPageCeiling(t *testing.T) {
	srv := newSite(t)
	store := &fakeStore{}
	c := newCrawler(t, store)

	require.NoError(t, c.Crawl(context.Background(), srv.URL+"/", 1))

	assert.Len(t, store.storedURLs(), 1)
}

func TestCrawl_SkipsRecentlyScraped(t *testing.T) {
	srv := newSite(t)
	store := &fakeStore{recent: map[string]bool{srv.URL + "/second": true}}
	c := newCrawler(t, store)

	require.NoError(t, c.Crawl(context.Background(), srv.URL+"/", 10))

	urls := store.storedURLs()
	assert.Contains(t, urls, srv.URL+"/")
	assert.NotContains(t, urls, srv.URL+"/second")
}

func TestCrawl_InvalidStartURL(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	c := newCrawler(t, store)

	assert.Error(t, c.Crawl(context.Background(), "not a url", 5))
	assert.Empty(t, store.storedURLs())
}

func TestCrawl_CancelledContext(t *testing.T) {
	srv := newSite(t)
	store := &fakeStore{}
	c := newCrawler(t, store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_ = c.Crawl(ctx, srv.URL+"/", 10)
	assert.Empty(t, store.storedURLs())
}
