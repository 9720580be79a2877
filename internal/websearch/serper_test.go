package websearch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playwise/playwise/internal/log"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := New(Config{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		Client:  srv.Client(),
		Logger:  log.NewNop(),
	})
	require.NoError(t, err)
	return client
}

func TestNew_RequiresAPIKey(t *testing.T) {
	t.Parallel()

	_, err := New(Config{})
	assert.ErrorContains(t, err, "api key")
}

func TestSearch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-API-KEY"))

		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "PS5 Pro specs", payload["q"])
		assert.Equal(t, float64(5), payload["num"])

		_, _ = w.Write([]byte(`{"organic": [
			{"title": "PS5 Pro", "link": "https://a.example", "snippet": "specs", "thumbnailUrl": "https://a.example/t.jpg"},
			{"title": "Review", "link": "https://b.example", "snippet": "review"}
		]}`))
	})

	results, err := client.Search(context.Background(), "PS5 Pro specs", 5)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "https://a.example", results[0].URL)
	assert.Equal(t, "https://a.example/t.jpg", results[0].ThumbnailURL)
	assert.Empty(t, results[1].ThumbnailURL)
}

func TestSearch_CapsResults(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"organic": [
			{"title": "1", "link": "https://1.example"},
			{"title": "2", "link": "https://2.example"},
			{"title": "3", "link": "https://3.example"}
		]}`))
	})

	results, err := client.Search(context.Background(), "q", 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestSearchImages(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/images", r.URL.Path)
		_, _ = w.Write([]byte(`{"images": [
			{"title": "PS5 Pro front", "imageUrl": "https://img.example/1.jpg", "link": "https://a.example"}
		]}`))
	})

	results, err := client.SearchImages(context.Background(), "PS5 Pro", 9)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "https://img.example/1.jpg", results[0].ImageURL)
	assert.Equal(t, "https://a.example", results[0].SourceURL)
}

func TestSearch_ServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := client.Search(context.Background(), "q", 5)
	assert.ErrorContains(t, err, "unexpected status 403")
}
