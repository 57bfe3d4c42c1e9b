package collect

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inforadar/radar/internal/radar"
)

const testRSSFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Test RSS Feed</title>
    <item>
      <title>RSS Post One</title>
      <link>https://example.com/post-1</link>
      <guid>rss-guid-1</guid>
      <description>First RSS post description</description>
      <pubDate>Mon, 01 Jan 2024 12:00:00 GMT</pubDate>
    </item>
    <item>
      <title>RSS Post Two</title>
      <link>https://example.com/post-2</link>
      <guid>rss-guid-2</guid>
      <description>Second RSS post description</description>
      <pubDate>Tue, 02 Jan 2024 12:00:00 GMT</pubDate>
    </item>
  </channel>
</rss>`

const sharedLinkFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Other Feed</title>
    <item>
      <title>Same Story Elsewhere</title>
      <link>https://example.com/post-1</link>
      <guid>other-guid-9</guid>
      <description>A different write-up of post one</description>
    </item>
  </channel>
</rss>`

// fakeStore remembers which fingerprints it has been told exist.
type fakeStore struct {
	existing map[string]bool
	queries  int
}

func newFakeStore() *fakeStore {
	return &fakeStore{existing: map[string]bool{}}
}

func (f *fakeStore) ExistingFingerprints(_ context.Context, candidates []string) (map[string]bool, error) {
	f.queries++
	out := map[string]bool{}
	for _, fp := range candidates {
		if f.existing[fp] {
			out[fp] = true
		}
	}
	return out, nil
}

func (f *fakeStore) InsertItems(_ context.Context, items []radar.Item) (int, error) {
	inserted := 0
	for _, item := range items {
		if !f.existing[item.Fingerprint] {
			f.existing[item.Fingerprint] = true
			inserted++
		}
	}
	return inserted, nil
}

func (f *fakeStore) ItemsByDomain(context.Context, []string, time.Time, int) ([]radar.Item, error) {
	return nil, nil
}

func (f *fakeStore) RecentItems(context.Context, time.Time, int) ([]radar.Item, error) {
	return nil, nil
}

func feedServer(t *testing.T, payload string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(payload))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testSource(name, url, domain string) radar.Source {
	return radar.Source{
		ID:          name,
		Name:        name,
		URL:         url,
		Domain:      domain,
		Credibility: 4,
		Enabled:     true,
	}
}

func TestCollect_Basic(t *testing.T) {
	srv := feedServer(t, testRSSFeed)
	store := newFakeStore()
	c, err := New(store)
	require.NoError(t, err)

	res, err := c.Collect(context.Background(), []radar.Source{testSource("HN", srv.URL, "AI")}, Options{})
	require.NoError(t, err)

	require.Len(t, res.NewItems, 2)
	assert.Equal(t, "RSS Post One", res.NewItems[0].Title)
	assert.Equal(t, "https://example.com/post-1", res.NewItems[0].Link)
	assert.Equal(t, "AI", res.NewItems[0].Domain)
	assert.Equal(t, 4, res.NewItems[0].Credibility)
	assert.NotEmpty(t, res.NewItems[0].Fingerprint)

	require.Len(t, res.PerSource, 1)
	assert.Equal(t, "HN", res.PerSource[0].Name)
	assert.NoError(t, res.PerSource[0].Err)
	assert.Equal(t, 2, res.PerSource[0].ItemCount)
}

func TestCollect_SecondPassIsEmpty(t *testing.T) {
	srv := feedServer(t, testRSSFeed)
	store := newFakeStore()
	c, err := New(store)
	require.NoError(t, err)

	sources := []radar.Source{testSource("HN", srv.URL, "AI")}

	first, err := c.Collect(context.Background(), sources, Options{})
	require.NoError(t, err)
	require.Len(t, first.NewItems, 2)

	_, err = store.InsertItems(context.Background(), first.NewItems)
	require.NoError(t, err)

	second, err := c.Collect(context.Background(), sources, Options{})
	require.NoError(t, err)
	assert.Empty(t, second.NewItems)
}

func TestCollect_FailureIsolation(t *testing.T) {
	good := feedServer(t, testRSSFeed)
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(bad.Close)

	store := newFakeStore()
	c, err := New(store)
	require.NoError(t, err)

	res, err := c.Collect(context.Background(), []radar.Source{
		testSource("Broken", bad.URL, "AI"),
		testSource("Working", good.URL, "AI"),
	}, Options{})
	require.NoError(t, err)

	assert.Len(t, res.NewItems, 2)

	require.Len(t, res.PerSource, 2)
	assert.Error(t, res.PerSource[0].Err)
	assert.NoError(t, res.PerSource[1].Err)
	assert.Equal(t, 2, res.PerSource[1].ItemCount)
}

func TestCollect_SharedLinkDedupedWithinPass(t *testing.T) {
	a := feedServer(t, testRSSFeed)
	b := feedServer(t, sharedLinkFeed)

	store := newFakeStore()
	c, err := New(store)
	require.NoError(t, err)

	res, err := c.Collect(context.Background(), []radar.Source{
		testSource("A", a.URL, "AI"),
		testSource("B", b.URL, "AI"),
	}, Options{})
	require.NoError(t, err)

	// Both feeds carry https://example.com/post-1; only one survives.
	require.Len(t, res.NewItems, 2)

	inserted, err := store.InsertItems(context.Background(), res.NewItems)
	require.NoError(t, err)
	assert.Equal(t, 2, inserted)

	// And the whole pass made a single batched existence query.
	assert.Equal(t, 1, store.queries)
}

func TestCollect_SkipsDisabledSources(t *testing.T) {
	srv := feedServer(t, testRSSFeed)
	store := newFakeStore()
	c, err := New(store)
	require.NoError(t, err)

	src := testSource("HN", srv.URL, "AI")
	src.Enabled = false

	res, err := c.Collect(context.Background(), []radar.Source{src}, Options{})
	require.NoError(t, err)
	assert.Empty(t, res.NewItems)
	assert.Empty(t, res.PerSource)
}

func TestCollect_PerSourceTimeout(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		w.Write([]byte(testRSSFeed))
	}))
	t.Cleanup(slow.Close)

	store := newFakeStore()
	c, err := New(store)
	require.NoError(t, err)

	res, err := c.Collect(context.Background(), []radar.Source{
		testSource("Slow", slow.URL, "AI"),
	}, Options{PerSourceTimeout: 50 * time.Millisecond})
	require.NoError(t, err)

	require.Len(t, res.PerSource, 1)
	assert.Error(t, res.PerSource[0].Err)
	assert.Empty(t, res.NewItems)
}
