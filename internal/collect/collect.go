// Package collect fetches configured feed sources concurrently, tolerating
// per-source failure, and dedups entries against the item store.
package collect

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/inforadar/radar/internal/fingerprint"
	"github.com/inforadar/radar/internal/metrics"
	"github.com/inforadar/radar/internal/radar"
)

const (
	defaultTimeout       = 15 * time.Second
	defaultMaxConcurrent = 5

	// Size of the seen-fingerprint fast path. The store query stays the
	// source of truth; this only trims the candidate set.
	seenCacheSize = 4096
)

type (
	// Options tune one collection pass.
	Options struct {
		// PerSourceTimeout bounds each individual fetch.
		PerSourceTimeout time.Duration
		// MaxConcurrent caps how many sources are fetched at once.
		MaxConcurrent int
	}

	// SourceStatus records the outcome for one source in a pass.
	SourceStatus struct {
		Name      string
		ItemCount int
		Err       error
		Elapsed   time.Duration
	}

	// Result is everything a collection pass produced. NewItems are not yet
	// persisted; the caller hands them to the item store in one batch.
	Result struct {
		NewItems  []radar.Item
		PerSource []SourceStatus
	}

	// Collector runs collection passes against a set of sources.
	Collector struct {
		store  radar.ItemStore
		client *http.Client
		seen   *lru.Cache[string, struct{}]
	}
)

// New creates a Collector backed by the given item store.
func New(store radar.ItemStore) (*Collector, error) {
	seen, err := lru.New[string, struct{}](seenCacheSize)
	if err != nil {
		return nil, fmt.Errorf("error creating seen cache: %s", err)
	}

	return &Collector{
		store:  store,
		client: &http.Client{},
		seen:   seen,
	}, nil
}

// Collect fetches every enabled source and returns the net-new entries along
// with a per-source status list. A source failing only degrades that source
// to zero items; only an item store failure is returned as an error.
func (c *Collector) Collect(ctx context.Context, sources []radar.Source, opts Options) (Result, error) {
	if opts.PerSourceTimeout <= 0 {
		opts.PerSourceTimeout = defaultTimeout
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = defaultMaxConcurrent
	}

	enabled := make([]radar.Source, 0, len(sources))
	for _, s := range sources {
		if s.Enabled {
			enabled = append(enabled, s)
		}
	}

	var (
		statuses = make([]SourceStatus, len(enabled))
		fetched  = make([][]radar.Item, len(enabled))
		now      = time.Now()
	)

	g := errgroup.Group{}
	g.SetLimit(opts.MaxConcurrent)
	for i, src := range enabled {
		g.Go(func() error {
			start := time.Now()
			fetchCtx, cancel := context.WithTimeout(ctx, opts.PerSourceTimeout)
			defer cancel()

			entries, err := fetchEntries(fetchCtx, c.client, src.URL, now)
			statuses[i] = SourceStatus{
				Name:      src.Name,
				ItemCount: len(entries),
				Err:       err,
				Elapsed:   time.Since(start),
			}
			if err != nil {
				metrics.SourceFetches.WithLabelValues("error").Inc()
				slog.Warn("source fetch failed", "source", src.Name, "error", err)
				return nil
			}
			metrics.SourceFetches.WithLabelValues("ok").Inc()

			items := make([]radar.Item, 0, len(entries))
			for _, entry := range entries {
				canonical := entry.Link
				if canonical == "" {
					canonical = entry.GUID
				}

				items = append(items, radar.Item{
					Fingerprint: fingerprint.Hash(canonical),
					Title:       entry.Title,
					Link:        entry.Link,
					Content:     entry.Summary,
					SourceName:  src.Name,
					Domain:      src.Domain,
					PublishedAt: entry.PublishedAt,
					CollectedAt: now,
					Credibility: src.Credibility,
				})
			}
			fetched[i] = items

			return nil
		})
	}
	g.Wait()

	// Flatten, keeping the first occurrence when two sources emit the same
	// canonical link in a single pass.
	var (
		all     []radar.Item
		inBatch = map[string]bool{}
	)
	for _, items := range fetched {
		for _, item := range items {
			if inBatch[item.Fingerprint] {
				continue
			}
			inBatch[item.Fingerprint] = true
			all = append(all, item)
		}
	}

	newItems, err := c.dropSeen(ctx, all)
	if err != nil {
		return Result{}, err
	}

	metrics.ItemsNew.Add(float64(len(newItems)))
	metrics.ItemsDeduped.Add(float64(len(all) - len(newItems)))

	return Result{
		NewItems:  newItems,
		PerSource: statuses,
	}, nil
}

// dropSeen removes items whose fingerprint the store already knows, using one
// batched existence query for everything the local cache couldn't answer.
func (c *Collector) dropSeen(ctx context.Context, items []radar.Item) ([]radar.Item, error) {
	if len(items) == 0 {
		return nil, nil
	}

	candidates := make([]string, 0, len(items))
	for _, item := range items {
		if _, cached := c.seen.Get(item.Fingerprint); cached {
			continue
		}
		candidates = append(candidates, item.Fingerprint)
	}

	existing := map[string]bool{}
	if len(candidates) > 0 {
		var err error
		existing, err = c.store.ExistingFingerprints(ctx, candidates)
		if err != nil {
			return nil, fmt.Errorf("error checking existing fingerprints: %w", err)
		}
	}

	fresh := make([]radar.Item, 0, len(items))
	for _, item := range items {
		if _, cached := c.seen.Get(item.Fingerprint); cached {
			continue
		}
		if existing[item.Fingerprint] {
			// Only fingerprints the store has confirmed go into the cache,
			// so a failed insert later can't suppress a retry.
			c.seen.Add(item.Fingerprint, struct{}{})
			continue
		}
		fresh = append(fresh, item)
	}

	return fresh, nil
}
