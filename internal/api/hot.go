package api

import (
	"net/http"
	"time"

	v1 "github.com/inforadar/radar/api/radar/v1"
	radarerrs "github.com/inforadar/radar/internal/errors"
	"github.com/inforadar/radar/internal/serverutil"
)

const (
	hotWindow    = 7 * 24 * time.Hour
	hotPerSource = 10
	hotQueryMax  = 500

	// Responses are cached per time bucket; the view tolerates being a few
	// minutes stale.
	hotCacheBucket = 10 * time.Minute
)

// getHot returns the last week's items grouped per source, the most credible
// first, capped per group.
func (s *Server) getHot(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	now := time.Now().UTC()
	cacheKey := now.Truncate(hotCacheBucket).Format(time.RFC3339)
	if resp, ok := s.hotCache.Get(cacheKey); ok {
		return serverutil.WriteJSON(w, http.StatusOK, resp)
	}

	items, err := s.items.RecentItems(ctx, now.Add(-hotWindow), hotQueryMax)
	if err != nil {
		return radarerrs.E(err)
	}

	// Items arrive credibility-ordered; grouping preserves that within each
	// source.
	var (
		order  []string
		groups = map[string][]v1.Item{}
	)
	for _, item := range items {
		if _, ok := groups[item.SourceName]; !ok {
			order = append(order, item.SourceName)
		}
		if len(groups[item.SourceName]) >= hotPerSource {
			continue
		}
		groups[item.SourceName] = append(groups[item.SourceName], apiItem(item))
	}

	resp := v1.HotResponse{Groups: []v1.HotGroup{}}
	for _, source := range order {
		resp.Groups = append(resp.Groups, v1.HotGroup{Source: source, Items: groups[source]})
	}

	s.hotCache.Add(cacheKey, resp)

	return serverutil.WriteJSON(w, http.StatusOK, resp)
}
