// Package api serves the public HTTP surface: manual collect and push
// triggers, push history, and the hot view.
package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	lru "github.com/hashicorp/golang-lru/v2"

	v1 "github.com/inforadar/radar/api/radar/v1"
	radarerrs "github.com/inforadar/radar/internal/errors"
	"github.com/inforadar/radar/internal/metrics"
	"github.com/inforadar/radar/internal/pipeline"
	"github.com/inforadar/radar/internal/radar"
	"github.com/inforadar/radar/internal/serverutil"
)

// Callers identify themselves with this header; session auth sits in front
// of this service.
const userIDHeader = "X-User-ID"

type (
	Server struct {
		*http.Server

		pipe     *pipeline.Pipeline
		items    radar.ItemStore
		history  radar.HistoryStore
		hotCache *lru.Cache[string, v1.HotResponse]

		cronSecret string
	}

	ServerConfig struct {
		Port       int
		CronSecret string
		CorsHeader string
	}
)

func NewServer(config ServerConfig, pipe *pipeline.Pipeline, items radar.ItemStore, history radar.HistoryStore) *Server {
	var (
		r        = serverutil.ErrRouter{Router: mux.NewRouter()}
		cache, _ = lru.New[string, v1.HotResponse](16)
	)

	srvr := Server{
		pipe:       pipe,
		items:      items,
		history:    history,
		hotCache:   cache,
		cronSecret: config.CronSecret,
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%d", config.Port),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 30 * time.Second,
			Handler: handlers.CORS(
				handlers.AllowedOrigins([]string{config.CorsHeader}),
				handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
				handlers.AllowedHeaders([]string{"content-type", userIDHeader}),
			)(r),
		},
	}

	r.Use(serverutil.AccessLogMiddleware) // Log everything
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	r.HandleFuncE("/v1/collect", srvr.postCollect).Methods(http.MethodPost)
	r.HandleFuncE("/v1/push", srvr.postPush).Methods(http.MethodPost)
	r.HandleFuncE("/v1/history", srvr.getHistory).Methods(http.MethodGet)
	r.HandleFuncE("/v1/history/{pushID}/items", srvr.getHistoryItems).Methods(http.MethodGet)
	r.HandleFuncE("/v1/hot", srvr.getHot).Methods(http.MethodGet)

	return &srvr
}

// userID pulls the calling user out of the request headers.
func userID(r *http.Request) (string, error) {
	id := r.Header.Get(userIDHeader)
	if id == "" {
		return "", radarerrs.E("missing user id", http.StatusUnauthorized)
	}

	return id, nil
}

func apiItem(item radar.Item) v1.Item {
	return v1.Item{
		Title:       item.Title,
		Link:        item.Link,
		Source:      item.SourceName,
		Domain:      item.Domain,
		PublishedAt: item.PublishedAt,
		Credibility: item.Credibility,
	}
}

func apiRecord(rec radar.PushRecord) v1.PushRecord {
	results := make(map[string]bool, len(rec.ChannelResults))
	for kind, ok := range rec.ChannelResults {
		results[string(kind)] = ok
	}

	return v1.PushRecord{
		ID:             rec.ID,
		ItemCount:      rec.ItemCount,
		Domains:        rec.Domains,
		SentAt:         rec.SentAt,
		ChannelResults: results,
		Success:        rec.Success,
	}
}
