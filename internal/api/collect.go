package api

import (
	"net/http"

	v1 "github.com/inforadar/radar/api/radar/v1"
	radarerrs "github.com/inforadar/radar/internal/errors"
	"github.com/inforadar/radar/internal/serverutil"
)

// postCollect triggers a global collection pass. It is meant to be hit by a
// cron scheduler and is guarded by a shared secret instead of a user.
func (s *Server) postCollect(w http.ResponseWriter, r *http.Request) error {
	if s.cronSecret == "" || r.Header.Get("Authorization") != "Bearer "+s.cronSecret {
		return radarerrs.E("unauthorized", http.StatusUnauthorized)
	}

	summary, err := s.pipe.Collect(r.Context(), "")
	if err != nil {
		return radarerrs.E(err)
	}

	resp := v1.CollectResponse{
		Fetched:  summary.Fetched,
		Inserted: summary.Inserted,
	}
	for _, status := range summary.PerSource {
		src := v1.SourceStatus{
			Name:      status.Name,
			ItemCount: status.ItemCount,
		}
		if status.Err != nil {
			src.Error = status.Err.Error()
		}
		resp.PerSource = append(resp.PerSource, src)
	}

	return serverutil.WriteJSON(w, http.StatusOK, resp)
}
