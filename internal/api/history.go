package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	v1 "github.com/inforadar/radar/api/radar/v1"
	radarerrs "github.com/inforadar/radar/internal/errors"
	"github.com/inforadar/radar/internal/radar"
	"github.com/inforadar/radar/internal/serverutil"
)

const (
	defaultHistoryWindow = 7 * 24 * time.Hour

	// How far back from a push's sent time its items are looked up.
	historyItemWindow = 24 * time.Hour

	historyItemLimit = 200
)

// getHistory lists the caller's push records, newest first. Optional from
// and to query parameters are RFC3339; the default window is the last week.
func (s *Server) getHistory(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	id, err := userID(r)
	if err != nil {
		return err
	}

	to := time.Now().UTC()
	from := to.Add(-defaultHistoryWindow)
	if raw := r.URL.Query().Get("from"); raw != "" {
		if from, err = time.Parse(time.RFC3339, raw); err != nil {
			return radarerrs.E("from must be RFC3339", http.StatusBadRequest)
		}
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		if to, err = time.Parse(time.RFC3339, raw); err != nil {
			return radarerrs.E("to must be RFC3339", http.StatusBadRequest)
		}
	}

	records, err := s.history.PushRecords(ctx, id, from, to)
	if err != nil {
		return radarerrs.E(err)
	}

	resp := v1.HistoryResponse{Records: []v1.PushRecord{}}
	for _, rec := range records {
		resp.Records = append(resp.Records, apiRecord(rec))
	}

	return serverutil.WriteJSON(w, http.StatusOK, resp)
}

// getHistoryItems returns the items behind one push record: what was in the
// recorded domains during the day leading up to the send.
func (s *Server) getHistoryItems(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	id, err := userID(r)
	if err != nil {
		return err
	}

	rec, err := s.history.PushRecordByID(ctx, mux.Vars(r)["pushID"])
	if errors.Is(err, radar.ErrNotFound) {
		return radarerrs.E("push record not found", http.StatusNotFound)
	}
	if err != nil {
		return radarerrs.E(err)
	}
	// Records belong to their user only.
	if rec.UserID != id {
		return radarerrs.E("push record not found", http.StatusNotFound)
	}

	items, err := s.items.ItemsByDomain(ctx, rec.Domains, rec.SentAt.Add(-historyItemWindow), historyItemLimit)
	if err != nil {
		return radarerrs.E(err)
	}

	resp := v1.HistoryItemsResponse{
		Record: apiRecord(rec),
		Items:  []v1.Item{},
	}
	for _, item := range items {
		resp.Items = append(resp.Items, apiItem(item))
	}

	return serverutil.WriteJSON(w, http.StatusOK, resp)
}
