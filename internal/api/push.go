package api

import (
	"errors"
	"net/http"

	v1 "github.com/inforadar/radar/api/radar/v1"
	radarerrs "github.com/inforadar/radar/internal/errors"
	"github.com/inforadar/radar/internal/radar"
	"github.com/inforadar/radar/internal/serverutil"
)

// postPush runs the on-demand pipeline for the calling user. The channel
// comes from the query string, or from an optional JSON body.
func (s *Server) postPush(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	id, err := userID(r)
	if err != nil {
		return err
	}

	channel := r.URL.Query().Get("channel")
	if channel == "" && r.ContentLength > 0 {
		body, err := serverutil.DecodeValid[v1.PushRequest](r.Body)
		if err != nil {
			return radarerrs.E(err, http.StatusBadRequest)
		}
		channel = body.Channel
	}
	switch radar.ChannelKind(channel) {
	case "", radar.ChannelTelegram, radar.ChannelWebhook, radar.ChannelEmail:
	default:
		return radarerrs.E("channel must be telegram, webhook or email", http.StatusBadRequest)
	}

	res, err := s.pipe.PushUser(ctx, id, radar.ChannelKind(channel))
	if errors.Is(err, radar.ErrNoEligibleItems) {
		return serverutil.WriteJSON(w, http.StatusOK, v1.PushResponse{Status: v1.PushStatusSkipped})
	}
	if errors.Is(err, radar.ErrNoChannelConfigured) {
		return radarerrs.E("no channel configured", http.StatusPreconditionFailed)
	}
	if err != nil {
		return radarerrs.E(err)
	}

	rec := apiRecord(res.Record)

	return serverutil.WriteJSON(w, http.StatusOK, v1.PushResponse{
		Status: v1.PushStatusSent,
		Record: &rec,
	})
}
