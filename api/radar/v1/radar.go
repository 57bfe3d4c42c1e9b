// Package v1 holds the wire types for the public API.
package v1

import (
	"errors"
	"time"
)

type (
	// Item is the public shape of a collected item.
	Item struct {
		Title       string    `json:"title"`
		Link        string    `json:"link"`
		Source      string    `json:"source"`
		Domain      string    `json:"domain"`
		PublishedAt time.Time `json:"published_at"`
		Credibility int       `json:"credibility"`
	}

	// PushRequest is the optional body for a push; the channel query
	// parameter takes precedence when both are set.
	PushRequest struct {
		// Channel restricts delivery to one kind; empty delivers everywhere.
		Channel string `json:"channel"`
	}

	PushResponse struct {
		Status string      `json:"status"`
		Record *PushRecord `json:"record,omitempty"`
	}

	PushRecord struct {
		ID             string          `json:"id"`
		ItemCount      int             `json:"item_count"`
		Domains        []string        `json:"domains"`
		SentAt         time.Time       `json:"sent_at"`
		ChannelResults map[string]bool `json:"channel_results"`
		Success        bool            `json:"success"`
	}

	CollectResponse struct {
		Fetched   int            `json:"fetched"`
		Inserted  int            `json:"inserted"`
		PerSource []SourceStatus `json:"per_source"`
	}

	SourceStatus struct {
		Name      string `json:"name"`
		ItemCount int    `json:"item_count"`
		Error     string `json:"error,omitempty"`
	}

	HistoryResponse struct {
		Records []PushRecord `json:"records"`
	}

	HistoryItemsResponse struct {
		Record PushRecord `json:"record"`
		Items  []Item     `json:"items"`
	}

	// HotGroup is one source's most credible recent items.
	HotGroup struct {
		Source string `json:"source"`
		Items  []Item `json:"items"`
	}

	HotResponse struct {
		Groups []HotGroup `json:"groups"`
	}
)

const (
	PushStatusSent    = "sent"
	PushStatusSkipped = "skipped"
)

// Validate checks that the body (minus logic checks) is valid.
func (r PushRequest) Validate() error {
	switch r.Channel {
	case "", "telegram", "webhook", "email":
		return nil
	}

	return errors.New("channel must be telegram, webhook or email")
}
