// Package sqlite implements the persistence boundaries on a single sqlite
// database.
package sqlite

import (
	"github.com/jmoiron/sqlx"

	"github.com/inforadar/radar/internal/radar"
)

// Ensure Repo implements the store interfaces
var (
	_ radar.ItemStore         = (*Repo)(nil)
	_ radar.SourceStore       = (*Repo)(nil)
	_ radar.ChannelStore      = (*Repo)(nil)
	_ radar.PolicyStore       = (*Repo)(nil)
	_ radar.SubscriptionStore = (*Repo)(nil)
	_ radar.HistoryStore      = (*Repo)(nil)
)

type Repo struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) Repo {
	return Repo{db: db}
}
