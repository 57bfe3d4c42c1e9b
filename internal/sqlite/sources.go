package sqlite

import (
	"context"
	"fmt"

	"github.com/inforadar/radar/internal/radar"
)

// EnabledSources lists enabled sources for a user, ordered for display. An
// empty userID selects the global set used by scheduled runs.
func (r Repo) EnabledSources(ctx context.Context, userID string) ([]radar.Source, error) {
	const globalQ = `SELECT * FROM sources WHERE user_id IS NULL AND enabled ORDER BY sort_order;`
	const userQ = `SELECT * FROM sources WHERE (user_id = ? OR user_id IS NULL) AND enabled ORDER BY sort_order;`

	var (
		sources []radar.Source
		err     error
	)
	if userID == "" {
		err = r.db.SelectContext(ctx, &sources, globalQ)
	} else {
		err = r.db.SelectContext(ctx, &sources, userQ, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("error fetching sources: %s", err)
	}

	return sources, nil
}
