package sqlite

import (
	"context"
	"fmt"

	"github.com/inforadar/radar/internal/radar"
)

func (r Repo) UserChannels(ctx context.Context, userID string) ([]radar.ChannelConfig, error) {
	const q = `SELECT * FROM channels WHERE user_id = ?;`

	var channels []radar.ChannelConfig
	if err := r.db.SelectContext(ctx, &channels, q, userID); err != nil {
		return nil, fmt.Errorf("error fetching channels: %s", err)
	}

	return channels, nil
}

// PushableUsers lists ids of users with at least one channel row that could
// be eligible. The full eligibility check runs in code against the loaded
// configs; this narrows the scheduled fan-out.
func (r Repo) PushableUsers(ctx context.Context) ([]string, error) {
	const q = `SELECT DISTINCT user_id FROM channels WHERE enabled ORDER BY user_id;`

	var ids []string
	if err := r.db.SelectContext(ctx, &ids, q); err != nil {
		return nil, fmt.Errorf("error fetching pushable users: %s", err)
	}

	return ids, nil
}
