package sqlite

import (
	"context"
	"fmt"
)

// UserDomains returns the user's enabled domains in subscription order,
// which is the order sections appear in the digest.
func (r Repo) UserDomains(ctx context.Context, userID string) ([]string, error) {
	const q = `SELECT domain FROM subscriptions WHERE user_id = ? AND enabled ORDER BY sort_order;`

	var domains []string
	if err := r.db.SelectContext(ctx, &domains, q, userID); err != nil {
		return nil, fmt.Errorf("error fetching subscriptions: %s", err)
	}

	return domains, nil
}
