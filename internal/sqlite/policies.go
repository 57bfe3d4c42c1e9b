package sqlite

import (
	"context"
	"fmt"

	"github.com/inforadar/radar/internal/radar"
)

func (r Repo) DomainPolicies(ctx context.Context) (map[string]radar.DomainPolicy, error) {
	const q = `SELECT * FROM domain_policies;`

	var policies []radar.DomainPolicy
	if err := r.db.SelectContext(ctx, &policies, q); err != nil {
		return nil, fmt.Errorf("error fetching domain policies: %s", err)
	}

	out := make(map[string]radar.DomainPolicy, len(policies))
	for _, p := range policies {
		out[p.Domain] = p
	}

	return out, nil
}
