package sqlite

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/inforadar/radar/internal/radar"
)

const itemNamespace = "-itm"

// ExistingFingerprints returns the subset of candidates already stored, in
// one batched query.
func (r Repo) ExistingFingerprints(ctx context.Context, candidates []string) (map[string]bool, error) {
	if len(candidates) == 0 {
		return map[string]bool{}, nil
	}

	query, args, err := sq.Select("fingerprint").From("items").Where(sq.Eq{"fingerprint": candidates}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("error constructing sql: %s", err)
	}

	var found []string
	if err := r.db.SelectContext(ctx, &found, query, args...); err != nil {
		return nil, fmt.Errorf("error fetching fingerprints: %s", err)
	}

	out := make(map[string]bool, len(found))
	for _, fp := range found {
		out[fp] = true
	}

	return out, nil
}

// InsertItems persists the batch. Fingerprint collisions are silently
// skipped so the first write of an item wins. Returns the number of rows
// actually inserted.
func (r Repo) InsertItems(ctx context.Context, items []radar.Item) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}

	// Create id's for the items
	for i := range items {
		items[i].ID = fmt.Sprintf("%s%s", uuid.NewString(), itemNamespace)
	}

	const q = `INSERT INTO items (id, fingerprint, title, link, content, source_name, domain, published_at, collected_at, credibility_score)
	VALUES (:id, :fingerprint, :title, :link, :content, :source_name, :domain, :published_at, :collected_at, :credibility_score)
	ON CONFLICT(fingerprint) DO NOTHING;`
	res, err := r.db.NamedExecContext(ctx, q, items)
	if err != nil {
		return 0, fmt.Errorf("error inserting items: %s", err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("error counting inserted items: %s", err)
	}

	return int(inserted), nil
}

// ItemsByDomain returns items in the given domains collected at or after
// since, most credible first.
func (r Repo) ItemsByDomain(ctx context.Context, domains []string, since time.Time, limit int) ([]radar.Item, error) {
	if len(domains) == 0 {
		return []radar.Item{}, nil
	}

	query, args, err := sq.Select("*").
		From("items").
		Where(sq.Eq{"domain": domains}).
		Where(sq.GtOrEq{"collected_at": since}).
		OrderBy("credibility_score DESC", "published_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("error constructing sql: %s", err)
	}

	var items []radar.Item
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("error fetching items: %s", err)
	}

	return items, nil
}

// RecentItems returns items collected at or after since, most credible
// first.
func (r Repo) RecentItems(ctx context.Context, since time.Time, limit int) ([]radar.Item, error) {
	const q = `SELECT * FROM items WHERE collected_at >= ? ORDER BY credibility_score DESC, published_at DESC LIMIT ?;`

	var items []radar.Item
	if err := r.db.SelectContext(ctx, &items, q, since, limit); err != nil {
		return nil, fmt.Errorf("error fetching recent items: %s", err)
	}

	return items, nil
}
