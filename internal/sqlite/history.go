package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/inforadar/radar/internal/radar"
)

const pushNamespace = "-psh"

// pushRow is the storage shape of a PushRecord; domains and channel results
// live in JSON text columns.
type pushRow struct {
	ID             string    `db:"id"`
	UserID         string    `db:"user_id"`
	ItemCount      int       `db:"item_count"`
	Domains        string    `db:"domains"`
	SentAt         time.Time `db:"sent_at"`
	ChannelResults string    `db:"channel_results"`
	Success        bool      `db:"success"`
}

func (p pushRow) record() (radar.PushRecord, error) {
	rec := radar.PushRecord{
		ID:        p.ID,
		UserID:    p.UserID,
		ItemCount: p.ItemCount,
		SentAt:    p.SentAt,
		Success:   p.Success,
	}
	if err := json.Unmarshal([]byte(p.Domains), &rec.Domains); err != nil {
		return radar.PushRecord{}, fmt.Errorf("error decoding domains: %s", err)
	}
	if err := json.Unmarshal([]byte(p.ChannelResults), &rec.ChannelResults); err != nil {
		return radar.PushRecord{}, fmt.Errorf("error decoding channel results: %s", err)
	}

	return rec, nil
}

func (r Repo) InsertPushRecord(ctx context.Context, rec radar.PushRecord) (radar.PushRecord, error) {
	if rec.Domains == nil {
		rec.Domains = []string{}
	}
	if rec.ChannelResults == nil {
		rec.ChannelResults = map[radar.ChannelKind]bool{}
	}

	domains, err := json.Marshal(rec.Domains)
	if err != nil {
		return radar.PushRecord{}, fmt.Errorf("error encoding domains: %s", err)
	}
	results, err := json.Marshal(rec.ChannelResults)
	if err != nil {
		return radar.PushRecord{}, fmt.Errorf("error encoding channel results: %s", err)
	}

	row := pushRow{
		ID:             fmt.Sprintf("%s%s", uuid.NewString(), pushNamespace),
		UserID:         rec.UserID,
		ItemCount:      rec.ItemCount,
		Domains:        string(domains),
		SentAt:         time.Now().UTC(),
		ChannelResults: string(results),
		Success:        rec.Success,
	}

	const q = `INSERT INTO push_history (id, user_id, item_count, domains, sent_at, channel_results, success)
	VALUES (:id, :user_id, :item_count, :domains, :sent_at, :channel_results, :success);`
	if _, err := r.db.NamedExecContext(ctx, q, row); err != nil {
		return radar.PushRecord{}, fmt.Errorf("error inserting push record: %s", err)
	}

	return r.PushRecordByID(ctx, row.ID)
}

func (r Repo) PushRecords(ctx context.Context, userID string, from, to time.Time) ([]radar.PushRecord, error) {
	const q = `SELECT * FROM push_history WHERE user_id = ? AND sent_at >= ? AND sent_at < ? ORDER BY sent_at DESC;`

	var rows []pushRow
	if err := r.db.SelectContext(ctx, &rows, q, userID, from, to); err != nil {
		return nil, fmt.Errorf("error fetching push records: %s", err)
	}

	records := make([]radar.PushRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := row.record()
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, nil
}

func (r Repo) PushRecordByID(ctx context.Context, id string) (radar.PushRecord, error) {
	const q = `SELECT * FROM push_history WHERE id = ?;`

	var row pushRow
	err := r.db.GetContext(ctx, &row, q, id)
	if errors.Is(err, sql.ErrNoRows) {
		return radar.PushRecord{}, radar.ErrNotFound
	}
	if err != nil {
		return radar.PushRecord{}, fmt.Errorf("error fetching push record: %s", err)
	}

	return row.record()
}
