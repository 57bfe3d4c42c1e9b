// Package radar holds the core types for the aggregation-and-delivery
// pipeline, along with the boundary interfaces it consumes.
package radar

import (
	"context"
	"errors"
	"time"
)

var (
	ErrConflict = errors.New("resource already exists")
	ErrNotFound = errors.New("resource not found")

	// ErrNoEligibleItems is returned by an on-demand push when collection and
	// filtering produced nothing worth sending.
	ErrNoEligibleItems = errors.New("no eligible items")
	// ErrNoChannelConfigured is returned by an on-demand push when the user
	// has no verified, enabled channel to deliver to.
	ErrNoChannelConfigured = errors.New("no channel configured")
)

// ChannelKind identifies a delivery target type.
type ChannelKind string

const (
	ChannelTelegram ChannelKind = "telegram"
	ChannelWebhook  ChannelKind = "webhook"
	ChannelEmail    ChannelKind = "email"
)

type (
	// Source is a single configured feed. A source with an empty UserID is
	// global and picked up by scheduled collection runs.
	Source struct {
		ID          string    `db:"id"`
		UserID      *string   `db:"user_id"`
		Name        string    `db:"name"`
		URL         string    `db:"url"`
		Domain      string    `db:"domain"`
		Credibility int       `db:"credibility"`
		Enabled     bool      `db:"enabled"`
		SortOrder   int       `db:"sort_order"`
		CreatedAt   time.Time `db:"created_at"`
		UpdatedAt   time.Time `db:"updated_at"`
	}

	// Item is a deduplicated feed entry as persisted in the item store.
	// Rows are written once per fingerprint and never updated afterwards.
	Item struct {
		ID          string    `db:"id"`
		Fingerprint string    `db:"fingerprint"`
		Title       string    `db:"title"`
		Link        string    `db:"link"`
		Content     string    `db:"content"`
		SourceName  string    `db:"source_name"`
		Domain      string    `db:"domain"`
		PublishedAt time.Time `db:"published_at"`
		CollectedAt time.Time `db:"collected_at"`
		Credibility int       `db:"credibility_score"`
	}

	// DomainPolicy caps and quality-gates one topical domain. Domains
	// without a policy are excluded from digests entirely.
	DomainPolicy struct {
		Domain         string `db:"domain"`
		MaxItems       int    `db:"max_items"`
		MinCredibility int    `db:"min_credibility"`
		Emoji          string `db:"emoji"`
		Label          string `db:"label"`
	}

	// ChannelConfig holds one user's credentials for one channel kind.
	// Credentials are opaque to the pipeline beyond the eligibility check.
	ChannelConfig struct {
		UserID       string      `db:"user_id"`
		Kind         ChannelKind `db:"kind"`
		BotToken     string      `db:"bot_token"`
		ChatID       string      `db:"chat_id"`
		WebhookKey   string      `db:"webhook_key"`
		EmailAddress string      `db:"email_address"`
		Verified     bool        `db:"verified"`
		Enabled      bool        `db:"enabled"`
		UpdatedAt    time.Time   `db:"updated_at"`
	}

	// Subscription declares a user's interest in a domain. Sort order is the
	// order domains appear in rendered digests.
	Subscription struct {
		UserID    string `db:"user_id"`
		Domain    string `db:"domain"`
		Enabled   bool   `db:"enabled"`
		SortOrder int    `db:"sort_order"`
	}

	// PushRecord is the append-only audit entry for one delivery run.
	PushRecord struct {
		ID        string
		UserID    string
		ItemCount int
		Domains   []string
		SentAt    time.Time
		// Per-channel outcome. A channel that was skipped (nothing to send,
		// or not configured) is absent from the map rather than false.
		ChannelResults map[ChannelKind]bool
		Success        bool
	}
)

// Eligible reports whether the channel can be delivered to: credentials
// present, enabled, and (where the kind requires it) verified.
func (c ChannelConfig) Eligible() bool {
	if !c.Enabled {
		return false
	}
	switch c.Kind {
	case ChannelTelegram:
		return c.Verified && c.BotToken != "" && c.ChatID != ""
	case ChannelWebhook:
		return c.WebhookKey != ""
	case ChannelEmail:
		return c.Verified && c.EmailAddress != ""
	}

	return false
}

type (
	// ItemStore is the persistence boundary for collected items. Uniqueness
	// on fingerprint is enforced by the store, not by the caller.
	ItemStore interface {
		// ExistingFingerprints returns the subset of candidates already
		// present, in a single batched query.
		ExistingFingerprints(ctx context.Context, candidates []string) (map[string]bool, error)
		// InsertItems persists the batch, silently ignoring fingerprint
		// conflicts, and returns how many rows were actually inserted.
		InsertItems(ctx context.Context, items []Item) (int, error)
		// ItemsByDomain returns items in the given domains collected at or
		// after since, most credible first.
		ItemsByDomain(ctx context.Context, domains []string, since time.Time, limit int) ([]Item, error)
		// RecentItems returns items collected at or after since, most
		// credible first.
		RecentItems(ctx context.Context, since time.Time, limit int) ([]Item, error)
	}

	SourceStore interface {
		// EnabledSources lists enabled sources. An empty userID selects the
		// global set used by scheduled runs.
		EnabledSources(ctx context.Context, userID string) ([]Source, error)
	}

	ChannelStore interface {
		UserChannels(ctx context.Context, userID string) ([]ChannelConfig, error)
		// PushableUsers lists ids of users with at least one eligible channel.
		PushableUsers(ctx context.Context) ([]string, error)
	}

	PolicyStore interface {
		DomainPolicies(ctx context.Context) (map[string]DomainPolicy, error)
	}

	SubscriptionStore interface {
		// UserDomains returns the user's enabled domains in subscription order.
		UserDomains(ctx context.Context, userID string) ([]string, error)
	}

	HistoryStore interface {
		InsertPushRecord(ctx context.Context, rec PushRecord) (PushRecord, error)
		PushRecords(ctx context.Context, userID string, from, to time.Time) ([]PushRecord, error)
		PushRecordByID(ctx context.Context, id string) (PushRecord, error)
	}
)
