// Package pipeline wires collection, curation, rendering and dispatch into
// the two top-level runs: a scheduled pass over every pushable user, and an
// on-demand push for one user.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/inforadar/radar/internal/collect"
	"github.com/inforadar/radar/internal/curate"
	"github.com/inforadar/radar/internal/digest"
	"github.com/inforadar/radar/internal/dispatch"
	"github.com/inforadar/radar/internal/metrics"
	"github.com/inforadar/radar/internal/radar"
	"github.com/inforadar/radar/logger"
)

const (
	// Pushes only consider the last day of items.
	pushWindow = 24 * time.Hour

	// Upper bound on items loaded per push before per-domain caps apply.
	queryLimit = 200
)

type (
	// Stores groups the persistence boundaries the pipeline reads from.
	Stores struct {
		Items         radar.ItemStore
		Sources       radar.SourceStore
		Channels      radar.ChannelStore
		Policies      radar.PolicyStore
		Subscriptions radar.SubscriptionStore
	}

	Pipeline struct {
		stores     Stores
		collector  *collect.Collector
		dispatcher *dispatch.Dispatcher
		now        func() time.Time
	}

	// CollectSummary reports one collection pass.
	CollectSummary struct {
		Fetched   int
		Inserted  int
		PerSource []collect.SourceStatus
	}

	// ScheduledSummary reports one scheduled pass over all users.
	ScheduledSummary struct {
		Collect CollectSummary
		Pushed  int
		Skipped int
		Failed  int
	}
)

func New(stores Stores, collector *collect.Collector, dispatcher *dispatch.Dispatcher) *Pipeline {
	return &Pipeline{
		stores:     stores,
		collector:  collector,
		dispatcher: dispatcher,
		now:        time.Now,
	}
}

// Collect fetches a source set and persists whatever is new. An empty userID
// collects the global sources.
func (p *Pipeline) Collect(ctx context.Context, userID string) (CollectSummary, error) {
	sources, err := p.stores.Sources.EnabledSources(ctx, userID)
	if err != nil {
		return CollectSummary{}, fmt.Errorf("error loading sources: %s", err)
	}

	res, err := p.collector.Collect(ctx, sources, collect.Options{})
	if err != nil {
		return CollectSummary{}, fmt.Errorf("error collecting: %s", err)
	}

	inserted, err := p.stores.Items.InsertItems(ctx, res.NewItems)
	if err != nil {
		return CollectSummary{}, fmt.Errorf("error persisting items: %s", err)
	}

	slog.InfoContext(ctx, "collection pass done",
		"sources", len(sources),
		"fetched", len(res.NewItems),
		"inserted", inserted,
	)

	return CollectSummary{
		Fetched:   len(res.NewItems),
		Inserted:  inserted,
		PerSource: res.PerSource,
	}, nil
}

// PushUser runs the on-demand flow for one user: collect their sources, then
// curate, render and dispatch the last day of items. A non-empty only
// restricts delivery to that single channel kind.
//
// Returns [radar.ErrNoEligibleItems] when filtering leaves nothing to send
// and [radar.ErrNoChannelConfigured] when the user has no deliverable
// channel.
func (p *Pipeline) PushUser(ctx context.Context, userID string, only radar.ChannelKind) (dispatch.Result, error) {
	if _, err := p.Collect(ctx, userID); err != nil {
		return dispatch.Result{}, err
	}

	res, err := p.deliver(ctx, userID, only)
	if err != nil {
		metrics.PipelineRuns.WithLabelValues("user", "error").Inc()
		return dispatch.Result{}, err
	}
	metrics.PipelineRuns.WithLabelValues("user", "ok").Inc()

	return res, nil
}

// RunScheduled collects the global sources once, then delivers to every
// pushable user in turn. One user failing never aborts the batch.
func (p *Pipeline) RunScheduled(ctx context.Context) (ScheduledSummary, error) {
	var summary ScheduledSummary

	collected, err := p.Collect(ctx, "")
	if err != nil {
		metrics.PipelineRuns.WithLabelValues("scheduled", "error").Inc()
		return summary, err
	}
	summary.Collect = collected

	users, err := p.stores.Channels.PushableUsers(ctx)
	if err != nil {
		metrics.PipelineRuns.WithLabelValues("scheduled", "error").Inc()
		return summary, fmt.Errorf("error listing pushable users: %s", err)
	}

	for _, userID := range users {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		_, err := p.deliver(ctx, userID, "")
		switch {
		case err == nil:
			summary.Pushed++
		case isSkip(err):
			summary.Skipped++
		default:
			summary.Failed++
			slog.ErrorContext(ctx, "scheduled push failed", "user_id", userID, "err", err)
		}
	}

	metrics.PipelineRuns.WithLabelValues("scheduled", "ok").Inc()
	slog.InfoContext(ctx, "scheduled pass done",
		"users", len(users),
		"pushed", summary.Pushed,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
	)

	return summary, nil
}

// deliver curates, renders and dispatches the current item window for one
// user. It does not collect.
func (p *Pipeline) deliver(ctx context.Context, userID string, only radar.ChannelKind) (dispatch.Result, error) {
	ctx = logger.Ctx(ctx, slog.String("user_id", userID))
	now := p.now()

	domains, err := p.stores.Subscriptions.UserDomains(ctx, userID)
	if err != nil {
		return dispatch.Result{}, fmt.Errorf("error loading subscriptions: %s", err)
	}
	if len(domains) == 0 {
		return dispatch.Result{}, radar.ErrNoEligibleItems
	}

	policies, err := p.stores.Policies.DomainPolicies(ctx)
	if err != nil {
		return dispatch.Result{}, fmt.Errorf("error loading domain policies: %s", err)
	}

	items, err := p.stores.Items.ItemsByDomain(ctx, domains, now.Add(-pushWindow), queryLimit)
	if err != nil {
		return dispatch.Result{}, fmt.Errorf("error loading items: %s", err)
	}

	curated := curate.Filter(items, curate.Params{
		Policies:    policies,
		DomainOrder: domains,
		Now:         now,
		MaxAge:      pushWindow,
	})
	if len(curated) == 0 {
		return dispatch.Result{}, radar.ErrNoEligibleItems
	}

	channels, err := p.stores.Channels.UserChannels(ctx, userID)
	if err != nil {
		return dispatch.Result{}, fmt.Errorf("error loading channels: %s", err)
	}
	if only != "" {
		narrowed := channels[:0]
		for _, cfg := range channels {
			if cfg.Kind == only {
				narrowed = append(narrowed, cfg)
			}
		}
		channels = narrowed
	}

	chunks := map[radar.ChannelKind][]digest.Chunk{}
	for _, cfg := range channels {
		if !cfg.Eligible() {
			continue
		}
		chunks[cfg.Kind] = digest.Render(curated, policies, cfg.Kind, now)
	}

	return p.dispatcher.Dispatch(ctx, userID, chunks, channels, len(curated), domains)
}

// isSkip reports whether a per-user delivery error is an expected skip
// rather than a failure.
func isSkip(err error) bool {
	return errors.Is(err, radar.ErrNoEligibleItems) || errors.Is(err, radar.ErrNoChannelConfigured)
}
