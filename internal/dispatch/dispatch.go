// Package dispatch fans rendered digest chunks out to a user's delivery
// channels and records the outcome.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/inforadar/radar/internal/digest"
	"github.com/inforadar/radar/internal/metrics"
	"github.com/inforadar/radar/internal/radar"
)

const (
	sendTimeout     = 10 * time.Second
	interChunkDelay = 500 * time.Millisecond

	// Two retries after the first attempt, fibonacci spaced.
	maxRetries       = 2
	defaultRetryBase = 500 * time.Millisecond
)

// Transport sends one message to one configured channel.
type Transport interface {
	Send(ctx context.Context, cfg radar.ChannelConfig, text string) error
}

// channelOrder fixes the dispatch sequence so runs are deterministic.
var channelOrder = []radar.ChannelKind{
	radar.ChannelTelegram,
	radar.ChannelWebhook,
	radar.ChannelEmail,
}

type Dispatcher struct {
	transports map[radar.ChannelKind]Transport
	history    radar.HistoryStore
	delay      time.Duration
	retryBase  time.Duration
}

func New(history radar.HistoryStore, transports map[radar.ChannelKind]Transport) *Dispatcher {
	return &Dispatcher{
		transports: transports,
		history:    history,
		delay:      interChunkDelay,
		retryBase:  defaultRetryBase,
	}
}

// Result carries the persisted record and, for reporting, the error behind
// each failed channel.
type Result struct {
	Record      radar.PushRecord
	ChannelErrs map[radar.ChannelKind]error
}

// Dispatch delivers the per-channel chunks to every eligible channel in a
// fixed order. A channel with no chunks is skipped and left out of the
// record. One channel failing never stops the others. Exactly one PushRecord
// is written once all channels have settled.
func (d *Dispatcher) Dispatch(ctx context.Context, userID string, chunks map[radar.ChannelKind][]digest.Chunk, channels []radar.ChannelConfig, itemCount int, domains []string) (Result, error) {
	byKind := map[radar.ChannelKind]radar.ChannelConfig{}
	for _, cfg := range channels {
		if cfg.Eligible() {
			byKind[cfg.Kind] = cfg
		}
	}
	if len(byKind) == 0 {
		return Result{}, radar.ErrNoChannelConfigured
	}

	res := Result{
		Record: radar.PushRecord{
			UserID:         userID,
			ItemCount:      itemCount,
			Domains:        domains,
			ChannelResults: map[radar.ChannelKind]bool{},
		},
		ChannelErrs: map[radar.ChannelKind]error{},
	}

	for _, kind := range channelOrder {
		cfg, ok := byKind[kind]
		if !ok || len(chunks[kind]) == 0 {
			continue
		}

		if err := d.sendAll(ctx, cfg, chunks[kind]); err != nil {
			slog.ErrorContext(ctx, "channel delivery failed",
				"channel", string(kind),
				"user_id", userID,
				"err", err,
			)
			res.Record.ChannelResults[kind] = false
			res.ChannelErrs[kind] = err
			continue
		}

		res.Record.ChannelResults[kind] = true
	}

	for _, ok := range res.Record.ChannelResults {
		if ok {
			res.Record.Success = true
			break
		}
	}

	rec, err := d.history.InsertPushRecord(ctx, res.Record)
	if err != nil {
		return res, fmt.Errorf("error recording push: %s", err)
	}
	res.Record = rec

	return res, nil
}

// sendAll delivers a channel's chunks in order, pausing between them so chat
// platforms don't rate-limit the burst.
func (d *Dispatcher) sendAll(ctx context.Context, cfg radar.ChannelConfig, chunks []digest.Chunk) error {
	transport, ok := d.transports[cfg.Kind]
	if !ok {
		return fmt.Errorf("no transport for channel %q", cfg.Kind)
	}

	for i, chunk := range chunks {
		if i > 0 {
			select {
			case <-time.After(d.delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		backoff := retry.WithMaxRetries(maxRetries, retry.NewFibonacci(d.retryBase))
		err := retry.Do(ctx, backoff, func(ctx context.Context) error {
			if err := transport.Send(ctx, cfg, chunk.Text); err != nil {
				return retry.RetryableError(err)
			}
			return nil
		})
		if err != nil {
			metrics.ChunkSends.WithLabelValues(string(cfg.Kind), "error").Inc()
			return fmt.Errorf("error sending chunk %d/%d: %s", i+1, len(chunks), err)
		}
		metrics.ChunkSends.WithLabelValues(string(cfg.Kind), "ok").Inc()
	}

	return nil
}
