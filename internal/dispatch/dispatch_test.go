package dispatch

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inforadar/radar/internal/digest"
	"github.com/inforadar/radar/internal/radar"
)

type fakeHistory struct {
	mu      sync.Mutex
	records []radar.PushRecord
}

func (f *fakeHistory) InsertPushRecord(_ context.Context, rec radar.PushRecord) (radar.PushRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec.ID = uuid.NewString()
	rec.SentAt = time.Now().UTC()
	f.records = append(f.records, rec)
	return rec, nil
}

func (f *fakeHistory) PushRecords(context.Context, string, time.Time, time.Time) ([]radar.PushRecord, error) {
	return f.records, nil
}

func (f *fakeHistory) PushRecordByID(context.Context, string) (radar.PushRecord, error) {
	return radar.PushRecord{}, radar.ErrNotFound
}

// fakeTransport records every text it receives and can be told to fail for
// the first n calls.
type fakeTransport struct {
	mu       sync.Mutex
	sent     []string
	failures int
}

func (f *fakeTransport) Send(_ context.Context, _ radar.ChannelConfig, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return fmt.Errorf("transport down")
	}
	f.sent = append(f.sent, text)
	return nil
}

func testDispatcher(history *fakeHistory, transports map[radar.ChannelKind]Transport) *Dispatcher {
	d := New(history, transports)
	d.delay = time.Millisecond
	d.retryBase = time.Millisecond
	return d
}

func telegramChannel() radar.ChannelConfig {
	return radar.ChannelConfig{
		UserID:   "u1",
		Kind:     radar.ChannelTelegram,
		BotToken: "tok",
		ChatID:   "42",
		Verified: true,
		Enabled:  true,
	}
}

func webhookChannel() radar.ChannelConfig {
	return radar.ChannelConfig{
		UserID:     "u1",
		Kind:       radar.ChannelWebhook,
		WebhookKey: "abc",
		Enabled:    true,
	}
}

func TestDispatch_AllChannelsSucceed(t *testing.T) {
	history := &fakeHistory{}
	tg := &fakeTransport{}
	wh := &fakeTransport{}
	d := testDispatcher(history, map[radar.ChannelKind]Transport{
		radar.ChannelTelegram: tg,
		radar.ChannelWebhook:  wh,
	})

	chunks := map[radar.ChannelKind][]digest.Chunk{
		radar.ChannelTelegram: {{Text: "t1"}, {Text: "t2"}},
		radar.ChannelWebhook:  {{Text: "w1"}},
	}

	res, err := d.Dispatch(context.Background(), "u1", chunks, []radar.ChannelConfig{telegramChannel(), webhookChannel()}, 5, []string{"AI"})
	require.NoError(t, err)

	assert.True(t, res.Record.Success)
	assert.Equal(t, map[radar.ChannelKind]bool{
		radar.ChannelTelegram: true,
		radar.ChannelWebhook:  true,
	}, res.Record.ChannelResults)
	assert.Equal(t, []string{"t1", "t2"}, tg.sent)
	assert.Equal(t, []string{"w1"}, wh.sent)
	require.Len(t, history.records, 1)
	assert.Equal(t, 5, history.records[0].ItemCount)
}

func TestDispatch_FailureIsolatedPerChannel(t *testing.T) {
	history := &fakeHistory{}
	tg := &fakeTransport{failures: 100}
	wh := &fakeTransport{}
	d := testDispatcher(history, map[radar.ChannelKind]Transport{
		radar.ChannelTelegram: tg,
		radar.ChannelWebhook:  wh,
	})

	chunks := map[radar.ChannelKind][]digest.Chunk{
		radar.ChannelTelegram: {{Text: "t1"}},
		radar.ChannelWebhook:  {{Text: "w1"}},
	}

	res, err := d.Dispatch(context.Background(), "u1", chunks, []radar.ChannelConfig{telegramChannel(), webhookChannel()}, 1, []string{"AI"})
	require.NoError(t, err)

	// Telegram failed but webhook still got its message, so the run counts
	// as a success overall.
	assert.True(t, res.Record.Success)
	assert.Equal(t, map[radar.ChannelKind]bool{
		radar.ChannelTelegram: false,
		radar.ChannelWebhook:  true,
	}, res.Record.ChannelResults)
	assert.Error(t, res.ChannelErrs[radar.ChannelTelegram])
	assert.Equal(t, []string{"w1"}, wh.sent)
	require.Len(t, history.records, 1)
}

func TestDispatch_TransientFailureRetried(t *testing.T) {
	history := &fakeHistory{}
	tg := &fakeTransport{failures: 2}
	d := testDispatcher(history, map[radar.ChannelKind]Transport{
		radar.ChannelTelegram: tg,
	})

	chunks := map[radar.ChannelKind][]digest.Chunk{
		radar.ChannelTelegram: {{Text: "t1"}},
	}

	res, err := d.Dispatch(context.Background(), "u1", chunks, []radar.ChannelConfig{telegramChannel()}, 1, []string{"AI"})
	require.NoError(t, err)

	// Two failures fit inside the retry budget.
	assert.True(t, res.Record.Success)
	assert.Equal(t, []string{"t1"}, tg.sent)
}

func TestDispatch_ZeroChunkChannelSkipped(t *testing.T) {
	history := &fakeHistory{}
	tg := &fakeTransport{}
	wh := &fakeTransport{}
	d := testDispatcher(history, map[radar.ChannelKind]Transport{
		radar.ChannelTelegram: tg,
		radar.ChannelWebhook:  wh,
	})

	chunks := map[radar.ChannelKind][]digest.Chunk{
		radar.ChannelTelegram: {{Text: "t1"}},
		// No webhook chunks at all.
	}

	res, err := d.Dispatch(context.Background(), "u1", chunks, []radar.ChannelConfig{telegramChannel(), webhookChannel()}, 1, []string{"AI"})
	require.NoError(t, err)

	// The skipped channel is absent from the record, not marked failed.
	assert.Equal(t, map[radar.ChannelKind]bool{
		radar.ChannelTelegram: true,
	}, res.Record.ChannelResults)
	assert.Empty(t, wh.sent)
}

func TestDispatch_IneligibleChannelSkipped(t *testing.T) {
	history := &fakeHistory{}
	tg := &fakeTransport{}
	d := testDispatcher(history, map[radar.ChannelKind]Transport{
		radar.ChannelTelegram: tg,
	})

	unverified := telegramChannel()
	unverified.Verified = false

	chunks := map[radar.ChannelKind][]digest.Chunk{
		radar.ChannelTelegram: {{Text: "t1"}},
	}

	_, err := d.Dispatch(context.Background(), "u1", chunks, []radar.ChannelConfig{unverified}, 1, []string{"AI"})
	assert.ErrorIs(t, err, radar.ErrNoChannelConfigured)
	assert.Empty(t, tg.sent)
	assert.Empty(t, history.records)
}

func TestDispatch_NoChannelsAtAll(t *testing.T) {
	history := &fakeHistory{}
	d := testDispatcher(history, map[radar.ChannelKind]Transport{})

	_, err := d.Dispatch(context.Background(), "u1", nil, nil, 0, nil)
	assert.ErrorIs(t, err, radar.ErrNoChannelConfigured)
	assert.Empty(t, history.records)
}

func TestDispatch_AllChannelsFail(t *testing.T) {
	history := &fakeHistory{}
	tg := &fakeTransport{failures: 100}
	d := testDispatcher(history, map[radar.ChannelKind]Transport{
		radar.ChannelTelegram: tg,
	})

	chunks := map[radar.ChannelKind][]digest.Chunk{
		radar.ChannelTelegram: {{Text: "t1"}},
	}

	res, err := d.Dispatch(context.Background(), "u1", chunks, []radar.ChannelConfig{telegramChannel()}, 1, []string{"AI"})
	require.NoError(t, err)

	// The record is still written so the failed attempt shows in history.
	assert.False(t, res.Record.Success)
	require.Len(t, history.records, 1)
	assert.False(t, history.records[0].Success)
}
