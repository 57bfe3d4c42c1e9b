package digest

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inforadar/radar/internal/radar"
)

var renderTime = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

var testPolicies = map[string]radar.DomainPolicy{
	"AI":         {Domain: "AI", MaxItems: 5, MinCredibility: 1, Emoji: "🤖", Label: "AI / Tech"},
	"Investment": {Domain: "Investment", MaxItems: 5, MinCredibility: 1, Emoji: "💰", Label: "Investment"},
}

func curatedItem(title, domain, source string, cred int) radar.Item {
	return radar.Item{
		Title:       title,
		Link:        "https://example.com/" + strings.ReplaceAll(title, " ", "-"),
		Domain:      domain,
		SourceName:  source,
		Credibility: cred,
		PublishedAt: renderTime.Add(-time.Hour),
	}
}

func TestRender_Telegram(t *testing.T) {
	items := []radar.Item{
		curatedItem("big model release", "AI", "Hacker News", 4),
		curatedItem("funding round closes", "Investment", "36Kr", 3),
	}

	chunks := Render(items, testPolicies, radar.ChannelTelegram, renderTime)
	require.Len(t, chunks, 1)

	text := chunks[0].Text
	assert.Contains(t, text, "<b>Radar Digest</b>")
	assert.Contains(t, text, "2024-06-01")
	assert.Contains(t, text, "🤖 <b>AI / Tech</b> (1)")
	assert.Contains(t, text, `<a href="https://example.com/big-model-release">big model release</a>`)
	assert.Contains(t, text, "📍 Hacker News | ⭐ 4/5")
	assert.Contains(t, text, "💰 <b>Investment</b> (1)")

	// Domain order in the input is preserved in the output.
	assert.Less(t, strings.Index(text, "AI / Tech"), strings.Index(text, "Investment"))
}

func TestRender_WebhookMarkdown(t *testing.T) {
	items := []radar.Item{curatedItem("big model release", "AI", "Hacker News", 4)}

	chunks := Render(items, testPolicies, radar.ChannelWebhook, renderTime)
	require.Len(t, chunks, 1)

	text := chunks[0].Text
	assert.Contains(t, text, "**Radar Digest**")
	assert.Contains(t, text, "[big model release](https://example.com/big-model-release)")
	assert.NotContains(t, text, "<a href")
}

func TestRender_EmailSingleDocument(t *testing.T) {
	var items []radar.Item
	for i := 0; i < 200; i++ {
		items = append(items, curatedItem(fmt.Sprintf("story number %d", i), "AI", "Hacker News", 4))
	}

	chunks := Render(items, testPolicies, radar.ChannelEmail, renderTime)
	require.Len(t, chunks, 1)
	assert.Contains(t, chunks[0].Text, "<!DOCTYPE html>")
	assert.Contains(t, chunks[0].Text, "<h2>🤖 AI / Tech (200)</h2>")
}

func TestRender_Deterministic(t *testing.T) {
	items := []radar.Item{
		curatedItem("big model release", "AI", "Hacker News", 4),
		curatedItem("funding round closes", "Investment", "36Kr", 3),
	}

	a := Render(items, testPolicies, radar.ChannelTelegram, renderTime)
	b := Render(items, testPolicies, radar.ChannelTelegram, renderTime)
	assert.Equal(t, a, b)
}

func TestRender_TitleTruncation(t *testing.T) {
	long := strings.Repeat("very long title ", 10) // 160 chars
	items := []radar.Item{curatedItem(long, "AI", "Hacker News", 4)}

	chunks := Render(items, testPolicies, radar.ChannelWebhook, renderTime)
	require.Len(t, chunks, 1)
	assert.Contains(t, chunks[0].Text, string([]rune(long)[:80])+"...")
	assert.NotContains(t, chunks[0].Text, long)
}

func TestRender_EmptyInput(t *testing.T) {
	assert.Nil(t, Render(nil, testPolicies, radar.ChannelTelegram, renderTime))
}

func TestRender_ChunksStayUnderLimit(t *testing.T) {
	// Enough domains that the sections cannot fit one message.
	policies := map[string]radar.DomainPolicy{}
	var items []radar.Item
	for d := 0; d < 12; d++ {
		domain := fmt.Sprintf("Domain%02d", d)
		policies[domain] = radar.DomainPolicy{Domain: domain, MaxItems: 10, MinCredibility: 1}
		for i := 0; i < 8; i++ {
			items = append(items, curatedItem(fmt.Sprintf("story %02d in domain %s", i, domain), domain, "Some Source", 3))
		}
	}

	chunks := Render(items, policies, radar.ChannelTelegram, renderTime)
	require.Greater(t, len(chunks), 1)

	for i, chunk := range chunks {
		assert.LessOrEqual(t, len(chunk.Text), TelegramLimit, "chunk %d over budget", i)
		// Every chunk carries the header.
		assert.Contains(t, chunk.Text, "Radar Digest")
	}
}

func TestChunkSections_OversizedSectionStillEmitted(t *testing.T) {
	header := "header\n"
	big := strings.Repeat("x", 500)
	small := "small section\n"

	chunks := chunkSections(header, []string{small, big, small}, 100)
	require.Len(t, chunks, 3)

	// The oversized section goes out on its own, over budget but not dropped.
	assert.Contains(t, chunks[1].Text, big)
	assert.Greater(t, len(chunks[1].Text), 100)
}

func TestChunkSections_NoLimitSingleChunk(t *testing.T) {
	chunks := chunkSections("h", []string{"a", "b", "c"}, 0)
	require.Len(t, chunks, 1)
	assert.Equal(t, "habc", chunks[0].Text)
}
