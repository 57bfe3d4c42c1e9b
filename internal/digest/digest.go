// Package digest renders a curated item set into channel-specific message
// chunks, respecting each channel's message size limit.
package digest

import (
	"fmt"
	"html"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/inforadar/radar/internal/radar"
)

// Per-message character budgets, held under each platform's hard limit.
const (
	TelegramLimit = 4000 // Telegram rejects messages over ~4096 chars
	WebhookLimit  = 3800

	titleCutoff = 80

	divider = "━━━━━━━━━━━━━━━━━━━━━━━━"
)

// Chunk is one ready-to-send message for a channel.
type Chunk struct {
	Text string
}

// Limit returns the character budget for a channel kind; zero means the
// channel has no practical limit and renders as a single document.
func Limit(kind radar.ChannelKind) int {
	switch kind {
	case radar.ChannelTelegram:
		return TelegramLimit
	case radar.ChannelWebhook:
		return WebhookLimit
	}

	return 0
}

// Render turns the curated items into chunks for the given channel kind.
// It is a pure function of its arguments: the same inputs produce
// byte-identical output.
func Render(items []radar.Item, policies map[string]radar.DomainPolicy, kind radar.ChannelKind, now time.Time) []Chunk {
	if len(items) == 0 {
		return nil
	}

	groups := groupByDomain(items)

	if kind == radar.ChannelEmail {
		return []Chunk{{Text: renderEmail(groups, policies, items, now)}}
	}

	header := renderHeader(kind, len(items), now)
	sections := make([]string, 0, len(groups)+1)
	for _, g := range groups {
		sections = append(sections, renderSection(g, policies, kind))
	}
	sections = append(sections, renderFooter())

	return chunkSections(header, sections, Limit(kind))
}

type domainGroup struct {
	domain string
	items  []radar.Item
}

// groupByDomain buckets items while preserving the order domains first
// appear, which is the caller's declared ordering.
func groupByDomain(items []radar.Item) []domainGroup {
	var (
		order  []string
		groups = map[string][]radar.Item{}
	)
	for _, item := range items {
		if _, ok := groups[item.Domain]; !ok {
			order = append(order, item.Domain)
		}
		groups[item.Domain] = append(groups[item.Domain], item)
	}

	out := make([]domainGroup, 0, len(order))
	for _, d := range order {
		out = append(out, domainGroup{domain: d, items: groups[d]})
	}

	return out
}

func renderHeader(kind radar.ChannelKind, total int, now time.Time) string {
	date := now.UTC().Format("2006-01-02")

	var b strings.Builder
	b.WriteString("📡 " + bold(kind, "Radar Digest") + "\n")
	b.WriteString("📅 " + date + "\n\n")
	b.WriteString(divider + "\n\n")
	fmt.Fprintf(&b, "📊 %s items picked for you today\n\n", bold(kind, fmt.Sprintf("%d", total)))

	return b.String()
}

func renderSection(g domainGroup, policies map[string]radar.DomainPolicy, kind radar.ChannelKind) string {
	emoji, label := "📌", g.domain
	if p, ok := policies[g.domain]; ok {
		if p.Emoji != "" {
			emoji = p.Emoji
		}
		if p.Label != "" {
			label = p.Label
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s (%d)\n", emoji, bold(kind, label), len(g.items))
	b.WriteString(strings.Repeat("─", 30) + "\n\n")

	for i, item := range g.items {
		title := truncateTitle(item.Title)
		switch kind {
		case radar.ChannelTelegram:
			fmt.Fprintf(&b, "%d. <a href=\"%s\">%s</a>\n", i+1, html.EscapeString(item.Link), html.EscapeString(title))
		default:
			fmt.Fprintf(&b, "%d. [%s](%s)\n", i+1, title, item.Link)
		}
		fmt.Fprintf(&b, "   📍 %s | ⭐ %d/5\n\n", item.SourceName, item.Credibility)
	}

	return b.String()
}

func renderFooter() string {
	return divider + "\n✅ by Radar\n"
}

func renderEmail(groups []domainGroup, policies map[string]radar.DomainPolicy, items []radar.Item, now time.Time) string {
	date := now.UTC().Format("2006-01-02")

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<body style=\"font-family: sans-serif; max-width: 640px; margin: 0 auto;\">\n")
	b.WriteString("<h1>📡 Radar Digest</h1>\n")
	fmt.Fprintf(&b, "<p>%s · %d items</p>\n", date, len(items))

	for _, g := range groups {
		emoji, label := "📌", g.domain
		if p, ok := policies[g.domain]; ok {
			if p.Emoji != "" {
				emoji = p.Emoji
			}
			if p.Label != "" {
				label = p.Label
			}
		}

		fmt.Fprintf(&b, "<h2>%s %s (%d)</h2>\n<ol>\n", emoji, html.EscapeString(label), len(g.items))
		for _, item := range g.items {
			fmt.Fprintf(&b, "<li><a href=\"%s\">%s</a><br/><small>%s | ⭐ %d/5</small></li>\n",
				html.EscapeString(item.Link),
				html.EscapeString(truncateTitle(item.Title)),
				html.EscapeString(item.SourceName),
				item.Credibility,
			)
		}
		b.WriteString("</ol>\n")
	}

	b.WriteString("<p>✅ by Radar</p>\n</body>\n</html>\n")

	return b.String()
}

func bold(kind radar.ChannelKind, s string) string {
	if kind == radar.ChannelTelegram {
		return "<b>" + s + "</b>"
	}

	return "**" + s + "**"
}

func truncateTitle(title string) string {
	if utf8.RuneCountInString(title) <= titleCutoff {
		return title
	}

	runes := []rune(title)
	return string(runes[:titleCutoff]) + "..."
}

// chunkSections packs whole sections into chunks under the limit. Each chunk
// repeats the header. A single section bigger than the budget still goes out
// as its own oversized chunk instead of being dropped.
func chunkSections(header string, sections []string, limit int) []Chunk {
	if limit <= 0 {
		return []Chunk{{Text: header + strings.Join(sections, "")}}
	}

	var (
		chunks  []Chunk
		current strings.Builder
		count   int
	)
	current.WriteString(header)

	flush := func() {
		if count == 0 {
			return
		}
		chunks = append(chunks, Chunk{Text: current.String()})
		current.Reset()
		current.WriteString(header)
		count = 0
	}

	for _, section := range sections {
		if count > 0 && current.Len()+len(section) > limit {
			flush()
		}
		current.WriteString(section)
		count++
	}
	flush()

	return chunks
}
