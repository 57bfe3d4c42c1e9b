// Package curate ranks and caps collected items per topical domain.
package curate

import (
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	goaway "github.com/TwiN/go-away"

	"github.com/inforadar/radar/internal/radar"
)

// Titles matching any of these markers are treated as clickbait and dropped.
// Exact substring match, carried over from the upstream source lists.
var clickbaitMarkers = []string{
	"震惊", "吓死", "不看后悔", "必看", "颠覆", "秒杀",
	"暴涨", "暴跌", "翻倍", "绝密", "内幕",
}

const minTitleLength = 10

type (
	// Params configure one filtering pass.
	Params struct {
		// Policies by domain. Items in a domain with no policy are excluded
		// entirely rather than passed through uncapped.
		Policies map[string]radar.DomainPolicy
		// DomainOrder is the caller's declared ordering, e.g. a user's
		// subscription order. Only listed domains appear in the output.
		DomainOrder []string
		// Now anchors the staleness check.
		Now time.Time
		// MaxAge is the staleness cutoff: 24h for pushes, longer for views.
		MaxAge time.Duration
	}
)

// Filter returns the curated subset of items: fresh, quality-checked, ranked
// by credibility within each domain, floored and capped per the domain's
// policy, ordered by the caller's domain order.
func Filter(items []radar.Item, p Params) []radar.Item {
	cutoff := p.Now.Add(-p.MaxAge)

	keep := make([]radar.Item, 0, len(items))
	for _, item := range items {
		if item.PublishedAt.Before(cutoff) {
			continue
		}
		if !acceptableTitle(item.Title) || item.Link == "" {
			continue
		}
		keep = append(keep, item)
	}

	byDomain := map[string][]radar.Item{}
	for _, item := range keep {
		byDomain[item.Domain] = append(byDomain[item.Domain], item)
	}

	var out []radar.Item
	for _, domain := range p.DomainOrder {
		policy, ok := p.Policies[domain]
		if !ok {
			// Fail closed: an unconfigured domain sends nothing.
			continue
		}

		group := byDomain[domain]
		sort.SliceStable(group, func(i, j int) bool {
			if group[i].Credibility != group[j].Credibility {
				return group[i].Credibility > group[j].Credibility
			}
			return group[i].PublishedAt.After(group[j].PublishedAt)
		})

		retained := 0
		for _, item := range group {
			if retained >= policy.MaxItems {
				break
			}
			// The credibility floor is applied before counting, so a skipped
			// item never consumes a cap slot.
			if item.Credibility < policy.MinCredibility {
				continue
			}
			out = append(out, item)
			retained++
		}
	}

	return out
}

// acceptableTitle rejects degenerate, clickbait, and profane titles.
func acceptableTitle(title string) bool {
	if utf8.RuneCountInString(title) < minTitleLength {
		return false
	}
	for _, marker := range clickbaitMarkers {
		if strings.Contains(title, marker) {
			return false
		}
	}

	return !goaway.IsProfane(title)
}
