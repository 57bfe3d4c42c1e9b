package collect

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
)

// rawEntry is one parsed feed entry, alive only for the duration of a
// collection pass.
type rawEntry struct {
	Title       string
	Link        string
	GUID        string
	Summary     string
	PublishedAt time.Time
}

// Represents a response from an RSS feed fetch.
type rssFeedResp struct {
	XMLName xml.Name `xml:"rss"`
	Channel []struct {
		Title string `xml:"title"`
		Items []struct {
			Title       string `xml:"title"`
			Link        string `xml:"link"`
			GUID        string `xml:"guid"`
			Description string `xml:"description"`
			PubDate     string `xml:"pubDate"`
		} `xml:"item"`
	} `xml:"channel"`
}

// Represents a response from an Atom feed fetch.
type atomFeedResp struct {
	XMLName xml.Name `xml:"feed"`
	Entries []struct {
		Title   string `xml:"title"`
		ID      string `xml:"id"`
		Summary string `xml:"summary"`
		Content string `xml:"content"`
		Updated string `xml:"updated"`
		Links   []struct {
			Href string `xml:"href,attr"`
			Rel  string `xml:"rel,attr"`
		} `xml:"link"`
	} `xml:"entry"`
}

// fetchEntries goes to the url and grabs the feed's entries, handling both
// RSS and Atom payloads.
func fetchEntries(ctx context.Context, client *http.Client, url string, now time.Time) ([]rawEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("error building feed request: %s", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error getting feed url: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading feed body: %s", err)
	}

	if detectFormat(body) == "atom" {
		return parseAtom(body, now)
	}

	return parseRSS(body, now)
}

// Sniffs whether the payload is an Atom feed; everything else is decoded as
// RSS since that's the overwhelming default.
func detectFormat(body []byte) string {
	if bytes.Contains(body, []byte("<feed")) && !bytes.Contains(body, []byte("<rss")) {
		return "atom"
	}

	return "rss"
}

func parseRSS(body []byte, now time.Time) ([]rawEntry, error) {
	var feedResp rssFeedResp
	if err := xml.Unmarshal(body, &feedResp); err != nil {
		return nil, fmt.Errorf("error decoding feed: %s", err)
	}

	entries := []rawEntry{}
	for _, channel := range feedResp.Channel {
		for _, item := range channel.Items {
			entries = append(entries, rawEntry{
				Title:       sanitize(item.Title),
				Link:        strings.TrimSpace(item.Link),
				GUID:        strings.TrimSpace(item.GUID),
				Summary:     sanitize(item.Description),
				PublishedAt: parseFeedTime(item.PubDate, now),
			})
		}
	}

	return entries, nil
}

func parseAtom(body []byte, now time.Time) ([]rawEntry, error) {
	var feedResp atomFeedResp
	if err := xml.Unmarshal(body, &feedResp); err != nil {
		return nil, fmt.Errorf("error decoding feed: %s", err)
	}

	entries := []rawEntry{}
	for _, entry := range feedResp.Entries {
		summary := entry.Summary
		if summary == "" {
			summary = entry.Content
		}

		var link string
		for _, l := range entry.Links {
			if l.Rel == "" || l.Rel == "alternate" {
				link = l.Href
				break
			}
		}

		entries = append(entries, rawEntry{
			Title:       sanitize(entry.Title),
			Link:        strings.TrimSpace(link),
			GUID:        strings.TrimSpace(entry.ID),
			Summary:     sanitize(summary),
			PublishedAt: parseFeedTime(entry.Updated, now),
		})
	}

	return entries, nil
}

// Feeds are sloppy about date formats, so try the usual suspects and fall
// back to the collection time.
func parseFeedTime(raw string, now time.Time) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return now
	}

	for _, layout := range []string{
		time.RFC1123Z,
		time.RFC1123,
		time.RFC3339,
		"2006-01-02T15:04:05Z",
		"Mon, 2 Jan 2006 15:04:05 -0700",
	} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}

	return now
}

var stripPolicy = bluemonday.StrictPolicy()

// Removes all html tags from the string, usually a description.
//
// Also limits the length of the string so there's not a massive chunk of text being output.
func sanitize(s string) string {
	s = strings.TrimSpace(s)
	s = stripPolicy.Sanitize(s)
	if len(s) > 2048 {
		s = s[:2048]
	}

	return s
}
