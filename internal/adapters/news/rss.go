package news

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"

	"github.com/selivandex/thesis-engine/pkg/logger"
	"github.com/selivandex/thesis-engine/pkg/models"
)

// RSSProvider fetches RSS and Atom feeds
type RSSProvider struct {
	client *http.Client
}

// NewRSSProvider creates new feed provider
func NewRSSProvider(timeout time.Duration) *RSSProvider {
	return &RSSProvider{
		client: &http.Client{Timeout: timeout},
	}
}

func (r *RSSProvider) GetName() string {
	return "rss"
}

// FetchFeed parses one feed url and returns its first limit entries
func (r *RSSProvider) FetchFeed(ctx context.Context, feedURL string, limit int) ([]models.NewsItem, error) {
	parser := gofeed.NewParser()
	parser.Client = r.client

	feed, err := parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", feedURL, err)
	}

	source := strings.TrimSpace(feed.Title)
	if source == "" {
		source = feedHost(feedURL)
	}

	entries := feed.Items
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	items := make([]models.NewsItem, 0, len(entries))
	for _, entry := range entries {
		if entry == nil {
			continue
		}
		summary := entry.Description
		if summary == "" {
			summary = entry.Content
		}
		items = append(items, models.NewsItem{
			Title:     strings.TrimSpace(entry.Title),
			URL:       strings.TrimSpace(entry.Link),
			Published: models.StringPtr(publishedAt(entry)),
			Source:    source,
			Summary:   models.StringPtr(StripHTML(summary)),
		})
	}

	logger.Debug("feed parsed",
		zap.String("feed", feedURL),
		zap.String("source", source),
		zap.Int("items", len(items)),
	)

	return items, nil
}

// publishedAt picks the first parseable timestamp and formats it as RFC3339 UTC
func publishedAt(entry *gofeed.Item) string {
	for _, ts := range []*time.Time{entry.PublishedParsed, entry.UpdatedParsed} {
		if ts != nil && !ts.IsZero() {
			return ts.UTC().Format(time.RFC3339)
		}
	}
	for _, raw := range []string{entry.Published, entry.Updated} {
		for _, layout := range []string{time.RFC3339, time.RFC1123Z, time.RFC1123} {
			if t, err := time.Parse(layout, strings.TrimSpace(raw)); err == nil {
				return t.UTC().Format(time.RFC3339)
			}
		}
	}
	return ""
}

func feedHost(feedURL string) string {
	u, err := url.Parse(feedURL)
	if err != nil || u.Host == "" {
		return feedURL
	}
	return u.Host
}

// StripHTML returns the visible text of an HTML fragment with whitespace collapsed
func StripHTML(fragment string) string {
	if strings.TrimSpace(fragment) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.Join(strings.Fields(fragment), " ")
	}
	var parts []string
	collectText(doc.Selection, &parts)
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

// collectText appends text nodes in document order, skipping script and style
func collectText(s *goquery.Selection, parts *[]string) {
	s.Contents().Each(func(_ int, c *goquery.Selection) {
		switch goquery.NodeName(c) {
		case "#text":
			*parts = append(*parts, c.Text())
		case "script", "style":
		default:
			collectText(c, parts)
		}
	})
}
