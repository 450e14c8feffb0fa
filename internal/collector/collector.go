// Package collector defines how conversation snapshots reach the scheduler.
// The scheduler depends only on the Collector contract, never on where the
// transcript actually comes from.
package collector

import (
	"context"
	"regexp"
	"strings"

	"github.com/akshtjain/unifychatsmono/internal/chat"
)

// Collector produces one complete, ordered snapshot of the conversation
// currently being observed.
type Collector interface {
	Collect(ctx context.Context) (*chat.Snapshot, error)
}

var (
	chatgptIDPattern = regexp.MustCompile(`/c/([a-zA-Z0-9-]+)`)
	claudeIDPattern  = regexp.MustCompile(`/chat/([a-zA-Z0-9-]+)`)
)

// ExternalIDFromURL extracts the provider-assigned conversation id from a
// conversation URL. When no id can be extracted the URL itself serves as the
// external id, which still yields a stable natural key.
func ExternalIDFromURL(provider chat.Provider, url string) string {
	var pattern *regexp.Regexp
	switch provider {
	case chat.ProviderChatGPT:
		pattern = chatgptIDPattern
	case chat.ProviderClaude:
		pattern = claudeIDPattern
	default:
		return url
	}
	if m := pattern.FindStringSubmatch(url); m != nil {
		return m[1]
	}
	return url
}

// CleanTitle strips the provider suffixes the platforms append to page
// titles ("... - ChatGPT", "... | Grok").
func CleanTitle(title string) string {
	for _, suffix := range []string{" - ChatGPT", " - Claude", " - Gemini", " | Grok", " - Perplexity"} {
		title = strings.TrimSuffix(title, suffix)
	}
	return strings.TrimSpace(title)
}
