package models

import (
	"fmt"
	"strings"
	"time"
)

// ItemSource identifies the upstream adapter an item came from.
type ItemSource string

const (
	SourceRSS        ItemSource = "rss"
	SourceStream     ItemSource = "stream"
	SourceNewsletter ItemSource = "newsletter"
)

// IsValid returns true if the source is a known adapter type.
func (s ItemSource) IsValid() bool {
	switch s {
	case SourceRSS, SourceStream, SourceNewsletter:
		return true
	}
	return false
}

// RawItem is one fetched, unprocessed news item. Immutable once fetched.
// ID is namespaced with the source tag so ids from different adapters
// never collide in the seen-set.
type RawItem struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Body        string     `json:"body,omitempty"`
	Link        string     `json:"link,omitempty"`
	Source      ItemSource `json:"source"`
	PublishedAt time.Time  `json:"published_at"`
	FetchedAt   time.Time  `json:"fetched_at"`
}

// NamespacedID builds a source-scoped item id from a native source id.
func NamespacedID(source ItemSource, nativeID string) string {
	return fmt.Sprintf("%s:%s", source, strings.TrimSpace(nativeID))
}

// Text returns the headline text sent to the extractor: the title, with
// the body appended when the source provides one.
func (r *RawItem) Text() string {
	title := strings.TrimSpace(r.Title)
	body := strings.TrimSpace(r.Body)
	if body == "" {
		return title
	}
	if title == "" {
		return body
	}
	return title + "\n\n" + body
}

// Validate checks the fields required before an item may enter the pipeline.
func (r *RawItem) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("raw item missing id")
	}
	if !r.Source.IsValid() {
		return fmt.Errorf("raw item %s has unknown source %q", r.ID, r.Source)
	}
	if strings.TrimSpace(r.Title) == "" && strings.TrimSpace(r.Body) == "" {
		return fmt.Errorf("raw item %s has no text", r.ID)
	}
	return nil
}
