package pageindex

import (
	"context"

	"github.com/calvinalkan/pageindex/pkg/markup"
)

// Store is the page store the index mirrors. It is the source of truth.
//
// Tokens are opaque and only compared for equality. A token must change
// whenever the corresponding state changes; it may also change when nothing
// did, which costs a re-read but never gives wrong results. The empty token
// means "absent": no content, or no children.
type Store interface {
	// ListChildren returns the basenames of the direct children of path,
	// including namespaces that only exist because they have children.
	ListChildren(ctx context.Context, path Path) ([]string, error)

	// Content returns the page content. ok is false when the page has no
	// content.
	Content(ctx context.Context, path Path) (content []byte, ok bool, err error)

	// ContentToken returns the content change token, "" for no content.
	ContentToken(ctx context.Context, path Path) (string, error)

	// ChildrenToken returns the child listing change token, "" for no
	// children.
	ChildrenToken(ctx context.Context, path Path) (string, error)
}

// ParsedPage is what indexers derive from a page's content.
type ParsedPage struct {
	// Links are raw link targets as written, parsed with [ParseHRef].
	Links []string

	// Tags are tag names without the leading '@'.
	Tags []string
}

// ParseFunc extracts links and tags from page content.
type ParseFunc func(content []byte) (ParsedPage, error)

// ParseMarkup is the default [ParseFunc] for wiki markup.
func ParseMarkup(content []byte) (ParsedPage, error) {
	page, err := markup.Parse(content)
	if err != nil {
		return ParsedPage{}, err
	}

	return ParsedPage{Links: page.Links, Tags: page.Tags}, nil
}
