package pageindex

import (
	"context"
	"fmt"
	"strings"
)

// resolveLink resolves href as written on page source.
//
// Absolute links start at the root and relative links at source itself.
// Floating links start at the nearest namespace above source that contains
// the first segment: searching from source's parent outward to the root,
// a namespace matches when it has a child row with the first segment's sort
// key, or when source's own path passes through such a segment. Without a
// match the anchor is source's parent. From the anchor the names resolve
// downward case-insensitively, ending in a placeholder when a segment has
// no row.
func resolveLink(ctx context.Context, q querier, source Path, href HRef) (IndexPath, error) {
	var (
		anchor IndexPath
		err    error
	)

	switch href.Rel {
	case RelAbsolute:
		anchor = rootIndexPath()
	case RelRelative:
		anchor, err = lookupExisting(ctx, q, source)
	default:
		anchor, err = floatingAnchor(ctx, q, source, href.SortKeys[0])
	}

	if err != nil {
		return IndexPath{}, err
	}

	return resolveDown(ctx, q, anchor, href.Names)
}

func floatingAnchor(ctx context.Context, q querier, source Path, key string) (IndexPath, error) {
	src, err := lookupExisting(ctx, q, source)
	if err != nil {
		return IndexPath{}, err
	}

	parts := source.Parts()

	for depth := len(parts) - 1; depth >= 0; depth-- {
		ns := namespaceAt(src, parts, depth)

		if SortKey(parts[depth]) == key {
			return ns, nil
		}

		if !ns.Exists() {
			continue
		}

		_, _, ok, err := childBySortKey(ctx, q, ns.ID(), key)
		if err != nil {
			return IndexPath{}, err
		}

		if ok {
			return ns, nil
		}
	}

	return namespaceAt(src, parts, max(len(parts)-1, 0)), nil
}

// namespaceAt returns the IndexPath of the first depth segments of src.
func namespaceAt(src IndexPath, parts []string, depth int) IndexPath {
	ids := src.IDs
	if len(ids) > depth+1 {
		ids = ids[:depth+1]
	}

	return IndexPath{Path: Path{name: strings.Join(parts[:depth], ":")}, IDs: ids}
}

// createLink returns the shortest link that resolves from source to target:
// a floating link when one resolves correctly, a relative link for pages
// below source, and an absolute link otherwise.
func createLink(ctx context.Context, q querier, source, target Path) (HRef, error) {
	if target.IsRoot() {
		return HRef{}, fmt.Errorf("%w: cannot link to the root", ErrInvalidLink)
	}

	if target.IsChildOf(source) {
		names := target.Parts()[source.Depth():]
		href := NewHRef(RelRelative, names...)

		return href, nil
	}

	tparts := target.Parts()

	// Try floating links from the shortest suffix upward that starts at a
	// namespace shared with source.
	for start := len(tparts) - 1; start >= 0; start-- {
		href := NewHRef(RelFloating, tparts[start:]...)

		got, err := resolveLink(ctx, q, source, href)
		if err != nil {
			return HRef{}, err
		}

		if got.Equal(target) {
			return href, nil
		}
	}

	return NewHRef(RelAbsolute, tparts...), nil
}
