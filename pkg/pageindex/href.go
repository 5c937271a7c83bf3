package pageindex

import (
	"fmt"
	"strings"
)

// Relation says where resolution of an [HRef] starts.
type Relation int

const (
	// RelFloating links are resolved by searching the namespaces above the
	// linking page for one that contains the first segment.
	RelFloating Relation = iota
	// RelAbsolute links start at the root. Written with a leading ':'.
	RelAbsolute
	// RelRelative links start at the linking page itself. Written with a
	// leading '+'.
	RelRelative
)

func (r Relation) String() string {
	switch r {
	case RelFloating:
		return "floating"
	case RelAbsolute:
		return "absolute"
	case RelRelative:
		return "relative"
	default:
		return fmt.Sprintf("Relation(%d)", int(r))
	}
}

// HRef is a parsed page link.
type HRef struct {
	Rel Relation

	// Names are the link segments as written.
	Names []string

	// SortKeys holds [SortKey] of every name, same length as Names.
	SortKeys []string
}

// NewHRef builds an HRef from already clean names.
func NewHRef(rel Relation, names ...string) HRef {
	keys := make([]string, len(names))
	for i, n := range names {
		keys[i] = SortKey(n)
	}

	return HRef{Rel: rel, Names: names, SortKeys: keys}
}

// ParseHRef parses a raw link as written in page content: ":A:B" is
// absolute, "+A" is relative and "A:B" is floating. An anchor suffix
// ("#section") is ignored.
func ParseHRef(raw string) (HRef, error) {
	s := strings.TrimSpace(raw)

	if i := strings.IndexByte(s, '#'); i >= 0 {
		s = s[:i]
	}

	if isURL(s) {
		return HRef{}, fmt.Errorf("%w: %q is not a page link", ErrInvalidLink, raw)
	}

	rel := RelFloating

	switch {
	case strings.HasPrefix(s, ":"):
		rel = RelAbsolute
		s = strings.TrimLeft(s, ":")
	case strings.HasPrefix(s, "+"):
		rel = RelRelative
		s = s[1:]
	}

	parts, err := cleanParts(s)
	if err != nil {
		return HRef{}, fmt.Errorf("%w: %q: %w", ErrInvalidLink, raw, err)
	}

	if len(parts) == 0 {
		return HRef{}, fmt.Errorf("%w: %q is empty", ErrInvalidLink, raw)
	}

	return NewHRef(rel, parts...), nil
}

// urlSchemes are schemes that never name a page, even without "//".
var urlSchemes = map[string]bool{
	"data": true, "file": true, "ftp": true, "http": true, "https": true,
	"irc": true, "javascript": true, "mailto": true, "news": true,
	"sftp": true, "ssh": true, "tel": true, "urn": true,
}

// isURL reports whether s starts with a URL scheme: a known lowercase
// scheme, or any scheme followed by "//" or an "@" in the remainder.
func isURL(s string) bool {
	scheme, rest, ok := strings.Cut(s, ":")
	if !ok || scheme == "" || !isASCIILetter(scheme[0]) {
		return false
	}

	for i := 1; i < len(scheme); i++ {
		c := scheme[i]
		if !isASCIILetter(c) && !isASCIIDigit(rune(c)) && c != '+' && c != '.' && c != '-' {
			return false
		}
	}

	return urlSchemes[scheme] || strings.HasPrefix(rest, "//") || strings.Contains(rest, "@")
}

func isASCIILetter(c byte) bool { return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' }

// String renders the link in the form [ParseHRef] accepts.
func (h HRef) String() string {
	name := strings.Join(h.Names, ":")

	switch h.Rel {
	case RelAbsolute:
		return ":" + name
	case RelRelative:
		return "+" + name
	default:
		return name
	}
}

// joinedSortKeys is the ':'-joined form stored in the links table.
func (h HRef) joinedSortKeys() string { return strings.Join(h.SortKeys, ":") }

func (h HRef) joinedNames() string { return strings.Join(h.Names, ":") }

func hrefFromRow(rel Relation, names string) HRef {
	return NewHRef(rel, strings.Split(names, ":")...)
}
