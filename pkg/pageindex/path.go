package pageindex

import (
	"fmt"
	"strings"
)

// RootID is the row id of the root page. The root has parent 0 and an
// empty basename.
const RootID int64 = 1

// Path is a validated page name. Segments are separated by ':'; the zero
// value is the root.
type Path struct {
	name string
}

// RootPath returns the path of the root page.
func RootPath() Path { return Path{} }

// NewPath cleans and validates name.
//
// Leading and trailing separators are dropped, repeated separators collapse,
// underscores become spaces and whitespace around segments is trimmed, so
// ":foo_bar::Baz:" becomes "foo bar:Baz". A name that is empty after
// cleaning, or that contains a character which cannot appear in a page
// name, is rejected with [ErrInvalidPath].
func NewPath(name string) (Path, error) {
	parts, err := cleanParts(name)
	if err != nil {
		return Path{}, err
	}

	if len(parts) == 0 {
		return Path{}, fmt.Errorf("%w: %q is empty", ErrInvalidPath, name)
	}

	return Path{name: strings.Join(parts, ":")}, nil
}

// MustPath is like [NewPath] but panics on invalid input. Intended for
// constants and tests.
func MustPath(name string) Path {
	p, err := NewPath(name)
	if err != nil {
		panic(err)
	}

	return p
}

func cleanParts(name string) ([]string, error) {
	name = strings.ReplaceAll(name, "_", " ")

	var parts []string

	for seg := range strings.SplitSeq(name, ":") {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}

		err := validateSegment(seg)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %w", ErrInvalidPath, name, err)
		}

		parts = append(parts, seg)
	}

	return parts, nil
}

// isCleanBasename reports whether name is a single segment that [NewPath]
// keeps unchanged. Store listings with other names are not indexed, since
// lookups would normalize them to a different row.
func isCleanBasename(name string) bool {
	parts, err := cleanParts(name)

	return err == nil && len(parts) == 1 && parts[0] == name
}

func validateSegment(seg string) error {
	if seg[0] == '+' || seg[0] == '.' {
		return fmt.Errorf("segment %q starts with %q", seg, seg[0])
	}

	for _, r := range seg {
		if r < 0x20 || r == 0x7f {
			return fmt.Errorf("control character in %q", seg)
		}

		if strings.ContainsRune(`?#/\*"<>|%`, r) {
			return fmt.Errorf("character %q not allowed", r)
		}
	}

	return nil
}

// Name returns the full page name, "" for the root.
func (p Path) Name() string { return p.name }

// String implements fmt.Stringer. The root renders as ":".
func (p Path) String() string {
	if p.name == "" {
		return ":"
	}

	return p.name
}

// IsRoot reports whether p is the root.
func (p Path) IsRoot() bool { return p.name == "" }

// Parts returns the name segments, nil for the root.
func (p Path) Parts() []string {
	if p.name == "" {
		return nil
	}

	return strings.Split(p.name, ":")
}

// Depth returns the number of segments.
func (p Path) Depth() int {
	if p.name == "" {
		return 0
	}

	return strings.Count(p.name, ":") + 1
}

// Basename returns the last segment, "" for the root.
func (p Path) Basename() string {
	i := strings.LastIndexByte(p.name, ':')

	return p.name[i+1:]
}

// Parent returns the parent path. The parent of the root is the root.
func (p Path) Parent() Path {
	i := strings.LastIndexByte(p.name, ':')
	if i < 0 {
		return Path{}
	}

	return Path{name: p.name[:i]}
}

// Child returns the path of the direct child named basename. The basename
// is not validated; callers pass names taken from a store listing or from
// an existing row.
func (p Path) Child(basename string) Path {
	if p.name == "" {
		return Path{name: basename}
	}

	return Path{name: p.name + ":" + basename}
}

// Parents returns all ancestors, nearest first, ending with the root.
// The root has no parents.
func (p Path) Parents() []Path {
	var out []Path

	for cur := p; !cur.IsRoot(); {
		cur = cur.Parent()
		out = append(out, cur)
	}

	return out
}

// IsChildOf reports whether p lies strictly below other.
func (p Path) IsChildOf(other Path) bool {
	if p.IsRoot() {
		return false
	}

	if other.IsRoot() {
		return true
	}

	return strings.HasPrefix(p.name, other.name+":")
}

// Equal reports whether both paths name the same page. Comparison is exact;
// use [SortKey] for case-insensitive comparison.
func (p Path) Equal(other Path) bool { return p.name == other.name }

// IndexPath is a [Path] plus the chain of row ids from the root down to the
// page. It is derived from the index and never persisted.
//
// When only a prefix of the path exists in the index the IndexPath is a
// placeholder: IDs covers the existing prefix only and [IndexPath.Exists]
// reports false.
type IndexPath struct {
	Path

	// IDs holds the row ids from the root (IDs[0] == RootID) down to the
	// deepest existing segment.
	IDs []int64
}

// Exists reports whether every segment has a row.
func (p IndexPath) Exists() bool {
	return len(p.IDs) == p.Depth()+1
}

// ID returns the row id of the page, or 0 for a placeholder.
func (p IndexPath) ID() int64 {
	if !p.Exists() {
		return 0
	}

	return p.IDs[len(p.IDs)-1]
}

// ParentID returns the row id of the parent page, or 0 for the root and for
// placeholders whose parent does not exist either.
func (p IndexPath) ParentID() int64 {
	if p.IsRoot() || len(p.IDs) < p.Depth() {
		return 0
	}

	return p.IDs[p.Depth()-1]
}

// ParentPath returns the IndexPath of the parent. The ids are trimmed to
// the parent's depth.
func (p IndexPath) ParentPath() IndexPath {
	parent := p.Parent()
	ids := p.IDs

	if len(ids) > parent.Depth()+1 {
		ids = ids[:parent.Depth()+1]
	}

	return IndexPath{Path: parent, IDs: ids}
}

// ChildPath returns the IndexPath of an existing child row.
func (p IndexPath) ChildPath(basename string, id int64) IndexPath {
	ids := make([]int64, len(p.IDs), len(p.IDs)+1)
	copy(ids, p.IDs)

	return IndexPath{Path: p.Child(basename), IDs: append(ids, id)}
}

func rootIndexPath() IndexPath {
	return IndexPath{IDs: []int64{RootID}}
}
