package testutil

import (
	"fmt"
	"strings"
)

// OpKind is the kind of a generated page edit.
type OpKind int

const (
	// OpPut writes page content.
	OpPut OpKind = iota
	// OpDelete removes page content.
	OpDelete
	// OpUpdate runs an index update.
	OpUpdate
)

func (k OpKind) String() string {
	switch k {
	case OpPut:
		return "put"
	case OpDelete:
		return "delete"
	case OpUpdate:
		return "update"
	default:
		return fmt.Sprintf("OpKind(%d)", int(k))
	}
}

// PageOp is one generated edit.
type PageOp struct {
	Kind OpKind

	// Name is the page name, empty for OpUpdate.
	Name string

	// Content is the content written by OpPut.
	Content string

	// Notify is set when the index is told about the edit synchronously.
	// Otherwise only the next tree walk finds it.
	Notify bool
}

func (op PageOp) String() string {
	switch op.Kind {
	case OpPut:
		return fmt.Sprintf("put %s %q notify=%v", op.Name, op.Content, op.Notify)
	case OpDelete:
		return fmt.Sprintf("delete %s notify=%v", op.Name, op.Notify)
	default:
		return op.Kind.String()
	}
}

// The alphabet is small so that edits collide: the same names show up as
// pages, namespaces and link targets in different namespaces.
var (
	segments = []string{"A", "B", "C", "Home", "Notes"}
	tagNames = []string{"todo", "done", "Todo"}
)

// PageOpGenerator turns fuzz input into page edits over a small tree.
type PageOpGenerator struct {
	stream   *ByteStream
	maxDepth int
}

// NewPageOpGenerator returns a generator over fuzz input. Names are at most
// maxDepth segments deep.
func NewPageOpGenerator(fuzzBytes []byte, maxDepth int) *PageOpGenerator {
	return &PageOpGenerator{stream: NewByteStream(fuzzBytes), maxDepth: max(maxDepth, 1)}
}

// HasMore reports whether more edits can be generated.
func (g *PageOpGenerator) HasMore() bool {
	return g.stream.HasMore()
}

// Next returns the next edit.
func (g *PageOpGenerator) Next() PageOp {
	switch roll := g.stream.Intn(10); {
	case roll < 6:
		return PageOp{Kind: OpPut, Name: g.name(), Content: g.content(), Notify: g.stream.Bool()}
	case roll < 9:
		return PageOp{Kind: OpDelete, Name: g.name(), Notify: g.stream.Bool()}
	default:
		return PageOp{Kind: OpUpdate}
	}
}

func (g *PageOpGenerator) name() string {
	depth := 1 + g.stream.Intn(g.maxDepth)
	parts := make([]string, depth)

	for i := range parts {
		parts[i] = Pick(g.stream, segments)
	}

	return strings.Join(parts, ":")
}

func (g *PageOpGenerator) content() string {
	var b strings.Builder

	for range g.stream.Intn(4) {
		switch g.stream.Intn(4) {
		case 0:
			fmt.Fprintf(&b, "[[:%s]] ", g.name())
		case 1:
			fmt.Fprintf(&b, "[[+%s]] ", Pick(g.stream, segments))
		case 2:
			fmt.Fprintf(&b, "@%s ", Pick(g.stream, tagNames))
		default:
			fmt.Fprintf(&b, "[[%s]] ", g.name())
		}
	}

	return b.String()
}
