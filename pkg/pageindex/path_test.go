package pageindex_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/calvinalkan/pageindex/pkg/pageindex"
)

func Test_NewPath_CleansName_When_InputHasNoise(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"Foo":             "Foo",
		":foo_bar::Baz:":  "foo bar:Baz",
		"  A : B  ":       "A:B",
		"Notes:2024:Jan ": "Notes:2024:Jan",
		"Ünïcode:Page":    "Ünïcode:Page",
	}

	for in, want := range cases {
		got, err := pageindex.NewPath(in)
		if err != nil {
			t.Fatalf("NewPath(%q): %v", in, err)
		}

		if got.Name() != want {
			t.Fatalf("NewPath(%q) = %q, want %q", in, got.Name(), want)
		}
	}
}

func Test_NewPath_ReturnsErrInvalidPath_When_NameUnusable(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", ":", "::", "A:+B", ".hidden", "a/b", "what?", "tab\there", "100%"} {
		_, err := pageindex.NewPath(in)
		if !errors.Is(err, pageindex.ErrInvalidPath) {
			t.Fatalf("NewPath(%q) err = %v, want ErrInvalidPath", in, err)
		}
	}
}

func Test_Path_Navigation_When_Nested(t *testing.T) {
	t.Parallel()

	p := pageindex.MustPath("A:B:C")

	if p.Depth() != 3 || p.Basename() != "C" {
		t.Fatalf("depth/basename = %d/%q, want 3/C", p.Depth(), p.Basename())
	}

	if got := p.Parent().Name(); got != "A:B" {
		t.Fatalf("Parent = %q, want A:B", got)
	}

	var parents []string
	for _, pp := range p.Parents() {
		parents = append(parents, pp.String())
	}

	if diff := cmp.Diff([]string{"A:B", "A", ":"}, parents); diff != "" {
		t.Fatalf("Parents mismatch (-want +got):\n%s", diff)
	}

	if !p.IsChildOf(pageindex.MustPath("A")) || !p.IsChildOf(pageindex.RootPath()) {
		t.Fatal("A:B:C should be below A and the root")
	}

	if pageindex.MustPath("AB").IsChildOf(pageindex.MustPath("A")) {
		t.Fatal("AB must not be below A")
	}

	if !pageindex.RootPath().Child("X").Equal(pageindex.MustPath("X")) {
		t.Fatal("root child X != X")
	}

	root := pageindex.RootPath()
	if !root.IsRoot() || root.String() != ":" || root.Depth() != 0 || root.Parts() != nil {
		t.Fatalf("unexpected root: %q depth %d parts %v", root.String(), root.Depth(), root.Parts())
	}
}

func Test_IndexPath_Exists_When_AllIDsKnown(t *testing.T) {
	t.Parallel()

	full := pageindex.IndexPath{Path: pageindex.MustPath("A:B"), IDs: []int64{1, 2, 3}}
	if !full.Exists() || full.ID() != 3 || full.ParentID() != 2 {
		t.Fatalf("full: exists=%v id=%d parent=%d", full.Exists(), full.ID(), full.ParentID())
	}

	placeholder := pageindex.IndexPath{Path: pageindex.MustPath("A:B:C"), IDs: []int64{1, 2}}
	if placeholder.Exists() || placeholder.ID() != 0 {
		t.Fatalf("placeholder: exists=%v id=%d", placeholder.Exists(), placeholder.ID())
	}

	if placeholder.ParentID() != 0 {
		t.Fatalf("placeholder parent id = %d, want 0", placeholder.ParentID())
	}

	child := full.ChildPath("X", 9)
	if child.Name() != "A:B:X" || child.ID() != 9 || full.ID() != 3 {
		t.Fatalf("ChildPath = %q/%d, parent id now %d", child.Name(), child.ID(), full.ID())
	}

	if got := child.ParentPath(); got.Name() != "A:B" || got.ID() != 3 {
		t.Fatalf("ParentPath = %q/%d, want A:B/3", got.Name(), got.ID())
	}
}
