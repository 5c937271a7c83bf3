package pageindex_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/calvinalkan/pageindex/pkg/pageindex"
)

func Test_ParseHRef_DetectsRelation_When_PrefixGiven(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw       string
		wantRel   pageindex.Relation
		wantNames []string
		wantStr   string
	}{
		{raw: "Foo:Bar", wantRel: pageindex.RelFloating, wantNames: []string{"Foo", "Bar"}, wantStr: "Foo:Bar"},
		{raw: ":Foo", wantRel: pageindex.RelAbsolute, wantNames: []string{"Foo"}, wantStr: ":Foo"},
		{raw: "::Foo", wantRel: pageindex.RelAbsolute, wantNames: []string{"Foo"}, wantStr: ":Foo"},
		{raw: "+Child:Sub", wantRel: pageindex.RelRelative, wantNames: []string{"Child", "Sub"}, wantStr: "+Child:Sub"},
		{raw: " Some_Page#intro ", wantRel: pageindex.RelFloating, wantNames: []string{"Some Page"}, wantStr: "Some Page"},
		{raw: "Mail:Inbox", wantRel: pageindex.RelFloating, wantNames: []string{"Mail", "Inbox"}, wantStr: "Mail:Inbox"},
		{raw: "File:Notes", wantRel: pageindex.RelFloating, wantNames: []string{"File", "Notes"}, wantStr: "File:Notes"},
	}

	for _, tc := range cases {
		href, err := pageindex.ParseHRef(tc.raw)
		if err != nil {
			t.Fatalf("ParseHRef(%q): %v", tc.raw, err)
		}

		if href.Rel != tc.wantRel {
			t.Fatalf("ParseHRef(%q).Rel = %v, want %v", tc.raw, href.Rel, tc.wantRel)
		}

		if diff := cmp.Diff(tc.wantNames, href.Names); diff != "" {
			t.Fatalf("ParseHRef(%q) names mismatch (-want +got):\n%s", tc.raw, diff)
		}

		if len(href.SortKeys) != len(href.Names) {
			t.Fatalf("ParseHRef(%q) has %d sort keys for %d names", tc.raw, len(href.SortKeys), len(href.Names))
		}

		if got := href.String(); got != tc.wantStr {
			t.Fatalf("String() = %q, want %q", got, tc.wantStr)
		}
	}
}

func Test_ParseHRef_ReturnsErrInvalidLink_When_NotAPageLink(t *testing.T) {
	t.Parallel()

	invalid := []string{
		"", ":", "+", "#only-anchor", "https://example.com/x", "file:///tmp/a",
		"mailto:me@x.org", "file:notes", "tel:+123", "svn+ssh://host/repo", "xmpp:someone@host",
	}

	for _, raw := range invalid {
		_, err := pageindex.ParseHRef(raw)
		if !errors.Is(err, pageindex.ErrInvalidLink) {
			t.Fatalf("ParseHRef(%q) err = %v, want ErrInvalidLink", raw, err)
		}
	}
}

func Test_SortKey_OrdersNaturally_When_NamesHaveNumbers(t *testing.T) {
	t.Parallel()

	if pageindex.SortKey("Foo") != pageindex.SortKey("fOO") {
		t.Fatal("sort key is case sensitive")
	}

	if !(pageindex.SortKey("page 2") < pageindex.SortKey("page 10")) {
		t.Fatal("page 2 must sort before page 10")
	}

	if pageindex.SortKey("v007") != pageindex.SortKey("v7") {
		t.Fatal("leading zeros must not matter")
	}

	if pageindex.SortKey("Straße") != pageindex.SortKey("STRASSE") {
		t.Fatal("full case folding expected")
	}

	if pageindex.SortKey("ﬁle") != pageindex.SortKey("file") {
		t.Fatal("compatibility ligature must normalize")
	}
}
