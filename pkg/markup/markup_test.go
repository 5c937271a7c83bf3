package markup_test

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"

	"github.com/calvinalkan/pageindex/pkg/markup"
)

func Test_Parse_ExtractsLinksAndTags_When_ContentValid(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		content   string
		wantLinks []string
		wantTags  []string
	}{
		{
			name:    "plain text",
			content: "just text\n",
		},
		{
			name:      "links with and without label",
			content:   "See [[Projects:Roadmap]] and [[+Notes|my notes]].\n",
			wantLinks: []string{"Projects:Roadmap", "+Notes"},
		},
		{
			name:      "several links on one line keep order",
			content:   "[[b]][[a]] [[ c ]]",
			wantLinks: []string{"b", "a", "c"},
		},
		{
			name:      "empty link target is dropped",
			content:   "[[|label]] [[x]]",
			wantLinks: []string{"x"},
		},
		{
			name:     "tags at word start",
			content:  "Filed under @planning and @Q3-review.\n",
			wantTags: []string{"planning", "Q3-review"},
		},
		{
			name:     "mail address is no tag",
			content:  "mail bob@example.com about @ops",
			wantTags: []string{"ops"},
		},
		{
			name:     "tags deduplicated case-insensitively",
			content:  "@ops @OPS @ops\n@dev",
			wantTags: []string{"ops", "dev"},
		},
		{
			name:      "tag inside link is ignored",
			content:   "[[Team:@ops]] @real",
			wantLinks: []string{"Team:@ops"},
			wantTags:  []string{"real"},
		},
		{
			name:      "verbatim block skipped",
			content:   "before [[A]]\n'''\n[[B]] @hidden\n'''\nafter @shown\n",
			wantLinks: []string{"A"},
			wantTags:  []string{"shown"},
		},
		{
			name:     "tags header comes first",
			content:  "Content-Type: text/x-wiki\nTags: draft, @project\n\nbody @draft @later\n",
			wantTags: []string{"draft", "project", "later"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			page, err := markup.Parse([]byte(tc.content))
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}

			if diff := cmp.Diff(tc.wantLinks, page.Links); diff != "" {
				t.Fatalf("links mismatch (-want +got):\n%s", diff)
			}

			if diff := cmp.Diff(tc.wantTags, page.Tags); diff != "" {
				t.Fatalf("tags mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func Test_Parse_SplitsHeader_When_BlankLineTerminatesBlock(t *testing.T) {
	t.Parallel()

	content := "Content-Type: text/x-wiki\r\nCreation-Date: 2024-01-02\n\n====== Title ======\n"

	page, err := markup.Parse([]byte(content))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	want := []markup.Header{
		{Key: "Content-Type", Value: "text/x-wiki"},
		{Key: "Creation-Date", Value: "2024-01-02"},
	}

	if diff := cmp.Diff(want, page.Headers); diff != "" {
		t.Fatalf("headers mismatch (-want +got):\n%s", diff)
	}

	if got := string(page.Body); got != "====== Title ======\n" {
		t.Fatalf("body = %q, want title line", got)
	}

	v, ok := page.Header("content-type")
	if !ok || v != "text/x-wiki" {
		t.Fatalf("Header(content-type) = %q, %v, want text/x-wiki, true", v, ok)
	}
}

func Test_Parse_TreatsHeaderLikeText_As_Body_When_NotAHeaderBlock(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"no blank line":        "Note: remember this\n",
		"non header line":      "Note: x\nsomething else\n\nmore",
		"key with space":       "My Note: x\n\nbody",
		"leading blank line":   "\nKey: v\n\nbody",
		"digit in header name": "Key2: v\n\nbody",
	}

	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			page, err := markup.Parse([]byte(content))
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}

			if len(page.Headers) != 0 {
				t.Fatalf("headers = %v, want none", page.Headers)
			}

			if string(page.Body) != content {
				t.Fatalf("body = %q, want whole content", page.Body)
			}
		})
	}
}

func Test_Parse_ReturnsErrMalformed_When_LinkUnterminated(t *testing.T) {
	t.Parallel()

	_, err := markup.Parse([]byte("ok [[fine]]\nbroken [[link\n"))
	if !errors.Is(err, markup.ErrMalformed) {
		t.Fatalf("err = %v, want ErrMalformed", err)
	}

	if !strings.Contains(err.Error(), "line 2") {
		t.Fatalf("err = %q, want line number", err)
	}
}

func Test_Parse_KeepsRunesWhole_When_ErrorTruncatesLongLink(t *testing.T) {
	t.Parallel()

	_, err := markup.Parse([]byte("[[" + strings.Repeat("€", 30)))
	if !errors.Is(err, markup.ErrMalformed) {
		t.Fatalf("err = %v, want ErrMalformed", err)
	}

	msg := err.Error()
	if !utf8.ValidString(msg) || strings.Contains(msg, `\x`) {
		t.Fatalf("err = %q, want whole runes only", msg)
	}

	if !strings.Contains(msg, strings.Repeat("€", 13)+"...") {
		t.Fatalf("err = %q, want 13 runes then ellipsis", msg)
	}
}

func Test_Parse_IgnoresUnterminatedLink_When_InsideVerbatim(t *testing.T) {
	t.Parallel()

	_, err := markup.Parse([]byte("'''\n[[open\n'''\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
}
