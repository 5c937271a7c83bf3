// Package markup scans wiki page content for the parts an index needs:
// the header block, links and tags. It does not render or validate markup
// beyond that.
//
// The recognized grammar:
//
//	Content-Type: text/x-wiki     <- optional header block of "Key: value" lines,
//	Tags: project, draft          <- terminated by a blank line
//
//	See [[Projects:Roadmap]] and [[+Notes|my notes]].   <- links, label after '|'
//	Filed under @planning.                              <- tags
//
//	'''
//	[[not a link]] @not-a-tag     <- verbatim blocks are skipped
//	'''
package markup

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ErrMalformed indicates content the scanner cannot make sense of, such as
// an unterminated link.
var ErrMalformed = errors.New("malformed markup")

// Header is one "Key: value" line of the header block.
type Header struct {
	Key   string
	Value string
}

// Page is the result of [Parse].
type Page struct {
	Headers []Header

	// Body is the content after the header block.
	Body []byte

	// Links are link targets in order of appearance, labels stripped.
	Links []string

	// Tags are tag names without '@', deduplicated in order of appearance.
	// Tags from a "Tags" header come first.
	Tags []string
}

// Header returns the value of the first header named key, compared
// case-insensitively.
func (p Page) Header(key string) (string, bool) {
	for _, h := range p.Headers {
		if strings.EqualFold(h.Key, key) {
			return h.Value, true
		}
	}

	return "", false
}

const verbatimFence = "'''"

// Parse scans content. It only fails on an unterminated link.
func Parse(content []byte) (Page, error) {
	var page Page

	page.Headers, page.Body = splitHeader(content)

	tags := newTagSet()

	if v, ok := page.Header("Tags"); ok {
		for name := range strings.SplitSeq(v, ",") {
			tags.add(strings.TrimPrefix(strings.TrimSpace(name), "@"))
		}
	}

	inVerbatim := false
	lineNo := 0

	for line := range bytes.Lines(page.Body) {
		lineNo++

		if bytes.Equal(bytes.TrimSpace(line), []byte(verbatimFence)) {
			inVerbatim = !inVerbatim

			continue
		}

		if inVerbatim {
			continue
		}

		links, rest, err := scanLinks(line)
		if err != nil {
			return Page{}, fmt.Errorf("line %d: %w", lineNo, err)
		}

		page.Links = append(page.Links, links...)

		for _, tag := range scanTags(rest) {
			tags.add(tag)
		}
	}

	page.Tags = tags.names

	return page, nil
}

// splitHeader returns the header block and the body. Content only has a
// header when every line up to the first blank line is a "Key: value" line.
func splitHeader(content []byte) ([]Header, []byte) {
	var headers []Header

	rest := content

	for len(rest) > 0 {
		line, after, _ := bytes.Cut(rest, []byte("\n"))
		line = bytes.TrimSuffix(line, []byte("\r"))

		if len(bytes.TrimSpace(line)) == 0 {
			if len(headers) == 0 {
				return nil, content
			}

			return headers, after
		}

		h, ok := parseHeaderLine(string(line))
		if !ok {
			return nil, content
		}

		headers = append(headers, h)
		rest = after
	}

	// Header lines up to EOF without a terminating blank line are body text.
	return nil, content
}

func parseHeaderLine(line string) (Header, bool) {
	key, value, ok := strings.Cut(line, ":")
	if !ok || key == "" {
		return Header{}, false
	}

	for i, r := range key {
		if r == '-' && i > 0 {
			continue
		}

		if r > unicode.MaxASCII || !unicode.IsLetter(r) {
			return Header{}, false
		}
	}

	return Header{Key: key, Value: strings.TrimSpace(value)}, true
}

// scanLinks extracts "[[target|label]]" links from line and returns the
// line with the links blanked out, so tags inside links are not picked up.
func scanLinks(line []byte) ([]string, []byte, error) {
	if !bytes.Contains(line, []byte("[[")) {
		return nil, line, nil
	}

	var (
		links []string
		rest  []byte
	)

	for {
		before, after, found := bytes.Cut(line, []byte("[["))
		rest = append(rest, before...)

		if !found {
			return links, rest, nil
		}

		inner, tail, closed := bytes.Cut(after, []byte("]]"))
		if !closed {
			return nil, nil, fmt.Errorf("%w: unterminated link %q", ErrMalformed, truncate(after, 40))
		}

		target, _, _ := bytes.Cut(inner, []byte("|"))
		if t := strings.TrimSpace(string(target)); t != "" {
			links = append(links, t)
		}

		rest = append(rest, ' ')
		line = tail
	}
}

// scanTags finds "@name" words. The '@' must start a word, so e-mail
// addresses are not tags.
func scanTags(text []byte) []string {
	var tags []string

	prev := ' '

	for i := 0; i < len(text); {
		r, size := utf8.DecodeRune(text[i:])

		if r == '@' && !isTagRune(prev) && prev != '@' {
			j := i + size
			for j < len(text) {
				rr, sz := utf8.DecodeRune(text[j:])
				if !isTagRune(rr) {
					break
				}

				j += sz
			}

			if j > i+size {
				tags = append(tags, string(text[i+size:j]))
			}

			prev = 'x'
			i = j

			continue
		}

		prev = r
		i += size
	}

	return tags
}

func isTagRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-'
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}

	for n > 0 && !utf8.RuneStart(b[n]) {
		n--
	}

	return string(b[:n]) + "..."
}

// tagSet keeps tags unique by lower case name, in insertion order.
type tagSet struct {
	seen  map[string]bool
	names []string
}

func newTagSet() *tagSet { return &tagSet{seen: map[string]bool{}} }

func (s *tagSet) add(name string) {
	if name == "" {
		return
	}

	key := strings.ToLower(name)
	if s.seen[key] {
		return
	}

	s.seen[key] = true
	s.names = append(s.names, name)
}
