package testutil_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/pageindex/internal/testutil"
	"github.com/calvinalkan/pageindex/pkg/markup"
	"github.com/calvinalkan/pageindex/pkg/pageindex"
)

func generate(data []byte, depth int) []testutil.PageOp {
	gen := testutil.NewPageOpGenerator(data, depth)

	var ops []testutil.PageOp
	for gen.HasMore() {
		ops = append(ops, gen.Next())
	}

	return ops
}

func Test_PageOpGenerator_Is_Deterministic_When_Input_Repeats(t *testing.T) {
	t.Parallel()

	data := []byte("the same bytes give the same edits, every time")

	first := generate(data, 3)
	second := generate(data, 3)

	require.NotEmpty(t, first, "non-empty input should produce edits")
	assert.Equal(t, first, second, "same input should produce same edits")
}

func Test_PageOpGenerator_Produces_Valid_Pages_When_Input_Arbitrary(t *testing.T) {
	t.Parallel()

	data := make([]byte, 512)
	for i := range data {
		data[i] = byte(i * 37)
	}

	for _, op := range generate(data, 3) {
		if op.Kind == testutil.OpUpdate {
			assert.Empty(t, op.Name, "update carries no page")

			continue
		}

		path, err := pageindex.NewPath(op.Name)
		require.NoError(t, err, "generated name %q should be valid", op.Name)
		assert.LessOrEqual(t, path.Depth(), 3, "name %q too deep", op.Name)

		if op.Kind != testutil.OpPut {
			continue
		}

		page, err := markup.Parse([]byte(op.Content))
		require.NoError(t, err, "generated content %q should parse", op.Content)

		for _, link := range page.Links {
			_, err := pageindex.ParseHRef(link)
			require.NoError(t, err, "generated link %q should parse", link)
		}

		if strings.Contains(op.Content, "[[") {
			assert.NotEmpty(t, page.Links, "links in %q should be found", op.Content)
		}
	}
}

func Test_ByteStream_Returns_Zero_When_Exhausted(t *testing.T) {
	t.Parallel()

	s := testutil.NewByteStream([]byte{7})

	assert.True(t, s.HasMore())
	assert.Equal(t, 3, s.Intn(4))
	assert.False(t, s.HasMore())
	assert.Equal(t, byte(0), s.Byte())
	assert.Equal(t, 0, s.Intn(0))
	assert.False(t, s.Bool())
}
