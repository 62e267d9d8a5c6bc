package htmltomarkdown_test

import (
	"testing"

	"github.com/fwojciec/subgrab/htmltomarkdown"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConverter_Convert(t *testing.T) {
	t.Parallel()

	t.Run("converts a basic paragraph", func(t *testing.T) {
		t.Parallel()

		conv := htmltomarkdown.NewConverter()
		md, err := conv.Convert(`<p>Hello, world!</p>`)

		require.NoError(t, err)
		assert.Equal(t, "Hello, world!", md)
	})

	t.Run("converts links", func(t *testing.T) {
		t.Parallel()

		conv := htmltomarkdown.NewConverter()
		md, err := conv.Convert(`<p>See <a href="https://example.com">this</a>.</p>`)

		require.NoError(t, err)
		assert.Contains(t, md, "[this](https://example.com)")
	})

	t.Run("converts emphasis", func(t *testing.T) {
		t.Parallel()

		conv := htmltomarkdown.NewConverter()
		md, err := conv.Convert(`<p><strong>bold</strong> and <em>italic</em></p>`)

		require.NoError(t, err)
		assert.Contains(t, md, "**bold**")
		assert.Contains(t, md, "*italic*")
	})

	t.Run("converts blockquotes", func(t *testing.T) {
		t.Parallel()

		conv := htmltomarkdown.NewConverter()
		md, err := conv.Convert(`<blockquote><p>quoted reply</p></blockquote>`)

		require.NoError(t, err)
		assert.Contains(t, md, "> quoted reply")
	})

	t.Run("converts lists", func(t *testing.T) {
		t.Parallel()

		conv := htmltomarkdown.NewConverter()
		md, err := conv.Convert(`<ul><li>first</li><li>second</li></ul>`)

		require.NoError(t, err)
		assert.Contains(t, md, "- first")
		assert.Contains(t, md, "- second")
	})

	t.Run("converts inline code", func(t *testing.T) {
		t.Parallel()

		conv := htmltomarkdown.NewConverter()
		md, err := conv.Convert(`<p>run <code>go vet</code> first</p>`)

		require.NoError(t, err)
		assert.Contains(t, md, "`go vet`")
	})

	t.Run("empty input converts to empty output", func(t *testing.T) {
		t.Parallel()

		conv := htmltomarkdown.NewConverter()

		md, err := conv.Convert("")
		require.NoError(t, err)
		assert.Empty(t, md)

		md, err = conv.Convert("   \n\t ")
		require.NoError(t, err)
		assert.Empty(t, md)
	})
}
