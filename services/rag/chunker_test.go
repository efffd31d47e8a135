package rag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitText(t *testing.T) {
	t.Run("short text is one chunk", func(t *testing.T) {
		chunks := SplitText("a short note", 500, 50)
		assert.Equal(t, []string{"a short note"}, chunks)
	})

	t.Run("empty text yields nothing", func(t *testing.T) {
		assert.Nil(t, SplitText("", 500, 50))
		assert.Nil(t, SplitText("   \n\t  ", 500, 50))
	})

	t.Run("long text overlaps at boundaries", func(t *testing.T) {
		text := strings.Repeat("abcdefghij", 120) // 1200 runes
		chunks := SplitText(text, 500, 50)

		require.Len(t, chunks, 3)
		assert.Len(t, chunks[0], 500)
		assert.Len(t, chunks[1], 500)
		// The second chunk starts 450 in, so its first 50 runes repeat
		// the tail of the first.
		assert.Equal(t, chunks[0][450:], chunks[1][:50])
	})

	t.Run("multibyte runes are never split", func(t *testing.T) {
		text := strings.Repeat("日本語のテキスト", 100)
		chunks := SplitText(text, 100, 10)
		for _, chunk := range chunks {
			assert.True(t, strings.ContainsRune("日本語のテキスト", []rune(chunk)[0]))
		}
	})

	t.Run("degenerate sizes fall back to defaults", func(t *testing.T) {
		text := strings.Repeat("x", 600)
		assert.NotEmpty(t, SplitText(text, 0, 0))
		assert.NotEmpty(t, SplitText(text, 100, 100), "overlap >= size must not loop forever")
	})
}
