package chunking

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reassemble(chunks []string, overlap int) string {
	var sb strings.Builder
	for i, c := range chunks {
		if i == 0 {
			sb.WriteString(c)
			continue
		}
		r := []rune(c)
		if len(r) > overlap {
			sb.WriteString(string(r[overlap:]))
		}
	}
	return sb.String()
}

func TestSplit_Blank(t *testing.T) {
	for _, in := range []string{"", "   ", "\n\t  \r\n"} {
		chunks, err := Split(in, DefaultSize, DefaultOverlap)
		require.NoError(t, err)
		assert.NotNil(t, chunks)
		assert.Empty(t, chunks)
	}
}

func TestSplit_ShortText(t *testing.T) {
	chunks, err := Split("  hello \n\n  world  ", DefaultSize, DefaultOverlap)
	require.NoError(t, err)
	assert.Equal(t, []string{"hello world"}, chunks)
}

func TestSplit_Windows(t *testing.T) {
	text := strings.Repeat("abcdefghij", 25) // 250 chars
	chunks, err := Split(text, 100, 20)
	require.NoError(t, err)

	// starts at 0, 80, 160; the window at 160 reaches the end
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 100)
	assert.Len(t, chunks[1], 100)
	assert.Len(t, chunks[2], 90)

	for i := 1; i < len(chunks); i++ {
		prev := chunks[i-1]
		assert.Equal(t, prev[len(prev)-20:], chunks[i][:20])
	}
}

func TestSplit_Reassembly(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		size    int
		overlap int
	}{
		{name: "defaults", text: strings.Repeat("The quick brown fox jumps over the lazy dog. ", 90), size: DefaultSize, overlap: DefaultOverlap},
		{name: "exact multiple", text: strings.Repeat("x", 1000), size: 100, overlap: 0},
		{name: "small window", text: "one  two\tthree\nfour five six seven eight nine ten", size: 7, overlap: 3},
		{name: "multibyte", text: strings.Repeat("Grüße aus Köln, schöne Tage! ", 60), size: 50, overlap: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks, err := Split(tt.text, tt.size, tt.overlap)
			require.NoError(t, err)
			require.NotEmpty(t, chunks)

			assert.Equal(t, Normalize(tt.text), reassemble(chunks, tt.overlap))
			for _, c := range chunks {
				assert.LessOrEqual(t, utf8.RuneCountInString(c), tt.size)
				assert.True(t, utf8.ValidString(c))
			}
		})
	}
}

func TestSplit_InvalidWindow(t *testing.T) {
	_, err := Split("text", 100, 100)
	assert.ErrorIs(t, err, ErrInvalidWindow)

	_, err = Split("text", 0, 0)
	assert.ErrorIs(t, err, ErrInvalidWindow)

	_, err = Split("text", 10, -1)
	assert.ErrorIs(t, err, ErrInvalidWindow)

	_, err = New(10, 20)
	assert.ErrorIs(t, err, ErrInvalidWindow)
}

func TestChunker(t *testing.T) {
	c, err := New(10, 2)
	require.NoError(t, err)
	assert.Equal(t, 10, c.Size())
	assert.Equal(t, 2, c.Overlap())
	assert.Equal(t, []string{"abcdefghij", "ijklm"}, c.Split("abcdefghijklm"))

	d := Default()
	assert.Equal(t, DefaultSize, d.Size())
	assert.Equal(t, DefaultOverlap, d.Overlap())
}

func TestHasMinimumContent(t *testing.T) {
	assert.False(t, HasMinimumContent(strings.Repeat("a ", 90)))
	assert.True(t, HasMinimumContent(strings.Repeat("a", MinContentLength)))
	assert.False(t, HasMinimumContent(strings.Repeat(" ", 500)))
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("abc"))
	assert.Equal(t, 1, EstimateTokens("abcd"))
	assert.Equal(t, 2, EstimateTokens("abcde"))
}
