package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/internal/vector"
)

func TestTokenizeDropsStopWordsAndShortTokens(t *testing.T) {
	tok := New(Options{})
	tokens := tok.Tokenize("The cat and a dog, x 42!")
	require.Len(t, tokens, 3)
	assert.Equal(t, Token{Term: "cat", Position: 0}, tokens[0])
	assert.Equal(t, Token{Term: "dog", Position: 1}, tokens[1])
	assert.Equal(t, Token{Term: "42", Position: 2}, tokens[2])
}

func TestExtractCountsAndPositions(t *testing.T) {
	ex := New(Options{}).Extract("cat dog cat")
	assert.Equal(t, vector.TermVector{"cat": 2, "dog": 1}, ex.Vector)
	assert.Equal(t, []int{0, 2}, ex.Positions["cat"])
	assert.Equal(t, []int{1}, ex.Positions["dog"])
}

func TestStemming(t *testing.T) {
	v := New(Options{Stem: true}).Vector("running runs")
	assert.Equal(t, vector.TermVector{"run": 2}, v)

	v = New(Options{}).Vector("running runs")
	assert.Equal(t, vector.TermVector{"running": 1, "runs": 1}, v)
}

func TestHTMLStripping(t *testing.T) {
	text := `<html><body class="x"><p>cystic fibrosis</p></body></html>`
	v := New(Options{HTML: true}).Vector(text)
	assert.Equal(t, vector.TermVector{"cystic": 1, "fibrosis": 1}, v)

	v = New(Options{}).Vector(text)
	assert.Contains(t, v, "html")
}

func TestEmptyText(t *testing.T) {
	ex := New(Options{Stem: true}).Extract("   ")
	assert.Empty(t, ex.Vector)
	assert.Empty(t, ex.Positions)
}
