package popularity

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/pkg/errors"
)

func TestParse(t *testing.T) {
	scores, err := Parse(strings.NewReader("P1.html 0.25\n\nP2.html 1e-3\n"))
	require.NoError(t, err)
	assert.Equal(t, Scores{"P1.html": 0.25, "P2.html": 0.001}, scores)
	assert.Equal(t, []string{"P3.html"}, scores.Missing([]string{"P1.html", "P3.html"}))
}

func TestParseRejects(t *testing.T) {
	for name, in := range map[string]string{
		"one field":   "P1.html\n",
		"three":       "P1.html 0.1 extra\n",
		"not a float": "P1.html high\n",
		"negative":    "P1.html -0.1\n",
		"nan":         "P1.html NaN\n",
		"duplicate":   "P1.html 0.1\nP1.html 0.2\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(in))
			assert.ErrorIs(t, err, apperrors.ErrMalformedInput)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pagerank.txt")
	require.NoError(t, os.WriteFile(path, []byte("a 0.5\nb 0.5\n"), 0o644))
	scores, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, scores, 2)

	_, err = Load(filepath.Join(t.TempDir(), "none"))
	assert.Error(t, err)
}
