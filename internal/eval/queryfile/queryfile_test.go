package queryfile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/pkg/errors"
)

const sample = `cat food
RN-00001 1.0 RN-00007 0.5

dog toys
RN-00003 0.25
`

func TestParse(t *testing.T) {
	qs, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)
	require.Len(t, qs, 2)

	assert.Equal(t, "cat food", qs[0].Text)
	assert.Equal(t, map[string]float64{"RN-00001": 1.0, "RN-00007": 0.5}, qs[0].Gold)
	assert.Equal(t, 1, qs[0].Line)

	assert.Equal(t, "dog toys", qs[1].Text)
	assert.Equal(t, 4, qs[1].Line)
}

func TestParseMalformed(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"missing blank", "q1\na 1\nq2\nb 1\n"},
		{"odd pairs", "q1\na 1 b\n"},
		{"bad number", "q1\na high\n"},
		{"nan relevance", "q1\na NaN\n"},
		{"infinite relevance", "q1\na 1 b +Inf\n"},
		{"missing judgements", "q1"},
		{"empty query", "\na 1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.in))
			assert.ErrorIs(t, err, apperrors.ErrMalformedInput)
			assert.Contains(t, err.Error(), "line")
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queries")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))
	qs, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, qs, 2)

	_, err = Load(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
