package executor

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/pkg/metrics"
)

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
}

func TestFromConfig(t *testing.T) {
	root := t.TempDir()
	corpus := filepath.Join(root, "corpus")
	writeFiles(t, corpus, map[string]string{
		"a.txt": "cat dog",
		"b.txt": "cat fish",
		"c.txt": "bird",
	})
	writeFiles(t, root, map[string]string{"ranks.txt": "a.txt 0\nb.txt 1\nc.txt 0\n"})
	writeFiles(t, filepath.Join(root, "emb"), map[string]string{"a.txt": "1 0", "b.txt": "0 1"})
	writeFiles(t, filepath.Join(root, "qv"), map[string]string{"q1": "0 1"})

	cfg := &config.Config{
		Corpus:   config.CorpusConfig{Dir: corpus},
		Engine:   config.EngineConfig{PopularityFile: filepath.Join(root, "ranks.txt"), PopularityWeight: 1, Lambda: 1},
		Feedback: config.FeedbackConfig{Alpha: 1, Beta: 1, Gamma: 1},
		Dense:    config.DenseConfig{Mode: "memory", EmbeddingsDir: filepath.Join(root, "emb")},
		Eval:     config.EvalConfig{QueryVectorDir: filepath.Join(root, "qv")},
	}
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	ex, cleanup, err := FromConfig(context.Background(), cfg, m)
	require.NoError(t, err)
	defer cleanup()

	assert.Equal(t, 3.0, testutil.ToFloat64(m.IndexedDocuments))

	res, err := ex.Execute(context.Background(), SearchRequest{Query: "cat", Strategy: ranker.StrategyPopularity})
	require.NoError(t, err)
	require.Len(t, res.Results, 2)
	assert.Equal(t, "b.txt", res.Results[0].ID)

	res, err = ex.Execute(context.Background(), SearchRequest{Query: "cat", Strategy: ranker.StrategyHybrid, QueryID: "q1"})
	require.NoError(t, err)
	assert.Equal(t, "b.txt", res.Results[0].ID)
}

func TestFromConfigErrors(t *testing.T) {
	_, cleanup, err := FromConfig(context.Background(), &config.Config{}, nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.NotNil(t, cleanup)

	cfg := &config.Config{Corpus: config.CorpusConfig{Dir: filepath.Join(t.TempDir(), "missing")}}
	_, _, err = FromConfig(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestFromConfigMissingPopularity(t *testing.T) {
	root := t.TempDir()
	corpus := filepath.Join(root, "corpus")
	writeFiles(t, corpus, map[string]string{"a.txt": "cat dog", "b.txt": "cat fish", "c.txt": "bird"})
	ranks := filepath.Join(root, "ranks.txt")
	require.NoError(t, os.WriteFile(ranks, []byte("a.txt 1\n"), 0o644))

	cfg := &config.Config{
		Corpus: config.CorpusConfig{Dir: corpus},
		Engine: config.EngineConfig{PopularityFile: ranks, MissingPopularity: "fail"},
	}
	_, _, err := FromConfig(context.Background(), cfg, nil)
	require.ErrorIs(t, err, apperrors.ErrMissingPopularity)
	assert.Contains(t, err.Error(), "2 indexed documents")

	cfg.Engine.MissingPopularity = "zero"
	ex, cleanup, err := FromConfig(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer cleanup()
	assert.NotNil(t, ex)
}
