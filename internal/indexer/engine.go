// Package indexer turns a document collection into a built inverted index.
// The Engine extracts term vectors and token positions, builds the index
// exactly once, and keeps the positions for proximity reranking.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/internal/vector"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/pkg/errors"
)

// Document is one raw corpus entry.
type Document struct {
	ID   string
	Text string
}

// Stats summarises a built engine.
type Stats struct {
	Documents int           `json:"documents"`
	Terms     int           `json:"terms"`
	Tokens    int64         `json:"tokens"`
	BuildTime time.Duration `json:"build_time"`
}

type Engine struct {
	index     *index.InvertedIndex
	tok       *tokenizer.Tokenizer
	cfg       config.CorpusConfig
	logger    *slog.Logger
	mu        sync.RWMutex
	positions map[string]map[string][]int
	stats     Stats
}

func NewEngine(cfg config.CorpusConfig) *Engine {
	return &Engine{
		index:     index.New(),
		tok:       tokenizer.New(tokenizer.Options{Stem: cfg.Stem, HTML: cfg.HTML}),
		cfg:       cfg,
		logger:    slog.Default().With("component", "indexer"),
		positions: make(map[string]map[string][]int),
	}
}

// LoadDir reads every regular file directly under dir and builds the index
// from them.
func (e *Engine) LoadDir(ctx context.Context, dir string) error {
	docs, err := ReadDir(dir)
	if err != nil {
		return err
	}
	return e.Build(ctx, docs)
}

// ReadDir returns the regular, non-hidden files of dir as Documents sorted
// by name. Subdirectories are not descended into.
func ReadDir(dir string) ([]Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading corpus directory: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	docs := make([]Document, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("reading document %s: %w", name, err)
		}
		docs = append(docs, Document{ID: name, Text: string(data)})
	}
	return docs, nil
}

// Build extracts every document concurrently and builds the index. The
// arena order of the index follows the order of docs. A second call fails
// with ErrRebuild.
func (e *Engine) Build(ctx context.Context, docs []Document) error {
	if e.index.Built() {
		return apperrors.ErrRebuild
	}
	start := time.Now()

	extractions := make([]tokenizer.Extraction, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	if e.cfg.Parallelism > 0 {
		g.SetLimit(e.cfg.Parallelism)
	}
	for i := range docs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			extractions[i] = e.tok.Extract(docs[i].Text)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("extracting documents: %w", err)
	}

	sources := make([]index.Source, len(docs))
	positions := make(map[string]map[string][]int, len(docs))
	var tokens int64
	for i, doc := range docs {
		sources[i] = index.Source{ID: doc.ID, Vector: extractions[i].Vector}
		positions[doc.ID] = extractions[i].Positions
		for _, tf := range extractions[i].Vector {
			tokens += int64(tf)
		}
	}
	if err := e.index.Build(sources); err != nil {
		return fmt.Errorf("building index: %w", err)
	}

	e.mu.Lock()
	e.positions = positions
	e.stats = Stats{
		Documents: e.index.DocCount(),
		Terms:     e.index.TermCount(),
		Tokens:    tokens,
		BuildTime: time.Since(start),
	}
	e.mu.Unlock()

	e.logger.Info("corpus indexed",
		"documents", len(docs),
		"terms", e.index.TermCount(),
		"tokens", tokens,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// Index returns the underlying inverted index.
func (e *Engine) Index() *index.InvertedIndex {
	return e.index
}

func (e *Engine) Tokenizer() *tokenizer.Tokenizer {
	return e.tok
}

// Positions returns the token positions of docID. The map must not be
// modified.
func (e *Engine) Positions(docID string) (map[string][]int, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	pos, ok := e.positions[docID]
	return pos, ok
}

// DocVector returns a copy of the raw term-frequency vector of docID.
func (e *Engine) DocVector(docID string) (vector.TermVector, error) {
	return e.index.DocVector(docID)
}

// QueryVector extracts a query vector from free text. Text with no
// indexable terms fails with ErrEmptyQuery.
func (e *Engine) QueryVector(text string) (vector.TermVector, error) {
	v := e.tok.Vector(text)
	if len(v) == 0 {
		return nil, fmt.Errorf("query %q has no indexable terms: %w", text, apperrors.ErrEmptyQuery)
	}
	return v, nil
}

func (e *Engine) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.stats
}
