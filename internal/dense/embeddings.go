package dense

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/pkg/errors"
)

// Embedding is a named dense vector with its cached norm.
type Embedding struct {
	ID     string
	Vector []float64
	Norm   float64
}

func NewEmbedding(id string, v []float64) Embedding {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return Embedding{ID: id, Vector: v, Norm: math.Sqrt(sum)}
}

// Store holds embeddings of one dimension in load order.
type Store struct {
	dim   int
	items []Embedding
	byID  map[string]int
}

func NewStore() *Store {
	return &Store{byID: make(map[string]int)}
}

// Add appends e. Every embedding in a store must share one dimension.
func (s *Store) Add(e Embedding) error {
	if len(e.Vector) == 0 {
		return fmt.Errorf("embedding %s is empty: %w", e.ID, apperrors.ErrMalformedInput)
	}
	if s.dim == 0 {
		s.dim = len(e.Vector)
	} else if len(e.Vector) != s.dim {
		return fmt.Errorf("embedding %s has dimension %d, want %d: %w", e.ID, len(e.Vector), s.dim, apperrors.ErrMalformedInput)
	}
	if _, dup := s.byID[e.ID]; dup {
		return fmt.Errorf("duplicate embedding %s: %w", e.ID, apperrors.ErrMalformedInput)
	}
	s.byID[e.ID] = len(s.items)
	s.items = append(s.items, e)
	return nil
}

func (s *Store) Get(id string) (Embedding, bool) {
	i, ok := s.byID[id]
	if !ok {
		return Embedding{}, false
	}
	return s.items[i], true
}

func (s *Store) Len() int { return len(s.items) }

func (s *Store) Dim() int { return s.dim }

// IDs returns embedding ids in load order.
func (s *Store) IDs() []string {
	out := make([]string, len(s.items))
	for i, e := range s.items {
		out[i] = e.ID
	}
	return out
}

// LoadDir reads one embedding per regular file in dir, named by the file,
// in sorted name order.
func LoadDir(dir string) (*Store, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading embeddings directory: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	store := NewStore()
	for _, name := range names {
		v, err := readEmbeddingFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		if err := store.Add(NewEmbedding(name, v)); err != nil {
			return nil, err
		}
	}
	return store, nil
}

func readEmbeddingFile(path string) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening embedding: %w", err)
	}
	defer f.Close()
	v, err := ParseVector(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return v, nil
}

// ParseVector reads whitespace-separated floats.
func ParseVector(r io.Reader) ([]float64, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	sc.Split(bufio.ScanWords)
	var v []float64
	for sc.Scan() {
		x, err := strconv.ParseFloat(sc.Text(), 64)
		if err != nil {
			return nil, fmt.Errorf("bad component %q: %w", sc.Text(), apperrors.ErrMalformedInput)
		}
		v = append(v, x)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading embedding: %w", err)
	}
	return v, nil
}

// cosine returns the cosine similarity of a and b, or 0 when either norm is
// zero. a and b must have the same length.
func cosine(a, b Embedding) float64 {
	if a.Norm == 0 || b.Norm == 0 {
		return 0
	}
	var dot float64
	for i := range a.Vector {
		dot += a.Vector[i] * b.Vector[i]
	}
	return dot / (a.Norm * b.Norm)
}
