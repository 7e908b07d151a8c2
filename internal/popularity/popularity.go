// Package popularity loads precomputed document popularity scores such as
// PageRank values.
package popularity

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/pkg/errors"
)

// Scores maps document id to a non-negative popularity score.
type Scores map[string]float64

// Load reads a popularity file from path.
func Load(path string) (Scores, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening popularity file: %w", err)
	}
	defer f.Close()
	scores, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	slog.Default().With("component", "popularity").Info("popularity scores loaded",
		"path", path,
		"documents", len(scores),
	)
	return scores, nil
}

// Parse reads "<docId> <score>" lines. Blank lines are skipped; anything
// else that does not hold exactly two fields, a non-negative finite score,
// or a new document id is rejected.
func Parse(r io.Reader) (Scores, error) {
	scores := make(Scores)
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("line %d: want \"<docId> <score>\": %w", lineNo, apperrors.ErrMalformedInput)
		}
		score, err := strconv.ParseFloat(fields[1], 64)
		if err != nil || math.IsNaN(score) || math.IsInf(score, 0) {
			return nil, fmt.Errorf("line %d: bad score %q: %w", lineNo, fields[1], apperrors.ErrMalformedInput)
		}
		if score < 0 {
			return nil, fmt.Errorf("line %d: negative score for %s: %w", lineNo, fields[0], apperrors.ErrMalformedInput)
		}
		if _, dup := scores[fields[0]]; dup {
			return nil, fmt.Errorf("line %d: duplicate document %s: %w", lineNo, fields[0], apperrors.ErrMalformedInput)
		}
		scores[fields[0]] = score
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading popularity scores: %w", err)
	}
	return scores, nil
}

// Missing returns the ids in ids that have no score.
func (s Scores) Missing(ids []string) []string {
	var out []string
	for _, id := range ids {
		if _, ok := s[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}
