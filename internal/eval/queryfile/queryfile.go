// Package queryfile reads evaluation query files. Each query is a block of
// three lines: the query text, a line of "<docId> <relevance>" pairs, and a
// blank delimiter line (optional after the last block).
package queryfile

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/pkg/errors"
)

// Query is one judged query.
type Query struct {
	Text string
	Gold map[string]float64
	Line int
}

func Load(path string) ([]Query, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening query file: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads every query block from r. Structural problems fail with
// ErrMalformedInput and carry the offending line number.
func Parse(r io.Reader) ([]Query, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)

	var (
		queries []Query
		lineNo  int
	)
	next := func() (string, bool) {
		if !sc.Scan() {
			return "", false
		}
		lineNo++
		return sc.Text(), true
	}

	for {
		text, ok := next()
		if !ok {
			break
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return nil, malformed(lineNo, "empty query line")
		}
		q := Query{Text: text, Gold: make(map[string]float64), Line: lineNo}

		judged, ok := next()
		if !ok {
			return nil, malformed(lineNo+1, "missing relevance line")
		}
		fields := strings.Fields(judged)
		if len(fields)%2 != 0 {
			return nil, malformed(lineNo, "odd number of fields in relevance line")
		}
		for i := 0; i < len(fields); i += 2 {
			rel, err := strconv.ParseFloat(fields[i+1], 64)
			if err != nil || math.IsNaN(rel) || math.IsInf(rel, 0) {
				return nil, malformed(lineNo, fmt.Sprintf("bad relevance %q for %s", fields[i+1], fields[i]))
			}
			q.Gold[fields[i]] = rel
		}
		queries = append(queries, q)

		blank, ok := next()
		if !ok {
			break
		}
		if strings.TrimSpace(blank) != "" {
			return nil, malformed(lineNo, "expected blank line after query")
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading query file: %w", err)
	}
	return queries, nil
}

func malformed(line int, msg string) error {
	return fmt.Errorf("query file line %d: %s: %w", line, msg, apperrors.ErrMalformedInput)
}
