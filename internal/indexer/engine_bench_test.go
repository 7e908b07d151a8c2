package indexer

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/pkg/config"
)

var benchVocab = strings.Fields(`retrieval vector cosine index posting term weight
	frequency document query feedback relevant proximity popularity dense sparse
	fusion ranking evaluation gain judged corpus token stem length norm score`)

// syntheticCorpus returns n documents of 60 words drawn deterministically
// from benchVocab.
func syntheticCorpus(n int) []Document {
	docs := make([]Document, n)
	for i := range docs {
		words := make([]string, 60)
		for j := range words {
			words[j] = benchVocab[(i*7+j*13+i*j)%len(benchVocab)]
		}
		docs[i] = Document{ID: fmt.Sprintf("doc-%05d", i), Text: strings.Join(words, " ")}
	}
	return docs
}

func BenchmarkBuild(b *testing.B) {
	for _, n := range []int{100, 1000, 5000} {
		docs := syntheticCorpus(n)
		b.Run(fmt.Sprintf("docs_%d", n), func(b *testing.B) {
			b.ReportAllocs()
			for b.Loop() {
				e := NewEngine(config.CorpusConfig{Parallelism: 4})
				if err := e.Build(context.Background(), docs); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkQueryVector(b *testing.B) {
	e := NewEngine(config.CorpusConfig{Stem: true})
	if err := e.Build(context.Background(), syntheticCorpus(1000)); err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	for b.Loop() {
		if _, err := e.QueryVector("vector retrieval with relevance feedback"); err != nil {
			b.Fatal(err)
		}
	}
}
