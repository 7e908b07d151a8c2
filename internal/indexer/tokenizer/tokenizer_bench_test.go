package tokenizer

import (
	"strings"
	"testing"
)

var sampleTexts = map[string]string{
	"short": "The quick brown fox jumps over the lazy dog",
	"medium": `Vector space retrieval represents documents and queries as weighted term
        vectors. Each term weight is its frequency scaled by the inverse document
        frequency, and documents are ranked by the cosine of the angle between their
        vector and the query vector. Relevance feedback moves the query towards the
        documents a user judged relevant and away from the irrelevant ones.`,
	"long": strings.Repeat(`<p>Information retrieval systems combine tokenization, stemming and
        stop word removal to normalize text into searchable terms. The inverted index
        maps each term to the documents containing it, along with positional
        information used for proximity ranking.</p> `, 20),
}

func BenchmarkExtract(b *testing.B) {
	for _, opts := range []struct {
		name string
		opts Options
	}{
		{"plain", Options{}},
		{"stem", Options{Stem: true}},
		{"stem_html", Options{Stem: true, HTML: true}},
	} {
		tok := New(opts.opts)
		for name, text := range sampleTexts {
			b.Run(opts.name+"/"+name, func(b *testing.B) {
				b.ReportAllocs()
				b.SetBytes(int64(len(text)))
				for b.Loop() {
					_ = tok.Extract(text)
				}
			})
		}
	}
}

func BenchmarkExtractParallel(b *testing.B) {
	tok := New(Options{Stem: true})
	text := sampleTexts["medium"]
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = tok.Extract(text)
		}
	})
}
