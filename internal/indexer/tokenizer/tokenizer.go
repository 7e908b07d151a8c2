// Package tokenizer is the reference document extractor. It lower-cases
// input, optionally strips HTML tags, splits on non-alphanumeric boundaries,
// removes stop-words, and optionally applies the Snowball English stemmer.
package tokenizer

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/kljensen/snowball/english"

	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/internal/vector"
)

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "by": {}, "for": {}, "from": {}, "has": {}, "he": {},
	"in": {}, "is": {}, "it": {}, "its": {}, "of": {}, "on": {},
	"or": {}, "that": {}, "the": {}, "to": {}, "was": {}, "were": {},
	"will": {}, "with": {}, "this": {}, "but": {}, "they": {},
	"have": {}, "had": {}, "what": {}, "when": {}, "where": {},
	"who": {}, "which": {}, "their": {}, "if": {}, "each": {},
	"do": {}, "not": {}, "no": {}, "so": {}, "can": {},
}

var htmlTag = regexp.MustCompile(`(?s)<[^>]*>`)

// Token represents a single normalised term and its position in the
// original text.
type Token struct {
	Term     string
	Position int
}

// Options selects the optional normalisation steps.
type Options struct {
	Stem bool
	HTML bool
}

// Extraction is the result of processing one document: raw term frequencies
// and the token positions of every term.
type Extraction struct {
	Vector    vector.TermVector
	Positions map[string][]int
}

// Tokenizer applies a fixed set of Options.
type Tokenizer struct {
	opts Options
}

func New(opts Options) *Tokenizer {
	return &Tokenizer{opts: opts}
}

// Tokenize breaks text into a slice of normalised Tokens with stop-words
// removed.
func (t *Tokenizer) Tokenize(text string) []Token {
	if t.opts.HTML {
		text = htmlTag.ReplaceAllString(text, " ")
	}
	text = strings.ToLower(text)
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := make([]Token, 0, len(words)/2)
	pos := 0
	for _, word := range words {
		if len(word) < 2 {
			continue
		}
		if _, isStop := stopWords[word]; isStop {
			continue
		}
		term := word
		if t.opts.Stem {
			term = english.Stem(word, false)
		}
		if term == "" {
			continue
		}
		tokens = append(tokens, Token{
			Term:     term,
			Position: pos,
		})
		pos++
	}
	return tokens
}

// Extract returns the term-frequency vector and term positions of text.
func (t *Tokenizer) Extract(text string) Extraction {
	tokens := t.Tokenize(text)
	ex := Extraction{
		Vector:    make(vector.TermVector),
		Positions: make(map[string][]int),
	}
	for _, tok := range tokens {
		ex.Vector[tok.Term]++
		ex.Positions[tok.Term] = append(ex.Positions[tok.Term], tok.Position)
	}
	return ex
}

// Vector returns only the term-frequency vector of text. Queries go through
// this path.
func (t *Tokenizer) Vector(text string) vector.TermVector {
	return t.Extract(text).Vector
}
