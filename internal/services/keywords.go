package services

import (
	"sort"
	"strings"
	"unicode"

	"github.com/jdkato/prose/v2"
)

// KeywordExtractor pulls representative keywords from document text.
// Extracted keywords are stored on the document record so term search
// can match documents whose body text is sparse or poorly extracted.
type KeywordExtractor struct {
	stopWords map[string]bool
	minLength int
	maxChars  int
}

// NewKeywordExtractor creates a new keyword extractor
func NewKeywordExtractor() *KeywordExtractor {
	stopWords := map[string]bool{
		"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
		"in": true, "on": true, "at": true, "to": true, "for": true, "of": true,
		"with": true, "by": true, "is": true, "are": true, "was": true, "were": true,
		"be": true, "been": true, "have": true, "has": true, "had": true, "do": true,
		"does": true, "did": true, "will": true, "would": true, "could": true, "should": true,
		"this": true, "that": true, "these": true, "those": true, "i": true, "you": true,
		"he": true, "she": true, "it": true, "we": true, "they": true, "my": true,
		"your": true, "his": true, "her": true, "its": true, "our": true, "their": true,
	}

	return &KeywordExtractor{
		stopWords: stopWords,
		minLength: 2,
		maxChars:  20000,
	}
}

// Keyword represents a keyword with its frequency and importance
type Keyword struct {
	Word      string  `json:"word"`
	Frequency int     `json:"frequency"`
	Score     float64 `json:"score"`
	PosTag    string  `json:"pos_tag"`
}

// Extract returns keywords from text ranked by importance
func (ke *KeywordExtractor) Extract(text string) ([]Keyword, error) {
	// Large documents are truncated; the head of a document carries most
	// of its identifying vocabulary and full-text tagging is expensive
	if len(text) > ke.maxChars {
		text = text[:ke.maxChars]
	}

	doc, err := prose.NewDocument(text)
	if err != nil {
		return nil, err
	}

	wordFreq := make(map[string]*Keyword)

	for _, tok := range doc.Tokens() {
		word := strings.ToLower(tok.Text)

		if ke.shouldSkipWord(word, tok.Tag) {
			continue
		}

		score := ke.calculateScore(tok.Tag)

		if existing, exists := wordFreq[word]; exists {
			existing.Frequency++
			existing.Score += score
		} else {
			wordFreq[word] = &Keyword{
				Word:      word,
				Frequency: 1,
				Score:     score,
				PosTag:    tok.Tag,
			}
		}
	}

	// Named entities get a score boost
	for _, ent := range doc.Entities() {
		word := strings.ToLower(ent.Text)
		if len(word) >= ke.minLength && !ke.stopWords[word] {
			if existing, exists := wordFreq[word]; exists {
				existing.Score += 2.0
			} else {
				wordFreq[word] = &Keyword{
					Word:      word,
					Frequency: 1,
					Score:     2.0,
					PosTag:    "NE_" + ent.Label,
				}
			}
		}
	}

	keywords := make([]Keyword, 0, len(wordFreq))
	for _, kw := range wordFreq {
		kw.Score = kw.Score * float64(kw.Frequency)
		keywords = append(keywords, *kw)
	}

	sort.Slice(keywords, func(i, j int) bool {
		return keywords[i].Score > keywords[j].Score
	})

	return keywords, nil
}

// TopKeywords returns up to limit keyword strings ranked by importance
func (ke *KeywordExtractor) TopKeywords(text string, limit int) ([]string, error) {
	keywords, err := ke.Extract(text)
	if err != nil {
		return nil, err
	}

	if limit > 0 && len(keywords) > limit {
		keywords = keywords[:limit]
	}

	result := make([]string, len(keywords))
	for i, kw := range keywords {
		result[i] = kw.Word
	}
	return result, nil
}

func (ke *KeywordExtractor) shouldSkipWord(word, posTag string) bool {
	if len(word) < ke.minLength {
		return true
	}
	if ke.stopWords[word] {
		return true
	}
	if isPureNumber(word) || isPunctuation(word) {
		return true
	}

	// Determiners, prepositions, pronouns and similar function words
	skipTags := map[string]bool{
		"DT":   true,
		"IN":   true,
		"TO":   true,
		"CC":   true,
		"PRP":  true,
		"PRP$": true,
		"WP":   true,
		"WDT":  true,
	}

	return skipTags[posTag]
}

func (ke *KeywordExtractor) calculateScore(posTag string) float64 {
	switch posTag {
	case "NNP", "NNPS":
		return 2.0
	case "NN", "NNS":
		return 1.5
	case "JJ", "JJR", "JJS":
		return 1.3
	case "VB", "VBD", "VBG", "VBN", "VBP", "VBZ":
		return 1.2
	case "RB", "RBR", "RBS":
		return 0.8
	default:
		return 1.0
	}
}

func isPureNumber(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return len(s) > 0
}

func isPunctuation(s string) bool {
	for _, r := range s {
		if !unicode.IsPunct(r) && !unicode.IsSymbol(r) {
			return false
		}
	}
	return len(s) > 0
}
