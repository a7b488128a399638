// Package classifier matches tender text against an ordered keyword taxonomy.
package classifier

import (
	"strings"
	"unicode/utf8"

	"TenderMonitor/internal/domain"
	"TenderMonitor/internal/ports"
)

// Keyword is one entry of the taxonomy. Strict keywords only match whole words.
type Keyword struct {
	Phrase   string
	Category string
	Strict   bool
}

type compiledKeyword struct {
	Keyword
	needle string
}

// Classifier is immutable after construction and safe for concurrent use.
type Classifier struct {
	keywords   []compiledKeyword
	exclusions []string
	original   []string
}

var _ ports.Classifier = (*Classifier)(nil)

// New compiles the keyword table. Order is priority: the first matching entry wins.
func New(keywords []Keyword, exclusions []string) *Classifier {
	c := &Classifier{}
	for _, kw := range keywords {
		needle := Normalize(kw.Phrase)
		if needle == "" {
			continue
		}
		c.keywords = append(c.keywords, compiledKeyword{Keyword: kw, needle: needle})
	}
	for _, ex := range exclusions {
		needle := Normalize(ex)
		if needle == "" {
			continue
		}
		c.exclusions = append(c.exclusions, needle)
		c.original = append(c.original, ex)
	}
	return c
}

// Classify returns the first matching category, or false when nothing matches or the text is excluded.
func (c *Classifier) Classify(text string) (domain.Classification, bool) {
	v := c.Evaluate(text)
	return v.Classification, v.Matched
}

// Evaluate is Classify with the exclusion that fired, if any.
func (c *Classifier) Evaluate(text string) domain.Verdict {
	normalized := Normalize(text)

	for i, ex := range c.exclusions {
		if strings.Contains(normalized, ex) {
			return domain.Verdict{ExcludedBy: c.original[i]}
		}
	}

	for _, kw := range c.keywords {
		var hit bool
		if kw.Strict {
			hit = containsWord(normalized, kw.needle)
		} else {
			hit = strings.Contains(normalized, kw.needle)
		}
		if hit {
			return domain.Verdict{
				Classification: domain.Classification{Category: kw.Category, Keyword: kw.Phrase},
				Matched:        true,
			}
		}
	}

	return domain.Verdict{}
}

// containsWord reports whether needle occurs in text delimited by non-word runes.
func containsWord(text, needle string) bool {
	offset := 0
	for {
		idx := strings.Index(text[offset:], needle)
		if idx < 0 {
			return false
		}
		start := offset + idx
		end := start + len(needle)

		before, _ := utf8.DecodeLastRuneInString(text[:start])
		after, _ := utf8.DecodeRuneInString(text[end:])
		leftOK := start == 0 || !isWordRune(before)
		rightOK := end == len(text) || !isWordRune(after)
		if leftOK && rightOK {
			return true
		}

		_, size := utf8.DecodeRuneInString(text[start:])
		offset = start + size
	}
}
