// Package classify assigns a document type to a page from its text.
package classify

import (
	"regexp"
	"strings"

	"github.com/sgte/pdf-splitter/constants"
	"github.com/sgte/pdf-splitter/internal/utils"
)

type compiledRule struct {
	typ constants.DocumentType
	re  *regexp.Regexp
}

// Classifier is safe for concurrent use; it holds no mutable state.
type Classifier struct {
	rules []compiledRule
}

// New compiles rules in order. Rules without usable keywords are skipped.
func New(rules []Rule) *Classifier {
	c := &Classifier{}
	for _, r := range rules {
		var alts []string
		for _, kw := range r.Keywords {
			words := strings.Fields(utils.Fold(kw))
			if len(words) == 0 {
				continue
			}
			for i, w := range words {
				words[i] = regexp.QuoteMeta(w)
			}
			alts = append(alts, strings.Join(words, `\s+`))
		}
		if len(alts) == 0 {
			continue
		}
		c.rules = append(c.rules, compiledRule{
			typ: r.Type,
			re:  regexp.MustCompile(`\b(?:` + strings.Join(alts, "|") + `)\b`),
		})
	}
	return c
}

// NewDefault returns a classifier with DefaultRules.
func NewDefault() *Classifier {
	return New(DefaultRules())
}

// Classify returns the type of the first matching rule, or Unknown.
func (c *Classifier) Classify(text string) constants.DocumentType {
	if strings.TrimSpace(text) == "" {
		return constants.Unknown
	}
	folded := utils.Fold(text)
	for _, r := range c.rules {
		if r.re.MatchString(folded) {
			return r.typ
		}
	}
	return constants.Unknown
}
