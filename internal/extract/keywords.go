package extract

import (
	"regexp"
	"regexp/syntax"
	"strings"

	"github.com/hurttlocker/filingintel/internal/document"
	"github.com/hurttlocker/filingintel/internal/errcode"
	"github.com/hurttlocker/filingintel/internal/evidence"
)

const (
	// MaxTerms bounds the terms of one keyword search.
	MaxTerms = 20
	// MaxTermLength bounds the length of one term, prefix included.
	MaxTermLength = 128
	// RegexPrefix marks a term as a regular expression instead of a literal.
	RegexPrefix = "re:"
)

// KeywordHit is the result for one search term. Samples are the first hits
// in document order.
type KeywordHit struct {
	Count   int                `json:"count"`
	Samples []evidence.Snippet `json:"samples"`
}

// Search counts every occurrence of each term and returns up to maxHits
// samples per term with contextChars of surrounding text. Literal terms
// match case-insensitively with any whitespace run between words; terms
// prefixed with "re:" are regular expressions and must pass CompileTerm.
func (e *Extractor) Search(doc *document.Document, terms []string, contextChars, maxHits int) (map[string]KeywordHit, error) {
	compiled, err := compileTerms(terms)
	if err != nil {
		return nil, err
	}
	if contextChars < 0 {
		contextChars = 0
	}
	if maxHits < 0 {
		maxHits = 0
	}

	out := make(map[string]KeywordHit, len(terms))
	for i, t := range terms {
		hit := KeywordHit{Samples: []evidence.Snippet{}}
		if doc != nil {
			locs := compiled[i].FindAllStringIndex(doc.Text, -1)
			hit.Count = len(locs)
			for _, loc := range locs {
				if len(hit.Samples) >= maxHits {
					break
				}
				hit.Samples = append(hit.Samples, e.evidence.Around(doc, loc[0], loc[1], contextChars))
			}
		}
		out[t] = hit
	}
	return out, nil
}

// ValidateTerms checks a term list the way Search does, without a document.
func ValidateTerms(terms []string) error {
	_, err := compileTerms(terms)
	return err
}

func compileTerms(terms []string) ([]*regexp.Regexp, error) {
	if len(terms) == 0 {
		return nil, errcode.Validationf("at least one term is required")
	}
	if len(terms) > MaxTerms {
		return nil, errcode.Validationf("too many terms: %d > %d", len(terms), MaxTerms)
	}
	compiled := make([]*regexp.Regexp, len(terms))
	for i, t := range terms {
		re, err := CompileTerm(t)
		if err != nil {
			return nil, err
		}
		compiled[i] = re
	}
	return compiled, nil
}

var spaceRunRe = regexp.MustCompile(`\s+`)

// CompileTerm turns a search term into a case-insensitive pattern. Regular
// expression terms are rejected when they can match the empty string or
// nest one unbounded repetition inside another.
func CompileTerm(term string) (*regexp.Regexp, error) {
	if strings.TrimSpace(term) == "" {
		return nil, errcode.Validationf("empty search term")
	}
	if len(term) > MaxTermLength {
		return nil, errcode.Validationf("search term longer than %d bytes", MaxTermLength)
	}

	if !strings.HasPrefix(term, RegexPrefix) {
		words := spaceRunRe.Split(strings.TrimSpace(term), -1)
		for i, w := range words {
			words[i] = regexp.QuoteMeta(w)
		}
		return regexp.MustCompile(`(?i)` + strings.Join(words, `\s+`)), nil
	}

	expr := strings.TrimPrefix(term, RegexPrefix)
	parsed, err := syntax.Parse(expr, syntax.Perl)
	if err != nil {
		return nil, errcode.Validationf("invalid pattern %q: %v", expr, err)
	}
	parsed = parsed.Simplify()
	if nestedRepeat(parsed, false) {
		return nil, errcode.Validationf("pattern %q nests repetition", expr)
	}
	if minLen(parsed) == 0 {
		return nil, errcode.Validationf("pattern %q can match empty text", expr)
	}
	re, err := regexp.Compile(`(?i)` + expr)
	if err != nil {
		return nil, errcode.Validationf("invalid pattern %q: %v", expr, err)
	}
	return re, nil
}

// nestedRepeat reports whether a repetition that can run more than once
// contains another such repetition.
func nestedRepeat(re *syntax.Regexp, inside bool) bool {
	repeats := isRepeat(re)
	if repeats && inside {
		return true
	}
	for _, sub := range re.Sub {
		if nestedRepeat(sub, inside || repeats) {
			return true
		}
	}
	return false
}

func isRepeat(re *syntax.Regexp) bool {
	switch re.Op {
	case syntax.OpStar, syntax.OpPlus:
		return true
	case syntax.OpRepeat:
		return re.Max == -1 || re.Max > 1
	}
	return false
}

// minLen returns the shortest text re can match, in runes. Assertions and
// anchors are zero-width.
func minLen(re *syntax.Regexp) int {
	switch re.Op {
	case syntax.OpLiteral:
		return len(re.Rune)
	case syntax.OpCharClass, syntax.OpAnyChar, syntax.OpAnyCharNotNL:
		return 1
	case syntax.OpCapture:
		return minLen(re.Sub[0])
	case syntax.OpPlus:
		return minLen(re.Sub[0])
	case syntax.OpRepeat:
		return re.Min * minLen(re.Sub[0])
	case syntax.OpConcat:
		n := 0
		for _, sub := range re.Sub {
			n += minLen(sub)
		}
		return n
	case syntax.OpAlternate:
		n := -1
		for _, sub := range re.Sub {
			if m := minLen(sub); n < 0 || m < n {
				n = m
			}
		}
		if n < 0 {
			return 0
		}
		return n
	}
	// OpStar, OpQuest, OpEmptyMatch, anchors and word boundaries.
	return 0
}
