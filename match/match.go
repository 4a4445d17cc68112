// Package match implements the anchored, whole-path matching used by
// the file access matrix: extended globs and regular expressions.
package match

import "regexp"

// Matcher reports whether a path satisfies a pattern. Matching is
// always anchored and covers the whole path.
type Matcher interface {
	Match(path string) bool
}

// Func adapts a predicate to the Matcher interface.
type Func func(path string) bool

func (f Func) Match(path string) bool { return f(path) }

// Regexp wraps a compiled regular expression as a whole-path Matcher.
type Regexp struct {
	re *regexp.Regexp
}

// NewRegexp builds a whole-path matcher from a compiled expression.
func NewRegexp(re *regexp.Regexp) *Regexp {
	return &Regexp{re: regexp.MustCompile(`\A(?:` + re.String() + `)\z`)}
}

// Match reports whether re matches the entire path.
func (r *Regexp) Match(path string) bool {
	return r.re.MatchString(path)
}
