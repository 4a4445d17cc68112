package file

import (
	"context"
	"regexp"

	"github.com/meigma/resx/callback"
	"github.com/meigma/resx/match"
)

// AccessEntry is one row of the access matrix. A reference passes the
// matrix iff any entry matches its (node, path) pair; an empty matrix
// protects everything. The matrix is evaluated on both the calling
// node and the owning node.
type AccessEntry struct {
	node      string
	nodeFn    callback.Descriptor
	hasNodeFn bool

	matcher match.Matcher
	pathFn  callback.Descriptor
	hasFn   bool
}

// AccessGlob matches paths against an extended glob (a literal path is
// the degenerate glob). Panics on a malformed pattern: the matrix is
// configuration, and a pattern that cannot compile can never match.
func AccessGlob(pattern string) AccessEntry {
	return AccessEntry{matcher: match.MustGlob(pattern)}
}

// NewAccessGlob is AccessGlob with an error return, for patterns read
// from configuration files.
func NewAccessGlob(pattern string) (AccessEntry, error) {
	g, err := match.CompileGlob(pattern)
	if err != nil {
		return AccessEntry{}, err
	}
	return AccessEntry{matcher: g}, nil
}

// AccessRegexp matches paths against a whole-path regular expression.
func AccessRegexp(re *regexp.Regexp) AccessEntry {
	return AccessEntry{matcher: match.NewRegexp(re)}
}

// AccessFunc matches paths through a callback receiving the path and
// returning a bool.
func AccessFunc(cb callback.Descriptor) AccessEntry {
	return AccessEntry{pathFn: cb, hasFn: true}
}

// OnNode restricts the entry to a literal node identifier.
func (e AccessEntry) OnNode(node string) AccessEntry {
	e.node = node
	e.hasNodeFn = false
	return e
}

// OnNodeFunc restricts the entry through a callback receiving the node
// identifier and returning a bool.
func (e AccessEntry) OnNodeFunc(cb callback.Descriptor) AccessEntry {
	e.nodeFn = cb
	e.hasNodeFn = true
	return e
}

// matches evaluates the entry against a (node, path) pair.
func (e AccessEntry) matches(ctx context.Context, node, path string) bool {
	switch {
	case e.hasNodeFn:
		out, err := callback.Call(ctx, e.nodeFn, []any{node}, callback.Required)
		if err != nil {
			return false
		}
		if ok, isBool := out.(bool); !isBool || !ok {
			return false
		}
	case e.node != "":
		if e.node != node {
			return false
		}
	}

	if e.hasFn {
		out, err := callback.Call(ctx, e.pathFn, []any{path}, callback.Required)
		if err != nil {
			return false
		}
		ok, isBool := out.(bool)
		return isBool && ok
	}
	return e.matcher != nil && e.matcher.Match(path)
}

// allowed reports whether any matrix entry admits the pair.
func allowed(ctx context.Context, entries []AccessEntry, node, path string) bool {
	for _, entry := range entries {
		if entry.matches(ctx, node, path) {
			return true
		}
	}
	return false
}
