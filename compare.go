package resx

import (
	"bytes"
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/meigma/resx/resource"
)

// Comparison is the outcome of ordering two resources along their
// shared lineage.
type Comparison int

const (
	// ComparisonNone means the inputs do not share a resource identity.
	ComparisonNone Comparison = iota

	// ComparisonEqual means the lineages agree at every compared link.
	ComparisonEqual

	// ComparisonBefore means the first input predates the second.
	ComparisonBefore

	// ComparisonAfter means the first input postdates the second.
	ComparisonAfter

	// ComparisonDifferent means the contents provably differ.
	ComparisonDifferent

	// ComparisonUnsure means no checksum evidence was available either
	// way. Map it with CompareOptions.Unsure or retry with Content set.
	ComparisonUnsure
)

func (c Comparison) String() string {
	switch c {
	case ComparisonEqual:
		return "equal"
	case ComparisonBefore:
		return "before"
	case ComparisonAfter:
		return "after"
	case ComparisonDifferent:
		return "different"
	case ComparisonUnsure:
		return "unsure"
	default:
		return "none"
	}
}

// CompareOptions tune Compare.
type CompareOptions struct {
	// FromLast folds the comparison list starting at the innermost
	// lineage link instead of the outermost.
	FromLast bool

	// Content materialises and compares the payload bytes when the fold
	// alone cannot distinguish the resources.
	Content bool

	// Unsure, when not ComparisonNone, replaces a ComparisonUnsure
	// outcome.
	Unsure Comparison
}

// lineage collects the integrity stamps along a reference's source
// chain, outermost first.
func lineage(ref resource.Reference) ([]resource.Integrity, error) {
	out := []resource.Integrity{ref.Integrity}
	current := ref
	for {
		p, err := producerOf(current)
		if err != nil {
			return nil, err
		}
		src, err := p.Source(current)
		if err != nil {
			return nil, err
		}
		if src == nil {
			return out, nil
		}
		out = append(out, src.Integrity)
		current = *src
	}
}

// Compare orders two resources along their shared lineage.
//
// When the inputs are not alike the result is ComparisonNone. Otherwise
// the source chains are walked in parallel, each link pair compared by
// checksum and timestamp, and the list folded from the chosen end:
// matching checksums continue, timestamp differences halt with an
// ordering, and checksum differences halt with ComparisonDifferent.
// Links with no checksum evidence downgrade the running result to
// ComparisonUnsure without halting.
func Compare(ctx context.Context, a, b any, opts CompareOptions) (Comparison, error) {
	if !Alike(a, b) {
		return ComparisonNone, nil
	}
	ra, err := reference(a)
	if err != nil {
		return ComparisonNone, err
	}
	rb, err := reference(b)
	if err != nil {
		return ComparisonNone, err
	}

	la, err := lineage(ra)
	if err != nil {
		return ComparisonNone, err
	}
	lb, err := lineage(rb)
	if err != nil {
		return ComparisonNone, err
	}

	links := len(la)
	if len(lb) < links {
		links = len(lb)
	}

	result := ComparisonEqual
	for i := 0; i < links; i++ {
		idx := i
		if opts.FromLast {
			idx = links - 1 - i
		}
		eq, ord := la[idx].Compare(lb[idx])

		if ord != resource.OrderEqual {
			result = ComparisonBefore
			if ord == resource.OrderAfter {
				result = ComparisonAfter
			}
			break
		}
		switch eq {
		case resource.EqualityEqual:
			// Running result stands.
		case resource.EqualityDifferent:
			result = ComparisonDifferent
		case resource.EqualityUnknown:
			result = ComparisonUnsure
		}
		if result == ComparisonDifferent {
			break
		}
	}

	if opts.Content && (result == ComparisonEqual || result == ComparisonUnsure) {
		result, err = compareContent(ctx, a, b)
		if err != nil {
			return ComparisonNone, err
		}
	}
	if result == ComparisonUnsure && opts.Unsure != ComparisonNone {
		result = opts.Unsure
	}
	return result, nil
}

// compareContent materialises both payloads concurrently and compares
// the bytes.
func compareContent(ctx context.Context, a, b any) (Comparison, error) {
	var da, db []byte
	g, gctx := errgroup.WithContext(ctx)
	load := func(in any, out *[]byte) func() error {
		return func() error {
			res, err := asResource(gctx, in)
			if err != nil {
				return err
			}
			content, err := res.Content.Materialise(gctx, config().Combiner)
			if err != nil {
				return err
			}
			*out = content.Bytes()
			return nil
		}
	}
	g.Go(load(a, &da))
	g.Go(load(b, &db))
	if err := g.Wait(); err != nil {
		return ComparisonNone, err
	}
	if bytes.Equal(da, db) {
		return ComparisonEqual, nil
	}
	return ComparisonDifferent, nil
}

// Newest returns whichever input is newer along the shared lineage. ok
// is false when the inputs are not comparable (not alike, provably
// different, or unsure).
func Newest(ctx context.Context, a, b any) (newest any, ok bool, err error) {
	cmp, err := Compare(ctx, a, b, CompareOptions{})
	if err != nil {
		return nil, false, err
	}
	switch cmp {
	case ComparisonAfter, ComparisonEqual:
		return a, true, nil
	case ComparisonBefore:
		return b, true, nil
	default:
		return nil, false, nil
	}
}

// Oldest returns whichever input is older along the shared lineage.
func Oldest(ctx context.Context, a, b any) (oldest any, ok bool, err error) {
	cmp, err := Compare(ctx, a, b, CompareOptions{})
	if err != nil {
		return nil, false, err
	}
	switch cmp {
	case ComparisonBefore, ComparisonEqual:
		return a, true, nil
	case ComparisonAfter:
		return b, true, nil
	default:
		return nil, false, nil
	}
}
