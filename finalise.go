package resx

import (
	"context"

	"github.com/meigma/resx/hashing"
	"github.com/meigma/resx/resource"
)

// FinaliseOptions tune Finalise.
type FinaliseOptions struct {
	// SkipContent leaves streaming content streaming.
	SkipContent bool

	// SkipHash leaves the reference without a checksum.
	SkipHash bool

	// Algorithm overrides the configured default digest algorithm.
	Algorithm string
}

// Finalise gives a resource a stable identity: the content is
// materialised and the reference gains a checksum over it. This is the
// point at which a streaming reference can be compared by content
// evidence rather than timestamps alone.
func Finalise(ctx context.Context, in any, opts FinaliseOptions) (*resource.Resource, error) {
	res, err := asResource(ctx, in)
	if err != nil {
		return nil, err
	}

	if !opts.SkipContent {
		content, err := res.Content.Materialise(ctx, config().Combiner)
		if err != nil {
			return nil, err
		}
		res = res.WithContent(content)
	}
	if opts.SkipHash {
		return res, nil
	}

	sum, err := Hash(ctx, res, opts.Algorithm)
	if err != nil {
		return nil, err
	}
	ref := res.Reference.Stamped(resource.Integrity{
		Checksum:  &sum,
		Timestamp: res.Reference.Integrity.Timestamp,
	})
	return res.WithReference(ref), nil
}

// Hash digests the input's content with the named algorithm (the
// configured default when empty).
//
// When the resource already carries a checksum for the same algorithm
// it is returned unchanged. Otherwise the binary content reducer is
// driven through the algorithm; the configured reducer hook may remap
// the reducer per media type. Meta is never hashed.
func Hash(ctx context.Context, in any, algorithm string) (resource.Checksum, error) {
	cfg := config()
	if algorithm == "" {
		algorithm = cfg.Hash
	}
	algo, ok := hashing.Lookup(algorithm)
	if !ok {
		return resource.Checksum{}, resource.Internalf("unknown hash algorithm %q", algorithm)
	}
	return HashWith(ctx, in, algo)
}

// HashWith digests the input's content with an explicit algorithm,
// incremental or whole-buffer.
func HashWith(ctx context.Context, in any, algo hashing.Algorithm) (resource.Checksum, error) {
	res, err := asResource(ctx, in)
	if err != nil {
		return resource.Checksum{}, err
	}
	if cs := res.Reference.Integrity.Checksum; cs != nil && string(cs.Algorithm) == algo.Name() {
		return *cs, nil
	}

	reducer, err := res.Content.Reducer(resource.ReducerBinary, config().ReducerHook)
	if err != nil {
		return resource.Checksum{}, err
	}
	return hashing.Sum(ctx, algo, reducer)
}
