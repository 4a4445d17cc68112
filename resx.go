// Package resx is a referenceable resource pipeline: a uniform
// abstraction over heterogeneous data sources that lets a caller open,
// stream, transform, cache, compare, and persist content while
// preserving a verifiable lineage across process boundaries.
//
// A resource is identified by a Reference and realised as Content.
// URIs route through a scheme dispatcher to producers: data: carries
// its payload inline, file: names a node-qualified path that may cache
// another resource, and resx-transform: encodes a chain of named
// transformations over any inner URI. The package-level functions form
// the façade over whichever producer owns a reference.
package resx

import (
	"context"
	"errors"
	"strings"

	"github.com/meigma/resx/producers/transform"
	"github.com/meigma/resx/resource"
)

// resolver implements resource.Resolver over the package configuration.
// Producers that resolve inner references (transform chains, file
// sources) hold one.
type resolver struct{}

func (resolver) ProducerOf(ref resource.Reference) (resource.Producer, error) {
	return producerOf(ref)
}

func (resolver) ParseURI(uri string) (resource.Reference, error) {
	return ParseURI(uri)
}

func (resolver) Open(ctx context.Context, ref resource.Reference) (*resource.Resource, error) {
	return Open(ctx, ref)
}

func (resolver) Stream(ctx context.Context, ref resource.Reference) (*resource.Resource, error) {
	return Stream(ctx, ref)
}

func (resolver) URI(ref resource.Reference) (string, error) {
	return URI(ref)
}

// Resolver returns the package's resource.Resolver, for wiring
// producers constructed outside the built-in set.
func Resolver() resource.Resolver {
	return resolver{}
}

// producerFor maps a URI scheme to its producer, configuration
// overrides first.
func producerFor(scheme string) (resource.Producer, error) {
	if p, ok := config().Producers[scheme]; ok {
		return p, nil
	}
	if p, ok := defaultProducers[scheme]; ok {
		return p, nil
	}
	return nil, resource.InvalidReferencef("no producer for URI")
}

// producerOf returns the producer embedded in a reference's adapter
// tag. Adapter identifiers coincide with the producer's primary scheme.
func producerOf(ref resource.Reference) (resource.Producer, error) {
	if ref.Adapter == "" {
		return nil, resource.InvalidReferencef("reference has no adapter")
	}
	return producerFor(ref.Adapter)
}

// ParseURI converts a URI into a Reference via the scheme dispatcher.
func ParseURI(uri string) (resource.Reference, error) {
	scheme, _, ok := strings.Cut(uri, ":")
	if !ok || scheme == "" {
		return resource.Reference{}, resource.InvalidReferencef("no producer for URI")
	}
	p, err := producerFor(scheme)
	if err != nil {
		return resource.Reference{}, err
	}
	return p.ParseURI(uri)
}

// reference normalises façade input: a Reference, a *Resource, or a
// URI string.
func reference(in any) (resource.Reference, error) {
	switch v := in.(type) {
	case resource.Reference:
		return v, nil
	case *resource.Resource:
		return v.Reference, nil
	case string:
		return ParseURI(v)
	default:
		return resource.Reference{}, resource.InvalidReferencef("cannot derive a reference from %T", in)
	}
}

// asResource normalises façade input into an open resource, opening
// references and URIs on demand.
func asResource(ctx context.Context, in any) (*resource.Resource, error) {
	if res, ok := in.(*resource.Resource); ok {
		return res, nil
	}
	return Open(ctx, in)
}

// Open returns the resource identified by in (a URI string, Reference,
// or *Resource) with eager content.
//
// When the producer reports UnknownResource for a reference that
// carries a source and declares default source compatibility, Open
// recovers the cache miss: it streams the source, re-stores it at the
// reference's destination, and reopens.
func Open(ctx context.Context, in any) (*resource.Resource, error) {
	ref, err := reference(in)
	if err != nil {
		return nil, err
	}
	p, err := producerOf(ref)
	if err != nil {
		return nil, err
	}
	res, err := p.Open(ctx, ref)
	if err == nil {
		return res, nil
	}
	if recovered, rerr := recoverSource(ctx, p, ref, err); recovered {
		if rerr != nil {
			return nil, rerr
		}
		return p.Open(ctx, ref)
	}
	return nil, err
}

// Stream returns the resource with streaming content, with the same
// cache-miss recovery as Open.
func Stream(ctx context.Context, in any) (*resource.Resource, error) {
	ref, err := reference(in)
	if err != nil {
		return nil, err
	}
	p, err := producerOf(ref)
	if err != nil {
		return nil, err
	}
	res, err := p.Stream(ctx, ref)
	if err == nil {
		return res, nil
	}
	if recovered, rerr := recoverSource(ctx, p, ref, err); recovered {
		if rerr != nil {
			return nil, rerr
		}
		return p.Stream(ctx, ref)
	}
	return nil, err
}

// recoverSource implements the cache-miss recovery path. It reports
// whether recovery applied; when it does, the destination has been
// restored from the reference's source and the caller should retry.
func recoverSource(ctx context.Context, p resource.Producer, ref resource.Reference, cause error) (bool, error) {
	if !errors.Is(cause, resource.ErrUnknownResource) {
		return false, nil
	}
	storer, ok := p.(resource.Storer)
	if !ok || storer.SourceCompatibility() != resource.CompatibleDefault {
		return false, nil
	}
	preparer, ok := p.(resource.StorePreparer)
	if !ok {
		return false, nil
	}
	src, err := p.Source(ref)
	if err != nil || src == nil {
		return false, nil
	}

	srcRes, err := Stream(ctx, *src)
	if err != nil {
		return true, err
	}
	opts, err := preparer.PrepareStore(ref)
	if err != nil {
		return true, err
	}
	stored, err := storer.Store(ctx, srcRes, opts)
	if err != nil {
		return true, err
	}
	// A deferred store writes nothing until driven.
	if stored.Content.Streaming() {
		if _, err := stored.Content.Stream().Reduce(ctx, nil, func(acc, _ any) (any, error) {
			return acc, nil
		}); err != nil {
			return true, err
		}
	}
	return true, nil
}

// Exists reports whether the referenced resource exists.
func Exists(ctx context.Context, in any) (bool, error) {
	ref, err := reference(in)
	if err != nil {
		return false, err
	}
	p, err := producerOf(ref)
	if err != nil {
		return false, err
	}
	return p.Exists(ctx, ref)
}

// Alike reports whether two inputs identify the same resource. There
// is no error channel: unusable references are simply not alike.
func Alike(a, b any) bool {
	ra, err := reference(a)
	if err != nil {
		return false
	}
	rb, err := reference(b)
	if err != nil {
		return false
	}
	if ra.Adapter != rb.Adapter {
		return false
	}
	p, err := producerOf(ra)
	if err != nil {
		return false
	}
	return p.Alike(ra, rb)
}

// Source returns the immediately-underlying reference, or nil for a
// leaf.
func Source(in any) (*resource.Reference, error) {
	ref, err := reference(in)
	if err != nil {
		return nil, err
	}
	p, err := producerOf(ref)
	if err != nil {
		return nil, err
	}
	return p.Source(ref)
}

// URI re-emits the canonical URI for the input's reference.
func URI(in any) (string, error) {
	ref, err := reference(in)
	if err != nil {
		return "", err
	}
	p, err := producerOf(ref)
	if err != nil {
		return "", err
	}
	return p.URI(ref)
}

// Attribute returns one attribute value of the referenced resource.
func Attribute(ctx context.Context, in any, key string) (any, error) {
	ref, err := reference(in)
	if err != nil {
		return nil, err
	}
	p, err := producerOf(ref)
	if err != nil {
		return nil, err
	}
	return p.Attribute(ctx, ref, key)
}

// Attributes returns every attribute of the referenced resource.
func Attributes(ctx context.Context, in any) (map[string]any, error) {
	ref, err := reference(in)
	if err != nil {
		return nil, err
	}
	p, err := producerOf(ref)
	if err != nil {
		return nil, err
	}
	return p.Attributes(ctx, ref)
}

// AttributeKeys returns the available attribute keys.
func AttributeKeys(ctx context.Context, in any) ([]string, error) {
	ref, err := reference(in)
	if err != nil {
		return nil, err
	}
	p, err := producerOf(ref)
	if err != nil {
		return nil, err
	}
	return p.AttributeKeys(ctx, ref)
}

// Transform applies a registered transformation to the input, opening
// it first when it is not already a resource. The result carries a
// transform reference wrapping the input's reference, stamped with a
// fresh timestamp and no checksum.
func Transform(ctx context.Context, in any, name string, options map[string]any) (*resource.Resource, error) {
	res, err := asResource(ctx, in)
	if err != nil {
		return nil, err
	}
	return transform.Apply(ctx, res, name, options)
}

// Store persists the input through the named storer adapter (e.g.
// "file"). The input is opened first when it is not already a resource.
func Store(ctx context.Context, in any, adapter string, opts resource.StoreOptions) (*resource.Resource, error) {
	res, err := asResource(ctx, in)
	if err != nil {
		return nil, err
	}
	p, err := producerFor(adapter)
	if err != nil {
		return nil, err
	}
	storer, ok := p.(resource.Storer)
	if !ok {
		return nil, resource.InvalidReferencef("adapter %q cannot store resources", adapter)
	}
	return storer.Store(ctx, res, opts)
}

// Discard removes a stored resource.
func Discard(ctx context.Context, in any, opts resource.DiscardOptions) error {
	ref, err := reference(in)
	if err != nil {
		return err
	}
	p, err := producerOf(ref)
	if err != nil {
		return err
	}
	storer, ok := p.(resource.Storer)
	if !ok {
		return resource.InvalidReferencef("adapter %q cannot discard resources", ref.Adapter)
	}
	return storer.Discard(ctx, ref, opts)
}
