// Package transform implements the resx-transform: producer, which
// encodes a chain of named transformations over an inner resource into
// a single reversible URI:
//
//	resx-transform:T_n[:B64(opts_n)],…,T_1[:B64(opts_1)],B64(inner_uri)
//
// Segments list the transformers outermost first; the final segment is
// the base64-encoded URI of the inner resource. Option payloads are
// deterministic CBOR, so equal option mappings encode to equal URI
// segments.
package transform

import (
	"bytes"
	"context"
	"encoding/base64"
	"strings"

	"github.com/meigma/resx/codec"
	"github.com/meigma/resx/resource"
)

// Scheme is the URI scheme owned by the producer.
const Scheme = "resx-transform"

// Adapter is the adapter identifier stored in references.
const Adapter = "transform"

// Repository is one wrapper link of a transformation chain.
type Repository struct {
	// Name is the registered transformer identifier.
	Name string

	// Options parameterise the transformation. May be nil.
	Options map[string]any

	// Inner is the reference the transformation applies to. Chains are
	// left-deep: Inner may itself be a transform reference, and the
	// innermost link is always another adapter's reference.
	Inner resource.Reference
}

// Producer interprets resx-transform: references.
type Producer struct {
	resolver resource.Resolver
}

// New creates the transform producer over the given resolver.
func New(resolver resource.Resolver) *Producer {
	return &Producer{resolver: resolver}
}

// Schemes implements resource.Producer.
func (p *Producer) Schemes() []string { return []string{Scheme} }

// Wrap builds a transform reference around an inner reference. The
// transformer must already be registered.
func Wrap(inner resource.Reference, name string, options map[string]any) (resource.Reference, error) {
	if _, ok := Lookup(name); !ok {
		return resource.Reference{}, resource.InvalidReferencef("transformation (%s) does not exist", name)
	}
	return resource.Reference{
		Adapter:    Adapter,
		Repository: Repository{Name: name, Options: options, Inner: inner},
		Integrity:  resource.Now(),
	}, nil
}

// ParseURI parses a transform chain URI into a left-deep reference
// chain.
func (p *Producer) ParseURI(uri string) (resource.Reference, error) {
	rest, ok := strings.CutPrefix(uri, Scheme+":")
	if !ok {
		return resource.Reference{}, resource.InvalidReferencef("not a transform URI: %q", uri)
	}

	segments := strings.Split(rest, ",")
	if len(segments) < 2 {
		return resource.Reference{}, resource.InvalidReferencef("transform URI has no inner reference")
	}

	innerURI, err := base64.StdEncoding.DecodeString(segments[len(segments)-1])
	if err != nil {
		return resource.Reference{}, resource.InvalidReferencef("data is not base64")
	}
	ref, err := p.resolver.ParseURI(string(innerURI))
	if err != nil {
		return resource.Reference{}, err
	}

	// Segments are outermost first; wrap from the innermost out.
	for i := len(segments) - 2; i >= 0; i-- {
		name, opts, err := parseSegment(segments[i])
		if err != nil {
			return resource.Reference{}, err
		}
		ref, err = Wrap(ref, name, opts)
		if err != nil {
			return resource.Reference{}, err
		}
	}
	return ref, nil
}

// parseSegment splits one `name[:b64opts]` chain element.
func parseSegment(segment string) (string, map[string]any, error) {
	name, encoded, hasOpts := strings.Cut(segment, ":")
	if name == "" {
		return "", nil, resource.InvalidReferencef("empty transformer segment")
	}
	if !hasOpts {
		return name, nil, nil
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", nil, resource.InvalidReferencef("transformation (%s) options are not base64", name)
	}
	// CBOR carries no executable opcodes; decoding into a plain map is
	// the safe-decode boundary for option payloads.
	var opts map[string]any
	if err := codec.Unmarshal(raw, &opts); err != nil {
		return "", nil, resource.InvalidReferencef("transformation (%s) options are malformed: %v", name, err)
	}
	return name, opts, nil
}

// repository extracts the adapter-private state, enforcing exclusivity.
func repository(ref resource.Reference) (Repository, error) {
	if ref.Adapter != Adapter {
		return Repository{}, resource.InvalidReferencef("reference belongs to adapter %q, not %q", ref.Adapter, Adapter)
	}
	repo, ok := ref.Repository.(Repository)
	if !ok {
		return Repository{}, resource.InvalidReferencef("malformed transform repository (%T)", ref.Repository)
	}
	return repo, nil
}

// open resolves the wrapper's inner resource, eagerly or streaming.
func (p *Producer) open(ctx context.Context, ref resource.Reference, streaming bool) (*resource.Resource, error) {
	repo, err := repository(ref)
	if err != nil {
		return nil, err
	}

	var inner *resource.Resource
	if repo.Inner.Adapter == Adapter {
		inner, err = p.open(ctx, repo.Inner, streaming)
	} else if streaming {
		inner, err = p.resolver.Stream(ctx, repo.Inner)
	} else {
		inner, err = p.resolver.Open(ctx, repo.Inner)
	}
	if err != nil {
		return nil, err
	}

	return apply(ctx, inner, ref, repo)
}

// apply invokes the wrapper's transformer over a resolved inner
// resource. The result carries the wrapper reference stamped with a
// fresh timestamp and no checksum.
func apply(ctx context.Context, inner *resource.Resource, ref resource.Reference, repo Repository) (*resource.Resource, error) {
	transformer, ok := Lookup(repo.Name)
	if !ok {
		return nil, resource.InvalidReferencef("transformation (%s) does not exist", repo.Name)
	}
	out, err := transformer.Transform(ctx, inner, repo.Options)
	if err != nil {
		return nil, err
	}
	return out.WithReference(ref.Stamped(resource.Now())), nil
}

// Apply wraps an already-open resource with a transformation, stamping
// the wrapper reference the same way Open does.
func Apply(ctx context.Context, res *resource.Resource, name string, options map[string]any) (*resource.Resource, error) {
	ref, err := Wrap(res.Reference, name, options)
	if err != nil {
		return nil, err
	}
	repo := ref.Repository.(Repository)
	return apply(ctx, res, ref, repo)
}

// Open implements resource.Producer: resolve the inner reference, open
// it, and replay the transformation chain.
func (p *Producer) Open(ctx context.Context, ref resource.Reference) (*resource.Resource, error) {
	return p.open(ctx, ref, false)
}

// Stream implements resource.Producer analogously to Open.
func (p *Producer) Stream(ctx context.Context, ref resource.Reference) (*resource.Resource, error) {
	return p.open(ctx, ref, true)
}

// Exists delegates to the innermost non-transform reference.
func (p *Producer) Exists(ctx context.Context, ref resource.Reference) (bool, error) {
	repo, err := repository(ref)
	if err != nil {
		return false, err
	}
	if repo.Inner.Adapter == Adapter {
		return p.Exists(ctx, repo.Inner)
	}
	producer, err := p.resolver.ProducerOf(repo.Inner)
	if err != nil {
		return false, err
	}
	return producer.Exists(ctx, repo.Inner)
}

// Alike requires the outermost transformer identifier and options to
// match, then recurses into the inner references. Options compare by
// their deterministic encoding.
func (p *Producer) Alike(a, b resource.Reference) bool {
	ra, err := repository(a)
	if err != nil {
		return false
	}
	rb, err := repository(b)
	if err != nil {
		return false
	}
	if ra.Name != rb.Name || !optionsEqual(ra.Options, rb.Options) {
		return false
	}
	if ra.Inner.Adapter != rb.Inner.Adapter {
		return false
	}
	if ra.Inner.Adapter == Adapter {
		return p.Alike(ra.Inner, rb.Inner)
	}
	producer, err := p.resolver.ProducerOf(ra.Inner)
	if err != nil {
		return false
	}
	return producer.Alike(ra.Inner, rb.Inner)
}

func optionsEqual(a, b map[string]any) bool {
	if len(a) != len(b) {
		return false
	}
	if len(a) == 0 {
		return true
	}
	ea, err := codec.Marshal(a)
	if err != nil {
		return false
	}
	eb, err := codec.Marshal(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ea, eb)
}

// Source returns the immediately inner reference of the outermost
// wrapper.
func (p *Producer) Source(ref resource.Reference) (*resource.Reference, error) {
	repo, err := repository(ref)
	if err != nil {
		return nil, err
	}
	inner := repo.Inner
	return &inner, nil
}

// URI re-emits the canonical chain URI.
func (p *Producer) URI(ref resource.Reference) (string, error) {
	var segments []string
	current := ref
	for current.Adapter == Adapter {
		repo, err := repository(current)
		if err != nil {
			return "", err
		}
		segment := repo.Name
		if len(repo.Options) > 0 {
			encoded, err := codec.Marshal(repo.Options)
			if err != nil {
				return "", resource.Internalf("encode transformation (%s) options: %w", repo.Name, err)
			}
			segment += ":" + base64.StdEncoding.EncodeToString(encoded)
		}
		segments = append(segments, segment)
		current = repo.Inner
	}

	innerURI, err := p.resolver.URI(current)
	if err != nil {
		return "", err
	}
	segments = append(segments, base64.StdEncoding.EncodeToString([]byte(innerURI)))
	return Scheme + ":" + strings.Join(segments, ","), nil
}

// innermost returns the first non-transform reference of the chain.
func (p *Producer) innermost(ref resource.Reference) (resource.Reference, error) {
	current := ref
	for current.Adapter == Adapter {
		repo, err := repository(current)
		if err != nil {
			return resource.Reference{}, err
		}
		current = repo.Inner
	}
	return current, nil
}

// Attribute delegates to the innermost reference.
func (p *Producer) Attribute(ctx context.Context, ref resource.Reference, key string) (any, error) {
	inner, err := p.innermost(ref)
	if err != nil {
		return nil, err
	}
	producer, err := p.resolver.ProducerOf(inner)
	if err != nil {
		return nil, err
	}
	return producer.Attribute(ctx, inner, key)
}

// Attributes delegates to the innermost reference.
func (p *Producer) Attributes(ctx context.Context, ref resource.Reference) (map[string]any, error) {
	inner, err := p.innermost(ref)
	if err != nil {
		return nil, err
	}
	producer, err := p.resolver.ProducerOf(inner)
	if err != nil {
		return nil, err
	}
	return producer.Attributes(ctx, inner)
}

// AttributeKeys delegates to the innermost reference.
func (p *Producer) AttributeKeys(ctx context.Context, ref resource.Reference) ([]string, error) {
	inner, err := p.innermost(ref)
	if err != nil {
		return nil, err
	}
	producer, err := p.resolver.ProducerOf(inner)
	if err != nil {
		return nil, err
	}
	return producer.AttributeKeys(ctx, inner)
}
