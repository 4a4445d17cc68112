// Package testutil holds shared test fixtures: a minimal resolver over
// an explicit producer set, without the root package's configuration or
// recovery machinery.
package testutil

import (
	"context"
	"strings"

	"github.com/meigma/resx/resource"
)

// Resolver dispatches to a fixed producer set. Producers are keyed by
// scheme; adapter identifiers are assumed to coincide with schemes, as
// they do for every built-in producer.
type Resolver struct {
	Producers map[string]resource.Producer
}

// NewResolver builds a resolver keyed by each producer's schemes.
func NewResolver(producers ...resource.Producer) *Resolver {
	r := &Resolver{Producers: make(map[string]resource.Producer)}
	for _, p := range producers {
		for _, scheme := range p.Schemes() {
			r.Producers[scheme] = p
		}
	}
	return r
}

// Register binds a producer under an explicit scheme.
func (r *Resolver) Register(scheme string, p resource.Producer) {
	r.Producers[scheme] = p
}

func (r *Resolver) ProducerOf(ref resource.Reference) (resource.Producer, error) {
	p, ok := r.Producers[ref.Adapter]
	if !ok {
		return nil, resource.InvalidReferencef("no producer for URI")
	}
	return p, nil
}

func (r *Resolver) ParseURI(uri string) (resource.Reference, error) {
	scheme, _, ok := strings.Cut(uri, ":")
	if !ok {
		return resource.Reference{}, resource.InvalidReferencef("no producer for URI")
	}
	p, ok := r.Producers[scheme]
	if !ok {
		return resource.Reference{}, resource.InvalidReferencef("no producer for URI")
	}
	return p.ParseURI(uri)
}

func (r *Resolver) Open(ctx context.Context, ref resource.Reference) (*resource.Resource, error) {
	p, err := r.ProducerOf(ref)
	if err != nil {
		return nil, err
	}
	return p.Open(ctx, ref)
}

func (r *Resolver) Stream(ctx context.Context, ref resource.Reference) (*resource.Resource, error) {
	p, err := r.ProducerOf(ref)
	if err != nil {
		return nil, err
	}
	return p.Stream(ctx, ref)
}

func (r *Resolver) URI(ref resource.Reference) (string, error) {
	p, err := r.ProducerOf(ref)
	if err != nil {
		return "", err
	}
	return p.URI(ref)
}
