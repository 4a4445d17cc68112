package resource

import (
	"context"
	"maps"
)

// Meta is the side-channel key/value list persisted alongside stored
// resources. Meta is never hashed.
type Meta map[string]any

// Clone returns an independent copy of the meta mapping.
func (m Meta) Clone() Meta {
	if m == nil {
		return nil
	}
	return maps.Clone(m)
}

// Resource pairs a Reference with its realised (or streaming) Content.
//
// Resources are immutable by contract: mutation means constructing a new
// value. A Resource exclusively owns its Content and Reference values.
type Resource struct {
	Reference Reference
	Content   Content
	Meta      Meta
}

// WithContent returns a copy of the resource carrying new content.
func (r *Resource) WithContent(c Content) *Resource {
	return &Resource{Reference: r.Reference, Content: c, Meta: r.Meta.Clone()}
}

// WithReference returns a copy of the resource carrying a new reference.
func (r *Resource) WithReference(ref Reference) *Resource {
	return &Resource{Reference: ref, Content: r.Content, Meta: r.Meta.Clone()}
}

// Producer interprets references of one or more URI schemes.
type Producer interface {
	// Schemes returns the nonempty set of URI schemes the producer owns.
	Schemes() []string

	// ParseURI converts a URI of one of the producer's schemes into a
	// Reference.
	ParseURI(uri string) (Reference, error)

	// Open returns a Resource with eager content.
	Open(ctx context.Context, ref Reference) (*Resource, error)

	// Stream returns a Resource with streaming content.
	Stream(ctx context.Context, ref Reference) (*Resource, error)

	// Exists reports whether the referenced resource exists.
	Exists(ctx context.Context, ref Reference) (bool, error)

	// Alike reports whether two references identify the same resource.
	// There is no error channel: unusable references are simply not alike.
	Alike(a, b Reference) bool

	// Source returns the immediately-underlying reference, or nil when
	// the reference is a leaf.
	Source(ref Reference) (*Reference, error)

	// URI re-emits the canonical URI for the reference.
	URI(ref Reference) (string, error)

	// Attribute returns one attribute value, or ErrUnknownKey.
	Attribute(ctx context.Context, ref Reference, key string) (any, error)

	// Attributes returns every attribute of the referenced resource.
	Attributes(ctx context.Context, ref Reference) (map[string]any, error)

	// AttributeKeys returns the available attribute keys.
	AttributeKeys(ctx context.Context, ref Reference) ([]string, error)
}

// SourceCompatibility declares how a storer participates in cache-miss
// recovery.
type SourceCompatibility int

const (
	// CompatibleDefault lets the caller recover a missing resource by
	// streaming its source and re-storing it.
	CompatibleDefault SourceCompatibility = iota

	// CompatibleInternal means the storer performs recovery itself.
	CompatibleInternal

	// Incompatible disables recovery; UnknownResource surfaces as-is.
	Incompatible
)

// StoreOptions configure Storer.Store.
type StoreOptions struct {
	// Path is the destination path, absolute or expandable by the
	// calling node. Required by the file store.
	Path string

	// Node places the stored resource on a specific node. Empty means
	// the local node.
	Node string

	// Modes sets the file mode bits for created files, when nonzero.
	Modes uint32

	// Bytes forces eager (non-deferred) writing when true.
	Bytes bool
}

// DiscardOptions configure Storer.Discard.
type DiscardOptions struct {
	// Content removes the stored payload. Both flags default to true
	// when neither is set.
	Content bool

	// Meta removes the meta sidecar.
	Meta bool
}

// Storer materialises resources to a destination with optional reversal.
type Storer interface {
	// Store persists the resource and returns the stored form, whose
	// reference identifies the destination.
	Store(ctx context.Context, res *Resource, opts StoreOptions) (*Resource, error)

	// Discard removes a stored resource.
	Discard(ctx context.Context, ref Reference, opts DiscardOptions) error

	// SourceCompatibility declares the recovery contract.
	SourceCompatibility() SourceCompatibility
}

// StorePreparer is implemented by storers whose store options can be
// derived from an existing reference, enabling caller-driven recovery.
type StorePreparer interface {
	PrepareStore(ref Reference) (StoreOptions, error)
}

// Transformer is a named, parametric content transformation. The
// returned resource may replace content but must not rewrite the
// reference; the transform producer wraps references on its behalf.
type Transformer interface {
	Transform(ctx context.Context, res *Resource, options map[string]any) (*Resource, error)
}

// TransformerFunc adapts a function to the Transformer interface.
type TransformerFunc func(ctx context.Context, res *Resource, options map[string]any) (*Resource, error)

func (f TransformerFunc) Transform(ctx context.Context, res *Resource, options map[string]any) (*Resource, error) {
	return f(ctx, res, options)
}

// Resolver dispatches references and URIs to their producers. The root
// resx package implements it; producers that resolve inner references
// (transform chains, file sources) receive one at construction.
type Resolver interface {
	ProducerOf(ref Reference) (Producer, error)
	ParseURI(uri string) (Reference, error)
	Open(ctx context.Context, ref Reference) (*Resource, error)
	Stream(ctx context.Context, ref Reference) (*Resource, error)
	URI(ref Reference) (string, error)
}
