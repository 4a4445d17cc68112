package file

import (
	"context"
	"time"

	"github.com/meigma/resx/mimetype"
	"github.com/meigma/resx/resource"
	"github.com/meigma/resx/rpc"
)

// caller returns the configured RPC caller or an error when the
// producer is restricted to local references.
func (cfg Config) caller(node string) (rpc.Caller, error) {
	if cfg.Caller == nil {
		return nil, resource.Internalf("no rpc caller configured for node %q", node)
	}
	return cfg.Caller, nil
}

// openRemote fetches the content and sidecar from the owning node. A
// missing file comes back as UnknownResource with its kind intact, so
// source recovery still triggers on the calling side.
func (p *Producer) openRemote(ctx context.Context, cfg Config, repo Repository, ref resource.Reference) (*resource.Resource, error) {
	caller, err := cfg.caller(repo.Node)
	if err != nil {
		return nil, err
	}

	var reply openReply
	args := openArgs{Path: repo.Path, RequireMeta: repo.Source != nil}
	if err := caller.Call(ctx, repo.Node, ServiceName, "open", args, &reply); err != nil {
		return nil, err
	}

	cfg.log().Debug("opened remote file", "node", repo.Node, "path", repo.Path, "bytes", len(reply.Data))
	return &resource.Resource{
		Reference: ref.Stamped(resource.Integrity{Timestamp: time.Unix(0, reply.ModTime)}),
		Content:   resource.NewContent(mimetype.FromPath(repo.Path), reply.Data),
		Meta:      reply.Meta,
	}, nil
}

// remoteStream enumerates a remote file through the RPC caller. Each
// reduction makes a fresh enumeration call; the stream carries only
// (node, path), never a remote handle.
type remoteStream struct {
	caller    rpc.Caller
	node      string
	path      string
	chunkSize int
}

func (s *remoteStream) Reduce(ctx context.Context, acc any, step func(acc any, chunk any) (any, error)) (any, error) {
	var reply enumerateReply
	args := enumerateArgs{Path: s.path, ChunkSize: s.chunkSize}
	if err := s.caller.Call(ctx, s.node, ServiceName, "enumerate", args, &reply); err != nil {
		return acc, err
	}
	for _, chunk := range reply.Chunks {
		var err error
		if acc, err = step(acc, chunk); err != nil {
			return acc, err
		}
	}
	return acc, nil
}

// streamRemote builds a lazily enumerating resource for a remote path.
func (p *Producer) streamRemote(ctx context.Context, cfg Config, repo Repository, ref resource.Reference) (*resource.Resource, error) {
	caller, err := cfg.caller(repo.Node)
	if err != nil {
		return nil, err
	}

	var reply statReply
	args := statArgs{Path: repo.Path, RequireMeta: repo.Source != nil}
	if err := caller.Call(ctx, repo.Node, ServiceName, "stat", args, &reply); err != nil {
		return nil, err
	}

	stream := &remoteStream{caller: caller, node: repo.Node, path: repo.Path, chunkSize: cfg.chunkSize()}
	return &resource.Resource{
		Reference: ref.Stamped(resource.Integrity{Timestamp: time.Unix(0, reply.ModTime)}),
		Content:   resource.NewStreamContent(mimetype.FromPath(repo.Path), stream),
		Meta:      reply.Meta,
	}, nil
}

// existsRemote asks the owning node for the file, falling back to the
// source reference (resolved locally) when the file is absent.
func (p *Producer) existsRemote(ctx context.Context, cfg Config, repo Repository) (bool, error) {
	caller, err := cfg.caller(repo.Node)
	if err != nil {
		return false, err
	}

	var reply existsReply
	if err := caller.Call(ctx, repo.Node, ServiceName, "exists", existsArgs{Path: repo.Path}, &reply); err != nil {
		return false, err
	}
	if reply.Exists || repo.Source == nil {
		return reply.Exists, nil
	}

	producer, err := p.resolver.ProducerOf(*repo.Source)
	if err != nil {
		return false, err
	}
	return producer.Exists(ctx, *repo.Source)
}

// storeRemote materialises the content and ships it to the owning node
// in one call. Remote stores are eager: deferred writes make no sense
// once the bytes have crossed the hop.
func (p *Producer) storeRemote(ctx context.Context, cfg Config, repo Repository, res *resource.Resource, mode uint32) (*resource.Resource, error) {
	caller, err := cfg.caller(repo.Node)
	if err != nil {
		return nil, err
	}

	content, err := res.Content.Materialise(ctx, nil)
	if err != nil {
		return nil, err
	}

	var reply storeReply
	args := storeArgs{Path: repo.Path, Data: content.Bytes(), Meta: res.Meta, Mode: mode}
	if err := caller.Call(ctx, repo.Node, ServiceName, "store", args, &reply); err != nil {
		return nil, err
	}

	cfg.log().Debug("stored remote file", "node", repo.Node, "path", repo.Path, "bytes", len(content.Bytes()))
	return &resource.Resource{
		Reference: resource.Reference{
			Adapter:    Adapter,
			Repository: repo,
			Integrity:  resource.Integrity{Timestamp: time.Unix(0, reply.ModTime)},
		},
		Content: resource.NewContent(mimetype.FromPath(repo.Path), content.Bytes()),
		Meta:    res.Meta.Clone(),
	}, nil
}

// discardRemote removes the remote content and sidecar files.
func (p *Producer) discardRemote(ctx context.Context, cfg Config, repo Repository, content, meta bool) error {
	caller, err := cfg.caller(repo.Node)
	if err != nil {
		return err
	}
	var reply discardReply
	args := discardArgs{Path: repo.Path, Content: content, Meta: meta}
	return caller.Call(ctx, repo.Node, ServiceName, "discard", args, &reply)
}

// attributesRemote stats the remote path.
func (p *Producer) attributesRemote(ctx context.Context, cfg Config, repo Repository) (map[string]any, error) {
	caller, err := cfg.caller(repo.Node)
	if err != nil {
		return nil, err
	}
	var reply attributesReply
	if err := caller.Call(ctx, repo.Node, ServiceName, "attributes", attributesArgs{Path: repo.Path}, &reply); err != nil {
		return nil, err
	}
	return reply.Attributes, nil
}
