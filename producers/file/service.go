package file

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"github.com/meigma/resx/resource"
	"github.com/meigma/resx/rpc"
)

// ServiceName is the RPC service the producer registers its remote
// surface under.
const ServiceName = "file"

// Wire types for the file service. Paths travel bare: the serving node
// applies its own access matrix, and source references never cross the
// hop (recovery runs on the calling side, where the source resolves).

type openArgs struct {
	Path        string `cbor:"path"`
	RequireMeta bool   `cbor:"require_meta"`
}

type openReply struct {
	Data    []byte        `cbor:"data"`
	Meta    resource.Meta `cbor:"meta,omitempty"`
	ModTime int64         `cbor:"mod_time"`
}

type statArgs struct {
	Path        string `cbor:"path"`
	RequireMeta bool   `cbor:"require_meta"`
}

type statReply struct {
	Meta    resource.Meta `cbor:"meta,omitempty"`
	ModTime int64         `cbor:"mod_time"`
}

type enumerateArgs struct {
	Path      string `cbor:"path"`
	ChunkSize int    `cbor:"chunk_size"`
}

type enumerateReply struct {
	Chunks [][]byte `cbor:"chunks"`
}

type existsArgs struct {
	Path string `cbor:"path"`
}

type existsReply struct {
	Exists bool `cbor:"exists"`
}

type attributesArgs struct {
	Path string `cbor:"path"`
}

type attributesReply struct {
	Attributes map[string]any `cbor:"attributes"`
}

type storeArgs struct {
	Path string        `cbor:"path"`
	Data []byte        `cbor:"data"`
	Meta resource.Meta `cbor:"meta,omitempty"`
	Mode uint32        `cbor:"mode"`
}

type storeReply struct {
	ModTime int64 `cbor:"mod_time"`
}

type discardArgs struct {
	Path    string `cbor:"path"`
	Content bool   `cbor:"content"`
	Meta    bool   `cbor:"meta"`
}

type discardReply struct{}

// Service returns the method table serving this node's share of remote
// file operations. Register it on an rpc.Server under ServiceName.
//
// Every handler re-reads the configuration and applies this node's
// access matrix, so a calling node that passed its own matrix still
// cannot reach paths the serving node protects.
func (p *Producer) Service() map[string]rpc.Handler {
	return map[string]rpc.Handler{
		"open": func(ctx context.Context, decode func(any) error) (any, error) {
			var args openArgs
			if err := decode(&args); err != nil {
				return nil, err
			}
			if err := p.serviceGuard(ctx, args.Path); err != nil {
				return nil, err
			}
			data, meta, modTime, err := readLocal(args.Path, args.RequireMeta)
			if err != nil {
				return nil, err
			}
			return openReply{Data: data, Meta: meta, ModTime: modTime.UnixNano()}, nil
		},

		"stat": func(ctx context.Context, decode func(any) error) (any, error) {
			var args statArgs
			if err := decode(&args); err != nil {
				return nil, err
			}
			if err := p.serviceGuard(ctx, args.Path); err != nil {
				return nil, err
			}
			info, err := os.Stat(args.Path)
			if err != nil {
				return nil, posixError(args.Path, err)
			}
			meta, err := readSidecar(args.Path, args.RequireMeta)
			if err != nil {
				return nil, err
			}
			return statReply{Meta: meta, ModTime: info.ModTime().UnixNano()}, nil
		},

		"enumerate": func(ctx context.Context, decode func(any) error) (any, error) {
			var args enumerateArgs
			if err := decode(&args); err != nil {
				return nil, err
			}
			if err := p.serviceGuard(ctx, args.Path); err != nil {
				return nil, err
			}
			size := args.ChunkSize
			if size <= 0 {
				size = defaultChunkSize
			}
			stream := &localStream{path: args.Path, chunkSize: size}
			var reply enumerateReply
			_, err := stream.Reduce(ctx, nil, func(acc, chunk any) (any, error) {
				reply.Chunks = append(reply.Chunks, chunk.([]byte))
				return acc, nil
			})
			if err != nil {
				return nil, err
			}
			return reply, nil
		},

		"exists": func(ctx context.Context, decode func(any) error) (any, error) {
			var args existsArgs
			if err := decode(&args); err != nil {
				return nil, err
			}
			if err := p.serviceGuard(ctx, args.Path); err != nil {
				return nil, err
			}
			if _, err := os.Stat(args.Path); err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return existsReply{Exists: false}, nil
				}
				return nil, posixError(args.Path, err)
			}
			return existsReply{Exists: true}, nil
		},

		"attributes": func(ctx context.Context, decode func(any) error) (any, error) {
			var args attributesArgs
			if err := decode(&args); err != nil {
				return nil, err
			}
			if err := p.serviceGuard(ctx, args.Path); err != nil {
				return nil, err
			}
			attrs, err := statAttributes(args.Path)
			if err != nil {
				return nil, err
			}
			return attributesReply{Attributes: attrs}, nil
		},

		"store": func(ctx context.Context, decode func(any) error) (any, error) {
			var args storeArgs
			if err := decode(&args); err != nil {
				return nil, err
			}
			if err := p.serviceGuard(ctx, args.Path); err != nil {
				return nil, err
			}
			mode := fs.FileMode(args.Mode)
			if mode == 0 {
				mode = defaultFileMode
			}
			if err := writeSidecar(args.Path, args.Meta, mode); err != nil {
				return nil, err
			}
			if err := os.WriteFile(args.Path, args.Data, mode); err != nil {
				return nil, posixError(args.Path, err)
			}
			info, err := os.Stat(args.Path)
			if err != nil {
				return nil, posixError(args.Path, err)
			}
			return storeReply{ModTime: info.ModTime().UnixNano()}, nil
		},

		"discard": func(ctx context.Context, decode func(any) error) (any, error) {
			var args discardArgs
			if err := decode(&args); err != nil {
				return nil, err
			}
			if err := p.serviceGuard(ctx, args.Path); err != nil {
				return nil, err
			}
			if err := discardLocal(args.Path, args.Content, args.Meta); err != nil {
				return nil, err
			}
			return discardReply{}, nil
		},
	}
}

// serviceGuard applies the serving node's access matrix to an incoming
// path.
func (p *Producer) serviceGuard(ctx context.Context, path string) error {
	cfg := p.config()
	if !allowed(ctx, cfg.Access, cfg.Node, path) {
		return resource.InvalidReferencef("protected file")
	}
	return nil
}
