// Package file implements the file: producer and store. References are
// node-qualified paths; a reference may carry a source reference it
// acts as a cache for, restored through the caller on a miss. Remote
// nodes are reached through the configured RPC caller, with the access
// matrix evaluated on both sides of every hop.
package file

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/meigma/resx/codec"
	"github.com/meigma/resx/mimetype"
	"github.com/meigma/resx/resource"
	"github.com/meigma/resx/rpc"
)

// Scheme is the URI scheme owned by the producer.
const Scheme = "file"

// Adapter is the adapter identifier stored in references.
const Adapter = "file"

// MetaSuffix is appended to the content path for the meta sidecar.
const MetaSuffix = ".meta"

const (
	defaultChunkSize = 64 * 1024
	defaultFileMode  = fs.FileMode(0o644)
)

// Config is the file producer's operating configuration. It is read on
// every operation, so reconfiguration is observed immediately.
type Config struct {
	// Node is the local node identifier (user@host form). Operations on
	// other nodes go through Caller.
	Node string

	// Access is the access matrix. Empty protects every path.
	Access []AccessEntry

	// Caller moves operations to remote nodes. Nil restricts the
	// producer to local references.
	Caller rpc.Caller

	// ChunkSize bounds streaming reads. Zero means 64 KiB.
	ChunkSize int

	// Logger receives operational events. Nil discards them.
	Logger *slog.Logger
}

// ConfigFunc supplies the current configuration. The producer calls it
// once per operation.
type ConfigFunc func() Config

// Repository is the adapter-private state of a file reference.
type Repository struct {
	// Node owns the path. Empty means the local node.
	Node string

	// Path is the absolute path of the content file.
	Path string

	// Source, when non-nil, is the reference this file caches.
	Source *resource.Reference
}

// Producer interprets file: references and stores resources to paths.
type Producer struct {
	resolver resource.Resolver
	config   ConfigFunc
}

// New creates the file producer. The resolver resolves source
// references during attribute fall-through and URI emission.
func New(resolver resource.Resolver, config ConfigFunc) *Producer {
	return &Producer{resolver: resolver, config: config}
}

// Schemes implements resource.Producer.
func (p *Producer) Schemes() []string { return []string{Scheme} }

// log returns the configured logger, falling back to a discard logger.
func (cfg Config) log() *slog.Logger {
	if cfg.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return cfg.Logger
}

func (cfg Config) chunkSize() int {
	if cfg.ChunkSize <= 0 {
		return defaultChunkSize
	}
	return cfg.ChunkSize
}

// local reports whether the node names the local node.
func (cfg Config) local(node string) bool {
	return node == "" || node == "localhost" || node == cfg.Node
}

// ParseURI parses file://[user@host][/abs/path][?source=B64(uri)].
func (p *Producer) ParseURI(uri string) (resource.Reference, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return resource.Reference{}, resource.InvalidReferencef("malformed file URI: %v", err)
	}
	if u.Scheme != Scheme {
		return resource.Reference{}, resource.InvalidReferencef("not a file URI: %q", uri)
	}

	node := u.Host
	if u.User != nil {
		node = u.User.Username() + "@" + u.Host
	}
	if node == "localhost" {
		node = ""
	}

	path := u.Path
	if path == "" || !strings.HasPrefix(path, "/") {
		return resource.Reference{}, resource.InvalidReferencef("file URI path must be absolute")
	}

	repo := Repository{Node: node, Path: path}
	if encoded := u.Query().Get("source"); encoded != "" {
		decoded, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return resource.Reference{}, resource.InvalidReferencef("data is not base64")
		}
		src, err := p.resolver.ParseURI(string(decoded))
		if err != nil {
			return resource.Reference{}, err
		}
		repo.Source = &src
	}

	return resource.Reference{
		Adapter:    Adapter,
		Repository: repo,
		Integrity:  resource.Now(),
	}, nil
}

// repository extracts the adapter-private state, enforcing exclusivity.
func repository(ref resource.Reference) (Repository, error) {
	if ref.Adapter != Adapter {
		return Repository{}, resource.InvalidReferencef("reference belongs to adapter %q, not %q", ref.Adapter, Adapter)
	}
	repo, ok := ref.Repository.(Repository)
	if !ok {
		return Repository{}, resource.InvalidReferencef("malformed file repository (%T)", ref.Repository)
	}
	return repo, nil
}

// guard extracts the repository and applies the calling node's access
// matrix.
func (p *Producer) guard(ctx context.Context, cfg Config, ref resource.Reference) (Repository, error) {
	repo, err := repository(ref)
	if err != nil {
		return Repository{}, err
	}
	node := repo.Node
	if cfg.local(node) {
		node = cfg.Node
	}
	if !allowed(ctx, cfg.Access, node, repo.Path) {
		return Repository{}, resource.InvalidReferencef("protected file")
	}
	return repo, nil
}

// posixError normalises filesystem errors into the envelope.
func posixError(path string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return resource.UnknownResourcef("%s", path)
	}
	return resource.Internalf("%s: %v", path, err)
}

// readSidecar decodes the meta sidecar next to path. A missing sidecar
// is only an error when required (the reference carries a source and
// the content must be treated as cache-missing without it).
func readSidecar(path string, required bool) (resource.Meta, error) {
	raw, err := os.ReadFile(path + MetaSuffix)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !required {
			return nil, nil
		}
		return nil, posixError(path+MetaSuffix, err)
	}
	var meta resource.Meta
	if err := codec.Unmarshal(raw, &meta); err != nil {
		return nil, resource.Internalf("decode meta sidecar %s: %v", path+MetaSuffix, err)
	}
	return meta, nil
}

// writeSidecar encodes meta next to path. Written before the first
// content chunk lands, so a content file without a sidecar marks an
// unfinished write.
func writeSidecar(path string, meta resource.Meta, mode fs.FileMode) error {
	encoded, err := codec.Marshal(meta)
	if err != nil {
		return resource.Internalf("encode meta sidecar: %v", err)
	}
	if err := os.WriteFile(path+MetaSuffix, encoded, mode); err != nil {
		return posixError(path+MetaSuffix, err)
	}
	return nil
}

// readLocal reads the content file, its sidecar, and the mtime.
func readLocal(path string, requireMeta bool) ([]byte, resource.Meta, time.Time, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, time.Time{}, posixError(path, err)
	}
	meta, err := readSidecar(path, requireMeta)
	if err != nil {
		return nil, nil, time.Time{}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, nil, time.Time{}, posixError(path, err)
	}
	return data, meta, info.ModTime(), nil
}

// openLocal reads the content file and sidecar into an eager resource.
func (p *Producer) openLocal(cfg Config, repo Repository, ref resource.Reference) (*resource.Resource, error) {
	data, meta, modTime, err := readLocal(repo.Path, repo.Source != nil)
	if err != nil {
		return nil, err
	}

	cfg.log().Debug("opened file", "path", repo.Path, "bytes", len(data))
	return &resource.Resource{
		Reference: ref.Stamped(resource.Integrity{Timestamp: modTime}),
		Content:   resource.NewContent(mimetype.FromPath(repo.Path), data),
		Meta:      meta,
	}, nil
}

// Open implements resource.Producer. A missing file surfaces as
// UnknownResource; when the reference carries a source, the caller
// recovers by streaming the source and re-storing it here.
func (p *Producer) Open(ctx context.Context, ref resource.Reference) (*resource.Resource, error) {
	cfg := p.config()
	repo, err := p.guard(ctx, cfg, ref)
	if err != nil {
		return nil, err
	}
	if !cfg.local(repo.Node) {
		return p.openRemote(ctx, cfg, repo, ref)
	}
	return p.openLocal(cfg, repo, ref)
}

// Exists implements resource.Producer. A missing file with a live
// source still exists: opening it restores the content.
func (p *Producer) Exists(ctx context.Context, ref resource.Reference) (bool, error) {
	cfg := p.config()
	repo, err := p.guard(ctx, cfg, ref)
	if err != nil {
		return false, err
	}
	if !cfg.local(repo.Node) {
		return p.existsRemote(ctx, cfg, repo)
	}
	return p.existsLocal(ctx, repo)
}

func (p *Producer) existsLocal(ctx context.Context, repo Repository) (bool, error) {
	if _, err := os.Stat(repo.Path); err == nil {
		return true, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, posixError(repo.Path, err)
	}
	if repo.Source == nil {
		return false, nil
	}
	producer, err := p.resolver.ProducerOf(*repo.Source)
	if err != nil {
		return false, err
	}
	return producer.Exists(ctx, *repo.Source)
}

// Alike reports whether two references identify the same file: same
// node and path, and agreeing sources when both carry one.
func (p *Producer) Alike(a, b resource.Reference) bool {
	ra, err := repository(a)
	if err != nil {
		return false
	}
	rb, err := repository(b)
	if err != nil {
		return false
	}
	cfg := p.config()
	sameNode := ra.Node == rb.Node || (cfg.local(ra.Node) && cfg.local(rb.Node))
	if !sameNode || ra.Path != rb.Path {
		return false
	}
	if ra.Source == nil || rb.Source == nil {
		return true
	}
	producer, err := p.resolver.ProducerOf(*ra.Source)
	if err != nil {
		return false
	}
	return producer.Alike(*ra.Source, *rb.Source)
}

// Source implements resource.Producer.
func (p *Producer) Source(ref resource.Reference) (*resource.Reference, error) {
	repo, err := repository(ref)
	if err != nil {
		return nil, err
	}
	if repo.Source == nil {
		return nil, nil
	}
	src := *repo.Source
	return &src, nil
}

// URI re-emits the canonical file URI.
func (p *Producer) URI(ref resource.Reference) (string, error) {
	repo, err := repository(ref)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString(Scheme + "://")
	b.WriteString(repo.Node)
	b.WriteString(repo.Path)
	if repo.Source != nil {
		sourceURI, err := p.resolver.URI(*repo.Source)
		if err != nil {
			return "", err
		}
		b.WriteString("?source=")
		b.WriteString(url.QueryEscape(base64.StdEncoding.EncodeToString([]byte(sourceURI))))
	}
	return b.String(), nil
}
