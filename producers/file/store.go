package file

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/meigma/resx/mimetype"
	"github.com/meigma/resx/resource"
)

// Expand resolves a store path on the calling node: "~" expands to the
// user's home directory and relative paths become absolute.
func Expand(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", resource.Internalf("expand %q: %v", path, err)
		}
		path = filepath.Join(home, path[1:])
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", resource.Internalf("expand %q: %v", path, err)
	}
	return abs, nil
}

// SourceCompatibility implements resource.Storer: the caller recovers a
// missing cache file by streaming its source and re-storing it here.
func (p *Producer) SourceCompatibility() resource.SourceCompatibility {
	return resource.CompatibleDefault
}

// PrepareStore implements resource.StorePreparer, deriving store
// options from an existing reference for the recovery path.
func (p *Producer) PrepareStore(ref resource.Reference) (resource.StoreOptions, error) {
	repo, err := repository(ref)
	if err != nil {
		return resource.StoreOptions{}, err
	}
	return resource.StoreOptions{Path: repo.Path, Node: repo.Node}, nil
}

// Store implements resource.Storer.
//
// The returned resource's content stream is deferred: writing happens
// as the caller drives the stream, with the sidecar written strictly
// before the first content chunk is passed on. Set opts.Bytes to write
// eagerly instead. The stored reference carries the stored resource's
// own reference as its source, so the file acts as a cache for it.
func (p *Producer) Store(ctx context.Context, res *resource.Resource, opts resource.StoreOptions) (*resource.Resource, error) {
	if opts.Path == "" {
		return nil, resource.InvalidReferencef("store requires a path")
	}
	path, err := Expand(opts.Path)
	if err != nil {
		return nil, err
	}

	cfg := p.config()
	node := opts.Node
	if node == "localhost" {
		node = ""
	}
	owner := node
	if cfg.local(node) {
		owner = cfg.Node
	}
	if !allowed(ctx, cfg.Access, owner, path) {
		return nil, resource.InvalidReferencef("protected file")
	}

	repo := Repository{Node: node, Path: path}
	if res.Reference.Adapter != "" {
		src := res.Reference
		repo.Source = &src
	}

	mode := fs.FileMode(opts.Modes)
	if mode == 0 {
		mode = defaultFileMode
	}

	if !cfg.local(node) {
		return p.storeRemote(ctx, cfg, repo, res, uint32(mode))
	}
	if opts.Bytes {
		return p.storeEager(ctx, cfg, repo, res, mode)
	}

	stream := &storeStream{
		source: res.Content.Stream(),
		path:   path,
		meta:   res.Meta.Clone(),
		mode:   mode,
	}
	return &resource.Resource{
		Reference: resource.Reference{
			Adapter:    Adapter,
			Repository: repo,
			Integrity:  resource.Now(),
		},
		Content: resource.NewStreamContent(mimetype.FromPath(path), stream),
		Meta:    res.Meta.Clone(),
	}, nil
}

// storeEager writes sidecar and content immediately.
func (p *Producer) storeEager(ctx context.Context, cfg Config, repo Repository, res *resource.Resource, mode fs.FileMode) (*resource.Resource, error) {
	content, err := res.Content.Materialise(ctx, nil)
	if err != nil {
		return nil, err
	}
	if err := writeSidecar(repo.Path, res.Meta, mode); err != nil {
		return nil, err
	}
	if err := os.WriteFile(repo.Path, content.Bytes(), mode); err != nil {
		return nil, posixError(repo.Path, err)
	}
	info, err := os.Stat(repo.Path)
	if err != nil {
		return nil, posixError(repo.Path, err)
	}

	cfg.log().Debug("stored file", "path", repo.Path, "bytes", len(content.Bytes()))
	return &resource.Resource{
		Reference: resource.Reference{
			Adapter:    Adapter,
			Repository: repo,
			Integrity:  resource.Integrity{Timestamp: info.ModTime()},
		},
		Content: resource.NewContent(mimetype.FromPath(repo.Path), content.Bytes()),
		Meta:    res.Meta.Clone(),
	}, nil
}

// discardLocal removes the content and/or sidecar files. A missing
// content file is UnknownResource; a missing sidecar is ignored (files
// that were not written through Store have none).
func discardLocal(path string, content, meta bool) error {
	if content {
		if err := os.Remove(path); err != nil {
			return posixError(path, err)
		}
	}
	if meta {
		if err := os.Remove(path + MetaSuffix); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return posixError(path+MetaSuffix, err)
		}
	}
	return nil
}

// Discard implements resource.Storer. With neither flag set, both the
// content and the sidecar are removed.
func (p *Producer) Discard(ctx context.Context, ref resource.Reference, opts resource.DiscardOptions) error {
	cfg := p.config()
	repo, err := p.guard(ctx, cfg, ref)
	if err != nil {
		return err
	}

	content, meta := opts.Content, opts.Meta
	if !content && !meta {
		content, meta = true, true
	}

	if !cfg.local(repo.Node) {
		return p.discardRemote(ctx, cfg, repo, content, meta)
	}
	if err := discardLocal(repo.Path, content, meta); err != nil {
		return err
	}
	cfg.log().Debug("discarded file", "path", repo.Path, "content", content, "meta", meta)
	return nil
}
