package file

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/meigma/resx/resource"
)

// statAttributes builds the attribute map for a local path: the POSIX
// stat fields plus "name" (the basename). Times are unix seconds.
func statAttributes(path string) (map[string]any, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, posixError(path, err)
	}

	attrs := map[string]any{
		"name":  filepath.Base(path),
		"size":  info.Size(),
		"mtime": info.ModTime().Unix(),
		"mode":  uint32(info.Mode().Perm()),
		"type":  fileType(info.Mode()),
	}
	sysAttributes(info, attrs)
	return attrs, nil
}

func fileType(mode fs.FileMode) string {
	switch {
	case mode.IsRegular():
		return "regular"
	case mode.IsDir():
		return "directory"
	case mode&fs.ModeSymlink != 0:
		return "symlink"
	case mode&fs.ModeDevice != 0:
		return "device"
	default:
		return "other"
	}
}

// attributes resolves the full attribute map, falling through to the
// source reference when the file is absent but a source is configured.
func (p *Producer) attributes(ctx context.Context, cfg Config, repo Repository) (map[string]any, error) {
	var attrs map[string]any
	var err error
	if cfg.local(repo.Node) {
		attrs, err = statAttributes(repo.Path)
	} else {
		attrs, err = p.attributesRemote(ctx, cfg, repo)
	}
	if err == nil || repo.Source == nil || !errors.Is(err, resource.ErrUnknownResource) {
		return attrs, err
	}

	producer, err := p.resolver.ProducerOf(*repo.Source)
	if err != nil {
		return nil, err
	}
	return producer.Attributes(ctx, *repo.Source)
}

// Attributes implements resource.Producer.
func (p *Producer) Attributes(ctx context.Context, ref resource.Reference) (map[string]any, error) {
	cfg := p.config()
	repo, err := p.guard(ctx, cfg, ref)
	if err != nil {
		return nil, err
	}
	return p.attributes(ctx, cfg, repo)
}

// Attribute implements resource.Producer.
func (p *Producer) Attribute(ctx context.Context, ref resource.Reference, key string) (any, error) {
	attrs, err := p.Attributes(ctx, ref)
	if err != nil {
		return nil, err
	}
	value, ok := attrs[key]
	if !ok {
		return nil, resource.UnknownKeyf("%s", key)
	}
	return value, nil
}

// AttributeKeys implements resource.Producer.
func (p *Producer) AttributeKeys(ctx context.Context, ref resource.Reference) ([]string, error) {
	attrs, err := p.Attributes(ctx, ref)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(attrs))
	for key := range attrs {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys, nil
}
