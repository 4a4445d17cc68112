package file

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"

	"github.com/meigma/resx/mimetype"
	"github.com/meigma/resx/resource"
)

// localStream enumerates a local file in chunks. It holds no handle:
// each reduction re-opens the path, so a vanished file surfaces as
// UnknownResource instead of a silent empty sequence.
type localStream struct {
	path      string
	chunkSize int
}

func (s *localStream) Reduce(ctx context.Context, acc any, step func(acc any, chunk any) (any, error)) (any, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return acc, posixError(s.path, err)
	}
	defer f.Close()

	buf := make([]byte, s.chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return acc, resource.Internalf("stream cancelled: %w", err)
		}
		n, err := f.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			next, stepErr := step(acc, chunk)
			if stepErr != nil {
				return next, stepErr
			}
			acc = next
		}
		if errors.Is(err, io.EOF) {
			return acc, nil
		}
		if err != nil {
			return acc, posixError(s.path, err)
		}
	}
}

// Stream implements resource.Producer. The returned content enumerates
// the file lazily; the resource carries (node, path), not a handle.
func (p *Producer) Stream(ctx context.Context, ref resource.Reference) (*resource.Resource, error) {
	cfg := p.config()
	repo, err := p.guard(ctx, cfg, ref)
	if err != nil {
		return nil, err
	}
	if !cfg.local(repo.Node) {
		return p.streamRemote(ctx, cfg, repo, ref)
	}

	info, err := os.Stat(repo.Path)
	if err != nil {
		return nil, posixError(repo.Path, err)
	}
	meta, err := readSidecar(repo.Path, repo.Source != nil)
	if err != nil {
		return nil, err
	}

	stream := &localStream{path: repo.Path, chunkSize: cfg.chunkSize()}
	return &resource.Resource{
		Reference: ref.Stamped(resource.Integrity{Timestamp: info.ModTime()}),
		Content:   resource.NewStreamContent(mimetype.FromPath(repo.Path), stream),
		Meta:      meta,
	}, nil
}

// storeStream defers a store's writes until the caller drives the
// stream. The sidecar is written strictly before the first content
// chunk is emitted downstream; a content file observed without its
// sidecar marks an unfinished write. The write is non-atomic:
// concurrent reducers of the same destination are not serialised.
type storeStream struct {
	source resource.Stream
	path   string
	meta   resource.Meta
	mode   fs.FileMode
}

func (s *storeStream) Reduce(ctx context.Context, acc any, step func(acc any, chunk any) (any, error)) (any, error) {
	var sink *os.File
	start := func() error {
		if sink != nil {
			return nil
		}
		if err := writeSidecar(s.path, s.meta, s.mode); err != nil {
			return err
		}
		f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, s.mode)
		if err != nil {
			return posixError(s.path, err)
		}
		sink = f
		return nil
	}

	out, err := s.source.Reduce(ctx, acc, func(acc, chunk any) (any, error) {
		b, ok := chunk.([]byte)
		if !ok {
			return acc, resource.Internalf("store chunk is not binary (%T)", chunk)
		}
		if err := start(); err != nil {
			return acc, err
		}
		if _, err := sink.Write(b); err != nil {
			return acc, posixError(s.path, err)
		}
		return step(acc, chunk)
	})

	// An empty source still materialises an empty file plus sidecar.
	if err == nil {
		err = start()
	}
	if sink != nil {
		if closeErr := sink.Close(); closeErr != nil && err == nil {
			err = posixError(s.path, closeErr)
		}
	}
	return out, err
}
