package transformers

import (
	"bytes"
	"context"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/meigma/resx/resource"
)

// Zstd compresses the content with zstandard. Options: "level" (zstd
// compression level, default 3) and "decompress" (reverse direction).
func Zstd() resource.Transformer {
	return resource.TransformerFunc(func(ctx context.Context, res *resource.Resource, options map[string]any) (*resource.Resource, error) {
		data, err := payload(ctx, res)
		if err != nil {
			return nil, err
		}

		if boolOption(options, "decompress") {
			dec, err := zstd.NewReader(nil)
			if err != nil {
				return nil, resource.Internalf("zstd decoder: %v", err)
			}
			defer dec.Close()
			out, err := dec.DecodeAll(data, nil)
			if err != nil {
				return nil, resource.Internalf("zstd decompress: %v", err)
			}
			return rewrite(res, out), nil
		}

		level := zstd.EncoderLevelFromZstd(intOption(options, "level", 3))
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(level))
		if err != nil {
			return nil, resource.Internalf("zstd encoder: %v", err)
		}
		out := enc.EncodeAll(data, nil)
		if err := enc.Close(); err != nil {
			return nil, resource.Internalf("zstd encoder close: %v", err)
		}
		return rewrite(res, out), nil
	})
}

// Gzip compresses the content with gzip. Options: "level" (gzip level,
// default gzip.DefaultCompression) and "decompress".
func Gzip() resource.Transformer {
	return resource.TransformerFunc(func(ctx context.Context, res *resource.Resource, options map[string]any) (*resource.Resource, error) {
		data, err := payload(ctx, res)
		if err != nil {
			return nil, err
		}

		if boolOption(options, "decompress") {
			r, err := gzip.NewReader(bytes.NewReader(data))
			if err != nil {
				return nil, resource.Internalf("gzip decompress: %v", err)
			}
			out, err := io.ReadAll(r)
			if err != nil {
				return nil, resource.Internalf("gzip decompress: %v", err)
			}
			if err := r.Close(); err != nil {
				return nil, resource.Internalf("gzip decompress: %v", err)
			}
			return rewrite(res, out), nil
		}

		var buf bytes.Buffer
		w, err := gzip.NewWriterLevel(&buf, intOption(options, "level", gzip.DefaultCompression))
		if err != nil {
			return nil, resource.Internalf("gzip compress: %v", err)
		}
		if _, err := w.Write(data); err != nil {
			return nil, resource.Internalf("gzip compress: %v", err)
		}
		if err := w.Close(); err != nil {
			return nil, resource.Internalf("gzip compress: %v", err)
		}
		return rewrite(res, buf.Bytes()), nil
	})
}
