// Package transformers ships the built-in content transformations:
// text prefix/suffix/replace and zstd/gzip compression. Each is an
// ordinary resource.Transformer; RegisterAll binds them under their
// canonical names so they can appear in transform URIs.
package transformers

import (
	"bytes"
	"context"

	"github.com/meigma/resx/producers/transform"
	"github.com/meigma/resx/resource"
)

// Canonical registry names.
const (
	NamePrefix  = "prefix"
	NameSuffix  = "suffix"
	NameReplace = "replace"
	NameZstd    = "zstd"
	NameGzip    = "gzip"
)

// RegisterAll binds every built-in transformer to its canonical name.
func RegisterAll() {
	transform.Register(NamePrefix, Prefix())
	transform.Register(NameSuffix, Suffix())
	transform.Register(NameReplace, Replace())
	transform.Register(NameZstd, Zstd())
	transform.Register(NameGzip, Gzip())
}

// stringOption extracts a required string option.
func stringOption(options map[string]any, key string) (string, error) {
	value, ok := options[key]
	if !ok {
		return "", resource.InvalidReferencef("transformation option %q is required", key)
	}
	s, ok := value.(string)
	if !ok {
		return "", resource.InvalidReferencef("transformation option %q must be a string, got %T", key, value)
	}
	return s, nil
}

// boolOption extracts an optional bool option, defaulting to false.
func boolOption(options map[string]any, key string) bool {
	b, _ := options[key].(bool)
	return b
}

// intOption extracts an optional integer option. CBOR decodes integers
// into int64 or uint64 depending on sign, so both are accepted.
func intOption(options map[string]any, key string, fallback int) int {
	switch v := options[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case uint64:
		return int(v)
	default:
		return fallback
	}
}

// payload materialises the resource's content into bytes.
func payload(ctx context.Context, res *resource.Resource) ([]byte, error) {
	content, err := res.Content.Materialise(ctx, nil)
	if err != nil {
		return nil, err
	}
	return content.Bytes(), nil
}

// rewrite returns a copy of the resource with the payload replaced,
// keeping the content type.
func rewrite(res *resource.Resource, data []byte) *resource.Resource {
	return res.WithContent(resource.NewContent(res.Content.Type(), data))
}

// Prefix prepends the "value" option to the content.
func Prefix() resource.Transformer {
	return resource.TransformerFunc(func(ctx context.Context, res *resource.Resource, options map[string]any) (*resource.Resource, error) {
		value, err := stringOption(options, "value")
		if err != nil {
			return nil, err
		}
		data, err := payload(ctx, res)
		if err != nil {
			return nil, err
		}
		return rewrite(res, append([]byte(value), data...)), nil
	})
}

// Suffix appends the "value" option to the content.
func Suffix() resource.Transformer {
	return resource.TransformerFunc(func(ctx context.Context, res *resource.Resource, options map[string]any) (*resource.Resource, error) {
		value, err := stringOption(options, "value")
		if err != nil {
			return nil, err
		}
		data, err := payload(ctx, res)
		if err != nil {
			return nil, err
		}
		return rewrite(res, append(data, value...)), nil
	})
}

// Replace substitutes every occurrence of the "pattern" option with the
// "replacement" option.
func Replace() resource.Transformer {
	return resource.TransformerFunc(func(ctx context.Context, res *resource.Resource, options map[string]any) (*resource.Resource, error) {
		pattern, err := stringOption(options, "pattern")
		if err != nil {
			return nil, err
		}
		replacement, err := stringOption(options, "replacement")
		if err != nil {
			return nil, err
		}
		data, err := payload(ctx, res)
		if err != nil {
			return nil, err
		}
		return rewrite(res, bytes.ReplaceAll(data, []byte(pattern), []byte(replacement))), nil
	})
}
