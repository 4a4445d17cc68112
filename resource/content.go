package resource

import (
	"context"
)

// ReducerBinary is the built-in reducer kind: a lazy sequence of []byte
// chunks suitable for hashing and storage.
const ReducerBinary = "binary"

// Stream is a lazy chunk producer with a single reduction entry point.
//
// A stream must not be driven from two goroutines at once, but distinct
// streams derived from the same reference are independent. Reducing a
// stream re-acquires its underlying source; a stream whose origin has
// disappeared returns ErrUnknownResource rather than an empty sequence.
type Stream interface {
	// Reduce folds the chunk sequence into acc. Chunks may be []byte or
	// opaque values depending on the producing adapter.
	Reduce(ctx context.Context, acc any, step func(acc any, chunk any) (any, error)) (any, error)
}

// StreamFunc adapts a function to the Stream interface.
type StreamFunc func(ctx context.Context, acc any, step func(acc any, chunk any) (any, error)) (any, error)

func (f StreamFunc) Reduce(ctx context.Context, acc any, step func(acc any, chunk any) (any, error)) (any, error) {
	return f(ctx, acc, step)
}

// ChunkStream returns a Stream replaying a fixed chunk slice.
func ChunkStream(chunks ...any) Stream {
	return StreamFunc(func(ctx context.Context, acc any, step func(any, any) (any, error)) (any, error) {
		var err error
		for _, chunk := range chunks {
			if err = ctx.Err(); err != nil {
				return acc, Internalf("stream cancelled: %w", err)
			}
			if acc, err = step(acc, chunk); err != nil {
				return acc, err
			}
		}
		return acc, nil
	})
}

// Chunks drives the stream once and collects every chunk.
func Chunks(ctx context.Context, s Stream) ([]any, error) {
	out, err := s.Reduce(ctx, []any(nil), func(acc, chunk any) (any, error) {
		return append(acc.([]any), chunk), nil
	})
	if err != nil {
		return nil, err
	}
	return out.([]any), nil
}

// Combiner collapses a chunk sequence into a single value during
// materialisation.
type Combiner func(chunks []any) (any, error)

// DefaultCombiner concatenates the chunks into one byte slice when every
// chunk is binary, and otherwise collects them into a list.
func DefaultCombiner(chunks []any) (any, error) {
	total := 0
	for _, chunk := range chunks {
		b, ok := chunk.([]byte)
		if !ok {
			out := make([]any, len(chunks))
			copy(out, chunks)
			return out, nil
		}
		total += len(b)
	}
	data := make([]byte, 0, total)
	for _, chunk := range chunks {
		data = append(data, chunk.([]byte)...)
	}
	return data, nil
}

// ReducerHook remaps reducer construction per media type and kind.
// Returning a nil Stream with a nil error falls through to the built-in
// binary reducer.
type ReducerHook func(c Content, kind string) (Stream, error)

// Content is the typed payload of a resource: either eager bytes or a
// lazy stream, tagged with a nonempty MIME type list whose head is the
// outermost type.
type Content struct {
	typ    []string
	data   []byte
	stream Stream
}

// NewContent creates eager content.
func NewContent(typ []string, data []byte) Content {
	return Content{typ: typ, data: data}
}

// NewStreamContent creates streaming content.
func NewStreamContent(typ []string, s Stream) Content {
	return Content{typ: typ, stream: s}
}

// Type returns the MIME type list, outermost first. Never empty for
// adapter-produced content.
func (c Content) Type() []string { return c.typ }

// Streaming reports whether the content is a lazy stream.
func (c Content) Streaming() bool { return c.stream != nil }

// Bytes returns the eager payload. Nil when the content is streaming.
func (c Content) Bytes() []byte { return c.data }

// Stream returns the underlying stream, or a single-chunk replay of the
// eager payload.
func (c Content) Stream() Stream {
	if c.stream != nil {
		return c.stream
	}
	return ChunkStream(c.data)
}

// Data materialises the content into a single value. Eager content
// returns its bytes; streaming content is driven through the combiner
// (DefaultCombiner when nil).
func (c Content) Data(ctx context.Context, combine Combiner) (any, error) {
	if c.stream == nil {
		return c.data, nil
	}
	chunks, err := Chunks(ctx, c.stream)
	if err != nil {
		return nil, err
	}
	if combine == nil {
		combine = DefaultCombiner
	}
	return combine(chunks)
}

// Materialise promotes streaming content to eager via Data; it is the
// identity on eager content. Combined values that are not byte slices
// are an error: only binary content can become an eager payload.
func (c Content) Materialise(ctx context.Context, combine Combiner) (Content, error) {
	if c.stream == nil {
		return c, nil
	}
	value, err := c.Data(ctx, combine)
	if err != nil {
		return Content{}, err
	}
	data, ok := value.([]byte)
	if !ok {
		return Content{}, Internalf("combined content is not binary (%T)", value)
	}
	return Content{typ: c.typ, data: data}, nil
}

// Reducer returns a lazy sequence reducer of the requested kind. The
// hook, when non-nil, may substitute a reducer per media type (e.g.
// serialising a structured payload before hashing); a nil result falls
// through to the built-in binary reducer.
func (c Content) Reducer(kind string, hook ReducerHook) (Stream, error) {
	if hook != nil {
		s, err := hook(c, kind)
		if err != nil {
			return nil, err
		}
		if s != nil {
			return s, nil
		}
	}
	if kind != ReducerBinary {
		return nil, Internalf("no reducer for kind %q", kind)
	}
	inner := c.Stream()
	return StreamFunc(func(ctx context.Context, acc any, step func(any, any) (any, error)) (any, error) {
		return inner.Reduce(ctx, acc, func(acc, chunk any) (any, error) {
			b, ok := chunk.([]byte)
			if !ok {
				return acc, Internalf("content chunk is not binary (%T)", chunk)
			}
			return step(acc, b)
		})
	}), nil
}
