// Package rpc carries file-producer operations between nodes.
//
// The transport is pluggable: anything implementing Caller can move a
// call to the node that owns a path. The package ships an HTTP
// transport with CBOR-encoded bodies and an in-process caller for
// single-process topologies and tests. Errors cross the hop with their
// kind intact, so UnknownResource on a remote node still triggers
// source recovery on the calling side.
package rpc

import (
	"context"
	"errors"

	"github.com/meigma/resx/codec"
	"github.com/meigma/resx/resource"
)

// Caller dispatches a method call to a node. args is CBOR-encoded for
// the wire; reply, when non-nil, receives the decoded result.
type Caller interface {
	Call(ctx context.Context, node, service, method string, args, reply any) error
}

// CallerFunc adapts a function to the Caller interface.
type CallerFunc func(ctx context.Context, node, service, method string, args, reply any) error

func (f CallerFunc) Call(ctx context.Context, node, service, method string, args, reply any) error {
	return f(ctx, node, service, method, args, reply)
}

// Handler serves one method. decode unmarshals the caller's argument
// payload into a typed request; the returned value is encoded as the
// reply.
type Handler func(ctx context.Context, decode func(into any) error) (any, error)

// wireError carries an error kind and reason across the hop.
type wireError struct {
	Kind   string `cbor:"kind"`
	Reason string `cbor:"reason"`
}

// wireResponse is the reply envelope.
type wireResponse struct {
	Result codec.RawMessage `cbor:"result,omitempty"`
	Error  *wireError       `cbor:"error,omitempty"`
}

// encodeError maps a resource error onto the wire envelope. Errors
// outside the taxonomy travel as Internal.
func encodeError(err error) *wireError {
	w := &wireError{Kind: "internal", Reason: err.Error()}
	switch {
	case errors.Is(err, resource.ErrInvalidReference):
		w.Kind = "invalid_reference"
	case errors.Is(err, resource.ErrUnknownResource):
		w.Kind = "unknown_resource"
	case errors.Is(err, resource.ErrUnknownKey):
		w.Kind = "unknown_key"
	}
	var tagged *resource.Error
	if errors.As(err, &tagged) {
		w.Reason = tagged.Reason
	}
	return w
}

// decodeError reconstructs a tagged error from the wire envelope.
func decodeError(w *wireError) error {
	switch w.Kind {
	case "invalid_reference":
		return resource.InvalidReferencef("%s", w.Reason)
	case "unknown_resource":
		return resource.UnknownResourcef("%s", w.Reason)
	case "unknown_key":
		return resource.UnknownKeyf("%s", w.Reason)
	default:
		return resource.Internalf("%s", w.Reason)
	}
}

// dispatch runs a handler over an encoded argument payload and encodes
// the outcome. Shared by the HTTP server and the local caller.
func dispatch(ctx context.Context, h Handler, args []byte) wireResponse {
	out, err := h(ctx, func(into any) error {
		if err := codec.Unmarshal(args, into); err != nil {
			return resource.Internalf("decode rpc arguments: %w", err)
		}
		return nil
	})
	if err != nil {
		return wireResponse{Error: encodeError(err)}
	}
	encoded, err := codec.Marshal(out)
	if err != nil {
		return wireResponse{Error: encodeError(resource.Internalf("encode rpc reply: %w", err))}
	}
	return wireResponse{Result: encoded}
}

// finishCall decodes a wire response into the caller's reply value.
func finishCall(resp wireResponse, reply any) error {
	if resp.Error != nil {
		return decodeError(resp.Error)
	}
	if reply == nil {
		return nil
	}
	if err := codec.Unmarshal(resp.Result, reply); err != nil {
		return resource.Internalf("decode rpc reply: %w", err)
	}
	return nil
}
