package rpc

import (
	"context"
	"errors"

	"github.com/meigma/resx/callback"
	"github.com/meigma/resx/codec"
	"github.com/meigma/resx/resource"
)

// FromCallback adapts a callback descriptor to the Caller interface,
// so the transport can be configured through the same descriptor
// mechanism as every other hook.
//
// The descriptor is invoked with (node, service, method, args) where
// args is the encoded argument payload, and must return the encoded
// reply payload as []byte. Errors returned by the callback pass
// through unchanged when they carry a kind, and as Internal otherwise.
func FromCallback(d callback.Descriptor) Caller {
	return CallerFunc(func(ctx context.Context, node, service, method string, args, reply any) error {
		encoded, err := codec.Marshal(args)
		if err != nil {
			return resource.Internalf("encode rpc arguments: %w", err)
		}

		out, err := callback.Call(ctx, d, []any{node, service, method, encoded}, callback.Required)
		if err != nil {
			var tagged *resource.Error
			if errors.As(err, &tagged) {
				return err
			}
			return resource.Internalf("rpc callback: %w", err)
		}
		if reply == nil {
			return nil
		}
		raw, ok := out.([]byte)
		if !ok {
			return resource.Internalf("rpc callback returned %T, want []byte", out)
		}
		if err := codec.Unmarshal(raw, reply); err != nil {
			return resource.Internalf("decode rpc reply: %w", err)
		}
		return nil
	})
}
