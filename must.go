package resx

import (
	"context"

	"github.com/meigma/resx/resource"
)

// Panic-class wrappers for ergonomic call sites. Each panics with the
// tagged error verbatim, so a recover can still destructure the kind.

// MustOpen is Open, panicking on error.
func MustOpen(ctx context.Context, in any) *resource.Resource {
	res, err := Open(ctx, in)
	if err != nil {
		panic(err)
	}
	return res
}

// MustStream is Stream, panicking on error.
func MustStream(ctx context.Context, in any) *resource.Resource {
	res, err := Stream(ctx, in)
	if err != nil {
		panic(err)
	}
	return res
}

// MustStore is Store, panicking on error.
func MustStore(ctx context.Context, in any, adapter string, opts resource.StoreOptions) *resource.Resource {
	res, err := Store(ctx, in, adapter, opts)
	if err != nil {
		panic(err)
	}
	return res
}

// MustFinalise is Finalise, panicking on error.
func MustFinalise(ctx context.Context, in any, opts FinaliseOptions) *resource.Resource {
	res, err := Finalise(ctx, in, opts)
	if err != nil {
		panic(err)
	}
	return res
}

// MustTransform is Transform, panicking on error.
func MustTransform(ctx context.Context, in any, name string, options map[string]any) *resource.Resource {
	res, err := Transform(ctx, in, name, options)
	if err != nil {
		panic(err)
	}
	return res
}
