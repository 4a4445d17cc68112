// Package hashing provides the name-addressable digest algorithms used
// to finalise resources. Algorithms drive the binary content reducer
// incrementally; whole-buffer and callback-descriptor forms are
// supported for user-supplied hashers.
package hashing

import (
	"context"
	"crypto/md5"  //nolint:gosec // available by name, never a default
	"crypto/sha1" //nolint:gosec // available by name, never a default
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"hash"
	"sync"

	"github.com/opencontainers/go-digest"
	"github.com/zeebo/blake3"

	"github.com/meigma/resx/callback"
	"github.com/meigma/resx/resource"
)

// DefaultAlgorithm is the process-wide default digest algorithm.
const DefaultAlgorithm = "sha256"

// Algorithm computes a digest incrementally over binary chunks.
type Algorithm interface {
	Name() string
	Init(ctx context.Context) (any, error)
	Update(ctx context.Context, state any, chunk []byte) (any, error)
	Final(ctx context.Context, state any) ([]byte, error)
}

// hashAlgorithm adapts a stdlib hash.Hash constructor.
type hashAlgorithm struct {
	name    string
	newHash func() hash.Hash
}

func (a *hashAlgorithm) Name() string { return a.name }

func (a *hashAlgorithm) Init(context.Context) (any, error) {
	return a.newHash(), nil
}

func (a *hashAlgorithm) Update(_ context.Context, state any, chunk []byte) (any, error) {
	h := state.(hash.Hash)
	_, _ = h.Write(chunk) // hash.Hash.Write never errors
	return h, nil
}

func (a *hashAlgorithm) Final(_ context.Context, state any) ([]byte, error) {
	return state.(hash.Hash).Sum(nil), nil
}

// FromHash builds an Algorithm from a hash.Hash constructor.
func FromHash(name string, newHash func() hash.Hash) Algorithm {
	return &hashAlgorithm{name: name, newHash: newHash}
}

// bufferAlgorithm collects the whole content and digests it in one call.
type bufferAlgorithm struct {
	name string
	fn   func([]byte) ([]byte, error)
}

func (a *bufferAlgorithm) Name() string { return a.name }

func (a *bufferAlgorithm) Init(context.Context) (any, error) {
	return []byte(nil), nil
}

func (a *bufferAlgorithm) Update(_ context.Context, state any, chunk []byte) (any, error) {
	return append(state.([]byte), chunk...), nil
}

func (a *bufferAlgorithm) Final(_ context.Context, state any) ([]byte, error) {
	return a.fn(state.([]byte))
}

// FromFunc builds a whole-buffer Algorithm from a (name, fn) pair.
func FromFunc(name string, fn func([]byte) ([]byte, error)) Algorithm {
	return &bufferAlgorithm{name: name, fn: fn}
}

// callbackAlgorithm dispatches init/update/final callback descriptors,
// the (name, init, update, final) quadruple form.
type callbackAlgorithm struct {
	name                string
	init, update, final callback.Descriptor
}

func (a *callbackAlgorithm) Name() string { return a.name }

func (a *callbackAlgorithm) Init(ctx context.Context) (any, error) {
	return callback.Call(ctx, a.init, nil, callback.Optional)
}

func (a *callbackAlgorithm) Update(ctx context.Context, state any, chunk []byte) (any, error) {
	return callback.Call(ctx, a.update, []any{state, chunk}, callback.Required)
}

func (a *callbackAlgorithm) Final(ctx context.Context, state any) ([]byte, error) {
	out, err := callback.Call(ctx, a.final, []any{state}, callback.Required)
	if err != nil {
		return nil, err
	}
	b, ok := out.([]byte)
	if !ok {
		return nil, resource.Internalf("hasher %q final returned %T, want []byte", a.name, out)
	}
	return b, nil
}

// FromCallbacks builds an incremental Algorithm from callback
// descriptors.
func FromCallbacks(name string, init, update, final callback.Descriptor) Algorithm {
	return &callbackAlgorithm{name: name, init: init, update: update, final: final}
}

// registry holds the name-addressable algorithms.
var registry sync.Map // name -> Algorithm

// Register makes an algorithm resolvable by name.
func Register(a Algorithm) {
	registry.Store(a.Name(), a)
}

// Lookup resolves an algorithm by name.
func Lookup(name string) (Algorithm, bool) {
	v, ok := registry.Load(name)
	if !ok {
		return nil, false
	}
	return v.(Algorithm), true
}

func init() {
	Register(FromHash("sha256", sha256.New))
	Register(FromHash("sha512", sha512.New))
	Register(FromHash("sha1", sha1.New))
	Register(FromHash("md5", md5.New))
	Register(FromHash("blake3", func() hash.Hash { return blake3.New() }))
}

// Sum drives the binary reducer of a stream through the algorithm and
// returns the resulting checksum.
func Sum(ctx context.Context, algo Algorithm, s resource.Stream) (resource.Checksum, error) {
	state, err := algo.Init(ctx)
	if err != nil {
		return resource.Checksum{}, err
	}
	out, err := s.Reduce(ctx, state, func(acc, chunk any) (any, error) {
		b, ok := chunk.([]byte)
		if !ok {
			return acc, resource.Internalf("hash chunk is not binary (%T)", chunk)
		}
		return algo.Update(ctx, acc, b)
	})
	if err != nil {
		return resource.Checksum{}, err
	}
	sum, err := algo.Final(ctx, out)
	if err != nil {
		return resource.Checksum{}, err
	}
	return resource.Checksum{
		Algorithm: digest.Algorithm(algo.Name()),
		Encoded:   hex.EncodeToString(sum),
	}, nil
}
