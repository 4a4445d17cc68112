package hashing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/resx/callback"
	"github.com/meigma/resx/resource"
)

// sha256 of "hello".
const helloSHA256 = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"

func TestSumSHA256(t *testing.T) {
	t.Parallel()

	algo, ok := Lookup("sha256")
	require.True(t, ok)

	sum, err := Sum(context.Background(), algo, resource.ChunkStream([]byte("hel"), []byte("lo")))
	require.NoError(t, err)
	assert.EqualValues(t, "sha256", sum.Algorithm)
	assert.Equal(t, helloSHA256, sum.Encoded)
}

func TestSumIsPure(t *testing.T) {
	t.Parallel()

	algo, _ := Lookup("sha256")
	stream := resource.ChunkStream([]byte("hello"))

	first, err := Sum(context.Background(), algo, stream)
	require.NoError(t, err)
	second, err := Sum(context.Background(), algo, stream)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestBuiltinAlgorithmsRegistered(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"sha256", "sha512", "sha1", "md5", "blake3"} {
		_, ok := Lookup(name)
		assert.True(t, ok, "algorithm %q should be registered", name)
	}
}

func TestFromFuncWholeBuffer(t *testing.T) {
	t.Parallel()

	algo := FromFunc("sha256-buf", func(data []byte) ([]byte, error) {
		sum := sha256.Sum256(data)
		return sum[:], nil
	})

	sum, err := Sum(context.Background(), algo, resource.ChunkStream([]byte("hel"), []byte("lo")))
	require.NoError(t, err)
	assert.Equal(t, helloSHA256, sum.Encoded)
}

func TestFromCallbacksIncremental(t *testing.T) {
	t.Parallel()

	init := callback.New(func(context.Context, ...any) (any, error) {
		return sha256.New(), nil
	}, 0)
	update := callback.New(func(_ context.Context, args ...any) (any, error) {
		h := args[0].(interface{ Write([]byte) (int, error) })
		_, _ = h.Write(args[1].([]byte))
		return args[0], nil
	}, 2)
	final := callback.New(func(_ context.Context, args ...any) (any, error) {
		h := args[0].(interface{ Sum([]byte) []byte })
		return h.Sum(nil), nil
	}, 1)

	algo := FromCallbacks("sha256-cb", init, update, final)
	sum, err := Sum(context.Background(), algo, resource.ChunkStream([]byte("hello")))
	require.NoError(t, err)
	assert.Equal(t, helloSHA256, sum.Encoded)
}

func TestSumRejectsOpaqueChunks(t *testing.T) {
	t.Parallel()

	algo, _ := Lookup("sha256")
	_, err := Sum(context.Background(), algo, resource.ChunkStream(42))
	assert.ErrorIs(t, err, resource.ErrInternal)
}

func TestBlake3Digest(t *testing.T) {
	t.Parallel()

	algo, ok := Lookup("blake3")
	require.True(t, ok)
	sum, err := Sum(context.Background(), algo, resource.ChunkStream([]byte("hello")))
	require.NoError(t, err)

	decoded, err := hex.DecodeString(sum.Encoded)
	require.NoError(t, err)
	assert.Len(t, decoded, 32)
}
