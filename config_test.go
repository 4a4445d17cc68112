package resx_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/resx"
	"github.com/meigma/resx/producers/data"
	"github.com/meigma/resx/producers/file"
	"github.com/meigma/resx/resource"
)

func TestReconfigurationIsObservedImmediately(t *testing.T) {
	resetAfter(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "live.txt")
	require.NoError(t, os.WriteFile(path, []byte("live"), 0o644))
	uri := "file://" + path

	// The default matrix is empty: everything is protected.
	_, err := resx.Open(ctx, uri)
	require.ErrorIs(t, err, resource.ErrInvalidReference)

	// The very next call sees the new matrix; no handles to refresh.
	resx.Configure(resx.WithAccess(file.AccessGlob("**")))
	res, err := resx.Open(ctx, uri)
	require.NoError(t, err)
	assert.Equal(t, []byte("live"), res.Content.Bytes())

	// And revocation is just as immediate.
	resx.Configure(resx.WithAccess())
	_, err = resx.Open(ctx, uri)
	assert.ErrorIs(t, err, resource.ErrInvalidReference)
}

func TestWithHashChangesDefault(t *testing.T) {
	resetAfter(t)
	ctx := context.Background()

	resx.Configure(resx.WithHash("blake3"))
	sum, err := resx.Hash(ctx, "data:,x", "")
	require.NoError(t, err)
	assert.EqualValues(t, "blake3", sum.Algorithm)
}

func TestWithCombiner(t *testing.T) {
	resetAfter(t)
	ctx := context.Background()

	resx.Configure(resx.WithCombiner(func(chunks []any) (any, error) {
		var out []byte
		for _, chunk := range chunks {
			out = append(out, chunk.([]byte)...)
		}
		return append(out, '!'), nil
	}))

	res, err := resx.Stream(ctx, "data:,shout")
	require.NoError(t, err)
	finalised, err := resx.Finalise(ctx, res, resx.FinaliseOptions{SkipHash: true})
	require.NoError(t, err)
	assert.Equal(t, []byte("shout!"), finalised.Content.Bytes())
}

// countingProducer wraps the data producer to observe scheme dispatch.
type countingProducer struct {
	resource.Producer
	schemes []string
	opens   int
}

func (p *countingProducer) Schemes() []string { return p.schemes }

func (p *countingProducer) Open(ctx context.Context, ref resource.Reference) (*resource.Resource, error) {
	p.opens++
	return p.Producer.Open(ctx, ref)
}

func TestWithProducerOverridesScheme(t *testing.T) {
	resetAfter(t)
	ctx := context.Background()

	counting := &countingProducer{
		Producer: data.New(),
		schemes:  []string{"data"},
	}
	// The override wins over the built-in binding for its scheme...
	resx.Configure(resx.WithProducerScheme("data", counting))
	_, _ = resx.Open(ctx, "data:,x")
	assert.Equal(t, 1, counting.opens)

	// ...and other schemes still reach their defaults.
	_, err := resx.Open(ctx, "resx-transform:bad")
	assert.ErrorIs(t, err, resource.ErrInvalidReference)
}

func TestParseConfigYAML(t *testing.T) {
	resetAfter(t)

	raw := []byte(`
hash: blake3
node: alice@n1
access:
  - "**/*.txt"
  - glob: "/srv/**"
    node: bob@n2
  - regexp: "^/tmp/[0-9]+$"
`)
	opts, err := resx.ParseConfig(raw)
	require.NoError(t, err)
	resx.Configure(opts...)

	ctx := context.Background()
	sum, err := resx.Hash(ctx, "data:,x", "")
	require.NoError(t, err)
	assert.EqualValues(t, "blake3", sum.Algorithm)

	// The glob entry admits matching local paths (the node-bound entry
	// stays out of the way).
	_, err = resx.Open(ctx, "file:///no/such/thing.txt")
	assert.ErrorIs(t, err, resource.ErrUnknownResource)
	_, err = resx.Open(ctx, "file:///no/such/thing.bin")
	assert.ErrorIs(t, err, resource.ErrInvalidReference)
}

func TestParseConfigErrors(t *testing.T) {
	resetAfter(t)

	for _, raw := range []string{
		"access:\n  - {}\n",
		"access:\n  - glob: \"[abc\"\n",
		"access:\n  - regexp: \"(\"\n",
		"access:\n  - glob: a\n    regexp: b\n",
		"{not yaml",
	} {
		_, err := resx.ParseConfig([]byte(raw))
		assert.Error(t, err, "config %q", raw)
	}
}

func TestLoadConfigFile(t *testing.T) {
	resetAfter(t)

	path := filepath.Join(t.TempDir(), "resx.yaml")
	require.NoError(t, os.WriteFile(path, []byte("hash: sha512\n"), 0o644))
	require.NoError(t, resx.LoadConfig(path))

	sum, err := resx.Hash(context.Background(), "data:,x", "")
	require.NoError(t, err)
	assert.EqualValues(t, "sha512", sum.Algorithm)

	assert.Error(t, resx.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")))
}
