package file_test

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/resx/callback"
	"github.com/meigma/resx/internal/testutil"
	"github.com/meigma/resx/producers/data"
	"github.com/meigma/resx/producers/file"
	"github.com/meigma/resx/resource"
)

// harness wires a file producer over a mutable config and a resolver
// that also serves data: sources.
type harness struct {
	mu       sync.Mutex
	cfg      file.Config
	producer *file.Producer
	resolver *testutil.Resolver
}

func newHarness() *harness {
	h := &harness{}
	h.resolver = testutil.NewResolver(data.New())
	h.producer = file.New(h.resolver, func() file.Config {
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.cfg
	})
	h.resolver.Register(file.Scheme, h.producer)
	return h
}

func (h *harness) setAccess(entries ...file.AccessEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cfg.Access = entries
}

func sourceURI(path, inner string) string {
	return "file://" + path + "?source=" + base64.StdEncoding.EncodeToString([]byte(inner))
}

func TestParseURI(t *testing.T) {
	t.Parallel()

	h := newHarness()

	ref, err := h.producer.ParseURI("file:///tmp/x.txt")
	require.NoError(t, err)
	repo := ref.Repository.(file.Repository)
	assert.Empty(t, repo.Node)
	assert.Equal(t, "/tmp/x.txt", repo.Path)
	assert.Nil(t, repo.Source)

	ref, err = h.producer.ParseURI("file://alice@n1/srv/data.bin")
	require.NoError(t, err)
	repo = ref.Repository.(file.Repository)
	assert.Equal(t, "alice@n1", repo.Node)
	assert.Equal(t, "/srv/data.bin", repo.Path)

	// localhost is the local node.
	ref, err = h.producer.ParseURI("file://localhost/tmp/x")
	require.NoError(t, err)
	assert.Empty(t, ref.Repository.(file.Repository).Node)
}

func TestParseURIWithSource(t *testing.T) {
	t.Parallel()

	h := newHarness()
	ref, err := h.producer.ParseURI(sourceURI("/tmp/x.txt", "data:,hello"))
	require.NoError(t, err)

	repo := ref.Repository.(file.Repository)
	require.NotNil(t, repo.Source)
	assert.Equal(t, data.Adapter, repo.Source.Adapter)
}

func TestParseURIErrors(t *testing.T) {
	t.Parallel()

	h := newHarness()
	for _, uri := range []string{
		"file://n1",                          // no path
		"file:relative/path",                 // not absolute
		"file:///tmp/x?source=!!!bad-b64!!!", // malformed source
	} {
		_, err := h.producer.ParseURI(uri)
		assert.ErrorIs(t, err, resource.ErrInvalidReference, "uri %q", uri)
	}
}

func TestAccessMatrix(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.setAccess(file.AccessGlob("**/bar.txt"))
	ctx := context.Background()

	// Matrix permits the path; the file simply does not exist.
	ref, err := h.producer.ParseURI("file:///any/dir/bar.txt")
	require.NoError(t, err)
	_, err = h.producer.Open(ctx, ref)
	assert.ErrorIs(t, err, resource.ErrUnknownResource)

	// Matrix rejects everything else.
	ref, err = h.producer.ParseURI("file:///foo.txt")
	require.NoError(t, err)
	_, err = h.producer.Open(ctx, ref)
	require.ErrorIs(t, err, resource.ErrInvalidReference)
	assert.Contains(t, err.Error(), "protected file")

	// An empty matrix protects every path.
	h.setAccess()
	ref, err = h.producer.ParseURI("file:///any/dir/bar.txt")
	require.NoError(t, err)
	_, err = h.producer.Open(ctx, ref)
	assert.ErrorIs(t, err, resource.ErrInvalidReference)
}

func TestAccessMatrixEntryForms(t *testing.T) {
	t.Parallel()

	h := newHarness()
	ctx := context.Background()
	probe := func(uri string) error {
		ref, err := h.producer.ParseURI(uri)
		require.NoError(t, err)
		_, err = h.producer.Exists(ctx, ref)
		return err
	}

	// Regex entry.
	h.setAccess(file.AccessRegexp(regexp.MustCompile(`/tmp/.*\.txt`)))
	require.NoError(t, probe("file:///tmp/a.txt"))
	assert.ErrorIs(t, probe("file:///tmp/a.bin"), resource.ErrInvalidReference)

	// Callback entry.
	h.setAccess(file.AccessFunc(callback.New(func(_ context.Context, args ...any) (any, error) {
		return args[0].(string) == "/tmp/allowed", nil
	}, 1)))
	require.NoError(t, probe("file:///tmp/allowed"))
	assert.ErrorIs(t, probe("file:///tmp/denied"), resource.ErrInvalidReference)

	// Node-restricted entry: the local node has no name, so a
	// node-bound entry never matches local references.
	h.setAccess(file.AccessGlob("**").OnNode("other@n2"))
	assert.ErrorIs(t, probe("file:///tmp/a.txt"), resource.ErrInvalidReference)

	// Node callback entry.
	h.setAccess(file.AccessGlob("**").OnNodeFunc(callback.New(func(_ context.Context, args ...any) (any, error) {
		return args[0].(string) == "", nil
	}, 1)))
	require.NoError(t, probe("file:///tmp/a.txt"))
}

func TestStoreAndOpen(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.setAccess(file.AccessGlob("**"))
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "x.txt")

	src, err := h.resolver.Open(ctx, mustRef(t, h, "data:,hello"))
	require.NoError(t, err)
	src.Meta = resource.Meta{"origin": "test"}

	stored, err := h.producer.Store(ctx, src, resource.StoreOptions{Path: path})
	require.NoError(t, err)
	require.True(t, stored.Content.Streaming(), "store is deferred until driven")

	// Nothing on disk until the stream is driven.
	_, err = os.Stat(path)
	assert.ErrorIs(t, err, os.ErrNotExist)

	content, err := stored.Content.Materialise(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), content.Bytes())

	// Sidecar and content both exist now.
	onDisk, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), onDisk)
	_, err = os.Stat(path + file.MetaSuffix)
	require.NoError(t, err)

	// The stored reference carries the source it caches.
	repo := stored.Reference.Repository.(file.Repository)
	require.NotNil(t, repo.Source)
	assert.Equal(t, data.Adapter, repo.Source.Adapter)

	// Re-open from disk.
	opened, err := h.producer.Open(ctx, mustRef(t, h, "file://"+path))
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), opened.Content.Bytes())
	assert.Equal(t, []string{"text/plain"}, opened.Content.Type())
	assert.Equal(t, "test", opened.Meta["origin"])
}

func TestStoreEager(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.setAccess(file.AccessGlob("**"))
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "eager.txt")

	src, err := h.resolver.Open(ctx, mustRef(t, h, "data:,now"))
	require.NoError(t, err)

	stored, err := h.producer.Store(ctx, src, resource.StoreOptions{Path: path, Bytes: true})
	require.NoError(t, err)
	assert.False(t, stored.Content.Streaming())

	onDisk, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("now"), onDisk)
}

func TestStoreRequiresPath(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.setAccess(file.AccessGlob("**"))

	src, err := h.resolver.Open(context.Background(), mustRef(t, h, "data:,x"))
	require.NoError(t, err)
	_, err = h.producer.Store(context.Background(), src, resource.StoreOptions{})
	assert.ErrorIs(t, err, resource.ErrInvalidReference)
}

func TestSidecarWrittenBeforeContent(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.setAccess(file.AccessGlob("**"))
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ordered.txt")

	src, err := h.resolver.Stream(ctx, mustRef(t, h, "data:,chunk"))
	require.NoError(t, err)
	stored, err := h.producer.Store(ctx, src, resource.StoreOptions{Path: path})
	require.NoError(t, err)

	sawSidecar := false
	_, err = stored.Content.Stream().Reduce(ctx, nil, func(acc, _ any) (any, error) {
		// By the time the first chunk is emitted downstream, the
		// sidecar must already be on disk.
		_, statErr := os.Stat(path + file.MetaSuffix)
		sawSidecar = statErr == nil
		return acc, nil
	})
	require.NoError(t, err)
	assert.True(t, sawSidecar)
}

func TestCacheRestoreFromSource(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.setAccess(file.AccessGlob("**"))
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.txt")
	ref := mustRef(t, h, sourceURI(path, "data:,hello"))

	// The file is missing: open reports UnknownResource for the
	// caller-driven recovery path.
	_, err := h.producer.Open(ctx, ref)
	require.ErrorIs(t, err, resource.ErrUnknownResource)

	// Drive the recovery by hand: stream the source, store, re-open.
	srcRef, err := h.producer.Source(ref)
	require.NoError(t, err)
	require.NotNil(t, srcRef)

	srcRes, err := h.resolver.Stream(ctx, *srcRef)
	require.NoError(t, err)
	opts, err := h.producer.PrepareStore(ref)
	require.NoError(t, err)
	stored, err := h.producer.Store(ctx, srcRes, opts)
	require.NoError(t, err)
	_, err = stored.Content.Materialise(ctx, nil)
	require.NoError(t, err)

	restored, err := h.producer.Open(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), restored.Content.Bytes())
}

func TestCacheRequiresSidecar(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.setAccess(file.AccessGlob("**"))
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "no-meta.txt")

	// Content without a sidecar: a sourced reference treats this as
	// cache-missing.
	require.NoError(t, os.WriteFile(path, []byte("partial"), 0o644))
	ref := mustRef(t, h, sourceURI(path, "data:,hello"))
	_, err := h.producer.Open(ctx, ref)
	assert.ErrorIs(t, err, resource.ErrUnknownResource)

	// The same file without a source opens fine.
	plain := mustRef(t, h, "file://"+path)
	res, err := h.producer.Open(ctx, plain)
	require.NoError(t, err)
	assert.Equal(t, []byte("partial"), res.Content.Bytes())
}

func TestDiscard(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.setAccess(file.AccessGlob("**"))
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "gone.txt")

	src, err := h.resolver.Open(ctx, mustRef(t, h, "data:,bye"))
	require.NoError(t, err)
	stored, err := h.producer.Store(ctx, src, resource.StoreOptions{Path: path, Bytes: true})
	require.NoError(t, err)

	require.NoError(t, h.producer.Discard(ctx, stored.Reference, resource.DiscardOptions{}))
	_, err = os.Stat(path)
	assert.ErrorIs(t, err, os.ErrNotExist)
	_, err = os.Stat(path + file.MetaSuffix)
	assert.ErrorIs(t, err, os.ErrNotExist)

	// Discarding again reports the missing resource.
	err = h.producer.Discard(ctx, stored.Reference, resource.DiscardOptions{})
	assert.ErrorIs(t, err, resource.ErrUnknownResource)
}

func TestStreamLocalFile(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.setAccess(file.AccessGlob("**"))
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "stream.txt")
	require.NoError(t, os.WriteFile(path, []byte("streamed bytes"), 0o644))

	res, err := h.producer.Stream(ctx, mustRef(t, h, "file://"+path))
	require.NoError(t, err)
	require.True(t, res.Content.Streaming())

	// Each reduction re-acquires the file.
	for i := 0; i < 2; i++ {
		content, err := res.Content.Materialise(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, []byte("streamed bytes"), content.Bytes())
	}

	// A vanished origin surfaces, never an empty sequence.
	require.NoError(t, os.Remove(path))
	_, err = res.Content.Materialise(ctx, nil)
	assert.ErrorIs(t, err, resource.ErrUnknownResource)
}

func TestExistsConsultsSource(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.setAccess(file.AccessGlob("**"))
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "virtual.txt")

	// Missing file with a live source still exists: opening restores it.
	ref := mustRef(t, h, sourceURI(path, "data:,hello"))
	exists, err := h.producer.Exists(ctx, ref)
	require.NoError(t, err)
	assert.True(t, exists)

	// Missing file without a source does not.
	plain := mustRef(t, h, "file://"+path)
	exists, err = h.producer.Exists(ctx, plain)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestAlike(t *testing.T) {
	t.Parallel()

	h := newHarness()
	assert.True(t, h.producer.Alike(mustRef(t, h, "file:///tmp/a"), mustRef(t, h, "file://localhost/tmp/a")))
	assert.False(t, h.producer.Alike(mustRef(t, h, "file:///tmp/a"), mustRef(t, h, "file:///tmp/b")))
	assert.False(t, h.producer.Alike(mustRef(t, h, "file:///tmp/a"), mustRef(t, h, "file://bob@n2/tmp/a")))
	assert.True(t, h.producer.Alike(
		mustRef(t, h, sourceURI("/tmp/a", "data:,x")),
		mustRef(t, h, sourceURI("/tmp/a", "data:,x"))))
	assert.False(t, h.producer.Alike(
		mustRef(t, h, sourceURI("/tmp/a", "data:,x")),
		mustRef(t, h, sourceURI("/tmp/a", "data:,y"))))
}

func TestURIRoundTrip(t *testing.T) {
	t.Parallel()

	h := newHarness()
	for _, uri := range []string{
		"file:///tmp/x.txt",
		"file://alice@n1/srv/data.bin",
		sourceURI("/tmp/cache.txt", "data:text/plain;charset=US-ASCII;base64,aGVsbG8="),
	} {
		ref := mustRef(t, h, uri)
		emitted, err := h.producer.URI(ref)
		require.NoError(t, err)
		again := mustRef(t, h, emitted)
		assert.True(t, h.producer.Alike(ref, again), "uri %q re-parses alike", uri)
	}
}

func TestAttributes(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.setAccess(file.AccessGlob("**"))
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "attrs.txt")
	require.NoError(t, os.WriteFile(path, []byte("12345"), 0o640))

	ref := mustRef(t, h, "file://"+path)
	attrs, err := h.producer.Attributes(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, "attrs.txt", attrs["name"])
	assert.EqualValues(t, 5, attrs["size"])
	assert.Equal(t, "regular", attrs["type"])

	size, err := h.producer.Attribute(ctx, ref, "size")
	require.NoError(t, err)
	assert.EqualValues(t, 5, size)

	_, err = h.producer.Attribute(ctx, ref, "flavour")
	assert.ErrorIs(t, err, resource.ErrUnknownKey)

	keys, err := h.producer.AttributeKeys(ctx, ref)
	require.NoError(t, err)
	assert.Contains(t, keys, "name")
	assert.Contains(t, keys, "mtime")
}

func TestAttributesFallThroughToSource(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.setAccess(file.AccessGlob("**"))
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "absent.txt")

	// The file is absent; attributes come from the data source.
	ref := mustRef(t, h, sourceURI(path, "data:text/plain;charset=utf-8,hi"))
	attrs, err := h.producer.Attributes(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, "utf-8", attrs["charset"])
}

func mustRef(t *testing.T, h *harness, uri string) resource.Reference {
	t.Helper()
	ref, err := h.resolver.ParseURI(uri)
	require.NoError(t, err)
	return ref
}
