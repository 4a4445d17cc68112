package data

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/resx/resource"
)

func TestParseURIPlain(t *testing.T) {
	t.Parallel()

	p := New()
	ref, err := p.ParseURI("data:,test")
	require.NoError(t, err)

	repo := ref.Repository.(Repository)
	assert.Equal(t, "text/plain", repo.MediaType)
	assert.Equal(t, "US-ASCII", repo.Params["charset"])
	assert.Equal(t, []byte("test"), repo.Data)
}

func TestParseURIBase64(t *testing.T) {
	t.Parallel()

	p := New()
	ref, err := p.ParseURI("data:text/plain;base64,dGVzdA==")
	require.NoError(t, err)

	repo := ref.Repository.(Repository)
	assert.Equal(t, "text/plain", repo.MediaType)
	assert.Equal(t, []byte("test"), repo.Data)
	assert.NotContains(t, repo.Params, "base64", "base64 is a flag, not an attribute")
}

func TestParseURIAttributes(t *testing.T) {
	t.Parallel()

	p := New()
	ref, err := p.ParseURI("data:application/json;charset=utf-8;foo=bar,{}")
	require.NoError(t, err)

	repo := ref.Repository.(Repository)
	assert.Equal(t, "application/json", repo.MediaType)
	assert.Equal(t, "utf-8", repo.Params["charset"])
	assert.Equal(t, "bar", repo.Params["foo"])
}

func TestParseURIErrors(t *testing.T) {
	t.Parallel()

	p := New()
	for _, uri := range []string{
		"file:///tmp/x",
		"data:nopayloadseparator",
		"data:;base64,!!!not-base64!!!",
	} {
		_, err := p.ParseURI(uri)
		assert.ErrorIs(t, err, resource.ErrInvalidReference, "uri %q", uri)
	}
}

func TestOpenContent(t *testing.T) {
	t.Parallel()

	p := New()
	ref, err := p.ParseURI("data:,test")
	require.NoError(t, err)

	res, err := p.Open(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, []byte("test"), res.Content.Bytes())
	assert.Equal(t, []string{"text/plain"}, res.Content.Type())

	src, err := p.Source(ref)
	require.NoError(t, err)
	assert.Nil(t, src, "data references are leaves")

	exists, err := p.Exists(context.Background(), ref)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestStreamReplaysPayload(t *testing.T) {
	t.Parallel()

	p := New()
	ref, err := p.ParseURI("data:,test")
	require.NoError(t, err)

	res, err := p.Stream(context.Background(), ref)
	require.NoError(t, err)
	require.True(t, res.Content.Streaming())

	for i := 0; i < 2; i++ {
		content, err := res.Content.Materialise(context.Background(), nil)
		require.NoError(t, err)
		assert.Equal(t, []byte("test"), content.Bytes(), "reduction %d", i)
	}
}

func TestAlike(t *testing.T) {
	t.Parallel()

	p := New()
	parse := func(uri string) resource.Reference {
		ref, err := p.ParseURI(uri)
		require.NoError(t, err)
		return ref
	}

	// The default media type is equivalent to spelling it out.
	assert.True(t, p.Alike(parse("data:,test"), parse("data:text/plain;charset=US-ASCII,test")))
	assert.True(t, p.Alike(parse("data:,test"), parse("data:;base64,dGVzdA==")))
	assert.False(t, p.Alike(parse("data:,test"), parse("data:,tests")))
	assert.False(t, p.Alike(parse("data:,test"), parse("data:text/html,test")))
}

func TestURIRoundTrip(t *testing.T) {
	t.Parallel()

	p := New()
	ref, err := p.ParseURI("data:,test")
	require.NoError(t, err)

	uri, err := p.URI(ref)
	require.NoError(t, err)

	again, err := p.ParseURI(uri)
	require.NoError(t, err)
	assert.True(t, p.Alike(ref, again))
}

func TestAttributes(t *testing.T) {
	t.Parallel()

	p := New()
	ref, err := p.ParseURI("data:text/plain;charset=utf-8,hi")
	require.NoError(t, err)

	value, err := p.Attribute(context.Background(), ref, "charset")
	require.NoError(t, err)
	assert.Equal(t, "utf-8", value)

	_, err = p.Attribute(context.Background(), ref, "missing")
	assert.ErrorIs(t, err, resource.ErrUnknownKey)

	keys, err := p.AttributeKeys(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, []string{"charset"}, keys)
}
