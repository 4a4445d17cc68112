// Package data implements the RFC 2397 data: URI producer. The whole
// resource travels inside the reference, so every operation is local
// and infallible once the URI parses.
package data

import (
	"context"
	"encoding/base64"
	"maps"
	"net/url"
	"slices"
	"strings"

	"github.com/meigma/resx/resource"
)

// Scheme is the URI scheme owned by the producer.
const Scheme = "data"

// Adapter is the adapter identifier stored in references.
const Adapter = "data"

// Defaults applied when the URI omits the media type.
const (
	defaultMediaType = "text/plain"
	defaultCharset   = "US-ASCII"
)

// Repository is the adapter-private state of a data reference.
type Repository struct {
	// MediaType is the single media type of the payload.
	MediaType string

	// Params are the ;attr=val attributes. base64 is a flag, never a
	// param.
	Params map[string]string

	// Data is the decoded payload.
	Data []byte
}

// Producer interprets data: references.
type Producer struct{}

// New creates the data producer.
func New() *Producer { return &Producer{} }

// Schemes implements resource.Producer.
func (p *Producer) Schemes() []string { return []string{Scheme} }

// ParseURI parses a data: URI per RFC 2397.
func (p *Producer) ParseURI(uri string) (resource.Reference, error) {
	rest, ok := strings.CutPrefix(uri, Scheme+":")
	if !ok {
		return resource.Reference{}, resource.InvalidReferencef("not a data URI: %q", uri)
	}

	header, payload, found := strings.Cut(rest, ",")
	if !found {
		return resource.Reference{}, resource.InvalidReferencef("data URI has no payload separator")
	}

	repo := Repository{Params: map[string]string{}}
	isBase64 := false
	for i, part := range strings.Split(header, ";") {
		switch {
		case i == 0:
			repo.MediaType = part
		case part == "base64":
			isBase64 = true
		default:
			key, value, ok := strings.Cut(part, "=")
			if !ok {
				return resource.Reference{}, resource.InvalidReferencef("malformed data URI attribute %q", part)
			}
			repo.Params[key] = value
		}
	}
	if repo.MediaType == "" {
		repo.MediaType = defaultMediaType
		if _, ok := repo.Params["charset"]; !ok {
			repo.Params["charset"] = defaultCharset
		}
	}

	if isBase64 {
		decoded, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return resource.Reference{}, resource.InvalidReferencef("data is not base64")
		}
		repo.Data = decoded
	} else {
		decoded, err := url.PathUnescape(payload)
		if err != nil {
			return resource.Reference{}, resource.InvalidReferencef("malformed data URI payload: %v", err)
		}
		repo.Data = []byte(decoded)
	}

	return resource.Reference{
		Adapter:    Adapter,
		Repository: repo,
		Integrity:  resource.Now(),
	}, nil
}

// repository extracts the adapter-private state, enforcing exclusivity.
func repository(ref resource.Reference) (Repository, error) {
	if ref.Adapter != Adapter {
		return Repository{}, resource.InvalidReferencef("reference belongs to adapter %q, not %q", ref.Adapter, Adapter)
	}
	repo, ok := ref.Repository.(Repository)
	if !ok {
		return Repository{}, resource.InvalidReferencef("malformed data repository (%T)", ref.Repository)
	}
	return repo, nil
}

// Open implements resource.Producer with eager content.
func (p *Producer) Open(_ context.Context, ref resource.Reference) (*resource.Resource, error) {
	repo, err := repository(ref)
	if err != nil {
		return nil, err
	}
	return &resource.Resource{
		Reference: ref,
		Content:   resource.NewContent([]string{repo.MediaType}, repo.Data),
	}, nil
}

// Stream implements resource.Producer. The payload is already in
// memory; the stream replays it as a single chunk.
func (p *Producer) Stream(_ context.Context, ref resource.Reference) (*resource.Resource, error) {
	repo, err := repository(ref)
	if err != nil {
		return nil, err
	}
	return &resource.Resource{
		Reference: ref,
		Content:   resource.NewStreamContent([]string{repo.MediaType}, resource.ChunkStream(repo.Data)),
	}, nil
}

// Exists implements resource.Producer. A parseable data reference
// always exists.
func (p *Producer) Exists(_ context.Context, ref resource.Reference) (bool, error) {
	if _, err := repository(ref); err != nil {
		return false, err
	}
	return true, nil
}

// Alike reports equal repositories.
func (p *Producer) Alike(a, b resource.Reference) bool {
	ra, err := repository(a)
	if err != nil {
		return false
	}
	rb, err := repository(b)
	if err != nil {
		return false
	}
	return ra.MediaType == rb.MediaType &&
		maps.Equal(ra.Params, rb.Params) &&
		string(ra.Data) == string(rb.Data)
}

// Source implements resource.Producer. Data references are leaves.
func (p *Producer) Source(resource.Reference) (*resource.Reference, error) {
	return nil, nil
}

// URI re-emits the canonical base64 form.
func (p *Producer) URI(ref resource.Reference) (string, error) {
	repo, err := repository(ref)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString(Scheme + ":")
	b.WriteString(repo.MediaType)
	for _, key := range sortedKeys(repo.Params) {
		b.WriteString(";" + key + "=" + repo.Params[key])
	}
	b.WriteString(";base64,")
	b.WriteString(base64.StdEncoding.EncodeToString(repo.Data))
	return b.String(), nil
}

// Attribute implements resource.Producer over the URI attribute map.
func (p *Producer) Attribute(_ context.Context, ref resource.Reference, key string) (any, error) {
	repo, err := repository(ref)
	if err != nil {
		return nil, err
	}
	value, ok := repo.Params[key]
	if !ok {
		return nil, resource.UnknownKeyf("%s", key)
	}
	return value, nil
}

// Attributes implements resource.Producer.
func (p *Producer) Attributes(_ context.Context, ref resource.Reference) (map[string]any, error) {
	repo, err := repository(ref)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(repo.Params))
	for key, value := range repo.Params {
		out[key] = value
	}
	return out, nil
}

// AttributeKeys implements resource.Producer.
func (p *Producer) AttributeKeys(_ context.Context, ref resource.Reference) ([]string, error) {
	repo, err := repository(ref)
	if err != nil {
		return nil, err
	}
	return sortedKeys(repo.Params), nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}
