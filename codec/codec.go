// Package codec provides the canonical binary term encoding used across
// resx: the meta sidecar, transform-option payloads, and RPC bodies all
// round-trip through it.
//
// The encoding is CBOR with Core Deterministic Encoding (RFC 8949 §4.2):
// sorted map keys, smallest integer encoding, no indefinite-length
// items. Same logical data always produces identical bytes, which keeps
// encoded transform options comparable byte-for-byte.
package codec

import (
	"io"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// encMode is the deterministic encoder shared by every caller.
var encMode cbor.EncMode

// decMode accepts standard CBOR; unknown struct fields are ignored for
// forward compatibility.
var decMode cbor.DecMode

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		// resx only ever writes string map keys (meta, options,
		// attributes). When decoding into an any-typed target the
		// CBOR default map type is map[interface{}]interface{};
		// map[string]any is what every consumer expects.
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v deterministically.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes data into v.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// Encoder is a stream encoder. Type alias so consumers import only
// codec, not fxamacker/cbor directly.
type Encoder = cbor.Encoder

// Decoder is a stream decoder.
type Decoder = cbor.Decoder

// RawMessage is a raw encoded value, useful to delay decoding of
// adapter-private payloads.
type RawMessage = cbor.RawMessage

// NewEncoder returns a stream encoder writing deterministic output to w.
func NewEncoder(w io.Writer) *Encoder {
	return encMode.NewEncoder(w)
}

// NewDecoder returns a stream decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return decMode.NewDecoder(r)
}
