package resource

import (
	"time"

	"github.com/opencontainers/go-digest"
)

// Checksum identifies content by algorithm and encoded digest.
type Checksum struct {
	// Algorithm names the digest algorithm (e.g. "sha256", "blake3").
	Algorithm digest.Algorithm

	// Encoded is the hex-encoded digest value.
	Encoded string
}

// Digest returns the checksum in go-digest "algorithm:encoded" form.
func (c Checksum) Digest() digest.Digest {
	return digest.NewDigestFromEncoded(c.Algorithm, c.Encoded)
}

// Equal reports whether both checksums use the same algorithm and digest.
func (c Checksum) Equal(o Checksum) bool {
	return c.Algorithm == o.Algorithm && c.Encoded == o.Encoded
}

// Equality is the three-valued outcome of comparing two optional checksums.
type Equality int

const (
	// EqualityUnknown means either side lacked a checksum or the
	// algorithms differ, so no statement about the content can be made.
	EqualityUnknown Equality = iota

	// EqualityEqual means both checksums are present and identical.
	EqualityEqual

	// EqualityDifferent means both checksums use the same algorithm but
	// carry different digests.
	EqualityDifferent
)

func (e Equality) String() string {
	switch e {
	case EqualityEqual:
		return "equal"
	case EqualityDifferent:
		return "different"
	default:
		return "unknown"
	}
}

// Order is a total order outcome on timestamps.
type Order int

const (
	OrderBefore Order = iota - 1
	OrderEqual
	OrderAfter
)

func (o Order) String() string {
	switch o {
	case OrderBefore:
		return "before"
	case OrderAfter:
		return "after"
	default:
		return "equal"
	}
}

// Integrity stamps a reference with an optional checksum and the wall-clock
// instant the reference was created.
type Integrity struct {
	// Checksum is nil when the content has not been finalised. Absence is
	// never conflated with a zero digest.
	Checksum *Checksum

	// Timestamp is set at reference creation (for files, the mtime).
	Timestamp time.Time
}

// Compare returns the checksum equality and timestamp order between two
// integrity stamps.
//
// Checksum equality is EqualityEqual when both checksums are present and
// identical, EqualityDifferent when both are present with the same
// algorithm but different digests, and EqualityUnknown otherwise
// (algorithm mismatch or either side missing).
func (i Integrity) Compare(o Integrity) (Equality, Order) {
	eq := EqualityUnknown
	switch {
	case i.Checksum == nil || o.Checksum == nil:
	case i.Checksum.Algorithm != o.Checksum.Algorithm:
	case i.Checksum.Encoded == o.Checksum.Encoded:
		eq = EqualityEqual
	default:
		eq = EqualityDifferent
	}

	ord := OrderEqual
	switch {
	case i.Timestamp.Before(o.Timestamp):
		ord = OrderBefore
	case i.Timestamp.After(o.Timestamp):
		ord = OrderAfter
	}
	return eq, ord
}

// Reference is the adapter-tagged identity of a resource.
//
// Repository is adapter-private state: only the producer named by Adapter
// may interpret it. References are freely cloneable; adapters keep their
// repository values immutable.
type Reference struct {
	// Adapter names the producer responsible for Repository.
	Adapter string

	// Repository is opaque to everything except the owning producer.
	Repository any

	// Integrity is the checksum/timestamp stamp.
	Integrity Integrity
}

// Stamped returns a copy of the reference carrying the given integrity.
func (r Reference) Stamped(i Integrity) Reference {
	r.Integrity = i
	return r
}

// Now returns an Integrity with no checksum and the current instant,
// the stamp a freshly applied transformation receives.
func Now() Integrity {
	return Integrity{Timestamp: time.Now()}
}
