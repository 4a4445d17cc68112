package resource

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func checksum(encoded string) *Checksum {
	return &Checksum{Algorithm: "sha256", Encoded: encoded}
}

func TestIntegrityCompare(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	later := base.Add(time.Minute)

	tests := []struct {
		name    string
		a, b    Integrity
		wantEq  Equality
		wantOrd Order
	}{
		{
			name:    "both checksums equal same time",
			a:       Integrity{Checksum: checksum("aa"), Timestamp: base},
			b:       Integrity{Checksum: checksum("aa"), Timestamp: base},
			wantEq:  EqualityEqual,
			wantOrd: OrderEqual,
		},
		{
			name:    "same algorithm different digest",
			a:       Integrity{Checksum: checksum("aa"), Timestamp: base},
			b:       Integrity{Checksum: checksum("bb"), Timestamp: base},
			wantEq:  EqualityDifferent,
			wantOrd: OrderEqual,
		},
		{
			name:    "algorithm mismatch is unknown",
			a:       Integrity{Checksum: &Checksum{Algorithm: "sha256", Encoded: "aa"}, Timestamp: base},
			b:       Integrity{Checksum: &Checksum{Algorithm: "blake3", Encoded: "aa"}, Timestamp: base},
			wantEq:  EqualityUnknown,
			wantOrd: OrderEqual,
		},
		{
			name:    "missing side is unknown",
			a:       Integrity{Timestamp: base},
			b:       Integrity{Checksum: checksum("aa"), Timestamp: base},
			wantEq:  EqualityUnknown,
			wantOrd: OrderEqual,
		},
		{
			name:    "earlier orders before",
			a:       Integrity{Timestamp: base},
			b:       Integrity{Timestamp: later},
			wantEq:  EqualityUnknown,
			wantOrd: OrderBefore,
		},
		{
			name:    "later orders after",
			a:       Integrity{Timestamp: later},
			b:       Integrity{Timestamp: base},
			wantEq:  EqualityUnknown,
			wantOrd: OrderAfter,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			eq, ord := tt.a.Compare(tt.b)
			assert.Equal(t, tt.wantEq, eq)
			assert.Equal(t, tt.wantOrd, ord)
		})
	}
}

func TestIntegrityCompareAntisymmetric(t *testing.T) {
	t.Parallel()

	a := Integrity{Timestamp: time.Unix(100, 0)}
	b := Integrity{Timestamp: time.Unix(200, 0)}

	_, ab := a.Compare(b)
	_, ba := b.Compare(a)
	assert.Equal(t, OrderBefore, ab)
	assert.Equal(t, OrderAfter, ba)
}

func TestChecksumDigest(t *testing.T) {
	t.Parallel()

	cs := Checksum{Algorithm: "sha256", Encoded: "abcd"}
	assert.Equal(t, "sha256:abcd", cs.Digest().String())
	assert.True(t, cs.Equal(Checksum{Algorithm: "sha256", Encoded: "abcd"}))
	assert.False(t, cs.Equal(Checksum{Algorithm: "sha256", Encoded: "dcba"}))
	assert.False(t, cs.Equal(Checksum{Algorithm: "blake3", Encoded: "abcd"}))
}

func TestReferenceStamped(t *testing.T) {
	t.Parallel()

	ref := Reference{Adapter: "data", Integrity: Now()}
	stamp := Integrity{Checksum: checksum("aa"), Timestamp: time.Unix(1, 0)}

	stamped := ref.Stamped(stamp)
	require.NotNil(t, stamped.Integrity.Checksum)
	assert.Equal(t, "aa", stamped.Integrity.Checksum.Encoded)
	assert.Nil(t, ref.Integrity.Checksum, "original reference is unchanged")
}
