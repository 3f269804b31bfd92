package cache

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

const (
	defaultMultiplier = 37
	defaultHashcode   = 17
)

// Key is the order-sensitive composite identity of a repeatable query. It is built by folding
// in, one at a time, the statement id, paging bounds, SQL text and bound parameter values.
//
// Two keys are equal when they were built from the same ordered sequence of deeply equal
// values. Equality never depends on the identity of the contributing values.
type Key struct {
	multiplier uint64
	hashcode   uint64
	checksum   uint64
	updates    []any
	canonical  []string
	null       bool
}

var nullKey = &Key{
	multiplier: defaultMultiplier,
	hashcode:   defaultHashcode,
	null:       true,
}

// NewKey creates a key seeded with values, in order.
func NewKey(values ...any) *Key {
	k := &Key{
		multiplier: defaultMultiplier,
		hashcode:   defaultHashcode,
	}
	for _, v := range values {
		k.fold(v)
	}
	return k
}

// NullKey returns the shared "do not cache" sentinel. It rejects every mutation.
func NullKey() *Key {
	return nullKey
}

// IsNull reports whether k is the null key sentinel.
func (k *Key) IsNull() bool {
	return k == nil || k.null
}

// Update folds value into the running hash and checksum and appends it to the contributions.
func (k *Key) Update(value any) error {
	if k.IsNull() {
		return ErrNullKeyMutation
	}
	k.fold(value)
	return nil
}

// UpdateAll applies Update to every value in order.
func (k *Key) UpdateAll(values ...any) error {
	if k.IsNull() {
		return ErrNullKeyMutation
	}
	for _, v := range values {
		k.fold(v)
	}
	return nil
}

func (k *Key) fold(value any) {
	c := canonicalValue(value)

	base := uint64(1)
	if c != "nil" {
		base = xxhash.Sum64String(c)
	}

	k.updates = append(k.updates, value)
	k.canonical = append(k.canonical, c)

	count := uint64(len(k.updates))
	k.checksum += base
	k.hashcode = k.multiplier*k.hashcode + base*count
}

// UpdateCount returns the number of contributions folded into the key.
func (k *Key) UpdateCount() int {
	if k == nil {
		return 0
	}
	return len(k.updates)
}

// Hash returns the incrementally maintained hash.
func (k *Key) Hash() uint64 {
	return k.hashcode
}

// Checksum returns the additive checksum of the contributions' base hashes.
func (k *Key) Checksum() uint64 {
	return k.checksum
}

// Equal compares hash, checksum, contribution count and then every contribution by deep equality.
func (k *Key) Equal(other *Key) bool {
	if k == other {
		return true
	}
	if k == nil || other == nil {
		return false
	}
	if k.hashcode != other.hashcode || k.checksum != other.checksum {
		return false
	}
	if len(k.updates) != len(other.updates) {
		return false
	}
	for i := range k.updates {
		if !reflect.DeepEqual(k.updates[i], other.updates[i]) && k.canonical[i] != other.canonical[i] {
			return false
		}
	}
	return true
}

// Clone returns an independently mutable copy of k.
func (k *Key) Clone() *Key {
	if k.IsNull() {
		return k
	}
	return &Key{
		multiplier: k.multiplier,
		hashcode:   k.hashcode,
		checksum:   k.checksum,
		updates:    append([]any(nil), k.updates...),
		canonical:  append([]string(nil), k.canonical...),
	}
}

// Identity returns a string that is equal for two keys exactly when the keys are Equal.
// Caches use it to index their internal maps.
func (k *Key) Identity() string {
	if k == nil {
		return ""
	}
	var b strings.Builder
	for _, c := range k.canonical {
		b.WriteString(strconv.Itoa(len(c)))
		b.WriteByte('#')
		b.WriteString(c)
	}
	return b.String()
}

// String renders hash, checksum and every contribution, separated by KeySeparator.
func (k *Key) String() string {
	if k == nil {
		return "<nil>"
	}
	parts := make([]string, 0, len(k.canonical)+2)
	parts = append(parts, strconv.FormatUint(k.hashcode, 10), strconv.FormatUint(k.checksum, 10))
	parts = append(parts, k.canonical...)
	return strings.Join(parts, KeySeparator)
}
