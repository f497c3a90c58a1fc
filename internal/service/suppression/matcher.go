package suppression

import (
	"bytes"
	"crypto/md5"
	"encoding/binary"
	"encoding/hex"
	"math"
	"sort"
	"strings"
	"time"
)

// Hash is the MD5 of a normalized address. ESP suppression exports are
// commonly exchanged as MD5 hex, so screening accepts either form.
type Hash [16]byte

// HashEmail hashes the lower-cased, trimmed address.
func HashEmail(email string) Hash {
	return md5.Sum([]byte(strings.ToLower(strings.TrimSpace(email))))
}

// ParseHash decodes a 32-character MD5 hex string.
func ParseHash(s string) (Hash, bool) {
	var h Hash
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != 32 {
		return h, false
	}
	if _, err := hex.Decode(h[:], []byte(s)); err != nil {
		return h, false
	}
	return h, true
}

func (h Hash) String() string { return hex.EncodeToString(h[:]) }

// bloomFilter answers "definitely absent" without touching the sorted
// hashes. False positives are resolved by binary search.
type bloomFilter struct {
	bits   []uint64
	size   uint64
	hashes uint
}

// newBloomFilter sizes the filter for n elements at false positive rate p:
// m = -n ln(p) / ln(2)^2 bits and k = (m/n) ln(2) hash functions.
func newBloomFilter(n int, p float64) *bloomFilter {
	if n < 1 {
		n = 1
	}
	m := uint64(-float64(n) * math.Log(p) / (math.Ln2 * math.Ln2))
	if m < 64 {
		m = 64
	}
	m = (m + 63) / 64 * 64

	k := uint(float64(m) / float64(n) * math.Ln2)
	if k < 1 {
		k = 1
	}
	if k > 16 {
		k = 16
	}
	return &bloomFilter{bits: make([]uint64, m/64), size: m, hashes: k}
}

// position derives the i-th probe by double hashing the two MD5 halves.
func (b *bloomFilter) position(h Hash, i uint) uint64 {
	h1 := binary.LittleEndian.Uint64(h[:8])
	h2 := binary.LittleEndian.Uint64(h[8:])
	return (h1 + uint64(i)*h2) % b.size
}

func (b *bloomFilter) add(h Hash) {
	for i := uint(0); i < b.hashes; i++ {
		pos := b.position(h, i)
		b.bits[pos/64] |= 1 << (pos % 64)
	}
}

func (b *bloomFilter) mayContain(h Hash) bool {
	for i := uint(0); i < b.hashes; i++ {
		pos := b.position(h, i)
		if b.bits[pos/64]&(1<<(pos%64)) == 0 {
			return false
		}
	}
	return true
}

// Matcher is an immutable snapshot of the suppression list for bulk
// screening. It is safe for concurrent use.
type Matcher struct {
	filter  *bloomFilter
	hashes  []Hash
	builtAt time.Time
}

// NewMatcher snapshots emails. Duplicates are collapsed.
func NewMatcher(emails []string, builtAt time.Time) *Matcher {
	hashes := make([]Hash, 0, len(emails))
	for _, e := range emails {
		hashes = append(hashes, HashEmail(e))
	}
	sort.Slice(hashes, func(i, j int) bool { return bytes.Compare(hashes[i][:], hashes[j][:]) < 0 })

	unique := hashes[:0]
	for i, h := range hashes {
		if i == 0 || h != hashes[i-1] {
			unique = append(unique, h)
		}
	}

	filter := newBloomFilter(len(unique), 0.001)
	for _, h := range unique {
		filter.add(h)
	}
	return &Matcher{filter: filter, hashes: unique, builtAt: builtAt}
}

// Len returns the number of distinct suppressed addresses.
func (m *Matcher) Len() int { return len(m.hashes) }

// Contains reports whether h is suppressed.
func (m *Matcher) Contains(h Hash) bool {
	if !m.filter.mayContain(h) {
		return false
	}
	i := sort.Search(len(m.hashes), func(i int) bool {
		return bytes.Compare(m.hashes[i][:], h[:]) >= 0
	})
	return i < len(m.hashes) && m.hashes[i] == h
}

// ContainsEmail reports whether email is suppressed.
func (m *Matcher) ContainsEmail(email string) bool { return m.Contains(HashEmail(email)) }
